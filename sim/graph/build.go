package graph

import (
	"fmt"
	"strings"

	"github.com/dosflow/dosflow/sim/modeling"
)

// Build validates the graph and returns a model ready to run. All problems
// are reported at once as ValidationErrors.
func (g *Graph) Build(opts ...ModelOption) (*Model, error) {
	errs := append(ValidationErrors{}, g.errs...)

	for _, n := range g.nodes {
		errs = append(errs, checkRate(n)...)
		errs = append(errs, checkInputs(n)...)
		errs = append(errs, checkOutputs(n)...)
	}

	order, levels, loop := sortTopologically(g.nodes)
	if loop != nil {
		errs = append(errs, loop)
	}

	if len(errs) > 0 {
		return nil, errs
	}

	return newModel(g, order, levels, opts...), nil
}

// Check validates the graph without building a model.
func (g *Graph) Check() error {
	_, err := g.Build()
	return err
}

func checkRate(n *modeling.Node) ValidationErrors {
	if err := n.Rate().Validate(); err != nil {
		return ValidationErrors{{
			Kind:   InvalidRate,
			Node:   n.Name(),
			Detail: err.Error(),
		}}
	}

	return nil
}

func checkInputs(n *modeling.Node) ValidationErrors {
	var errs ValidationErrors

	defaulter, canDefault := n.Client().(modeling.InputDefaulter)

	for _, in := range n.Inputs() {
		if in.IsConnected() {
			continue
		}

		if canDefault {
			p := defaulter.DefaultInput(in.Tag())
			if p != nil && p.Tag() == in.Tag() {
				continue
			}
		}

		errs = append(errs, &ValidationError{
			Kind: UnconnectedInput,
			Node: n.Name(),
			Port: in.Name(),
		})
	}

	return errs
}

func checkOutputs(n *modeling.Node) ValidationErrors {
	var errs ValidationErrors

	for _, out := range n.Outputs() {
		want := out.ExpectedFanout()
		if want > 0 && want != len(out.Edges()) {
			errs = append(errs, &ValidationError{
				Kind: InvalidMultiplex,
				Node: n.Name(),
				Port: out.Name(),
				Detail: fmt.Sprintf("multiplexed %d times, connected %d times",
					want, len(out.Edges())),
			})
		}

		for _, e := range out.Edges() {
			if e.Discipline() == modeling.BestEffort &&
				!e.Dst().Node().IsTerminal() {
				errs = append(errs, &ValidationError{
					Kind: BestEffortOnControlPath,
					Node: n.Name(),
					Port: out.Name(),
					Detail: fmt.Sprintf("%s feeds %s, which has outputs",
						e.Name(), e.Dst().Node().Name()),
				})
			}
		}
	}

	return errs
}

// sortTopologically orders the nodes with Kahn's algorithm over same-tick
// edges. Among ready nodes the one added first goes first. Levels group
// nodes whose same-tick predecessors are all in earlier levels.
func sortTopologically(
	nodes []*modeling.Node,
) ([]*modeling.Node, [][]*modeling.Node, *ValidationError) {
	index := make(map[*modeling.Node]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}

	indegree := make([]int, len(nodes))
	for _, n := range nodes {
		for _, in := range n.Inputs() {
			e := in.Edge()
			if e != nil && !e.IsBootstrap() {
				indegree[index[n]]++
			}
		}
	}

	placed := make([]bool, len(nodes))
	level := make([]int, len(nodes))
	order := make([]*modeling.Node, 0, len(nodes))

	for len(order) < len(nodes) {
		next := -1
		for i := range nodes {
			if !placed[i] && indegree[i] == 0 {
				next = i
				break
			}
		}

		if next < 0 {
			return nil, nil, loopError(nodes, placed)
		}

		placed[next] = true
		order = append(order, nodes[next])

		for _, out := range nodes[next].Outputs() {
			for _, e := range out.Edges() {
				if e.IsBootstrap() {
					continue
				}

				j := index[e.Dst().Node()]
				indegree[j]--
				level[j] = max(level[j], level[next]+1)
			}
		}
	}

	var levels [][]*modeling.Node
	for _, n := range order {
		l := level[index[n]]
		for len(levels) <= l {
			levels = append(levels, nil)
		}

		levels[l] = append(levels[l], n)
	}

	return order, levels, nil
}

func loopError(nodes []*modeling.Node, placed []bool) *ValidationError {
	var names []string
	for i, n := range nodes {
		if !placed[i] {
			names = append(names, n.Name())
		}
	}

	return &ValidationError{
		Kind: AlgebraicLoop,
		Node: names[0],
		Detail: fmt.Sprintf("no same-tick order for %s; "+
			"a cycle needs a bootstrap edge",
			strings.Join(names, ", ")),
	}
}
