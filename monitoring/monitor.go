// Package monitoring turns a running model into a web server that shows its
// progress and lets a user pause and inspect it.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/dosflow/dosflow/internal/logging"
	"github.com/dosflow/dosflow/monitoring/web"
	"github.com/dosflow/dosflow/sim/graph"
	"github.com/dosflow/dosflow/sim/hooking"
	"github.com/dosflow/dosflow/sim/id"
	"github.com/dosflow/dosflow/sim/modeling"
	"github.com/dosflow/dosflow/sim/queueing"
	"github.com/dosflow/dosflow/tracing"
)

// Monitor can turn a run into a server and allows external monitoring and
// controlling of the model.
type Monitor struct {
	model       *graph.Model
	metrics     *tracing.Metrics
	portNumber  int
	openBrowser bool
	logger      *zerolog.Logger

	server *http.Server
	url    string

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{logger: logging.Component("monitoring")}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 pick
// a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Warn().
			Int("port", portNumber).
			Msg("port not allowed for the monitor, using a random port instead")

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser opens the monitor page in a browser once the server starts.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// RegisterModel registers the model that is monitored.
func (m *Monitor) RegisterModel(model *graph.Model) {
	m.model = model
}

// RegisterMetrics makes the metrics available under /metrics.
func (m *Monitor) RegisterMetrics(metrics *tracing.Metrics) {
	m.metrics = metrics
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        id.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// TrackRun creates a progress bar that follows the ticks of the registered
// model until the tick count reaches total.
func (m *Monitor) TrackRun(name string, total uint64) *ProgressBar {
	bar := m.CreateProgressBar(name, total)
	start := m.model.Now()

	m.model.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
		if ctx.Pos != graph.HookPosAfterTick {
			return
		}

		p := ctx.Detail.(graph.Progress)
		bar.SetFinished(p.Tick - start)
	}))

	return bar
}

// Router returns the handler of the monitor API and pages.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseModel)
	r.HandleFunc("/api/continue", m.continueModel)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/nodes", m.listNodes)
	r.HandleFunc("/api/node/{name}", m.nodeDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/edges", m.listEdges)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	if m.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(
			m.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	r.PathPrefix("/").Handler(http.FileServer(web.Assets()))

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", fmt.Errorf("monitor: %w", err)
	}

	m.url = fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	m.logger.Info().Str("url", m.url).Msg("monitoring the model")

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().Err(err).Msg("monitor stopped")
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(m.url); err != nil {
			m.logger.Warn().Err(err).Msg("cannot open a browser")
		}
	}

	return m.url, nil
}

// URL returns the address of a started server.
func (m *Monitor) URL() string {
	return m.url
}

// Shutdown stops a started server.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) pauseModel(w http.ResponseWriter, _ *http.Request) {
	m.model.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueModel(w http.ResponseWriter, _ *http.Request) {
	m.model.Continue()
	w.WriteHeader(http.StatusOK)
}

type nowRsp struct {
	Now     uint64 `json:"now"`
	Target  uint64 `json:"target"`
	Paused  bool   `json:"paused"`
	Aborted bool   `json:"aborted"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, nowRsp{
		Now:     m.model.Now(),
		Target:  m.model.Target(),
		Paused:  m.model.IsPaused(),
		Aborted: m.model.Aborted(),
	})
}

type nodeRsp struct {
	Name        string `json:"name"`
	Rate        string `json:"rate"`
	State       string `json:"state"`
	Activations uint64 `json:"activations"`
	Emissions   uint64 `json:"emissions"`
	Stalls      uint64 `json:"stalls"`
}

func (m *Monitor) listNodes(w http.ResponseWriter, _ *http.Request) {
	nodes := m.model.Nodes()
	rsp := make([]nodeRsp, 0, len(nodes))

	for _, n := range nodes {
		rsp = append(rsp, nodeRsp{
			Name:        n.Name(),
			Rate:        n.Rate().String(),
			State:       n.State().String(),
			Activations: n.Activations(),
			Emissions:   n.Emissions(),
			Stalls:      n.Stalls(),
		})
	}

	writeJSON(w, rsp)
}

func (m *Monitor) nodeDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	node := m.findNodeOr404(w, name)
	if node == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(node.Client())
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	NodeName  string `json:"node_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	node := m.findNodeOr404(w, req.NodeName)
	if node == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(node.Client())
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

type edgeRsp struct {
	Edge       string `json:"edge"`
	Discipline string `json:"discipline"`
	Level      int    `json:"level"`
	Cap        int    `json:"cap"`
	Pending    int    `json:"pending"`
	Pushes     uint64 `json:"pushes"`
	Overwrites uint64 `json:"overwrites"`
}

func (m *Monitor) listEdges(w http.ResponseWriter, r *http.Request) {
	sortMethod, limit, offset, err := edgesParseParams(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	edges := sortAndSelectEdges(m.model.Edges(), sortMethod, limit, offset)

	rsp := make([]edgeRsp, 0, len(edges))
	for _, e := range edges {
		rsp = append(rsp, edgeRsp{
			Edge:       e.Name(),
			Discipline: e.Discipline().String(),
			Level:      e.Size(),
			Cap:        e.Capacity(),
			Pending:    e.Pending(),
			Pushes:     e.Pushes(),
			Overwrites: e.Overwrites(),
		})
	}

	writeJSON(w, rsp)
}

func edgesParseParams(r *http.Request) (sortMethod string, limit, offset int, err error) {
	query := r.URL.Query()

	sortMethod = query.Get("sort")
	if sortMethod == "" {
		sortMethod = "percent"
	}

	if sortMethod != "level" && sortMethod != "percent" {
		return "", 0, 0, fmt.Errorf(
			"invalid sort method: %s. Allowed values are `level` and `percent`",
			sortMethod)
	}

	limit, err = intParam(query.Get("limit"))
	if err != nil {
		return sortMethod, 0, 0, err
	}

	offset, err = intParam(query.Get("offset"))
	if err != nil {
		return sortMethod, limit, 0, err
	}

	return sortMethod, limit, offset, nil
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}

	if v < 0 {
		return 0, fmt.Errorf("negative value %d", v)
	}

	return v, nil
}

func edgePercent(e *modeling.Edge) float64 {
	if e.Capacity() == queueing.Unlimited {
		return 0
	}

	return float64(e.Size()) / float64(e.Capacity())
}

func sortAndSelectEdges(
	all []*modeling.Edge,
	sortMethod string,
	limit, offset int,
) []*modeling.Edge {
	edges := make([]*modeling.Edge, len(all))
	copy(edges, all)

	byLevel := func(i, j int) (bool, bool) {
		si, sj := edges[i].Size(), edges[j].Size()
		return si > sj, si == sj
	}

	byPercent := func(i, j int) (bool, bool) {
		pi, pj := edgePercent(edges[i]), edgePercent(edges[j])
		return pi > pj, pi == pj
	}

	first, second := byPercent, byLevel
	if sortMethod == "level" {
		first, second = byLevel, byPercent
	}

	sort.SliceStable(edges, func(i, j int) bool {
		if less, tie := first(i, j); !tie {
			return less
		}

		less, _ := second(i, j)

		return less
	})

	if offset > len(edges) {
		offset = len(edges)
	}

	end := len(edges)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return edges[offset:end]
}

func (m *Monitor) findNodeOr404(
	w http.ResponseWriter,
	name string,
) *modeling.Node {
	node := m.model.Node(name)

	if node == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Node not found"))
		dieOnErr(err)
	}

	return node
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]ProgressBarSnapshot, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.Snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second

	if d := r.URL.Query().Get("duration"); d != "" {
		var err error

		duration, err = time.ParseDuration(d)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Error: %s", err)

			return
		}
	}

	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	time.Sleep(duration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
