package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/dosflow/dosflow/config"
	"github.com/dosflow/dosflow/model"
)

const scenario = `
name: Small
sampling_frequency: 100
duration: 0.2
m1_rate: 10
fade:
  delay: 5
  ramp: 10
plant:
  modes: 4
logger:
  decimation: 5
`

func execute(args ...string) (string, error) {
	var out bytes.Buffer

	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), err
}

var _ = Describe("Commands", func() {
	var (
		dir        string
		configFile string
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		configFile = filepath.Join(dir, "scenario.yaml")
		Expect(os.WriteFile(configFile, []byte(scenario), 0o644)).To(Succeed())
	})

	It("should check a valid scenario", func() {
		out, err := execute("check", "--config", configFile)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("model Small: 24 nodes"))
		Expect(out).To(ContainSubstring("20 ticks"))
		Expect(out).To(ContainSubstring("level 0:"))
	})

	It("should report an invalid scenario", func() {
		GinkgoT().Setenv(config.EnvM1Rate, "7")

		_, err := execute("check", "--config", configFile)

		Expect(err).To(MatchError(config.ErrInvalidConfig))
	})

	It("should write the flowchart", func() {
		out, err := execute("flowchart", "--config", configFile)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HavePrefix(`digraph "Small"`))
		Expect(out).To(ContainSubstring(fmt.Sprintf("%q", model.NodePlant)))
	})

	It("should write the flowchart into a file", func() {
		dot := filepath.Join(dir, "model.dot")

		_, err := execute("flowchart", "--config", configFile, "-o", dot)
		Expect(err).NotTo(HaveOccurred())

		data, err := os.ReadFile(dot)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("style=dashed"))
	})

	It("should run the scenario", func() {
		output := filepath.Join(dir, "record")

		out, err := execute("run", "--config", configFile,
			"--output", output, "--duration", "0.1")

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("10 ticks recorded in " + output + ".sqlite3"))
		Expect(output + ".sqlite3").To(BeAnExistingFile())
	})

	It("should reject arguments", func() {
		_, err := execute("run", "extra")

		Expect(err).To(HaveOccurred())
	})
})
