package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/dosflow/dosflow/config"
)

func writeFile(dir, name, content string) string {
	path := filepath.Join(dir, name)
	Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())

	return path
}

var _ = Describe("Config", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("should have valid defaults", func() {
		c := config.Default()

		Expect(c.Validate()).To(Succeed())
		Expect(c.Ticks()).To(Equal(uint64(80000)))
		Expect(c.ASMS.ModalForcesGain).To(Equal(0.5))
		Expect(c.ASMS.FluidDampingGain).To(Equal(-9.1))
	})

	It("should reject an M1 rate that does not divide the sampling", func() {
		c := config.Default()
		c.M1Rate = 70

		err := c.Validate()

		Expect(err).To(MatchError(config.ErrInvalidConfig))
		Expect(err).To(MatchError(ContainSubstring("does not divide")))
	})

	It("should reject a damping out of range", func() {
		c := config.Default()
		c.Plant.Damping = 1.5

		Expect(c.Validate()).To(MatchError(ContainSubstring("Plant.Damping")))
	})

	It("should need a file for a series profile", func() {
		c := config.Default()
		c.WindLoads.Source = "series"

		Expect(c.Validate()).To(MatchError(config.ErrInvalidConfig))

		c.WindLoads.SeriesFile = "loads.csv"
		c.WindLoads.SeriesHz = 20
		Expect(c.Validate()).To(Succeed())
	})

	It("should keep defaults for fields the file leaves out", func() {
		path := writeFile(dir, "run.yaml", `
name: short
duration: 0.5
plant:
  damping: 0.02
logger:
  output: out/run
`)

		c, err := config.Load(path)

		Expect(err).ToNot(HaveOccurred())
		Expect(c.Name).To(Equal("short"))
		Expect(c.Ticks()).To(Equal(uint64(4000)))
		Expect(c.Plant.Damping).To(Equal(0.02))
		Expect(c.Plant.Modes).To(Equal(20))
		Expect(c.Logger.Output).To(Equal("out/run"))
		Expect(c.M1Rate).To(Equal(80))
	})

	It("should report a malformed file", func() {
		path := writeFile(dir, "bad.yaml", "duration: [")

		_, err := config.Load(path)
		Expect(err).To(MatchError(ContainSubstring("parse config")))
	})

	It("should report a missing file", func() {
		_, err := config.Load(filepath.Join(dir, "missing.yaml"))
		Expect(err).To(HaveOccurred())
	})

	It("should let the environment override the file", func() {
		GinkgoT().Setenv(config.EnvDuration, "2")
		GinkgoT().Setenv(config.EnvParallel, "4")
		GinkgoT().Setenv(config.EnvMonitor, "true")

		c, err := config.Load("")

		Expect(err).ToNot(HaveOccurred())
		Expect(c.Duration).To(Equal(2.0))
		Expect(c.Parallel).To(Equal(4))
		Expect(c.Monitor.Enabled).To(BeTrue())
	})

	It("should reject a malformed environment value", func() {
		GinkgoT().Setenv(config.EnvSampling, "fast")

		_, err := config.Load("")
		Expect(err).To(MatchError(config.ErrInvalidConfig))
	})

	It("should read overrides from an env file", func() {
		GinkgoT().Setenv(config.EnvCFDCase, "")
		Expect(os.Unsetenv(config.EnvCFDCase)).To(Succeed())
		DeferCleanup(os.Unsetenv, config.EnvCFDCase)

		env := writeFile(dir, ".env", config.EnvCFDCase+"=zen30az000_CD12\n")

		c, err := config.Load("", filepath.Join(dir, "absent.env"), env)

		Expect(err).ToNot(HaveOccurred())
		Expect(c.CFDCase).To(Equal("zen30az000_CD12"))
	})
})
