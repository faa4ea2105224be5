package config_test

import (
	"log/slog"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/avrsim/config"
	"github.com/sarchlab/avrsim/device"
	"github.com/sarchlab/avrsim/emu"
)

var _ = Describe("Config", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "avrsim-config-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	It("should provide valid defaults", func() {
		c := config.DefaultConfig()
		Expect(c.Validate()).To(Succeed())
		Expect(c.MCU).To(Equal("ATmega328P"))
		Expect(c.ByteOrder).To(Equal("big"))
	})

	It("should save and load", func() {
		c := config.DefaultConfig()
		c.MCU = "ATtiny85"
		c.ClockHz = 8_000_000
		c.LenientDecoding = true

		path := filepath.Join(tempDir, "project.json")
		Expect(c.SaveConfig(path)).To(Succeed())

		loaded, err := config.LoadConfig(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(c))
	})

	It("should keep defaults for absent fields", func() {
		path := filepath.Join(tempDir, "partial.json")
		Expect(os.WriteFile(path, []byte(`{"mcu": "ATmega2560"}`), 0644)).To(Succeed())

		c, err := config.LoadConfig(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.MCU).To(Equal("ATmega2560"))
		Expect(c.ClockHz).To(Equal(uint64(16_000_000)))
		Expect(c.PollIntervalMs).To(Equal(100))
	})

	It("should fail on unreadable or malformed files", func() {
		_, err := config.LoadConfig(filepath.Join(tempDir, "missing.json"))
		Expect(err).To(HaveOccurred())

		path := filepath.Join(tempDir, "bad.json")
		Expect(os.WriteFile(path, []byte(`{"mcu": `), 0644)).To(Succeed())
		_, err = config.LoadConfig(path)
		Expect(err).To(HaveOccurred())
	})

	DescribeTable("invalid settings",
		func(mutate func(*config.Config)) {
			c := config.DefaultConfig()
			mutate(c)
			Expect(c.Validate()).NotTo(Succeed())
		},
		Entry("unknown MCU", func(c *config.Config) { c.MCU = "PIC16F84" }),
		Entry("zero clock", func(c *config.Config) { c.ClockHz = 0 }),
		Entry("byte order", func(c *config.Config) { c.ByteOrder = "middle" }),
		Entry("poll interval", func(c *config.Config) { c.PollIntervalMs = 0 }),
		Entry("log level", func(c *config.Config) { c.LogLevel = "loud" }),
	)

	It("should report unknown MCUs as invalid", func() {
		c := config.DefaultConfig()
		c.MCU = "PIC16F84"
		Expect(c.Validate()).To(MatchError(device.ErrInvalidMCU))
	})

	It("should clone independently", func() {
		c := config.DefaultConfig()
		clone := c.Clone()
		clone.MCU = "ATtiny85"
		Expect(c.MCU).To(Equal("ATmega328P"))
	})

	It("should build loader options", func() {
		c := config.DefaultConfig()
		opts, err := c.LoaderOptions()
		Expect(err).NotTo(HaveOccurred())
		Expect(opts).To(HaveLen(1))

		c.LenientDecoding = true
		c.ByteOrder = "little"
		opts, err = c.LoaderOptions()
		Expect(err).NotTo(HaveOccurred())
		Expect(opts).To(HaveLen(2))

		dev, err := c.Device()
		Expect(err).NotTo(HaveOccurred())
		Expect(dev.Name).To(Equal("ATmega328P"))
	})

	DescribeTable("log levels",
		func(name string, want slog.Level) {
			level, err := config.ParseLevel(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(level).To(Equal(want))
		},
		Entry(nil, "trace", emu.LevelTrace),
		Entry(nil, "DEBUG", slog.LevelDebug),
		Entry(nil, "", slog.LevelInfo),
		Entry(nil, "warn", slog.LevelWarn),
		Entry(nil, "error", slog.LevelError),
	)
})
