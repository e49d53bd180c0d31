// Command pulse-ulp runs the counting program out of retained memory. It
// stands in for the always-on coprocessor: it keeps sampling the pulse input
// while pulse-counter is stopped.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/pulse-counter/internal/config"
	"github.com/sweeney/pulse-counter/internal/gpio"
	"github.com/sweeney/pulse-counter/internal/ulp"
)

// errReconfigure means the main processor restarted or reconfigured the program.
var errReconfigure = errors.New("program reconfigured")

// pollInterval is how often a stopped program is checked for a start.
const pollInterval = 100 * time.Millisecond

func main() {
	def := config.Default()
	configPath := flag.String("config", "", "YAML config file shared with pulse-counter (optional)")
	retained := flag.String("retained", def.RetainedPath, "Retained memory file")
	backend := flag.String("backend", def.GPIO.Backend, "GPIO backend: cdev or periph")
	chip := flag.String("chip", def.GPIO.Chip, "GPIO chip (cdev backend)")
	bias := flag.String("bias", def.GPIO.Bias, "Input bias: pull-down, pull-up or none")
	flag.Parse()

	cfg := def
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("fatal: %v", err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "retained":
			cfg.RetainedPath = *retained
		case "backend":
			cfg.GPIO.Backend = *backend
		case "chip":
			cfg.GPIO.Chip = *chip
		case "bias":
			cfg.GPIO.Bias = *bias
		}
	})
	if err := config.Validate(&cfg); err != nil {
		log.Fatalf("fatal: invalid config: %v", err)
	}
	config.Normalize(&cfg)

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config) error {
	mem, err := ulp.OpenFile(cfg.RetainedPath)
	if err != nil {
		return fmt.Errorf("%s: %w", cfg.RetainedPath, err)
	}
	block := ulp.NewBlock(mem, ulp.IOMap(cfg.RetainedPins))
	defer block.Close()
	regs := block.Registers()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	poll := time.NewTicker(pollInterval)
	defer poll.Stop()

	for {
		log.Printf("waiting for program start")
		if !waitRunning(regs, poll.C, sigCh) {
			return nil
		}

		line, ok := block.GPIONumber(regs.IONumber())
		if !ok {
			return fmt.Errorf("retained I/O %d has no GPIO", regs.IONumber())
		}
		reader, err := openReader(cfg.GPIO, line)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}

		period := regs.WakePeriod()
		rising, falling := regs.CountModes()
		log.Printf("running: GPIO%d (io %d) wake=%v rising=%s falling=%s debounce=%d held=%v",
			line, regs.IONumber(), period, rising, falling, regs.DebounceMaxCount(), regs.Held())

		ticker := time.NewTicker(period)
		err = runLoop(reader, regs, ticker.C, sigCh)
		ticker.Stop()
		if cerr := reader.Close(); cerr != nil {
			log.Printf("close gpio: %v", cerr)
		}
		if !errors.Is(err, errReconfigure) {
			return err
		}
		log.Printf("program changed, reloading")
	}
}

func openReader(cfg config.GPIOConfig, line int) (gpio.Reader, error) {
	bias, err := gpio.ParseBias(cfg.Bias)
	if err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case "cdev":
		return gpio.NewRealReader(cfg.Chip, line, bias)
	case "periph":
		return gpio.NewPeriphReader(line, bias)
	}
	return nil, fmt.Errorf("unknown gpio backend %q", cfg.Backend)
}

// waitRunning blocks until the program is running. It returns false when a
// signal arrives first.
func waitRunning(regs *ulp.Registers, poll <-chan time.Time, sig <-chan os.Signal) bool {
	for !regs.Running() {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			return false
		case <-poll:
		}
	}
	return true
}

// runLoop executes one program iteration per tick. It returns nil on a
// signal and errReconfigure when the program is stopped, moved to another
// input or given a new wake period.
func runLoop(reader gpio.Reader, regs *ulp.Registers, tick <-chan time.Time, sig <-chan os.Signal) error {
	io := regs.IONumber()
	period := regs.WakePeriod()
	failing := false

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			return nil

		case <-tick:
			if !regs.Running() || regs.IONumber() != io || regs.WakePeriod() != period {
				return errReconfigure
			}
			level, err := reader.Read()
			if err != nil {
				if !failing {
					log.Printf("gpio read error: %v", err)
					failing = true
				}
				continue
			}
			if failing {
				log.Printf("gpio read recovered")
				failing = false
			}
			ulp.Step(regs, level)
		}
	}
}
