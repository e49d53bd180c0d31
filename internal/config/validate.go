package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/pulse-counter/internal/gpio"
	"github.com/sweeney/pulse-counter/internal/ulp"
)

// Validate checks configuration correctness.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("name must not be empty")
	}
	if cfg.Pin < 0 {
		return fmt.Errorf("pin %d: must not be negative", cfg.Pin)
	}

	seen := make(map[int]bool, len(cfg.RetainedPins))
	for _, p := range cfg.RetainedPins {
		if p < 0 {
			return fmt.Errorf("retained_pins: invalid pin %d", p)
		}
		if seen[p] {
			return fmt.Errorf("retained_pins: pin %d listed twice", p)
		}
		seen[p] = true
	}
	if _, ok := ulp.IOMap(cfg.RetainedPins)[cfg.Pin]; !ok {
		return fmt.Errorf("pin %d: not a retained (RTC) I/O", cfg.Pin)
	}

	rising, err := ulp.ParseCountMode(cfg.CountMode.Rising)
	if err != nil {
		return fmt.Errorf("count_mode.rising_edge: %w", err)
	}
	falling, err := ulp.ParseCountMode(cfg.CountMode.Falling)
	if err != nil {
		return fmt.Errorf("count_mode.falling_edge: %w", err)
	}
	if rising == ulp.CountDisable && falling == ulp.CountDisable {
		return fmt.Errorf("count_mode: both edges are DISABLE, nothing would be counted")
	}

	if cfg.WakePeriod < time.Millisecond {
		return fmt.Errorf("wake_period %v: must be at least 1ms", cfg.WakePeriod)
	}
	if cfg.WakePeriod > ulp.MaxWakePeriod {
		return fmt.Errorf("wake_period %v: must be at most %v", cfg.WakePeriod, ulp.MaxWakePeriod)
	}
	if cfg.UpdateInterval <= 0 {
		return fmt.Errorf("update_interval %v: must be positive", cfg.UpdateInterval)
	}
	if cfg.Heartbeat < 0 {
		return fmt.Errorf("heartbeat %v: must not be negative", cfg.Heartbeat)
	}

	switch cfg.GPIO.Backend {
	case "cdev", "periph":
	default:
		return fmt.Errorf("gpio.backend %q: must be cdev or periph", cfg.GPIO.Backend)
	}
	if _, err := gpio.ParseBias(cfg.GPIO.Bias); err != nil {
		return fmt.Errorf("gpio.bias: %w", err)
	}

	if cfg.RetainedPath == "" {
		return fmt.Errorf("retained_path must not be empty")
	}
	if cfg.MQTT.Broker == "" && cfg.NATS.URL == "" {
		return fmt.Errorf("no output: set mqtt.broker or nats.url")
	}
	return nil
}
