// Package config loads the daemon configuration from an optional YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/pulse-counter/internal/gpio"
)

type Config struct {
	Name string `yaml:"name"`

	// ---- PULSE INPUT ----

	Pin          int             `yaml:"pin"`
	RetainedPins []int           `yaml:"retained_pins"` // empty = ESP32 RTC IO table
	CountMode    CountModeConfig `yaml:"count_mode"`
	Debounce     uint16          `yaml:"debounce"`
	WakePeriod   time.Duration   `yaml:"wake_period"`
	GPIO         GPIOConfig      `yaml:"gpio"`
	RetainedPath string          `yaml:"retained_path"`

	// ---- OUTPUT ----

	UpdateInterval time.Duration `yaml:"update_interval"`
	Total          bool          `yaml:"total"`
	Heartbeat      time.Duration `yaml:"heartbeat"`
	MQTT           MQTTConfig    `yaml:"mqtt"`
	NATS           NATSConfig    `yaml:"nats"`
	HTTP           string        `yaml:"http"`
}

type CountModeConfig struct {
	Rising  string `yaml:"rising_edge"`
	Falling string `yaml:"falling_edge"`
}

type GPIOConfig struct {
	Backend string `yaml:"backend"` // "cdev" or "periph"
	Chip    string `yaml:"chip"`
	Bias    string `yaml:"bias"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	WSBroker string `yaml:"ws_broker"`
}

type NATSConfig struct {
	URL string `yaml:"url"` // empty disables
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Name: "pulse-counter",
		Pin:  gpio.DefaultPin,
		CountMode: CountModeConfig{
			Rising:  "INCREMENT",
			Falling: "DISABLE",
		},
		Debounce:   3,
		WakePeriod: 20 * time.Millisecond,
		GPIO: GPIOConfig{
			Backend: "cdev",
			Chip:    "gpiochip0",
			Bias:    string(gpio.BiasPullDown),
		},
		RetainedPath:   "/run/pulse-counter.rtc",
		UpdateInterval: 60 * time.Second,
		Heartbeat:      15 * time.Minute,
		MQTT: MQTTConfig{
			Broker:   "tcp://192.168.1.200:1883",
			WSBroker: "=broker",
		},
		HTTP: ":80",
	}
}

// Load reads path over the defaults. Fields absent from the file keep their
// default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
