package config

import "strings"

// Normalize fills derived values.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.CountMode.Rising = strings.ToUpper(strings.TrimSpace(cfg.CountMode.Rising))
	cfg.CountMode.Falling = strings.ToUpper(strings.TrimSpace(cfg.CountMode.Falling))

	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = cfg.Name
	}
	if cfg.GPIO.Bias == "" {
		cfg.GPIO.Bias = "pull-down"
	}
	if cfg.GPIO.Chip == "" {
		cfg.GPIO.Chip = "gpiochip0"
	}
}
