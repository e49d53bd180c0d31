// Command pulse-counter drains the coprocessor's pulse counters and publishes
// a pulses-per-minute rate (and optionally a running total) to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/pulse-counter/internal/config"
	"github.com/sweeney/pulse-counter/internal/gpio"
	"github.com/sweeney/pulse-counter/internal/logic"
	"github.com/sweeney/pulse-counter/internal/mqtt"
	"github.com/sweeney/pulse-counter/internal/natspub"
	"github.com/sweeney/pulse-counter/internal/status"
	"github.com/sweeney/pulse-counter/internal/ulp"
	"github.com/sweeney/pulse-counter/internal/web"
)

type options struct {
	printState bool
	once       bool
}

func main() {
	cfg, opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg, opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// parseFlags builds the configuration: defaults, then the --config file, then
// any flag given explicitly on the command line.
func parseFlags(args []string) (config.Config, options, error) {
	def := config.Default()
	fs := flag.NewFlagSet("pulse-counter", flag.ContinueOnError)

	configPath := fs.String("config", "", "YAML config file (optional)")
	pin := fs.Int("pin", def.Pin, "GPIO number of the pulse input (must be a retained I/O)")
	rising := fs.String("rising", def.CountMode.Rising, "Rising edge mode: INCREMENT, DECREMENT or DISABLE")
	falling := fs.String("falling", def.CountMode.Falling, "Falling edge mode: INCREMENT, DECREMENT or DISABLE")
	debounce := fs.Uint("debounce", uint(def.Debounce), "Extra stable samples required per edge")
	wakePeriod := fs.Duration("wake-period", def.WakePeriod, "Coprocessor sampling period")
	update := fs.Duration("update", def.UpdateInterval, "Rate update interval")
	total := fs.Bool("total", def.Total, "Publish the cumulative pulse total")
	retained := fs.String("retained", def.RetainedPath, "Retained memory file shared with pulse-ulp")
	broker := fs.String("broker", def.MQTT.Broker, "MQTT broker address (empty to disable)")
	natsURL := fs.String("nats", def.NATS.URL, "NATS server URL (empty to disable)")
	heartbeat := fs.Duration("heartbeat", def.Heartbeat, "Heartbeat interval (0 to disable)")
	httpAddr := fs.String("http", def.HTTP, "HTTP status address (empty to disable)")
	wsBroker := fs.String("ws-broker", def.MQTT.WSBroker, `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)

	var opts options
	fs.BoolVar(&opts.printState, "print-state", false, "Print the coprocessor registers and exit")
	fs.BoolVar(&opts.once, "once", false, "Boot, publish one reading and exit (deep-sleep deployment)")

	if err := fs.Parse(args); err != nil {
		return def, opts, err
	}

	cfg := def
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return cfg, opts, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "pin":
			cfg.Pin = *pin
		case "rising":
			cfg.CountMode.Rising = *rising
		case "falling":
			cfg.CountMode.Falling = *falling
		case "debounce":
			cfg.Debounce = uint16(*debounce)
		case "wake-period":
			cfg.WakePeriod = *wakePeriod
		case "update":
			cfg.UpdateInterval = *update
		case "total":
			cfg.Total = *total
		case "retained":
			cfg.RetainedPath = *retained
		case "broker":
			cfg.MQTT.Broker = *broker
		case "nats":
			cfg.NATS.URL = *natsURL
		case "heartbeat":
			cfg.Heartbeat = *heartbeat
		case "http":
			cfg.HTTP = *httpAddr
		case "ws-broker":
			cfg.MQTT.WSBroker = *wsBroker
		}
	})
	if *debounce > 0xFFFF {
		return cfg, opts, fmt.Errorf("debounce %d: must fit in 16 bits", *debounce)
	}

	if err := config.Validate(&cfg); err != nil {
		return cfg, opts, fmt.Errorf("invalid config: %w", err)
	}
	config.Normalize(&cfg)
	return cfg, opts, nil
}

// launcher starts or resumes the counting program in the retained block.
type launcher struct {
	block *ulp.Block
	pin   gpio.Pin
	cfg   ulp.Config
}

func (l launcher) Start() (logic.Counter, error) {
	p, err := ulp.Start(l.block, l.pin, l.cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (l launcher) Resume() logic.Counter {
	return ulp.Resume(l.block)
}

// wokeFromSleep reports whether the running program can be resumed. A
// program configured for another pin, debounce, wake period or count mode is
// restarted instead.
func wokeFromSleep(block *ulp.Block, pin int, cfg ulp.Config) bool {
	if !block.WokeFromSleep() {
		return false
	}
	if reason := ulp.Mismatch(block, pin, cfg); reason != "" {
		log.Printf("configuration changed (%s), restarting coprocessor program", reason)
		return false
	}
	return true
}

func ulpConfig(cfg config.Config) ulp.Config {
	// Both modes were checked by config.Validate.
	rising, _ := ulp.ParseCountMode(cfg.CountMode.Rising)
	falling, _ := ulp.ParseCountMode(cfg.CountMode.Falling)
	return ulp.Config{
		DebounceThreshold: cfg.Debounce,
		WakePeriod:        cfg.WakePeriod,
		Rising:            rising,
		Falling:           falling,
	}
}

func run(cfg config.Config, opts options) error {
	mem, err := ulp.OpenFile(cfg.RetainedPath)
	if err != nil {
		return fmt.Errorf("%s: %w", cfg.RetainedPath, err)
	}
	block := ulp.NewBlock(mem, ulp.IOMap(cfg.RetainedPins))
	defer block.Close()

	if opts.printState {
		printState(block.Registers())
		return nil
	}

	ulpCfg := ulpConfig(cfg)
	minPulse := ulp.MinPulseWidth(ulpCfg.WakePeriod, ulpCfg.DebounceThreshold)

	// Set-total commands arrive on the MQTT client's goroutine.
	setTotal := make(chan uint64, 4)
	onSetTotal := func(n uint64) {
		select {
		case setTotal <- n:
		default:
			log.Printf("set_total %d dropped: previous command still pending", n)
		}
	}

	var publishers mqtt.Fanout
	if cfg.MQTT.Broker != "" {
		mp, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			OnSetTotal: onSetTotal,
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publishers = append(publishers, mp)
	}
	if cfg.NATS.URL != "" {
		np, err := natspub.Connect(cfg.NATS.URL, cfg.Name)
		if err != nil {
			return fmt.Errorf("init nats: %w", err)
		}
		publishers = append(publishers, np)
	}
	defer publishers.Close()

	pulse := logic.NewTracker(cfg.Total)
	woke := wokeFromSleep(block, cfg.Pin, ulpCfg)
	bootErr := pulse.Boot(woke, time.Now(), launcher{block: block, pin: gpio.Line(cfg.Pin), cfg: ulpCfg})
	if bootErr != nil {
		log.Printf("coprocessor start failed: %v", bootErr)
	} else if woke {
		log.Printf("resumed after sleep: pending edges=%d runs=%d", block.Registers().EdgeCount(), block.Registers().RunCount())
	} else {
		log.Printf("coprocessor started: GPIO%d wake=%v debounce=%d min_pulse=%v", cfg.Pin, ulpCfg.WakePeriod, ulpCfg.DebounceThreshold, minPulse)
	}

	if opts.once {
		return runOnce(pulse, publishers, time.Now)
	}

	wsBroker := resolveWSBroker(cfg.MQTT.WSBroker, cfg.MQTT.Broker)

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Name:         cfg.Name,
		Pin:          cfg.Pin,
		RisingEdge:   ulpCfg.Rising.String(),
		FallingEdge:  ulpCfg.Falling.String(),
		Debounce:     ulpCfg.DebounceThreshold,
		WakePeriodMs: ulpCfg.WakePeriod.Milliseconds(),
		MinPulseMs:   minPulse.Milliseconds(),
		UpdateMs:     cfg.UpdateInterval.Milliseconds(),
		Total:        cfg.Total,
		HeartbeatMs:  cfg.Heartbeat.Milliseconds(),
		Broker:       cfg.MQTT.Broker,
		NATS:         cfg.NATS.URL,
		HTTPPort:     cfg.HTTP,
		WSBroker:     wsBroker,
	})
	tracker.Update(pulse.Stats())
	tracker.SetMQTTConnected(publishers.IsConnected())
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	reason := "COLD_BOOT"
	if woke {
		reason = "WAKE"
	}
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", reason),
	}
	if err := publishers.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP)
	}

	log.Printf("started: update=%v total=%v broker=%s nats=%s heartbeat=%v", cfg.UpdateInterval, cfg.Total, cfg.MQTT.Broker, cfg.NATS.URL, cfg.Heartbeat)

	ticker := time.NewTicker(cfg.UpdateInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(pulse, publishers, publishers, tracker, cfg.Heartbeat, time.Now, ticker.C, setTotal, sigCh)
}

// runOnce publishes the reading covering the time since the last observation
// and returns. The coprocessor keeps counting after the process exits.
func runOnce(pulse *logic.Tracker, publisher mqtt.Publisher, now func() time.Time) error {
	if pulse.Phase() == logic.PhaseFailed {
		return fmt.Errorf("coprocessor not running: %s", pulse.Stats().Err)
	}
	r := pulse.Update(now())
	if r == nil {
		log.Printf("nothing to publish")
		return nil
	}
	logReading(r)
	if err := publisher.Publish(*r); err != nil {
		return fmt.Errorf("publish reading: %w", err)
	}
	return nil
}

func runLoop(pulse *logic.Tracker, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, setTotal <-chan uint64, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				tracker.Update(pulse.Stats())
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case n := <-setTotal:
			r := pulse.SetTotal(n, now())
			if r == nil {
				log.Printf("set_total %d ignored: totals not tracked", n)
				continue
			}
			log.Printf("total set to %d", n)
			if err := publisher.Publish(*r); err != nil {
				log.Printf("publish error: %v", err)
			}
			if tracker != nil {
				tracker.Update(pulse.Stats())
			}

		case <-tick:
			t := now()
			if r := pulse.Update(t); r != nil {
				logReading(r)
				if err := publisher.Publish(*r); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
			}

			// Check for heartbeat
			if hbData := pulse.CheckHeartbeat(t, heartbeat); hbData != nil {
				log.Printf("heartbeat: uptime=%v phase=%s readings=%d rate=%.2f",
					hbData.Uptime, hbData.Stats.Phase, hbData.Stats.Readings, hbData.Stats.Rate)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					if mqttStatus != nil {
						tracker.SetMQTTConnected(mqttStatus.IsConnected())
					}
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					tracker.Update(hbData.Stats)
					snap := tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}

			// Update status tracker for HTTP consumers
			if tracker != nil {
				tracker.Update(pulse.Stats())
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}
		}
	}
}

func logReading(r *logic.Reading) {
	switch {
	case r.HasRate && r.HasTotal:
		log.Printf("reading: edges=%d interval=%v rate=%.2f/min total=%d", r.Edges, r.Interval, r.Rate, r.Total)
	case r.HasRate:
		log.Printf("reading: edges=%d interval=%v rate=%.2f/min", r.Edges, r.Interval, r.Rate)
	default:
		log.Printf("reading: edges=%d total=%d", r.Edges, r.Total)
	}
}

func printState(r *ulp.Registers) {
	rising, falling := r.CountModes()
	fmt.Printf("running: %v\n", r.Running())
	fmt.Printf("edges: %d, runs: %d\n", r.EdgeCount(), r.RunCount())
	fmt.Printf("io: %d, wake: %v, rising: %s, falling: %s\n", r.IONumber(), r.WakePeriod(), rising, falling)
	fmt.Printf("debounce: %d/%d, next edge: %d, mean exec: %v\n", r.DebounceCounter(), r.DebounceMaxCount(), r.NextEdge(), r.MeanExecTime())
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// resolveWSBroker converts the ws_broker setting into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" or an
// empty broker disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" || ws == "" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	if broker == "" {
		return ""
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
