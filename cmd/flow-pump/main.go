// Command flow-pump drives a water pump from GPIO, measures delivered flow
// and publishes readings and dry-run faults to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zoobzio/clockz"
	"go.bug.st/serial"

	"github.com/sweeney/flow-pump/internal/config"
	"github.com/sweeney/flow-pump/internal/controller"
	"github.com/sweeney/flow-pump/internal/flow"
	"github.com/sweeney/flow-pump/internal/gpio"
	"github.com/sweeney/flow-pump/internal/mqtt"
	"github.com/sweeney/flow-pump/internal/pump"
	"github.com/sweeney/flow-pump/internal/status"
	"github.com/sweeney/flow-pump/internal/timing"
	"github.com/sweeney/flow-pump/internal/web"
)

// serialBaud is the console UART rate used by --log-serial.
const serialBaud = 115200

type options struct {
	configPath  string
	broker      string
	httpAddr    string
	heartbeat   time.Duration
	enable      bool
	logSerial   string
	printConfig bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "/etc/flow-pump.yaml", "Path to YAML config file")
	flag.StringVar(&o.broker, "broker", "", "MQTT broker address (overrides config)")
	flag.StringVar(&o.httpAddr, "http", "", "HTTP status address (overrides config)")
	flag.DurationVar(&o.heartbeat, "heartbeat", 0, "Heartbeat interval (overrides config, 0 disables)")
	flag.BoolVar(&o.enable, "enable", false, "Start with the pump enabled")
	flag.StringVar(&o.logSerial, "log-serial", "", "Also write log output to this serial port")
	flag.BoolVar(&o.printConfig, "print-config", false, "Print effective config and exit")

	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if err := run(o, set); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// loadConfig reads the config file and applies flags given on the command line.
func loadConfig(o options, set map[string]bool) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if set["broker"] {
		cfg.MQTT.Broker = o.broker
	}
	if set["http"] {
		cfg.HTTP.Addr = o.httpAddr
	}
	if set["heartbeat"] {
		cfg.Heartbeat = o.heartbeat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(o options, set map[string]bool) error {
	cfg, err := loadConfig(o, set)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if o.printConfig {
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	}

	if o.logSerial != "" {
		port, err := serial.Open(o.logSerial, &serial.Mode{BaudRate: serialBaud})
		if err != nil {
			return fmt.Errorf("open serial log %s: %w", o.logSerial, err)
		}
		defer port.Close()
		log.SetOutput(io.MultiWriter(os.Stderr, port))
	}

	// Initialize GPIO
	pumpOut, err := gpio.NewOutput(cfg.GPIO.Chip, cfg.GPIO.PumpPin)
	if err != nil {
		return fmt.Errorf("init pump output: %w", err)
	}
	defer pumpOut.Close()

	if cfg.GPIO.HoldLowPin >= 0 {
		holdLow, err := gpio.NewOutput(cfg.GPIO.Chip, cfg.GPIO.HoldLowPin)
		if err != nil {
			return fmt.Errorf("init hold-low output: %w", err)
		}
		defer holdLow.Close()
		if err := holdLow.Set(false); err != nil {
			return fmt.Errorf("drive hold-low output: %w", err)
		}
	}

	edges, err := gpio.NewEdgeSource(cfg.GPIO.Chip, cfg.GPIO.FlowPin, cfg.GPIO.Debounce)
	if err != nil {
		return fmt.Errorf("init flow sensor: %w", err)
	}

	ctrl, err := newController(cfg, clockz.RealClock, pumpOut, edges)
	if err != nil {
		return err
	}
	if err := ctrl.Init(); err != nil {
		return err
	}
	defer func() {
		if err := ctrl.Close(); err != nil {
			log.Printf("controller close: %v", err)
		}
	}()

	// Initialize MQTT
	var publisher mqtt.Publisher = discardPublisher{}
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		p := mqtt.NewRealPublisher(mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			Topics:     mqtt.NewTopics(cfg.MQTT.TopicPrefix),
			BufferSize: cfg.MQTT.BufferSize,
		})
		defer p.Close()
		publisher = p
		mqttStatus = p
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	sw := newPumpSwitch(ctrl, tracker, publisher, mqttStatus, time.Now)
	ctrl.SetSink(sw)

	publishSystem(publisher, tracker, mqttStatus, time.Now(), "STARTUP", "")

	if o.enable {
		if err := sw.Set(true, "STARTUP"); err != nil {
			return fmt.Errorf("enable pump: %w", err)
		}
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, sw)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("started: mode=%s pwm=%dHz duty=%d/%d k=%.2f broker=%s heartbeat=%v",
		cfg.Pump.Mode, cfg.Pump.PWMHz, cfg.Pump.DutyNum, cfg.Pump.DutyDen, cfg.Flow.KHzPerLPM, cfg.MQTT.Broker, cfg.Heartbeat)

	poll := time.NewTicker(cfg.Pump.Poll)
	defer poll.Stop()

	var heartbeat <-chan time.Time
	if cfg.Heartbeat > 0 {
		hb := time.NewTicker(cfg.Heartbeat)
		defer hb.Stop()
		heartbeat = hb.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctrl, sw, publisher, mqttStatus, tracker, time.Now, poll.C, heartbeat, sigCh)
}

// newController builds the actuator and controller around the given pins.
func newController(cfg *config.Config, clock clockz.Clock, out gpio.Output, edges gpio.EdgeSource) (*controller.Controller, error) {
	mode, err := pump.ParseMode(cfg.Pump.Mode)
	if err != nil {
		return nil, err
	}
	ticks := timing.NewClockTicks(clock)
	pwm := pump.NewPWMState(ticks.Frequency(), cfg.Pump.PWMHz, cfg.Pump.DutyNum, cfg.Pump.DutyDen)

	return controller.New(flowConfig(cfg), controller.Deps{
		Ticks: ticks,
		Timer: timing.NewClockTimer(clock),
		Pump:  pump.NewActuator(mode, pwm, out),
		Edges: edges,
		Now:   clock.Now,
	}), nil
}

func flowConfig(cfg *config.Config) flow.Config {
	return flow.Config{
		KHzPerLPM:    cfg.Flow.KHzPerLPM,
		Window:       cfg.Flow.SamplePeriod,
		MinRateLPM:   cfg.Flow.MinRateLPM,
		GraceSeconds: cfg.Flow.GraceSeconds,
	}
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		Mode:           cfg.Pump.Mode,
		PWMHz:          cfg.Pump.PWMHz,
		DutyNum:        cfg.Pump.DutyNum,
		DutyDen:        cfg.Pump.DutyDen,
		KHzPerLPM:      cfg.Flow.KHzPerLPM,
		SamplePeriodMs: cfg.Flow.SamplePeriod.Milliseconds(),
		MinRateLPM:     cfg.Flow.MinRateLPM,
		GraceSeconds:   cfg.Flow.GraceSeconds,
		HeartbeatMs:    cfg.Heartbeat.Milliseconds(),
		Broker:         cfg.MQTT.Broker,
		HTTPAddr:       cfg.HTTP.Addr,
	}
}

// poller is the part of the controller the main loop drives.
type poller interface {
	Poll() error
}

func runLoop(ctrl poller, sw *pumpSwitch, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time, tick, heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	var pollFailing bool

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
			if err := sw.Set(false, signalName); err != nil {
				log.Printf("failed to stop pump: %v", err)
			}
			publishSystem(publisher, tracker, mqttStatus, now(), "SHUTDOWN", signalName)
			return nil

		case <-tick:
			// Log only the first error of a run of failures; the poll rate is
			// far too high to log each one.
			if err := ctrl.Poll(); err != nil {
				if !pollFailing {
					log.Printf("pump poll error: %v", err)
				}
				pollFailing = true
			} else if pollFailing {
				log.Printf("pump poll recovered")
				pollFailing = false
			}

		case <-heartbeat:
			if net := readNetworkInfo(); net != nil {
				tracker.SetNetwork(net)
			}
			snap := tracker.Snapshot()
			log.Printf("heartbeat: uptime=%v pump=%s readings=%d dry_runs=%d",
				snap.Uptime().Truncate(time.Second), snap.PumpState(), snap.Counts.Readings, snap.Counts.DryRuns)
			publishSystem(publisher, tracker, mqttStatus, now(), "HEARTBEAT", "")
		}
	}
}

// publishSystem sends a lifecycle event carrying a full status snapshot.
// Failures are logged, never fatal.
func publishSystem(publisher mqtt.Publisher, tracker *status.Tracker, mqttStatus mqtt.ConnectionStatus, ts time.Time, event, reason string) {
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
	snap := tracker.Snapshot()
	se := mqtt.SystemEvent{
		Timestamp:  ts,
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := publisher.PublishSystem(se); err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
		return
	}
	log.Printf("published %s event", event)
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
