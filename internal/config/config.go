// Package config loads the daemon configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/flow-pump/internal/gpio"
)

var validate = validator.New()

// Config represents the application configuration.
type Config struct {
	GPIO      GPIOConfig    `yaml:"gpio"`
	Pump      PumpConfig    `yaml:"pump"`
	Flow      FlowConfig    `yaml:"flow"`
	MQTT      MQTTConfig    `yaml:"mqtt"`
	HTTP      HTTPConfig    `yaml:"http"`
	Heartbeat time.Duration `yaml:"heartbeat" validate:"gte=0"`
}

// GPIOConfig contains pin assignments (BCM numbering).
type GPIOConfig struct {
	Chip       string        `yaml:"chip" validate:"required"`
	PumpPin    int           `yaml:"pump_pin" validate:"gte=0"`
	HoldLowPin int           `yaml:"hold_low_pin" validate:"gte=-1"` // -1 disables
	FlowPin    int           `yaml:"flow_pin" validate:"gte=0"`
	Debounce   time.Duration `yaml:"debounce" validate:"gte=0"`
}

// PumpConfig contains actuator parameters.
type PumpConfig struct {
	Mode    string        `yaml:"mode" validate:"oneof=pwm onoff"`
	PWMHz   uint32        `yaml:"pwm_hz" validate:"gt=0"`
	DutyNum uint32        `yaml:"duty_num" validate:"gt=0,ltefield=DutyDen"`
	DutyDen uint32        `yaml:"duty_den" validate:"gt=0"`
	Poll    time.Duration `yaml:"poll" validate:"gt=0"`
}

// FlowConfig contains sensor calibration and dry-run thresholds.
type FlowConfig struct {
	KHzPerLPM    float64       `yaml:"k_hz_per_lpm" validate:"gt=0"`
	SamplePeriod time.Duration `yaml:"sample_period" validate:"gt=0"`
	MinRateLPM   float64       `yaml:"min_rate_lpm" validate:"gte=0"`
	GraceSeconds uint32        `yaml:"grace_seconds"`
}

// MQTTConfig contains broker settings. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	BufferSize  int    `yaml:"buffer_size" validate:"gte=0"`
}

// HTTPConfig contains the status server address. Empty disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a default configuration matching the reference hardware:
// YF-S201 sensor, 1 kHz PWM at 2/16 duty, 1 s sampling.
func Default() *Config {
	return &Config{
		GPIO: GPIOConfig{
			Chip:       gpio.DefaultChip,
			PumpPin:    gpio.DefaultPinPump,
			HoldLowPin: gpio.DefaultPinHoldLow,
			FlowPin:    gpio.DefaultPinFlow,
			Debounce:   gpio.DefaultDebounce,
		},
		Pump: PumpConfig{
			Mode:    "pwm",
			PWMHz:   1000,
			DutyNum: 2,
			DutyDen: 16,
			Poll:    50 * time.Microsecond,
		},
		Flow: FlowConfig{
			KHzPerLPM:    5.71,
			SamplePeriod: time.Second,
			MinRateLPM:   0.2,
			GraceSeconds: 3,
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://192.168.1.200:1883",
			ClientID:    "flow-pump",
			TopicPrefix: "garden/pump",
			BufferSize:  100,
		},
		HTTP: HTTPConfig{
			Addr: ":80",
		},
		Heartbeat: 15 * time.Minute,
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// ensureDefaults fills zero-valued fields that have no meaningful zero.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.GPIO.Chip == "" {
		c.GPIO.Chip = def.GPIO.Chip
	}
	if c.Pump.Mode == "" {
		c.Pump.Mode = def.Pump.Mode
	}
	if c.Pump.PWMHz == 0 {
		c.Pump.PWMHz = def.Pump.PWMHz
	}
	if c.Pump.DutyNum == 0 {
		c.Pump.DutyNum = def.Pump.DutyNum
	}
	if c.Pump.DutyDen == 0 {
		c.Pump.DutyDen = def.Pump.DutyDen
	}
	if c.Pump.Poll == 0 {
		c.Pump.Poll = def.Pump.Poll
	}
	if c.Flow.KHzPerLPM == 0 {
		c.Flow.KHzPerLPM = def.Flow.KHzPerLPM
	}
	if c.Flow.SamplePeriod == 0 {
		c.Flow.SamplePeriod = def.Flow.SamplePeriod
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = def.MQTT.TopicPrefix
	}
	if c.MQTT.BufferSize == 0 {
		c.MQTT.BufferSize = def.MQTT.BufferSize
	}
}
