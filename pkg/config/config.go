package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"iot-oximeter/internal/delivery"
	"iot-oximeter/internal/mqtt"
	"iot-oximeter/internal/sensor"
	"iot-oximeter/internal/session"
	"iot-oximeter/internal/storage"
)

type Config struct {
	// Node identity
	DeviceID string `yaml:"device_id"`

	// MQTT Configuration
	MQTTBroker       string `yaml:"mqtt_broker"`
	MQTTClientID     string `yaml:"mqtt_client_id"`
	MQTTUsername     string `yaml:"mqtt_username"`
	MQTTPassword     string `yaml:"mqtt_password"`
	MQTTTopicReading string `yaml:"mqtt_topic_reading"` // {device_id} is substituted
	MQTTTopicAck     string `yaml:"mqtt_topic_ack"`

	// Durable buffer
	StorePath       string `yaml:"store_path"`
	StoreMaxRecords int    `yaml:"store_max_records"`

	// Session timing
	MeasurementInterval  time.Duration `yaml:"measurement_interval"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`
	SampleWindow         time.Duration `yaml:"sample_window"`
	DiscardWindow        time.Duration `yaml:"discard_window"`
	SampleSpacing        time.Duration `yaml:"sample_spacing"`
	MinQualifyingSamples int           `yaml:"min_qualifying_samples"`
	FingerThreshold      float64       `yaml:"finger_threshold"`
	SamplingMode         string        `yaml:"sampling_mode"`
	ConfirmationTimeout  time.Duration `yaml:"confirmation_timeout"`

	// Delivery
	ReplayPacing time.Duration `yaml:"replay_pacing"`
	MaxRecordAge time.Duration `yaml:"max_record_age"`

	// Control loop
	LoopInterval   time.Duration `yaml:"loop_interval"`
	StatusInterval time.Duration `yaml:"status_interval"`

	// Simulated sensor
	SimIRLevel   float64       `yaml:"sim_ir_level"`
	SimRedLevel  float64       `yaml:"sim_red_level"`
	SimAmplitude float64       `yaml:"sim_amplitude"`
	SimBPM       float64       `yaml:"sim_bpm"`
	SimAmbient   float64       `yaml:"sim_ambient"`
	SimFingerOn  time.Duration `yaml:"sim_finger_on"`
	SimFingerOff time.Duration `yaml:"sim_finger_off"`

	// ClickHouse Configuration (ingest only)
	ClickHouseAddr string `yaml:"clickhouse_addr"`
	ClickHouseDB   string `yaml:"clickhouse_db"`
	ClickHouseUser string `yaml:"clickhouse_user"`
	ClickHousePass string `yaml:"clickhouse_pass"`
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	sess := session.DefaultConfig()
	sim := sensor.DefaultSimConfig()
	dlv := delivery.DefaultConfig()

	return &Config{
		DeviceID: "node-001",

		MQTTBroker:       "tcp://localhost:1883",
		MQTTClientID:     "oximeter-" + uuid.NewString()[:8],
		MQTTTopicReading: "oximeter/{device_id}/reading",
		MQTTTopicAck:     "oximeter/{device_id}/ack",

		StorePath:       "./data/records.bin",
		StoreMaxRecords: storage.DefaultMaxRecords,

		MeasurementInterval:  sess.MeasurementInterval,
		RequestTimeout:       sess.RequestTimeout,
		SampleWindow:         sess.SampleWindow,
		DiscardWindow:        sess.DiscardWindow,
		SampleSpacing:        sess.SampleSpacing,
		MinQualifyingSamples: sess.MinQualifyingSamples,
		FingerThreshold:      sensor.DefaultFingerThreshold,
		SamplingMode:         sess.Mode.String(),

		ReplayPacing: dlv.ReplayPacing,
		MaxRecordAge: dlv.MaxRecordAge,

		LoopInterval:   50 * time.Millisecond,
		StatusInterval: time.Minute,

		SimIRLevel:   sim.IRLevel,
		SimRedLevel:  sim.RedLevel,
		SimAmplitude: sim.Amplitude,
		SimBPM:       sim.BPM,
		SimAmbient:   sim.Ambient,
		SimFingerOn:  sim.FingerOn,
		SimFingerOff: sim.FingerOff,

		ClickHouseAddr: "localhost:9000",
		ClickHouseDB:   "iot",
		ClickHouseUser: "default",
	}
}

// Load builds the configuration: defaults, then the optional YAML file named
// by NODE_CONFIG_FILE, then environment variables (a .env file is honoured).
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Defaults()

	if path := os.Getenv("NODE_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		log.Printf("Loaded configuration file %s", path)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DeviceID = getEnv("DEVICE_ID", c.DeviceID)

	c.MQTTBroker = getEnv("MQTT_BROKER", c.MQTTBroker)
	c.MQTTClientID = getEnv("MQTT_CLIENT_ID", c.MQTTClientID)
	c.MQTTUsername = getEnv("MQTT_USERNAME", c.MQTTUsername)
	c.MQTTPassword = getEnv("MQTT_PASSWORD", c.MQTTPassword)
	c.MQTTTopicReading = getEnv("MQTT_TOPIC_READING", c.MQTTTopicReading)
	c.MQTTTopicAck = getEnv("MQTT_TOPIC_ACK", c.MQTTTopicAck)

	c.StorePath = getEnv("STORE_PATH", c.StorePath)
	c.StoreMaxRecords = getEnvInt("STORE_MAX_RECORDS", c.StoreMaxRecords)

	c.MeasurementInterval = getEnvDuration("MEASUREMENT_INTERVAL", c.MeasurementInterval)
	c.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", c.RequestTimeout)
	c.SampleWindow = getEnvDuration("SAMPLE_WINDOW", c.SampleWindow)
	c.DiscardWindow = getEnvDuration("DISCARD_WINDOW", c.DiscardWindow)
	c.SampleSpacing = getEnvDuration("SAMPLE_SPACING", c.SampleSpacing)
	c.MinQualifyingSamples = getEnvInt("MIN_QUALIFYING_SAMPLES", c.MinQualifyingSamples)
	c.FingerThreshold = getEnvFloat("FINGER_THRESHOLD", c.FingerThreshold)
	c.SamplingMode = getEnv("SAMPLING_MODE", c.SamplingMode)
	c.ConfirmationTimeout = getEnvDuration("CONFIRMATION_TIMEOUT", c.ConfirmationTimeout)

	c.ReplayPacing = getEnvDuration("REPLAY_PACING", c.ReplayPacing)
	c.MaxRecordAge = getEnvDuration("MAX_RECORD_AGE", c.MaxRecordAge)

	c.LoopInterval = getEnvDuration("LOOP_INTERVAL", c.LoopInterval)
	c.StatusInterval = getEnvDuration("STATUS_INTERVAL", c.StatusInterval)

	c.SimIRLevel = getEnvFloat("SIM_IR_LEVEL", c.SimIRLevel)
	c.SimRedLevel = getEnvFloat("SIM_RED_LEVEL", c.SimRedLevel)
	c.SimAmplitude = getEnvFloat("SIM_AMPLITUDE", c.SimAmplitude)
	c.SimBPM = getEnvFloat("SIM_BPM", c.SimBPM)
	c.SimAmbient = getEnvFloat("SIM_AMBIENT", c.SimAmbient)
	c.SimFingerOn = getEnvDuration("SIM_FINGER_ON", c.SimFingerOn)
	c.SimFingerOff = getEnvDuration("SIM_FINGER_OFF", c.SimFingerOff)

	c.ClickHouseAddr = getEnv("CLICKHOUSE_ADDR", c.ClickHouseAddr)
	c.ClickHouseDB = getEnv("CLICKHOUSE_DB", c.ClickHouseDB)
	c.ClickHouseUser = getEnv("CLICKHOUSE_USER", c.ClickHouseUser)
	c.ClickHousePass = getEnv("CLICKHOUSE_PASS", c.ClickHousePass)
}

// Validate checks configuration correctness.
// It does not mutate the configuration.
func (c *Config) Validate() error {
	if c.DeviceID == "" {
		return fmt.Errorf("device_id must not be empty")
	}
	if c.MQTTBroker == "" {
		return fmt.Errorf("mqtt_broker must not be empty")
	}
	if c.MQTTTopicReading == "" || c.MQTTTopicAck == "" {
		return fmt.Errorf("mqtt reading and ack topics must not be empty")
	}
	if c.StoreMaxRecords < 1 || c.StoreMaxRecords > storage.MaxCapacity {
		return fmt.Errorf("store_max_records must be in 1..%d, got %d", storage.MaxCapacity, c.StoreMaxRecords)
	}
	if c.ReplayPacing < 0 {
		return fmt.Errorf("replay_pacing must be >= 0, got %v", c.ReplayPacing)
	}
	if c.MaxRecordAge <= 0 {
		return fmt.Errorf("max_record_age must be > 0, got %v", c.MaxRecordAge)
	}
	if c.LoopInterval <= 0 {
		return fmt.Errorf("loop_interval must be > 0, got %v", c.LoopInterval)
	}

	sess, err := c.Session()
	if err != nil {
		return err
	}
	return sess.Validate()
}

// Session returns the measurement session settings
func (c *Config) Session() (session.Config, error) {
	mode, err := session.ParseSamplingMode(c.SamplingMode)
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		MeasurementInterval:  c.MeasurementInterval,
		RequestTimeout:       c.RequestTimeout,
		SampleWindow:         c.SampleWindow,
		DiscardWindow:        c.DiscardWindow,
		SampleSpacing:        c.SampleSpacing,
		MinQualifyingSamples: c.MinQualifyingSamples,
		Mode:                 mode,
		ConfirmationTimeout:  c.ConfirmationTimeout,
	}, nil
}

// Delivery returns the delivery settings with the reading topic resolved
func (c *Config) Delivery() delivery.Config {
	return delivery.Config{
		Topic:        c.ReadingTopic(),
		MaxRecordAge: c.MaxRecordAge,
		ReplayPacing: c.ReplayPacing,
	}
}

// Sim returns the simulated sensor settings
func (c *Config) Sim() sensor.SimConfig {
	return sensor.SimConfig{
		IRLevel:   c.SimIRLevel,
		RedLevel:  c.SimRedLevel,
		Amplitude: c.SimAmplitude,
		BPM:       c.SimBPM,
		Ambient:   c.SimAmbient,
		FingerOn:  c.SimFingerOn,
		FingerOff: c.SimFingerOff,
	}
}

// ReadingTopic is this node's readings topic
func (c *Config) ReadingTopic() string {
	return mqtt.FormatTopic(c.MQTTTopicReading, c.DeviceID)
}

// AckTopic is this node's confirmation topic
func (c *Config) AckTopic() string {
	return mqtt.FormatTopic(c.MQTTTopicAck, c.DeviceID)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Warning: failed to parse %s as float, using default: %v", key, err)
		return defaultValue
	}
	return floatValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as int, using default: %v", key, err)
		return defaultValue
	}
	return intValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as duration, using default: %v", key, err)
		return defaultValue
	}
	return d
}
