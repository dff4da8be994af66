package telemetry

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultNode is the bridge node polled when the configuration names none.
const DefaultNode = 10

// Config is the YAML configuration of the monitor command.
//
//	gateway: 127.0.0.1:7460
//	node: 10
//	interval: 5s
//	influxdb:
//	  url: http://localhost:8181
//	  token: secret
//	  database: pwb
//	clickhouse:
//	  addr: localhost:9000
//	  database: pwb
type Config struct {
	Gateway  string        `yaml:"gateway"`
	Node     uint8         `yaml:"node"`
	Interval time.Duration `yaml:"interval"`

	Influx     *InfluxConfig     `yaml:"influxdb,omitempty"`
	ClickHouse *ClickHouseConfig `yaml:"clickhouse,omitempty"`
}

// InfluxConfig selects an InfluxDB v3 database.
type InfluxConfig struct {
	URL      string `yaml:"url"`
	Token    string `yaml:"token"`
	Database string `yaml:"database"`
}

// ClickHouseConfig selects a ClickHouse table.
type ClickHouseConfig struct {
	Addr          string        `yaml:"addr"`
	Database      string        `yaml:"database"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	Table         string        `yaml:"table"`
	BatchSize     int           `yaml:"batchSize"`
	FlushInterval time.Duration `yaml:"flushInterval"`
}

func (c *ClickHouseConfig) applyDefaults() {
	if c.Table == "" {
		c.Table = DefaultTable
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.Username == "" {
		c.Username = "default"
	}
}

// ParseConfig parses and validates a YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{Node: DefaultNode, Interval: DefaultInterval}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Gateway == "" {
		return fmt.Errorf("gateway address is required")
	}
	if c.Node == 0 || c.Node > 127 {
		return fmt.Errorf("node id %d out of range 1..127", c.Node)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.Influx != nil && (c.Influx.URL == "" || c.Influx.Database == "") {
		return fmt.Errorf("influxdb: url and database are required")
	}
	if c.ClickHouse != nil && c.ClickHouse.Addr == "" {
		return fmt.Errorf("clickhouse: addr is required")
	}
	return nil
}
