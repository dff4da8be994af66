package simulator

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/powerbridge/pwb-go/pkg/od"
	"github.com/powerbridge/pwb-go/pkg/wire"
)

// Defaults of a simulated bridge.
const (
	DefaultNode       = 10
	DefaultPMNodeBase = 32
	DefaultModules    = 4
)

// Config describes the simulated hardware.
type Config struct {
	// Node is the node id of the bridge.
	Node uint8 `yaml:"node"`

	// PMNodeBase is the node id of power module 1 before the configured
	// offset (0x2423) is added.
	PMNodeBase uint8 `yaml:"pmNodeBase"`

	// StatePath is the file holding the persisted objects. Empty keeps
	// them in memory.
	StatePath string `yaml:"statePath"`

	// PMType is the factory power module type, by number or name.
	PMType string `yaml:"pmType"`

	Address          AddressConfig `yaml:"address"`
	FanConfiguration uint8         `yaml:"fanConfiguration"`

	// FailedFans lists the fans (1-based) that report an error while
	// running.
	FailedFans []int `yaml:"failedFans"`

	// InterlinkTimeout overrides the 10 s timed enable.
	InterlinkTimeout time.Duration `yaml:"interlinkTimeout"`

	// Modules are the fitted power modules, at most 8.
	Modules []ModuleConfig `yaml:"modules"`

	Update UpdateConfig `yaml:"update"`
}

// AddressConfig is the power module address reported at 0x2410.
type AddressConfig struct {
	Address uint8 `yaml:"address"`
	Group   uint8 `yaml:"group"`
}

// ModuleConfig describes one power module.
type ModuleConfig struct {
	Voltage     float64 `yaml:"voltage"`     // V
	Current     float64 `yaml:"current"`     // A
	Temperature uint8   `yaml:"temperature"` // °C
	State       uint32  `yaml:"state"`       // vendor state tabs, tab0 in the low byte
	ACVoltage   float64 `yaml:"acVoltage"`   // V
}

// UpdateConfig describes the device side of the update handshake.
type UpdateConfig struct {
	// ProcessingDelay is how long the bridge reports processing after
	// start and after every image.
	ProcessingDelay time.Duration `yaml:"processingDelay"`

	// Fail injects an update error.
	Fail *FailConfig `yaml:"fail"`
}

// FailConfig injects an update error in a stage of an image.
type FailConfig struct {
	// Stage is "start", "data" or "end".
	Stage  string `yaml:"stage"`
	Image  int    `yaml:"image"`
	Error  uint8  `yaml:"error"`
	Detail uint16 `yaml:"detail"`
}

// DefaultConfig returns a bridge with four Infy 750 V modules.
func DefaultConfig() Config {
	c := Config{
		Node:             DefaultNode,
		PMNodeBase:       DefaultPMNodeBase,
		PMType:           wire.PMTypeInfy75025.String(),
		Address:          AddressConfig{Address: 1, Group: 1},
		FanConfiguration: uint8(wire.FanConfigHC300),
		Update:           UpdateConfig{ProcessingDelay: 200 * time.Millisecond},
	}
	for i := 0; i < DefaultModules; i++ {
		c.Modules = append(c.Modules, ModuleConfig{Temperature: 25, ACVoltage: 400})
	}
	return c
}

// ParseConfig parses a YAML configuration on top of DefaultConfig.
func ParseConfig(data []byte) (*Config, error) {
	c := DefaultConfig()
	c.Modules = nil
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing simulator config: %w", err)
	}
	if c.Modules == nil {
		c.Modules = DefaultConfig().Modules
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading simulator config: %w", err)
	}
	c, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Node == 0 || c.Node > 127 {
		return fmt.Errorf("node %d out of range 1..127", c.Node)
	}
	if len(c.Modules) > od.MaxModules {
		return fmt.Errorf("%d modules, at most %d", len(c.Modules), od.MaxModules)
	}
	if int(c.PMNodeBase)+od.MaxModules > 255 {
		return fmt.Errorf("pm node base %d too high", c.PMNodeBase)
	}
	if c.PMNodeBase <= c.Node && c.Node < c.PMNodeBase+od.MaxModules {
		return fmt.Errorf("bridge node %d overlaps the power module nodes", c.Node)
	}
	if _, err := c.pmType(); err != nil {
		return err
	}
	if c.FanConfiguration > uint8(wire.FanConfigHC300) {
		return fmt.Errorf("unknown fan configuration %d", c.FanConfiguration)
	}
	for _, n := range c.FailedFans {
		if n < 1 || n > wire.MaxFans {
			return fmt.Errorf("failed fan %d out of range 1..%d", n, wire.MaxFans)
		}
	}
	if f := c.Update.Fail; f != nil {
		switch strings.ToLower(f.Stage) {
		case "start", "data", "end":
		default:
			return fmt.Errorf("unknown update fail stage %q", f.Stage)
		}
	}
	return nil
}

func (c *Config) pmType() (wire.PMType, error) {
	if c.PMType == "" {
		return wire.PMTypeUndefined, nil
	}
	t, err := wire.ParsePMType(c.PMType)
	if err != nil {
		return 0, fmt.Errorf("pm type: %w", err)
	}
	return t, nil
}
