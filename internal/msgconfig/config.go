// Package msgconfig loads a device's message table from a YAML
// document instead of requiring it to be hand-assembled in Go source.
package msgconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	isn "github.com/isotel-go/isn-core"
	"github.com/isotel-go/isn-core/internal/msg"
)

// EntryConfig is the YAML shape of one non-identity, non-sentinel
// message table slot. Handlers cannot be expressed in YAML, so
// Load's caller supplies them afterward keyed by Name.
type EntryConfig struct {
	Name       string `yaml:"name"`
	Size       int    `yaml:"size"`
	Descriptor string `yaml:"descriptor"`
}

// DeviceConfig is the YAML shape of a full device message table.
type DeviceConfig struct {
	IdentitySize int           `yaml:"identity_size"`
	SingleQuery  bool          `yaml:"single_query"`
	Entries      []EntryConfig `yaml:"entries"`
}

// Load parses a YAML document into a DeviceConfig.
func Load(data []byte) (*DeviceConfig, error) {
	var cfg DeviceConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("msgconfig: parse: %w", err)
	}
	if cfg.IdentitySize != 8 {
		return nil, fmt.Errorf("msgconfig: identity_size must be 8, got %d", cfg.IdentitySize)
	}
	return &cfg, nil
}

// LoadFile reads and parses a YAML device config from path.
func LoadFile(path string) (*DeviceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("msgconfig: read %s: %w", path, err)
	}
	return Load(data)
}

// BuildTable constructs a msg.Table from cfg, looking up each entry's
// handler by name in handlers (entries with no matching handler get a
// nil Handler, i.e. a query-only slot). The identity slot (entry 0)
// is always the device identity record described by fwVersionHi,
// fwVersionLo, and capabilityFlags, regardless of cfg.IdentitySize,
// since the 8-byte layout is fixed by the protocol rather than
// per-device config.
func (cfg *DeviceConfig) BuildTable(handlers map[string]msg.Handler, fwVersionHi, fwVersionLo byte, capabilityFlags uint16) (*msg.Table, isn.Identity, error) {
	identityEntry, identity := isn.NewIdentityEntry(fwVersionHi, fwVersionLo, capabilityFlags)
	entries := make([]msg.Entry, 0, len(cfg.Entries))
	for _, e := range cfg.Entries {
		entries = append(entries, msg.Entry{
			Size:       e.Size,
			Descriptor: e.Descriptor,
			Handler:    handlers[e.Name],
		})
	}
	table, err := msg.NewTable(msg.TableOptions{SingleQuery: cfg.SingleQuery}, identityEntry, entries...)
	return table, identity, err
}
