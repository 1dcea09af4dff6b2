// Package config loads client and relay settings from an optional YAML file
// and the environment. Environment values win over the file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/astromechza/teleprompter-sync/pkg/state"
	"github.com/astromechza/teleprompter-sync/pkg/storage"
	"github.com/astromechza/teleprompter-sync/pkg/transport"
)

const (
	DefaultChannel   = "church-teleprompter-sync"
	DefaultRelayPort = 5174
)

type Client struct {
	// RelayURL is the relay websocket endpoint. Empty disables the relay.
	RelayURL string `yaml:"relay_url"`
	// StorageDSN selects the persisted slot, see storage.Open. Empty
	// disables persistence.
	StorageDSN    string           `yaml:"storage_dsn"`
	SlotName      string           `yaml:"slot_name"`
	Channel       string           `yaml:"channel"`
	PollInterval  time.Duration    `yaml:"poll_interval"`
	ReconnectBase time.Duration    `yaml:"reconnect_base"`
	ReconnectMax  time.Duration    `yaml:"reconnect_max"`
	Tabs          []state.Tab      `yaml:"tabs"`
	Categories    []state.Category `yaml:"categories"`
}

// LoadClient reads path when non-empty, then applies environment overrides
// and defaults.
func LoadClient(path string) (*Client, error) {
	var cfg Client
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Client) applyEnv() {
	c.RelayURL = envOrDefault("PROMPTER_RELAY_URL", c.RelayURL)
	c.StorageDSN = envOrDefault("PROMPTER_STORAGE_DSN", c.StorageDSN)
	c.SlotName = envOrDefault("PROMPTER_SLOT", c.SlotName)
	c.Channel = envOrDefault("PROMPTER_CHANNEL", c.Channel)
	c.PollInterval = durationEnv("PROMPTER_POLL_INTERVAL", c.PollInterval)
	c.ReconnectBase = durationEnv("PROMPTER_RECONNECT_BASE", c.ReconnectBase)
	c.ReconnectMax = durationEnv("PROMPTER_RECONNECT_MAX", c.ReconnectMax)
}

func (c *Client) applyDefaults() {
	if c.SlotName == "" {
		c.SlotName = storage.DefaultSlotName
	}
	if c.Channel == "" {
		c.Channel = DefaultChannel
	}
	if c.PollInterval <= 0 {
		c.PollInterval = transport.DefaultPollInterval
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = transport.DefaultReconnectBase
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = transport.DefaultReconnectMax
	}
	if len(c.Tabs) == 0 {
		c.Tabs = state.DefaultTabs()
	}
	if len(c.Categories) == 0 {
		c.Categories = state.DefaultCategories()
	}
}

func (c *Client) validate() error {
	if err := uniqueIDs("tab", len(c.Tabs), func(i int) string { return c.Tabs[i].ID }); err != nil {
		return err
	}
	return uniqueIDs("category", len(c.Categories), func(i int) string { return c.Categories[i].ID })
}

func uniqueIDs(kind string, n int, id func(int) string) error {
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		v := strings.TrimSpace(id(i))
		if v == "" {
			return fmt.Errorf("%s %d has no id", kind, i)
		}
		if seen[v] {
			return fmt.Errorf("duplicate %s id %q", kind, v)
		}
		seen[v] = true
	}
	return nil
}

// Defaults is the snapshot a client starts from when nothing is persisted.
func (c *Client) Defaults() state.Snapshot {
	return state.Default(c.Tabs, c.Categories)
}

type Relay struct {
	Addr            string
	MaxMessageBytes int64
}

// LoadRelay reads PORT (or RELAY_ADDR for a full listen address) and
// RELAY_MAX_MESSAGE_BYTES.
func LoadRelay() Relay {
	addr := envOrDefault("RELAY_ADDR", "")
	if addr == "" {
		addr = fmt.Sprintf(":%d", intEnv("PORT", DefaultRelayPort))
	}
	return Relay{
		Addr:            addr,
		MaxMessageBytes: int64(intEnv("RELAY_MAX_MESSAGE_BYTES", 0)),
	}
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intEnv(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("invalid integer env, using fallback", "name", name, "value", raw, "fallback", fallback)
		return fallback
	}
	return value
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("invalid duration env, using fallback", "name", name, "value", raw, "fallback", fallback)
		return fallback
	}
	return value
}
