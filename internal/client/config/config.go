// Package config handles configuration for the device agent, including
// defaults, JSON overlay, and command-line flags.
package config

import (
	"time"

	"github.com/google/uuid"

	"github.com/newwaysadmin/slipsync/internal/timex"
)

// Config holds runtime settings for the device agent.
//
// Fields:
//   - ServerAddr: base URL of the sync server.
//   - DatabasePath: sqlite file holding the local project mirror.
//   - AssetDir: directory for fetched bill images.
//   - DeviceID: stable identifier sent with every request; a fresh UUID is
//     generated when none is configured.
//   - SyncInterval: pause between sync rounds.
//   - RetentionAge: closed projects untouched for longer than this are
//     removed from the local mirror.
type Config struct {
	ServerAddr   string
	DatabasePath string
	AssetDir     string
	DeviceID     string
	SyncInterval timex.Duration
	RetentionAge timex.Duration
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.ServerAddr = "http://localhost:8085"
	c.DatabasePath = "slipsync.db"
	c.AssetDir = "assets"
	c.DeviceID = uuid.NewString()
	c.SyncInterval = timex.Duration{Duration: 5 * time.Minute}
	c.RetentionAge = timex.Duration{Duration: 30 * 24 * time.Hour}
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
