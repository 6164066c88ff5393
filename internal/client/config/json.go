package config

import (
	"encoding/json"
	"os"

	"github.com/newwaysadmin/slipsync/internal/flagx"
	"github.com/newwaysadmin/slipsync/internal/timex"
)

// JsonConfig is the JSON file shape of the agent configuration. It is an
// intermediate DTO; values are copied into the runtime Config after
// unmarshalling.
type JsonConfig struct {
	ServerAddr   string         `json:"server_addr"`
	DatabasePath string         `json:"database_path"`
	AssetDir     string         `json:"asset_dir"`
	DeviceID     string         `json:"device_id"`
	SyncInterval timex.Duration `json:"sync_interval"`
	RetentionAge timex.Duration `json:"retention_age"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags into the provided Config. If no file is named, nothing is
// loaded. An unreadable or invalid file panics; a missing config is a
// deployment error we want loud.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerAddr != "" {
		config.ServerAddr = jc.ServerAddr
	}
	if jc.DatabasePath != "" {
		config.DatabasePath = jc.DatabasePath
	}
	if jc.AssetDir != "" {
		config.AssetDir = jc.AssetDir
	}
	if jc.DeviceID != "" {
		config.DeviceID = jc.DeviceID
	}
	if jc.SyncInterval.Duration != 0 {
		config.SyncInterval = jc.SyncInterval
	}
	if jc.RetentionAge.Duration != 0 {
		config.RetentionAge = jc.RetentionAge
	}
}
