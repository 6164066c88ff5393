// Package config handles configuration for the sync server, including
// defaults, JSON overlay, and command-line flags.
package config

// Config holds runtime settings for the sync server.
//
// Fields:
//   - EndpointAddr: bind address for the HTTP API.
//   - DataDir: root directory for file-backed document/asset storage.
//   - DatabaseDSN: PostgreSQL DSN for the project index; empty selects the
//     in-memory index rebuilt from the document store.
//   - CORSOrigin: allowed dashboard origin; empty allows none.
//   - S3RootUser / S3RootPassword: credentials for the S3-compatible backend.
//   - S3Bucket / S3Region / S3BaseEndpoint: object storage settings; an empty
//     endpoint keeps assets on the local filesystem.
type Config struct {
	EndpointAddr   string
	DataDir        string
	DatabaseDSN    string
	CORSOrigin     string
	S3RootUser     string
	S3RootPassword string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
}

// LoadDefaults populates Config with development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":8085"
	c.DataDir = "data"
	c.DatabaseDSN = ""
	c.CORSOrigin = ""
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "slips"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = ""
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
