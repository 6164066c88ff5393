package config

import (
	"encoding/json"
	"os"

	"github.com/newwaysadmin/slipsync/internal/flagx"
)

// JsonConfig is the JSON file shape of the server configuration. It is an
// intermediate DTO; values are copied into the runtime Config after
// unmarshalling.
type JsonConfig struct {
	EndpointAddr   string `json:"endpoint_addr"`
	DataDir        string `json:"data_dir"`
	DatabaseDSN    string `json:"database_dsn"`
	CORSOrigin     string `json:"cors_origin"`
	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`
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

	if jc.EndpointAddr != "" {
		config.EndpointAddr = jc.EndpointAddr
	}
	if jc.DataDir != "" {
		config.DataDir = jc.DataDir
	}
	if jc.DatabaseDSN != "" {
		config.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.CORSOrigin != "" {
		config.CORSOrigin = jc.CORSOrigin
	}
	if jc.S3RootUser != "" {
		config.S3RootUser = jc.S3RootUser
	}
	if jc.S3RootPassword != "" {
		config.S3RootPassword = jc.S3RootPassword
	}
	if jc.S3Bucket != "" {
		config.S3Bucket = jc.S3Bucket
	}
	if jc.S3Region != "" {
		config.S3Region = jc.S3Region
	}
	if jc.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = jc.S3BaseEndpoint
	}
}
