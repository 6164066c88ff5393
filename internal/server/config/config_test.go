package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8085", c.EndpointAddr)
	assert.Equal(t, "data", c.DataDir)
	assert.Empty(t, c.DatabaseDSN)
	assert.Empty(t, c.S3BaseEndpoint)
}

func TestParseJsonOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"endpoint_addr": ":9000",
		"database_dsn": "postgres://x",
		"s3_base_endpoint": "http://127.0.0.1:9000/"
	}`), 0o600))

	origArgs := os.Args
	os.Args = []string{"syncserver", "-c", path}
	defer func() { os.Args = origArgs }()

	var c Config
	c.LoadDefaults()
	parseJson(&c)

	assert.Equal(t, ":9000", c.EndpointAddr)
	assert.Equal(t, "postgres://x", c.DatabaseDSN)
	assert.Equal(t, "http://127.0.0.1:9000/", c.S3BaseEndpoint)
	// untouched fields keep defaults
	assert.Equal(t, "data", c.DataDir)
}

func TestParseFlagsOverride(t *testing.T) {
	origArgs := os.Args
	os.Args = []string{"syncserver", "-a", ":7777", "-o", "/var/slips"}
	defer func() { os.Args = origArgs }()

	var c Config
	c.LoadDefaults()
	parseFlags(&c)

	assert.Equal(t, ":7777", c.EndpointAddr)
	assert.Equal(t, "/var/slips", c.DataDir)
}
