package config

import (
	"flag"
	"os"

	"github.com/newwaysadmin/slipsync/internal/flagx"
)

// parseFlags populates selected agent Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-s string     sync server base URL
//	-f string     sqlite database path
//	-o string     asset directory
//	-i string     device id
//	-t duration   sync interval (e.g., "5m")
//	-r duration   closed project retention age (e.g., "720h")
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-s", "-f", "-o", "-i", "-t", "-r"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ServerAddr, "s", config.ServerAddr, "sync server base URL")
	fs.StringVar(&config.DatabasePath, "f", config.DatabasePath, "sqlite database path")
	fs.StringVar(&config.AssetDir, "o", config.AssetDir, "asset directory")
	fs.StringVar(&config.DeviceID, "i", config.DeviceID, "device id")
	syncInterval := fs.Duration("t", config.SyncInterval.Duration, "sync interval")
	retentionAge := fs.Duration("r", config.RetentionAge.Duration, "closed project retention age")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SyncInterval.Duration = *syncInterval
	config.RetentionAge.Duration = *retentionAge
}
