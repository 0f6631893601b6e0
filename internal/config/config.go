// Package config loads the coordinator's YAML configuration file and
// applies the OSMLCM_* environment variable overrides the original
// read_config_file supports.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Global holds the coordinator's top-level settings.
type Global struct {
	LogLevel  string `mapstructure:"loglevel"`
	LogFormat string `mapstructure:"logformat"`
}

// Database describes the Db driver to load.
type Database struct {
	Driver string `mapstructure:"driver"` // only "memory" is built in; other values fall back to it
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
}

// Storage describes the Fs driver to load.
type Storage struct {
	Driver string `mapstructure:"driver"` // "memory" or "local"
	Path   string `mapstructure:"path"`
}

// Message describes the Msg driver to load.
type Message struct {
	Driver string `mapstructure:"driver"` // only "memory" is built in; other values fall back to it
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
}

// RO describes how to reach the Resource Orchestrator.
type RO struct {
	URI     string `mapstructure:"uri"`
	Tenant  string `mapstructure:"tenant"`
	Timeout int    `mapstructure:"timeout"` // seconds
}

// VCA describes how to reach the charm configuration engine.
type VCA struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	User    string `mapstructure:"user"`
	Secret  string `mapstructure:"secret"`
	PubKey  string `mapstructure:"pubkey"`
	Version string `mapstructure:"version"`
}

// AdminAPI describes the read-only operational HTTP surface.
type AdminAPI struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Config is the coordinator's full, resolved configuration.
type Config struct {
	Global   Global   `mapstructure:"global"`
	Database Database `mapstructure:"database"`
	Storage  Storage  `mapstructure:"storage"`
	Message  Message  `mapstructure:"message"`
	RO       RO       `mapstructure:"RO"`
	VCA      VCA      `mapstructure:"VCA"`
	AdminAPI AdminAPI `mapstructure:"adminapi"`
}

// MinVCAVersion is the lowest N2VC-equivalent VCA version this
// coordinator will talk to, preserved from the original's startup
// gate ("if N2VC_version < '0.0.2'").
const MinVCAVersion = "0.0.2"

func defaults(v *viper.Viper) {
	v.SetDefault("global.loglevel", "info")
	v.SetDefault("global.logformat", "text")
	v.SetDefault("database.driver", "memory")
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("message.driver", "memory")
	v.SetDefault("RO.uri", "http://localhost:9090/openmano")
	v.SetDefault("RO.timeout", 120)
	v.SetDefault("VCA.version", MinVCAVersion)
	v.SetDefault("adminapi.enabled", true)
	v.SetDefault("adminapi.port", 9999)
}

// Load reads configFile (YAML) and overlays it with any OSMLCM_*
// environment variables present, matching read_config_file's
// semantics: section and key are lower-cased, except "ro" and "vca"
// which are upper-cased to match the struct tags above, and a key
// literally named "port" is coerced to an integer. Because the file is
// named explicitly with SetConfigFile, a missing or unreadable file is
// returned as an error rather than falling back to defaults.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	defaults(v)
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file %q: %w", configFile, err)
		}
	}

	applyEnvOverrides(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides scans the process environment for OSMLCM_ prefixed
// variables and sets the corresponding viper key, applying the
// section/key casing and port-to-int coercion rules the original
// enforces by hand.
func applyEnvOverrides(v *viper.Viper) {
	env := osEnviron()
	for _, kv := range env {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, value := parts[0], parts[1]
		if !strings.HasPrefix(key, "OSMLCM_") {
			continue
		}
		items := strings.Split(strings.ToLower(key), "_")
		// items[0] == "osmlcm"; items[1:len-1] are path segments,
		// items[len-1] is the leaf key.
		if len(items) < 3 {
			continue
		}
		segments := items[1 : len(items)-1]
		leaf := items[len(items)-1]
		for i, seg := range segments {
			if seg == "ro" || seg == "vca" {
				segments[i] = strings.ToUpper(seg)
			}
		}
		viperKey := strings.Join(append(segments, leaf), ".")

		if leaf == "port" {
			if n, err := strconv.Atoi(value); err == nil {
				v.Set(viperKey, n)
				continue
			}
		}
		v.Set(viperKey, value)
	}
}
