package utils

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"go.dedis.ch/onet/v3/cfgpath"
	"golang.org/x/xerrors"
)

const (
	// DefaultName is the name of the binary and of the directories it
	// keeps its config and data in.
	DefaultName = "tbb"
	// DefaultListen is the address the HTTP node binds to.
	DefaultListen = "127.0.0.1:8080"

	configFile = "config.toml"
)

// Config is the optional TOML configuration of the tbb binary. Command
// line flags override it.
type Config struct {
	DataDir string
	HTTP    HTTPConfig
	Log     LogConfig
	Clock   ClockConfig
}

type HTTPConfig struct {
	Listen string
}

type LogConfig struct {
	// Debug is the onet log level, 0 to 5.
	Debug int
}

// ClockConfig selects the source of block timestamps. With no NTP server
// the local clock is used.
type ClockConfig struct {
	NTPServers []string
	NTPTimeout Duration
}

// Duration decodes TOML strings such as "1500ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func DefaultConfig() *Config {
	return &Config{
		DataDir: cfgpath.GetDataPath(DefaultName),
		HTTP:    HTTPConfig{Listen: DefaultListen},
	}
}

func DefaultConfigPath() string {
	return filepath.Join(cfgpath.GetConfigPath(DefaultName), configFile)
}

// LoadConfig reads the TOML file at path on top of the defaults. A missing
// file yields the defaults; unknown keys are an error.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path == "" || !FileExists(path) {
		return config, nil
	}
	md, err := toml.DecodeFile(path, config)
	if err != nil {
		return nil, xerrors.Errorf("reading config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, xerrors.Errorf("config %s: unknown key %s", path, undecoded[0])
	}
	return config, nil
}

// Write stores the config as TOML at path.
func (c *Config) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		f.Close()
		return xerrors.Errorf("encoding config: %w", err)
	}
	return f.Close()
}
