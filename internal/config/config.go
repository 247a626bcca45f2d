// Package config assembles the socks5d settings from built-in defaults, an
// optional TOML file and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
)

const (
	DefaultIP   = "127.0.0.1"
	DefaultPort = 3001
)

// Config is the file-backed part of the configuration. Every key may be
// omitted from the file.
type Config struct {
	IP        string `toml:"ip"`
	Port      uint16 `toml:"port"`
	Upstream  string `toml:"upstream"`
	DNSServer string `toml:"dns_server"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

func Default() Config {
	return Config{
		IP:        DefaultIP,
		Port:      DefaultPort,
		Upstream:  "direct://",
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// Addr returns the listen address as host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.IP, strconv.Itoa(int(c.Port)))
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.IP) == "" {
		return errors.New("ip must not be empty")
	}
	return nil
}

// LoadFile decodes the TOML file at path on top of base. Keys the file does
// not set keep their value from base; unknown keys are an error.
func LoadFile(path string, base Config) (Config, error) {
	cfg := base
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Flags are the command-line counterparts of Config plus --config itself.
type Flags struct {
	fs *pflag.FlagSet

	path      *string
	ip        *string
	port      *uint16
	upstream  *string
	dnsServer *string
	logLevel  *string
	logFormat *string
}

// Bind registers the configuration flags on fs.
func Bind(fs *pflag.FlagSet) *Flags {
	d := Default()
	return &Flags{
		fs:        fs,
		path:      fs.StringP("config", "c", "", "Path to a TOML config file"),
		ip:        fs.StringP("ip", "i", d.IP, "IP address to listen on"),
		port:      fs.Uint16P("port", "p", d.Port, "Port to listen on"),
		upstream:  fs.String("upstream", d.Upstream, "Outbound route: direct:// | socks5://host:port"),
		dnsServer: fs.String("dns-server", d.DNSServer, "Resolve domain names by querying this DNS server (host[:port]) instead of the system resolver"),
		logLevel:  fs.String("log-level", d.LogLevel, "Log level: trace|debug|info|warn|error"),
		logFormat: fs.String("log-format", d.LogFormat, "Log format: console|json"),
	}
}

// Load returns the defaults, overlaid with the --config file if one was
// given, overlaid with every flag set explicitly on the command line.
func (f *Flags) Load() (Config, error) {
	cfg := Default()

	if *f.path != "" {
		var err error
		if cfg, err = LoadFile(*f.path, cfg); err != nil {
			return Config{}, err
		}
	}

	if f.fs.Changed("ip") {
		cfg.IP = *f.ip
	}
	if f.fs.Changed("port") {
		cfg.Port = *f.port
	}
	if f.fs.Changed("upstream") {
		cfg.Upstream = *f.upstream
	}
	if f.fs.Changed("dns-server") {
		cfg.DNSServer = *f.dnsServer
	}
	if f.fs.Changed("log-level") {
		cfg.LogLevel = *f.logLevel
	}
	if f.fs.Changed("log-format") {
		cfg.LogFormat = *f.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
