// Package config resolves NeuroLink settings from defaults, an optional INI
// file and environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/edgecli/neurolink/internal/device"
	"github.com/edgecli/neurolink/internal/eventlog"
	"github.com/edgecli/neurolink/internal/lifecycle"
)

const (
	// ConfigDirName is the per-user config directory
	ConfigDirName = ".neurolink"
	// ConfigFileName is the INI file looked up in the working directory and
	// then in ConfigDirName
	ConfigFileName = "neurolink.ini"
	// EnvPrefix prefixes every environment override
	EnvPrefix = "NEUROLINK_"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all application configuration
type Config struct {
	// Network settings
	WebAddr     string
	ServerURL   string
	CORSOrigins []string

	// Simulated target
	IPAddress  string
	MACAddress string

	// Timings, in milliseconds unless noted
	PreBroadcastMs    int
	ConfirmMs         int
	PreHaltMs         int
	HaltMs            int
	JitterIntervalMs  int
	BannerMs          int
	ConfirmTTLSeconds int

	LogCapacity    int
	PromptsFile    string
	RequestLogging bool
	Verbose        bool

	// Source is the file the settings were read from, if any
	Source string
}

// Default returns a configuration with default values
func Default() *Config {
	t := lifecycle.DefaultTimings()
	return &Config{
		WebAddr:           ":8080",
		ServerURL:         "http://localhost:8080",
		CORSOrigins:       []string{"*"},
		IPAddress:         device.DefaultIPAddress,
		MACAddress:        device.DefaultMACAddress,
		PreBroadcastMs:    int(t.PreBroadcast / time.Millisecond),
		ConfirmMs:         int(t.Confirm / time.Millisecond),
		PreHaltMs:         int(t.PreHalt / time.Millisecond),
		HaltMs:            int(t.Halt / time.Millisecond),
		JitterIntervalMs:  int(t.Jitter / time.Millisecond),
		BannerMs:          int(t.Banner / time.Millisecond),
		ConfirmTTLSeconds: int(t.ConfirmTTL / time.Second),
		LogCapacity:       eventlog.DefaultCapacity,
		RequestLogging:    true,
	}
}

// Paths holds commonly used paths
type Paths struct {
	// ConfigDir is ~/.neurolink
	ConfigDir string
	// ConfigFile is ~/.neurolink/neurolink.ini
	ConfigFile string
}

// GetPaths returns the standard paths
func GetPaths() (*Paths, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ConfigDirName)
	return &Paths{
		ConfigDir:  configDir,
		ConfigFile: filepath.Join(configDir, ConfigFileName),
	}, nil
}

// Locate returns the first existing config file: explicit, then
// ./neurolink.ini, then ~/.neurolink/neurolink.ini. It returns "" when none
// exists and explicit is empty.
func Locate(explicit string) string {
	if explicit != "" {
		return explicit
	}
	candidates := []string{ConfigFileName}
	if paths, err := GetPaths(); err == nil {
		candidates = append(candidates, paths.ConfigFile)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadFromFile loads configuration from an INI file. Keys live in the
// default section and are case insensitive.
func (c *Config) LoadFromFile(filename string) error {
	cfg, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, filename)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", filename, err)
	}

	section := cfg.Section("")
	c.WebAddr = section.Key("web_addr").MustString(c.WebAddr)
	c.ServerURL = section.Key("server_url").MustString(c.ServerURL)
	c.IPAddress = section.Key("ip_address").MustString(c.IPAddress)
	c.MACAddress = section.Key("mac_address").MustString(c.MACAddress)
	c.LogCapacity = section.Key("log_capacity").MustInt(c.LogCapacity)
	c.JitterIntervalMs = section.Key("jitter_interval_ms").MustInt(c.JitterIntervalMs)
	c.PreBroadcastMs = section.Key("pre_broadcast_ms").MustInt(c.PreBroadcastMs)
	c.ConfirmMs = section.Key("confirm_ms").MustInt(c.ConfirmMs)
	c.PreHaltMs = section.Key("pre_halt_ms").MustInt(c.PreHaltMs)
	c.HaltMs = section.Key("halt_ms").MustInt(c.HaltMs)
	c.BannerMs = section.Key("banner_ms").MustInt(c.BannerMs)
	c.ConfirmTTLSeconds = section.Key("confirm_ttl_seconds").MustInt(c.ConfirmTTLSeconds)
	c.PromptsFile = section.Key("prompts_file").MustString(c.PromptsFile)
	c.RequestLogging = section.Key("request_logging").MustBool(c.RequestLogging)
	c.Verbose = section.Key("verbose").MustBool(c.Verbose)
	if section.HasKey("cors_origins") {
		c.CORSOrigins = splitList(section.Key("cors_origins").String())
	}
	c.Source = filename

	return nil
}

// LoadFromEnv applies NEUROLINK_* environment overrides
func (c *Config) LoadFromEnv() {
	if v := getenv("WEB_ADDR"); v != "" {
		c.WebAddr = v
	}
	if v := getenv("SERVER_URL"); v != "" {
		c.ServerURL = v
	}
	if v := getenv("IP_ADDRESS"); v != "" {
		c.IPAddress = v
	}
	if v := getenv("MAC_ADDRESS"); v != "" {
		c.MACAddress = v
	}
	if v := getenv("PROMPTS_FILE"); v != "" {
		c.PromptsFile = v
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	if v := getenv("REQUEST_LOGGING"); v != "" {
		c.RequestLogging, _ = strconv.ParseBool(v)
	}
	if v := getenv("VERBOSE"); v != "" {
		c.Verbose, _ = strconv.ParseBool(v)
	}

	envInt("LOG_CAPACITY", &c.LogCapacity)
	envInt("JITTER_INTERVAL_MS", &c.JitterIntervalMs)
	envInt("PRE_BROADCAST_MS", &c.PreBroadcastMs)
	envInt("CONFIRM_MS", &c.ConfirmMs)
	envInt("PRE_HALT_MS", &c.PreHaltMs)
	envInt("HALT_MS", &c.HaltMs)
	envInt("BANNER_MS", &c.BannerMs)
	envInt("CONFIRM_TTL_SECONDS", &c.ConfirmTTLSeconds)
}

// Validate rejects settings the core cannot run with
func (c *Config) Validate() error {
	if c.WebAddr == "" {
		return fmt.Errorf("%w: web_addr is empty", ErrInvalid)
	}
	if c.LogCapacity <= 0 {
		return fmt.Errorf("%w: log_capacity must be positive, got %d", ErrInvalid, c.LogCapacity)
	}

	timings := []struct {
		key string
		v   int
	}{
		{"pre_broadcast_ms", c.PreBroadcastMs},
		{"confirm_ms", c.ConfirmMs},
		{"pre_halt_ms", c.PreHaltMs},
		{"halt_ms", c.HaltMs},
		{"jitter_interval_ms", c.JitterIntervalMs},
		{"banner_ms", c.BannerMs},
		{"confirm_ttl_seconds", c.ConfirmTTLSeconds},
	}
	for _, t := range timings {
		if t.v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalid, t.key, t.v)
		}
	}

	if net.ParseIP(c.IPAddress) == nil {
		return fmt.Errorf("%w: ip_address %q is not an IP address", ErrInvalid, c.IPAddress)
	}
	if _, err := net.ParseMAC(c.MACAddress); err != nil {
		return fmt.Errorf("%w: mac_address %q: %v", ErrInvalid, c.MACAddress, err)
	}
	return nil
}

// Timings converts the configured delays for the lifecycle controller
func (c *Config) Timings() lifecycle.Timings {
	return lifecycle.Timings{
		PreBroadcast: ms(c.PreBroadcastMs),
		Confirm:      ms(c.ConfirmMs),
		PreHalt:      ms(c.PreHaltMs),
		Halt:         ms(c.HaltMs),
		Jitter:       ms(c.JitterIntervalMs),
		Banner:       ms(c.BannerMs),
		ConfirmTTL:   time.Duration(c.ConfirmTTLSeconds) * time.Second,
	}
}

// New creates a configuration from defaults, the located INI file and the
// environment, then validates it. A missing file is not an error.
func New(configFile string) (*Config, error) {
	cfg := Default()

	if path := Locate(configFile); path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			if configFile != "" || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
			log.Printf("[WARN] config: %v", err)
		}
	}

	cfg.LoadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + key))
}

func envInt(key string, dst *int) {
	v := getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[WARN] config: ignoring %s%s=%q: %v", EnvPrefix, key, v, err)
		return
	}
	*dst = n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
