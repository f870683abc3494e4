// Package config loads the orchestrator's configuration from YAML with
// environment-variable overrides, following the teacher's singleton +
// override idiom (internal/config/config.go in the teacher repo).
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"
)

// Config is the top-level orchestrator configuration tree.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Broadcast  BroadcastConfig  `yaml:"broadcast"`
	Device     DeviceConfig     `yaml:"device"`
	Engine     EngineConfig     `yaml:"engine"`
	Report     ReportConfig     `yaml:"report"`
	Integrity  IntegrityConfig  `yaml:"integrity"`
	HostCheck  HostCheckConfig  `yaml:"host_check"`
	Lockscreen LockscreenConfig `yaml:"lockscreen"`
	Redis      RedisConfig      `yaml:"redis"`
}

// ServerConfig controls the HTTP/API listener.
type ServerConfig struct {
	Port            string `yaml:"port"`
	Env             string `yaml:"env"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	IdleTimeoutSec  int    `yaml:"idle_timeout_sec"`
	ShutdownTimeout int    `yaml:"shutdown_timeout_sec"`
}

// CatalogConfig configures the embedded SQLite catalog store (C1).
type CatalogConfig struct {
	// StateRoot is the directory under which database.db is created.
	StateRoot      string `yaml:"state_root"`
	MaxOpenConns   int    `yaml:"max_open_conns"`
	MaxIdleConns   int    `yaml:"max_idle_conns"`
	BusyTimeoutMs  int    `yaml:"busy_timeout_ms"`
	RetryBaseMs    int    `yaml:"retry_base_ms"`
	RetryMaxAttmpt int    `yaml:"retry_max_attempts"`
}

// BroadcastConfig configures the WebSocket broadcast bus (C3).
type BroadcastConfig struct {
	PortRangeStart    int `yaml:"port_range_start"`
	PortRangeEnd      int `yaml:"port_range_end"`
	StatusIntervalSec int `yaml:"status_interval_sec"`
}

// DeviceConfig configures the device inventory subsystem (C2).
type DeviceConfig struct {
	MountRoot          string `yaml:"mount_root"`
	HostSampleInterval int    `yaml:"host_sample_interval_sec"`
}

// EngineConfig configures the engine driver (C4).
type EngineConfig struct {
	EWFBinary      string `yaml:"ewf_binary"`
	RawBinary      string `yaml:"raw_binary"`
	EscalationTool string `yaml:"escalation_tool"`
	ReadRetryCount int    `yaml:"read_retry_count"`
}

// ReportConfig configures the report builder (C6).
type ReportConfig struct {
	TemplatePath string `yaml:"template_path"`
	TeXCompiler  string `yaml:"tex_compiler"`
	WorkDir      string `yaml:"work_dir"`
}

// IntegrityConfig configures the startup integrity gate (C7).
type IntegrityConfig struct {
	ConfigDir    string `yaml:"config_dir"`
	PublicKeyHex string `yaml:"public_key_hex"`
}

// HostCheckConfig configures the host-integrity proxy (C8).
type HostCheckConfig struct {
	ScannerBinary string `yaml:"scanner_binary"`
	Containerized bool   `yaml:"containerized"`
	Image         string `yaml:"image"`
}

// LockscreenConfig configures the lock/unlock PIN gate.
type LockscreenConfig struct {
	Enabled bool `yaml:"enabled"`
}

// RedisConfig configures the optional same-host host-sampler cache.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the process-wide singleton, loading CONFIG_PATH (default
// config.yaml) on first use and falling back to defaults if it's missing.
func Get() *Config {
	once.Do(func() {
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("config: failed to load config file, using defaults", "error", err)
		}
		if cfg == nil {
			cfg = defaultConfig()
		}
		cfg.applyEnvOverrides()
		instance = cfg
	})
	return instance
}

func defaultConfig() *Config {
	return &Config{
		Server:    ServerConfig{Port: "8090", Env: "development"},
		Catalog:   CatalogConfig{StateRoot: "/var/lib/cratec", MaxOpenConns: 8, MaxIdleConns: 4, BusyTimeoutMs: 5000, RetryBaseMs: 100, RetryMaxAttmpt: 5},
		Broadcast: BroadcastConfig{PortRangeStart: 8080, PortRangeEnd: 8100, StatusIntervalSec: 2},
		Device:    DeviceConfig{MountRoot: "/media/cratec", HostSampleInterval: 1},
		Engine:    EngineConfig{EWFBinary: "ewfacquire", RawBinary: "dcfldd", EscalationTool: "sudo", ReadRetryCount: 2},
		Report:    ReportConfig{TemplatePath: "internal/report/templates/audit.tex.tmpl", TeXCompiler: "pdflatex", WorkDir: "/tmp/cratec-report"},
		Integrity: IntegrityConfig{ConfigDir: "/etc/cratec/integrity"},
		HostCheck: HostCheckConfig{ScannerBinary: "aide"},
	}
}

// LoadConfig loads config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := defaultConfig()
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Server.Port = getEnv("CRATEC_PORT", c.Server.Port)
	c.Server.Env = getEnv("CRATEC_ENV", c.Server.Env)
	c.Catalog.StateRoot = getEnv("CRATEC_STATE_ROOT", c.Catalog.StateRoot)
	c.Device.MountRoot = getEnv("CRATEC_MOUNT_ROOT", c.Device.MountRoot)
	c.Engine.EscalationTool = getEnv("CRATEC_ESCALATION_TOOL", c.Engine.EscalationTool)
	if v := getEnvInt("CRATEC_ENGINE_READ_RETRY", 0); v > 0 {
		c.Engine.ReadRetryCount = clampInt(v, 1, 5)
	}
	c.Report.TeXCompiler = getEnv("CRATEC_TEX_COMPILER", c.Report.TeXCompiler)
	c.Integrity.ConfigDir = getEnv("CRATEC_INTEGRITY_DIR", c.Integrity.ConfigDir)
	c.Integrity.PublicKeyHex = getEnv("CRATEC_INTEGRITY_PUBKEY", c.Integrity.PublicKeyHex)
	c.Redis.Enabled = getEnvBool("CRATEC_REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Addr = getEnv("CRATEC_REDIS_ADDR", c.Redis.Addr)
	if v := getEnvInt("CRATEC_BROADCAST_PORT_START", 0); v > 0 {
		c.Broadcast.PortRangeStart = v
	}
	if v := getEnvInt("CRATEC_BROADCAST_PORT_END", 0); v > 0 {
		c.Broadcast.PortRangeEnd = v
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool { return c.Server.Env == "production" }

// splitCSV splits a comma-joined list, trimming blanks and dropping empty
// entries. The catalog package keeps its own copy for hash_types.
func splitCSV(s string) []string {
	parts := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
