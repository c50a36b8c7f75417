package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Effective is the merged result of file, env and flag configuration that
// the rest of the process consumes.
type Effective struct {
	Config Config
	Addr   string
	DBPath string
	Source string // flags | env | config | defaults
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseCommandFlags defines and parses command-line flags and returns their
// values along with a map indicating which flags were explicitly set.
func ParseCommandFlags() (addr string, dbPath string, cfgPath string, setFlags map[string]bool) {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.database", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *addrPtr, *dbPtr, *cfgPtr, setFlags
}

// LoadEnvOverrides applies CHANNELD_* environment overrides onto cfg and
// reports whether any env var was used.
func LoadEnvOverrides(cfg *Config) bool {
	envUsed := false
	parseList := func(v string) []string {
		if v == "" {
			return nil
		}
		var parts []string
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				parts = append(parts, s)
			}
		}
		return parts
	}

	if v := os.Getenv("CHANNELD_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		}
	}
	if v := os.Getenv("CHANNELD_DB_PATH"); v != "" {
		envUsed = true
		cfg.Store.DBPath = v
	}
	if v := os.Getenv("CHANNELD_BROKER_URL"); v != "" {
		envUsed = true
		cfg.Broker.URL = v
	}
	if v := os.Getenv("CHANNELD_BROKER_SUBJECT"); v != "" {
		envUsed = true
		cfg.Broker.Subject = v
	}
	if v := os.Getenv("CHANNELD_ALLOWED_ORIGINS"); v != "" {
		envUsed = true
		cfg.Security.CORS.AllowedOrigins = parseList(v)
	}
	if v := os.Getenv("CHANNELD_IP_WHITELIST"); v != "" {
		envUsed = true
		cfg.Security.IPWhitelist = parseList(v)
	}
	if v := os.Getenv("CHANNELD_RATE_RPS"); v != "" {
		envUsed = true
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Security.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("CHANNELD_RATE_BURST"); v != "" {
		envUsed = true
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Security.RateLimit.Burst = i
		}
	}
	if v := os.Getenv("CHANNELD_LOG_LEVEL"); v != "" {
		envUsed = true
		cfg.Logging.Level = v
	}
	return envUsed
}

// ApplyDefaults fills in defaults for unset broker and outbox settings.
func ApplyDefaults(cfg *Config) {
	if cfg.Broker.Subject == "" {
		cfg.Broker.Subject = "channeld.events"
	}
	if cfg.Broker.RetryInterval.Duration() <= 0 {
		cfg.Broker.RetryInterval = Duration(2 * time.Second)
	}
	if cfg.Broker.MaxAttempts <= 0 {
		cfg.Broker.MaxAttempts = 20
	}
	if cfg.Outbox.Cron == "" {
		cfg.Outbox.Cron = "*/1 * * * *"
	}
	if cfg.Outbox.MaxAge.Duration() <= 0 {
		cfg.Outbox.MaxAge = Duration(time.Hour)
	}
}

// LoadEffective merges config file (optional), env overrides and flag
// values, with flags winning over env, and env over file.
func LoadEffective(cfgPath string, addrFlag, dbFlag string, setFlags map[string]bool) (Effective, error) {
	var cfg Config
	source := "defaults"
	if cfgPath != "" {
		if c, err := Load(cfgPath); err == nil {
			cfg = *c
			source = "config"
		} else if setFlags["config"] {
			// an explicitly requested config file must exist
			return Effective{}, err
		}
	}
	if LoadEnvOverrides(&cfg) {
		source = "env"
	}

	addr := cfg.Addr()
	if setFlags["addr"] {
		addr = addrFlag
		source = "flags"
	}
	dbPath := cfg.Store.DBPath
	if dbPath == "" || setFlags["db"] {
		dbPath = dbFlag
		if setFlags["db"] {
			source = "flags"
		}
	}
	ApplyDefaults(&cfg)
	return Effective{Config: cfg, Addr: addr, DBPath: dbPath, Source: source}, nil
}
