package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultIntervalSeconds = 30
	MinIntervalSeconds     = 15
	MaxIntervalSeconds     = 300
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Browser BrowserConfig `yaml:"browser"`
	Portal  PortalConfig  `yaml:"portal"`
	Agent   AgentConfig   `yaml:"agent"`
	Limits  LimitsConfig  `yaml:"limits"`
	Control ControlConfig `yaml:"control"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Addr    string       `yaml:"addr"`
	Origins OriginConfig `yaml:"origins"`
}

// OriginConfig lists the browser origins allowed to reach the agent host.
// Requests without an Origin header (regctl, curl) are not browser requests
// and always pass.
type OriginConfig struct {
	Allow []string `yaml:"allow"`
}

// Allowed reports whether a request sent from origin may be served.
func (c OriginConfig) Allowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, o := range c.Allow {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

type StorageConfig struct {
	SQLitePath string `yaml:"sqlitePath"`
}

type BrowserConfig struct {
	// ControlURL attaches to an already running Chrome (ws://...). Empty launches one.
	ControlURL string `yaml:"controlURL"`
	Headless   bool   `yaml:"headless"`
	Stealth    bool   `yaml:"stealth"`
	Bin        string `yaml:"bin"`
	UserData   string `yaml:"userDataDir"`
	// KeepCookies persists portal cookies between agent restarts.
	KeepCookies bool `yaml:"keepCookies"`
}

// PortalConfig is the page contract of the registration portal.
type PortalConfig struct {
	Host                  string   `yaml:"host"`
	StartURL              string   `yaml:"startURL"`
	RegistrationMarkers   []string `yaml:"registrationMarkers"`
	IdentifierFieldPrefix string   `yaml:"identifierFieldPrefix"`
	CommitLabel           string   `yaml:"commitLabel"`
	ResultsTableSelector  string   `yaml:"resultsTableSelector"`
	WaitlistFieldName     string   `yaml:"waitlistFieldName"`
	WaitlistValue         string   `yaml:"waitlistValue"`
}

type AgentConfig struct {
	// ResultsWaitMs bounds the wait for the results table. 0 uses the default,
	// a negative value waits until the page navigates away.
	ResultsWaitMs  int `yaml:"resultsWaitMs"`
	StatusTickMs   int `yaml:"statusTickMs"`
	StatusBufLines int `yaml:"statusBufLines"`
}

func (c AgentConfig) ResultsWait() time.Duration {
	if c.ResultsWaitMs < 0 {
		return 0
	}
	if c.ResultsWaitMs == 0 {
		return 60 * time.Second
	}
	return time.Duration(c.ResultsWaitMs) * time.Millisecond
}

func (c AgentConfig) StatusTick() time.Duration {
	if c.StatusTickMs <= 0 {
		return time.Second
	}
	return time.Duration(c.StatusTickMs) * time.Millisecond
}

type LimitsConfig struct {
	// SubmitQPS caps commit invocations. 0 disables pacing.
	SubmitQPS   float64 `yaml:"submitQPS"`
	SubmitBurst int     `yaml:"submitBurst"`
}

type ControlConfig struct {
	AgentURL  string          `yaml:"agentURL"`
	TimeoutMs int             `yaml:"timeoutMs"`
	Retry     ControlRetryCfg `yaml:"retry"`
}

type ControlRetryCfg struct {
	Count     int `yaml:"count"`
	WaitMs    int `yaml:"waitMs"`
	MaxWaitMs int `yaml:"maxWaitMs"`
}

func (c ControlConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c ControlRetryCfg) Wait() time.Duration {
	if c.WaitMs <= 0 {
		return 200 * time.Millisecond
	}
	return time.Duration(c.WaitMs) * time.Millisecond
}

func (c ControlRetryCfg) MaxWait() time.Duration {
	if c.MaxWaitMs <= 0 {
		return 1200 * time.Millisecond
	}
	return time.Duration(c.MaxWaitMs) * time.Millisecond
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Default returns a config with every default applied, used when no file exists.
func Default() Config {
	var cfg Config
	cfg.Browser.KeepCookies = true
	cfg.Log.Console = true
	cfg.applyDefaults()
	return cfg
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Browser: BrowserConfig{KeepCookies: true},
		Log:     LogConfig{Console: true},
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to Default when path does not exist.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8090"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "./data/regsniper.db"
	}
	if c.Portal.Host == "" {
		c.Portal.Host = "horizon.mcgill.ca"
	}
	if c.Portal.StartURL == "" {
		c.Portal.StartURL = "https://" + c.Portal.Host + "/pban1/bwskfreg.P_AltPin"
	}
	if len(c.Portal.RegistrationMarkers) == 0 {
		c.Portal.RegistrationMarkers = []string{"P_AltPin", "P_Regs"}
	}
	if c.Portal.IdentifierFieldPrefix == "" {
		c.Portal.IdentifierFieldPrefix = "crn_id"
	}
	if c.Portal.CommitLabel == "" {
		c.Portal.CommitLabel = "Submit Changes"
	}
	if c.Portal.ResultsTableSelector == "" {
		c.Portal.ResultsTableSelector = "table.datadisplaytable"
	}
	if c.Portal.WaitlistFieldName == "" {
		c.Portal.WaitlistFieldName = "RSTS_IN"
	}
	if c.Portal.WaitlistValue == "" {
		c.Portal.WaitlistValue = "LW"
	}
	if c.Agent.StatusBufLines <= 0 {
		c.Agent.StatusBufLines = 200
	}
	if c.Limits.SubmitQPS < 0 {
		c.Limits.SubmitQPS = 0
	}
	if c.Limits.SubmitBurst <= 0 {
		c.Limits.SubmitBurst = 1
	}
	if c.Control.AgentURL == "" {
		c.Control.AgentURL = "http://" + c.Server.Addr
		if strings.HasPrefix(c.Server.Addr, ":") {
			c.Control.AgentURL = "http://127.0.0.1" + c.Server.Addr
		}
	}
	if c.Control.Retry.Count < 0 {
		c.Control.Retry.Count = 0
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c Config) validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if strings.TrimSpace(c.Portal.Host) == "" {
		return errors.New("portal.host is required")
	}
	if strings.TrimSpace(c.Portal.CommitLabel) == "" {
		return errors.New("portal.commitLabel is required")
	}
	return nil
}
