package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

const (
	DirName         = "jobbridge"
	ConfigFileName  = "config.json"
	ProxiesFileName = "proxies.txt"
	DatabaseName    = "jobbridge.db"
	LockDirName     = "locks"

	DefaultTimezone = "Asia/Seoul"
)

// Config holds storage, scheduling and per-source settings.
type Config struct {
	DatabaseURL           string `json:"database_url"`
	Timezone              string `json:"timezone"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
	RunTimeoutMinutes     int    `json:"run_timeout_minutes"`
	IntervalMinutes       int    `json:"interval_minutes"`
	InitialDelaySeconds   int    `json:"initial_delay_seconds"`
	LockDir               string `json:"lock_dir"`

	Saramin  SaraminConfig  `json:"saramin"`
	JobKorea JobKoreaConfig `json:"jobkorea"`
}

type SaraminConfig struct {
	Enabled  bool   `json:"enabled"`
	APIKey   string `json:"api_key,omitempty"`
	Endpoint string `json:"endpoint"`
	Keywords string `json:"keywords"`
	Count    int    `json:"count"`
	Pages    int    `json:"pages"`
	Fields   string `json:"fields"`
	// zero falls back to the global interval
	IntervalMinutes int `json:"interval_minutes,omitempty"`
}

type JobKoreaConfig struct {
	Enabled              bool     `json:"enabled"`
	DetailURL            string   `json:"detail_url"`
	DescriptionURL       string   `json:"description_url"`
	DescriptionSelectors []string `json:"description_selectors"`
	ProbeURL             string   `json:"probe_url"`
	StartID              int64    `json:"start_id"`
	EndID                int64    `json:"end_id"`
	DelayMillis          int      `json:"delay_millis"`
	SkipDescription      bool     `json:"skip_description"`
	// Resume starts after the last position of the previous clean run.
	Resume          bool `json:"resume"`
	IntervalMinutes int  `json:"interval_minutes,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		DatabaseURL:           envString("JOBBRIDGE_DATABASE_URL", ""),
		Timezone:              envString("JOBBRIDGE_TIMEZONE", DefaultTimezone),
		RequestTimeoutSeconds: envInt("JOBBRIDGE_REQUEST_TIMEOUT", 20),
		RunTimeoutMinutes:     envInt("JOBBRIDGE_RUN_TIMEOUT", 0),
		IntervalMinutes:       envInt("JOBBRIDGE_INTERVAL_MINUTES", 30),
		InitialDelaySeconds:   envInt("JOBBRIDGE_INITIAL_DELAY", 0),
		Saramin: SaraminConfig{
			Enabled:  true,
			Endpoint: "https://oapi.saramin.co.kr/job-search",
			Keywords: "개발자",
			Count:    110,
			Pages:    1,
			Fields:   "posting-date,expiration-date",
		},
		JobKorea: JobKoreaConfig{
			DetailURL:            "https://www.jobkorea.co.kr/Recruit/GI_Read/{id}",
			DescriptionURL:       "https://www.jobkorea.co.kr/Recruit/GI_Read_Comt_Ifrm?Gno={id}",
			DescriptionSelectors: []string{"body"},
			ProbeURL:             "https://www.jobkorea.co.kr/",
			DelayMillis:          1000,
		},
	}
}

func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, DirName), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

func ProxiesPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ProxiesFileName), nil
}

// Load reads path, or the default config file when path is empty. A
// missing default file yields the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		var err error
		if path, err = ConfigPath(); err != nil {
			return cfg, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, cfg.resolve(filepath.Dir(path))
		}
		return cfg, errors.Wrapf(err, "read %s", path)
	}

	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json5.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse %s", path)
		}
	}
	return cfg, cfg.resolve(filepath.Dir(path))
}

// resolve fills paths relative to dir and validates the result.
func (c *Config) resolve(dir string) error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		c.DatabaseURL = filepath.Join(dir, DatabaseName)
	}
	if strings.TrimSpace(c.LockDir) == "" {
		c.LockDir = filepath.Join(dir, LockDirName)
	}
	if c.Saramin.Count <= 0 || c.Saramin.Count > 110 {
		c.Saramin.Count = 110
	}
	if c.Saramin.Pages <= 0 {
		c.Saramin.Pages = 1
	}
	if c.JobKorea.Enabled && (c.JobKorea.StartID <= 0 || c.JobKorea.EndID < c.JobKorea.StartID) {
		return errors.WithHint(
			errors.Newf("jobkorea id range %d..%d is invalid", c.JobKorea.StartID, c.JobKorea.EndID),
			"set jobkorea.start_id and jobkorea.end_id")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location is the zone deadlines without an offset are read in.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrapf(err, "timezone %q", name)
	}
	return loc, nil
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutMinutes) * time.Minute
}

func (c Config) InitialDelay() time.Duration {
	return time.Duration(c.InitialDelaySeconds) * time.Second
}

func (c Config) SaraminInterval() time.Duration {
	return c.interval(c.Saramin.IntervalMinutes)
}

func (c Config) JobKoreaInterval() time.Duration {
	return c.interval(c.JobKorea.IntervalMinutes)
}

func (c Config) JobKoreaDelay() time.Duration {
	return time.Duration(c.JobKorea.DelayMillis) * time.Millisecond
}

func (c Config) interval(minutes int) time.Duration {
	if minutes <= 0 {
		minutes = c.IntervalMinutes
	}
	if minutes <= 0 {
		minutes = 30
	}
	return time.Duration(minutes) * time.Minute
}

// Init writes default config.json and proxies.txt if they don't already exist.
func Init() ([]string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return InitDir(dir)
}

func InitDir(dir string) ([]string, error) {
	var created []string
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return created, err
	}

	configPath := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := writeConfig(configPath, DefaultConfig()); err != nil {
			return created, err
		}
		created = append(created, configPath)
	}

	proxiesPath := filepath.Join(dir, ProxiesFileName)
	if _, err := os.Stat(proxiesPath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(proxiesPath, []byte(""), 0o644); err != nil {
			return created, err
		}
		created = append(created, proxiesPath)
	}

	return created, nil
}

func writeConfig(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

// LoadProxies reads proxies from the flag, JOBBRIDGE_PROXIES or
// proxies.txt, in that order.
func LoadProxies(flagValue string) ([]string, error) {
	if strings.TrimSpace(flagValue) != "" {
		return splitCSV(flagValue), nil
	}

	if env := strings.TrimSpace(os.Getenv("JOBBRIDGE_PROXIES")); env != "" {
		return splitCSV(env), nil
	}

	path, err := ProxiesPath()
	if err != nil {
		return nil, err
	}
	return readProxies(path)
}

func readProxies(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var proxies []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		proxies = append(proxies, line)
	}
	return proxies, nil
}

func envString(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
