package cli

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/FranksOps/gsearch/internal/fingerprint"
	"github.com/FranksOps/gsearch/internal/serp"
	"github.com/FranksOps/gsearch/pkg/httpclient"
	"github.com/FranksOps/gsearch/pkg/useragent"
	"github.com/spf13/viper"
)

// envPrefix namespaces every environment override, e.g. GSEARCH_TIMEOUT or
// GSEARCH_HISTORY_BACKEND.
const envPrefix = "GSEARCH"

// Config is the resolved runtime configuration.
type Config struct {
	SearchURL           string        `mapstructure:"search_url"`
	UserAgents          []string      `mapstructure:"-"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRedirects        int           `mapstructure:"max_redirects"`
	Fingerprint         string        `mapstructure:"fingerprint"`
	Proxy               string        `mapstructure:"proxy"`
	LegacyQueryEncoding bool          `mapstructure:"legacy_query_encoding"`
	StrictExit          bool          `mapstructure:"strict_exit"`

	Log       LogConfig       `mapstructure:"log"`
	Selectors SelectorsConfig `mapstructure:"selectors"`
	History   HistoryConfig   `mapstructure:"history"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// LogConfig selects the slog level and handler (text or json).
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SelectorsConfig overrides the CSS selectors; empty fields keep the Google defaults.
type SelectorsConfig struct {
	Container string `mapstructure:"container"`
	Title     string `mapstructure:"title"`
	Link      string `mapstructure:"link"`
	Snippet   string `mapstructure:"snippet"`
	Image     string `mapstructure:"image"`
}

// HistoryConfig selects where search records are kept. Backend is one of
// none, json, csv, sqlite or postgres.
type HistoryConfig struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
}

// MetricsConfig names the Prometheus textfile written after each run.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("search_url", serp.DefaultSearchURL)
	v.SetDefault("user_agents", []string{useragent.Default})
	v.SetDefault("timeout", "30s")
	v.SetDefault("max_redirects", httpclient.DefaultMaxRedirects)
	v.SetDefault("fingerprint", string(fingerprint.ProfileGo))
	v.SetDefault("proxy", "")
	v.SetDefault("legacy_query_encoding", false)
	v.SetDefault("strict_exit", false)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("selectors.container", serp.GoogleSelectors.Container)
	v.SetDefault("selectors.title", serp.GoogleSelectors.Title)
	v.SetDefault("selectors.link", serp.GoogleSelectors.Link)
	v.SetDefault("selectors.snippet", serp.GoogleSelectors.Snippet)
	v.SetDefault("selectors.image", serp.GoogleSelectors.Image)
	v.SetDefault("history.backend", "none")
	v.SetDefault("history.dsn", "")
	v.SetDefault("metrics.textfile", "")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig merges defaults, the optional config file, environment and
// bound flags. An explicit path wins over GSEARCH_CONFIG.
func loadConfig(v *viper.Viper, path string) (Config, error) {
	if path == "" {
		path = os.Getenv(envPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.UserAgents = userAgents(v.Get("user_agents"))

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// userAgents reads the user_agents key. User agents contain commas and
// spaces, so a single string (from the environment) is split on newlines
// only.
func userAgents(raw any) []string {
	switch val := raw.(type) {
	case string:
		lines := strings.Split(val, "\n")
		for i := range lines {
			lines[i] = strings.TrimSpace(lines[i])
		}
		return lines
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

func (c Config) validate() error {
	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	if _, err := fingerprint.ParseProfile(c.Fingerprint); err != nil {
		return err
	}
	if _, err := c.proxyURL(); err != nil {
		return err
	}
	if _, err := url.Parse(c.SearchURL); err != nil {
		return fmt.Errorf("invalid search_url: %w", err)
	}
	return nil
}

func (c Config) proxyURL() (*url.URL, error) {
	if c.Proxy == "" {
		return nil, nil
	}
	u, err := url.Parse(c.Proxy)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid proxy %q: scheme and host required", c.Proxy)
	}
	return u, nil
}

func (c Config) selectors() serp.Selectors {
	return serp.Selectors{
		Container: c.Selectors.Container,
		Title:     c.Selectors.Title,
		Link:      c.Selectors.Link,
		Snippet:   c.Selectors.Snippet,
		Image:     c.Selectors.Image,
	}.Merge(serp.GoogleSelectors)
}
