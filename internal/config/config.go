// Package config materializes the viper configuration into typed settings.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lepinkainen/shelfnotes/internal/llm"
)

// EnvPrefix is prepended to environment variable names bound by AutomaticEnv.
const EnvPrefix = "SHELFNOTES"

// Config is the full runtime configuration.
type Config struct {
	Server      Server
	Summaries   Summaries
	Cache       Cache
	HTTP        HTTP
	Breaker     Breaker
	GoogleBooks GoogleBooks
	OpenLibrary OpenLibrary
	LLM         llm.Config
	Covers      Covers
	AmazonTag   string
}

type Server struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

type Summaries struct {
	Dir string
}

type Cache struct {
	DBFile string
	TTL    time.Duration
}

// HTTP holds settings shared by all outbound provider clients.
type HTTP struct {
	Timeout time.Duration
}

type Breaker struct {
	ConsecutiveFailures uint32
	Cooldown            time.Duration
}

type GoogleBooks struct {
	APIKey    string
	BaseURL   string
	RateLimit float64
	Burst     int
}

type OpenLibrary struct {
	BaseURL           string
	CoversBaseURL     string
	RateLimit         float64
	Burst             int
	AuthorConcurrency int
}

type Covers struct {
	Enabled  bool
	MaxWidth int
	Refresh  bool
	// AllowedHosts extends the provider image hosts covers may come from.
	AllowedHosts []string
}

// SetDefaults registers every default value with viper.
func SetDefaults() {
	viper.SetDefault("server.addr", ":8000")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "120s")
	viper.SetDefault("server.shutdown_timeout", "10s")
	viper.SetDefault("server.cors_origins", []string{})

	viper.SetDefault("summaries.dir", "./summaries")

	viper.SetDefault("cache.dbfile", "./cache.db")
	viper.SetDefault("cache.ttl", "720h") // 30 days

	viper.SetDefault("http.timeout", "10s")
	viper.SetDefault("breaker.failures", 5)
	viper.SetDefault("breaker.cooldown", "30s")

	viper.SetDefault("googlebooks.apikey", "")
	viper.SetDefault("googlebooks.baseurl", "https://www.googleapis.com/books/v1")
	viper.SetDefault("googlebooks.rate", 5.0)
	viper.SetDefault("googlebooks.burst", 5)

	viper.SetDefault("openlibrary.baseurl", "https://openlibrary.org")
	viper.SetDefault("openlibrary.coversurl", "https://covers.openlibrary.org")
	viper.SetDefault("openlibrary.rate", 5.0)
	viper.SetDefault("openlibrary.burst", 5)
	viper.SetDefault("openlibrary.author_concurrency", 4)

	viper.SetDefault("llm.backend", llm.BackendOpenAI)
	viper.SetDefault("llm.model", "")
	viper.SetDefault("llm.timeout", "90s")
	viper.SetDefault("openai.apikey", "")
	viper.SetDefault("openai.baseurl", "")
	viper.SetDefault("vertex.project", "")
	viper.SetDefault("vertex.region", "us-central1")

	viper.SetDefault("covers.enabled", true)
	viper.SetDefault("covers.max_width", 600)
	viper.SetDefault("covers.refresh", false)
	viper.SetDefault("covers.allowed_hosts", []string{})

	viper.SetDefault("affiliate.amazon_tag", "")
}

// BindEnv enables SHELFNOTES_* variables and the conventional provider key names.
func BindEnv() error {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindings := map[string][]string{
		"googlebooks.apikey": {"GOOGLE_BOOKS_API_KEY", EnvPrefix + "_GOOGLEBOOKS_APIKEY"},
		"openai.apikey":      {"OPENAI_API_KEY", EnvPrefix + "_OPENAI_APIKEY"},
		"vertex.project":     {"GOOGLE_CLOUD_PROJECT", EnvPrefix + "_VERTEX_PROJECT"},
	}
	for key, envs := range bindings {
		if err := viper.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// Load reads the current viper state into a Config.
func Load() (*Config, error) {
	cfg := &Config{
		Server: Server{
			Addr:            viper.GetString("server.addr"),
			ReadTimeout:     viper.GetDuration("server.read_timeout"),
			WriteTimeout:    viper.GetDuration("server.write_timeout"),
			ShutdownTimeout: viper.GetDuration("server.shutdown_timeout"),
			CORSOrigins:     splitList(viper.GetStringSlice("server.cors_origins")),
		},
		Summaries: Summaries{Dir: viper.GetString("summaries.dir")},
		Cache: Cache{
			DBFile: viper.GetString("cache.dbfile"),
			TTL:    viper.GetDuration("cache.ttl"),
		},
		HTTP: HTTP{Timeout: viper.GetDuration("http.timeout")},
		Breaker: Breaker{
			ConsecutiveFailures: viper.GetUint32("breaker.failures"),
			Cooldown:            viper.GetDuration("breaker.cooldown"),
		},
		GoogleBooks: GoogleBooks{
			APIKey:    viper.GetString("googlebooks.apikey"),
			BaseURL:   viper.GetString("googlebooks.baseurl"),
			RateLimit: viper.GetFloat64("googlebooks.rate"),
			Burst:     viper.GetInt("googlebooks.burst"),
		},
		OpenLibrary: OpenLibrary{
			BaseURL:           viper.GetString("openlibrary.baseurl"),
			CoversBaseURL:     viper.GetString("openlibrary.coversurl"),
			RateLimit:         viper.GetFloat64("openlibrary.rate"),
			Burst:             viper.GetInt("openlibrary.burst"),
			AuthorConcurrency: viper.GetInt("openlibrary.author_concurrency"),
		},
		LLM: llm.Config{
			Backend:       viper.GetString("llm.backend"),
			Model:         viper.GetString("llm.model"),
			Timeout:       viper.GetDuration("llm.timeout"),
			OpenAIAPIKey:  viper.GetString("openai.apikey"),
			OpenAIBaseURL: viper.GetString("openai.baseurl"),
			VertexProject: viper.GetString("vertex.project"),
			VertexRegion:  viper.GetString("vertex.region"),
		},
		Covers: Covers{
			Enabled:  viper.GetBool("covers.enabled"),
			MaxWidth: viper.GetInt("covers.max_width"),
			Refresh:  viper.GetBool("covers.refresh"),

			AllowedHosts: splitList(viper.GetStringSlice("covers.allowed_hosts")),
		},
		AmazonTag: viper.GetString("affiliate.amazon_tag"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Server.Addr == "":
		return fmt.Errorf("config: server.addr must not be empty")
	case c.Summaries.Dir == "":
		return fmt.Errorf("config: summaries.dir must not be empty")
	case c.Cache.TTL < 0:
		return fmt.Errorf("config: cache.ttl must not be negative")
	case c.HTTP.Timeout <= 0:
		return fmt.Errorf("config: http.timeout must be positive")
	}
	return nil
}

// splitList accepts both YAML lists and comma-separated environment values.
func splitList(values []string) []string {
	out := []string{}
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
