package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	SecretKey string
	Server    HTTPServerConfig `json:"server"`
	LLM       LLMConfig        `json:"llm"`
	Database  DatabaseConfig   `json:"database"`
	Renderer  RendererConfig   `json:"renderer"`
	RateLimit RateLimitConfig  `json:"rate_limit"`
	CORS      CORSConfig       `json:"cors"`
	Archive   ArchiveConfig    `json:"archive"`
	Metrics   MetricsConfig    `json:"metrics"`
	UI        UIConfig         `json:"ui"`
}

type HTTPServerConfig struct {
	Host         string        `json:"host" default:"0.0.0.0"`
	Port         int           `json:"port" default:"8000"`
	ReadTimeout  time.Duration `json:"read_timeout" default:"30s"`
	WriteTimeout time.Duration `json:"write_timeout" default:"5m"`

	// TrustProxyHeaders makes X-Forwarded-For/X-Real-IP the caller address.
	// Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool `json:"trust_proxy_headers" default:"false"`
}

type LLMConfig struct {
	Provider string        `json:"provider" default:"gemini"`
	APIKey   string        `json:"api_key" required:"true"`
	BaseURL  string        `json:"base_url"`
	Model    string        `json:"model"`
	Timeout  time.Duration `json:"timeout" default:"2m"`
	Fallback string        `json:"fallback" default:"reject"`
}

type DatabaseConfig struct {
	URL           string `json:"url" default:"sqlite:///./diagrams.db"`
	MongoDatabase string `json:"mongo_database" default:"diagrammer"`
}

// IsMongo reports whether URL points at MongoDB rather than a SQL database.
func (c DatabaseConfig) IsMongo() bool {
	return strings.HasPrefix(c.URL, "mongodb://") || strings.HasPrefix(c.URL, "mongodb+srv://")
}

type RendererConfig struct {
	DotBinary   string        `json:"dot_binary" default:"dot"`
	SearchPath  []string      `json:"search_path"`
	Timeout     time.Duration `json:"timeout" default:"60s"`
	CatalogFile string        `json:"catalog_file"`
}

type RateLimitConfig struct {
	Limits string `json:"limits" default:"200/day,50/hour,20/minute"`
}

type CORSConfig struct {
	Origins []string `json:"origins"`
}

type ArchiveConfig struct {
	Dir string `json:"dir"`
}

type MetricsConfig struct {
	Addr string `json:"addr"`
}

type UIConfig struct {
	APIURL string `json:"api_url" default:"http://localhost:8000"`
	Port   int    `json:"port" default:"8501"`
}

var defaultGraphvizPath = []string{"/usr/local/bin", "/opt/homebrew/bin", "/usr/bin"}

// Load reads .env (when present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	var errs []error
	port, err := getInt("SERVER_PORT", 8000)
	errs = append(errs, err)
	uiPort, err := getInt("UI_PORT", 8501)
	errs = append(errs, err)
	llmTimeout, err := getDuration("LLM_TIMEOUT", 2*time.Minute)
	errs = append(errs, err)
	renderTimeout, err := getDuration("RENDER_TIMEOUT", 60*time.Second)
	errs = append(errs, err)
	trustProxy, err := getBool("TRUST_PROXY_HEADERS", false)
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	cfg := &Config{
		SecretKey: getEnv("SECRET_KEY", ""),
		Server: HTTPServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         port,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: llmTimeout + renderTimeout + 30*time.Second,

			TrustProxyHeaders: trustProxy,
		},
		LLM: LLMConfig{
			Provider: strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
			APIKey:   getEnv("LLM_API_KEY", getEnv("GEMINI_API_KEY", "")),
			BaseURL:  getEnv("LLM_BASE_URL", ""),
			Model:    getEnv("LLM_MODEL", ""),
			Timeout:  llmTimeout,
			Fallback: getEnv("LLM_FALLBACK", "reject"),
		},
		Database: DatabaseConfig{
			URL:           getEnv("DATABASE_URL", "sqlite:///./diagrams.db"),
			MongoDatabase: getEnv("MONGO_DB", "diagrammer"),
		},
		Renderer: RendererConfig{
			DotBinary:   getEnv("DOT_BINARY", "dot"),
			SearchPath:  getList("GRAPHVIZ_PATH", string(os.PathListSeparator), defaultGraphvizPath),
			Timeout:     renderTimeout,
			CatalogFile: getEnv("CATALOG_FILE", ""),
		},
		RateLimit: RateLimitConfig{
			Limits: getEnv("RATE_LIMITS", "200/day,50/hour,20/minute"),
		},
		CORS: CORSConfig{
			Origins: getList("CORS_ORIGINS", ",", []string{"http://localhost:8501", "http://127.0.0.1:8501"}),
		},
		Archive: ArchiveConfig{
			Dir: getEnv("DIAGRAM_ARCHIVE_DIR", ""),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ""),
		},
		UI: UIConfig{
			APIURL: strings.TrimRight(getEnv("API_URL", "http://localhost:8000"), "/"),
			Port:   uiPort,
		},
	}
	if cfg.Archive.Dir != "" {
		cfg.Archive.Dir = filepath.Clean(cfg.Archive.Dir)
	}
	return cfg, nil
}

// ValidateServer checks what the API process cannot start without.
func (c *Config) ValidateServer() error {
	if c.LLM.APIKey == "" {
		return errors.New("GEMINI_API_KEY (or LLM_API_KEY) env variable is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

// getDuration accepts Go durations ("90s") or a plain number of seconds.
func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getList(key, sep string, defaultValue []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(v, sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
