// Package config loads server settings from defaults, an optional YAML file and the
// environment, in increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete server configuration
type Config struct {
	Port      string `yaml:"port"`
	DataDir   string `yaml:"data_dir"`
	PhotosDir string `yaml:"photos_dir"`
	LogLevel  string `yaml:"log_level"`
	// Profiling mounts the pprof handlers under /debug/pprof
	Profiling bool `yaml:"enable_profiling"`

	Source       SourceConfig       `yaml:"source"`
	Google       GoogleConfig       `yaml:"google"`
	Redis        RedisConfig        `yaml:"redis"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Cache        CacheConfig        `yaml:"cache"`
	Distribution DistributionConfig `yaml:"distribution"`
	Security     SecurityConfig     `yaml:"security"`
	Watch        WatchConfig        `yaml:"watch"`
}

type SourceConfig struct {
	// Primary is mock, google or local
	Primary         string `yaml:"primary"`
	EnableFallback  bool   `yaml:"enable_fallback"`
	MockPerCategory int    `yaml:"mock_per_category"`
}

type GoogleConfig struct {
	ClientID          string        `yaml:"client_id"`
	ClientSecret      string        `yaml:"client_secret"`
	RefreshToken      string        `yaml:"refresh_token"`
	TokenURL          string        `yaml:"token_url"`
	APIBase           string        `yaml:"api_base"`
	TokenExpiryBuffer time.Duration `yaml:"token_expiry_buffer"`
	// Albums maps a category to its Google Photos album id
	Albums map[string]string `yaml:"albums"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RateLimitConfig struct {
	PerMinute       int `yaml:"per_minute"`
	ImagePerMinute  int `yaml:"image_per_minute"`
	SearchPerMinute int `yaml:"search_per_minute"`
}

type CacheConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	MaxEntries      int           `yaml:"max_entries"`
	ImageTTL        time.Duration `yaml:"image_ttl"`
	ImageCacheSize  int           `yaml:"image_cache_size"`
	ImageCacheBytes int64         `yaml:"image_cache_bytes"`
}

type DistributionConfig struct {
	Columns      int     `yaml:"columns"`
	ColumnWidth  float64 `yaml:"column_width"`
	Margin       float64 `yaml:"margin"`
	TargetBuffer float64 `yaml:"target_buffer"`
	Interleave   bool    `yaml:"interleave"`
}

type SecurityConfig struct {
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	EnableHSTS     bool          `yaml:"enable_hsts"`
	CSPReportURI   string        `yaml:"csp_report_uri"`
}

type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Categories with an album id setting, in gallery order
var Categories = []string{"portraits", "landscape", "architecture", "abstract", "wildlife"}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Port:      "8080",
		DataDir:   "./data",
		PhotosDir: "./photos",
		LogLevel:  "info",
		Source: SourceConfig{
			Primary:         "mock",
			EnableFallback:  true,
			MockPerCategory: 8,
		},
		Google: GoogleConfig{
			TokenExpiryBuffer: 55 * time.Minute,
			Albums:            map[string]string{},
		},
		RateLimit: RateLimitConfig{
			PerMinute:       120,
			ImagePerMinute:  300,
			SearchPerMinute: 30,
		},
		Cache: CacheConfig{
			TTL:             5 * time.Minute,
			MaxEntries:      1000,
			ImageTTL:        time.Hour,
			ImageCacheSize:  500,
			ImageCacheBytes: 256 << 20,
		},
		Distribution: DistributionConfig{
			Columns:      3,
			ColumnWidth:  300,
			Margin:       24,
			TargetBuffer: 1.05,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173", "http://localhost:8080"},
			RequestTimeout: 30 * time.Second,
		},
		Watch: WatchConfig{
			Debounce: 2 * time.Second,
		},
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.decodeYAML(data); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decodeYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if c.Google.Albums == nil {
		c.Google.Albums = map[string]string{}
	}
	return nil
}

type lookupFunc func(string) (string, bool)

type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (r *envReader) get(key string) (string, bool) {
	v, ok := r.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *envReader) integer(key string, dst *int) {
	if v, ok := r.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %q is not an integer", key, v))
			return
		}
		*dst = n
	}
}

func (r *envReader) int64(key string, dst *int64) {
	if v, ok := r.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %q is not an integer", key, v))
			return
		}
		*dst = n
	}
}

func (r *envReader) boolean(key string, dst *bool) {
	if v, ok := r.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
			return
		}
		*dst = b
	}
}

// duration accepts Go durations ("90s") or plain seconds ("90")
func (r *envReader) duration(key string, dst *time.Duration) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return
	}
	*dst = d
}

func (r *envReader) list(key string, dst *[]string) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (c *Config) applyEnv(lookup lookupFunc) error {
	r := &envReader{lookup: lookup}

	r.str("PORT", &c.Port)
	r.str("DATA_DIR", &c.DataDir)
	r.str("PHOTOS_DIR", &c.PhotosDir)
	r.str("LOG_LEVEL", &c.LogLevel)
	r.boolean("ENABLE_PROFILING", &c.Profiling)

	r.str("PHOTO_SOURCE", &c.Source.Primary)
	r.boolean("ENABLE_FALLBACK", &c.Source.EnableFallback)
	r.integer("MOCK_PHOTOS_PER_CATEGORY", &c.Source.MockPerCategory)

	r.str("GOOGLE_CLIENT_ID", &c.Google.ClientID)
	r.str("GOOGLE_CLIENT_SECRET", &c.Google.ClientSecret)
	r.str("GOOGLE_REFRESH_TOKEN", &c.Google.RefreshToken)
	r.str("GOOGLE_TOKEN_URL", &c.Google.TokenURL)
	r.str("GOOGLE_PHOTOS_API", &c.Google.APIBase)
	r.duration("TOKEN_EXPIRY_BUFFER", &c.Google.TokenExpiryBuffer)
	for _, category := range Categories {
		var id string
		r.str(strings.ToUpper(category)+"_ALBUM_ID", &id)
		if id != "" {
			c.Google.Albums[category] = id
		}
	}

	r.str("REDIS_ADDR", &c.Redis.Addr)
	r.str("REDIS_PASSWORD", &c.Redis.Password)
	r.integer("REDIS_DB", &c.Redis.DB)

	r.integer("RATE_LIMIT_PER_MIN", &c.RateLimit.PerMinute)
	r.integer("IMAGE_RATE_LIMIT_PER_MIN", &c.RateLimit.ImagePerMinute)
	r.integer("SEARCH_RATE_LIMIT_PER_MIN", &c.RateLimit.SearchPerMinute)

	r.duration("CACHE_TTL", &c.Cache.TTL)
	r.integer("CACHE_MAX_ENTRIES", &c.Cache.MaxEntries)
	r.duration("IMAGE_CACHE_TTL", &c.Cache.ImageTTL)
	r.integer("IMAGE_CACHE_SIZE", &c.Cache.ImageCacheSize)
	r.int64("IMAGE_CACHE_BYTES", &c.Cache.ImageCacheBytes)

	r.integer("DISTRIBUTION_COLUMNS", &c.Distribution.Columns)
	r.boolean("DISTRIBUTION_INTERLEAVE", &c.Distribution.Interleave)

	r.list("ALLOWED_ORIGINS", &c.Security.AllowedOrigins)
	r.duration("REQUEST_TIMEOUT", &c.Security.RequestTimeout)
	r.boolean("ENABLE_HSTS", &c.Security.EnableHSTS)
	r.str("CSP_REPORT_URI", &c.Security.CSPReportURI)

	r.boolean("WATCH_PHOTOS", &c.Watch.Enabled)
	r.duration("WATCH_DEBOUNCE", &c.Watch.Debounce)

	return errors.Join(r.errs...)
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	var errs []error

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("port %q is not a valid TCP port", c.Port))
	}
	switch c.Source.Primary {
	case "mock", "google", "local":
	default:
		errs = append(errs, fmt.Errorf("photo source %q must be mock, google or local", c.Source.Primary))
	}
	if c.Distribution.Columns < 1 || c.Distribution.Columns > 6 {
		errs = append(errs, fmt.Errorf("distribution columns %d must be between 1 and 6", c.Distribution.Columns))
	}
	if c.RateLimit.PerMinute <= 0 {
		errs = append(errs, fmt.Errorf("rate limit per minute must be positive"))
	}
	if c.Cache.TTL <= 0 || c.Cache.ImageTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache TTLs must be positive"))
	}
	for category := range c.Google.Albums {
		if !isCategory(category) {
			errs = append(errs, fmt.Errorf("album configured for unknown category %q", category))
		}
	}

	return errors.Join(errs...)
}

func isCategory(s string) bool {
	for _, c := range Categories {
		if c == s {
			return true
		}
	}
	return false
}

// GoogleConfigured reports whether all three OAuth credentials are set
func (c *Config) GoogleConfigured() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != "" && c.Google.RefreshToken != ""
}
