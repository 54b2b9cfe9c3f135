package common

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	OCR        OCRConfig        `yaml:"ocr"`
	Quality    QualityConfig    `yaml:"quality"`
	Lines      LinesConfig      `yaml:"lines"`
	Preprocess PreprocessConfig `yaml:"preprocess"`
	LLM        LLMConfig        `yaml:"llm"`
	Cache      CacheConfig      `yaml:"cache"`
	Auth       AuthConfig       `yaml:"auth"`
	Retention  RetentionConfig  `yaml:"retention"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr       string        `yaml:"http_addr"`
	GRPCAddr       string        `yaml:"grpc_addr"`
	MaxUploadMB    int           `yaml:"max_upload_mb"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
}

// DatabaseConfig holds database-related configuration.
// An empty DSN with an empty SQLitePath disables persistence.
type DatabaseConfig struct {
	DSN              string        `yaml:"dsn"`
	SQLitePath       string        `yaml:"sqlite_path"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine      string `yaml:"engine"`
	Tesseract   string `yaml:"tesseract"`
	Pdftoppm    string `yaml:"pdftoppm"`
	Lang        string `yaml:"lang"`
	TessdataDir string `yaml:"tessdata_dir"`
	PSM         int    `yaml:"psm"`
	OEM         int    `yaml:"oem"`
	MinDPI      int    `yaml:"min_dpi"`
}

// QualityConfig holds the thresholds that decide whether a direct text layer is usable.
type QualityConfig struct {
	MinDirectChars     int     `yaml:"min_direct_chars"`
	MinTextChars       int     `yaml:"min_text_chars"`
	MaxConfusableRatio float64 `yaml:"max_confusable_ratio"`
	MinUniqueRatio     float64 `yaml:"min_unique_ratio"`
	DiversityWindow    int     `yaml:"diversity_window"`
	MinCyrillicRatio   float64 `yaml:"min_cyrillic_ratio"`
}

// LinesConfig holds OCR line grouping thresholds.
type LinesConfig struct {
	MinTolerance    float64 `yaml:"min_tolerance"`
	ToleranceFactor float64 `yaml:"tolerance_factor"`
	WordGapFactor   float64 `yaml:"word_gap_factor"`
	MinConfidence   float64 `yaml:"min_confidence"`
}

// PreprocessConfig holds image cleanup parameters.
type PreprocessConfig struct {
	TargetWidth    int     `yaml:"target_width"`
	MaxSide        int     `yaml:"max_side"`
	CLAHEClip      float64 `yaml:"clahe_clip"`
	CLAHETiles     int     `yaml:"clahe_tiles"`
	UnsharpAmount  float64 `yaml:"unsharp_amount"`
	UnsharpSigma   float64 `yaml:"unsharp_sigma"`
	DeskewMaxAngle float64 `yaml:"deskew_max_angle"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider        string        `yaml:"provider"`
	Model           string        `yaml:"model"`
	OllamaHost      string        `yaml:"ollama_host"`
	OpenAIAPIKey    string        `yaml:"openai_api_key"`
	OpenAIBaseURL   string        `yaml:"openai_base_url"`
	AnthropicAPIKey string        `yaml:"anthropic_api_key"`
	Temperature     float32       `yaml:"temperature"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxChars        int           `yaml:"max_chars"`
}

// CacheConfig holds result cache configuration. Empty Addr disables the cache.
type CacheConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// AuthConfig holds API authentication settings. Empty secret disables auth.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// RetentionConfig controls how long stored runs are kept.
type RetentionConfig struct {
	MaxAge   time.Duration `yaml:"max_age"`
	Schedule string        `yaml:"schedule"`
}

// LoadConfig loads configuration from environment variables, then applies
// the YAML file named by CONFIG_FILE on top when it is set.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
			GRPCAddr:       getEnv("GRPC_ADDR", ":9090"),
			MaxUploadMB:    getEnvAsInt("MAX_UPLOAD_MB", 10),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 10*time.Minute),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "text"),
		},
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			SQLitePath:       getEnv("DB_SQLITE_PATH", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		OCR: OCRConfig{
			Engine:      getEnv("OCR_ENGINE", "tesseract"),
			Tesseract:   getEnv("TESSERACT", "tesseract"),
			Pdftoppm:    getEnv("PDFTOPPM", "pdftoppm"),
			Lang:        getEnv("TESSERACT_LANG", "rus+eng"),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
			PSM:         getEnvAsInt("OCR_PSM", 0),
			OEM:         getEnvAsInt("OCR_OEM", 0),
			MinDPI:      getEnvAsInt("OCR_MIN_DPI", 300),
		},
		Quality: QualityConfig{
			MinDirectChars:     getEnvAsInt("MIN_DIRECT_CHARS", 25),
			MinTextChars:       getEnvAsInt("MIN_TEXT_CHARS", 20),
			MaxConfusableRatio: getEnvAsFloat64("MAX_CONFUSABLE_RATIO", 0.5),
			MinUniqueRatio:     getEnvAsFloat64("MIN_UNIQUE_RATIO", 0.20),
			DiversityWindow:    getEnvAsInt("DIVERSITY_WINDOW", 80),
			MinCyrillicRatio:   getEnvAsFloat64("MIN_CYRILLIC_RATIO", 0.02),
		},
		Lines: LinesConfig{
			MinTolerance:    getEnvAsFloat64("LINE_MIN_TOLERANCE", 8),
			ToleranceFactor: getEnvAsFloat64("LINE_TOLERANCE_FACTOR", 0.6),
			WordGapFactor:   getEnvAsFloat64("WORD_GAP_FACTOR", 0.7),
			MinConfidence:   getEnvAsFloat64("OCR_MIN_CONFIDENCE", 0),
		},
		Preprocess: PreprocessConfig{
			TargetWidth:    getEnvAsInt("PREP_TARGET_WIDTH", 1800),
			MaxSide:        getEnvAsInt("PREP_MAX_SIDE", 2200),
			CLAHEClip:      getEnvAsFloat64("CLAHE_CLIP", 2.0),
			CLAHETiles:     getEnvAsInt("CLAHE_TILES", 8),
			UnsharpAmount:  getEnvAsFloat64("UNSHARP_AMOUNT", 1.5),
			UnsharpSigma:   getEnvAsFloat64("UNSHARP_SIGMA", 1.0),
			DeskewMaxAngle: getEnvAsFloat64("DESKEW_MAX_ANGLE", 10),
		},
		LLM: LLMConfig{
			Provider:        getEnv("LLM_PROVIDER", "ollama"),
			Model:           getEnv("LLM_MODEL", "gemma3:4b"),
			OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
			OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
			AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
			Temperature:     getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:         getEnvAsDuration("LLM_TIMEOUT", 120*time.Second),
			MaxChars:        getEnvAsInt("LLM_MAX_CHARS", 2000),
		},
		Cache: CacheConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      getEnvAsDuration("CACHE_TTL", 24*time.Hour),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		Retention: RetentionConfig{
			MaxAge:   getEnvAsDuration("RETENTION", 30*24*time.Hour),
			Schedule: getEnv("RETENTION_SCHEDULE", "0 3 * * *"),
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// ApplyFile overlays the non-zero values of a YAML file onto c.
func (c *Config) ApplyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return NewAppError("CONFIG_ERROR", "read config file", err)
	}
	// yaml.v3 leaves fields absent from the document untouched
	if err := yaml.Unmarshal(b, c); err != nil {
		return NewAppError("CONFIG_ERROR", "parse config file "+path, err)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("HTTP_ADDR", c.Server.HTTPAddr, Required)
	v.Field("GRPC_ADDR", c.Server.GRPCAddr, Required)
	v.Field("MAX_UPLOAD_MB", c.Server.MaxUploadMB, IntRange(1, 100))
	v.Field("OCR_MIN_DPI", c.OCR.MinDPI, IntRange(72, 600))
	v.Field("LLM_MAX_CHARS", c.LLM.MaxChars, IntRange(200, 200000))
	v.Field("CLAHE_TILES", c.Preprocess.CLAHETiles, IntRange(1, 64))
	v.Field("DIVERSITY_WINDOW", c.Quality.DiversityWindow, IntRange(0, 100000))
	v.Field("MAX_CONFUSABLE_RATIO", c.Quality.MaxConfusableRatio, FloatRange(0, 1))
	v.Field("MIN_UNIQUE_RATIO", c.Quality.MinUniqueRatio, FloatRange(0, 1))
	v.Field("MIN_CYRILLIC_RATIO", c.Quality.MinCyrillicRatio, FloatRange(0, 1))
	v.Field("OCR_MIN_CONFIDENCE", c.Lines.MinConfidence, FloatRange(0, 1))
	v.Field("LLM_PROVIDER", c.LLM.Provider, OneOf("ollama", "openai", "anthropic"))

	switch strings.ToLower(c.LLM.Provider) {
	case "openai":
		if c.LLM.OpenAIAPIKey == "" && c.LLM.OpenAIBaseURL == "" {
			v.Field("OPENAI_API_KEY", c.LLM.OpenAIAPIKey, Required)
		}
	case "anthropic":
		v.Field("ANTHROPIC_API_KEY", c.LLM.AnthropicAPIKey, Required)
	}
	if c.Database.DSN != "" && c.Database.SQLitePath != "" {
		return NewAppError("CONFIG_ERROR", "DB_URL and DB_SQLITE_PATH are mutually exclusive", ErrInvalidInput)
	}
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

// LogLevel parses the configured level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Server.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// String prints the config without secrets.
func (c *Config) String() string {
	return fmt.Sprintf("http=%s grpc=%s llm=%s/%s ocr=%s(%s) db=%t cache=%t auth=%t",
		c.Server.HTTPAddr, c.Server.GRPCAddr, c.LLM.Provider, c.LLM.Model,
		c.OCR.Engine, c.OCR.Lang,
		c.Database.DSN != "" || c.Database.SQLitePath != "",
		c.Cache.Addr != "", c.Auth.JWTSecret != "")
}
