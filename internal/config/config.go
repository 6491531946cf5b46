package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	FactoryRegex   = "regex"
	FactoryDefault = "default"

	ParagraphWhitespace = "whitespace"
	ParagraphChunking   = "chunking"
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	DBSchema          string        `mapstructure:"DB_SCHEMA"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	AdmissionCacheTTL time.Duration `mapstructure:"ADMISSION_CACHE_TTL"`
	DocCachePath      string        `mapstructure:"DOC_CACHE_PATH"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	NoteFactory       string        `mapstructure:"NOTE_FACTORY"`
	GapFilterEmpty    bool          `mapstructure:"GAP_FILTER_EMPTY"`
	SectionFilterEnum bool          `mapstructure:"SECTION_FILTER_ENUMS"`
	ParagraphStrategy string        `mapstructure:"PARAGRAPH_STRATEGY"`
	ParaMinSentLen    int           `mapstructure:"PARA_MIN_SENT_LEN"`
	ParaMinListMatch  int           `mapstructure:"PARA_MIN_LIST_MATCHES"`
	ParaMaxSentList   int           `mapstructure:"PARA_MAX_SENT_LIST_LEN"`
	ParaIncludeHeader bool          `mapstructure:"PARA_INCLUDE_HEADERS"`
	ParaFilterText    []string      `mapstructure:"PARA_FILTER_SENT_TEXT"`
	PrimeWorkers      int           `mapstructure:"PRIME_WORKERS"`
	NoteCategoryMap   []string      `mapstructure:"NOTE_CATEGORY_MAP"`
	RateLimitRPS      float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"DB_SCHEMA", "REDIS_URL", "ADMISSION_CACHE_TTL", "DOC_CACHE_PATH",
	"CORS_ORIGINS", "NOTE_FACTORY", "GAP_FILTER_EMPTY", "SECTION_FILTER_ENUMS",
	"PARAGRAPH_STRATEGY", "PARA_MIN_SENT_LEN", "PARA_MIN_LIST_MATCHES",
	"PARA_MAX_SENT_LIST_LEN", "PARA_INCLUDE_HEADERS", "PARA_FILTER_SENT_TEXT",
	"PRIME_WORKERS", "NOTE_CATEGORY_MAP", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"REQUEST_TIMEOUT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DB_SCHEMA", "mimiciii")
	v.SetDefault("ADMISSION_CACHE_TTL", "1h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("NOTE_FACTORY", FactoryRegex)
	v.SetDefault("GAP_FILTER_EMPTY", false)
	v.SetDefault("SECTION_FILTER_ENUMS", true)
	v.SetDefault("PARAGRAPH_STRATEGY", ParagraphChunking)
	v.SetDefault("PARA_MIN_SENT_LEN", 1)
	v.SetDefault("PARA_MIN_LIST_MATCHES", 3)
	v.SetDefault("PARA_MAX_SENT_LIST_LEN", 1000)
	v.SetDefault("PARA_INCLUDE_HEADERS", false)
	v.SetDefault("PARA_FILTER_SENT_TEXT", ".")
	v.SetDefault("PRIME_WORKERS", 4)
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("REQUEST_TIMEOUT", "30s")

	// Unmarshal only sees environment values for bound keys.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// A missing .env file is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Lists set through the environment arrive as one comma separated string.
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.ParaFilterText = splitList(v.GetString("PARA_FILTER_SENT_TEXT"))
	cfg.NoteCategoryMap = splitList(v.GetString("NOTE_CATEGORY_MAP"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Paragraph holds the paragraph factory settings.
type Paragraph struct {
	Strategy       string
	MinSentLen     int
	MinListMatches int
	MaxSentListLen int
	IncludeHeaders bool
	FilterSentText map[string]bool
}

func (c *Config) ParagraphConfig() Paragraph {
	p := Paragraph{
		Strategy:       c.ParagraphStrategy,
		MinSentLen:     c.ParaMinSentLen,
		MinListMatches: c.ParaMinListMatch,
		MaxSentListLen: c.ParaMaxSentList,
		IncludeHeaders: c.ParaIncludeHeader,
		FilterSentText: make(map[string]bool, len(c.ParaFilterText)),
	}
	for _, s := range c.ParaFilterText {
		p.FilterSentText[s] = true
	}
	return p
}

// Validate rejects unknown strategies and negative limits.
func (c *Config) Validate() error {
	switch c.NoteFactory {
	case FactoryRegex, FactoryDefault:
	default:
		return fmt.Errorf("NOTE_FACTORY must be %q or %q, got %q", FactoryRegex, FactoryDefault, c.NoteFactory)
	}
	switch c.ParagraphStrategy {
	case ParagraphWhitespace, ParagraphChunking:
	default:
		return fmt.Errorf("PARAGRAPH_STRATEGY must be %q or %q, got %q",
			ParagraphWhitespace, ParagraphChunking, c.ParagraphStrategy)
	}
	for name, n := range map[string]int{
		"PARA_MIN_SENT_LEN":      c.ParaMinSentLen,
		"PARA_MIN_LIST_MATCHES":  c.ParaMinListMatch,
		"PARA_MAX_SENT_LIST_LEN": c.ParaMaxSentList,
		"PRIME_WORKERS":          c.PrimeWorkers,
		"DB_MAX_CONNS":           int(c.DBMaxConns),
		"DB_MIN_CONNS":           int(c.DBMinConns),
		"RATE_LIMIT_BURST":       c.RateLimitBurst,
	} {
		if n < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, n)
		}
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative, got %g", c.RateLimitRPS)
	}
	if c.AdmissionCacheTTL < 0 {
		return fmt.Errorf("ADMISSION_CACHE_TTL must not be negative, got %s", c.AdmissionCacheTTL)
	}
	return nil
}
