package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Request data sources, in the order they may appear in DataSources.
const (
	SourceKwargs  = "kwargs"
	SourceGET     = "GET"
	SourcePOST    = "POST"
	SourceJSON    = "json"
	SourceHeaders = "headers"
)

// AllowAll enables creation for every model in a creation allow-list.
const AllowAll = "*"

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Store     StoreConfig
	ReadCache ReadCacheConfig
	Dispatch  DispatchConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedHeaders []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StoreConfig selects the record store backing the dispatcher.
type StoreConfig struct {
	Driver string
}

// ReadCacheConfig governs caching of rendered read payloads.
type ReadCacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// DispatchConfig holds the knobs consumed by the dispatch core.
type DispatchConfig struct {
	Debug                      bool
	DefaultModelStatus         string
	DefaultModelVisibility     string
	SearchQueryParam           string
	SearchExcludeParam         string
	SearchMinLength            int
	SearchBlockedFields        []string
	DataSources                []string
	RemoveNewlines             bool
	ProtectedFields            []string
	BlockedModels              []string
	BlockedNamespaces          []string
	AllowFKCreationModels      []string
	AllowRelatedCreationModels []string
	MaxDepth                   int
	UserModel                  string
	FamilyField                string
}

// AllowsFKCreation reports whether new records of model may be created while
// resolving a foreign key.
func (d DispatchConfig) AllowsFKCreation(model string) bool {
	return allowed(d.AllowFKCreationModels, model)
}

// AllowsRelatedCreation reports whether new records of model may be created
// while resolving a many-relation.
func (d DispatchConfig) AllowsRelatedCreation(model string) bool {
	return allowed(d.AllowRelatedCreationModels, model)
}

func allowed(list []string, model string) bool {
	for _, entry := range list {
		if entry == AllowAll || strings.EqualFold(entry, model) {
			return true
		}
	}
	return false
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS")),
		AllowedHeaders: splitAndTrim(v.GetString("ALLOWED_HEADERS")),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Store = StoreConfig{Driver: strings.ToLower(v.GetString("STORE_DRIVER"))}

	cfg.ReadCache = ReadCacheConfig{
		Enabled: v.GetBool("ENABLE_READ_CACHE"),
		TTL:     parseDuration(v.GetString("READ_CACHE_TTL"), time.Minute),
	}

	cfg.Dispatch = DispatchConfig{
		Debug:                      v.GetBool("AJAX_DEBUG"),
		DefaultModelStatus:         v.GetString("DEFAULT_MODEL_STATUS"),
		DefaultModelVisibility:     v.GetString("DEFAULT_MODEL_VISIBILITY"),
		SearchQueryParam:           v.GetString("SEARCH_QUERY_CHARACTER"),
		SearchExcludeParam:         v.GetString("SEARCH_EXCLUDE_CHARACTER"),
		SearchMinLength:            v.GetInt("SEARCH_MIN_LENGTH"),
		SearchBlockedFields:        splitAndTrim(v.GetString("SEARCH_BLOCKED_FIELDS")),
		DataSources:                splitAndTrim(v.GetString("AJAX_DEFAULT_DATA_SOURCES")),
		RemoveNewlines:             v.GetBool("AJAX_RENDER_REMOVE_NEWLINES"),
		ProtectedFields:            splitAndTrim(v.GetString("AJAX_PROTECTED_FIELDS")),
		BlockedModels:              splitAndTrim(v.GetString("AJAX_BLOCKED_MODELS")),
		BlockedNamespaces:          splitAndTrim(v.GetString("AJAX_BLOCKED_NAMESPACES")),
		AllowFKCreationModels:      splitAndTrim(v.GetString("AJAX_ALLOW_FK_CREATION_MODELS")),
		AllowRelatedCreationModels: splitAndTrim(v.GetString("AJAX_ALLOW_RELATED_CREATION_MODELS")),
		MaxDepth:                   v.GetInt("AJAX_MAX_DEPTH_RECURSION"),
		UserModel:                  v.GetString("AJAX_USER_MODEL"),
		FamilyField:                v.GetString("AJAX_FAMILY_FIELD"),
	}

	return cfg
}

// Validate checks settings that would otherwise fail at request time.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Dispatch.MaxDepth <= 0 {
		return fmt.Errorf("AJAX_MAX_DEPTH_RECURSION must be positive, got %d", c.Dispatch.MaxDepth)
	}
	for _, source := range c.Dispatch.DataSources {
		switch source {
		case SourceKwargs, SourceGET, SourcePOST, SourceJSON, SourceHeaders:
		default:
			return fmt.Errorf("unknown data source %q in AJAX_DEFAULT_DATA_SOURCES", source)
		}
	}
	if c.Dispatch.SearchQueryParam == "" || c.Dispatch.SearchExcludeParam == "" {
		return fmt.Errorf("search query and exclude parameters must be set")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "dispatch")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("ALLOWED_HEADERS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORE_DRIVER", StoreMemory)
	v.SetDefault("ENABLE_READ_CACHE", false)
	v.SetDefault("READ_CACHE_TTL", "1m")

	v.SetDefault("AJAX_DEBUG", false)
	v.SetDefault("DEFAULT_MODEL_STATUS", "p")
	v.SetDefault("DEFAULT_MODEL_VISIBILITY", "c")
	v.SetDefault("SEARCH_QUERY_CHARACTER", "q")
	v.SetDefault("SEARCH_EXCLUDE_CHARACTER", "exclude")
	v.SetDefault("SEARCH_MIN_LENGTH", 1)
	v.SetDefault("SEARCH_BLOCKED_FIELDS", "")
	v.SetDefault("AJAX_DEFAULT_DATA_SOURCES", "kwargs,GET,POST,json,headers")
	v.SetDefault("AJAX_RENDER_REMOVE_NEWLINES", false)
	v.SetDefault("AJAX_PROTECTED_FIELDS", "")
	v.SetDefault("AJAX_BLOCKED_MODELS", "")
	v.SetDefault("AJAX_BLOCKED_NAMESPACES", "framework")
	v.SetDefault("AJAX_ALLOW_FK_CREATION_MODELS", "")
	v.SetDefault("AJAX_ALLOW_RELATED_CREATION_MODELS", "")
	v.SetDefault("AJAX_MAX_DEPTH_RECURSION", 3)
	v.SetDefault("AJAX_USER_MODEL", "user")
	v.SetDefault("AJAX_FAMILY_FIELD", "family")
}

// Defaults returns a configuration populated only from built-in defaults.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	return fromViper(v)
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
