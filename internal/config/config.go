package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	App       AppConfig
	Cache     CacheConfig
	Storage   StorageConfig
	Analytics AnalyticsConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the connection string, preferring an explicit URL.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type AppConfig struct {
	UploadDir string
	DataDir   string
	LogLevel  string
}

type CacheConfig struct {
	Enabled             bool
	RedisURL            string
	RedisHost           string
	RedisPort           string
	RedisPassword       string
	RedisDB             int
	DashboardTTLSeconds int
}

// StorageConfig points at the S3-compatible bucket that receives run exports.
type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	Prefix    string
}

// ScoringWeights are the composite score weights. They must sum to 1.
type ScoringWeights struct {
	Margin     float64
	Turnover   float64
	Sales      float64
	Efficiency float64
}

// Sum returns the total of all weights.
func (w ScoringWeights) Sum() float64 {
	return w.Margin + w.Turnover + w.Sales + w.Efficiency
}

// AnalyticsConfig holds every named threshold and tuning value consumed by the engine.
type AnalyticsConfig struct {
	// Alert thresholds
	LowProfitMargin        float64
	LowStockTurnover       float64
	HighInventoryValue     float64
	AnomalyScoreThreshold  float64
	PoorPerformanceScore   float64
	MaxHighInventoryAlerts int

	// Scoring
	Weights ScoringWeights

	// Anomaly detection
	Contamination     float64
	AnomalySeed       uint64
	AnomalyTrees      int
	AnomalySampleSize int
	AnomalyMinSamples int

	// Inventory
	LeadTimeDays          float64
	SafetyStockMultiplier float64
	TargetSupplyDays      float64
	OverstockTurnover     float64
	UnderstockTurnover    float64

	// Pricing
	LowMarginThreshold  float64
	HighMarginThreshold float64
	TurnoverThreshold   float64

	// Forecasting
	ForecastHorizonDays int
	ForecastWindow      int
	ForecastMinBuckets  int
}

var (
	ErrInvalidWeights   = errors.New("scoring weights must be non-negative and sum to 1.0")
	ErrNegativeValue    = errors.New("threshold must be non-negative")
	ErrInvalidThreshold = errors.New("invalid threshold")
)

const weightTolerance = 1e-6

var (
	once     sync.Once
	instance *Config
)

// Load reads the process configuration once from .env and the environment.
func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		v := viper.GetViper()
		v.AutomaticEnv()
		instance = New(v)

		// Ensure upload and data directories exist
		ensureDir(instance.App.UploadDir)
		ensureDir(instance.App.DataDir)
	})

	return instance
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 60)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "vendor_analytics")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("APP_UPLOAD_DIR", "./data/uploads")
	v.SetDefault("APP_DATA_DIR", "./data/output")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_DASHBOARD_TTL_SECONDS", 60)

	v.SetDefault("STORAGE_ENABLED", false)
	v.SetDefault("STORAGE_ENDPOINT", "")
	v.SetDefault("STORAGE_ACCESS_KEY", "")
	v.SetDefault("STORAGE_SECRET_KEY", "")
	v.SetDefault("STORAGE_BUCKET", "vendor-analytics")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_USE_SSL", true)
	v.SetDefault("STORAGE_PREFIX", "exports")

	v.SetDefault("ALERT_LOW_PROFIT_MARGIN", 15.0)
	v.SetDefault("ALERT_LOW_STOCK_TURNOVER", 0.3)
	v.SetDefault("ALERT_HIGH_INVENTORY_VALUE", 50000.0)
	v.SetDefault("ALERT_ANOMALY_SCORE_THRESHOLD", -0.5)
	v.SetDefault("ALERT_POOR_PERFORMANCE_SCORE", 30.0)
	v.SetDefault("ALERT_MAX_HIGH_INVENTORY", 0)

	v.SetDefault("SCORE_WEIGHT_MARGIN", 0.35)
	v.SetDefault("SCORE_WEIGHT_TURNOVER", 0.25)
	v.SetDefault("SCORE_WEIGHT_SALES", 0.25)
	v.SetDefault("SCORE_WEIGHT_EFFICIENCY", 0.15)

	v.SetDefault("ANOMALY_CONTAMINATION", 0.10)
	v.SetDefault("ANOMALY_SEED", 42)
	v.SetDefault("ANOMALY_TREES", 100)
	v.SetDefault("ANOMALY_SAMPLE_SIZE", 256)
	v.SetDefault("ANOMALY_MIN_SAMPLES", 10)

	v.SetDefault("INVENTORY_LEAD_TIME_DAYS", 7.0)
	v.SetDefault("INVENTORY_SAFETY_MULTIPLIER", 1.5)
	v.SetDefault("INVENTORY_TARGET_SUPPLY_DAYS", 30.0)
	v.SetDefault("INVENTORY_OVERSTOCK_TURNOVER", 0.5)
	v.SetDefault("INVENTORY_UNDERSTOCK_TURNOVER", 2.0)

	v.SetDefault("PRICE_LOW_MARGIN", 20.0)
	v.SetDefault("PRICE_HIGH_MARGIN", 60.0)
	v.SetDefault("PRICE_TURNOVER_THRESHOLD", 1.0)

	v.SetDefault("FORECAST_HORIZON_DAYS", 30)
	v.SetDefault("FORECAST_WINDOW", 7)
	v.SetDefault("FORECAST_MIN_BUCKETS", 3)
}

// New builds a Config from v after registering defaults on it.
func New(v *viper.Viper) *Config {
	SetDefaults(v)

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("DATABASE_URL"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		App: AppConfig{
			UploadDir: v.GetString("APP_UPLOAD_DIR"),
			DataDir:   v.GetString("APP_DATA_DIR"),
			LogLevel:  v.GetString("LOG_LEVEL"),
		},
		Cache: CacheConfig{
			Enabled:             v.GetBool("CACHE_ENABLED"),
			RedisURL:            v.GetString("REDIS_URL"),
			RedisHost:           v.GetString("REDIS_HOST"),
			RedisPort:           v.GetString("REDIS_PORT"),
			RedisPassword:       v.GetString("REDIS_PASSWORD"),
			RedisDB:             v.GetInt("REDIS_DB"),
			DashboardTTLSeconds: v.GetInt("CACHE_DASHBOARD_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Enabled:   v.GetBool("STORAGE_ENABLED"),
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			Region:    v.GetString("STORAGE_REGION"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
			Prefix:    v.GetString("STORAGE_PREFIX"),
		},
		Analytics: AnalyticsConfig{
			LowProfitMargin:        v.GetFloat64("ALERT_LOW_PROFIT_MARGIN"),
			LowStockTurnover:       v.GetFloat64("ALERT_LOW_STOCK_TURNOVER"),
			HighInventoryValue:     v.GetFloat64("ALERT_HIGH_INVENTORY_VALUE"),
			AnomalyScoreThreshold:  v.GetFloat64("ALERT_ANOMALY_SCORE_THRESHOLD"),
			PoorPerformanceScore:   v.GetFloat64("ALERT_POOR_PERFORMANCE_SCORE"),
			MaxHighInventoryAlerts: v.GetInt("ALERT_MAX_HIGH_INVENTORY"),
			Weights: ScoringWeights{
				Margin:     v.GetFloat64("SCORE_WEIGHT_MARGIN"),
				Turnover:   v.GetFloat64("SCORE_WEIGHT_TURNOVER"),
				Sales:      v.GetFloat64("SCORE_WEIGHT_SALES"),
				Efficiency: v.GetFloat64("SCORE_WEIGHT_EFFICIENCY"),
			},
			Contamination:         v.GetFloat64("ANOMALY_CONTAMINATION"),
			AnomalySeed:           v.GetUint64("ANOMALY_SEED"),
			AnomalyTrees:          v.GetInt("ANOMALY_TREES"),
			AnomalySampleSize:     v.GetInt("ANOMALY_SAMPLE_SIZE"),
			AnomalyMinSamples:     v.GetInt("ANOMALY_MIN_SAMPLES"),
			LeadTimeDays:          v.GetFloat64("INVENTORY_LEAD_TIME_DAYS"),
			SafetyStockMultiplier: v.GetFloat64("INVENTORY_SAFETY_MULTIPLIER"),
			TargetSupplyDays:      v.GetFloat64("INVENTORY_TARGET_SUPPLY_DAYS"),
			OverstockTurnover:     v.GetFloat64("INVENTORY_OVERSTOCK_TURNOVER"),
			UnderstockTurnover:    v.GetFloat64("INVENTORY_UNDERSTOCK_TURNOVER"),
			LowMarginThreshold:    v.GetFloat64("PRICE_LOW_MARGIN"),
			HighMarginThreshold:   v.GetFloat64("PRICE_HIGH_MARGIN"),
			TurnoverThreshold:     v.GetFloat64("PRICE_TURNOVER_THRESHOLD"),
			ForecastHorizonDays:   v.GetInt("FORECAST_HORIZON_DAYS"),
			ForecastWindow:        v.GetInt("FORECAST_WINDOW"),
			ForecastMinBuckets:    v.GetInt("FORECAST_MIN_BUCKETS"),
		},
	}
}

// DefaultAnalytics returns the analytics configuration with every default applied.
func DefaultAnalytics() AnalyticsConfig {
	return New(viper.New()).Analytics
}

// Validate checks the configuration before any computation runs.
func (c *Config) Validate() error {
	return c.Analytics.Validate()
}

// Validate rejects weights that do not sum to 1 and out-of-range thresholds.
func (a AnalyticsConfig) Validate() error {
	if err := ValidateWeights(a.Weights); err != nil {
		return err
	}

	nonNegative := map[string]float64{
		"ALERT_LOW_PROFIT_MARGIN":       a.LowProfitMargin,
		"ALERT_LOW_STOCK_TURNOVER":      a.LowStockTurnover,
		"ALERT_HIGH_INVENTORY_VALUE":    a.HighInventoryValue,
		"ALERT_POOR_PERFORMANCE_SCORE":  a.PoorPerformanceScore,
		"INVENTORY_LEAD_TIME_DAYS":      a.LeadTimeDays,
		"INVENTORY_SAFETY_MULTIPLIER":   a.SafetyStockMultiplier,
		"INVENTORY_TARGET_SUPPLY_DAYS":  a.TargetSupplyDays,
		"INVENTORY_OVERSTOCK_TURNOVER":  a.OverstockTurnover,
		"INVENTORY_UNDERSTOCK_TURNOVER": a.UnderstockTurnover,
		"PRICE_LOW_MARGIN":              a.LowMarginThreshold,
		"PRICE_HIGH_MARGIN":             a.HighMarginThreshold,
		"PRICE_TURNOVER_THRESHOLD":      a.TurnoverThreshold,
	}
	for name, value := range nonNegative {
		if value < 0 || math.IsNaN(value) {
			return fmt.Errorf("%s=%v: %w", name, value, ErrNegativeValue)
		}
	}

	if a.MaxHighInventoryAlerts < 0 {
		return fmt.Errorf("ALERT_MAX_HIGH_INVENTORY=%d: %w", a.MaxHighInventoryAlerts, ErrNegativeValue)
	}
	if a.Contamination <= 0 || a.Contamination > 0.5 {
		return fmt.Errorf("ANOMALY_CONTAMINATION=%v must be in (0, 0.5]: %w", a.Contamination, ErrInvalidThreshold)
	}
	if a.AnomalyScoreThreshold < -1 || a.AnomalyScoreThreshold > 0 {
		return fmt.Errorf("ALERT_ANOMALY_SCORE_THRESHOLD=%v must be in [-1, 0]: %w", a.AnomalyScoreThreshold, ErrInvalidThreshold)
	}
	if a.LowMarginThreshold >= a.HighMarginThreshold {
		return fmt.Errorf("PRICE_LOW_MARGIN=%v must be below PRICE_HIGH_MARGIN=%v: %w",
			a.LowMarginThreshold, a.HighMarginThreshold, ErrInvalidThreshold)
	}
	if a.AnomalyTrees < 1 || a.AnomalySampleSize < 2 || a.AnomalyMinSamples < 2 {
		return fmt.Errorf("anomaly trees, sample size and min samples must be positive: %w", ErrInvalidThreshold)
	}
	if a.ForecastHorizonDays < 1 || a.ForecastWindow < 1 || a.ForecastMinBuckets < 1 {
		return fmt.Errorf("forecast horizon, window and min buckets must be positive: %w", ErrInvalidThreshold)
	}

	return nil
}

// ValidateWeights fails when any weight is negative or the sum differs from 1.
func ValidateWeights(w ScoringWeights) error {
	for _, v := range []float64{w.Margin, w.Turnover, w.Sales, w.Efficiency} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: got %+v", ErrInvalidWeights, w)
		}
	}
	if math.Abs(w.Sum()-1.0) > weightTolerance {
		return fmt.Errorf("%w: sum is %.6f", ErrInvalidWeights, w.Sum())
	}
	return nil
}

func ensureDir(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("failed to create directory")
		}
	}
}
