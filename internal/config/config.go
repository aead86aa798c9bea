package config

import (
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Engine   EngineConfig
	Export   ExportConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CacheConfig struct {
	Enabled           bool
	RedisURL          string
	RedisHost         string
	RedisPort         string
	RedisPassword     string
	RedisDB           int
	SummaryTTLSeconds int
}

// EngineConfig tunes the batch optimization run.
type EngineConfig struct {
	WorkerCount        int
	Trials             int
	TrialConcurrency   int
	LowerBoundFactor   float64
	UpperBoundFactor   float64
	ForecastStockLevel int
	MinStockLevel      float64
	StockoutPenalty    float64
	SafetyHorizonDays  int
	GapYearsThreshold  float64
}

// ExportConfig points at the S3-compatible bucket for CSV snapshots.
type ExportConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	Prefix    string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		_ = godotenv.Load()

		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 15)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 15)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "priceflow")
		viper.SetDefault("DB_SSLMODE", "disable")
		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_SUMMARY_TTL_SECONDS", 60)
		viper.SetDefault("ENGINE_WORKER_COUNT", 4)
		viper.SetDefault("ENGINE_TRIALS", 40)
		viper.SetDefault("ENGINE_TRIAL_CONCURRENCY", 4)
		viper.SetDefault("ENGINE_PRICE_LOWER_FACTOR", 0.7)
		viper.SetDefault("ENGINE_PRICE_UPPER_FACTOR", 1.3)
		viper.SetDefault("ENGINE_FORECAST_STOCK_LEVEL", 30)
		viper.SetDefault("ENGINE_MIN_STOCK_LEVEL", 0.0)
		viper.SetDefault("ENGINE_STOCKOUT_PENALTY", 1000.0)
		viper.SetDefault("ENGINE_SAFETY_HORIZON_DAYS", 90)
		viper.SetDefault("ENGINE_GAP_YEARS_THRESHOLD", 100.0)
		viper.SetDefault("EXPORT_ENABLED", false)
		viper.SetDefault("EXPORT_ENDPOINT", "")
		viper.SetDefault("EXPORT_ACCESS_KEY", "")
		viper.SetDefault("EXPORT_SECRET_KEY", "")
		viper.SetDefault("EXPORT_BUCKET", "")
		viper.SetDefault("EXPORT_REGION", "us-east-1")
		viper.SetDefault("EXPORT_USE_SSL", true)
		viper.SetDefault("EXPORT_PREFIX", "priceflow")

		viper.AutomaticEnv()

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
			},
			Cache: CacheConfig{
				Enabled:           viper.GetBool("CACHE_ENABLED"),
				RedisURL:          viper.GetString("REDIS_URL"),
				RedisHost:         viper.GetString("REDIS_HOST"),
				RedisPort:         viper.GetString("REDIS_PORT"),
				RedisPassword:     viper.GetString("REDIS_PASSWORD"),
				RedisDB:           viper.GetInt("REDIS_DB"),
				SummaryTTLSeconds: viper.GetInt("CACHE_SUMMARY_TTL_SECONDS"),
			},
			Engine: EngineConfig{
				WorkerCount:        viper.GetInt("ENGINE_WORKER_COUNT"),
				Trials:             viper.GetInt("ENGINE_TRIALS"),
				TrialConcurrency:   viper.GetInt("ENGINE_TRIAL_CONCURRENCY"),
				LowerBoundFactor:   viper.GetFloat64("ENGINE_PRICE_LOWER_FACTOR"),
				UpperBoundFactor:   viper.GetFloat64("ENGINE_PRICE_UPPER_FACTOR"),
				ForecastStockLevel: viper.GetInt("ENGINE_FORECAST_STOCK_LEVEL"),
				MinStockLevel:      viper.GetFloat64("ENGINE_MIN_STOCK_LEVEL"),
				StockoutPenalty:    viper.GetFloat64("ENGINE_STOCKOUT_PENALTY"),
				SafetyHorizonDays:  viper.GetInt("ENGINE_SAFETY_HORIZON_DAYS"),
				GapYearsThreshold:  viper.GetFloat64("ENGINE_GAP_YEARS_THRESHOLD"),
			},
			Export: ExportConfig{
				Enabled:   viper.GetBool("EXPORT_ENABLED"),
				Endpoint:  viper.GetString("EXPORT_ENDPOINT"),
				AccessKey: viper.GetString("EXPORT_ACCESS_KEY"),
				SecretKey: viper.GetString("EXPORT_SECRET_KEY"),
				Bucket:    viper.GetString("EXPORT_BUCKET"),
				Region:    viper.GetString("EXPORT_REGION"),
				UseSSL:    viper.GetBool("EXPORT_USE_SSL"),
				Prefix:    viper.GetString("EXPORT_PREFIX"),
			},
		}
	})

	return instance
}
