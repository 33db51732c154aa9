package app

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yungbote/techform-backend/internal/data/db"
	"github.com/yungbote/techform-backend/internal/modules/answers"
	"github.com/yungbote/techform-backend/internal/observability"
	"github.com/yungbote/techform-backend/internal/platform/logger"
)

type Config struct {
	APIAddr string
	LogMode string

	DB db.Config

	StalenessPolicy answers.StalenessPolicy
	// TemplateSeed is a YAML path, "default" for the embedded seed, or empty.
	TemplateSeed string

	MetricsEnabled bool
	MetricsAddr    string
	Otel           observability.OtelConfig

	CORSOrigins []string
}

// SetDefaults registers every key LoadConfig reads.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("API_ADDR", ":8080")
	v.SetDefault("LOG_MODE", "development")

	v.SetDefault("DB_DRIVER", db.DriverPostgres)
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "")
	v.SetDefault("POSTGRES_NAME", "techform")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("POSTGRES_MAX_OPEN_CONNS", 20)
	v.SetDefault("POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute)
	v.SetDefault("SQLITE_PATH", "techform.db")
	v.SetDefault("DB_SLOW_THRESHOLD", time.Second)

	v.SetDefault("ANSWER_STALENESS_POLICY", string(answers.PolicyAny))
	v.SetDefault("FORM_TEMPLATE_SEED", "")

	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("METRICS_ADDR", "")

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "techform-backend")
	v.SetDefault("OTEL_ENVIRONMENT", "development")
	v.SetDefault("OTEL_SERVICE_VERSION", "dev")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_HEADERS", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SAMPLER_RATIO", 1.0)

	v.SetDefault("CORS_ORIGINS", "")
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// LoadConfig reads configuration from the environment.
func LoadConfig(log *logger.Logger) Config {
	return LoadConfigFrom(newViper(), log)
}

func LoadConfigFrom(v *viper.Viper, log *logger.Logger) Config {
	cfg := Config{
		APIAddr: strings.TrimSpace(v.GetString("API_ADDR")),
		LogMode: strings.TrimSpace(v.GetString("LOG_MODE")),
		DB: db.Config{
			Driver:           strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
			PostgresHost:     v.GetString("POSTGRES_HOST"),
			PostgresPort:     v.GetString("POSTGRES_PORT"),
			PostgresUser:     v.GetString("POSTGRES_USER"),
			PostgresPassword: v.GetString("POSTGRES_PASSWORD"),
			PostgresName:     v.GetString("POSTGRES_NAME"),
			PostgresSSLMode:  v.GetString("POSTGRES_SSLMODE"),
			SQLitePath:       v.GetString("SQLITE_PATH"),
			MaxOpenConns:     v.GetInt("POSTGRES_MAX_OPEN_CONNS"),
			ConnMaxLifetime:  v.GetDuration("POSTGRES_CONN_MAX_LIFETIME"),
			SlowThreshold:    v.GetDuration("DB_SLOW_THRESHOLD"),
		},
		StalenessPolicy: answers.ParseStalenessPolicy(v.GetString("ANSWER_STALENESS_POLICY")),
		TemplateSeed:    strings.TrimSpace(v.GetString("FORM_TEMPLATE_SEED")),
		MetricsEnabled:  v.GetBool("METRICS_ENABLED"),
		MetricsAddr:     strings.TrimSpace(v.GetString("METRICS_ADDR")),
		Otel: observability.OtelConfig{
			Enabled:     v.GetBool("OTEL_ENABLED"),
			ServiceName: v.GetString("OTEL_SERVICE_NAME"),
			Environment: v.GetString("OTEL_ENVIRONMENT"),
			Version:     v.GetString("OTEL_SERVICE_VERSION"),
			Endpoint:    strings.TrimSpace(v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")),
			Headers:     observability.ParseHeaders(v.GetString("OTEL_EXPORTER_OTLP_HEADERS")),
			Insecure:    v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
			SampleRatio: v.GetFloat64("OTEL_SAMPLER_RATIO"),
		},
		CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
	}

	if raw := strings.TrimSpace(v.GetString("ANSWER_STALENESS_POLICY")); raw != "" && string(cfg.StalenessPolicy) != strings.ToLower(raw) && log != nil {
		log.Warn("unknown ANSWER_STALENESS_POLICY, using default", "value", raw, "policy", cfg.StalenessPolicy)
	}
	if log != nil {
		log.Info("config loaded",
			"db_driver", cfg.DB.Driver,
			"staleness_policy", cfg.StalenessPolicy,
			"metrics", cfg.MetricsEnabled,
			"otel", cfg.Otel.Enabled,
		)
	}
	return cfg
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
