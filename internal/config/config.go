// Package config loads service configuration from environment variables.
// Every variable is prefixed with DISPATCH_, e.g. DISPATCH_SERVICE_PORT.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/lifeline-ems/service-dispatch/internal/platform/database"
)

// Route provider selection values for DISPATCH_ROUTE_PROVIDER.
const (
	RouteProviderService = "service"
	RouteProviderGoogle  = "google"
)

// KafkaConfig holds Kafka connection settings.
type KafkaConfig struct {
	Brokers []string
}

// SimulationConfig controls the ambulance motion simulator.
type SimulationConfig struct {
	TotalTicks   int
	TickInterval time.Duration
}

// ServiceConfig holds all configuration for the dispatch service.
type ServiceConfig struct {
	Port   string
	AppEnv string

	DBConfig    database.PostgresConfig
	KafkaConfig KafkaConfig

	HospitalServiceURL  string
	AmbulanceServiceURL string
	RouteServiceURL     string

	RouteProvider string
	GoogleAPIKey  string

	RedisAddr string

	Simulation SimulationConfig
}

// Load reads configuration from environment variables.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("DISPATCH")
	v.AutomaticEnv()

	v.SetDefault("SERVICE_PORT", "8084")
	v.SetDefault("APP_ENV", "development")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "dispatch")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("KAFKA_BROKERS", []string{"localhost:9092"})

	v.SetDefault("HOSPITAL_SERVICE_URL", "http://localhost:8081")
	v.SetDefault("AMBULANCE_SERVICE_URL", "http://localhost:8082")
	v.SetDefault("ROUTE_SERVICE_URL", "http://localhost:8083")

	v.SetDefault("ROUTE_PROVIDER", RouteProviderService)
	v.SetDefault("GOOGLE_API_KEY", "")
	v.SetDefault("REDIS_ADDR", "")

	v.SetDefault("SIMULATION_TOTAL_TICKS", 60)
	v.SetDefault("SIMULATION_TICK_INTERVAL", time.Second)

	cfg := &ServiceConfig{
		Port:   v.GetString("SERVICE_PORT"),
		AppEnv: v.GetString("APP_ENV"),
		DBConfig: database.PostgresConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		KafkaConfig: KafkaConfig{
			Brokers: v.GetStringSlice("KAFKA_BROKERS"),
		},
		HospitalServiceURL:  v.GetString("HOSPITAL_SERVICE_URL"),
		AmbulanceServiceURL: v.GetString("AMBULANCE_SERVICE_URL"),
		RouteServiceURL:     v.GetString("ROUTE_SERVICE_URL"),
		RouteProvider:       v.GetString("ROUTE_PROVIDER"),
		GoogleAPIKey:        v.GetString("GOOGLE_API_KEY"),
		RedisAddr:           v.GetString("REDIS_ADDR"),
		Simulation: SimulationConfig{
			TotalTicks:   v.GetInt("SIMULATION_TOTAL_TICKS"),
			TickInterval: v.GetDuration("SIMULATION_TICK_INTERVAL"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ServiceConfig) validate() error {
	switch c.RouteProvider {
	case RouteProviderService:
	case RouteProviderGoogle:
		if c.GoogleAPIKey == "" {
			return fmt.Errorf("config: DISPATCH_GOOGLE_API_KEY is required when DISPATCH_ROUTE_PROVIDER is %q", RouteProviderGoogle)
		}
	default:
		return fmt.Errorf("config: unknown route provider %q", c.RouteProvider)
	}

	if c.Simulation.TotalTicks < 1 {
		return fmt.Errorf("config: DISPATCH_SIMULATION_TOTAL_TICKS must be positive")
	}
	if c.Simulation.TickInterval <= 0 {
		return fmt.Errorf("config: DISPATCH_SIMULATION_TICK_INTERVAL must be positive")
	}
	return nil
}
