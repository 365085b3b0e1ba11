// Package config содержит логику чтения конфигурации магазина.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/AlpayBeydemir/ecommerce-graphql/internal/pricing"
)

// Config содержит параметры конфигурации магазина.
type Config struct {
	RunAddress            string        `env:"RUN_ADDRESS"`
	DatabaseURI           string        `env:"DATABASE_URI"`
	ElasticsearchAddress  string        `env:"ELASTICSEARCH_ADDRESS"`
	TaxRate               string        `env:"TAX_RATE"`
	AccessTokenTTL        time.Duration `env:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL       time.Duration `env:"REFRESH_TOKEN_TTL"`
	GatewaySuccessPercent int           `env:"GATEWAY_SUCCESS_PERCENT"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Значения переменных окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envElasticAddress := cfg.ElasticsearchAddress
	envTaxRate := cfg.TaxRate
	envAccessTTL := cfg.AccessTokenTTL
	envRefreshTTL := cfg.RefreshTokenTTL
	envSuccessPercent := cfg.GatewaySuccessPercent

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.ElasticsearchAddress, "s", "", "elasticsearch address, empty disables indexing")
	flag.StringVar(&cfg.TaxRate, "t", pricing.DefaultTaxRate, "tax rate as a decimal fraction")
	flag.DurationVar(&cfg.AccessTokenTTL, "access-ttl", 4380*time.Hour, "access token lifetime")
	flag.DurationVar(&cfg.RefreshTokenTTL, "refresh-ttl", 720*time.Hour, "refresh token lifetime")
	flag.IntVar(&cfg.GatewaySuccessPercent, "g", 90, "payment gateway approval percentage")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envElasticAddress != "" {
		cfg.ElasticsearchAddress = envElasticAddress
	}
	if envTaxRate != "" {
		cfg.TaxRate = envTaxRate
	}
	if envAccessTTL != 0 {
		cfg.AccessTokenTTL = envAccessTTL
	}
	if envRefreshTTL != 0 {
		cfg.RefreshTokenTTL = envRefreshTTL
	}
	// Ноль — допустимое значение (шлюз, отклоняющий все платежи), поэтому
	// признаком установки служит наличие переменной, а не её значение.
	if _, ok := os.LookupEnv("GATEWAY_SUCCESS_PERCENT"); ok {
		cfg.GatewaySuccessPercent = envSuccessPercent
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if cfg.GatewaySuccessPercent < 0 || cfg.GatewaySuccessPercent > 100 {
		return nil, fmt.Errorf("gateway success percent must be within [0, 100], got %d", cfg.GatewaySuccessPercent)
	}

	return cfg, nil
}
