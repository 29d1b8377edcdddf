// Package config содержит логику чтения конфигурации POS-сервера Tukjai.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации POS-сервера Tukjai.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	ShopName    string `env:"SHOP_NAME"`
	ShopAddress string `env:"SHOP_ADDRESS"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envShopName := cfg.ShopName
	envShopAddress := cfg.ShopAddress

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.ShopName, "n", "ถูกใจการค้า", "shop name printed on receipts")
	flag.StringVar(&cfg.ShopAddress, "s", "", "shop address printed on receipts")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envShopName != "" {
		cfg.ShopName = envShopName
	}
	if envShopAddress != "" {
		cfg.ShopAddress = envShopAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
