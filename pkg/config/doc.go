// Package config loads typed configuration structs from environment
// variables using github.com/caarlos0/env struct tags, with optional .env
// bootstrap via godotenv.
//
// Every package that needs configuration declares its own Config struct with
// `env` tags and the composition root loads it once:
//
//	var cfg billing.Config
//	config.MustLoad(&cfg)
package config
