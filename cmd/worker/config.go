package main

import (
	"log"
	"strconv"

	"identity-registry/internal/shared/utils"
)

// Config holds all configuration for the worker
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// loadConfig loads configuration from environment variables
func loadConfig() *Config {
	redisDB, err := strconv.Atoi(utils.GetEnvVariable("REDIS_DB", "0"))
	if err != nil {
		redisDB = 0
	}

	cfg := &Config{
		RedisAddr:     utils.GetEnvVariable("REDIS_HOST", "localhost:6379"),
		RedisPassword: utils.GetEnvVariable("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,
	}

	log.Printf("[Config] Redis: %s (db %d)", cfg.RedisAddr, cfg.RedisDB)

	return cfg
}
