package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/taskboard/internal/common"
	"github.com/dmitrijs2005/taskboard/internal/flagx"
	"github.com/dmitrijs2005/taskboard/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "10s" and integer nanoseconds are accepted.
// Keys absent from the file leave the current value untouched.
type JsonConfig struct {
	EndpointAddrHTTP   string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC   string         `json:"endpoint_addr_grpc"`
	DatabaseDriver     string         `json:"database_driver"`
	DatabaseDSN        string         `json:"database_dsn"`
	SigningKey         string         `json:"signing_key"`
	Issuer             string         `json:"issuer"`
	Audience           string         `json:"audience"`
	AccessTokenMinutes int            `json:"access_token_minutes"`
	RefreshTokenDays   int            `json:"refresh_token_days"`
	TokenStore         string         `json:"token_store"`
	RedisAddr          string         `json:"redis_addr"`
	RedisPassword      string         `json:"redis_password"`
	RedisDB            int            `json:"redis_db"`
	RateLimitPerMinute int            `json:"rate_limit_per_minute"`
	AMQPURL            string         `json:"amqp_url"`
	AuditQueue         string         `json:"audit_queue"`
	LogLevel           string         `json:"log_level"`
	LogFormat          string         `json:"log_format"`
	ShutdownTimeout    timex.Duration `json:"shutdown_timeout"`
}

// parseJson overlays the file named by -c/-config onto config. Without the
// flag nothing is loaded. An unreadable or invalid file is a configuration
// error.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return common.NewConfigurationError(fmt.Sprintf("config file: %v", err))
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		return common.NewConfigurationError(fmt.Sprintf("config file %s: %v", path, err))
	}
	fromJson(config, c)
	return nil
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrHTTP:   c.EndpointAddrHTTP,
		EndpointAddrGRPC:   c.EndpointAddrGRPC,
		DatabaseDriver:     c.DatabaseDriver,
		DatabaseDSN:        c.DatabaseDSN,
		SigningKey:         c.SigningKey,
		Issuer:             c.Issuer,
		Audience:           c.Audience,
		AccessTokenMinutes: c.AccessTokenMinutes,
		RefreshTokenDays:   c.RefreshTokenDays,
		TokenStore:         c.TokenStore,
		RedisAddr:          c.RedisAddr,
		RedisPassword:      c.RedisPassword,
		RedisDB:            c.RedisDB,
		RateLimitPerMinute: c.RateLimitPerMinute,
		AMQPURL:            c.AMQPURL,
		AuditQueue:         c.AuditQueue,
		LogLevel:           c.LogLevel,
		LogFormat:          c.LogFormat,
		ShutdownTimeout:    timex.Duration{Duration: c.ShutdownTimeout},
	}
}

func fromJson(c *Config, j *JsonConfig) {
	c.EndpointAddrHTTP = j.EndpointAddrHTTP
	c.EndpointAddrGRPC = j.EndpointAddrGRPC
	c.DatabaseDriver = j.DatabaseDriver
	c.DatabaseDSN = j.DatabaseDSN
	c.SigningKey = j.SigningKey
	c.Issuer = j.Issuer
	c.Audience = j.Audience
	c.AccessTokenMinutes = j.AccessTokenMinutes
	c.RefreshTokenDays = j.RefreshTokenDays
	c.TokenStore = j.TokenStore
	c.RedisAddr = j.RedisAddr
	c.RedisPassword = j.RedisPassword
	c.RedisDB = j.RedisDB
	c.RateLimitPerMinute = j.RateLimitPerMinute
	c.AMQPURL = j.AMQPURL
	c.AuditQueue = j.AuditQueue
	c.LogLevel = j.LogLevel
	c.LogFormat = j.LogFormat
	c.ShutdownTimeout = j.ShutdownTimeout.Duration
}
