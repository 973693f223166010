package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/dmitrijs2005/taskboard/internal/common"
	"github.com/dmitrijs2005/taskboard/internal/flagx"
	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// parseEnv overlays environment variables onto config. Values come from the
// dotenv file named by -env (or ./.env when present) and are overridden by
// the real process environment.
//
// Recognised variables:
//
//	HTTP_ADDR, GRPC_ADDR, DB_DRIVER, DATABASE_DSN,
//	JWT_SIGNING_KEY, JWT_ISSUER, JWT_AUDIENCE,
//	ACCESS_TOKEN_MINUTES, REFRESH_TOKEN_DAYS, TOKEN_STORE,
//	REDIS_ADDR, REDIS_PASSWORD, REDIS_DB, RATE_LIMIT_PER_MINUTE,
//	AMQP_URL, AUDIT_QUEUE, LOG_LEVEL, LOG_FORMAT, SHUTDOWN_TIMEOUT
func parseEnv(config *Config, args []string, lookupEnv func(string) (string, bool)) error {
	fileVals, err := readEnvFile(flagx.EnvFile(args))
	if err != nil {
		return err
	}

	lookup := func(key string) (string, bool) {
		if v, ok := lookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVals[key]
		return v, ok
	}

	problems := &common.ConfigurationError{}

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			problems.Add(fmt.Sprintf("%s must be an integer, got %q", key, v))
			return
		}
		*dst = n
	}
	dur := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			problems.Add(fmt.Sprintf("%s must be a duration, got %q", key, v))
			return
		}
		*dst = d
	}

	str("HTTP_ADDR", &config.EndpointAddrHTTP)
	str("GRPC_ADDR", &config.EndpointAddrGRPC)
	str("DB_DRIVER", &config.DatabaseDriver)
	str("DATABASE_DSN", &config.DatabaseDSN)
	str("JWT_SIGNING_KEY", &config.SigningKey)
	str("JWT_ISSUER", &config.Issuer)
	str("JWT_AUDIENCE", &config.Audience)
	num("ACCESS_TOKEN_MINUTES", &config.AccessTokenMinutes)
	num("REFRESH_TOKEN_DAYS", &config.RefreshTokenDays)
	str("TOKEN_STORE", &config.TokenStore)
	str("REDIS_ADDR", &config.RedisAddr)
	str("REDIS_PASSWORD", &config.RedisPassword)
	num("REDIS_DB", &config.RedisDB)
	num("RATE_LIMIT_PER_MINUTE", &config.RateLimitPerMinute)
	str("AMQP_URL", &config.AMQPURL)
	str("AUDIT_QUEUE", &config.AuditQueue)
	str("LOG_LEVEL", &config.LogLevel)
	str("LOG_FORMAT", &config.LogFormat)
	dur("SHUTDOWN_TIMEOUT", &config.ShutdownTimeout)

	return problems.OrNil()
}

func readEnvFile(path string) (map[string]string, error) {
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	vals, err := godotenv.Read(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, common.NewConfigurationError(fmt.Sprintf("env file: %v", err))
	}
	return vals, nil
}
