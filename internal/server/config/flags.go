package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/taskboard/internal/common"
	"github.com/dmitrijs2005/taskboard/internal/flagx"
)

// parseFlags applies command-line flags to config.
//
// Supported flags:
//
//	-a string   HTTP bind address (e.g. ":8080")
//	-g string   gRPC bind address (e.g. ":50051")
//	-D string   database driver: postgres, mysql, sqlite
//	-d string   database DSN
//	-s string   JWT signing key
//	-i string   JWT issuer
//	-u string   JWT audience
//	-t int      access token lifetime, minutes
//	-r int      refresh token lifetime, days
//	-k string   refresh token store: sql or redis
//
// Only these flags are taken from args (see flagx.FilterArgs), so -c and
// -env handled by the other layers do not collide.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-D", "-d", "-s", "-i", "-u", "-t", "-r", "-k"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.DatabaseDriver, "D", config.DatabaseDriver, "database driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SigningKey, "s", config.SigningKey, "JWT signing key")
	fs.StringVar(&config.Issuer, "i", config.Issuer, "JWT issuer")
	fs.StringVar(&config.Audience, "u", config.Audience, "JWT audience")
	fs.IntVar(&config.AccessTokenMinutes, "t", config.AccessTokenMinutes, "access token validity (in minutes)")
	fs.IntVar(&config.RefreshTokenDays, "r", config.RefreshTokenDays, "refresh token validity (in days)")
	fs.StringVar(&config.TokenStore, "k", config.TokenStore, "refresh token store (sql|redis)")

	if err := fs.Parse(args); err != nil {
		return common.NewConfigurationError("flags: " + err.Error())
	}
	return nil
}
