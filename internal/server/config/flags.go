package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-g string   gRPC health bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN, or "memory"
//	-s string   session token HMAC secret
//	-t int      session validity, minutes
//	-i int      expiry sweep interval, seconds
//	-r string   media server base URL
//	-k string   media server API key
//	-o int      media server request timeout, seconds
//	-l string   log level
//
// Duration flags are accepted as integers and converted to time.Duration.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-d", "-s", "-t", "-i", "-r", "-k", "-o", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to serve the API")
	fs.StringVar(&config.EndpointAddrHealth, "g", config.EndpointAddrHealth, "address and port to serve gRPC health checks")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	sessionValidity := fs.Int("t", int(config.SessionValidityDuration.Minutes()), "session validity (in minutes)")
	sweepInterval := fs.Int("i", int(config.SweepInterval.Seconds()), "expiry sweep interval (in seconds)")

	fs.StringVar(&config.RemoteBaseURL, "r", config.RemoteBaseURL, "media server base URL")
	fs.StringVar(&config.RemoteAPIKey, "k", config.RemoteAPIKey, "media server API key")

	remoteTimeout := fs.Int("o", int(config.RemoteTimeout.Seconds()), "media server request timeout (in seconds)")

	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionValidityDuration = time.Duration(*sessionValidity) * time.Minute
	config.SweepInterval = time.Duration(*sweepInterval) * time.Second
	config.RemoteTimeout = time.Duration(*remoteTimeout) * time.Second
}
