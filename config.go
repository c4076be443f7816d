package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind              string
	broadcastInterval time.Duration
	maxMessageSize    int64
	pingInterval      time.Duration
	port              int
	prefix            string
	profile           bool
	redisURL          string
	tlsCert           string
	tlsKey            string
	verbose           bool
	version           bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.broadcastInterval <= 0 {
		return fmt.Errorf("invalid broadcast interval (must be positive): %s", c.broadcastInterval)
	}
	if c.pingInterval <= 0 {
		return fmt.Errorf("invalid ping interval (must be positive): %s", c.pingInterval)
	}
	if c.maxMessageSize < 1 {
		return fmt.Errorf("invalid max message size (must be positive): %d", c.maxMessageSize)
	}
	if c.redisURL != "" {
		if _, err := redis.ParseURL(c.redisURL); err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("NUMBERDUEL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "numberduel",
		Short:         "Anonymous two-player number guessing matches over websockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: NUMBERDUEL_BIND)")
	fs.DurationVar(&cfg.broadcastInterval, "broadcast-interval", time.Second, "how often the active user count is sent to clients (env: NUMBERDUEL_BROADCAST_INTERVAL)")
	fs.Int64Var(&cfg.maxMessageSize, "max-message-size", 1024, "largest websocket message accepted from a client, in bytes (env: NUMBERDUEL_MAX_MESSAGE_SIZE)")
	fs.DurationVar(&cfg.pingInterval, "ping-interval", 30*time.Second, "time between websocket keepalive pings (env: NUMBERDUEL_PING_INTERVAL)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: NUMBERDUEL_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: NUMBERDUEL_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: NUMBERDUEL_PROFILE)")
	fs.StringVar(&cfg.redisURL, "redis-url", "", "share the active user count through redis, e.g. redis://localhost:6379/0 (env: NUMBERDUEL_REDIS_URL)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: NUMBERDUEL_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: NUMBERDUEL_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: NUMBERDUEL_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: NUMBERDUEL_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("numberduel v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
