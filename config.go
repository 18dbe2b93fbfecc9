/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	allowedOrigins []string
	bind           string
	catalog        string
	database       string
	escapeCodes    []string
	gameDuration   time.Duration
	port           int
	prefix         string
	profile        bool
	rateBurst      int
	rateLimit      float64
	tick           time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
	voteTimeout    time.Duration

	logger zerolog.Logger
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.catalog == "" {
		return errors.New("--catalog must point to a card catalog")
	}
	if c.tick <= 0 {
		return fmt.Errorf("invalid tick period (must be positive): %s", c.tick)
	}
	if c.voteTimeout <= 0 {
		return fmt.Errorf("invalid vote timeout (must be positive): %s", c.voteTimeout)
	}
	if c.gameDuration <= 0 {
		return fmt.Errorf("invalid game duration (must be positive): %s", c.gameDuration)
	}
	if len(c.escapeCodes) == 0 {
		return errors.New("--escape-codes must list at least one code")
	}
	for _, code := range c.escapeCodes {
		if strings.TrimSpace(code) == "" {
			return errors.New("--escape-codes must not contain empty codes")
		}
	}
	if c.rateLimit <= 0 || c.rateBurst < 1 {
		return fmt.Errorf("invalid rate limit (must be positive): %v/s, burst %d", c.rateLimit, c.rateBurst)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// bindFlags lets ESCAPEROOM_* environment variables fill any flag left unset
// on the command line.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("ESCAPEROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "escaperoom",
		Short:         "A real-time team puzzle game for finding your colleagues.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.logger = newLogger(cmd.ErrOrStderr(), cfg.verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	pfs := cmd.PersistentFlags()
	pfs.StringVar(&cfg.database, "database", "./data/sessions.db", "sqlite database path or postgres:// connection string (env: ESCAPEROOM_DATABASE)")
	pfs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: ESCAPEROOM_VERBOSE)")

	fs := cmd.Flags()
	fs.StringSliceVar(&cfg.allowedOrigins, "allowed-origins", nil, "origins allowed to open websockets, empty allows any (env: ESCAPEROOM_ALLOWED_ORIGINS)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: ESCAPEROOM_BIND)")
	fs.StringVar(&cfg.catalog, "catalog", "./data/answers.csv", "path to the card catalog csv (env: ESCAPEROOM_CATALOG)")
	fs.StringSliceVar(&cfg.escapeCodes, "escape-codes", []string{"1984", "4096", "2718"}, "codes the captain must enter, in order, in escape mode (env: ESCAPEROOM_ESCAPE_CODES)")
	fs.DurationVar(&cfg.gameDuration, "game-duration", 20*time.Minute, "length of a timed phase (env: ESCAPEROOM_GAME_DURATION)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: ESCAPEROOM_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: ESCAPEROOM_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: ESCAPEROOM_PROFILE)")
	fs.IntVar(&cfg.rateBurst, "rate-burst", 20, "inbound events a connection may burst (env: ESCAPEROOM_RATE_BURST)")
	fs.Float64Var(&cfg.rateLimit, "rate-limit", 10, "inbound events per second allowed per connection (env: ESCAPEROOM_RATE_LIMIT)")
	fs.DurationVar(&cfg.tick, "tick", time.Second, "timer engine tick period (env: ESCAPEROOM_TICK)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: ESCAPEROOM_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: ESCAPEROOM_TLS_KEY)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: ESCAPEROOM_VERSION)")
	fs.DurationVar(&cfg.voteTimeout, "vote-timeout", 30*time.Second, "time before missing ballots count as agreement (env: ESCAPEROOM_VOTE_TIMEOUT)")

	bindFlags(v, pfs)
	bindFlags(v, fs)

	cmd.AddCommand(newSessionCmd(cfg))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("escaperoom v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
