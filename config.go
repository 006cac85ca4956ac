/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Seednode/fingerpick/picker"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	countdown      time.Duration
	maxFingers     int
	mute           bool
	port           int
	prefix         string
	profile        bool
	sessionTimeout time.Duration
	stability      time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if err := c.game().Validate(); err != nil {
		return fmt.Errorf("invalid game settings: %w", err)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) game() picker.Config {
	return picker.Config{
		MaxFingers:     c.maxFingers,
		StabilityDelay: c.stability,
		CountdownDelay: c.countdown,
	}
}

// bindEnv lets every flag in fs be set from FINGERPICK_<FLAG_NAME>, unless
// it was given on the command line.
func bindEnv(v *viper.Viper, fs *pflag.FlagSet) {
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

func newTerminalCmd(cfg *Config, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "terminal",
		Short: "Play locally in the terminal, using mouse buttons and number keys as fingers.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.game().Validate(); err != nil {
				return fmt.Errorf("invalid game settings: %w", err)
			}
			return RunTerminal(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.BoolVar(&cfg.mute, "mute", false, "do not play feedback tones (env: FINGERPICK_MUTE)")

	bindEnv(v, fs)

	return cmd
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("FINGERPICK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "fingerpick",
		Short:         "Everyone puts a finger on the screen, and one of them gets picked.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	pfs := cmd.PersistentFlags()

	pfs.DurationVar(&cfg.countdown, "countdown-delay", picker.DefaultCountdownDelay, "suspense countdown before a winner is picked (env: FINGERPICK_COUNTDOWN_DELAY)")
	pfs.IntVar(&cfg.maxFingers, "max-fingers", picker.DefaultMaxFingers, "maximum number of fingers tracked at once (env: FINGERPICK_MAX_FINGERS)")
	pfs.DurationVar(&cfg.stability, "stability-delay", picker.DefaultStabilityDelay, "time fingers must hold still before the countdown starts (env: FINGERPICK_STABILITY_DELAY)")
	pfs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: FINGERPICK_VERBOSE)")

	fs := cmd.Flags()

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: FINGERPICK_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: FINGERPICK_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: FINGERPICK_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: FINGERPICK_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle game sessions are ended (env: FINGERPICK_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: FINGERPICK_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: FINGERPICK_TLS_KEY)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: FINGERPICK_VERSION)")

	bindEnv(v, pfs)
	bindEnv(v, fs)

	cmd.AddCommand(newTerminalCmd(cfg, v))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("fingerpick v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
