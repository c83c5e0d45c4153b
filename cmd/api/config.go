package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"arcade-server/internal/server"
)

const releaseVersion = "0.1.0"

func validate(cfg *server.Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", cfg.Port)
	}
	if cfg.DatabaseDSN == "" {
		return fmt.Errorf("database DSN cannot be empty")
	}
	if cfg.SaveInterval <= 0 {
		return fmt.Errorf("save interval must be positive: %v", cfg.SaveInterval)
	}
	return nil
}

func newCmd(cfg *server.Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("ARCADE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "arcade-server",
		Short:         "A websocket turn-authority server for lobby-based card and strategy games.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validate(cfg); err != nil {
				return err
			}
			return run(cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: ARCADE_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: ARCADE_PORT)")
	fs.StringVar(&cfg.DatabaseDSN, "database", "arcade.db", "database DSN, a sqlite path or postgres:// url (env: ARCADE_DATABASE)")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", server.DefaultTokenTTL, "lifetime of unredeemed handoff tokens (env: ARCADE_TOKEN_TTL)")
	fs.DurationVar(&cfg.SaveInterval, "save-interval", 30*time.Second, "interval between background session saves (env: ARCADE_SAVE_INTERVAL)")
	fs.DurationVar(&cfg.CleanupAge, "cleanup-age", 24*time.Hour, "age at which finished games are deleted (env: ARCADE_CLEANUP_AGE)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "display additional output (env: ARCADE_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("arcade-server v{{.Version}}\n")

	return cmd
}
