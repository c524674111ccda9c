package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/vectorbase/internal/profile"
	"github.com/hrygo/vectorbase/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "vectorbase",
	Short: "Store text by meaning and find it again with similarity search.",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// Try to load .env file from current directory (ignore error if file doesn't exist)
		_ = godotenv.Load()

		level, err := parseLogLevel(viper.GetString("log-level"))
		if err != nil {
			return err
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		return nil
	},
	SilenceUsage: true,
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", profile.DefaultDriver)
	viper.SetDefault("index", profile.DefaultIndex)
	viper.SetDefault("log-level", "info")
	viper.SetDefault("cache-size", 1000)
	viper.SetDefault("cache-ttl", 10*time.Minute)

	flags := rootCmd.PersistentFlags()
	flags.String("mode", "dev", `mode of the process, can be "prod" or "dev" or "demo"`)
	flags.String("data", "", "data directory for the sqlite driver")
	flags.String("driver", profile.DefaultDriver, "storage driver (memory, postgres, sqlite)")
	flags.String("dsn", "", "database source name(aka. DSN)")
	flags.String("index", profile.DefaultIndex, "index (table) name for postgres and sqlite")
	flags.Int("dimensions", 0, "embedding dimensions, 0 uses the provider default")
	flags.Int("batch-retries", 0, "times a failed batch write is retried")
	flags.Int("cache-size", 1000, "embedding cache entries, 0 disables the cache")
	flags.Duration("cache-ttl", 10*time.Minute, "embedding cache entry lifetime")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address while the command runs")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	for _, name := range []string{
		"mode", "data", "driver", "dsn", "index", "dimensions", "batch-retries",
		"cache-size", "cache-ttl", "metrics-addr", "log-level",
	} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("vectorbase")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	rootCmd.AddCommand(newAddCmd(), newIngestCmd(), newFindCmd(), newVersionCmd())
}

// loadProfile builds the validated profile from flags, environment and defaults.
func loadProfile() (*profile.Profile, error) {
	p := &profile.Profile{
		Mode:        viper.GetString("mode"),
		Data:        viper.GetString("data"),
		Driver:      viper.GetString("driver"),
		DSN:         viper.GetString("dsn"),
		Index:       viper.GetString("index"),
		Dimensions:  viper.GetInt("dimensions"),
		MetricsAddr: viper.GetString("metrics-addr"),
		Version:     version.GetCurrentVersion(viper.GetString("mode")),
	}
	p.FromEnv()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), terminationSignals...)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
