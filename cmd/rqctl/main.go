// Command rqctl is a small operator CLI around internal/queue: enqueue
// requests, run a handling or response pass, loop both on an interval, or
// inspect what state the table is in. It has no opinion on how a host
// application computes responses or delivers them - echoHandler and
// stdoutResponder are the only callbacks rqctl itself knows how to run (see
// handle.go and respond.go).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	flagDSN     string
	flagDialect string
	flagTable   string
	flagVerbose bool
)

var (
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:   "rqctl",
	Short: "rqctl - operator CLI for a row-queue table",
	Long:  `rqctl drives enqueue, handling, and response passes against a row-queue-backed table directly from the shell, for operators and smoke tests that don't need a full embedding host.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

		level := slog.LevelInfo
		if flagVerbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		initTelemetry()
		bindViperFlags(cmd)
	},
}

// bindViperFlags applies config-file and RQCTL_-prefixed environment values
// for any flag the operator did not set explicitly on the command line.
// Priority: flags > environment/config file > defaults.
func bindViperFlags(cmd *cobra.Command) {
	v := viper.New()
	v.SetEnvPrefix("RQCTL")
	v.AutomaticEnv()
	v.SetConfigName("rqctl")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // absence of a config file is not an error

	for _, name := range []string{"dsn", "dialect", "table"} {
		if cmd.Flags().Changed(name) {
			continue
		}
		if val := v.GetString(name); val != "" {
			_ = cmd.Flags().Set(name, val)
		}
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDSN, "dsn", "", "database connection string")
	rootCmd.PersistentFlags().StringVar(&flagDialect, "dialect", "", "postgres|mysql|oracle|mssql|db2")
	rootCmd.PersistentFlags().StringVar(&flagTable, "table", "", "fully-qualified queue table name")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(addCmd, handleCmd, respondCmd, serveCmd, inspectCmd)
}

func main() {
	err := rootCmd.Execute()
	if rootCancel != nil {
		rootCancel()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
