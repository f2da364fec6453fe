package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/javking07/cleanbench/app"
	"github.com/javking07/cleanbench/conf"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the clean-restart benchmark sweep",
	Long: `run sweeps every configured rate over every discovered endpoint.
Each (rate, endpoint) pair gets its own freshly spawned server, so no
test inherits warm caches or leftover load from the one before it.
Results are written after every test; an interrupted run keeps what it
finished.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		// int slice flags do not round-trip through viper, override directly
		if cmd.Flags().Changed("rates") {
			rates, err := cmd.Flags().GetIntSlice("rates")
			if err != nil {
				return err
			}
			config.Bench.Rates = rates
		}

		runner, err := app.BootstrapRunner(config)
		if err != nil {
			return err
		}
		defer runner.Shutdown()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		_, err = runner.Run(ctx)
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	defaults := conf.SaneDefaults()
	runCmd.Flags().String("binary", defaults.Bench.Binary, "server binary to spawn per test")
	runCmd.Flags().String("host", defaults.Bench.Host, "host the spawned server listens on")
	runCmd.Flags().Int("port", defaults.Bench.Port, "port the spawned server listens on")
	runCmd.Flags().IntSlice("rates", defaults.Bench.Rates, "request rates to sweep")
	runCmd.Flags().Duration("duration", *defaults.Bench.Duration, "attack duration per test")
	runCmd.Flags().StringSlice("endpoints", nil, "endpoint names to test (default all)")
	runCmd.Flags().String("filter", "", "path prefix for endpoint discovery")
	runCmd.Flags().String("output", defaults.Bench.OutputDir, "directory for run artifacts")
	runCmd.Flags().Int("workers", defaults.Bench.Workers, "worker count passed to the spawned server")
	runCmd.Flags().Bool("archive", false, "archive the finished run to postgres")

	_ = viper.BindPFlag("bench.binary", runCmd.Flags().Lookup("binary"))
	_ = viper.BindPFlag("bench.host", runCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("bench.port", runCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("bench.duration", runCmd.Flags().Lookup("duration"))
	_ = viper.BindPFlag("bench.endpoints", runCmd.Flags().Lookup("endpoints"))
	_ = viper.BindPFlag("bench.filter", runCmd.Flags().Lookup("filter"))
	_ = viper.BindPFlag("bench.outputdir", runCmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("bench.workers", runCmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("bench.archive", runCmd.Flags().Lookup("archive"))
}
