package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/javking07/cleanbench/conf"
	"github.com/javking07/cleanbench/testbed"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the benchmark target server",
	Long: `serve starts the self-contained service the benchmark measures:
timed and CPU-bound endpoints, a seeded sqlite store, and a read-through
cache, all behind the same routes the run command discovers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}

		server, err := testbed.Bootstrap(config)
		if err != nil {
			return err
		}
		return server.Run()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	defaults := conf.SaneDefaults()
	serveCmd.Flags().String("host", defaults.Server.Host, "listen host")
	serveCmd.Flags().String("port", defaults.Server.Port, "listen port")
	serveCmd.Flags().Int("workers", defaults.Server.Workers, "GOMAXPROCS cap for the server process")
	serveCmd.Flags().String("database", defaults.Server.DatabasePath, "sqlite database path")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.workers", serveCmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("server.databasepath", serveCmd.Flags().Lookup("database"))
}
