package cmd

import (
	"fmt"
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/javking07/cleanbench/conf"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "cleanbench",
	Short: "Clean-restart HTTP benchmark harness",
	Long: `cleanbench benchmarks its own test server with a fresh process per
test: every (rate, endpoint) pair gets a clean server start, a seeded
store, a fixed-rate attack, and resource sampling of the server pid.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.cleanbench.yaml)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".cleanbench")
	}

	viper.SetEnvPrefix("cleanbench")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig layers the config file and environment over the defaults.
func loadConfig() (*conf.Config, error) {
	config := conf.SaneDefaults()
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}
	return config, nil
}
