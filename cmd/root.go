// Package cmd provides the command-line interface for the catalogboost
// application.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"catalogboost/internal/application/common/logging"
	"catalogboost/internal/application/common/slogger"
	"catalogboost/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "catalogboost",
	Short: "Bulk AI product content enhancement",
	Long: `CatalogBoost drives a remote AI enhancement service to improve
product catalog content in bulk.

The workflow:
- Create a batch job over a selected set of products
- Stream an AI-generated preview of the suggested content
- Optionally refine the preview with feedback and reference files
- Approve and process the batch in resumable chunks
- Retry only the products that failed`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format (json, text)")
	rootCmd.PersistentFlags().String("format", "json", "Output format (json, yaml)")
	rootCmd.PersistentFlags().String("api-url", "", "Enhancement service URL")
	rootCmd.PersistentFlags().String("api-key", "", "Enhancement service API key")
}

// bindFlags binds the global flags into the given viper instance. Flags
// that the user set take precedence over file and environment values.
func bindFlags(v *viper.Viper) {
	bindings := map[string]string{
		"log.level":    "log-level",
		"log.format":   "log-format",
		"api.base_url": "api-url",
		"api.key":      "api-key",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", flag, err)
		}
	}
}

func initConfig() {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Set config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Environment variables
	v.SetEnvPrefix("CATALOGBOOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindFlags(v)

	// Read configuration
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
		// Config file not found; use defaults and environment
	}

	// Load configuration
	cfg = config.New(v)

	initLogging(cfg.Log)
}

// initLogging installs the global structured logger from config.
func initLogging(logCfg config.LogConfig) {
	logger, err := logging.NewApplicationLogger(logging.Config{
		Level:  logCfg.Level,
		Format: logCfg.Format,
		Output: "stderr",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		return
	}
	slogger.SetGlobalLogger(logger)
}

func setDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.base_url", "https://api.catalogboost.dev")
	v.SetDefault("api.timeout", "60s")

	// Batch processing defaults
	v.SetDefault("batch.size", 10)

	// Archive defaults
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.database.host", "localhost")
	v.SetDefault("archive.database.port", 5432)
	v.SetDefault("archive.database.name", "catalogboost")
	v.SetDefault("archive.database.schema", "catalogboost")
	v.SetDefault("archive.database.sslmode", "disable")
	v.SetDefault("archive.database.max_connections", 5)

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	return cfg
}
