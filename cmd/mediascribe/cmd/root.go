package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eternnoir/mediascribe/pkg/config"
	"github.com/eternnoir/mediascribe/pkg/logger"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mediascribe",
	Short: "Media transcription pipeline service",
	Long: `mediascribe accepts a video URL, downloads the media, extracts and
normalizes audio, segments it into chunks, sends each chunk to a remote
speech-to-text API, merges the per-chunk results into a single transcript,
and persists all intermediate and final artifacts in an object store.

Features:
- Bounded task queue with a pool of stage-driving workers
- Download -> Split -> Transcribe -> Merge pipeline per task
- Rate-limited, retrying chunk-transcription fan-out
- Server-sent progress events per task
- S3-compatible artifact storage`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mediascribe.yaml)")
	rootCmd.PersistentFlags().String("temp-dir", "", "temporary directory for processing")
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose output (deprecated, use --log-level debug)")

	// Logging flags
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (console, json)")
	rootCmd.PersistentFlags().String("log-output", "stdout", "log output (stdout, stderr, file path)")
	rootCmd.PersistentFlags().Bool("log-no-color", false, "disable colored log output")
	rootCmd.PersistentFlags().Bool("log-caller", false, "include caller information in logs")

	// Bind flags to viper
	_ = viper.BindPFlag("temp_dir", rootCmd.PersistentFlags().Lookup("temp-dir"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Bind logging flags to viper
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("logging.output", rootCmd.PersistentFlags().Lookup("log-output"))
	_ = viper.BindPFlag("logging.caller", rootCmd.PersistentFlags().Lookup("log-caller"))
	_ = viper.BindPFlag("logging.no_color", rootCmd.PersistentFlags().Lookup("log-no-color"))

	// Environment variable bindings
	viper.SetEnvPrefix("MEDIASCRIBE")
	viper.AutomaticEnv()
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".mediascribe" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".mediascribe")
	}

	// If a config file is found, read it in.
	configFileUsed := ""
	if err := viper.ReadInConfig(); err == nil {
		configFileUsed = viper.ConfigFileUsed()
	}

	// Initialize logger
	initLogger()

	// Log config file usage after logger is initialized
	if configFileUsed != "" {
		logger.Info().Str("config_file", configFileUsed).Msg("Loaded configuration file")
	}
}

// initLogger initializes the logger based on configuration
func initLogger() {
	cfg := config.DefaultConfig()

	// Update logging config from viper
	cfg.Logging.Level = viper.GetString("logging.level")
	cfg.Logging.Format = viper.GetString("logging.format")
	cfg.Logging.Output = viper.GetString("logging.output")
	cfg.Logging.Caller = viper.GetBool("logging.caller")

	// Handle legacy verbose flag
	if viper.GetBool("verbose") && cfg.Logging.Level == "info" {
		cfg.Logging.Level = "debug"
	}

	// Handle no-color flag
	if viper.GetBool("logging.no_color") {
		cfg.Logging.PrettyMode = false
	}

	// Initialize the logger
	if err := logger.Initialize(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
}
