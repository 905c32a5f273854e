package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ossyrian/vdfs/internal/config"
	"github.com/ossyrian/vdfs/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:               "vdfs",
	Short:             "Inspect, build and modify VDFS archives",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")

	// archive
	rootCmd.PersistentFlags().StringP("archive", "a", "", "path to the .vdf archive")
	rootCmd.PersistentFlags().String("comment", "", "comment to store in the archive header")
	rootCmd.PersistentFlags().String("signature", "", "signature for new archives (default \"PSVDSC_V2.00\")")

	// other opts
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-output-dir", "", "directory to write log files (if set, logs are written to both stderr and file)")
	rootCmd.PersistentFlags().Bool("dry-run", false, "run without writing changes to the archive")

	viper.BindPFlag("archive", rootCmd.PersistentFlags().Lookup("archive"))
	viper.BindPFlag("comment", rootCmd.PersistentFlags().Lookup("comment"))
	viper.BindPFlag("signature", rootCmd.PersistentFlags().Lookup("signature"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_output_dir", rootCmd.PersistentFlags().Lookup("log-output-dir"))
	viper.BindPFlag("dry_run", rootCmd.PersistentFlags().Lookup("dry-run"))

	addCommands(rootCmd)
}

// initConfig reads in config file and environment variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "vdfs"))
		}
		viper.AddConfigPath("/etc/vdfs")
		viper.SetConfigName("config")
		viper.SetConfigType("toml")
	}

	viper.SetEnvPrefix("VDFS")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setup loads the config and installs the logger before any command runs
func setup(cmd *cobra.Command, args []string) error {
	cfg = &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logFile, err := logging.Setup(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogOutputDir)
	if err != nil {
		return fmt.Errorf("could not set up logging: %w", err)
	}
	if logFile != "" {
		fmt.Fprintf(os.Stderr, "Logging to file: %s\n", logFile)
	}

	slog.Debug("loaded config", "command", cmd.Name(), "archive", cfg.Archive, "dry_run", cfg.DryRun)

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
