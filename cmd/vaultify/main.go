package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/vaultify/internal/config"
	"github.com/franz/vaultify/internal/util"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "vaultify",
		Short: "Vaultify - music storage with automatic metadata reconciliation",
		Long: `vaultify stores uploaded music in S3-compatible object storage and keeps
a single metadata document describing every track and playlist.

Metadata is reconciled from embedded tags, the file name and online catalogs
(JioSaavn, Spotify, MusicBrainz), scored and merged without clobbering
fields users have already set.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./vaultify.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().String("events-dir", "", "write a JSONL event log to this directory")
	rootCmd.PersistentFlags().String("storage", "", "storage backend: s3 or local")

	// Bind flags to viper
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	viper.BindPFlag("no_color", rootCmd.PersistentFlags().Lookup("no-color"))
	viper.BindPFlag("events.dir", rootCmd.PersistentFlags().Lookup("events-dir"))
	viper.BindPFlag("storage.backend", rootCmd.PersistentFlags().Lookup("storage"))
}

func initConfig() {
	// .env never overrides variables already set in the environment
	if err := config.LoadDotEnv(); err != nil {
		util.WarnLog("%v", err)
	}

	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("vaultify")
		viper.SetConfigType("yaml")
	}

	if err := config.BindEnv(viper.GetViper()); err != nil {
		util.WarnLog("%v", err)
	}

	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
	if viper.GetBool("no_color") {
		util.SetColors(false)
	}

	if err := viper.ReadInConfig(); err == nil {
		util.DebugLog("Using config file: %s", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		util.ErrorLog("Failed to read config file %s: %v", cfgFile, err)
		os.Exit(1)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
