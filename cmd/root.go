package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"chargecal/config"
)

const envPrefix = "CHARGECAL"

var (
	cfgFile     string
	backendFlag string
	envFile     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chargecal",
	Short: "Validate, schedule, import, and export time charges.",
	Long: `
**********************************************
*              CHARGECAL                     *
**********************************************

This CLI materializes time charges, leaves, and holidays into calendar events,
validates new and changed charges against overlap, duration, and overtime rules,
and keeps a monthly event cache in sync with the time-charge API.

Backends:
- remote: the time-charge API configured under api.url
- local:  a SQLite database (storage.path), also served by "chargecal serve"
`,
	Example: `
  # Create configuration file
  chargecal config create

  # Serve the calendar API on top of the local SQLite database
  chargecal serve --backend local --port 8080

  # Check whether an interval would be accepted
  chargecal check --start "2024-03-11 09:00" --end "2024-03-11 17:00" --kind departmental --task-id 40

  # Import time charges from CSV/Excel (every row is validated first)
  chargecal import -i ./march.csv --dry-run

  # Load public holidays from an iCalendar feed into the local database
  chargecal holidays import -i ./holidays.ics --from 2024-01-01 --to 2024-12-31

  # Export one month of events and the daily summary
  chargecal export --period 2024-03 --mode events --output ./events.xlsx
  chargecal export --period 2024-03 --mode daily --output ./daily.csv
`,
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

	config.SetDefaults()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "configFile", "", "Config file override (default discovery: $HOME/.chargecal.yaml, then ./.chargecal.yaml)")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", backendRemote, "Persistence backend: remote|local")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before configuration (missing file is ignored)")
	rootCmd.PersistentFlags().String("db", "", "Path to local SQLite database (overrides storage.path)")
	_ = viper.BindPFlag(config.KeyStoragePath, rootCmd.PersistentFlags().Lookup("db"))
}

// initConfig reads in the dotenv file, config file and ENV variables if set.
func initConfig() {
	if err := loadEnvFile(envFile); err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".chargecal")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintln(os.Stderr, "No config file found. Using defaults and CHARGECAL_* environment. Create one with: chargecal config create")
	}
}

// loadEnvFile loads KEY=VALUE pairs without overriding variables that are
// already set.
func loadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
