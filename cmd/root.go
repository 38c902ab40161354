package cmd

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jobmatch/jobmatch/internal/backend"
	"github.com/jobmatch/jobmatch/internal/filtering"
	"github.com/jobmatch/jobmatch/internal/matching"
)

const (
	app = "jobmatch"

	envPrefix = "JOBMATCH"
)

type Config struct {
	APIURL         string                `mapstructure:"api-url"`
	Store          string                `mapstructure:"store"`
	UserAgent      string                `mapstructure:"user-agent"`
	Timeout        time.Duration         `mapstructure:"timeout"`
	RefreshTimeout time.Duration         `mapstructure:"refresh-timeout"`
	Search         *backend.SearchParams `mapstructure:"search"`
	Filters        *filtering.Config     `mapstructure:"filters"`
	Display        matching.DisplayCaps  `mapstructure:"display"`
	AI             *AIConfig             `mapstructure:"ai"`
}

type AIConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Gemini  *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
	Instructions string `mapstructure:"instructions"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobmatch searches jobs and shows how well they match your resume",
	}
)

// Execute executes the root command. Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobmatch.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("api-url", "", "backend API base url")
	rootCmd.PersistentFlags().String("store", "", "path of the local state database")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("api-url", rootCmd.PersistentFlags().Lookup("api-url"))
	viper.BindPFlag("store", rootCmd.PersistentFlags().Lookup("store"))

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("api-url", "http://localhost:8000/api")
	viper.SetDefault("store", defaultStorePath())
	viper.SetDefault("user-agent", app+"-cli")
	viper.SetDefault("timeout", 10*time.Second)
	viper.SetDefault("refresh-timeout", 15*time.Second)

	defaults := backend.DefaultSearchParams()
	viper.SetDefault("search.keywords", "")
	viper.SetDefault("search.location-name", defaults.LocationName)
	viper.SetDefault("search.experience", defaults.ExperienceLevel)
	viper.SetDefault("search.job-type", defaults.JobType)
	viper.SetDefault("search.remote", defaults.Remote)
	viper.SetDefault("search.limit", defaults.Limit)

	viper.SetDefault("filters.min-score", 0)
	viper.SetDefault("filters.exclude-companies", []string{})
	viper.SetDefault("filters.workplace-types", []string{})

	caps := matching.DefaultDisplayCaps()
	viper.SetDefault("display.matched-skills", caps.Matched)
	viper.SetDefault("display.missing-skills", caps.Missing)

	viper.SetDefault("ai.enabled", false)
	viper.SetDefault("ai.gemini.api-key-file", "")
	viper.SetDefault("ai.gemini.model", "")
	viper.SetDefault("ai.gemini.max-retries", 3)
	viper.SetDefault("ai.gemini.max-log-length", 200)
	viper.SetDefault("ai.gemini.instructions", "")
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, app, "state.db")
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Without a config file the defaults, env and flags are used.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return config, err
	}

	if config.Search == nil {
		config.Search = backend.DefaultSearchParams()
	}
	if config.Filters == nil {
		config.Filters = &filtering.Config{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}

	return config, nil
}
