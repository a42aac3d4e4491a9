package app

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/machinemap/machinemap/internal/listing"
)

// Config holds the application configuration loaded from config files,
// environment variables and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool

	// Config file
	ConfigFile string

	// Reconciliation configuration
	DataDir    string
	ListingURL string
	AreasFile  string
	DryRun     bool
	FromRemote bool

	// Collaborator credentials
	GoogleAPIKey string
	GitHubToken  string
	GitHubOwner  string
	GitHubRepo   string
	SlackToken   string
	SlackChannel string

	// Logging configuration
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from all sources in order of precedence:
// command-line flags (handled by cobra), environment variables, .env files,
// config file (~/.machinemap.yaml), defaults.
func LoadConfig() (*Config, error) {
	loadEnvFiles()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	bindSecrets()

	configFile := viper.GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.AddConfigPath(".")
			viper.SetConfigType("yaml")
			viper.SetConfigName(".machinemap")
		}
	}
	_ = viper.ReadInConfig()

	config := &Config{
		Verbose: viper.GetBool("verbose"),
		Quiet:   viper.GetBool("quiet"),
		NoColor: viper.GetBool("no-color"),

		ConfigFile: viper.ConfigFileUsed(),

		DataDir:    viper.GetString("data_dir"),
		ListingURL: viper.GetString("listing_url"),
		AreasFile:  viper.GetString("areas_file"),
		FromRemote: viper.GetBool("from_remote"),

		GoogleAPIKey: viper.GetString("GOOGLE_API_KEY"),
		GitHubToken:  viper.GetString("GITHUB_TOKEN"),
		GitHubOwner:  viper.GetString("GITHUB_OWNER"),
		GitHubRepo:   viper.GetString("GITHUB_REPO"),
		SlackToken:   viper.GetString("SLACK_TOKEN"),
		SlackChannel: viper.GetString("SLACK_CHANNEL"),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", ""),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
	}

	if config.DataDir == "" {
		config.DataDir = "data"
	}
	if config.ListingURL == "" {
		config.ListingURL = listing.DefaultBaseURL
	}

	return config, nil
}

// UpdateFromFlags applies parsed command flags on top of the loaded
// configuration so flags take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

// bindSecrets explicitly binds credential environment variables to Viper.
func bindSecrets() {
	secrets := []string{
		"GOOGLE_API_KEY",
		"GITHUB_TOKEN",
		"GITHUB_OWNER",
		"GITHUB_REPO",
		"SLACK_TOKEN",
		"SLACK_CHANNEL",
	}
	for _, key := range secrets {
		_ = viper.BindEnv(key)
	}
}

// getEnvOrDefault returns the environment variable value or the default if
// not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
