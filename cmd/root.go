package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "matchmaker"
)

type Config struct {
	Institution string          `mapstructure:"institution"`
	Limit       int             `mapstructure:"limit"`
	Database    *DatabaseConfig `mapstructure:"database"`
	Redis       *RedisConfig    `mapstructure:"redis"`
	AI          *AIConfig       `mapstructure:"ai"`
}

type DatabaseConfig struct {
	DSNFile    string `mapstructure:"dsn-file"`
	Migrations string `mapstructure:"migrations"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type AIConfig struct {
	Provider          string        `mapstructure:"provider"`
	RequestsPerMinute float64       `mapstructure:"requests-per-minute"`
	Gemini            *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "matchmaker is a cli for matching free-text buyer requests to sellers in a campus marketplace",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("database.dsn-file", "MATCHMAKER_DSN_FILE"); err != nil {
		log.Fatalf("binding MATCHMAKER_DSN_FILE environment variable: %v", err)
	}

	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is matchmaker.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for the commands that touch the database.
	if matchCmd.CalledAs() == "" && categorizeCmd.CalledAs() == "" && migrateCmd.CalledAs() == "" && seedCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
