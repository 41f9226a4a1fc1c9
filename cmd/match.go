package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/unimarket/matchmaker/internal/ai"
	"github.com/unimarket/matchmaker/internal/ai/gemini"
	"github.com/unimarket/matchmaker/internal/catalog"
	"github.com/unimarket/matchmaker/internal/logger"
	"github.com/unimarket/matchmaker/internal/pipeline"
	"github.com/unimarket/matchmaker/internal/secrets"
	"github.com/unimarket/matchmaker/internal/sellers"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/manifoldco/promptui"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	PromptExit                = "Exit"
	PromptShowMatches         = "Show matches"
	PromptReportByInstitution = "Report sellers by institution"
	PromptSellersToFile       = "Dump sellers to file"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptExit, PromptShowMatches, PromptReportByInstitution, PromptSellersToFile},
}

var matchCmd = &cobra.Command{
	Use:   "match [request text]",
	Short: "Match a free-text buyer request to a ranked list of sellers",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		match(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("institution", "i", "", "institution of the requesting buyer")
	matchCmd.Flags().IntP("limit", "l", 0, "maximum number of sellers to return")
	matchCmd.Flags().BoolP("no-prompt", "y", false, "print the result and exit without the interactive prompt")

	viper.BindPFlag("institution", matchCmd.Flags().Lookup("institution"))
	viper.BindPFlag("limit", matchCmd.Flags().Lookup("limit"))
}

// match is the main command for the cli.
func match(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the matchmaker", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	if config.Institution == "" {
		logger.Fatal("institution is required",
			zap.String("hint", "set the 'institution' key in the configuration file or pass --institution"),
		)
	}

	db, err := connect(config)
	if err != nil {
		logger.Fatal("connecting to the database", zap.Error(err))
	}
	defer db.Close()

	suggester, err := newSuggester(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal(
			"building the category suggester",
			zap.Error(err),
			zap.String("hint", "set ai.gemini.api-key-file or GEMINI_API_KEY_FILE"),
		)
	}

	engine, err := pipeline.New(pipeline.Deps{
		Suggester: suggester,
		Catalog:   catalog.NewRepository(db, logger),
		Sellers:   sellers.NewRepository(db, logger),
		Cache:     newCache(config.Redis, logger),
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("building the matching engine", zap.Error(err))
	}

	freeText := strings.Join(args, " ")
	logger.Info("starting the match", zap.String("request", freeText))

	result, err := engine.Match(ctx, pipeline.MatchRequest{
		FreeText:    freeText,
		Institution: config.Institution,
		Limit:       config.Limit,
	})
	if err != nil {
		logger.Fatal("matching failed", zap.Error(err))
	}

	if len(result.Results) == 0 {
		logger.Info("exiting", zap.String("reason", "no sellers matched the request"))
		return
	}

	showMatches(result, logger)

	if cmd.Flag("no-prompt").Value.String() == "true" {
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, result, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, result *pipeline.MatchResult, logger *zap.Logger) error {
	switch action {
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	case PromptShowMatches:
		showMatches(result, logger)
		return nil
	case PromptReportByInstitution:
		pretty, _ := json.MarshalIndent(result.Eligible.ReportByInstitution(), "", "  ")
		logger.Info(string(pretty), zap.Int("sellers count", result.Eligible.Len()))
		return nil
	case PromptSellersToFile:
		filename, err := result.Eligible.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump sellers to file: %w", err)
		}
		logger.Info("dumping sellers to file", zap.String("filename", filename))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func showMatches(result *pipeline.MatchResult, logger *zap.Logger) {
	pretty, _ := json.MarshalIndent(result, "", "  ")
	logger.Info(string(pretty), zap.Int("sellers count", len(result.Results)))
}

func connect(config *Config) (*sqlx.DB, error) {
	dsn, err := resolveDSN(config)
	if err != nil {
		return nil, err
	}

	return sqlx.Connect("postgres", dsn)
}

func resolveDSN(config *Config) (string, error) {
	if config == nil || config.Database == nil {
		return "", errors.New("database configuration is required")
	}

	dsnFile := strings.TrimSpace(config.Database.DSNFile)
	if dsnFile == "" {
		dsnFile = strings.TrimSpace(viper.GetString("database.dsn-file"))
	}

	if dsnFile == "" {
		return "", errors.New("database dsn file is not configured")
	}

	return secrets.Load(secrets.Source{
		Name: "database dsn",
		File: dsnFile,
	})
}

func newCache(cfg *RedisConfig, logger *zap.Logger) pipeline.GenerationCache {
	if cfg == nil || cfg.Addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return pipeline.NewRedisCache(client, cfg.TTL, logger)
}

func newSuggester(ctx context.Context, cfg *AIConfig, base *zap.Logger) (ai.Suggester, error) {
	if cfg == nil || cfg.Gemini == nil {
		return nil, errors.New("ai.gemini configuration is required")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60), 1)
	}

	genLogger := logger.WithCommonFields(base, "gemini", cfg.Gemini.Model).With(
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, limiter, genLogger)
	if err != nil {
		return nil, err
	}

	return gemini.NewSuggester(generator, cfg.Gemini.MaxLogLength, genLogger), nil
}
