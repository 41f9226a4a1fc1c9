package cmd

import (
	"context"
	"log"
	"strings"

	"github.com/unimarket/matchmaker/internal/catalog"
	"github.com/unimarket/matchmaker/internal/logger"
	"github.com/unimarket/matchmaker/internal/pipeline"
	"github.com/unimarket/matchmaker/internal/sellers"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var categorizeCmd = &cobra.Command{
	Use:   "categorize [seller-id] [description]",
	Short: "Infer catalog categories from a seller description and store them",
	Args:  cobra.MinimumNArgs(2),
	Run: func(_ *cobra.Command, args []string) {
		categorize(args)
	},
}

func init() {
	rootCmd.AddCommand(categorizeCmd)
}

func categorize(args []string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
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

	catalogRepo := catalog.NewRepository(db, logger)

	engine, err := pipeline.New(pipeline.Deps{
		Suggester: suggester,
		Catalog:   catalogRepo,
		Sellers:   sellers.NewRepository(db, logger),
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("building the matching engine", zap.Error(err))
	}

	sellerID := args[0]
	description := strings.Join(args[1:], " ")

	stored, err := engine.CategorizeSeller(ctx, sellerID, description)
	if err != nil {
		logger.Fatal("categorizing the seller", zap.Error(err))
	}

	if len(stored) == 0 {
		logger.Info("exiting", zap.String("reason", "no categories inferred from the description"))
		return
	}

	logger.Info("stored seller categories",
		zap.String("seller_id", sellerID),
		zap.Strings("categories", catalog.Names(stored)),
	)

	all, err := catalogRepo.ForSeller(ctx, sellerID)
	if err != nil {
		logger.Warn("loading the seller's full category set", zap.Error(err))
		return
	}

	logger.Info("seller now holds",
		zap.String("seller_id", sellerID),
		zap.Strings("categories", catalog.Names(all)),
	)
}
