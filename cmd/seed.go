package cmd

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/unimarket/matchmaker/internal/catalog"
	"github.com/unimarket/matchmaker/internal/logger"
	"github.com/unimarket/matchmaker/internal/sellers"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// seedEntry is one seller record in the seed file. Categories are given by
// display name and resolved against the catalog on load.
type seedEntry struct {
	ID             string   `mapstructure:"id"`
	Name           string   `mapstructure:"name"`
	Institution    string   `mapstructure:"institution"`
	AverageRating  float64  `mapstructure:"average_rating"`
	RatingCount    int      `mapstructure:"rating_count"`
	BillingActive  bool     `mapstructure:"billing_active"`
	BillingDueDate string   `mapstructure:"billing_due_date"`
	Categories     []string `mapstructure:"categories"`
}

var seedCmd = &cobra.Command{
	Use:   "seed [file]",
	Short: "Load sellers and their categories from a JSON file into the database",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		seed(args[0])
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func seed(filename string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	entries, err := loadSeedFile(filename)
	if err != nil {
		logger.Fatal("loading the seed file", zap.Error(err))
	}

	if len(entries) == 0 {
		logger.Info("exiting", zap.String("reason", "seed file contains no sellers"))
		return
	}

	db, err := connect(config)
	if err != nil {
		logger.Fatal("connecting to the database", zap.Error(err))
	}
	defer db.Close()

	catalogRepo := catalog.NewRepository(db, logger)
	sellerRepo := sellers.NewRepository(db, logger)

	for _, entry := range entries {
		seller, err := entry.toSeller()
		if err != nil {
			logger.Fatal("parsing a seed entry", zap.String("name", entry.Name), zap.Error(err))
		}

		if err := sellerRepo.Upsert(ctx, seller); err != nil {
			logger.Fatal("storing a seller", zap.String("seller_id", seller.ID), zap.Error(err))
		}

		categoryIDs := make([]string, 0, len(entry.Categories))
		for _, name := range catalog.Dedupe(entry.Categories) {
			category, err := catalogRepo.Upsert(ctx, name)
			if err != nil {
				logger.Fatal("storing a category", zap.String("category", name), zap.Error(err))
			}
			categoryIDs = append(categoryIDs, category.ID)
		}

		if err := catalogRepo.Associate(ctx, seller.ID, categoryIDs); err != nil {
			logger.Fatal("associating seller categories", zap.String("seller_id", seller.ID), zap.Error(err))
		}

		logger.Info("seller seeded",
			zap.String("seller_id", seller.ID),
			zap.String("name", seller.Name),
			zap.Int("categories", len(categoryIDs)),
		)
	}

	logger.Info("seeding completed", zap.Int("sellers", len(entries)))
}

func loadSeedFile(filename string) ([]*seedEntry, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	var entries []*seedEntry
	if err := mapstructure.Decode(raw, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}

func (e *seedEntry) toSeller() (*sellers.Seller, error) {
	seller := &sellers.Seller{
		ID:            e.ID,
		Name:          e.Name,
		Institution:   e.Institution,
		AverageRating: e.AverageRating,
		RatingCount:   e.RatingCount,
		BillingActive: e.BillingActive,
	}

	if seller.ID == "" {
		seller.ID = uuid.NewString()
	}

	if e.BillingDueDate != "" {
		due, err := time.Parse(time.RFC3339, e.BillingDueDate)
		if err != nil {
			return nil, err
		}
		seller.BillingDueDate = &due
	}

	return seller, nil
}
