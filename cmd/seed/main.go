// Command seed writes sample testimonials to Firestore so the public feed has content in
// development projects.
package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"storefront-backend-go/internal/config"
	"storefront-backend-go/internal/db"
	"storefront-backend-go/internal/firebase"
	"storefront-backend-go/internal/models"
)

//go:embed testimonials.yaml
var defaultSamples []byte

type sample struct {
	Name        string  `yaml:"name"`
	Rating      float64 `yaml:"rating"`
	Text        string  `yaml:"text"`
	ProductType string  `yaml:"productType"`
	ProductName string  `yaml:"productName"`
}

type sampleFile struct {
	Testimonials []sample `yaml:"testimonials"`
}

func loadSamples(path string) ([]*models.Testimonial, error) {
	data := defaultSamples
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		data = raw
	}
	var f sampleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse samples: %w", err)
	}

	now := time.Now().UTC()
	out := make([]*models.Testimonial, 0, len(f.Testimonials))
	for i, s := range f.Testimonials {
		out = append(out, &models.Testimonial{
			Name:        s.Name,
			Rating:      s.Rating,
			Text:        s.Text,
			ProductType: s.ProductType,
			ProductName: s.ProductName,
			// Spread the dates so the feed order matches the file order.
			CreatedAt: now.Add(-time.Duration(i) * time.Minute),
		})
	}
	return out, nil
}

func main() {
	file := flag.String("file", "", "YAML file with testimonials (defaults to the built-in samples)")
	dryRun := flag.Bool("dry-run", false, "print what would be written without touching Firestore")
	flag.Parse()

	_ = godotenv.Load()
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	samples, err := loadSamples(*file)
	if err != nil {
		logger.Fatal("Failed to load samples", zap.Error(err))
	}
	if *dryRun {
		for _, t := range samples {
			logger.Info("would add testimonial", zap.String("name", t.Name), zap.Float64("rating", t.Rating))
		}
		return
	}

	appConfig, err := config.LoadFirebaseConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	app, err := firebase.Init(ctx, appConfig, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Firebase", zap.Error(err))
	}
	defer firebase.Teardown()

	repo := db.NewFirestoreTestimonialRepository(app.Firestore)
	ids, err := repo.CreateBatch(ctx, samples)
	if err != nil {
		logger.Fatal("Failed to write testimonials", zap.Error(err))
	}
	logger.Info("Sample testimonials added", zap.Int("count", len(ids)))
}
