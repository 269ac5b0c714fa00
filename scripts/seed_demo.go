// Loads demo accounts and listings into the configured database.
//
// Usage: go run scripts/seed_demo.go [-file scripts/demo_seed.yaml]

package main

import (
	"context"
	"dorm_match_backend/internal/config"
	"dorm_match_backend/internal/repository"
	"dorm_match_backend/internal/seed"
	"dorm_match_backend/internal/service"
	"dorm_match_backend/pkg/database"
	"dorm_match_backend/pkg/logger"
	"flag"
	"log"
)

func main() {
	file := flag.String("file", "scripts/demo_seed.yaml", "seed fixture")
	flag.Parse()

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.ForceMigrate = true
	logger.InitLogger(cfg)

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	fixture, err := seed.Load(*file)
	if err != nil {
		log.Fatalf("Failed to load fixture: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	cache := service.NewCacheService(nil, 0)
	listings := service.NewListingService(
		repository.NewListingRepository(db),
		repository.NewTenantRequestRepository(db),
		repository.NewListingTenantRepository(db),
		service.NewStorageService(cfg),
		cache,
		cfg.Upload.MaxListingPics,
	)

	res, err := seed.Apply(context.Background(), fixture, service.NewAuthService(userRepo, cfg), listings)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seed done: %d users created, %d skipped, %d listings", res.UsersCreated, res.UsersSkipped, res.ListingsCreated)
}
