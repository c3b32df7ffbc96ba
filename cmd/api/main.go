package main

import (
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/saudedigital/siasus-pa/internal/config"
	"github.com/saudedigital/siasus-pa/internal/fetcher"
	"github.com/saudedigital/siasus-pa/internal/locator"
	"github.com/saudedigital/siasus-pa/internal/pipeline"
	"github.com/saudedigital/siasus-pa/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	loc := locator.New(cfg.MaxSplitSuffixes)
	dial := fetcher.NewFTPDialer(cfg.FTPHost, cfg.FTPDirectory, cfg.FetchTimeout)
	pipe := pipeline.New(loc, dial, cfg.NumFetchWorkers, cfg.FetchTimeout)

	extractionService := server.NewExtractionService(pipe)
	mux := server.SetupRoutes(extractionService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting extraction API on port %s", port)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
