package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/saudedigital/siasus-pa/internal/config"
	"github.com/saudedigital/siasus-pa/internal/fetcher"
	"github.com/saudedigital/siasus-pa/internal/locator"
	"github.com/saudedigital/siasus-pa/internal/models"
	"github.com/saudedigital/siasus-pa/internal/pipeline"
)

func setup() (pipeline.Request, *pipeline.Pipeline, error) {
	if len(os.Args) < 4 {
		return pipeline.Request{}, nil, fmt.Errorf("usage: extraction <UF> <YYYY-MM-DD> <output-dir>")
	}

	periodStart, err := time.Parse("2006-01-02", os.Args[2])
	if err != nil {
		return pipeline.Request{}, nil, fmt.Errorf("invalid period start date %q: %w", os.Args[2], err)
	}

	cfg, err := config.New()
	if err != nil {
		return pipeline.Request{}, nil, fmt.Errorf("failed to load config: %w", err)
	}

	req := pipeline.Request{
		StateCode:   os.Args[1],
		PeriodStart: periodStart,
		OutputDir:   os.Args[3],
	}

	loc := locator.New(cfg.MaxSplitSuffixes)
	dial := fetcher.NewFTPDialer(cfg.FTPHost, cfg.FTPDirectory, cfg.FetchTimeout)
	return req, pipeline.New(loc, dial, cfg.NumFetchWorkers, cfg.FetchTimeout), nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}
	startTime := time.Now()

	req, pipe, err := setup()
	if err != nil {
		log.Fatal(err)
	}

	log.Println("Starting extraction process...")
	result := pipe.Run(context.Background(), req)

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode run result: %v", err)
	}
	fmt.Println(string(encoded))

	log.Printf("Execution time: %s\n", time.Since(startTime))
	if result.Status != models.RunStatusOK {
		os.Exit(1)
	}
}
