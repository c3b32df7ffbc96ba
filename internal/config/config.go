package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	FTPHost          string
	FTPDirectory     string
	FetchTimeout     time.Duration
	NumFetchWorkers  int
	MaxSplitSuffixes int
}

func New() (*Config, error) {
	cfg := &Config{
		FTPHost:          "ftp.datasus.gov.br:21",
		FTPDirectory:     "/dissemin/publicos/SIASUS/200801_/Dados",
		FetchTimeout:     120 * time.Second,
		NumFetchWorkers:  3,
		MaxSplitSuffixes: 3,
	}

	if host := os.Getenv("DATASUS_FTP_HOST"); host != "" {
		cfg.FTPHost = host
	}
	if dir := os.Getenv("DATASUS_FTP_DIR"); dir != "" {
		cfg.FTPDirectory = dir
	}

	var err error
	cfg.NumFetchWorkers, err = getEnvAsInt("NUM_FETCH_WORKERS", cfg.NumFetchWorkers)
	if err != nil {
		return nil, err
	}

	cfg.MaxSplitSuffixes, err = getEnvAsInt("MAX_SPLIT_SUFFIXES", cfg.MaxSplitSuffixes)
	if err != nil {
		return nil, err
	}

	timeoutSecs, err := getEnvAsInt("FETCH_TIMEOUT_SECONDS", int(cfg.FetchTimeout/time.Second))
	if err != nil {
		return nil, err
	}
	cfg.FetchTimeout = time.Duration(timeoutSecs) * time.Second

	return cfg, nil
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: expected an integer, got '%s'", key, valueStr)
	}

	return value, nil
}
