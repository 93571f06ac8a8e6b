package tests

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Layr-Labs/pricefeed-sidecar/internal/config"
	"github.com/google/uuid"
)

// Environment variables consulted by tests that need a live postgres.
const (
	TestDbHost     = "PRICEFEED_SIDECAR_TEST_DB_HOST"
	TestDbPort     = "PRICEFEED_SIDECAR_TEST_DB_PORT"
	TestDbUser     = "PRICEFEED_SIDECAR_TEST_DB_USER"
	TestDbPassword = "PRICEFEED_SIDECAR_TEST_DB_PASSWORD"
)

// GetDbConfigFromEnv returns nil when no test database host is configured.
func GetDbConfigFromEnv() *config.DatabaseConfig {
	host := os.Getenv(TestDbHost)
	if host == "" {
		return nil
	}
	port, err := strconv.Atoi(os.Getenv(TestDbPort))
	if err != nil || port == 0 {
		port = 5432
	}
	return &config.DatabaseConfig{
		Host:     host,
		Port:     port,
		User:     os.Getenv(TestDbUser),
		Password: os.Getenv(TestDbPassword),
		SSLMode:  "disable",
	}
}

func GenerateTestDbName() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("test_%s", strings.ReplaceAll(id.String(), "-", "")), nil
}
