package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/castorix/go-workflow-harness/cmd"
	"github.com/castorix/go-workflow-harness/internal/config"
	"github.com/castorix/go-workflow-harness/internal/logger"
)

func main() {
	// Pick up a .env file when present; node endpoints and hub URLs
	// often live there
	_ = godotenv.Load()

	// Get harness configuration file from environment if specified
	configFile := os.Getenv("HARNESS_CONFIG")

	// 1. Initialize application configuration
	if err := config.Initialize(configFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logging based on application configuration
	if err := initLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	// 3. Hand over to the CLI; the exit code carries the run verdict
	code := cmd.Execute()

	// Ensure logs are flushed before exit
	logger.Sync()
	os.Exit(code)
}

// initLogging initializes the logger based on configuration settings
func initLogging() error {
	logConfig := logger.LoggerConfig{
		Debug:     config.Instance.Debug,
		LogFormat: config.Instance.LogFormat,
		LogFile:   config.Instance.LogFile,
	}

	return logger.InitLogger(logConfig)
}
