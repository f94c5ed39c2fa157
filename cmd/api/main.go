package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/jun/gophdocs/backend/internal/app"
	"github.com/jun/gophdocs/backend/internal/config"
	"github.com/jun/gophdocs/backend/internal/obs"
)

func main() {
	cfg := config.Load()
	logger := obs.NewLogger(os.Stdout, cfg.LogLevel)

	application, err := app.NewApp(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	lambda.Start(application.HandleRequest)
}
