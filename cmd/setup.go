package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/Nao-Mk2/cwlogs-to-es/internal/client"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/config"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/logging"
)

// Runtime is the state shared by the entry points: configuration, logger,
// AWS configuration and the signed store client.
type Runtime struct {
	Config *config.Config
	Logger *slog.Logger
	AWS    aws.Config
	Store  *client.Store
}

// Setup loads the environment configuration, initialises logging and builds
// the signed store client. auth.Region falls back to AWS_REGION from cfg.
func Setup(ctx context.Context, auth client.AuthOptions) (*Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.Init(logging.ParseLevel(cfg.LogLevel))
	logger.Info("config loaded", "config", cfg.String())

	if auth.Region == "" {
		auth.Region = cfg.Region
	}
	awsCfg, err := client.LoadAWSConfig(ctx, auth)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	tr, err := client.NewSignedTransport(cfg.Endpoint, awsCfg)
	if err != nil {
		return nil, err
	}
	return &Runtime{Config: cfg, Logger: logger, AWS: awsCfg, Store: client.NewStore(tr)}, nil
}
