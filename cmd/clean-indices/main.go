// Command clean-indices is the scheduled Lambda function deleting indices
// older than DELETE_AFTER_IN_DAYS.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/Nao-Mk2/cwlogs-to-es/cmd"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/client"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/retention"
)

func main() {
	rt, err := cmd.Setup(context.Background(), client.AuthOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup failed: %v\n", err)
		os.Exit(1)
	}
	if err := rt.Config.RequireRetention(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	cleaner := retention.New(rt.Store, rt.Config.IndexPattern, rt.Config.DeleteAfterDays,
		retention.WithMaxConcurrent(rt.Config.MaxConcurrentDeletes),
		retention.WithLogger(rt.Logger))
	lambda.Start(cleaner.Run)
}
