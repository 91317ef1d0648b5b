// Command stream-logs is the Lambda function subscribed to CloudWatch Logs.
// It decodes each subscription batch and bulk-writes it to the store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/Nao-Mk2/cwlogs-to-es/cmd"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/bulk"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/client"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/shipper"
)

func main() {
	rt, err := cmd.Setup(context.Background(), client.AuthOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup failed: %v\n", err)
		os.Exit(1)
	}
	builder := bulk.New(rt.Config.IndexPattern, rt.Config.DocumentType)
	s := shipper.New(rt.Store, builder, rt.Config.PayloadPath, rt.Logger)
	lambda.Start(s.Handle)
}
