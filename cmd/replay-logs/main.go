// Command replay-logs re-ships historical CloudWatch Logs events to the
// store, for backfills and for recovering from failed deliveries.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Nao-Mk2/cwlogs-to-es/cmd"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/bulk"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/client"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/inspector"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/model"
	"github.com/Nao-Mk2/cwlogs-to-es/internal/shipper"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: replay-logs --groups g1,g2 [--filter-pattern <pattern>] [--region us-east-1] [--start RFC3339] [--end RFC3339] [--batch-size N] [--batch-bytes N] [--dry-run]")
	fmt.Fprintln(os.Stderr, "Environment: ES_ENDPOINT and INDEX_NAME_PATTERN are required; LOG_GROUP_NAMES can provide comma-separated groups.")
	os.Exit(2)
}

func main() {
	opts := cmd.CollectOptions()
	if msg, code := opts.Validate(); code != 0 {
		if msg == "" {
			usage()
		}
		fmt.Fprintln(os.Stderr, msg)
		os.Exit(code)
	}
	groups := cmd.ParseGroupsCSV(opts.GroupsCSV)

	start, end, err := cmd.ResolveTimeWindow(opts.StartRFC3339, opts.EndRFC3339, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid time window: %v\n", err)
		os.Exit(2)
	}

	ctx := context.Background()
	rt, err := cmd.Setup(ctx, opts.AuthOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup failed: %v\n", err)
		os.Exit(1)
	}

	insp := inspector.New(client.NewCloudWatchClient(rt.AWS), groups, start, end)
	workers := opts.Workers
	if workers > len(groups) {
		workers = len(groups)
	}
	insp.SetWorkers(workers)
	records, err := insp.Search(ctx, opts.FilterPattern)
	if err != nil {
		fmt.Fprintf(os.Stderr, "search error: %v\n", err)
		os.Exit(1)
	}
	if len(records) == 0 {
		fmt.Fprintf(os.Stderr, "No logs found between %s and %s.\n",
			start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
		return
	}

	builder := bulk.New(rt.Config.IndexPattern, rt.Config.DocumentType)
	batches := inspector.Split(inspector.Batches(records, opts.Owner), opts.BatchSize, opts.BatchBytes)

	if opts.DryRun {
		if err := writeBodies(os.Stdout, builder, batches); err != nil {
			fmt.Fprintf(os.Stderr, "dry run failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	s := shipper.New(rt.Store, builder, rt.Config.PayloadPath, rt.Logger)
	for _, b := range batches {
		if err := s.Ship(ctx, b); err != nil {
			fmt.Fprintf(os.Stderr, "replay of %s/%s failed: %v\n", b.LogGroup, b.LogStream, err)
			os.Exit(1)
		}
	}
	rt.Logger.Info("replay finished", "events", len(records), "batches", len(batches))
}

// writeBodies prints the bulk body of every batch to w.
func writeBodies(w io.Writer, builder *bulk.Builder, batches []*model.LogBatch) error {
	bw := bufio.NewWriter(w)
	for _, b := range batches {
		body, err := builder.BuildBatch(b)
		if err != nil {
			return fmt.Errorf("build %s/%s: %w", b.LogGroup, b.LogStream, err)
		}
		if _, err := bw.Write(body); err != nil {
			return fmt.Errorf("write: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
