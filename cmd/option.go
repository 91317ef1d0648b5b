package cmd

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/Nao-Mk2/cwlogs-to-es/internal/client"
)

// Bulk request limits used by replay unless overridden. The byte limit
// counts raw messages and stays well under the 10 MiB request cap of the
// smallest managed domains, leaving room for shadows and action lines.
const (
	DefaultBatchSize  = 1000
	DefaultBatchBytes = 4 << 20
)

// Options holds replay CLI options after parsing flags and env defaults.
type Options struct {
	GroupsCSV     string
	Region        string
	Profile       string
	FilterPattern string
	Owner         string
	StartRFC3339  string
	EndRFC3339    string
	Workers       int
	BatchSize     int
	BatchBytes    int
	DryRun        bool
}

// Validate checks required flags.
// Returns an error message and exit code; if no groups were given, it
// returns ("", 2) and the caller should invoke usage().
func (o *Options) Validate() (string, int) {
	if len(ParseGroupsCSV(o.GroupsCSV)) == 0 {
		// Caller prints usage() which exits(2)
		return "", 2
	}
	if o.Workers < 0 {
		return "error: --workers must not be negative", 2
	}
	if o.BatchSize < 0 {
		return "error: --batch-size must not be negative", 2
	}
	if o.BatchBytes < 0 {
		return "error: --batch-bytes must not be negative", 2
	}
	return "", 0
}

// AuthOptions returns the AWS credential options selected by the flags.
func (o *Options) AuthOptions() client.AuthOptions {
	return client.AuthOptions{Region: o.Region, Profile: ResolveProfile(o.Profile)}
}

// CollectOptions parses flags with environment-backed defaults and returns Options.
func CollectOptions() *Options {
	var o Options

	flag.StringVar(&o.GroupsCSV, "groups", os.Getenv("LOG_GROUP_NAMES"), "Comma-separated CloudWatch log group names")
	flag.StringVar(&o.Region, "region", os.Getenv("AWS_REGION"), "AWS region (optional; falls back to AWS defaults)")
	flag.StringVar(&o.Profile, "profile", "", "AWS shared config profile (or set AWS_PROFILE)")
	flag.StringVar(&o.FilterPattern, "filter-pattern", "", "CloudWatch Logs filter pattern (optional; all events by default)")
	flag.StringVar(&o.Owner, "owner", os.Getenv("AWS_ACCOUNT_ID"), "Account id written to @owner")
	flag.StringVar(&o.StartRFC3339, "start", "", "Start time RFC3339 (e.g., 2025-08-30T15:04:05Z)")
	flag.StringVar(&o.EndRFC3339, "end", "", "End time RFC3339 (e.g., 2025-08-31T15:04:05Z)")
	flag.IntVar(&o.Workers, "workers", 4, "Log groups searched in parallel")
	flag.IntVar(&o.BatchSize, "batch-size", DefaultBatchSize, "Max events per bulk request (0 = no limit)")
	flag.IntVar(&o.BatchBytes, "batch-bytes", DefaultBatchBytes, "Max message bytes per bulk request (0 = no limit)")
	flag.BoolVar(&o.DryRun, "dry-run", false, "Print bulk bodies to stdout instead of sending them")
	flag.Parse()

	return &o
}

// ParseGroupsCSV turns a comma-separated groups string into slice, trimming empties.
func ParseGroupsCSV(csv string) []string {
	if csv == "" {
		return nil
	}
	var groups []string
	for _, g := range strings.Split(csv, ",") {
		g = strings.TrimSpace(g)
		if g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}

// ResolveProfile returns the profile from flag or AWS_PROFILE env, or empty.
func ResolveProfile(flagProfile string) string {
	if flagProfile != "" {
		return flagProfile
	}
	return os.Getenv("AWS_PROFILE")
}

// DefaultTimeWindow returns the [start, end] timestamps for last 24 hours.
func DefaultTimeWindow() (time.Time, time.Time) {
	end := time.Now()
	start := end.Add(-24 * time.Hour)
	return start, end
}

// ResolveTimeWindow computes the [start,end] from optional RFC3339 strings.
// Rules:
// - both empty: last 24h ending at now
// - only start: end = now
// - only end: start = end - 24h
// - both set: validate start <= end
func ResolveTimeWindow(startStr, endStr string, now time.Time) (time.Time, time.Time, error) {
	if startStr == "" && endStr == "" {
		return now.Add(-24 * time.Hour), now, nil
	}
	var start time.Time
	var end time.Time
	var err error
	if startStr != "" {
		start, err = time.Parse(time.RFC3339, startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if endStr != "" {
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if startStr != "" && endStr == "" {
		end = now
	} else if startStr == "" && endStr != "" {
		start = end.Add(-24 * time.Hour)
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, ErrStartAfterEnd
	}
	return start, end, nil
}

// ErrStartAfterEnd represents an invalid time window where start > end.
var ErrStartAfterEnd = &timeRangeError{"start is after end"}

type timeRangeError struct{ s string }

func (e *timeRangeError) Error() string { return e.s }
