package inspector

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Nao-Mk2/cwlogs-to-es/internal/model"
)

type fakeSearcher struct {
	mu         sync.Mutex
	responses  map[string][]model.LogRecord
	errByGroup map[string]error
	calls      []string
}

func (f *fakeSearcher) SearchGroup(ctx context.Context, group, filterPattern string, startMs, endMs int64) ([]model.LogRecord, error) {
	f.mu.Lock()
	f.calls = append(f.calls, group)
	f.mu.Unlock()
	if err := f.errByGroup[group]; err != nil {
		return nil, err
	}
	// Ensure events are within the provided time window for realism
	var filtered []model.LogRecord
	for _, r := range f.responses[group] {
		ts := r.Timestamp.UnixMilli()
		if ts >= startMs && ts <= endMs {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

func TestSearchAggregatesAndSortsAcrossGroups(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	g1 := "/aws/app/one"
	g2 := "/aws/app/two"
	f := &fakeSearcher{
		responses: map[string][]model.LogRecord{
			g1: {
				{ID: "2", Timestamp: now.Add(2 * time.Minute), LogGroup: g1, LogStream: "s1", Message: "msg2"},
			},
			g2: {
				{ID: "1", Timestamp: now.Add(1 * time.Minute), LogGroup: g2, LogStream: "s2", Message: "msg1"},
				{ID: "3", Timestamp: now.Add(3 * time.Minute), LogGroup: g2, LogStream: "s3", Message: "msg3"},
				{ID: "x", Timestamp: now.Add(time.Hour), LogGroup: g2, LogStream: "s3", Message: "outside"},
			},
		},
	}

	insp := New(f, []string{g1, g2}, now.Add(-time.Hour), now.Add(4*time.Minute))
	insp.SetWorkers(2)
	records, err := insp.Search(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if !sort.SliceIsSorted(records, func(i, j int) bool { return records[i].Timestamp.Before(records[j].Timestamp) }) {
		t.Fatalf("records are not sorted by timestamp ascending: %+v", records)
	}
	if records[0].Message != "msg1" || records[0].LogGroup != g2 {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
}

func TestSearchErrorWhenNoGroups(t *testing.T) {
	insp := New(&fakeSearcher{}, nil, time.Now().Add(-time.Hour), time.Now())
	if _, err := insp.Search(context.Background(), "abc"); err == nil {
		t.Fatalf("expected error when no groups configured")
	}
}

func TestSearchErrorWhenWindowInverted(t *testing.T) {
	insp := New(&fakeSearcher{}, []string{"g"}, time.Now(), time.Now().Add(-time.Hour))
	if _, err := insp.Search(context.Background(), ""); err == nil {
		t.Fatalf("expected error for inverted window")
	}
}

func TestSearchPropagatesAPIError(t *testing.T) {
	g1 := "/aws/app/one"
	f := &fakeSearcher{errByGroup: map[string]error{g1: errors.New("boom")}}
	insp := New(f, []string{g1, "/aws/app/two"}, time.Now().Add(-time.Hour), time.Now())
	if _, err := insp.Search(context.Background(), "abc"); err == nil {
		t.Fatalf("expected API error to propagate")
	}
}

func TestBatches(t *testing.T) {
	ts := time.UnixMilli(1700000000000)
	records := []model.LogRecord{
		{ID: "1", Timestamp: ts, LogGroup: "g", LogStream: "a", Message: "m1"},
		{ID: "2", Timestamp: ts.Add(time.Millisecond), LogGroup: "g", LogStream: "b", Message: "m2"},
		{ID: "3", Timestamp: ts.Add(2 * time.Millisecond), LogGroup: "g", LogStream: "a", Message: "m3"},
	}
	got := Batches(records, "123456789012")
	want := []*model.LogBatch{
		{
			MessageType: model.MessageTypeData, Owner: "123456789012", LogGroup: "g", LogStream: "a",
			LogEvents: []model.LogEvent{
				{ID: "1", Timestamp: 1700000000000, Message: "m1"},
				{ID: "3", Timestamp: 1700000000002, Message: "m3"},
			},
		},
		{
			MessageType: model.MessageTypeData, Owner: "123456789012", LogGroup: "g", LogStream: "b",
			LogEvents: []model.LogEvent{{ID: "2", Timestamp: 1700000000001, Message: "m2"}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Batches mismatch (-want +got):\n%s", diff)
	}
}

func TestSplit(t *testing.T) {
	events := func(msgs ...string) []model.LogEvent {
		out := make([]model.LogEvent, len(msgs))
		for i, m := range msgs {
			out[i] = model.LogEvent{ID: m, Timestamp: int64(i), Message: m}
		}
		return out
	}
	batch := func(stream string, ev []model.LogEvent) *model.LogBatch {
		return &model.LogBatch{MessageType: model.MessageTypeData, Owner: "o", LogGroup: "g", LogStream: stream, LogEvents: ev}
	}
	counts := func(bs []*model.LogBatch) []int {
		var out []int
		for _, b := range bs {
			out = append(out, len(b.LogEvents))
		}
		return out
	}

	tests := []struct {
		name      string
		in        []*model.LogBatch
		maxEvents int
		maxBytes  int
		want      []int
	}{
		{"no-limits", []*model.LogBatch{batch("a", events("1", "2", "3"))}, 0, 0, []int{3}},
		{"by-count", []*model.LogBatch{batch("a", events("1", "2", "3", "4", "5"))}, 2, 0, []int{2, 2, 1}},
		{"by-bytes", []*model.LogBatch{batch("a", events("aaaa", "bbbb", "cccc"))}, 0, 8, []int{2, 1}},
		{"oversized-event-alone", []*model.LogBatch{batch("a", events("x", "yyyyyyyyyy", "z"))}, 0, 5, []int{1, 1, 1}},
		{"per-stream", []*model.LogBatch{batch("a", events("1", "2", "3")), batch("b", events("4"))}, 2, 0, []int{2, 1, 1}},
		{"empty-batch-dropped", []*model.LogBatch{batch("a", nil)}, 2, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.in, tt.maxEvents, tt.maxBytes)
			if diff := cmp.Diff(tt.want, counts(got)); diff != "" {
				t.Fatalf("piece sizes mismatch (-want +got):\n%s", diff)
			}
			var ids []string
			for _, b := range got {
				if b.LogGroup != "g" || b.Owner != "o" || b.MessageType != model.MessageTypeData {
					t.Fatalf("envelope not carried over: %+v", b)
				}
				for _, ev := range b.LogEvents {
					ids = append(ids, b.LogStream+"/"+ev.ID)
				}
			}
			var want []string
			for _, b := range tt.in {
				for _, ev := range b.LogEvents {
					want = append(want, b.LogStream+"/"+ev.ID)
				}
			}
			if diff := cmp.Diff(want, ids); diff != "" {
				t.Fatalf("event order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
