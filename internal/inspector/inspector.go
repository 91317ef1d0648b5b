package inspector

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Nao-Mk2/cwlogs-to-es/internal/model"
)

// GroupSearcher fetches the events of a single log group.
type GroupSearcher interface {
	SearchGroup(ctx context.Context, group, filterPattern string, startMs, endMs int64) ([]model.LogRecord, error)
}

// Inspector collects historical events across multiple log groups.
type Inspector struct {
	client    GroupSearcher
	groups    []string
	startTime time.Time
	endTime   time.Time
	workers   int
}

// New creates an Inspector with 4 workers.
func New(client GroupSearcher, groups []string, startTime, endTime time.Time) *Inspector {
	return &Inspector{client: client, groups: groups, startTime: startTime, endTime: endTime, workers: 4}
}

// SetWorkers sets the number of groups searched in parallel (minimum 1).
func (in *Inspector) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	in.workers = n
}

// Search returns the events matching filterPattern across the configured
// groups, ordered by timestamp. An empty pattern matches every event.
func (in *Inspector) Search(ctx context.Context, filterPattern string) ([]model.LogRecord, error) {
	if len(in.groups) == 0 {
		return nil, errors.New("no log groups configured")
	}
	if in.startTime.After(in.endTime) {
		return nil, errors.New("start is after end")
	}
	startMs := in.startTime.UnixMilli()
	endMs := in.endTime.UnixMilli()

	groupChan := make(chan string, len(in.groups))
	resultChan := make(chan []model.LogRecord, len(in.groups))
	errorChan := make(chan error, len(in.groups))

	for _, g := range in.groups {
		groupChan <- g
	}
	close(groupChan)

	var wg sync.WaitGroup
	for i := 0; i < in.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for group := range groupChan {
				records, err := in.client.SearchGroup(ctx, group, filterPattern, startMs, endMs)
				if err != nil {
					errorChan <- err
					return
				}
				resultChan <- records
			}
		}()
	}
	wg.Wait()
	close(resultChan)
	close(errorChan)

	if err := <-errorChan; err != nil {
		return nil, err
	}
	var all []model.LogRecord
	for records := range resultChan {
		all = append(all, records...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Timestamp.Equal(all[j].Timestamp) {
			if all[i].LogGroup == all[j].LogGroup {
				return all[i].LogStream < all[j].LogStream
			}
			return all[i].LogGroup < all[j].LogGroup
		}
		return all[i].Timestamp.Before(all[j].Timestamp)
	})
	return all, nil
}

// Batches groups records by log group and stream into data envelopes, in
// order of first appearance. Event order inside each batch is preserved.
func Batches(records []model.LogRecord, owner string) []*model.LogBatch {
	type key struct{ group, stream string }
	var out []*model.LogBatch
	byKey := map[key]*model.LogBatch{}
	for _, r := range records {
		k := key{r.LogGroup, r.LogStream}
		b, ok := byKey[k]
		if !ok {
			b = &model.LogBatch{
				MessageType: model.MessageTypeData,
				Owner:       owner,
				LogGroup:    r.LogGroup,
				LogStream:   r.LogStream,
			}
			byKey[k] = b
			out = append(out, b)
		}
		b.LogEvents = append(b.LogEvents, r.Event())
	}
	return out
}

// Split breaks each batch into consecutive pieces holding at most maxEvents
// events and at most maxBytes bytes of messages. A single event larger than
// maxBytes gets a piece of its own. A limit of zero disables it.
func Split(batches []*model.LogBatch, maxEvents, maxBytes int) []*model.LogBatch {
	var out []*model.LogBatch
	for _, b := range batches {
		var cur *model.LogBatch
		size := 0
		for _, ev := range b.LogEvents {
			full := cur != nil && ((maxEvents > 0 && len(cur.LogEvents) >= maxEvents) ||
				(maxBytes > 0 && size+len(ev.Message) > maxBytes))
			if cur == nil || full {
				cur = &model.LogBatch{
					MessageType:         b.MessageType,
					Owner:               b.Owner,
					LogGroup:            b.LogGroup,
					LogStream:           b.LogStream,
					SubscriptionFilters: b.SubscriptionFilters,
				}
				size = 0
				out = append(out, cur)
			}
			cur.LogEvents = append(cur.LogEvents, ev)
			size += len(ev.Message)
		}
	}
	return out
}
