package mailbox

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxInFlight bounds concurrent gateway calls in a bulk operation.
const DefaultMaxInFlight = 8

// ItemResult is the outcome of one call in a bulk operation.
type ItemResult struct {
	ID  int64
	Err error
}

// BatchResult holds one ItemResult per requested id, in request order.
type BatchResult struct {
	Items []ItemResult
}

// Succeeded returns the ids whose call succeeded.
func (r BatchResult) Succeeded() []int64 {
	var out []int64
	for _, it := range r.Items {
		if it.Err == nil {
			out = append(out, it.ID)
		}
	}
	return out
}

// Failed returns the ids whose call failed.
func (r BatchResult) Failed() []int64 {
	var out []int64
	for _, it := range r.Items {
		if it.Err != nil {
			out = append(out, it.ID)
		}
	}
	return out
}

// OK reports whether every call succeeded.
func (r BatchResult) OK() bool {
	for _, it := range r.Items {
		if it.Err != nil {
			return false
		}
	}
	return true
}

// Causes maps failed ids to their errors.
func (r BatchResult) Causes() map[int64]error {
	out := make(map[int64]error)
	for _, it := range r.Items {
		if it.Err != nil {
			out[it.ID] = it.Err
		}
	}
	return out
}

// fanOut runs fn for every id with at most limit calls in flight and waits
// for all of them. A failing call never cancels its siblings.
func fanOut(ctx context.Context, ids []int64, limit int, fn func(context.Context, int64) error) BatchResult {
	if limit < 1 {
		limit = DefaultMaxInFlight
	}
	items := make([]ItemResult, len(ids))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, id := range ids {
		items[i].ID = id
		g.Go(func() error {
			items[i].Err = fn(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
	return BatchResult{Items: items}
}
