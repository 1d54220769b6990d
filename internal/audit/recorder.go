package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"tokenwatch.org/internal/obs"
)

// Recorder appends entries to a Store and mirrors each one as a structured
// log line so the trail is visible in both places.
type Recorder struct {
	store Store
}

// NewRecorder wraps the given store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record persists the entry and emits it to the shared logger. The entry's
// timestamp defaults to now when unset.
func (r *Recorder) Record(ctx context.Context, e Entry) (Entry, error) {
	if r == nil || r.store == nil {
		return Entry{}, errors.New("audit store is not configured")
	}
	if e.Action == "" {
		return Entry{}, errors.New("audit action is required")
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	saved, err := r.store.AppendAudit(ctx, e)
	if err != nil {
		return Entry{}, err
	}

	line := map[string]any{
		"ts":    saved.Timestamp.Format(time.RFC3339Nano),
		"type":  "audit",
		"event": string(saved.Action),
		"fields": map[string]any{
			"id":      saved.ID,
			"tokenId": saved.TokenID,
			"actor":   saved.Actor,
			"info":    saved.Info,
		},
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		line["request_id"] = rid
	}
	if data, err := json.Marshal(line); err == nil {
		obs.Logger().Println(string(data))
	}
	return saved, nil
}

// List proxies to the underlying store.
func (r *Recorder) List(ctx context.Context, tokenID string, limit int) ([]Entry, error) {
	if r == nil || r.store == nil {
		return nil, errors.New("audit store is not configured")
	}
	return r.store.ListAudit(ctx, tokenID, limit)
}
