package mykafka

import (
	"context"
	"sync"
)

// Recorder keeps published events in memory. Tests use it in place of a broker.
type Recorder struct {
	mu     sync.Mutex
	Events []map[string]any
	Err    error
}

func (r *Recorder) PublishEvent(_ context.Context, _ string, event map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Events = append(r.Events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Types returns the "type" field of every recorded event in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		t, _ := e["type"].(string)
		out = append(out, t)
	}
	return out
}
