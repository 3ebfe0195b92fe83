package events

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogPublisher writes events to the application log. It is used when no
// broker is configured.
type LogPublisher struct {
	log logrus.FieldLogger
}

func NewLogPublisher(log logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, evt Event) {
	p.log.WithFields(logrus.Fields{
		"kind":      evt.Kind,
		"reference": evt.Reference,
		"status":    evt.Status,
		"wallet_id": evt.Key(),
		"reason":    evt.Reason,
	}).Info("event")
}

func (p *LogPublisher) Close() error { return nil }

// Recorder keeps published events in memory. Tests use it to assert on
// what an operation emitted.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(ctx context.Context, evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) Kinds() []Kind {
	var kinds []Kind
	for _, e := range r.Events() {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}
