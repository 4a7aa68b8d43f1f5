package notify

import (
	"context"
	"log/slog"
)

// Event identifies what happened to the notified user.
type Event string

const (
	EventLikeReceived Event = "like_received"
	EventMatchCreated Event = "match_created"
)

// Dispatcher delivers user notifications. Delivery is an external concern;
// the core treats it as fire-and-forget and never fails an operation on a
// dispatch error.
type Dispatcher interface {
	Notify(ctx context.Context, userID uint64, event Event, payload map[string]any) error
}

// LogDispatcher is the default Dispatcher: it records events in the log and
// nothing else. Hosts swap in a real delivery pipeline.
type LogDispatcher struct {
	Log *slog.Logger
}

func NewLogDispatcher(log *slog.Logger) *LogDispatcher {
	return &LogDispatcher{Log: log}
}

func (d *LogDispatcher) Notify(_ context.Context, userID uint64, event Event, payload map[string]any) error {
	d.Log.Info("notification dispatched", "user_id", userID, "event", string(event), "payload", payload)
	return nil
}
