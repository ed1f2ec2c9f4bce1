package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/playback/internal/streaming"
)

// ProgressMethod is the notification method carrying snapshot changes.
const ProgressMethod = "notifications/playback/progress"

// Broadcaster sends a notification to every connected client.
// *server.MCPServer satisfies it.
type Broadcaster interface {
	SendNotificationToAllClients(method string, params map[string]any)
}

var _ Broadcaster = (*server.MCPServer)(nil)

// ProgressNotifier forwards hub events to MCP clients. Delivery is
// best-effort: the hub drops events for slow readers.
type ProgressNotifier struct {
	out    Broadcaster
	hub    streaming.EventHub
	logger *slog.Logger

	mu     sync.Mutex
	cancel func()
	done   chan struct{}
}

// NewProgressNotifier creates a notifier; call Start to begin forwarding.
func NewProgressNotifier(out Broadcaster, hub streaming.EventHub, logger *slog.Logger) *ProgressNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressNotifier{out: out, hub: hub, logger: logger}
}

// Start subscribes to every event and forwards them until ctx is cancelled
// or Stop is called.
func (n *ProgressNotifier) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.done != nil {
		return fmt.Errorf("notifier already started")
	}

	ch, unsubscribe, err := n.hub.Subscribe(ctx, streaming.EventFilter{})
	if err != nil {
		return fmt.Errorf("subscribe to progress: %w", err)
	}
	n.cancel = unsubscribe
	n.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		for event := range ch {
			n.out.SendNotificationToAllClients(ProgressMethod, map[string]any{
				"event":    event.EventType,
				"run_id":   event.RunID,
				"node_id":  event.NodeID,
				"sequence": event.Sequence,
				"progress": event.Payload,
			})
		}
		n.logger.Debug("progress notifier stopped")
	}(n.done)
	return nil
}

// Stop unsubscribes and waits for the forwarding goroutine to exit.
func (n *ProgressNotifier) Stop() {
	n.mu.Lock()
	cancel, done := n.cancel, n.done
	n.cancel, n.done = nil, nil
	n.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
