package api

import (
	"context"
	"net/http"
	"time"

	"github.com/camprobe/camprobe/internal/events"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of device lifecycle changes and probe outcomes",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"device-added":    events.DeviceAddedEvent{},
		"device-removed":  events.DeviceRemovedEvent{},
		"probe-completed": events.ProbeCompletedEvent{},
		"probe-failed":    events.ProbeFailedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.DeviceAddedEvent](s.bus, eventCh),
			events.SubscribeToChannel[events.DeviceRemovedEvent](s.bus, eventCh),
			events.SubscribeToChannel[events.ProbeCompletedEvent](s.bus, eventCh),
			events.SubscribeToChannel[events.ProbeFailedEvent](s.bus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Replay the current table first so a fresh client does not
		// have to wait for the next hotplug to learn what is attached.
		now := time.Now().Format(time.RFC3339)
		for _, device := range s.registry.Devices() {
			if err := send.Data(events.DeviceAddedEvent{
				DeviceInfo: device,
				Action:     "sync",
				Timestamp:  now,
			}); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
