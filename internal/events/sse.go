package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges callback subscriptions to a channel so SSE
// handlers can select on connection shutdown and incoming events together.
// Events are dropped rather than blocking when the channel is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
