// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"
	"time"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// DefaultHeartbeat is the idle time after which Stream emits a heartbeat.
const DefaultHeartbeat = 120 * time.Second

// HeartbeatMessage is the message of heartbeat events.
const HeartbeatMessage = "Still working..."

// Stream relays events to emit until a terminal event has been emitted,
// events is closed, or ctx ends. Whenever idle passes without an event it
// emits a heartbeat. An error from emit stops the stream and is returned.
func Stream(ctx context.Context, events <-chan types.Event, idle time.Duration, emit func(types.Event) error) error {
	if idle <= 0 {
		idle = DefaultHeartbeat
	}
	timer := time.NewTimer(idle)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := emit(ev); err != nil {
				return err
			}
			if ev.IsTerminal() {
				return nil
			}
		case <-timer.C:
			if err := emit(types.Event{Stage: types.StageHeartbeat, Message: HeartbeatMessage}); err != nil {
				return err
			}
		}
		timer.Reset(idle)
	}
}
