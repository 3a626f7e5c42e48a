// Package events carries engine-side happenings to host subscribers: log
// lines captured from the engine's stderr and error events the engine
// raised in place of a response. Delivery is synchronous, matching the
// protocol's single-threaded model.
package events

import (
	"github.com/asaskevich/EventBus"
)

// Topics published on a Hub.
const (
	TopicEngineLog   = "engine.log"
	TopicEngineError = "engine.error"
)

// LogEvent is one line of engine output with the level the engine tagged it
// with.
type LogEvent struct {
	Level string // debug, info, warn, error
	Line  string
}

// ErrorEvent is an engine-raised failure for a named operation.
type ErrorEvent struct {
	Action  string
	Message string
}

// Hub fans engine events out to subscribers over an EventBus.
type Hub struct {
	bus EventBus.Bus
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{bus: EventBus.New()}
}

// PublishLog delivers a captured engine log line to log subscribers.
func (h *Hub) PublishLog(evt LogEvent) {
	h.bus.Publish(TopicEngineLog, evt)
}

// PublishError delivers an engine-raised error to error subscribers.
func (h *Hub) PublishError(evt ErrorEvent) {
	h.bus.Publish(TopicEngineError, evt)
}

// SubscribeLogs registers fn for engine log lines. fn runs synchronously on
// the publishing goroutine.
func (h *Hub) SubscribeLogs(fn func(LogEvent)) error {
	return h.bus.Subscribe(TopicEngineLog, fn)
}

// UnsubscribeLogs removes a previously registered log handler.
func (h *Hub) UnsubscribeLogs(fn func(LogEvent)) error {
	return h.bus.Unsubscribe(TopicEngineLog, fn)
}

// SubscribeErrors registers fn for engine-raised errors. fn runs
// synchronously on the publishing goroutine.
func (h *Hub) SubscribeErrors(fn func(ErrorEvent)) error {
	return h.bus.Subscribe(TopicEngineError, fn)
}

// UnsubscribeErrors removes a previously registered error handler.
func (h *Hub) UnsubscribeErrors(fn func(ErrorEvent)) error {
	return h.bus.Unsubscribe(TopicEngineError, fn)
}
