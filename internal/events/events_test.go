package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversLogsSynchronously(t *testing.T) {
	h := NewHub()

	var got []LogEvent
	handler := func(evt LogEvent) { got = append(got, evt) }
	require.NoError(t, h.SubscribeLogs(handler))

	h.PublishLog(LogEvent{Level: "info", Line: "model loaded"})
	h.PublishLog(LogEvent{Level: "warn", Line: "kv cache full"})

	require.Len(t, got, 2)
	assert.Equal(t, "info", got[0].Level)
	assert.Equal(t, "kv cache full", got[1].Line)

	require.NoError(t, h.UnsubscribeLogs(handler))
	h.PublishLog(LogEvent{Level: "info", Line: "ignored"})
	assert.Len(t, got, 2)
}

func TestHubDeliversErrors(t *testing.T) {
	h := NewHub()

	var got []ErrorEvent
	require.NoError(t, h.SubscribeErrors(func(evt ErrorEvent) { got = append(got, evt) }))

	h.PublishError(ErrorEvent{Action: "load", Message: "file not found"})

	require.Len(t, got, 1)
	assert.Equal(t, "load", got[0].Action)
	assert.Equal(t, "file not found", got[0].Message)
}

func TestHubTopicsAreIndependent(t *testing.T) {
	h := NewHub()

	logs := 0
	errs := 0
	require.NoError(t, h.SubscribeLogs(func(LogEvent) { logs++ }))
	require.NoError(t, h.SubscribeErrors(func(ErrorEvent) { errs++ }))

	h.PublishLog(LogEvent{Level: "debug", Line: "x"})
	assert.Equal(t, 1, logs)
	assert.Equal(t, 0, errs)
}
