package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmlm/bindings-go/internal/events"
	"github.com/wasmlm/bindings-go/internal/glue"
)

// fakeBoundary answers actions in-process so client tests exercise the full
// codec path without an engine module.
type fakeBoundary struct {
	respond func(action string, req []byte) ([]byte, error)

	actions  []string
	requests [][]byte
	started  bool
	exited   bool
	closed   bool
}

func (f *fakeBoundary) Start(ctx context.Context) error { f.started = true; return nil }
func (f *fakeBoundary) Exit(ctx context.Context) error  { f.exited = true; return nil }
func (f *fakeBoundary) Close(ctx context.Context) error { f.closed = true; return nil }

func (f *fakeBoundary) Action(ctx context.Context, name string, req []byte) ([]byte, error) {
	f.actions = append(f.actions, name)
	f.requests = append(f.requests, append([]byte(nil), req...))
	return f.respond(name, req)
}

func errorEventBytes(message string) []byte {
	evt := glue.NewErrorEvent()
	evt.Message.Set(message)
	return evt.Serialize()
}

func newTestClient(fake *fakeBoundary) *Client {
	return NewClient(fake, zerolog.Nop(), nil)
}

func TestClientTokenize(t *testing.T) {
	fake := &fakeBoundary{
		respond: func(action string, req []byte) ([]byte, error) {
			res := glue.NewTokenizeResponse()
			res.Success.Set(true)
			res.Tokens.Set([]int32{15043, 3186, 29991})
			return res.Serialize(), nil
		},
	}
	c := newTestClient(fake)

	req := glue.NewTokenizeRequest()
	req.Text.Set("Hello world!")
	req.Special.Set(false)

	res, err := c.Tokenize(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Success.Get())
	assert.Equal(t, []int32{15043, 3186, 29991}, res.Tokens.Get())

	// The boundary saw the action name and a decodable request.
	require.Equal(t, []string{ActionTokenize}, fake.actions)
	echo := glue.NewTokenizeRequest()
	require.NoError(t, echo.Deserialize(fake.requests[0]))
	assert.Equal(t, "Hello world!", echo.Text.Get())
	assert.False(t, echo.Special.Get())
}

func TestClientEngineError(t *testing.T) {
	fake := &fakeBoundary{
		respond: func(action string, req []byte) ([]byte, error) {
			return errorEventBytes("model is not loaded"), nil
		},
	}
	hub := events.NewHub()
	var published []events.ErrorEvent
	require.NoError(t, hub.SubscribeErrors(func(evt events.ErrorEvent) {
		published = append(published, evt)
	}))
	c := NewClient(fake, zerolog.Nop(), hub)

	_, err := c.Load(context.Background(), glue.NewLoadRequest())
	var engineErr *EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, ActionLoad, engineErr.Action)
	assert.Equal(t, "model is not loaded", engineErr.Message)
	assert.Equal(t, "engine: load failed: model is not loaded", engineErr.Error())

	require.Len(t, published, 1)
	assert.Equal(t, events.ErrorEvent{Action: ActionLoad, Message: "model is not loaded"}, published[0])
}

func TestClientGarbledResponse(t *testing.T) {
	fake := &fakeBoundary{
		respond: func(action string, req []byte) ([]byte, error) {
			return []byte{0x01, 0x02, 0x03}, nil
		},
	}
	c := newTestClient(fake)

	_, err := c.Status(context.Background(), glue.NewStatusRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, glue.ErrTruncated)
	assert.Contains(t, err.Error(), ActionStatus)
}

func TestClientWrongResponsePrototype(t *testing.T) {
	fake := &fakeBoundary{
		respond: func(action string, req []byte) ([]byte, error) {
			res := glue.NewDetokenizeResponse()
			res.Success.Set(true)
			res.Buffer.Set([]byte("stray"))
			return res.Serialize(), nil
		},
	}
	c := newTestClient(fake)

	_, err := c.Tokenize(context.Background(), glue.NewTokenizeRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, glue.ErrPrototypeMismatch)
}

func TestClientBoundaryErrorPassesThrough(t *testing.T) {
	boundaryErr := errors.New("module closed")
	fake := &fakeBoundary{
		respond: func(action string, req []byte) ([]byte, error) {
			return nil, boundaryErr
		},
	}
	c := newTestClient(fake)

	_, err := c.KvClear(context.Background(), glue.NewKvClearRequest())
	assert.ErrorIs(t, err, boundaryErr)
}

func TestClientSamplingFlow(t *testing.T) {
	fake := &fakeBoundary{
		respond: func(action string, req []byte) ([]byte, error) {
			switch action {
			case ActionSamplingInit:
				res := glue.NewSamplingInitResponse()
				res.Success.Set(true)
				return res.Serialize(), nil
			case ActionLookupToken:
				echo := glue.NewLookupTokenRequest()
				if err := echo.Deserialize(req); err != nil {
					return nil, err
				}
				res := glue.NewLookupTokenResponse()
				if echo.Piece.Get() == "<|endoftext|>" {
					res.Success.Set(true)
					res.Token.Set(50256)
				} else {
					res.Success.Set(false)
					res.Token.Set(-1)
				}
				return res.Serialize(), nil
			default:
				return errorEventBytes("unknown action"), nil
			}
		},
	}
	c := newTestClient(fake)
	ctx := context.Background()

	initReq := glue.NewSamplingInitRequest()
	initReq.Temp.Set(0.8)
	initReq.TopP.Set(0.95)
	initRes, err := c.SamplingInit(ctx, initReq)
	require.NoError(t, err)
	assert.True(t, initRes.Success.Get())

	lookupReq := glue.NewLookupTokenRequest()
	lookupReq.Piece.Set("<|endoftext|>")
	lookupRes, err := c.LookupToken(ctx, lookupReq)
	require.NoError(t, err)
	assert.True(t, lookupRes.Success.Get())
	assert.Equal(t, int32(50256), lookupRes.Token.Get())

	lookupReq = glue.NewLookupTokenRequest()
	lookupReq.Piece.Set("definitely-not-a-piece")
	lookupRes, err = c.LookupToken(ctx, lookupReq)
	require.NoError(t, err)
	assert.False(t, lookupRes.Success.Get())
	assert.Equal(t, int32(-1), lookupRes.Token.Get())

	assert.Equal(t, []string{ActionSamplingInit, ActionLookupToken, ActionLookupToken}, fake.actions)
}

func TestClientRequestBufferReuse(t *testing.T) {
	fake := &fakeBoundary{
		respond: func(action string, req []byte) ([]byte, error) {
			res := glue.NewTokenizeResponse()
			res.Success.Set(true)
			res.Tokens.Set([]int32{int32(len(req))})
			return res.Serialize(), nil
		},
	}
	c := newTestClient(fake)
	ctx := context.Background()

	long := glue.NewTokenizeRequest()
	long.Text.Set("a considerably longer prompt than the second one")
	_, err := c.Tokenize(ctx, long)
	require.NoError(t, err)

	short := glue.NewTokenizeRequest()
	short.Text.Set("hi")
	_, err = c.Tokenize(ctx, short)
	require.NoError(t, err)

	// The shared buffer was reset between calls, not appended to.
	echo := glue.NewTokenizeRequest()
	require.NoError(t, echo.Deserialize(fake.requests[1]))
	assert.Equal(t, "hi", echo.Text.Get())
	assert.Less(t, len(fake.requests[1]), len(fake.requests[0]))
}

func TestClientClose(t *testing.T) {
	fake := &fakeBoundary{}
	c := newTestClient(fake)

	require.NoError(t, c.Close(context.Background()))
	assert.True(t, fake.exited)
	assert.True(t, fake.closed)
}

func TestClientSessionID(t *testing.T) {
	a := newTestClient(&fakeBoundary{})
	b := newTestClient(&fakeBoundary{})

	assert.NotEmpty(t, a.Session())
	assert.NotEqual(t, a.Session(), b.Session())
}
