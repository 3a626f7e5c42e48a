// Package engine is the typed client for a glue-protocol compute engine.
// Requests and responses are the catalogue messages; the transport is any
// Boundary, normally the wazero host in internal/wasm.
package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wasmlm/bindings-go/internal/events"
	"github.com/wasmlm/bindings-go/internal/glue"
	"github.com/wasmlm/bindings-go/internal/wasm"
)

// Action names understood by the engine dispatcher.
const (
	ActionLoad           = "load"
	ActionSetOptions     = "set_options"
	ActionSamplingInit   = "sampling_init"
	ActionSamplingSample = "sampling_sample"
	ActionSamplingAccept = "sampling_accept"
	ActionGetVocab       = "get_vocab"
	ActionLookupToken    = "lookup_token"
	ActionTokenize       = "tokenize"
	ActionDetokenize     = "detokenize"
	ActionDecode         = "decode"
	ActionEncode         = "encode"
	ActionGetLogits      = "get_logits"
	ActionEmbeddings     = "embeddings"
	ActionChatFormat     = "chat_format"
	ActionKvRemove       = "kv_remove"
	ActionKvClear        = "kv_clear"
	ActionSessionSave    = "session_save"
	ActionSessionLoad    = "session_load"
	ActionStatus         = "current_status"
	ActionBenchmark      = "test_benchmark"
	ActionPerplexity     = "test_perplexity"
)

// Boundary carries glue-encoded buffers to and from the engine.
type Boundary interface {
	Start(ctx context.Context) error
	Action(ctx context.Context, name string, req []byte) ([]byte, error)
	Exit(ctx context.Context) error
	Close(ctx context.Context) error
}

// EngineError is an engine-reported operation failure, decoded from the
// error event the engine substitutes for the normal response.
type EngineError struct {
	Action  string
	Message string
}

func (e *EngineError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("engine: %s failed", e.Action)
	}
	return fmt.Sprintf("engine: %s failed: %s", e.Action, e.Message)
}

// Client drives one engine instance. It reuses its request buffer between
// calls and is not safe for concurrent use.
type Client struct {
	boundary Boundary
	logger   zerolog.Logger
	hub      *events.Hub
	out      glue.OutBuf
	session  string
	seq      uint64
}

// NewClient wraps an already-started Boundary. hub may be nil.
func NewClient(boundary Boundary, logger zerolog.Logger, hub *events.Hub) *Client {
	session := uuid.NewString()
	return &Client{
		boundary: boundary,
		logger:   logger.With().Str("session", session).Logger(),
		hub:      hub,
		session:  session,
	}
}

// Open reads the engine module from cfg.EnginePath, brings it up and runs
// its one-time initialization.
func Open(ctx context.Context, cfg *Config, logger zerolog.Logger) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	wasmBytes, err := os.ReadFile(cfg.EnginePath)
	if err != nil {
		return nil, fmt.Errorf("engine: read module: %w", err)
	}

	hub := events.NewHub()
	rt := wasm.NewRuntime(&wasm.Config{
		MemoryLimitPages:  cfg.MemoryLimitPages,
		CallTimeout:       cfg.CallTimeout,
		StderrPassthrough: cfg.StderrPassthrough,
	}, logger, hub)

	if err := rt.Load(ctx, wasmBytes); err != nil {
		rt.Close(ctx)
		return nil, err
	}
	if err := rt.Instantiate(ctx); err != nil {
		rt.Close(ctx)
		return nil, err
	}
	if err := rt.Start(ctx); err != nil {
		rt.Close(ctx)
		return nil, err
	}
	return NewClient(rt, logger, hub), nil
}

// Events exposes the hub carrying engine log lines and error events.
func (c *Client) Events() *events.Hub { return c.hub }

// Session returns the correlation id stamped on this client's log lines.
func (c *Client) Session() string { return c.session }

// Close shuts the engine down and releases the runtime.
func (c *Client) Close(ctx context.Context) error {
	if err := c.boundary.Exit(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("engine exit failed")
	}
	return c.boundary.Close(ctx)
}

// call runs one exchange. A response carrying the error event prototype
// means the operation failed engine-side.
func (c *Client) call(ctx context.Context, action string, req, res glue.Message) error {
	c.seq++
	logger := c.logger.With().Uint64("seq", c.seq).Str("action", action).Logger()

	c.out.Reset()
	req.SerializeTo(&c.out)

	payload, err := c.boundary.Action(ctx, action, c.out.Bytes())
	if err != nil {
		return err
	}

	proto, err := glue.PeekPrototype(payload)
	if err != nil {
		return fmt.Errorf("engine: %s response: %w", action, err)
	}
	if proto == glue.ProtoErrorEvent {
		evt := glue.NewErrorEvent()
		if err := evt.Deserialize(payload); err != nil {
			return fmt.Errorf("engine: %s error event: %w", action, err)
		}
		engineErr := &EngineError{Action: action, Message: evt.Message.Get()}
		logger.Error().Str("reason", engineErr.Message).Msg("engine action failed")
		if c.hub != nil {
			c.hub.PublishError(events.ErrorEvent{Action: action, Message: engineErr.Message})
		}
		return engineErr
	}
	if err := res.Deserialize(payload); err != nil {
		return fmt.Errorf("engine: %s response: %w", action, err)
	}
	logger.Debug().Int("response_bytes", len(payload)).Msg("engine action ok")
	return nil
}

// Load loads a model. Split models pass their shards in order through
// req.ModelPaths.
func (c *Client) Load(ctx context.Context, req *glue.LoadRequest) (*glue.LoadResponse, error) {
	res := glue.NewLoadResponse()
	if err := c.call(ctx, ActionLoad, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// SetOptions switches runtime options, embeddings mode in particular.
func (c *Client) SetOptions(ctx context.Context, req *glue.SetOptionsRequest) (*glue.SetOptionsResponse, error) {
	res := glue.NewSetOptionsResponse()
	if err := c.call(ctx, ActionSetOptions, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// SamplingInit configures the sampling chain and optionally reseeds it.
func (c *Client) SamplingInit(ctx context.Context, req *glue.SamplingInitRequest) (*glue.SamplingInitResponse, error) {
	res := glue.NewSamplingInitResponse()
	if err := c.call(ctx, ActionSamplingInit, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// SamplingSample draws the next token from the current logits.
func (c *Client) SamplingSample(ctx context.Context, req *glue.SamplingSampleRequest) (*glue.SamplingSampleResponse, error) {
	res := glue.NewSamplingSampleResponse()
	if err := c.call(ctx, ActionSamplingSample, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// SamplingAccept feeds sampled tokens back into the sampler state.
func (c *Client) SamplingAccept(ctx context.Context, req *glue.SamplingAcceptRequest) (*glue.SamplingAcceptResponse, error) {
	res := glue.NewSamplingAcceptResponse()
	if err := c.call(ctx, ActionSamplingAccept, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// GetVocab returns every token piece in id order.
func (c *Client) GetVocab(ctx context.Context, req *glue.GetVocabRequest) (*glue.GetVocabResponse, error) {
	res := glue.NewGetVocabResponse()
	if err := c.call(ctx, ActionGetVocab, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// LookupToken resolves a piece to its token id. Unknown pieces report
// failure through the error event.
func (c *Client) LookupToken(ctx context.Context, req *glue.LookupTokenRequest) (*glue.LookupTokenResponse, error) {
	res := glue.NewLookupTokenResponse()
	if err := c.call(ctx, ActionLookupToken, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Tokenize splits text into token ids.
func (c *Client) Tokenize(ctx context.Context, req *glue.TokenizeRequest) (*glue.TokenizeResponse, error) {
	res := glue.NewTokenizeResponse()
	if err := c.call(ctx, ActionTokenize, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Detokenize renders token ids back into bytes.
func (c *Client) Detokenize(ctx context.Context, req *glue.DetokenizeRequest) (*glue.DetokenizeResponse, error) {
	res := glue.NewDetokenizeResponse()
	if err := c.call(ctx, ActionDetokenize, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Decode advances the context window over the given tokens.
func (c *Client) Decode(ctx context.Context, req *glue.DecodeRequest) (*glue.DecodeResponse, error) {
	res := glue.NewDecodeResponse()
	if err := c.call(ctx, ActionDecode, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Encode runs the encoder half of an encoder-decoder model.
func (c *Client) Encode(ctx context.Context, req *glue.EncodeRequest) (*glue.EncodeResponse, error) {
	res := glue.NewEncodeResponse()
	if err := c.call(ctx, ActionEncode, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// GetLogits returns the top logits after the last decode.
func (c *Client) GetLogits(ctx context.Context, req *glue.GetLogitsRequest) (*glue.GetLogitsResponse, error) {
	res := glue.NewGetLogitsResponse()
	if err := c.call(ctx, ActionGetLogits, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Embeddings computes the embedding vector for the given tokens.
func (c *Client) Embeddings(ctx context.Context, req *glue.EmbeddingsRequest) (*glue.EmbeddingsResponse, error) {
	res := glue.NewEmbeddingsResponse()
	if err := c.call(ctx, ActionEmbeddings, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// ChatFormat renders messages through the model's chat template.
func (c *Client) ChatFormat(ctx context.Context, req *glue.ChatFormatRequest) (*glue.ChatFormatResponse, error) {
	res := glue.NewChatFormatResponse()
	if err := c.call(ctx, ActionChatFormat, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// KvRemove drops a token range from the KV cache.
func (c *Client) KvRemove(ctx context.Context, req *glue.KvRemoveRequest) (*glue.KvRemoveResponse, error) {
	res := glue.NewKvRemoveResponse()
	if err := c.call(ctx, ActionKvRemove, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// KvClear empties the KV cache.
func (c *Client) KvClear(ctx context.Context, req *glue.KvClearRequest) (*glue.KvClearResponse, error) {
	res := glue.NewKvClearResponse()
	if err := c.call(ctx, ActionKvClear, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// SessionSave snapshots the context state and cached tokens.
func (c *Client) SessionSave(ctx context.Context, req *glue.SessionSaveRequest) (*glue.SessionSaveResponse, error) {
	res := glue.NewSessionSaveResponse()
	if err := c.call(ctx, ActionSessionSave, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// SessionLoad restores a snapshot taken by SessionSave.
func (c *Client) SessionLoad(ctx context.Context, req *glue.SessionLoadRequest) (*glue.SessionLoadResponse, error) {
	res := glue.NewSessionLoadResponse()
	if err := c.call(ctx, ActionSessionLoad, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Status reports the tokens currently in the context window.
func (c *Client) Status(ctx context.Context, req *glue.StatusRequest) (*glue.StatusResponse, error) {
	res := glue.NewStatusResponse()
	if err := c.call(ctx, ActionStatus, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Benchmark times a synthetic workload on the loaded model.
func (c *Client) Benchmark(ctx context.Context, req *glue.BenchmarkRequest) (*glue.BenchmarkResponse, error) {
	res := glue.NewBenchmarkResponse()
	if err := c.call(ctx, ActionBenchmark, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Perplexity scores a token sequence against the model.
func (c *Client) Perplexity(ctx context.Context, req *glue.PerplexityRequest) (*glue.PerplexityResponse, error) {
	res := glue.NewPerplexityResponse()
	if err := c.call(ctx, ActionPerplexity, req, res); err != nil {
		return nil, err
	}
	return res, nil
}
