package glue

import (
	"fmt"
	"sort"
)

// Prototype ids for every message in the catalogue. Each is exactly 8 ASCII
// characters and is wire contract with the engine.
const (
	ProtoErrorEvent = "erro_evt"

	ProtoLoadReq = "load_req"
	ProtoLoadRes = "load_res"

	ProtoSetOptionsReq = "opti_req"
	ProtoSetOptionsRes = "opti_res"

	ProtoSamplingInitReq = "sint_req"
	ProtoSamplingInitRes = "sint_res"

	ProtoGetVocabReq = "gvoc_req"
	ProtoGetVocabRes = "gvoc_res"

	ProtoLookupTokenReq = "lkup_req"
	ProtoLookupTokenRes = "lkup_res"

	ProtoTokenizeReq = "tokn_req"
	ProtoTokenizeRes = "tokn_res"

	ProtoDetokenizeReq = "dtkn_req"
	ProtoDetokenizeRes = "dtkn_res"

	ProtoDecodeReq = "deco_req"
	ProtoDecodeRes = "deco_res"

	ProtoEncodeReq = "enco_req"
	ProtoEncodeRes = "enco_res"

	ProtoSamplingSampleReq = "ssam_req"
	ProtoSamplingSampleRes = "ssam_res"

	ProtoSamplingAcceptReq = "sacc_req"
	ProtoSamplingAcceptRes = "sacc_res"

	ProtoGetLogitsReq = "glog_req"
	ProtoGetLogitsRes = "glog_res"

	ProtoEmbeddingsReq = "gemb_req"
	ProtoEmbeddingsRes = "gemb_res"

	ProtoKvRemoveReq = "kvcr_req"
	ProtoKvRemoveRes = "kvcr_res"

	ProtoKvClearReq = "kvcc_req"
	ProtoKvClearRes = "kvcc_res"

	ProtoSessionSaveReq = "sesa_req"
	ProtoSessionSaveRes = "sesa_res"

	ProtoSessionLoadReq = "sesl_req"
	ProtoSessionLoadRes = "sesl_res"

	ProtoStatusReq = "stat_req"
	ProtoStatusRes = "stat_res"

	ProtoBenchmarkReq = "tben_req"
	ProtoBenchmarkRes = "tben_res"

	ProtoPerplexityReq = "tper_req"
	ProtoPerplexityRes = "tper_res"

	ProtoChatFormatReq = "cfmt_req"
	ProtoChatFormatRes = "cfmt_res"
)

// Message is any catalogue message: a schema instance with its typed field
// members.
type Message interface {
	Prototype() string
	Fields() []*Field
	Serialize() []byte
	SerializeTo(out *OutBuf)
	Deserialize(data []byte) error
	DeserializeFrom(in *InBuf) error
}

// ErrorEvent is the engine-initiated failure report. When an operation
// cannot produce its normal response the engine answers with this message
// instead of staying silent.
type ErrorEvent struct {
	*Schema
	Message StringField
}

func NewErrorEvent() *ErrorEvent {
	m := &ErrorEvent{}
	b := NewSchema(ProtoErrorEvent)
	m.Message = b.String("message")
	m.Schema = b.Build()
	return m
}

// LoadRequest configures and loads a model. Split model files are passed in
// shard order through ModelPaths.
type LoadRequest struct {
	*Schema
	ModelPaths      StringArrayField
	NCtxAuto        BoolField
	UseMmap         BoolField
	UseMlock        BoolField
	NGpuLayers      Int32Field
	Seed            Int32Field
	NCtx            Int32Field
	NThreads        Int32Field
	Embeddings      BoolField
	OffloadKQV      BoolField
	NBatch          Int32Field
	NSeqMax         Int32Field
	PoolingType     StringField
	RopeScalingType StringField
	RopeFreqBase    Float32Field
	RopeFreqScale   Float32Field
	YarnExtFactor   Float32Field
	YarnAttnFactor  Float32Field
	YarnBetaFast    Float32Field
	YarnBetaSlow    Float32Field
	YarnOrigCtx     Int32Field
	CacheTypeK      StringField
	CacheTypeV      StringField
}

func NewLoadRequest() *LoadRequest {
	m := &LoadRequest{}
	b := NewSchema(ProtoLoadReq)
	m.ModelPaths = b.StringArray("model_paths")
	m.NCtxAuto = b.Bool("n_ctx_auto")
	// The engine keeps its model defaults for these three unless a value
	// arrives.
	m.UseMmap = b.NullableBool("use_mmap")
	m.UseMlock = b.NullableBool("use_mlock")
	m.NGpuLayers = b.NullableInt32("n_gpu_layers")
	m.Seed = b.Int32("seed")
	m.NCtx = b.Int32("n_ctx")
	m.NThreads = b.Int32("n_threads")
	m.Embeddings = b.NullableBool("embeddings")
	m.OffloadKQV = b.NullableBool("offload_kqv")
	m.NBatch = b.NullableInt32("n_batch")
	m.NSeqMax = b.NullableInt32("n_seq_max")
	m.PoolingType = b.NullableString("pooling_type")
	m.RopeScalingType = b.NullableString("rope_scaling_type")
	m.RopeFreqBase = b.NullableFloat32("rope_freq_base")
	m.RopeFreqScale = b.NullableFloat32("rope_freq_scale")
	m.YarnExtFactor = b.NullableFloat32("yarn_ext_factor")
	m.YarnAttnFactor = b.NullableFloat32("yarn_attn_factor")
	m.YarnBetaFast = b.NullableFloat32("yarn_beta_fast")
	m.YarnBetaSlow = b.NullableFloat32("yarn_beta_slow")
	m.YarnOrigCtx = b.NullableInt32("yarn_orig_ctx")
	m.CacheTypeK = b.NullableString("cache_type_k")
	m.CacheTypeV = b.NullableString("cache_type_v")
	m.Schema = b.Build()
	return m
}

// LoadResponse reports the loaded model's geometry, tokenizer metadata and
// special tokens.
type LoadResponse struct {
	*Schema
	Success           BoolField
	NCtx              Int32Field
	NBatch            Int32Field
	NUbatch           Int32Field
	NVocab            Int32Field
	NCtxTrain         Int32Field
	NEmbd             Int32Field
	NLayer            Int32Field
	MetadataKey       StringArrayField
	MetadataVal       StringArrayField
	TokenBOS          Int32Field
	TokenEOS          Int32Field
	TokenEOT          Int32Field
	ListTokensEOG     Int32ArrayField
	AddBOSToken       BoolField
	AddEOSToken       BoolField
	HasEncoder        BoolField
	TokenDecoderStart Int32Field
}

func NewLoadResponse() *LoadResponse {
	m := &LoadResponse{}
	b := NewSchema(ProtoLoadRes)
	m.Success = b.Bool("success")
	m.NCtx = b.Int32("n_ctx")
	m.NBatch = b.Int32("n_batch")
	m.NUbatch = b.Int32("n_ubatch")
	m.NVocab = b.Int32("n_vocab")
	m.NCtxTrain = b.Int32("n_ctx_train")
	m.NEmbd = b.Int32("n_embd")
	m.NLayer = b.Int32("n_layer")
	m.MetadataKey = b.StringArray("metadata_key")
	m.MetadataVal = b.StringArray("metadata_val")
	m.TokenBOS = b.Int32("token_bos")
	m.TokenEOS = b.Int32("token_eos")
	m.TokenEOT = b.Int32("token_eot")
	m.ListTokensEOG = b.Int32Array("list_tokens_eog")
	m.AddBOSToken = b.Bool("add_bos_token")
	m.AddEOSToken = b.Bool("add_eos_token")
	m.HasEncoder = b.Bool("has_encoder")
	m.TokenDecoderStart = b.Int32("token_decoder_start")
	m.Schema = b.Build()
	return m
}

// SetOptionsRequest toggles runtime options on a loaded model.
type SetOptionsRequest struct {
	*Schema
	Embeddings BoolField
}

func NewSetOptionsRequest() *SetOptionsRequest {
	m := &SetOptionsRequest{}
	b := NewSchema(ProtoSetOptionsReq)
	m.Embeddings = b.Bool("embeddings")
	m.Schema = b.Build()
	return m
}

// SetOptionsResponse acknowledges a SetOptionsRequest.
type SetOptionsResponse struct {
	*Schema
	Success BoolField
}

func NewSetOptionsResponse() *SetOptionsResponse {
	m := &SetOptionsResponse{}
	b := NewSchema(ProtoSetOptionsRes)
	m.Success = b.Bool("success")
	m.Schema = b.Build()
	return m
}

// SamplingInitRequest configures the sampling chain. Every field is
// nullable; absent fields keep the engine's defaults. Tokens primes the
// penalty window with an existing history.
type SamplingInitRequest struct {
	*Schema
	Mirostat         Int32Field
	MirostatTau      Float32Field
	MirostatEta      Float32Field
	Temp             Float32Field
	TopP             Float32Field
	TopK             Int32Field
	PenaltyLastN     Int32Field
	PenaltyRepeat    Float32Field
	PenaltyFreq      Float32Field
	PenaltyPresent   Float32Field
	DynatempRange    Float32Field
	DynatempExponent Float32Field
	SamplersSequence StringArrayField
	Grammar          StringField
	NPrev            Int32Field
	NProbs           Int32Field
	MinP             Float32Field
	TypicalP         Float32Field
	TypP             Float32Field
	LogitBiasToks    Int32ArrayField
	LogitBiasVals    Float32ArrayField
	Tokens           Int32ArrayField
}

func NewSamplingInitRequest() *SamplingInitRequest {
	m := &SamplingInitRequest{}
	b := NewSchema(ProtoSamplingInitReq)
	m.Mirostat = b.NullableInt32("mirostat")
	m.MirostatTau = b.NullableFloat32("mirostat_tau")
	m.MirostatEta = b.NullableFloat32("mirostat_eta")
	m.Temp = b.NullableFloat32("temp")
	m.TopP = b.NullableFloat32("top_p")
	m.TopK = b.NullableInt32("top_k")
	m.PenaltyLastN = b.NullableInt32("penalty_last_n")
	m.PenaltyRepeat = b.NullableFloat32("penalty_repeat")
	m.PenaltyFreq = b.NullableFloat32("penalty_freq")
	m.PenaltyPresent = b.NullableFloat32("penalty_present")
	m.DynatempRange = b.NullableFloat32("dynatemp_range")
	m.DynatempExponent = b.NullableFloat32("dynatemp_exponent")
	m.SamplersSequence = b.NullableStringArray("samplers_sequence")
	m.Grammar = b.NullableString("grammar")
	m.NPrev = b.NullableInt32("n_prev")
	m.NProbs = b.NullableInt32("n_probs")
	m.MinP = b.NullableFloat32("min_p")
	m.TypicalP = b.NullableFloat32("typical_p")
	m.TypP = b.NullableFloat32("typ_p")
	m.LogitBiasToks = b.NullableInt32Array("logit_bias_toks")
	m.LogitBiasVals = b.NullableFloat32Array("logit_bias_vals")
	m.Tokens = b.NullableInt32Array("tokens")
	m.Schema = b.Build()
	return m
}

// SamplingInitResponse acknowledges a SamplingInitRequest.
type SamplingInitResponse struct {
	*Schema
	Success BoolField
}

func NewSamplingInitResponse() *SamplingInitResponse {
	m := &SamplingInitResponse{}
	b := NewSchema(ProtoSamplingInitRes)
	m.Success = b.Bool("success")
	m.Schema = b.Build()
	return m
}

// GetVocabRequest asks for the full vocabulary.
type GetVocabRequest struct {
	*Schema
}

func NewGetVocabRequest() *GetVocabRequest {
	m := &GetVocabRequest{}
	m.Schema = NewSchema(ProtoGetVocabReq).Build()
	return m
}

// GetVocabResponse carries every vocabulary piece as raw bytes, indexed by
// token id.
type GetVocabResponse struct {
	*Schema
	Success BoolField
	Vocab   RawArrayField
}

func NewGetVocabResponse() *GetVocabResponse {
	m := &GetVocabResponse{}
	b := NewSchema(ProtoGetVocabRes)
	m.Success = b.Bool("success")
	m.Vocab = b.RawArray("vocab")
	m.Schema = b.Build()
	return m
}

// LookupTokenRequest resolves a single piece to its token id.
type LookupTokenRequest struct {
	*Schema
	Piece StringField
}

func NewLookupTokenRequest() *LookupTokenRequest {
	m := &LookupTokenRequest{}
	b := NewSchema(ProtoLookupTokenReq)
	m.Piece = b.String("piece")
	m.Schema = b.Build()
	return m
}

// LookupTokenResponse carries the resolved token id; Success is false when
// the piece is not in the vocabulary.
type LookupTokenResponse struct {
	*Schema
	Success BoolField
	Token   Int32Field
}

func NewLookupTokenResponse() *LookupTokenResponse {
	m := &LookupTokenResponse{}
	b := NewSchema(ProtoLookupTokenRes)
	m.Success = b.Bool("success")
	m.Token = b.Int32("token")
	m.Schema = b.Build()
	return m
}

// TokenizeRequest tokenizes text. Special toggles parsing of special and
// control tokens embedded in the text.
type TokenizeRequest struct {
	*Schema
	Text    StringField
	Special BoolField
}

func NewTokenizeRequest() *TokenizeRequest {
	m := &TokenizeRequest{}
	b := NewSchema(ProtoTokenizeReq)
	m.Text = b.String("text")
	m.Special = b.Bool("special")
	m.Schema = b.Build()
	return m
}

// TokenizeResponse carries the token ids for a TokenizeRequest.
type TokenizeResponse struct {
	*Schema
	Success BoolField
	Tokens  Int32ArrayField
}

func NewTokenizeResponse() *TokenizeResponse {
	m := &TokenizeResponse{}
	b := NewSchema(ProtoTokenizeRes)
	m.Success = b.Bool("success")
	m.Tokens = b.Int32Array("tokens")
	m.Schema = b.Build()
	return m
}

// DetokenizeRequest renders token ids back into bytes.
type DetokenizeRequest struct {
	*Schema
	Tokens Int32ArrayField
}

func NewDetokenizeRequest() *DetokenizeRequest {
	m := &DetokenizeRequest{}
	b := NewSchema(ProtoDetokenizeReq)
	m.Tokens = b.Int32Array("tokens")
	m.Schema = b.Build()
	return m
}

// DetokenizeResponse carries the rendered bytes. Buffer is raw because a
// token boundary can split a UTF-8 sequence.
type DetokenizeResponse struct {
	*Schema
	Success BoolField
	Buffer  RawField
}

func NewDetokenizeResponse() *DetokenizeResponse {
	m := &DetokenizeResponse{}
	b := NewSchema(ProtoDetokenizeRes)
	m.Success = b.Bool("success")
	m.Buffer = b.Raw("buffer")
	m.Schema = b.Build()
	return m
}

// DecodeRequest feeds tokens through the decoder, advancing the context.
// SkipLogits skips the logit computation for all but the last token.
type DecodeRequest struct {
	*Schema
	Tokens     Int32ArrayField
	SkipLogits BoolField
}

func NewDecodeRequest() *DecodeRequest {
	m := &DecodeRequest{}
	b := NewSchema(ProtoDecodeReq)
	m.Tokens = b.Int32Array("tokens")
	m.SkipLogits = b.Bool("skip_logits")
	m.Schema = b.Build()
	return m
}

// DecodeResponse reports the decode outcome and the new context position.
type DecodeResponse struct {
	*Schema
	Success BoolField
	Message StringField
	NPast   Int32Field
}

func NewDecodeResponse() *DecodeResponse {
	m := &DecodeResponse{}
	b := NewSchema(ProtoDecodeRes)
	m.Success = b.Bool("success")
	m.Message = b.String("message")
	m.NPast = b.Int32("n_past")
	m.Schema = b.Build()
	return m
}

// EncodeRequest feeds tokens through the encoder of an encoder-decoder
// model.
type EncodeRequest struct {
	*Schema
	Tokens Int32ArrayField
}

func NewEncodeRequest() *EncodeRequest {
	m := &EncodeRequest{}
	b := NewSchema(ProtoEncodeReq)
	m.Tokens = b.Int32Array("tokens")
	m.Schema = b.Build()
	return m
}

// EncodeResponse reports the encode outcome and the new context position.
type EncodeResponse struct {
	*Schema
	Success BoolField
	Message StringField
	NPast   Int32Field
}

func NewEncodeResponse() *EncodeResponse {
	m := &EncodeResponse{}
	b := NewSchema(ProtoEncodeRes)
	m.Success = b.Bool("success")
	m.Message = b.String("message")
	m.NPast = b.Int32("n_past")
	m.Schema = b.Build()
	return m
}

// SamplingSampleRequest samples one token from the current logits.
type SamplingSampleRequest struct {
	*Schema
}

func NewSamplingSampleRequest() *SamplingSampleRequest {
	m := &SamplingSampleRequest{}
	m.Schema = NewSchema(ProtoSamplingSampleReq).Build()
	return m
}

// SamplingSampleResponse carries the sampled token and its piece bytes.
type SamplingSampleResponse struct {
	*Schema
	Success BoolField
	Piece   RawField
	Token   Int32Field
}

func NewSamplingSampleResponse() *SamplingSampleResponse {
	m := &SamplingSampleResponse{}
	b := NewSchema(ProtoSamplingSampleRes)
	m.Success = b.Bool("success")
	m.Piece = b.Raw("piece")
	m.Token = b.Int32("token")
	m.Schema = b.Build()
	return m
}

// SamplingAcceptRequest commits tokens into the sampling history.
type SamplingAcceptRequest struct {
	*Schema
	Tokens Int32ArrayField
}

func NewSamplingAcceptRequest() *SamplingAcceptRequest {
	m := &SamplingAcceptRequest{}
	b := NewSchema(ProtoSamplingAcceptReq)
	m.Tokens = b.Int32Array("tokens")
	m.Schema = b.Build()
	return m
}

// SamplingAcceptResponse acknowledges a SamplingAcceptRequest.
type SamplingAcceptResponse struct {
	*Schema
	Success BoolField
}

func NewSamplingAcceptResponse() *SamplingAcceptResponse {
	m := &SamplingAcceptResponse{}
	b := NewSchema(ProtoSamplingAcceptRes)
	m.Success = b.Bool("success")
	m.Schema = b.Build()
	return m
}

// GetLogitsRequest asks for the top-k entries of the current logits.
type GetLogitsRequest struct {
	*Schema
	TopK Int32Field
}

func NewGetLogitsRequest() *GetLogitsRequest {
	m := &GetLogitsRequest{}
	b := NewSchema(ProtoGetLogitsReq)
	m.TopK = b.Int32("top_k")
	m.Schema = b.Build()
	return m
}

// GetLogitsResponse carries parallel arrays of token ids and probabilities,
// highest probability first.
type GetLogitsResponse struct {
	*Schema
	Success BoolField
	Tokens  Int32ArrayField
	Probs   Float32ArrayField
}

func NewGetLogitsResponse() *GetLogitsResponse {
	m := &GetLogitsResponse{}
	b := NewSchema(ProtoGetLogitsRes)
	m.Success = b.Bool("success")
	m.Tokens = b.Int32Array("tokens")
	m.Probs = b.Float32Array("probs")
	m.Schema = b.Build()
	return m
}

// EmbeddingsRequest computes embeddings for the given tokens.
type EmbeddingsRequest struct {
	*Schema
	Tokens Int32ArrayField
}

func NewEmbeddingsRequest() *EmbeddingsRequest {
	m := &EmbeddingsRequest{}
	b := NewSchema(ProtoEmbeddingsReq)
	m.Tokens = b.Int32Array("tokens")
	m.Schema = b.Build()
	return m
}

// EmbeddingsResponse carries the embedding vector; Message explains a
// failure when Success is false.
type EmbeddingsResponse struct {
	*Schema
	Success    BoolField
	Message    StringField
	Embeddings Float32ArrayField
}

func NewEmbeddingsResponse() *EmbeddingsResponse {
	m := &EmbeddingsResponse{}
	b := NewSchema(ProtoEmbeddingsRes)
	m.Success = b.Bool("success")
	m.Message = b.String("message")
	m.Embeddings = b.Float32Array("embeddings")
	m.Schema = b.Build()
	return m
}

// KvRemoveRequest trims the KV cache, keeping the first NKeep positions and
// discarding NDiscard after them.
type KvRemoveRequest struct {
	*Schema
	NKeep    Int32Field
	NDiscard Int32Field
}

func NewKvRemoveRequest() *KvRemoveRequest {
	m := &KvRemoveRequest{}
	b := NewSchema(ProtoKvRemoveReq)
	m.NKeep = b.Int32("n_keep")
	m.NDiscard = b.Int32("n_discard")
	m.Schema = b.Build()
	return m
}

// KvRemoveResponse reports the context position after the trim.
type KvRemoveResponse struct {
	*Schema
	NPast   Int32Field
	Success BoolField
}

func NewKvRemoveResponse() *KvRemoveResponse {
	m := &KvRemoveResponse{}
	b := NewSchema(ProtoKvRemoveRes)
	m.NPast = b.Int32("n_past")
	m.Success = b.Bool("success")
	m.Schema = b.Build()
	return m
}

// KvClearRequest empties the KV cache.
type KvClearRequest struct {
	*Schema
}

func NewKvClearRequest() *KvClearRequest {
	m := &KvClearRequest{}
	m.Schema = NewSchema(ProtoKvClearReq).Build()
	return m
}

// KvClearResponse reports the context position after the clear.
type KvClearResponse struct {
	*Schema
	NPast   Int32Field
	Success BoolField
}

func NewKvClearResponse() *KvClearResponse {
	m := &KvClearResponse{}
	b := NewSchema(ProtoKvClearRes)
	m.NPast = b.Int32("n_past")
	m.Success = b.Bool("success")
	m.Schema = b.Build()
	return m
}

// SessionSaveRequest persists the context state to a file.
type SessionSaveRequest struct {
	*Schema
	SessionPath StringField
}

func NewSessionSaveRequest() *SessionSaveRequest {
	m := &SessionSaveRequest{}
	b := NewSchema(ProtoSessionSaveReq)
	m.SessionPath = b.String("session_path")
	m.Schema = b.Build()
	return m
}

// SessionSaveResponse carries the tokens captured with the saved state.
type SessionSaveResponse struct {
	*Schema
	Success BoolField
	Tokens  Int32ArrayField
}

func NewSessionSaveResponse() *SessionSaveResponse {
	m := &SessionSaveResponse{}
	b := NewSchema(ProtoSessionSaveRes)
	m.Success = b.Bool("success")
	m.Tokens = b.Int32Array("tokens")
	m.Schema = b.Build()
	return m
}

// SessionLoadRequest restores context state from a file, replaying the
// given token history.
type SessionLoadRequest struct {
	*Schema
	SessionPath StringField
	Tokens      Int32ArrayField
}

func NewSessionLoadRequest() *SessionLoadRequest {
	m := &SessionLoadRequest{}
	b := NewSchema(ProtoSessionLoadReq)
	m.SessionPath = b.String("session_path")
	m.Tokens = b.Int32Array("tokens")
	m.Schema = b.Build()
	return m
}

// SessionLoadResponse acknowledges a SessionLoadRequest.
type SessionLoadResponse struct {
	*Schema
	Success BoolField
}

func NewSessionLoadResponse() *SessionLoadResponse {
	m := &SessionLoadResponse{}
	b := NewSchema(ProtoSessionLoadRes)
	m.Success = b.Bool("success")
	m.Schema = b.Build()
	return m
}

// StatusRequest asks for the tokens currently in the context.
type StatusRequest struct {
	*Schema
}

func NewStatusRequest() *StatusRequest {
	m := &StatusRequest{}
	m.Schema = NewSchema(ProtoStatusReq).Build()
	return m
}

// StatusResponse carries the tokens currently in the context.
type StatusResponse struct {
	*Schema
	Success BoolField
	Tokens  Int32ArrayField
}

func NewStatusResponse() *StatusResponse {
	m := &StatusResponse{}
	b := NewSchema(ProtoStatusRes)
	m.Success = b.Bool("success")
	m.Tokens = b.Int32Array("tokens")
	m.Schema = b.Build()
	return m
}

// BenchmarkRequest runs a synthetic benchmark of the given type.
type BenchmarkRequest struct {
	*Schema
	Type     StringField
	NSamples Int32Field
}

func NewBenchmarkRequest() *BenchmarkRequest {
	m := &BenchmarkRequest{}
	b := NewSchema(ProtoBenchmarkReq)
	m.Type = b.String("type")
	m.NSamples = b.Int32("n_samples")
	m.Schema = b.Build()
	return m
}

// BenchmarkResponse carries the benchmark report and elapsed time.
type BenchmarkResponse struct {
	*Schema
	Success   BoolField
	Message   StringField
	ElapsedMs Int32Field
}

func NewBenchmarkResponse() *BenchmarkResponse {
	m := &BenchmarkResponse{}
	b := NewSchema(ProtoBenchmarkRes)
	m.Success = b.Bool("success")
	m.Message = b.String("message")
	m.ElapsedMs = b.Int32("t_ms")
	m.Schema = b.Build()
	return m
}

// PerplexityRequest scores the given tokens.
type PerplexityRequest struct {
	*Schema
	Tokens Int32ArrayField
}

func NewPerplexityRequest() *PerplexityRequest {
	m := &PerplexityRequest{}
	b := NewSchema(ProtoPerplexityReq)
	m.Tokens = b.Int32Array("tokens")
	m.Schema = b.Build()
	return m
}

// PerplexityResponse carries the perplexity metrics and elapsed time.
type PerplexityResponse struct {
	*Schema
	Success      BoolField
	Message      StringField
	PPL          Float32Field
	NLL          Float32Field
	CrossEntropy Float32Field
	NTokens      Int32Field
	ElapsedMs    Int32Field
}

func NewPerplexityResponse() *PerplexityResponse {
	m := &PerplexityResponse{}
	b := NewSchema(ProtoPerplexityRes)
	m.Success = b.Bool("success")
	m.Message = b.String("message")
	m.PPL = b.Float32("ppl")
	m.NLL = b.Float32("nll")
	m.CrossEntropy = b.Float32("cross_entropy")
	m.NTokens = b.Int32("n_tokens")
	m.ElapsedMs = b.Int32("t_ms")
	m.Schema = b.Build()
	return m
}

// ChatFormatRequest renders a chat through the model's template. Roles and
// Contents are parallel arrays; Tmpl overrides the model's own template and
// AddAss appends the assistant prompt.
type ChatFormatRequest struct {
	*Schema
	Tmpl     StringField
	AddAss   BoolField
	Roles    StringArrayField
	Contents StringArrayField
}

func NewChatFormatRequest() *ChatFormatRequest {
	m := &ChatFormatRequest{}
	b := NewSchema(ProtoChatFormatReq)
	m.Tmpl = b.NullableString("tmpl")
	m.AddAss = b.NullableBool("add_ass")
	m.Roles = b.StringArray("roles")
	m.Contents = b.StringArray("contents")
	m.Schema = b.Build()
	return m
}

// ChatFormatResponse carries the rendered chat text.
type ChatFormatResponse struct {
	*Schema
	Success       BoolField
	Message       StringField
	FormattedChat StringField
}

func NewChatFormatResponse() *ChatFormatResponse {
	m := &ChatFormatResponse{}
	b := NewSchema(ProtoChatFormatRes)
	m.Success = b.Bool("success")
	m.Message = b.String("message")
	m.FormattedChat = b.String("formatted_chat")
	m.Schema = b.Build()
	return m
}

// registry maps every catalogue prototype to a fresh-message constructor.
// Map literal keys keep the ids unique at compile time.
var registry = map[string]func() Message{
	ProtoErrorEvent:        func() Message { return NewErrorEvent() },
	ProtoLoadReq:           func() Message { return NewLoadRequest() },
	ProtoLoadRes:           func() Message { return NewLoadResponse() },
	ProtoSetOptionsReq:     func() Message { return NewSetOptionsRequest() },
	ProtoSetOptionsRes:     func() Message { return NewSetOptionsResponse() },
	ProtoSamplingInitReq:   func() Message { return NewSamplingInitRequest() },
	ProtoSamplingInitRes:   func() Message { return NewSamplingInitResponse() },
	ProtoGetVocabReq:       func() Message { return NewGetVocabRequest() },
	ProtoGetVocabRes:       func() Message { return NewGetVocabResponse() },
	ProtoLookupTokenReq:    func() Message { return NewLookupTokenRequest() },
	ProtoLookupTokenRes:    func() Message { return NewLookupTokenResponse() },
	ProtoTokenizeReq:       func() Message { return NewTokenizeRequest() },
	ProtoTokenizeRes:       func() Message { return NewTokenizeResponse() },
	ProtoDetokenizeReq:     func() Message { return NewDetokenizeRequest() },
	ProtoDetokenizeRes:     func() Message { return NewDetokenizeResponse() },
	ProtoDecodeReq:         func() Message { return NewDecodeRequest() },
	ProtoDecodeRes:         func() Message { return NewDecodeResponse() },
	ProtoEncodeReq:         func() Message { return NewEncodeRequest() },
	ProtoEncodeRes:         func() Message { return NewEncodeResponse() },
	ProtoSamplingSampleReq: func() Message { return NewSamplingSampleRequest() },
	ProtoSamplingSampleRes: func() Message { return NewSamplingSampleResponse() },
	ProtoSamplingAcceptReq: func() Message { return NewSamplingAcceptRequest() },
	ProtoSamplingAcceptRes: func() Message { return NewSamplingAcceptResponse() },
	ProtoGetLogitsReq:      func() Message { return NewGetLogitsRequest() },
	ProtoGetLogitsRes:      func() Message { return NewGetLogitsResponse() },
	ProtoEmbeddingsReq:     func() Message { return NewEmbeddingsRequest() },
	ProtoEmbeddingsRes:     func() Message { return NewEmbeddingsResponse() },
	ProtoKvRemoveReq:       func() Message { return NewKvRemoveRequest() },
	ProtoKvRemoveRes:       func() Message { return NewKvRemoveResponse() },
	ProtoKvClearReq:        func() Message { return NewKvClearRequest() },
	ProtoKvClearRes:        func() Message { return NewKvClearResponse() },
	ProtoSessionSaveReq:    func() Message { return NewSessionSaveRequest() },
	ProtoSessionSaveRes:    func() Message { return NewSessionSaveResponse() },
	ProtoSessionLoadReq:    func() Message { return NewSessionLoadRequest() },
	ProtoSessionLoadRes:    func() Message { return NewSessionLoadResponse() },
	ProtoStatusReq:         func() Message { return NewStatusRequest() },
	ProtoStatusRes:         func() Message { return NewStatusResponse() },
	ProtoBenchmarkReq:      func() Message { return NewBenchmarkRequest() },
	ProtoBenchmarkRes:      func() Message { return NewBenchmarkResponse() },
	ProtoPerplexityReq:     func() Message { return NewPerplexityRequest() },
	ProtoPerplexityRes:     func() Message { return NewPerplexityResponse() },
	ProtoChatFormatReq:     func() Message { return NewChatFormatRequest() },
	ProtoChatFormatRes:     func() Message { return NewChatFormatResponse() },
}

// NewByPrototype returns a fresh message for the given prototype id. It
// reports false for ids outside the catalogue.
func NewByPrototype(proto string) (Message, bool) {
	ctor, ok := registry[proto]
	if !ok {
		return nil, false
	}
	return ctor(), true
}

// Prototypes returns every catalogue prototype id, sorted.
func Prototypes() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DecodeAny decodes data into the catalogue message its header names.
func DecodeAny(data []byte) (Message, error) {
	proto, err := PeekPrototype(data)
	if err != nil {
		return nil, err
	}
	m, ok := NewByPrototype(proto)
	if !ok {
		return nil, &DecodeError{
			Kind:     ErrPrototypeMismatch,
			Offset:   8,
			Expected: "a catalogue prototype id",
			Actual:   fmt.Sprintf("%q", proto),
		}
	}
	if err := m.Deserialize(data); err != nil {
		return nil, err
	}
	return m, nil
}
