package types

// Message is one turn of a chat conversation.
type Message struct {
	// One of system, user, assistant.
	// example: user
	Role string `json:"role" example:"user"`
	// example: What is 2+2?
	Content string `json:"content" example:"What is 2+2?"`
}

// SamplingParams are the generation knobs shared by /v1/generate and /v1/chat/completions.
// Zero values mean "use the server default".
type SamplingParams struct {
	// Maximum number of new tokens; clamped to the server ceiling.
	// example: 256
	MaxTokens int `json:"max_tokens,omitempty" example:"256"`
	// Sampling temperature (higher = more random).
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.95
	TopP float64 `json:"top_p,omitempty" example:"0.95"`
	// Top-K sampling: limit candidates to top K tokens.
	// example: 40
	TopK int `json:"top_k,omitempty" example:"40"`
	// Penalty applied to repeated tokens.
	// example: 1.2
	RepetitionPenalty float64 `json:"repetition_penalty,omitempty" example:"1.2"`
	// Optional stop sequences.
	Stop []string `json:"stop,omitempty"`
	// Random seed; 0 lets the backend choose.
	Seed int `json:"seed,omitempty"`
	// Stream chunks as Server-Sent Events. When false a single aggregated
	// frame is written, still followed by [DONE].
	// example: true
	Stream bool `json:"stream,omitempty" example:"true"`
	// Chunk granularity: "fragment" (one chunk per backend fragment) or
	// "char" (one chunk per character). Empty uses the server default.
	// example: fragment
	Granularity string `json:"granularity,omitempty" example:"fragment"`
}

// GenerateRequest is the payload of POST /v1/generate.
type GenerateRequest struct {
	// Raw prompt passed to the model unchanged.
	// example: 2+2=
	Prompt string `json:"prompt" example:"2+2="`
	SamplingParams
}

// ChatCompletionRequest is the payload of POST /v1/chat/completions.
type ChatCompletionRequest struct {
	// Informational; the currently loaded model always serves the request.
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages"`
	SamplingParams
}

// LoadModelRequest is the payload of POST /v1/models/load.
type LoadModelRequest struct {
	// Registry id of the model to load.
	// example: tinyllama-q4.gguf
	Model string `json:"model" example:"tinyllama-q4.gguf"`
	// Optional runtime override ("llama.cpp" or "in-process").
	Type string `json:"type,omitempty"`
	// Optional device override (cpu, cuda, metal).
	Device string `json:"device,omitempty"`
}

// Chunk object kinds.
const (
	ObjectChunk      = "chat.completion.chunk"
	ObjectCompletion = "chat.completion"
)

// Finish reasons carried by the terminal chunk.
const (
	FinishStop  = "stop"
	FinishError = "error"
)

// StreamChunk is one SSE frame payload.
type StreamChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice is a single choice within a chunk. FinishReason is null on
// every chunk except the terminal one.
type ChunkChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Delta is the incremental content of a chunk.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of available models.
	Models []Model `json:"models"`
	// Currently loaded model, if any.
	Loaded *LoadedModel `json:"loaded,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: no model is currently loaded
	Error string `json:"error" example:"no model is currently loaded"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Overall state (empty, loading, ready, error).
	// example: ready
	State string `json:"state" example:"ready"`
	// Currently loaded model.
	Loaded *LoadedModel `json:"loaded,omitempty"`
	// Sessions currently streaming.
	// example: 1
	ActiveSessions int `json:"active_sessions" example:"1"`
	// Requests waiting for the model when sessions are serialized.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Maximum queued requests allowed before backpressure triggers.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Whether sessions against the loaded model run concurrently.
	// example: false
	ParallelSessions bool `json:"parallel_sessions" example:"false"`
	// Last error observed by the manager (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Total number of model loads.
	// example: 3
	LoadsTotal uint64 `json:"loads_total" example:"3"`
	// Total number of sessions served.
	// example: 12
	SessionsTotal uint64 `json:"sessions_total" example:"12"`
}
