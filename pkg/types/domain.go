package types

// Model represents a discoverable or loadable LLM model on disk.
type Model struct {
	// Stable identifier for the model.
	// example: tinyllama-q4.gguf
	ID string `json:"id" example:"tinyllama-q4.gguf"`
	// Human-friendly name.
	// example: TinyLlama (Q4)
	Name string `json:"name" example:"TinyLlama (Q4)"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/TinyLlama.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/models/TinyLlama.Q4_K_M.gguf"`
	// Runtime used to serve the model: "llama.cpp" runs an external llama-server
	// process, "in-process" links the model into this binary.
	// example: llama.cpp
	Type string `json:"type" example:"llama.cpp"`
	// Optional family (e.g., llama, mistral, phi).
	// example: llama
	Family string `json:"family,omitempty" example:"llama"`
}

// Backend type names accepted in Model.Type and configuration.
const (
	ModelTypeLlamaCPP  = "llama.cpp"
	ModelTypeInProcess = "in-process"
)

// LoadedModel describes the model currently held by the registry.
type LoadedModel struct {
	Model
	// Device the runtime was asked to use (cpu, cuda, metal).
	// example: cpu
	Device string `json:"device" example:"cpu"`
	// Unix seconds of the load.
	// example: 1700000000
	LoadedAt int64 `json:"loaded_at" example:"1700000000"`
}
