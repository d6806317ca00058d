// Package manager orchestrates generation requests against the loaded model.
// It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: lifecycle state and the per-model admission slot.
//   - errors.go: error types and helpers (IsNoModelLoaded, IsTooBusy, ...).
//   - admission.go: per-model queueing when sessions are serialized.
//   - load.go: Load/Unload of models through the inference adapters.
//   - generate.go: Generate/ChatCompletion entry points driving a bridge.Session.
//   - prompt.go: chat transcript rendering.
//   - status_report.go: Status reporting for /status.
//   - events.go, eventpub_*.go: lifecycle events and their publishers.
//
// Build tags and runtimes:
//
//   - In-process llama: uses go-llama.cpp. Enabled with `-tags=llama`.
//     Files: adapter_llama.go, llama_cgo.go (linker rpath hints).
//     A no-CGO stub exists when the tag is not set: adapter_llama_stub.go.
//
//   - External llama-server: adapter_llama_subprocess.go spawns one
//     llama-server per model path; runtime_llama_server.go streams from its
//     OpenAI-compatible /v1/completions endpoint. Always built.
package manager
