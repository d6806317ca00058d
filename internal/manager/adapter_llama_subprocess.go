package manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"streamd/internal/registry"
	"streamd/pkg/types"
)

// subprocessMaxTokens caps every request sent to llama-server, whatever the caller asked for.
const subprocessMaxTokens = 2048

const defaultReadyTimeout = 30 * time.Second

// llamaSubprocessAdapter spawns and manages a llama.cpp server per model path.
type llamaSubprocessAdapter struct {
	cfg          ManagerConfig
	mu           sync.Mutex
	procs        map[string]*procInfo // key: modelPath
	httpClient   *http.Client
	publisher    EventPublisher
	log          zerolog.Logger
	readyTimeout time.Duration
}

type procInfo struct {
	cmd     *exec.Cmd
	baseURL string
	ready   bool
	pid     int
	refs    int
	exited  chan struct{}
	waitErr error
}

// NewLlamaSubprocessAdapter constructs a subprocess-backed adapter.
func NewLlamaSubprocessAdapter(cfg ManagerConfig) InferenceAdapter {
	// Timeout=0: every call carries a context deadline instead.
	cli := &http.Client{Timeout: 0}
	return &llamaSubprocessAdapter{
		cfg:          cfg,
		procs:        make(map[string]*procInfo),
		httpClient:   cli,
		publisher:    noopPublisher{},
		log:          zerolog.Nop(),
		readyTimeout: defaultReadyTimeout,
	}
}

// Load starts (or reuses) llama-server for the model and returns a runtime
// bound to it. Each runtime holds a reference on the process; the process is
// stopped when the last runtime using it is closed.
func (a *llamaSubprocessAdapter) Load(ctx context.Context, mdl types.Model, device string) (registry.Runtime, error) {
	if strings.TrimSpace(mdl.Path) == "" {
		return nil, errors.New("model path is empty")
	}
	baseURL, err := a.ensureProcess(ctx, mdl.Path, device)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	if p := a.procs[mdl.Path]; p != nil {
		p.refs++
	}
	a.mu.Unlock()
	return &subprocessRuntime{a: a, modelPath: mdl.Path, baseURL: baseURL}, nil
}

// release drops one reference on the process for modelPath.
func (a *llamaSubprocessAdapter) release(modelPath string) error {
	a.mu.Lock()
	p := a.procs[modelPath]
	if p == nil {
		a.mu.Unlock()
		return nil
	}
	p.refs--
	last := p.refs <= 0
	a.mu.Unlock()
	if last {
		return a.Stop(modelPath)
	}
	return nil
}

// isHealthy checks if the llama-server at baseURL responds OK to /v1/models.
func (a *llamaSubprocessAdapter) isHealthy(baseURL string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// ensureProcess returns the URL of a healthy llama-server for modelPath,
// spawning one if needed.
func (a *llamaSubprocessAdapter) ensureProcess(ctx context.Context, modelPath, device string) (string, error) {
	a.mu.Lock()
	p := a.procs[modelPath]
	a.mu.Unlock()
	if p != nil {
		if a.isHealthy(p.baseURL, time.Second) {
			a.mu.Lock()
			p.ready = true
			a.mu.Unlock()
			return p.baseURL, nil
		}
		// unhealthy: restart
		_ = a.Stop(modelPath)
	}
	return a.spawn(ctx, modelPath, device)
}

func (a *llamaSubprocessAdapter) spawn(ctx context.Context, modelPath, device string) (string, error) {
	bin := strings.TrimSpace(a.cfg.LlamaBin)
	if bin == "" {
		bin = "llama-server"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return "", ErrDependencyUnavailable(fmt.Sprintf("llama-server binary not found: %s", bin))
	}
	host := strings.TrimSpace(a.cfg.LlamaHost)
	if host == "" {
		host = "127.0.0.1"
	}
	var port int
	var err error
	if a.cfg.LlamaPortStart > 0 && a.cfg.LlamaPortEnd >= a.cfg.LlamaPortStart {
		port, err = pickPortInRange(host, a.cfg.LlamaPortStart, a.cfg.LlamaPortEnd)
	} else {
		port, err = pickFreePort(host)
	}
	if err != nil {
		return "", err
	}
	baseURL := fmt.Sprintf("http://%s:%d", host, port)

	cmd := exec.Command(bin, a.args(modelPath, device, host, port)...)
	// stderr tail is included in early-exit errors
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start llama-server: %w", err)
	}
	pid := cmd.Process.Pid
	log := a.log.With().Str("model", modelPath).Int("pid", pid).Logger()
	log.Info().Str("host", host).Int("port", port).Msg("llama-server start")
	a.publisher.Publish(Event{Name: "spawn_start", ModelID: modelPath, Fields: map[string]any{"pid": pid, "host": host, "port": port}})

	p := &procInfo{cmd: cmd, baseURL: baseURL, pid: pid, exited: make(chan struct{})}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()
	a.mu.Lock()
	a.procs[modelPath] = p
	a.mu.Unlock()

	forget := func() {
		a.mu.Lock()
		if a.procs[modelPath] == p {
			delete(a.procs, modelPath)
		}
		a.mu.Unlock()
	}

	deadline := time.NewTimer(a.readyTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		if a.isHealthy(baseURL, time.Second) {
			break
		}
		select {
		case <-p.exited:
			forget()
			tail := stderr.String()
			if len(tail) > 4096 {
				tail = tail[len(tail)-4096:]
			}
			fields := map[string]any{"pid": pid, "before_ready": true}
			if p.waitErr != nil {
				fields["error"] = p.waitErr.Error()
			}
			log.Warn().Err(p.waitErr).Msg("llama-server exited before ready")
			a.publisher.Publish(Event{Name: "spawn_exit", ModelID: modelPath, Fields: fields})
			if p.waitErr != nil {
				return "", fmt.Errorf("llama-server exited early: %v; stderr tail: %s", p.waitErr, tail)
			}
			return "", fmt.Errorf("llama-server exited before ready: %s", baseURL)
		case <-deadline.C:
			log.Warn().Msg("llama-server not ready in time")
			a.publisher.Publish(Event{Name: "spawn_timeout", ModelID: modelPath, Fields: map[string]any{"pid": pid}})
			_ = a.Stop(modelPath)
			return "", fmt.Errorf("llama-server not ready in time: %s", baseURL)
		case <-ctx.Done():
			_ = a.Stop(modelPath)
			return "", ctx.Err()
		case <-tick.C:
		}
	}
	a.mu.Lock()
	p.ready = true
	a.mu.Unlock()
	log.Info().Str("url", baseURL).Msg("llama-server ready")
	a.publisher.Publish(Event{Name: "spawn_ready", ModelID: modelPath, Fields: map[string]any{"pid": pid, "url": baseURL}})
	return baseURL, nil
}

func (a *llamaSubprocessAdapter) args(modelPath, device, host string, port int) []string {
	args := []string{
		"-m", modelPath,
		"--host", host,
		"--port", strconv.Itoa(port),
	}
	if a.cfg.LlamaCtxSize > 0 {
		args = append(args, "-c", strconv.Itoa(a.cfg.LlamaCtxSize))
	}
	if a.cfg.LlamaNGL > 0 && device != "cpu" {
		args = append(args, "-ngl", strconv.Itoa(a.cfg.LlamaNGL))
	}
	if a.cfg.LlamaThreads > 0 {
		args = append(args, "-t", strconv.Itoa(a.cfg.LlamaThreads))
	}
	return append(args, a.cfg.LlamaExtraArgs...)
}

func pickPortInRange(host string, start, end int) (int, error) {
	for p := start; p <= end; p++ {
		l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(p)))
		if err != nil {
			continue
		}
		_ = l.Close()
		return p, nil
	}
	return 0, fmt.Errorf("no free port in range %d-%d", start, end)
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected addr: %s", l.Addr())
	}
	return addr.Port, nil
}

// Stop terminates the llama-server process for modelPath, if present.
// SIGTERM first, then kill after two seconds.
func (a *llamaSubprocessAdapter) Stop(modelPath string) error {
	a.mu.Lock()
	p := a.procs[modelPath]
	delete(a.procs, modelPath)
	a.mu.Unlock()
	if p == nil || p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-p.exited:
	case <-time.After(2 * time.Second):
		_ = p.cmd.Process.Kill()
		<-p.exited
	}
	a.log.Info().Str("model", modelPath).Int("pid", p.pid).Msg("llama-server stopped")
	a.publisher.Publish(Event{Name: "spawn_stop", ModelID: modelPath, Fields: map[string]any{"pid": p.pid}})
	return nil
}

// StopAll terminates all managed subprocesses. Best effort.
func (a *llamaSubprocessAdapter) StopAll() {
	a.mu.Lock()
	paths := make([]string, 0, len(a.procs))
	for k := range a.procs {
		paths = append(paths, k)
	}
	a.mu.Unlock()
	for _, path := range paths {
		_ = a.Stop(path)
	}
}

// getProcInfo reads proc info under lock and returns a snapshot.
func (a *llamaSubprocessAdapter) getProcInfo(modelPath string) (pid int, baseURL string, ready bool, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p := a.procs[modelPath]; p != nil {
		return p.pid, p.baseURL, p.ready, true
	}
	return 0, "", false, false
}

// setPublisher installs an EventPublisher for emitting adapter events.
func (a *llamaSubprocessAdapter) setPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	a.publisher = p
}
