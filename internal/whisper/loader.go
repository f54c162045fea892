package whisper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// State is the one-shot readiness state of the model. It transitions from
// StateLoading to exactly one of StateReady/StateFailed at startup and is
// immutable afterwards.
type State int32

const (
	StateLoading State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

type LoaderConfig struct {
	BinPath   string
	ModelPath string
	ModelURL  string
}

// Loader performs the model load once, in the background, and publishes the
// outcome through a single atomic transition observed by every request.
type Loader struct {
	cfg    LoaderConfig
	state  int32 // atomic State
	diag   atomic.Value
	engine atomic.Value
}

func NewLoader(cfg LoaderConfig) *Loader {
	l := &Loader{cfg: cfg}
	l.diag.Store("")
	return l
}

// Start kicks off the background load. The process keeps accepting requests
// while the load runs; transcription requests fail fast until StateReady.
func (l *Loader) Start(ctx context.Context) {
	go func() {
		if err := l.load(ctx); err != nil {
			l.diag.Store(err.Error())
			atomic.StoreInt32(&l.state, int32(StateFailed))
			slog.Error("Model load failed", "model", l.cfg.ModelPath, "error", err)
			return
		}
		atomic.StoreInt32(&l.state, int32(StateReady))
		slog.Info("Model ready", "model", l.cfg.ModelPath, "bin", l.cfg.BinPath)
	}()
}

// State returns the current readiness state and, when failed, a diagnostic.
func (l *Loader) State() (State, string) {
	return State(atomic.LoadInt32(&l.state)), l.diag.Load().(string)
}

// Engine returns the loaded engine. Valid only once State is StateReady.
func (l *Loader) Engine() Engine {
	if e, ok := l.engine.Load().(Engine); ok {
		return e
	}
	return nil
}

func (l *Loader) load(ctx context.Context) error {
	if err := l.ensureModelArtifact(ctx); err != nil {
		return err
	}

	if err := resolveBinary(l.cfg.BinPath); err != nil {
		return err
	}

	// Engine must be visible before the READY transition is published.
	l.engine.Store(Engine(NewCLIEngine(l.cfg.BinPath, l.cfg.ModelPath)))
	return nil
}

func (l *Loader) ensureModelArtifact(ctx context.Context) error {
	if _, err := os.Stat(l.cfg.ModelPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("model artifact not readable: %w", err)
	}

	if l.cfg.ModelURL == "" {
		return fmt.Errorf("model file not found and no download URL provided: %s", l.cfg.ModelPath)
	}

	slog.Info("Downloading model", "url", l.cfg.ModelURL, "path", l.cfg.ModelPath)

	if err := os.MkdirAll(filepath.Dir(l.cfg.ModelPath), 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	if err := downloadFile(ctx, l.cfg.ModelURL, l.cfg.ModelPath); err != nil {
		return fmt.Errorf("failed to download model: %w", err)
	}

	slog.Info("Model downloaded", "path", l.cfg.ModelPath)
	return nil
}

func resolveBinary(bin string) error {
	if strings.ContainsRune(bin, os.PathSeparator) {
		if _, err := os.Stat(bin); err != nil {
			return fmt.Errorf("whisper binary not found: %w", err)
		}
		return nil
	}
	if _, err := exec.LookPath(bin); err != nil {
		return fmt.Errorf("whisper binary not found in PATH: %w", err)
	}
	return nil
}

func downloadFile(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}
