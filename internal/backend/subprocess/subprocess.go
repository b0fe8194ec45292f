// Package subprocess runs an external translation pipeline as a child
// process. The child receives a settings document and one input path and
// reports raw engine events as newline-delimited JSON on stdout.
package subprocess

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seantiz/pdf2zh-engine/internal/backend"
)

// SettingsFile is the name of the settings document written into the job's
// working directory.
const SettingsFile = "settings.json"

const (
	// maxEventLine bounds a single NDJSON line; finish events can carry
	// sizeable result objects.
	maxEventLine = 16 << 20
	// stderrTail is how many trailing stderr lines are kept for error reports.
	stderrTail = 20
	// defaultStopGrace is how long the child may keep running once its
	// output is no longer wanted before it is killed.
	defaultStopGrace = 2 * time.Second
)

// Translator runs the configured command once per input document.
type Translator struct {
	command   []string
	env       []string
	logger    *slog.Logger
	stopGrace time.Duration
}

// Option configures a Translator.
type Option func(*Translator)

// WithEnv appends KEY=VALUE pairs to the child's environment.
func WithEnv(kv ...string) Option {
	return func(t *Translator) {
		t.env = append(t.env, kv...)
	}
}

// WithLogger sets the logger used for the child's stderr and for skipped
// stdout lines.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Translator) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates a translator that runs command (program followed by its fixed
// arguments). Each run appends "--settings <file> <input>".
func New(command []string, opts ...Option) (*Translator, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, errors.New("engine command is empty")
	}
	t := &Translator{
		command:   append([]string(nil), command...),
		logger:    slog.Default(),
		stopGrace: defaultStopGrace,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Info implements backend.Translator.
func (t *Translator) Info() backend.Info {
	return backend.Info{
		Engine:      "subprocess",
		Description: filepath.Base(t.command[0]),
	}
}

// Translate implements backend.Translator. It writes the settings document,
// starts the child and forwards every decoded stdout line to emit. Once emit
// returns false the remaining stdout is discarded, the child is given a short
// grace period to exit and is then killed; its exit status is ignored.
func (t *Translator) Translate(ctx context.Context, settings backend.Settings, input string, emit backend.EmitFunc) error {
	settingsPath, err := writeSettings(settings)
	if err != nil {
		return err
	}

	args := append(t.command[1:len(t.command):len(t.command)], "--settings", settingsPath, input)
	cmd := exec.CommandContext(ctx, t.command[0], args...)
	cmd.Dir = settings.Translation.Output
	cmd.Env = append(os.Environ(), t.env...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start engine %q: %w", t.command[0], err)
	}

	log := t.logger.With("input", input, "pid", cmd.Process.Pid)
	log.Debug("engine process started")

	var (
		stopped bool
		kill    *time.Timer
		tail    = newTail(stderrTail)
	)
	defer func() {
		if kill != nil {
			kill.Stop()
		}
	}()

	var g errgroup.Group
	g.Go(func() error {
		return t.readEvents(stdoutPipe, log, func(raw any) {
			if stopped {
				return
			}
			if !emit(raw) {
				stopped = true
				kill = time.AfterFunc(t.stopGrace, func() {
					log.Debug("engine still running after finish, killing")
					_ = cmd.Process.Kill()
				})
			}
		})
	})
	g.Go(func() error {
		scanner := bufio.NewScanner(stderrPipe)
		scanner.Buffer(make([]byte, 64*1024), maxEventLine)
		for scanner.Scan() {
			line := scanner.Text()
			tail.add(line)
			log.Debug("engine stderr", "line", line)
		}
		if err := scanner.Err(); err != nil {
			_, _ = io.Copy(io.Discard, stderrPipe)
			return err
		}
		return nil
	})

	readErr := g.Wait()
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if stopped {
		return nil
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return fmt.Errorf("engine exited with code %d: %s", exitErr.ExitCode(), tail.String())
		}
		return fmt.Errorf("wait for engine: %w", waitErr)
	}
	if readErr != nil {
		return fmt.Errorf("read engine output: %w", readErr)
	}
	return nil
}

// readEvents decodes each stdout line as JSON and hands it to fn. Lines that
// are not JSON are logged and skipped.
func (t *Translator) readEvents(r io.Reader, log *slog.Logger, fn func(raw any)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxEventLine)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var raw any
		if err := dec.Decode(&raw); err != nil {
			log.Warn("skipping non-JSON engine output", "line", string(line))
			continue
		}
		fn(raw)
	}
	if err := scanner.Err(); err != nil {
		// Keep the pipe drained so the child never blocks on a full buffer.
		_, _ = io.Copy(io.Discard, r)
		return err
	}
	return nil
}

func writeSettings(settings backend.Settings) (string, error) {
	dir := settings.Translation.Output
	if dir == "" {
		return "", errors.New("settings have no output directory")
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode settings: %w", err)
	}
	path := filepath.Join(dir, SettingsFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write settings: %w", err)
	}
	return path, nil
}

// tail keeps the last n lines written to it.
type tail struct {
	mu    sync.Mutex
	n     int
	lines []string
}

func newTail(n int) *tail {
	return &tail{n: n}
}

func (t *tail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.lines) == 0 {
		return "no stderr output"
	}
	return strings.Join(t.lines, "\n")
}
