package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"visiond/internal/common/fsutil"
)

// Process is a launched worker process.
type Process interface {
	PID() int
	// BaseURL is the worker's HTTP root, e.g. http://127.0.0.1:8001.
	BaseURL() string
	// Exited is closed once the process has exited and been reaped.
	Exited() <-chan struct{}
	// ExitErr is the wait result; valid after Exited is closed.
	ExitErr() error
	// Terminate asks the worker to exit (SIGTERM to its process group).
	Terminate() error
	// Kill force-stops the worker (SIGKILL to its process group).
	Kill() error
	// OutputTail returns the last bytes the worker wrote to stdout/stderr.
	OutputTail() string
}

// Launcher starts worker processes.
type Launcher interface {
	Launch(ctx context.Context, spec WorkerSpec) (Process, error)
}

const outputTailBytes = 4096

// ExecLauncher runs each worker as a child process in its own process group.
type ExecLauncher struct {
	// Host the workers bind to and are reached at.
	Host string
	// Python interpreter for the default command.
	Python string
	// LogDir receives <alias>.log per worker when set.
	LogDir string
	Logger *zerolog.Logger
}

// NewExecLauncher constructs an ExecLauncher with defaults for empty fields.
func NewExecLauncher(host, python, logDir string, logger *zerolog.Logger) *ExecLauncher {
	host = strings.TrimSpace(host)
	if host == "" {
		host = "127.0.0.1"
	}
	if python == "" {
		python = "python3"
	}
	return &ExecLauncher{Host: host, Python: python, LogDir: logDir, Logger: logger}
}

// Command returns the argv used to start spec on port.
func (l *ExecLauncher) Command(spec WorkerSpec, port int) []string {
	var argv []string
	if len(spec.Command) > 0 {
		argv = append(argv, spec.Command...)
	} else {
		argv = []string{l.Python, "-m", "workers." + string(spec.Kind) + "_worker"}
	}
	argv = append(argv, "--alias", spec.Alias, "--port", strconv.Itoa(port))
	if spec.ModelPath != "" {
		argv = append(argv, "--model_path", spec.ModelPath)
	}
	return argv
}

// Launch starts the worker. It does not wait for health.
func (l *ExecLauncher) Launch(ctx context.Context, spec WorkerSpec) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	port := spec.Port
	if port == 0 {
		p, err := pickFreePort(l.Host)
		if err != nil {
			return nil, fmt.Errorf("pick port for %s: %w", spec.Alias, err)
		}
		port = p
	}
	argv := l.Command(spec, port)

	// Not CommandContext: the process outlives the request that spawned it
	// and is stopped through Terminate/Kill.
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = spec.WorkDir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	tail := &tailBuffer{max: outputTailBytes}
	var out io.Writer = tail
	var logFile *os.File
	if l.LogDir != "" {
		if err := fsutil.EnsureDir(l.LogDir); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(filepath.Join(l.LogDir, spec.Alias+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open worker log: %w", err)
		}
		fmt.Fprintf(f, "=== %s starting %s: %s\n", time.Now().Format(time.RFC3339), spec.Alias, strings.Join(argv, " "))
		logFile = f
		out = io.MultiWriter(tail, f)
	}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, fmt.Errorf("start worker %s: %w", spec.Alias, err)
	}
	p := &execProcess{
		cmd:     cmd,
		baseURL: fmt.Sprintf("http://%s", net.JoinHostPort(l.Host, strconv.Itoa(port))),
		exited:  make(chan struct{}),
		tail:    tail,
		logFile: logFile,
	}
	go p.wait()
	if l.Logger != nil {
		l.Logger.Debug().Str("alias", spec.Alias).Int("pid", cmd.Process.Pid).Int("port", port).Strs("argv", argv).Msg("launcher event=start")
	}
	return p, nil
}

type execProcess struct {
	cmd     *exec.Cmd
	baseURL string
	exited  chan struct{}
	exitErr error
	tail    *tailBuffer
	logFile *os.File
}

func (p *execProcess) wait() {
	p.exitErr = p.cmd.Wait()
	if p.logFile != nil {
		_ = p.logFile.Close()
	}
	close(p.exited)
}

func (p *execProcess) PID() int                { return p.cmd.Process.Pid }
func (p *execProcess) BaseURL() string         { return p.baseURL }
func (p *execProcess) Exited() <-chan struct{} { return p.exited }
func (p *execProcess) ExitErr() error          { return p.exitErr }
func (p *execProcess) OutputTail() string      { return p.tail.String() }
func (p *execProcess) Terminate() error        { return signalGroup(p.PID(), syscall.SIGTERM) }
func (p *execProcess) Kill() error             { return signalGroup(p.PID(), syscall.SIGKILL) }

// signalGroup signals the process group led by pid. A group that is already
// gone is not an error.
func signalGroup(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return nil
	}
	if err := syscall.Kill(-pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}

// stopProcess sends SIGTERM, waits up to grace, then SIGKILL, and returns
// once the process has been reaped.
func stopProcess(p Process, grace time.Duration) (killed bool) {
	select {
	case <-p.Exited():
		return false
	default:
	}
	_ = p.Terminate()
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-p.Exited():
		return false
	case <-t.C:
	}
	_ = p.Kill()
	<-p.Exited()
	return true
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	_, port, err := net.SplitHostPort(l.Addr().String())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(port)
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	t.mu.Unlock()
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
