// Package sandbox wraps an external isolate-shaped OS sandboxing CLI
// (github.com/ioi/isolate and compatible forks) to run one untrusted agent
// program per job, talking to it over framed binary pipes rather than a
// pseudo-terminal so the wire protocol's length-prefixed frames are never
// mangled by terminal line discipline.
package sandbox

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Box owns one isolate sandbox slot identified by a box ID. Box IDs are
// allocated by the resource pool (internal/pool), one per sandbox slot,
// and reused across jobs.
type Box struct {
	id       int
	path     string
	isolate  string
	logger   *slog.Logger
}

// NewBox creates a Box bound to boxID. It does not touch the filesystem
// until Initialize is called.
func NewBox(isolatePath string, boxID int, logger *slog.Logger) *Box {
	return &Box{id: boxID, isolate: isolatePath, logger: logger.With("box_id", boxID)}
}

// ID returns the sandbox's box ID.
func (b *Box) ID() int { return b.id }

// Initialize runs `isolate --init --box-id N` and records the sandbox root
// path it prints on its first line of output.
func (b *Box) Initialize() error {
	cmd := exec.Command(b.isolate, "--init", fmt.Sprintf("--box-id=%d", b.id))
	out, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("sandbox: init box %d: %w", b.id, err)
	}

	lines := strings.SplitN(string(out), "\n", 2)
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return fmt.Errorf("sandbox: init box %d: isolate printed no path", b.id)
	}
	b.path = strings.TrimSpace(lines[0])
	b.logger.Debug("sandbox initialized", "path", b.path)
	return nil
}

// Cleanup runs `isolate --cleanup --box-id N`, releasing the box's
// filesystem state. Safe to call even if Initialize failed partway.
func (b *Box) Cleanup() error {
	cmd := exec.Command(b.isolate, "--cleanup", fmt.Sprintf("--box-id=%d", b.id))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sandbox: cleanup box %d: %w", b.id, err)
	}
	return nil
}

// Path returns the sandbox root directory isolate allocated for this box.
func (b *Box) Path() string { return b.path }

// DirFlag is one of the directory-mapping option flags isolate accepts
// after a `--dir=inside=outside` mapping.
type DirFlag string

const (
	DirReadWrite  DirFlag = "rw"
	DirDev        DirFlag = "dev"
	DirNoExec     DirFlag = "noexec"
	DirMaybe      DirFlag = "maybe"
	DirFilesystem DirFlag = "fs"
	DirNoRecurse  DirFlag = "norec"
)

// DirMapping describes one `--dir=` binding into the sandbox.
type DirMapping struct {
	Inside  string
	Outside string
	Flags   []DirFlag
}

// NamedDir maps an inside path to a differently named outside path.
func NamedDir(inside, outside string, flags ...DirFlag) DirMapping {
	return DirMapping{Inside: inside, Outside: outside, Flags: flags}
}

// FullDir maps a path to itself both inside and outside the sandbox.
func FullDir(path string, flags ...DirFlag) DirMapping {
	return DirMapping{Inside: path, Outside: path, Flags: flags}
}

func (d DirMapping) arg() string {
	var b strings.Builder
	b.WriteString("--dir=")
	b.WriteString(d.Inside)
	if d.Outside != d.Inside {
		b.WriteString("=")
		b.WriteString(d.Outside)
	}
	if len(d.Flags) > 0 {
		flagStrs := make([]string, len(d.Flags))
		for i, f := range d.Flags {
			flagStrs[i] = string(f)
		}
		b.WriteString(":")
		b.WriteString(strings.Join(flagStrs, ":"))
	}
	return b.String()
}

// EnvRule describes how one environment variable is exposed to the job.
type EnvRule struct {
	kind  envKind
	name  string
	value string
}

type envKind int

const (
	envInherit envKind = iota
	envSetValue
	envInheritAll
)

// InheritEnv passes the named variable through from the runner's own environment.
func InheritEnv(name string) EnvRule { return EnvRule{kind: envInherit, name: name} }

// SetEnv sets name to an explicit value inside the sandbox.
func SetEnv(name, value string) EnvRule { return EnvRule{kind: envSetValue, name: name, value: value} }

// InheritAllEnv passes through the runner's entire environment (`--full-env`).
func InheritAllEnv() EnvRule { return EnvRule{kind: envInheritAll} }

func (e EnvRule) arg() string {
	switch e.kind {
	case envSetValue:
		return fmt.Sprintf("--env=%s=%s", e.name, e.value)
	case envInheritAll:
		return "--full-env"
	default:
		return fmt.Sprintf("--env=%s", e.name)
	}
}

// MaxProcesses controls isolate's --processes flag.
type MaxProcesses struct {
	Unlimited bool
	Fixed     int
}

// LaunchOptions configures one isolate invocation. Zero values fall back to
// the defaults below, matching the original sandbox's conservative
// single-agent-turn budget.
type LaunchOptions struct {
	MemoryLimitKB  int64
	TimeLimit      time.Duration
	WallTimeLimit  time.Duration
	ExtraTime      time.Duration
	MaxProcesses   MaxProcesses
	Dirs           []DirMapping
	Env            []EnvRule
	StderrMaxBytes int
}

// WithDefaults fills zero-valued fields with the original sandbox's defaults:
// 4GiB memory, 1s CPU time, extra time 0.5s, wall time 3x CPU time + extra + 5s.
func (o LaunchOptions) WithDefaults() LaunchOptions {
	if o.MemoryLimitKB == 0 {
		o.MemoryLimitKB = 4 * 1024 * 1024
	}
	if o.TimeLimit == 0 {
		o.TimeLimit = time.Second
	}
	if o.ExtraTime == 0 {
		o.ExtraTime = 500 * time.Millisecond
	}
	if o.WallTimeLimit == 0 {
		o.WallTimeLimit = 3*o.TimeLimit + o.ExtraTime + 5*time.Second
	}
	if o.MaxProcesses == (MaxProcesses{}) {
		o.MaxProcesses = MaxProcesses{Fixed: 1}
	}
	if o.StderrMaxBytes == 0 {
		o.StderrMaxBytes = 16 * 1024
	}
	return o
}

// Launch starts program (with args) inside the box per opts, wiring its
// stdin/stdout to framed pipes and its stderr to an in-memory capture
// buffer truncated to opts.StderrMaxBytes.
func (b *Box) Launch(program string, args []string, opts LaunchOptions) (*RunningJob, error) {
	opts = opts.WithDefaults()

	cliArgs := []string{fmt.Sprintf("--box-id=%d", b.id), "--meta=/tmp/isolate-meta"}

	for _, d := range opts.Dirs {
		cliArgs = append(cliArgs, d.arg())
	}
	for _, e := range opts.Env {
		cliArgs = append(cliArgs, e.arg())
	}

	cliArgs = append(cliArgs,
		fmt.Sprintf("--mem=%d", opts.MemoryLimitKB),
		fmt.Sprintf("--time=%.3f", opts.TimeLimit.Seconds()),
		fmt.Sprintf("--wall-time=%.3f", opts.WallTimeLimit.Seconds()),
		fmt.Sprintf("--extra-time=%.3f", opts.ExtraTime.Seconds()),
	)

	if !opts.MaxProcesses.Unlimited {
		if opts.MaxProcesses.Fixed != 1 {
			cliArgs = append(cliArgs, "--processes="+strconv.Itoa(opts.MaxProcesses.Fixed))
		}
	} else {
		cliArgs = append(cliArgs, "--processes")
	}

	cliArgs = append(cliArgs, "--run", "--", program)
	cliArgs = append(cliArgs, args...)

	cmd := exec.Command(b.isolate, cliArgs...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("sandbox: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("sandbox: stdout pipe: %w", err)
	}

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{buf: &stderrBuf, max: opts.StderrMaxBytes}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("sandbox: start %s: %w", program, err)
	}

	job := &RunningJob{
		box:       b,
		cmd:       cmd,
		stdin:     stdin,
		stdout:    bufio.NewReader(stdout),
		stderrBuf: &stderrBuf,
		logger:    b.logger.With("program", program),
	}

	job.armFinalizer()

	return job, nil
}

type limitedWriter struct {
	buf *bytes.Buffer
	max int
	mu  sync.Mutex
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() >= w.max {
		return len(p), nil
	}
	remaining := w.max - w.buf.Len()
	if len(p) > remaining {
		w.buf.Write(p[:remaining])
	} else {
		w.buf.Write(p)
	}
	return len(p), nil
}
