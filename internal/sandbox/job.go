package sandbox

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/aiarena/engine/internal/codec"
)

// RunningJob is one launched agent process inside a Box. Its stdin/stdout
// are framed through codec.Writer/codec.Reader rather than exposed raw, so
// callers never need to worry about partial writes corrupting a frame.
type RunningJob struct {
	box    *Box
	cmd    *exec.Cmd
	logger *slog.Logger

	mu        sync.Mutex
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	writer    *codec.Writer
	reader    *codec.Reader
	stderrBuf *bytes.Buffer

	killed bool
	err    error

	preExit  []func()
	postExit []func()

	finalizer *struct{}
}

func (j *RunningJob) armFinalizer() {
	j.writer = codec.NewWriter(j.stdin)
	j.reader = codec.NewReader(j.stdout)

	marker := new(struct{})
	j.finalizer = marker
	runtime.SetFinalizer(marker, func(*struct{}) {
		j.mu.Lock()
		dead := j.killed
		j.mu.Unlock()
		if !dead {
			j.logger.Warn("running job garbage collected without Close; killing synchronously")
			_ = j.Close()
		}
	})
}

// Writer returns the framed stdin writer for this job. The job's mutex
// guards only this lookup; writes through the returned Writer are not
// serialized.
func (j *RunningJob) Writer() *codec.Writer {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.writer
}

// Reader returns the framed stdout reader for this job.
func (j *RunningJob) Reader() *codec.Reader {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.reader
}

// AddPreExit registers a hook run, in LIFO order, immediately before the
// job's process is signalled to stop.
func (j *RunningJob) AddPreExit(fn func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.preExit = append(j.preExit, fn)
}

// AddPostExit registers a hook run, in FIFO order, by Wait after the job's
// process has exited. Kill and Close do not run post-exit hooks.
func (j *RunningJob) AddPostExit(fn func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.postExit = append(j.postExit, fn)
}

// Stderr returns the captured (possibly truncated) stderr output so far.
func (j *RunningJob) Stderr() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stderrBuf.String()
}

// SetError records the first failure observed for this job, if any. Later
// calls are no-ops once an error is already set.
func (j *RunningJob) SetError(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err == nil {
		j.err = err
	}
}

// Err returns the first error recorded for this job, if any.
func (j *RunningJob) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Wait blocks until the job's process exits, running post-exit hooks
// afterward, then returns the process's exit error (nil on a clean exit).
func (j *RunningJob) Wait() error {
	err := j.cmd.Wait()

	j.mu.Lock()
	hooks := append([]func(){}, j.postExit...)
	j.mu.Unlock()
	for _, h := range hooks {
		h()
	}
	return err
}

// Kill runs the pre-exit hooks and terminates the job's process tree.
// Idempotent: every call after the first is a no-op. A first call after
// the process has already exited still runs the hooks and returns the
// error from signalling the finished process.
func (j *RunningJob) Kill() error {
	j.mu.Lock()
	if j.killed {
		j.mu.Unlock()
		return nil
	}
	j.killed = true
	hooks := append([]func(){}, j.preExit...)
	for i, j2 := 0, len(hooks)-1; i < j2; i, j2 = i+1, j2-1 {
		hooks[i], hooks[j2] = hooks[j2], hooks[i]
	}
	j.mu.Unlock()

	for _, h := range hooks {
		h()
	}

	if j.cmd.Process == nil {
		return nil
	}

	killChildren(j.cmd.Process.Pid)
	return j.cmd.Process.Kill()
}

// Close kills the job (if still running) and releases its pipes.
func (j *RunningJob) Close() error {
	err := j.Kill()
	j.mu.Lock()
	defer j.mu.Unlock()
	_ = j.stdin.Close()
	runtime.SetFinalizer(j.finalizer, nil)
	return err
}

func killChildren(pid int) {
	out, err := exec.Command("pgrep", "-P", strconv.Itoa(pid)).Output()
	if err != nil {
		return
	}
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		childPid, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		killChildren(childPid)
		if p, err := exec.Command("kill", "-9", strconv.Itoa(childPid)).Output(); err != nil {
			_ = p
		}
	}
}

// Box returns the sandbox box this job is running inside.
func (j *RunningJob) Box() *Box { return j.box }

var errJobKilled = fmt.Errorf("sandbox: job was killed")

// ErrJobKilled returns the sentinel error for I/O on a job that has been
// killed. No I/O path in this package returns it; reads and writes on a
// killed job fail with the underlying pipe error instead.
func ErrJobKilled() error { return errJobKilled }
