package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLaunchOptionsDefaults(t *testing.T) {
	opts := LaunchOptions{}.WithDefaults()

	assert.Equal(t, int64(4*1024*1024), opts.MemoryLimitKB)
	assert.Equal(t, 1, opts.MaxProcesses.Fixed)
	assert.False(t, opts.MaxProcesses.Unlimited)
	assert.Greater(t, opts.WallTimeLimit, opts.TimeLimit)
}

func TestDirMappingArg(t *testing.T) {
	d := NamedDir("/agent", "/tmp/agent-123", DirReadWrite, DirNoExec)
	assert.Equal(t, "--dir=/agent=/tmp/agent-123:rw:noexec", d.arg())

	full := FullDir("/box")
	assert.Equal(t, "--dir=/box", full.arg())
}

func TestEnvRuleArg(t *testing.T) {
	assert.Equal(t, "--env=PATH", InheritEnv("PATH").arg())
	assert.Equal(t, "--env=FOO=bar", SetEnv("FOO", "bar").arg())
	assert.Equal(t, "--full-env", InheritAllEnv().arg())
}
