package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("booking", &buf, LevelWarn)

	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	l.Warnf("warn %d", 3)
	l.Errorf("error %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, "[booking] [WARN] warn 3")
	assert.Contains(t, out, "[booking] [ERROR] error 4")
	assert.Contains(t, out, "["+ProcessID()+"]")
}

func TestLogger_WithNamesSubComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("cli", &buf, LevelDebug).With("browser")

	l.Infof("hello")

	assert.Contains(t, buf.String(), "[cli.browser] [INFO] hello")
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() { Nop().Errorf("dropped %s", "x") })
}
