package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Output: &buf, JSON: true})
	require.NotNil(t, logger)

	t.Run("Levels", func(t *testing.T) {
		for _, tc := range []struct {
			name string
			log  func(string, ...any)
		}{
			{"debug msg", logger.Debug},
			{"info msg", logger.Info},
			{"warn msg", logger.Warn},
			{"error msg", logger.Error},
		} {
			buf.Reset()
			tc.log(tc.name)
			assert.Contains(t, buf.String(), tc.name)
		}
	})

	t.Run("DynamicLevel", func(t *testing.T) {
		logger.SetLevel(LevelError)
		defer logger.SetLevel(LevelDebug)
		assert.Equal(t, LevelError, logger.GetLevel())

		buf.Reset()
		logger.Info("should not appear")
		assert.Zero(t, buf.Len())
	})

	t.Run("WithComponent", func(t *testing.T) {
		buf.Reset()
		logger.WithComponent("rtconf").Info("msg")
		assert.Contains(t, buf.String(), `"component":"rtconf"`)
	})

	t.Run("WithFields", func(t *testing.T) {
		buf.Reset()
		logger.WithFields(map[string]any{"instance": "abc"}).Info("msg")
		assert.Contains(t, buf.String(), `"instance":"abc"`)
	})

	t.Run("ChildSharesLevel", func(t *testing.T) {
		child := logger.WithComponent("network")
		logger.SetLevel(LevelWarn)
		defer logger.SetLevel(LevelDebug)

		buf.Reset()
		child.Info("hidden")
		assert.Zero(t, buf.Len())
	})
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"":        LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		" error ": LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestDefaultLogger(t *testing.T) {
	require.NotNil(t, Default())

	prev := Default()
	defer SetDefault(prev)

	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Output = &buf
	SetDefault(New(cfg))

	Debug("debug")
	Info("info")
	Warn("warn")
	Error("error")
	Errorf("error %s", "formatted")
	WithComponent("comp").Info("comp msg")

	out := buf.String()
	assert.NotContains(t, out, "] debug", "debug is below the default level")
	assert.Contains(t, out, "error formatted")
	assert.Contains(t, out, "comp: comp msg")
}

func TestConsoleHandler(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelDebug, Output: &buf})
	GetRecentLogs().Clear()

	l.WithComponent("RTConf").Info("route added", "route", "10.0.0.0/24 dev 2 table 254")

	line := buf.String()
	assert.Contains(t, line, "rtmirror[")
	assert.Contains(t, line, "[info] rtconf: route added")
	assert.Contains(t, line, `route="10.0.0.0/24 dev 2 table 254"`)

	recent := GetRecentLogs().GetBySource("rtconf", 0)
	require.Len(t, recent, 1)
	assert.Equal(t, "info", recent[0].Level)
	assert.Equal(t, "route added", recent[0].Message)
	assert.Equal(t, "10.0.0.0/24 dev 2 table 254", recent[0].Extra["route"])
}

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer(5)

	t.Run("AddAndGet", func(t *testing.T) {
		rb.Clear()
		rb.Add(AppLogEntry{Message: "msg1", Source: "src1"})

		assert.Equal(t, 1, rb.Count())
		all := rb.GetLast(0)
		require.Len(t, all, 1)
		assert.Equal(t, "msg1", all[0].Message)
	})

	t.Run("Overflow", func(t *testing.T) {
		rb.Clear()
		for i := 0; i < 7; i++ {
			rb.Add(AppLogEntry{Message: string(rune('a' + i))})
		}

		assert.Equal(t, 5, rb.Count())
		all := rb.GetLast(0)
		assert.Equal(t, "c", all[0].Message)
		assert.Equal(t, "g", all[4].Message)
	})

	t.Run("GetLast", func(t *testing.T) {
		rb.Clear()
		rb.Add(AppLogEntry{Message: "1"})
		rb.Add(AppLogEntry{Message: "2"})
		rb.Add(AppLogEntry{Message: "3"})

		last2 := rb.GetLast(2)
		require.Len(t, last2, 2)
		assert.Equal(t, "2", last2[0].Message)
		assert.Equal(t, "3", last2[1].Message)

		assert.Len(t, rb.GetLast(10), 3)
	})

	t.Run("GetBySource", func(t *testing.T) {
		rb.Clear()
		rb.Add(AppLogEntry{Source: "A", Message: "1"})
		rb.Add(AppLogEntry{Source: "B", Message: "2"})
		rb.Add(AppLogEntry{Source: "A", Message: "3"})

		as := rb.GetBySource("A", 0)
		require.Len(t, as, 2)
		assert.Equal(t, "1", as[0].Message)
		assert.Equal(t, "3", as[1].Message)

		assert.Len(t, rb.GetBySource("A", 1), 1)
	})
}

func TestJSONLogParsing(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf, JSON: true})

	l.Info("json test", "key", "value")

	var data map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	assert.Equal(t, "json test", data["msg"])
	assert.Equal(t, "value", data["key"])
	assert.Equal(t, "INFO", data["level"])
}
