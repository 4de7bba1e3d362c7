package debug

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, lvl int) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core), lvl)
	t.Cleanup(func() { SetLogger(zap.NewNop(), LevelOff) })
	return logs
}

func TestLevelGating(t *testing.T) {
	cases := []struct {
		level int
		want  int
	}{
		{LevelOff, 0},
		{LevelInfo, 1},
		{LevelLive, 2},
		{LevelVerbose, 3},
		{LevelTrace, 4},
	}
	for _, tc := range cases {
		logs := observe(t, tc.level)
		Info("info")
		Live("live")
		Verbose("verbose")
		Trace("trace")
		if logs.Len() != tc.want {
			t.Errorf("level %d: %d entries, want %d", tc.level, logs.Len(), tc.want)
		}
	}
}

func TestShotFields(t *testing.T) {
	logs := observe(t, LevelLive)
	Shot(2, 3, "pimaton_1700000000_02.jpg")

	entries := logs.FilterMessage("picture taken").All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["index"] != int64(2) || fields["total"] != int64(3) {
		t.Errorf("fields = %v, want index=2 total=3", fields)
	}
	if fields["file"] != "pimaton_1700000000_02.jpg" {
		t.Errorf("file = %v", fields["file"])
	}
}

func TestGPIOOnlyAtTrace(t *testing.T) {
	logs := observe(t, LevelVerbose)
	GPIO("WritePin", 17, true)
	if logs.Len() != 0 {
		t.Errorf("GPIO logged at verbose level: %d entries", logs.Len())
	}

	logs = observe(t, LevelTrace)
	GPIO("WritePin", 17, true)
	if logs.FilterField(zap.Int("pin", 17)).Len() != 1 {
		t.Error("GPIO should log pin field at trace level")
	}
}

func TestErrorIncludesCause(t *testing.T) {
	logs := observe(t, LevelInfo)
	Error(errors.New("camera unplugged"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Level != zapcore.ErrorLevel {
		t.Errorf("level = %v, want error", entries[0].Level)
	}
	if got := entries[0].ContextMap()["error"]; got != "camera unplugged" {
		t.Errorf("error field = %v", got)
	}
}

func TestSetOutputWritesConsole(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelInfo)
	SetOutput(&buf)
	t.Cleanup(func() { SetLogger(zap.NewNop(), LevelOff) })

	Info("session %s done", "1700000000")
	Sync()

	if !strings.Contains(buf.String(), "session 1700000000 done") {
		t.Errorf("output %q missing message", buf.String())
	}
	if !strings.Contains(buf.String(), "INFO") {
		t.Errorf("output %q missing level", buf.String())
	}
}

func TestInitOffIsSilent(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelOff)
	SetOutput(&buf)
	Info("hidden")
	Error(errors.New("hidden"))
	if buf.Len() != 0 {
		t.Errorf("expected no output at level 0, got %q", buf.String())
	}
	if IsEnabled(LevelInfo) {
		t.Error("IsEnabled(LevelInfo) should be false at level 0")
	}
}
