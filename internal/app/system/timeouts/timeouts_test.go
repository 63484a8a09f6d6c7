package timeouts

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestConfigure_IgnoresZero(t *testing.T) {
	t.Cleanup(Reset)

	Configure(Config{Short: 7 * time.Second})

	cur := Current()
	if cur.Short != 7*time.Second {
		t.Errorf("Short = %v, want 7s", cur.Short)
	}
	if cur.Ping != DefaultPing || cur.Medium != DefaultMedium || cur.Long != DefaultLong {
		t.Errorf("unset values changed: %+v", cur)
	}
}

func TestReset(t *testing.T) {
	Configure(Config{Ping: time.Second, Long: time.Minute})
	Reset()

	if Ping() != DefaultPing {
		t.Errorf("Ping = %v, want %v", Ping(), DefaultPing)
	}
	if Long() != DefaultLong {
		t.Errorf("Long = %v, want %v", Long(), DefaultLong)
	}
}

func TestWithTimeout_LogsOnDeadline(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	log := zap.New(core)

	ctx, cancel := WithTimeout(context.Background(), time.Millisecond, log, "slow op")
	<-ctx.Done()
	cancel()

	if logs.Len() != 1 {
		t.Fatalf("got %d log entries, want 1", logs.Len())
	}
	entry := logs.All()[0]
	if entry.ContextMap()["operation"] != "slow op" {
		t.Errorf("operation field = %v", entry.ContextMap()["operation"])
	}
}

func TestWithTimeout_QuietOnCancel(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	log := zap.New(core)

	_, cancel := WithTimeout(context.Background(), time.Minute, log, "fast op")
	cancel()

	if logs.Len() != 0 {
		t.Errorf("got %d log entries, want 0", logs.Len())
	}
}
