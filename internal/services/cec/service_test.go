package cec

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pihub/pihub/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockExecutor is a mock implementation of CommandExecutor for testing.
type mockExecutor struct {
	executeFunc func(ctx context.Context, stdin string, name string, args ...string) ([]byte, error)
}

func (m *mockExecutor) Execute(ctx context.Context, stdin string, name string, args ...string) ([]byte, error) {
	if m.executeFunc != nil {
		return m.executeFunc(ctx, stdin, name, args...)
	}
	return nil, nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func newTestService(executor CommandExecutor) *Impl {
	return NewWithExecutor(testLogger(), "0", time.Second, executor)
}

func TestStatus_On(t *testing.T) {
	executor := &mockExecutor{
		executeFunc: func(ctx context.Context, stdin string, name string, args ...string) ([]byte, error) {
			assert.Equal(t, "cec-client", name)
			assert.Equal(t, []string{"-s", "-d", "1"}, args)
			assert.Equal(t, "pow 0\n", stdin)
			return []byte("opening a connection to the CEC adapter...\npower status: on\n"), nil
		},
	}

	svc := newTestService(executor)
	state := svc.Status(context.Background())

	assert.Equal(t, models.PowerOn, state)
	assert.Equal(t, models.PowerOn, svc.CachedState())
}

func TestStatus_Standby(t *testing.T) {
	executor := &mockExecutor{
		executeFunc: func(ctx context.Context, stdin string, name string, args ...string) ([]byte, error) {
			return []byte("power status: standby\n"), nil
		},
	}

	svc := newTestService(executor)

	assert.Equal(t, models.PowerStandby, svc.Status(context.Background()))
	assert.Equal(t, models.PowerStandby, svc.CachedState())
}

func TestStatus_InTransition(t *testing.T) {
	executor := &mockExecutor{
		executeFunc: func(ctx context.Context, stdin string, name string, args ...string) ([]byte, error) {
			return []byte("power status: in transition from standby to on\n"), nil
		},
	}

	svc := newTestService(executor)

	assert.Equal(t, models.PowerOn, svc.Status(context.Background()))
}

func TestStatus_UnparseableOutput(t *testing.T) {
	executor := &mockExecutor{
		executeFunc: func(ctx context.Context, stdin string, name string, args ...string) ([]byte, error) {
			return []byte("no adapter found\n"), nil
		},
	}

	svc := newTestService(executor)

	assert.Equal(t, models.PowerUnknown, svc.Status(context.Background()))
	// Cache keeps its prior value.
	assert.Equal(t, models.PowerUnknown, svc.CachedState())
}

func TestStatus_InvocationFailure_KeepsCache(t *testing.T) {
	calls := 0
	executor := &mockExecutor{
		executeFunc: func(ctx context.Context, stdin string, name string, args ...string) ([]byte, error) {
			calls++
			if calls == 1 {
				return []byte("power status: on\n"), nil
			}
			return nil, errors.New("exec: \"cec-client\": executable file not found in $PATH")
		},
	}

	svc := newTestService(executor)

	assert.Equal(t, models.PowerOn, svc.Status(context.Background()))
	assert.Equal(t, models.PowerUnknown, svc.Status(context.Background()))
	assert.Equal(t, models.PowerOn, svc.CachedState())
}

func TestTurnOn_Success(t *testing.T) {
	executor := &mockExecutor{
		executeFunc: func(ctx context.Context, stdin string, name string, args ...string) ([]byte, error) {
			assert.Equal(t, "on 0\n", stdin)
			return []byte(""), nil
		},
	}

	svc := newTestService(executor)

	require.NoError(t, svc.TurnOn(context.Background()))
	assert.Equal(t, models.PowerOn, svc.CachedState())
}

func TestTurnOff_Success(t *testing.T) {
	executor := &mockExecutor{
		executeFunc: func(ctx context.Context, stdin string, name string, args ...string) ([]byte, error) {
			assert.Equal(t, "standby 0\n", stdin)
			return []byte(""), nil
		},
	}

	svc := newTestService(executor)

	require.NoError(t, svc.TurnOff(context.Background()))
	assert.Equal(t, models.PowerStandby, svc.CachedState())
}

func TestTurnOn_Failure_KeepsCache(t *testing.T) {
	calls := 0
	executor := &mockExecutor{
		executeFunc: func(ctx context.Context, stdin string, name string, args ...string) ([]byte, error) {
			calls++
			if calls == 1 {
				return []byte(""), nil // TurnOff succeeds
			}
			return nil, errors.New("exit status 1")
		},
	}

	svc := newTestService(executor)

	require.NoError(t, svc.TurnOff(context.Background()))
	err := svc.TurnOn(context.Background())

	require.Error(t, err)
	assert.Equal(t, models.PowerStandby, svc.CachedState())
}

func TestTurnOn_Timeout(t *testing.T) {
	executor := &mockExecutor{
		executeFunc: func(ctx context.Context, stdin string, name string, args ...string) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	svc := NewWithExecutor(testLogger(), "0", 20*time.Millisecond, executor)

	err := svc.TurnOn(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Equal(t, models.PowerUnknown, svc.CachedState())
}

func TestControl_DetachedFromCallerCancellation(t *testing.T) {
	executor := &mockExecutor{
		executeFunc: func(ctx context.Context, stdin string, name string, args ...string) ([]byte, error) {
			// Caller cancellation must not reach the subprocess context.
			assert.NoError(t, ctx.Err())
			return []byte(""), nil
		},
	}

	svc := newTestService(executor)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, svc.TurnOn(ctx))
	assert.Equal(t, models.PowerOn, svc.CachedState())
}

func TestInvocationsNeverOverlap(t *testing.T) {
	var inFlight int32
	var overlapped atomic.Bool

	executor := &mockExecutor{
		executeFunc: func(ctx context.Context, stdin string, name string, args ...string) ([]byte, error) {
			if atomic.AddInt32(&inFlight, 1) > 1 {
				overlapped.Store(true)
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return []byte("power status: on\n"), nil
		},
	}

	svc := newTestService(executor)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 3 {
			case 0:
				_ = svc.TurnOn(context.Background())
			case 1:
				_ = svc.TurnOff(context.Background())
			default:
				svc.Status(context.Background())
			}
		}(i)
	}
	wg.Wait()

	assert.False(t, overlapped.Load(), "cec-client invocations must be serialized")
}

func TestParsePowerStatus(t *testing.T) {
	tests := []struct {
		output string
		state  models.PowerState
		ok     bool
	}{
		{"power status: on", models.PowerOn, true},
		{"power status: standby", models.PowerStandby, true},
		{"POWER STATUS: ON", models.PowerOn, true},
		{"banner line\npower status: standby\ntrailer", models.PowerStandby, true},
		{"power status: in transition from standby to on", models.PowerOn, true},
		{"power status: unknown", models.PowerUnknown, false},
		{"garbage", models.PowerUnknown, false},
		{"", models.PowerUnknown, false},
	}

	for _, tt := range tests {
		state, ok := parsePowerStatus(tt.output)
		assert.Equal(t, tt.state, state, tt.output)
		assert.Equal(t, tt.ok, ok, tt.output)
	}
}
