package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestShutdown_ReverseRegistrationOrder(t *testing.T) {
	sm := NewManager(zap.NewNop(), time.Second)

	var order []string
	for _, name := range []string{"pool", "broker", "engine", "http"} {
		n := name
		sm.Register(n, func(ctx context.Context) error {
			order = append(order, n)
			return nil
		})
	}

	sm.Shutdown()

	want := []string{"http", "engine", "broker", "pool"}
	if len(order) != len(want) {
		t.Fatalf("shut down %d components, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestShutdown_FailureDoesNotStopRemainingComponents(t *testing.T) {
	sm := NewManager(zap.NewNop(), time.Second)

	poolClosed := false
	sm.Register("pool", func(ctx context.Context) error {
		poolClosed = true
		return nil
	})
	sm.Register("broker", func(ctx context.Context) error {
		return errors.New("channel already closed")
	})

	sm.Shutdown()

	if !poolClosed {
		t.Error("pool should still close after an earlier component fails")
	}
}

func TestShutdown_TimeoutCancelsContextForRemainder(t *testing.T) {
	sm := NewManager(zap.NewNop(), 20*time.Millisecond)

	var poolCtxErr error
	sm.Register("pool", func(ctx context.Context) error {
		poolCtxErr = ctx.Err()
		return nil
	})
	sm.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	sm.Shutdown()

	if !errors.Is(poolCtxErr, context.DeadlineExceeded) {
		t.Errorf("pool ctx error = %v, want deadline exceeded", poolCtxErr)
	}
}

func TestRegisterNoErr(t *testing.T) {
	sm := NewManager(zap.NewNop(), time.Second)

	closed := false
	sm.RegisterNoErr("broker", func() { closed = true })

	sm.Shutdown()

	if !closed {
		t.Error("RegisterNoErr function was not called")
	}
}
