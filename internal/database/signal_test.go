package database

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"
)

func TestSignalContextNotCancelledWithoutSignal(t *testing.T) {
	ctx, stop := SignalContext(context.Background(), nil)
	defer stop()

	select {
	case <-ctx.Done():
		t.Error("Context should not be cancelled immediately")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSignalContextStop(t *testing.T) {
	ctx, stop := SignalContext(context.Background(), nil)
	stop()

	select {
	case <-ctx.Done():
	case <-time.After(100 * time.Millisecond):
		t.Error("stop should cancel the context")
	}
}

func TestSignalContextParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := SignalContext(parent, nil)
	defer stop()

	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(100 * time.Millisecond):
		t.Error("parent cancellation should propagate")
	}
}

func TestSignalContextCallback(t *testing.T) {
	if os.Getenv("CI") == "true" {
		t.Skip("Skipping signal test in CI environment")
	}

	received := make(chan os.Signal, 1)
	ctx, stop := SignalContext(context.Background(), func(sig os.Signal) {
		received <- sig
	})
	defer stop()

	time.Sleep(10 * time.Millisecond)
	_ = syscall.Kill(syscall.Getpid(), syscall.SIGTERM)

	select {
	case sig := <-received:
		if sig != syscall.SIGTERM {
			t.Errorf("expected SIGTERM, got %v", sig)
		}
	case <-time.After(time.Second):
		t.Fatal("callback was not invoked")
	}

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Error("Context was not cancelled after receiving signal")
	}
}
