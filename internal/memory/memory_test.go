package memory

import (
	"context"
	"runtime"
	"runtime/debug"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MemoryLimitBytes != 0 {
		t.Errorf("MemoryLimitBytes = %d, want 0", cfg.MemoryLimitBytes)
	}
	if cfg.HighWaterMark >= cfg.CriticalWaterMark {
		t.Errorf("HighWaterMark %v should be below CriticalWaterMark %v", cfg.HighWaterMark, cfg.CriticalWaterMark)
	}
	if cfg.CheckInterval != 5*time.Second {
		t.Errorf("CheckInterval = %v, want 5s", cfg.CheckInterval)
	}
}

func newTestMonitor(limit int64, alloc *uint64) *Monitor {
	m := NewMonitor(Config{
		MemoryLimitBytes:  limit,
		HighWaterMark:     0.5,
		CriticalWaterMark: 0.8,
		CheckInterval:     time.Hour,
	})
	m.readStats = func(s *runtime.MemStats) { s.Alloc = *alloc }
	return m
}

func TestMonitorPausesAndResumes(t *testing.T) {
	alloc := uint64(90)
	m := newTestMonitor(100, &alloc)

	m.checkMemory()
	if !m.IsPaused() {
		t.Fatal("expected monitor to pause at 90% usage")
	}

	released := make(chan bool, 1)
	go func() { released <- m.WaitIfPaused(context.Background()) }()

	select {
	case <-released:
		t.Fatal("WaitIfPaused returned while paused")
	case <-time.After(20 * time.Millisecond):
	}

	// Between the water marks nothing changes.
	alloc = 60
	m.checkMemory()
	if !m.IsPaused() {
		t.Fatal("monitor resumed above the high water mark")
	}

	alloc = 10
	m.checkMemory()
	select {
	case ok := <-released:
		if !ok {
			t.Error("WaitIfPaused returned false after recovery")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not return after recovery")
	}

	current, limit, usage := m.GetStats()
	if current != 10 || limit != 100 || usage != 0.1 {
		t.Errorf("GetStats() = %d, %d, %v", current, limit, usage)
	}
}

func TestWaitIfPausedHonorsContext(t *testing.T) {
	alloc := uint64(95)
	m := newTestMonitor(100, &alloc)
	m.checkMemory()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if m.WaitIfPaused(ctx) {
		t.Error("WaitIfPaused() = true, want false after context deadline")
	}
}

func TestWaitIfPausedReturnsFalseAfterStop(t *testing.T) {
	alloc := uint64(95)
	m := newTestMonitor(100, &alloc)
	m.checkMemory()
	m.Stop()
	m.Stop()

	if m.WaitIfPaused(context.Background()) {
		t.Error("WaitIfPaused() = true, want false after Stop")
	}
}

func TestWaitIfPausedNotPaused(t *testing.T) {
	alloc := uint64(1)
	m := newTestMonitor(100, &alloc)
	if !m.WaitIfPaused(context.Background()) {
		t.Error("WaitIfPaused() = false while not paused")
	}
}

// Not parallel: changes the process-wide memory limit.
func TestPoolBudget(t *testing.T) {
	previous := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(previous) })

	debug.SetMemoryLimit(800 << 20)
	if got := PoolBudget(0.125); got != 100<<20 {
		t.Errorf("PoolBudget(0.125) = %d, want %d", got, 100<<20)
	}
	if got := PoolBudget(0); got != 100<<20 {
		t.Errorf("PoolBudget(0) = %d, want default fraction", got)
	}

	debug.SetMemoryLimit(1<<63 - 1)
	if got := PoolBudget(0.5); got != FallbackLimit/2 {
		t.Errorf("PoolBudget without limit = %d, want %d", got, FallbackLimit/2)
	}
}

func TestConfigureFromEnv(t *testing.T) {
	previous := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(previous) })

	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1000000000")
	t.Setenv("MEMORY_RATIO", "0.5")

	result := ConfigureFromEnv()
	if !result.Configured || result.Source != "MEMORY_LIMIT" {
		t.Fatalf("ConfigureFromEnv() = %+v", result)
	}
	if result.GoMemLimit != 500000000 {
		t.Errorf("GoMemLimit = %d, want 500000000", result.GoMemLimit)
	}

	t.Setenv("MEMORY_LIMIT", "lots")
	if result := ConfigureFromEnv(); result.Configured {
		t.Errorf("invalid MEMORY_LIMIT configured a limit: %+v", result)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{256 << 20, "256.0 MiB"},
		{2 << 30, "2.0 GiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
