package connection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Backoff = BackoffConfig{
		Initial:    10 * time.Millisecond,
		Max:        40 * time.Millisecond,
		Multiplier: 2.0,
	}
	return cfg
}

func waitForState(t *testing.T, m *Manager, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("State() = %v, want %v", m.State(), want)
}

func TestBackoff(t *testing.T) {
	t.Run("DefaultSequence", func(t *testing.T) {
		b := NewBackoff()

		expected := []time.Duration{
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			16 * time.Second,
			32 * time.Second,
			60 * time.Second,
			60 * time.Second,
		}

		for i, exp := range expected {
			base := b.Current()
			_ = b.Next()
			if base != exp {
				t.Errorf("Attempt %d: base = %v, want %v", i, base, exp)
			}
		}
		if b.Attempts() != len(expected) {
			t.Errorf("Attempts() = %d, want %d", b.Attempts(), len(expected))
		}
	})

	t.Run("JitterBounds", func(t *testing.T) {
		b := NewBackoff()
		for i := 0; i < 20; i++ {
			b.Reset()
			d := b.Next()
			if d < time.Second || d > 1250*time.Millisecond {
				t.Fatalf("delay %v outside [1s, 1.25s]", d)
			}
		}
	})

	t.Run("Reset", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2})
		b.Next()
		b.Next()
		b.Reset()
		if b.Current() != 100*time.Millisecond || b.Attempts() != 0 {
			t.Errorf("after Reset: current=%v attempts=%d", b.Current(), b.Attempts())
		}
	})

	t.Run("InvalidFieldsFallBack", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{Multiplier: 0.5, Jitter: -1})
		if b.Current() != InitialBackoff {
			t.Errorf("Current() = %v, want %v", b.Current(), InitialBackoff)
		}
		if d := b.Next(); d != InitialBackoff {
			t.Errorf("Next() = %v, want %v without jitter", d, InitialBackoff)
		}
	})
}

func TestBackoffConfigValidate(t *testing.T) {
	if err := DefaultBackoffConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	bad := []BackoffConfig{
		{Initial: 0, Max: time.Second, Multiplier: 2},
		{Initial: time.Second, Max: time.Millisecond, Multiplier: 2},
		{Initial: time.Second, Max: time.Second, Multiplier: 0.5},
		{Initial: time.Second, Max: time.Second, Multiplier: 2, Jitter: 2},
	}
	for i, cfg := range bad {
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidBackoff) {
			t.Errorf("case %d: Validate() = %v, want ErrInvalidBackoff", i, err)
		}
	}
}

func TestManager(t *testing.T) {
	t.Run("InitialState", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return nil })
		defer m.Close()

		if m.State() != StateDisconnected {
			t.Errorf("Initial state = %v, want StateDisconnected", m.State())
		}
		if m.IsConnected() {
			t.Error("IsConnected() = true, want false")
		}
	})

	t.Run("SuccessfulConnect", func(t *testing.T) {
		var calls atomic.Int32
		m := NewManager(func(ctx context.Context) error {
			calls.Add(1)
			return nil
		})
		defer m.Close()

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		if calls.Load() != 1 {
			t.Errorf("connect called %d times", calls.Load())
		}
		if !m.IsConnected() {
			t.Errorf("State() = %v, want StateConnected", m.State())
		}
		if err := m.Connect(context.Background()); !errors.Is(err, ErrAlreadyConnected) {
			t.Errorf("second Connect() error = %v, want ErrAlreadyConnected", err)
		}
	})

	t.Run("FailedConnectDoesNotRetry", func(t *testing.T) {
		expectedErr := errors.New("refused")
		var calls atomic.Int32
		m := NewManagerWithConfig(func(ctx context.Context) error {
			calls.Add(1)
			return expectedErr
		}, fastConfig())
		defer m.Close()

		if err := m.Connect(context.Background()); !errors.Is(err, expectedErr) {
			t.Errorf("Connect() error = %v, want %v", err, expectedErr)
		}
		time.Sleep(50 * time.Millisecond)
		if calls.Load() != 1 {
			t.Errorf("connect called %d times, want 1", calls.Load())
		}
		if m.State() != StateDisconnected {
			t.Errorf("State() = %v, want StateDisconnected", m.State())
		}
	})

	t.Run("StateChangeCallback", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return nil })
		m.SetAutoReconnect(false)
		defer m.Close()

		var mu sync.Mutex
		var transitions [][2]State
		m.OnStateChange(func(old, next State) {
			mu.Lock()
			transitions = append(transitions, [2]State{old, next})
			mu.Unlock()
		})

		_ = m.Connect(context.Background())
		m.NotifyConnectionLost(errors.New("eof"))

		expected := [][2]State{
			{StateDisconnected, StateConnecting},
			{StateConnecting, StateConnected},
			{StateConnected, StateDisconnected},
		}

		mu.Lock()
		defer mu.Unlock()
		if len(transitions) != len(expected) {
			t.Fatalf("Got %d transitions, want %d", len(transitions), len(expected))
		}
		for i, exp := range expected {
			if transitions[i] != exp {
				t.Errorf("Transition %d: got %v→%v, want %v→%v",
					i, transitions[i][0], transitions[i][1], exp[0], exp[1])
			}
		}
	})

	t.Run("MarkDisconnectedAndClose", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return nil })
		_ = m.Connect(context.Background())
		m.MarkDisconnected()
		if m.State() != StateDisconnected {
			t.Errorf("State() = %v", m.State())
		}
		m.Close()
		m.Close()
		if err := m.Connect(context.Background()); !errors.Is(err, ErrManagerClosed) {
			t.Errorf("Connect() after Close error = %v", err)
		}
	})
}

func TestManagerReconnect(t *testing.T) {
	t.Run("ReconnectsAfterLoss", func(t *testing.T) {
		var calls atomic.Int32
		m := NewManagerWithConfig(func(ctx context.Context) error {
			if calls.Add(1) == 2 {
				return errors.New("not yet")
			}
			return nil
		}, fastConfig())
		defer m.Close()

		var attempts atomic.Int32
		m.OnReconnecting(func(attempt int, delay time.Duration) {
			attempts.Add(1)
		})

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		m.NotifyConnectionLost(errors.New("eof"))

		waitForState(t, m, StateConnected)
		if calls.Load() != 3 {
			t.Errorf("connect called %d times, want 3", calls.Load())
		}
		if attempts.Load() != 2 {
			t.Errorf("OnReconnecting called %d times, want 2", attempts.Load())
		}
		if m.Attempts() != 0 {
			t.Errorf("Attempts() = %d after success, want 0", m.Attempts())
		}
	})

	t.Run("PermanentCauseIsNotRetried", func(t *testing.T) {
		denied := errors.New("denied")
		cfg := fastConfig()
		cfg.Permanent = func(err error) bool { return errors.Is(err, denied) }

		var calls atomic.Int32
		m := NewManagerWithConfig(func(ctx context.Context) error {
			calls.Add(1)
			return nil
		}, cfg)
		defer m.Close()

		_ = m.Connect(context.Background())
		m.NotifyConnectionLost(denied)

		time.Sleep(60 * time.Millisecond)
		if m.State() != StateDisconnected {
			t.Errorf("State() = %v, want StateDisconnected", m.State())
		}
		if calls.Load() != 1 {
			t.Errorf("connect called %d times, want 1", calls.Load())
		}
	})

	t.Run("PermanentAttemptErrorGivesUp", func(t *testing.T) {
		mismatch := errors.New("mismatch")
		cfg := fastConfig()
		cfg.Permanent = func(err error) bool { return errors.Is(err, mismatch) }

		var calls atomic.Int32
		m := NewManagerWithConfig(func(ctx context.Context) error {
			if calls.Add(1) == 1 {
				return nil
			}
			return mismatch
		}, cfg)
		defer m.Close()

		gaveUp := make(chan error, 1)
		m.OnGiveUp(func(err error) { gaveUp <- err })

		_ = m.Connect(context.Background())
		m.NotifyConnectionLost(errors.New("eof"))

		select {
		case err := <-gaveUp:
			if !errors.Is(err, mismatch) {
				t.Errorf("give-up error = %v, want mismatch", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("OnGiveUp not called")
		}
		if calls.Load() != 2 {
			t.Errorf("connect called %d times, want 2", calls.Load())
		}
	})

	t.Run("MaxAttempts", func(t *testing.T) {
		cfg := fastConfig()
		cfg.MaxAttempts = 3

		var calls atomic.Int32
		m := NewManagerWithConfig(func(ctx context.Context) error {
			if calls.Add(1) == 1 {
				return nil
			}
			return errors.New("unreachable")
		}, cfg)
		defer m.Close()

		gaveUp := make(chan error, 1)
		m.OnGiveUp(func(err error) { gaveUp <- err })

		_ = m.Connect(context.Background())
		m.NotifyConnectionLost(errors.New("eof"))

		select {
		case err := <-gaveUp:
			if !errors.Is(err, ErrGaveUp) {
				t.Errorf("give-up error = %v, want ErrGaveUp", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("OnGiveUp not called")
		}
		if calls.Load() != 4 {
			t.Errorf("connect called %d times, want 4", calls.Load())
		}
		waitForState(t, m, StateDisconnected)
	})

	t.Run("DisabledAutoReconnect", func(t *testing.T) {
		var calls atomic.Int32
		m := NewManagerWithConfig(func(ctx context.Context) error {
			calls.Add(1)
			return nil
		}, fastConfig())
		m.SetAutoReconnect(false)
		defer m.Close()

		_ = m.Connect(context.Background())
		m.NotifyConnectionLost(errors.New("eof"))

		time.Sleep(60 * time.Millisecond)
		if m.State() != StateDisconnected {
			t.Errorf("State() = %v, want StateDisconnected", m.State())
		}
		if calls.Load() != 1 {
			t.Errorf("connect called %d times, want 1", calls.Load())
		}
	})
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "DISCONNECTED"},
		{StateConnecting, "CONNECTING"},
		{StateConnected, "CONNECTED"},
		{StateReconnecting, "RECONNECTING"},
		{StateClosed, "CLOSED"},
		{State(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
