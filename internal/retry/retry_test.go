package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"botpulse/internal/chain"
	"botpulse/internal/chain/chaintest"
)

var errFlaky = errors.New("flaky")

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond}
}

func TestDelay_Doubles(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Errorf("Delay(%d) = %s, want %s", i+1, got, w)
		}
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	var waits []time.Duration
	p := fastPolicy(3)
	p.OnRetry = func(attempt int, wait time.Duration, err error) {
		waits = append(waits, wait)
	}

	v, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errFlaky
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if v != 42 {
		t.Errorf("expected 42, got %d", v)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(waits) != 2 || waits[0] != time.Millisecond || waits[1] != 2*time.Millisecond {
		t.Errorf("unexpected waits %v", waits)
	}
}

func TestDo_ExhaustionReturnsLastError(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(3), func(context.Context) (string, error) {
		calls++
		return "", errFlaky
	})
	if !errors.Is(err, errFlaky) {
		t.Fatalf("expected wrapped errFlaky, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", calls)
	}
}

func TestDo_SingleAttemptDoesNotWait(t *testing.T) {
	p := Policy{MaxAttempts: 1, BaseDelay: time.Hour}
	start := time.Now()
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		return 0, errFlaky
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > time.Second {
		t.Error("single attempt should not sleep")
	}
}

func TestDo_CancelledContextStopsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, BaseDelay: time.Hour}
	p.OnRetry = func(int, time.Duration, error) { cancel() }

	calls := 0
	_, err := Do(ctx, p, func(context.Context) (int, error) {
		calls++
		return 0, errFlaky
	})
	if !errors.Is(err, errFlaky) {
		t.Fatalf("expected last error to be surfaced, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestReader_RetriesEveryCall(t *testing.T) {
	fake := chaintest.New()
	account := fake.AddBot(1, chain.Attributes{Nonce: 9})
	fake.Height = 500
	fake.Failures["GetAttributes"] = 2
	fake.Failures["GetLatestBlockHeight"] = 1

	r := NewReader(fake, fastPolicy(3))
	ctx := context.Background()

	attrs, err := r.GetAttributes(ctx, account)
	if err != nil {
		t.Fatalf("GetAttributes: %v", err)
	}
	if attrs.Nonce != 9 {
		t.Errorf("expected nonce 9, got %d", attrs.Nonce)
	}
	if got := fake.Calls("GetAttributes"); got != 3 {
		t.Errorf("expected 3 GetAttributes calls, got %d", got)
	}

	h, err := r.GetLatestBlockHeight(ctx)
	if err != nil || h != 500 {
		t.Errorf("GetLatestBlockHeight = %d, %v", h, err)
	}
}

func TestReader_ExhaustionSurfaces(t *testing.T) {
	fake := chaintest.New()
	fake.Failures["GetLogs"] = 5

	r := NewReader(fake, fastPolicy(3))
	_, err := r.GetLogs(context.Background(), common.Address{}, chain.KindTradeExecuted, 1, 10)
	if !errors.Is(err, chaintest.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if got := fake.Calls("GetLogs"); got != 3 {
		t.Errorf("expected 3 GetLogs calls, got %d", got)
	}
}
