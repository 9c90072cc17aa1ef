package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

type payload struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func TestMemory_SetGet(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	if err := c.Set(ctx, "a", payload{Name: "alpha", Score: 1.5}, time.Minute); err != nil {
		t.Fatal(err)
	}
	var got payload
	ok, err := c.Get(ctx, "a", &got)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Name != "alpha" || got.Score != 1.5 {
		t.Errorf("unexpected value %+v", got)
	}
}

func TestMemory_Expires(t *testing.T) {
	c := NewMemory()
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if err := c.Set(ctx, "a", 1, 10*time.Second); err != nil {
		t.Fatal(err)
	}
	now = now.Add(11 * time.Second)

	var v int
	ok, err := c.Get(ctx, "a", &v)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected miss after ttl")
	}
	if c.Len() != 0 {
		t.Errorf("expected no live entries, got %d", c.Len())
	}
}

func TestMemory_Purge(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	c.Set(ctx, "a", 1, time.Minute)
	c.Set(ctx, "b", 2, time.Minute)

	if err := c.Purge(ctx); err != nil {
		t.Fatal(err)
	}
	var v int
	if ok, _ := c.Get(ctx, "a", &v); ok {
		t.Error("expected miss after purge")
	}
}

func TestRedis_RoundTrip(t *testing.T) {
	addr := os.Getenv("BOTPULSE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BOTPULSE_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	c, err := NewRedis(ctx, addr, "", "botpulse-test:")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.Set(ctx, "x", payload{Name: "x"}, time.Minute); err != nil {
		t.Fatal(err)
	}
	var got payload
	if ok, err := c.Get(ctx, "x", &got); err != nil || !ok || got.Name != "x" {
		t.Fatalf("expected hit, got ok=%v err=%v value=%+v", ok, err, got)
	}
	if err := c.Purge(ctx); err != nil {
		t.Fatal(err)
	}
	if ok, _ := c.Get(ctx, "x", &got); ok {
		t.Error("expected miss after purge")
	}
}
