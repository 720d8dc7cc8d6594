package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"

	"gopherai-chat/internal/model"
)

func newTestCache(t *testing.T) (*HistoryCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewHistoryCache(client, 30*time.Second), mr
}

func TestHistoryCacheRoundTrip(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	if _, hit, err := cache.GetHistory(ctx, "s1"); err != nil || hit {
		t.Fatalf("expected miss, got hit=%v err=%v", hit, err)
	}

	version, err := cache.HistoryVersion(ctx, "s1")
	if err != nil || version != 0 {
		t.Fatalf("expected version 0, got %d err=%v", version, err)
	}

	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	messages := []model.Message{
		{ID: "m1", SessionID: "s1", Role: model.RoleUser, Content: "hello", Timestamp: ts, Files: []string{"f1"}},
		{ID: "m2", SessionID: "s1", Role: model.RoleAssistant, Content: "hi there", Timestamp: ts.Add(time.Second)},
	}
	stored, err := cache.SetHistoryIfVersion(ctx, "s1", version, messages)
	if err != nil || !stored {
		t.Fatalf("expected fill to be stored, got stored=%v err=%v", stored, err)
	}
	if ttl := mr.TTL("chat:history:s1"); ttl != 30*time.Second {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	got, hit, err := cache.GetHistory(ctx, "s1")
	if err != nil || !hit {
		t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
	}
	if len(got) != 2 || got[1].Content != "hi there" || got[0].Files[0] != "f1" {
		t.Fatalf("unexpected cached history %+v", got)
	}
}

func TestHistoryCacheMarkDirtyDropsValueAndBumpsVersion(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	if _, err := cache.SetHistoryIfVersion(ctx, "s1", 0, []model.Message{{ID: "m1"}}); err != nil {
		t.Fatal(err)
	}
	if err := cache.MarkDirty(ctx, "s1"); err != nil {
		t.Fatalf("MarkDirty failed: %v", err)
	}
	if mr.Exists("chat:history:s1") {
		t.Fatal("expected cached history to be removed")
	}
	version, err := cache.HistoryVersion(ctx, "s1")
	if err != nil || version != 1 {
		t.Fatalf("expected version 1, got %d err=%v", version, err)
	}
	if ttl := mr.TTL("chat:history:version:s1"); ttl <= 0 {
		t.Fatalf("expected version key to expire, ttl=%v", ttl)
	}
}

func TestHistoryCacheRejectsFillFromOlderVersion(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	seen, err := cache.HistoryVersion(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	// a write lands between the reader's store load and its fill
	if err := cache.MarkDirty(ctx, "s1"); err != nil {
		t.Fatal(err)
	}

	stored, err := cache.SetHistoryIfVersion(ctx, "s1", seen, []model.Message{{ID: "stale"}})
	if err != nil {
		t.Fatalf("SetHistoryIfVersion failed: %v", err)
	}
	if stored || mr.Exists("chat:history:s1") {
		t.Fatal("stale fill must not be stored")
	}

	current, _ := cache.HistoryVersion(ctx, "s1")
	if stored, err := cache.SetHistoryIfVersion(ctx, "s1", current, []model.Message{{ID: "fresh"}}); err != nil || !stored {
		t.Fatalf("fill at current version should be stored, got stored=%v err=%v", stored, err)
	}
}

func TestHistoryCacheCorruptValue(t *testing.T) {
	cache, mr := newTestCache(t)
	if err := mr.Set("chat:history:s1", "not-json"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := cache.GetHistory(context.Background(), "s1"); err == nil {
		t.Fatal("expected unmarshal error")
	}
}
