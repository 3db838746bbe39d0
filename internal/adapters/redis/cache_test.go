package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	redisad "hotel_pricesheet/internal/adapters/redis"
	"hotel_pricesheet/internal/domain"
)

func newCache(t *testing.T) (*redisad.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisad.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_SetGetDel(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	var miss domain.AliasTable
	if ok, err := c.Get(ctx, "aliases:v1", &miss); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	in := domain.AliasTable{"Kompastour": {"beach rsrt": "Beach Resort 5*"}}
	if err := c.Set(ctx, "aliases:v1", in, 60); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("pricesheet:aliases:v1") {
		t.Fatalf("expected prefixed key in redis")
	}

	var out domain.AliasTable
	ok, err := c.Get(ctx, "aliases:v1", &out)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if out["Kompastour"]["beach rsrt"] != "Beach Resort 5*" {
		t.Fatalf("unexpected value: %+v", out)
	}

	mr.FastForward(2 * time.Minute)
	if ok, _ := c.Get(ctx, "aliases:v1", &out); ok {
		t.Fatalf("expected key to expire")
	}

	_ = c.Set(ctx, "runs:10", []domain.Run{{ID: "r1"}}, 60)
	if err := c.Del(ctx, "runs:10"); err != nil {
		t.Fatalf("del: %v", err)
	}
	var runs []domain.Run
	if ok, _ := c.Get(ctx, "runs:10", &runs); ok {
		t.Fatalf("expected key deleted")
	}
}

func TestCache_CorruptValue(t *testing.T) {
	c, mr := newCache(t)
	_ = mr.Set("pricesheet:bad", "{not json")
	var v map[string]string
	if ok, err := c.Get(context.Background(), "bad", &v); ok || err == nil {
		t.Fatalf("expected decode error, got ok=%v err=%v", ok, err)
	}
}
