package redisengine

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ggoodman/tdclient-go/engine"
	"github.com/ggoodman/tdclient-go/engine/enginetest"
	"github.com/redis/go-redis/v9"
)

var prefixSeq atomic.Int64

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	cl := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cl.Close() })
	return cl
}

func TestRedisEngine(t *testing.T) {
	enginetest.RunEngineTests(t, func(t *testing.T) (engine.Engine, enginetest.Driver) {
		cl := newTestRedis(t)
		prefix := fmt.Sprintf("test:%d:", prefixSeq.Add(1))
		return NewWithClient(cl, prefix), NewPeer(cl, prefix)
	})
}

func TestPrefixesIsolateBridges(t *testing.T) {
	t.Parallel()

	cl := newTestRedis(t)
	a, b := NewWithClient(cl, "a:"), NewWithClient(cl, "b:")
	peerA := NewPeer(cl, "a:")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := peerA.Emit(ctx, []byte(`{"@type":"updateTest","@client_id":1}`)); err != nil {
		t.Fatalf("emit: %v", err)
	}

	if raw, err := b.Receive(time.Second); err != nil || raw != nil {
		t.Fatalf("expected nothing on b, got %s (err=%v)", raw, err)
	}
	if raw, err := a.Receive(time.Second); err != nil || raw == nil {
		t.Fatalf("expected event on a, got err=%v", err)
	}
}

func TestNewFailsWithoutRedis(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{RedisAddr: "127.0.0.1:1"}); err == nil {
		t.Fatalf("expected ping failure")
	}
}

func TestNextRequestHonorsContext(t *testing.T) {
	t.Parallel()

	cl := newTestRedis(t)
	peer := NewPeer(cl, "ctx:")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, _, err := peer.NextRequest(ctx); err == nil {
		t.Fatalf("expected context error")
	}
}
