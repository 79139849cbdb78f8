package redisengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ggoodman/tdclient-go/engine"
	"github.com/ggoodman/tdclient-go/tdjson"
	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
)

const (
	defaultAddr   = "localhost:6379"
	defaultPrefix = "tdclient:"

	minBlock = time.Second
)

// Config for the Redis-backed Engine. Defaults can be loaded via envdecode.
type Config struct {
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all keys. ENV: TDCLIENT_REDIS_PREFIX
	KeyPrefix string `env:"TDCLIENT_REDIS_PREFIX,default=tdclient:"`
}

type envelope struct {
	SessionID tdjson.SessionID `json:"client_id"`
	Request   json.RawMessage  `json:"request"`
}

// Engine talks to a remote engine process over Redis lists.
type Engine struct {
	client    *redis.Client
	keyPrefix string
	owned     bool
}

var _ engine.Engine = (*Engine)(nil)

// New dials Redis and verifies the connection.
func New(cfg Config) (*Engine, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = defaultAddr
	}
	cl := redis.NewClient(&redis.Options{Addr: addr})
	if err := cl.Ping(context.Background()).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	e := NewWithClient(cl, cfg.KeyPrefix)
	e.owned = true
	return e, nil
}

// NewFromEnv builds an Engine using envdecode to populate Config.
func NewFromEnv() (*Engine, error) {
	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return nil, fmt.Errorf("decode redis engine config: %w", err)
	}
	return New(cfg)
}

// NewWithClient wraps an existing client. The client is not closed by Close.
func NewWithClient(cl *redis.Client, keyPrefix string) *Engine {
	if keyPrefix == "" {
		keyPrefix = defaultPrefix
	}
	return &Engine{client: cl, keyPrefix: keyPrefix}
}

// Close closes the Redis client if the Engine created it.
func (e *Engine) Close() error {
	if !e.owned {
		return nil
	}
	return e.client.Close()
}

// --- Key helpers ---

func seqKey(prefix string) string      { return prefix + "seq" }
func requestsKey(prefix string) string { return prefix + "requests" }
func eventsKey(prefix string) string   { return prefix + "events" }

func (e *Engine) NewSession() (tdjson.SessionID, error) {
	n, err := e.client.Incr(context.Background(), seqKey(e.keyPrefix)).Result()
	if err != nil {
		return 0, fmt.Errorf("allocate session id: %w", err)
	}
	return tdjson.SessionID(n), nil
}

func (e *Engine) Send(id tdjson.SessionID, request []byte) error {
	b, err := json.Marshal(envelope{SessionID: id, Request: request})
	if err != nil {
		return fmt.Errorf("encode request envelope: %w", err)
	}
	if err := e.client.RPush(context.Background(), requestsKey(e.keyPrefix), b).Err(); err != nil {
		return fmt.Errorf("push request: %w", err)
	}
	return nil
}

func (e *Engine) Receive(timeout time.Duration) ([]byte, error) {
	if timeout < minBlock {
		timeout = minBlock
	}
	res, err := e.client.BLPop(context.Background(), timeout, eventsKey(e.keyPrefix)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("pop event: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("pop event: unexpected reply length %d", len(res))
	}
	// res[0] is the list name; res[1] is the payload
	return []byte(res[1]), nil
}

// Peer is the engine-process side of the bridge.
type Peer struct {
	client    *redis.Client
	keyPrefix string
}

// NewPeer wraps a client for the engine-process side using the same prefix as
// the runtime's Engine.
func NewPeer(cl *redis.Client, keyPrefix string) *Peer {
	if keyPrefix == "" {
		keyPrefix = defaultPrefix
	}
	return &Peer{client: cl, keyPrefix: keyPrefix}
}

// Emit publishes one raw event to the runtime.
func (p *Peer) Emit(ctx context.Context, raw []byte) error {
	return p.client.RPush(ctx, eventsKey(p.keyPrefix), raw).Err()
}

// NextRequest blocks until the runtime sends a request or ctx ends.
func (p *Peer) NextRequest(ctx context.Context) (tdjson.SessionID, []byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		res, err := p.client.BLPop(ctx, minBlock, requestsKey(p.keyPrefix)).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return 0, nil, ctx.Err()
			}
			return 0, nil, err
		}
		if len(res) != 2 {
			continue
		}
		var env envelope
		if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
			return 0, nil, fmt.Errorf("decode request envelope: %w", err)
		}
		return env.SessionID, env.Request, nil
	}
}
