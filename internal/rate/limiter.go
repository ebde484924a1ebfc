// Package rate limita intentos por clave (IP + ruta) en login, registro y
// forgotten-password.
package rate

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	rdb "github.com/redis/go-redis/v9"
	xrate "golang.org/x/time/rate"
)

type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
	WindowTTL  time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// RedisLimiter: fixed window sencillo (INCR + EXPIRE), compartido entre réplicas.
type RedisLimiter struct {
	Client *rdb.Client
	Prefix string
	Max    int64
	Window time.Duration
}

func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{Client: client, Prefix: prefix, Max: int64(max), Window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	winStart := time.Now().UTC().Truncate(l.Window)
	redisKey := fmt.Sprintf("%s%s:%d", l.Prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	pipe := l.Client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	// NX: solo el primer hit de la ventana fija el TTL
	pipe.ExpireNX(ctx, redisKey, l.Window)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	hits := incr.Val()
	res := Result{
		Allowed:   hits <= l.Max,
		Remaining: max(l.Max-hits, 0),
		WindowTTL: ttl.Val(),
	}
	if !res.Allowed {
		res.RetryAfter = ttl.Val()
		if res.RetryAfter <= 0 {
			res.RetryAfter = time.Duration(math.Ceil(l.Window.Seconds())) * time.Second
		}
	}
	return res, nil
}

// MemoryLimiter: token bucket por clave en proceso (x/time/rate). Las claves
// viven en un LRU acotado para que una lluvia de IPs no crezca sin límite.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets *lru.Cache[string, *xrate.Limiter]
	every   xrate.Limit
	burst   int
	window  time.Duration
}

// NewMemoryLimiter permite max eventos por window por clave, recordando
// hasta maxKeys claves.
func NewMemoryLimiter(max int, window time.Duration, maxKeys int) (*MemoryLimiter, error) {
	if max <= 0 || window <= 0 {
		return nil, fmt.Errorf("rate: invalid limit %d/%s", max, window)
	}
	if maxKeys <= 0 {
		maxKeys = 10_000
	}
	c, err := lru.New[string, *xrate.Limiter](maxKeys)
	if err != nil {
		return nil, err
	}
	return &MemoryLimiter{
		buckets: c,
		every:   xrate.Every(window / time.Duration(max)),
		burst:   max,
		window:  window,
	}, nil
}

func (l *MemoryLimiter) bucket(key string) *xrate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets.Get(key); ok {
		return b
	}
	b := xrate.NewLimiter(l.every, l.burst)
	l.buckets.Add(key, b)
	return b
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	b := l.bucket(key)
	now := time.Now()
	if b.AllowN(now, 1) {
		return Result{
			Allowed:   true,
			Remaining: int64(math.Max(0, math.Floor(b.TokensAt(now)))),
			WindowTTL: l.window,
		}, nil
	}
	r := b.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return Result{Allowed: false, RetryAfter: delay, WindowTTL: l.window}, nil
}
