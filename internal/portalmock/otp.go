package portalmock

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/careportal-chat/pkg/logging"
)

var otpTracer = otel.Tracer("careportal.portalmock.otp")

// LimiterConfig bounds one-time-code traffic per patient.
type LimiterConfig struct {
	MaxSends    int
	MaxVerifies int
	Window      time.Duration
}

// DefaultLimiterConfig returns the portal's defaults.
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{MaxSends: 3, MaxVerifies: 5, Window: 15 * time.Minute}
}

// LimitResult is the outcome of one counted attempt.
type LimitResult struct {
	Allowed      bool
	Kind         string
	Count        int
	Max          int
	WindowExpiry time.Time
}

// Remaining is how many attempts are left after this one.
func (r LimitResult) Remaining() int {
	return max(r.Max-r.Count, 0)
}

type counter interface {
	incr(ctx context.Context, key string, window time.Duration) (int, time.Time, error)
	del(ctx context.Context, keys ...string) error
}

// OTPLimiter counts code sends and verification attempts in fixed windows.
// Counters live in Redis when a client is given and in process otherwise.
type OTPLimiter struct {
	counts counter
	logger *logging.Logger
	config LimiterConfig
}

// NewOTPLimiter creates a limiter. redisClient may be nil.
func NewOTPLimiter(redisClient *redis.Client, config LimiterConfig, logger *logging.Logger) *OTPLimiter {
	if logger == nil {
		logger = logging.Default()
	}
	def := DefaultLimiterConfig()
	if config.MaxSends <= 0 {
		config.MaxSends = def.MaxSends
	}
	if config.MaxVerifies <= 0 {
		config.MaxVerifies = def.MaxVerifies
	}
	if config.Window <= 0 {
		config.Window = def.Window
	}
	var c counter = newMemoryCounter(time.Now)
	if redisClient != nil {
		c = &redisCounter{redis: redisClient}
	}
	return &OTPLimiter{counts: c, logger: logger, config: config}
}

func otpKey(kind, patientID string) string {
	return fmt.Sprintf("careportal:otp:%s:%s", kind, patientID)
}

// CheckSend counts a code send for patientID.
func (l *OTPLimiter) CheckSend(ctx context.Context, patientID string) LimitResult {
	return l.check(ctx, "send", patientID, l.config.MaxSends)
}

// CheckVerify counts a verification attempt for patientID.
func (l *OTPLimiter) CheckVerify(ctx context.Context, patientID string) LimitResult {
	return l.check(ctx, "verify", patientID, l.config.MaxVerifies)
}

// Reset clears both counters after a successful verification.
func (l *OTPLimiter) Reset(ctx context.Context, patientID string) error {
	return l.counts.del(ctx, otpKey("send", patientID), otpKey("verify", patientID))
}

func (l *OTPLimiter) check(ctx context.Context, kind, patientID string, maxAllowed int) LimitResult {
	ctx, span := otpTracer.Start(ctx, "otp.check_"+kind)
	defer span.End()
	span.SetAttributes(
		attribute.String("portal.patient_id", patientID),
		attribute.String("otp.check_type", kind),
	)

	key := otpKey(kind, patientID)
	count, expiry, err := l.counts.incr(ctx, key, l.config.Window)
	if err != nil {
		l.logger.Error("otp limiter unavailable", "error", err, "key", key)
		span.RecordError(err)
		return LimitResult{Allowed: true, Kind: kind, Max: maxAllowed}
	}

	res := LimitResult{
		Allowed:      count <= maxAllowed,
		Kind:         kind,
		Count:        count,
		Max:          maxAllowed,
		WindowExpiry: expiry,
	}
	if !res.Allowed {
		l.logger.Warn("otp limit exceeded", "kind", kind, "patient_id", patientID, "count", count, "max", maxAllowed)
		span.SetAttributes(attribute.Bool("otp.exceeded", true))
	}
	return res
}

type redisCounter struct {
	redis *redis.Client
}

func (c *redisCounter) incr(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	count, err := c.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if count == 1 {
		c.redis.Expire(ctx, key, window)
	}
	ttl, err := c.redis.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return int(count), time.Now().Add(ttl), nil
}

func (c *redisCounter) del(ctx context.Context, keys ...string) error {
	return c.redis.Del(ctx, keys...).Err()
}

type memoryCounter struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryCount
}

type memoryCount struct {
	n       int
	expires time.Time
}

func newMemoryCounter(now func() time.Time) *memoryCounter {
	return &memoryCounter{now: now, entries: make(map[string]memoryCount)}
}

func (c *memoryCounter) incr(_ context.Context, key string, window time.Duration) (int, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	e := c.entries[key]
	if e.n == 0 || !now.Before(e.expires) {
		e = memoryCount{expires: now.Add(window)}
	}
	e.n++
	c.entries[key] = e
	return e.n, e.expires, nil
}

func (c *memoryCounter) del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

const otpTTL = 10 * time.Minute

// codeBook holds the outstanding code per patient.
type codeBook struct {
	mu    sync.Mutex
	now   func() time.Time
	fixed string
	codes map[string]issuedCode
}

type issuedCode struct {
	code    string
	channel string
	expires time.Time
}

func newCodeBook(fixed string, now func() time.Time) *codeBook {
	return &codeBook{fixed: fixed, now: now, codes: make(map[string]issuedCode)}
}

// issue replaces any outstanding code for patientID.
func (b *codeBook) issue(patientID, channel string) (string, error) {
	code := b.fixed
	if code == "" {
		n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
		if err != nil {
			return "", fmt.Errorf("portalmock: generate otp: %w", err)
		}
		code = fmt.Sprintf("%06d", n.Int64())
	}
	b.mu.Lock()
	b.codes[patientID] = issuedCode{code: code, channel: channel, expires: b.now().Add(otpTTL)}
	b.mu.Unlock()
	return code, nil
}

// check reports whether code matches; a match consumes it.
func (b *codeBook) check(patientID, code string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	issued, ok := b.codes[patientID]
	if !ok || !b.now().Before(issued.expires) {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(issued.code), []byte(code)) != 1 {
		return false
	}
	delete(b.codes, patientID)
	return true
}
