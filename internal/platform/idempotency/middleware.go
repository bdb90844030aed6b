package idempotency

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/glassworks/storefront/internal/platform/httpx"
	"github.com/glassworks/storefront/internal/platform/requestctx"
)

const (
	defaultHeaderName = "Idempotency-Key"
	replayHeaderName  = "X-Idempotent-Replay"
	anonymousSession  = "anonymous"
)

type guard struct {
	store    Store
	header   string
	ttl      time.Duration
	required bool
	now      func() time.Time
	log      *zap.Logger
}

type MiddlewareOption func(*guard)

// WithHeader renames the request header carrying the key.
func WithHeader(name string) MiddlewareOption {
	return func(g *guard) {
		if name = strings.TrimSpace(name); name != "" {
			g.header = name
		}
	}
}

// WithTTL sets how long completed responses stay replayable.
func WithTTL(ttl time.Duration) MiddlewareOption {
	return func(g *guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithOptionalKey lets requests without the header pass through unguarded.
func WithOptionalKey() MiddlewareOption {
	return func(g *guard) { g.required = false }
}

func WithLogger(logger *zap.Logger) MiddlewareOption {
	return func(g *guard) {
		if logger != nil {
			g.log = logger
		}
	}
}

func WithClock(clock func() time.Time) MiddlewareOption {
	return func(g *guard) {
		if clock != nil {
			g.now = clock
		}
	}
}

// Middleware replays the stored response when a checkout request is retried with the same key.
// Keys are scoped to the cart session so two shoppers cannot collide. Only final outcomes are
// stored: server errors, 409 and 429 responses and error bodies marked retryable release the key
// so the client can try again.
func Middleware(store Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	g := &guard{
		store:    store,
		header:   defaultHeaderName,
		ttl:      DefaultTTL,
		required: true,
		now:      time.Now,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { g.serve(w, r, next) })
	}
}

func (g *guard) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	ctx := r.Context()
	key := strings.TrimSpace(r.Header.Get(g.header))
	if key == "" {
		if g.required {
			httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_required", "missing "+g.header+" header", http.StatusBadRequest))
			return
		}
		next.ServeHTTP(w, r)
		return
	}

	body, err := readAndReplayBody(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read request body", http.StatusBadRequest))
		return
	}
	session := requestctx.CartSession(ctx)
	if session == "" {
		session = anonymousSession
	}
	scoped := key + "|" + session
	fingerprint := requestFingerprint(r, body, session)
	log := g.log.With(zap.String("idempotency_key", key))

	reservation, err := g.store.Reserve(ctx, scoped, fingerprint, g.now().UTC(), g.ttl)
	switch {
	case errors.Is(err, ErrFingerprintMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_conflict", "idempotency key already used for a different request", http.StatusConflict))
		return
	case err != nil:
		log.Warn("reserve failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_store_error", "unable to process idempotency key", http.StatusServiceUnavailable).AsRetryable())
		return
	case reservation.State == ReservationStateCompleted:
		replay(w, reservation.Record)
		return
	case reservation.State == ReservationStatePending:
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_in_progress", "another request is processing this idempotency key", http.StatusConflict).AsRetryable())
		return
	}

	buf := &bufferedResponse{header: make(http.Header)}
	next.ServeHTTP(buf, r)
	defer buf.flush(w)

	if !buf.final() {
		g.release(log, r, scoped, fingerprint)
		return
	}
	resp := Response{Status: buf.statusCode(), Headers: buf.header.Clone(), Body: buf.body.Bytes()}
	if err := g.store.SaveResponse(ctx, scoped, fingerprint, resp, g.now().UTC(), g.ttl); err != nil {
		log.Warn("save response failed", zap.Error(err))
		g.release(log, r, scoped, fingerprint)
	}
}

func (g *guard) release(log *zap.Logger, r *http.Request, key, fingerprint string) {
	if err := g.store.Release(r.Context(), key, fingerprint); err != nil {
		log.Warn("release failed", zap.Error(err))
	}
}

func readAndReplayBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, httpx.DefaultBodyLimit+1))
	_ = r.Body.Close()
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// requestFingerprint hashes everything that makes two checkout attempts "the same request".
func requestFingerprint(r *http.Request, body []byte, session string) string {
	return sha256Hex([]byte(strings.Join([]string{
		strings.ToUpper(r.Method),
		r.URL.Path,
		r.URL.RawQuery,
		r.Header.Get("Content-Type"),
		session,
		sha256Hex(body),
	}, "|")))
}

func replay(w http.ResponseWriter, record Record) {
	for name, values := range replayHeaders(record.ResponseHeaders) {
		w.Header()[name] = values
	}
	w.Header().Set(replayHeaderName, "true")
	status := record.ResponseStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(record.ResponseBody)
}

// bufferedResponse holds the handler's response until the outcome is stored.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedResponse) Write(data []byte) (int, error) {
	b.WriteHeader(http.StatusOK)
	return b.body.Write(data)
}

func (b *bufferedResponse) statusCode() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}

// final reports whether the response settles the request for good.
func (b *bufferedResponse) final() bool {
	switch status := b.statusCode(); {
	case status >= http.StatusInternalServerError,
		status == http.StatusConflict,
		status == http.StatusTooManyRequests:
		return false
	case status < http.StatusBadRequest:
		return true
	}
	var envelope struct {
		Retryable bool `json:"retryable"`
	}
	if err := json.Unmarshal(b.body.Bytes(), &envelope); err != nil {
		return true
	}
	return !envelope.Retryable
}

func (b *bufferedResponse) flush(w http.ResponseWriter) {
	for name, values := range b.header {
		w.Header()[name] = values
	}
	w.WriteHeader(b.statusCode())
	_, _ = w.Write(b.body.Bytes())
}
