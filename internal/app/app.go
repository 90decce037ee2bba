package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/olgkv/todolist/internal/config"
	"github.com/olgkv/todolist/internal/httpapi"
	"github.com/olgkv/todolist/internal/metrics"
	"github.com/olgkv/todolist/internal/ports"
	"github.com/olgkv/todolist/internal/service"
	"github.com/olgkv/todolist/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-ID"

// NewServer wires application dependencies and returns a configured HTTP
// server, the service instance, and the store so the caller can close it on
// shutdown.
func NewServer(ctx context.Context, cfg *config.Config) (*http.Server, *service.Service, ports.ContainerStore, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	svc := service.New(st, service.Options{
		UpdateRetries: cfg.UpdateRetries,
		DefaultLimit:  cfg.DefaultLimit,
		MaxLimit:      cfg.MaxLimit,
		StoreTimeout:  cfg.StoreTimeout,
	})
	if err := svc.Init(ctx); err != nil {
		_ = st.Close(context.Background())
		return nil, nil, nil, fmt.Errorf("init container: %w", err)
	}

	var limiter *ipRateLimiter
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst > 0 {
		limiter = newIPRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, 10*time.Minute)
		limiter.trusted = cfg.TrustedProxies
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(httpapi.NewHandler(svc), limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv, svc, st, nil
}

// newRouter registers the task routes. limiter may be nil.
func newRouter(h *httpapi.Handler, limiter *ipRateLimiter) *http.ServeMux {
	routes := map[string]http.HandlerFunc{
		"/getTasks":           h.GetTasks,
		"/getTasks/paginated": h.GetTasksPaginated,
		"/getTasks/bystatus":  h.GetTasksByStatus,
		"/getTasks/report":    h.Report,
		"/updatetask":         h.UpdateTask,
		"/addTask":            h.AddTask,
		"/deletebyid":         h.DeleteByID,
	}

	mux := http.NewServeMux()
	for path, fn := range routes {
		mux.Handle(path, rateLimitMiddleware(limiter, loggingMiddleware(fn)))
	}
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func openStore(ctx context.Context, cfg *config.Config) (ports.ContainerStore, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	defer cancel()

	switch cfg.StoreBackend {
	case config.BackendMongo:
		return storage.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
	case config.BackendMySQL:
		return storage.NewMySQLStore(ctx, cfg.MySQLDSN)
	case config.BackendFile, "":
		return storage.NewFileStorage(storage.NewJSONRepository(cfg.TasksFile)), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// NewLogger builds the process logger. format is "json" or "text".
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		lw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lw, r)

		latency := time.Since(start)
		metrics.ObserveRequest(r.Method, r.URL.Path, lw.statusCode, latency)
		slog.Info("request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"latency_ms", latency.Milliseconds(),
			"status", lw.statusCode,
		)
	})
}

func rateLimitMiddleware(limiter *ipRateLimiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.allow(clientIP(r, limiter.trusted)) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter keeps one token bucket per client address. Buckets idle for
// longer than ttl are dropped on the next call.
type ipRateLimiter struct {
	trusted []netip.Prefix

	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
}

func newIPRateLimiter(limit rate.Limit, burst int, ttl time.Duration) *ipRateLimiter {
	return &ipRateLimiter{
		visitors:  make(map[string]*visitor),
		limit:     limit,
		burst:     burst,
		ttl:       ttl,
		lastSweep: time.Now(),
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) > l.ttl {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.ttl {
				delete(l.visitors, k)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.Allow()
}

// clientIP returns the address the rate limiter keys on. Forwarding headers
// are only read when the peer itself is a trusted proxy; X-Forwarded-For is
// walked right to left past the trusted hops.
func clientIP(r *http.Request, trusted []netip.Prefix) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !isTrusted(host, trusted) {
		return host
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if i == 0 || !isTrusted(hop, trusted) {
				return hop
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return host
}

func isTrusted(ip string, trusted []netip.Prefix) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lw *loggingResponseWriter) WriteHeader(code int) {
	lw.statusCode = code
	lw.ResponseWriter.WriteHeader(code)
}
