package ratelimit

import (
	"net/http"
	"time"

	"resource-ratelimit/ratelimit/application"
	"resource-ratelimit/ratelimit/infra"
)

// Middleware devolve o gate como middleware clássico de net/http, para
// proteger handlers que não seguem o formato de recurso (ex: reverse proxy).
func (l *Limiter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := l.Key(r)
			usage, err := l.check(r, key, l.consumer(), 0)
			if err != nil {
				l.writeLimitError(w, r, err)
				return
			}

			l.setRateLimitHeaders(w, key, usage, l.consumer())
			next.ServeHTTP(w, r)
		})
	}
}

// ConcurrencyOptions configura o limite de requisições em voo.
type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
}

// ConcurrencyMiddleware limita requisições simultâneas. Max <= 0 desliga.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	svc := application.Concurrency{
		Pool:           infra.NewChanPool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
