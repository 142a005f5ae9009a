package ratelimit

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"resource-ratelimit/ratelimit/application"
	"resource-ratelimit/ratelimit/domain"
	"resource-ratelimit/ratelimit/infra"
)

// Options configura um Limiter. É o objeto de contexto explícito: nada de
// estado global de processo; cada teste ou componente cria o seu.
type Options struct {
	// Defaults é a política usada pelo consumer padrão e como base dos
	// merges em tempo de wrap. Campos zerados caem em domain.DefaultConfig.
	Defaults domain.Config

	// Trust controla a leitura de headers de proxy na derivação de chave.
	Trust domain.TrustPolicy

	// KeyFunc, quando presente, substitui toda a derivação de chave.
	KeyFunc KeyFunc

	// ByUser prefere "user:<id>" quando a requisição carrega usuário de
	// sessão (via WithUser ou UserFunc).
	ByUser bool

	// UserFunc substitui a busca padrão de usuário no contexto.
	UserFunc UserFunc

	// Consumer explícito. Quando nil, um infra.Store é construído
	// preguiçosamente a partir de Defaults no primeiro uso.
	Consumer domain.Consumer

	// Stats registra decisões allow/deny, best-effort.
	Stats domain.StatsStore

	// Logger recebe avisos de falha de stats e de backend. Pode ser nil.
	Logger *slog.Logger

	// AddRateLimitHeaders liga os headers X-RateLimit-* nas respostas do
	// middleware e do wrapper.
	AddRateLimitHeaders bool
}

// Limiter amarra derivação de chave, gate e consumer padrão.
type Limiter struct {
	opts Options

	mu       sync.Mutex
	defaults domain.Config
	lazy     domain.Consumer
}

// New cria um Limiter a partir das opções.
func New(opts Options) *Limiter {
	return &Limiter{
		opts:     opts,
		defaults: domain.DefaultConfig().Merge(opts.Defaults),
	}
}

// Defaults retorna a política padrão vigente.
func (l *Limiter) Defaults() domain.Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.defaults
}

// Configure substitui a política padrão por inteiro e descarta o consumer
// construído preguiçosamente (reconstruído no próximo uso). Consumers
// criados explicitamente antes da reconfiguração mantêm sua política e sua
// contabilidade.
func (l *Limiter) Configure(cfg domain.Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.defaults = domain.DefaultConfig().Merge(cfg)
	l.lazy = nil
}

// consumer seleciona a capability: a explícita das opções, senão a padrão
// construída sob demanda.
func (l *Limiter) consumer() domain.Consumer {
	if l.opts.Consumer != nil {
		return l.opts.Consumer
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lazy == nil {
		l.lazy = infra.NewStore(l.defaults)
	}
	return l.lazy
}

// Key deriva a chave desta requisição conforme as opções do Limiter.
func (l *Limiter) Key(r *http.Request) domain.Key {
	return DeriveKey(r, l.opts)
}

// Check deriva a chave e consome pontos do consumer padrão. Retorna
// *domain.LimitExceededError quando a cota esgota; o consumer já registrou a
// tentativa nesse caso.
func (l *Limiter) Check(r *http.Request) (domain.Usage, error) {
	return l.check(r, l.Key(r), l.consumer(), 0)
}

// Peek lê o uso atual da chave sem consumir. ok=false quando não há uso
// registrado.
func (l *Limiter) Peek(r *http.Request) (domain.Usage, bool, error) {
	gate := application.Gate{Consumer: l.consumer()}
	return gate.Peek(r.Context(), l.Key(r))
}

// Reset apaga o uso registrado da chave derivada desta requisição.
func (l *Limiter) Reset(r *http.Request) error {
	gate := application.Gate{Consumer: l.consumer()}
	return gate.Reset(r.Context(), l.Key(r))
}

func (l *Limiter) check(r *http.Request, key domain.Key, consumer domain.Consumer, points int) (domain.Usage, error) {
	if points <= 0 {
		points = l.Defaults().PointsToConsume
	}

	gate := application.Gate{Consumer: consumer, Points: points}
	usage, err := gate.Check(r.Context(), key)

	var exceeded *domain.LimitExceededError
	decided := err == nil || errors.As(err, &exceeded)

	if l.opts.Stats != nil && decided {
		ev := domain.StatsEvent{
			Key:     key,
			Allowed: err == nil,
			Method:  r.Method,
			Path:    r.URL.Path,
			At:      time.Now(),
		}
		if serr := l.opts.Stats.Record(r.Context(), ev); serr != nil && l.opts.Logger != nil {
			l.opts.Logger.Warn("rate limit stats record failed", "error", serr, "key", string(key))
		}
	}

	return usage, err
}

// writeLimitError traduz a falha do gate para a resposta HTTP: 429 com
// Retry-After para cota esgotada, 500 para falha de backend (que não é
// esgotamento e não deve se passar por um).
func (l *Limiter) writeLimitError(w http.ResponseWriter, r *http.Request, err error) {
	var exceeded *domain.LimitExceededError
	if errors.As(err, &exceeded) {
		w.Header().Set("Retry-After", formatInt(exceeded.RetryAfter))
		http.Error(w, exceeded.Message, exceeded.StatusCode)
		return
	}

	if l.opts.Logger != nil {
		l.opts.Logger.Error("rate limit backend failure",
			"error", err,
			"path", r.URL.Path,
			"method", r.Method,
		)
	}
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// policyInfo é opcional no Consumer; quando presente, alimenta o header
// X-RateLimit-Limit.
type policyInfo interface {
	Config() domain.Config
}

func (l *Limiter) setRateLimitHeaders(w http.ResponseWriter, key domain.Key, usage domain.Usage, consumer domain.Consumer) {
	if !l.opts.AddRateLimitHeaders {
		return
	}
	w.Header().Set("X-RateLimit-Key", string(key))
	w.Header().Set("X-RateLimit-Remaining", formatInt(usage.RemainingPoints))
	if pi, ok := consumer.(policyInfo); ok {
		w.Header().Set("X-RateLimit-Limit", formatInt(pi.Config().Points))
	}
}
