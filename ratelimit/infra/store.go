package infra

import (
	"context"
	"sync"
	"time"

	"resource-ratelimit/ratelimit/domain"

	"golang.org/x/time/rate"
)

// Store implementa domain.Consumer em memória, delegando o algoritmo de
// token bucket para golang.org/x/time/rate (um rate.Limiter por chave) e
// acrescentando por cima a penalidade de BlockDuration.
//
// A contabilidade é local ao processo: nada de contador distribuído nem
// persistência entre restarts.
type Store struct {
	mu      sync.Mutex
	cfg     domain.Config
	entries map[string]*storeEntry

	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type storeEntry struct {
	lim          *rate.Limiter
	blockedUntil time.Time
	lastSeen     time.Time
}

type StoreOption func(*Store)

func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *Store) { s.cleanupEvery = d }
}

// NewStore cria um Store com a política cfg. Campos zerados de cfg caem nos
// valores de domain.DefaultConfig.
func NewStore(cfg domain.Config, opts ...StoreOption) *Store {
	s := &Store{
		cfg:          domain.DefaultConfig().Merge(cfg),
		entries:      make(map[string]*storeEntry),
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config retorna a política efetiva do Store.
func (s *Store) Config() domain.Config { return s.cfg }

func (s *Store) storageKey(key string) string {
	if s.cfg.KeyPrefix == "" {
		return key
	}
	return s.cfg.KeyPrefix + ":" + key
}

// Consume implementa domain.Consumer. A tentativa é contabilizada mesmo
// quando rejeitada: um bloqueio ativo não zera e, quando a cota esgota com
// BlockDuration > 0, o bloqueio é armado (um bloqueio em curso não é
// estendido por novas rejeições).
func (s *Store) Consume(ctx context.Context, key string, points int) (domain.Usage, error) {
	if err := ctx.Err(); err != nil {
		return domain.Usage{}, err
	}
	if points <= 0 {
		points = 1
	}

	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent := s.entry(s.storageKey(key), now)

	if now.Before(ent.blockedUntil) {
		usage := domain.Usage{MsBeforeNext: ent.blockedUntil.Sub(now).Milliseconds()}
		return domain.Usage{}, &domain.RejectedError{Usage: usage}
	}

	res := ent.lim.ReserveN(now, points)
	if !res.OK() {
		// points maior que a capacidade do bucket: nunca satisfazível
		// nesta janela.
		usage := domain.Usage{MsBeforeNext: int64(s.cfg.Duration) * 1000}
		return domain.Usage{}, &domain.RejectedError{Usage: usage}
	}

	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		ms := delay.Milliseconds()
		if s.cfg.BlockDuration > 0 {
			ent.blockedUntil = now.Add(time.Duration(s.cfg.BlockDuration) * time.Second)
			ms = int64(s.cfg.BlockDuration) * 1000
		}
		return domain.Usage{}, &domain.RejectedError{Usage: domain.Usage{MsBeforeNext: ms}}
	}

	return s.usageAt(ent, now), nil
}

// Get implementa domain.Consumer: lê o uso atual sem consumir.
func (s *Store) Get(ctx context.Context, key string) (domain.Usage, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Usage{}, false, err
	}

	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[s.storageKey(key)]
	if !ok {
		return domain.Usage{}, false, nil
	}

	if now.Before(ent.blockedUntil) {
		return domain.Usage{MsBeforeNext: ent.blockedUntil.Sub(now).Milliseconds()}, true, nil
	}
	return s.usageAt(ent, now), true, nil
}

// Delete implementa domain.Consumer: descarta todo o uso registrado da chave.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, s.storageKey(key))
	return nil
}

func (s *Store) entry(storageKey string, now time.Time) *storeEntry {
	if ent, ok := s.entries[storageKey]; ok {
		ent.lastSeen = now
		return ent
	}

	perSecond := float64(s.cfg.Points) / float64(s.cfg.Duration)
	ent := &storeEntry{
		lim:      rate.NewLimiter(rate.Limit(perSecond), s.cfg.Points),
		lastSeen: now,
	}
	s.entries[storageKey] = ent
	return ent
}

func (s *Store) usageAt(ent *storeEntry, now time.Time) domain.Usage {
	remaining := int(ent.lim.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}

	var msNext int64
	if remaining < s.cfg.Points {
		msNext = int64(float64(s.cfg.Duration) * 1000 / float64(s.cfg.Points))
	}
	return domain.Usage{RemainingPoints: remaining, MsBeforeNext: msNext}
}

// Cleanup remove entradas sem atividade há mais de idleTTL.
func (s *Store) Cleanup() {
	now := time.Now()
	cutoff := now.Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		// entradas bloqueadas ficam até o bloqueio expirar
		if ent.lastSeen.Before(cutoff) && ent.blockedUntil.Before(now) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas
// periodicamente. Pare cancelando o contexto.
func (s *Store) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

var _ domain.Consumer = (*Store)(nil)
