package application

import (
	"context"
	"time"

	"resource-ratelimit/ratelimit/domain"
)

// Concurrency concentra a regra de aquisição/liberação de vagas com timeout.
type Concurrency struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
//   - AcquireTimeout <= 0: espera até o ctx cancelar.
//   - AcquireTimeout > 0: espera até o timeout.
//
// Retorna (release, ok). Se ok=false, nenhuma vaga foi adquirida.
func (c Concurrency) Acquire(ctx context.Context) (func(), bool) {
	if c.Pool == nil {
		return func() {}, true
	}

	if c.AcquireTimeout <= 0 {
		return c.Pool.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, c.AcquireTimeout)
	defer cancel()
	return c.Pool.Acquire(acqCtx)
}
