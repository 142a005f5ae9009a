package application

import (
	"context"
	"errors"

	"resource-ratelimit/ratelimit/domain"
)

// Gate é o caso de uso check-then-proceed: consome pontos de uma chave e
// traduz a rejeição do Consumer na falha estruturada do gate.
//
// Ele não deriva chave nem conhece headers/status; isso fica no adapter HTTP.
type Gate struct {
	Consumer domain.Consumer
	Points   int
}

// Check consome os pontos configurados (Points <= 0 vale 1) da chave.
//
// Esgotamento de cota vira *domain.LimitExceededError com RetryAfter
// calculado a partir do MsBeforeNext da rejeição. Erros de backend passam
// sem tradução: não são esgotamento e o chamador decide o que fazer.
func (g Gate) Check(ctx context.Context, key domain.Key) (domain.Usage, error) {
	if g.Consumer == nil {
		return domain.Usage{}, nil
	}

	points := g.Points
	if points <= 0 {
		points = 1
	}

	usage, err := g.Consumer.Consume(ctx, string(key), points)
	if err != nil {
		var rej *domain.RejectedError
		if errors.As(err, &rej) {
			return rej.Usage, domain.NewLimitExceeded(rej.Usage)
		}
		return domain.Usage{}, err
	}
	return usage, nil
}

// Peek lê o uso atual sem consumir. ok=false quando a chave não tem uso
// registrado; erros de backend são propagados, não confundidos com ausência.
func (g Gate) Peek(ctx context.Context, key domain.Key) (domain.Usage, bool, error) {
	if g.Consumer == nil {
		return domain.Usage{}, false, nil
	}
	return g.Consumer.Get(ctx, string(key))
}

// Reset remove todo o uso registrado da chave.
func (g Gate) Reset(ctx context.Context, key domain.Key) error {
	if g.Consumer == nil {
		return nil
	}
	return g.Consumer.Delete(ctx, string(key))
}
