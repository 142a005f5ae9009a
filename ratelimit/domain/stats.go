package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão do gate (allow/deny) para registro
// best-effort.
//
// Method/Path são strings genéricas; cuidado com cardinalidade ao gravar
// Key/Path sem controle em bases como Redis.
type StatsEvent struct {
	Key     Key
	Allowed bool

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência das estatísticas de decisão.
//
// O adapter HTTP trata erro como best-effort: loga e segue, nunca derruba a
// requisição.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}

// SlotPool representa um recurso de capacidade finita (requisições em voo).
//
// Acquire bloqueia até conseguir vaga ou até o ctx encerrar; a função de
// release retornada deve ser chamada exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
