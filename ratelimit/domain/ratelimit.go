package domain

import "context"

// Key identifica um bucket de rate limit (ex: "ip:1.2.3.4", "user:42").
type Key string

// MaxKeyLen é o tamanho máximo de uma Key. Chaves maiores são truncadas
// (nunca hasheadas): duas entradas que compartilham os primeiros 256
// caracteres colidem e dividem a mesma cota.
const MaxKeyLen = 256

// Config é a política de consumo aplicada por um Consumer.
//
// Imutável por chamada do gate; o Limiter guarda uma cópia como padrão e a
// substitui por inteiro em reconfiguração.
type Config struct {
	// Points é a cota por janela. Deve ser > 0.
	Points int

	// Duration é o tamanho da janela, em segundos. Deve ser > 0.
	Duration int

	// BlockDuration é a penalidade extra (em segundos) depois que a cota
	// esgota. 0 significa "bloqueado apenas até a restauração natural".
	BlockDuration int

	// KeyPrefix separa namespaces dentro do storage do Consumer.
	KeyPrefix string

	// PointsToConsume é quanto cada chamada do gate consome. <= 0 vale 1.
	PointsToConsume int
}

// DefaultConfig retorna a política padrão usada quando nada é configurado.
func DefaultConfig() Config {
	return Config{
		Points:          10,
		Duration:        1,
		BlockDuration:   0,
		KeyPrefix:       "ratelimit",
		PointsToConsume: 1,
	}
}

// Merge aplica os campos não-zero de other por cima de c e retorna o
// resultado. Usado na resolução em tempo de wrap dos recursos.
func (c Config) Merge(other Config) Config {
	out := c
	if other.Points > 0 {
		out.Points = other.Points
	}
	if other.Duration > 0 {
		out.Duration = other.Duration
	}
	if other.BlockDuration > 0 {
		out.BlockDuration = other.BlockDuration
	}
	if other.KeyPrefix != "" {
		out.KeyPrefix = other.KeyPrefix
	}
	if other.PointsToConsume > 0 {
		out.PointsToConsume = other.PointsToConsume
	}
	return out
}

// TrustPolicy controla a leitura de headers de proxy na derivação de chave.
//
// X-Forwarded-For / X-Real-IP são controlados pelo atacante a menos que um
// proxy confiável os reescreva; por isso o padrão é não confiar em nada.
type TrustPolicy struct {
	// TrustProxy habilita a leitura de X-Forwarded-For / X-Real-IP.
	TrustProxy bool

	// TrustedProxyDepth seleciona qual hop da cadeia X-Forwarded-For é o
	// autoritativo, contando a partir da direita (0 = último IP da lista).
	TrustedProxyDepth int
}

// Usage descreve o estado de consumo de uma chave, tanto no caminho de
// sucesso quanto no de rejeição.
type Usage struct {
	// RemainingPoints é quanto resta da cota na janela atual.
	RemainingPoints int

	// MsBeforeNext é quanto falta, em milissegundos, para a cota se
	// restaurar parcialmente.
	MsBeforeNext int64
}

// Consumer é a capability externa que faz a contabilidade de pontos.
//
// A atomicidade por chave é responsabilidade da implementação; o gate não
// impõe ordenação adicional entre chamadas concorrentes.
type Consumer interface {
	// Consume debita points da chave. Quando a cota esgota retorna
	// *RejectedError carregando o Usage da rejeição; qualquer outro erro é
	// falha de backend e não significa esgotamento. A tentativa é
	// contabilizada mesmo quando rejeitada.
	Consume(ctx context.Context, key string, points int) (Usage, error)

	// Get lê o uso atual sem consumir. ok=false quando a chave não tem uso
	// registrado.
	Get(ctx context.Context, key string) (usage Usage, ok bool, err error)

	// Delete remove todo o uso registrado da chave.
	Delete(ctx context.Context, key string) error
}
