package domain

import "fmt"

// TooManyRequestsMessage é a mensagem fixa exposta ao cliente quando a cota
// esgota.
const TooManyRequestsMessage = "Too many requests. Please try again later."

// RejectedError é a rejeição de cota no nível do Consumer.
//
// Distingue esgotamento de cota de erros de backend (storage fora do ar,
// contexto cancelado, etc.), que chegam como erros comuns.
type RejectedError struct {
	Usage Usage
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rate limit rejected: retry in %dms", e.Usage.MsBeforeNext)
}

// LimitExceededError é a falha estruturada que o gate propaga ao chamador.
type LimitExceededError struct {
	Message    string
	StatusCode int
	// RetryAfter em segundos inteiros, >= 1 sempre que MsBeforeNext > 0.
	RetryAfter int
	Usage      Usage
}

// NewLimitExceeded monta o erro 429 a partir do Usage da rejeição.
func NewLimitExceeded(usage Usage) *LimitExceededError {
	retryAfter := int((usage.MsBeforeNext + 999) / 1000)
	return &LimitExceededError{
		Message:    TooManyRequestsMessage,
		StatusCode: 429,
		RetryAfter: retryAfter,
		Usage:      usage,
	}
}

func (e *LimitExceededError) Error() string { return e.Message }
