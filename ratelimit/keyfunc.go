package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"

	"resource-ratelimit/ratelimit/domain"
)

// KeyFunc produz uma chave totalmente customizada a partir da requisição.
// O resultado ainda passa pela truncagem de domain.MaxKeyLen.
type KeyFunc func(r *http.Request) string

// UserFunc identifica o usuário da sessão. ok=false quando a requisição não
// carrega usuário autenticado.
type UserFunc func(r *http.Request) (id string, ok bool)

type userCtxKey struct{}

// WithUser anota o usuário autenticado no contexto da requisição. É o que um
// middleware de autenticação chama antes do gate.
func WithUser(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userCtxKey{}, id)
}

// UserFrom recupera o usuário anotado por WithUser.
func UserFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userCtxKey{}).(string)
	return id, ok && id != ""
}

// TruncateKey corta a chave em domain.MaxKeyLen caracteres. Truncada, não
// hasheada: entradas longas com o mesmo prefixo colidem de propósito.
func TruncateKey(s string) domain.Key {
	if len(s) > domain.MaxKeyLen {
		s = s[:domain.MaxKeyLen]
	}
	return domain.Key(s)
}

// DeriveKey computa a chave do rate limit. Precedência, primeira que casar:
//
//  1. KeyFunc customizada
//  2. ByUser e a requisição carrega usuário de sessão -> "user:<id>"
//  3. "ip:<ip do cliente>" conforme a TrustPolicy
func DeriveKey(r *http.Request, opts Options) domain.Key {
	if opts.KeyFunc != nil {
		return TruncateKey(opts.KeyFunc(r))
	}

	if opts.ByUser {
		userFn := opts.UserFunc
		if userFn == nil {
			userFn = func(r *http.Request) (string, bool) { return UserFrom(r.Context()) }
		}
		if id, ok := userFn(r); ok {
			return TruncateKey("user:" + id)
		}
	}

	return TruncateKey("ip:" + ClientIP(r, opts.Trust))
}

// ClientIP resolve o IP do cliente.
//
// Com TrustProxy=false os headers de proxy nunca são lidos: vale o endereço
// da conexão, ou "unknown" quando ausente. Com TrustProxy=true, a cadeia
// X-Forwarded-For é percorrida TrustedProxyDepth posições a partir da
// direita; índice fora da lista ou entrada vazia caem para X-Real-IP e, por
// fim, para o endereço da conexão.
func ClientIP(r *http.Request, trust domain.TrustPolicy) string {
	if trust.TrustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			idx := len(parts) - 1 - trust.TrustedProxyDepth
			if idx >= 0 && idx < len(parts) {
				if ip := strings.TrimSpace(parts[idx]); ip != "" {
					return ip
				}
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}

	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return "unknown"
	}

	host, _, err := net.SplitHostPort(addr)
	if err == nil && host != "" {
		return host
	}
	return addr
}
