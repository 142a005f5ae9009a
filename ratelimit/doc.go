// Package ratelimit é o adapter HTTP (net/http) do gate de rate limit.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos (Key, Config, Usage, Consumer) sem net/http
//   - application: casos de uso (check/peek/reset, aquisição de vagas)
//   - infra: implementações concretas (token bucket via x/time/rate,
//     pool de vagas, stores de estatísticas em memória e Redis)
//   - ratelimit (este pacote): derivação de chave a partir da requisição,
//     wrapper de recursos, middleware e tradução para status/headers
//
// Fluxo por requisição:
//
//  1. Deriva a chave (função custom, usuário da sessão ou IP do cliente)
//  2. Consome pontos no Consumer selecionado
//  3. Se a cota esgotou, responde 429 com Retry-After sem rodar o handler
//  4. Se permitido, delega para o handler original
//
// O algoritmo de consumo/reposição e seu storage são da capability externa;
// este pacote só deriva chave e insere o check antes do handler.
package ratelimit
