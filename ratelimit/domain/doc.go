// Package domain define contratos e tipos do rate limit, sem dependência
// de net/http e sem conhecer a implementação do algoritmo.
package domain
