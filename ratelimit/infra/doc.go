// Package infra traz as implementações concretas: o Consumer em memória
// por cima de golang.org/x/time/rate, o pool de vagas baseado em channel e
// os stores de estatísticas (memória e Redis).
package infra
