// Package application contém os casos de uso do rate limit (check/peek/reset
// e aquisição de vagas de concorrência), sem saber nada de HTTP.
package application
