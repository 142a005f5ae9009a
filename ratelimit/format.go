// formatação rápida de inteiros para headers, sem puxar fmt.
package ratelimit

import "strconv"

func formatInt(v int) string { return strconv.Itoa(v) }
