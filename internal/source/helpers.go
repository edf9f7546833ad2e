package source

import (
	"strings"
	"time"
)

func defaultDur(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

// bodyHead trims b to n bytes for error messages.
func bodyHead(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return strings.TrimSpace(string(b))
}
