package utils

import (
	"context"
	"strings"
	"time"
	"unicode"
)

var sleep = time.Sleep

// WaitFor sleeps for d unless the context is cancelled first.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// HeadTokens returns the prefix of s spanning at most n whitespace-delimited
// tokens. The spacing of the kept head is preserved so downstream tokenizers
// see the document start exactly as written. Text within the limit is
// returned unchanged.
func HeadTokens(s string, n int) string {
	if n <= 0 {
		return ""
	}

	inToken := false
	count := 0
	for i, r := range s {
		if unicode.IsSpace(r) {
			inToken = false
			continue
		}
		if !inToken {
			inToken = true
			count++
			if count > n {
				return strings.TrimRightFunc(s[:i], unicode.IsSpace)
			}
		}
	}

	return s
}
