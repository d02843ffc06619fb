package utils

import (
	"context"
	"testing"
	"time"
)

func TestHeadTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{
			name:   "returns empty when limit non-positive",
			input:  "one two",
			limit:  0,
			expect: "",
		},
		{
			name:   "shorter than limit is unchanged",
			input:  "objective: build reliable services",
			limit:  10,
			expect: "objective: build reliable services",
		},
		{
			name:   "exact token count is unchanged",
			input:  "one two three",
			limit:  3,
			expect: "one two three",
		},
		{
			name:   "keeps head and drops tail",
			input:  "one two three four",
			limit:  2,
			expect: "one two",
		},
		{
			name:   "preserves internal spacing of the head",
			input:  "Summary:\n\nSenior  engineer with experience",
			limit:  3,
			expect: "Summary:\n\nSenior  engineer",
		},
		{
			name:   "handles multibyte runes",
			input:  "résumé für Bewerbung geeignet",
			limit:  2,
			expect: "résumé für",
		},
		{
			name:   "empty input",
			input:  "",
			limit:  5,
			expect: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := HeadTokens(tt.input, tt.limit); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestWaitForZeroDuration(t *testing.T) {
	if err := WaitFor(context.Background(), 0); err != nil {
		t.Fatalf("expected nil error for zero duration, got %v", err)
	}
}

func TestWaitForCancelledContext(t *testing.T) {
	old := sleep
	sleep = func(time.Duration) { time.Sleep(50 * time.Millisecond) }
	defer func() { sleep = old }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := WaitFor(ctx, time.Hour); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWaitForCompletes(t *testing.T) {
	old := sleep
	sleep = func(time.Duration) {}
	defer func() { sleep = old }()

	if err := WaitFor(context.Background(), time.Second); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
