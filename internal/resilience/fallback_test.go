package resilience

import (
	"errors"
	"testing"
	"time"
)

func newTestGroup(cfg CircuitBreakerConfig) *FallbackGroup[string] {
	fg := NewFallbackGroup("openai", "openai", FallbackConfig{CircuitBreaker: cfg})
	fg.AddFallback("ollama", "ollama")
	return fg
}

func TestFallbackGroupPrimaryFirst(t *testing.T) {
	fg := newTestGroup(CircuitBreakerConfig{MaxFailures: 3})

	var used string
	err := fg.Execute(func(backend string) error {
		used = backend
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if used != "openai" {
		t.Fatalf("used = %q, want the primary", used)
	}
}

func TestFallbackGroupFailsOver(t *testing.T) {
	fg := newTestGroup(CircuitBreakerConfig{MaxFailures: 3})

	var used string
	err := fg.Execute(func(backend string) error {
		if backend == "openai" {
			return errTest
		}
		used = backend
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if used != "ollama" {
		t.Fatalf("used = %q, want the fallback", used)
	}
}

func TestFallbackGroupAllFail(t *testing.T) {
	fg := newTestGroup(CircuitBreakerConfig{MaxFailures: 3})

	err := fg.Execute(func(string) error { return errTest })
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("Execute() error = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroupSkipsOpenBreaker(t *testing.T) {
	fg := newTestGroup(CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Hour,
	})

	// Trip the primary's breaker.
	for range 2 {
		_ = fg.Execute(func(backend string) error {
			if backend == "openai" {
				return errTest
			}
			return nil
		})
	}

	// With the primary open, calls must not reach it at all.
	var attempts []string
	err := fg.Execute(func(backend string) error {
		attempts = append(attempts, backend)
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(attempts) != 1 || attempts[0] != "ollama" {
		t.Fatalf("attempts = %v, want only the fallback", attempts)
	}
}

func TestExecuteWithResult(t *testing.T) {
	fg := newTestGroup(CircuitBreakerConfig{MaxFailures: 3})

	content, err := ExecuteWithResult(fg, func(backend string) (string, error) {
		return "reply from " + backend, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult() error = %v", err)
	}
	if content != "reply from openai" {
		t.Fatalf("content = %q, want the primary's reply", content)
	}
}

func TestExecuteWithResultFailover(t *testing.T) {
	fg := newTestGroup(CircuitBreakerConfig{MaxFailures: 3})

	content, err := ExecuteWithResult(fg, func(backend string) (string, error) {
		if backend == "openai" {
			return "", errTest
		}
		return "reply from " + backend, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult() error = %v", err)
	}
	if content != "reply from ollama" {
		t.Fatalf("content = %q, want the fallback's reply", content)
	}
}

func TestExecuteWithResultAllFail(t *testing.T) {
	fg := newTestGroup(CircuitBreakerConfig{MaxFailures: 3})

	_, err := ExecuteWithResult(fg, func(string) (string, error) {
		return "", errTest
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("ExecuteWithResult() error = %v, want ErrAllFailed", err)
	}
}
