package utils

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestKindOfWrappedErrors(t *testing.T) {
	base := errors.New("disk I/O error")
	err := fmt.Errorf("evaluate: %w", DataAccessError("repo.History", "query history", base))

	if KindOf(err) != KindDataAccess {
		t.Fatalf("expected data access kind, got %s", KindOf(err))
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected underlying error to be preserved")
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Fatalf("expected plain errors to classify as internal")
	}
	if KindOf(ConfigError("policy", "bad", nil)) != KindConfig {
		t.Fatalf("expected config kind")
	}
	if got := NotFoundError("repo.GetPolicy", "threshold not found").Error(); got != "repo.GetPolicy: threshold not found" {
		t.Fatalf("unexpected message: %s", got)
	}
}

func TestParseWindow(t *testing.T) {
	cases := map[string]time.Duration{
		"3600":  time.Hour,
		"720h":  720 * time.Hour,
		" 90m ": 90 * time.Minute,
	}
	for input, want := range cases {
		got, err := ParseWindow(input)
		if err != nil {
			t.Fatalf("ParseWindow(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseWindow(%q) = %v, want %v", input, got, want)
		}
	}
	if _, err := ParseWindow("soon"); err == nil {
		t.Fatalf("expected error for invalid window")
	}
}
