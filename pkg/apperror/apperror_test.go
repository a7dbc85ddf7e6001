package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf_TypedErrors(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{NotFound("patient %s not found", "x"), KindNotFound},
		{Validation("date of birth is required"), KindValidation},
		{Conflict("measurement already exists"), KindConflict},
		{Internal("query failed", errors.New("boom")), KindInternal},
	}
	for _, c := range cases {
		if got := KindOf(c.err); got != c.want {
			t.Errorf("KindOf(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestKindOf_PlainError(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Errorf("expected plain errors to classify as internal, got %v", got)
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	inner := NotFound("doctor not found")
	wrapped := fmt.Errorf("booking: %w", inner)
	if got := KindOf(wrapped); got != KindNotFound {
		t.Errorf("expected wrapped not_found to survive, got %v", got)
	}
}

func TestIsKind(t *testing.T) {
	err := Conflict("appointment overlaps")
	if !IsKind(err, KindConflict) {
		t.Error("expected IsKind conflict")
	}
	if IsKind(err, KindValidation) {
		t.Error("conflict should not match validation")
	}
	if IsKind(nil, KindInternal) {
		t.Error("nil error should never match a kind")
	}
}

func TestInternal_HidesCauseFromUnwrapChainMessage(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := Internal("failed to load growth standards", cause)
	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to be reachable via errors.Is")
	}
	if err.Message != "failed to load growth standards" {
		t.Errorf("unexpected public message %q", err.Message)
	}
}

func TestKindString(t *testing.T) {
	if KindNotFound.String() != "not_found" || KindConflict.String() != "conflict" {
		t.Error("unexpected kind string")
	}
}
