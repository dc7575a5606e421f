package pagination

import "testing"

func TestNormalizeLimit(t *testing.T) {
	if got := NormalizeLimit(0); got != DefaultLimit {
		t.Fatalf("expected default limit, got %d", got)
	}
	if got := NormalizeLimit(-3); got != DefaultLimit {
		t.Fatalf("expected default limit for negative input, got %d", got)
	}
	if got := NormalizeLimit(MaxLimit + 50); got != MaxLimit {
		t.Fatalf("expected cap at max limit, got %d", got)
	}
	if got := NormalizeLimit(10); got != 10 {
		t.Fatalf("expected passthrough, got %d", got)
	}
}

func TestParamsNormalize(t *testing.T) {
	params := Params{Limit: -1, Offset: -20}.Normalize()
	if params.Limit != DefaultLimit {
		t.Fatalf("expected default limit, got %d", params.Limit)
	}
	if params.Offset != 0 {
		t.Fatalf("expected zero offset, got %d", params.Offset)
	}
}
