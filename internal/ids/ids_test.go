package ids

import (
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestStampSortsByTime(t *testing.T) {
	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	a, err := Stamp(base)
	if err != nil {
		t.Fatalf("stamp: %v", err)
	}
	b, err := Stamp(base.Add(time.Hour))
	if err != nil {
		t.Fatalf("stamp: %v", err)
	}
	if a >= b {
		t.Fatalf("expected %s < %s", a, b)
	}
}

func TestStampRejectsFarFuture(t *testing.T) {
	_, err := Stamp(time.Date(12000, 1, 1, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, ulid.ErrBigTime) {
		t.Fatalf("expected ErrBigTime, got %v", err)
	}
}
