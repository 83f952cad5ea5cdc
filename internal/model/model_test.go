package model

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestSplitLocation(t *testing.T) {
	tests := []struct {
		location, offset, primary string
	}{
		{"12km NE of Example City", "12km NE of", "Example City"},
		{"Example Town", "Near the", "Example Town"},
		{"5 km S of Volcano, Hawaii", "5 km S of", "Volcano, Hawaii"},
		{"", "Near the", ""},
	}
	for _, tt := range tests {
		offset, primary := EventRecord{Location: tt.location}.SplitLocation()
		if offset != tt.offset || primary != tt.primary {
			t.Errorf("SplitLocation(%q) = (%q, %q), want (%q, %q)", tt.location, offset, primary, tt.offset, tt.primary)
		}
	}
}

func TestEventRecordTime(t *testing.T) {
	e := EventRecord{TimeMillis: 1700000000000}
	want := time.Date(2023, time.November, 14, 22, 13, 20, 0, time.UTC)
	if got := e.Time(); !got.Equal(want) || got.Location() != time.UTC {
		t.Fatalf("Time() = %v, want %v", got, want)
	}
}

func TestLoadErrorClassification(t *testing.T) {
	err := fmt.Errorf("load: %w", &LoadError{Reason: HTTPError, Status: 503})

	if !errors.Is(err, ErrHTTP) {
		t.Fatal("expected errors.Is to match ErrHTTP")
	}
	if !errors.Is(err, &LoadError{Reason: HTTPError, Status: 503}) {
		t.Fatal("expected errors.Is to match status 503")
	}
	if errors.Is(err, &LoadError{Reason: HTTPError, Status: 404}) {
		t.Fatal("did not expect status 404 to match")
	}
	if errors.Is(err, ErrTimeout) {
		t.Fatal("did not expect timeout to match")
	}
	if got := ReasonOf(err); got != HTTPError {
		t.Fatalf("ReasonOf = %v, want %v", got, HTTPError)
	}
	if got := ReasonOf(errors.New("plain")); got != ReasonUnknown {
		t.Fatalf("ReasonOf(plain) = %v, want unknown", got)
	}
	if got := err.Error(); got != "load: http_error 503" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestEmptyResult(t *testing.T) {
	r := Empty()
	if r.Failed() {
		t.Fatal("empty result should not be a failure")
	}
	if r.Records == nil || len(r.Records) != 0 {
		t.Fatalf("expected non-nil empty records, got %#v", r.Records)
	}
}
