package expiry

import (
	"errors"
	"testing"
	"time"
)

func TestCompute(t *testing.T) {
	t0 := time.Date(2024, 3, 10, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		duration Duration
		wantSecs int64
		wantErr  error
	}{
		{name: "one day", duration: OneDay, wantSecs: 86400},
		{name: "one week", duration: OneWeek, wantSecs: 604800},
		{name: "one month", duration: OneMonth, wantSecs: 2592000},
		{name: "unknown category", duration: "2d", wantErr: ErrUnknownDuration},
		{name: "empty category", duration: "", wantErr: ErrUnknownDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(t0, tt.duration)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Compute() error = %v, want %v", err, tt.wantErr)
				}
				if tt.duration.Valid() {
					t.Errorf("Valid() = true for %q", tt.duration)
				}
				return
			}
			if err != nil {
				t.Fatalf("Compute() unexpected error: %v", err)
			}
			if diff := int64(got.Sub(t0) / time.Second); diff != tt.wantSecs {
				t.Errorf("Compute() - t0 = %d, want %d", diff, tt.wantSecs)
			}
			secs, err := Seconds(tt.duration)
			if err != nil || secs != tt.wantSecs {
				t.Errorf("Seconds() = %d, %v; want %d", secs, err, tt.wantSecs)
			}
		})
	}
}

func TestIsExpired(t *testing.T) {
	expiresAt := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "before expiry", now: expiresAt.Add(-time.Nanosecond), want: false},
		{name: "exactly at expiry", now: expiresAt, want: true},
		{name: "after expiry", now: expiresAt.Add(time.Hour), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsExpired(expiresAt, tt.now); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDurationsAreValid(t *testing.T) {
	for _, d := range Durations() {
		if !d.Valid() {
			t.Errorf("Duration %q reported invalid", d)
		}
	}
}
