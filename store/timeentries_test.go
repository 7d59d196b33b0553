package store

import (
	"testing"
	"time"
)

func TestEntryOverlaps(t *testing.T) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }
	ptr := func(t time.Time) *time.Time { return &t }

	cases := []struct {
		name          string
		existingStart time.Time
		existingEnd   *time.Time
		newStart      time.Time
		want          bool
	}{
		{"new start inside closed entry", at(0), ptr(at(2)), at(1), true},
		{"new start at entry start", at(0), ptr(at(2)), at(0), true},
		{"new start at entry end is free", at(0), ptr(at(2)), at(2), false},
		{"new start after entry", at(0), ptr(at(2)), at(3), false},
		{"new start before entry", at(2), ptr(at(4)), at(1), false},
		{"open entry covers everything after start", at(0), nil, at(100), true},
		{"open entry does not cover the past", at(2), nil, at(1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := EntryOverlaps(tc.existingStart, tc.existingEnd, tc.newStart)
			if got != tc.want {
				t.Errorf("EntryOverlaps = %v, want %v", got, tc.want)
			}
		})
	}
}
