package scheduler

import (
	"testing"
	"time"
)

func TestDailyAtWindow(t *testing.T) {
	window := DailyAt(8, 0, time.Minute)

	cases := []struct {
		name string
		now  time.Time
		due  bool
	}{
		{"before target", time.Date(2025, 3, 1, 7, 59, 59, 0, time.UTC), false},
		{"at target", time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC), true},
		{"inside tolerance", time.Date(2025, 3, 1, 8, 0, 59, 0, time.UTC), true},
		{"past tolerance", time.Date(2025, 3, 1, 8, 1, 0, 0, time.UTC), false},
		{"afternoon", time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, due := window(tc.now)
			if due != tc.due {
				t.Fatalf("at %s: due = %v, want %v", tc.now, due, tc.due)
			}
		})
	}

	marker, _ := window(time.Date(2025, 3, 1, 8, 0, 30, 0, time.UTC))
	if marker != "2025-03-01" {
		t.Fatalf("daily marker should be the calendar date, got %q", marker)
	}
	next, _ := window(time.Date(2025, 3, 2, 8, 0, 30, 0, time.UTC))
	if next == marker {
		t.Fatal("consecutive days must yield distinct markers")
	}
}

func TestHourlyAtWindow(t *testing.T) {
	window := HourlyAt(15, time.Minute)

	if _, due := window(time.Date(2025, 3, 1, 9, 14, 59, 0, time.UTC)); due {
		t.Fatal("not due before the minute mark")
	}
	marker, due := window(time.Date(2025, 3, 1, 9, 15, 10, 0, time.UTC))
	if !due || marker != "2025-03-01T09" {
		t.Fatalf("expected due with hour-bucket marker, got due=%v marker=%q", due, marker)
	}
	nextHour, due := window(time.Date(2025, 3, 1, 10, 15, 10, 0, time.UTC))
	if !due || nextHour == marker {
		t.Fatal("the next hour must yield a fresh marker")
	}
}

func TestEveryWindow(t *testing.T) {
	window := Every(10 * time.Minute)

	base := time.Date(2025, 3, 1, 9, 3, 0, 0, time.UTC)
	m1, due := window(base)
	if !due {
		t.Fatal("interval windows are always due")
	}
	m2, _ := window(base.Add(2 * time.Minute))
	if m2 != m1 {
		t.Fatal("instants in the same bucket must share a marker")
	}
	m3, _ := window(base.Add(10 * time.Minute))
	if m3 == m1 {
		t.Fatal("the next bucket must yield a fresh marker")
	}
}
