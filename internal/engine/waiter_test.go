//go:build linux

package engine

import (
	"testing"
	"time"
)

func TestDurationToPollMillisRoundsUp(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Millisecond, 1},
		{1500 * time.Microsecond, 2},
		{10 * time.Millisecond, 10},
	}
	for _, c := range cases {
		if got := durationToPollMillis(c.d); got != c.want {
			t.Errorf("durationToPollMillis(%v) = %d, want %d", c.d, got, c.want)
		}
	}
}
