package ml

import "testing"

func TestScheduleRate(t *testing.T) {
	var s = Schedule{{0, 0.1}, {1000, 0.05}, {5000, 0.01}}
	tests := []struct {
		step int
		want float64
	}{
		{0, 0.1},
		{999, 0.1},
		{1000, 0.05},
		{4999, 0.05},
		{5000, 0.01},
		{1_000_000, 0.01},
	}
	for _, tt := range tests {
		if got := s.Rate(tt.step); got != tt.want {
			t.Errorf("Rate(%v) = %v, want %v", tt.step, got, tt.want)
		}
	}

	var late = Schedule{{100, 0.5}}
	if got := late.Rate(10); got != DefaultRate {
		t.Errorf("Rate before first threshold = %v, want %v", got, DefaultRate)
	}
	if got := Schedule(nil).Rate(10); got != DefaultRate {
		t.Errorf("empty schedule rate = %v, want %v", got, DefaultRate)
	}
}
