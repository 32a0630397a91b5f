package fees

import "testing"

func TestApplicationFee_KnownAmount(t *testing.T) {
	// 10000 öre: round(10000*0.015)+180 + round(10000*0.05)+50 = 880
	got := Default.ApplicationFee(10000)
	if got != 880 {
		t.Fatalf("expected application fee 880, got %d", got)
	}
}

func TestProcessorFee_KnownAmount(t *testing.T) {
	if got := Default.ProcessorFee(10000); got != 330 {
		t.Fatalf("expected processor fee 330, got %d", got)
	}
}

func TestPlatformFee_KnownAmount(t *testing.T) {
	if got := Default.PlatformFee(10000); got != 550 {
		t.Fatalf("expected platform fee 550, got %d", got)
	}
}

func TestApplicationFee_Deterministic(t *testing.T) {
	a := Default.ApplicationFee(12345)
	b := Default.ApplicationFee(12345)
	if a != b {
		t.Fatalf("expected deterministic result, got %d and %d", a, b)
	}
}

func TestApplicationFee_MonotonicNonDecreasing(t *testing.T) {
	prev := Default.ApplicationFee(0)
	for amount := int64(1); amount <= 50000; amount += 7 {
		fee := Default.ApplicationFee(amount)
		if fee < prev {
			t.Fatalf("fee decreased: ApplicationFee(%d)=%d < %d", amount, fee, prev)
		}
		prev = fee
	}
}

func TestRoundBps_HalfUp(t *testing.T) {
	tests := []struct {
		amount int64
		bps    int64
		want   int64
	}{
		{100, 150, 2},   // 1.5 rounds to 2
		{100, 140, 1},   // 1.4 rounds to 1
		{0, 150, 0},     // zero amount
		{10000, 500, 500},
	}
	for _, tt := range tests {
		if got := roundBps(tt.amount, tt.bps); got != tt.want {
			t.Fatalf("roundBps(%d,%d)=%d, want %d", tt.amount, tt.bps, got, tt.want)
		}
	}
}

func TestZeroSchedule(t *testing.T) {
	var s Schedule
	if got := s.ApplicationFee(10000); got != 0 {
		t.Fatalf("expected 0 for zero schedule, got %d", got)
	}
}
