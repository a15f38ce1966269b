package logging

import "testing"

func TestNewProgressSamplerDefaults(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		want       float64
	}{
		{"zero", 0, 5},
		{"negative", -1, 5},
		{"custom", 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.want {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.want)
			}
		})
	}
}

func TestProgressSamplerNil(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(1, 10, "search") {
		t.Error("nil sampler should always log")
	}
	s.Reset()
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(10)
	steps := []struct {
		done int
		want bool
	}{
		{0, true},
		{5, false},
		{10, true},
		{19, false},
		{20, true},
		{100, true},
		{120, false},
	}
	for _, step := range steps {
		if got := s.ShouldLog(step.done, 100, "search"); got != step.want {
			t.Errorf("ShouldLog(%d/100) = %v, want %v", step.done, got, step.want)
		}
	}
}

func TestProgressSamplerPhaseChangeResetsBucket(t *testing.T) {
	s := NewProgressSampler(5)
	s.ShouldLog(50, 100, "search")
	if !s.ShouldLog(0, 100, " stabilize ") {
		t.Fatal("phase change should log")
	}
	if s.lastPhase != "stabilize" {
		t.Fatalf("lastPhase = %q, want trimmed phase", s.lastPhase)
	}
	if !s.ShouldLog(10, 100, "stabilize") {
		t.Fatal("bucket should restart after phase change")
	}
}

func TestProgressSamplerUnknownTotal(t *testing.T) {
	s := NewProgressSampler(5)
	if !s.ShouldLog(3, 0, "search") {
		t.Fatal("first phase should log")
	}
	if s.ShouldLog(4, 0, "search") {
		t.Fatal("unknown total should only log phase changes")
	}
	s.Reset()
	if !s.ShouldLog(4, 0, "search") {
		t.Fatal("reset should clear phase")
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		done, total int
		want        float64
	}{
		{0, 10, 0},
		{5, 10, 50},
		{12, 10, 100},
		{3, 0, 0},
	}
	for _, tt := range tests {
		if got := Percent(tt.done, tt.total); got != tt.want {
			t.Errorf("Percent(%d, %d) = %v, want %v", tt.done, tt.total, got, tt.want)
		}
	}
}
