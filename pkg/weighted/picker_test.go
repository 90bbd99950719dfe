package weighted

import (
	"math"
	"math/rand"
	"testing"
)

func mustPicker(t *testing.T, weights []float64) *Picker {
	t.Helper()
	p, err := NewPickerFromWeights(weights)
	if err != nil {
		t.Fatalf("NewPickerFromWeights(%v) error: %v", weights, err)
	}
	return p
}

func TestPickerTotalWeight(t *testing.T) {
	p := mustPicker(t, []float64{1, 2, 3, 4})
	if got := p.TotalWeight(); math.Abs(got-10) > 1e-9 {
		t.Fatalf("TotalWeight() = %v, want 10", got)
	}

	if err := p.Update(0, 5); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if got := p.TotalWeight(); math.Abs(got-14) > 1e-9 {
		t.Fatalf("TotalWeight() after Update = %v, want 14", got)
	}
	if got := p.Weight(0); math.Abs(got-5) > 1e-9 {
		t.Fatalf("Weight(0) = %v, want 5", got)
	}
}

func TestPickerRejectsInvalidInput(t *testing.T) {
	if _, err := NewPicker(0); err == nil {
		t.Error("容量为0应当报错")
	}
	if _, err := NewPickerFromWeights([]float64{1, -1}); err == nil {
		t.Error("负权重应当报错")
	}

	p := mustPicker(t, []float64{1, 1})
	if err := p.Update(2, 1); err == nil {
		t.Error("越界Update应当报错")
	}
}

func TestPickerFindBoundaries(t *testing.T) {
	p := mustPicker(t, []float64{1, 2, 3})

	// 前缀和为 [1, 3, 6]，Find返回第一个前缀和 >= value 的索引
	tests := []struct {
		value float64
		want  int
	}{
		{0, 0},
		{0.5, 0},
		{1.5, 1},
		{2.99, 1},
		{3.0, 1},
		{3.01, 2},
		{5.99, 2},
		{6.0, 2},
	}
	for _, tt := range tests {
		got, err := p.Find(tt.value)
		if err != nil {
			t.Fatalf("Find(%v) error: %v", tt.value, err)
		}
		if got != tt.want {
			t.Errorf("Find(%v) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestPickerFindOutOfRange(t *testing.T) {
	p := mustPicker(t, []float64{1, 1})
	if _, err := p.Find(-1); err == nil {
		t.Error("Find(-1) should fail")
	}
	if _, err := p.Find(2.5); err == nil {
		t.Error("Find beyond total weight should fail")
	}
}

func TestPickerZeroWeightNeverChosen(t *testing.T) {
	p := mustPicker(t, []float64{1, 0, 1})
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		index, err := p.Find(rng.Float64() * p.TotalWeight())
		if err != nil {
			t.Fatalf("Find error: %v", err)
		}
		if index == 1 {
			t.Fatal("零权重的条目不应被抽中")
		}
	}
}

func TestPickerDistribution(t *testing.T) {
	p := mustPicker(t, []float64{1, 9})
	rng := rand.New(rand.NewSource(7))

	const samples = 100000
	counts := [2]int{}
	for i := 0; i < samples; i++ {
		index, err := p.Find(rng.Float64() * p.TotalWeight())
		if err != nil {
			t.Fatalf("Find error: %v", err)
		}
		counts[index]++
	}

	ratio := float64(counts[1]) / float64(samples)
	if ratio < 0.88 || ratio > 0.92 {
		t.Errorf("权重9/10的条目命中率 = %v, 期望接近0.9", ratio)
	}
}
