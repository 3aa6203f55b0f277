package util

import "testing"

func TestClampBarWidth(t *testing.T) {
	tests := []struct {
		width    int
		expected int
	}{
		{0, minBarWidth},
		{5, minBarWidth},
		{26, 26},
		{40, 40},
		{120, maxBarWidth},
	}

	for _, tt := range tests {
		if got := clampBarWidth(tt.width); got != tt.expected {
			t.Errorf("clampBarWidth(%d) = %d, expected %d", tt.width, got, tt.expected)
		}
	}
}

func TestBarWidth(t *testing.T) {
	w := BarWidth()
	if w < minBarWidth || w > maxBarWidth {
		t.Errorf("BarWidth() = %d, expected between %d and %d", w, minBarWidth, maxBarWidth)
	}
}
