package reactive

import (
	"math"
	"testing"
)

func TestEquals(t *testing.T) {
	type point struct{ X, Y int }
	p := &point{1, 2}

	tests := []struct {
		name string
		eq   bool
		want bool
	}{
		{"ints", Equals(1, 1), true},
		{"different ints", Equals(1, 2), false},
		{"strings", Equals("a", "a"), true},
		{"NaN", Equals(math.NaN(), math.NaN()), false},
		{"structs", Equals(point{1, 2}, point{1, 2}), true},
		{"same pointer", Equals(p, p), true},
		{"equal slices", Equals([]int{1, 2}, []int{1, 2}), true},
		{"maps", Equals(map[string]int{"a": 1}, map[string]int{"a": 2}), false},
		{"nil interfaces", Equals[any](nil, nil), true},
		{"nil and value", Equals[any](nil, 1), false},
		{"mixed dynamic types", Equals[any](1, "1"), false},
		{"int and int64", Equals[any](1, int64(1)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.eq != tt.want {
				t.Errorf("expected %v, got %v", tt.want, tt.eq)
			}
		})
	}
}

func TestSafeEquals(t *testing.T) {
	type point struct{ X, Y int }
	p := &point{1, 2}
	s := []int{1}

	tests := []struct {
		name string
		eq   bool
		want bool
	}{
		{"ints", SafeEquals(1, 1), true},
		{"NaN", SafeEquals(math.NaN(), math.NaN()), true},
		{"structs", SafeEquals(point{1, 2}, point{1, 2}), true},
		{"same pointer", SafeEquals(p, p), false},
		{"same slice", SafeEquals(s, s), false},
		{"nil interfaces", SafeEquals[any](nil, nil), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.eq != tt.want {
				t.Errorf("expected %v, got %v", tt.want, tt.eq)
			}
		})
	}
}
