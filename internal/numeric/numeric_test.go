package numeric

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpolate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		x      []float64
		xs, ys []float64
		want   []float64
	}{
		{
			name: "interior and exact points",
			x:    []float64{400, 425, 450, 500},
			xs:   []float64{400, 450, 500},
			ys:   []float64{0.1, 0.2, 0.4},
			want: []float64{0.1, 0.15, 0.2, 0.4},
		},
		{
			name: "zero fill outside domain",
			x:    []float64{300, 399.9, 500.1, 900},
			xs:   []float64{400, 500},
			ys:   []float64{1, 1},
			want: []float64{0, 0, 0, 0},
		},
		{
			name: "empty source",
			x:    []float64{1, 2},
			want: []float64{0, 0},
		},
		{
			name: "single point source",
			x:    []float64{9, 10, 11},
			xs:   []float64{10},
			ys:   []float64{3},
			want: []float64{0, 3, 0},
		},
		{
			name: "unsorted source",
			x:    []float64{15},
			xs:   []float64{20, 10},
			ys:   []float64{2, 1},
			want: []float64{1.5},
		},
		{
			name: "no queries",
			xs:   []float64{1, 2},
			ys:   []float64{1, 2},
			want: []float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Interpolate(tt.x, tt.xs, tt.ys)
			assert.InDeltaSlice(t, tt.want, got, 1e-12)
		})
	}
}

func TestInterpolateDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	xs := []float64{3, 1, 2}
	ys := []float64{30, 10, 20}
	Interpolate([]float64{1.5}, xs, ys)
	assert.Equal(t, []float64{3, 1, 2}, xs)
	assert.Equal(t, []float64{30, 10, 20}, ys)
}

func TestTrapezoid(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.0, Trapezoid(nil, nil), 0)
	assert.InDelta(t, 0.0, Trapezoid([]float64{1}, []float64{5}), 0)
	// y = x over [0, 2]
	assert.InDelta(t, 2.0, Trapezoid([]float64{0, 1, 2}, []float64{0, 1, 2}), 1e-12)
	// non-uniform grid, constant 2 over [0, 10]
	assert.InDelta(t, 20.0, Trapezoid([]float64{0, 1, 5, 10}, []float64{2, 2, 2, 2}), 1e-12)
	// unsorted input is reordered
	assert.InDelta(t, 2.0, Trapezoid([]float64{2, 0, 1}, []float64{2, 0, 1}), 1e-12)
}

func TestTrapezoidProduct(t *testing.T) {
	t.Parallel()

	x := []float64{0, 1, 2}
	assert.InDelta(t, Trapezoid(x, []float64{0, 2, 8}),
		TrapezoidProduct(x, []float64{0, 1, 2}, []float64{1, 2, 4}), 1e-12)
	assert.InDelta(t, 0.0, TrapezoidProduct(x[:1], []float64{1}, []float64{1}), 0)
}

func TestMul(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []float64{2, 6}, Mul([]float64{1, 2, 3}, []float64{2, 3}))
}
