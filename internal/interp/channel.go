package interp

import (
	gointerp "gonum.org/v1/gonum/interp"
)

// channel is one interpolated component.
// Inside [xs[0], xs[n-1]] it is the piecewise-linear interpolant through the
// samples; outside it extends the first or last segment.
type channel struct {
	fit       gointerp.PiecewiseLinear
	headSlope float64
	tailSlope float64
	x0, y0    float64
	xn, yn    float64
}

// newChannel fits xs, ys. xs must be strictly increasing with len >= 2.
func newChannel(xs, ys []float64) *channel {
	c := &channel{}
	// Fit only fails by panicking on invalid xs, which Build has ruled out.
	_ = c.fit.Fit(xs, ys)
	n := len(xs)
	c.x0, c.y0 = xs[0], ys[0]
	c.xn, c.yn = xs[n-1], ys[n-1]
	c.headSlope = (ys[1] - ys[0]) / (xs[1] - xs[0])
	c.tailSlope = (ys[n-1] - ys[n-2]) / (xs[n-1] - xs[n-2])
	return c
}

func (c *channel) at(t float64) float64 {
	switch {
	case t < c.x0:
		return c.y0 + c.headSlope*(t-c.x0)
	case t > c.xn:
		return c.yn + c.tailSlope*(t-c.xn)
	}
	return c.fit.Predict(t)
}

// gradient differentiates ys with respect to xs: central differences on
// interior samples (second order on uneven spacing) and one-sided
// differences at the two ends.
func gradient(xs, ys []float64) []float64 {
	n := len(xs)
	g := make([]float64, n)
	g[0] = (ys[1] - ys[0]) / (xs[1] - xs[0])
	g[n-1] = (ys[n-1] - ys[n-2]) / (xs[n-1] - xs[n-2])
	for i := 1; i < n-1; i++ {
		h1 := xs[i] - xs[i-1]
		h2 := xs[i+1] - xs[i]
		g[i] = (h1*h1*ys[i+1] - h2*h2*ys[i-1] + (h2*h2-h1*h1)*ys[i]) / (h1 * h2 * (h1 + h2))
	}
	return g
}
