package pattern

import "time"

// ConstantPattern holds a fixed rate.
type ConstantPattern struct {
	rate float64
}

// NewConstant creates a constant rate pattern.
func NewConstant(rate float64) *ConstantPattern {
	return &ConstantPattern{rate: rate}
}

// Name returns the pattern identifier.
func (c *ConstantPattern) Name() Name {
	return Constant
}

// Rate returns the constant rate regardless of elapsed time.
func (c *ConstantPattern) Rate(time.Duration) float64 {
	return c.rate
}
