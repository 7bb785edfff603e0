package armbot

import "math"

// Span is a half-open interval [Min, Max) of raw counter values. It is used
// for servo duty bounds, joystick dead zones and the step-size range.
type Span struct {
	Min uint32 `json:"min"`
	Max uint32 `json:"max"`
}

// Contains reports whether v lies inside the interval.
func (s Span) Contains(v uint32) bool {
	return v >= s.Min && v < s.Max
}

// Width returns Max - Min.
func (s Span) Width() uint32 {
	return s.Max - s.Min
}

// Midpoint returns the value halfway between the interval bounds.
func (s Span) Midpoint() uint32 {
	return s.Min + (s.Max-s.Min)/2
}

// MapRange re-maps value from the inclusive interval [fromMin, fromMax] onto
// the inclusive interval [toMin, toMax]. Out-of-range values are clamped
// first, so the result always lies within [toMin, toMax]. With invert set the
// mapping runs downhill: fromMin yields toMax and fromMax yields toMin, which
// lets the same primitive serve both sides of a joystick dead zone.
func MapRange(value, fromMin, fromMax, toMin, toMax uint32, invert bool) uint32 {
	if value < fromMin {
		value = fromMin
	}
	if value > fromMax {
		value = fromMax
	}
	if fromMin >= fromMax {
		// Degenerate source interval: the single representable value is
		// full deflection.
		return toMax
	}

	ratio := float64(toMax-toMin) / float64(fromMax-fromMin)
	to := uint32(math.Round(float64(value-fromMin) * ratio))

	if invert {
		return toMax - to
	}
	return toMin + to
}
