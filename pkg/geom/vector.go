package geom

import "math"

// Vector is a 2D point or direction in arena coordinates.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vector) Add(other Vector) Vector {
	return Vector{X: v.X + other.X, Y: v.Y + other.Y}
}

func (v Vector) Sub(other Vector) Vector {
	return Vector{X: v.X - other.X, Y: v.Y - other.Y}
}

func (v Vector) Scale(s float64) Vector {
	return Vector{X: v.X * s, Y: v.Y * s}
}

func (v Vector) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

// DistanceTo returns the euclidean distance between two points.
func (v Vector) DistanceTo(other Vector) float64 {
	return v.Sub(other).Length()
}

// Normalize returns a unit-length vector in the same direction.
// The zero vector is returned unchanged.
func (v Vector) Normalize() Vector {
	length := v.Length()
	if length == 0 {
		return v
	}
	return v.Scale(1 / length)
}
