package model

import "math"

// Vec2 is a position or offset in million-kilometre units (Mkm).
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(k float64) Vec2 { return Vec2{v.X * k, v.Y * k} }
func (v Vec2) Dot(o Vec2) float64 { return v.X*o.X + v.Y*o.Y }
func (v Vec2) Length() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y) }
func (v Vec2) LengthSq() float64 { return v.X*v.X + v.Y*v.Y }
func (v Vec2) DistTo(o Vec2) float64 { return v.Sub(o).Length() }

// Normalized returns the unit vector, or the zero vector when v is too short
// to have a direction.
func (v Vec2) Normalized() Vec2 {
	l := v.Length()
	if !(l > 1e-12) {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Y / l}
}
