package engine

import (
	"math"

	"nebula4x.dev/internal/sim/model"
)

const twoPi = 2 * math.Pi

// recomputeBodyPositions places every body on its Kepler orbit for the
// current date. Moons are offset from their parent; parent cycles collapse to
// the system origin.
func (s *Simulation) recomputeBodyPositions() {
	st := s.state
	t := float64(st.Date.DaysSinceEpoch()) + float64(min(max(st.HourOfDay, 0), 23))/24

	cache := make(map[model.ID]model.Vec2, len(st.Bodies))
	visiting := map[model.ID]bool{}

	var pos func(id model.ID) model.Vec2
	pos = func(id model.ID) model.Vec2 {
		if v, ok := cache[id]; ok {
			return v
		}
		b := st.Bodies[id]
		if b == nil || visiting[id] {
			cache[id] = model.Vec2{}
			return model.Vec2{}
		}
		visiting[id] = true
		center := model.Vec2{}
		if b.ParentBodyID != model.InvalidID && b.ParentBodyID != id {
			if p := st.Bodies[b.ParentBodyID]; p != nil && p.SystemID == b.SystemID {
				center = pos(b.ParentBodyID)
			}
		}
		v := center.Add(orbitOffset(b, t))
		cache[id] = v
		delete(visiting, id)
		return v
	}

	for _, id := range model.SortedKeys(st.Bodies) {
		st.Bodies[id].PositionMkm = pos(id)
	}
}

// orbitOffset solves Kepler's equation with a fixed Newton budget.
func orbitOffset(b *model.Body, t float64) model.Vec2 {
	if !(b.OrbitRadiusMkm > 1e-9) {
		return model.Vec2{}
	}
	a := b.OrbitRadiusMkm
	e := clamp(b.OrbitEccentricity, 0, 0.999999)
	period := math.Max(1, b.OrbitPeriodDays)

	m := math.Mod(b.OrbitPhaseRadians+twoPi*(t/period), twoPi)
	if m < 0 {
		m += twoPi
	}
	ea := m
	if e >= 0.8 {
		ea = math.Pi
	}
	for i := 0; i < 12; i++ {
		f := ea - e*math.Sin(ea) - m
		fp := 1 - e*math.Cos(ea)
		if math.Abs(fp) < 1e-12 {
			break
		}
		ea -= f / fp
		if math.Abs(f) < 1e-10 {
			break
		}
	}

	x := a * (math.Cos(ea) - e)
	y := a * math.Sqrt(math.Max(0, 1-e*e)) * math.Sin(ea)
	w := b.OrbitArgPeriapsisRadians
	cw, sw := math.Cos(w), math.Sin(w)
	return model.Vec2{X: x*cw - y*sw, Y: x*sw + y*cw}
}
