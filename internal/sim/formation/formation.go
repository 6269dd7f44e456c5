package formation

import (
	"math"
	"slices"
	"sort"

	"nebula4x.dev/internal/sim/model"
)

const twoPi = 2 * math.Pi

// Input describes one formation solve. Members must be sorted and unique.
// Positions is optional; when present, followers are matched to the slots
// nearest to them instead of by id order.
type Input struct {
	Formation  model.FleetFormation
	SpacingMkm float64
	LeaderID   model.ID
	LeaderPos  model.Vec2
	RawTarget  model.Vec2
	Members    []model.ID
	Positions  map[model.ID]model.Vec2
}

// Offsets returns the target offset of every member. The leader always gets
// the zero offset. The result is empty for FormationNone, a non-positive
// spacing or an empty member list.
func Offsets(in Input) map[model.ID]model.Vec2 {
	out := map[model.ID]model.Vec2{}
	if in.Formation == model.FormationNone || !(in.SpacingMkm > 0) || len(in.Members) == 0 {
		return out
	}
	leader := in.LeaderID
	if leader == model.InvalidID || !slices.Contains(in.Members, leader) {
		leader = in.Members[0]
	}
	out[leader] = model.Vec2{}

	followers := make([]model.ID, 0, len(in.Members))
	for _, id := range in.Members {
		if id != leader {
			followers = append(followers, id)
		}
	}
	if len(followers) == 0 {
		return out
	}

	forward := in.RawTarget.Sub(in.LeaderPos)
	if l := forward.Length(); l < 1e-9 {
		forward = model.Vec2{X: 1}
	} else {
		forward = forward.Scale(1 / l)
	}
	right := model.Vec2{X: -forward.Y, Y: forward.X}
	b := basis{forward: forward, right: right}

	slots := generateSlots(in.Formation, in.SpacingMkm, len(followers), b)
	for id, slot := range assign(followers, slots, in.RawTarget, in.Positions) {
		out[id] = slots[slot]
	}
	return out
}

type basis struct {
	forward model.Vec2
	right   model.Vec2
}

func (b basis) world(xRight, yForward float64) model.Vec2 {
	return b.right.Scale(xRight).Add(b.forward.Scale(yForward))
}

// generateSlots generates n follower offsets for the given formation, in slot order.
func generateSlots(f model.FleetFormation, spacing float64, n int, b basis) []model.Vec2 {
	slots := make([]model.Vec2, 0, n)
	switch f {
	case model.FormationLineAbreast:
		for i := 0; i < n; i++ {
			rank := float64(i/2 + 1)
			slots = append(slots, b.world(alternate(i)*rank*spacing, 0))
		}
	case model.FormationColumn:
		for i := 0; i < n; i++ {
			slots = append(slots, b.world(0, -float64(i+1)*spacing))
		}
	case model.FormationWedge:
		for i := 0; i < n; i++ {
			layer := float64(i/2 + 1)
			slots = append(slots, b.world(alternate(i)*layer*spacing, -layer*spacing))
		}
	case model.FormationRing:
		for ring := 1; len(slots) < n; ring++ {
			radius := float64(ring) * spacing
			count := int(math.Round(twoPi * radius / spacing))
			if count < 6 {
				count = 6
			}
			step := twoPi / float64(count)
			phase := float64(ring-1) * step / 2
			for j := 0; j < count && len(slots) < n; j++ {
				a := phase + float64(j)*step
				slots = append(slots, b.world(math.Cos(a)*radius, math.Sin(a)*radius))
			}
		}
	default:
		for i := 0; i < n; i++ {
			slots = append(slots, model.Vec2{})
		}
	}
	return slots
}

func alternate(i int) float64 {
	if i%2 == 0 {
		return 1
	}
	return -1
}

type pair struct {
	d2   float64
	ship model.ID
	slot int
}

// assign maps followers to slot indices. With positions, every (ship, slot)
// pair is ranked by (squared distance, ship id, slot index) and taken
// greedily; followers without a position fill the remaining slots in order.
func assign(followers []model.ID, slots []model.Vec2, target model.Vec2, positions map[model.ID]model.Vec2) map[model.ID]int {
	out := make(map[model.ID]int, len(followers))
	if len(positions) == 0 {
		for i, id := range followers {
			out[id] = i
		}
		return out
	}

	pairs := make([]pair, 0, len(followers)*len(slots))
	for _, id := range followers {
		pos, ok := positions[id]
		if !ok {
			continue
		}
		for si, off := range slots {
			d := target.Add(off).Sub(pos)
			pairs = append(pairs, pair{d2: d.LengthSq(), ship: id, slot: si})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].d2 != pairs[j].d2 {
			return pairs[i].d2 < pairs[j].d2
		}
		if pairs[i].ship != pairs[j].ship {
			return pairs[i].ship < pairs[j].ship
		}
		return pairs[i].slot < pairs[j].slot
	})

	taken := make([]bool, len(slots))
	for _, p := range pairs {
		if taken[p.slot] {
			continue
		}
		if _, done := out[p.ship]; done {
			continue
		}
		out[p.ship] = p.slot
		taken[p.slot] = true
	}

	next := 0
	for _, id := range followers {
		if _, done := out[id]; done {
			continue
		}
		for next < len(taken) && taken[next] {
			next++
		}
		if next >= len(taken) {
			break
		}
		out[id] = next
		taken[next] = true
	}
	return out
}
