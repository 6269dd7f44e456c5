package engine

import (
	"errors"
	"fmt"
	"math"

	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/model"
)

var (
	ErrUnknownColony       = errors.New("unknown colony")
	ErrUnknownDesign       = errors.New("unknown design")
	ErrUnknownInstallation = errors.New("unknown installation")
	ErrNotBuildable        = errors.New("installation not unlocked")
)

type mineRequest struct {
	colony model.ID
	tons   float64
}

// tickColonies runs mining, industry and population growth.
//
// Mining capacity of one installation is spread over the body's deposits in
// proportion to what remains. Colonies sharing a body split a short deposit
// in proportion to their requests.
func (s *Simulation) tickColonies(dt float64) {
	if dt <= 0 {
		return
	}
	st := s.state
	reqs := map[model.ID]map[string][]mineRequest{}

	for _, cid := range model.SortedKeys(st.Colonies) {
		c := st.Colonies[cid]
		if b := st.Bodies[c.BodyID]; b != nil && len(b.MineralDeposits) > 0 {
			for _, id := range model.SortedKeys(c.Installations) {
				def := s.content.Installations[id]
				n := c.Installations[id]
				if def == nil || n <= 0 || !def.Mining {
					continue
				}
				capTons := def.MiningTonsPerDay * float64(n) * dt
				if capTons <= 1e-12 {
					continue
				}
				keys := model.SortedKeys(b.MineralDeposits)
				total := 0.0
				for _, k := range keys {
					if rem := b.MineralDeposits[k]; rem > 1e-12 {
						total += rem
					}
				}
				if total <= 1e-12 {
					continue
				}
				if reqs[b.ID] == nil {
					reqs[b.ID] = map[string][]mineRequest{}
				}
				for _, k := range keys {
					rem := b.MineralDeposits[k]
					if rem <= 1e-12 {
						continue
					}
					reqs[b.ID][k] = append(reqs[b.ID][k], mineRequest{colony: cid, tons: capTons * rem / total})
				}
			}
		}

		if g := s.cfg.PopulationGrowthPerDay; g != 0 && c.PopulationMillions > 0 {
			c.PopulationMillions = math.Max(0, c.PopulationMillions*(1+g*dt))
		}
	}

	for _, bid := range model.SortedKeys(reqs) {
		b := st.Bodies[bid]
		for _, k := range model.SortedKeys(reqs[bid]) {
			list := reqs[bid][k]
			want := 0.0
			for _, r := range list {
				want += r.tons
			}
			before := math.Max(0, b.MineralDeposits[k])
			scale := 1.0
			if want > before {
				scale = before / want
			}
			for _, r := range list {
				c := st.Colonies[r.colony]
				if c.Minerals == nil {
					c.Minerals = map[string]float64{}
				}
				c.Minerals[k] += r.tons * scale
			}
			left := before - want*scale
			if left <= 1e-9 {
				left = 0
			}
			b.MineralDeposits[k] = left
			if before > 1e-9 && left == 0 {
				first := st.Colonies[list[0].colony]
				s.pushEvent(model.EventWarn, model.CategoryConstruction,
					fmt.Sprintf("Mineral deposit depleted on %s: %s", b.Name, k),
					EventContext{FactionID: first.FactionID, SystemID: b.SystemID, ColonyID: first.ID})
			}
		}
	}

	// Industry runs after extraction so fresh ore can be refined today.
	for _, cid := range model.SortedKeys(st.Colonies) {
		c := st.Colonies[cid]
		for _, id := range model.SortedKeys(c.Installations) {
			def := s.content.Installations[id]
			n := c.Installations[id]
			if def == nil || n <= 0 || def.Mining || len(def.ProducesPerDay) == 0 {
				continue
			}
			scale := float64(n) * dt
			frac := 1.0
			for _, k := range model.SortedKeys(def.ConsumesPerDay) {
				need := def.ConsumesPerDay[k] * scale
				if need <= 0 {
					continue
				}
				frac = math.Min(frac, math.Max(0, c.Minerals[k])/need)
			}
			if frac <= 1e-12 {
				continue
			}
			if c.Minerals == nil {
				c.Minerals = map[string]float64{}
			}
			for _, k := range model.SortedKeys(def.ConsumesPerDay) {
				if need := def.ConsumesPerDay[k] * scale; need > 0 {
					c.Minerals[k] = math.Max(0, c.Minerals[k]-need*frac)
				}
			}
			for _, k := range model.SortedKeys(def.ProducesPerDay) {
				c.Minerals[k] += def.ProducesPerDay[k] * scale * frac
			}
		}
	}
}

// tickShipyards gives each shipyard installation one build team. Teams are
// handed out in queue order; leftovers pool onto the first order.
func (s *Simulation) tickShipyards(dt float64) {
	if dt <= 0 {
		return
	}
	def := s.content.Installations["shipyard"]
	if def == nil || def.BuildRateTonsPerDay <= 0 {
		return
	}
	st := s.state
	for _, cid := range model.SortedKeys(st.Colonies) {
		c := st.Colonies[cid]
		yards := c.Installations[def.ID]
		if yards <= 0 || len(c.ShipyardQueue) == 0 {
			continue
		}

		teams := make([]int, len(c.ShipyardQueue))
		assigned, first := 0, -1
		for i := range c.ShipyardQueue {
			if assigned >= yards {
				break
			}
			if c.ShipyardQueue[i].TonsRemaining <= 1e-9 {
				continue
			}
			teams[i] = 1
			assigned++
			if first < 0 {
				first = i
			}
		}
		if first >= 0 && assigned < yards {
			teams[first] += yards - assigned
		}

		for i := range c.ShipyardQueue {
			bo := &c.ShipyardQueue[i]
			if teams[i] <= 0 || bo.TonsRemaining <= 1e-9 {
				continue
			}
			build := math.Min(def.BuildRateTonsPerDay*float64(teams[i])*dt, bo.TonsRemaining)
			for _, k := range model.SortedKeys(def.BuildCostsPerTon) {
				if per := def.BuildCostsPerTon[k]; per > 0 {
					build = math.Min(build, math.Max(0, c.Minerals[k])/per)
				}
			}
			if build <= 1e-9 {
				continue
			}
			for _, k := range model.SortedKeys(def.BuildCostsPerTon) {
				if per := def.BuildCostsPerTon[k]; per > 0 {
					c.Minerals[k] = math.Max(0, c.Minerals[k]-build*per)
				}
			}
			bo.TonsRemaining -= build
		}

		kept := c.ShipyardQueue[:0]
		for _, bo := range c.ShipyardQueue {
			if bo.TonsRemaining > 1e-9 {
				kept = append(kept, bo)
				continue
			}
			s.completeShip(c, bo)
		}
		c.ShipyardQueue = kept
	}
}

func (s *Simulation) completeShip(c *model.Colony, bo model.BuildOrder) {
	ctx := EventContext{FactionID: c.FactionID, ColonyID: c.ID}
	d := s.FindDesign(bo.DesignID)
	if d == nil {
		s.pushEvent(model.EventWarn, model.CategoryShipyard, "Unknown design in build queue: "+bo.DesignID, ctx)
		return
	}
	b := s.state.Bodies[c.BodyID]
	if b == nil || s.state.Systems[b.SystemID] == nil {
		s.pushEvent(model.EventError, model.CategoryShipyard, "Shipyard build failed (missing colony body): "+c.Name, ctx)
		return
	}
	sh := s.spawnShip(c.FactionID, b.SystemID, d, "", b.PositionMkm)
	ctx.SystemID, ctx.ShipID = sh.SystemID, sh.ID
	s.pushEvent(model.EventInfo, model.CategoryShipyard,
		fmt.Sprintf("Built ship %s (%s) at %s", sh.Name, sh.DesignID, c.Name), ctx)
	s.log.Info("ship built", "ship", sh.ID, "design", sh.DesignID, "colony", c.ID)
}

// spawnShip places a fully fuelled, repaired and armed ship. An empty name
// becomes "<design> #<id>".
func (s *Simulation) spawnShip(factionID, systemID model.ID, d *content.ShipDesign, name string, pos model.Vec2) *model.Ship {
	st := s.state
	sh := model.NewShip()
	sh.ID = model.AllocateID(st)
	sh.FactionID = factionID
	sh.SystemID = systemID
	sh.DesignID = d.ID
	sh.PositionMkm = pos
	sh.SpeedKmS = d.SpeedKmS
	sh.HP = d.MaxHP
	sh.FuelTons = d.FuelCapacityTons
	sh.Shields = d.MaxShields
	sh.MissileAmmo = d.MissileAmmoCapacity
	sh.Name = name
	if sh.Name == "" {
		sh.Name = fmt.Sprintf("%s #%d", d.Name, sh.ID)
	}
	st.Ships[sh.ID] = &sh
	st.ShipOrders[sh.ID] = &model.ShipOrders{}
	if sys := st.Systems[systemID]; sys != nil {
		sys.Ships = append(sys.Ships, sh.ID)
	}
	return &sh
}

// SpawnShip adds a new ship of designID. It is the setup path used by
// scenarios and sandboxes; colonies build ships through their shipyard queue.
func (s *Simulation) SpawnShip(factionID, systemID model.ID, designID, name string, pos model.Vec2) (model.ID, error) {
	if s.state.Factions[factionID] == nil {
		return model.InvalidID, fmt.Errorf("%w: %d", ErrUnknownFaction, factionID)
	}
	if s.state.Systems[systemID] == nil {
		return model.InvalidID, fmt.Errorf("unknown system: %d", systemID)
	}
	d := s.FindDesign(designID)
	if d == nil {
		return model.InvalidID, fmt.Errorf("%w: %s", ErrUnknownDesign, designID)
	}
	sh := s.spawnShip(factionID, systemID, d, name, pos)
	s.touch()
	return sh.ID, nil
}

// EnqueueShipBuild appends a build order for designID at the colony.
func (s *Simulation) EnqueueShipBuild(colonyID model.ID, designID string) error {
	c := s.state.Colonies[colonyID]
	if c == nil {
		return fmt.Errorf("%w: %d", ErrUnknownColony, colonyID)
	}
	d := s.FindDesign(designID)
	if d == nil {
		return fmt.Errorf("%w: %s", ErrUnknownDesign, designID)
	}
	c.ShipyardQueue = append(c.ShipyardQueue, model.BuildOrder{DesignID: designID, TonsRemaining: math.Max(0, d.MassTons)})
	s.touch()
	return nil
}

// installationBuildable is true for unlocked installations. Colonies of an
// unknown faction may build anything in the content.
func (s *Simulation) installationBuildable(factionID model.ID, id string) bool {
	if s.content.Installations[id] == nil {
		return false
	}
	f := s.state.Factions[factionID]
	if f == nil {
		return true
	}
	for _, u := range f.UnlockedInstallations {
		if u == id {
			return true
		}
	}
	return false
}

// EnqueueInstallationBuild appends a manual construction order.
func (s *Simulation) EnqueueInstallationBuild(colonyID model.ID, installationID string, quantity int) error {
	c := s.state.Colonies[colonyID]
	if c == nil {
		return fmt.Errorf("%w: %d", ErrUnknownColony, colonyID)
	}
	if s.content.Installations[installationID] == nil {
		return fmt.Errorf("%w: %s", ErrUnknownInstallation, installationID)
	}
	if !s.installationBuildable(c.FactionID, installationID) {
		return fmt.Errorf("%w: %s", ErrNotBuildable, installationID)
	}
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", quantity)
	}
	c.ConstructionQueue = append(c.ConstructionQueue, model.InstallationBuildOrder{
		InstallationID:    installationID,
		QuantityRemaining: quantity,
	})
	s.touch()
	return nil
}

// SetInstallationTarget asks construction to keep count units of an
// installation at the colony. Zero clears the target.
func (s *Simulation) SetInstallationTarget(colonyID model.ID, installationID string, count int) error {
	c := s.state.Colonies[colonyID]
	if c == nil {
		return fmt.Errorf("%w: %d", ErrUnknownColony, colonyID)
	}
	if s.content.Installations[installationID] == nil {
		return fmt.Errorf("%w: %s", ErrUnknownInstallation, installationID)
	}
	if count <= 0 {
		delete(c.InstallationTargets, installationID)
	} else {
		if c.InstallationTargets == nil {
			c.InstallationTargets = map[string]int{}
		}
		c.InstallationTargets[installationID] = count
	}
	s.touch()
	return nil
}

// ConstructionPointsPerDay is pop x 0.01 plus the colony's factories.
func (s *Simulation) ConstructionPointsPerDay(c *model.Colony) float64 {
	total := math.Max(0, c.PopulationMillions*0.01)
	total += s.colonyInstallationSum(c, func(d *content.InstallationDef) float64 {
		return math.Max(0, d.ConstructionPointsPerDay)
	})
	return total
}

func committedUnits(o *model.InstallationBuildOrder) int {
	if o.MineralsPaid || o.CPRemaining > 1e-9 {
		return min(max(0, o.QuantityRemaining), 1)
	}
	return 0
}

// syncInstallationTargets keeps the auto-queued part of the construction
// queue equal to what the targets still need. Units already paid for are
// never cancelled.
func (s *Simulation) syncInstallationTargets(c *model.Colony) {
	target := func(id string) int { return max(0, c.InstallationTargets[id]) }

	q := c.ConstructionQueue
	for i := len(q) - 1; i >= 0; i-- {
		o := &q[i]
		if !o.AutoQueued || target(o.InstallationID) > 0 {
			continue
		}
		o.QuantityRemaining = min(o.QuantityRemaining, committedUnits(o))
		if o.QuantityRemaining <= 0 {
			q = append(q[:i], q[i+1:]...)
		}
	}

	manual, auto := map[string]int{}, map[string]int{}
	for _, o := range q {
		if o.InstallationID == "" || o.QuantityRemaining <= 0 {
			continue
		}
		if o.AutoQueued {
			auto[o.InstallationID] += o.QuantityRemaining
		} else {
			manual[o.InstallationID] += o.QuantityRemaining
		}
	}

	for _, id := range model.SortedKeys(c.InstallationTargets) {
		want := target(id)
		if id == "" || want <= 0 {
			continue
		}
		required := max(0, want-(max(0, c.Installations[id])+manual[id]))

		if remove := auto[id] - required; remove > 0 {
			for i := len(q) - 1; i >= 0 && remove > 0; i-- {
				o := &q[i]
				if !o.AutoQueued || o.InstallationID != id {
					continue
				}
				take := min(max(0, o.QuantityRemaining-committedUnits(o)), remove)
				if take <= 0 {
					continue
				}
				o.QuantityRemaining -= take
				remove -= take
				if o.QuantityRemaining <= 0 {
					q = append(q[:i], q[i+1:]...)
				}
			}
		}

		have := 0
		for _, o := range q {
			if o.AutoQueued && o.InstallationID == id {
				have += max(0, o.QuantityRemaining)
			}
		}
		if missing := required - have; missing > 0 && s.installationBuildable(c.FactionID, id) {
			q = append(q, model.InstallationBuildOrder{InstallationID: id, QuantityRemaining: missing, AutoQueued: true})
		}
	}
	c.ConstructionQueue = q
}

// tickConstruction spends the colony's construction points down the queue.
// Minerals are paid when a unit starts; an order that cannot pay is skipped
// so later orders still progress.
func (s *Simulation) tickConstruction(dt float64) {
	if dt <= 0 {
		return
	}
	st := s.state
	for _, cid := range model.SortedKeys(st.Colonies) {
		c := st.Colonies[cid]
		s.syncInstallationTargets(c)
		cp := s.ConstructionPointsPerDay(c) * dt
		if cp <= 1e-9 {
			continue
		}
		ctx := EventContext{FactionID: c.FactionID, SystemID: st.ColonySystemID(c), ColonyID: c.ID}

		canPay := func(def *content.InstallationDef) bool {
			for _, k := range model.SortedKeys(def.BuildCosts) {
				if cost := def.BuildCosts[k]; cost > 0 && c.Minerals[k]+1e-9 < cost {
					return false
				}
			}
			return true
		}

		for cp > 1e-9 && len(c.ConstructionQueue) > 0 {
			progressed := false
			for i := 0; i < len(c.ConstructionQueue) && cp > 1e-9; {
				o := &c.ConstructionQueue[i]
				def := s.content.Installations[o.InstallationID]
				if o.QuantityRemaining <= 0 || def == nil {
					c.ConstructionQueue = append(c.ConstructionQueue[:i], c.ConstructionQueue[i+1:]...)
					progressed = true
					continue
				}

				if !o.MineralsPaid {
					if !canPay(def) {
						i++
						continue
					}
					for _, k := range model.SortedKeys(def.BuildCosts) {
						if cost := def.BuildCosts[k]; cost > 0 {
							c.Minerals[k] = math.Max(0, c.Minerals[k]-cost)
						}
					}
					o.MineralsPaid = true
					o.CPRemaining = math.Max(0, def.ConstructionCost)
					progressed = true
				} else if o.CPRemaining <= 1e-9 && def.ConstructionCost > 0 {
					o.CPRemaining = def.ConstructionCost
				}

				if o.CPRemaining > 1e-9 {
					spend := math.Min(cp, o.CPRemaining)
					o.CPRemaining -= spend
					cp -= spend
					progressed = true
				}
				if o.CPRemaining > 1e-9 {
					i++
					continue
				}

				if c.Installations == nil {
					c.Installations = map[string]int{}
				}
				c.Installations[def.ID]++
				o.QuantityRemaining--
				o.MineralsPaid = false
				o.CPRemaining = 0
				s.pushEvent(model.EventInfo, model.CategoryConstruction,
					fmt.Sprintf("Constructed %s at %s", def.Name, c.Name), ctx)
				if o.QuantityRemaining <= 0 {
					c.ConstructionQueue = append(c.ConstructionQueue[:i], c.ConstructionQueue[i+1:]...)
				}
			}
			if !progressed {
				break
			}
		}
	}
}
