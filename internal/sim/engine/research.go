package engine

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/model"
)

var ErrUnknownTech = errors.New("unknown tech")

func hasTech(f *model.Faction, id string) bool { return slices.Contains(f.KnownTechs, id) }

func prereqsMet(f *model.Faction, t *content.TechDef) bool {
	for _, p := range t.Prereqs {
		if !hasTech(f, p) {
			return false
		}
	}
	return true
}

func addUniqueString(v []string, s string) []string {
	if s == "" || slices.Contains(v, s) {
		return v
	}
	return append(v, s)
}

// EnqueueResearch appends techID to the faction's research queue unless it
// is already known or queued.
func (s *Simulation) EnqueueResearch(factionID model.ID, techID string) error {
	f := s.state.Factions[factionID]
	if f == nil {
		return fmt.Errorf("%w: %d", ErrUnknownFaction, factionID)
	}
	if s.content.Techs[techID] == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTech, techID)
	}
	if hasTech(f, techID) || f.ActiveResearchID == techID || slices.Contains(f.ResearchQueue, techID) {
		return nil
	}
	f.ResearchQueue = append(f.ResearchQueue, techID)
	s.touch()
	return nil
}

// tickResearch credits lab output to each faction and spends the pool on
// the active project, completing as many projects as the points allow.
func (s *Simulation) tickResearch(dt float64) {
	if dt <= 0 {
		return
	}
	st := s.state
	for _, cid := range model.SortedKeys(st.Colonies) {
		c := st.Colonies[cid]
		f := st.Factions[c.FactionID]
		if f == nil {
			continue
		}
		rp := s.colonyInstallationSum(c, func(d *content.InstallationDef) float64 { return d.ResearchPointsPerDay })
		if rp > 0 {
			f.ResearchPoints += rp * dt
		}
	}

	for _, fid := range model.SortedKeys(st.Factions) {
		s.advanceResearch(st.Factions[fid])
	}
}

// selectResearch drops stale queue entries and activates the first one whose
// prerequisites are known.
func (s *Simulation) selectResearch(f *model.Faction) {
	f.ResearchQueue = slices.DeleteFunc(f.ResearchQueue, func(id string) bool {
		return id == "" || hasTech(f, id) || s.content.Techs[id] == nil
	})
	f.ActiveResearchID = ""
	f.ActiveResearchProgress = 0
	for i, id := range f.ResearchQueue {
		if prereqsMet(f, s.content.Techs[id]) {
			f.ActiveResearchID = id
			f.ResearchQueue = slices.Delete(f.ResearchQueue, i, i+1)
			return
		}
	}
}

func (s *Simulation) advanceResearch(f *model.Faction) {
	if f.ActiveResearchID == "" {
		s.selectResearch(f)
	}
	for f.ActiveResearchID != "" {
		t := s.content.Techs[f.ActiveResearchID]
		switch {
		case t == nil || hasTech(f, t.ID):
			s.selectResearch(f)
			continue
		case !prereqsMet(f, t):
			if !slices.Contains(f.ResearchQueue, t.ID) {
				f.ResearchQueue = append(f.ResearchQueue, t.ID)
			}
			s.selectResearch(f)
			continue
		}

		if remaining := math.Max(0, t.Cost-f.ActiveResearchProgress); remaining > 0 {
			if f.ResearchPoints <= 0 {
				return
			}
			spend := math.Min(f.ResearchPoints, remaining)
			f.ResearchPoints -= spend
			f.ActiveResearchProgress += spend
			if spend < remaining {
				return
			}
		}

		f.KnownTechs = append(f.KnownTechs, t.ID)
		for _, id := range t.UnlockComponents {
			f.UnlockedComponents = addUniqueString(f.UnlockedComponents, id)
		}
		for _, id := range t.UnlockInstallations {
			f.UnlockedInstallations = addUniqueString(f.UnlockedInstallations, id)
		}
		s.pushEvent(model.EventInfo, model.CategoryResearch,
			fmt.Sprintf("Research complete for %s: %s", f.Name, t.Name),
			EventContext{FactionID: f.ID})
		s.log.Info("research complete", "faction", f.ID, "tech", t.ID)
		s.selectResearch(f)
	}
}
