package digest

import (
	"nebula4x.dev/internal/sim/content"
	"nebula4x.dev/internal/sim/model"
)

const contentVersionTag = "ContentDigestV1"

// Content digests the loaded content database, for identifying mod sets in
// tapes and bug reports.
func Content(db *content.DB) uint64 {
	h := newHasher()
	h.str(contentVersionTag)
	if db == nil {
		h.u64(0)
		return h.Sum64()
	}

	h.u64(uint64(len(db.Designs)))
	for _, id := range model.SortedKeys(db.Designs) {
		writeDesign(h, db.Designs[id])
	}

	h.u64(uint64(len(db.Installations)))
	for _, id := range model.SortedKeys(db.Installations) {
		in := db.Installations[id]
		h.str(in.ID)
		h.str(in.Name)
		h.bool(in.Mining)
		h.f64(in.MiningTonsPerDay)
		h.floatMap(in.ProducesPerDay)
		h.floatMap(in.ConsumesPerDay)
		h.f64(in.ConstructionPointsPerDay)
		h.f64(in.ConstructionCost)
		h.floatMap(in.BuildCosts)
		h.f64(in.BuildRateTonsPerDay)
		h.floatMap(in.BuildCostsPerTon)
		h.f64(in.SensorRangeMkm)
		h.f64(in.WeaponDamage)
		h.f64(in.WeaponRangeMkm)
		h.f64(in.PointDefenseDamage)
		h.f64(in.ResearchPointsPerDay)
		h.f64(in.FortificationPoints)
	}

	h.u64(uint64(len(db.Resources)))
	for _, id := range model.SortedKeys(db.Resources) {
		r := db.Resources[id]
		h.str(r.ID)
		h.str(r.Name)
		h.str(r.Category)
		h.bool(r.Mineable)
		h.f64(r.SalvageResearchRPPerTon)
	}

	h.u64(uint64(len(db.Techs)))
	for _, id := range model.SortedKeys(db.Techs) {
		t := db.Techs[id]
		h.str(t.ID)
		h.str(t.Name)
		h.f64(t.Cost)
		h.strSet(t.Prereqs)
		h.strSet(t.UnlockComponents)
		h.strSet(t.UnlockInstallations)
	}

	h.u64(uint64(len(db.Components)))
	for _, id := range model.SortedKeys(db.Components) {
		c := db.Components[id]
		h.str(c.ID)
		h.str(c.Name)
		h.str(c.Type)
		h.f64(c.MassTons)
	}
	return h.Sum64()
}
