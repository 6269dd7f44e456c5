package engine_test

import (
	"errors"
	"testing"

	"nebula4x.dev/internal/sim/engine"
	"nebula4x.dev/internal/sim/model"
	"nebula4x.dev/internal/sim/simtest"
)

func TestTreaty_OverlaysStatusUntilExpiry(t *testing.T) {
	ch := simtest.NewChain()
	sim := simtest.NewSim(t, ch.State)

	if got := sim.DiplomaticStatus(ch.Terrans, ch.Pirates); got != model.Hostile {
		t.Fatalf("initial status=%v want Hostile", got)
	}
	if _, err := sim.CreateTreaty(ch.Pirates, ch.Terrans, model.TreatyAlliance, 10); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := sim.DiplomaticStatus(ch.Terrans, ch.Pirates); got != model.Friendly {
		t.Fatalf("allied status=%v want Friendly", got)
	}
	if got := sim.DiplomaticStatusBase(ch.Terrans, ch.Pirates); got != model.Hostile {
		t.Fatalf("base status=%v want Hostile", got)
	}

	sim.AdvanceDays(9)
	if n := len(sim.TreatiesBetween(ch.Terrans, ch.Pirates)); n != 1 {
		t.Fatalf("day 9 treaties=%d want 1", n)
	}
	sim.AdvanceDays(1)
	if n := len(sim.State().Treaties); n != 0 {
		t.Fatalf("day 10 treaties=%d want 0", n)
	}
	if _, ok := simtest.LastEvent(sim.State(), "Treaty expired: Alliance between"); !ok {
		t.Fatalf("missing expiry event")
	}
	if got := sim.DiplomaticStatus(ch.Terrans, ch.Pirates); got != model.Hostile {
		t.Fatalf("status after expiry=%v want Hostile", got)
	}
}

func TestTreaty_ResigningRenewsInPlace(t *testing.T) {
	ch := simtest.NewChain()
	sim := simtest.NewSim(t, ch.State)

	a, err := sim.CreateTreaty(ch.Terrans, ch.Pirates, model.TreatyCeasefire, 5)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	sim.AdvanceDays(3)
	b, err := sim.CreateTreaty(ch.Pirates, ch.Terrans, model.TreatyCeasefire, 5)
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if a != b {
		t.Fatalf("renewed id=%d want %d", b, a)
	}
	if got := sim.State().Treaties[a].StartDay; got != 3 {
		t.Fatalf("start day=%d want 3", got)
	}
	if got := sim.DiplomaticStatus(ch.Terrans, ch.Pirates); got != model.Neutral {
		t.Fatalf("ceasefire status=%v want Neutral", got)
	}
	if _, err := sim.CreateTreaty(ch.Terrans, ch.Terrans, model.TreatyAlliance, 0); err == nil {
		t.Fatalf("self treaty accepted")
	}
}

func TestDiplomaticOffer_ExpiryStartsCooldown(t *testing.T) {
	ch := simtest.NewChain()
	sim := simtest.NewSim(t, ch.State)

	if _, err := sim.CreateDiplomaticOffer(ch.Pirates, ch.Terrans, model.TreatyCeasefire, 30, 2, "truce?"); err != nil {
		t.Fatalf("offer: %v", err)
	}
	sim.AdvanceDays(2)
	if n := len(sim.State().DiplomaticOffers); n != 0 {
		t.Fatalf("offers=%d want 0", n)
	}
	if _, ok := simtest.LastEvent(sim.State(), "Diplomatic offer expired from Pirates"); !ok {
		t.Fatalf("missing expiry event")
	}
	_, err := sim.CreateDiplomaticOffer(ch.Pirates, ch.Terrans, model.TreatyCeasefire, 30, 2, "")
	if !errors.Is(err, engine.ErrOfferCooldown) {
		t.Fatalf("err=%v want ErrOfferCooldown", err)
	}
	// The cooldown is directional.
	if _, err := sim.CreateDiplomaticOffer(ch.Terrans, ch.Pirates, model.TreatyCeasefire, 30, 2, ""); err != nil {
		t.Fatalf("reverse offer: %v", err)
	}
}

func TestDiplomaticOffer_AcceptSignsTreaty(t *testing.T) {
	ch := simtest.NewChain()
	sim := simtest.NewSim(t, ch.State)

	oid, err := sim.CreateDiplomaticOffer(ch.Terrans, ch.Pirates, model.TreatyNonAggressionPact, 0, 0, "")
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	tid, err := sim.AcceptDiplomaticOffer(oid)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	tr := sim.State().Treaties[tid]
	if tr == nil || tr.Type != model.TreatyNonAggressionPact || tr.DurationDays != 0 {
		t.Fatalf("treaty=%+v", tr)
	}
	if _, ok := sim.State().DiplomaticOffers[oid]; ok {
		t.Fatalf("offer not removed")
	}
	sim.AdvanceDays(400)
	if n := len(sim.TreatiesBetween(ch.Terrans, ch.Pirates)); n != 1 {
		t.Fatalf("indefinite treaty expired")
	}
	if _, err := sim.AcceptDiplomaticOffer(oid); !errors.Is(err, engine.ErrUnknownOffer) {
		t.Fatalf("err=%v want ErrUnknownOffer", err)
	}
}
