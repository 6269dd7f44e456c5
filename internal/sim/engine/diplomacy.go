package engine

import (
	"errors"
	"fmt"

	"nebula4x.dev/internal/sim/model"
)

var (
	ErrUnknownTreaty = errors.New("unknown treaty")
	ErrUnknownOffer  = errors.New("unknown diplomatic offer")
	ErrOfferCooldown = errors.New("diplomatic offer on cooldown")
)

// offerCooldownDays blocks a faction from re-sending an offer that expired
// or was declined.
const offerCooldownDays = 30

func treatyTitle(t model.TreatyType) string {
	switch t {
	case model.TreatyCeasefire:
		return "Ceasefire"
	case model.TreatyNonAggressionPact:
		return "Non-Aggression Pact"
	case model.TreatyAlliance:
		return "Alliance"
	case model.TreatyTradeAgreement:
		return "Trade Agreement"
	case model.TreatyResearchAgreement:
		return "Research Agreement"
	}
	return "Treaty"
}

func (s *Simulation) checkFactionPair(a, b model.ID) error {
	if a == b {
		return errors.New("a faction cannot treat with itself")
	}
	for _, id := range []model.ID{a, b} {
		if s.state.Factions[id] == nil {
			return fmt.Errorf("%w: %d", ErrUnknownFaction, id)
		}
	}
	return nil
}

// CreateTreaty signs a treaty starting today. durationDays <= 0 means
// indefinite. Re-signing an existing treaty type renews it in place.
func (s *Simulation) CreateTreaty(a, b model.ID, typ model.TreatyType, durationDays int64) (model.ID, error) {
	if err := s.checkFactionPair(a, b); err != nil {
		return model.InvalidID, err
	}
	if b < a {
		a, b = b, a
	}
	st := s.state
	today := st.Date.DaysSinceEpoch()
	for _, tid := range model.SortedKeys(st.Treaties) {
		t := st.Treaties[tid]
		if t.FactionA == a && t.FactionB == b && t.Type == typ {
			t.StartDay, t.DurationDays = today, durationDays
			s.touch()
			return tid, nil
		}
	}
	t := &model.Treaty{ID: model.AllocateID(st), FactionA: a, FactionB: b, Type: typ, StartDay: today, DurationDays: durationDays}
	st.Treaties[t.ID] = t
	s.pushEvent(model.EventInfo, model.CategoryDiplomacy,
		fmt.Sprintf("Treaty signed: %s between %s and %s", treatyTitle(typ), s.factionName(a), s.factionName(b)),
		EventContext{FactionID: a, FactionID2: b})
	s.touch()
	return t.ID, nil
}

// CancelTreaty breaks a treaty. Stored stances are left as they were.
func (s *Simulation) CancelTreaty(treatyID model.ID) error {
	t := s.state.Treaties[treatyID]
	if t == nil {
		return fmt.Errorf("%w: %d", ErrUnknownTreaty, treatyID)
	}
	delete(s.state.Treaties, treatyID)
	s.pushEvent(model.EventWarn, model.CategoryDiplomacy,
		fmt.Sprintf("Treaty cancelled: %s between %s and %s", treatyTitle(t.Type), s.factionName(t.FactionA), s.factionName(t.FactionB)),
		EventContext{FactionID: t.FactionA, FactionID2: t.FactionB})
	s.touch()
	return nil
}

// TreatiesBetween lists the treaties in force between a and b, in id order.
func (s *Simulation) TreatiesBetween(a, b model.ID) []model.Treaty {
	day := s.state.Date.DaysSinceEpoch()
	var out []model.Treaty
	for _, tid := range model.SortedKeys(s.state.Treaties) {
		if t := s.state.Treaties[tid]; t.Involves(a, b) && t.ActiveOn(day) {
			out = append(out, *t)
		}
	}
	return out
}

// CreateDiplomaticOffer proposes a treaty from one faction to another.
// expiresInDays <= 0 never expires.
func (s *Simulation) CreateDiplomaticOffer(from, to model.ID, typ model.TreatyType, treatyDays, expiresInDays int64, message string) (model.ID, error) {
	if err := s.checkFactionPair(from, to); err != nil {
		return model.InvalidID, err
	}
	st := s.state
	today := st.Date.DaysSinceEpoch()
	if until, ok := st.Factions[from].OfferCooldownUntilDay[to]; ok && today < until {
		return model.InvalidID, fmt.Errorf("%w: until day %d", ErrOfferCooldown, until)
	}
	o := &model.DiplomaticOffer{
		ID:                 model.AllocateID(st),
		FromFactionID:      from,
		ToFactionID:        to,
		TreatyType:         typ,
		TreatyDurationDays: treatyDays,
		CreatedDay:         today,
		ExpireDay:          -1,
		Message:            message,
	}
	if expiresInDays > 0 {
		o.ExpireDay = today + expiresInDays
	}
	st.DiplomaticOffers[o.ID] = o
	s.pushEvent(model.EventInfo, model.CategoryDiplomacy,
		fmt.Sprintf("Diplomatic offer from %s to %s: %s", s.factionName(from), s.factionName(to), treatyTitle(typ)),
		EventContext{FactionID: to, FactionID2: from})
	s.touch()
	return o.ID, nil
}

// AcceptDiplomaticOffer turns the offer into a treaty and removes it.
func (s *Simulation) AcceptDiplomaticOffer(offerID model.ID) (model.ID, error) {
	o := s.state.DiplomaticOffers[offerID]
	if o == nil {
		return model.InvalidID, fmt.Errorf("%w: %d", ErrUnknownOffer, offerID)
	}
	tid, err := s.CreateTreaty(o.FromFactionID, o.ToFactionID, o.TreatyType, o.TreatyDurationDays)
	if err != nil {
		return model.InvalidID, err
	}
	delete(s.state.DiplomaticOffers, offerID)
	return tid, nil
}

// DeclineDiplomaticOffer removes the offer and puts the sender on cooldown.
func (s *Simulation) DeclineDiplomaticOffer(offerID model.ID) error {
	o := s.state.DiplomaticOffers[offerID]
	if o == nil {
		return fmt.Errorf("%w: %d", ErrUnknownOffer, offerID)
	}
	s.startOfferCooldown(o)
	delete(s.state.DiplomaticOffers, offerID)
	s.pushEvent(model.EventInfo, model.CategoryDiplomacy,
		fmt.Sprintf("Diplomatic offer declined by %s", s.factionName(o.ToFactionID)),
		EventContext{FactionID: o.FromFactionID, FactionID2: o.ToFactionID})
	s.touch()
	return nil
}

func (s *Simulation) startOfferCooldown(o *model.DiplomaticOffer) {
	f := s.state.Factions[o.FromFactionID]
	if f == nil {
		return
	}
	if f.OfferCooldownUntilDay == nil {
		f.OfferCooldownUntilDay = map[model.ID]int64{}
	}
	until := s.state.Date.DaysSinceEpoch() + offerCooldownDays
	if until > f.OfferCooldownUntilDay[o.ToFactionID] {
		f.OfferCooldownUntilDay[o.ToFactionID] = until
	}
}

// tickTreaties drops treaties whose term has run out.
func (s *Simulation) tickTreaties() {
	st := s.state
	today := st.Date.DaysSinceEpoch()
	for _, tid := range model.SortedKeys(st.Treaties) {
		t := st.Treaties[tid]
		if t.ActiveOn(today) || today < t.StartDay {
			continue
		}
		delete(st.Treaties, tid)
		s.pushEvent(model.EventInfo, model.CategoryDiplomacy,
			fmt.Sprintf("Treaty expired: %s between %s and %s", treatyTitle(t.Type), s.factionName(t.FactionA), s.factionName(t.FactionB)),
			EventContext{FactionID: t.FactionA, FactionID2: t.FactionB})
	}
}

// tickDiplomaticOffers removes offers at their expire day. Only offers that
// touch a player faction are announced.
func (s *Simulation) tickDiplomaticOffers() {
	st := s.state
	today := st.Date.DaysSinceEpoch()
	for _, oid := range model.SortedKeys(st.DiplomaticOffers) {
		o := st.DiplomaticOffers[oid]
		if o.ExpireDay < 0 || today < o.ExpireDay {
			continue
		}
		s.startOfferCooldown(o)
		delete(st.DiplomaticOffers, oid)
		fromCtl, _ := s.factionControl(o.FromFactionID)
		toCtl, _ := s.factionControl(o.ToFactionID)
		if fromCtl == model.ControlPlayer || toCtl == model.ControlPlayer {
			s.pushEvent(model.EventInfo, model.CategoryDiplomacy,
				"Diplomatic offer expired from "+s.factionName(o.FromFactionID),
				EventContext{FactionID: o.ToFactionID, FactionID2: o.FromFactionID})
		}
	}
}
