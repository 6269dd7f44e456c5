package engine

import (
	"context"
	"strings"

	"nebula4x.dev/internal/sim/model"
)

// EventContext carries the optional references attached to an event.
type EventContext struct {
	FactionID  model.ID
	FactionID2 model.ID
	SystemID   model.ID
	ShipID     model.ID
	ColonyID   model.ID
}

func (s *Simulation) pushEvent(level model.EventLevel, cat model.EventCategory, msg string, ctx EventContext) {
	st := s.state
	if st.NextEventSeq == 0 {
		st.NextEventSeq = 1
	}
	st.Events = append(st.Events, model.SimEvent{
		Seq:        st.NextEventSeq,
		Day:        st.Date.DaysSinceEpoch(),
		Hour:       st.HourOfDay,
		Level:      level,
		Category:   cat,
		FactionID:  ctx.FactionID,
		FactionID2: ctx.FactionID2,
		SystemID:   ctx.SystemID,
		ShipID:     ctx.ShipID,
		ColonyID:   ctx.ColonyID,
		Message:    msg,
	})
	st.NextEventSeq++
}

// trimEvents drops the oldest events beyond MaxEvents. Sequence numbers are
// never reused.
func (s *Simulation) trimEvents() {
	limit := s.cfg.MaxEvents
	ev := s.state.Events
	if limit <= 0 || len(ev) <= limit {
		return
	}
	kept := make([]model.SimEvent, limit)
	copy(kept, ev[len(ev)-limit:])
	s.state.Events = kept
}

// EventStopCondition selects the events that end AdvanceUntilEvent. Zero ids
// and an empty MessageContains match anything.
type EventStopCondition struct {
	StopOnInfo  bool
	StopOnWarn  bool
	StopOnError bool

	FilterCategory bool
	Category       model.EventCategory

	FactionID model.ID // matches either faction of the event
	SystemID  model.ID
	ShipID    model.ID
	ColonyID  model.ID

	MessageContains string // case-insensitive
}

func (c EventStopCondition) Matches(ev model.SimEvent) bool {
	switch ev.Level {
	case model.EventInfo:
		if !c.StopOnInfo {
			return false
		}
	case model.EventWarn:
		if !c.StopOnWarn {
			return false
		}
	case model.EventError:
		if !c.StopOnError {
			return false
		}
	}
	if c.FilterCategory && ev.Category != c.Category {
		return false
	}
	if c.FactionID != model.InvalidID && ev.FactionID != c.FactionID && ev.FactionID2 != c.FactionID {
		return false
	}
	if c.SystemID != model.InvalidID && ev.SystemID != c.SystemID {
		return false
	}
	if c.ShipID != model.InvalidID && ev.ShipID != c.ShipID {
		return false
	}
	if c.ColonyID != model.InvalidID && ev.ColonyID != c.ColonyID {
		return false
	}
	if c.MessageContains != "" && !strings.Contains(strings.ToLower(ev.Message), strings.ToLower(c.MessageContains)) {
		return false
	}
	return true
}

type AdvanceUntilEventResult struct {
	DaysAdvanced int
	Hit          bool
	Event        model.SimEvent
}

// AdvanceUntilEvent advances day by day, up to maxDays, and stops after the
// first day that produced an event matching stop.
func (s *Simulation) AdvanceUntilEvent(ctx context.Context, maxDays int, stop EventStopCondition) (AdvanceUntilEventResult, error) {
	var res AdvanceUntilEventResult
	for res.DaysAdvanced < maxDays {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		seq := s.state.NextEventSeq
		s.advanceOneDay()
		res.DaysAdvanced++
		for _, ev := range s.state.Events {
			if ev.Seq < seq || !stop.Matches(ev) {
				continue
			}
			res.Hit = true
			res.Event = ev
			return res, nil
		}
	}
	return res, nil
}
