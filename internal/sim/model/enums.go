package model

import "fmt"

func enumText[T ~uint8](v T, names []string) ([]byte, error) {
	if int(v) >= len(names) {
		return nil, fmt.Errorf("enum value %d out of range", v)
	}
	return []byte(names[v]), nil
}

func enumParse[T ~uint8](b []byte, names []string, kind string) (T, error) {
	s := string(b)
	for i, n := range names {
		if n == s {
			return T(i), nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", kind, s)
}

func enumString[T ~uint8](v T, names []string) string {
	if int(v) >= len(names) {
		return fmt.Sprintf("%d", v)
	}
	return names[v]
}

type BodyType uint8

const (
	BodyStar BodyType = iota
	BodyPlanet
	BodyMoon
	BodyAsteroid
	BodyComet
	BodyGasGiant
)

var bodyTypeNames = []string{"star", "planet", "moon", "asteroid", "comet", "gas_giant"}

func (t BodyType) String() string { return enumString(t, bodyTypeNames) }
func (t BodyType) MarshalText() ([]byte, error) { return enumText(t, bodyTypeNames) }
func (t *BodyType) UnmarshalText(b []byte) (err error) {
	*t, err = enumParse[BodyType](b, bodyTypeNames, "body type")
	return err
}

// Colonizable reports whether a colony ship may settle a body of this type.
func (t BodyType) Colonizable() bool {
	return t == BodyPlanet || t == BodyMoon || t == BodyAsteroid
}

type FactionControl uint8

const (
	ControlPlayer FactionControl = iota
	ControlAIPassive
	ControlAIExplorer
	ControlAIPirate
)

var factionControlNames = []string{"player", "ai_passive", "ai_explorer", "ai_pirate"}

func (c FactionControl) String() string { return enumString(c, factionControlNames) }
func (c FactionControl) MarshalText() ([]byte, error) { return enumText(c, factionControlNames) }
func (c *FactionControl) UnmarshalText(b []byte) (err error) {
	*c, err = enumParse[FactionControl](b, factionControlNames, "faction control")
	return err
}

type DiplomacyStatus uint8

const (
	Friendly DiplomacyStatus = iota
	Neutral
	Hostile
)

var diplomacyStatusNames = []string{"friendly", "neutral", "hostile"}

func (d DiplomacyStatus) String() string { return enumString(d, diplomacyStatusNames) }
func (d DiplomacyStatus) MarshalText() ([]byte, error) { return enumText(d, diplomacyStatusNames) }
func (d *DiplomacyStatus) UnmarshalText(b []byte) (err error) {
	*d, err = enumParse[DiplomacyStatus](b, diplomacyStatusNames, "diplomacy status")
	return err
}

type TreatyType uint8

const (
	TreatyCeasefire TreatyType = iota
	TreatyNonAggressionPact
	TreatyAlliance
	TreatyTradeAgreement
	TreatyResearchAgreement
)

var treatyTypeNames = []string{"ceasefire", "non_aggression_pact", "alliance", "trade_agreement", "research_agreement"}

func (t TreatyType) String() string { return enumString(t, treatyTypeNames) }
func (t TreatyType) MarshalText() ([]byte, error) { return enumText(t, treatyTypeNames) }
func (t *TreatyType) UnmarshalText(b []byte) (err error) {
	*t, err = enumParse[TreatyType](b, treatyTypeNames, "treaty type")
	return err
}

// BlocksHostilities reports whether the treaty forbids attacks and invasions.
func (t TreatyType) BlocksHostilities() bool {
	return t == TreatyCeasefire || t == TreatyNonAggressionPact || t == TreatyAlliance
}

type FleetFormation uint8

const (
	FormationNone FleetFormation = iota
	FormationLineAbreast
	FormationColumn
	FormationWedge
	FormationRing
)

var fleetFormationNames = []string{"none", "line_abreast", "column", "wedge", "ring"}

func (f FleetFormation) String() string { return enumString(f, fleetFormationNames) }
func (f FleetFormation) MarshalText() ([]byte, error) { return enumText(f, fleetFormationNames) }
func (f *FleetFormation) UnmarshalText(b []byte) (err error) {
	*f, err = enumParse[FleetFormation](b, fleetFormationNames, "fleet formation")
	return err
}

type FleetMissionType uint8

const (
	MissionNone FleetMissionType = iota
	MissionDefendColony
	MissionPatrolSystem
	MissionHuntHostiles
)

var fleetMissionTypeNames = []string{"none", "defend_colony", "patrol_system", "hunt_hostiles"}

func (m FleetMissionType) String() string { return enumString(m, fleetMissionTypeNames) }
func (m FleetMissionType) MarshalText() ([]byte, error) { return enumText(m, fleetMissionTypeNames) }
func (m *FleetMissionType) UnmarshalText(b []byte) (err error) {
	*m, err = enumParse[FleetMissionType](b, fleetMissionTypeNames, "fleet mission")
	return err
}

type EventLevel uint8

const (
	EventInfo EventLevel = iota
	EventWarn
	EventError
)

var eventLevelNames = []string{"info", "warn", "error"}

func (l EventLevel) String() string { return enumString(l, eventLevelNames) }
func (l EventLevel) MarshalText() ([]byte, error) { return enumText(l, eventLevelNames) }
func (l *EventLevel) UnmarshalText(b []byte) (err error) {
	*l, err = enumParse[EventLevel](b, eventLevelNames, "event level")
	return err
}

type EventCategory uint8

const (
	CategoryGeneral EventCategory = iota
	CategoryResearch
	CategoryShipyard
	CategoryConstruction
	CategoryMovement
	CategoryCombat
	CategoryIntel
	CategoryExploration
	CategoryDiplomacy
)

var eventCategoryNames = []string{"general", "research", "shipyard", "construction", "movement", "combat", "intel", "exploration", "diplomacy"}

func (c EventCategory) String() string { return enumString(c, eventCategoryNames) }
func (c EventCategory) MarshalText() ([]byte, error) { return enumText(c, eventCategoryNames) }
func (c *EventCategory) UnmarshalText(b []byte) (err error) {
	*c, err = enumParse[EventCategory](b, eventCategoryNames, "event category")
	return err
}

type PowerSubsystem uint8

const (
	PowerEngines PowerSubsystem = iota
	PowerShields
	PowerWeapons
	PowerSensors
)

var powerSubsystemNames = []string{"engines", "shields", "weapons", "sensors"}

func (p PowerSubsystem) String() string { return enumString(p, powerSubsystemNames) }
func (p PowerSubsystem) MarshalText() ([]byte, error) { return enumText(p, powerSubsystemNames) }
func (p *PowerSubsystem) UnmarshalText(b []byte) (err error) {
	*p, err = enumParse[PowerSubsystem](b, powerSubsystemNames, "power subsystem")
	return err
}
