package power

import (
	"slices"
	"testing"

	"nebula4x.dev/internal/sim/model"
)

func TestSanitizePriority(t *testing.T) {
	cases := []struct {
		name string
		in   []model.PowerSubsystem
		want []model.PowerSubsystem
	}{
		{"empty", nil, defaultPriority},
		{"partial", []model.PowerSubsystem{model.PowerSensors}, []model.PowerSubsystem{model.PowerSensors, model.PowerEngines, model.PowerShields, model.PowerWeapons}},
		{"dupes", []model.PowerSubsystem{model.PowerWeapons, model.PowerWeapons, 9}, []model.PowerSubsystem{model.PowerWeapons, model.PowerEngines, model.PowerShields, model.PowerSensors}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizePriority(tc.in); !slices.Equal(got, tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestAllocate_PriorityDecidesWhoGoesDark(t *testing.T) {
	d := Demand{Engines: 6, Shields: 3, Weapons: 4, Sensors: 1}

	a := Allocate(10, d, model.DefaultPowerPolicy())
	if !a.EnginesOnline || !a.ShieldsOnline || a.WeaponsOnline || !a.SensorsOnline {
		t.Fatalf("default priority: %+v", a)
	}
	if a.Available != 0 {
		t.Fatalf("available: got %v want 0", a.Available)
	}

	p := model.DefaultPowerPolicy()
	p.Priority = []model.PowerSubsystem{model.PowerWeapons}
	a = Allocate(10, d, p)
	if !a.WeaponsOnline || !a.EnginesOnline || a.ShieldsOnline {
		t.Fatalf("weapons first: %+v", a)
	}

	p = model.DefaultPowerPolicy()
	p.EnginesEnabled = false
	a = Allocate(10, d, p)
	if a.EnginesOnline || !a.ShieldsOnline || !a.WeaponsOnline || !a.SensorsOnline {
		t.Fatalf("engines disabled: %+v", a)
	}
}

func TestAllocate_ZeroDemandStaysOnline(t *testing.T) {
	a := Allocate(0, Demand{}, model.DefaultPowerPolicy())
	if !a.EnginesOnline || !a.SensorsOnline {
		t.Fatalf("zero-demand subsystems should stay online: %+v", a)
	}
}
