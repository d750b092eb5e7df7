package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz        int    `yaml:"tick_rate_hz"`
	SequenceIdleTicks uint64 `yaml:"sequence_idle_ticks"`
	CollideSameUser   bool   `yaml:"collide_same_user"`
	// InboxSize bounds the queued inputs per partition between ticks.
	InboxSize int `yaml:"inbox_size"`

	Abilities Abilities `yaml:"abilities"`
}

type Abilities struct {
	FireBlast FireBlast `yaml:"fire_blast"`
	AirShield AirShield `yaml:"air_shield"`
	EarthWall EarthWall `yaml:"earth_wall"`
	FireWheel FireWheel `yaml:"fire_wheel"`
	FireSpin  FireSpin  `yaml:"fire_spin"`
}

type FireBlast struct {
	CooldownTicks uint64  `yaml:"cooldown_ticks"`
	Speed         float64 `yaml:"speed"` // blocks per tick
	Range         float64 `yaml:"range"`
	Radius        float64 `yaml:"radius"`
	Damage        float64 `yaml:"damage"`
	// ChargeTicks of sneaking take the charge factor from 1 to MaxCharge.
	ChargeTicks     uint64  `yaml:"charge_ticks"`
	MaxCharge       float64 `yaml:"max_charge"`
	ExplosionRadius float64 `yaml:"explosion_radius"`
	// FireTicks is how long ignited blocks burn.
	FireTicks uint64 `yaml:"fire_ticks"`
}

type AirShield struct {
	CooldownTicks uint64  `yaml:"cooldown_ticks"`
	Radius        float64 `yaml:"radius"`
	DurationTicks uint64  `yaml:"duration_ticks"`
}

type EarthWall struct {
	CooldownTicks uint64  `yaml:"cooldown_ticks"`
	Width         int     `yaml:"width"`
	Height        int     `yaml:"height"`
	Distance      float64 `yaml:"distance"`
	DurationTicks uint64  `yaml:"duration_ticks"`
}

type FireWheel struct {
	CooldownTicks uint64  `yaml:"cooldown_ticks"`
	Radius        float64 `yaml:"radius"`
	Speed         float64 `yaml:"speed"`
	Range         float64 `yaml:"range"`
	Damage        float64 `yaml:"damage"`
}

type FireSpin struct {
	CooldownTicks uint64  `yaml:"cooldown_ticks"`
	MaxRadius     float64 `yaml:"max_radius"`
	Growth        float64 `yaml:"growth"` // blocks per tick
	Damage        float64 `yaml:"damage"`
}

// Defaults is the tuning used when no file is present.
func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:   "1.0",
		TickRateHz:        20,
		SequenceIdleTicks: 200,
		InboxSize:         1024,
		Abilities: Abilities{
			FireBlast: FireBlast{
				CooldownTicks:   30,
				Speed:           1,
				Range:           20,
				Radius:          0.5,
				Damage:          2,
				ChargeTicks:     30,
				MaxCharge:       1.5,
				ExplosionRadius: 2.5,
				FireTicks:       60,
			},
			AirShield: AirShield{CooldownTicks: 60, Radius: 3, DurationTicks: 100},
			EarthWall: EarthWall{CooldownTicks: 80, Width: 3, Height: 3, Distance: 3, DurationTicks: 200},
			FireWheel: FireWheel{CooldownTicks: 60, Radius: 1.5, Speed: 0.75, Range: 25, Damage: 3},
			FireSpin:  FireSpin{CooldownTicks: 100, MaxRadius: 5, Growth: 0.5, Damage: 4},
		},
	}
}

// Load reads path over Defaults and normalizes the result.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	return t, nil
}

// Normalize replaces unusable values with defaults.
func (t *Tuning) Normalize() {
	d := Defaults()
	if t.TickRateHz <= 0 {
		t.TickRateHz = d.TickRateHz
	}
	if t.InboxSize <= 0 {
		t.InboxSize = d.InboxSize
	}
	fb := &t.Abilities.FireBlast
	if fb.Speed <= 0 {
		fb.Speed = d.Abilities.FireBlast.Speed
	}
	if fb.Radius <= 0 {
		fb.Radius = d.Abilities.FireBlast.Radius
	}
	if fb.MaxCharge < 1 {
		fb.MaxCharge = 1
	}
	if t.Abilities.AirShield.Radius <= 0 {
		t.Abilities.AirShield.Radius = d.Abilities.AirShield.Radius
	}
	ew := &t.Abilities.EarthWall
	if ew.Width <= 0 {
		ew.Width = d.Abilities.EarthWall.Width
	}
	if ew.Height <= 0 {
		ew.Height = d.Abilities.EarthWall.Height
	}
	if t.Abilities.FireWheel.Radius <= 0 {
		t.Abilities.FireWheel.Radius = d.Abilities.FireWheel.Radius
	}
	if t.Abilities.FireSpin.Growth <= 0 {
		t.Abilities.FireSpin.Growth = d.Abilities.FireSpin.Growth
	}
}
