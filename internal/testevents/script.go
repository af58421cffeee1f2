package testevents

import (
	"math/rand"

	"github.com/okian/blurber/internal/domain/model"
)

// Ids the script uses for non-character fields.
const (
	ExperienceRevive  = 7
	WeaponItemID      = 7214
	HeavyAssaultClass = 2
	opponentBase      = 5_000_000_000_000_000_000
	baseTimestamp     = 1_700_000_000
)

// Script produces a plausible session for one character, from login through
// a kill streak, a death and revive, and a weapon unlock to logout. Event
// offsets keep the first three kills inside one streak window.
type Script struct {
	rng     *rand.Rand
	worldID uint32
}

// NewScript creates a script generator.
func NewScript(seed int64, worldID uint32) *Script {
	return &Script{
		rng:     rand.New(rand.NewSource(seed)), //nolint:gosec // synthetic data
		worldID: worldID,
	}
}

// Events returns the scripted events for id starting at start.
func (s *Script) Events(id model.EntityID, start int64) []model.Event {
	if start == 0 {
		start = baseTimestamp
	}
	h := func(offset int64, subject model.EntityID) model.Header {
		return model.Header{Timestamp: start + offset, Subject: subject, WorldID: s.worldID, ZoneID: HeavyAssaultClass}
	}
	foe := func() model.EntityID {
		return model.EntityID(opponentBase + uint64(s.rng.Int63n(1_000_000)))
	}
	medic := foe()

	return []model.Event{
		model.Login{Header: h(0, id)},
		model.Death{Header: h(10, foe()), Attacker: id, AttackerWeaponID: WeaponItemID},
		model.Death{Header: h(14, foe()), Attacker: id, AttackerWeaponID: WeaponItemID},
		model.Death{Header: h(18, foe()), Attacker: id, AttackerWeaponID: WeaponItemID, Headshot: s.rng.Intn(2) == 0},
		model.Death{Header: h(60, foe()), Attacker: id, AttackerWeaponID: WeaponItemID, Headshot: true},
		model.Death{Header: h(90, id), Attacker: foe(), AttackerWeaponID: WeaponItemID},
		model.GainExperience{Header: h(95, medic), ExperienceID: ExperienceRevive, Other: id, Amount: 75},
		model.VehicleDestroy{Header: h(130, foe()), Attacker: id, VehicleID: 4},
		model.ItemAdded{Header: h(150, id), ItemID: WeaponItemID, Context: "StoreBundle", ItemCount: 1},
		model.Logout{Header: h(200, id)},
	}
}
