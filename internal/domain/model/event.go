// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strconv"
)

// EntityID identifies a game character.
type EntityID uint64

// String renders the id the way the upstream feed encodes it.
func (id EntityID) String() string { return strconv.FormatUint(uint64(id), 10) }

// ParseEntityID parses a decimal character id.
func ParseEntityID(s string) (EntityID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse entity id %q: %w", s, err)
	}
	return EntityID(v), nil
}

// Kind names an event variant. Values match the upstream event_name field.
type Kind string

// Event kinds.
const (
	KindLogin          Kind = "PlayerLogin"
	KindLogout         Kind = "PlayerLogout"
	KindDeath          Kind = "Death"
	KindVehicleDestroy Kind = "VehicleDestroy"
	KindGainExperience Kind = "GainExperience"
	KindItemAdded      Kind = "ItemAdded"
)

// Header carries the fields every event variant has.
type Header struct {
	Timestamp int64    // epoch seconds
	Subject   EntityID // character_id
	WorldID   uint32
	ZoneID    uint32
}

// Event is a closed set of game-world events. The unexported method keeps
// the set closed to this package; consumers type-switch over the variants.
type Event interface {
	Kind() Kind
	Head() Header
	isEvent()
}

// Login is emitted when a character enters the world.
type Login struct{ Header }

// Logout is emitted when a character leaves the world.
type Logout struct{ Header }

// Death is emitted when Subject is killed by Attacker.
type Death struct {
	Header
	Attacker          EntityID
	Headshot          bool
	AttackerWeaponID  uint64
	AttackerVehicleID uint64
}

// VehicleDestroy is emitted when Attacker destroys a vehicle owned by Subject.
type VehicleDestroy struct {
	Header
	Attacker         EntityID
	VehicleID        uint64
	AttackerWeaponID uint64
}

// GainExperience is emitted when Subject earns experience, optionally
// involving a second character (Other), e.g. the one revived.
type GainExperience struct {
	Header
	ExperienceID uint32
	Other        EntityID
	Amount       int64
}

// ItemAdded is emitted when Subject receives an item.
type ItemAdded struct {
	Header
	ItemID    uint64
	Context   string
	ItemCount int64
}

// Unknown carries any event kind the core does not interpret.
type Unknown struct {
	Header
	Name string
}

func (e Login) Kind() Kind          { return KindLogin }
func (e Logout) Kind() Kind         { return KindLogout }
func (e Death) Kind() Kind          { return KindDeath }
func (e VehicleDestroy) Kind() Kind { return KindVehicleDestroy }
func (e GainExperience) Kind() Kind { return KindGainExperience }
func (e ItemAdded) Kind() Kind      { return KindItemAdded }
func (e Unknown) Kind() Kind        { return Kind(e.Name) }

func (h Header) Head() Header { return h }

func (Login) isEvent()          {}
func (Logout) isEvent()         {}
func (Death) isEvent()          {}
func (VehicleDestroy) isEvent() {}
func (GainExperience) isEvent() {}
func (ItemAdded) isEvent()      {}
func (Unknown) isEvent()        {}

// Participants returns the distinct characters involved in e: the subject,
// the attacker for Death and VehicleDestroy, and the other party for
// GainExperience. Zero ids are skipped and duplicates collapse, so a suicide
// yields a single id.
func Participants(e Event) []EntityID {
	ids := make([]EntityID, 0, 3)
	add := func(id EntityID) {
		if id == 0 {
			return
		}
		for _, seen := range ids {
			if seen == id {
				return
			}
		}
		ids = append(ids, id)
	}

	add(e.Head().Subject)
	switch ev := e.(type) {
	case Death:
		add(ev.Attacker)
	case VehicleDestroy:
		add(ev.Attacker)
	case GainExperience:
		add(ev.Other)
	}
	return ids
}

// Fingerprint returns a key that is equal for two deliveries of the same
// upstream event.
func Fingerprint(e Event) string {
	h := e.Head()
	base := fmt.Sprintf("%s|%d|%d|%d", e.Kind(), h.Timestamp, h.Subject, h.WorldID)
	switch ev := e.(type) {
	case Death:
		return fmt.Sprintf("%s|%d|%d|%t", base, ev.Attacker, ev.AttackerWeaponID, ev.Headshot)
	case VehicleDestroy:
		return fmt.Sprintf("%s|%d|%d", base, ev.Attacker, ev.VehicleID)
	case GainExperience:
		return fmt.Sprintf("%s|%d|%d|%d", base, ev.ExperienceID, ev.Other, ev.Amount)
	case ItemAdded:
		return fmt.Sprintf("%s|%d|%s|%d", base, ev.ItemID, ev.Context, ev.ItemCount)
	default:
		return base
	}
}
