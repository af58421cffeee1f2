package feed

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/okian/blurber/internal/domain/model"
)

// Frame types and actions of the event streaming protocol.
const (
	TypeServiceMessage  = "serviceMessage"
	TypeHeartbeat       = "heartbeat"
	TypeConnectionState = "connectionStateChanged"
	TypeServiceState    = "serviceStateChanged"

	ServiceEvent = "event"
	ServicePush  = "push"

	ActionSubscribe      = "subscribe"
	ActionClearSubscribe = "clearSubscribe"
	ActionEcho           = "echo"

	all = "all"
)

// DefaultEventNames are the event kinds the announcer subscribes to.
var DefaultEventNames = []string{
	string(model.KindLogin),
	string(model.KindLogout),
	string(model.KindDeath),
	string(model.KindVehicleDestroy),
	string(model.KindGainExperience),
	string(model.KindItemAdded),
}

// Command is a client to server frame.
type Command struct {
	Service                        string   `json:"service"`
	Action                         string   `json:"action"`
	Characters                     []string `json:"characters,omitempty"`
	EventNames                     []string `json:"eventNames,omitempty"`
	Worlds                         []string `json:"worlds,omitempty"`
	LogicalAndCharactersWithWorlds bool     `json:"logicalAndCharactersWithWorlds,omitempty"`
	All                            string   `json:"all,omitempty"`
}

// Frame is a server to client frame. Only the fields the client reads are
// decoded.
type Frame struct {
	Service      string          `json:"service,omitempty"`
	Type         string          `json:"type,omitempty"`
	Connected    string          `json:"connected,omitempty"`
	Detail       string          `json:"detail,omitempty"`
	Online       json.RawMessage `json:"online,omitempty"`
	Payload      *Payload        `json:"payload,omitempty"`
	Subscription json.RawMessage `json:"subscription,omitempty"`
}

// EndpointOnline reports the state a serviceStateChanged frame announces.
// Heartbeats carry an object under the same key, which reads as false.
func (f Frame) EndpointOnline() bool {
	var v string
	if err := json.Unmarshal(f.Online, &v); err != nil {
		return false
	}
	return v == "true"
}

// Payload is the body of a serviceMessage. Numbers arrive as decimal
// strings.
type Payload struct {
	EventName           string `json:"event_name"`
	Timestamp           string `json:"timestamp"`
	CharacterID         string `json:"character_id,omitempty"`
	WorldID             string `json:"world_id,omitempty"`
	ZoneID              string `json:"zone_id,omitempty"`
	AttackerCharacterID string `json:"attacker_character_id,omitempty"`
	AttackerWeaponID    string `json:"attacker_weapon_id,omitempty"`
	AttackerVehicleID   string `json:"attacker_vehicle_id,omitempty"`
	IsHeadshot          string `json:"is_headshot,omitempty"`
	VehicleID           string `json:"vehicle_id,omitempty"`
	ExperienceID        string `json:"experience_id,omitempty"`
	OtherID             string `json:"other_id,omitempty"`
	Amount              string `json:"amount,omitempty"`
	ItemID              string `json:"item_id,omitempty"`
	ItemCount           string `json:"item_count,omitempty"`
	Context             string `json:"context,omitempty"`
}

// numbers parses the string-encoded numeric fields, remembering the first
// failure.
type numbers struct{ err error }

func (n *numbers) u64(field, s string) uint64 {
	if s == "" || n.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		n.err = fmt.Errorf("%s: %w", field, err)
	}
	return v
}

func (n *numbers) i64(field, s string) int64 {
	if s == "" || n.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		n.err = fmt.Errorf("%s: %w", field, err)
	}
	return v
}

// Decode converts a payload into a domain event. Event names the core does
// not interpret become model.Unknown.
func (p *Payload) Decode() (model.Event, error) {
	var n numbers
	h := model.Header{
		Timestamp: n.i64("timestamp", p.Timestamp),
		Subject:   model.EntityID(n.u64("character_id", p.CharacterID)),
		WorldID:   uint32(n.u64("world_id", p.WorldID)),
		ZoneID:    uint32(n.u64("zone_id", p.ZoneID)),
	}

	var e model.Event
	switch model.Kind(p.EventName) {
	case model.KindLogin:
		e = model.Login{Header: h}
	case model.KindLogout:
		e = model.Logout{Header: h}
	case model.KindDeath:
		e = model.Death{
			Header:            h,
			Attacker:          model.EntityID(n.u64("attacker_character_id", p.AttackerCharacterID)),
			Headshot:          p.IsHeadshot == "1",
			AttackerWeaponID:  n.u64("attacker_weapon_id", p.AttackerWeaponID),
			AttackerVehicleID: n.u64("attacker_vehicle_id", p.AttackerVehicleID),
		}
	case model.KindVehicleDestroy:
		e = model.VehicleDestroy{
			Header:           h,
			Attacker:         model.EntityID(n.u64("attacker_character_id", p.AttackerCharacterID)),
			VehicleID:        n.u64("vehicle_id", p.VehicleID),
			AttackerWeaponID: n.u64("attacker_weapon_id", p.AttackerWeaponID),
		}
	case model.KindGainExperience:
		e = model.GainExperience{
			Header:       h,
			ExperienceID: uint32(n.u64("experience_id", p.ExperienceID)),
			Other:        model.EntityID(n.u64("other_id", p.OtherID)),
			Amount:       n.i64("amount", p.Amount),
		}
	case model.KindItemAdded:
		e = model.ItemAdded{
			Header:    h,
			ItemID:    n.u64("item_id", p.ItemID),
			Context:   p.Context,
			ItemCount: n.i64("item_count", p.ItemCount),
		}
	default:
		e = model.Unknown{Header: h, Name: p.EventName}
	}
	if n.err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedPayload, p.EventName, n.err)
	}
	return e, nil
}

func itoa(v uint64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatUint(v, 10)
}

func id(v model.EntityID) string { return itoa(uint64(v)) }

// Encode renders e the way the streaming service sends it.
func Encode(e model.Event) Payload {
	h := e.Head()
	p := Payload{
		EventName:   string(e.Kind()),
		Timestamp:   strconv.FormatInt(h.Timestamp, 10),
		CharacterID: id(h.Subject),
		WorldID:     itoa(uint64(h.WorldID)),
		ZoneID:      itoa(uint64(h.ZoneID)),
	}
	switch ev := e.(type) {
	case model.Death:
		p.AttackerCharacterID = id(ev.Attacker)
		p.AttackerWeaponID = itoa(ev.AttackerWeaponID)
		p.AttackerVehicleID = itoa(ev.AttackerVehicleID)
		p.IsHeadshot = "0"
		if ev.Headshot {
			p.IsHeadshot = "1"
		}
	case model.VehicleDestroy:
		p.AttackerCharacterID = id(ev.Attacker)
		p.VehicleID = itoa(ev.VehicleID)
		p.AttackerWeaponID = itoa(ev.AttackerWeaponID)
	case model.GainExperience:
		p.ExperienceID = itoa(uint64(ev.ExperienceID))
		p.OtherID = id(ev.Other)
		p.Amount = strconv.FormatInt(ev.Amount, 10)
	case model.ItemAdded:
		p.ItemID = itoa(ev.ItemID)
		p.Context = ev.Context
		p.ItemCount = strconv.FormatInt(ev.ItemCount, 10)
	}
	return p
}
