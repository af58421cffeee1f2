// Package classify maps game events to the announcement category a tracked
// character should hear.
package classify

import "github.com/okian/blurber/internal/domain/model"

// Game constants the rules key on.
const (
	// StreakWindow is the maximum gap in seconds between two kills of one streak.
	StreakWindow int64 = 12

	ExperienceRevive      uint32 = 7
	ExperienceSquadRevive uint32 = 53

	ContextCTFFlagTake = "CaptureTheFlag.TakeFlag"
	ContextGuildBank   = "GuildBankWithdrawal"
	BastionPullItemID  = 6008913
)

// WeaponSet reports whether an item id is a weapon.
type WeaponSet interface {
	Contains(itemID uint64) bool
}

type noWeapons struct{}

func (noWeapons) Contains(uint64) bool { return false }

// Streak is the per-session kill-streak state.
type Streak struct {
	Count         int
	LastTimestamp int64
}

// Option applies a configuration option to the Classifier.
type Option func(*Classifier)

// WithWeaponSet sets the weapon lookup used for unlock_weapon.
func WithWeaponSet(ws WeaponSet) Option {
	return func(c *Classifier) {
		if ws != nil {
			c.weapons = ws
		}
	}
}

// Classifier turns events into categories. It holds no per-session state and
// is safe for concurrent use; streak state is owned by the caller.
type Classifier struct {
	weapons WeaponSet
}

// New creates a classifier. Without WithWeaponSet every unlock is unlock_any.
func New(opts ...Option) *Classifier {
	c := &Classifier{weapons: noWeapons{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the category e yields for the tracked character, if any.
// Kills credited to tracked advance st.
func (c *Classifier) Classify(e model.Event, tracked model.EntityID, st *Streak) (model.Category, bool) {
	switch ev := e.(type) {
	case model.Login:
		if ev.Subject == tracked {
			return model.CategoryLogin, true
		}
	case model.Logout:
		if ev.Subject == tracked {
			return model.CategoryLogout, true
		}
	case model.Death:
		return c.death(ev, tracked, st)
	case model.VehicleDestroy:
		// The owner destroying their own vehicle takes precedence over the
		// attacker branch, which would otherwise also match.
		if ev.Subject == tracked && ev.Attacker == ev.Subject {
			return model.CategoryDestroyOwnVehicle, true
		}
		if ev.Attacker == tracked {
			return model.CategoryDestroyVehicle, true
		}
	case model.GainExperience:
		if ev.ExperienceID != ExperienceRevive && ev.ExperienceID != ExperienceSquadRevive {
			return "", false
		}
		if ev.Subject == tracked {
			return model.CategoryReviveTeammate, true
		}
		if ev.Other == tracked {
			return model.CategoryGetRevived, true
		}
	case model.ItemAdded:
		if ev.Subject == tracked {
			return c.item(ev), true
		}
	case model.Unknown:
	}
	return "", false
}

func (c *Classifier) death(ev model.Death, tracked model.EntityID, st *Streak) (model.Category, bool) {
	if ev.Subject == tracked {
		if ev.Attacker == ev.Subject {
			return model.CategorySuicide, true
		}
		return model.CategoryDeath, true
	}
	if ev.Attacker != tracked {
		return "", false
	}
	if st == nil {
		st = &Streak{}
	}
	return StreakCategory(st.Advance(ev.Timestamp), ev.Headshot), true
}

func (c *Classifier) item(ev model.ItemAdded) model.Category {
	switch {
	case ev.Context == ContextCTFFlagTake:
		return model.CategoryCTFFlagTake
	case ev.Context == ContextGuildBank && ev.ItemID == BastionPullItemID:
		return model.CategoryBastionPull
	case c.weapons.Contains(ev.ItemID):
		return model.CategoryUnlockWeapon
	default:
		return model.CategoryUnlockAny
	}
}

// Advance records a kill at t and returns the resulting streak count. A kill
// continues the streak when the previous one happened less than StreakWindow
// seconds earlier; otherwise the streak restarts at one.
func (s *Streak) Advance(t int64) int {
	if s.Count > 0 && s.LastTimestamp > t-StreakWindow {
		s.Count++
	} else {
		s.Count = 1
	}
	s.LastTimestamp = t
	return s.Count
}

// StreakCategory maps a streak count to its label. Headshot only matters for
// the opening kill.
func StreakCategory(count int, headshot bool) model.Category {
	switch {
	case count <= 1:
		if headshot {
			return model.CategoryKillHeadshot
		}
		return model.CategoryKill
	case count == 2:
		return model.CategoryKillDouble
	case count == 3:
		return model.CategoryKillTriple
	case count == 4:
		return model.CategoryKillQuad
	default:
		return model.CategoryKillPenta
	}
}
