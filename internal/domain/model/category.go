package model

// Category is the semantic label a session derives from an event. It doubles
// as the voicepack category name.
type Category string

// Categories.
const (
	CategoryKill              Category = "kill"
	CategoryKillHeadshot      Category = "kill_headshot"
	CategoryKillDouble        Category = "kill_double"
	CategoryKillTriple        Category = "kill_triple"
	CategoryKillQuad          Category = "kill_quad"
	CategoryKillPenta         Category = "kill_penta"
	CategoryDeath             Category = "death"
	CategorySuicide           Category = "suicide"
	CategoryLogin             Category = "login"
	CategoryLogout            Category = "logout"
	CategoryReviveTeammate    Category = "revive_teammate"
	CategoryGetRevived        Category = "get_revived"
	CategoryDestroyVehicle    Category = "destroy_vehicle"
	CategoryDestroyOwnVehicle Category = "destroy_own_vehicle"
	CategoryUnlockWeapon      Category = "unlock_weapon"
	CategoryUnlockAny         Category = "unlock_any"
	CategoryBastionPull       Category = "bastion_pull"
	CategoryCTFFlagTake       Category = "ctf_flag_take"
)

// Categories lists every label in a stable order.
func Categories() []Category {
	return []Category{
		CategoryKill, CategoryKillHeadshot, CategoryKillDouble, CategoryKillTriple,
		CategoryKillQuad, CategoryKillPenta, CategoryDeath, CategorySuicide,
		CategoryLogin, CategoryLogout, CategoryReviveTeammate, CategoryGetRevived,
		CategoryDestroyVehicle, CategoryDestroyOwnVehicle, CategoryUnlockWeapon,
		CategoryUnlockAny, CategoryBastionPull, CategoryCTFFlagTake,
	}
}

// Valid reports whether c is one of the known labels.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}
