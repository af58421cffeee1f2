package classify

import (
	"testing"

	"github.com/okian/blurber/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type weaponList map[uint64]bool

func (w weaponList) Contains(id uint64) bool { return w[id] }

const tracked model.EntityID = 42

func kill(t int64, victim model.EntityID, headshot bool) model.Death {
	return model.Death{Header: model.Header{Timestamp: t, Subject: victim}, Attacker: tracked, Headshot: headshot}
}

func TestStreakLaws(t *testing.T) {
	Convey("Given an empty streak", t, func() {
		st := &Streak{}

		Convey("When kills arrive within the window", func() {
			counts := []int{st.Advance(1000), st.Advance(1005), st.Advance(1009)}

			Convey("Then the count climbs one per kill", func() {
				So(counts, ShouldResemble, []int{1, 2, 3})
				So(st.LastTimestamp, ShouldEqual, int64(1009))
			})
		})

		Convey("When the gap exceeds the window", func() {
			st.Advance(1000)
			st.Advance(1005)
			st.Advance(1010)

			Convey("Then the streak resets to one regardless of its size", func() {
				So(st.Advance(1023), ShouldEqual, 1)
			})
		})

		Convey("When the gap is exactly the window", func() {
			st.Advance(1000)

			Convey("Then the streak resets", func() {
				So(st.Advance(1012), ShouldEqual, 1)
			})
		})

		Convey("When the gap is one second inside the window", func() {
			st.Advance(1000)

			Convey("Then the streak continues", func() {
				So(st.Advance(1011), ShouldEqual, 2)
			})
		})
	})

	Convey("Given streak counts", t, func() {
		So(StreakCategory(1, false), ShouldEqual, model.CategoryKill)
		So(StreakCategory(1, true), ShouldEqual, model.CategoryKillHeadshot)
		So(StreakCategory(2, true), ShouldEqual, model.CategoryKillDouble)
		So(StreakCategory(3, false), ShouldEqual, model.CategoryKillTriple)
		So(StreakCategory(4, false), ShouldEqual, model.CategoryKillQuad)
		So(StreakCategory(5, false), ShouldEqual, model.CategoryKillPenta)
		So(StreakCategory(11, true), ShouldEqual, model.CategoryKillPenta)
	})
}

func TestKillScenario(t *testing.T) {
	Convey("Given a classifier tracking character 42", t, func() {
		c := New()
		st := &Streak{}

		Convey("When 42 kills at 100, 105 (headshot) and 130", func() {
			var got []model.Category
			for _, ev := range []model.Death{kill(100, 1, false), kill(105, 2, true), kill(130, 3, false)} {
				cat, ok := c.Classify(ev, tracked, st)
				So(ok, ShouldBeTrue)
				got = append(got, cat)
			}

			Convey("Then the second kill doubles and the third restarts the streak", func() {
				So(got, ShouldResemble, []model.Category{model.CategoryKill, model.CategoryKillDouble, model.CategoryKill})
			})
		})

		Convey("When six kills land inside the window", func() {
			var last model.Category
			for i := int64(0); i < 6; i++ {
				last, _ = c.Classify(kill(200+i*2, 7, false), tracked, st)
			}

			Convey("Then the label saturates at penta", func() {
				So(last, ShouldEqual, model.CategoryKillPenta)
				So(st.Count, ShouldEqual, 6)
			})
		})
	})
}

func TestClassifyRules(t *testing.T) {
	Convey("Given a classifier with a weapon set", t, func() {
		c := New(WithWeaponSet(weaponList{80: true}))
		st := &Streak{}
		h := func(subject model.EntityID) model.Header {
			return model.Header{Timestamp: 50, Subject: subject}
		}
		check := func(e model.Event) (model.Category, bool) { return c.Classify(e, tracked, st) }

		Convey("Then login and logout match only the tracked subject", func() {
			cat, ok := check(model.Login{Header: h(tracked)})
			So(ok, ShouldBeTrue)
			So(cat, ShouldEqual, model.CategoryLogin)

			cat, ok = check(model.Logout{Header: h(tracked)})
			So(ok, ShouldBeTrue)
			So(cat, ShouldEqual, model.CategoryLogout)

			_, ok = check(model.Login{Header: h(9)})
			So(ok, ShouldBeFalse)
		})

		Convey("Then deaths of the tracked character are death or suicide", func() {
			cat, _ := check(model.Death{Header: h(tracked), Attacker: 9})
			So(cat, ShouldEqual, model.CategoryDeath)

			cat, _ = check(model.Death{Header: h(tracked), Attacker: tracked})
			So(cat, ShouldEqual, model.CategorySuicide)
			So(st.Count, ShouldEqual, 0)
		})

		Convey("Then unrelated deaths yield nothing", func() {
			_, ok := check(model.Death{Header: h(1), Attacker: 2})
			So(ok, ShouldBeFalse)
		})

		Convey("Then vehicle kills follow ownership", func() {
			cat, _ := check(model.VehicleDestroy{Header: h(tracked), Attacker: tracked})
			So(cat, ShouldEqual, model.CategoryDestroyOwnVehicle)

			cat, _ = check(model.VehicleDestroy{Header: h(9), Attacker: tracked})
			So(cat, ShouldEqual, model.CategoryDestroyVehicle)

			_, ok := check(model.VehicleDestroy{Header: h(tracked), Attacker: 9})
			So(ok, ShouldBeFalse)
		})

		Convey("Then revives are recognised from both sides", func() {
			cat, _ := check(model.GainExperience{Header: h(tracked), ExperienceID: ExperienceRevive, Other: 9})
			So(cat, ShouldEqual, model.CategoryReviveTeammate)

			cat, _ = check(model.GainExperience{Header: h(9), ExperienceID: ExperienceSquadRevive, Other: tracked})
			So(cat, ShouldEqual, model.CategoryGetRevived)

			_, ok := check(model.GainExperience{Header: h(tracked), ExperienceID: 1})
			So(ok, ShouldBeFalse)
		})

		Convey("Then item pickups are labelled by context and weapon set", func() {
			cat, _ := check(model.ItemAdded{Header: h(tracked), Context: ContextCTFFlagTake, ItemID: 80})
			So(cat, ShouldEqual, model.CategoryCTFFlagTake)

			cat, _ = check(model.ItemAdded{Header: h(tracked), Context: ContextGuildBank, ItemID: BastionPullItemID})
			So(cat, ShouldEqual, model.CategoryBastionPull)

			cat, _ = check(model.ItemAdded{Header: h(tracked), Context: ContextGuildBank, ItemID: 80})
			So(cat, ShouldEqual, model.CategoryUnlockWeapon)

			cat, _ = check(model.ItemAdded{Header: h(tracked), ItemID: 81})
			So(cat, ShouldEqual, model.CategoryUnlockAny)

			_, ok := check(model.ItemAdded{Header: h(9), ItemID: 80})
			So(ok, ShouldBeFalse)
		})

		Convey("Then unknown kinds yield nothing", func() {
			_, ok := check(model.Unknown{Header: h(tracked), Name: "FacilityControl"})
			So(ok, ShouldBeFalse)
		})
	})
}
