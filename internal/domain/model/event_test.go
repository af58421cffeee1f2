package model_test

import (
	"testing"

	model "github.com/okian/blurber/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestParticipants(t *testing.T) {
	convey.Convey("Given events of every participant shape", t, func() {
		convey.Convey("When a character kills another", func() {
			ids := model.Participants(model.Death{Header: model.Header{Subject: 1}, Attacker: 42})

			convey.Convey("Then victim and attacker are both returned", func() {
				convey.So(ids, convey.ShouldResemble, []model.EntityID{1, 42})
			})
		})

		convey.Convey("When a character kills itself", func() {
			ids := model.Participants(model.Death{Header: model.Header{Subject: 42}, Attacker: 42})

			convey.Convey("Then the id appears once", func() {
				convey.So(ids, convey.ShouldResemble, []model.EntityID{42})
			})
		})

		convey.Convey("When a revive names the other party", func() {
			ids := model.Participants(model.GainExperience{Header: model.Header{Subject: 7}, ExperienceID: 7, Other: 9})

			convey.Convey("Then both are returned", func() {
				convey.So(ids, convey.ShouldResemble, []model.EntityID{7, 9})
			})
		})

		convey.Convey("When an environment death has no attacker", func() {
			ids := model.Participants(model.Death{Header: model.Header{Subject: 5}})

			convey.Convey("Then the zero attacker is skipped", func() {
				convey.So(ids, convey.ShouldResemble, []model.EntityID{5})
			})
		})

		convey.Convey("When the event only has a subject", func() {
			convey.So(model.Participants(model.Login{Header: model.Header{Subject: 3}}), convey.ShouldResemble, []model.EntityID{3})
			convey.So(model.Participants(model.ItemAdded{Header: model.Header{Subject: 3}, ItemID: 1}), convey.ShouldResemble, []model.EntityID{3})
		})
	})
}

func TestFingerprint(t *testing.T) {
	convey.Convey("Given two deliveries of one death", t, func() {
		a := model.Death{Header: model.Header{Timestamp: 100, Subject: 1, WorldID: 17}, Attacker: 42, AttackerWeaponID: 80}
		b := a

		convey.Convey("Then their fingerprints match", func() {
			convey.So(model.Fingerprint(a), convey.ShouldEqual, model.Fingerprint(b))
		})

		convey.Convey("And a different attacker changes the fingerprint", func() {
			b.Attacker = 43
			convey.So(model.Fingerprint(a), convey.ShouldNotEqual, model.Fingerprint(b))
		})

		convey.Convey("And kinds never collide", func() {
			login := model.Login{Header: a.Header}
			logout := model.Logout{Header: a.Header}
			convey.So(model.Fingerprint(login), convey.ShouldNotEqual, model.Fingerprint(logout))
		})
	})
}

func TestEntityID(t *testing.T) {
	convey.Convey("Given a decimal character id", t, func() {
		id, err := model.ParseEntityID("5428713425545165425")

		convey.Convey("Then it round-trips through String", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(id.String(), convey.ShouldEqual, "5428713425545165425")
		})

		convey.Convey("And garbage is rejected", func() {
			_, err := model.ParseEntityID("bob")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})

	convey.Convey("Given the category set", t, func() {
		convey.So(model.CategoryKillPenta.Valid(), convey.ShouldBeTrue)
		convey.So(model.Category("kill_hexa").Valid(), convey.ShouldBeFalse)
		convey.So(model.Categories(), convey.ShouldHaveLength, 18)
	})
}
