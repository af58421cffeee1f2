package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/blurber/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const deathFrame = `{"payload":{"attacker_character_id":"42","attacker_fire_mode_id":"7021","attacker_loadout_id":"15",
"attacker_vehicle_id":"0","attacker_weapon_id":"7214","character_id":"5428010618041061537","character_loadout_id":"8",
"event_name":"Death","is_critical":"0","is_headshot":"1","timestamp":"1700000100","vehicle_id":"0","world_id":"17","zone_id":"2"},
"service":"event","type":"serviceMessage"}`

func TestPayloadDecode(t *testing.T) {
	Convey("Given a death frame as sent by the streaming service", t, func() {
		var f Frame
		So(json.Unmarshal([]byte(deathFrame), &f), ShouldBeNil)

		Convey("When it is decoded", func() {
			e, err := f.Payload.Decode()

			Convey("Then the string-encoded fields become a typed event", func() {
				So(err, ShouldBeNil)
				d, ok := e.(model.Death)
				So(ok, ShouldBeTrue)
				So(d.Subject, ShouldEqual, model.EntityID(5428010618041061537))
				So(d.Attacker, ShouldEqual, model.EntityID(42))
				So(d.Headshot, ShouldBeTrue)
				So(d.Timestamp, ShouldEqual, int64(1700000100))
				So(d.WorldID, ShouldEqual, uint32(17))
				So(d.AttackerWeaponID, ShouldEqual, uint64(7214))
			})
		})

		Convey("When a field is not a number", func() {
			f.Payload.AttackerCharacterID = "bob"
			_, err := f.Payload.Decode()

			Convey("Then the payload is rejected", func() {
				So(errors.Is(err, ErrMalformedPayload), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "attacker_character_id")
			})
		})

		Convey("When the event name is not interpreted", func() {
			f.Payload.EventName = "FacilityControl"
			e, err := f.Payload.Decode()

			Convey("Then it decodes as unknown", func() {
				So(err, ShouldBeNil)
				So(e.Kind(), ShouldEqual, model.Kind("FacilityControl"))
			})
		})
	})

	Convey("Given events encoded for the wire", t, func() {
		events := []model.Event{
			model.GainExperience{Header: model.Header{Timestamp: 5, Subject: 7, WorldID: 1}, ExperienceID: 53, Other: 42, Amount: 75},
			model.ItemAdded{Header: model.Header{Timestamp: 6, Subject: 42}, ItemID: 6008913, Context: "GuildBankWithdrawal", ItemCount: 1},
			model.VehicleDestroy{Header: model.Header{Timestamp: 7, Subject: 42}, Attacker: 42, VehicleID: 4},
		}

		Convey("Then decoding yields the same events", func() {
			for _, e := range events {
				p := Encode(e)
				back, err := p.Decode()
				So(err, ShouldBeNil)
				So(back, ShouldResemble, e)
			}
		})
	})
}

// fakeESS accepts one connection, records the commands it receives and
// sends whatever is pushed on frames.
type fakeESS struct {
	commands chan Command
	frames   chan string
}

func (s *fakeESS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	go func() {
		for {
			var cmd Command
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			s.commands <- cmd
		}
	}()
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"connected":"true","service":"push","type":"connectionStateChanged"}`))
	for f := range s.frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			return
		}
	}
}

func TestClient(t *testing.T) {
	Convey("Given a streaming server", t, func() {
		ess := &fakeESS{commands: make(chan Command, 8), frames: make(chan string, 8)}
		srv := httptest.NewServer(ess)
		defer srv.Close()
		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

		c := New(wsURL, WithServiceID("example"), WithPingInterval(time.Hour))
		So(c.Subscribe(context.Background(), 42), ShouldBeNil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- c.Run(ctx) }()

		Convey("When it connects", func() {
			cmd := <-ess.commands

			Convey("Then it subscribes to the tracked characters", func() {
				So(cmd.Action, ShouldEqual, ActionSubscribe)
				So(cmd.Characters, ShouldResemble, []string{"42"})
				So(cmd.EventNames, ShouldContain, "Death")
				So(cmd.LogicalAndCharactersWithWorlds, ShouldBeTrue)
			})

			Convey("And runtime subscription changes are sent", func() {
				So(c.Subscribe(ctx, 7), ShouldBeNil)
				So((<-ess.commands).Characters, ShouldResemble, []string{"7"})
				So(c.Unsubscribe(ctx, 7), ShouldBeNil)
				So((<-ess.commands).Action, ShouldEqual, ActionClearSubscribe)
			})

			Convey("And service messages surface as events while heartbeats do not", func() {
				ess.frames <- `{"online":{},"service":"event","type":"heartbeat"}`
				ess.frames <- deathFrame
				e := <-c.Events()
				So(e.Kind(), ShouldEqual, model.KindDeath)
			})

			Convey("And endpoint state changes are tracked", func() {
				ess.frames <- `{"detail":"EventServerEndpoint_Connery_1","online":"false","service":"event","type":"serviceStateChanged"}`
				ess.frames <- `{"detail":"EventServerEndpoint_Miller_10","online":"false","service":"event","type":"serviceStateChanged"}`
				ess.frames <- `{"detail":"EventServerEndpoint_Miller_10","online":"true","service":"event","type":"serviceStateChanged"}`
				ess.frames <- deathFrame
				<-c.Events()
				So(c.OfflineEndpoints(), ShouldResemble, []string{"EventServerEndpoint_Connery_1"})
			})

			Convey("And the server going away ends the stream with an error", func() {
				close(ess.frames)
				for range c.Events() {
				}
				So(c.Err(), ShouldNotBeNil)
				So(<-done, ShouldNotBeNil)
			})
		})

		Convey("When the context is cancelled", func() {
			<-ess.commands
			cancel()

			Convey("Then Run ends cleanly", func() {
				So(<-done, ShouldBeNil)
				So(c.Err(), ShouldBeNil)
				close(ess.frames)
			})
		})
	})
}

func TestFrameEndpointOnline(t *testing.T) {
	Convey("Given state and heartbeat frames", t, func() {
		var up, down, beat Frame
		So(json.Unmarshal([]byte(`{"detail":"EventServerEndpoint_Cobalt_13","online":"true","type":"serviceStateChanged"}`), &up), ShouldBeNil)
		So(json.Unmarshal([]byte(`{"detail":"EventServerEndpoint_Cobalt_13","online":"false","type":"serviceStateChanged"}`), &down), ShouldBeNil)
		So(json.Unmarshal([]byte(`{"online":{"EventServerEndpoint_Cobalt_13":"true"},"type":"heartbeat"}`), &beat), ShouldBeNil)

		Convey("Then only an online state frame reads as online", func() {
			So(up.EndpointOnline(), ShouldBeTrue)
			So(down.EndpointOnline(), ShouldBeFalse)
			So(beat.EndpointOnline(), ShouldBeFalse)
			So(up.Detail, ShouldEqual, "EventServerEndpoint_Cobalt_13")
		})
	})
}

func TestEndpoint(t *testing.T) {
	Convey("Given the default endpoint and a service id", t, func() {
		c := New(DefaultURL, WithServiceID("example"))
		u, err := c.Endpoint()

		Convey("Then the service id is added to the query", func() {
			So(err, ShouldBeNil)
			So(u, ShouldContainSubstring, "environment=ps2")
			So(u, ShouldContainSubstring, "service-id=s%3Aexample")
		})
	})
}
