package testevents_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/blurber/internal/adapters/feed"
	"github.com/okian/blurber/internal/domain/model"
	"github.com/okian/blurber/internal/testevents"
)

func TestScript(t *testing.T) {
	Convey("Given a script for one character", t, func() {
		const id = model.EntityID(42)
		events := testevents.NewScript(1, 17).Events(id, 1_000)

		Convey("Then it runs from login to logout in time order", func() {
			So(events, ShouldHaveLength, 10)
			So(events[0].Kind(), ShouldEqual, model.KindLogin)
			So(events[len(events)-1].Kind(), ShouldEqual, model.KindLogout)
			for i := 1; i < len(events); i++ {
				So(events[i].Head().Timestamp, ShouldBeGreaterThan, events[i-1].Head().Timestamp)
			}
		})

		Convey("Then every event involves the character", func() {
			for _, e := range events {
				So(model.Participants(e), ShouldContain, id)
				So(e.Head().WorldID, ShouldEqual, uint32(17))
			}
		})

		Convey("Then the same seed gives the same opponents", func() {
			again := testevents.NewScript(1, 17).Events(id, 1_000)
			So(again, ShouldResemble, events)
		})
	})
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func nextFrame(conn *websocket.Conn) (feed.Frame, error) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var f feed.Frame
	_, data, err := conn.ReadMessage()
	if err != nil {
		return f, err
	}
	err = json.Unmarshal(data, &f)
	return f, err
}

func TestServer(t *testing.T) {
	Convey("Given a fake streaming server scripting two characters", t, func() {
		srv := testevents.NewServer(testevents.Config{
			Characters: []model.EntityID{42, 43},
			Interval:   5 * time.Millisecond,
			Heartbeat:  time.Hour,
			Seed:       1,
		})
		hs := httptest.NewServer(srv)
		defer hs.Close()
		conn := dial(t, "ws"+strings.TrimPrefix(hs.URL, "http"))
		defer conn.Close()

		Convey("When a client connects", func() {
			f, err := nextFrame(conn)

			Convey("Then the connection state is announced first", func() {
				So(err, ShouldBeNil)
				So(f.Type, ShouldEqual, feed.TypeConnectionState)
				So(f.Connected, ShouldEqual, "true")
			})

			Convey("And a subscription only streams the subscribed character", func() {
				So(conn.WriteJSON(feed.Command{
					Service:    feed.ServiceEvent,
					Action:     feed.ActionSubscribe,
					Characters: []string{"43"},
				}), ShouldBeNil)

				var acked bool
				var got []model.Event
				for len(got) < 3 {
					f, err := nextFrame(conn)
					So(err, ShouldBeNil)
					if len(f.Subscription) > 0 {
						acked = true
						continue
					}
					if f.Type != feed.TypeServiceMessage {
						continue
					}
					e, err := f.Payload.Decode()
					So(err, ShouldBeNil)
					got = append(got, e)
				}
				So(acked, ShouldBeTrue)
				So(got[0].Kind(), ShouldEqual, model.KindLogin)
				for _, e := range got {
					So(model.Participants(e), ShouldContain, model.EntityID(43))
					So(model.Participants(e), ShouldNotContain, model.EntityID(42))
				}
				So(srv.Stats().Events, ShouldBeGreaterThanOrEqualTo, 2)
			})
		})
	})
}

func TestFeedAgainstServer(t *testing.T) {
	Convey("Given the feed client connected to the fake server", t, func() {
		srv := testevents.NewServer(testevents.Config{
			Characters: []model.EntityID{42},
			Interval:   2 * time.Millisecond,
			Heartbeat:  time.Hour,
			Seed:       7,
		})
		hs := httptest.NewServer(srv)
		defer hs.Close()

		c := feed.New("ws"+strings.TrimPrefix(hs.URL, "http"), feed.WithPingInterval(time.Hour))
		So(c.Subscribe(context.Background(), 42), ShouldBeNil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- c.Run(ctx) }()

		Convey("When the whole script has been played", func() {
			want := testevents.NewScript(7, 0).Events(42, 0)
			var got []model.Event
			timeout := time.After(5 * time.Second)
			for len(got) < len(want) {
				select {
				case e := <-c.Events():
					got = append(got, e)
				case <-timeout:
					t.Fatalf("received %d of %d events", len(got), len(want))
				}
			}

			Convey("Then the client decodes every event in order", func() {
				for i := range want {
					So(got[i].Kind(), ShouldEqual, want[i].Kind())
				}
				So(got[len(got)-1].Kind(), ShouldEqual, model.KindLogout)
			})

			Convey("And cancelling the client ends the stream cleanly", func() {
				cancel()
				So(<-done, ShouldBeNil)
			})
		})
	})
}

func TestApp(t *testing.T) {
	Convey("Given the fake-ess command line", t, func() {
		Convey("When no character is given", func() {
			err := testevents.NewApp().Run([]string{"fake-ess"})

			Convey("Then it refuses to start", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "--character")
			})
		})

		Convey("When a character id is not a number", func() {
			err := testevents.NewApp().Run([]string{"fake-ess", "--character", "bob"})

			Convey("Then the id is rejected", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "bob")
			})
		})
	})
}
