package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/blurber/internal/adapters/mq/queue"
	"github.com/okian/blurber/internal/domain/dedupe"
	"github.com/okian/blurber/internal/domain/dispatch"
	"github.com/okian/blurber/internal/domain/model"
	"github.com/okian/blurber/internal/domain/registry"
	"github.com/smartystreets/goconvey/convey"
)

type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) Deliver(_ context.Context, e model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type chanFeed struct {
	ch  chan model.Event
	err error
}

func (f *chanFeed) Events() <-chan model.Event { return f.ch }
func (f *chanFeed) Err() error                 { return f.err }

func hdr(t int64, subject model.EntityID) model.Header {
	return model.Header{Timestamp: t, Subject: subject}
}

func TestDispatchRouting(t *testing.T) {
	convey.Convey("Given sessions for characters 42 and 7", t, func() {
		reg := registry.New()
		s42, s7 := &recorder{}, &recorder{}
		convey.So(reg.Register(42, s42), convey.ShouldBeNil)
		convey.So(reg.Register(7, s7), convey.ShouldBeNil)
		d := dispatch.New(reg)
		ctx := context.Background()

		convey.Convey("When 42 kills an untracked character", func() {
			n := d.Dispatch(ctx, model.Death{Header: hdr(1, 1), Attacker: 42})

			convey.Convey("Then only the attacker's session receives it", func() {
				convey.So(n, convey.ShouldEqual, 1)
				convey.So(s42.count(), convey.ShouldEqual, 1)
				convey.So(s7.count(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When 42 kills itself", func() {
			n := d.Dispatch(ctx, model.Death{Header: hdr(1, 42), Attacker: 42})

			convey.Convey("Then the session receives it exactly once", func() {
				convey.So(n, convey.ShouldEqual, 1)
				convey.So(s42.count(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When 7 revives 42", func() {
			n := d.Dispatch(ctx, model.GainExperience{Header: hdr(1, 7), ExperienceID: 7, Other: 42})

			convey.Convey("Then both sessions receive it", func() {
				convey.So(n, convey.ShouldEqual, 2)
				convey.So(s42.count(), convey.ShouldEqual, 1)
				convey.So(s7.count(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When 7 destroys a vehicle owned by 42", func() {
			n := d.Dispatch(ctx, model.VehicleDestroy{Header: hdr(1, 42), Attacker: 7, VehicleID: 4})

			convey.Convey("Then owner and destroyer receive it", func() {
				convey.So(n, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When an item event names a tracked character only as subject", func() {
			n := d.Dispatch(ctx, model.ItemAdded{Header: hdr(1, 7), ItemID: 80})

			convey.Convey("Then only the subject's session receives it", func() {
				convey.So(n, convey.ShouldEqual, 1)
				convey.So(s7.count(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When no participant is tracked", func() {
			n := d.Dispatch(ctx, model.Death{Header: hdr(1, 100), Attacker: 101})

			convey.Convey("Then nothing is delivered", func() {
				convey.So(n, convey.ShouldEqual, 0)
				convey.So(s42.count()+s7.count(), convey.ShouldEqual, 0)
			})
		})
	})
}

func TestDispatchDuplicates(t *testing.T) {
	convey.Convey("Given a dispatcher with a deduper", t, func() {
		reg := registry.New()
		s42 := &recorder{}
		_ = reg.Register(42, s42)
		d := dispatch.New(reg, dispatch.WithDeduper(dedupe.NewLRUDeduper(dedupe.WithMaxSize(16))))
		e := model.Death{Header: hdr(100, 1), Attacker: 42}

		convey.Convey("When the feed repeats an event", func() {
			d.Dispatch(context.Background(), e)
			d.Dispatch(context.Background(), e)

			convey.Convey("Then it is delivered once", func() {
				convey.So(s42.count(), convey.ShouldEqual, 1)
			})
		})
	})
}

func TestDispatchBackpressure(t *testing.T) {
	convey.Convey("Given one stalled session and one healthy session", t, func() {
		reg := registry.New()
		stalled := queue.NewInbox(queue.WithCapacity(1), queue.WithSendTimeout(20*time.Millisecond))
		healthy := &recorder{}
		_ = reg.Register(42, stalled)
		_ = reg.Register(7, healthy)
		d := dispatch.New(reg)

		convey.Convey("When events for both keep arriving", func() {
			start := time.Now()
			for i := int64(0); i < 3; i++ {
				d.Dispatch(context.Background(), model.Death{Header: hdr(i, 42), Attacker: 7})
			}
			elapsed := time.Since(start)

			convey.Convey("Then the healthy session gets every event and the stall is bounded", func() {
				convey.So(healthy.count(), convey.ShouldEqual, 3)
				convey.So(stalled.Len(), convey.ShouldEqual, 1)
				convey.So(elapsed, convey.ShouldBeLessThan, time.Second)
			})
		})

		convey.Convey("When the stalled session has closed", func() {
			_ = stalled.Close()
			n := d.Dispatch(context.Background(), model.Login{Header: hdr(1, 42)})

			convey.Convey("Then the event is treated as undeliverable", func() {
				convey.So(n, convey.ShouldEqual, 0)
			})
		})
	})
}

func TestDispatchBackpressureForgetsEvent(t *testing.T) {
	convey.Convey("Given a deduping dispatcher whose only session is stalled", t, func() {
		reg := registry.New()
		stalled := queue.NewInbox(queue.WithCapacity(1), queue.WithSendTimeout(10*time.Millisecond))
		_ = reg.Register(42, stalled)
		d := dispatch.New(reg, dispatch.WithDeduper(dedupe.NewLRUDeduper(dedupe.WithMaxSize(16))))
		ctx := context.Background()
		d.Dispatch(ctx, model.Login{Header: hdr(1, 42)})
		e := model.Logout{Header: hdr(2, 42)}

		convey.Convey("When an event times out and the feed sends it again after the session drains", func() {
			first := d.Dispatch(ctx, e)
			<-stalled.Events()
			second := d.Dispatch(ctx, e)

			convey.Convey("Then the repeat is delivered", func() {
				convey.So(first, convey.ShouldEqual, 0)
				convey.So(second, convey.ShouldEqual, 1)
				got := <-stalled.Events()
				convey.So(got.Kind(), convey.ShouldEqual, model.KindLogout)
			})
		})
	})

	convey.Convey("Given a deduping dispatcher with one stalled and one healthy session", t, func() {
		reg := registry.New()
		stalled := queue.NewInbox(queue.WithCapacity(1), queue.WithSendTimeout(10*time.Millisecond))
		healthy := &recorder{}
		_ = reg.Register(42, stalled)
		_ = reg.Register(7, healthy)
		d := dispatch.New(reg, dispatch.WithDeduper(dedupe.NewLRUDeduper(dedupe.WithMaxSize(16))))
		ctx := context.Background()
		d.Dispatch(ctx, model.Login{Header: hdr(1, 42)})
		e := model.Death{Header: hdr(2, 42), Attacker: 7}

		convey.Convey("When the event reaches only the healthy session and is repeated", func() {
			d.Dispatch(ctx, e)
			<-stalled.Events()
			n := d.Dispatch(ctx, e)

			convey.Convey("Then the repeat is dropped as a duplicate", func() {
				convey.So(n, convey.ShouldEqual, 0)
				convey.So(healthy.count(), convey.ShouldEqual, 1)
			})
		})
	})
}

func TestDispatchRun(t *testing.T) {
	convey.Convey("Given a feed", t, func() {
		reg := registry.New()
		s42 := &recorder{}
		_ = reg.Register(42, s42)
		d := dispatch.New(reg)
		feed := &chanFeed{ch: make(chan model.Event, 4)}

		convey.Convey("When it delivers events and closes cleanly", func() {
			feed.ch <- model.Login{Header: hdr(1, 42)}
			feed.ch <- model.Logout{Header: hdr(2, 42)}
			close(feed.ch)
			err := d.Run(context.Background(), feed)

			convey.Convey("Then Run returns nil after routing them in order", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(s42.count(), convey.ShouldEqual, 2)
				convey.So(s42.events[0].Kind(), convey.ShouldEqual, model.KindLogin)
				convey.So(s42.events[1].Kind(), convey.ShouldEqual, model.KindLogout)
			})
		})

		convey.Convey("When the feed fails", func() {
			feed.err = errors.New("websocket: close 1006")
			close(feed.ch)
			err := d.Run(context.Background(), feed)

			convey.Convey("Then Run reports a disconnect", func() {
				convey.So(errors.Is(err, dispatch.ErrFeedDisconnected), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "1006")
			})
		})

		convey.Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			err := d.Run(ctx, feed)

			convey.Convey("Then Run returns the context error", func() {
				convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
			})
		})
	})
}
