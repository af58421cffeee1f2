package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/okian/blurber/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLRUDeduper(t *testing.T) {
	Convey("Given a new LRU deduper", t, func() {
		ctx := context.Background()

		Convey("When creating a deduper with default options", func() {
			d := dedupe.NewLRUDeduper()

			Convey("Then it should start empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, int64(0))
			})
		})

		Convey("When recording fingerprints", func() {
			d := dedupe.NewLRUDeduper()

			Convey("And the fingerprint is new", func() {
				seen := d.SeenAndRecord(ctx, "Death|100|1|17")

				Convey("Then it should return false and record it", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, int64(1))
				})
			})

			Convey("And the fingerprint was already seen", func() {
				d.SeenAndRecord(ctx, "Death|100|1|17")
				seen := d.SeenAndRecord(ctx, "Death|100|1|17")

				Convey("Then it should return true", func() {
					So(seen, ShouldBeTrue)
					So(d.Size(), ShouldEqual, int64(1))
				})
			})

			Convey("And a fingerprint is unrecorded", func() {
				d.SeenAndRecord(ctx, "a")
				d.Unrecord(ctx, "a")

				Convey("Then it is new again", func() {
					So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
				})
			})
		})

		Convey("When more fingerprints arrive than the bound", func() {
			d := dedupe.NewLRUDeduper(dedupe.WithMaxSize(3))
			for i := 0; i < 5; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("e-%d", i))
			}

			Convey("Then the oldest are evicted", func() {
				So(d.Size(), ShouldEqual, int64(3))
				So(d.SeenAndRecord(ctx, "e-4"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "e-0"), ShouldBeFalse)
			})
		})

		Convey("When the size option is not positive", func() {
			d := dedupe.NewLRUDeduper(dedupe.WithMaxSize(0))

			Convey("Then the default bound is used", func() {
				So(d.SeenAndRecord(ctx, "x"), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, "x"), ShouldBeTrue)
			})
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given many goroutines recording the same fingerprint", t, func() {
		d := dedupe.NewLRUDeduper()
		var fresh atomic.Int32
		var wg sync.WaitGroup

		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !d.SeenAndRecord(context.Background(), "same") {
					fresh.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one caller sees it as new", func() {
			So(int(fresh.Load()), ShouldEqual, 1)
		})
	})
}
