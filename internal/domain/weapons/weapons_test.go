package weapons

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type fetcher struct {
	ids []uint64
	err error
}

func (f fetcher) FetchWeaponIDs(context.Context) ([]uint64, error) { return f.ids, f.err }

func TestSet(t *testing.T) {
	Convey("Given a weapon set", t, func() {
		s := NewSet(80, 81)

		Convey("Then membership reflects its ids", func() {
			So(s.Contains(80), ShouldBeTrue)
			So(s.Contains(6008913), ShouldBeFalse)
			So(s.Len(), ShouldEqual, 2)
		})

		Convey("When it is refreshed", func() {
			So(s.Refresh(context.Background(), fetcher{ids: []uint64{7}}), ShouldBeNil)

			Convey("Then the new snapshot replaces the old one", func() {
				So(s.Contains(80), ShouldBeFalse)
				So(s.Contains(7), ShouldBeTrue)
			})
		})

		Convey("When a refresh fails", func() {
			err := s.Refresh(context.Background(), fetcher{err: errors.New("census down")})

			Convey("Then the previous snapshot is kept", func() {
				So(err, ShouldNotBeNil)
				So(s.Contains(80), ShouldBeTrue)
			})
		})

		Convey("When loading from a file", func() {
			path := filepath.Join(t.TempDir(), "weapons.txt")
			So(os.WriteFile(path, []byte("# rifles\n80\n\n 1001 \n"), 0o600), ShouldBeNil)
			So(s.LoadFile(path), ShouldBeNil)

			Convey("Then comments and blanks are skipped", func() {
				So(s.Len(), ShouldEqual, 2)
				So(s.Contains(1001), ShouldBeTrue)
			})
		})
	})

	Convey("Given malformed input", t, func() {
		_, err := Parse(strings.NewReader("80\nbanana\n"))

		Convey("Then the line is reported", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "line 2")
		})
	})
}
