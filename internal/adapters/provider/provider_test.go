package provider_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/okian/pitwall/internal/adapters/provider"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCanonical(t *testing.T) {
	Convey("Given source names", t, func() {
		Convey("Then aliases resolve to canonical names", func() {
			for in, want := range map[string]string{"fastf1": "local", "LOCAL": "local", " openf1 ": "openf1"} {
				got, err := provider.Canonical(in)
				So(err, ShouldBeNil)
				So(got, ShouldEqual, want)
			}
		})

		Convey("Then unknown sources are terminal", func() {
			_, err := provider.Canonical("ergast")
			So(errors.Is(err, provider.ErrUnsupportedSource), ShouldBeTrue)
			So(provider.IsTerminal(err), ShouldBeTrue)
		})
	})
}

func TestIsTerminal(t *testing.T) {
	Convey("Given wrapped errors", t, func() {
		So(provider.IsTerminal(fmt.Errorf("resolve: %w", provider.ErrNoMeeting)), ShouldBeTrue)
		So(provider.IsTerminal(fmt.Errorf("resolve: %w", provider.ErrRoundOutOfRange)), ShouldBeTrue)
		So(provider.IsTerminal(fmt.Errorf("get: %w", provider.ErrUnavailable)), ShouldBeFalse)
		So(provider.IsTerminal(nil), ShouldBeFalse)
	})
}
