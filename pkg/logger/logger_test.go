package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		var buf bytes.Buffer
		So(Init(WithWriter(&buf)), ShouldBeNil)

		Convey("Then Get returns an initialized logger", func() {
			So(Get(), ShouldNotBeNil)
			So(Sync(), ShouldBeNil)
		})

		Convey("When logging at info", func() {
			Get().Info(context.Background(), "round skipped", String("round", "2024-03"), Int("drivers", 20))

			Convey("Then the message and fields are written", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, "round skipped")
				So(out, ShouldContainSubstring, "drivers=20")
				So(out, ShouldContainSubstring, "source=")
			})
		})

		Convey("When logging below the configured level", func() {
			Get().Debug(context.Background(), "hidden")

			Convey("Then nothing is written", func() {
				So(buf.String(), ShouldNotContainSubstring, "hidden")
			})
		})

		Convey("When a named logger is used with JSON output", func() {
			buf.Reset()
			So(Init(WithWriter(&buf), WithJSON(true)), ShouldBeNil)
			Named("provider").Warn(context.Background(), "retrying", Error(errors.New("429")))

			Convey("Then the group name prefixes the fields", func() {
				So(strings.TrimSpace(buf.String()), ShouldStartWith, "{")
				So(buf.String(), ShouldContainSubstring, `"provider"`)
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		So(Init(WithWriter(&bytes.Buffer{})), ShouldBeNil)

		Convey("Then known levels are accepted", func() {
			for _, lvl := range []string{"debug", "info", "", "warn", "warning", "error", " INFO "} {
				So(SetLevelString(lvl), ShouldBeNil)
			}
		})

		Convey("Then unknown levels are rejected", func() {
			So(SetLevelString("verbose"), ShouldNotBeNil)
		})
	})
}

func TestNop(t *testing.T) {
	Convey("Given the no-op logger", t, func() {
		l := Nop()

		Convey("Then every method is safe to call", func() {
			So(func() {
				l.Info(context.Background(), "x")
				l.Named("y").Error(context.Background(), "z", Error(errors.New("e")))
			}, ShouldNotPanic)
		})
	})
}
