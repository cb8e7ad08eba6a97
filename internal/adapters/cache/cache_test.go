package cache_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/okian/pitwall/internal/adapters/cache"
	. "github.com/smartystreets/goconvey/convey"
)

func counting(payload string, calls *int) cache.FetchFunc {
	return func(context.Context) ([]byte, error) {
		*calls++
		return []byte(payload), nil
	}
}

func TestDiskCache(t *testing.T) {
	Convey("Given a disk cache in a temp dir", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		c, err := cache.New(dir)
		So(err, ShouldBeNil)
		key := "https://api.openf1.org/v1/meetings?year=2024"

		Convey("When the same key is fetched twice", func() {
			calls := 0
			first, err := c.GetOrFetch(ctx, key, counting(`[{"meeting_key":1}]`, &calls))
			So(err, ShouldBeNil)
			second, err := c.GetOrFetch(ctx, key, counting(`[{"meeting_key":1}]`, &calls))
			So(err, ShouldBeNil)

			Convey("Then the fetcher runs once and the file is pretty-printed", func() {
				So(calls, ShouldEqual, 1)
				So(string(first), ShouldEqual, `[{"meeting_key":1}]`)
				So(strings.Contains(string(second), "\n  "), ShouldBeTrue)

				raw, err := os.ReadFile(c.Path(key))
				So(err, ShouldBeNil)
				So(string(raw), ShouldEqual, string(second))
				So(strings.HasSuffix(c.Path(key), ".json"), ShouldBeTrue)
				So(len(strings.TrimSuffix(c.Path(key)[len(dir)+1:], ".json")), ShouldEqual, 64)
			})
		})

		Convey("When the cached file is corrupt", func() {
			So(os.WriteFile(c.Path(key), []byte("{not json"), 0o644), ShouldBeNil)
			calls := 0
			data, err := c.GetOrFetch(ctx, key, counting(`[]`, &calls))

			Convey("Then it is refetched and repaired", func() {
				So(err, ShouldBeNil)
				So(string(data), ShouldEqual, "[]")
				So(calls, ShouldEqual, 1)
			})
		})

		Convey("When the fetcher fails", func() {
			boom := errors.New("boom")
			_, err := c.GetOrFetch(ctx, key, func(context.Context) ([]byte, error) { return nil, boom })

			Convey("Then the error propagates and nothing is stored", func() {
				So(errors.Is(err, boom), ShouldBeTrue)
				_, statErr := os.Stat(c.Path(key))
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})

		Convey("When the payload is not JSON", func() {
			calls := 0
			_, err := c.GetOrFetch(ctx, key, counting("<html>", &calls))
			So(errors.Is(err, cache.ErrNotJSON), ShouldBeTrue)
		})

		Convey("When the key is empty", func() {
			calls := 0
			_, err := c.GetOrFetch(ctx, "", counting("[]", &calls))
			So(errors.Is(err, cache.ErrEmptyKey), ShouldBeTrue)
		})
	})

	Convey("Given a cache without a directory", t, func() {
		c, err := cache.New("")
		So(err, ShouldBeNil)
		calls := 0
		for i := 0; i < 2; i++ {
			_, err := c.GetOrFetch(context.Background(), "k", counting("[]", &calls))
			So(err, ShouldBeNil)
		}

		Convey("Then every lookup reaches the fetcher", func() {
			So(calls, ShouldEqual, 2)
		})
	})
}
