package openf1_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/okian/pitwall/internal/adapters/provider"
	"github.com/okian/pitwall/internal/adapters/provider/openf1"
	"github.com/okian/pitwall/internal/httputil"
	"github.com/okian/pitwall/internal/timeutil"
	. "github.com/smartystreets/goconvey/convey"
)

func newClient(h httputil.HTTPClient, clk timeutil.Clock) *openf1.Client {
	return openf1.NewClient(
		openf1.WithBaseURL("http://openf1.test/v1/"),
		openf1.WithHTTPClient(h),
		openf1.WithClock(clk),
	)
}

func TestClientURL(t *testing.T) {
	Convey("Given query parameters in any order", t, func() {
		c := newClient(httputil.NewMockHTTPClient(), timeutil.NewMockClock(time.Now()))

		Convey("Then the URL sorts them and escapes values", func() {
			u := c.URL("sessions", map[string]string{"session_name": "Practice 1", "meeting_key": "1229"})
			So(u, ShouldEqual, "http://openf1.test/v1/sessions?meeting_key=1229&session_name=Practice+1")
			So(c.URL("meetings", nil), ShouldEqual, "http://openf1.test/v1/meetings")
		})
	})
}

func TestClientRetry(t *testing.T) {
	Convey("Given a rate-limited API", t, func() {
		ctx := context.Background()
		clk := timeutil.NewMockClock(time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC))
		mock := httputil.NewMockHTTPClient()
		c := newClient(mock, clk)
		var out []map[string]any

		Convey("When two 429s precede a success", func() {
			mock.AddResponse(http.StatusTooManyRequests, "").
				AddResponse(http.StatusTooManyRequests, "").
				AddResponse(http.StatusOK, `[{"meeting_key": 1}]`)
			err := c.GetJSON(ctx, "meetings", map[string]string{"year": "2024"}, &out)

			Convey("Then it sleeps 1s then 2s and returns the data", func() {
				So(err, ShouldBeNil)
				So(len(out), ShouldEqual, 1)
				So(clk.Sleeps(), ShouldResemble, []time.Duration{time.Second, 2 * time.Second})
				So(mock.RequestCount(), ShouldEqual, 3)
			})
		})

		Convey("When Retry-After is set", func() {
			mock.AddResponseWithHeaders(http.StatusTooManyRequests, "", http.Header{"Retry-After": []string{"5"}}).
				AddResponseWithHeaders(http.StatusTooManyRequests, "", http.Header{"Retry-After": []string{"0.2"}}).
				AddResponse(http.StatusOK, `[]`)
			err := c.GetJSON(ctx, "meetings", nil, &out)

			Convey("Then the header wins with a one second floor", func() {
				So(err, ShouldBeNil)
				So(clk.Sleeps(), ShouldResemble, []time.Duration{5 * time.Second, time.Second})
			})
		})

		Convey("When every attempt is rate limited", func() {
			for i := 0; i < 3; i++ {
				mock.AddResponse(http.StatusTooManyRequests, "")
			}
			err := c.GetJSON(ctx, "meetings", nil, &out)

			Convey("Then the final failure is unavailable and not terminal", func() {
				So(errors.Is(err, provider.ErrUnavailable), ShouldBeTrue)
				So(errors.Is(err, openf1.ErrRateLimited), ShouldBeTrue)
				So(provider.IsTerminal(err), ShouldBeFalse)
				So(mock.RequestCount(), ShouldEqual, 3)
				So(len(clk.Sleeps()), ShouldEqual, 2)
			})
		})

		Convey("When transport errors and server errors occur", func() {
			mock.AddErrorResponse(errors.New("connection reset")).
				AddResponse(http.StatusBadGateway, "").
				AddResponse(http.StatusOK, `[]`)
			err := c.GetJSON(ctx, "meetings", nil, &out)

			Convey("Then both are retried with linear backoff", func() {
				So(err, ShouldBeNil)
				So(clk.Sleeps(), ShouldResemble, []time.Duration{time.Second, 2 * time.Second})
			})
		})

		Convey("When the query matches nothing", func() {
			mock.AddResponse(http.StatusNotFound, `{"detail": "No results found."}`)
			err := c.GetJSON(ctx, "sessions", map[string]string{"meeting_key": "1229"}, &out)

			Convey("Then the result is empty rather than a failure", func() {
				So(err, ShouldBeNil)
				So(out, ShouldBeEmpty)
				So(mock.RequestCount(), ShouldEqual, 1)
				So(clk.Sleeps(), ShouldBeEmpty)
			})
		})

		Convey("When the request is rejected", func() {
			mock.AddResponse(http.StatusBadRequest, "")
			err := c.GetJSON(ctx, "meetings", nil, &out)

			Convey("Then it fails immediately", func() {
				So(errors.Is(err, openf1.ErrRejected), ShouldBeTrue)
				So(mock.RequestCount(), ShouldEqual, 1)
				So(clk.Sleeps(), ShouldBeEmpty)
			})
		})

		Convey("When the body is not JSON", func() {
			mock.AddResponse(http.StatusOK, "<html>")
			err := c.GetJSON(ctx, "meetings", nil, &out)
			So(errors.Is(err, provider.ErrMalformed), ShouldBeTrue)
		})
	})
}
