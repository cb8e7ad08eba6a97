package local_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/pitwall/internal/adapters/provider"
	"github.com/okian/pitwall/internal/adapters/provider/local"
	"github.com/okian/pitwall/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func write(t *testing.T, root string, rel, body string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func fixture(t *testing.T) string {
	root := t.TempDir()
	write(t, root, "2024/schedule.json", `[
		{"round_number": 0, "event_name": "Pre-Season Testing"},
		{"round_number": 2, "event_name": "Saudi Arabian Grand Prix"},
		{"round_number": 1, "event_name": "Bahrain Grand Prix"}
	]`)
	write(t, root, "2024/1/FP1.json", `{"laps": [
		{"driver": "VER", "lap_time": 92.0},
		{"driver": "VER", "lap_time": 91.5},
		{"driver": "LEC", "lap_time": 91.8},
		{"driver": "HAM", "lap_time": null}
	]}`)
	write(t, root, "2024/1/FP2.json", `{"laps": [
		{"driver": "LEC", "lap_time": 90.9},
		{"driver": "VER", "lap_time": 91.1}
	]}`)
	write(t, root, "2024/1/Q.json", `{"results": [
		{"abbreviation": "VER", "driver_number": 1, "position": 1, "q3": 89.7},
		{"abbreviation": "LEC", "driver_number": "16", "position": 2, "q3": 89.9},
		{"driver_number": 44, "position": 11, "q3": null}
	]}`)
	write(t, root, "2024/1/R.json", `{"results": [
		{"abbreviation": "VER", "position": 1},
		{"abbreviation": "LEC", "position": 2},
		{"abbreviation": "SAI", "position": null, "classified_position": "3"},
		{"abbreviation": "HAM", "position": null, "classified_position": "R"}
	]}`)
	write(t, root, "2024/2/R.json", `{"results": [
		{"abbreviation": "LEC", "position": 1},
		{"abbreviation": "VER", "position": 2}
	]}`)
	return root
}

func TestNew(t *testing.T) {
	Convey("Given an unusable data root", t, func() {
		_, err := local.New("")
		So(errors.Is(err, provider.ErrMisconfigured), ShouldBeTrue)

		_, err = local.New(filepath.Join(t.TempDir(), "missing"))
		So(errors.Is(err, provider.ErrMisconfigured), ShouldBeTrue)
		So(provider.IsTerminal(err), ShouldBeFalse)
	})
}

func TestProvider(t *testing.T) {
	Convey("Given a local session export", t, func() {
		ctx := context.Background()
		p, err := local.New(fixture(t))
		So(err, ShouldBeNil)
		So(p.Name(), ShouldEqual, "local")

		Convey("Then rounds are listed in order without testing events", func() {
			rounds, err := p.ListRounds(ctx, 2024)
			So(err, ShouldBeNil)
			So(len(rounds), ShouldEqual, 2)
			So(rounds[0].Number, ShouldEqual, 1)
			So(rounds[0].EventName, ShouldEqual, "Bahrain Grand Prix")
			So(rounds[1].EventKey(), ShouldEqual, 202402)
		})

		Convey("Then a season without a schedule has no rounds", func() {
			rounds, err := p.ListRounds(ctx, 1999)
			So(err, ShouldBeNil)
			So(rounds, ShouldBeEmpty)
		})

		Convey("Then practice features merge FP1 and FP2 from best laps", func() {
			recs, err := p.PracticeFeatures(ctx, 2024, 1)
			So(err, ShouldBeNil)
			So(len(recs), ShouldEqual, 2)
			So(recs[0].DriverID, ShouldEqual, "LEC")

			d, _ := recs[0].Get(model.ColFP1Delta)
			So(d, ShouldAlmostEqual, 0.3)
			r, _ := recs[0].Get(model.ColFP2Rank)
			So(r, ShouldEqual, 1)
			_, ok := recs[0].Get(model.ColFP3Delta)
			So(ok, ShouldBeFalse)

			m, _ := recs[1].Get(model.ColFPMeanDelta)
			So(m, ShouldAlmostEqual, 0.1)
		})

		Convey("Then missing practice sessions are empty, not errors", func() {
			recs, err := p.PracticeFeatures(ctx, 2024, 2)
			So(err, ShouldBeNil)
			So(recs, ShouldBeEmpty)
		})

		Convey("Then qualifying results carry Q3 times and fall back to driver number", func() {
			q, err := p.QualifyingResults(ctx, 2024, 1)
			So(err, ShouldBeNil)
			So(len(q), ShouldEqual, 3)
			So(*q[0].Q3Time, ShouldEqual, 89.7)
			So(q[2].DriverID, ShouldEqual, "44")
			So(q[2].Q3Time, ShouldBeNil)
		})

		Convey("Then race results use the classified position when needed", func() {
			r, err := p.RaceResults(ctx, 2024, 1)
			So(err, ShouldBeNil)
			So(*r[2].Position, ShouldEqual, 3)
			So(r[3].Position, ShouldBeNil)
		})

		Convey("Then standings accumulate points from earlier rounds only", func() {
			s, err := p.StandingsBefore(ctx, 2024, 3)
			So(err, ShouldBeNil)
			byID := map[string]float64{}
			for _, st := range s {
				byID[st.DriverID] = st.PositionStart
			}
			So(byID, ShouldResemble, map[string]float64{"LEC": 1, "VER": 1, "SAI": 3})

			s, err = p.StandingsBefore(ctx, 2024, 2)
			So(err, ShouldBeNil)
			So(s[len(s)-1].DriverID, ShouldEqual, "VER")
			So(s[len(s)-1].PositionStart, ShouldEqual, 1)
		})

		Convey("Then the first round has no standings", func() {
			s, err := p.StandingsBefore(ctx, 2024, 1)
			So(err, ShouldBeNil)
			So(s, ShouldBeEmpty)
		})
	})

	Convey("Given a corrupt session file", t, func() {
		root := t.TempDir()
		write(t, root, "2024/1/Q.json", `{"results": [`)
		p, err := local.New(root)
		So(err, ShouldBeNil)

		_, err = p.QualifyingResults(context.Background(), 2024, 1)
		So(errors.Is(err, provider.ErrMalformed), ShouldBeTrue)
	})
}
