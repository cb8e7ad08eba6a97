package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/okian/pitwall/internal/adapters/provider"
	"github.com/okian/pitwall/internal/adapters/provider/fake"
	service "github.com/okian/pitwall/internal/app"
	"github.com/okian/pitwall/internal/config"
	"github.com/okian/pitwall/internal/dataset"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/selection"
	"github.com/okian/pitwall/internal/timeutil"
	"github.com/okian/pitwall/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

var drivers = []string{"ALO", "HAM", "LEC", "NOR", "VER"}

// roundData gives every driver practice deltas that track their Q3 gap.
func roundData(round int) fake.RoundData {
	d := fake.RoundData{EventName: fmt.Sprintf("GP %d", round)}
	for i, id := range drivers {
		gap := float64(i) * 0.15
		d.Practice = append(d.Practice, fake.Record(id,
			model.ColFP1Delta, gap+0.05, model.ColFP2Delta, gap,
			model.ColFP1Rank, i+1, model.ColFP2Rank, i+1,
			model.ColFPMeanDelta, gap+0.025, model.ColFPMeanRank, i+1,
		))
		d.Qualifying = append(d.Qualifying, model.QualifyingResult{
			DriverID: id, DriverName: id,
			Position: model.Float(float64(i + 1)),
			Q3Time:   model.Float(80 + gap),
		})
		d.Race = append(d.Race, model.RaceResult{DriverID: id, DriverName: id, Position: model.Float(float64(i + 1))})
	}
	return d
}

func seasonProvider() *fake.Provider {
	p := fake.New("fake")
	for r := 1; r <= 5; r++ {
		p.AddRound(2023, r, roundData(r))
	}
	for r := 1; r <= 4; r++ {
		p.AddRound(2024, r, roundData(r))
	}
	return p
}

func factoryFor(p provider.HistoricalDataProvider) provider.Factory {
	return func(context.Context, string) (provider.HistoricalDataProvider, error) { return p, nil }
}

func counterIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("run-%d", n.Add(1)) }
}

func waitForStatus(svc *service.Service, id string, status model.RunStatus) model.Run {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		run, err := svc.Run(context.Background(), id)
		if err == nil && run.Status == status {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	run, _ := svc.Run(context.Background(), id)
	return run
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should report defaults and not be started", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["workerCount"], ShouldEqual, 2)
			So(stats["queueSize"], ShouldEqual, 64)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(4),
			service.WithQueueSize(8),
			service.WithLogger(logger.Nop()),
		)

		Convey("Then the options are applied", func() {
			stats := svc.GetStats()
			So(stats["workerCount"], ShouldEqual, 4)
			So(stats["queueSize"], ShouldEqual, 8)
		})
	})
}

func TestVersion(t *testing.T) {
	Convey("Given round numbers", t, func() {
		Convey("Then the opening round and earlier are V1", func() {
			So(service.Version(0), ShouldEqual, "V1")
			So(service.Version(1), ShouldEqual, "V1")
		})

		Convey("Then later rounds carry their number", func() {
			So(service.Version(2), ShouldEqual, "V2")
			So(service.Version(17), ShouldEqual, "V17")
		})
	})
}

func TestService_Normalize(t *testing.T) {
	Convey("Given a service with configured defaults", t, func() {
		cfg := config.New()
		cfg.Mode = "race"
		cfg.Source = "fastf1"
		cfg.TopN = 5
		cfg.MeetingName = "Monaco Grand Prix"
		svc := service.New(service.WithConfig(cfg))

		Convey("When the request leaves fields empty", func() {
			req, err := svc.Normalize(model.RunRequest{Year: 2024, Round: 8})

			Convey("Then the config fills them in", func() {
				So(err, ShouldBeNil)
				So(req.Mode, ShouldEqual, model.ModeRace)
				So(req.Source, ShouldEqual, provider.SourceLocal)
				So(req.TrainSeasons, ShouldResemble, []int{2022, 2023, 2024})
				So(req.TopN, ShouldEqual, 5)
				So(req.MeetingName, ShouldEqual, "Monaco Grand Prix")
			})
		})

		Convey("When the request is invalid", func() {
			for _, req := range []model.RunRequest{
				{Round: 3},
				{Year: 2024},
				{Year: 2024, Round: 3, Mode: "sprint"},
				{Year: 2024, Round: 3, Source: "ergast"},
				{Year: 2024, Round: 3, TrainSeasons: []int{2023, -1}},
			} {
				_, err := svc.Normalize(req)
				So(errors.Is(err, service.ErrInvalidRequest), ShouldBeTrue)
			}
		})
	})
}

func TestService_Predict(t *testing.T) {
	ctx := context.Background()
	clock := timeutil.NewMockClock(time.Date(2024, 4, 6, 12, 0, 0, 0, time.UTC))

	Convey("Given a service over two seasons of history", t, func() {
		p := seasonProvider()
		svc := service.New(
			service.WithProviderFactory(factoryFor(p)),
			service.WithClock(clock),
		)

		Convey("When predicting qualifying for round 4", func() {
			run, err := svc.Predict(ctx, model.RunRequest{Year: 2024, Round: 4, Mode: model.ModeQualifying, TrainSeasons: []int{2023, 2024}})

			Convey("Then a model is selected by walk-forward validation", func() {
				So(err, ShouldBeNil)
				So(run.Status, ShouldEqual, model.RunDone)
				So(run.Version, ShouldEqual, "V4")
				So(run.Source, ShouldEqual, "fake")
				So(run.Model, ShouldBeIn, []string{"gbt_exact", "gbt_hist", "ridge"})
				So(run.Score, ShouldNotBeNil)
				So(run.Leaderboard, ShouldHaveLength, 3)
				So(run.TrainingRows, ShouldEqual, 8*len(drivers))
				So(model.HasKind(run.Notes, model.NoteModelSelection), ShouldBeTrue)
				So(run.GeneratedAt.Equal(clock.Now()), ShouldBeTrue)
			})

			Convey("Then every driver is ranked from 1", func() {
				So(run.Rows, ShouldHaveLength, len(drivers))
				for i, row := range run.Rows {
					So(row.Rank, ShouldEqual, i+1)
				}
			})

			Convey("Then no training data came from the target round", func() {
				So(p.Calls(fake.MethodQualifying, 2024, 4), ShouldEqual, 0)
			})

			Convey("Then the run id is a UUID and the run is stored", func() {
				_, perr := uuid.Parse(run.ID)
				So(perr, ShouldBeNil)
				stored, err := svc.Run(ctx, run.ID)
				So(err, ShouldBeNil)
				So(stored.Model, ShouldEqual, run.Model)
				So(svc.GetStats()["runs"], ShouldEqual, int64(1))
				So(svc.GetStats()["lastModel"], ShouldEqual, run.Model)
			})
		})

		Convey("When predicting the race with standings", func() {
			run, err := svc.Predict(ctx, model.RunRequest{
				Year: 2024, Round: 4, Mode: model.ModeRace,
				TrainSeasons: []int{2023, 2024}, IncludeStandings: true, TopN: 3,
			})

			Convey("Then the table is capped at top N", func() {
				So(err, ShouldBeNil)
				So(run.Rows, ShouldHaveLength, 3)
				So(run.Mode, ShouldEqual, model.ModeRace)
			})
		})
	})

	Convey("Given no usable history", t, func() {
		p := fake.New("fake")
		p.AddRound(2024, 1, roundData(1))
		svc := service.New(service.WithProviderFactory(factoryFor(p)), service.WithIDGenerator(counterIDs()))

		Convey("When predicting the opening round", func() {
			run, err := svc.Predict(ctx, model.RunRequest{Year: 2024, Round: 1, TrainSeasons: []int{2024}})

			Convey("Then the heuristic ranks drivers by practice pace", func() {
				So(err, ShouldBeNil)
				So(run.ID, ShouldEqual, "run-1")
				So(run.Version, ShouldEqual, "V1")
				So(run.Model, ShouldEqual, selection.ModelHeuristic)
				So(run.Score, ShouldBeNil)
				So(run.Rows[0].DriverID, ShouldEqual, "ALO")
				So(run.Rows[len(run.Rows)-1].DriverID, ShouldEqual, "VER")
			})

			Convey("Then the notes explain the fallback", func() {
				So(run.Notes, ShouldContain, model.Note{Kind: model.NoteHeuristicFallback, Message: dataset.InsufficientHistory})
			})
		})
	})

	Convey("Given a round without practice data", t, func() {
		p := seasonProvider()
		svc := service.New(service.WithProviderFactory(factoryFor(p)))

		Convey("When predicting it", func() {
			run, err := svc.Predict(ctx, model.RunRequest{Year: 2024, Round: 9, TrainSeasons: []int{2024}})

			Convey("Then the result is empty but explained", func() {
				So(err, ShouldBeNil)
				So(run.Rows, ShouldNotBeNil)
				So(run.Rows, ShouldBeEmpty)
				So(model.HasKind(run.Notes, model.NoteMissingData), ShouldBeTrue)
			})
		})
	})

	Convey("Given a provider reporting a terminal error", t, func() {
		p := seasonProvider()
		p.FailWith(fake.MethodPractice, 2024, 4, provider.ErrNoMeeting)
		svc := service.New(service.WithProviderFactory(factoryFor(p)))

		Convey("When predicting", func() {
			_, err := svc.Predict(ctx, model.RunRequest{Year: 2024, Round: 4, TrainSeasons: []int{2024}})

			Convey("Then the run aborts with the terminal error", func() {
				So(provider.IsTerminal(err), ShouldBeTrue)
				So(svc.GetStats()["failures"], ShouldEqual, int64(1))
			})
		})
	})

	Convey("Given a factory that cannot build a provider", t, func() {
		svc := service.New(service.WithProviderFactory(func(context.Context, string) (provider.HistoricalDataProvider, error) {
			return nil, provider.ErrMisconfigured
		}))

		Convey("Then the run fails with a setup error", func() {
			_, err := svc.Predict(ctx, model.RunRequest{Year: 2024, Round: 4})
			So(errors.Is(err, service.ErrProviderSetup), ShouldBeTrue)
		})
	})

	Convey("Given the default factory and a missing local data root", t, func() {
		cfg := config.New()
		cfg.Source = "local"
		cfg.DataDir = ""
		svc := service.New(service.WithConfig(cfg))

		Convey("Then the run fails with a setup error", func() {
			_, err := svc.Predict(ctx, model.RunRequest{Year: 2024, Round: 4})
			So(errors.Is(err, service.ErrProviderSetup), ShouldBeTrue)
		})
	})
}

// gatedFactory blocks provider construction until the gate is closed.
func gatedFactory(p provider.HistoricalDataProvider, gate <-chan struct{}) provider.Factory {
	return func(ctx context.Context, _ string) (provider.HistoricalDataProvider, error) {
		select {
		case <-gate:
			return p, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service that is not started", t, func() {
		svc := service.New(service.WithProviderFactory(factoryFor(seasonProvider())))

		Convey("Then async submission is refused", func() {
			_, _, err := svc.Submit(ctx, model.RunRequest{Year: 2024, Round: 4})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})
	})

	Convey("Given a started service with a slow provider", t, func() {
		gate := make(chan struct{})
		svc := service.New(
			service.WithProviderFactory(gatedFactory(seasonProvider(), gate)),
			service.WithIDGenerator(counterIDs()),
			service.WithWorkerCount(1),
		)
		runCtx, cancel := context.WithCancel(ctx)
		So(svc.Start(runCtx), ShouldBeNil)
		defer svc.Stop()
		defer cancel()

		req := model.RunRequest{Year: 2024, Round: 4, TrainSeasons: []int{2023, 2024}}

		Convey("When the same request is submitted twice", func() {
			first, dup1, err1 := svc.Submit(ctx, req)
			second, dup2, err2 := svc.Submit(ctx, req)

			Convey("Then the second folds into the first", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(dup1, ShouldBeFalse)
				So(dup2, ShouldBeTrue)
				So(first.Status, ShouldEqual, model.RunPending)
				So(second.ID, ShouldEqual, first.ID)
			})

			Convey("And once the run finishes it is stored as done", func() {
				close(gate)
				run := waitForStatus(svc, first.ID, model.RunDone)
				So(run.Status, ShouldEqual, model.RunDone)
				So(run.Rows, ShouldHaveLength, len(drivers))

				Convey("And a new submission starts a new run", func() {
					var third model.Run
					var dup bool
					deadline := time.Now().Add(5 * time.Second)
					for time.Now().Before(deadline) {
						third, dup, _ = svc.Submit(ctx, req)
						if !dup {
							break
						}
						time.Sleep(10 * time.Millisecond)
					}
					So(dup, ShouldBeFalse)
					So(third.ID, ShouldNotEqual, first.ID)
				})
			})
		})
	})

	Convey("Given a started service with a tiny queue", t, func() {
		gate := make(chan struct{})
		svc := service.New(
			service.WithProviderFactory(gatedFactory(seasonProvider(), gate)),
			service.WithWorkerCount(1),
			service.WithQueueSize(1),
		)
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When distinct requests pile up", func() {
			var full error
			for round := 1; round <= 10 && full == nil; round++ {
				_, _, err := svc.Submit(ctx, model.RunRequest{Year: 2024, Round: round, TrainSeasons: []int{2024}})
				if errors.Is(err, service.ErrQueueFull) {
					full = err
				}
			}
			close(gate)
			svc.Stop()

			Convey("Then the queue eventually rejects with ErrQueueFull", func() {
				So(errors.Is(full, service.ErrQueueFull), ShouldBeTrue)
			})
		})
	})

	Convey("Given a started service whose runs fail", t, func() {
		p := seasonProvider()
		p.FailWith(fake.MethodPractice, 2024, 4, provider.ErrNoMeeting)
		svc := service.New(service.WithProviderFactory(factoryFor(p)))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a failing request is submitted", func() {
			pending, _, err := svc.Submit(ctx, model.RunRequest{Year: 2024, Round: 4, TrainSeasons: []int{2024}})
			So(err, ShouldBeNil)

			Convey("Then the stored run ends up failed with the error", func() {
				run := waitForStatus(svc, pending.ID, model.RunFailed)
				So(run.Status, ShouldEqual, model.RunFailed)
				So(run.Error, ShouldContainSubstring, "no meeting")
			})
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New()

		Convey("When starting and stopping it", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			started := svc.GetStats()["started"]
			svc.Stop()
			svc.Stop()

			Convey("Then the state follows", func() {
				So(started, ShouldEqual, true)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}
