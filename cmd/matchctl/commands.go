package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/arnabghosh/compute-matcher/internal/config"
	"github.com/arnabghosh/compute-matcher/internal/domain"
	"github.com/arnabghosh/compute-matcher/internal/engine"
	"github.com/arnabghosh/compute-matcher/internal/mq"
	"github.com/arnabghosh/compute-matcher/internal/parser"
	"github.com/arnabghosh/compute-matcher/internal/settlement"
	"github.com/urfave/cli/v2"
)

var inputFlags = []cli.Flag{
	&cli.StringFlag{
		Name:     "demands",
		Required: true,
		Usage:    "specify the input demands (.json or .csv)",
	},
	&cli.StringFlag{
		Name:     "resources",
		Required: true,
		Usage:    "specify the input resources (.json or .csv)",
	},
	&cli.Float64Flag{
		Name:  "threshold",
		Value: config.DefaultScoreThreshold,
		Usage: "specify the minimum score for an assignment (0.0-1.0)",
	},
}

var planCmd = &cli.Command{
	Name:    "plan",
	Usage:   "Compute an allocation plan from demand and resource files",
	Aliases: []string{"p"},
	Flags: append([]cli.Flag{
		&cli.IntFlag{
			Name:  "batch",
			Value: 0,
			Usage: "specify the maximum demands per batch (0 = one batch)",
		},
		&cli.StringFlag{
			Name:  "out",
			Usage: "specify the output plan.json (default stdout)",
		},
	}, inputFlags...),
	Action: func(ctx *cli.Context) error {
		if ctx.Int("batch") < 0 {
			return errors.New("invalid batch")
		}
		demands, resources, err := loadInputs(ctx.String("demands"), ctx.String("resources"))
		if err != nil {
			return err
		}

		out := io.Writer(os.Stdout)
		if path := ctx.String("out"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return doPlan(out, demands, resources, ctx.Float64("threshold"), ctx.Int("batch"))
	},
}

var explainCmd = &cli.Command{
	Name:    "explain",
	Usage:   "Show eligibility and score of every resource for one demand",
	Aliases: []string{"e"},
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:     "demand",
			Required: true,
			Usage:    "specify the demand id",
		},
	}, inputFlags...),
	Action: func(ctx *cli.Context) error {
		demands, resources, err := loadInputs(ctx.String("demands"), ctx.String("resources"))
		if err != nil {
			return err
		}
		return doExplain(os.Stdout, ctx.String("demand"), demands, resources, ctx.Float64("threshold"))
	},
}

var completeCmd = &cli.Command{
	Name:  "complete",
	Usage: "Report the outcome of a matched demand through the Redis queue",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "redis-url",
			EnvVars: []string{"REDIS_URL"},
			Value:   "redis://localhost:6379/0",
			Usage:   "specify the Redis URL of the matcher queue",
		},
		&cli.StringFlag{
			Name:     "demand",
			Required: true,
			Usage:    "specify the demand id",
		},
		&cli.BoolFlag{
			Name:  "failed",
			Usage: "report the computation as failed",
		},
		&cli.DurationFlag{
			Name:  "duration",
			Usage: "specify the actual run time",
		},
	},
	Action: func(ctx *cli.Context) error {
		queue, err := mq.NewRedisQueue(mq.RedisQueueConfig{
			RedisURL:  ctx.String("redis-url"),
			KeyPrefix: config.DefaultRedisQueuePrefix,
		}, slog.New(slog.NewTextHandler(io.Discard, nil)))
		if err != nil {
			return err
		}
		defer queue.Stop()

		return doComplete(ctx.Context, queue, ctx.String("demand"), !ctx.Bool("failed"), ctx.Duration("duration"))
	},
}

func loadInputs(demandFile, resourceFile string) ([]*domain.Demand, []*domain.Resource, error) {
	var demands []*domain.Demand
	if isCSV(demandFile) {
		if err := readCSV(demandFile, func(f io.Reader) (err error) {
			demands, err = parser.ReadDemands(f)
			return err
		}); err != nil {
			return nil, nil, err
		}
	} else if err := readJSON(demandFile, &demands); err != nil {
		return nil, nil, err
	}

	var resources []*domain.Resource
	if isCSV(resourceFile) {
		if err := readCSV(resourceFile, func(f io.Reader) (err error) {
			resources, err = parser.ReadResources(f)
			return err
		}); err != nil {
			return nil, nil, err
		}
	} else if err := readJSON(resourceFile, &resources); err != nil {
		return nil, nil, err
	}
	return demands, resources, nil
}

func isCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}

func readCSV(path string, read func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := read(f); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func newAllocator(threshold float64) (*engine.Allocator, error) {
	cfg, err := config.LoadEngineConfig()
	if err != nil {
		return nil, err
	}
	cfg.ScoreThreshold = threshold
	return engine.NewAllocator(cfg, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
}

type planOutput struct {
	*engine.Plan
	Summary engine.Summary `json:"summary"`
}

func doPlan(w io.Writer, demands []*domain.Demand, resources []*domain.Resource, threshold float64, batch int) error {
	allocator, err := newAllocator(threshold)
	if err != nil {
		return err
	}

	plan := allocator.AllocateBatches(demands, resources, batch)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(planOutput{Plan: plan, Summary: plan.Summary()})
}

func doExplain(w io.Writer, demandID string, demands []*domain.Demand, resources []*domain.Resource, threshold float64) error {
	allocator, err := newAllocator(threshold)
	if err != nil {
		return err
	}
	weights := allocator.Config().Weights

	var d *domain.Demand
	for _, candidate := range demands {
		if candidate != nil && candidate.ID == demandID {
			d = candidate
			break
		}
	}
	if d == nil {
		return fmt.Errorf("%w: demand %s", domain.ErrDemandNotFound, demandID)
	}

	sorted := make([]*domain.Resource, 0, len(resources))
	for _, r := range resources {
		if r != nil {
			sorted = append(sorted, r)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RESOURCE\tELIGIBLE\tSCORE\tPOWER\tCOST\tRELIABILITY\tLOCATION\tENERGY\tRESPONSE\tNOTE")
	for _, r := range sorted {
		reason := engine.Check(d, r, nil)
		f := engine.Breakdown(d, r, weights)
		score := f.Weighted(weights)

		note := string(reason)
		if reason == engine.ReasonEligible {
			note = "selectable"
			if score < threshold {
				note = "below threshold"
			}
		}
		fmt.Fprintf(tw, "%s\t%t\t%.3f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n",
			r.ID, reason == engine.ReasonEligible, score,
			f.Power, f.Cost, f.Reliability, f.Location, f.Energy, f.Response, note)
	}
	return tw.Flush()
}

func doComplete(ctx context.Context, queue mq.MessageQueue, demandID string, success bool, actual time.Duration) error {
	if err := settlement.PublishCompletion(ctx, queue, demandID, success, actual); err != nil {
		return err
	}
	fmt.Printf("Reported %s success=%t duration=%s\n", demandID, success, actual)
	return nil
}
