// Package report runs the whole grid pipeline for one definition: load the
// definition, collect every row series, build the grid, render it for the
// target, deliver it and record the run.
package report

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"compgrid/internal/definition"
	"compgrid/internal/grid"
	"compgrid/internal/model"
	"compgrid/internal/notifier"
	"compgrid/internal/recorder"
)

// Collector fetches the daily series of every row.
type Collector interface {
	Collect(ctx context.Context, rows []model.RowSpec) (map[string]model.DailySeries, error)
}

// Request asks for one grid delivery.
type Request struct {
	Definition string
	Target     string
	Anchor     model.Date
	// Force delivers even when this anchor was already delivered.
	Force bool
}

// Result describes a finished run.
type Result struct {
	RunID   string
	Grid    *model.Grid
	Text    string
	Skipped bool
}

// Runner wires the pipeline stages.
type Runner struct {
	Collector  Collector
	Recorder   recorder.Recorder
	Deliverers map[string]notifier.Deliverer
	Logger     zerolog.Logger
}

func NewRunner(c Collector, rec recorder.Recorder, deliverers map[string]notifier.Deliverer, logger zerolog.Logger) *Runner {
	return &Runner{
		Collector:  c,
		Recorder:   rec,
		Deliverers: deliverers,
		Logger:     logger.With().Str("component", "runner").Logger(),
	}
}

// Build loads the definition and builds its grid for anchor without delivering it.
func (r *Runner) Build(ctx context.Context, path string, anchor model.Date) (*definition.Definition, *model.Grid, error) {
	def, err := definition.Load(path)
	if err != nil {
		return nil, nil, err
	}
	g, err := r.build(ctx, def, anchor)
	return def, g, err
}

func (r *Runner) build(ctx context.Context, def *definition.Definition, anchor model.Date) (*model.Grid, error) {
	series, err := r.Collector.Collect(ctx, def.Rows)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", def.Name, err)
	}
	b := grid.Builder{
		Name:      def.Name,
		Formatter: grid.Formatter{CurrencySymbol: def.Field("currency_symbol")},
	}
	g, err := b.Build(def.Rows, series, def.Columns, anchor)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", def.Name, err)
	}
	return g, nil
}

// Run builds, renders and delivers one grid. Runs to the stdout target are
// never skipped.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	deliverer, ok := r.Deliverers[req.Target]
	if !ok {
		return nil, fmt.Errorf("no deliverer for target %q", req.Target)
	}
	def, err := definition.Load(req.Definition)
	if err != nil {
		return nil, err
	}
	log := r.Logger.With().
		Str("grid", def.Name).
		Str("target", req.Target).
		Stringer("anchor", req.Anchor).
		Logger()

	if !req.Force && req.Target != "stdout" {
		last, ok, err := r.Recorder.LastDelivered(def.Name, req.Target)
		if err != nil {
			log.Warn().Err(err).Msg("cannot read run history, delivering anyway")
		} else if ok && !last.Before(req.Anchor) {
			log.Info().Stringer("last", last).Msg("already delivered, skipping")
			return &Result{Skipped: true}, nil
		}
	}

	run := &recorder.Run{Grid: def.Name, Target: req.Target, Anchor: req.Anchor}
	res, err := r.deliver(ctx, def, req, deliverer, run)
	if err != nil {
		run.Error = err.Error()
		log.Error().Err(err).Msg("grid run failed")
	} else {
		run.Delivered = true
		log.Info().Int("rows", len(res.Grid.Rows)).Msg("grid delivered")
	}
	if recErr := r.Recorder.RecordRun(run); recErr != nil {
		log.Error().Err(recErr).Msg("record run")
	}
	if err != nil {
		return nil, err
	}
	res.RunID = run.ID
	return res, nil
}

func (r *Runner) deliver(ctx context.Context, def *definition.Definition, req Request, d notifier.Deliverer, run *recorder.Run) (*Result, error) {
	g, err := r.build(ctx, def, req.Anchor)
	if err != nil {
		return nil, err
	}
	run.Result = g

	title := def.Title(req.Anchor)
	text, err := notifier.NewRenderer(def.Dir()).Render(req.Target, notifier.NewView(g, title, def.Expand(req.Anchor)))
	if err != nil {
		return nil, err
	}
	// The definition names the Telegram chat, Slack channel or email
	// recipients under the target's key.
	channel := def.Field(req.Target)
	if td, ok := d.(notifier.TitledDeliverer); ok {
		err = td.DeliverTitled(ctx, channel, title, text)
	} else {
		err = d.Deliver(ctx, channel, text)
	}
	if err != nil {
		return nil, fmt.Errorf("deliver %s to %s: %w", def.Name, req.Target, err)
	}
	return &Result{Grid: g, Text: text}, nil
}
