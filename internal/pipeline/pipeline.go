// Package pipeline runs one delivery upload end to end: parse, predict,
// classify, summarize and build the record table.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/KaramelBytes/deliverylens/internal/analysis"
	"github.com/KaramelBytes/deliverylens/internal/delivery"
	"github.com/KaramelBytes/deliverylens/internal/logger"
	"github.com/KaramelBytes/deliverylens/internal/predict"
)

// Degraded report texts.
const (
	NoDataSummary     = "No data found in the uploaded file."
	NoDataAnomalies   = "No anomalies detected due to lack of data."
	MalformedSummary  = "Error analyzing the uploaded data. Please check the CSV format."
	MalformedAnomaly  = "Unable to detect anomalies due to data processing error."
	defaultPeriodText = "the uploaded dataset"
)

// Options tunes a run.
type Options struct {
	// Predict calls the model when a Predictor is configured.
	Predict           bool
	ResidualThreshold float64
	ValueThreshold    float64
	SigmaK            float64
	// FallbackMethod is used when no predictions are available.
	FallbackMethod analysis.Method
	DelayRule      delivery.DelayRule
	// Period labels the advisory text.
	Period string
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	return Options{
		Predict:           true,
		ResidualThreshold: analysis.DefaultResidualThreshold,
		ValueThreshold:    analysis.DefaultValueThreshold,
		SigmaK:            analysis.DefaultSigmaK,
		FallbackMethod:    analysis.MethodSigma,
		DelayRule:         delivery.DelayRule{Tolerance: delivery.DefaultDelayTolerance},
	}
}

// Report is the summary block of a run. List holds CSV data row indices,
// high anomalies first.
type Report struct {
	Summary   string          `json:"summary"`
	Anomalies string          `json:"anomalies"`
	Count     int             `json:"count"`
	List      []int           `json:"list"`
	Method    analysis.Method `json:"method,omitempty"`
	Advisory  string          `json:"advisory,omitempty"`
}

// Result is everything produced for one upload.
type Result struct {
	ID       string                 `json:"id"`
	Report   Report                 `json:"report"`
	Stats    *analysis.Stats        `json:"stats,omitempty"`
	KPIs     delivery.KPIs          `json:"kpis"`
	Chart    []delivery.StatusCount `json:"chart"`
	Records  []delivery.Record      `json:"records"`
	Warnings []string               `json:"warnings,omitempty"`
	Degraded bool                   `json:"degraded,omitempty"`
	// Anomalies carries the classifier output keyed by observation position.
	Anomalies analysis.AnomalyReport `json:"-"`
}

// Pipeline holds the collaborators shared across runs. It keeps no per-run
// state and is safe for concurrent use if its collaborators are.
type Pipeline struct {
	Predictor predict.Predictor
	Advisor   *analysis.Advisor
	Options   Options
}

// New builds a pipeline. predictor and advisor may be nil.
func New(predictor predict.Predictor, advisor *analysis.Advisor, opts Options) *Pipeline {
	return &Pipeline{Predictor: predictor, Advisor: advisor, Options: opts}
}

// Run analyzes one CSV upload. Malformed or empty input yields a degraded
// result rather than an error; prediction failures are returned.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (*Result, error) {
	return p.RunWith(ctx, r, p.Options)
}

// RunWith is Run with per-call options.
func (p *Pipeline) RunWith(ctx context.Context, r io.Reader, opts Options) (*Result, error) {
	res := &Result{ID: uuid.NewString(), Chart: []delivery.StatusCount{}, Records: []delivery.Record{}}

	tbl, err := delivery.ParseCSV(r)
	if err != nil {
		var me *delivery.MalformedCSVError
		if !errors.As(err, &me) {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		logger.Warn("degraded report for upload %s: %v", res.ID, err)
		res.degrade(MalformedSummary, MalformedAnomaly, err.Error())
		return res, nil
	}
	if len(tbl.Rows) == 0 {
		res.degrade(NoDataSummary, NoDataAnomalies, "uploaded file has a header but no data rows")
		return res, nil
	}

	obs, warnings := delivery.Observations(tbl.Rows)
	res.Warnings = append(res.Warnings, warnings...)

	covered := len(obs)
	if opts.Predict && p.Predictor != nil && len(obs) > 0 {
		n, w, err := p.attachPredictions(ctx, tbl.Rows, obs)
		if err != nil {
			return nil, err
		}
		covered = n
		res.Warnings = append(res.Warnings, w...)
	}

	rep := classify(obs, covered, opts)
	res.Anomalies = rep

	var st *analysis.Stats
	if len(obs) > 0 {
		s, err := analysis.ComputeStats(delivery.Actuals(obs))
		if err != nil {
			return nil, err
		}
		st = &s
	}
	res.Stats = st

	sum := analysis.BuildSummary(st, rep, len(tbl.Rows), delivery.UniqueCities(tbl.Rows))
	rows := make([]int, len(rep.Indices))
	for i, pos := range rep.Indices {
		rows[i] = obs[pos].Row
	}
	res.Report = Report{
		Summary:   sum.SummaryText,
		Anomalies: sum.AnomalyText,
		Count:     rep.Count,
		List:      rows,
		Method:    rep.Method,
		Advisory:  p.Advisor.Advise(ctx, sum.AnomalyText, periodOrDefault(opts.Period)),
	}

	res.Records = delivery.BuildRecords(tbl.Rows, obs, rows, opts.DelayRule)
	res.KPIs = delivery.ComputeKPIs(res.Records)
	res.Chart = delivery.CountByStatus(res.Records)

	logger.Info("upload %s: rows=%d observations=%d anomalies=%d method=%s",
		res.ID, len(tbl.Rows), len(obs), rep.Count, rep.Method)
	return res, nil
}

// attachPredictions fills obs[i].Predicted and returns how many leading
// observations the model response covers. A short response leaves the tail
// uncovered; rows inside the covered range whose features cannot be built keep
// a nil prediction.
func (p *Pipeline) attachPredictions(ctx context.Context, rows []delivery.Row, obs []delivery.Observation) (int, []string, error) {
	enc := delivery.NewEncoder()
	var warnings []string
	features := make([]delivery.Feature, 0, len(obs))
	positions := make([]int, 0, len(obs))
	for i, o := range obs {
		f, err := enc.Features(rows[o.Row])
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("no prediction: %v", err))
			continue
		}
		features = append(features, f)
		positions = append(positions, i)
	}
	if len(features) == 0 {
		return len(obs), warnings, nil
	}

	preds, err := p.Predictor.Predict(ctx, features)
	if err != nil {
		return 0, nil, fmt.Errorf("predict travel times: %w", err)
	}
	if len(preds) != len(features) {
		warnings = append(warnings, fmt.Sprintf("model returned %d predictions for %d deliveries", len(preds), len(features)))
	}
	for j, pos := range positions {
		if j >= len(preds) {
			break
		}
		v := preds[j]
		obs[pos].Predicted = &v
	}
	if len(preds) >= len(features) {
		return len(obs), warnings, nil
	}
	if len(preds) == 0 {
		return 0, warnings, nil
	}
	return positions[len(preds)-1] + 1, warnings, nil
}

// classify runs the residual detector over the first covered observations
// when any prediction exists, and the fallback detector otherwise.
func classify(obs []delivery.Observation, covered int, opts Options) analysis.AnomalyReport {
	actual := delivery.Actuals(obs)
	predicted := delivery.Predictions(obs)
	if covered > len(obs) {
		covered = len(obs)
	}
	for _, v := range predicted[:covered] {
		if v != nil {
			return analysis.DetectResidual(actual[:covered], predicted[:covered], opts.ResidualThreshold)
		}
	}
	threshold := opts.SigmaK
	if opts.FallbackMethod == analysis.MethodValueIQR {
		threshold = opts.ValueThreshold
	}
	return analysis.DetectFallback(opts.FallbackMethod, actual, threshold)
}

func (r *Result) degrade(summary, anomalies, warning string) {
	r.Degraded = true
	r.Report = Report{Summary: summary, Anomalies: anomalies, List: []int{}}
	r.Warnings = append(r.Warnings, warning)
}

func periodOrDefault(p string) string {
	if p == "" {
		return defaultPeriodText
	}
	return p
}
