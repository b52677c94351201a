// Package walkforward implements rolling train/test windows over the
// preset space, out-of-sample efficiency, and a robustness predicate.
package walkforward

import (
	"context"
	"time"

	"github.com/lucidquant/velas-engine/internal/backtest"
	"github.com/lucidquant/velas-engine/internal/candle"
	"github.com/lucidquant/velas-engine/internal/optimizer"
	"github.com/lucidquant/velas-engine/internal/stats"
	"github.com/lucidquant/velas-engine/internal/telemetry"
	"github.com/lucidquant/velas-engine/internal/trade"
	"github.com/lucidquant/velas-engine/internal/verr"
)

const daysPerMonth = 30.0

// Config controls window sizing and the inner optimizer/acceptance
// thresholds (§4.10).
type Config struct {
	TrainMonths int
	TestMonths  int
	StepMonths  int
	MinPeriods  int

	OptimizerConfig optimizer.Config
	InitialCapital  float64
}

// DefaultConfig mirrors walk_forward.py's WalkForwardConfig defaults.
func DefaultConfig() Config {
	return Config{TrainMonths: 6, TestMonths: 2, StepMonths: 2, MinPeriods: 4,
		OptimizerConfig: optimizer.DefaultConfig(), InitialCapital: 10000.0}
}

// Period is one rolling train/test window's outcome (§3 WalkForwardPeriod).
type Period struct {
	Index      int
	TrainStart time.Time
	TrainEnd   time.Time
	TestStart  time.Time
	TestEnd    time.Time

	BestPresetIndex int
	TestMetrics     stats.Metrics
	TrainScore      float64
	TestScore       float64
	Efficiency      float64
}

// Result is the full analysis (§3 WalkForwardResult).
type Result struct {
	Periods           []Period
	TotalPeriods      int
	SuccessfulPeriods int
	AggregatedMetrics stats.Metrics
	AvgEfficiency     float64
	MinEfficiency     float64
	PresetStability   float64
	MostCommonPreset  int
	IsRobust          bool
	FailureReasons    []string
}

// BuildConfig turns a preset index and the segment series into a full
// backtest.Config for one window's train or test segment; callers
// supply this (mirrors optimizer.BuildConfig).
type BuildConfig func(presetIndex int, series candle.Series) backtest.Config

// Run generates rolling windows over series and analyzes each. series
// must be sorted ascending by time (§8 "walk-forward purity": test bars
// are always strictly later than the train bars that produced the
// chosen preset, enforced by the window generator below).
func Run(ctx context.Context, series candle.Series, cfg Config, build BuildConfig) (Result, error) {
	if len(series) == 0 {
		return Result{}, verr.NewInvalidInput("series", "empty")
	}
	windows, err := generateWindows(series, cfg)
	if err != nil {
		return Result{}, err
	}

	var analyzed []Period
	var poolTrades []*trade.Trade
	presetCounts := map[int]int{}

	for i, w := range windows {
		trainSeries := series.Slice(w.TrainStart, w.TrainEnd.Add(-time.Nanosecond))
		testSeries := series.Slice(w.TestStart, w.TestEnd)
		if len(trainSeries) < 100 || len(testSeries) < 20 {
			continue
		}

		grid, err := optimizer.Run(ctx, trainSeries, cfg.OptimizerConfig, func(idx int) backtest.Config {
			return build(idx, trainSeries)
		})
		if err != nil {
			return Result{}, err
		}
		if grid.BestResult == nil {
			continue
		}
		trainScore := grid.BestResult.CompositeScore
		bestIdx := grid.BestResult.PresetIndex

		testCfg := build(bestIdx, testSeries)
		testResult, err := backtest.Run(testSeries, testCfg)
		if err != nil {
			continue
		}
		testScore := optimizer.CompositeScore(testResult.Metrics, cfg.OptimizerConfig)
		efficiency := 0.0
		if trainScore > 0 {
			efficiency = testScore / trainScore
		}

		analyzed = append(analyzed, Period{
			Index: i, TrainStart: w.TrainStart, TrainEnd: w.TrainEnd, TestStart: w.TestStart, TestEnd: w.TestEnd,
			BestPresetIndex: bestIdx, TestMetrics: testResult.Metrics, TrainScore: trainScore, TestScore: testScore, Efficiency: efficiency,
		})
		poolTrades = append(poolTrades, testResult.Trades...)
		presetCounts[bestIdx]++
	}

	aggregated := stats.CalculateAll(poolTrades, cfg.InitialCapital)
	avgEff, minEff := efficiencyStats(analyzed)
	mostCommon, mostCommonCount := mostCommonPreset(presetCounts)
	stability := 0.0
	if len(analyzed) > 0 {
		stability = float64(mostCommonCount) / float64(len(analyzed))
	}

	isRobust, reasons := checkRobustness(analyzed, aggregated, avgEff, minEff, cfg.OptimizerConfig, cfg.MinPeriods)

	telemetry.WalkForwardRuns.Inc()
	telemetry.WalkForwardEfficiency.Set(avgEff)

	return Result{
		Periods: analyzed, TotalPeriods: len(windows), SuccessfulPeriods: len(analyzed),
		AggregatedMetrics: aggregated, AvgEfficiency: avgEff, MinEfficiency: minEff,
		PresetStability: stability, MostCommonPreset: mostCommon, IsRobust: isRobust, FailureReasons: reasons,
	}, nil
}

type windowBounds struct {
	TrainStart, TrainEnd, TestStart, TestEnd time.Time
}

func generateWindows(series candle.Series, cfg Config) ([]windowBounds, error) {
	start := series[0].Time
	end := series[len(series)-1].Time
	totalMonths := end.Sub(start).Hours() / 24 / daysPerMonth
	minMonths := float64(cfg.TrainMonths+cfg.TestMonths) + float64(cfg.StepMonths)*float64(cfg.MinPeriods-1)
	if totalMonths < minMonths {
		return nil, verr.NewInsufficientData("walkforward", int(totalMonths), int(minMonths))
	}

	var windows []windowBounds
	cursor := start
	for {
		trainEnd := cursor.Add(monthsToDuration(cfg.TrainMonths))
		testStart := trainEnd
		testEnd := testStart.Add(monthsToDuration(cfg.TestMonths))
		if testEnd.After(end) {
			break
		}
		windows = append(windows, windowBounds{TrainStart: cursor, TrainEnd: trainEnd, TestStart: testStart, TestEnd: testEnd})
		cursor = cursor.Add(monthsToDuration(cfg.StepMonths))
	}
	return windows, nil
}

func monthsToDuration(months int) time.Duration {
	return time.Duration(float64(months)*daysPerMonth*24) * time.Hour
}

// efficiencyStats averages and finds the minimum Efficiency across every
// analyzed period, including ones at exactly 0 — a zero efficiency is a
// well-formed result for a fully-failed out-of-sample window, and the
// minimum is exactly what the robustness predicate needs to see it.
func efficiencyStats(periods []Period) (avg, min float64) {
	var sum float64
	n := len(periods)
	for i, p := range periods {
		sum += p.Efficiency
		if i == 0 || p.Efficiency < min {
			min = p.Efficiency
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), min
}

func mostCommonPreset(counts map[int]int) (idx int, count int) {
	for k, v := range counts {
		if v > count {
			idx, count = k, v
		}
	}
	return
}

// checkRobustness evaluates §4.10 step 5's robustness predicate.
func checkRobustness(periods []Period, aggregated stats.Metrics, avgEff, minEff float64, optCfg optimizer.Config, minPeriods int) (bool, []string) {
	var reasons []string
	if len(periods) < minPeriods {
		reasons = append(reasons, "successful_periods")
	}
	if avgEff < 0.5 {
		reasons = append(reasons, "avg_efficiency")
	}
	if minEff < 0.3 {
		reasons = append(reasons, "min_efficiency")
	}
	if aggregated.WinRateByTP[0] < optCfg.MinWinRateTP1 {
		reasons = append(reasons, "aggregated_win_rate_tp1")
	}
	if aggregated.SharpeRatio < optCfg.MinSharpe {
		reasons = append(reasons, "aggregated_sharpe")
	}
	if absFloat(aggregated.MaxDrawdownPercent) > optCfg.MaxDrawdown {
		reasons = append(reasons, "aggregated_max_drawdown")
	}
	return len(reasons) == 0, reasons
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
