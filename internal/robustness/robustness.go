// Package robustness implements the local parameter-neighborhood
// Cartesian-product sweep and degradation bounds.
package robustness

import (
	"context"
	"math"

	"github.com/lucidquant/velas-engine/internal/backtest"
	"github.com/lucidquant/velas-engine/internal/candle"
	"github.com/lucidquant/velas-engine/internal/indicator"
	"github.com/lucidquant/velas-engine/internal/optimizer"
	"github.com/lucidquant/velas-engine/internal/stats"
	"github.com/lucidquant/velas-engine/internal/telemetry"
)

// Config controls the variation percent, enabled parameters, and
// validity bounds (§4.11).
type Config struct {
	VariationPercent    float64
	VaryI1, VaryI2      bool
	VaryI3, VaryI4, VaryI5 bool

	OptimizerConfig optimizer.Config
	InitialCapital  float64
	MinTrades       int
}

// DefaultConfig mirrors robustness.py's RobustnessConfig defaults.
func DefaultConfig() Config {
	return Config{
		VariationPercent: 15.0, VaryI1: true, VaryI2: true, VaryI3: true, VaryI4: true, VaryI5: true,
		OptimizerConfig: optimizer.DefaultConfig(), InitialCapital: 10000.0, MinTrades: 20,
	}
}

// Neighbor is one perturbed-parameter result (§3 RobustnessResult's
// "list of neighbor results").
type Neighbor struct {
	Preset          indicator.Preset
	TotalDistance   float64
	Metrics         stats.Metrics
	Score           float64
	ScoreDegradation float64
	IsValid         bool
	IsProfitable    bool
}

// Result is the full check (§3 RobustnessResult).
type Result struct {
	BasePreset  indicator.Preset
	BaseScore   float64
	Neighbors   []Neighbor

	TotalNeighbors      int
	ValidNeighborsCount int
	ProfitableNeighbors int
	AvgNeighborScore    float64
	MinNeighborScore    float64
	MaxNeighborScore    float64
	ScoreStdDev         float64
	AvgScoreDegradation float64
	MaxScoreDegradation float64

	IsRobust        bool
	RobustnessScore float64
	FailureReasons  []string
}

// BuildConfig turns a candidate preset into a full backtest.Config.
type BuildConfig func(p indicator.Preset) backtest.Config

// Check runs the neighbor sweep around base.
func Check(ctx context.Context, series candle.Series, base indicator.Preset, cfg Config, build BuildConfig) (Result, error) {
	baseResult, err := backtest.Run(series, build(base))
	if err != nil {
		return Result{}, err
	}
	baseScore := optimizer.CompositeScore(baseResult.Metrics, cfg.OptimizerConfig)
	if baseResult.Metrics.TotalTrades < cfg.MinTrades {
		baseScore = 0
	}

	candidates := neighborParams(base, cfg)
	var neighbors []Neighbor
	for _, p := range candidates {
		res, err := backtest.Run(series, build(p))
		if err != nil {
			continue
		}
		score := 0.0
		if res.Metrics.TotalTrades >= cfg.MinTrades {
			score = optimizer.CompositeScore(res.Metrics, cfg.OptimizerConfig)
		}
		degradation := 0.0
		if baseScore > 0 {
			degradation = (baseScore - score) / baseScore * 100
		}
		neighbors = append(neighbors, Neighbor{
			Preset: p, TotalDistance: distance(base, p),
			Metrics: res.Metrics, Score: score, ScoreDegradation: degradation,
			IsValid:      res.Metrics.TotalTrades >= cfg.MinTrades,
			IsProfitable: res.Metrics.TotalPnLPercent > 0,
		})
	}

	res := evaluate(base, baseScore, neighbors)
	telemetry.RobustnessScore.Set(res.RobustnessScore)
	return res, nil
}

// neighborParams generates the Cartesian product of
// {base*(1-v), base, base*(1+v)} for each enabled parameter, excluding
// the base tuple itself (§4.11).
func neighborParams(base indicator.Preset, cfg Config) []indicator.Preset {
	v := cfg.VariationPercent / 100

	i1s := intVariants(base.I1, v, cfg.VaryI1)
	i2s := intVariants(base.I2, v, cfg.VaryI2)
	i3s := floatVariants(base.I3, v, cfg.VaryI3)
	i4s := floatVariants(base.I4, v, cfg.VaryI4)
	i5s := floatVariants(base.I5, v, cfg.VaryI5)

	var out []indicator.Preset
	for _, i1 := range i1s {
		for _, i2 := range i2s {
			for _, i3 := range i3s {
				for _, i4 := range i4s {
					for _, i5 := range i5s {
						if i1 == base.I1 && i2 == base.I2 && i3 == base.I3 && i4 == base.I4 && i5 == base.I5 {
							continue
						}
						out = append(out, indicator.Preset{Index: base.Index, I1: i1, I2: i2, I3: i3, I4: i4, I5: i5})
					}
				}
			}
		}
	}
	return out
}

func intVariants(value int, v float64, enabled bool) []int {
	if !enabled {
		return []int{value}
	}
	low := int(float64(value) * (1 - v))
	if low < 1 {
		low = 1
	}
	high := int(float64(value)*(1+v)) + 1
	set := map[int]bool{low: true, value: true, high: true}
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func floatVariants(value, v float64, enabled bool) []float64 {
	if !enabled {
		return []float64{value}
	}
	low := round2(value * (1 - v))
	mid := round2(value)
	high := round2(value * (1 + v))
	seen := map[float64]bool{}
	var out []float64
	for _, f := range []float64{low, mid, high} {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }

// distance is the Euclidean total of per-parameter percent distances.
func distance(base, p indicator.Preset) float64 {
	d1 := pctDist(float64(base.I1), float64(p.I1))
	d2 := pctDist(float64(base.I2), float64(p.I2))
	d3 := pctDist(base.I3, p.I3)
	d4 := pctDist(base.I4, p.I4)
	d5 := pctDist(base.I5, p.I5)
	return math.Sqrt(d1*d1 + d2*d2 + d3*d3 + d4*d4 + d5*d5)
}

func pctDist(base, value float64) float64 {
	if base == 0 {
		return 0
	}
	return math.Abs(value-base) / base * 100
}

// evaluate aggregates neighbor statistics and applies §4.11's pass
// predicate: >=70% of neighbors valid, max degradation <=30, mean
// degradation <=21, stddev <=20. RobustnessScore rescales
// 0.4*valid_ratio + 0.4*(mean_score/base_score) + 0.2*(1-min(1,stddev/50))
// to 0..100.
func evaluate(base indicator.Preset, baseScore float64, neighbors []Neighbor) Result {
	res := Result{BasePreset: base, BaseScore: baseScore, Neighbors: neighbors, TotalNeighbors: len(neighbors)}
	if len(neighbors) == 0 {
		res.FailureReasons = append(res.FailureReasons, "no_neighbors")
		return res
	}

	var scores []float64
	var degradations []float64
	for _, n := range neighbors {
		if n.IsValid {
			res.ValidNeighborsCount++
			scores = append(scores, n.Score)
			degradations = append(degradations, n.ScoreDegradation)
		}
		if n.IsProfitable {
			res.ProfitableNeighbors++
		}
	}

	validRatio := float64(res.ValidNeighborsCount) / float64(res.TotalNeighbors)

	var reasons []string
	if len(scores) == 0 {
		reasons = append(reasons, "valid_ratio")
		res.IsRobust = false
		res.FailureReasons = reasons
		return res
	}
	res.AvgNeighborScore = mean(scores)
	res.MinNeighborScore = minOf(scores)
	res.MaxNeighborScore = maxOf(scores)
	res.ScoreStdDev = stddevPopulation(scores)
	res.AvgScoreDegradation = mean(degradations)
	res.MaxScoreDegradation = maxOf(degradations)

	if validRatio < 0.70 {
		reasons = append(reasons, "valid_ratio")
	}
	if res.MaxScoreDegradation > 30 {
		reasons = append(reasons, "max_degradation")
	}
	if res.AvgScoreDegradation > 21 {
		reasons = append(reasons, "mean_degradation")
	}
	if res.ScoreStdDev > 20 {
		reasons = append(reasons, "score_stddev")
	}
	res.IsRobust = len(reasons) == 0
	res.FailureReasons = reasons

	meanScoreRatio := 0.0
	if baseScore > 0 {
		meanScoreRatio = res.AvgNeighborScore / baseScore
	}
	stdevTerm := 1 - math.Min(1, res.ScoreStdDev/50)
	res.RobustnessScore = (0.4*validRatio + 0.4*meanScoreRatio + 0.2*stdevTerm) * 100

	return res
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var s float64
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

func minOf(v []float64) float64 {
	m := v[0]
	for _, x := range v {
		if x < m {
			m = x
		}
	}
	return m
}

func maxOf(v []float64) float64 {
	m := v[0]
	for _, x := range v {
		if x > m {
			m = x
		}
	}
	return m
}

func stddevPopulation(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	mu := mean(v)
	var ss float64
	for _, x := range v {
		d := x - mu
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(v)))
}
