// Command velasd is the engine's entrypoint: a cobra CLI exposing
// backtest, optimize, walkforward, robustness and live subcommands over
// a CSV candle series, plus a /metrics and /healthz HTTP server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	osignal "os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/lucidquant/velas-engine/internal/backtest"
	"github.com/lucidquant/velas-engine/internal/candle"
	"github.com/lucidquant/velas-engine/internal/config"
	"github.com/lucidquant/velas-engine/internal/indicator"
	"github.com/lucidquant/velas-engine/internal/live"
	"github.com/lucidquant/velas-engine/internal/notify"
	"github.com/lucidquant/velas-engine/internal/optimizer"
	"github.com/lucidquant/velas-engine/internal/preset"
	"github.com/lucidquant/velas-engine/internal/robustness"
	"github.com/lucidquant/velas-engine/internal/telemetry"
	"github.com/lucidquant/velas-engine/internal/testutil"
	"github.com/lucidquant/velas-engine/internal/trade"
	"github.com/lucidquant/velas-engine/internal/vlog"
	"github.com/lucidquant/velas-engine/internal/walkforward"
)

var log = vlog.New("velasd")

func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	root := &cobra.Command{
		Use:   "velasd",
		Short: "VELAS channel-breakout signal, backtest and optimization engine",
	}

	var csvPath string
	var presetIdx int
	root.PersistentFlags().StringVar(&csvPath, "candles", "", "path to a CSV of OHLCV candles")
	root.PersistentFlags().IntVar(&presetIdx, "preset", cfg.PresetIndex, "indicator preset index (0..59); -1 runs the optimizer first")

	root.AddCommand(
		newServeCmd(cfg),
		newBacktestCmd(cfg, &csvPath, &presetIdx),
		newOptimizeCmd(cfg, &csvPath),
		newWalkforwardCmd(cfg, &csvPath),
		newRobustnessCmd(cfg, &csvPath, &presetIdx),
		newLiveCmd(cfg, &csvPath, &presetIdx),
	)

	if err := root.Execute(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func newServeCmd(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "serve /metrics and /healthz",
		RunE: func(cmd *cobra.Command, args []string) error {
			mux := http.NewServeMux()
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("ok\n"))
			})
			mux.Handle("/metrics", promhttp.Handler())

			srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.MetricsPort), Handler: mux}
			go func() {
				log.Infof("serving metrics on :%d/metrics", cfg.MetricsPort)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Errorf("server: %v", err)
				}
			}()

			ctx, cancel := osignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			<-ctx.Done()

			shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
			defer c()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func newBacktestCmd(cfg config.Config, csvPath *string, presetIdx *int) *cobra.Command {
	return &cobra.Command{
		Use:   "backtest",
		Short: "run a single backtest over a CSV candle series",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, btCfg, series, err := loadAndResolve(cmd.Context(), cfg, *csvPath, *presetIdx)
			if err != nil {
				return err
			}
			result, err := backtest.Run(series, btCfg)
			if err != nil {
				return err
			}
			telemetry.SetEquity(result.Metrics.FinalEquity)
			return printJSON(result.Metrics)
		},
	}
}

func newOptimizeCmd(cfg config.Config, csvPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "optimize",
		Short: "grid-search all 60 presets and report the best",
		RunE: func(cmd *cobra.Command, args []string) error {
			series, err := loadCSV(*csvPath)
			if err != nil {
				return err
			}
			optCfg := optimizer.DefaultConfig()
			optCfg.MinTrades = cfg.OptimizerMinTrades
			optCfg.MinSharpe = cfg.OptimizerMinSharpe
			if cfg.OptimizerMaxWorkers > 0 {
				optCfg.MaxWorkers = cfg.OptimizerMaxWorkers
			}

			result, err := optimizer.Run(cmd.Context(), series, optCfg, buildFromIndex(cfg))
			if err != nil {
				return err
			}
			if result.BestResult == nil {
				fmt.Println("no preset passed acceptance thresholds")
				return nil
			}
			return printJSON(result.BestResult)
		},
	}
}

func newWalkforwardCmd(cfg config.Config, csvPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "walkforward",
		Short: "run rolling train/test walk-forward analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			series, err := loadCSV(*csvPath)
			if err != nil {
				return err
			}
			wfCfg := walkforward.DefaultConfig()
			wfCfg.TrainMonths = cfg.WalkForwardTrainMonths
			wfCfg.TestMonths = cfg.WalkForwardTestMonths
			wfCfg.StepMonths = cfg.WalkForwardStepMonths
			wfCfg.InitialCapital = cfg.InitialCapital

			build := func(idx int, segment candle.Series) backtest.Config {
				return buildFromIndex(cfg)(idx)
			}
			result, err := walkforward.Run(cmd.Context(), series, wfCfg, build)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func newRobustnessCmd(cfg config.Config, csvPath *string, presetIdx *int) *cobra.Command {
	return &cobra.Command{
		Use:   "robustness",
		Short: "check a preset's sensitivity to a local parameter neighborhood",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, _, series, err := loadAndResolve(cmd.Context(), cfg, *csvPath, *presetIdx)
			if err != nil {
				return err
			}
			robCfg := robustness.DefaultConfig()
			robCfg.VariationPercent = cfg.RobustnessVariationPercent
			robCfg.InitialCapital = cfg.InitialCapital

			build := func(candidate indicator.Preset) backtest.Config {
				return backtest.DefaultConfig(cfg.Symbol, cfg.Timeframe, candidate)
			}
			result, err := robustness.Check(cmd.Context(), series, p, robCfg, build)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

// newLiveCmd replays a CSV candle series through internal/live.Tracker
// via its MarketDataSource.Stream contract, printing a line per
// trade.Event raised: TP hits and closes (when the notification's trade
// carries a Result) through internal/notify's formatters, other events
// as a plain symbol/kind/stop line. Production exchange/WS adapters
// are out of scope (§1's Non-goals), so this drives the same tracker a
// real adapter would, against internal/testutil's deterministic replay
// fake — the one MarketDataSource implementation this repo carries.
func newLiveCmd(cfg config.Config, csvPath *string, presetIdx *int) *cobra.Command {
	return &cobra.Command{
		Use:   "live",
		Short: "replay a candle series through the live tracker",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, _, series, err := loadAndResolve(cmd.Context(), cfg, *csvPath, *presetIdx)
			if err != nil {
				return err
			}
			if len(series) < 4 {
				return fmt.Errorf("candle series too short to replay (need at least 4 bars, got %d)", len(series))
			}

			warmup := series.Slice(series[0].Time, series[len(series)/4].Time)
			rest := series.Slice(series[len(series)/4].Time, series[len(series)-1].Time)

			tr := live.New(cfg.Symbol, cfg.Timeframe, p, backtest.DefaultConfig(cfg.Symbol, cfg.Timeframe, p).TPSL,
				backtest.DefaultConfig(cfg.Symbol, cfg.Timeframe, p).Filters, backtest.DefaultConfig(cfg.Symbol, cfg.Timeframe, p).Volatility, len(warmup))
			tr.Seed(warmup)

			src := testutil.NewFakeMarketData(rest)
			return tr.Run(cmd.Context(), src, func(n live.Notification) {
				printLiveEvent(n)
			})
		},
	}
}

func printLiveEvent(n live.Notification) {
	switch n.Event.Kind {
	case trade.EventTPHit:
		fmt.Println(notify.FormatTPHit(notify.TPHitEvent{
			Symbol: n.Symbol, Direction: n.Trade.Direction, TPLevel: n.Event.TPIndex, TPPrice: n.Event.Price,
		}))
	case trade.EventClosed:
		if n.Trade.Result != nil {
			fmt.Println(notify.FormatSLHit(notify.SLHitEvent{
				Symbol: n.Symbol, Direction: n.Trade.Direction, SLPrice: n.Event.Price, PnLPercent: n.Trade.Result.TotalPnLPercent,
			}))
		}
	default:
		fmt.Printf("%s %s event=%d sl=%.6f\n", n.Symbol, n.Timeframe, n.Event.Kind, n.Event.NewSL)
	}
}

func loadCSV(path string) (candle.Series, error) {
	if path == "" {
		return nil, fmt.Errorf("--candles is required")
	}
	return candle.LoadCSV(path)
}

// buildFromIndex returns an optimizer.BuildConfig / walkforward per-index
// backtest.Config factory bound to cfg's symbol and timeframe.
func buildFromIndex(cfg config.Config) func(idx int) backtest.Config {
	return func(idx int) backtest.Config {
		p, _ := preset.ByIndex(idx)
		return backtest.DefaultConfig(cfg.Symbol, cfg.Timeframe, p)
	}
}

// loadAndResolve loads the CSV series and resolves presetIdx, running the
// optimizer first if presetIdx is negative.
func loadAndResolve(ctx context.Context, cfg config.Config, csvPath string, presetIdx int) (int, indicator.Preset, backtest.Config, candle.Series, error) {
	series, err := loadCSV(csvPath)
	if err != nil {
		return 0, indicator.Preset{}, backtest.Config{}, nil, err
	}

	idx := presetIdx
	if idx < 0 {
		optCfg := optimizer.DefaultConfig()
		grid, err := optimizer.Run(ctx, series, optCfg, buildFromIndex(cfg))
		if err != nil {
			return 0, indicator.Preset{}, backtest.Config{}, nil, err
		}
		if grid.BestResult == nil {
			return 0, indicator.Preset{}, backtest.Config{}, nil, fmt.Errorf("no preset passed acceptance thresholds; supply --preset explicitly")
		}
		idx = grid.BestResult.PresetIndex
	}

	p, err := preset.ByIndex(idx)
	if err != nil {
		return 0, indicator.Preset{}, backtest.Config{}, nil, err
	}
	btCfg := backtest.DefaultConfig(cfg.Symbol, cfg.Timeframe, p)
	btCfg.InitialCapital = cfg.InitialCapital
	return idx, p, btCfg, series, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
