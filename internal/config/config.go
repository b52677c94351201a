// Package config loads runtime configuration from the process
// environment, with a dependency-free .env loader for local/dev use.
package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds the process-wide runtime knobs.
type Config struct {
	Symbol    string
	Timeframe string

	InitialCapital float64
	DryRun         bool

	PresetIndex int // -1 => run the optimizer to pick one

	OptimizerMinTrades   int
	OptimizerMinSharpe   float64
	OptimizerMaxWorkers  int

	WalkForwardTrainMonths int
	WalkForwardTestMonths  int
	WalkForwardStepMonths  int

	RobustnessVariationPercent float64

	NotifyWebhookURL string
	NotifyEnabled    bool

	MetricsPort int
	LogLevel    string
}

// Load reads process env (already hydrated by LoadDotEnv) into a
// Config, falling back to documented defaults for any unset key.
func Load() Config {
	return Config{
		Symbol:    getEnv("VELAS_SYMBOL", "BTCUSDT"),
		Timeframe: getEnv("VELAS_TIMEFRAME", "15m"),

		InitialCapital: getEnvFloat("VELAS_INITIAL_CAPITAL", 10000.0),
		DryRun:         getEnvBool("VELAS_DRY_RUN", true),

		PresetIndex: getEnvInt("VELAS_PRESET_INDEX", -1),

		OptimizerMinTrades:  getEnvInt("VELAS_OPT_MIN_TRADES", 20),
		OptimizerMinSharpe:  getEnvFloat("VELAS_OPT_MIN_SHARPE", 1.2),
		OptimizerMaxWorkers: getEnvInt("VELAS_OPT_MAX_WORKERS", 0), // 0 => runtime.NumCPU()-1

		WalkForwardTrainMonths: getEnvInt("VELAS_WF_TRAIN_MONTHS", 6),
		WalkForwardTestMonths:  getEnvInt("VELAS_WF_TEST_MONTHS", 2),
		WalkForwardStepMonths:  getEnvInt("VELAS_WF_STEP_MONTHS", 2),

		RobustnessVariationPercent: getEnvFloat("VELAS_ROBUSTNESS_VARIATION_PCT", 15.0),

		NotifyWebhookURL: getEnv("VELAS_NOTIFY_WEBHOOK_URL", ""),
		NotifyEnabled:    getEnv("VELAS_NOTIFY_WEBHOOK_URL", "") != "",

		MetricsPort: getEnvInt("VELAS_METRICS_PORT", 9090),
		LogLevel:    getEnv("VELAS_LOG_LEVEL", "info"),
	}
}

// --------- Env helpers ---------

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "y", "yes":
		return true
	case "0", "false", "n", "no":
		return false
	default:
		return def
	}
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// --------- Lightweight .env loader (no external deps) ---------

// LoadDotEnv reads .env from "." and ".." and sets only the keys this
// engine recognizes, without overriding anything already present in the
// environment.
func LoadDotEnv() {
	needed := map[string]struct{}{
		"VELAS_SYMBOL": {}, "VELAS_TIMEFRAME": {}, "VELAS_INITIAL_CAPITAL": {}, "VELAS_DRY_RUN": {},
		"VELAS_PRESET_INDEX": {},
		"VELAS_OPT_MIN_TRADES": {}, "VELAS_OPT_MIN_SHARPE": {}, "VELAS_OPT_MAX_WORKERS": {},
		"VELAS_WF_TRAIN_MONTHS": {}, "VELAS_WF_TEST_MONTHS": {}, "VELAS_WF_STEP_MONTHS": {},
		"VELAS_ROBUSTNESS_VARIATION_PCT": {},
		"VELAS_NOTIFY_WEBHOOK_URL": {}, "VELAS_METRICS_PORT": {}, "VELAS_LOG_LEVEL": {},
	}
	try := func(path string) {
		f, err := os.Open(path)
		if err != nil {
			return
		}
		defer f.Close()
		s := bufio.NewScanner(f)
		for s.Scan() {
			line := strings.TrimSpace(s.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			if strings.HasPrefix(line, "export ") {
				line = strings.TrimSpace(line[len("export "):])
			}
			eq := strings.Index(line, "=")
			if eq <= 0 {
				continue
			}
			key := strings.TrimSpace(line[:eq])
			if _, ok := needed[key]; !ok {
				continue
			}
			val := strings.TrimSpace(line[eq+1:])
			if len(val) >= 2 && ((val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'')) {
				val = val[1 : len(val)-1]
			}
			if idx := strings.IndexAny(val, "#"); idx >= 0 {
				val = strings.TrimSpace(val[:idx])
			}
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, val)
			}
		}
	}
	for _, base := range []string{".", ".."} {
		try(filepath.Join(base, ".env"))
	}
}
