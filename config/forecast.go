package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ForecastPolicy carries the tunable constants of the demand forecast.
// The weight schedule and the service-level Z-score are policy, not
// invariants; ops can override them per deployment via env.
type ForecastPolicy struct {
	// WindowDays is the trailing sales window (default 30).
	WindowDays int
	// SegmentDays is the length of one weighting segment (default 7).
	SegmentDays int
	// SegmentWeights are applied most-recent segment first (default 0.5/0.3/0.15/0.05).
	SegmentWeights []float64
	// ServiceLevelZ maps to the accepted stockout probability during lead time.
	// 1.28 = 90%, 1.64 = 95%, 2.33 = 99%.
	ServiceLevelZ float64
	// SafetyFloorFraction floors safety stock at this fraction of lead-time demand.
	SafetyFloorFraction float64
	// CriticalLeadTimeFraction: below this fraction of lead time remaining, risk is critical.
	CriticalLeadTimeFraction float64
	// NotificationCooldown suppresses repeat notifications for the same
	// (stock unit, risk level) pair.
	NotificationCooldown time.Duration
	// DormancyCooldown suppresses repeat dormant snapshots.
	DormancyCooldown time.Duration
	// ChunkSize bounds how many products are loaded per batch iteration.
	ChunkSize int
	// DaysToStockoutSentinel stands in for "infinite" when demand is zero,
	// keeping comparisons well-defined.
	DaysToStockoutSentinel float64
}

// Env overrides (optional):
// - FORECAST_WINDOW_DAYS (default 30)
// - FORECAST_SEGMENT_WEIGHTS (CSV, default "0.5,0.3,0.15,0.05")
// - FORECAST_SERVICE_LEVEL_Z (default 1.64)
// - FORECAST_SAFETY_FLOOR_FRACTION (default 0.10)
// - FORECAST_NOTIFICATION_COOLDOWN_HOURS (default 24)
// - FORECAST_DORMANCY_COOLDOWN_DAYS (default 7)
// - FORECAST_CHUNK_SIZE (default 100)
func GetForecastPolicy() ForecastPolicy {
	return ForecastPolicy{
		WindowDays:               intFromEnv("FORECAST_WINDOW_DAYS", 30),
		SegmentDays:              7,
		SegmentWeights:           weightsFromEnv("FORECAST_SEGMENT_WEIGHTS", []float64{0.5, 0.3, 0.15, 0.05}),
		ServiceLevelZ:            floatFromEnv("FORECAST_SERVICE_LEVEL_Z", 1.64),
		SafetyFloorFraction:      floatFromEnv("FORECAST_SAFETY_FLOOR_FRACTION", 0.10),
		CriticalLeadTimeFraction: 0.5,
		NotificationCooldown:     time.Duration(intFromEnv("FORECAST_NOTIFICATION_COOLDOWN_HOURS", 24)) * time.Hour,
		DormancyCooldown:         time.Duration(intFromEnv("FORECAST_DORMANCY_COOLDOWN_DAYS", 7)) * 24 * time.Hour,
		ChunkSize:                intFromEnv("FORECAST_CHUNK_SIZE", 100),
		DaysToStockoutSentinel:   999999,
	}
}

func floatFromEnv(key string, def float64) float64 {
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

func weightsFromEnv(key string, def []float64) []float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	weights := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || f < 0 {
			return def
		}
		weights = append(weights, f)
	}
	if len(weights) == 0 {
		return def
	}
	return weights
}
