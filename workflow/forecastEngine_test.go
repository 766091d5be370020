package workflow

import (
	"math"
	"testing"

	"github.com/mmretail/retail_backend/config"
	"github.com/mmretail/retail_backend/models"
)

// NOTE: These tests are intentionally DB-free. The engine is a pure function
// of (series, quantity, lead time, policy); everything here pins down the
// numbers and the risk ordering without a database.

func testPolicy() config.ForecastPolicy {
	return config.ForecastPolicy{
		WindowDays:               30,
		SegmentDays:              7,
		SegmentWeights:           []float64{0.5, 0.3, 0.15, 0.05},
		ServiceLevelZ:            1.64,
		SafetyFloorFraction:      0.10,
		CriticalLeadTimeFraction: 0.5,
		DaysToStockoutSentinel:   999999,
	}
}

func flatSeries(days int, qty float64) []float64 {
	s := make([]float64, days)
	for i := range s {
		s[i] = qty
	}
	return s
}

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestWeightedDailyDemand_RecentSegmentDominates(t *testing.T) {
	// Oldest-first: 7 days at 0, 7 at 1, 7 at 2, 7 at 4.
	series := append(flatSeries(7, 0), flatSeries(7, 1)...)
	series = append(series, flatSeries(7, 2)...)
	series = append(series, flatSeries(7, 4)...)

	got := WeightedDailyDemand(series, 7, []float64{0.5, 0.3, 0.15, 0.05})
	// 0.5*4 + 0.3*2 + 0.15*1 + 0.05*0 = 2.75
	if !almost(got, 2.75) {
		t.Fatalf("weighted demand = %v, want 2.75", got)
	}

	// A flat average would be (0+7+14+28)/28 = 1.75; the weighting must pull
	// toward the recent trend.
	if got <= 1.75 {
		t.Fatalf("weighted demand %v did not outweigh the flat average", got)
	}
}

func TestWeightedDailyDemand_ShortSeriesNormalizesAppliedWeights(t *testing.T) {
	// 10 days: 3 old days at 1/day, then 7 days at 3/day. Only the first two
	// weights apply; the result must be normalized by 0.5+0.3, not by 1.0.
	series := append(flatSeries(3, 1), flatSeries(7, 3)...)
	got := WeightedDailyDemand(series, 7, []float64{0.5, 0.3, 0.15, 0.05})
	want := (0.5*3 + 0.3*1) / 0.8 // 2.25
	if !almost(got, want) {
		t.Fatalf("weighted demand = %v, want %v", got, want)
	}
}

func TestWeightedDailyDemand_DaysBeyondScheduleIgnored(t *testing.T) {
	// 40 days where the 12 oldest days carry huge demand the schedule does
	// not cover. Only the newest 28 days (4 segments of 7) may count.
	series := append(flatSeries(12, 1000), flatSeries(28, 2)...)
	got := WeightedDailyDemand(series, 7, []float64{0.5, 0.3, 0.15, 0.05})
	if !almost(got, 2) {
		t.Fatalf("weighted demand = %v, want 2 (old days must not leak in)", got)
	}
}

func TestPopulationStdDev(t *testing.T) {
	if got := PopulationStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}); !almost(got, 2) {
		t.Fatalf("stddev = %v, want 2", got)
	}
	if got := PopulationStdDev(flatSeries(30, 5)); !almost(got, 0) {
		t.Fatalf("stddev of a flat series = %v, want 0", got)
	}
	if got := PopulationStdDev(nil); got != 0 {
		t.Fatalf("stddev of empty series = %v, want 0", got)
	}
}

func TestComputeForecast_DormantWindowShortCircuits(t *testing.T) {
	res, err := ComputeForecast(flatSeries(30, 0), 50, 7, 10, testPolicy())
	if err != nil {
		t.Fatalf("ComputeForecast: %v", err)
	}
	if res.Risk != models.RiskLevelInactive {
		t.Fatalf("risk = %s, want %s", res.Risk, models.RiskLevelInactive)
	}
	if res.DaysToStockout != testPolicy().DaysToStockoutSentinel {
		t.Fatalf("days to stockout = %v, want sentinel", res.DaysToStockout)
	}
	// No thresholds for a dormant unit.
	if res.SafetyStock != 0 || res.ReorderPoint != 0 {
		t.Fatalf("dormant unit must not carry thresholds: SS=%v ROP=%v", res.SafetyStock, res.ReorderPoint)
	}
}

func TestComputeForecast_SteadyDemandThresholds(t *testing.T) {
	// 28 days at exactly 2/day: weighted demand 2, stddev 0, so safety stock
	// falls back to the configured minimum (10 > 0.10*2*7).
	res, err := ComputeForecast(flatSeries(28, 2), 18, 7, 10, testPolicy())
	if err != nil {
		t.Fatalf("ComputeForecast: %v", err)
	}
	if !almost(res.AdjustedDailyDemand, 2) {
		t.Fatalf("demand = %v, want 2", res.AdjustedDailyDemand)
	}
	if !almost(res.SafetyStock, 10) {
		t.Fatalf("safety stock = %v, want 10 (min threshold floor)", res.SafetyStock)
	}
	if !almost(res.ReorderPoint, 24) { // 2*7 + 10
		t.Fatalf("reorder point = %v, want 24", res.ReorderPoint)
	}
	if !almost(res.DaysToStockout, 9) { // 18 / 2
		t.Fatalf("days to stockout = %v, want 9", res.DaysToStockout)
	}
	// 18 <= 24 but 9 days outlasts half the lead time: warning, not critical.
	if res.Risk != models.RiskLevelWarning {
		t.Fatalf("risk = %s, want %s", res.Risk, models.RiskLevelWarning)
	}
}

func TestComputeForecast_VolatileDemandRaisesSafetyStock(t *testing.T) {
	// Alternate 0 and 4 across 28 days: mean 2, population stddev 2. The Z
	// term (1.64*2*sqrt(7) ~ 8.68) must win over the 10% floor with no
	// configured minimum.
	series := make([]float64, 28)
	for i := range series {
		if i%2 == 1 {
			series[i] = 4
		}
	}
	res, err := ComputeForecast(series, 100, 7, 0, testPolicy())
	if err != nil {
		t.Fatalf("ComputeForecast: %v", err)
	}
	if !almost(res.DemandStdDev, 2) {
		t.Fatalf("stddev = %v, want 2", res.DemandStdDev)
	}
	wantSS := 1.64 * 2 * math.Sqrt(7)
	if !almost(res.SafetyStock, wantSS) {
		t.Fatalf("safety stock = %v, want %v", res.SafetyStock, wantSS)
	}
	if !almost(res.ReorderPoint, res.AdjustedDailyDemand*7+wantSS) {
		t.Fatalf("reorder point = %v, want demand*7+SS", res.ReorderPoint)
	}
	if res.Risk != models.RiskLevelOk {
		t.Fatalf("risk = %s, want %s", res.Risk, models.RiskLevelOk)
	}
}

func TestComputeForecast_RiskOrdering(t *testing.T) {
	policy := testPolicy()
	series := flatSeries(28, 2) // demand 2/day, ROP 24 with min threshold 10

	cases := []struct {
		name string
		qty  float64
		want models.RiskLevel
	}{
		{"zero quantity wins over everything", 0, models.RiskLevelOutOfStock},
		{"negative quantity is out of stock", -1, models.RiskLevelOutOfStock},
		{"stockout within half lead time is critical", 6, models.RiskLevelCritical}, // 3 days <= 3.5
		{"at or below reorder point is warning", 18, models.RiskLevelWarning},
		{"exactly at reorder point is warning", 24, models.RiskLevelWarning},
		{"above reorder point is ok", 30, models.RiskLevelOk},
	}
	for _, tc := range cases {
		res, err := ComputeForecast(series, tc.qty, 7, 10, policy)
		if err != nil {
			t.Fatalf("%s: ComputeForecast: %v", tc.name, err)
		}
		if res.Risk != tc.want {
			t.Fatalf("%s: qty=%v risk=%s, want %s", tc.name, tc.qty, res.Risk, tc.want)
		}
	}
}

func TestComputeForecast_InputValidation(t *testing.T) {
	policy := testPolicy()
	if _, err := ComputeForecast(nil, 10, 7, 10, policy); err == nil {
		t.Fatal("expected error for empty series")
	}
	if _, err := ComputeForecast(flatSeries(30, 1), 10, 0, 10, policy); err == nil {
		t.Fatal("expected error for non-positive lead time")
	}
	if _, err := ComputeForecast(flatSeries(30, 1), 10, 7, -1, policy); err == nil {
		t.Fatal("expected error for negative min stock threshold")
	}
}

func TestComputeForecast_DeterministicAcrossRuns(t *testing.T) {
	// Fixed pseudo-random series; the engine must return the same result on
	// every evaluation.
	series := make([]float64, 30)
	seed := uint64(42)
	for i := range series {
		seed = seed*6364136223846793005 + 1442695040888963407
		series[i] = float64(seed % 7)
	}

	first, err := ComputeForecast(series, 37.5, 9, 5, testPolicy())
	if err != nil {
		t.Fatalf("ComputeForecast: %v", err)
	}
	for run := 0; run < 100; run++ {
		again, err := ComputeForecast(series, 37.5, 9, 5, testPolicy())
		if err != nil {
			t.Fatalf("run=%d ComputeForecast: %v", run, err)
		}
		if again != first {
			t.Fatalf("run=%d result diverged: %+v vs %+v", run, again, first)
		}
	}
}
