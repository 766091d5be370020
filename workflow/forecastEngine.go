package workflow

import (
	"errors"
	"math"

	"github.com/mmretail/retail_backend/config"
	"github.com/mmretail/retail_backend/models"
)

// ForecastResult is a pure function of its inputs. Re-running the engine over
// the same series, lead time and policy yields the same numbers and risk.
type ForecastResult struct {
	TotalDemand         float64
	AdjustedDailyDemand float64
	DemandStdDev        float64
	SafetyStock         float64
	ReorderPoint        float64
	DaysToStockout      float64
	Risk                models.RiskLevel
}

// ComputeForecast runs the demand model for one stock unit.
//
// The series must be zero-filled daily quantities, oldest first. A window with
// zero total demand short-circuits to the dormant (inactive) risk before any
// threshold evaluation.
func ComputeForecast(series []float64, currentQty float64, leadTimeDays int, minStockThreshold int, policy config.ForecastPolicy) (ForecastResult, error) {
	if len(series) == 0 {
		return ForecastResult{}, errors.New("daily series is empty")
	}
	if leadTimeDays <= 0 {
		return ForecastResult{}, errors.New("lead time days must be positive")
	}
	if minStockThreshold < 0 {
		return ForecastResult{}, errors.New("min stock threshold cannot be negative")
	}

	total := 0.0
	for _, qty := range series {
		total += qty
	}

	result := ForecastResult{
		TotalDemand:    total,
		DaysToStockout: policy.DaysToStockoutSentinel,
	}

	if total == 0 {
		result.Risk = models.RiskLevelInactive
		return result, nil
	}

	leadTime := float64(leadTimeDays)

	result.AdjustedDailyDemand = WeightedDailyDemand(series, policy.SegmentDays, policy.SegmentWeights)
	result.DemandStdDev = PopulationStdDev(series)

	// SS = Z * sigma * sqrt(lead time), floored so low-variability units still
	// carry a buffer: at least SafetyFloorFraction of lead-time demand, and at
	// least the manager's configured minimum.
	safetyStock := policy.ServiceLevelZ * result.DemandStdDev * math.Sqrt(leadTime)
	safetyStock = math.Max(safetyStock, policy.SafetyFloorFraction*result.AdjustedDailyDemand*leadTime)
	safetyStock = math.Max(safetyStock, float64(minStockThreshold))
	result.SafetyStock = safetyStock

	// ROP = lead-time demand + safety stock.
	result.ReorderPoint = result.AdjustedDailyDemand*leadTime + safetyStock

	if result.AdjustedDailyDemand > 0 {
		result.DaysToStockout = currentQty / result.AdjustedDailyDemand
	}

	result.Risk = classifyRisk(currentQty, result.DaysToStockout, result.ReorderPoint, leadTime, policy)
	return result, nil
}

// WeightedDailyDemand averages per-segment daily demand with the heaviest
// weight on the most recent segment, normalized by the weights actually
// applied. Days older than the weight schedule covers are ignored; a flat
// average is intentionally avoided because it reacts too slowly to trend
// changes.
func WeightedDailyDemand(series []float64, segmentDays int, weights []float64) float64 {
	if len(series) == 0 || segmentDays <= 0 || len(weights) == 0 {
		return 0
	}

	weighted := 0.0
	weightSum := 0.0
	end := len(series) // segments run most-recent-first from the tail
	for _, weight := range weights {
		if end <= 0 {
			break
		}
		start := end - segmentDays
		if start < 0 {
			start = 0
		}
		segment := series[start:end]
		segmentTotal := 0.0
		for _, qty := range segment {
			segmentTotal += qty
		}
		weighted += weight * (segmentTotal / float64(len(segment)))
		weightSum += weight
		end = start
	}
	if weightSum == 0 {
		return 0
	}
	return weighted / weightSum
}

// PopulationStdDev over the full zero-filled series around its flat mean.
func PopulationStdDev(series []float64) float64 {
	n := len(series)
	if n == 0 {
		return 0
	}
	mean := 0.0
	for _, qty := range series {
		mean += qty
	}
	mean /= float64(n)

	variance := 0.0
	for _, qty := range series {
		diff := qty - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(n))
}

// classifyRisk: ordered, first match wins.
func classifyRisk(currentQty, daysToStockout, reorderPoint, leadTime float64, policy config.ForecastPolicy) models.RiskLevel {
	switch {
	case currentQty <= 0:
		return models.RiskLevelOutOfStock
	case daysToStockout <= leadTime*policy.CriticalLeadTimeFraction:
		// Would not survive even an immediate reorder.
		return models.RiskLevelCritical
	case currentQty <= reorderPoint:
		return models.RiskLevelWarning
	default:
		return models.RiskLevelOk
	}
}
