package service

import (
	"github.com/shopspring/decimal"

	"github.com/cellarcount/cellarcount-backend/internal/inventory/repository"
)

// VariancePolicy decides which count lines need attention. A variance is
// significant when it exceeds the absolute threshold OR its ratio to the
// expected quantity exceeds the relative threshold.
type VariancePolicy struct {
	Absolute decimal.Decimal `json:"absolute_threshold"`
	Relative decimal.Decimal `json:"relative_threshold"`
}

// DefaultVariancePolicy flags more than one unit or more than ten percent.
func DefaultVariancePolicy() VariancePolicy {
	return VariancePolicy{
		Absolute: decimal.NewFromInt(1),
		Relative: decimal.RequireFromString("0.10"),
	}
}

// Significant applies the policy to one line. With nothing expected, any
// difference is relatively infinite and therefore significant.
func (p VariancePolicy) Significant(expected, variance decimal.Decimal) bool {
	if variance.IsZero() {
		return false
	}
	magnitude := variance.Abs()
	if magnitude.GreaterThan(p.Absolute) {
		return true
	}
	if expected.IsZero() {
		return true
	}
	return magnitude.Div(expected.Abs()).GreaterThan(p.Relative)
}

// ReportLine is a count item with its valued variance.
type ReportLine struct {
	repository.CountItem
	VarianceValue decimal.Decimal `json:"variance_value"`
	Significant   bool            `json:"significant"`
}

// AreaReport groups the lines of one area with their subtotals.
type AreaReport struct {
	Area             repository.CountArea `json:"area"`
	Items            []ReportLine         `json:"items"`
	TotalValue       decimal.Decimal      `json:"total_value"`
	VarianceQuantity decimal.Decimal      `json:"variance_quantity"`
	VarianceValue    decimal.Decimal      `json:"variance_value"`
}

// CountReport is the variance view of a whole count.
type CountReport struct {
	Count            repository.InventoryCount `json:"count"`
	Areas            []AreaReport              `json:"areas"`
	TotalValue       decimal.Decimal           `json:"total_value"`
	VarianceQuantity decimal.Decimal           `json:"variance_quantity"`
	VarianceValue    decimal.Decimal           `json:"variance_value"`
	ItemsCounted     int                       `json:"items_counted"`
	Significant      []ReportLine              `json:"significant_variances"`
	Policy           VariancePolicy            `json:"policy"`
}

func buildReport(count repository.InventoryCount, areas []repository.CountArea, items []repository.CountItem, policy VariancePolicy) *CountReport {
	report := &CountReport{
		Count:            count,
		Areas:            make([]AreaReport, 0, len(areas)),
		TotalValue:       decimal.Zero,
		VarianceQuantity: decimal.Zero,
		VarianceValue:    decimal.Zero,
		Significant:      []ReportLine{},
		Policy:           policy,
	}

	index := make(map[string]int, len(areas))
	for i, area := range areas {
		index[area.ID] = i
		report.Areas = append(report.Areas, AreaReport{
			Area:             area,
			Items:            []ReportLine{},
			TotalValue:       decimal.Zero,
			VarianceQuantity: decimal.Zero,
			VarianceValue:    decimal.Zero,
		})
	}

	products := make(map[string]struct{})
	for _, item := range items {
		i, ok := index[item.AreaID]
		if !ok {
			continue
		}
		line := ReportLine{
			CountItem:     item,
			VarianceValue: item.Variance.Mul(item.UnitCost),
			Significant:   policy.Significant(item.ExpectedQty, item.Variance),
		}

		area := &report.Areas[i]
		area.Items = append(area.Items, line)
		area.TotalValue = area.TotalValue.Add(item.TotalValue)
		area.VarianceQuantity = area.VarianceQuantity.Add(item.Variance)
		area.VarianceValue = area.VarianceValue.Add(line.VarianceValue)

		report.TotalValue = report.TotalValue.Add(item.TotalValue)
		report.VarianceQuantity = report.VarianceQuantity.Add(item.Variance)
		report.VarianceValue = report.VarianceValue.Add(line.VarianceValue)
		products[item.ProductID] = struct{}{}

		if line.Significant {
			report.Significant = append(report.Significant, line)
		}
	}
	report.ItemsCounted = len(products)

	return report
}
