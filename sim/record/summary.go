package record

import (
	"sort"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates headline statistics from a Log.
type Summary struct {
	Batches          int     `json:"batches"`
	FinishedBatches  int     `json:"finished_batches"`
	ScrappedBatches  int     `json:"scrapped_batches"`
	GradeAM2         float64 `json:"grade_a_m2"`
	RejectM2         float64 `json:"reject_m2"`
	MeanCycleHours   float64 `json:"mean_cycle_hours"`
	P90CycleHours    float64 `json:"p90_cycle_hours"`
	Orders           int     `json:"orders"`
	FulfilledOrders  int     `json:"fulfilled_orders"`
	PartialOrders    int     `json:"partial_orders"`
	CancelledOrders  int     `json:"cancelled_orders"`
	OpenOrders       int     `json:"open_orders"`
	OrderedM2        float64 `json:"ordered_m2"`
	ShippedM2        float64 `json:"shipped_m2"`
	FillRatePct      float64 `json:"fill_rate_pct"`
	OverdueOrders    int     `json:"overdue_orders"`
	OTDRatePct       float64 `json:"otd_rate_pct"`
	StockoutM2       float64 `json:"stockout_m2"`
	Deliveries       int     `json:"deliveries"`
	OnTimeDeliveries int     `json:"on_time_deliveries"`
	MeanLeadHours    float64 `json:"mean_lead_hours"`
	Breakdowns       int     `json:"breakdowns"`
	RepairHours      float64 `json:"repair_hours"`
	DisruptionHours  float64 `json:"disruption_hours"`

	StallHours map[string]float64 `json:"stall_hours"`

	Revenue         decimal.Decimal `json:"revenue_eur"`
	RawMaterialCost decimal.Decimal `json:"raw_material_cost_eur"`
	BreakdownCost   decimal.Decimal `json:"breakdown_cost_eur"`

	// Set by ApplyCosts.
	EnergyCost     decimal.Decimal `json:"energy_cost_eur"`
	LaborCost      decimal.Decimal `json:"labor_cost_eur"`
	StockoutCost   decimal.Decimal `json:"stockout_cost_eur"`
	TotalCost      decimal.Decimal `json:"total_cost_eur"`
	GrossProfit    decimal.Decimal `json:"gross_profit_eur"`
	NetProfit      decimal.Decimal `json:"net_profit_eur"`
	GrossMarginPct float64         `json:"gross_margin_pct"`
	NetMarginPct   float64         `json:"net_margin_pct"`
}

// CostRates prices the operating costs charged against revenue.
type CostRates struct {
	EnergyPerBatch       decimal.Decimal
	LaborPerShift        decimal.Decimal
	ShiftsPerDay         int
	StockoutPenaltyPerM2 decimal.Decimal
}

// Summarize computes aggregate statistics from a Log.
// Safe for nil or empty logs (returns zero-value fields).
func Summarize(l *Log) *Summary {
	s := &Summary{
		StallHours:      make(map[string]float64),
		OTDRatePct:      100,
		Revenue:         decimal.Zero,
		RawMaterialCost: decimal.Zero,
		BreakdownCost:   decimal.Zero,
		EnergyCost:      decimal.Zero,
		LaborCost:       decimal.Zero,
		StockoutCost:    decimal.Zero,
		TotalCost:       decimal.Zero,
		GrossProfit:     decimal.Zero,
		NetProfit:       decimal.Zero,
	}
	if l == nil {
		return s
	}

	cycles := make([]float64, 0, len(l.Batches))
	for _, b := range l.Batches {
		s.Batches++
		s.RejectM2 += b.RejectM2
		switch b.State {
		case StateFinishedGoods:
			s.FinishedBatches++
			s.GradeAM2 += b.GradeAM2
		case StateScrapped:
			s.ScrappedBatches++
		}
		if ct, ok := b.CycleTime(); ok {
			cycles = append(cycles, Hours(ct))
		}
	}
	if len(cycles) > 0 {
		sort.Float64s(cycles)
		s.MeanCycleHours = stat.Mean(cycles, nil)
		s.P90CycleHours = stat.Quantile(0.9, stat.Empirical, cycles, nil)
	}

	lateFulfilled := 0
	for _, o := range l.Orders {
		s.Orders++
		s.OrderedM2 += o.QuantityM2
		s.ShippedM2 += o.FulfilledM2
		s.Revenue = s.Revenue.Add(o.Revenue())
		switch o.Outcome {
		case OutcomeFulfilled:
			s.FulfilledOrders++
			if o.Overdue() {
				lateFulfilled++
			}
		case OutcomePartial:
			s.PartialOrders++
		case OutcomeCancelled:
			s.CancelledOrders++
		default:
			s.OpenOrders++
		}
		if o.Closed() {
			s.StockoutM2 += o.ShortfallM2()
		}
		if o.Overdue() {
			s.OverdueOrders++
		}
	}
	if s.OrderedM2 > 0 {
		s.FillRatePct = s.ShippedM2 / s.OrderedM2 * 100
	}
	if s.FulfilledOrders > 0 {
		s.OTDRatePct = float64(s.FulfilledOrders-lateFulfilled) / float64(s.FulfilledOrders) * 100
	}

	if len(l.Deliveries) > 0 {
		leads := make([]float64, len(l.Deliveries))
		for i, d := range l.Deliveries {
			leads[i] = Hours(d.LeadTime())
			if d.OnTime {
				s.OnTimeDeliveries++
			}
			s.RawMaterialCost = s.RawMaterialCost.Add(d.TotalCost())
		}
		s.Deliveries = len(l.Deliveries)
		s.MeanLeadHours = stat.Mean(leads, nil)
	}

	for _, b := range l.Breakdowns {
		s.Breakdowns++
		s.RepairHours += Hours(b.RepairDuration)
		s.BreakdownCost = s.BreakdownCost.Add(b.RepairCost)
	}
	for _, st := range l.Stalls {
		s.StallHours[st.Stage] += Hours(st.End - st.Start)
	}
	s.DisruptionHours = l.DisruptionHours

	return s
}

// ApplyCosts charges energy per fired batch, labour per shift over a run of
// the given length and a penalty per m² not shipped, then derives totals,
// profits and margins. Margins are zero when there is no revenue.
func (s *Summary) ApplyCosts(rates CostRates, runTicks int64) {
	fired := decimal.NewFromInt(int64(s.FinishedBatches + s.ScrappedBatches))
	days := decimal.NewFromInt(runTicks).Div(decimal.NewFromInt(ticksPerHour * hoursPerDay))

	s.EnergyCost = rates.EnergyPerBatch.Mul(fired)
	s.LaborCost = rates.LaborPerShift.Mul(decimal.NewFromInt(int64(rates.ShiftsPerDay))).Mul(days).Round(2)
	s.StockoutCost = rates.StockoutPenaltyPerM2.Mul(decimal.NewFromFloat(s.StockoutM2)).Round(2)
	s.TotalCost = s.RawMaterialCost.Add(s.EnergyCost).Add(s.LaborCost).Add(s.BreakdownCost).Add(s.StockoutCost)
	s.GrossProfit = s.Revenue.Sub(s.RawMaterialCost).Sub(s.EnergyCost)
	s.NetProfit = s.Revenue.Sub(s.TotalCost)
	s.GrossMarginPct, s.NetMarginPct = 0, 0
	if s.Revenue.IsPositive() {
		s.GrossMarginPct = s.GrossProfit.Div(s.Revenue).Mul(decimal.NewFromInt(100)).InexactFloat64()
		s.NetMarginPct = s.NetProfit.Div(s.Revenue).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
}
