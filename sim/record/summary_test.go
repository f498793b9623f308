package record

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSummarize_NilLog_ZeroValues(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 0, s.Batches)
	assert.True(t, s.Revenue.IsZero())
	assert.NotNil(t, s.StallHours)
}

func TestSummarize_AggregatesLog(t *testing.T) {
	// GIVEN a log with two finished batches, one scrapped, three orders,
	// one delivery, one breakdown and one stall
	l := NewLog()
	for _, cycle := range []int64{10 * ticksPerHour, 20 * ticksPerHour} {
		b := NewProductionBatch("b", "FLOOR-6060", 250, 0)
		b.SplitYield(0.9)
		b.Enter(StateFinishedGoods, cycle)
		l.AddBatch(b)
	}
	scrap := NewProductionBatch("s", "FLOOR-6060", 250, 0)
	scrap.SplitYield(0)
	scrap.Enter(StateScrapped, 5*ticksPerHour)
	l.AddBatch(scrap)

	price := decimal.NewFromInt(10)
	full := &CustomerOrder{ID: "1", QuantityM2: 100, UnitPrice: price}
	full.Close(OutcomeFulfilled, 100, 0)
	part := &CustomerOrder{ID: "2", QuantityM2: 100, UnitPrice: price}
	part.Close(OutcomePartial, 50, 0)
	gone := &CustomerOrder{ID: "3", QuantityM2: 100, UnitPrice: price}
	gone.Close(OutcomeCancelled, 0, 0)
	for _, o := range []*CustomerOrder{full, part, gone} {
		l.AddOrder(o)
	}

	l.AddDelivery(&SupplierDelivery{Material: "clay", QuantityT: 50, UnitCost: decimal.NewFromInt(85), OrderedAt: 0, ArrivedAt: 36 * ticksPerHour, OnTime: true})
	l.AddBreakdown(&BreakdownEvent{Machine: "kiln", RepairDuration: 7 * ticksPerHour, Repaired: true, RepairCost: decimal.NewFromInt(2500)})
	l.AddStall("body_prep", "kaolin", 0, 3*ticksPerHour)
	l.DisruptionHours = 12

	// WHEN it is summarized
	s := Summarize(l)

	// THEN every aggregate matches
	assert.Equal(t, 3, s.Batches)
	assert.Equal(t, 2, s.FinishedBatches)
	assert.Equal(t, 1, s.ScrappedBatches)
	assert.InDelta(t, 450.0, s.GradeAM2, 1e-9)
	assert.InDelta(t, 300.0, s.RejectM2, 1e-9)
	assert.InDelta(t, (10.0+20.0+5.0)/3, s.MeanCycleHours, 1e-9)
	assert.Equal(t, 20.0, s.P90CycleHours)

	assert.Equal(t, 3, s.Orders)
	assert.Equal(t, 1, s.FulfilledOrders)
	assert.Equal(t, 1, s.PartialOrders)
	assert.Equal(t, 1, s.CancelledOrders)
	assert.Equal(t, 0, s.OpenOrders)
	assert.InDelta(t, 50.0, s.FillRatePct, 1e-9)
	assert.True(t, s.Revenue.Equal(decimal.NewFromInt(1500)), "revenue = %s", s.Revenue)
	assert.Equal(t, 150.0, s.StockoutM2)
	assert.Equal(t, 100.0, s.OTDRatePct)

	assert.Equal(t, 1, s.Deliveries)
	assert.Equal(t, 1, s.OnTimeDeliveries)
	assert.Equal(t, 36.0, s.MeanLeadHours)
	assert.True(t, s.RawMaterialCost.Equal(decimal.NewFromInt(4250)))

	assert.Equal(t, 1, s.Breakdowns)
	assert.Equal(t, 7.0, s.RepairHours)
	assert.True(t, s.BreakdownCost.Equal(decimal.NewFromInt(2500)))
	assert.Equal(t, 3.0, s.StallHours["body_prep"])
	assert.Equal(t, 12.0, s.DisruptionHours)
}

func TestSummary_ApplyCosts(t *testing.T) {
	// GIVEN a two-day run: 3 fired batches, 150 m² short, €1500 revenue,
	// €4250 of raw material and one €2500 breakdown
	s := &Summary{
		FinishedBatches: 2,
		ScrappedBatches: 1,
		StockoutM2:      150,
		Revenue:         decimal.NewFromInt(1500),
		RawMaterialCost: decimal.NewFromInt(4250),
		BreakdownCost:   decimal.NewFromInt(2500),
	}
	rates := CostRates{
		EnergyPerBatch:       decimal.NewFromInt(160),
		LaborPerShift:        decimal.NewFromInt(3000),
		ShiftsPerDay:         3,
		StockoutPenaltyPerM2: decimal.NewFromInt(5),
	}

	// WHEN operating costs are applied
	s.ApplyCosts(rates, 48*ticksPerHour)

	// THEN every cost line, profit and margin follows
	assert.True(t, s.EnergyCost.Equal(decimal.NewFromInt(480)), "energy = %s", s.EnergyCost)
	assert.True(t, s.LaborCost.Equal(decimal.NewFromInt(18000)), "labor = %s", s.LaborCost)
	assert.True(t, s.StockoutCost.Equal(decimal.NewFromInt(750)), "stockout = %s", s.StockoutCost)
	assert.True(t, s.TotalCost.Equal(decimal.NewFromInt(25980)), "total = %s", s.TotalCost)
	assert.True(t, s.GrossProfit.Equal(decimal.NewFromInt(-3230)), "gross = %s", s.GrossProfit)
	assert.True(t, s.NetProfit.Equal(decimal.NewFromInt(-24480)), "net = %s", s.NetProfit)
	assert.InDelta(t, -215.333, s.GrossMarginPct, 1e-3)
	assert.InDelta(t, -1632.0, s.NetMarginPct, 1e-9)
}

func TestSummary_ApplyCosts_NoRevenue_ZeroMargins(t *testing.T) {
	s := Summarize(nil)
	s.ApplyCosts(CostRates{LaborPerShift: decimal.NewFromInt(100), ShiftsPerDay: 1}, 24*ticksPerHour)
	assert.True(t, s.NetProfit.Equal(decimal.NewFromInt(-100)))
	assert.Equal(t, 0.0, s.GrossMarginPct)
	assert.Equal(t, 0.0, s.NetMarginPct)
}

func TestLog_Filters(t *testing.T) {
	l := NewLog()
	l.AddDelivery(&SupplierDelivery{Material: "clay"})
	l.AddDelivery(&SupplierDelivery{Material: "kaolin"})
	l.AddCompletion("kiln", 10, "b1", 250)
	l.AddCompletion("forming", 5, "b1", 250)
	l.AddDaily(DailySnapshot{Day: 1})

	assert.Len(t, l.DeliveriesFor("kaolin"), 1)
	assert.Empty(t, l.DeliveriesFor("glaze"))
	assert.Len(t, l.CompletionsFor("kiln"), 1)
	assert.Len(t, l.Daily, 1)
	assert.Empty(t, l.FinishedBatches())
}
