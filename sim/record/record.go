// Package record provides the append-only event log of a factory run.
// This package has no dependencies on sim/ or sim/factory/: it stores pure data
// types that the reporting layer iterates over read-only.
//
// All timestamps are simulation ticks (seconds).
package record

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const (
	ticksPerHour = 3600
	hoursPerDay  = 24
)

// Hours converts ticks to fractional hours.
func Hours(ticks int64) float64 {
	return float64(ticks) / ticksPerHour
}

// BatchState is the lifecycle position of a ProductionBatch.
type BatchState int

const (
	StateQueued BatchState = iota
	StateBodyPrep
	StateForming
	StateGlazing
	StateFiring
	StateFinishing
	StateFinishedGoods
	StateScrapped
)

var batchStateNames = [...]string{
	StateQueued:        "queued",
	StateBodyPrep:      "body_prep",
	StateForming:       "forming",
	StateGlazing:       "glazing",
	StateFiring:        "firing",
	StateFinishing:     "finishing",
	StateFinishedGoods: "finished_goods",
	StateScrapped:      "scrapped",
}

func (s BatchState) String() string {
	if s < 0 || int(s) >= len(batchStateNames) {
		return fmt.Sprintf("BatchState(%d)", int(s))
	}
	return batchStateNames[s]
}

// Terminal reports whether the batch has left the pipeline.
func (s BatchState) Terminal() bool {
	return s == StateFinishedGoods || s == StateScrapped
}

// MarshalText implements encoding.TextMarshaler.
func (s BatchState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StageTimes holds one optional completion timestamp per pipeline stage.
// Glazing stays nil for products that skip the glaze line.
type StageTimes struct {
	BodyPrep  *int64 `json:"body_prep,omitempty"`
	Forming   *int64 `json:"forming,omitempty"`
	Glazing   *int64 `json:"glazing,omitempty"`
	Firing    *int64 `json:"firing,omitempty"`
	Finishing *int64 `json:"finishing,omitempty"`
}

// Ordered returns the set timestamps in pipeline order.
func (st StageTimes) Ordered() []int64 {
	out := make([]int64, 0, 5)
	for _, p := range []*int64{st.BodyPrep, st.Forming, st.Glazing, st.Firing, st.Finishing} {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// ProductionBatch tracks one batch of tiles from body preparation to the
// warehouse. It is owned by exactly one stage at a time.
type ProductionBatch struct {
	ID         string     `json:"id"`
	Product    string     `json:"product"`
	QuantityM2 float64    `json:"quantity_m2"`
	CreatedAt  int64      `json:"created_at"`
	State      BatchState `json:"state"`
	Stages     StageTimes `json:"stages"`

	// Set at firing: GradeAM2 + RejectM2 == FiringInputM2.
	FiringInputM2 float64 `json:"firing_input_m2"`
	GradeAM2      float64 `json:"grade_a_m2"`
	RejectM2      float64 `json:"reject_m2"`

	ClosedAt int64 `json:"closed_at"`
}

// NewProductionBatch creates a batch in StateQueued.
func NewProductionBatch(id, product string, quantityM2 float64, now int64) *ProductionBatch {
	return &ProductionBatch{
		ID:         id,
		Product:    product,
		QuantityM2: quantityM2,
		CreatedAt:  now,
		State:      StateQueued,
	}
}

// Enter moves the batch into a later state. Moving backwards or leaving a
// terminal state is a programming error.
func (b *ProductionBatch) Enter(state BatchState, now int64) {
	if b.State.Terminal() || state <= b.State {
		panic(fmt.Sprintf("batch %s: invalid transition %s -> %s", b.ID, b.State, state))
	}
	b.State = state
	if state.Terminal() {
		b.ClosedAt = now
	}
}

// Complete records the completion timestamp for stage.
func (b *ProductionBatch) Complete(stage BatchState, now int64) {
	t := now
	switch stage {
	case StateBodyPrep:
		b.Stages.BodyPrep = &t
	case StateForming:
		b.Stages.Forming = &t
	case StateGlazing:
		b.Stages.Glazing = &t
	case StateFiring:
		b.Stages.Firing = &t
	case StateFinishing:
		b.Stages.Finishing = &t
	default:
		panic(fmt.Sprintf("batch %s: %s is not a processing stage", b.ID, stage))
	}
}

// SplitYield divides the batch at firing. The yield is clamped to [0, 1] and
// the reject quantity is derived by subtraction so no m² is created or lost.
func (b *ProductionBatch) SplitYield(yield float64) {
	if math.IsNaN(yield) || yield < 0 {
		yield = 0
	}
	if yield > 1 {
		yield = 1
	}
	b.FiringInputM2 = b.QuantityM2
	b.GradeAM2 = b.QuantityM2 * yield
	b.RejectM2 = b.QuantityM2 - b.GradeAM2
	b.QuantityM2 = b.GradeAM2
}

// CycleTime returns the ticks from creation to leaving the pipeline.
func (b *ProductionBatch) CycleTime() (int64, bool) {
	if !b.State.Terminal() {
		return 0, false
	}
	return b.ClosedAt - b.CreatedAt, true
}

// OrderOutcome is the terminal result of a customer order.
type OrderOutcome string

const (
	OutcomePending   OrderOutcome = ""
	OutcomeFulfilled OrderOutcome = "fulfilled"
	// OutcomePartial ships the available stock; the shortfall is backordered
	// in the books but never shipped within the run.
	OutcomePartial   OrderOutcome = "partial"
	OutcomeCancelled OrderOutcome = "cancelled"
)

// CustomerOrder is a purchase order. It is closed exactly once.
type CustomerOrder struct {
	ID         string          `json:"id"`
	Customer   string          `json:"customer"`
	Product    string          `json:"product"`
	QuantityM2 float64         `json:"quantity_m2"`
	Express    bool            `json:"express"`
	CreatedAt  int64           `json:"created_at"`
	DueAt      int64           `json:"due_at"`
	UnitPrice  decimal.Decimal `json:"unit_price_eur"`

	Outcome     OrderOutcome `json:"outcome"`
	ClosedAt    int64        `json:"closed_at"`
	FulfilledM2 float64      `json:"fulfilled_m2"`
}

// Close records the order's single outcome.
func (o *CustomerOrder) Close(outcome OrderOutcome, fulfilledM2 float64, now int64) {
	if o.Outcome != OutcomePending {
		panic(fmt.Sprintf("order %s: already closed as %s", o.ID, o.Outcome))
	}
	if outcome == OutcomePending {
		panic(fmt.Sprintf("order %s: cannot close as pending", o.ID))
	}
	if now < o.CreatedAt {
		panic(fmt.Sprintf("order %s: closed at %d before creation at %d", o.ID, now, o.CreatedAt))
	}
	o.Outcome = outcome
	o.FulfilledM2 = fulfilledM2
	o.ClosedAt = now
}

// Closed reports whether an outcome was recorded.
func (o *CustomerOrder) Closed() bool {
	return o.Outcome != OutcomePending
}

// ShortfallM2 is the quantity not shipped.
func (o *CustomerOrder) ShortfallM2() float64 {
	return max(0, o.QuantityM2-o.FulfilledM2)
}

// Overdue reports whether the order closed after its due date.
func (o *CustomerOrder) Overdue() bool {
	return o.Closed() && o.ClosedAt > o.DueAt
}

// Revenue is the shipped quantity at the order's unit price.
func (o *CustomerOrder) Revenue() decimal.Decimal {
	return o.UnitPrice.Mul(decimal.NewFromFloat(o.FulfilledM2))
}

// FillFraction is the shipped share of the requested quantity.
func (o *CustomerOrder) FillFraction() float64 {
	if o.QuantityM2 <= 0 {
		return 0
	}
	return min(1.0, o.FulfilledM2/o.QuantityM2)
}

// SupplierDelivery is one replenishment order and its arrival.
type SupplierDelivery struct {
	ID               string          `json:"id"`
	Supplier         string          `json:"supplier"`
	Material         string          `json:"material"`
	QuantityT        float64         `json:"quantity_t"`
	UnitCost         decimal.Decimal `json:"unit_cost_eur_t"`
	OrderedAt        int64           `json:"ordered_at"`
	ScheduledArrival int64           `json:"scheduled_arrival"`
	ArrivedAt        int64           `json:"arrived_at"`
	OnTime           bool            `json:"on_time"`
	HeldByDisruption bool            `json:"held_by_disruption"`
}

// TotalCost is quantity × unit cost.
func (d *SupplierDelivery) TotalCost() decimal.Decimal {
	return d.UnitCost.Mul(decimal.NewFromFloat(d.QuantityT))
}

// LeadTime is the ticks between ordering and arrival.
func (d *SupplierDelivery) LeadTime() int64 {
	return d.ArrivedAt - d.OrderedAt
}

// BreakdownEvent is one machine failure and its repair.
type BreakdownEvent struct {
	Machine        string `json:"machine"`
	FailedAt       int64  `json:"failed_at"`
	RepairStart    int64  `json:"repair_start"`
	RepairDuration int64  `json:"repair_duration"`
	Preempted      bool   `json:"preempted"`
	Repaired       bool   `json:"repaired"`

	RepairCost decimal.Decimal `json:"repair_cost_eur"`
}

// End is when the unit returns to the pool.
func (e BreakdownEvent) End() int64 {
	return e.RepairStart + e.RepairDuration
}

// StallEvent records a stage waiting on raw material.
type StallEvent struct {
	Stage    string `json:"stage"`
	Material string `json:"material"`
	Start    int64  `json:"start"`
	End      int64  `json:"end"`
}

// StageCompletion is one stage finishing one batch.
type StageCompletion struct {
	Stage      string  `json:"stage"`
	Time       int64   `json:"time"`
	BatchID    string  `json:"batch_id"`
	QuantityM2 float64 `json:"quantity_m2"`
}

// MachineSnapshot is one machine group's state at a snapshot.
type MachineSnapshot struct {
	Total        int     `json:"total"`
	Busy         int     `json:"busy"`
	UnderRepair  int     `json:"under_repair"`
	QueueLen     int     `json:"queue_len"`
	Utilization  float64 `json:"utilization"`
	Availability float64 `json:"availability"`
}

// DailySnapshot is the state of the factory at the end of one simulated day.
type DailySnapshot struct {
	Day           int                        `json:"day"`
	Time          int64                      `json:"time"`
	RawMaterialT  map[string]float64         `json:"raw_material_t"`
	FinishedM2    map[string]float64         `json:"finished_goods_m2"`
	ProducedM2    map[string]float64         `json:"produced_m2"`
	WIP           int                        `json:"wip"`
	QueuedBatches int                        `json:"queued_batches"`
	OpenOrders    int                        `json:"open_orders"`
	Machines      map[string]MachineSnapshot `json:"machines"`
}
