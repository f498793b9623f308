package record

// Log accumulates every event of one simulation run, in the order the events
// happened. Processes append to it as a side effect; nothing ever removes or
// rewrites an entry except closing the open records it owns (orders,
// breakdowns).
type Log struct {
	Batches     []*ProductionBatch  `json:"batches"` // terminal batches only
	Orders      []*CustomerOrder    `json:"orders"`
	Deliveries  []*SupplierDelivery `json:"deliveries"`
	Breakdowns  []*BreakdownEvent   `json:"breakdowns"`
	Stalls      []StallEvent        `json:"stalls"`
	Completions []StageCompletion   `json:"stage_completions"`
	Daily       []DailySnapshot     `json:"daily"`

	DisruptionHours float64 `json:"disruption_hours"`
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// AddBatch records a batch that reached a terminal state.
func (l *Log) AddBatch(b *ProductionBatch) {
	l.Batches = append(l.Batches, b)
}

// AddOrder records a newly created order. The order is closed later.
func (l *Log) AddOrder(o *CustomerOrder) {
	l.Orders = append(l.Orders, o)
}

// AddDelivery records an arrived delivery.
func (l *Log) AddDelivery(d *SupplierDelivery) {
	l.Deliveries = append(l.Deliveries, d)
}

// AddBreakdown records a failure whose repair has started.
func (l *Log) AddBreakdown(e *BreakdownEvent) {
	l.Breakdowns = append(l.Breakdowns, e)
}

// AddStall records a stage that waited on material from start to end.
func (l *Log) AddStall(stage, material string, start, end int64) {
	l.Stalls = append(l.Stalls, StallEvent{Stage: stage, Material: material, Start: start, End: end})
}

// AddCompletion records one stage finishing one batch.
func (l *Log) AddCompletion(stage string, now int64, batchID string, quantityM2 float64) {
	l.Completions = append(l.Completions, StageCompletion{Stage: stage, Time: now, BatchID: batchID, QuantityM2: quantityM2})
}

// AddDaily records an end-of-day snapshot.
func (l *Log) AddDaily(s DailySnapshot) {
	l.Daily = append(l.Daily, s)
}

// FinishedBatches returns the batches that reached finished goods.
func (l *Log) FinishedBatches() []*ProductionBatch {
	out := make([]*ProductionBatch, 0, len(l.Batches))
	for _, b := range l.Batches {
		if b.State == StateFinishedGoods {
			out = append(out, b)
		}
	}
	return out
}

// DeliveriesFor returns the deliveries of one material.
func (l *Log) DeliveriesFor(material string) []*SupplierDelivery {
	var out []*SupplierDelivery
	for _, d := range l.Deliveries {
		if d.Material == material {
			out = append(out, d)
		}
	}
	return out
}

// CompletionsFor returns the completions of one stage.
func (l *Log) CompletionsFor(stage string) []StageCompletion {
	var out []StageCompletion
	for _, c := range l.Completions {
		if c.Stage == stage {
			out = append(out, c)
		}
	}
	return out
}
