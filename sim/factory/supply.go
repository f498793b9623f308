package factory

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/azulcer/cerasim/sim"
	"github.com/azulcer/cerasim/sim/record"
)

// supplyMonitor reviews raw-material stock at a fixed interval and orders a
// delivery for every material below its reorder point, up to the in-flight
// limit. Disrupted suppliers are skipped and the skipped review time is
// counted as disruption hours.
func (f *Factory) supplyMonitor(p *sim.Process) {
	interval := sim.Hours(f.Config.Supply.ReviewIntervalHours)
	var review func()
	review = func() {
		p.Sleep(interval, func() {
			for _, mat := range f.materials {
				if f.Disrupted(mat, p.Now()) {
					f.Log.DisruptionHours += f.Config.Supply.ReviewIntervalHours
					continue
				}
				sup := f.Config.Suppliers[mat]
				if f.RawMaterials[mat].Level() < sup.ReorderPointT && f.inFlight[mat] < f.Config.Supply.MaxInFlight {
					f.orderDelivery(mat)
				}
			}
			review()
		})
	}
	review()
}

// orderDelivery places one replenishment order and spawns the process that
// carries it to the factory gate.
func (f *Factory) orderDelivery(material string) {
	f.inFlight[material]++
	f.sim.Spawn("delivery/"+material, func(p *sim.Process) {
		f.deliver(p, material)
	})
}

// deliver samples the lead time and lateness of one delivery, waits for it,
// holds it past any disruption window it would land in, and commits at most
// the room left below max stock.
func (f *Factory) deliver(p *sim.Process, material string) {
	sup := f.Config.Suppliers[material]
	cfg := f.Config.Supply
	orderedAt := p.Now()

	leadH := max(cfg.MinLeadTimeHours, f.supply.Normal(sup.LeadTimeMeanHours, sup.LeadTimeStdHours))
	onTime := f.supply.Bernoulli(sup.Reliability)
	if !onTime {
		leadH *= f.supply.Uniform(cfg.LateFactorMin, cfg.LateFactorMax)
	}
	scheduled := sim.AddTicks(orderedAt, sim.Hours(leadH))
	arrival := f.releaseTime(material, scheduled)

	d := &record.SupplierDelivery{
		ID:               f.newID(),
		Supplier:         sup.Name,
		Material:         material,
		UnitCost:         decimal.NewFromFloat(sup.UnitCostEURPerT),
		OrderedAt:        orderedAt,
		ScheduledArrival: scheduled,
		HeldByDisruption: arrival != scheduled,
		OnTime:           onTime && arrival == scheduled,
	}

	p.SleepUntil(arrival, func() {
		buf := f.RawMaterials[material]
		qty := min(sup.DeliveryQtyT, sup.MaxStockT-buf.Level())
		if qty > 0 {
			if err := buf.Put(qty); err != nil {
				panic(fmt.Sprintf("%s: %v", p.Name, err))
			}
		} else {
			qty = 0
		}
		d.QuantityT = qty
		d.ArrivedAt = p.Now()
		f.Log.AddDelivery(d)
		f.inFlight[material]--
		logrus.Debugf("[tick %07d] %s delivered %.1ft of %s (on time=%v, held=%v)",
			p.Now(), sup.Name, qty, material, d.OnTime, d.HeldByDisruption)
	})
}
