package factory

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/azulcer/cerasim/sim"
	"github.com/azulcer/cerasim/sim/record"
)

// demandGenerator emits customer orders as a Poisson stream. A zero order
// rate ends the process without emitting anything.
func (f *Factory) demandGenerator(p *sim.Process) {
	d := f.Config.Demand
	ratePerHour := d.MeanOrdersPerDay / float64(sim.HoursPerDay)
	if ratePerHour <= 0 {
		return
	}
	shares := make([]float64, len(f.products))
	for i, name := range f.products {
		shares[i] = f.Config.Products[name].DemandShare
	}

	var next func()
	next = func() {
		p.Sleep(f.demand.DurationExp(1/ratePerHour), func() {
			o := f.newOrder(p.Now(), shares)
			f.Log.AddOrder(o)
			f.Orders.Put(o)
			logrus.Debugf("[tick %07d] order %s: %s %.0fm² of %s (express=%v)",
				p.Now(), o.ID, o.Customer, o.QuantityM2, o.Product, o.Express)
			next()
		})
	}
	next()
}

func (f *Factory) newOrder(now int64, shares []float64) *record.CustomerOrder {
	d := f.Config.Demand
	express := f.demand.Bernoulli(d.ExpressFraction)
	product := f.products[f.demand.Choice(shares)]
	qty := math.Round(max(d.MinOrderM2, f.demand.Normal(d.MeanOrderM2, d.StdOrderM2)))
	customer := f.Config.Customers[f.demand.Intn(len(f.Config.Customers))]

	leadDays := d.StdLeadTimeDays
	price := decimal.NewFromFloat(f.Config.Products[product].PriceEURPerM2)
	if express {
		leadDays = d.ExpressLeadTimeDays
		price = price.Mul(decimal.NewFromFloat(d.ExpressPremium))
	}

	f.orderSeq++
	return &record.CustomerOrder{
		ID:         fmt.Sprintf("ORD-%04d", f.orderSeq),
		Customer:   customer,
		Product:    product,
		QuantityM2: qty,
		Express:    express,
		CreatedAt:  now,
		DueAt:      sim.AddTicks(now, sim.Hours(leadDays*float64(sim.HoursPerDay))),
		UnitPrice:  price.Round(2),
	}
}

// fulfilmentWorker takes orders first-in first-out and closes each one
// against finished-goods stock: fulfilled when stock covers it, otherwise
// partial or cancelled per the fulfilment policy, cancelled on a stockout.
func (f *Factory) fulfilmentWorker(p *sim.Process) {
	var cycle func()
	cycle = func() {
		f.Orders.Get(p, func(o *record.CustomerOrder) {
			f.fulfil(p, o, cycle)
		})
	}
	cycle()
}

func (f *Factory) fulfil(p *sim.Process, o *record.CustomerOrder, k func()) {
	fg := f.FinishedGoods[o.Product]
	avail := fg.Level()

	var outcome record.OrderOutcome
	var ship float64
	switch {
	case avail >= o.QuantityM2:
		outcome, ship = record.OutcomeFulfilled, o.QuantityM2
	case avail > 0 && f.Options.FulfilmentPolicy == FulfilShipPartial:
		outcome, ship = record.OutcomePartial, avail
	default:
		outcome = record.OutcomeCancelled
		logrus.Debugf("[tick %07d] order %s cancelled: %.0fm² of %s requested, %.0fm² in stock",
			p.Now(), o.ID, o.QuantityM2, o.Product, avail)
	}

	if ship <= 0 {
		o.Close(outcome, 0, p.Now())
		k()
		return
	}
	// stock covers ship, so the get completes without suspending
	err := fg.Get(p, ship, func() {
		o.Close(outcome, ship, p.Now())
		k()
	})
	if err != nil {
		panic(fmt.Sprintf("%s: shipping order %s: %v", p.Name, o.ID, err))
	}
}
