package factory

import (
	"github.com/sirupsen/logrus"

	"github.com/azulcer/cerasim/sim"
	"github.com/azulcer/cerasim/sim/record"
)

// dailyRecorder appends one snapshot at the end of every simulated day.
func (f *Factory) dailyRecorder(p *sim.Process) {
	var next func()
	next = func() {
		p.Sleep(sim.TicksPerDay, func() {
			snap := f.Snapshot()
			f.Log.AddDaily(snap)
			for name := range f.produced {
				f.produced[name] = 0
			}
			logrus.Debugf("[tick %07d] day %d: wip=%d queued=%d open orders=%d",
				p.Now(), snap.Day, snap.WIP, snap.QueuedBatches, snap.OpenOrders)
			next()
		})
	}
	next()
}

// Snapshot captures the current state of buffers, machines and queues.
// ProducedM2 covers grade-A output since the previous daily snapshot.
func (f *Factory) Snapshot() record.DailySnapshot {
	now := f.sim.Clock
	snap := record.DailySnapshot{
		Day:           int(now / sim.TicksPerDay),
		Time:          now,
		RawMaterialT:  make(map[string]float64, len(f.materials)),
		FinishedM2:    make(map[string]float64, len(f.products)),
		ProducedM2:    make(map[string]float64, len(f.products)),
		WIP:           f.wip,
		QueuedBatches: f.QueuedBatches(),
		OpenOrders:    f.Orders.Len(),
		Machines:      make(map[string]record.MachineSnapshot, len(f.Machines)),
	}
	for _, mat := range f.materials {
		snap.RawMaterialT[mat] = f.RawMaterials[mat].Level()
	}
	for _, name := range f.products {
		snap.FinishedM2[name] = f.FinishedGoods[name].Level()
		snap.ProducedM2[name] = f.produced[name]
	}
	for _, key := range PipelineMachines {
		r := f.Machines[key]
		st := r.State()
		snap.Machines[key] = record.MachineSnapshot{
			Total:        st.Total,
			Busy:         st.Busy,
			UnderRepair:  st.UnderRepair,
			QueueLen:     r.QueueLen(),
			Utilization:  r.Utilization(),
			Availability: r.Availability(),
		}
	}
	return snap
}
