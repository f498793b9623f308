package factory

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/azulcer/cerasim/sim"
	"github.com/azulcer/cerasim/sim/record"
)

// deficitWeight scales the bonus a product gets when its finished-goods stock
// is below twice its initial level.
const deficitWeight = 0.25

type materialNeed struct {
	material string
	tonnes   float64
}

// chooseProduct picks the product of a new batch: demand share plus a bonus
// proportional to the product's finished-goods deficit.
func (f *Factory) chooseProduct() string {
	weights := make([]float64, len(f.products))
	for i, name := range f.products {
		pc := f.Config.Products[name]
		w := pc.DemandShare
		if target := pc.InitialStockM2 * 2; target > 0 {
			level := f.FinishedGoods[name].Level()
			w += max(0, (target-level)/target) * deficitWeight
		}
		weights[i] = w
	}
	return f.products[f.mix.Choice(weights)]
}

// bodyMix returns the tonnes of each mineral one batch of product consumes,
// in material order.
func (f *Factory) bodyMix(product string) []materialNeed {
	kg := f.Config.BatchSizeM2 * f.Config.Products[product].BodyKgPerM2
	needs := make([]materialNeed, 0, len(f.Config.BodyComposition))
	for _, mat := range sortedKeys(f.Config.BodyComposition) {
		if t := kg * f.Config.BodyComposition[mat] / 1000; t > 0 {
			needs = append(needs, materialNeed{material: mat, tonnes: t})
		}
	}
	return needs
}

// procTime samples one batch's processing time on a machine group.
func (f *Factory) procTime(key string) int64 {
	m := f.Config.Machines[key]
	return f.procTimes[key].DurationNormal(m.ProcMeanHours, m.ProcStdHours)
}

// drawMaterials waits until every buffer covers its need and then withdraws
// the whole mix in one step, so a line never holds part of a mix while it
// waits. Every wait that took simulated time is logged as a stall on the
// material that was short.
func (f *Factory) drawMaterials(p *sim.Process, stage string, needs []materialNeed, k func()) {
	for _, n := range needs {
		buf := f.RawMaterials[n.material]
		if buf.Covers(n.tonnes) {
			continue
		}
		start := p.Now()
		err := buf.WaitFor(p, n.tonnes, func() {
			if p.Now() > start {
				f.Log.AddStall(stage, n.material, start, p.Now())
				logrus.Debugf("[tick %07d] %s stalled %.2fh on %s", p.Now(), p.Name, sim.ToHours(p.Now()-start), n.material)
			}
			f.drawMaterials(p, stage, needs, k)
		})
		if err != nil {
			panic(fmt.Sprintf("%s: waiting for %s: %v", p.Name, n.material, err))
		}
		return
	}
	for _, n := range needs {
		ok, err := f.RawMaterials[n.material].TryGet(n.tonnes)
		if err != nil || !ok {
			panic(fmt.Sprintf("%s: drawing %s: covered=%v err=%v", p.Name, n.material, ok, err))
		}
	}
	k()
}

// runStage acquires one unit of a machine group, holds it for a sampled
// processing time, releases it and stamps the batch before continuing.
func (f *Factory) runStage(p *sim.Process, key string, b *record.ProductionBatch, state record.BatchState, k func()) {
	f.Machines[key].Acquire(p, func(g *sim.Grant) {
		b.Enter(state, p.Now())
		g.Work(f.procTime(key), func() {
			g.Release()
			b.Complete(state, p.Now())
			f.Log.AddCompletion(key, p.Now(), b.ID, b.QuantityM2)
			k()
		})
	})
}

func (f *Factory) bodyPrepWorker(p *sim.Process) {
	var cycle func()
	cycle = func() {
		product := f.chooseProduct()
		b := record.NewProductionBatch(f.newID(), product, f.Config.BatchSizeM2, p.Now())
		f.wip++
		f.drawMaterials(p, MachineBodyPrep, f.bodyMix(product), func() {
			f.runStage(p, MachineBodyPrep, b, record.StateBodyPrep, func() {
				f.Forming.Put(b)
				cycle()
			})
		})
	}
	cycle()
}

func (f *Factory) formingWorker(p *sim.Process) {
	var cycle func()
	cycle = func() {
		f.Forming.Get(p, func(b *record.ProductionBatch) {
			f.runStage(p, MachineForming, b, record.StateForming, func() {
				f.Glazing.Put(b)
				cycle()
			})
		})
	}
	cycle()
}

// glazingWorker routes glazed products through glaze material and the glaze
// line. Unglazed products pass straight to firing without a glazing stamp.
func (f *Factory) glazingWorker(p *sim.Process) {
	var cycle func()
	cycle = func() {
		f.Glazing.Get(p, func(b *record.ProductionBatch) {
			pc := f.Config.Products[b.Product]
			if !pc.NeedsGlaze {
				f.Firing.Put(b)
				cycle()
				return
			}
			need := []materialNeed{{material: MaterialGlaze, tonnes: b.QuantityM2 * pc.GlazeKgPerM2 / 1000}}
			f.drawMaterials(p, MachineGlazing, need, func() {
				f.runStage(p, MachineGlazing, b, record.StateGlazing, func() {
					f.Firing.Put(b)
					cycle()
				})
			})
		})
	}
	cycle()
}

// firingWorker fires one batch per kiln cycle and splits it into grade A and
// reject. A batch with no grade A left is scrapped here.
func (f *Factory) firingWorker(p *sim.Process) {
	var cycle func()
	cycle = func() {
		f.Firing.Get(p, func(b *record.ProductionBatch) {
			f.runStage(p, MachineKiln, b, record.StateFiring, func() {
				b.SplitYield(f.yield.Normal(f.Config.Quality.YieldMean, f.Config.Quality.YieldStd))
				if b.GradeAM2 <= 0 {
					b.Enter(record.StateScrapped, p.Now())
					f.closeBatch(b)
					logrus.Debugf("[tick %07d] batch %s scrapped at firing", p.Now(), b.ID)
				} else {
					f.Finishing.Put(b)
				}
				cycle()
			})
		})
	}
	cycle()
}

func (f *Factory) finishingWorker(p *sim.Process) {
	var cycle func()
	cycle = func() {
		f.Finishing.Get(p, func(b *record.ProductionBatch) {
			f.runStage(p, MachineFinishing, b, record.StateFinishing, func() {
				if err := f.FinishedGoods[b.Product].Put(b.GradeAM2); err != nil {
					panic(fmt.Sprintf("%s: storing batch %s: %v", p.Name, b.ID, err))
				}
				f.produced[b.Product] += b.GradeAM2
				b.Enter(record.StateFinishedGoods, p.Now())
				f.closeBatch(b)
				cycle()
			})
		})
	}
	cycle()
}

func (f *Factory) closeBatch(b *record.ProductionBatch) {
	f.wip--
	f.Log.AddBatch(b)
}
