// Package factory models the AzulCer ceramic-tile plant on top of the sim
// engine: raw-material procurement, the five-stage production pipeline,
// finished-goods inventory and customer order fulfilment.
//
// A Factory holds every buffer, machine pool and queue of one run. Build it
// with New, start its processes with Register, then drive the simulator. Run
// wraps the three steps.
package factory

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/azulcer/cerasim/sim"
	"github.com/azulcer/cerasim/sim/record"
)

// FulfilmentPolicy decides what happens to an order that stock covers only
// partially.
type FulfilmentPolicy string

const (
	// FulfilShipPartial ships the available stock and books the rest as a
	// backorder (outcome partial).
	FulfilShipPartial FulfilmentPolicy = "ship-partial"

	// FulfilAllOrNothing cancels any order that cannot be shipped in full.
	FulfilAllOrNothing FulfilmentPolicy = "all-or-nothing"
)

// ParseFulfilmentPolicy maps a flag value to a FulfilmentPolicy.
func ParseFulfilmentPolicy(s string) (FulfilmentPolicy, error) {
	switch FulfilmentPolicy(s) {
	case FulfilShipPartial, FulfilAllOrNothing:
		return FulfilmentPolicy(s), nil
	case "":
		return FulfilShipPartial, nil
	default:
		return "", fmt.Errorf("unknown fulfilment policy %q; valid: ship-partial, all-or-nothing", s)
	}
}

// Options selects the scenario and the behavioural policies of a run.
type Options struct {
	Scenario         string
	FailurePolicy    sim.FailurePolicy
	FulfilmentPolicy FulfilmentPolicy
}

type window struct {
	start, end int64
}

// Factory is the plant model of one run. All state is owned by the
// simulator's single logical thread.
type Factory struct {
	Config   *Config // scenario already applied
	Scenario ScenarioConfig
	Options  Options
	Log      *record.Log

	RawMaterials  map[string]*sim.Container
	FinishedGoods map[string]*sim.Container
	Machines      map[string]*sim.Resource

	// Inter-stage queues, named after the stage that consumes them.
	Forming   *sim.Store[*record.ProductionBatch]
	Glazing   *sim.Store[*record.ProductionBatch]
	Firing    *sim.Store[*record.ProductionBatch]
	Finishing *sim.Store[*record.ProductionBatch]
	Orders    *sim.Store[*record.CustomerOrder]

	sim         *sim.Simulator
	products    []string
	materials   []string
	disruptions map[string][]window
	inFlight    map[string]int
	wip         int
	produced    map[string]float64
	orderSeq    int
	openRepairs map[*sim.Breakdown]*record.BreakdownEvent
	registered  bool

	ids       *sim.Stream
	mix       *sim.Stream
	yield     *sim.Stream
	demand    *sim.Stream
	supply    *sim.Stream
	procTimes map[string]*sim.Stream
}

// New validates cfg, applies the selected scenario and builds every buffer,
// machine pool and queue. Processes are not started until Register.
func New(s *sim.Simulator, cfg *Config, opts Options) (*Factory, error) {
	if s == nil {
		return nil, fmt.Errorf("factory: simulator must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid factory config: %w", err)
	}
	if opts.Scenario == "" {
		opts.Scenario = ScenarioBaseline
	}
	scen, err := cfg.Scenario(opts.Scenario)
	if err != nil {
		return nil, err
	}
	if opts.FailurePolicy, err = sim.ParseFailurePolicy(string(opts.FailurePolicy)); err != nil {
		return nil, err
	}
	if opts.FulfilmentPolicy, err = ParseFulfilmentPolicy(string(opts.FulfilmentPolicy)); err != nil {
		return nil, err
	}

	eff := cfg.Apply(scen)
	f := &Factory{
		Config:        eff,
		Scenario:      scen,
		Options:       opts,
		Log:           record.NewLog(),
		RawMaterials:  make(map[string]*sim.Container, len(eff.Suppliers)),
		FinishedGoods: make(map[string]*sim.Container, len(eff.Products)),
		Machines:      make(map[string]*sim.Resource, len(eff.Machines)),
		Forming:       sim.NewStore[*record.ProductionBatch](s, "queue/forming"),
		Glazing:       sim.NewStore[*record.ProductionBatch](s, "queue/glazing"),
		Firing:        sim.NewStore[*record.ProductionBatch](s, "queue/firing"),
		Finishing:     sim.NewStore[*record.ProductionBatch](s, "queue/finishing"),
		Orders:        sim.NewStore[*record.CustomerOrder](s, "queue/orders"),
		sim:           s,
		products:      eff.ProductNames(),
		materials:     eff.Materials(),
		disruptions:   make(map[string][]window),
		inFlight:      make(map[string]int, len(eff.Suppliers)),
		produced:      make(map[string]float64, len(eff.Products)),
		openRepairs:   make(map[*sim.Breakdown]*record.BreakdownEvent),
		procTimes:     make(map[string]*sim.Stream, len(PipelineMachines)),
	}

	for _, mat := range f.materials {
		sup := eff.Suppliers[mat]
		f.RawMaterials[mat] = sim.NewContainer(s, "raw/"+mat, sup.InitialStockT, sup.MaxStockT)
	}
	for _, p := range f.products {
		pc := eff.Products[p]
		f.FinishedGoods[p] = sim.NewContainer(s, "fg/"+p, pc.InitialStockM2, pc.MaxStockM2)
	}
	for _, key := range PipelineMachines {
		f.Machines[key] = sim.NewResource(s, key, eff.Machines[key].Count)
		f.procTimes[key] = s.RNG.ForSubsystem(sim.SubsystemMachine(key))
	}
	for _, w := range scen.Disruptions {
		f.disruptions[w.Supplier] = append(f.disruptions[w.Supplier], window{
			start: sim.Hours(w.StartHour),
			end:   sim.Hours(w.EndHour),
		})
	}
	for mat := range f.disruptions {
		ws := f.disruptions[mat]
		sort.Slice(ws, func(i, j int) bool { return ws[i].start < ws[j].start })
	}

	f.ids = s.RNG.ForSubsystem(sim.SubsystemIDs)
	f.mix = s.RNG.ForSubsystem(sim.SubsystemProductMix)
	f.yield = s.RNG.ForSubsystem(sim.SubsystemYield)
	f.demand = s.RNG.ForSubsystem(sim.SubsystemDemand)
	f.supply = s.RNG.ForSubsystem(sim.SubsystemSupply)
	return f, nil
}

// Register spawns every process of the plant: failure injectors, the supply
// monitor with one kick-start delivery per supplier, one worker per machine
// unit and stage, the demand generator, the fulfilment workers and the
// daily recorder. Calling it twice panics.
func (f *Factory) Register() {
	if f.registered {
		panic("factory: Register called twice")
	}
	f.registered = true

	for _, key := range PipelineMachines {
		m := f.Config.Machines[key]
		f.Machines[key].StartFailures(sim.FailureConfig{
			MTBFHours:     m.MTBFHours,
			MTTRHours:     m.MTTRHours,
			Policy:        f.Options.FailurePolicy,
			Stream:        f.sim.RNG.ForSubsystem(sim.SubsystemFailures(key)),
			OnRepairStart: f.recordBreakdown,
			OnRepairEnd:   f.closeBreakdown,
		})
	}

	f.sim.Spawn("supply_monitor", f.supplyMonitor)
	for _, mat := range f.materials {
		f.orderDelivery(mat)
	}

	workers := []struct {
		key  string
		body func(*sim.Process)
	}{
		{MachineBodyPrep, f.bodyPrepWorker},
		{MachineForming, f.formingWorker},
		{MachineGlazing, f.glazingWorker},
		{MachineKiln, f.firingWorker},
		{MachineFinishing, f.finishingWorker},
	}
	for _, w := range workers {
		for i := 0; i < f.Config.Machines[w.key].Count; i++ {
			f.sim.Spawn(fmt.Sprintf("%s/%d", w.key, i), w.body)
		}
	}

	f.sim.Spawn("demand_generator", f.demandGenerator)
	for i := 0; i < f.Config.FulfilmentWorkers; i++ {
		f.sim.Spawn(fmt.Sprintf("order_fulfilment/%d", i), f.fulfilmentWorker)
	}
	f.sim.Spawn("daily_recorder", f.dailyRecorder)

	logrus.Debugf("[tick %07d] factory registered %d processes (scenario=%s, failure=%s, fulfilment=%s)",
		f.sim.Clock, len(f.sim.Processes()), f.Options.Scenario, f.Options.FailurePolicy, f.Options.FulfilmentPolicy)
}

// Sim returns the simulator the factory runs on.
func (f *Factory) Sim() *sim.Simulator {
	return f.sim
}

// WIP returns the number of batches created but not yet finished or scrapped.
func (f *Factory) WIP() int {
	return f.wip
}

// QueuedBatches returns the batches waiting in inter-stage queues.
func (f *Factory) QueuedBatches() int {
	return f.Forming.Len() + f.Glazing.Len() + f.Firing.Len() + f.Finishing.Len()
}

// InFlight returns the open replenishment orders for a material.
func (f *Factory) InFlight(material string) int {
	return f.inFlight[material]
}

// Disrupted reports whether a supplier is inside one of its disruption
// windows at time t. Windows are half-open: [start, end).
func (f *Factory) Disrupted(material string, t int64) bool {
	for _, w := range f.disruptions[material] {
		if t >= w.start && t < w.end {
			return true
		}
	}
	return false
}

// releaseTime returns the first instant at or after t that lies outside
// every disruption window of the material.
func (f *Factory) releaseTime(material string, t int64) int64 {
	for _, w := range f.disruptions[material] {
		if t >= w.start && t < w.end {
			t = w.end
		}
	}
	return t
}

func (f *Factory) closeBreakdown(b *sim.Breakdown) {
	if ev, ok := f.openRepairs[b]; ok {
		ev.Repaired = true
		delete(f.openRepairs, b)
	}
}

func (f *Factory) newID() string {
	return uuid.Must(uuid.NewRandomFromReader(f.ids)).String()
}

func (f *Factory) recordBreakdown(b *sim.Breakdown) {
	ev := &record.BreakdownEvent{
		Machine:        b.Resource,
		FailedAt:       b.FailedAt,
		RepairStart:    b.RepairStart,
		RepairDuration: b.RepairDuration,
		Preempted:      b.Preempted,
		RepairCost:     decimal.NewFromFloat(f.Config.Financial.BreakdownRepairEUR),
	}
	f.Log.AddBreakdown(ev)
	f.openRepairs[b] = ev
	logrus.Debugf("[tick %07d] breakdown on %s, repair %.2fh (pre-empted=%v)",
		f.sim.Clock, b.Resource, sim.ToHours(b.RepairDuration), b.Preempted)
}

// Result is the outcome of one complete run.
type Result struct {
	Scenario string          `json:"scenario"`
	Seed     int64           `json:"seed"`
	Horizon  int64           `json:"horizon"`
	EndTime  int64           `json:"end_time"`
	Events   int64           `json:"events"`
	Summary  *record.Summary `json:"summary"`
	Log      *record.Log     `json:"log"`
}

// Run builds a simulator and a factory, runs to horizon ticks and returns
// the log and its summary.
func Run(cfg *Config, opts Options, seed int64, horizon int64) (*Result, error) {
	if horizon < 0 {
		return nil, fmt.Errorf("horizon must be non-negative, got %d", horizon)
	}
	s := sim.NewSimulator(horizon, sim.NewSimulationKey(seed))
	f, err := New(s, cfg, opts)
	if err != nil {
		return nil, err
	}
	f.Register()
	s.Run()
	summary := record.Summarize(f.Log)
	summary.ApplyCosts(f.Config.Financial.Rates(), horizon)
	return &Result{
		Scenario: f.Options.Scenario,
		Seed:     seed,
		Horizon:  horizon,
		EndTime:  s.Clock,
		Events:   s.Executed(),
		Summary:  summary,
		Log:      f.Log,
	}, nil
}
