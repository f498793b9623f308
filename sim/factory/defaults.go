package factory

import "github.com/azulcer/cerasim/sim"

// Scenario keys of the built-in tables.
const (
	ScenarioBaseline         = "baseline"
	ScenarioSupplyDisruption = "supply_disruption"
	ScenarioDemandSurge      = "demand_surge"
	ScenarioOptimised        = "optimised"
)

// DefaultSimDays is the standard run length.
const DefaultSimDays = 90

const hoursPerDay = float64(sim.HoursPerDay)

// DefaultConfig returns the AzulCer Tile Industries tables (Aveiro plant).
// Each call returns a fresh copy that the caller may modify.
//
// Capacities are set so that the kiln is the bottleneck:
//
//	body_prep  3 × 24/3.5  ≈ 20.6 batches/day
//	forming    3 × 24/1.8  = 40   batches/day
//	glazing    2 × 24/0.35 ≈ 137  batches/day
//	kiln       2 × 24/4.0  = 12   batches/day
//	finishing  3 × 24/0.6  = 120  batches/day
func DefaultConfig() *Config {
	return &Config{
		BatchSizeM2: 250,
		BodyComposition: map[string]float64{
			"clay":     0.45,
			"feldspar": 0.25,
			"silica":   0.20,
			"kaolin":   0.10,
		},
		Products: map[string]ProductConfig{
			"FLOOR-6060": {
				Name:           "Premium Glazed Floor Tile 60x60 cm",
				PriceEURPerM2:  15.0,
				BodyKgPerM2:    25.0,
				GlazeKgPerM2:   1.2,
				NeedsGlaze:     true,
				DemandShare:    0.55,
				InitialStockM2: 3000,
				MaxStockM2:     120000,
			},
			"WALL-3045": {
				Name:           "Glazed Wall Tile 30x45 cm",
				PriceEURPerM2:  12.0,
				BodyKgPerM2:    18.0,
				GlazeKgPerM2:   0.9,
				NeedsGlaze:     true,
				DemandShare:    0.30,
				InitialStockM2: 1500,
				MaxStockM2:     120000,
			},
			"RUSTIC-4545": {
				Name:           "Rustic Outdoor Tile 45x45 cm",
				PriceEURPerM2:  10.0,
				BodyKgPerM2:    22.0,
				DemandShare:    0.15,
				InitialStockM2: 750,
				MaxStockM2:     120000,
			},
		},
		Machines: map[string]MachineConfig{
			MachineBodyPrep:  {Name: "Body Preparation Line", Count: 3, ProcMeanHours: 3.5, ProcStdHours: 0.45, MTBFHours: 340, MTTRHours: 4.5},
			MachineForming:   {Name: "Hydraulic Press & Roller Dryer", Count: 3, ProcMeanHours: 1.8, ProcStdHours: 0.25, MTBFHours: 480, MTTRHours: 3.0},
			MachineGlazing:   {Name: "Glaze Application Line", Count: 2, ProcMeanHours: 0.35, ProcStdHours: 0.05, MTBFHours: 720, MTTRHours: 1.5},
			MachineKiln:      {Name: "Roller Hearth Kiln", Count: 2, ProcMeanHours: 4.0, ProcStdHours: 0.20, MTBFHours: 220, MTTRHours: 7.0},
			MachineFinishing: {Name: "Sorting & Packaging Line", Count: 3, ProcMeanHours: 0.60, ProcStdHours: 0.08, MTBFHours: 900, MTTRHours: 1.5},
		},
		Suppliers: map[string]SupplierConfig{
			"clay": {
				Name: "ClayMin Lda", Country: "Portugal",
				DeliveryQtyT: 50, LeadTimeMeanHours: 36, LeadTimeStdHours: 6, Reliability: 0.92,
				UnitCostEURPerT: 85, ReorderPointT: 65, MaxStockT: 260, InitialStockT: 90,
			},
			"feldspar": {
				Name: "FeldsparCo S.L.", Country: "Spain",
				DeliveryQtyT: 30, LeadTimeMeanHours: 42, LeadTimeStdHours: 8, Reliability: 0.88,
				UnitCostEURPerT: 120, ReorderPointT: 40, MaxStockT: 150, InitialStockT: 50,
			},
			"silica": {
				Name: "SilicaTech Lda", Country: "Portugal",
				DeliveryQtyT: 25, LeadTimeMeanHours: 36, LeadTimeStdHours: 6, Reliability: 0.91,
				UnitCostEURPerT: 95, ReorderPointT: 32, MaxStockT: 120, InitialStockT: 40,
			},
			"kaolin": {
				Name: "KaolinMine S.A.", Country: "Brazil",
				DeliveryQtyT: 20, LeadTimeMeanHours: 72, LeadTimeStdHours: 16, Reliability: 0.82,
				UnitCostEURPerT: 110, ReorderPointT: 22, MaxStockT: 100, InitialStockT: 25,
			},
			MaterialGlaze: {
				Name: "ChemGlaze GmbH", Country: "Germany",
				DeliveryQtyT: 12, LeadTimeMeanHours: 72, LeadTimeStdHours: 14, Reliability: 0.85,
				UnitCostEURPerT: 280, ReorderPointT: 10, MaxStockT: 55, InitialStockT: 10,
			},
		},
		Demand: DemandConfig{
			MeanOrdersPerDay:    5,
			MeanOrderM2:         500,
			StdOrderM2:          160,
			MinOrderM2:          100,
			StdLeadTimeDays:     7,
			ExpressLeadTimeDays: 3,
			ExpressFraction:     0.20,
			ExpressPremium:      1.15,
		},
		// Saleable share (grade A plus seconds) of a fired batch.
		Quality: QualityConfig{YieldMean: 0.97, YieldStd: 0.015},
		Supply: SupplyConfig{
			ReviewIntervalHours: 4,
			MaxInFlight:         2,
			MinLeadTimeHours:    4,
			LateFactorMin:       1.25,
			LateFactorMax:       2.50,
		},
		Financial: FinancialConfig{
			EnergyPerBatchEUR:       160,
			LaborPerShiftEUR:        3000,
			ShiftsPerDay:            3,
			BreakdownRepairEUR:      2500,
			StockoutPenaltyEURPerM2: 5,
		},
		FulfilmentWorkers: 4,
		Customers: []string{
			"BuildCo Portugal", "Iberian Tiles Distribution", "ConstructMax S.A.",
			"Mediterranean Build", "Porto Renovations", "Atlantic Contracts Ltd",
			"HomeStyle Iberia", "TilesPro Europe", "Lisbon Interiors",
			"Douro Construction Group",
		},
		Scenarios: map[string]ScenarioConfig{
			ScenarioBaseline: {
				Label:                     "Baseline",
				Description:               "Normal 90-day operations, balanced supply and demand",
				DemandFactor:              1.0,
				MachineReliabilityFactor:  1.0,
				SupplierReliabilityFactor: 1.0,
				SafetyStockFactor:         1.0,
			},
			ScenarioSupplyDisruption: {
				Label:                     "Supply Disruption",
				Description:               "KaolinMine S.A. port strike from day 15 to day 50",
				DemandFactor:              1.0,
				MachineReliabilityFactor:  1.0,
				SupplierReliabilityFactor: 1.0,
				SafetyStockFactor:         1.0,
				Disruptions: []DisruptionWindow{
					{Supplier: "kaolin", StartHour: 15 * hoursPerDay, EndHour: 50 * hoursPerDay},
				},
			},
			ScenarioDemandSurge: {
				Label:                     "Demand Surge",
				Description:               "Summer construction boom, 30% demand uplift across all products",
				DemandFactor:              1.30,
				MachineReliabilityFactor:  1.0,
				SupplierReliabilityFactor: 1.0,
				SafetyStockFactor:         1.0,
			},
			ScenarioOptimised: {
				Label:                     "Optimised",
				Description:               "Third kiln installed and 50% safety stock uplift on all raw materials",
				DemandFactor:              1.0,
				MachineReliabilityFactor:  1.0,
				SupplierReliabilityFactor: 1.0,
				SafetyStockFactor:         1.5,
				ExtraMachines:             map[string]int{MachineKiln: 1},
			},
		},
	}
}

// Apply returns a copy of c with the scenario's factors folded into the base
// tables: demand rate, machine MTBF, supplier reliability, machine counts,
// reorder points and initial stock (capped at max stock). Disruption windows
// are not part of the tables and stay on the scenario.
func (c *Config) Apply(s ScenarioConfig) *Config {
	out := *c
	out.Demand.MeanOrdersPerDay = c.Demand.MeanOrdersPerDay * s.DemandFactor

	out.Machines = make(map[string]MachineConfig, len(c.Machines))
	for key, m := range c.Machines {
		m.MTBFHours *= s.MachineReliabilityFactor
		m.Count += s.ExtraMachines[key]
		out.Machines[key] = m
	}

	out.Suppliers = make(map[string]SupplierConfig, len(c.Suppliers))
	for mat, sup := range c.Suppliers {
		sup.Reliability = min(1.0, sup.Reliability*s.SupplierReliabilityFactor)
		sup.ReorderPointT *= s.SafetyStockFactor
		sup.InitialStockT = min(sup.InitialStockT*s.SafetyStockFactor, sup.MaxStockT)
		out.Suppliers[mat] = sup
	}

	out.Products = make(map[string]ProductConfig, len(c.Products))
	for name, p := range c.Products {
		out.Products[name] = p
	}
	out.BodyComposition = make(map[string]float64, len(c.BodyComposition))
	for mat, frac := range c.BodyComposition {
		out.BodyComposition[mat] = frac
	}
	out.Customers = append([]string(nil), c.Customers...)
	return &out
}
