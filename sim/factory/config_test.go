package factory

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azulcer/cerasim/internal/testutil"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{ScenarioBaseline, ScenarioDemandSurge, ScenarioOptimised, ScenarioSupplyDisruption}, cfg.ScenarioNames())
	assert.Equal(t, []string{"clay", "feldspar", "glaze", "kaolin", "silica"}, cfg.Materials())
}

func TestDefaultConfig_FreshCopy(t *testing.T) {
	a := DefaultConfig()
	a.Machines[MachineKiln] = MachineConfig{Count: 99}
	b := DefaultConfig()
	assert.Equal(t, 2, b.Machines[MachineKiln].Count)
}

func TestConfig_Validate_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"zero batch size", func(c *Config) { c.BatchSizeM2 = 0 }, "batch_size_m2"},
		{"shares do not sum to one", func(c *Config) {
			p := c.Products["FLOOR-6060"]
			p.DemandShare = 0.9
			c.Products["FLOOR-6060"] = p
		}, "demand shares must sum to 1"},
		{"body composition does not sum to one", func(c *Config) { c.BodyComposition["clay"] = 0.2 }, "body_composition fractions"},
		{"body material without supplier", func(c *Config) {
			c.BodyComposition["talc"] = 0
		}, "no supplier configured"},
		{"missing machine group", func(c *Config) { delete(c.Machines, MachineKiln) }, "machines[kiln] is required"},
		{"unknown machine group", func(c *Config) {
			c.Machines["polisher"] = MachineConfig{Count: 1, ProcMeanHours: 1}
		}, "unknown machine group"},
		{"negative processing std", func(c *Config) {
			m := c.Machines[MachineForming]
			m.ProcStdHours = -1
			c.Machines[MachineForming] = m
		}, "machines[forming].proc_std_hours"},
		{"zero machine count", func(c *Config) {
			m := c.Machines[MachineGlazing]
			m.Count = 0
			c.Machines[MachineGlazing] = m
		}, "machines[glazing].count"},
		{"NaN MTTR", func(c *Config) {
			m := c.Machines[MachineKiln]
			m.MTTRHours = math.NaN()
			c.Machines[MachineKiln] = m
		}, "finite"},
		{"reliability above one", func(c *Config) {
			s := c.Suppliers["clay"]
			s.Reliability = 1.2
			c.Suppliers["clay"] = s
		}, "suppliers[clay].reliability"},
		{"glazed product without glaze supplier", func(c *Config) { delete(c.Suppliers, MaterialGlaze) }, "no \"glaze\" supplier"},
		{"late factor below one", func(c *Config) { c.Supply.LateFactorMin = 0.5 }, "late factors"},
		{"four shifts a day", func(c *Config) { c.Financial.ShiftsPerDay = 4 }, "financial.shifts_per_day"},
		{"negative stockout penalty", func(c *Config) { c.Financial.StockoutPenaltyEURPerM2 = -1 }, "financial.stockout_penalty_eur_m2"},
		{"no fulfilment workers", func(c *Config) { c.FulfilmentWorkers = 0 }, "fulfilment_workers"},
		{"no customers", func(c *Config) { c.Customers = nil }, "customer"},
		{"scenario extra machines on unknown group", func(c *Config) {
			s := c.Scenarios[ScenarioOptimised]
			s.ExtraMachines = map[string]int{"dryer": 1}
			c.Scenarios[ScenarioOptimised] = s
		}, "unknown machine group \"dryer\""},
		{"scenario disruption on unknown supplier", func(c *Config) {
			s := c.Scenarios[ScenarioSupplyDisruption]
			s.Disruptions = []DisruptionWindow{{Supplier: "unobtainium", StartHour: 1, EndHour: 2}}
			c.Scenarios[ScenarioSupplyDisruption] = s
		}, "unknown supplier"},
		{"scenario disruption ends before start", func(c *Config) {
			s := c.Scenarios[ScenarioSupplyDisruption]
			s.Disruptions = []DisruptionWindow{{Supplier: "kaolin", StartHour: 10, EndHour: 10}}
			c.Scenarios[ScenarioSupplyDisruption] = s
		}, "end_hour"},
		{"processing time too long to schedule", func(c *Config) {
			m := c.Machines[MachineBodyPrep]
			m.ProcMeanHours = 1e16
			c.Machines[MachineBodyPrep] = m
		}, "machines[body_prep].proc_mean_hours must be at most"},
		{"repair time too long to schedule", func(c *Config) {
			m := c.Machines[MachineKiln]
			m.MTTRHours = 2e6
			c.Machines[MachineKiln] = m
		}, "machines[kiln].mttr_hours must be at most"},
		{"supplier lead time too long to schedule", func(c *Config) {
			s := c.Suppliers["clay"]
			s.LeadTimeMeanHours = 1e9
			c.Suppliers["clay"] = s
		}, "suppliers[clay].lead_time_mean_hours must be at most"},
		{"order lead time too long to schedule", func(c *Config) { c.Demand.StdLeadTimeDays = 1e6 }, "demand.std_lead_time_days"},
		{"review interval too long", func(c *Config) { c.Supply.ReviewIntervalHours = 1e7 }, "supply.review_interval_hours must be at most"},
		{"scenario disruption ends beyond any run", func(c *Config) {
			s := c.Scenarios[ScenarioSupplyDisruption]
			s.Disruptions = []DisruptionWindow{{Supplier: "kaolin", StartHour: 10, EndHour: 1e7}}
			c.Scenarios[ScenarioSupplyDisruption] = s
		}, "end_hour must be at most"},
		{"scenario zero demand factor", func(c *Config) {
			s := c.Scenarios[ScenarioBaseline]
			s.DemandFactor = 0
			c.Scenarios[ScenarioBaseline] = s
		}, "demand_factor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Validate_ScenarioFactors_FirstBadFieldReported(t *testing.T) {
	// GIVEN a scenario with every factor invalid
	cfg := DefaultConfig()
	cfg.Scenarios[ScenarioBaseline] = ScenarioConfig{DemandFactor: 0, MachineReliabilityFactor: -1, SupplierReliabilityFactor: math.NaN(), SafetyStockFactor: 0}

	// WHEN it is validated repeatedly
	// THEN the same field is reported every time
	for i := 0; i < 20; i++ {
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scenarios[baseline].demand_factor")
	}
}

func TestConfig_Scenario_Unknown(t *testing.T) {
	_, err := DefaultConfig().Scenario("hurricane")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown scenario")
}

func TestConfig_Apply_FoldsFactors(t *testing.T) {
	// GIVEN the default tables and a scenario with every factor set
	base := DefaultConfig()
	scen := ScenarioConfig{
		DemandFactor:              1.3,
		MachineReliabilityFactor:  0.5,
		SupplierReliabilityFactor: 2,
		SafetyStockFactor:         1.5,
		ExtraMachines:             map[string]int{MachineKiln: 1},
	}

	// WHEN the scenario is applied
	eff := base.Apply(scen)

	// THEN the factors land in the effective tables and the base is untouched
	assert.InDelta(t, 6.5, eff.Demand.MeanOrdersPerDay, 1e-9)
	assert.Equal(t, 3, eff.Machines[MachineKiln].Count)
	assert.Equal(t, 110.0, eff.Machines[MachineKiln].MTBFHours)
	assert.Equal(t, 1.0, eff.Suppliers["clay"].Reliability, "reliability is capped at one")
	assert.InDelta(t, 97.5, eff.Suppliers["clay"].ReorderPointT, 1e-9)
	assert.InDelta(t, 135.0, eff.Suppliers["clay"].InitialStockT, 1e-9)
	assert.Equal(t, 15.0, eff.Suppliers[MaterialGlaze].InitialStockT)

	assert.Equal(t, 2, base.Machines[MachineKiln].Count)
	assert.Equal(t, 5.0, base.Demand.MeanOrdersPerDay)
	assert.Equal(t, 65.0, base.Suppliers["clay"].ReorderPointT)
}

func TestConfig_Apply_InitialStockCappedAtMax(t *testing.T) {
	base := DefaultConfig()
	eff := base.Apply(ScenarioConfig{DemandFactor: 1, MachineReliabilityFactor: 1, SupplierReliabilityFactor: 1, SafetyStockFactor: 10})
	for _, mat := range eff.Materials() {
		assert.LessOrEqual(t, eff.Suppliers[mat].InitialStockT, eff.Suppliers[mat].MaxStockT, mat)
	}
}

func TestParseConfig_UnknownField_Rejected(t *testing.T) {
	// GIVEN YAML with a typo in a field name
	data := []byte("batch_size_m2: 250\nbatch_sise: 10\n")

	// WHEN it is parsed
	_, err := ParseConfig(data)

	// THEN strict parsing rejects it
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch_sise")
}

func TestLoadConfig_DefaultTablesThroughYAML(t *testing.T) {
	// GIVEN the default tables written out as YAML
	data, err := DefaultConfig().Marshal()
	require.NoError(t, err)
	path := testutil.WriteFile(t, "factory.yaml", string(data))

	// WHEN the file is loaded back
	cfg, err := LoadConfig(path)

	// THEN it validates and carries the same tables
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/factory.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading factory config")
}

func TestLoadConfig_MinimalFile(t *testing.T) {
	// GIVEN a hand-written single-product configuration
	path := testutil.WriteFile(t, "mini.yaml", `
batch_size_m2: 100
body_composition: {clay: 1.0}
products:
  PLAIN:
    name: Plain tile
    price_eur_m2: 8
    body_kg_per_m2: 20
    demand_share: 1.0
    initial_stock_m2: 500
machines:
  body_prep: {count: 1, proc_mean_hours: 2}
  forming: {count: 1, proc_mean_hours: 1}
  glazing: {count: 1, proc_mean_hours: 0.5}
  kiln: {count: 1, proc_mean_hours: 3, mtbf_hours: 100, mttr_hours: 5}
  finishing: {count: 1, proc_mean_hours: 0.5}
suppliers:
  clay: {name: ClayCo, delivery_qty_t: 10, lead_time_mean_hours: 24, reliability: 0.9, unit_cost_eur_t: 80, reorder_point_t: 5, max_stock_t: 40, initial_stock_t: 20}
demand: {mean_orders_per_day: 2, mean_order_m2: 200, min_order_m2: 50, std_lead_time_days: 7, express_premium: 1.1}
quality: {yield_mean: 0.95, yield_std: 0.01}
supply: {review_interval_hours: 4, max_in_flight: 1, min_lead_time_hours: 4, late_factor_min: 1.25, late_factor_max: 2.5}
fulfilment_workers: 2
customers: [Acme]
scenarios:
  baseline: {demand_factor: 1, machine_reliability_factor: 1, supplier_reliability_factor: 1, safety_stock_factor: 1}
`)

	// WHEN it is loaded and validated
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	// THEN it is a valid configuration
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"PLAIN"}, cfg.ProductNames())
	assert.Equal(t, 1, cfg.Supply.MaxInFlight)
}
