package factory

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/azulcer/cerasim/sim/record"
)

// Machine group keys. Every configuration must define all five.
const (
	MachineBodyPrep  = "body_prep"
	MachineForming   = "forming"
	MachineGlazing   = "glazing"
	MachineKiln      = "kiln"
	MachineFinishing = "finishing"
)

// MaterialGlaze is the raw material drawn by the glaze line.
const MaterialGlaze = "glaze"

// PipelineMachines lists the machine groups in pipeline order.
var PipelineMachines = []string{MachineBodyPrep, MachineForming, MachineGlazing, MachineKiln, MachineFinishing}

// ProductConfig describes one tile product.
type ProductConfig struct {
	Name           string  `yaml:"name"`
	PriceEURPerM2  float64 `yaml:"price_eur_m2"`
	BodyKgPerM2    float64 `yaml:"body_kg_per_m2"`
	GlazeKgPerM2   float64 `yaml:"glaze_kg_per_m2"`
	NeedsGlaze     bool    `yaml:"needs_glaze"`
	DemandShare    float64 `yaml:"demand_share"`
	InitialStockM2 float64 `yaml:"initial_stock_m2"`
	MaxStockM2     float64 `yaml:"max_stock_m2"`
}

// MachineConfig describes one machine group. MTBFHours <= 0 disables failures.
type MachineConfig struct {
	Name          string  `yaml:"name"`
	Count         int     `yaml:"count"`
	ProcMeanHours float64 `yaml:"proc_mean_hours"`
	ProcStdHours  float64 `yaml:"proc_std_hours"`
	MTBFHours     float64 `yaml:"mtbf_hours"`
	MTTRHours     float64 `yaml:"mttr_hours"`
}

// SupplierConfig describes the supplier of one raw material. The map key in
// Config.Suppliers is the material name.
type SupplierConfig struct {
	Name              string  `yaml:"name"`
	Country           string  `yaml:"country"`
	DeliveryQtyT      float64 `yaml:"delivery_qty_t"`
	LeadTimeMeanHours float64 `yaml:"lead_time_mean_hours"`
	LeadTimeStdHours  float64 `yaml:"lead_time_std_hours"`
	Reliability       float64 `yaml:"reliability"`
	UnitCostEURPerT   float64 `yaml:"unit_cost_eur_t"`
	ReorderPointT     float64 `yaml:"reorder_point_t"`
	MaxStockT         float64 `yaml:"max_stock_t"`
	InitialStockT     float64 `yaml:"initial_stock_t"`
}

// DemandConfig parameterizes the customer order stream.
type DemandConfig struct {
	MeanOrdersPerDay    float64 `yaml:"mean_orders_per_day"`
	MeanOrderM2         float64 `yaml:"mean_order_m2"`
	StdOrderM2          float64 `yaml:"std_order_m2"`
	MinOrderM2          float64 `yaml:"min_order_m2"`
	StdLeadTimeDays     float64 `yaml:"std_lead_time_days"`
	ExpressLeadTimeDays float64 `yaml:"express_lead_time_days"`
	ExpressFraction     float64 `yaml:"express_fraction"`
	ExpressPremium      float64 `yaml:"express_premium"`
}

// QualityConfig parameterizes the firing yield, Normal(YieldMean, YieldStd)
// clamped to [0, 1].
type QualityConfig struct {
	YieldMean float64 `yaml:"yield_mean"`
	YieldStd  float64 `yaml:"yield_std"`
}

// SupplyConfig parameterizes inventory review and delivery lateness.
type SupplyConfig struct {
	ReviewIntervalHours float64 `yaml:"review_interval_hours"`
	MaxInFlight         int     `yaml:"max_in_flight"`
	MinLeadTimeHours    float64 `yaml:"min_lead_time_hours"`
	LateFactorMin       float64 `yaml:"late_factor_min"`
	LateFactorMax       float64 `yaml:"late_factor_max"`
}

// FinancialConfig prices the operating costs charged against revenue in a
// run's summary. All amounts are in euro.
type FinancialConfig struct {
	EnergyPerBatchEUR       float64 `yaml:"energy_per_batch_eur"`
	LaborPerShiftEUR        float64 `yaml:"labor_per_shift_eur"`
	ShiftsPerDay            int     `yaml:"shifts_per_day"`
	BreakdownRepairEUR      float64 `yaml:"breakdown_repair_eur"`
	StockoutPenaltyEURPerM2 float64 `yaml:"stockout_penalty_eur_m2"`
}

// Rates converts the table into summary cost rates.
func (fc FinancialConfig) Rates() record.CostRates {
	return record.CostRates{
		EnergyPerBatch:       decimal.NewFromFloat(fc.EnergyPerBatchEUR),
		LaborPerShift:        decimal.NewFromFloat(fc.LaborPerShiftEUR),
		ShiftsPerDay:         fc.ShiftsPerDay,
		StockoutPenaltyPerM2: decimal.NewFromFloat(fc.StockoutPenaltyEURPerM2),
	}
}

// DisruptionWindow blocks a supplier over [StartHour, EndHour): no orders
// are placed and nothing arrives; deliveries due inside the window are held
// until it ends.
type DisruptionWindow struct {
	Supplier  string  `yaml:"supplier"`
	StartHour float64 `yaml:"start_hour"`
	EndHour   float64 `yaml:"end_hour"`
}

// ScenarioConfig holds multiplicative what-if factors applied on top of the
// base tables.
type ScenarioConfig struct {
	Label                     string             `yaml:"label"`
	Description               string             `yaml:"description"`
	DemandFactor              float64            `yaml:"demand_factor"`
	MachineReliabilityFactor  float64            `yaml:"machine_reliability_factor"`
	SupplierReliabilityFactor float64            `yaml:"supplier_reliability_factor"`
	SafetyStockFactor         float64            `yaml:"safety_stock_factor"`
	ExtraMachines             map[string]int     `yaml:"extra_machines,omitempty"`
	Disruptions               []DisruptionWindow `yaml:"disruptions,omitempty"`
}

// Config is the full static parameter set of a factory. The simulation
// treats it as read-only.
type Config struct {
	BatchSizeM2       float64                   `yaml:"batch_size_m2"`
	BodyComposition   map[string]float64        `yaml:"body_composition"`
	Products          map[string]ProductConfig  `yaml:"products"`
	Machines          map[string]MachineConfig  `yaml:"machines"`
	Suppliers         map[string]SupplierConfig `yaml:"suppliers"`
	Demand            DemandConfig              `yaml:"demand"`
	Quality           QualityConfig             `yaml:"quality"`
	Supply            SupplyConfig              `yaml:"supply"`
	Financial         FinancialConfig           `yaml:"financial"`
	FulfilmentWorkers int                       `yaml:"fulfilment_workers"`
	Customers         []string                  `yaml:"customers"`
	Scenarios         map[string]ScenarioConfig `yaml:"scenarios"`
}

// LoadConfig reads and parses a YAML factory configuration file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading factory config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML factory configuration with strict field checking.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing factory config: %w", err)
	}
	return &cfg, nil
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encoding factory config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding factory config: %w", err)
	}
	return buf.Bytes(), nil
}

// Scenario looks up a scenario by key.
func (c *Config) Scenario(name string) (ScenarioConfig, error) {
	s, ok := c.Scenarios[name]
	if !ok {
		return ScenarioConfig{}, fmt.Errorf("unknown scenario %q; valid: %v", name, sortedKeys(c.Scenarios))
	}
	return s, nil
}

// ScenarioNames returns the scenario keys in sorted order.
func (c *Config) ScenarioNames() []string {
	return sortedKeys(c.Scenarios)
}

// ProductNames returns the product keys in sorted order.
func (c *Config) ProductNames() []string {
	return sortedKeys(c.Products)
}

// Materials returns the supplier (material) keys in sorted order.
func (c *Config) Materials() []string {
	return sortedKeys(c.Suppliers)
}

// Validate checks types and ranges. It does not judge business plausibility.
func (c *Config) Validate() error {
	if err := validateFinitePositive("batch_size_m2", c.BatchSizeM2); err != nil {
		return err
	}
	if len(c.Products) == 0 {
		return fmt.Errorf("at least one product required")
	}
	shareSum := 0.0
	for _, name := range c.ProductNames() {
		p := c.Products[name]
		prefix := fmt.Sprintf("products[%s]", name)
		if err := validateNonNegative(prefix+".price_eur_m2", p.PriceEURPerM2); err != nil {
			return err
		}
		if err := validateFinitePositive(prefix+".body_kg_per_m2", p.BodyKgPerM2); err != nil {
			return err
		}
		if err := validateNonNegative(prefix+".glaze_kg_per_m2", p.GlazeKgPerM2); err != nil {
			return err
		}
		if p.NeedsGlaze && p.GlazeKgPerM2 <= 0 {
			return fmt.Errorf("%s: needs_glaze requires a positive glaze_kg_per_m2", prefix)
		}
		if err := validateUnit(prefix+".demand_share", p.DemandShare); err != nil {
			return err
		}
		if err := validateNonNegative(prefix+".initial_stock_m2", p.InitialStockM2); err != nil {
			return err
		}
		if err := validateNonNegative(prefix+".max_stock_m2", p.MaxStockM2); err != nil {
			return err
		}
		if p.NeedsGlaze {
			if _, ok := c.Suppliers[MaterialGlaze]; !ok {
				return fmt.Errorf("%s: needs glaze but no %q supplier is configured", prefix, MaterialGlaze)
			}
		}
		shareSum += p.DemandShare
	}
	if math.Abs(shareSum-1) > 1e-6 {
		return fmt.Errorf("product demand shares must sum to 1, got %f", shareSum)
	}

	if len(c.BodyComposition) == 0 {
		return fmt.Errorf("body_composition must list at least one material")
	}
	fracSum := 0.0
	for _, mat := range sortedKeys(c.BodyComposition) {
		frac := c.BodyComposition[mat]
		if err := validateUnit(fmt.Sprintf("body_composition[%s]", mat), frac); err != nil {
			return err
		}
		if _, ok := c.Suppliers[mat]; !ok {
			return fmt.Errorf("body_composition[%s]: no supplier configured for material", mat)
		}
		fracSum += frac
	}
	if math.Abs(fracSum-1) > 1e-6 {
		return fmt.Errorf("body_composition fractions must sum to 1, got %f", fracSum)
	}

	for _, key := range PipelineMachines {
		m, ok := c.Machines[key]
		if !ok {
			return fmt.Errorf("machines[%s] is required", key)
		}
		if err := validateMachine(key, m); err != nil {
			return err
		}
	}
	for _, key := range sortedKeys(c.Machines) {
		if !isPipelineMachine(key) {
			return fmt.Errorf("machines[%s]: unknown machine group; valid: %v", key, PipelineMachines)
		}
	}

	for _, mat := range c.Materials() {
		if err := validateSupplier(mat, c.Suppliers[mat]); err != nil {
			return err
		}
	}

	if err := c.validateDemand(); err != nil {
		return err
	}
	if err := validateUnit("quality.yield_mean", c.Quality.YieldMean); err != nil {
		return err
	}
	if err := validateNonNegative("quality.yield_std", c.Quality.YieldStd); err != nil {
		return err
	}
	if err := validateHours("supply.review_interval_hours", c.Supply.ReviewIntervalHours, true); err != nil {
		return err
	}
	if c.Supply.MaxInFlight <= 0 {
		return fmt.Errorf("supply.max_in_flight must be positive, got %d", c.Supply.MaxInFlight)
	}
	if err := validateHours("supply.min_lead_time_hours", c.Supply.MinLeadTimeHours, false); err != nil {
		return err
	}
	if c.Supply.LateFactorMin < 1 || c.Supply.LateFactorMax < c.Supply.LateFactorMin {
		return fmt.Errorf("supply late factors must satisfy 1 <= min <= max, got [%f, %f]", c.Supply.LateFactorMin, c.Supply.LateFactorMax)
	}
	if err := c.validateFinancial(); err != nil {
		return err
	}
	if c.FulfilmentWorkers <= 0 {
		return fmt.Errorf("fulfilment_workers must be positive, got %d", c.FulfilmentWorkers)
	}
	if len(c.Customers) == 0 {
		return fmt.Errorf("at least one customer required")
	}

	for _, name := range c.ScenarioNames() {
		if err := c.validateScenario(name, c.Scenarios[name]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateDemand() error {
	d := c.Demand
	if err := validateNonNegative("demand.mean_orders_per_day", d.MeanOrdersPerDay); err != nil {
		return err
	}
	if err := validateFinitePositive("demand.mean_order_m2", d.MeanOrderM2); err != nil {
		return err
	}
	if err := validateNonNegative("demand.std_order_m2", d.StdOrderM2); err != nil {
		return err
	}
	if err := validateFinitePositive("demand.min_order_m2", d.MinOrderM2); err != nil {
		return err
	}
	if err := validateHours("demand.std_lead_time_days", d.StdLeadTimeDays*hoursPerDay, false); err != nil {
		return err
	}
	if err := validateHours("demand.express_lead_time_days", d.ExpressLeadTimeDays*hoursPerDay, false); err != nil {
		return err
	}
	if err := validateUnit("demand.express_fraction", d.ExpressFraction); err != nil {
		return err
	}
	return validateFinitePositive("demand.express_premium", d.ExpressPremium)
}

func (c *Config) validateFinancial() error {
	fc := c.Financial
	if err := validateNonNegative("financial.energy_per_batch_eur", fc.EnergyPerBatchEUR); err != nil {
		return err
	}
	if err := validateNonNegative("financial.labor_per_shift_eur", fc.LaborPerShiftEUR); err != nil {
		return err
	}
	if fc.ShiftsPerDay < 0 || fc.ShiftsPerDay > 3 {
		return fmt.Errorf("financial.shifts_per_day must be in [0, 3], got %d", fc.ShiftsPerDay)
	}
	if err := validateNonNegative("financial.breakdown_repair_eur", fc.BreakdownRepairEUR); err != nil {
		return err
	}
	return validateNonNegative("financial.stockout_penalty_eur_m2", fc.StockoutPenaltyEURPerM2)
}

func (c *Config) validateScenario(name string, s ScenarioConfig) error {
	prefix := fmt.Sprintf("scenarios[%s]", name)
	factors := []struct {
		field string
		val   float64
	}{
		{"demand_factor", s.DemandFactor},
		{"machine_reliability_factor", s.MachineReliabilityFactor},
		{"supplier_reliability_factor", s.SupplierReliabilityFactor},
		{"safety_stock_factor", s.SafetyStockFactor},
	}
	for _, f := range factors {
		if err := validateFinitePositive(prefix+"."+f.field, f.val); err != nil {
			return err
		}
	}
	for _, key := range sortedKeys(s.ExtraMachines) {
		if _, ok := c.Machines[key]; !ok {
			return fmt.Errorf("%s.extra_machines: unknown machine group %q", prefix, key)
		}
		if s.ExtraMachines[key] < 0 {
			return fmt.Errorf("%s.extra_machines[%s] must be non-negative, got %d", prefix, key, s.ExtraMachines[key])
		}
	}
	for i, w := range s.Disruptions {
		wp := fmt.Sprintf("%s.disruptions[%d]", prefix, i)
		if _, ok := c.Suppliers[w.Supplier]; !ok {
			return fmt.Errorf("%s: unknown supplier %q", wp, w.Supplier)
		}
		if err := validateHours(wp+".start_hour", w.StartHour, false); err != nil {
			return err
		}
		if !(w.EndHour > w.StartHour) || math.IsInf(w.EndHour, 0) {
			return fmt.Errorf("%s: end_hour must be finite and after start_hour, got [%f, %f)", wp, w.StartHour, w.EndHour)
		}
		if err := validateHours(wp+".end_hour", w.EndHour, false); err != nil {
			return err
		}
	}
	return nil
}

func validateMachine(key string, m MachineConfig) error {
	prefix := fmt.Sprintf("machines[%s]", key)
	if m.Count <= 0 {
		return fmt.Errorf("%s.count must be positive, got %d", prefix, m.Count)
	}
	if err := validateHours(prefix+".proc_mean_hours", m.ProcMeanHours, true); err != nil {
		return err
	}
	if err := validateHours(prefix+".proc_std_hours", m.ProcStdHours, false); err != nil {
		return err
	}
	if err := validateHours(prefix+".mtbf_hours", m.MTBFHours, false); err != nil {
		return err
	}
	return validateHours(prefix+".mttr_hours", m.MTTRHours, false)
}

func validateSupplier(material string, s SupplierConfig) error {
	prefix := fmt.Sprintf("suppliers[%s]", material)
	if err := validateFinitePositive(prefix+".delivery_qty_t", s.DeliveryQtyT); err != nil {
		return err
	}
	if err := validateHours(prefix+".lead_time_mean_hours", s.LeadTimeMeanHours, false); err != nil {
		return err
	}
	if err := validateHours(prefix+".lead_time_std_hours", s.LeadTimeStdHours, false); err != nil {
		return err
	}
	if err := validateUnit(prefix+".reliability", s.Reliability); err != nil {
		return err
	}
	if err := validateNonNegative(prefix+".unit_cost_eur_t", s.UnitCostEURPerT); err != nil {
		return err
	}
	if err := validateNonNegative(prefix+".reorder_point_t", s.ReorderPointT); err != nil {
		return err
	}
	if err := validateFinitePositive(prefix+".max_stock_t", s.MaxStockT); err != nil {
		return err
	}
	return validateNonNegative(prefix+".initial_stock_t", s.InitialStockT)
}

func isPipelineMachine(key string) bool {
	for _, m := range PipelineMachines {
		if m == key {
			return true
		}
	}
	return false
}

func validateFinitePositive(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f", name, val)
	}
	if val <= 0 {
		return fmt.Errorf("%s must be positive, got %f", name, val)
	}
	return nil
}

// maxDurationHours bounds every duration field. Longer durations would not fit
// in ticks once added to the clock of a multi-year run.
const maxDurationHours = 1e6

// validateHours checks a duration field, in hours, against maxDurationHours.
func validateHours(name string, hours float64, positive bool) error {
	check := validateNonNegative
	if positive {
		check = validateFinitePositive
	}
	if err := check(name, hours); err != nil {
		return err
	}
	if hours > maxDurationHours {
		return fmt.Errorf("%s must be at most %g hours, got %g", name, maxDurationHours, hours)
	}
	return nil
}

func validateNonNegative(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f", name, val)
	}
	if val < 0 {
		return fmt.Errorf("%s must be non-negative, got %f", name, val)
	}
	return nil
}

func validateUnit(name string, val float64) error {
	if err := validateNonNegative(name, val); err != nil {
		return err
	}
	if val > 1 {
		return fmt.Errorf("%s must be in [0, 1], got %f", name, val)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
