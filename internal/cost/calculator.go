// Package cost estimates SerpAPI spend for an enrichment run.
package cost

// Rates holds SerpAPI plan pricing.
type Rates struct {
	PlanMonthly      float64 `yaml:"plan_monthly" mapstructure:"plan_monthly"`
	SearchesIncluded int     `yaml:"searches_included" mapstructure:"searches_included"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// PerSearch returns the effective price of one search on the plan.
func (c *Calculator) PerSearch() float64 {
	if c.rates.SearchesIncluded <= 0 {
		return 0
	}
	return c.rates.PlanMonthly / float64(c.rates.SearchesIncluded)
}

// Searches returns the cost of n searches.
func (c *Calculator) Searches(n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(n) * c.PerSearch()
}

// PlanShare returns the fraction of the monthly allowance n searches use.
func (c *Calculator) PlanShare(n int) float64 {
	if c.rates.SearchesIncluded <= 0 || n <= 0 {
		return 0
	}
	return float64(n) / float64(c.rates.SearchesIncluded)
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{PlanMonthly: 75.00, SearchesIncluded: 5000}
}
