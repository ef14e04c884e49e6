package alerts

// Config holds the thresholds of every check.
type Config struct {
	LowProfitMargin       float64
	LowStockTurnover      float64
	HighInventoryValue    float64
	AnomalyScoreThreshold float64
	PoorPerformanceScore  float64
	// MaxHighInventoryAlerts keeps only the N largest purchase values. 0 keeps all.
	MaxHighInventoryAlerts int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		LowProfitMargin:       15,
		LowStockTurnover:      0.3,
		HighInventoryValue:    50000,
		AnomalyScoreThreshold: -0.5,
		PoorPerformanceScore:  30,
	}
}
