package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	cfg := New(viper.New())

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 60, cfg.Cache.DashboardTTLSeconds)
	assert.Equal(t, "exports", cfg.Storage.Prefix)

	a := cfg.Analytics
	assert.Equal(t, 15.0, a.LowProfitMargin)
	assert.Equal(t, 0.3, a.LowStockTurnover)
	assert.Equal(t, 50000.0, a.HighInventoryValue)
	assert.Equal(t, -0.5, a.AnomalyScoreThreshold)
	assert.Equal(t, 30.0, a.PoorPerformanceScore)
	assert.Equal(t, ScoringWeights{Margin: 0.35, Turnover: 0.25, Sales: 0.25, Efficiency: 0.15}, a.Weights)
	assert.Equal(t, 0.10, a.Contamination)
	assert.Equal(t, uint64(42), a.AnomalySeed)
	assert.Equal(t, 7.0, a.LeadTimeDays)
	assert.Equal(t, 1.5, a.SafetyStockMultiplier)
	assert.Equal(t, 30, a.ForecastHorizonDays)
	assert.Equal(t, 7, a.ForecastWindow)

	require.NoError(t, cfg.Validate())
}

func TestNew_Overrides(t *testing.T) {
	v := viper.New()
	v.Set("ANOMALY_SEED", 7)
	v.Set("ALERT_MAX_HIGH_INVENTORY", 5)
	v.Set("DATABASE_URL", "postgres://u:p@db/analytics")

	cfg := New(v)
	assert.Equal(t, uint64(7), cfg.Analytics.AnomalySeed)
	assert.Equal(t, 5, cfg.Analytics.MaxHighInventoryAlerts)
	assert.Equal(t, "postgres://u:p@db/analytics", cfg.Database.DSN())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "localhost", Port: "5432", User: "u", Password: "p", DBName: "x", SSLMode: "disable"}
	assert.Equal(t, "host=localhost port=5432 user=u password=p dbname=x sslmode=disable", d.DSN())
}

func TestAnalyticsConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AnalyticsConfig)
		want   error
	}{
		{"weights do not sum to one", func(a *AnalyticsConfig) { a.Weights.Margin = 0.5 }, ErrInvalidWeights},
		{"negative weight", func(a *AnalyticsConfig) {
			a.Weights = ScoringWeights{Margin: 1.2, Turnover: -0.2}
		}, ErrInvalidWeights},
		{"negative threshold", func(a *AnalyticsConfig) { a.LowStockTurnover = -1 }, ErrNegativeValue},
		{"negative cap", func(a *AnalyticsConfig) { a.MaxHighInventoryAlerts = -1 }, ErrNegativeValue},
		{"zero contamination", func(a *AnalyticsConfig) { a.Contamination = 0 }, ErrInvalidThreshold},
		{"contamination above half", func(a *AnalyticsConfig) { a.Contamination = 0.6 }, ErrInvalidThreshold},
		{"anomaly threshold positive", func(a *AnalyticsConfig) { a.AnomalyScoreThreshold = 0.1 }, ErrInvalidThreshold},
		{"margins inverted", func(a *AnalyticsConfig) { a.LowMarginThreshold = 70 }, ErrInvalidThreshold},
		{"no trees", func(a *AnalyticsConfig) { a.AnomalyTrees = 0 }, ErrInvalidThreshold},
		{"no forecast window", func(a *AnalyticsConfig) { a.ForecastWindow = 0 }, ErrInvalidThreshold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := DefaultAnalytics()
			tt.mutate(&a)
			assert.ErrorIs(t, a.Validate(), tt.want)
		})
	}
}

func TestValidateWeights_Tolerance(t *testing.T) {
	assert.NoError(t, ValidateWeights(ScoringWeights{Margin: 0.1 + 0.2, Turnover: 0.3, Sales: 0.25, Efficiency: 0.15}))
	assert.ErrorIs(t, ValidateWeights(ScoringWeights{Margin: 0.36, Turnover: 0.25, Sales: 0.25, Efficiency: 0.15}), ErrInvalidWeights)
}
