package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/okxcarry/carrytrader/internal/config"
	"github.com/okxcarry/carrytrader/pkg/models"
)

func TestPercentDiff(t *testing.T) {
	tests := []struct {
		name    string
		spot    float64
		futures float64
		want    float64
	}{
		{"equal prices", 100, 100, 0},
		{"futures premium", 100, 100.5, 0.49875311},
		{"futures discount", 100.5, 100, -0.49875311},
		{"zero spot", 0, 100, 0},
		{"zero futures", 100, 0, 0},
		{"both zero", 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PercentDiff(tt.spot, tt.futures), 1e-6)
		})
	}
}

func TestPercentDiffAntisymmetric(t *testing.T) {
	a, b := 1234.5, 1240.1
	assert.InDelta(t, PercentDiff(a, b), -PercentDiff(b, a), 1e-12)
}

func thresholdEngine(entrance, exit float64) *Engine {
	return &Engine{cfg: config.TradingConfig{
		EntranceThreshold: entrance,
		ExitThreshold:     exit,
	}}
}

func TestEntrySignal(t *testing.T) {
	e := thresholdEngine(0.3, 0.1)

	tests := []struct {
		name     string
		spot     float64
		futures  float64
		wantType models.PositionType
		wantOK   bool
	}{
		{"premium above threshold", 100, 100.5, models.PositionContango, true},
		{"discount below threshold", 100.5, 100, models.PositionBackwardation, true},
		{"premium inside band", 100, 100.2, models.PositionNone, false},
		{"discount inside band", 100.2, 100, models.PositionNone, false},
		{"flat", 100, 100, models.PositionNone, false},
		{"dead leg", 0, 100.5, models.PositionNone, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posType, ok := e.entrySignal(tt.spot, tt.futures)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantType, posType)
		})
	}
}

func TestShouldExit(t *testing.T) {
	e := thresholdEngine(0.3, 0.1)
	contango := &models.Position{Type: models.PositionContango}
	backwardation := &models.Position{Type: models.PositionBackwardation}

	// Contango exits when the premium converges under the exit threshold.
	assert.False(t, e.shouldExit(contango, 100, 100.5))
	assert.True(t, e.shouldExit(contango, 100, 100.05))
	assert.True(t, e.shouldExit(contango, 100.5, 100)) // flipped through zero

	// Backwardation mirrors it.
	assert.False(t, e.shouldExit(backwardation, 100.5, 100))
	assert.True(t, e.shouldExit(backwardation, 100.05, 100))
	assert.True(t, e.shouldExit(backwardation, 100, 100.5))
}
