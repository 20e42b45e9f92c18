package bot

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/benvon/taskboard/internal/models"
	"go.uber.org/zap"
)

type fakeMetricsStore struct {
	botName string
	patch   models.MetricsPatch
	calls   int
	err     error
}

func (f *fakeMetricsStore) Update(_ context.Context, botName string, patch models.MetricsPatch) (*models.TradingMetrics, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.botName = botName
	f.patch = patch
	m := &models.TradingMetrics{BotName: botName}
	if patch.TotalProfit != nil {
		m.TotalProfit = *patch.TotalProfit
	}
	return m, nil
}

type fakeInvalidator struct {
	invalidated []string
	err         error
}

func (f *fakeInvalidator) Invalidate(_ context.Context, botName string) error {
	f.invalidated = append(f.invalidated, botName)
	return f.err
}

func TestMetricsUpdaterPartialUpdate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		botName     string
		metrics     string
		wantBot     string
		wantColumns []string
	}{
		{
			name:        "default bot name",
			metrics:     `{"totalProfit": 12.5, "winRateTotal": 61}`,
			wantBot:     "Crypto_Chad",
			wantColumns: []string{"total_profit", "win_rate_total"},
		},
		{
			name:        "explicit bot name",
			botName:     "Grid_Gary",
			metrics:     `{"tradesWeek": 40}`,
			wantBot:     "Grid_Gary",
			wantColumns: []string{"trades_week"},
		},
		{
			name:        "unknown fields ignored",
			metrics:     `{"maxDrawdown": -3.2, "sharpe": 1.4}`,
			wantBot:     "Crypto_Chad",
			wantColumns: []string{"max_drawdown"},
		},
		{
			name:        "empty object writes nothing new",
			metrics:     `{}`,
			wantBot:     "Crypto_Chad",
			wantColumns: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := &fakeMetricsStore{}
			cache := &fakeInvalidator{}
			updater := NewMetricsUpdater(store, cache, "", zap.NewNop())

			if _, err := updater.Update(context.Background(), MetricsRequest{
				BotName: tt.botName,
				Metrics: json.RawMessage(tt.metrics),
			}); err != nil {
				t.Fatalf("Update() error = %v", err)
			}

			if store.botName != tt.wantBot {
				t.Errorf("bot name = %q, want %q", store.botName, tt.wantBot)
			}
			columns := store.patch.Columns()
			if len(columns) != len(tt.wantColumns) {
				t.Fatalf("columns = %v, want %v", columns, tt.wantColumns)
			}
			for i, c := range columns {
				if c.Column != tt.wantColumns[i] {
					t.Errorf("column %d = %q, want %q", i, c.Column, tt.wantColumns[i])
				}
			}
			if len(cache.invalidated) != 1 || cache.invalidated[0] != tt.wantBot {
				t.Errorf("invalidated = %v, want [%s]", cache.invalidated, tt.wantBot)
			}
		})
	}
}

func TestMetricsUpdaterRejectsInvalidPayload(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{``, `null`, `[1,2]`, `"text"`, `{"totalProfit": "lots"}`} {
		store := &fakeMetricsStore{}
		updater := NewMetricsUpdater(store, nil, "Crypto_Chad", zap.NewNop())

		_, err := updater.Update(context.Background(), MetricsRequest{Metrics: json.RawMessage(raw)})
		if !IsValidation(err) {
			t.Errorf("Update(%q) error = %v, want validation error", raw, err)
		}
		if store.calls != 0 {
			t.Errorf("Update(%q) reached the store", raw)
		}
	}
}

func TestMetricsUpdaterStoreFailure(t *testing.T) {
	t.Parallel()

	store := &fakeMetricsStore{err: errStore}
	cache := &fakeInvalidator{}
	updater := NewMetricsUpdater(store, cache, "Crypto_Chad", zap.NewNop())

	_, err := updater.Update(context.Background(), MetricsRequest{Metrics: json.RawMessage(`{"totalProfit": 1}`)})
	storeErr, ok := AsStoreError(err)
	if !ok {
		t.Fatalf("error = %v, want *StoreError", err)
	}
	if !errors.Is(err, errStore) {
		t.Errorf("error does not wrap the store failure")
	}
	if storeErr.Message != "Failed to update metrics" {
		t.Errorf("message = %q", storeErr.Message)
	}
	if len(cache.invalidated) != 0 {
		t.Errorf("cache invalidated after a failed write")
	}
}

func TestMetricsUpdaterCacheFailureDoesNotFailWrite(t *testing.T) {
	t.Parallel()

	store := &fakeMetricsStore{}
	cache := &fakeInvalidator{err: errors.New("redis down")}
	updater := NewMetricsUpdater(store, cache, "Crypto_Chad", zap.NewNop())

	m, err := updater.Update(context.Background(), MetricsRequest{Metrics: json.RawMessage(`{"totalProfit": 99.5}`)})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if m.TotalProfit != 99.5 {
		t.Errorf("TotalProfit = %v, want 99.5", m.TotalProfit)
	}
}
