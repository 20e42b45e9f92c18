package models

import (
	"encoding/json"
	"testing"
)

func TestMetricsPatch_Columns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    []MetricsColumn
	}{
		{
			name:    "empty payload maps nothing",
			payload: `{}`,
			want:    nil,
		},
		{
			name:    "partial payload keeps only present fields",
			payload: `{"totalProfit": 12.5, "tradesWeek": 7}`,
			want: []MetricsColumn{
				{Column: "total_profit", Value: 12.5},
				{Column: "trades_week", Value: 7},
			},
		},
		{
			name:    "unknown fields are ignored",
			payload: `{"maxDrawdown": -3.2, "sharpe": 1.1}`,
			want:    []MetricsColumn{{Column: "max_drawdown", Value: -3.2}},
		},
		{
			name:    "zero is a present value",
			payload: `{"profitYesterday": 0}`,
			want:    []MetricsColumn{{Column: "profit_yesterday", Value: 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var patch MetricsPatch
			if err := json.Unmarshal([]byte(tt.payload), &patch); err != nil {
				t.Fatalf("Failed to decode payload: %v", err)
			}

			got := patch.Columns()
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d columns, got %d (%v)", len(tt.want), len(got), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Column %d = %+v, expected %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
