package models

import "time"

// DefaultBotName is the metrics row used when a caller names no bot
const DefaultBotName = "Crypto_Chad"

// TradingMetrics is the display-only performance summary of a bot
type TradingMetrics struct {
	BotName          string    `json:"bot_name"`
	TotalProfit      float64   `json:"total_profit"`
	ProfitYesterday  float64   `json:"profit_yesterday"`
	ProfitWeek       float64   `json:"profit_week"`
	WinRateTotal     float64   `json:"win_rate_total"`
	WinRateYesterday float64   `json:"win_rate_yesterday"`
	WinRateWeek      float64   `json:"win_rate_week"`
	TradesTotal      int64     `json:"trades_total"`
	TradesYesterday  int64     `json:"trades_yesterday"`
	TradesWeek       int64     `json:"trades_week"`
	AvgTradeSize     float64   `json:"avg_trade_size"`
	MaxDrawdown      float64   `json:"max_drawdown"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// MetricsPatch is a partial metrics update as sent by the bot (camelCase keys).
// Absent keys stay nil and are not written.
type MetricsPatch struct {
	TotalProfit      *float64 `json:"totalProfit,omitempty"`
	ProfitYesterday  *float64 `json:"profitYesterday,omitempty"`
	ProfitWeek       *float64 `json:"profitWeek,omitempty"`
	WinRateTotal     *float64 `json:"winRateTotal,omitempty"`
	WinRateYesterday *float64 `json:"winRateYesterday,omitempty"`
	WinRateWeek      *float64 `json:"winRateWeek,omitempty"`
	TradesTotal      *float64 `json:"tradesTotal,omitempty"`
	TradesYesterday  *float64 `json:"tradesYesterday,omitempty"`
	TradesWeek       *float64 `json:"tradesWeek,omitempty"`
	AvgTradeSize     *float64 `json:"avgTradeSize,omitempty"`
	MaxDrawdown      *float64 `json:"maxDrawdown,omitempty"`
}

// MetricsColumn pairs a store column with the value to write
type MetricsColumn struct {
	Column string
	Value  float64
}

// Columns maps every present field to its store column, in a stable order
func (p MetricsPatch) Columns() []MetricsColumn {
	fields := []struct {
		column string
		value  *float64
	}{
		{"total_profit", p.TotalProfit},
		{"profit_yesterday", p.ProfitYesterday},
		{"profit_week", p.ProfitWeek},
		{"win_rate_total", p.WinRateTotal},
		{"win_rate_yesterday", p.WinRateYesterday},
		{"win_rate_week", p.WinRateWeek},
		{"trades_total", p.TradesTotal},
		{"trades_yesterday", p.TradesYesterday},
		{"trades_week", p.TradesWeek},
		{"avg_trade_size", p.AvgTradeSize},
		{"max_drawdown", p.MaxDrawdown},
	}

	var cols []MetricsColumn
	for _, f := range fields {
		if f.value != nil {
			cols = append(cols, MetricsColumn{Column: f.column, Value: *f.value})
		}
	}
	return cols
}
