package strategy

import (
	"errors"
	"fmt"

	"github.com/cchevrot/backtest/internal/domain"
)

// Parameter names understood by the engine.
const (
	ParamTakeProfitPnL           = "take_profit_pnl"
	ParamTrailStopPnL            = "trail_stop_pnl"
	ParamMaxPnLTimeoutMinutes    = "max_pnl_timeout_minutes"
	ParamMaxTradeDurationMinutes = "max_trade_duration_minutes"
	ParamStopMultiplier          = "stop_multiplier"
	ParamStartMultiplier         = "start_multiplier"
	ParamMinEscapeTime           = "min_escape_time"
	ParamTopNThreshold           = "top_n_threshold"
	ParamMinMarketPnL            = "min_market_pnl"
	ParamTradeValue              = "trade_value_eur"
	ParamTradeIntervalMinutes    = "trade_interval_minutes"
	ParamMaxTradesPerDay         = "max_trades_per_day"
	ParamTradeStartHour          = "trade_start_hour"
	ParamTradeCutoffHour         = "trade_cutoff_hour"
	ParamUTCOffsetHours          = "utc_offset_hours"
	ParamNoiseFloor              = "noise_floor"
	ParamPeerGroupSize           = "peer_group_size"
)

// Defaults for optional parameters.
const (
	DefaultMaxTradeDurationMinutes = 60
	DefaultUTCOffsetHours          = -6
	DefaultNoiseFloor              = 5
	DefaultPeerGroupSize           = 15
)

// Parameter errors.
var (
	ErrMissingParam = errors.New("missing strategy parameter")
	ErrInvalidParam = errors.New("invalid strategy parameter")
)

// Params is the typed view of a configuration used by the engine.
type Params struct {
	TakeProfitPnL           float64 // percent
	TrailStopPnL            float64 // percent below the day high
	MaxPnLTimeoutMinutes    float64
	MaxTradeDurationMinutes float64
	StopMultiplier          float64
	StartMultiplier         float64
	MinEscapeTime           float64 // seconds
	TopNThreshold           int
	MinMarketPnL            float64
	TradeValue              float64
	TradeIntervalMinutes    float64
	MaxTradesPerDay         int
	TradeStartMinute        int // minutes since local midnight
	TradeCutoffMinute       int
	UTCOffsetSeconds        int64
	NoiseFloor              float64
	PeerGroupSize           int
}

// FromParams decodes a configuration. Unknown names are ignored.
func FromParams(p domain.Params) (Params, error) {
	d := decoder{p: p}
	out := Params{
		TakeProfitPnL:           d.number(ParamTakeProfitPnL),
		TrailStopPnL:            d.number(ParamTrailStopPnL),
		MaxPnLTimeoutMinutes:    d.number(ParamMaxPnLTimeoutMinutes),
		MaxTradeDurationMinutes: d.numberOr(ParamMaxTradeDurationMinutes, DefaultMaxTradeDurationMinutes),
		StopMultiplier:          d.number(ParamStopMultiplier),
		StartMultiplier:         d.number(ParamStartMultiplier),
		MinEscapeTime:           d.number(ParamMinEscapeTime),
		TopNThreshold:           int(d.number(ParamTopNThreshold)),
		MinMarketPnL:            d.number(ParamMinMarketPnL),
		TradeValue:              d.number(ParamTradeValue),
		TradeIntervalMinutes:    d.number(ParamTradeIntervalMinutes),
		MaxTradesPerDay:         int(d.number(ParamMaxTradesPerDay)),
		TradeStartMinute:        d.clock(ParamTradeStartHour),
		TradeCutoffMinute:       d.clock(ParamTradeCutoffHour),
		UTCOffsetSeconds:        int64(d.numberOr(ParamUTCOffsetHours, DefaultUTCOffsetHours) * 3600),
		NoiseFloor:              d.numberOr(ParamNoiseFloor, DefaultNoiseFloor),
		PeerGroupSize:           int(d.numberOr(ParamPeerGroupSize, DefaultPeerGroupSize)),
	}
	if d.err != nil {
		return Params{}, d.err
	}
	if out.PeerGroupSize < 1 {
		return Params{}, fmt.Errorf("%w: %s must be >= 1", ErrInvalidParam, ParamPeerGroupSize)
	}
	return out, nil
}

// decoder keeps the first error so FromParams reads as a flat list.
type decoder struct {
	p   domain.Params
	err error
}

func (d *decoder) number(name string) float64 {
	v, ok := d.p[name]
	if !ok {
		d.fail(fmt.Errorf("%w: %s", ErrMissingParam, name))
		return 0
	}
	return d.asNumber(name, v)
}

func (d *decoder) numberOr(name string, def float64) float64 {
	v, ok := d.p[name]
	if !ok {
		return def
	}
	return d.asNumber(name, v)
}

func (d *decoder) asNumber(name string, v domain.Value) float64 {
	if v.IsClock() || !v.Valid() {
		d.fail(fmt.Errorf("%w: %s must be a finite number, got %s", ErrInvalidParam, name, v))
		return 0
	}
	return v.Float()
}

func (d *decoder) clock(name string) int {
	v, ok := d.p[name]
	if !ok {
		d.fail(fmt.Errorf("%w: %s", ErrMissingParam, name))
		return 0
	}
	if !v.IsClock() {
		d.fail(fmt.Errorf("%w: %s must be HH:MM, got %s", ErrInvalidParam, name, v))
		return 0
	}
	return v.Minutes()
}

func (d *decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}
