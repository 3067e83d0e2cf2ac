package usage

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Mnemosyn1154/WVP-QNA/internal/model"
)

// Totals holds the cumulative spend for one tier within one day bucket.
type Totals struct {
	Tokens  int     `json:"tokens"`
	CostUSD float64 `json:"cost_usd"`
	Calls   int     `json:"calls"`
}

// Ledger tracks token and cost usage per provider tier, bucketed by UTC
// day. Buckets are keyed rather than reset in place, so the daily rollover
// can never race an in-flight Record: a call that straddles midnight simply
// lands in whichever bucket its own clock read produced.
//
// The ledger is the only mutable state shared across concurrent requests.
type Ledger struct {
	mu       sync.Mutex
	rates    Rates
	ceilings map[string]float64 // tier -> daily ceiling USD
	days     map[string]map[string]*Totals

	now func() time.Time // injectable for testing
}

// NewLedger creates a Ledger with the given pricing and per-tier daily
// ceilings in USD.
func NewLedger(rates Rates, ceilings map[string]float64) *Ledger {
	return &Ledger{
		rates:    rates,
		ceilings: ceilings,
		days:     make(map[string]map[string]*Totals),
		now:      time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (l *Ledger) WithNow(now func() time.Time) *Ledger {
	l.now = now
	return l
}

func (l *Ledger) dayKey() string {
	return l.now().UTC().Format("2006-01-02")
}

func (l *Ledger) bucket(day, tier string) *Totals {
	tiers, ok := l.days[day]
	if !ok {
		tiers = make(map[string]*Totals)
		l.days[day] = tiers
	}
	t, ok := tiers[tier]
	if !ok {
		t = &Totals{}
		tiers[tier] = t
	}
	return t
}

// Record adds one provider call's token usage to the tier's running total
// and returns the cost attributed to the call. Failed calls that still
// consumed tokens are recorded the same way.
func (l *Ledger) Record(tier, mdl string, u model.TokenUsage) float64 {
	cost := l.rates.Cost(mdl, u.InputTokens, u.OutputTokens)

	l.mu.Lock()
	t := l.bucket(l.dayKey(), tier)
	t.Tokens += u.Total()
	t.CostUSD += cost
	t.Calls++
	spent := t.CostUSD
	l.mu.Unlock()

	zap.L().Info("usage recorded",
		zap.String("tier", tier),
		zap.String("model", mdl),
		zap.Int("input_tokens", u.InputTokens),
		zap.Int("output_tokens", u.OutputTokens),
		zap.Float64("cost_usd", cost),
		zap.Float64("day_total_usd", spent),
	)

	return cost
}

// Remaining returns the unspent budget for the tier's current day bucket.
// Tiers with no configured ceiling have unlimited budget.
func (l *Ledger) Remaining(tier string) float64 {
	ceiling, ok := l.ceilings[tier]
	if !ok {
		return 1e18
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	remaining := ceiling - l.bucket(l.dayKey(), tier).CostUSD
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Spent returns today's totals for the tier.
func (l *Ledger) Spent(tier string) Totals {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.bucket(l.dayKey(), tier)
}
