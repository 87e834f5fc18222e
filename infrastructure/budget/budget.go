// Package budget enforces daily and weekly spending caps for paid LLM
// calls through a small JSON ledger on disk.
package budget

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Default caps and cost, in GBP.
const (
	DefaultDailyCapGBP  = 2.00
	DefaultWeeklyCapGBP = 8.00
	DefaultCostPerToken = 0.000012
)

// Budget is a point-in-time view of the spending windows.
type Budget struct {
	dailySpent      float64
	dailyRemaining  float64
	dailyCap        float64
	weeklySpent     float64
	weeklyRemaining float64
	weeklyCap       float64
}

// DailySpent returns today's spend.
func (b Budget) DailySpent() float64 { return b.dailySpent }

// DailyRemaining returns today's remaining budget (floored at 0).
func (b Budget) DailyRemaining() float64 { return b.dailyRemaining }

// DailyCap returns the daily cap.
func (b Budget) DailyCap() float64 { return b.dailyCap }

// WeeklySpent returns this week's spend.
func (b Budget) WeeklySpent() float64 { return b.weeklySpent }

// WeeklyRemaining returns this week's remaining budget (floored at 0).
func (b Budget) WeeklyRemaining() float64 { return b.weeklyRemaining }

// WeeklyCap returns the weekly cap.
func (b Budget) WeeklyCap() float64 { return b.weeklyCap }

// Allowed returns true if both windows have budget left.
func (b Budget) Allowed() bool {
	return b.dailyRemaining > 0 && b.weeklyRemaining > 0
}

// ledger is the on-disk shape. Keys are UTC dates: the day itself for
// daily, the Monday of the week for weekly. Old windows are never
// deleted; check simply ignores keys that aren't current, so windows
// reset by key rotation.
type ledger struct {
	Daily  map[string]float64 `json:"daily"`
	Weekly map[string]float64 `json:"weekly"`
}

func newLedger() ledger {
	return ledger{
		Daily:  make(map[string]float64),
		Weekly: make(map[string]float64),
	}
}

// Accountant tracks spending against the caps.
type Accountant struct {
	path         string
	dailyCap     float64
	weeklyCap    float64
	costPerToken float64
	now          func() time.Time
	logger       *slog.Logger
	mu           sync.Mutex
}

// AccountantOption is a functional option for Accountant.
type AccountantOption func(*Accountant)

// WithDailyCap sets the daily cap in GBP.
func WithDailyCap(gbp float64) AccountantOption {
	return func(a *Accountant) { a.dailyCap = gbp }
}

// WithWeeklyCap sets the weekly cap in GBP.
func WithWeeklyCap(gbp float64) AccountantOption {
	return func(a *Accountant) { a.weeklyCap = gbp }
}

// WithCostPerToken sets the blended per-token cost in GBP.
func WithCostPerToken(gbp float64) AccountantOption {
	return func(a *Accountant) { a.costPerToken = gbp }
}

// WithClock overrides the time source (used by tests).
func WithClock(now func() time.Time) AccountantOption {
	return func(a *Accountant) { a.now = now }
}

// WithAccountantLogger sets the logger.
func WithAccountantLogger(logger *slog.Logger) AccountantOption {
	return func(a *Accountant) { a.logger = logger }
}

// NewAccountant creates an Accountant backed by the ledger file at path.
func NewAccountant(path string, opts ...AccountantOption) *Accountant {
	a := &Accountant{
		path:         path,
		dailyCap:     DefaultDailyCapGBP,
		weeklyCap:    DefaultWeeklyCapGBP,
		costPerToken: DefaultCostPerToken,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CostPerToken returns the blended per-token cost in GBP.
func (a *Accountant) CostPerToken() float64 { return a.costPerToken }

// Check returns the current budget view.
func (a *Accountant) Check() Budget {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot(a.load())
}

// Record credits tokens to today's and this week's windows and persists
// the ledger. It returns the budget view after recording.
func (a *Accountant) Record(tokens int) (Budget, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	l := a.load()
	cost := float64(tokens) * a.costPerToken
	dayKey, weekKey := a.keys()
	l.Daily[dayKey] += cost
	l.Weekly[weekKey] += cost

	if err := a.save(l); err != nil {
		return Budget{}, err
	}

	a.logger.Debug("spend recorded",
		"tokens", tokens,
		"cost_gbp", cost,
		"daily_spent", l.Daily[dayKey],
		"weekly_spent", l.Weekly[weekKey],
	)
	return a.snapshot(l), nil
}

func (a *Accountant) snapshot(l ledger) Budget {
	dayKey, weekKey := a.keys()
	dailySpent := l.Daily[dayKey]
	weeklySpent := l.Weekly[weekKey]
	return Budget{
		dailySpent:      dailySpent,
		dailyRemaining:  max(0, a.dailyCap-dailySpent),
		dailyCap:        a.dailyCap,
		weeklySpent:     weeklySpent,
		weeklyRemaining: max(0, a.weeklyCap-weeklySpent),
		weeklyCap:       a.weeklyCap,
	}
}

// keys returns the current daily and weekly ledger keys, both UTC.
// The weekly key is the Monday of the current week.
func (a *Accountant) keys() (string, string) {
	now := a.now().UTC()
	day := now.Format("2006-01-02")
	monday := now.AddDate(0, 0, -((int(now.Weekday()) + 6) % 7))
	return day, monday.Format("2006-01-02")
}

// load reads the ledger from disk. A missing or unreadable file yields a
// fresh ledger rather than an error.
func (a *Accountant) load() ledger {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if !os.IsNotExist(err) {
			a.logger.Warn("budget ledger unreadable, starting fresh", "path", a.path, "error", err)
		}
		return newLedger()
	}
	var l ledger
	if err := json.Unmarshal(data, &l); err != nil {
		a.logger.Warn("budget ledger corrupt, starting fresh", "path", a.path, "error", err)
		return newLedger()
	}
	if l.Daily == nil {
		l.Daily = make(map[string]float64)
	}
	if l.Weekly == nil {
		l.Weekly = make(map[string]float64)
	}
	return l
}

// save writes the ledger atomically via a temp file in the same directory.
func (a *Accountant) save(l ledger) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal budget ledger: %w", err)
	}

	dir := filepath.Dir(a.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".budget-*.json")
	if err != nil {
		return fmt.Errorf("create ledger temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write ledger temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close ledger temp file: %w", err)
	}
	if err := os.Rename(tmpName, a.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace ledger file: %w", err)
	}
	return nil
}
