// Package billing implements the analysis quota ledger: a one-time trial
// allowance, a small daily free allowance, purchasable credit packs, and a
// monthly subscription. All clock reads are injected so rollover logic is
// testable.
package billing

import (
	"time"

	"github.com/rotisserie/eris"
)

// Mode identifies which allowance funded a consumed analysis.
type Mode string

const (
	ModeSubscription Mode = "subscription"
	ModePack         Mode = "pack"
	ModeTrial        Mode = "trial"
	ModeDaily        Mode = "daily"
)

// ErrQuotaExhausted is returned when no allowance can fund an analysis.
var ErrQuotaExhausted = eris.New("billing: quota exhausted")

// Limits configures allowance sizes.
type Limits struct {
	TrialCredits int `yaml:"trial_credits" mapstructure:"trial_credits"`
	DailyFree    int `yaml:"daily_free" mapstructure:"daily_free"`
	MonthlySub   int `yaml:"monthly_sub" mapstructure:"monthly_sub"`
}

// DefaultLimits returns the standard plan sizes.
func DefaultLimits() Limits {
	return Limits{TrialCredits: 20, DailyFree: 5, MonthlySub: 300}
}

// DayWindow counts usage within one calendar day.
type DayWindow struct {
	Date string `json:"date"` // 2006-01-02
	Used int    `json:"used"`
}

// MonthWindow counts usage within one calendar month.
type MonthWindow struct {
	Month string `json:"month"` // 2006-01
	Used  int    `json:"used"`
}

// Ledger is the per-user quota state. Consumption priority is subscription,
// then pack credits, then trial credits, then the daily free allowance, so
// paid capacity is always drawn before the expiring free one.
type Ledger struct {
	Limits   Limits      `json:"limits"`
	Pack     int         `json:"pack"`  // purchased credits remaining
	Trial    int         `json:"trial"` // one-time trial credits remaining
	Day      DayWindow   `json:"day"`
	Month    MonthWindow `json:"month"`
	SubPlan  string      `json:"sub_plan,omitempty"`
	SubUntil time.Time   `json:"sub_until,omitzero"`
}

// NewLedger creates a fresh ledger with the full trial allowance.
func NewLedger(limits Limits) *Ledger {
	return &Ledger{Limits: limits, Trial: limits.TrialCredits}
}

// SubActive reports whether a subscription covers the given instant.
func (l *Ledger) SubActive(now time.Time) bool {
	return !l.SubUntil.IsZero() && now.Before(l.SubUntil)
}

// roll resets the day and month counters when now has crossed into a new
// window.
func (l *Ledger) roll(now time.Time) {
	if d := now.Format("2006-01-02"); l.Day.Date != d {
		l.Day = DayWindow{Date: d}
	}
	if m := now.Format("2006-01"); l.Month.Month != m {
		l.Month = MonthWindow{Month: m}
	}
}

// Quota describes what the next consumption would use.
type Quota struct {
	OK   bool `json:"ok"`
	Mode Mode `json:"mode,omitempty"`
	Left int  `json:"left"` // remaining uses in the selected mode
}

// CanUse reports whether an analysis can currently be funded, and by what.
// It never mutates counters beyond window rollover.
func (l *Ledger) CanUse(now time.Time) Quota {
	l.roll(now)

	if l.SubActive(now) && l.Month.Used < l.Limits.MonthlySub {
		return Quota{OK: true, Mode: ModeSubscription, Left: l.Limits.MonthlySub - l.Month.Used}
	}
	if l.Pack > 0 {
		return Quota{OK: true, Mode: ModePack, Left: l.Pack}
	}
	if l.Trial > 0 {
		return Quota{OK: true, Mode: ModeTrial, Left: l.Trial}
	}
	if l.Day.Used < l.Limits.DailyFree {
		return Quota{OK: true, Mode: ModeDaily, Left: l.Limits.DailyFree - l.Day.Used}
	}
	return Quota{}
}

// Consume debits one analysis and returns the funding mode, or
// ErrQuotaExhausted when nothing is left.
func (l *Ledger) Consume(now time.Time) (Mode, error) {
	q := l.CanUse(now)
	if !q.OK {
		return "", ErrQuotaExhausted
	}
	switch q.Mode {
	case ModeSubscription:
		l.Month.Used++
	case ModePack:
		l.Pack--
	case ModeTrial:
		l.Trial--
	case ModeDaily:
		l.Day.Used++
	}
	return q.Mode, nil
}

// Refund reverses one consumption in the given mode, used when an analysis
// fails after its quota was debited.
func (l *Ledger) Refund(mode Mode) {
	switch mode {
	case ModeSubscription:
		if l.Month.Used > 0 {
			l.Month.Used--
		}
	case ModePack:
		l.Pack++
	case ModeTrial:
		if l.Trial < l.Limits.TrialCredits {
			l.Trial++
		}
	case ModeDaily:
		if l.Day.Used > 0 {
			l.Day.Used--
		}
	}
}

// AddPack credits purchased analyses.
func (l *Ledger) AddPack(credits int) error {
	if credits <= 0 {
		return eris.New("billing: pack credits must be positive")
	}
	l.Pack += credits
	return nil
}

// Subscribe activates or extends the monthly subscription. Extending an
// active subscription stacks on its current end date.
func (l *Ledger) Subscribe(plan string, now time.Time, months int) error {
	if months <= 0 {
		return eris.New("billing: subscription months must be positive")
	}
	start := now
	if l.SubActive(now) {
		start = l.SubUntil
	}
	l.SubPlan = plan
	l.SubUntil = start.AddDate(0, months, 0)
	return nil
}
