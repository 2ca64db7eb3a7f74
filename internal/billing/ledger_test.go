package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day1 = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func TestConsumePriority(t *testing.T) {
	l := NewLedger(DefaultLimits())
	require.NoError(t, l.AddPack(2))
	require.NoError(t, l.Subscribe("pro", day1, 1))

	// Subscription first.
	mode, err := l.Consume(day1)
	require.NoError(t, err)
	assert.Equal(t, ModeSubscription, mode)

	// After expiry: pack before trial.
	afterSub := l.SubUntil.Add(time.Hour)
	mode, err = l.Consume(afterSub)
	require.NoError(t, err)
	assert.Equal(t, ModePack, mode)
	mode, err = l.Consume(afterSub)
	require.NoError(t, err)
	assert.Equal(t, ModePack, mode)

	// Pack gone: trial.
	mode, err = l.Consume(afterSub)
	require.NoError(t, err)
	assert.Equal(t, ModeTrial, mode)
	assert.Equal(t, DefaultLimits().TrialCredits-1, l.Trial)
}

func TestTrialThenDailyThenExhausted(t *testing.T) {
	l := NewLedger(Limits{TrialCredits: 1, DailyFree: 2, MonthlySub: 300})

	mode, err := l.Consume(day1)
	require.NoError(t, err)
	assert.Equal(t, ModeTrial, mode)

	for i := 0; i < 2; i++ {
		mode, err = l.Consume(day1)
		require.NoError(t, err)
		assert.Equal(t, ModeDaily, mode)
	}

	_, err = l.Consume(day1)
	assert.ErrorIs(t, err, ErrQuotaExhausted)
}

func TestDailyRollover(t *testing.T) {
	l := NewLedger(Limits{TrialCredits: 0, DailyFree: 1, MonthlySub: 300})

	_, err := l.Consume(day1)
	require.NoError(t, err)
	_, err = l.Consume(day1)
	assert.ErrorIs(t, err, ErrQuotaExhausted)

	nextDay := day1.AddDate(0, 0, 1)
	mode, err := l.Consume(nextDay)
	require.NoError(t, err)
	assert.Equal(t, ModeDaily, mode)
}

func TestMonthlySubCapAndRollover(t *testing.T) {
	l := NewLedger(Limits{TrialCredits: 0, DailyFree: 0, MonthlySub: 2})
	require.NoError(t, l.Subscribe("pro", day1, 2))

	for i := 0; i < 2; i++ {
		mode, err := l.Consume(day1)
		require.NoError(t, err)
		assert.Equal(t, ModeSubscription, mode)
	}
	_, err := l.Consume(day1)
	assert.ErrorIs(t, err, ErrQuotaExhausted)

	nextMonth := day1.AddDate(0, 1, 0)
	mode, err := l.Consume(nextMonth)
	require.NoError(t, err)
	assert.Equal(t, ModeSubscription, mode)
}

func TestRefund(t *testing.T) {
	l := NewLedger(Limits{TrialCredits: 1, DailyFree: 1, MonthlySub: 300})

	mode, err := l.Consume(day1)
	require.NoError(t, err)
	assert.Equal(t, ModeTrial, mode)
	assert.Equal(t, 0, l.Trial)

	l.Refund(mode)
	assert.Equal(t, 1, l.Trial)

	// Refund never exceeds the original trial allowance.
	l.Refund(ModeTrial)
	assert.Equal(t, 1, l.Trial)
}

func TestSubscribeStacks(t *testing.T) {
	l := NewLedger(DefaultLimits())
	require.NoError(t, l.Subscribe("pro", day1, 1))
	first := l.SubUntil
	require.NoError(t, l.Subscribe("pro", day1.Add(time.Hour), 1))
	assert.Equal(t, first.AddDate(0, 1, 0), l.SubUntil)
}

func TestCanUseDoesNotConsume(t *testing.T) {
	l := NewLedger(Limits{TrialCredits: 1, DailyFree: 0, MonthlySub: 300})

	q := l.CanUse(day1)
	require.True(t, q.OK)
	assert.Equal(t, ModeTrial, q.Mode)
	assert.Equal(t, 1, q.Left)
	assert.Equal(t, 1, l.Trial)
}

func TestAddPackValidation(t *testing.T) {
	l := NewLedger(DefaultLimits())
	assert.Error(t, l.AddPack(0))
	assert.Error(t, l.AddPack(-5))
	assert.NoError(t, l.AddPack(50))
	assert.Equal(t, 50, l.Pack)
}
