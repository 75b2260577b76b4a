package lifecycle

import (
	"context"
	"fmt"

	"listingwatcher/internal/listing/scheduler"

	"go.uber.org/zap"
)

// RestartReport counts the timers re-registered by RestartAll.
type RestartReport struct {
	Start   int `json:"start"`
	Sell    int `json:"sell"`
	Minute  int `json:"minute"`
	Skipped int `json:"skipped"`
}

func (r RestartReport) Total() int {
	return r.Start + r.Sell + r.Minute
}

// RestartAll rebuilds the timer registry from the store. Targets already in
// the past fire immediately. Finished symbols schedule nothing, and a phase
// whose handler is executing is left to finish instead of being re-armed.
func (m *Machine) RestartAll(ctx context.Context) (RestartReport, error) {
	var report RestartReport
	now := m.now()

	waiting, err := m.store.ListSymbolsNotListed(ctx)
	if err != nil {
		return report, fmt.Errorf("list unlisted symbols: %w", err)
	}
	for _, s := range waiting {
		if m.skipRunning(startMessage(s.Name).Key) {
			report.Skipped++
			continue
		}
		delay := s.ListingDate.Sub(now) - m.opts.StartLead
		m.timers.Schedule(startMessage(s.Name), delay)
		report.Start++
	}

	buys, err := m.store.ListUnmatchedBuys(ctx)
	if err != nil {
		return report, fmt.Errorf("list unmatched buys: %w", err)
	}
	for _, b := range buys {
		if b.Symbol == nil || b.Symbol.IsFinished {
			report.Skipped++
			continue
		}
		if m.skipRunning(sellKey(b.Symbol.Name)) {
			report.Skipped++
			continue
		}
		delay := b.CreatedAt.Add(m.opts.HoldingWindow).Sub(now)
		m.timers.Schedule(sellMessage(b.Symbol.Name, b.ID), delay)
		report.Sell++
	}

	active, err := m.store.ListActiveSymbols(ctx)
	if err != nil {
		return report, fmt.Errorf("list active symbols: %w", err)
	}
	for _, s := range active {
		if s.PriceOnMinute != nil || s.ListedAt == nil {
			continue
		}
		if m.skipRunning(minuteMessage(s.Name).Key) {
			report.Skipped++
			continue
		}
		due := s.ListedAt.Add(m.opts.MinuteDelay)
		// a sample taken much later is no longer a minute sample
		if now.Sub(due) > m.opts.MinuteDelay {
			report.Skipped++
			continue
		}
		m.timers.Schedule(minuteMessage(s.Name), due.Sub(now))
		report.Minute++
	}

	if report.Total() == 0 {
		m.logger.Info("no timers to restart", zap.Int("skipped", report.Skipped))
	} else {
		m.logger.Info("timers restarted",
			zap.Int("start", report.Start),
			zap.Int("sell", report.Sell),
			zap.Int("minute", report.Minute),
			zap.Int("skipped", report.Skipped),
		)
	}
	return report, nil
}

func (m *Machine) skipRunning(key scheduler.Key) bool {
	if !m.timers.Running(key) {
		return false
	}
	m.logger.Info("handler running, not re-armed", zap.String("key", key.String()))
	return true
}

// Reconcile schedules an immediate sell for every buy whose holding window
// has elapsed and whose sell timer is neither pending nor running. It
// returns how many sells were scheduled.
func (m *Machine) Reconcile(ctx context.Context) (int, error) {
	buys, err := m.store.ListUnmatchedBuys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list unmatched buys: %w", err)
	}

	now := m.now()
	scheduled := 0
	for _, b := range buys {
		if b.Symbol == nil || b.Symbol.IsFinished {
			continue
		}
		if now.Before(b.CreatedAt.Add(m.opts.HoldingWindow)) {
			continue
		}
		if m.timers.Busy(sellKey(b.Symbol.Name)) {
			continue
		}
		m.timers.Schedule(sellMessage(b.Symbol.Name, b.ID), 0)
		scheduled++
		m.logger.Warn("overdue sell rescheduled", zap.String("symbol", b.Symbol.Name), zap.Uint("buyId", b.ID))
	}
	return scheduled, nil
}
