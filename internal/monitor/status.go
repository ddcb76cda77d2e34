package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Status renders a short human-readable summary for the chat /status
// command. Safe to call from other goroutines while the loop runs.
func (m *Monitor) Status() string {
	m.mu.Lock()
	cycles := m.cycles
	total := m.totalCycles
	restarts := m.restarts
	lastCheck := m.lastCheck
	lastFound := m.lastFound
	m.mu.Unlock()

	var b strings.Builder
	b.WriteString("✅ Bot is active and monitoring for appointments.\n")
	fmt.Fprintf(&b, "📍 Location: %s\n", m.cfg.Booking.Facility)
	fmt.Fprintf(&b, "🔄 Checks: %d this session, %d total", cycles, total)
	if restarts > 0 {
		fmt.Fprintf(&b, " (%d restarts)", restarts)
	}
	if !lastCheck.IsZero() {
		fmt.Fprintf(&b, "\n🕐 Last check: %s", lastCheck.Format(time.RFC822))
	}
	if !lastFound.IsZero() {
		fmt.Fprintf(&b, "\n📅 Last date seen: %s", lastFound)
	}
	if best, count, ok := m.seen.Earliest(); ok {
		fmt.Fprintf(&b, "\n🏆 Earliest seen: %s (seen %dx, %d distinct dates)",
			best, count, m.seen.Distinct())
	}
	if lines := m.recentAttemptLines(3); len(lines) > 0 {
		b.WriteString("\n🗂 Recent attempts:")
		for _, line := range lines {
			b.WriteString("\n  • ")
			b.WriteString(line)
		}
	}
	return b.String()
}

// recentAttemptLines pulls the newest booking attempts from the journal.
// The chat gateway calls Status synchronously, so the query is bounded.
func (m *Monitor) recentAttemptLines(limit int) []string {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	attempts, err := m.journal.RecentAttempts(ctx, limit)
	if err != nil {
		m.logger.Warn("history attempt query failed", "error", err)
		return nil
	}
	lines := make([]string, 0, len(attempts))
	for _, a := range attempts {
		line := fmt.Sprintf("%s: %s", a.Date, a.Status)
		if a.Detail != "" {
			line += " (" + a.Detail + ")"
		}
		lines = append(lines, line)
	}
	return lines
}
