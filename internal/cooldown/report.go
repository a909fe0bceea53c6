package cooldown

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"tradectl/internal/signals"
)

// Report renders a human-readable cooldown summary: active cooldowns first,
// sorted by remaining time descending, then ready symbols alphabetically.
func (m *Manager) Report(sig signals.Type, now time.Time, symbols ...string) string {
	statuses := m.StatusAll(sig, now, symbols...)

	var active, ready []Status
	for _, s := range statuses {
		if s.IsActive || s.SellLimitReached {
			active = append(active, s)
		} else {
			ready = append(ready, s)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].Remaining != active[j].Remaining {
			return active[i].Remaining > active[j].Remaining
		}
		return active[i].Symbol < active[j].Symbol
	})
	sort.Slice(ready, func(i, j int) bool { return ready[i].Symbol < ready[j].Symbol })

	var b strings.Builder
	fmt.Fprintf(&b, "Cooldown report (%s, %s)\n", sig, now.Format("2006-01-02 15:04:05"))

	b.WriteString("Active:\n")
	if len(active) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, s := range active {
		line := fmt.Sprintf("  %-8s remaining %s", s.Symbol, s.Remaining.Round(time.Second))
		if s.SellLimitReached {
			line += fmt.Sprintf(" [sell limit: %d/h]", s.SellsLastHour)
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("Ready:\n")
	if len(ready) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, s := range ready {
		fmt.Fprintf(&b, "  %s\n", s.Symbol)
	}
	return b.String()
}
