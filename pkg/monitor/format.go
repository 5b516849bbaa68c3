package monitor

import (
	"fmt"
	"html"
	"time"
)

var hashrateUnits = []string{"H/s", "KH/s", "MH/s", "GH/s", "TH/s", "PH/s", "EH/s", "ZH/s"}

// FormatHashrate renders a hashrate in the largest unit that keeps the
// value below 1000.
func FormatHashrate(hashrate float64) string {
	idx := 0
	for hashrate >= 1000 && idx < len(hashrateUnits)-1 {
		hashrate /= 1000
		idx++
	}
	return fmt.Sprintf("%.2f %s", hashrate, hashrateUnits[idx])
}

// FormatDifficulty renders a difficulty in abbreviated notation (K/M/G/T).
func FormatDifficulty(d float64) string {
	switch {
	case d >= 1e12:
		return fmt.Sprintf("%.2fT", d/1e12)
	case d >= 1e9:
		return fmt.Sprintf("%.2fG", d/1e9)
	case d >= 1e6:
		return fmt.Sprintf("%.2fM", d/1e6)
	case d >= 1e3:
		return fmt.Sprintf("%.2fK", d/1e3)
	default:
		return fmt.Sprintf("%.2f", d)
	}
}

// FormatDuration renders a duration in a human-readable form, scaling from
// seconds up to (for absurd share difficulties) millions of years.
func FormatDuration(d time.Duration) string {
	seconds := d.Seconds()
	if seconds < 0 {
		return "N/A"
	}
	if seconds < 60 {
		return fmt.Sprintf("%.0fs", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%.0fm", seconds/60)
	}
	if seconds < 86400 {
		h := int(seconds) / 3600
		m := (int(seconds) % 3600) / 60
		return fmt.Sprintf("%dh %dm", h, m)
	}

	days := seconds / 86400
	if days < 30 {
		d := int(days)
		h := (int(seconds) % 86400) / 3600
		return fmt.Sprintf("%dd %dh", d, h)
	}
	if days < 365 {
		return fmt.Sprintf("%.1f months", days/30)
	}

	years := days / 365
	if years >= 1e6 {
		return fmt.Sprintf("%.2fM years", years/1e6)
	}
	if years >= 1e3 {
		return fmt.Sprintf("%.2fK years", years/1e3)
	}
	return fmt.Sprintf("%.1f years", years)
}

// DisplayName resolves a worker's display name through the configured
// substitutions and escapes it for HTML message bodies.
func (c *Config) DisplayName(workerID string) string {
	if name, ok := c.NameSubstitutions[workerID]; ok {
		return html.EscapeString(name)
	}
	return html.EscapeString(workerID)
}
