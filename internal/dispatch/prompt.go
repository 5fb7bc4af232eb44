package dispatch

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kiranshivaraju/pulsehound/pkg/models"
)

const maxLogMessageBytes = 500

// BuildPrompt renders the structured root-cause prompt: the anomaly facts,
// then per-service metrics from the triggering snapshot, then the fetched
// raw context (error logs, failed/slow spans).
func BuildPrompt(anomaly models.Anomaly, snap *models.Snapshot, logs []models.ErrorLogLine, spans []models.TraceSample) string {
	var b strings.Builder

	b.WriteString("You are a site reliability engineer. Analyze the following production anomaly ")
	b.WriteString("and write a concise root-cause assessment with suggested next steps.\n\n")

	fmt.Fprintf(&b, "Anomaly: metric=%s severity=%s\n", anomaly.Metric, anomaly.Severity)
	fmt.Fprintf(&b, "Current value: %.2f (expected %.2f to %.2f, z-score %.2f)\n", anomaly.CurrentValue,
		anomaly.ExpectedRange.Min, anomaly.ExpectedRange.Max, anomaly.ZScore)
	fmt.Fprintf(&b, "Summary: %s\n", anomaly.Message)

	if snap != nil {
		fmt.Fprintf(&b, "\nSnapshot (%d min window ending %s):\n", snap.WindowMinutes, snap.Timestamp.Format(time.RFC3339))
		for _, m := range snap.Services {
			fmt.Fprintf(&b, "- %s: %d req, %d errors (%.2f%%), p95 %.0fms, cpu %.1f%%, mem %.1f%%\n",
				m.Service, m.RequestCount, m.ErrorCount, m.ErrorRatePercent(),
				m.P95LatencyMs, m.AvgCPUPercent, m.AvgMemoryPercent)
		}
	}

	if len(logs) > 0 {
		b.WriteString("\nRecent error logs:\n")
		for _, l := range logs {
			fmt.Fprintf(&b, "[%s] %s %s: %s\n", l.Timestamp.Format(time.RFC3339), l.Service, l.Level,
				truncateString(l.Message, maxLogMessageBytes))
		}
	}

	if len(spans) > 0 {
		b.WriteString("\nRecent failed or slow spans:\n")
		for _, s := range spans {
			fmt.Fprintf(&b, "[%s] %s %s: %.0fms status=%d\n", s.Timestamp.Format(time.RFC3339),
				s.Service, s.Operation, s.DurationMs, s.StatusCode)
		}
	}

	return b.String()
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
