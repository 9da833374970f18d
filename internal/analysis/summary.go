package analysis

import (
	"fmt"
	"strconv"
	"strings"
)

// NoAnomaliesText is the anomaly narrative for a report without anomalies.
const NoAnomaliesText = "No anomalies detected."

// Summary is the human-readable rendering of a dataset and its anomalies.
type Summary struct {
	SummaryText string `json:"summary"`
	AnomalyText string `json:"anomalies"`
}

// BuildSummary renders the dataset summary and anomaly narrative. The delivery
// time block is omitted when st is nil.
func BuildSummary(st *Stats, rep AnomalyReport, totalOrders, uniqueCities int) Summary {
	var b strings.Builder
	b.WriteString("Dataset Summary:\n")
	fmt.Fprintf(&b, "• Total Orders: %d\n", totalOrders)
	fmt.Fprintf(&b, "• Unique Cities: %d\n", uniqueCities)
	if st != nil {
		b.WriteString("\nDelivery Time Analysis:\n")
		fmt.Fprintf(&b, "• Average Delivery Time: %.1f minutes\n", st.Mean)
		fmt.Fprintf(&b, "• Median Delivery Time: %.1f minutes\n", st.Median)
		fmt.Fprintf(&b, "• Fastest Delivery: %.1f minutes\n", st.Min)
		fmt.Fprintf(&b, "• Slowest Delivery: %.1f minutes\n", st.Max)
		fmt.Fprintf(&b, "• Standard Deviation: %.1f minutes", st.StdDev)
	}
	return Summary{SummaryText: b.String(), AnomalyText: AnomalyText(rep)}
}

// AnomalyText renders the anomaly narrative of rep.
func AnomalyText(rep AnomalyReport) string {
	if rep.Count == 0 {
		return NoAnomaliesText
	}
	var lines []string
	if rep.Method == MethodSigma {
		lines = append(lines, fmt.Sprintf("Detected %d statistical anomalies in delivery times (based on %s standard deviations from mean):",
			rep.Count, strconv.FormatFloat(rep.Threshold, 'f', -1, 64)))
	} else {
		lines = append(lines, fmt.Sprintf("Detected %d anomalies in delivery times:", rep.Count))
	}
	if len(rep.High) > 0 {
		lines = append(lines, fmt.Sprintf("• %d unusually long delivery times (avg: %.1f minutes)", len(rep.High), meanValue(rep.High)))
	}
	if len(rep.Low) > 0 {
		lines = append(lines, fmt.Sprintf("• %d unusually short delivery times (avg: %.1f minutes)", len(rep.Low), meanValue(rep.Low)))
	}
	return strings.Join(lines, "\n")
}

func meanValue(cs []Classification) float64 {
	var sum float64
	for _, c := range cs {
		sum += c.Value
	}
	return sum / float64(len(cs))
}
