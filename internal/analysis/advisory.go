package analysis

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/KaramelBytes/deliverylens/internal/ai"
	"github.com/KaramelBytes/deliverylens/internal/logger"
)

var detectedCount = regexp.MustCompile(`Detected (\d+)`)

// Advise turns an anomaly narrative into advisory prose with key findings and
// recommendations for the given period.
func Advise(anomalyText, period string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Anomaly Summary for %s:\n\n", period)
	if strings.TrimSpace(anomalyText) == "" || anomalyText == NoAnomaliesText {
		b.WriteString("No significant delivery anomalies were detected during this period. All deliveries appear to be operating within normal parameters.")
		return b.String()
	}

	b.WriteString("Key Findings:\n")
	for _, line := range strings.Split(anomalyText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.Contains(line, "Detected"):
			m := detectedCount.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			count, _ := strconv.Atoi(m[1])
			fmt.Fprintf(&b, "• Total anomalies identified: %d\n", count)
			switch {
			case count > 10:
				b.WriteString("• High anomaly rate detected - requires immediate attention\n")
			case count > 5:
				b.WriteString("• Moderate anomaly rate - monitor closely\n")
			default:
				b.WriteString("• Low anomaly rate - within acceptable range\n")
			}
		case strings.Contains(line, "unusually long"), strings.Contains(line, "unusually short"):
			fmt.Fprintf(&b, "• %s\n", strings.TrimSpace(strings.TrimPrefix(line, "•")))
		}
	}

	b.WriteString("\nRecommendations:\n")
	if strings.Contains(anomalyText, "unusually long") {
		b.WriteString("• Investigate routes with extended delivery times\n")
		b.WriteString("• Review driver assignments and traffic patterns\n")
	}
	if strings.Contains(anomalyText, "unusually short") {
		b.WriteString("• Verify accuracy of unusually fast deliveries\n")
		b.WriteString("• Check for potential data entry errors\n")
	}
	b.WriteString("• Continue monitoring delivery performance trends")
	return b.String()
}

// Advisor renders advisory prose, optionally rewritten by a language model.
// A nil Runtime, or any runtime failure, yields the rule-based text from Advise.
type Advisor struct {
	Runtime     ai.Runtime
	Model       string
	MaxTokens   int
	Temperature float64
}

// Advise returns advisory prose for anomalyText.
func (a *Advisor) Advise(ctx context.Context, anomalyText, period string) string {
	base := Advise(anomalyText, period)
	if a == nil || a.Runtime == nil || anomalyText == NoAnomaliesText {
		return base
	}
	req := ai.GenerateRequest{
		Model: a.Model,
		Messages: []ai.Message{
			{Role: "system", Content: "You are a delivery operations analyst. Rewrite the findings below as short, actionable advice for a dispatcher. Keep every number unchanged."},
			{Role: "user", Content: "Anomalies:\n" + anomalyText + "\n\nDraft:\n" + base},
		},
		MaxTokens:   a.MaxTokens,
		Temperature: a.Temperature,
	}
	resp, err := a.Runtime.Generate(ctx, req)
	if err != nil {
		logger.Warn("advisory generation failed, using rule-based text: %v", err)
		return base
	}
	text := resp.Text()
	if text == "" {
		return base
	}
	logger.Debug("advisory generated (request_id=%s)", resp.RequestID)
	return text
}
