package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/KaramelBytes/deliverylens/internal/delivery"
	"github.com/KaramelBytes/deliverylens/internal/pipeline"
	"github.com/KaramelBytes/deliverylens/internal/utils"
)

var statusColors = map[delivery.Status]*color.Color{
	delivery.StatusOnTime:    color.New(color.FgGreen),
	delivery.StatusDelayed:   color.New(color.FgYellow),
	delivery.StatusDelivered: color.New(color.FgCyan),
	delivery.StatusPending:   color.New(color.FgBlue),
	delivery.StatusAnomaly:   color.New(color.FgRed, color.Bold),
}

var headingColor = color.New(color.Bold)

func statusLabel(s delivery.Status) string {
	if c, ok := statusColors[s]; ok {
		return c.Sprint(string(s))
	}
	return string(s)
}

// writeJSON renders res as indented JSON.
func writeJSON(w io.Writer, res any) error {
	b, err := utils.PrettyJSON(res)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// writeReport renders the human-readable report: summary, anomalies, advisory,
// KPIs and up to maxRecords delivery rows (0 hides the table, negative shows all).
func writeReport(w io.Writer, res *pipeline.Result, maxRecords int) error {
	headingColor.Fprintln(w, "Summary")
	fmt.Fprintln(w, res.Report.Summary)
	fmt.Fprintln(w)
	headingColor.Fprintln(w, "Anomalies")
	fmt.Fprintln(w, res.Report.Anomalies)
	if res.Report.Advisory != "" {
		fmt.Fprintln(w)
		headingColor.Fprintln(w, "Advisory")
		fmt.Fprintln(w, res.Report.Advisory)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "⚠ %s\n", warn)
	}
	if res.Degraded {
		return nil
	}

	fmt.Fprintln(w)
	k := res.KPIs
	fmt.Fprintf(w, "Deliveries: %d   On time: %d (%.1f%%)   Anomalies: %d\n",
		k.TotalDeliveries, k.OnTimeCount, k.OnTimeRate, k.AnomalyCount)
	for _, sc := range res.Chart {
		fmt.Fprintf(w, "  %-10s %d\n", statusLabel(sc.Status), sc.Count)
	}

	if maxRecords == 0 || len(res.Records) == 0 {
		return nil
	}
	records := res.Records
	if maxRecords > 0 && len(records) > maxRecords {
		records = records[:maxRecords]
	}
	fmt.Fprintln(w)
	if err := writeRecordTable(w, records); err != nil {
		return err
	}
	if len(records) < len(res.Records) {
		fmt.Fprintf(w, "Showing %d of %d deliveries\n", len(records), len(res.Records))
	}
	return nil
}

func writeRecordTable(w io.Writer, records []delivery.Record) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Order", "Customer", "Destination", "Status", "Actual (min)", "Predicted (min)", "Date"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})

	var data [][]string
	for _, r := range records {
		predicted := "-"
		if r.PredictedTravelTime != nil {
			predicted = strconv.FormatFloat(*r.PredictedTravelTime, 'f', 1, 64)
		}
		data = append(data, []string{
			r.ID,
			r.CustomerName,
			r.Destination,
			statusLabel(r.Status),
			strconv.FormatFloat(r.ActualTravelTime, 'f', 1, 64),
			predicted,
			r.DeliveryDate,
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// batchRow is one line of the analyze-batch overview.
type batchRow struct {
	File      string
	Orders    int
	Anomalies int
	OnTime    float64
	Method    string
	Output    string
}

func writeBatchTable(w io.Writer, rows []batchRow) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"File", "Orders", "Anomalies", "On time %", "Method", "Report"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	var data [][]string
	for _, r := range rows {
		anomalies := strconv.Itoa(r.Anomalies)
		if r.Anomalies > 0 {
			anomalies = statusColors[delivery.StatusAnomaly].Sprint(anomalies)
		}
		data = append(data, []string{
			r.File,
			strconv.Itoa(r.Orders),
			anomalies,
			strconv.FormatFloat(r.OnTime, 'f', 1, 64),
			r.Method,
			r.Output,
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
