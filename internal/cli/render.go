package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Veraticus/chargedesk/internal/aggregate"
	"github.com/Veraticus/chargedesk/internal/duplicate"
	"github.com/Veraticus/chargedesk/internal/engine"
	"github.com/Veraticus/chargedesk/internal/model"
)

// RecordTimeLayout is how creation times are shown in tables.
const RecordTimeLayout = "Jan 02 03:04 PM"

// RenderRecords writes records as an aligned table.
func RenderRecords(w io.Writer, records []model.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, SubtleStyle.Render("No records."))
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tORDER ID\tAGENT\tCLIENT\tCHARGE\tSTATUS\tCREATED")
	for _, rec := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.Position,
			rec.ID,
			rec.Agent,
			rec.Client.Name,
			rec.Charge,
			FormatStatus(rec.Status),
			rec.CreatedAt.Format(RecordTimeLayout))
	}
	return tw.Flush()
}

// RenderRecord writes every field of one record in a box.
func RenderRecord(w io.Writer, rec model.Record) error {
	var b strings.Builder
	line := func(label, value string) {
		if value == "" {
			value = SubtleStyle.Render("-")
		}
		fmt.Fprintf(&b, "%-18s %s\n", BoldStyle.Render(label+":"), value)
	}
	line("Status", FormatStatus(rec.Status))
	line("Agent", rec.Agent)
	line("Client", rec.Client.Name)
	line("Phone", rec.Client.Phone)
	line("Email", rec.Client.Email)
	line("Address", rec.Client.Address)
	line("Charge", rec.Charge)
	line("Provider", rec.Field(model.ColumnProvider))
	line("LLC", rec.Field(model.ColumnLLC))
	line("PIN", rec.Field(model.ColumnPINCode))
	if !rec.DateOfCharge.IsZero() {
		line("Date of charge", rec.DateOfCharge.Format(model.DateOfChargeLayout))
	}
	line("Created", rec.CreatedAt.Format(model.TimestampLayout))
	line("Row", strconv.Itoa(rec.Position))

	_, err := fmt.Fprintln(w, RenderBox("Order "+rec.ID, strings.TrimRight(b.String(), "\n")))
	return err
}

// RenderTotal writes a period total.
func RenderTotal(w io.Writer, title string, t engine.Total) error {
	who := "all agents"
	if t.Agent != "" {
		who = t.Agent
	}
	content := fmt.Sprintf("%s\n%s",
		SuccessStyle.Render(engine.FormatMoney(t.Amount)),
		SubtleStyle.Render(fmt.Sprintf("%d charged records for %s, %s to %s",
			t.Count, who, t.Start.Format(RecordTimeLayout), t.End.Format(RecordTimeLayout))))
	if t.Malformed > 0 {
		content += "\n" + FormatWarning(fmt.Sprintf("%d records had an unreadable charge and counted as $0.00", t.Malformed))
	}
	_, err := fmt.Fprintln(w, RenderBox(ChartIcon+" "+title, content))
	return err
}

// RenderHourly writes per-hour totals.
func RenderHourly(w io.Writer, hours []aggregate.HourTotal) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "HOUR\tRECORDS\tTOTAL")
	for _, h := range hours {
		fmt.Fprintf(tw, "%02d:00\t%d\t%s\n", h.Hour, h.Count, engine.FormatMoney(h.Total))
	}
	return tw.Flush()
}

// RenderAgents writes the agent leaderboard.
func RenderAgents(w io.Writer, agents []aggregate.AgentTotal) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tAGENT\tRECORDS\tTOTAL")
	for i, a := range agents {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", i+1, a.Agent, a.Count, engine.FormatMoney(a.Total))
	}
	return tw.Flush()
}

// RenderDuplicates writes duplicate ID groups with their rows.
func RenderDuplicates(w io.Writer, groups []duplicate.Group) error {
	if len(groups) == 0 {
		_, err := fmt.Fprintln(w, FormatSuccess("No duplicate order IDs."))
		return err
	}

	fmt.Fprintln(w, FormatWarning(fmt.Sprintf("%d order IDs appear more than once", len(groups))))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER ID\tROWS")
	for _, g := range groups {
		rows := make([]string, len(g.Records))
		for i, rec := range g.Records {
			rows[i] = strconv.Itoa(rec.Position)
		}
		fmt.Fprintf(tw, "%s\t%s\n", g.ID, strings.Join(rows, ", "))
	}
	return tw.Flush()
}
