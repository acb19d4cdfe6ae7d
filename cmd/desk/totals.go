package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Veraticus/chargedesk/internal/cli"
	"github.com/Veraticus/chargedesk/internal/engine"
	"github.com/Veraticus/chargedesk/internal/model"
)

func totalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Revenue totals for the night shift and the day",
	}

	night := &cobra.Command{
		Use:   "night",
		Short: "Charged revenue in the current night shift",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTotal(cmd, "Night shift", (*engine.Desk).NightTotal)
		},
	}
	night.Flags().String("agent", "", "only this agent's charges")

	today := &cobra.Command{
		Use:   "today",
		Short: "Charged revenue since midnight",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTotal(cmd, "Today", (*engine.Desk).TodayTotal)
		},
	}
	today.Flags().String("agent", "", "only this agent's charges")

	agents := &cobra.Command{
		Use:   "agents",
		Short: "Agents ranked by charged revenue",
		RunE:  runTopAgents,
	}
	agents.Flags().Int("limit", 10, "number of agents to show (0 for all)")

	status := &cobra.Command{
		Use:   "status",
		Short: "Record counts per status",
		RunE:  runStatusCounts,
	}
	status.Flags().String("agent", "", "only this agent's records")

	cmd.AddCommand(night, today, agents, status)
	cmd.AddCommand(&cobra.Command{
		Use:   "hourly",
		Short: "Charged revenue per hour of the day",
		RunE:  runHourly,
	})

	return cmd
}

type totalFunc func(*engine.Desk, context.Context, string) (engine.Total, error)

func runTotal(cmd *cobra.Command, title string, fn totalFunc) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	agent, _ := cmd.Flags().GetString("agent")
	total, err := fn(a.desk, ctx, agent)
	if err != nil {
		return err
	}
	return cli.RenderTotal(cmd.OutOrStdout(), title, total)
}

func runHourly(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	hours, err := a.desk.Hourly(ctx)
	if err != nil {
		return err
	}
	return cli.RenderHourly(cmd.OutOrStdout(), hours)
}

func runTopAgents(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	agents, err := a.desk.TopAgents(ctx, limit)
	if err != nil {
		return err
	}
	return cli.RenderAgents(cmd.OutOrStdout(), agents)
}

func runStatusCounts(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	agent, _ := cmd.Flags().GetString("agent")
	counts, err := a.desk.StatusCounts(ctx, agent)
	if err != nil {
		return err
	}

	statuses := make([]model.Status, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].String() < statuses[j].String() })

	out := cmd.OutOrStdout()
	for _, status := range statuses {
		fmt.Fprintf(out, "%-12s %d\n", cli.FormatStatus(status), counts[status])
	}
	return nil
}

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check the record store for problems",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "duplicates",
		Short: "List order IDs that appear on more than one row",
		RunE:  runAuditDuplicates,
	})
	return cmd
}

func runAuditDuplicates(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	groups, err := a.desk.Duplicates(ctx)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("No duplicate order IDs"))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning(fmt.Sprintf("%d order IDs appear more than once", len(groups))))
	return cli.RenderDuplicates(cmd.OutOrStdout(), groups)
}
