package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/chargedesk/internal/aggregate"
	"github.com/Veraticus/chargedesk/internal/cli"
	"github.com/Veraticus/chargedesk/internal/engine"
	"github.com/Veraticus/chargedesk/internal/model"
)

func submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a new client payment record",
		Long: `Submit a new client payment record as Pending and notify the managers.

Fields not given as flags are asked for interactively.`,
		RunE: runSubmit,
	}

	cmd.Flags().String("order-id", "", "order ID (must be unique)")
	cmd.Flags().String("agent", "", "agent name")
	cmd.Flags().String("name", "", "client name")
	cmd.Flags().String("phone", "", "client phone number")
	cmd.Flags().String("email", "", "client email")
	cmd.Flags().String("address", "", "client address")
	cmd.Flags().String("card-holder", "", "card holder name")
	cmd.Flags().String("card-number", "", "card number")
	cmd.Flags().String("expiry", "", "card expiry (MM/YY)")
	cmd.Flags().String("cvc", "", "card CVC")
	cmd.Flags().String("charge", "", "charge amount, e.g. 29 or $29.00")
	cmd.Flags().String("llc", "", "LLC the charge goes through")
	cmd.Flags().String("provider", "", "service provider")
	cmd.Flags().String("pin", "", "4-digit PIN (Spectrum only)")
	cmd.Flags().String("date", "", "date of charge (YYYY-MM-DD, default today)")
	cmd.Flags().Bool("no-input", false, "never prompt; missing fields fail validation")

	return cmd
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	noInput, _ := cmd.Flags().GetBool("no-input")
	prompter := cli.NewPrompter(os.Stdin, cmd.OutOrStdout())

	field := func(flag, label string) (string, error) {
		value, _ := cmd.Flags().GetString(flag)
		if value != "" || noInput {
			return value, nil
		}
		return prompter.Ask(ctx, label, "")
	}

	var s engine.Submission
	for _, f := range []struct {
		dst   *string
		flag  string
		label string
	}{
		{&s.OrderID, "order-id", "Order ID"},
		{&s.Agent, "agent", "Agent name"},
		{&s.Client.Name, "name", "Client name"},
		{&s.Client.Phone, "phone", "Phone number"},
		{&s.Client.Email, "email", "Email"},
		{&s.Client.Address, "address", "Address"},
		{&s.CardHolder, "card-holder", "Card holder name"},
		{&s.CardNumber, "card-number", "Card number"},
		{&s.Expiry, "expiry", "Expiry (MM/YY)"},
		{&s.CVC, "cvc", "CVC"},
		{&s.Charge, "charge", "Charge amount"},
		{&s.LLC, "llc", "LLC"},
		{&s.Provider, "provider", "Provider"},
	} {
		if *f.dst, err = field(f.flag, f.label); err != nil {
			return err
		}
	}
	if s.Provider == engine.ProviderRequiringPIN {
		if s.PIN, err = field("pin", "PIN code"); err != nil {
			return err
		}
	}

	if date, _ := cmd.Flags().GetString("date"); date != "" {
		d, err := time.ParseInLocation(model.DateOfChargeLayout, date, a.config.Engine.Location)
		if err != nil {
			return fmt.Errorf("invalid --date %q: use YYYY-MM-DD", date)
		}
		s.DateOfCharge = d
	}

	rec, err := a.desk.Submit(ctx, s)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Record %s submitted (row %d, %s)", rec.ID, rec.Position, rec.Charge)))
	return nil
}

func recordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List and inspect records",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List every record",
		RunE:  runRecordsList,
	}
	list.Flags().String("agent", "", "only this agent's records")
	list.Flags().StringSlice("status", nil, "only these statuses (repeatable)")

	cmd.AddCommand(list)
	cmd.AddCommand(&cobra.Command{
		Use:   "recent",
		Short: "Pending records plus anything processed in the retention window",
		RunE:  runRecordsRecent,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "pending",
		Short: "Records awaiting a decision",
		RunE:  runRecordsPending,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(1),
		RunE:  runRecordsShow,
	})

	return cmd
}

func runRecordsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	agent, _ := cmd.Flags().GetString("agent")
	statusFlags, _ := cmd.Flags().GetStringSlice("status")
	f := aggregate.Filter{Agent: agent}
	for _, text := range statusFlags {
		status, err := model.ParseStatus(text)
		if err != nil {
			return err
		}
		f.Statuses = append(f.Statuses, status)
	}

	records, err := a.desk.Records(ctx, f)
	if err != nil {
		return err
	}
	return cli.RenderRecords(cmd.OutOrStdout(), records)
}

func runRecordsRecent(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.desk.Recent(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatTitle("Recent records"))
	return cli.RenderRecords(cmd.OutOrStdout(), records)
}

func runRecordsPending(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.desk.Pending(ctx)
	if err != nil {
		return err
	}
	return cli.RenderRecords(cmd.OutOrStdout(), records)
}

func runRecordsShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.desk.Find(ctx, args[0])
	if err != nil {
		return err
	}
	return cli.RenderRecord(cmd.OutOrStdout(), rec)
}

func statusCmd(use, short string, status model.Status) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.desk.Transition(ctx, args[0], status)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Record %s is now %s", rec.ID, cli.FormatStatus(rec.Status))))
			return nil
		},
	}
}

func editCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Correct a record in place",
		Long: `Correct a record in place. Only the flags you pass are changed; the order ID
and creation time never change. A new status goes through the normal lifecycle.`,
		Args: cobra.ExactArgs(1),
		RunE: runEdit,
	}

	for _, f := range editFlags {
		cmd.Flags().String(f.flag, "", f.usage)
	}
	cmd.Flags().String("status", "", "new status (Pending, Charged, Declined, Charge Back)")
	cmd.Flags().String("date", "", "new date of charge (YYYY-MM-DD)")

	return cmd
}

var editFlags = []struct {
	field func(*engine.Edit) **string
	flag  string
	usage string
}{
	{func(e *engine.Edit) **string { return &e.Agent }, "agent", "agent name"},
	{func(e *engine.Edit) **string { return &e.Name }, "name", "client name"},
	{func(e *engine.Edit) **string { return &e.Phone }, "phone", "client phone number"},
	{func(e *engine.Edit) **string { return &e.Email }, "email", "client email"},
	{func(e *engine.Edit) **string { return &e.Address }, "address", "client address"},
	{func(e *engine.Edit) **string { return &e.Charge }, "charge", "charge amount"},
	{func(e *engine.Edit) **string { return &e.CardHolder }, "card-holder", "card holder name"},
	{func(e *engine.Edit) **string { return &e.CardNumber }, "card-number", "card number"},
	{func(e *engine.Edit) **string { return &e.Expiry }, "expiry", "card expiry"},
	{func(e *engine.Edit) **string { return &e.CVC }, "cvc", "card CVC"},
	{func(e *engine.Edit) **string { return &e.LLC }, "llc", "LLC"},
	{func(e *engine.Edit) **string { return &e.Provider }, "provider", "service provider"},
	{func(e *engine.Edit) **string { return &e.PIN }, "pin", "4-digit PIN (Spectrum only)"},
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var edit engine.Edit
	for _, f := range editFlags {
		if cmd.Flags().Changed(f.flag) {
			value, _ := cmd.Flags().GetString(f.flag)
			*f.field(&edit) = &value
		}
	}
	if cmd.Flags().Changed("status") {
		text, _ := cmd.Flags().GetString("status")
		status, err := model.ParseStatus(text)
		if err != nil {
			return err
		}
		edit.Status = &status
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if cmd.Flags().Changed("date") {
		text, _ := cmd.Flags().GetString("date")
		d, err := time.ParseInLocation(model.DateOfChargeLayout, text, a.config.Engine.Location)
		if err != nil {
			return fmt.Errorf("invalid --date %q: use YYYY-MM-DD", text)
		}
		edit.DateOfCharge = &d
	}
	if edit.Empty() {
		return fmt.Errorf("nothing to change: pass at least one field flag")
	}

	rec, err := a.desk.Edit(ctx, args[0], edit)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Record %s updated", rec.ID)))
	return cli.RenderRecord(cmd.OutOrStdout(), rec)
}

func deleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a record",
		Long:  `Delete a record. Rows below it move up one position.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runDelete,
	}
	cmd.Flags().BoolP("force", "f", false, "skip confirmation prompt")
	return cmd
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.desk.Find(ctx, args[0])
	if err != nil {
		return err
	}

	if force, _ := cmd.Flags().GetBool("force"); !force {
		if err := cli.RenderRecord(cmd.OutOrStdout(), rec); err != nil {
			return err
		}
		ok, err := cli.NewPrompter(os.Stdin, cmd.OutOrStdout()).Confirm(ctx, "Delete record "+rec.ID+"?")
		if err != nil {
			return err
		}
		if !ok {
			return errAborted
		}
	}

	if _, err := a.desk.Delete(ctx, rec.ID); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Record "+rec.ID+" deleted"))
	return nil
}
