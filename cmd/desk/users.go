package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/chargedesk/internal/auth"
	"github.com/Veraticus/chargedesk/internal/cli"
)

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage desk user accounts",
	}

	signup := &cobra.Command{
		Use:   "signup <id>",
		Short: "Create a manager or agent account",
		Args:  cobra.ExactArgs(1),
		RunE:  runSignUp,
	}
	signup.Flags().String("role", "", "account role (Manager, Agent)")
	signup.Flags().String("agent", "", "agent name, required for Agent accounts")
	_ = signup.MarkFlagRequired("role")

	cmd.AddCommand(signup)
	cmd.AddCommand(&cobra.Command{
		Use:   "login <id>",
		Short: "Check a user's password",
		Args:  cobra.ExactArgs(1),
		RunE:  runLogin,
	})
	return cmd
}

func runSignUp(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	roleText, _ := cmd.Flags().GetString("role")
	role, err := auth.ParseRole(roleText)
	if err != nil {
		return err
	}
	agent, _ := cmd.Flags().GetString("agent")

	password, err := cli.NewPrompter(os.Stdin, cmd.OutOrStdout()).Ask(ctx, "Password", "")
	if err != nil {
		return err
	}

	profile, err := a.users.SignUp(ctx, auth.SignUpRequest{
		ID:        args[0],
		Password:  password,
		Role:      role,
		AgentName: agent,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created %s account %s", profile.Role, profile.ID)))
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	password, err := cli.NewPrompter(os.Stdin, cmd.OutOrStdout()).Ask(ctx, "Password", "")
	if err != nil {
		return err
	}
	profile, err := a.users.Login(ctx, args[0], password)
	if err != nil {
		return err
	}

	who := string(profile.Role)
	if profile.AgentName != "" {
		who += " (" + profile.AgentName + ")"
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Logged in as "+profile.ID+", "+who))
	return nil
}
