package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/chargedesk/internal/cli"
)

// cacheTable is the local table that mirrors the record store.
const cacheTable = "records_cache"

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local record cache",
		Long: `Manage the local SQLite cache of records.

Pull copies the record store into the cache so it can be browsed offline.
Push replays cached records that the record store is missing, for example
submissions taken while Google Sheets was unreachable.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the local database schema",
		RunE:  runCacheMigrate,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "pull",
		Short: "Copy the record store into the local cache",
		RunE:  runCachePull,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "push",
		Short: "Append cached records the record store is missing",
		RunE:  runCachePush,
	})

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Drop processed records older than the cache retention from the cache",
		RunE:  runCachePrune,
	}
	prune.Flags().Duration("older-than", 0, "override cache.retention_minutes (e.g. 2h)")
	cmd.AddCommand(prune)

	return cmd
}

func runCacheMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	version, err := store.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Database at %s is on schema version %d", a.config.DatabasePath, version)))
	return nil
}

func runCachePull(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	n, err := a.desk.Cache(ctx, store.Table(cacheTable))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Cached %d new records", n)))
	return nil
}

func runCachePush(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	cache := store.Table(cacheTable)
	total, err := cache.Count(ctx)
	if err != nil {
		return err
	}
	if total == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Cache is empty, nothing to push"))
		return nil
	}

	handler := cli.NewInterruptHandler(cmd.OutOrStdout())
	ctx = handler.HandleInterrupts(ctx, "Push", "desk cache push")

	bar := cli.NewProgressBar(os.Stderr, total, "Pushing records")
	result, err := a.desk.Push(ctx, cache, cli.Stepper(bar))
	_ = bar.Finish()
	if err != nil {
		if handler.WasInterrupted() {
			slog.Info("Push stopped early", "pushed", result.Pushed)
			return nil
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
		"Pushed %d records (%d already present, %d unreadable)",
		result.Pushed, result.Duplicates, result.Unreadable)))
	return nil
}

func runCachePrune(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	retention := a.config.CacheRetention
	if older, _ := cmd.Flags().GetDuration("older-than"); older > 0 {
		retention = older
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	n, err := store.Table(cacheTable).Prune(ctx, time.Now().Add(-retention), a.desk.Layout())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Pruned %d processed records older than %s", n, retention)))
	return nil
}
