package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"alcyxob/run-coach/internal/storage"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var snapshotVersion int64

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <planId>",
	Short: "List or print archived versions of a plan",
	Long: `Without --version, lists the archived versions of the plan. With --version,
prints that snapshot as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runSnapshot,
}

func init() {
	snapshotCmd.Flags().Int64Var(&snapshotVersion, "version", 0, "version to print")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	planID, err := primitive.ObjectIDFromHex(args[0])
	if err != nil {
		return fmt.Errorf("invalid plan id %q", args[0])
	}

	ctx, cancel := commandContext(cmd, time.Minute)
	defer cancel()
	archive, err := openArchive(ctx)
	if err != nil {
		return fmt.Errorf("open snapshot archive: %w", err)
	}

	out := cmd.OutOrStdout()
	if snapshotVersion == 0 {
		versions, err := archive.Versions(ctx, planID)
		if err != nil {
			return err
		}
		if len(versions) == 0 {
			fmt.Fprintf(out, "no snapshots for %s\n", planID.Hex())
			return nil
		}
		for _, v := range versions {
			fmt.Fprintf(out, "v%d\t%s\n", v, storage.SnapshotKey(planID, v))
		}
		return nil
	}

	snap, err := archive.Fetch(ctx, planID, snapshotVersion)
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		return fmt.Errorf("plan %s has no snapshot v%d", planID.Hex(), snapshotVersion)
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
