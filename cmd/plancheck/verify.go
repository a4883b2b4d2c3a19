package main

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"alcyxob/run-coach/internal/grid"
	"alcyxob/run-coach/internal/service"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

var (
	verifyPlanID      string
	verifyAll         bool
	verifyRepair      bool
	verifyConcurrency int
)

// errInconsistent makes the exit status non-zero when repairs remain.
var errInconsistent = errors.New("inconsistent plans found")

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Recompute week grids and report plans that need repair",
	Long: `Loads each plan, rebuilds its week grid and lists every repair the
normalizer had to make. With --repair, dates missing from the day list are
written back as rest days through the version-checked commit path.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyPlanID, "plan", "", "plan id to check")
	verifyCmd.Flags().BoolVar(&verifyAll, "all", false, "check every stored plan")
	verifyCmd.Flags().BoolVar(&verifyRepair, "repair", false, "persist synthesized rest days")
	verifyCmd.Flags().IntVar(&verifyConcurrency, "concurrency", 4, "plans checked in parallel")
}

func runVerify(cmd *cobra.Command, args []string) error {
	if (verifyPlanID == "") == !verifyAll {
		return errors.New("exactly one of --plan or --all is required")
	}

	ctx, cancel := commandContext(cmd, 10*time.Minute)
	defer cancel()

	repos, closeRepos, err := openRepositories(ctx)
	if err != nil {
		return err
	}
	defer closeRepos()
	plans := service.NewPlanService(repos.Plans, repos.Profiles, logger)

	var ids []primitive.ObjectID
	if verifyAll {
		if ids, err = repos.Plans.ListIDs(ctx); err != nil {
			return fmt.Errorf("list plans: %w", err)
		}
	} else {
		id, err := primitive.ObjectIDFromHex(verifyPlanID)
		if err != nil {
			return fmt.Errorf("invalid plan id %q", verifyPlanID)
		}
		ids = []primitive.ObjectID{id}
	}

	var (
		mu      sync.Mutex
		reports []*service.CheckReport
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(verifyConcurrency, 1))
	for _, id := range ids {
		g.Go(func() error {
			report, err := plans.CheckPlan(gctx, id, verifyRepair)
			if err != nil {
				return fmt.Errorf("plan %s: %w", id.Hex(), err)
			}
			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].PlanID.Hex() < reports[j].PlanID.Hex() })
	out := cmd.OutOrStdout()
	inconsistent := 0
	for _, r := range reports {
		missing, stray := countRepairs(r.Repairs)
		switch {
		case len(r.Repairs) == 0:
			fmt.Fprintf(out, "%s v%d ok\n", r.PlanID.Hex(), r.Version)
			continue
		case r.Err != nil:
			fmt.Fprintf(out, "%s v%d repair failed: %v\n", r.PlanID.Hex(), r.Version, r.Err)
			inconsistent++
		case r.Repaired:
			fmt.Fprintf(out, "%s repaired, now v%d\n", r.PlanID.Hex(), r.Version)
		case missing > 0:
			fmt.Fprintf(out, "%s v%d needs %d repairs\n", r.PlanID.Hex(), r.Version, missing)
			inconsistent++
		}
		// Stray days lie outside the plan; writing rest days cannot fix them.
		if stray > 0 {
			fmt.Fprintf(out, "%s v%d has %d days outside the plan range\n", r.PlanID.Hex(), r.Version, stray)
		}
		for _, rep := range r.Repairs {
			fmt.Fprintf(out, "  %s %s\n", rep.Date, rep.Kind)
		}
	}
	fmt.Fprintf(out, "%d plans checked, %d inconsistent\n", len(reports), inconsistent)
	if inconsistent > 0 {
		return errInconsistent
	}
	return nil
}

func countRepairs(repairs []grid.Repair) (missing, stray int) {
	for _, r := range repairs {
		switch r.Kind {
		case grid.RepairMissingDay:
			missing++
		case grid.RepairStrayDay:
			stray++
		}
	}
	return missing, stray
}
