package main

import (
	"fmt"
	"strings"
	"time"

	"alcyxob/run-coach/internal/dates"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"
)

var (
	resolveRef  string
	resolveZone string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <message...>",
	Short: "Show how date phrases in a message resolve",
	Long: `Scans the message for date phrases ("tomorrow", "next friday", "the 14th")
and prints the calendar date each resolves to, or the candidates when the phrase
is ambiguous.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveRef, "ref", "", "reference date (YYYY-MM-DD), default today")
	resolveCmd.Flags().StringVar(&resolveZone, "tz", "", "IANA time zone, default engine.default_timezone")
}

func runResolve(cmd *cobra.Command, args []string) error {
	loc := cfg.Engine.Location()
	if resolveZone != "" {
		l, err := time.LoadLocation(resolveZone)
		if err != nil {
			return fmt.Errorf("unknown time zone %q", resolveZone)
		}
		loc = l
	}
	today := dates.Today(time.Now(), loc)
	if resolveRef != "" {
		d, err := civil.ParseDate(resolveRef)
		if err != nil {
			return fmt.Errorf("invalid --ref: %w", err)
		}
		today = d
	}

	message := strings.Join(args, " ")
	found := dates.AnnotateOn(message, today)
	if len(found) == 0 {
		if res, ok := dates.ResolveOn(message, today); ok {
			found = append(found, res)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "reference %s (%s)\n", today, loc)
	if len(found) == 0 {
		fmt.Fprintln(out, "no date phrases found")
		return nil
	}
	for _, r := range found {
		if !r.Ambiguous {
			fmt.Fprintf(out, "%q -> %s\n", r.Phrase, r.Date)
			continue
		}
		candidates := make([]string, len(r.Candidates))
		for i, c := range r.Candidates {
			candidates[i] = c.String()
		}
		fmt.Fprintf(out, "%q -> ambiguous: %s\n", r.Phrase, strings.Join(candidates, ", "))
	}
	return nil
}
