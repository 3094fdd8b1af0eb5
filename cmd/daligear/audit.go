package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/nerrad567/gray-logic-dali/migrations"

	"github.com/nerrad567/gray-logic-dali/internal/audit"
	"github.com/nerrad567/gray-logic-dali/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dali/internal/infrastructure/database"
)

func newAuditCmd(configPath *string) *cobra.Command {
	var (
		gearID string
		change string
		since  time.Duration
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the configuration change trail of a gear",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.ResolvePath(*configPath))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if gearID == "" {
				gearID = cfg.Gear.ID
			}

			db, err := database.Open(database.Config{
				Path:        cfg.Database.Path,
				WALMode:     cfg.Database.WALMode,
				BusyTimeout: cfg.Database.BusyTimeout,
			})
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}

			filter := audit.Filter{
				GearID: gearID,
				Change: change,
				Limit:  limit,
				Offset: offset,
			}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			page, err := audit.NewSQLiteRepository(db.DB).List(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("listing audit entries: %w", err)
			}
			printAudit(cmd.OutOrStdout(), gearID, page)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&gearID, "gear", "", "Gear ID (default: gear.id from the config)")
	f.StringVar(&change, "change", "", "Only show one kind of change (e.g. short_address)")
	f.DurationVar(&since, "since", 0, "Only show changes newer than this (e.g. 24h)")
	f.IntVar(&limit, "limit", audit.DefaultLimit, "Maximum entries to show")
	f.IntVar(&offset, "offset", 0, "Entries to skip")
	return cmd
}

func printAudit(w io.Writer, gearID string, page *audit.Page) {
	fmt.Fprintf(w, "gear %s: %d of %d changes\n", gearID, len(page.Entries), page.Total)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tCHANGE\tOLD\tNEW")
	for _, e := range page.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			e.CreatedAt.Local().Format(time.DateTime),
			e.Change,
			detailValue(e.Old),
			detailValue(e.New))
	}
	tw.Flush() //nolint:errcheck // writer errors surface on the command output
}

// detailValue renders an old/new value as compact JSON, "-" when absent.
func detailValue(v any) string {
	if v == nil {
		return "-"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
