package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leonletto/tellersim/internal/journal"
)

func journalCmd() *cobra.Command {
	var (
		db     string
		limit  int
		export string
		since  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print recent traffic from a journal database",
		Long: `Print the most recent frames recorded by 'tellersim serve --journal'.

With --export the whole journal (or the last --since window) is written
to a JSON Lines file instead, oldest first.

Examples:
  tellersim journal --db traffic.db --limit 20
  tellersim journal --db traffic.db --export traffic.jsonl --since 1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if db == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				db = cfg.Journal.Path
			}
			if db == "" {
				return fmt.Errorf("no journal: pass --db or set journal.path")
			}

			ctx := context.Background()
			j, err := journal.OpenReadOnly(ctx, db)
			if err != nil {
				return err
			}
			defer func() { _ = j.Close() }()

			if export != "" {
				var from time.Time
				if since > 0 {
					from = time.Now().Add(-since)
				}
				n, err := j.ExportFile(ctx, export, from)
				if err != nil {
					return err
				}
				if flagJSON {
					return printJSON(map[string]any{"path": export, "records": n})
				}
				fmt.Printf("exported %d record(s) to %s\n", n, export)
				return nil
			}

			records, err := j.Recent(ctx, limit)
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(records)
			}

			// Oldest first reads naturally.
			for i := len(records) - 1; i >= 0; i-- {
				r := records[i]
				arrow := "<-"
				if r.Direction == "incoming" {
					arrow = "->"
				}
				conn := r.ConnID
				if conn == "" {
					conn = "all"
				}
				fmt.Printf("%6d %s %s %s %s\n", r.ID, r.At.Format("2006-01-02 15:04:05.000"), arrow, conn, r.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&db, "db", "", "Journal database path (default journal.path)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Number of rows to print")
	cmd.Flags().StringVar(&export, "export", "", "Write records to this JSON Lines file")
	cmd.Flags().DurationVar(&since, "since", 0, "With --export, only records newer than this")
	return cmd
}
