package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/worktrack/internal/output"
	"github.com/blackwell-systems/worktrack/internal/store"
	"github.com/blackwell-systems/worktrack/internal/transmit"
)

var (
	outboxDrain bool
	outboxPurge bool
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect, drain or purge undelivered payloads",
	Long: `When outbox.enabled is set, payloads that could not be delivered are
parked in the local database and replayed after the next successful send.
This command lists them, replays them now, or discards them.

Examples:
  worktrack outbox            # list parked payloads
  worktrack outbox --drain    # replay them oldest first
  worktrack outbox --purge    # discard them`,
	RunE: runOutbox,
}

func init() {
	outboxCmd.Flags().BoolVar(&outboxDrain, "drain", false, "Replay parked payloads now")
	outboxCmd.Flags().BoolVar(&outboxPurge, "purge", false, "Discard all parked payloads")
	outboxCmd.MarkFlagsMutuallyExclusive("drain", "purge")
	rootCmd.AddCommand(outboxCmd)
}

func runOutbox(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	ctx := cmd.Context()
	ob := db.Outbox()

	switch {
	case outboxPurge:
		n, err := ob.Purge(ctx)
		if err != nil {
			return fmt.Errorf("purging outbox: %w", err)
		}
		fmt.Printf(" Discarded %d payload(s).\n", n)
		return nil

	case outboxDrain:
		sink, err := newSink(cfg)
		if err != nil {
			return err
		}
		tr := transmit.New(transmit.Options{
			Sink:    sink,
			Outbox:  ob,
			Timeout: cfg.Collector.Timeout,
			Logger:  NewLogger(cfg.Log, os.Stderr),
		})
		defer func() { _ = tr.Close() }()

		n, derr := tr.Drain(ctx, sessionFrom(cfg))
		fmt.Printf(" Replayed %d payload(s).\n", n)
		if derr != nil {
			return fmt.Errorf("drain stopped: %w", derr)
		}
		return nil
	}

	rows, err := ob.List(ctx)
	if err != nil {
		return fmt.Errorf("listing outbox: %w", err)
	}
	if flagJSON {
		return writeJSON(rows)
	}

	fmt.Println(output.Section("Outbox"))
	fmt.Println()
	if len(rows) == 0 {
		fmt.Println(" Outbox is empty.")
		return nil
	}
	tbl := output.NewTable("ID", "Kind", "Bytes", "Queued", "Attempts", "Last error").AlignRight(0, 2, 4)
	for _, r := range rows {
		tbl.AddRow(
			fmt.Sprintf("%d", r.ID),
			r.Kind,
			fmt.Sprintf("%d", r.Bytes),
			r.QueuedAt.Local().Format("01-02 15:04:05"),
			fmt.Sprintf("%d", r.Attempts),
			r.LastError,
		)
	}
	tbl.Print()
	if !cfg.Outbox.Enabled {
		fmt.Println()
		fmt.Println(output.StyleMuted.Render(" outbox.enabled is off; new failures are not being parked."))
	}
	return nil
}
