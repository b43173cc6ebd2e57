package cli

import (
	"errors"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"droste-effect/internal/journal"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Journal string
	Limit   int
}

func newHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs or show one in detail",
		Long: `List runs recorded in the SQLite journal, newest first. With a run id,
show that run with its video artifacts.

Example:
  droste history --journal runs.db
  droste history --journal runs.db 01890a5d-ac96-774b-bcce-b302099a8057`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.Journal
			if path == "" {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				path = cfg.Settings.JournalPath
			}
			if path == "" {
				return usageError("no journal configured: pass --journal or set settings.journal_path")
			}

			j, err := journal.Open(path)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open journal", err)
			}
			defer j.Close()

			if len(args) == 1 {
				return showRun(cmd, j, args[0])
			}
			return listRuns(cmd, j, opts.Limit)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "SQLite run journal (defaults to settings.journal_path)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "l", 20, "maximum number of runs to list")
	return cmd
}

func listRuns(cmd *cobra.Command, j *journal.Journal, limit int) error {
	runs, err := j.List(cmd.Context(), limit)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read journal", err)
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		pterm.Info.WithWriter(out).Println("No runs recorded")
		return nil
	}

	data := pterm.TableData{{"ID", "Started", "Source", "Frames", "Status", "Output"}}
	for _, r := range runs {
		data = append(data, []string{
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Source,
			strconv.Itoa(r.Frames),
			r.Status,
			r.Output,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).WithWriter(out).Render()
}

func showRun(cmd *cobra.Command, j *journal.Journal, id string) error {
	run, err := j.Get(cmd.Context(), id)
	if errors.Is(err, journal.ErrNotFound) {
		return WrapExitError(ExitCommandError, "unknown run", err)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read journal", err)
	}

	out := cmd.OutOrStdout()
	rows := pterm.TableData{
		{"ID", run.ID},
		{"Source", run.Source},
		{"Output", run.Output},
		{"Started", run.StartedAt.Local().Format("2006-01-02 15:04:05")},
		{"Duration", formatDuration(run.FinishedAt.Sub(run.StartedAt))},
		{"Shrink factor", printer.Sprintf("%v", run.Shrink)},
		{"Max iterations", printer.Sprintf("%d", run.Iterations)},
		{"Rotation angle", printer.Sprintf("%v°", run.Rotation)},
		{"Resampling", run.Resampling},
		{"Frames", printer.Sprintf("%d", run.Frames)},
		{"Termination", run.Termination},
		{"Status", run.Status},
	}
	if run.Error != "" {
		rows = append(rows, []string{"Error", run.Error})
	}
	if err := pterm.DefaultTable.WithData(rows).WithWriter(out).Render(); err != nil {
		return err
	}

	if len(run.Artifacts) == 0 {
		return nil
	}
	arts := pterm.TableData{{"Video", "Path", "Frames", "OK", "Error"}}
	for _, a := range run.Artifacts {
		arts = append(arts, []string{a.Kind, a.Path, strconv.Itoa(a.Frames), strconv.FormatBool(a.OK), a.Error})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(arts).WithWriter(out).Render()
}
