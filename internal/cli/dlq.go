package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/actionflow/pkg/actionflow/deadletter"
)

// DeadLetterOptions holds flags shared by the dlq subcommands.
type DeadLetterOptions struct {
	*RootOptions
	DB string
}

// NewDeadLetterCommand creates the dlq command group.
func NewDeadLetterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeadLetterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect a SQLite dead-letter queue",
	}
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "path to the dead-letter database (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	cmd.AddCommand(newDLQListCommand(opts))
	cmd.AddCommand(newDLQCountCommand(opts))
	cmd.AddCommand(newDLQAckCommand(opts))
	return cmd
}

func newDLQListCommand(opts *DeadLetterOptions) *cobra.Command {
	var eventType string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List failed occurrences, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return withQueue(cmd.Context(), opts, f, func(ctx context.Context, q deadletter.Queue) error {
				var recs []*deadletter.Record
				var err error
				if eventType != "" {
					recs, err = q.ListByType(ctx, eventType, limit)
				} else {
					recs, err = q.List(ctx, limit)
				}
				if err != nil {
					return WrapExitError(ExitFailure, "list dead letters", err)
				}
				f.VerboseLog("%d record(s)", len(recs))
				return f.Success(newRecordList(recs))
			})
		},
	}
	cmd.Flags().StringVar(&eventType, "type", "", "only list records for this event type")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of records (0 = all)")
	return cmd
}

func newDLQCountCommand(opts *DeadLetterOptions) *cobra.Command {
	var byLogic bool

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count failed occurrences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return withQueue(cmd.Context(), opts, f, func(ctx context.Context, q deadletter.Queue) error {
				n, err := q.Count(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "count dead letters", err)
				}
				view := countView{Total: n}
				if byLogic {
					if view.ByLogic, err = q.CountByLogic(ctx); err != nil {
						return WrapExitError(ExitFailure, "count dead letters", err)
					}
				}
				return f.Success(view)
			})
		},
	}
	cmd.Flags().BoolVar(&byLogic, "by-logic", false, "break the count down by logic")
	return cmd
}

func newDLQAckCommand(opts *DeadLetterOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ack <occurrence-id>...",
		Short: "Acknowledge (remove) handled records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return withQueue(cmd.Context(), opts, f, func(ctx context.Context, q deadletter.Queue) error {
				var view ackView
				for _, id := range args {
					err := q.Acknowledge(ctx, id)
					switch {
					case err == nil:
						view.Acknowledged = append(view.Acknowledged, id)
					case errors.Is(err, deadletter.ErrNotFound):
						view.NotFound = append(view.NotFound, id)
					default:
						return WrapExitError(ExitFailure, "acknowledge "+id, err)
					}
				}
				if err := f.Success(view); err != nil {
					return err
				}
				if len(view.NotFound) > 0 {
					return NewExitError(ExitFailure,
						fmt.Sprintf("%d record(s) not found", len(view.NotFound)))
				}
				return nil
			})
		},
	}
}

// withQueue opens the database named by --db and runs fn against it.
// A missing file is a usage error rather than a new empty queue.
func withQueue(ctx context.Context, opts *DeadLetterOptions, f *OutputFormatter, fn func(context.Context, deadletter.Queue) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := os.Stat(opts.DB); err != nil {
		if outErr := f.Error("database_not_found", err.Error()); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "open dead-letter database", err)
	}

	f.VerboseLog("opening %s", opts.DB)
	q, err := deadletter.NewSQLiteQueue(opts.DB)
	if err != nil {
		return WrapExitError(ExitFailure, "open dead-letter database", err)
	}
	defer q.Close()

	return fn(ctx, q)
}

// recordView is the printable form of deadletter.Record. EventData is
// embedded as JSON when it parses, and as a string otherwise.
type recordView struct {
	OccurrenceID string          `json:"occurrence_id"`
	Logic        string          `json:"logic"`
	Stage        string          `json:"stage"`
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventData    json.RawMessage `json:"event_data,omitempty"`
	Error        string          `json:"error"`
	FailedAt     time.Time       `json:"failed_at"`
}

type recordList []recordView

func newRecordList(recs []*deadletter.Record) recordList {
	out := make(recordList, 0, len(recs))
	for _, rec := range recs {
		out = append(out, recordView{
			OccurrenceID: rec.OccurrenceID,
			Logic:        rec.Logic,
			Stage:        rec.Stage,
			EventID:      rec.EventID,
			EventType:    rec.EventType,
			EventData:    rawEventData(rec.EventData),
			Error:        rec.Error,
			FailedAt:     rec.FailedAt.UTC(),
		})
	}
	return out
}

func rawEventData(data []byte) json.RawMessage {
	if len(data) == 0 {
		return nil
	}
	if json.Valid(data) {
		return json.RawMessage(data)
	}
	quoted, _ := json.Marshal(string(data))
	return quoted
}

func (l recordList) WriteText(w io.Writer) error {
	if len(l) == 0 {
		_, err := io.WriteString(w, "no dead letters\n")
		return err
	}
	var b strings.Builder
	for _, r := range l {
		fmt.Fprintf(&b, "%s  %s  %s/%s  %s  %s\n",
			r.FailedAt.Format(time.RFC3339), r.OccurrenceID, r.Logic, r.Stage, r.EventType, r.Error)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

type countView struct {
	Total   int            `json:"total"`
	ByLogic map[string]int `json:"by_logic,omitempty"`
}

func (v countView) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%d dead letter(s)\n", v.Total)
	names := make([]string, 0, len(v.ByLogic))
	for name := range v.ByLogic {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(&b, "  %s: %d\n", name, v.ByLogic[name])
	}
	_, err := io.WriteString(w, b.String())
	return err
}

type ackView struct {
	Acknowledged []string `json:"acknowledged"`
	NotFound     []string `json:"not_found,omitempty"`
}

func (v ackView) WriteText(w io.Writer) error {
	var b strings.Builder
	for _, id := range v.Acknowledged {
		fmt.Fprintf(&b, "acknowledged %s\n", id)
	}
	for _, id := range v.NotFound {
		fmt.Fprintf(&b, "not found %s\n", id)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
