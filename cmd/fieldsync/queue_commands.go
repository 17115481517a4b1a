package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fieldsync/internal/api"
	"fieldsync/internal/daemon"
	"fieldsync/internal/ipc"
	"fieldsync/internal/queue"
	"fieldsync/internal/seizure"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the offline seizure queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueEnqueueCommand(ctx))
	queueCmd.AddCommand(newQueueSyncCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueDiscardCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued seizures in submission order",
		RunE: func(cmd *cobra.Command, args []string) error {
			var items []api.QueueItem
			err := ctx.withClientOrLocal(cmd.Context(),
				func(client *ipc.Client) error {
					resp, err := client.List(statuses)
					if err != nil {
						return err
					}
					items = resp.Items
					return nil
				},
				func(engine *queue.Engine) error {
					entries, err := daemon.FilterEntries(engine.Items(), statuses)
					if err != nil {
						return err
					}
					items = api.FromEntries(entries)
					return nil
				},
			)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, api.QueueListResponse{Items: items})
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(queueListColumns(), buildQueueListRows(items)))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (pending, failed, rejected)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <local-id>",
		Short: "Show a queued seizure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var item api.QueueItem
			err := ctx.withClientOrLocal(cmd.Context(),
				func(client *ipc.Client) error {
					resp, err := client.Show(args[0])
					if err != nil {
						return err
					}
					item = resp.Item
					return nil
				},
				func(engine *queue.Engine) error {
					entry, ok := engine.Get(args[0])
					if !ok {
						return fmt.Errorf("%w: %s", daemon.ErrNotFound, args[0])
					}
					item = api.FromEntry(entry)
					return nil
				},
			)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, api.QueueItemResponse{Item: item})
			}
			printQueueItem(cmd.OutOrStdout(), item)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

type enqueueFlags struct {
	file     string
	species  string
	part     string
	kind     string
	reason   string
	quantity int
	unit     string
	notes    string
	datetime string
	photos   []string
}

func (f enqueueFlags) payload(stdin io.Reader) (json.RawMessage, error) {
	if strings.TrimSpace(f.file) != "" {
		var data []byte
		var err error
		if f.file == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(f.file)
		}
		if err != nil {
			return nil, fmt.Errorf("read seizure file: %w", err)
		}
		return data, nil
	}
	record := seizure.Seizure{
		Species:     seizure.Species(f.species),
		SeizedPart:  seizure.Part(f.part),
		SeizureType: seizure.Type(f.kind),
		Reason:      f.reason,
		Quantity:    f.quantity,
		Unit:        seizure.Unit(f.unit),
		Notes:       f.notes,
		Photos:      f.photos,
	}
	if strings.TrimSpace(f.datetime) != "" {
		at, err := time.Parse(time.RFC3339, strings.TrimSpace(f.datetime))
		if err != nil {
			return nil, fmt.Errorf("parse --datetime: %w", err)
		}
		record.SeizureDatetime = at
	}
	return json.Marshal(record)
}

func newQueueEnqueueCommand(ctx *commandContext) *cobra.Command {
	var flags enqueueFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a seizure record for sync",
		Example: `  fieldsync queue enqueue --species bovine --part liver --type partial \
    --reason Distomatose --quantity 3 --unit kg
  fieldsync queue enqueue --file seizure.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := flags.payload(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Enqueue(payload)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Fields) > 0 {
					if asJSON {
						_ = writeJSON(cmd, api.ErrorResponse{Error: "invalid seizure", Fields: resp.Fields})
					} else {
						for _, field := range resp.Fields {
							fmt.Fprintf(out, "  %s: %s\n", field.Field, field.Message)
						}
					}
					return errors.New("seizure not queued: validation failed")
				}
				if resp.Item == nil {
					return errors.New("missing enqueue response")
				}
				if asJSON {
					return writeJSON(cmd, api.QueueItemResponse{Item: *resp.Item})
				}
				fmt.Fprintf(out, "Queued %s (%s)\n", resp.Item.LocalID, fallback(resp.Item.Summary, "seizure"))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "Read the seizure JSON from a file (- for stdin)")
	cmd.Flags().StringVar(&flags.species, "species", "", "Species ("+joinEnum(seizure.AllSpecies())+")")
	cmd.Flags().StringVar(&flags.part, "part", "", "Seized part ("+joinEnum(seizure.AllParts())+")")
	cmd.Flags().StringVar(&flags.kind, "type", "", "Seizure type ("+joinEnum(seizure.AllTypes())+")")
	cmd.Flags().StringVar(&flags.reason, "reason", "", "Reason for the seizure")
	cmd.Flags().IntVar(&flags.quantity, "quantity", 0, "Seized quantity")
	cmd.Flags().StringVar(&flags.unit, "unit", "", "Quantity unit ("+joinEnum(seizure.AllUnits())+")")
	cmd.Flags().StringVar(&flags.notes, "notes", "", "Free-form notes")
	cmd.Flags().StringVar(&flags.datetime, "datetime", "", "Seizure time as RFC3339 (defaults to now)")
	cmd.Flags().StringArrayVar(&flags.photos, "photo", nil, "Photo reference (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.MarkFlagsMutuallyExclusive("file", "species")
	return cmd
}

func newQueueSyncCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a sync pass now and wait for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Sync()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if resp.Attempted == 0 {
					fmt.Fprintln(out, "Nothing to sync")
					return nil
				}
				fmt.Fprintf(out, "Sync finished: %s\n", describeSync(*resp))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [local-id...]",
		Short: "Reset failed seizures to pending (all failed when no ids are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Retry(args)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if resp.Updated == 0 {
					fmt.Fprintln(out, "No failed seizures to retry")
					return nil
				}
				fmt.Fprintf(out, "Reset %d seizure(s) to pending\n", resp.Updated)
				return nil
			})
		},
	}
}

func newQueueDiscardCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "discard <local-id...>",
		Short: "Remove seizures from the queue without syncing them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Discard(args)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Discarded %d seizure(s)\n", resp.Removed)
				return nil
			})
		},
	}
}

func joinEnum[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
