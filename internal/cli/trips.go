package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jacentio/itinera/store"
)

func newCreateCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Store a new trip and print its ID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := a.tenant()
			if err != nil {
				return err
			}
			doc, err := readDocument(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			id, err := s.Create(cmd.Context(), tenantID, doc)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Trip JSON file, - for stdin")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get [trip-id]",
		Short: "Print a trip document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := a.tenant()
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			doc, err := s.Get(cmd.Context(), tenantID, args[0])
			if err != nil {
				return err
			}
			return a.printJSON(doc)
		},
	}
}

func newPutCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "put [trip-id]",
		Short: "Create or replace a trip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := a.tenant()
			if err != nil {
				return err
			}
			doc, err := readDocument(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			return s.Put(cmd.Context(), tenantID, args[0], doc)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Trip JSON file, - for stdin")
	return cmd
}

func newPatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "patch [trip-id] [updates-json]",
		Short: "Apply path updates to a trip",
		Long: `Apply path updates to a trip. Updates are a JSON object mapping paths to
values, for example:

  itinera patch -t kim 3f2c... '{"meta.title":"Porto","days[0].items[1].status":"booked"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := a.tenant()
			if err != nil {
				return err
			}
			var updates map[string]any
			if err := json.Unmarshal([]byte(args[1]), &updates); err != nil {
				return fmt.Errorf("parse updates: %w", err)
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			doc, err := s.Patch(cmd.Context(), tenantID, args[0], updates)
			if err != nil {
				return err
			}
			return a.printJSON(doc)
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [trip-id]",
		Short: "Delete a trip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := a.tenant()
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			return s.Delete(cmd.Context(), tenantID, args[0])
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List a tenant's visible trip IDs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := a.tenant()
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			ids, err := s.List(cmd.Context(), tenantID)
			if err != nil {
				return err
			}
			a.printLines(ids)
			return nil
		},
	}
}

func newSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary [trip-id]",
		Short: "Print trip summaries, or one trip's summary",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := a.tenant()
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				sum, err := s.Summary(cmd.Context(), tenantID, args[0])
				if err != nil {
					return err
				}
				return a.printJSON(sum)
			}
			sums, err := s.Summaries(cmd.Context(), tenantID)
			if err != nil {
				return err
			}
			if sums == nil {
				sums = []*store.Summary{}
			}
			return a.printJSON(sums)
		},
	}
}

// readDocument decodes a trip from file, or from stdin when file is "-".
func readDocument(stdin io.Reader, file string) (store.Document, error) {
	r := stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var doc store.Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse trip: %w", err)
	}
	return doc, nil
}
