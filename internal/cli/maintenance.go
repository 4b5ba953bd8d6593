package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacentio/itinera/internal/settings"
	"github.com/jacentio/itinera/kv/dynamokv"
	"github.com/jacentio/itinera/tenant"
)

func newPrefixCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prefix [tenant-id]",
		Short: "Print the key prefix of a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			current := tenant.Encode(args[0])
			legacy := tenant.LegacyEncode(args[0])
			fmt.Fprintf(a.out, "prefix: %s\n", current)
			if legacy != current {
				fmt.Fprintf(a.out, "legacy: %s\n", legacy)
			}
			return nil
		},
	}
}

func newReindexCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild a tenant's trip index from a full scan",
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
			ids, err := s.Reindex(cmd.Context(), tenantID)
			if err != nil {
				return err
			}
			a.logger.Info("trip index rebuilt", "tenantPrefix", tenant.Encode(tenantID), "trips", len(ids))
			a.printLines(ids)
			return nil
		},
	}
}

func newPendingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List trips pending deletion",
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
			ids, err := s.Pending(cmd.Context(), tenantID)
			if err != nil {
				return err
			}
			a.printLines(ids)
			return nil
		},
	}
}

func newLegacyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "legacy",
		Short: "Inspect and migrate keys under the legacy tenant prefix",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "keys",
		Short: "List keys left under the legacy prefix",
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
			keys, err := s.LegacyKeys(cmd.Context(), tenantID)
			if err != nil {
				return err
			}
			a.printLines(keys)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Copy trips and comments to the current prefix",
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
			copied, err := s.MigrateLegacy(cmd.Context(), tenantID)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "copied %d trips\n", copied)
			return nil
		},
	})
	return cmd
}

func newCreateTableCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create-table",
		Short: "Provision the DynamoDB table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Backend != settings.BackendDynamoDB {
				return errors.New("create-table needs the dynamodb backend")
			}
			client, err := settings.DynamoClient(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			if err := dynamokv.CreateTable(cmd.Context(), client, a.cfg.DynamoDB.Table); err != nil {
				return err
			}
			a.logger.Info("table ready", "table", a.cfg.DynamoDB.Table)
			return nil
		},
	}
}
