package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/theplant/datahub/criteria"
	"github.com/theplant/datahub/query"
	"github.com/theplant/datahub/savedcriteria"
)

// savedKey selects the saved criteria of one user and table.
type savedKey struct {
	user  string
	table string
}

func (k *savedKey) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&k.user, "user", "", "owner of the saved criteria; empty means "+savedcriteria.DefaultUser)
	cmd.Flags().StringVar(&k.table, "table", "", "table the saved criteria belong to")
}

func (a *app) openStore(ctx context.Context) (*savedcriteria.Store, error) {
	if a.cfg.Database.DSN == "" {
		return nil, errors.New("database.dsn must be set to use saved criteria")
	}
	db, err := gorm.Open(postgres.Open(a.cfg.Database.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	store := savedcriteria.New(db, savedcriteria.WithLogger(a.logger))
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (a *app) newSavedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saved",
		Short: "Manage saved criteria",
	}
	cmd.AddCommand(
		a.newSavedListCmd(),
		a.newSavedLoadCmd(),
		a.newSavedSaveCmd(),
		a.newSavedDeleteCmd(),
	)
	return cmd
}

func (a *app) newSavedListCmd() *cobra.Command {
	k := &savedKey{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved criteria names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			names, err := store.ListNames(cmd.Context(), k.user, k.table)
			if err != nil {
				return err
			}
			for _, name := range names {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
	k.bind(cmd)
	return cmd
}

func (a *app) newSavedLoadCmd() *cobra.Command {
	k := &savedKey{}
	cmd := &cobra.Command{
		Use:   "load <name>",
		Short: "Print saved criteria as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			sc, err := store.Load(cmd.Context(), k.user, k.table, args[0])
			if err != nil {
				return err
			}
			data, err := criteria.Marshal(sc)
			if err != nil {
				return err
			}
			return writeLine(cmd, data)
		},
	}
	k.bind(cmd)
	return cmd
}

func (a *app) newSavedSaveCmd() *cobra.Command {
	k := &savedKey{}
	cmd := &cobra.Command{
		Use:   "save <name> <query>",
		Short: "Parse a query and save its filters and sorts under name",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.Join(args[1:], " ")
			sc, err := query.NewParser(query.WithLogger(a.logger)).Parse(raw)
			if err != nil {
				return err
			}
			if err := criteria.CheckComplexity(sc.Filters, sc.Sorts, a.cfg.Complexity.Limits()); err != nil {
				return err
			}
			sc.Name = args[0]

			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			return store.Save(cmd.Context(), k.user, k.table, sc)
		},
	}
	k.bind(cmd)
	return cmd
}

func (a *app) newSavedDeleteCmd() *cobra.Command {
	k := &savedKey{}
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete saved criteria",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			return store.Delete(cmd.Context(), k.user, k.table, args[0])
		},
	}
	k.bind(cmd)
	return cmd
}
