package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/theplant/datahub"
	"github.com/theplant/datahub/memsource"
	"github.com/theplant/datahub/predicate"
)

type runOptions struct {
	input    string
	page     int
	pageSize int
	all      bool
	saved    string
	savedKey savedKey
}

func (a *app) newRunCmd() *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run --input records.json [query]",
		Short: "Run a query over a JSON array of objects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, o, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVar(&o.input, "input", "", "JSON file holding an array of objects")
	cmd.Flags().IntVar(&o.page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&o.pageSize, "page-size", 0, "page size; 0 uses paging.default_page_size")
	cmd.Flags().BoolVar(&o.all, "all", false, "return every matching record")
	cmd.Flags().StringVar(&o.saved, "saved", "", "apply the filters and sorts of this saved criteria before the query")
	o.savedKey.bind(cmd)
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func (a *app) run(cmd *cobra.Command, o *runOptions, raw string) error {
	ctx := cmd.Context()

	recs, err := loadRecords(o.input)
	if err != nil {
		return err
	}
	columns := inferColumns(recs)
	shape := predicate.ShapeFromColumns(columns)

	req := &datahub.Request{
		Page:     o.page,
		PageSize: o.pageSize,
		GetAll:   o.all,
		RawQuery: raw,
	}
	if o.saved != "" {
		store, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		sc, err := store.Load(ctx, o.savedKey.user, o.savedKey.table, o.saved)
		if err != nil {
			return err
		}
		req.Filters, req.Sorts = sc.Filters, sc.Sorts
	}

	opts := []datahub.Option[record]{
		datahub.WithShape(shape),
		datahub.WithLogger[record](a.logger),
		datahub.WithComplexityLimits[record](a.cfg.Complexity.Limits()),
		datahub.WithMiddlewares(
			datahub.EnsurePageLimits[record](a.cfg.Paging.DefaultPageSize, a.cfg.Paging.MaxPageSize),
			datahub.ValidateColumns(columns),
		),
	}
	if a.cfg.Cache.Size > 0 {
		cache, err := predicate.NewCache(shape, a.cfg.Cache.Size, predicate.WithLogger(a.logger))
		if err != nil {
			return err
		}
		opts = append(opts, datahub.WithCache(cache))
	}

	res, err := datahub.GetPaged(ctx, memsource.New(recs, memsource.WithShape(shape)), req, opts...)
	if err != nil {
		return errors.Wrap(err, "run query")
	}
	return a.writeJSON(cmd, res)
}
