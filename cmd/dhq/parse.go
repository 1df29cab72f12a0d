package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"

	"github.com/theplant/datahub/criteria"
	"github.com/theplant/datahub/query"
)

func (a *app) newParseCmd() *cobra.Command {
	var canonical bool
	cmd := &cobra.Command{
		Use:   "parse <query>",
		Short: "Print the criteria a query parses to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.Join(args, " ")
			sc, err := query.NewParser(query.WithLogger(a.logger)).Parse(raw)
			if err != nil {
				return err
			}

			if canonical {
				q, err := query.Format(sc)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), q)
				return err
			}

			data, err := criteria.Marshal(sc)
			if err != nil {
				return err
			}
			if data, err = sjson.SetBytes(data, "rawQuery", raw); err != nil {
				return err
			}
			complexity := criteria.CalculateComplexity(sc.Filters, sc.Sorts)
			if data, err = sjson.SetBytes(data, "complexity", complexity); err != nil {
				return err
			}
			if limits := a.cfg.Complexity.Limits(); limits != nil {
				if cerr := criteria.CheckComplexity(sc.Filters, sc.Sorts, limits); cerr != nil {
					if data, err = sjson.SetBytes(data, "complexity.exceeded", cerr.Error()); err != nil {
						return err
					}
				}
			}
			return writeLine(cmd, data)
		},
	}
	cmd.Flags().BoolVar(&canonical, "canonical", false, "print the query in canonical form instead of JSON")
	return cmd
}
