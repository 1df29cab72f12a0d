package gormsource

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/theplant/datahub/criteria"
)

// OrderScope orders a query by sorts, resolving field names against the
// schema of the query model. On PostgreSQL nulls sort first when ascending
// and last when descending, matching in-memory ordering.
func OrderScope(sorts []criteria.SortCriterion) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if db == nil {
			return nil
		}
		if len(sorts) == 0 {
			return db
		}
		stmt, err := parseStatement(db)
		if err != nil {
			db.AddError(err)
			return db
		}
		orderBy, err := orderByClause(stmt, sorts)
		if err != nil {
			db.AddError(err)
			return db
		}
		return db.Order(orderBy)
	}
}

func orderByClause(stmt *gorm.Statement, sorts []criteria.SortCriterion) (clause.OrderBy, error) {
	nullsOrdered := stmt.DB.Dialector != nil && stmt.DB.Dialector.Name() == "postgres"

	columns := make([]clause.OrderByColumn, 0, len(sorts))
	for _, s := range sorts {
		field, ok := lookupField(stmt.Schema, s.FieldName)
		if !ok {
			return clause.OrderBy{}, errors.Errorf("missing field %q in schema", s.FieldName)
		}
		if !nullsOrdered {
			columns = append(columns, clause.OrderByColumn{
				Column: clause.Column{Table: clause.CurrentTable, Name: field.DBName},
				Desc:   s.Desc(),
			})
			continue
		}

		name := stmt.Quote(clause.Column{Table: stmt.Table, Name: field.DBName})
		if s.Desc() {
			name += " DESC NULLS LAST"
		} else {
			name += " NULLS FIRST"
		}
		columns = append(columns, clause.OrderByColumn{
			Column: clause.Column{Name: name, Raw: true},
		})
	}
	return clause.OrderBy{Columns: columns}, nil
}
