package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/intromatch-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(types.Models()...)
}

// TableNames returns the table of every migrated model, children first.
func TableNames(db *gorm.DB) ([]string, error) {
	models := types.Models()
	out := make([]string, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(models[i]); err != nil {
			return nil, fmt.Errorf("parse model %T: %w", models[i], err)
		}
		out = append(out, stmt.Schema.Table)
	}
	return out, nil
}

// TruncateAll empties every application table and returns their names.
func TruncateAll(ctx context.Context, db *gorm.DB) ([]string, error) {
	tables, err := TableNames(db)
	if err != nil {
		return nil, err
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range tables {
			var q string
			if tx.Dialector.Name() == "postgres" {
				q = fmt.Sprintf(`TRUNCATE TABLE %q CASCADE`, t)
			} else {
				q = fmt.Sprintf(`DELETE FROM %q`, t)
			}
			if err := tx.Exec(q).Error; err != nil {
				return fmt.Errorf("truncate %s: %w", t, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tables, nil
}
