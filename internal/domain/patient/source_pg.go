package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGSource reads records once from the patient_record table. It never
// writes.
type PGSource struct {
	db querier
}

func NewPGSource(db querier) *PGSource {
	return &PGSource{db: db}
}

const recordCols = `id::text, name, avatar, website, description, created_at`

func (s *PGSource) Fetch(ctx context.Context) ([]Record, error) {
	rows, err := s.db.Query(ctx, `SELECT `+recordCols+` FROM patient_record ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query patient_record: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patient_record: %w", err)
	}
	return records, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		r                            Record
		avatar, website, description *string
		createdAt                    *time.Time
	)
	if err := row.Scan(&r.ID, &r.Name, &avatar, &website, &description, &createdAt); err != nil {
		return Record{}, fmt.Errorf("scan patient_record: %w", err)
	}
	if avatar != nil {
		r.Avatar = *avatar
	}
	if website != nil {
		r.Website = *website
	}
	if description != nil {
		r.Description = *description
	}
	if createdAt != nil {
		r.CreatedAt = Timestamp(*createdAt)
	}
	return r, nil
}
