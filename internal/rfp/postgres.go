package rfp

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"rfphub.org/internal/auth"
	"rfphub.org/internal/ids"
)

var _ Service = (*PGStore)(nil)

// PGStore implements Service using PostgreSQL.
type PGStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPGStore wraps an existing connection pool, shared with the user
// directory.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db, now: time.Now}
}

const rfpColumns = `id, title, client, department, status, value, currency, owner_id, created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, r *RFP) (RFP, error) {
	if err := validateNew(r); err != nil {
		return RFP{}, err
	}
	rec := *r
	rec.ID = ids.New()
	row := s.db.QueryRowContext(ctx,
		`insert into rfps(id, title, client, department, status, value, currency, owner_id)
		 values($1,$2,$3,$4,$5,$6,$7,$8)
		 returning `+rfpColumns,
		rec.ID, rec.Title, rec.Client, rec.Department, rec.Status, rec.Value, rec.Currency, rec.OwnerID,
	)
	return scanRFP(row)
}

func (s *PGStore) Get(ctx context.Context, id string) (RFP, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+rfpColumns+` from rfps where id=$1`, id)
	return scanRFP(row)
}

func (s *PGStore) List(ctx context.Context, f Filter) ([]RFP, error) {
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`select `+rfpColumns+` from rfps
		 where ($1 = '' or department = $1)
		   and ($2 = '' or status = $2)
		 order by created_at desc, id desc
		 limit $3`,
		string(f.Department), string(f.Status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RFP
	for rows.Next() {
		var r RFP
		if err := rows.Scan(&r.ID, &r.Title, &r.Client, &r.Department, &r.Status,
			&r.Value, &r.Currency, &r.OwnerID, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) Update(ctx context.Context, id string, upd Update) (RFP, error) {
	merged, err := s.Get(ctx, id)
	if err != nil {
		return RFP{}, err
	}
	if err := applyUpdate(&merged, upd); err != nil {
		return RFP{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`update rfps set title=$2, client=$3, department=$4, status=$5, value=$6, currency=$7, updated_at=now()
		 where id=$1
		 returning `+rfpColumns,
		id, merged.Title, merged.Client, merged.Department, merged.Status, merged.Value, merged.Currency,
	)
	return scanRFP(row)
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from rfps where id=$1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) Summary(ctx context.Context) (Summary, error) {
	now := s.now().UTC()
	sum := newSummary(now)

	rows, err := s.db.QueryContext(ctx,
		`select status, department, currency, to_char(created_at, 'YYYY-MM'), count(*), coalesce(sum(value), 0)
		 from rfps
		 group by status, department, currency, to_char(created_at, 'YYYY-MM')`)
	if err != nil {
		return Summary{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status     string
			department string
			currency   string
			month      string
			count      int
			value      int64
		)
		if err := rows.Scan(&status, &department, &currency, &month, &count, &value); err != nil {
			return Summary{}, err
		}
		sum.TotalCount += count
		sum.PipelineValue[currency] += value
		sum.ByStatus[Status(status)] += count
		sum.ByDepartment[auth.Role(department)] += count
		for i := range sum.Monthly {
			if sum.Monthly[i].Month == month {
				sum.Monthly[i].Count += count
				sum.Monthly[i].Value += value
			}
		}
	}
	return sum, rows.Err()
}

func scanRFP(row *sql.Row) (RFP, error) {
	var r RFP
	if err := row.Scan(&r.ID, &r.Title, &r.Client, &r.Department, &r.Status,
		&r.Value, &r.Currency, &r.OwnerID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RFP{}, ErrNotFound
		}
		return RFP{}, err
	}
	return r, nil
}
