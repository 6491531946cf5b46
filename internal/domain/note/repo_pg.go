package note

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mimic/mimic/internal/platform/apperr"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type noteEventRepoPG struct{ pool *pgxpool.Pool }

func NewNoteEventRepoPG(pool *pgxpool.Pool) NoteEventRepository {
	return &noteEventRepoPG{pool: pool}
}

func (r *noteEventRepoPG) conn(ctx context.Context) queryable {
	return r.pool
}

const noteEventCols = `row_id, subject_id, hadm_id, chartdate, charttime, storetime,
	category, description, cgid, iserror, text`

func scanNoteEvent(row pgx.Row) (*NoteEvent, error) {
	var ev NoteEvent
	var hadmID *int64
	var category, description, isError, text *string
	err := row.Scan(&ev.RowID, &ev.SubjectID, &hadmID, &ev.ChartDate, &ev.ChartTime, &ev.StoreTime,
		&category, &description, &ev.CGID, &isError, &text)
	if err != nil {
		return nil, err
	}
	if hadmID != nil {
		ev.HadmID = *hadmID
	}
	ev.Category = deref(category)
	ev.Description = deref(description)
	ev.IsError = deref(isError) == "1"
	ev.Text = deref(text)
	return NewNoteEvent(ev)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func (r *noteEventRepoPG) GetByRowID(ctx context.Context, rowID int64) (*NoteEvent, error) {
	ev, err := scanNoteEvent(r.conn(ctx).QueryRow(ctx,
		`SELECT `+noteEventCols+` FROM noteevents WHERE row_id = $1`, rowID))
	if isNoRows(err) {
		return nil, apperr.NotFound("note event", "row", rowID)
	}
	return ev, err
}

func (r *noteEventRepoPG) listNotes(ctx context.Context, sql string, args ...interface{}) ([]*NoteEvent, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*NoteEvent
	for rows.Next() {
		ev, err := scanNoteEvent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, ev)
	}
	return items, rows.Err()
}

func (r *noteEventRepoPG) listIDs(ctx context.Context, sql string, args ...interface{}) ([]int64, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *noteEventRepoPG) ListByHadmID(ctx context.Context, hadmID int64) ([]*NoteEvent, error) {
	return r.listNotes(ctx, `SELECT `+noteEventCols+` FROM noteevents WHERE hadm_id = $1 ORDER BY row_id`, hadmID)
}

func (r *noteEventRepoPG) RowIDsByHadmID(ctx context.Context, hadmID int64) ([]int64, error) {
	return r.listIDs(ctx, `SELECT row_id FROM noteevents WHERE hadm_id = $1 ORDER BY row_id`, hadmID)
}

func (r *noteEventRepoPG) HadmIDByRowID(ctx context.Context, rowID int64) (int64, error) {
	var hadmID *int64
	err := r.conn(ctx).QueryRow(ctx, `SELECT hadm_id FROM noteevents WHERE row_id = $1`, rowID).Scan(&hadmID)
	if isNoRows(err) || (err == nil && hadmID == nil) {
		return 0, apperr.NotFound("note event", "row", rowID)
	}
	if err != nil {
		return 0, err
	}
	return *hadmID, nil
}

func (r *noteEventRepoPG) Text(ctx context.Context, rowID int64) (string, error) {
	var text *string
	err := r.conn(ctx).QueryRow(ctx, `SELECT text FROM noteevents WHERE row_id = $1`, rowID).Scan(&text)
	if isNoRows(err) {
		return "", apperr.NotFound("note event", "row", rowID)
	}
	if err != nil {
		return "", fmt.Errorf("select note text %d: %w", rowID, err)
	}
	return deref(text), nil
}

func (r *noteEventRepoPG) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT DISTINCT TRIM(category) FROM noteevents ORDER BY 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cats []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (r *noteEventRepoPG) CountsBySubject(ctx context.Context, subjectID int64) ([]SubjectNoteCount, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT hadm_id, COUNT(*) FROM noteevents
		WHERE subject_id = $1 AND hadm_id IS NOT NULL
		GROUP BY hadm_id ORDER BY hadm_id`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var counts []SubjectNoteCount
	for rows.Next() {
		var c SubjectNoteCount
		if err := rows.Scan(&c.HadmID, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (r *noteEventRepoPG) ListByCategory(ctx context.Context, category string, limit, offset int) ([]*NoteEvent, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM noteevents WHERE TRIM(category) = $1 AND hadm_id IS NOT NULL`, category).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.listNotes(ctx, `SELECT `+noteEventCols+` FROM noteevents
		WHERE TRIM(category) = $1 AND hadm_id IS NOT NULL
		ORDER BY row_id LIMIT $2 OFFSET $3`, category, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *noteEventRepoPG) DischargeReports(ctx context.Context, limit int) ([]*NoteEvent, error) {
	return r.listNotes(ctx, `SELECT `+noteEventCols+` FROM noteevents
		WHERE category = 'Discharge summary' AND description = 'Report' AND hadm_id IS NOT NULL
		ORDER BY row_id LIMIT $1`, limit)
}

func (r *noteEventRepoPG) SampleHadmIDs(ctx context.Context, limit int) ([]int64, error) {
	return r.listIDs(ctx, `
		SELECT hadm_id FROM (SELECT DISTINCT hadm_id FROM noteevents WHERE hadm_id IS NOT NULL) h
		ORDER BY random() LIMIT $1`, limit)
}

func (r *noteEventRepoPG) Keys(ctx context.Context) ([]int64, error) {
	return r.listIDs(ctx, `SELECT row_id FROM noteevents WHERE hadm_id IS NOT NULL ORDER BY row_id`)
}

func (r *noteEventRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM noteevents`).Scan(&n)
	return n, err
}
