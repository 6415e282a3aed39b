package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/dispatch-api/internal/models"
	appErrors "github.com/noah-isme/dispatch-api/pkg/errors"
)

type recordRow struct {
	ID         int64  `db:"id"`
	SchemaName string `db:"schema_name"`
	Data       []byte `db:"data"`
}

type relationRow struct {
	RecordID int64  `db:"record_id"`
	Field    string `db:"field"`
	TargetID int64  `db:"target_id"`
}

// RecordRepository stores records of every schema in postgres. Field values
// are kept in a jsonb document and many-relations in record_relations.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository constructs the repository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// List returns every record of a schema ordered by id.
func (r *RecordRepository) List(ctx context.Context, schema string) ([]*models.Record, error) {
	const query = `SELECT id, schema_name, data FROM records WHERE schema_name = $1 ORDER BY id ASC`
	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows, query, schema); err != nil {
		return nil, fmt.Errorf("list records of %s: %w", schema, err)
	}

	const relQuery = `SELECT rr.record_id, rr.field, rr.target_id
FROM record_relations rr
JOIN records rec ON rec.id = rr.record_id
WHERE rec.schema_name = $1
ORDER BY rr.record_id, rr.field, rr.target_id`
	var rels []relationRow
	if err := r.db.SelectContext(ctx, &rels, relQuery, schema); err != nil {
		return nil, fmt.Errorf("list relations of %s: %w", schema, err)
	}

	records := make([]*models.Record, 0, len(rows))
	byID := make(map[int64]*models.Record, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		byID[rec.ID] = rec
	}
	for _, rel := range rels {
		if rec, ok := byID[rel.RecordID]; ok {
			rec.Relations[rel.Field] = append(rec.Relations[rel.Field], rel.TargetID)
		}
	}
	return records, nil
}

// Get fetches one record by schema and id.
func (r *RecordRepository) Get(ctx context.Context, schema string, id int64) (*models.Record, error) {
	const query = `SELECT id, schema_name, data FROM records WHERE schema_name = $1 AND id = $2 LIMIT 1`
	var row recordRow
	if err := r.db.GetContext(ctx, &row, query, schema, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "%s %d not found", schema, id)
		}
		return nil, fmt.Errorf("get record %s %d: %w", schema, id, err)
	}
	rec, err := row.toRecord()
	if err != nil {
		return nil, err
	}

	const relQuery = `SELECT record_id, field, target_id FROM record_relations WHERE record_id = $1 ORDER BY field, target_id`
	var rels []relationRow
	if err := r.db.SelectContext(ctx, &rels, relQuery, id); err != nil {
		return nil, fmt.Errorf("get relations of %s %d: %w", schema, id, err)
	}
	for _, rel := range rels {
		rec.Relations[rel.Field] = append(rec.Relations[rel.Field], rel.TargetID)
	}
	return rec, nil
}

// Create inserts the record with its relations and assigns its id.
func (r *RecordRepository) Create(ctx context.Context, rec *models.Record) (err error) {
	data, err := json.Marshal(rec.Values)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.Schema, err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create record: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var id int64
	if err = tx.QueryRowxContext(ctx, `INSERT INTO records (schema_name, data) VALUES ($1, $2) RETURNING id`, rec.Schema, data).Scan(&id); err != nil {
		return fmt.Errorf("insert record %s: %w", rec.Schema, err)
	}
	for field, ids := range rec.Relations {
		for _, target := range ids {
			if _, err = tx.ExecContext(ctx, insertRelationQuery, id, field, target); err != nil {
				return fmt.Errorf("insert relation %s.%s: %w", rec.Schema, field, err)
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create record: %w", err)
	}
	rec.ID = id
	return nil
}

// Update persists field values of an existing record.
func (r *RecordRepository) Update(ctx context.Context, rec *models.Record) error {
	data, err := json.Marshal(rec.Values)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.Schema, err)
	}
	const query = `UPDATE records SET data = $1, updated_at = NOW() WHERE id = $2 AND schema_name = $3`
	res, err := r.db.ExecContext(ctx, query, data, rec.ID, rec.Schema)
	if err != nil {
		return fmt.Errorf("update record %s %d: %w", rec.Schema, rec.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update record %s %d: %w", rec.Schema, rec.ID, err)
	}
	if affected == 0 {
		return appErrors.Clonef(appErrors.ErrNotFound, "%s %d not found", rec.Schema, rec.ID)
	}
	return nil
}

const insertRelationQuery = `INSERT INTO record_relations (record_id, field, target_id) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`

// AddRelation links target to the record through a many-relation.
func (r *RecordRepository) AddRelation(ctx context.Context, rec *models.Record, field string, targetID int64) error {
	if _, err := r.db.ExecContext(ctx, insertRelationQuery, rec.ID, field, targetID); err != nil {
		return fmt.Errorf("add relation %s.%s: %w", rec.Schema, field, err)
	}
	rec.AddRelated(field, targetID)
	return nil
}

// RemoveRelation unlinks target from the record.
func (r *RecordRepository) RemoveRelation(ctx context.Context, rec *models.Record, field string, targetID int64) error {
	const query = `DELETE FROM record_relations WHERE record_id = $1 AND field = $2 AND target_id = $3`
	if _, err := r.db.ExecContext(ctx, query, rec.ID, field, targetID); err != nil {
		return fmt.Errorf("remove relation %s.%s: %w", rec.Schema, field, err)
	}
	rec.RemoveRelated(field, targetID)
	return nil
}

func (row recordRow) toRecord() (*models.Record, error) {
	rec := models.NewRecord(row.SchemaName)
	rec.ID = row.ID
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &rec.Values); err != nil {
			return nil, fmt.Errorf("decode record %s %d: %w", row.SchemaName, row.ID, err)
		}
	}
	if rec.Values == nil {
		rec.Values = map[string]interface{}{}
	}
	return rec, nil
}
