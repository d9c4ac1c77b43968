package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Fixed width so uploaded_at sorts as text.
const uploadedAtLayout = "2006-01-02T15:04:05.000000Z"

// DatasetRow is a raw CSV upload, kept so the dashboard can be rebuilt
// after a restart.
type DatasetRow struct {
	ID         string
	Source     string
	UploadedAt time.Time
	Content    []byte
}

func (d *Database) SaveDataset(ctx context.Context, row DatasetRow) error {
	d.logger.Debug("saving dataset", "id", row.ID, "source", row.Source, "bytes", len(row.Content))

	_, err := d.write.ExecContext(ctx, `
		INSERT INTO dataset (id, source, uploaded_at, content)
		VALUES (?, ?, ?, ?)`,
		row.ID,
		row.Source,
		row.UploadedAt.UTC().Format(uploadedAtLayout),
		row.Content)
	if err != nil {
		return fmt.Errorf("saving dataset: %w", err)
	}
	return nil
}

// GetLatestDataset returns sql.ErrNoRows when nothing has been uploaded.
func (d *Database) GetLatestDataset(ctx context.Context) (DatasetRow, error) {
	var row DatasetRow
	var ts string
	err := d.read.QueryRowContext(ctx, `
		SELECT id, source, uploaded_at, content
		FROM dataset
		ORDER BY uploaded_at DESC
		LIMIT 1`).Scan(&row.ID, &row.Source, &ts, &row.Content)
	if err == sql.ErrNoRows {
		return DatasetRow{}, err
	}
	if err != nil {
		return DatasetRow{}, fmt.Errorf("fetching latest dataset: %w", err)
	}

	row.UploadedAt, err = time.Parse(uploadedAtLayout, ts)
	if err != nil {
		return DatasetRow{}, fmt.Errorf("parsing dataset timestamp: %w", err)
	}
	return row, nil
}

// PurgeDatasets keeps the most recent keep uploads.
func (d *Database) PurgeDatasets(ctx context.Context, keep int) error {
	d.logger.Debug("purging datasets", "keep", keep)
	res, err := d.write.ExecContext(ctx, `
		DELETE FROM dataset WHERE id NOT IN (
			SELECT id FROM dataset ORDER BY uploaded_at DESC LIMIT ?)`, keep)
	if err != nil {
		return fmt.Errorf("purging datasets: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil {
		d.logger.Debug(fmt.Sprintf("purged %d datasets", rows))
	}
	return nil
}
