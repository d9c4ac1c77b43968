package database

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const backupTimeLayout = "20060102_150405"

func (d *Database) BackupDir() string {
	return filepath.Join(filepath.Dir(d.path), "backups")
}

// Backup writes a zipped snapshot of the database to the backup directory
// and returns its path.
func (d *Database) Backup(ctx context.Context) (string, error) {
	dir := d.BackupDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	snapshot := filepath.Join(dir, fmt.Sprintf("%s_solarforecast.db", time.Now().Format(backupTimeLayout)))
	if _, err := d.write.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return "", fmt.Errorf("vacuuming database into '%s': %w", snapshot, err)
	}
	defer func() {
		if err := os.Remove(snapshot); err != nil {
			d.logger.Warn("could not remove uncompressed backup", slog.String("path", snapshot), slog.Any("error", err))
		}
	}()

	zipPath := snapshot + ".zip"
	if err := zipFile(snapshot, zipPath, filepath.Base(d.path)); err != nil {
		return "", err
	}

	d.logger.Info("database backup complete", slog.String("filename", zipPath))
	return zipPath, nil
}

func zipFile(src, dst, entryName string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open database backup for compression: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("get file info: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("create zip header: %w", err)
	}
	header.Name = entryName
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create zip file entry: %w", err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("write database to zip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip file: %w", err)
	}
	return out.Close()
}

// PurgeBackups removes zipped backups older than retentionDays, judged by the
// timestamp in the file name.
func (d *Database) PurgeBackups(ctx context.Context, retentionDays int) error {
	if retentionDays < 1 {
		return nil
	}
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	files, err := filepath.Glob(filepath.Join(d.BackupDir(), "*_solarforecast.db.zip"))
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}

	removed := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := filepath.Base(f)
		if len(name) < len(backupTimeLayout) {
			continue
		}
		t, err := time.ParseInLocation(backupTimeLayout, name[:len(backupTimeLayout)], time.Local)
		if err != nil {
			d.logger.Debug("skipping file without backup timestamp", slog.String("filename", name))
			continue
		}
		if t.Before(cutoff) {
			if err := os.Remove(f); err != nil {
				return fmt.Errorf("remove old backup '%s': %w", f, err)
			}
			removed++
		}
	}

	d.logger.Info("backup purge complete", slog.Int("removed", removed), slog.String("dir", d.BackupDir()))
	return nil
}
