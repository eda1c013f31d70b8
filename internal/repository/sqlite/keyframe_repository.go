package sqlite

import (
	"database/sql"
	"fmt"

	"sentinelvision/internal/dto"
	"sentinelvision/internal/model"
)

const keyFrameColumns = `id, filename, run_id, score, dissimilarity, forced, timestamp, filepath, filesize`

// KeyFrameRepository implements repository.KeyFrameRepository for SQLite.
type KeyFrameRepository struct {
	db *DB
}

// NewKeyFrameRepository creates a new SQLite key-frame repository.
func NewKeyFrameRepository(db *DB) *KeyFrameRepository {
	return &KeyFrameRepository{db: db}
}

// Insert adds a new key-frame record to the catalog.
func (r *KeyFrameRepository) Insert(kf *model.KeyFrame) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO key_frames (filename, run_id, score, dissimilarity, forced, timestamp, filepath, filesize)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, kf.Filename, kf.RunID, kf.Score, kf.Dissimilarity, kf.Forced, kf.Timestamp.UTC(), kf.FilePath, kf.FileSize)
	if err != nil {
		return 0, fmt.Errorf("failed to insert key frame: %w", err)
	}

	return result.LastInsertId()
}

// InsertBatch adds multiple key frames in a single transaction, skipping
// filenames that are already catalogued. It returns the number of rows inserted.
func (r *KeyFrameRepository) InsertBatch(frames []model.KeyFrame) (int, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO key_frames (filename, run_id, score, dissimilarity, forced, timestamp, filepath, filesize)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, kf := range frames {
		result, err := stmt.Exec(kf.Filename, kf.RunID, kf.Score, kf.Dissimilarity, kf.Forced, kf.Timestamp.UTC(), kf.FilePath, kf.FileSize)
		if err != nil {
			return 0, fmt.Errorf("failed to insert key frame %s: %w", kf.Filename, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit key frames: %w", err)
	}
	return inserted, nil
}

// GetByID retrieves a key frame by its ID. It returns nil when none exists.
func (r *KeyFrameRepository) GetByID(id int64) (*model.KeyFrame, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`SELECT `+keyFrameColumns+` FROM key_frames WHERE id = ?`, id)
	return scanOne(row)
}

// GetByFilename retrieves a key frame by its filename. It returns nil when none exists.
func (r *KeyFrameRepository) GetByFilename(filename string) (*model.KeyFrame, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`SELECT `+keyFrameColumns+` FROM key_frames WHERE filename = ?`, filename)
	return scanOne(row)
}

// GetAll retrieves key frames matching the filter, newest first.
func (r *KeyFrameRepository) GetAll(filter *dto.KeyFrameFilters) ([]model.KeyFrame, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	query := `SELECT ` + keyFrameColumns + ` FROM key_frames WHERE 1=1` + where + ` ORDER BY timestamp DESC, id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query key frames: %w", err)
	}
	defer rows.Close()

	var frames []model.KeyFrame
	for rows.Next() {
		var kf model.KeyFrame
		if err := rows.Scan(&kf.ID, &kf.Filename, &kf.RunID, &kf.Score, &kf.Dissimilarity, &kf.Forced, &kf.Timestamp, &kf.FilePath, &kf.FileSize); err != nil {
			return nil, fmt.Errorf("failed to scan key frame: %w", err)
		}
		frames = append(frames, kf)
	}

	return frames, rows.Err()
}

// GetTotalCount returns the number of key frames matching the filter.
func (r *KeyFrameRepository) GetTotalCount(filter *dto.KeyFrameFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM key_frames WHERE 1=1`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count key frames: %w", err)
	}
	return count, nil
}

// GetTotalSize returns the summed size of every catalogued key frame.
func (r *KeyFrameRepository) GetTotalSize() (int64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var size int64
	if err := r.db.Conn().QueryRow(`SELECT COALESCE(SUM(filesize), 0) FROM key_frames`).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to sum key frame sizes: %w", err)
	}
	return size, nil
}

// GetStats returns statistics about stored key frames and alerts.
func (r *KeyFrameRepository) GetStats() (*model.KeyFrameStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &model.KeyFrameStats{PerRun: make(map[string]int)}

	err := r.db.Conn().QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(filesize), 0), COALESCE(SUM(forced), 0) FROM key_frames
	`).Scan(&stats.TotalKeyFrames, &stats.TotalSizeBytes, &stats.ForcedCount)
	if err != nil {
		return nil, fmt.Errorf("failed to query key frame totals: %w", err)
	}

	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM alerts`).Scan(&stats.TotalAlerts); err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}

	rows, err := r.db.Conn().Query(`SELECT run_id, COUNT(*) FROM key_frames GROUP BY run_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var runID string
		var count int
		if err := rows.Scan(&runID, &count); err != nil {
			return nil, err
		}
		stats.PerRun[runID] = count
	}

	return stats, rows.Err()
}

func scanOne(row *sql.Row) (*model.KeyFrame, error) {
	var kf model.KeyFrame
	err := row.Scan(&kf.ID, &kf.Filename, &kf.RunID, &kf.Score, &kf.Dissimilarity, &kf.Forced, &kf.Timestamp, &kf.FilePath, &kf.FileSize)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key frame: %w", err)
	}
	return &kf, nil
}

func whereClause(filter *dto.KeyFrameFilters) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}

	where := ""
	args := []interface{}{}

	if filter.RunID != "" {
		where += " AND run_id = ?"
		args = append(args, filter.RunID)
	}

	if filter.ForcedOnly {
		where += " AND forced = 1"
	}

	// Timestamps are stored in UTC, so string order matches time order.
	if !filter.DateAfter.IsZero() {
		where += " AND timestamp >= ?"
		args = append(args, filter.DateAfter.UTC())
	}

	if !filter.DateBefore.IsZero() {
		where += " AND timestamp < ?"
		args = append(args, filter.DateBefore.UTC())
	}

	return where, args
}
