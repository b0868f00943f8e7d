package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/marinewatch/maritime-backend/internal/config"
	"github.com/marinewatch/maritime-backend/internal/models"
	"github.com/marinewatch/maritime-backend/pkg/utils"
)

// MySQLRepository долговременное хранилище истории позиций, рейсов и аудита
type MySQLRepository struct {
	db     *sql.DB
	logger *utils.Logger
	config *config.MySQLConfig
}

// NewMySQLRepository создает новый MySQL репозиторий
func NewMySQLRepository(cfg *config.MySQLConfig, logger *utils.Logger) (*MySQLRepository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mysql config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mysql DSN is required")
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	// Настройки connection pool
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(1 * time.Hour)

	repo := &MySQLRepository{
		db:     db,
		logger: logger,
		config: cfg,
	}

	if err := repo.ensureSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return repo, nil
}

// ensureSchema создает таблицы, если они отсутствуют
func (r *MySQLRepository) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS voyage (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			vessel_id VARCHAR(64) NOT NULL,
			port_from VARCHAR(255) NOT NULL DEFAULT '',
			port_to VARCHAR(255) NOT NULL DEFAULT '',
			status VARCHAR(32) NOT NULL,
			started_at DATETIME(6) NOT NULL,
			ended_at DATETIME(6) NULL,
			INDEX idx_voyage_vessel (vessel_id, status),
			INDEX idx_voyage_started (started_at)
		)`,
		`CREATE TABLE IF NOT EXISTS vessel_position (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			vessel_id VARCHAR(64) NOT NULL,
			voyage_id BIGINT NOT NULL DEFAULT 0,
			latitude DOUBLE NOT NULL,
			longitude DOUBLE NOT NULL,
			speed_knots DOUBLE NULL,
			heading_degrees INT NULL,
			ts DATETIME(6) NOT NULL,
			source VARCHAR(16) NOT NULL,
			accuracy_meters DOUBLE NULL,
			is_interpolated TINYINT(1) NOT NULL DEFAULT 0,
			UNIQUE KEY uniq_position (vessel_id, ts, source),
			INDEX idx_position_voyage (voyage_id, ts),
			INDEX idx_position_vessel (vessel_id, ts),
			INDEX idx_position_ts (ts)
		)`,
		`CREATE TABLE IF NOT EXISTS voyage_audit_log (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			vessel_id VARCHAR(64) NOT NULL DEFAULT '',
			voyage_id BIGINT NOT NULL DEFAULT 0,
			action VARCHAR(32) NOT NULL,
			description TEXT NOT NULL,
			ts DATETIME(6) NOT NULL,
			INDEX idx_audit_voyage (voyage_id, ts),
			INDEX idx_audit_ts (ts)
		)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Ping проверяет соединение с MySQL
func (r *MySQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close закрывает соединение с MySQL
func (r *MySQLRepository) Close() error {
	return r.db.Close()
}

// InsertPosition сохраняет сэмпл идемпотентно: дубликат по уникальному
// ключу (vessel_id, ts, source) возвращает уже сохраненную запись
func (r *MySQLRepository) InsertPosition(ctx context.Context, sample *models.PositionSample) (*models.PositionSample, bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT IGNORE INTO vessel_position
			(vessel_id, voyage_id, latitude, longitude, speed_knots, heading_degrees, ts, source, accuracy_meters, is_interpolated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sample.VesselID,
		sample.VoyageID,
		sample.Position.Latitude,
		sample.Position.Longitude,
		nullFloat(sample.SpeedKnots),
		nullInt(sample.HeadingDegrees),
		sample.Timestamp.UTC(),
		string(sample.Source),
		nullFloat(sample.AccuracyMeters),
		sample.IsInterpolated,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert position: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected == 0 {
		existing, err := r.GetPosition(ctx, sample.VesselID, sample.Timestamp, sample.Source)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, fmt.Errorf("duplicate position disappeared for %s at %s", sample.VesselID, sample.Timestamp)
		}
		return existing, false, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read insert id: %w", err)
	}

	stored := *sample
	stored.ID = id
	return &stored, true, nil
}

// GetPosition возвращает сэмпл по ключу дедупликации либо (nil, nil)
func (r *MySQLRepository) GetPosition(ctx context.Context, vesselID string, ts time.Time, source models.Source) (*models.PositionSample, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, vessel_id, voyage_id, latitude, longitude, speed_knots, heading_degrees, ts, source, accuracy_meters, is_interpolated
		FROM vessel_position
		WHERE vessel_id = ? AND ts = ? AND source = ?`,
		vesselID, ts.UTC(), string(source),
	)

	sample, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, errPositionMissing) {
			return nil, nil
		}
		return nil, err
	}
	return sample, nil
}

// ListByVoyage возвращает сэмплы рейса в порядке вставки
func (r *MySQLRepository) ListByVoyage(ctx context.Context, voyageID int64) ([]*models.PositionSample, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, vessel_id, voyage_id, latitude, longitude, speed_knots, heading_degrees, ts, source, accuracy_meters, is_interpolated
		FROM vessel_position
		WHERE voyage_id = ?
		ORDER BY id ASC`,
		voyageID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query voyage positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows, r.logger)
}

// ListByVesselRange возвращает сэмплы судна в интервале времени
func (r *MySQLRepository) ListByVesselRange(ctx context.Context, vesselID string, start, end time.Time, limit int) ([]*models.PositionSample, error) {
	query := `
		SELECT id, vessel_id, voyage_id, latitude, longitude, speed_knots, heading_degrees, ts, source, accuracy_meters, is_interpolated
		FROM vessel_position
		WHERE vessel_id = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC, id ASC`
	args := []interface{}{vesselID, start.UTC(), end.UTC()}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vessel positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows, r.logger)
}

// DeletePositionsOlderThan удаляет сэмплы старше cutoff (политика хранения)
func (r *MySQLRepository) DeletePositionsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM vessel_position WHERE ts < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old positions: %w", err)
	}
	return result.RowsAffected()
}

// CreateVoyage сохраняет новый рейс и присваивает идентификатор
func (r *MySQLRepository) CreateVoyage(ctx context.Context, voyage *models.Voyage) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO voyage (vessel_id, port_from, port_to, status, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		voyage.VesselID,
		voyage.PortFrom,
		voyage.PortTo,
		string(voyage.Status),
		voyage.StartedAt.UTC(),
		nullTime(voyage.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create voyage: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read voyage id: %w", err)
	}
	voyage.ID = id
	return nil
}

// GetVoyage возвращает рейс по идентификатору
func (r *MySQLRepository) GetVoyage(ctx context.Context, id int64) (*models.Voyage, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, vessel_id, port_from, port_to, status, started_at, ended_at
		FROM voyage WHERE id = ?`, id)
	return scanVoyage(row)
}

// UpdateVoyage перезаписывает существующий рейс
func (r *MySQLRepository) UpdateVoyage(ctx context.Context, voyage *models.Voyage) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE voyage
		SET port_from = ?, port_to = ?, status = ?, started_at = ?, ended_at = ?
		WHERE id = ?`,
		voyage.PortFrom,
		voyage.PortTo,
		string(voyage.Status),
		voyage.StartedAt.UTC(),
		nullTime(voyage.EndedAt),
		voyage.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update voyage %d: %w", voyage.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		// UPDATE без изменений тоже дает 0, проверяем существование
		if _, err := r.GetVoyage(ctx, voyage.ID); err != nil {
			return err
		}
	}
	return nil
}

// FindOpenVoyage возвращает открытый рейс судна либо (nil, nil)
func (r *MySQLRepository) FindOpenVoyage(ctx context.Context, vesselID string) (*models.Voyage, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, vessel_id, port_from, port_to, status, started_at, ended_at
		FROM voyage
		WHERE vessel_id = ? AND status = ?
		ORDER BY started_at DESC
		LIMIT 1`,
		vesselID, string(models.VoyageInProgress),
	)

	voyage, err := scanVoyage(row)
	if err == ErrVoyageNotFound {
		return nil, nil
	}
	return voyage, err
}

// ListVoyagesByVessel возвращает рейсы судна, новые первыми
func (r *MySQLRepository) ListVoyagesByVessel(ctx context.Context, vesselID string) ([]*models.Voyage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, vessel_id, port_from, port_to, status, started_at, ended_at
		FROM voyage
		WHERE vessel_id = ?
		ORDER BY started_at DESC`,
		vesselID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query voyages: %w", err)
	}
	defer rows.Close()

	var voyages []*models.Voyage
	for rows.Next() {
		voyage, err := scanVoyage(rows)
		if err != nil {
			r.logger.WithError(err).Warn("Failed to scan voyage row")
			continue
		}
		voyages = append(voyages, voyage)
	}
	return voyages, rows.Err()
}

// AppendAudit добавляет запись журнала аудита
func (r *MySQLRepository) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO voyage_audit_log (vessel_id, voyage_id, action, description, ts)
		VALUES (?, ?, ?, ?, ?)`,
		entry.VesselID,
		entry.VoyageID,
		string(entry.Action),
		entry.Description,
		entry.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err == nil {
		entry.ID = id
	}
	return nil
}

// ListAuditByVoyage возвращает записи аудита рейса, новые первыми
func (r *MySQLRepository) ListAuditByVoyage(ctx context.Context, voyageID int64, limit int) ([]*models.AuditEntry, error) {
	query := `
		SELECT id, vessel_id, voyage_id, action, description, ts
		FROM voyage_audit_log
		WHERE voyage_id = ?
		ORDER BY ts DESC`
	args := []interface{}{voyageID}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var entry models.AuditEntry
		var action string
		if err := rows.Scan(&entry.ID, &entry.VesselID, &entry.VoyageID, &action, &entry.Description, &entry.Timestamp); err != nil {
			r.logger.WithError(err).Warn("Failed to scan audit row")
			continue
		}
		entry.Action = models.AuditAction(action)
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// DeleteAuditOlderThan удаляет записи аудита старше cutoff
func (r *MySQLRepository) DeleteAuditOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM voyage_audit_log WHERE ts < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit entries: %w", err)
	}
	return result.RowsAffected()
}

// rowScanner покрывает *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

var errPositionMissing = errors.New("position not found")

func scanPosition(row rowScanner) (*models.PositionSample, error) {
	var (
		sample   models.PositionSample
		speed    sql.NullFloat64
		heading  sql.NullInt64
		source   string
		accuracy sql.NullFloat64
	)

	err := row.Scan(
		&sample.ID,
		&sample.VesselID,
		&sample.VoyageID,
		&sample.Position.Latitude,
		&sample.Position.Longitude,
		&speed,
		&heading,
		&sample.Timestamp,
		&source,
		&accuracy,
		&sample.IsInterpolated,
	)
	if err == sql.ErrNoRows {
		return nil, errPositionMissing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan position: %w", err)
	}

	sample.Source = models.Source(source)
	if speed.Valid {
		sample.SpeedKnots = &speed.Float64
	}
	if heading.Valid {
		h := int(heading.Int64)
		sample.HeadingDegrees = &h
	}
	if accuracy.Valid {
		sample.AccuracyMeters = &accuracy.Float64
	}
	return &sample, nil
}

func scanPositions(rows *sql.Rows, logger *utils.Logger) ([]*models.PositionSample, error) {
	var samples []*models.PositionSample
	for rows.Next() {
		sample, err := scanPosition(rows)
		if err != nil {
			logger.WithError(err).Warn("Failed to scan position row")
			continue
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

func scanVoyage(row rowScanner) (*models.Voyage, error) {
	var (
		voyage  models.Voyage
		status  string
		endedAt sql.NullTime
	)

	err := row.Scan(
		&voyage.ID,
		&voyage.VesselID,
		&voyage.PortFrom,
		&voyage.PortTo,
		&status,
		&voyage.StartedAt,
		&endedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrVoyageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan voyage: %w", err)
	}

	voyage.Status = models.VoyageStatus(status)
	if endedAt.Valid {
		voyage.EndedAt = &endedAt.Time
	}
	return &voyage, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: v.UTC(), Valid: true}
}
