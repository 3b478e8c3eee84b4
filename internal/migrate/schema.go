package migrate

import (
	"aqi-map/internal/landmark"
	"aqi-map/internal/logger"
	"context"
	"database/sql"
	"fmt"
)

// 背景：首次运行自动创建所需表并写入内置地标，保障后续读取与统计
// 约束：使用 IF NOT EXISTS / ON CONFLICT DO NOTHING，不覆盖运维手工调整过的地标
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _aqi_landmarks (
            name TEXT PRIMARY KEY,
            position INT NOT NULL,
            lat DOUBLE PRECISION NOT NULL,
            lng DOUBLE PRECISION NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_aqi_landmarks_position ON _aqi_landmarks(position)`,
		`CREATE TABLE IF NOT EXISTS _aqi_stats_total (
            id INT PRIMARY KEY,
            total_queries BIGINT NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS _aqi_stats_daily (
            day DATE PRIMARY KEY,
            queries BIGINT NOT NULL DEFAULT 0
        )`,
		`INSERT INTO _aqi_stats_total(id, total_queries)
         VALUES(1, 0)
         ON CONFLICT (id) DO NOTHING`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("schema stmt %d: %w", i, err)
		}
	}
	if err := seedLandmarks(ctx, db, landmark.Mumbai()); err != nil {
		return err
	}
	logger.L().Debug("schema_done")
	return nil
}

func seedLandmarks(ctx context.Context, db *sql.DB, lms []landmark.Landmark) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for i, lm := range lms {
		if _, err := tx.ExecContext(ctx, `INSERT INTO _aqi_landmarks(name, position, lat, lng)
            VALUES($1,$2,$3,$4)
            ON CONFLICT (name) DO NOTHING`, lm.Name, i, lm.Coord.Lat, lm.Coord.Lng); err != nil {
			return fmt.Errorf("seed %s: %w", lm.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}
	logger.L().Debug("schema_seed_landmarks", "count", len(lms))
	return nil
}
