// 包 store: 提供与 PostgreSQL 的数据访问层，包含地标列表与单点查询统计读写
package store

import (
	"aqi-map/internal/aqi"
	"aqi-map/internal/landmark"
	"aqi-map/internal/logger"
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/samber/lo"
)

// Store: 数据库访问入口，持有连接池并提供查询/统计接口
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Close: 关闭数据库连接，之后的查询均返回错误
func (s *Store) Close() error { return s.db.Close() }

type landmarkRow struct {
	name     string
	lat, lng float64
}

// 文档注释：读取地标列表
// 背景：按 position 升序返回，顺序即批量加载与标记展示的顺序；坐标越界或名称为空的行被丢弃。
func (s *Store) Landmarks(ctx context.Context) ([]landmark.Landmark, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, lat, lng FROM _aqi_landmarks ORDER BY position ASC, name ASC")
	if err != nil {
		return nil, fmt.Errorf("query landmarks: %w", err)
	}
	defer rows.Close()
	var raw []landmarkRow
	for rows.Next() {
		var r landmarkRow
		if err := rows.Scan(&r.name, &r.lat, &r.lng); err != nil {
			return nil, fmt.Errorf("scan landmark: %w", err)
		}
		raw = append(raw, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate landmarks: %w", err)
	}
	out := landmark.Validate(lo.Map(raw, func(r landmarkRow, _ int) landmark.Landmark {
		return landmark.Landmark{Name: r.name, Coord: aqi.Coordinate{Lat: r.lat, Lng: r.lng}}
	}))
	logger.L().Debug("db_landmarks", "rows", len(raw), "valid", len(out))
	return out, nil
}

// IncrPointQuery: 单点查询成功后递增总计与当日计数
func (s *Store) IncrPointQuery(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE _aqi_stats_total SET total_queries=total_queries+1 WHERE id=1"); err != nil {
		return fmt.Errorf("incr total: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "INSERT INTO _aqi_stats_daily(day, queries) VALUES(current_date, 1) ON CONFLICT (day) DO UPDATE SET queries=_aqi_stats_daily.queries+1"); err != nil {
		return fmt.Errorf("incr daily: %w", err)
	}
	logger.L().Debug("stats_incr")
	return nil
}

// Totals: 统计返回结构，包含累计与当日查询次数
type Totals struct {
	Total int64 `json:"total"`
	Today int64 `json:"today"`
}

// GetTotals: 读取累计与当日查询次数；当日尚无记录时 Today 为 0
func (s *Store) GetTotals(ctx context.Context) (*Totals, error) {
	var t Totals
	if err := s.db.QueryRowContext(ctx, "SELECT total_queries FROM _aqi_stats_total WHERE id=1").Scan(&t.Total); err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("read total: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT queries FROM _aqi_stats_daily WHERE day=current_date").Scan(&t.Today); err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("read today: %w", err)
	}
	logger.L().Debug("stats_totals", "total", t.Total, "today", t.Today)
	return &t, nil
}
