// 包 reconcile：标记集合调和，编排批量/单点 AQI 查询并把成功结果合并为当前地图标记
package reconcile

import (
	"aqi-map/internal/aqi"
	"context"
	"errors"
)

// FallbackLabel：上游未返回地点名称时单点标记使用的名称
const FallbackLabel = "Selected location"

// ErrSuperseded：单点查询完成前已有更新的查询序列开始，结果被丢弃
var ErrSuperseded = errors.New("reconcile: superseded by a newer request")

// Fetcher：单坐标取数契约，由 *aqi.Client 实现
type Fetcher interface {
	Fetch(ctx context.Context, c aqi.Coordinate) (aqi.Reading, error)
}

// Publisher：标记集合变更的订阅方（事件流、Redis 频道）
type Publisher interface {
	Publish(ctx context.Context, s Snapshot)
}

// Marker：地图标记，仅由成功的查询产生
type Marker struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	AQI  int     `json:"aqi"`
	Name string  `json:"name"`
}

// Snapshot：展示层读取与订阅的状态副本
type Snapshot struct {
	Markers    []Marker `json:"markers"`
	Loading    bool     `json:"loading"`
	Generation uint64   `json:"generation"`
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Snapshot) {}
