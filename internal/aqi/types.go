// 包 aqi：空气质量数据源客户端，按坐标向第三方接口取单点 AQI 并归一化为 Reading
package aqi

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Unavailable：上游未提供 AQI 数值时的哨兵值（接口以 "-" 表示）
const Unavailable = -1

// MaxAQI：可接受读数上限，超出视为上游数据异常
const MaxAQI = math.MaxInt32

// 文档注释：WGS84 坐标
// 约束：不可变值类型；纬度 -90..90，经度 -180..180，由 Valid 判定。
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// geoKey：上游以 geo:<lat>;<lng> 作为路径键
func (c Coordinate) geoKey() string {
	return "geo:" + strconv.FormatFloat(c.Lat, 'f', -1, 64) + ";" + strconv.FormatFloat(c.Lng, 'f', -1, 64)
}

// 文档注释：单次查询的归一化结果
// 背景：仅在一次请求/响应周期内存在，交由调和层转换为地图标记；不落库。
type Reading struct {
	Coord    Coordinate `json:"coord"`
	AQI      int        `json:"aqi"`
	Location string     `json:"location"`
}

// feedResponse：上游 /feed 响应外层；status!="ok" 时 data 为错误文本
type feedResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type feedData struct {
	AQI  json.RawMessage `json:"aqi"`
	City struct {
		Name string `json:"name"`
	} `json:"city"`
}

// parseAQI：兼容数值与字符串两种形态；无法识别或为负时返回 Unavailable
func parseAQI(raw json.RawMessage) int {
	if len(raw) == 0 {
		return Unavailable
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if f, err := n.Float64(); err == nil && f >= 0 && f <= MaxAQI {
			return int(f)
		}
		return Unavailable
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return Unavailable
	}
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil && v >= 0 && v <= MaxAQI {
		return v
	}
	return Unavailable
}

// providerMessage：从错误响应的 data 字段提取文本说明
func providerMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
