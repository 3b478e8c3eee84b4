// 包 locate：根据访问者 IP 估算地图初始中心（GeoLite2 City 数据库）
package locate

import (
	"aqi-map/internal/aqi"
	"aqi-map/internal/logger"
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// Locator：mmdb 只读查询器；零值或 nil 表示未启用，所有查询返回未命中
type Locator struct {
	db *geoip2.Reader
}

// 文档注释：打开 GeoLite2 City 数据库
// 约束：文件缺失或格式错误时返回 error，调用方可退化为 nil Locator 继续运行。
func Open(path string) (*Locator, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip db %s: %w", path, err)
	}
	return &Locator{db: r}, nil
}

func (l *Locator) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// 文档注释：查询 IP 对应坐标与城市名
// 返回：ok=false 表示未启用、IP 非法、私网地址或数据库无坐标。
func (l *Locator) Lookup(ip string) (aqi.Coordinate, string, bool) {
	if l == nil || l.db == nil {
		return aqi.Coordinate{}, "", false
	}
	p := net.ParseIP(strings.TrimSpace(ip))
	if p == nil || p.IsPrivate() || p.IsLoopback() {
		return aqi.Coordinate{}, "", false
	}
	rec, err := l.db.City(p)
	if err != nil {
		logger.L().Debug("geoip_lookup_error", "ip", ip, "err", err)
		return aqi.Coordinate{}, "", false
	}
	c := aqi.Coordinate{Lat: rec.Location.Latitude, Lng: rec.Location.Longitude}
	if c == (aqi.Coordinate{}) || !c.Valid() {
		return aqi.Coordinate{}, "", false
	}
	return c, rec.City.Names["en"], true
}
