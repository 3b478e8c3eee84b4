// 包 landmark：启动时批量展示的固定地标列表
package landmark

import "aqi-map/internal/aqi"

// Landmark：具名坐标，只读
type Landmark struct {
	Name  string         `json:"name"`
	Coord aqi.Coordinate `json:"coord"`
}

var mumbai = []Landmark{
	{Name: "Gateway of India", Coord: aqi.Coordinate{Lat: 18.9220, Lng: 72.8347}},
	{Name: "Marine Drive", Coord: aqi.Coordinate{Lat: 18.9430, Lng: 72.8238}},
	{Name: "Juhu Beach", Coord: aqi.Coordinate{Lat: 19.0988, Lng: 72.8267}},
	{Name: "Chhatrapati Shivaji Terminus", Coord: aqi.Coordinate{Lat: 18.9398, Lng: 72.8355}},
	{Name: "Bandra-Worli Sea Link", Coord: aqi.Coordinate{Lat: 19.0380, Lng: 72.8170}},
}

// Mumbai：内置默认地标（按展示顺序），返回副本
func Mumbai() []Landmark {
	return append([]Landmark(nil), mumbai...)
}

// Validate：过滤坐标越界或无名的项，保持原顺序
func Validate(in []Landmark) []Landmark {
	out := make([]Landmark, 0, len(in))
	for _, l := range in {
		if l.Name == "" || !l.Coord.Valid() {
			continue
		}
		out = append(out, l)
	}
	return out
}
