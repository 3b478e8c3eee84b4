package landmark

import (
	"testing"

	"aqi-map/internal/aqi"

	"github.com/stretchr/testify/assert"
)

func TestMumbaiReturnsCopy(t *testing.T) {
	a := Mumbai()
	assert.Len(t, a, 5)
	a[0].Name = "changed"
	assert.Equal(t, "Gateway of India", Mumbai()[0].Name)
}

func TestValidate(t *testing.T) {
	in := []Landmark{
		{Name: "ok", Coord: aqi.Coordinate{Lat: 1, Lng: 2}},
		{Name: "", Coord: aqi.Coordinate{Lat: 1, Lng: 2}},
		{Name: "bad lat", Coord: aqi.Coordinate{Lat: 100, Lng: 2}},
		{Name: "ok2", Coord: aqi.Coordinate{Lat: -3, Lng: 4}},
	}
	got := Validate(in)
	assert.Equal(t, []string{"ok", "ok2"}, []string{got[0].Name, got[1].Name})
	assert.Len(t, got, 2)
}
