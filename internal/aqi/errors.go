package aqi

import (
	"errors"
	"fmt"
)

// Kind：失败分类，仅用于日志与指标；调用方统一按 *FetchError 处理
type Kind int

const (
	KindTransport Kind = iota + 1
	KindProvider
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProvider:
		return "provider"
	}
	return "unknown"
}

var (
	ErrTransport = errors.New("aqi: transport error")
	ErrProvider  = errors.New("aqi: provider error")
)

// 文档注释：单次查询失败
// 背景：网络不可达、非 2xx、响应无法解析、上游 status!="ok" 或无 AQI 数值，全部归一到该类型。
// 约束：errors.Is 可与 ErrTransport/ErrProvider 比较；Err 保留底层错误以便 errors.As。
type FetchError struct {
	Kind   Kind
	Coord  Coordinate
	Status int
	Msg    string
	Err    error
}

func (e *FetchError) Error() string {
	s := fmt.Sprintf("aqi fetch %s failed (%s)", e.Coord.geoKey(), e.Kind)
	if e.Status != 0 {
		s += fmt.Sprintf(" http %d", e.Status)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrProvider:
		return e.Kind == KindProvider
	}
	return false
}
