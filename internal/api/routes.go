// 包 api：集中注册 HTTP API 路由以解耦主入口，便于后续扩展与替换
package api

import (
	"aqi-map/internal/aqi"
	"aqi-map/internal/landmark"
	"aqi-map/internal/locate"
	"aqi-map/internal/logger"
	"aqi-map/internal/notify"
	"aqi-map/internal/reconcile"
	"aqi-map/internal/store"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

// PointFailureMessage：单点查询失败时返回给用户的提示
const PointFailureMessage = "Failed to fetch AQI data for the selected location"

// Deps：路由依赖；Store、Locator 可为 nil（对应功能退化）
type Deps struct {
	Rec       *reconcile.Reconciler
	Landmarks []landmark.Landmark
	Store     *store.Store
	Hub       *notify.Hub
	Locator   *locate.Locator
	Center    aqi.Coordinate
	// Background：后台批量加载与事件流的生命周期，进程关闭时取消
	Background context.Context
}

type handlers struct {
	d Deps
}

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到 API_BASE 前缀
func BuildRoutes(d Deps) *http.ServeMux {
	if d.Background == nil {
		d.Background = context.Background()
	}
	if d.Hub != nil {
		d.Hub.Seed(d.Rec.Snapshot())
	}
	h := &handlers{d: d}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /markers", h.markers)
	mux.HandleFunc("POST /load", h.load)
	mux.HandleFunc("GET /aqi", h.pointQuery)
	mux.HandleFunc("POST /point", h.pointQuery)
	mux.HandleFunc("GET /landmarks", h.landmarks)
	mux.HandleFunc("GET /locate", h.locate)
	mux.HandleFunc("GET /stats", h.stats)
	if d.Hub != nil {
		mux.HandleFunc("GET /events", h.events)
	}
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handlers) markers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.d.Rec.Snapshot())
}

// load：后台启动地标批量加载，立即返回 202；结果经 /markers 与 /events 获取
func (h *handlers) load(w http.ResponseWriter, r *http.Request) {
	lms := h.d.Landmarks
	go h.d.Rec.LoadAll(h.d.Background, lms)
	logger.L().Info("aqi_batch_accepted", "landmarks", len(lms))
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true, "landmarks": len(lms)})
}

// parsePoint：GET 读取 lat/lng 查询参数，POST 读取 JSON 体
func parsePoint(w http.ResponseWriter, r *http.Request) (aqi.Coordinate, error) {
	var c aqi.Coordinate
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<12)).Decode(&c); err != nil {
			return c, errors.New("invalid JSON body")
		}
	} else {
		q := r.URL.Query()
		lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
		lng, err2 := strconv.ParseFloat(q.Get("lng"), 64)
		if err1 != nil || err2 != nil {
			return c, errors.New("lat and lng must be numbers")
		}
		c = aqi.Coordinate{Lat: lat, Lng: lng}
	}
	if !c.Valid() {
		return c, errors.New("coordinate out of range")
	}
	return c, nil
}

// 文档注释：单点查询
// 返回：成功 200 与当前快照；参数非法 400；上游失败 502 并附用户提示；被更新的查询取代 409。
func (h *handlers) pointQuery(w http.ResponseWriter, r *http.Request) {
	c, err := parsePoint(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := r.Context()
	m, err := h.d.Rec.OnPointSelected(ctx, c)
	switch {
	case errors.Is(err, reconcile.ErrSuperseded):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		body := map[string]string{"error": PointFailureMessage}
		var fe *aqi.FetchError
		if errors.As(err, &fe) {
			body["kind"] = fe.Kind.String()
		}
		writeJSON(w, http.StatusBadGateway, body)
		return
	}
	if h.d.Store != nil {
		if err := h.d.Store.IncrPointQuery(ctx); err != nil {
			logger.L().Error("stats_incr_error", "err", err)
		}
	}
	logger.L().Debug("point_query_ok", "name", m.Name, "aqi", m.AQI)
	writeJSON(w, http.StatusOK, h.d.Rec.Snapshot())
}

func (h *handlers) landmarks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.d.Landmarks)
}

type locateResult struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	City   string  `json:"city,omitempty"`
	Source string  `json:"source"`
}

// locate：估算访问者所在位置作为地图初始中心，未命中时回退默认中心
func (h *handlers) locate(w http.ResponseWriter, r *http.Request) {
	ip := getClientIP(r)
	if c, city, ok := h.d.Locator.Lookup(ip); ok {
		writeJSON(w, http.StatusOK, locateResult{Lat: c.Lat, Lng: c.Lng, City: city, Source: "geoip"})
		return
	}
	logger.L().Debug("locate_fallback", "ip", ip)
	writeJSON(w, http.StatusOK, locateResult{Lat: h.d.Center.Lat, Lng: h.d.Center.Lng, Source: "default"})
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	if h.d.Store == nil {
		writeError(w, http.StatusNotFound, "stats disabled")
		return
	}
	t, err := h.d.Store.GetTotals(r.Context())
	if err != nil {
		logger.L().Error("stats_read_error", "err", err)
		writeError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, t)
}
