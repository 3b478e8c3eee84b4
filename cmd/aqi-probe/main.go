package main

import (
	"aqi-map/internal/aqi"
	"aqi-map/internal/config"
	"aqi-map/internal/landmark"
	"aqi-map/internal/logger"
	"aqi-map/internal/reconcile"
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// 文档注释：一次性探测 AQI 数据源
// 背景：部署前核对凭证与上游可用性；-lat/-lng 查询单点，-landmarks 批量查询内置地标，结果以 JSON 输出到标准输出。
// 约束：单点失败时以非零码退出；批量模式与服务一致，失败的地标被跳过。
func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()

	lat := flag.Float64("lat", 19.0760, "latitude")
	lng := flag.Float64("lng", 72.8777, "longitude")
	all := flag.Bool("landmarks", false, "query all built-in landmarks")
	timeout := flag.Duration("timeout", 10*time.Second, "overall timeout")
	flag.Parse()

	cfg := config.Load()
	key, src := config.ResolveAPIKey(config.BuildAPIKey, os.LookupEnv)
	if key == "" {
		l.Warn("aqi_token_missing")
	} else {
		l.Debug("aqi_token_ok", "source", src)
	}
	client := aqi.NewClient(cfg.AQIBaseURL, key, &http.Client{Timeout: cfg.AQITimeout})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if *all {
		rec := reconcile.New(client, nil, reconcile.WithConcurrency(cfg.BatchConcurrency))
		rec.LoadAll(ctx, landmark.Mumbai())
		_ = enc.Encode(rec.Snapshot().Markers)
		return
	}
	c := aqi.Coordinate{Lat: *lat, Lng: *lng}
	if !c.Valid() {
		l.Error("probe_bad_coordinate", "lat", c.Lat, "lng", c.Lng)
		os.Exit(2)
	}
	rd, err := client.Fetch(ctx, c)
	if err != nil {
		l.Error("probe_fetch_error", "err", err)
		os.Exit(1)
	}
	_ = enc.Encode(rd)
}
