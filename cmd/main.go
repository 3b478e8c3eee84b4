// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"aqi-map/internal/api"
	"aqi-map/internal/aqi"
	"aqi-map/internal/config"
	"aqi-map/internal/landmark"
	"aqi-map/internal/locate"
	"aqi-map/internal/logger"
	"aqi-map/internal/metrics"
	"aqi-map/internal/migrate"
	"aqi-map/internal/notify"
	"aqi-map/internal/reconcile"
	"aqi-map/internal/refresh"
	"aqi-map/internal/store"
	"aqi-map/internal/utils"
	"aqi-map/internal/version"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	// 日志初始化
	l := logger.Setup()
	l.Debug("log_init_ok")
	cfg := config.Load()
	l.Debug("config_api_base", "base", cfg.APIBase)
	l.Debug("config_ui_dir", "dir", cfg.UIDist)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	key, src := config.ResolveAPIKey(config.BuildAPIKey, os.LookupEnv)
	if key == "" {
		l.Warn("aqi_token_missing", "hint", "set AQI_API_KEY or build with -X aqi-map/internal/config.BuildAPIKey")
	} else {
		l.Info("aqi_token_ok", "source", src)
	}

	// 背景：数据库为可选组件；启用时地标从 _aqi_landmarks 读取并记录单点查询统计
	lms := landmark.Mumbai()
	var st *store.Store
	if cfg.DBEnable {
		db, err := utils.OpenPostgresFromEnv()
		if err != nil {
			l.Error("db_open_error", "err", err)
			os.Exit(1)
		}
		st = store.AttachDB(db)
		defer st.Close()
		if err := db.PingContext(ctx); err != nil {
			l.Error("db_ping_error", "err", err)
			os.Exit(1)
		}
		l.Info("db_ping_ok")
		if err := migrate.EnsureSchema(ctx, db); err != nil {
			l.Error("schema_error", "err", err)
			os.Exit(1)
		}
		if got, err := st.Landmarks(ctx); err != nil {
			l.Error("db_landmarks_error", "err", err)
		} else if len(got) > 0 {
			lms = got
		}
	} else {
		l.Info("db_disabled")
	}
	l.Info("landmarks_ready", "count", len(lms))

	hub := notify.NewHub(8)
	pubs := notify.Fanout{hub}
	if rc := utils.OpenRedisFromEnv(); rc == nil {
		l.Info("redis_disabled")
	} else {
		defer rc.Close()
		if err := rc.Ping(ctx).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
		pubs = append(pubs, notify.NewRedisPublisher(rc, cfg.RedisChannel))
	}

	loc, err := locate.Open(cfg.GeoIPPath)
	if err != nil {
		l.Info("geoip_disabled", "err", err)
	} else {
		defer loc.Close()
		l.Info("geoip_ready", "path", cfg.GeoIPPath)
	}

	client := aqi.NewClient(cfg.AQIBaseURL, key, &http.Client{Timeout: cfg.AQITimeout})
	rec := reconcile.New(client, pubs, reconcile.WithConcurrency(cfg.BatchConcurrency))

	// 启动即加载地标，与 /load 相同走后台协程
	go rec.LoadAll(ctx, lms)
	refresh.Start(ctx, cfg.RefreshEvery, func(ctx context.Context) { rec.LoadAll(ctx, lms) })

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(api.Deps{
		Rec:        rec,
		Landmarks:  lms,
		Store:      st,
		Hub:        hub,
		Locator:    loc,
		Center:     aqi.Coordinate{Lat: cfg.CenterLat, Lng: cfg.CenterLng},
		Background: ctx,
	})
	mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, apiMux))
	mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())
	mux.Handle("/", http.FileServer(http.Dir(cfg.UIDist)))

	// NOTE: 向前端暴露 API 基础路径与地图中心，避免硬编码
	mux.HandleFunc("/config.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/javascript; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write([]byte("window.__API_BASE__='" + cfg.APIBase + "'\n"))
		_, _ = w.Write([]byte("window.__MAP_CENTER__=[" + strconv.FormatFloat(cfg.CenterLat, 'f', -1, 64) + "," + strconv.FormatFloat(cfg.CenterLng, 'f', -1, 64) + "]\n"))
		_, _ = w.Write([]byte("window.__DATA_SOURCE_URL__='https://waqi.info'\n"))
		_, _ = w.Write([]byte("window.__COMMIT_SHA__='" + version.Commit + "'"))
	})

	handler := logger.AccessMiddleware(l)(mux)
	s := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		l.Info("shutdown_begin")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(sctx); err != nil {
			l.Error("shutdown_error", "err", err)
		}
	}()

	if cfg.TLSEnable {
		if err := utils.EnsureSelfSignedCert(cfg.TLSCert, cfg.TLSKey, "aqi-map.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", cfg.Addr, "cert", cfg.TLSCert)
		err = s.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
	} else {
		l.Info("listening", "addr", cfg.Addr)
		err = s.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("listen_error", "err", err)
		os.Exit(1)
	}
	l.Info("shutdown_done")
}
