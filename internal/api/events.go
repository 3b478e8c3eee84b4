package api

import (
	"aqi-map/internal/logger"
	"aqi-map/internal/reconcile"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const keepAlive = 25 * time.Second

// 文档注释：标记集合事件流（Server-Sent Events）
// 背景：事件全部来自订阅中心：连接建立时收到其最近快照，之后每次标记集合或加载状态变化推送一条 markers 事件。
// 约束：客户端断开或进程关闭时退出；空闲期间定期发送注释行保持连接。
func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	id, ch, cancel := h.d.Hub.Subscribe()
	defer cancel()
	l := logger.L().With("sub", id.String())
	l.Debug("sse_open")

	w.Header().Set("content-type", "text/event-stream")
	w.Header().Set("cache-control", "no-store")
	w.Header().Set("connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fl.Flush()

	tick := time.NewTicker(keepAlive)
	defer tick.Stop()
	for {
		select {
		case <-r.Context().Done():
			l.Debug("sse_close", "reason", "client")
			return
		case <-h.d.Background.Done():
			l.Debug("sse_close", "reason", "shutdown")
			return
		case <-tick.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			fl.Flush()
		case s, ok := <-ch:
			if !ok {
				return
			}
			if err := writeEvent(w, s); err != nil {
				l.Debug("sse_write_error", "err", err)
				return
			}
			fl.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, s reconcile.Snapshot) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: markers\ndata: %s\n\n", s.Generation, b)
	return err
}
