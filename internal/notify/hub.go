// 包 notify：标记集合变更的分发（进程内事件流订阅、Redis 频道）
package notify

import (
	"aqi-map/internal/metrics"
	"aqi-map/internal/reconcile"
	"context"
	"sync"

	"github.com/google/uuid"
)

// 文档注释：进程内订阅中心
// 背景：为 /events 事件流提供快照推送；新订阅者立即收到最近一次快照。
// 约束：发布不阻塞，订阅者缓冲满时丢弃其最旧的一条，只保证最终收到最新状态。
type Hub struct {
	mu   sync.Mutex
	subs map[uuid.UUID]chan reconcile.Snapshot
	last *reconcile.Snapshot
	size int
}

func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{subs: make(map[uuid.UUID]chan reconcile.Snapshot), size: buffer}
}

// Subscribe：注册订阅者，返回其 id、只读通道与取消函数
func (h *Hub) Subscribe() (uuid.UUID, <-chan reconcile.Snapshot, func()) {
	id := uuid.New()
	ch := make(chan reconcile.Snapshot, h.size)
	h.mu.Lock()
	h.subs[id] = ch
	if h.last != nil {
		ch <- *h.last
	}
	h.mu.Unlock()
	metrics.Subscribers.Inc()
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			close(ch)
			h.mu.Unlock()
			metrics.Subscribers.Dec()
		})
	}
	return id, ch, cancel
}

func (h *Hub) Publish(_ context.Context, s reconcile.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &s
	for _, ch := range h.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}

// Seed：尚未发布过任何快照时设置初始快照，供新订阅者立即收到
func (h *Hub) Seed(s reconcile.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		h.last = &s
	}
}

// Last：最近一次发布（或初始）的快照
func (h *Hub) Last() (reconcile.Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return reconcile.Snapshot{}, false
	}
	return *h.last, true
}

// Len：当前订阅者数量
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
