package notify

import (
	"aqi-map/internal/logger"
	"aqi-map/internal/reconcile"
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel：标记快照发布的默认频道
const DefaultChannel = "aqi:markers"

// 文档注释：Redis 频道发布器
// 背景：多实例部署时由外部消费者订阅频道获取标记变更；发布失败仅记录日志。
type RedisPublisher struct {
	rc      *redis.Client
	channel string
	timeout time.Duration
}

func NewRedisPublisher(rc *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{rc: rc, channel: channel, timeout: 2 * time.Second}
}

func (p *RedisPublisher) Publish(ctx context.Context, s reconcile.Snapshot) {
	if p == nil || p.rc == nil {
		return
	}
	b, err := json.Marshal(s)
	if err != nil {
		logger.L().Error("redis_publish_marshal_error", "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.rc.Publish(ctx, p.channel, b).Err(); err != nil {
		logger.L().Error("redis_publish_error", "channel", p.channel, "err", err)
		return
	}
	logger.L().Debug("redis_publish_ok", "channel", p.channel, "generation", s.Generation, "markers", len(s.Markers))
}
