// 包 refresh：按固定周期在后台协程中重跑地标批量加载
package refresh

import (
	"aqi-map/internal/logger"
	"context"
	"time"
)

// 文档注释：启动周期刷新任务
// 背景：地标读数随时间变化，按 every 间隔重新执行 run；单次错误由 run 自行记录，调度继续。
// 约束：every<=0 时不启动；ctx 取消后退出；上一次 run 未结束时不会并发启动下一次。
// 返回：关闭时表示协程已退出的通道。
func Start(ctx context.Context, every time.Duration, run func(context.Context)) <-chan struct{} {
	done := make(chan struct{})
	if every <= 0 || run == nil {
		close(done)
		return done
	}
	l := logger.L()
	l.Info("refresh_scheduled", "every", every.String())
	go func() {
		defer close(done)
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				l.Info("refresh_stopped")
				return
			case <-t.C:
				l.Info("refresh_start")
				t0 := time.Now()
				run(ctx)
				l.Info("refresh_done", "duration_ms", time.Since(t0).Milliseconds())
			}
		}
	}()
	return done
}
