package reconcile

import (
	"aqi-map/internal/aqi"
	"aqi-map/internal/landmark"
	"aqi-map/internal/logger"
	"aqi-map/internal/metrics"
	"context"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// 文档注释：标记调和器
// 背景：批量加载与单点查询共用同一标记集合；每个查询序列开始时领取代号（generation），
// 完成时仅当代号仍为最新才写入集合，过期结果直接丢弃。
// 约束：网络请求不在持锁期间发出；发布在后台协程按状态变更顺序串行执行，慢速订阅方不阻塞查询。
type Reconciler struct {
	f           Fetcher
	pub         Publisher
	concurrency int

	mu       sync.Mutex
	markers  []Marker
	inflight int
	gen      uint64

	qmu      sync.Mutex
	queue    []Snapshot
	draining bool
}

// maxPending：待发布快照上限，发布方持续阻塞时丢弃最旧的
const maxPending = 64

type Option func(*Reconciler)

// WithConcurrency：批量加载的并发上限，<=1 时逐个顺序请求
func WithConcurrency(n int) Option {
	return func(r *Reconciler) {
		if n < 1 {
			n = 1
		}
		r.concurrency = n
	}
}

func New(f Fetcher, pub Publisher, opts ...Option) *Reconciler {
	if pub == nil {
		pub = nopPublisher{}
	}
	r := &Reconciler{f: f, pub: pub, concurrency: 1, markers: []Marker{}}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Snapshot：当前标记集合副本与加载状态
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Reconciler) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inflight > 0
}

func (r *Reconciler) snapshotLocked() Snapshot {
	return Snapshot{
		Markers:    append(make([]Marker, 0, len(r.markers)), r.markers...),
		Loading:    r.inflight > 0,
		Generation: r.gen,
	}
}

// mutate：在状态锁内修改并入队快照；入队与修改同在锁内，保证发布顺序与修改顺序一致
func (r *Reconciler) mutate(fn func() bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := fn()
	if changed {
		r.enqueue(r.snapshotLocked())
	}
	return changed
}

func (r *Reconciler) enqueue(s Snapshot) {
	r.qmu.Lock()
	defer r.qmu.Unlock()
	if len(r.queue) >= maxPending {
		logger.L().Warn("publish_queue_drop", "generation", r.queue[0].Generation)
		r.queue = r.queue[1:]
	}
	r.queue = append(r.queue, s)
	if !r.draining {
		r.draining = true
		go r.drain()
	}
}

// drain：逐条发布直至队列为空后退出，下次入队时重新启动
func (r *Reconciler) drain() {
	for {
		r.qmu.Lock()
		if len(r.queue) == 0 {
			r.draining = false
			r.qmu.Unlock()
			return
		}
		s := r.queue[0]
		r.queue = r.queue[1:]
		r.qmu.Unlock()
		r.pub.Publish(context.Background(), s)
	}
}

// begin：开启新序列，返回其代号并置加载标记
func (r *Reconciler) begin() uint64 {
	var tag uint64
	r.mutate(func() bool {
		r.gen++
		tag = r.gen
		r.inflight++
		return true
	})
	return tag
}

// end：释放加载标记；所有退出路径经 defer 调用
func (r *Reconciler) end() {
	r.mutate(func() bool {
		r.inflight--
		return true
	})
}

// commit：代号匹配时整体替换标记集合，否则丢弃
func (r *Reconciler) commit(tag uint64, ms []Marker) bool {
	return r.mutate(func() bool {
		if tag != r.gen {
			return false
		}
		r.markers = ms
		return true
	})
}

func (r *Reconciler) dropStale(tag uint64, kind string) {
	metrics.StaleDropsTotal.Inc()
	r.mu.Lock()
	cur := r.gen
	r.mu.Unlock()
	logger.L().Info("aqi_stale_drop", "kind", kind, "tag", tag, "current", cur)
}

// 文档注释：批量加载地标
// 背景：逐个（或在并发上限内）请求各地标，单个失败仅记录并跳过，不影响其余地标；
// 全部尝试完成后按地标原顺序一次性替换标记集合，期间不出现部分结果。
// 约束：不返回错误；ctx 取消时放弃写入。
func (r *Reconciler) LoadAll(ctx context.Context, lms []landmark.Landmark) {
	tag := r.begin()
	defer r.end()
	t0 := time.Now()
	logger.L().Debug("aqi_batch_begin", "tag", tag, "landmarks", len(lms), "concurrency", r.concurrency)

	results := make([]*Marker, len(lms))
	if r.concurrency <= 1 {
		for i, lm := range lms {
			results[i] = r.fetchLandmark(ctx, lm)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(r.concurrency)
		for i, lm := range lms {
			g.Go(func() error {
				results[i] = r.fetchLandmark(ctx, lm)
				return nil
			})
		}
		_ = g.Wait()
	}
	ms := lo.FilterMap(results, func(m *Marker, _ int) (Marker, bool) {
		if m == nil {
			return Marker{}, false
		}
		return *m, true
	})
	metrics.BatchDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
	if err := ctx.Err(); err != nil {
		logger.L().Warn("aqi_batch_cancelled", "tag", tag, "err", err)
		return
	}
	if !r.commit(tag, ms) {
		r.dropStale(tag, "batch")
		return
	}
	logger.L().Info("aqi_batch_done", "tag", tag, "ok", len(ms), "skipped", len(lms)-len(ms), "duration_ms", time.Since(t0).Milliseconds())
}

func (r *Reconciler) fetchLandmark(ctx context.Context, lm landmark.Landmark) *Marker {
	rd, err := r.f.Fetch(ctx, lm.Coord)
	if err != nil {
		metrics.BatchLandmarksTotal.WithLabelValues("skipped").Inc()
		logger.L().Warn("aqi_landmark_skip", "name", lm.Name, "err", err)
		return nil
	}
	metrics.BatchLandmarksTotal.WithLabelValues("ok").Inc()
	return &Marker{Lat: lm.Coord.Lat, Lng: lm.Coord.Lng, AQI: rd.AQI, Name: lm.Name}
}

// 文档注释：单点查询（用户点击地图）
// 返回：成功时标记集合被替换为该点的单个标记；失败时集合保持不变并返回错误，由上层提示用户。
// 异常：查询期间有更新的序列开始时返回 ErrSuperseded，结果不写入。
func (r *Reconciler) OnPointSelected(ctx context.Context, c aqi.Coordinate) (Marker, error) {
	tag := r.begin()
	defer r.end()
	rd, err := r.f.Fetch(ctx, c)
	if err != nil {
		metrics.PointQueriesTotal.WithLabelValues("fail").Inc()
		logger.L().Warn("aqi_point_fail", "lat", c.Lat, "lng", c.Lng, "err", err)
		return Marker{}, err
	}
	name := rd.Location
	if name == "" {
		name = FallbackLabel
	}
	m := Marker{Lat: c.Lat, Lng: c.Lng, AQI: rd.AQI, Name: name}
	if !r.commit(tag, []Marker{m}) {
		metrics.PointQueriesTotal.WithLabelValues("superseded").Inc()
		r.dropStale(tag, "point")
		return m, ErrSuperseded
	}
	metrics.PointQueriesTotal.WithLabelValues("ok").Inc()
	logger.L().Debug("aqi_point_ok", "lat", c.Lat, "lng", c.Lng, "aqi", m.AQI, "name", m.Name)
	return m, nil
}
