package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"aqi-map/internal/aqi"
	"aqi-map/internal/landmark"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher：按坐标查表应答；登记了闸门的坐标阻塞到闸门关闭
type fakeFetcher struct {
	mu       sync.Mutex
	readings map[aqi.Coordinate]aqi.Reading
	fail     map[aqi.Coordinate]error
	gates    map[aqi.Coordinate]chan struct{}
	started  chan aqi.Coordinate
	calls    int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		readings: map[aqi.Coordinate]aqi.Reading{},
		fail:     map[aqi.Coordinate]error{},
		gates:    map[aqi.Coordinate]chan struct{}{},
		started:  make(chan aqi.Coordinate, 16),
	}
}

func (f *fakeFetcher) set(c aqi.Coordinate, v int, name string) {
	f.readings[c] = aqi.Reading{Coord: c, AQI: v, Location: name}
}

func (f *fakeFetcher) gate(c aqi.Coordinate) chan struct{} {
	ch := make(chan struct{})
	f.gates[c] = ch
	return ch
}

func (f *fakeFetcher) Fetch(ctx context.Context, c aqi.Coordinate) (aqi.Reading, error) {
	f.mu.Lock()
	f.calls++
	g := f.gates[c]
	rd, ok := f.readings[c]
	err := f.fail[c]
	f.mu.Unlock()
	f.started <- c
	if g != nil {
		select {
		case <-g:
		case <-ctx.Done():
			return aqi.Reading{}, ctx.Err()
		}
	}
	if err != nil {
		return aqi.Reading{}, err
	}
	if !ok {
		return aqi.Reading{}, &aqi.FetchError{Kind: aqi.KindProvider, Coord: c, Msg: "no station"}
	}
	return rd, nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (p *recordingPublisher) Publish(_ context.Context, s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps = append(p.snaps, s)
}

func (p *recordingPublisher) all() []Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Snapshot(nil), p.snaps...)
}

// settled：等待后台发布送达首个 loading=false 的快照（即一次序列结束）
func (p *recordingPublisher) settled(t *testing.T) Snapshot {
	t.Helper()
	var got Snapshot
	require.Eventually(t, func() bool {
		for _, s := range p.all() {
			if !s.Loading {
				got = s
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func names(ms []Marker) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Name)
	}
	return out
}

func mumbaiFetcher(failing ...string) *fakeFetcher {
	f := newFakeFetcher()
	skip := map[string]bool{}
	for _, n := range failing {
		skip[n] = true
	}
	for i, lm := range landmark.Mumbai() {
		if skip[lm.Name] {
			f.fail[lm.Coord] = &aqi.FetchError{Kind: aqi.KindTransport, Coord: lm.Coord, Err: errors.New("connection refused")}
			continue
		}
		f.set(lm.Coord, 100+i, "station")
	}
	return f
}

func TestLoadAll_PartialFailure(t *testing.T) {
	for _, conc := range []int{1, 3, 10} {
		t.Run(fmt.Sprintf("concurrency=%d", conc), func(t *testing.T) {
			f := mumbaiFetcher("Juhu Beach")
			pub := &recordingPublisher{}
			r := New(f, pub, WithConcurrency(conc))

			r.LoadAll(context.Background(), landmark.Mumbai())

			s := r.Snapshot()
			assert.False(t, s.Loading)
			require.Len(t, s.Markers, 4)
			assert.Equal(t, []string{"Gateway of India", "Marine Drive", "Chhatrapati Shivaji Terminus", "Bandra-Worli Sea Link"}, names(s.Markers))
			assert.Equal(t, 18.9220, s.Markers[0].Lat)
			assert.Equal(t, 100, s.Markers[0].AQI)
			assert.Equal(t, 5, f.calls)
			assert.Len(t, pub.settled(t).Markers, 4)
		})
	}
}

func TestLoadAll_SuccessCounts(t *testing.T) {
	cases := []struct {
		name    string
		failing []string
		want    int
	}{
		{"all ok", nil, 5},
		{"two fail", []string{"Marine Drive", "Gateway of India"}, 3},
		{"all fail", []string{"Gateway of India", "Marine Drive", "Juhu Beach", "Chhatrapati Shivaji Terminus", "Bandra-Worli Sea Link"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := New(mumbaiFetcher(tc.failing...), nil)
			r.markers = []Marker{{Name: "previous"}}
			r.LoadAll(context.Background(), landmark.Mumbai())
			s := r.Snapshot()
			assert.Len(t, s.Markers, tc.want)
			assert.NotContains(t, names(s.Markers), "previous")
			for _, n := range tc.failing {
				assert.NotContains(t, names(s.Markers), n)
			}
		})
	}
}

func TestLoadAll_CancelledKeepsMarkers(t *testing.T) {
	r := New(mumbaiFetcher(), nil)
	r.markers = []Marker{{Name: "previous"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.LoadAll(ctx, landmark.Mumbai())
	s := r.Snapshot()
	assert.Equal(t, []string{"previous"}, names(s.Markers))
	assert.False(t, s.Loading)
}

func TestOnPointSelected_Success(t *testing.T) {
	click := aqi.Coordinate{Lat: 19.0760, Lng: 72.8777}
	f := newFakeFetcher()
	f.set(click, 142, "Mumbai")
	r := New(f, nil)
	r.markers = []Marker{{Name: "a"}, {Name: "b"}}

	m, err := r.OnPointSelected(context.Background(), click)
	require.NoError(t, err)
	want := Marker{Lat: 19.0760, Lng: 72.8777, AQI: 142, Name: "Mumbai"}
	assert.Equal(t, want, m)
	s := r.Snapshot()
	assert.Equal(t, []Marker{want}, s.Markers)
	assert.False(t, s.Loading)
}

func TestOnPointSelected_FallbackLabel(t *testing.T) {
	click := aqi.Coordinate{Lat: 10, Lng: 20}
	f := newFakeFetcher()
	f.set(click, 7, "")
	r := New(f, nil)
	m, err := r.OnPointSelected(context.Background(), click)
	require.NoError(t, err)
	assert.Equal(t, FallbackLabel, m.Name)
}

func TestOnPointSelected_FailureLeavesMarkers(t *testing.T) {
	click := aqi.Coordinate{Lat: 10, Lng: 20}
	f := newFakeFetcher()
	f.fail[click] = &aqi.FetchError{Kind: aqi.KindProvider, Coord: click, Msg: "Invalid key"}
	pub := &recordingPublisher{}
	r := New(f, pub)
	before := []Marker{{Lat: 1, Lng: 2, AQI: 3, Name: "kept"}}
	r.markers = before

	_, err := r.OnPointSelected(context.Background(), click)
	require.Error(t, err)
	assert.ErrorIs(t, err, aqi.ErrProvider)
	s := r.Snapshot()
	assert.Equal(t, before, s.Markers)
	assert.False(t, s.Loading)
	assert.Equal(t, before, pub.settled(t).Markers)
}

func TestLoadingFlagDuringFetch(t *testing.T) {
	click := aqi.Coordinate{Lat: 10, Lng: 20}
	f := newFakeFetcher()
	f.set(click, 1, "x")
	release := f.gate(click)
	r := New(f, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.OnPointSelected(context.Background(), click)
	}()
	<-f.started
	assert.True(t, r.Loading())
	close(release)
	<-done
	assert.False(t, r.Loading())
}

func TestStaleBatchIsDropped(t *testing.T) {
	lms := landmark.Mumbai()
	f := mumbaiFetcher()
	release := f.gate(lms[0].Coord)
	click := aqi.Coordinate{Lat: 19.0760, Lng: 72.8777}
	f.set(click, 142, "Mumbai")
	r := New(f, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.LoadAll(context.Background(), lms)
	}()
	require.Equal(t, lms[0].Coord, <-f.started)

	_, err := r.OnPointSelected(context.Background(), click)
	require.NoError(t, err)
	assert.True(t, r.Loading(), "batch still in flight")

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("batch did not finish")
	}
	s := r.Snapshot()
	assert.Equal(t, []string{"Mumbai"}, names(s.Markers))
	assert.False(t, s.Loading)
	assert.Equal(t, uint64(2), s.Generation)
}

func TestStalePointIsSuperseded(t *testing.T) {
	lms := landmark.Mumbai()
	f := mumbaiFetcher()
	click := aqi.Coordinate{Lat: 19.0760, Lng: 72.8777}
	f.set(click, 142, "Mumbai")
	release := f.gate(click)
	r := New(f, nil)

	type result struct {
		m   Marker
		err error
	}
	res := make(chan result, 1)
	go func() {
		m, err := r.OnPointSelected(context.Background(), click)
		res <- result{m, err}
	}()
	require.Equal(t, click, <-f.started)

	go func() {
		for range f.started {
		}
	}()
	r.LoadAll(context.Background(), lms)
	close(release)

	got := <-res
	close(f.started)
	assert.ErrorIs(t, got.err, ErrSuperseded)
	s := r.Snapshot()
	assert.Len(t, s.Markers, 5)
	assert.NotContains(t, names(s.Markers), "Mumbai")
	assert.False(t, s.Loading)
}

type slowPublisher struct {
	recordingPublisher
	delay time.Duration
}

func (p *slowPublisher) Publish(ctx context.Context, s Snapshot) {
	time.Sleep(p.delay)
	p.recordingPublisher.Publish(ctx, s)
}

func TestSlowPublisherDoesNotBlockQueries(t *testing.T) {
	click := aqi.Coordinate{Lat: 19.0760, Lng: 72.8777}
	f := newFakeFetcher()
	f.set(click, 142, "Mumbai")
	pub := &slowPublisher{delay: 300 * time.Millisecond}
	r := New(f, pub)

	t0 := time.Now()
	_, err := r.OnPointSelected(context.Background(), click)
	require.NoError(t, err)
	assert.Less(t, time.Since(t0), 150*time.Millisecond)

	require.Eventually(t, func() bool { return len(pub.all()) == 3 }, 3*time.Second, 10*time.Millisecond)
	snaps := pub.all()
	assert.True(t, snaps[0].Loading)
	assert.Empty(t, snaps[0].Markers)
	assert.True(t, snaps[1].Loading)
	assert.Len(t, snaps[1].Markers, 1)
	assert.False(t, snaps[2].Loading)
	assert.Len(t, snaps[2].Markers, 1)
}

func TestSnapshotIsCopy(t *testing.T) {
	r := New(mumbaiFetcher(), nil)
	r.LoadAll(context.Background(), landmark.Mumbai())
	s := r.Snapshot()
	s.Markers[0].Name = "mutated"
	assert.NotEqual(t, "mutated", r.Snapshot().Markers[0].Name)
}
