package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"power-grid/aggregate"
	"power-grid/cache"
	"power-grid/metrics"
	"power-grid/model"
	"power-grid/overpass"
)

type fakeFetcher struct {
	mu       sync.Mutex
	queries  []string
	calls    int32
	elements []model.Element
	err      error
	delay    time.Duration
}

func (f *fakeFetcher) Execute(ctx context.Context, query string, _ time.Duration) (*overpass.Response, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &overpass.Response{Elements: f.elements}, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var area = model.Region{South: 38.95, West: -94.75, North: 39.0, East: -94.6}

func fp(v float64) *float64 { return &v }

func newTestService(f Fetcher, clock *fakeClock, reg *metrics.Registry) *PowerService {
	return NewPowerService(
		f,
		cache.NewMemory[model.FeatureCollection](time.Hour, cache.WithClock(clock.Now)),
		cache.NewMemory[model.PowerResult](30*time.Minute, cache.WithClock(clock.Now), cache.WithMaxEntries(16)),
		Options{
			BoundaryName:  "Overland Park",
			BoundaryArea:  area,
			RoundDecimals: 3,
			FetchTimeout:  time.Minute,
			Metrics:       reg,
		},
	)
}

func lineElements() []model.Element {
	return []model.Element{
		{
			Type: model.ElementWay,
			ID:   10,
			Tags: map[string]string{"power": "line", "voltage": "161000"},
			Geometry: []model.LatLon{
				{Lat: 38.96, Lon: -94.70},
				{Lat: 38.97, Lon: -94.70},
			},
		},
		{
			Type: model.ElementNode,
			ID:   11,
			Tags: map[string]string{"power": "substation", "voltage": "13800"},
			Lat:  fp(38.965),
			Lon:  fp(-94.69),
		},
	}
}

func TestPower_CachesByRoundedRegion(t *testing.T) {
	f := &fakeFetcher{elements: lineElements()}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	reg := metrics.NewRegistry()
	svc := newTestService(f, clock, reg)
	ctx := context.Background()

	first := model.Region{South: 38.96001, West: -94.71, North: 38.98, East: -94.68}
	res, err := svc.Power(ctx, first)
	require.NoError(t, err)
	assert.Len(t, res.GeoJSON.Features, 2)
	assert.Equal(t, 1, res.Stats.DeviceCount)
	require.NotNil(t, res.Stats.MaxVoltage)
	assert.EqualValues(t, 161000, *res.Stats.MaxVoltage)

	// 四舍五入后落在同一个键上
	second := model.Region{South: 38.96004, West: -94.71, North: 38.98, East: -94.68}
	_, err = svc.Power(ctx, second)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.calls))

	// 查询使用调用方的原始区域
	require.Len(t, f.queries, 1)
	assert.Contains(t, f.queries[0], "38.96001")

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CacheLookupsTotal.WithLabelValues("power", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CacheLookupsTotal.WithLabelValues("power", "miss")))

	// 过期后重新抓取
	clock.Advance(31 * time.Minute)
	_, err = svc.Power(ctx, first)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&f.calls))
}

func TestPower_RejectsBadRegionWithoutFetching(t *testing.T) {
	f := &fakeFetcher{}
	svc := newTestService(f, &fakeClock{now: time.Now()}, nil)

	_, err := svc.Power(context.Background(), model.Region{South: 38.0, West: -95.0, North: 39.0, East: -94.0})
	assert.ErrorIs(t, err, model.ErrRegionTooLarge)

	_, err = svc.Power(context.Background(), model.Region{South: 39.0, West: -94.7, North: 38.9, East: -94.6})
	assert.ErrorIs(t, err, model.ErrInvalidRegion)

	assert.Zero(t, atomic.LoadInt32(&f.calls))
}

func TestPower_UpstreamFailureIsNotCached(t *testing.T) {
	unavailable := &overpass.AllEndpointsUnavailableError{
		Attempts: []overpass.Attempt{{Endpoint: "http://a.example", Err: errors.New("boom")}},
	}
	f := &fakeFetcher{err: unavailable}
	svc := newTestService(f, &fakeClock{now: time.Now()}, nil)
	ctx := context.Background()
	r := model.Region{South: 38.96, West: -94.71, North: 38.98, East: -94.68}

	_, err := svc.Power(ctx, r)
	require.Error(t, err)
	assert.ErrorIs(t, err, overpass.ErrAllEndpointsUnavailable)

	f.err = nil
	f.elements = lineElements()
	res, err := svc.Power(ctx, r)
	require.NoError(t, err)
	assert.Len(t, res.GeoJSON.Features, 2)
	assert.EqualValues(t, 2, atomic.LoadInt32(&f.calls))
}

func TestPower_ConcurrentMissesShareOneFetch(t *testing.T) {
	f := &fakeFetcher{elements: lineElements(), delay: 50 * time.Millisecond}
	svc := newTestService(f, &fakeClock{now: time.Now()}, nil)
	r := model.Region{South: 38.96, West: -94.71, North: 38.98, East: -94.68}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Power(context.Background(), r)
			assert.NoError(t, err)
			assert.Len(t, res.GeoJSON.Features, 2)
		}()
	}
	wg.Wait()

	// 在途的抓取被合并, 之后到达的请求命中缓存
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.calls))
}

func TestPower_CancelledCallerDoesNotFailOthers(t *testing.T) {
	f := &fakeFetcher{elements: lineElements(), delay: 200 * time.Millisecond}
	svc := newTestService(f, &fakeClock{now: time.Now()}, nil)
	r := model.Region{South: 38.96, West: -94.71, North: 38.98, East: -94.68}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Power(firstCtx, r)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&f.calls) == 1 }, time.Second, 5*time.Millisecond)

	secondErr := make(chan error, 1)
	var second model.PowerResult
	go func() {
		var err error
		second, err = svc.Power(context.Background(), r)
		secondErr <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancelFirst()

	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("cancelled caller did not return early")
	}

	require.NoError(t, <-secondErr)
	assert.Len(t, second.GeoJSON.Features, 2)
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.calls))

	// 抓取结果仍然写入了缓存
	_, err := svc.Power(context.Background(), r)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.calls))
}

func TestBoundary_CancelledCallerDoesNotFailOthers(t *testing.T) {
	f := &fakeFetcher{delay: 200 * time.Millisecond}
	svc := newTestService(f, &fakeClock{now: time.Now()}, nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Boundary(firstCtx)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&f.calls) == 1 }, time.Second, 5*time.Millisecond)

	secondErr := make(chan error, 1)
	go func() {
		_, err := svc.Boundary(context.Background())
		secondErr <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancelFirst()

	assert.ErrorIs(t, <-firstErr, context.Canceled)
	assert.NoError(t, <-secondErr)
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.calls))
}

func TestBoundary_ConcatenatesAndCaches(t *testing.T) {
	f := &fakeFetcher{elements: []model.Element{
		{
			Type: model.ElementRelation,
			ID:   99,
			Tags: map[string]string{"name": "Overland Park"},
			Members: []model.Member{
				{Type: model.ElementWay, Role: "outer", Geometry: []model.LatLon{
					{Lat: 38.95, Lon: -94.75}, {Lat: 39.0, Lon: -94.75},
				}},
				{Type: model.ElementWay, Role: "outer", Geometry: []model.LatLon{
					{Lat: 39.0, Lon: -94.75}, {Lat: 39.0, Lon: -94.6}, {Lat: 38.95, Lon: -94.6},
				}},
			},
		},
	}}
	svc := newTestService(f, &fakeClock{now: time.Now()}, nil)
	ctx := context.Background()

	fc, err := svc.Boundary(ctx)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	ring := fc.Features[0].Geometry.Polygon[0]
	assert.Len(t, ring, 5)
	assert.Equal(t, ring[0], ring[len(ring)-1])

	_, err = svc.Boundary(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.calls))
	assert.Contains(t, f.queries[0], `"Overland Park"`)
}

func TestBoundary_FallsBackToApproximateArea(t *testing.T) {
	f := &fakeFetcher{}
	svc := newTestService(f, &fakeClock{now: time.Now()}, nil)

	fc, err := svc.Boundary(context.Background())
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	note, ok := fc.Features[0].Properties.Get("note")
	require.True(t, ok)
	assert.Equal(t, "approximate", note.Text)
}

func TestBoundary_FetchErrorPropagates(t *testing.T) {
	f := &fakeFetcher{err: context.DeadlineExceeded}
	svc := newTestService(f, &fakeClock{now: time.Now()}, nil)

	_, err := svc.Boundary(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewPowerService_DefaultAggregator(t *testing.T) {
	svc := NewPowerService(&fakeFetcher{}, cache.NewMemory[model.FeatureCollection](time.Hour), cache.NewMemory[model.PowerResult](time.Hour), Options{})
	assert.Equal(t, aggregate.Default(), svc.agg)
	assert.NotNil(t, svc.logger)
}
