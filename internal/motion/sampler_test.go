package motion

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualTimer はテスト用に手動で発火させるタイマー
type manualTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (m *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{d: d, f: f}
	m.timers = append(m.timers, t)
	return t
}

// fireLast は最後に作られたタイマーを（停止済みでも）実行する
func (m *manualScheduler) fireLast() {
	m.mu.Lock()
	t := m.timers[len(m.timers)-1]
	m.mu.Unlock()
	t.fired = true
	t.f()
}

func (m *manualScheduler) pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

func newTestSampler() (*Sampler, *manualScheduler) {
	sched := &manualScheduler{}
	return NewSampler(DefaultOptions(), t0, sched), sched
}

func TestSampler_FirstMove(t *testing.T) {
	s, _ := newTestSampler()

	s.OnPointerMove(Point{X: 10, Y: 0}, at(10))

	snap := s.Snapshot()
	assert.Equal(t, Point{X: 10, Y: 0}, snap.Position)
	assert.InDelta(t, 10.0, snap.Speed, 1e-9)
	assert.InDelta(t, 10.0, snap.TotalDistance, 1e-9)
	assert.True(t, snap.Moving)
	require.Len(t, snap.Trail, 1)
	assert.Equal(t, Point{X: 10, Y: 0}, snap.Trail[0].Point)
	assert.Equal(t, uint64(0), snap.Trail[0].ID)
}

func TestSampler_SmallMoveSkipsTrail(t *testing.T) {
	s, _ := newTestSampler()

	s.OnPointerMove(Point{X: 10, Y: 0}, at(10))
	s.OnPointerMove(Point{X: 11, Y: 0}, at(10))

	snap := s.Snapshot()
	assert.InDelta(t, 11.0, snap.TotalDistance, 1e-9)
	assert.Equal(t, Point{X: 11, Y: 0}, snap.Position)
	assert.Len(t, snap.Trail, 1)
	// 経過時間0ならば速度は0
	assert.Equal(t, 0.0, snap.Speed)

	// 直前位置も更新されている: 次の差分は (11,0) 基準
	s.OnPointerMove(Point{X: 14, Y: 4}, at(20))
	assert.InDelta(t, 16.0, s.Snapshot().TotalDistance, 1e-9)
}

func TestSampler_ThresholdIsExclusive(t *testing.T) {
	s, _ := newTestSampler()

	s.OnPointerMove(Point{X: 3, Y: 0}, at(5))
	assert.Empty(t, s.Snapshot().Trail)

	s.OnPointerMove(Point{X: 6.5, Y: 0}, at(6))
	assert.Len(t, s.Snapshot().Trail, 1)
}

func TestSampler_TrailKeepsNewest(t *testing.T) {
	s, _ := newTestSampler()

	for i := 1; i <= 15; i++ {
		s.OnPointerMove(Point{X: float64(i * 10), Y: 0}, at(i))
	}

	snap := s.Snapshot()
	require.Len(t, snap.Trail, 12)
	for i, sample := range snap.Trail {
		assert.Equal(t, float64((i+4)*10), sample.Point.X)
		assert.Equal(t, uint64(i+3), sample.ID)
		if i > 0 {
			assert.Greater(t, sample.ID, snap.Trail[i-1].ID)
		}
	}
}

func TestSampler_Reset(t *testing.T) {
	s, _ := newTestSampler()

	s.OnPointerMove(Point{X: 30, Y: 40}, at(10))
	s.OnPointerMove(Point{X: 60, Y: 80}, at(20))
	before := s.Snapshot()

	s.Reset()

	after := s.Snapshot()
	assert.Equal(t, 0.0, after.TotalDistance)
	assert.Empty(t, after.Trail)
	assert.Equal(t, before.Position, after.Position)
	assert.Equal(t, before.Speed, after.Speed)
	assert.Equal(t, before.Moving, after.Moving)

	// IDはリセット後も単調増加
	s.OnPointerMove(Point{X: 0, Y: 0}, at(30))
	require.Len(t, s.Snapshot().Trail, 1)
	assert.Equal(t, uint64(2), s.Snapshot().Trail[0].ID)
}

func TestSampler_DistanceIsSumOfDeltas(t *testing.T) {
	s, _ := newTestSampler()

	points := []Point{{3, 4}, {3, 4}, {6, 8}, {0, 0}, {1, 1}}
	want := 0.0
	prev := Point{}
	for i, p := range points {
		s.OnPointerMove(p, at(i*16+16))
		want += Distance(p, prev)
		prev = p

		got := s.Snapshot().TotalDistance
		assert.InDelta(t, want, got, 1e-9)
	}
}

func TestSampler_Quiescence(t *testing.T) {
	s, sched := newTestSampler()

	s.OnPointerMove(Point{X: 10, Y: 0}, at(10))
	require.Equal(t, 1, sched.pending())
	assert.Equal(t, 150*time.Millisecond, sched.timers[0].d)

	sched.fireLast()

	snap := s.Snapshot()
	assert.False(t, snap.Moving)
	assert.Equal(t, 0.0, snap.Speed)
	assert.InDelta(t, 10.0, snap.TotalDistance, 1e-9)
}

func TestSampler_DebounceRestartsTimer(t *testing.T) {
	s, sched := newTestSampler()

	s.OnPointerMove(Point{X: 10, Y: 0}, at(10))
	s.OnPointerMove(Point{X: 20, Y: 0}, at(20))

	require.Len(t, sched.timers, 2)
	assert.True(t, sched.timers[0].stopped)
	assert.Equal(t, 1, sched.pending())
}

func TestSampler_StaleTimerIsIgnored(t *testing.T) {
	s, sched := newTestSampler()

	s.OnPointerMove(Point{X: 10, Y: 0}, at(10))
	stale := sched.timers[0]
	s.OnPointerMove(Point{X: 20, Y: 0}, at(20))

	// 停止が間に合わずに古いタイマーが走ったケース
	stale.f()

	snap := s.Snapshot()
	assert.True(t, snap.Moving)
	assert.InDelta(t, 10.0, snap.Speed, 1e-9)
}

func TestSampler_CloseCancelsTimer(t *testing.T) {
	s, sched := newTestSampler()

	s.OnPointerMove(Point{X: 10, Y: 0}, at(10))
	s.Close()
	assert.Equal(t, 0, sched.pending())

	sched.timers[0].f()
	assert.True(t, s.Snapshot().Moving)

	s.OnPointerMove(Point{X: 100, Y: 0}, at(20))
	s.Reset()
	assert.InDelta(t, 10.0, s.Snapshot().TotalDistance, 1e-9)

	s.Close()
}

func TestSampler_Subscribe(t *testing.T) {
	s, sched := newTestSampler()

	var got []Snapshot
	cancel := s.Subscribe(func(snap Snapshot) {
		got = append(got, snap)
	})

	s.OnPointerMove(Point{X: 10, Y: 0}, at(10))
	sched.fireLast()
	s.Reset()
	require.Len(t, got, 3)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{got[0].Seq, got[1].Seq, got[2].Seq})
	assert.True(t, got[0].Moving)
	assert.False(t, got[1].Moving)
	assert.Empty(t, got[2].Trail)

	cancel()
	cancel()
	s.OnPointerMove(Point{X: 20, Y: 0}, at(20))
	assert.Len(t, got, 3)
}

func TestSampler_NaNPropagates(t *testing.T) {
	s, _ := newTestSampler()

	s.OnPointerMove(Point{X: math.NaN(), Y: 0}, at(10))

	snap := s.Snapshot()
	assert.True(t, math.IsNaN(snap.TotalDistance))
	assert.True(t, math.IsNaN(snap.Speed))
	assert.True(t, math.IsNaN(snap.Position.X))
	// NaN > 3 は偽なので軌跡には残らない
	assert.Empty(t, snap.Trail)
	assert.True(t, snap.Moving)

	s.Reset()
	assert.Equal(t, 0.0, s.Snapshot().TotalDistance)
	assert.Empty(t, s.Snapshot().Trail)
}

func TestSampler_SeqOnlyAdvancesOnChange(t *testing.T) {
	s, sched := newTestSampler()
	assert.Equal(t, uint64(0), s.Snapshot().Seq)

	s.OnPointerMove(Point{X: 10, Y: 0}, at(10))
	s.OnPointerMove(Point{X: 20, Y: 0}, at(20))
	assert.Equal(t, uint64(2), s.Snapshot().Seq)

	// 読み取りや設定変更では進まない
	s.Snapshot()
	s.SetOptions(DefaultOptions())
	assert.Equal(t, uint64(2), s.Snapshot().Seq)

	sched.fireLast()
	s.Reset()
	assert.Equal(t, uint64(4), s.Snapshot().Seq)
}

func TestSampler_SetOptions(t *testing.T) {
	s, sched := newTestSampler()

	for i := 1; i <= 6; i++ {
		s.OnPointerMove(Point{X: float64(i * 10), Y: 0}, at(i))
	}

	opts := s.Options()
	opts.TrailCapacity = 4
	opts.QuiescenceTimeout = time.Second
	s.SetOptions(opts)

	snap := s.Snapshot()
	require.Len(t, snap.Trail, 4)
	assert.Equal(t, 30.0, snap.Trail[0].Point.X)
	assert.Equal(t, 60.0, snap.Trail[3].Point.X)

	s.OnPointerMove(Point{X: 100, Y: 0}, at(10))
	assert.Equal(t, time.Second, sched.timers[len(sched.timers)-1].d)
}

func TestSampler_ConcurrentMoves(t *testing.T) {
	s := NewSampler(DefaultOptions(), time.Now(), nil)
	defer s.Close()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.OnPointerMove(Point{X: float64(i), Y: float64(g)}, time.Now())
			}
		}(g)
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.LessOrEqual(t, len(snap.Trail), DefaultTrailCapacity)
	assert.GreaterOrEqual(t, snap.TotalDistance, 0.0)
}

func TestSnapshot_Display(t *testing.T) {
	assert.Equal(t, 20.0, Snapshot{Speed: 10}.SpeedGauge())
	assert.Equal(t, 100.0, Snapshot{Speed: 75}.SpeedGauge())
	assert.InDelta(t, 12.345, Snapshot{TotalDistance: 1234.5}.DistanceMeters(), 1e-9)
}
