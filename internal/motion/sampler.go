package motion

import (
	"sync"
	"time"
)

// Options はサンプラーの動作パラメータ
type Options struct {
	TrailCapacity     int           // 軌跡に残すサンプル数
	TrailThreshold    float64       // この距離（px）を超えた移動だけを軌跡に記録する
	SpeedScale        float64       // 表示用の速度係数（px/ms に掛ける）
	QuiescenceTimeout time.Duration // 最後の移動からこの時間が経つと停止とみなす
}

// DefaultOptions は既定のパラメータを返す
func DefaultOptions() Options {
	return Options{
		TrailCapacity:     DefaultTrailCapacity,
		TrailThreshold:    3,
		SpeedScale:        10,
		QuiescenceTimeout: 150 * time.Millisecond,
	}
}

// Snapshot はある時点のモーション状態のコピー
type Snapshot struct {
	// Seq は状態が変わるたびに増える通番。通知の到着順が前後したときの判定に使う
	Seq           uint64    `json:"seq"`
	Position      Point     `json:"position"`
	Speed         float64   `json:"speed"`
	TotalDistance float64   `json:"total_distance"`
	Moving        bool      `json:"moving"`
	Trail         []Sample  `json:"trail"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Observer は状態変化のたびに呼ばれるコールバック
type Observer func(Snapshot)

// Sampler はポインター移動イベントから速度・累積距離・軌跡を導出する
//
// 状態の更新はすべて mu で直列化される。停止判定用のタイマーは移動イベントごとに
// 張り替えられ（デバウンス）、Close で必ず停止される。オブザーバーはロックの外で呼ばれる。
type Sampler struct {
	mu    sync.Mutex
	opts  Options
	sched Scheduler

	position      Point
	speed         float64
	totalDistance float64
	moving        bool
	trail         *Trail
	nextID        uint64
	seq           uint64
	updatedAt     time.Time

	lastPosition  Point
	lastTimestamp time.Time

	idle    Timer
	idleGen uint64

	observers  map[int]Observer
	observerID int
	closed     bool
}

// NewSampler は新しいサンプラーを作成する。start は最初の経過時間計算の基準時刻
// sched が nil の場合は SystemScheduler を使う
func NewSampler(opts Options, start time.Time, sched Scheduler) *Sampler {
	if sched == nil {
		sched = SystemScheduler{}
	}
	opts = normalize(opts)
	return &Sampler{
		opts:          opts,
		sched:         sched,
		trail:         NewTrail(opts.TrailCapacity),
		lastTimestamp: start,
		updatedAt:     start,
		observers:     make(map[int]Observer),
	}
}

func normalize(opts Options) Options {
	def := DefaultOptions()
	if opts.TrailCapacity <= 0 {
		opts.TrailCapacity = def.TrailCapacity
	}
	if opts.TrailThreshold < 0 {
		opts.TrailThreshold = 0
	}
	if opts.SpeedScale <= 0 {
		opts.SpeedScale = def.SpeedScale
	}
	if opts.QuiescenceTimeout <= 0 {
		opts.QuiescenceTimeout = def.QuiescenceTimeout
	}
	return opts
}

// OnPointerMove は新しいポインター位置を取り込む
func (s *Sampler) OnPointerMove(position Point, now time.Time) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	delta := Distance(position, s.lastPosition)
	elapsed := float64(now.Sub(s.lastTimestamp)) / float64(time.Millisecond)
	speed := 0.0
	if elapsed > 0 {
		speed = delta / elapsed * s.opts.SpeedScale
	}

	s.position = position
	s.speed = speed
	s.totalDistance += delta
	s.moving = true
	s.updatedAt = now

	if delta > s.opts.TrailThreshold {
		s.trail.Push(Sample{ID: s.nextID, Point: position, At: now})
		s.nextID++
	}

	s.restartIdleTimer()

	s.lastPosition = position
	s.lastTimestamp = now
	s.seq++

	snap, observers := s.snapshotLocked(), s.observerList()
	s.mu.Unlock()

	notify(observers, snap)
}

// restartIdleTimer は保留中の停止タイマーを取り消して新しく張り直す（mu 保持中に呼ぶ）
func (s *Sampler) restartIdleTimer() {
	if s.idle != nil {
		s.idle.Stop()
	}
	s.idleGen++
	gen := s.idleGen
	s.idle = s.sched.AfterFunc(s.opts.QuiescenceTimeout, func() {
		s.settle(gen)
	})
}

// settle は停止タイマー満了時の処理。途中で新しい移動があった場合は何もしない
func (s *Sampler) settle(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.idleGen {
		s.mu.Unlock()
		return
	}
	s.idle = nil
	s.moving = false
	s.speed = 0
	s.seq++
	snap, observers := s.snapshotLocked(), s.observerList()
	s.mu.Unlock()

	motionLog.Debug().Float64("total_distance", snap.TotalDistance).Msg("ポインターが停止しました")
	notify(observers, snap)
}

// Reset は累積距離と軌跡をクリアする。位置・速度・移動中フラグは変更しない
func (s *Sampler) Reset() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.totalDistance = 0
	s.trail.Clear()
	s.seq++
	snap, observers := s.snapshotLocked(), s.observerList()
	s.mu.Unlock()

	motionLog.Info().Msg("統計をリセットしました")
	notify(observers, snap)
}

// Snapshot は現在の状態のコピーを返す
func (s *Sampler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Options は現在のパラメータを返す
func (s *Sampler) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// SetOptions はパラメータを差し替える。軌跡の容量が変わった場合は新しいサンプルを残して詰め直す
// 保留中の停止タイマーには次の移動イベントから新しいタイムアウトが適用される
func (s *Sampler) SetOptions(opts Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	opts = normalize(opts)
	if opts.TrailCapacity != s.trail.Cap() {
		s.trail.Resize(opts.TrailCapacity)
	}
	s.opts = opts
}

// Subscribe は状態変化の通知先を登録する。戻り値の関数で登録を解除する
func (s *Sampler) Subscribe(fn Observer) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	id := s.observerID
	s.observerID++
	s.observers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// Close は保留中のタイマーを停止し、以降のイベントを無視する。複数回呼んでもよい
func (s *Sampler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.idle != nil {
		s.idle.Stop()
		s.idle = nil
	}
	s.idleGen++
	clear(s.observers)
}

func (s *Sampler) snapshotLocked() Snapshot {
	return Snapshot{
		Seq:           s.seq,
		Position:      s.position,
		Speed:         s.speed,
		TotalDistance: s.totalDistance,
		Moving:        s.moving,
		Trail:         s.trail.Samples(),
		UpdatedAt:     s.updatedAt,
	}
}

func (s *Sampler) observerList() []Observer {
	if len(s.observers) == 0 {
		return nil
	}
	list := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		list = append(list, o)
	}
	return list
}

func notify(observers []Observer, snap Snapshot) {
	for _, o := range observers {
		o(snap)
	}
}
