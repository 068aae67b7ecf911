package motion

// DefaultTrailCapacity は軌跡に保持するサンプル数の既定値
const DefaultTrailCapacity = 12

// Trail は固定長のリングバッファで直近のサンプルを保持する
// 満杯のときに追加すると最も古いサンプルから捨てられる
type Trail struct {
	buf  []Sample
	r, n int // r: 最古サンプルの位置, n: 保持数
}

// NewTrail は指定容量の軌跡バッファを作成する
func NewTrail(capacity int) *Trail {
	if capacity < 1 {
		capacity = 1
	}
	return &Trail{buf: make([]Sample, capacity)}
}

// Cap はバッファの容量を返す
func (t *Trail) Cap() int {
	return len(t.buf)
}

// Len は保持しているサンプル数を返す
func (t *Trail) Len() int {
	return t.n
}

// Push はサンプルを末尾に追加する。満杯なら最古のサンプルを上書きし、それを返す
func (t *Trail) Push(s Sample) (evicted Sample, ok bool) {
	w := (t.r + t.n) % len(t.buf)
	if t.n == len(t.buf) {
		evicted, ok = t.buf[t.r], true
		t.buf[t.r] = s
		t.r = (t.r + 1) % len(t.buf)
		return evicted, ok
	}
	t.buf[w] = s
	t.n++
	return Sample{}, false
}

// Samples は古い順に並べたサンプルのコピーを返す
func (t *Trail) Samples() []Sample {
	out := make([]Sample, t.n)
	for i := range out {
		out[i] = t.buf[(t.r+i)%len(t.buf)]
	}
	return out
}

// Clear はすべてのサンプルを破棄する
func (t *Trail) Clear() {
	clear(t.buf)
	t.r, t.n = 0, 0
}

// Resize は容量を変更する。縮小時は新しいサンプルを優先して残す
func (t *Trail) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	if capacity == len(t.buf) {
		return
	}
	samples := t.Samples()
	if len(samples) > capacity {
		samples = samples[len(samples)-capacity:]
	}
	t.buf = make([]Sample, capacity)
	copy(t.buf, samples)
	t.r, t.n = 0, len(samples)
}
