package api

import (
	"sync"

	"github.com/char5742/motion-trail/internal/motion"
)

// Broadcaster はサンプラーのスナップショットを複数のSSEクライアントに配信する
// 遅いクライアントには最新のスナップショットだけを残す
type Broadcaster struct {
	mu      sync.Mutex
	clients map[chan motion.Snapshot]struct{}
	last    uint64 // 配信済みの最大の通番
	cancel  func()
}

// NewBroadcaster はサンプラーを購読するブロードキャスターを作成する
func NewBroadcaster(s *motion.Sampler) *Broadcaster {
	b := &Broadcaster{clients: make(map[chan motion.Snapshot]struct{})}
	b.cancel = s.Subscribe(b.publish)
	return b
}

func (b *Broadcaster) publish(snap motion.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// 通知はサンプラーのロック外で行われるため、古い状態が後から届くことがある
	if snap.Seq <= b.last {
		return
	}
	b.last = snap.Seq
	for ch := range b.clients {
		select {
		case ch <- snap:
		default:
			// 古い値を捨てて最新の値に置き換える
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// Join はクライアント用のチャネルを登録する。leave で登録を解除する
func (b *Broadcaster) Join() (updates <-chan motion.Snapshot, leave func()) {
	ch := make(chan motion.Snapshot, 1)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
	}
}

// Clients は接続中のクライアント数を返す
func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close はサンプラーの購読を解除する
func (b *Broadcaster) Close() {
	b.cancel()
}
