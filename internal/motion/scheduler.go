package motion

import "time"

// Timer は取り消し可能な遅延コールバックのハンドル
type Timer interface {
	Stop() bool
}

// Scheduler は遅延コールバックを生成する
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemScheduler は time.AfterFunc を使う Scheduler
type SystemScheduler struct{}

// AfterFunc は d 経過後に f を別ゴルーチンで実行する
func (SystemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
