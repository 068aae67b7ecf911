package event

import (
	"encoding/binary"
	"fmt"
	"syscall"
	"time"
)

// イベントタイプの定数（input-event-codes.hより）
const (
	Syn  = 0x00 // 同期イベント
	Key  = 0x01 // キーイベント
	Rel  = 0x02 // 相対座標イベント
	Abs  = 0x03 // 絶対座標イベント
	RelX = 0x0  // X軸の相対移動
	RelY = 0x1  // Y軸の相対移動

	RelWheel = 0x8 // ホイールの相対移動

	SynReport  = 0 // イベント報告の同期
	SynDropped = 3 // バッファあふれによる欠落
)

// evdev 用のIOCTL
const (
	EVIOCGRAB = 0x40044590 // デバイスの排他制御

	// EVIOCGNAME(len) = _IOC(_IOC_READ, 'E', 0x06, len)
	eviocgnameBase = 0x80004506
)

// EVIOCGNAME は長さ n のバッファ向けのデバイス名取得IOCTLを返す
func EVIOCGNAME(n int) uint {
	return eviocgnameBase | uint(n)<<16
}

// Size は64bit環境での input_event 構造体のバイト数
const Size = 24

// Event は入力イベントを表す構造体
type Event struct {
	Time  syscall.Timeval // イベント発生時刻
	Type  uint16          // イベントタイプ
	Code  uint16          // イベントコード
	Value int32           // イベント値
}

// Decode はカーネルから読んだバイト列を Event に変換する
func Decode(buf []byte) (Event, error) {
	var e Event
	if len(buf) < Size {
		return e, fmt.Errorf("input_event が短すぎます: %d bytes", len(buf))
	}
	e.Time.Sec = int64(binary.LittleEndian.Uint64(buf[0:8]))
	e.Time.Usec = int64(binary.LittleEndian.Uint64(buf[8:16]))
	e.Type = binary.LittleEndian.Uint16(buf[16:18])
	e.Code = binary.LittleEndian.Uint16(buf[18:20])
	e.Value = int32(binary.LittleEndian.Uint32(buf[20:24]))
	return e, nil
}

// Encode は Event をカーネル形式のバイト列に変換する
func Encode(e Event) []byte {
	buf := make([]byte, Size)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(e.Time.Sec))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(e.Time.Usec))
	binary.LittleEndian.PutUint16(buf[16:18], e.Type)
	binary.LittleEndian.PutUint16(buf[18:20], e.Code)
	binary.LittleEndian.PutUint32(buf[20:24], uint32(e.Value))
	return buf
}

// Timestamp はイベント時刻を time.Time で返す
func (e Event) Timestamp() time.Time {
	return time.Unix(e.Time.Sec, e.Time.Usec*1000)
}
