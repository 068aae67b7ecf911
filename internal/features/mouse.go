package features

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/char5742/motion-trail/internal/event"
)

// Motion は1回の SYN_REPORT にまとめられた移動量
type Motion struct {
	DX, DY int32
	// At はカーネルが SYN_REPORT に付けた時刻。時刻を持たない入力ではゼロ値
	At time.Time
	// Dropped は直前のレポートとの間で SYN_DROPPED が発生したことを示す
	Dropped bool
}

// マウス入力を扱うインターフェース
type Mouse interface {
	// 次の SYN_REPORT までの移動量を読み取る（ブロックする）
	ReadMotion() (Motion, error)
	// デバイス名を返す
	Name() string
	// マウス操作を専有する
	Grab() error
	// マウス操作の専有を解除する
	Release() error
	Close() error
}

type evdevMouse struct {
	name    string
	reader  io.Reader
	file    *os.File
	grabbed bool
	buf     [event.Size]byte
}

// 指定されたパスのevdevデバイスをマウスとして開く
func CreateMouse(path string) (Mouse, error) {
	f, err := os.OpenFile(path, syscall.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open device file: %w", err)
	}
	name, err := deviceName(f)
	if err != nil {
		mouseLog.Warn().Err(err).Str("path", path).Msg("デバイス名の取得に失敗しました")
		name = path
	}
	return &evdevMouse{name: name, reader: f, file: f}, nil
}

// newMouseFromReader はテストや録画データの再生用に任意の Reader からマウスを作る
func newMouseFromReader(name string, r io.Reader) *evdevMouse {
	return &evdevMouse{name: name, reader: r}
}

// withFd は File.Fd() を使わずにディスクリプタを操作する
// Fd() はファイルをブロッキングモードに戻し、Close による Read の中断が効かなくなるため
func withFd(f *os.File, fn func(fd uintptr) error) error {
	rc, err := f.SyscallConn()
	if err != nil {
		return err
	}
	var opErr error
	if err := rc.Control(func(fd uintptr) { opErr = fn(fd) }); err != nil {
		return err
	}
	return opErr
}

func deviceName(f *os.File) (string, error) {
	var name [256]byte
	err := withFd(f, func(fd uintptr) error {
		_, _, errno := unix.Syscall(
			unix.SYS_IOCTL,
			fd,
			uintptr(event.EVIOCGNAME(len(name))),
			uintptr(unsafe.Pointer(&name[0])),
		)
		if errno != 0 {
			return errno
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(name[:], 0); i >= 0 {
		return string(name[:i]), nil
	}
	return string(name[:]), nil
}

func (m *evdevMouse) Name() string {
	return m.name
}

func (m *evdevMouse) ReadMotion() (Motion, error) {
	var mv Motion
	for {
		if _, err := io.ReadFull(m.reader, m.buf[:]); err != nil {
			return mv, err
		}
		e, err := event.Decode(m.buf[:])
		if err != nil {
			return mv, err
		}

		switch e.Type {
		case event.Rel:
			switch e.Code {
			case event.RelX:
				mv.DX += e.Value
			case event.RelY:
				mv.DY += e.Value
			}
		case event.Syn:
			switch e.Code {
			case event.SynReport:
				if mv.DX != 0 || mv.DY != 0 {
					if e.Time.Sec != 0 || e.Time.Usec != 0 {
						mv.At = e.Timestamp()
					}
					return mv, nil
				}
			case event.SynDropped:
				// 欠落したレポートの途中値は信用できないので捨てる
				mv.DX, mv.DY = 0, 0
				mv.Dropped = true
			}
		}
	}
}

func (m *evdevMouse) Grab() error {
	if m.grabbed {
		return nil
	}
	if m.file == nil {
		return errors.New("grab is not supported for this device")
	}
	if err := m.setGrab(1); err != nil {
		return fmt.Errorf("failed to grab device: %w", err)
	}
	m.grabbed = true
	return nil
}

func (m *evdevMouse) Release() error {
	if !m.grabbed {
		return nil
	}
	if err := m.setGrab(0); err != nil {
		return fmt.Errorf("failed to release device: %w", err)
	}
	m.grabbed = false
	return nil
}

func (m *evdevMouse) setGrab(v int) error {
	return withFd(m.file, func(fd uintptr) error {
		return unix.IoctlSetInt(int(fd), event.EVIOCGRAB, v)
	})
}

func (m *evdevMouse) Close() error {
	_ = m.Release()
	if m.file == nil {
		if c, ok := m.reader.(io.Closer); ok {
			return c.Close()
		}
		return nil
	}
	return m.file.Close()
}
