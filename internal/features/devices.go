package features

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDeviceDir は永続的なデバイス名のシンボリックリンクが並ぶディレクトリ
const DefaultDeviceDir = "/dev/input/by-id"

// ErrNoMouseDevice は使用可能なマウスが見つからないときに返される
var ErrNoMouseDevice = errors.New("no mouse device found")

type Device struct {
	Name string     `json:"name"`
	Path string     `json:"path"`
	Type DeviceType `json:"type"`
}

// デバイスタイプを表す列挙型
type DeviceType int

const (
	DeviceTypeKeyboard DeviceType = iota
	DeviceTypeMouse
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeKeyboard:
		return "keyboard"
	case DeviceTypeMouse:
		return "mouse"
	default:
		return "unknown"
	}
}

// MarshalText はJSONでの表記を文字列にする
func (t DeviceType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// DeviceEventType はデバイスイベントの種類を表す
type DeviceEventType int

const (
	DeviceAdded DeviceEventType = iota
	DeviceRemoved
)

// DeviceEvent はデバイスの変更イベントを表す
type DeviceEvent struct {
	Type   DeviceEventType
	Device Device
}

// DeviceCallback はデバイスイベント発生時に呼び出されるコールバック関数の型
type DeviceCallback func(event DeviceEvent)

// ScanDevices は現在接続されているデバイスリストを返します
func ScanDevices() ([]Device, error) {
	return ScanDevicesIn(DefaultDeviceDir)
}

// ScanDevicesIn は指定ディレクトリ内の event デバイスのリンクを解決して返します
func ScanDevicesIn(dir string) ([]Device, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var devices []Device
	for _, entry := range entries {
		// eventが含まれない場合はスキップ
		if !strings.Contains(entry.Name(), "event") {
			continue
		}
		fullPath := filepath.Join(dir, entry.Name())
		realPath, err := os.Readlink(fullPath)
		if err != nil {
			continue
		}

		// 絶対パスを構築
		absPath := realPath
		if !filepath.IsAbs(realPath) {
			absPath = filepath.Join(dir, realPath)
		}

		switch {
		case strings.Contains(entry.Name(), "kbd"):
			devices = append(devices, Device{Name: entry.Name(), Path: absPath, Type: DeviceTypeKeyboard})
		case strings.Contains(entry.Name(), "mouse"):
			devices = append(devices, Device{Name: entry.Name(), Path: absPath, Type: DeviceTypeMouse})
		}
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })
	return devices, nil
}

// SelectMouse は優先デバイス名に一致するマウス、なければ最初のマウスを返します
func SelectMouse(devices []Device, preferred string) (Device, error) {
	var first *Device
	for i := range devices {
		device := &devices[i]
		if device.Type != DeviceTypeMouse {
			continue
		}
		if preferred != "" && device.Name == preferred {
			return *device, nil
		}
		if first == nil {
			first = device
		}
	}
	if first == nil {
		return Device{}, ErrNoMouseDevice
	}
	if preferred != "" {
		deviceLog.Warn().Str("preferred", preferred).Str("using", first.Name).
			Msg("優先マウスが見つからないため最初のマウスを使用します")
	}
	return *first, nil
}

// DeviceMonitor はデバイスの接続状態を監視する構造体
type DeviceMonitor struct {
	dir          string
	watcher      *fsnotify.Watcher
	callbacks    []DeviceCallback
	devices      map[string]Device // 名前をキーにしたデバイスマップ
	mutex        sync.RWMutex
	stopChan     chan struct{}
	done         chan struct{}
	debounce     time.Duration
	pollInterval time.Duration
	isRunning    bool
}

// NewDeviceMonitor は新しいDeviceMonitorを作成する
func NewDeviceMonitor(dir string) (*DeviceMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &DeviceMonitor{
		dir:          dir,
		watcher:      watcher,
		devices:      make(map[string]Device),
		stopChan:     make(chan struct{}),
		done:         make(chan struct{}),
		debounce:     500 * time.Millisecond,
		pollInterval: 5 * time.Second,
	}, nil
}

// Start はデバイスの監視を開始する
func (dm *DeviceMonitor) Start() error {
	dm.mutex.Lock()
	if dm.isRunning {
		dm.mutex.Unlock()
		return nil // すでに実行中
	}
	dm.isRunning = true
	dm.mutex.Unlock()

	deviceLog.Info().Str("dir", dm.dir).Msg("デバイスモニターを開始します")

	if err := dm.watcher.Add(dm.dir); err != nil {
		deviceLog.Warn().Err(err).Str("dir", dm.dir).Msg("ディレクトリの監視に失敗しました。ポーリングのみで監視します")
	}

	// 初期デバイス一覧を取得（コールバックは呼ばない）
	devices, err := ScanDevicesIn(dm.dir)
	if err != nil {
		deviceLog.Warn().Err(err).Msg("初期デバイス一覧の取得に失敗しました")
	}
	dm.mutex.Lock()
	for _, d := range devices {
		dm.devices[d.Name] = d
	}
	dm.mutex.Unlock()
	deviceLog.Info().Int("count", len(devices)).Msg("初期デバイスを検出しました")

	go dm.watchEvents()
	return nil
}

// Stop はデバイスの監視を停止する
func (dm *DeviceMonitor) Stop() {
	dm.mutex.Lock()
	if !dm.isRunning {
		dm.mutex.Unlock()
		return
	}
	dm.isRunning = false
	dm.mutex.Unlock()

	deviceLog.Info().Msg("デバイスモニターを停止します")
	close(dm.stopChan)
	<-dm.done
	dm.watcher.Close()
}

// RegisterCallback はデバイスイベントのコールバック関数を登録する
func (dm *DeviceMonitor) RegisterCallback(callback DeviceCallback) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	dm.callbacks = append(dm.callbacks, callback)
}

// GetConnectedDevices は現在接続されているデバイスのスナップショットを名前順で返す
func (dm *DeviceMonitor) GetConnectedDevices() []Device {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	devices := make([]Device, 0, len(dm.devices))
	for _, device := range dm.devices {
		devices = append(devices, device)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })
	return devices
}

// RescanDevices はデバイス一覧を再スキャンし、差分をコールバックに通知する
func (dm *DeviceMonitor) RescanDevices() {
	devices, err := ScanDevicesIn(dm.dir)
	if err != nil {
		deviceLog.Warn().Err(err).Msg("デバイス再スキャンに失敗しました")
		return
	}
	dm.updateDeviceList(devices)
}

// updateDeviceList は新しいデバイス一覧と現在の一覧を比較して更新する
func (dm *DeviceMonitor) updateDeviceList(devices []Device) {
	next := make(map[string]Device, len(devices))
	for _, d := range devices {
		next[d.Name] = d
	}

	var events []DeviceEvent
	dm.mutex.Lock()
	for name, d := range dm.devices {
		if _, ok := next[name]; !ok {
			events = append(events, DeviceEvent{Type: DeviceRemoved, Device: d})
		}
	}
	for name, d := range next {
		if _, ok := dm.devices[name]; !ok {
			events = append(events, DeviceEvent{Type: DeviceAdded, Device: d})
		}
	}
	dm.devices = next
	callbacks := append([]DeviceCallback(nil), dm.callbacks...)
	dm.mutex.Unlock()

	for _, ev := range events {
		if ev.Type == DeviceAdded {
			deviceLog.Info().Str("name", ev.Device.Name).Str("path", ev.Device.Path).Msg("デバイスが接続されました")
		} else {
			deviceLog.Info().Str("name", ev.Device.Name).Msg("デバイスが切断されました")
		}
		for _, cb := range callbacks {
			cb(ev)
		}
	}
}

// watchEvents はファイルシステムイベントとポーリングでデバイスの変化を検出する
func (dm *DeviceMonitor) watchEvents() {
	defer close(dm.done)

	// 一時的なファイルシステムイベントを収集してバッチ処理するためのしくみ
	eventTimer := time.NewTimer(dm.debounce)
	eventTimer.Stop() // 初期状態では停止
	pollingTicker := time.NewTicker(dm.pollInterval)
	defer pollingTicker.Stop()

	for {
		select {
		case <-dm.stopChan:
			eventTimer.Stop()
			return

		case <-eventTimer.C:
			dm.RescanDevices()

		case <-pollingTicker.C:
			dm.RescanDevices()

		case event, ok := <-dm.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				deviceLog.Debug().Str("op", event.Op.String()).Str("name", event.Name).Msg("ファイルシステムイベント")
				// タイマーをリセットして複数のイベントをバッチ処理
				eventTimer.Reset(dm.debounce)
			}

		case err, ok := <-dm.watcher.Errors:
			if !ok {
				return
			}
			deviceLog.Warn().Err(err).Msg("ファイルシステム監視エラー")
		}
	}
}
