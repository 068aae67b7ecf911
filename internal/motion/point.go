package motion

import (
	"math"
	"time"
)

// Point は画面上のポインター座標（ピクセル）を表す構造体
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub は2点の差分を返す
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Distance は2点間のユークリッド距離を返す
func Distance(a, b Point) float64 {
	d := a.Sub(b)
	return math.Sqrt(d.X*d.X + d.Y*d.Y)
}

// Sample は軌跡に記録された1点
type Sample struct {
	ID    uint64    `json:"id"`
	Point Point     `json:"point"`
	At    time.Time `json:"at"`
}
