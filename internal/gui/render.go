package gui

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/mattn/go-runewidth"

	"github.com/char5742/motion-trail/internal/motion"
)

const (
	title       = "Mouse Tracker"
	resetLabel  = "[ Reset Statistics ]"
	helpLabel   = "r: リセット  q/Esc: 終了"
	cardTop     = 2
	cardHeight  = 6
	cardGap     = 2
	buttonRow   = cardTop + cardHeight + 1
	cursorIdle  = '○'
	cursorMoved = '◉'
)

type rect struct {
	x, y, w, h int
}

func (r rect) contains(x, y int) bool {
	return x >= r.x && x < r.x+r.w && y >= r.y && y < r.y+r.h
}

// Renderer はスナップショットを端末に描画する
// 座標はピクセル単位で受け取り、セルの大きさで割って端末上の位置に変換する
type Renderer struct {
	theme  Theme
	cellW  int
	cellH  int
	button rect
}

// NewRenderer は新しいレンダラーを作成する
func NewRenderer(theme Theme, cellW, cellH int) *Renderer {
	r := &Renderer{theme: theme}
	r.SetCellSize(cellW, cellH)
	return r
}

// SetCellSize は1セルあたりのピクセル数を変更する
func (r *Renderer) SetCellSize(cellW, cellH int) {
	if cellW <= 0 {
		cellW = 1
	}
	if cellH <= 0 {
		cellH = 1
	}
	r.cellW, r.cellH = cellW, cellH
}

// CellToPixel は端末セルの左上をピクセル座標に変換する
func (r *Renderer) CellToPixel(x, y int) motion.Point {
	return motion.Point{X: float64(x * r.cellW), Y: float64(y * r.cellH)}
}

// PixelToCell はピクセル座標を含む端末セルを返す
func (r *Renderer) PixelToCell(p motion.Point) (int, int) {
	return int(math.Floor(p.X / float64(r.cellW))), int(math.Floor(p.Y / float64(r.cellH)))
}

// ButtonAt はセル (x, y) がリセットボタン上かどうかを返す
func (r *Renderer) ButtonAt(x, y int) bool {
	return r.button.contains(x, y)
}

// Draw は画面全体を描き直す。Show は呼び出し側が行う
func (r *Renderer) Draw(s tcell.Screen, snap motion.Snapshot) {
	th := r.theme
	width, height := s.Size()
	base := th.Style(th.Foreground, th.Background)
	s.Fill(' ', base)

	drawText(s, (width-runewidth.StringWidth(title))/2, 0, base.Bold(true), title)

	cardW := (width - cardGap*4) / 3
	if cardW < 1 {
		cardW = 1
	}
	cards := []rect{
		{x: cardGap, y: cardTop, w: cardW, h: cardHeight},
		{x: cardGap*2 + cardW, y: cardTop, w: cardW, h: cardHeight},
		{x: cardGap*3 + cardW*2, y: cardTop, w: cardW, h: cardHeight},
	}

	r.drawCard(s, cards[0], "Position",
		fmt.Sprintf("X Coordinate: %.0fpx", snap.Position.X),
		fmt.Sprintf("Y Coordinate: %.0fpx", snap.Position.Y))
	r.drawCard(s, cards[1], "Speed",
		fmt.Sprintf("Current: %.1f", snap.Speed))
	r.drawGauge(s, cards[1].x+2, cards[1].y+4, cards[1].w-4, snap.SpeedGauge())
	r.drawCard(s, cards[2], "Distance",
		fmt.Sprintf("Total: %.1fm", snap.DistanceMeters()),
		fmt.Sprintf("%.0f pixels traveled", snap.TotalDistance))

	r.button = rect{x: (width - len(resetLabel)) / 2, y: buttonRow, w: len(resetLabel), h: 1}
	drawText(s, r.button.x, r.button.y, th.Style(th.Foreground, th.Button).Bold(true), resetLabel)

	drawText(s, 1, height-1, th.Style(th.Muted, th.Background), helpLabel)

	r.drawTrail(s, snap.Trail)
	r.drawCursor(s, snap)
}

func (r *Renderer) drawCard(s tcell.Screen, box rect, heading string, lines ...string) {
	th := r.theme
	style := th.Style(th.Foreground, th.Card)
	for y := box.y; y < box.y+box.h; y++ {
		for x := box.x; x < box.x+box.w; x++ {
			s.SetContent(x, y, ' ', nil, style)
		}
	}
	drawClipped(s, box.x+2, box.y+1, box.w-2, th.Style(th.Muted, th.Card), heading)
	for i, line := range lines {
		drawClipped(s, box.x+2, box.y+2+i, box.w-2, style.Bold(true), line)
	}
}

func (r *Renderer) drawGauge(s tcell.Screen, x, y, w int, percent float64) {
	if w <= 0 {
		return
	}
	th := r.theme
	filled := int(math.Round(percent / 100 * float64(w)))
	for i := 0; i < w; i++ {
		if i < filled {
			// ゲージの左から右へグラデーション
			c := th.TrailFrom.BlendLab(th.TrailTo, float64(i)/float64(w))
			s.SetContent(x+i, y, '█', nil, th.Style(c, th.Card))
		} else {
			s.SetContent(x+i, y, '░', nil, th.Style(th.GaugeEmpty, th.Card))
		}
	}
}

func (r *Renderer) drawTrail(s tcell.Screen, trail []motion.Sample) {
	n := len(trail)
	for i, sample := range trail {
		x, y := r.PixelToCell(sample.Point)
		_, scale := TrailDot(i, n)
		fg := r.theme.TrailColor(i, n)
		s.SetContent(x, y, TrailGlyph(scale), nil, r.cellStyle(s, x, y, fg))
	}
}

func (r *Renderer) drawCursor(s tcell.Screen, snap motion.Snapshot) {
	x, y := r.PixelToCell(snap.Position)
	glyph := cursorIdle
	fg := r.theme.Muted
	if snap.Moving {
		glyph = cursorMoved
		fg = r.theme.TrailTo
	}
	s.SetContent(x, y, glyph, nil, r.cellStyle(s, x, y, fg).Bold(snap.Moving))
}

// cellStyle は既存セルの背景色を保ったまま前景色を差し替える
func (r *Renderer) cellStyle(s tcell.Screen, x, y int, fg colorful.Color) tcell.Style {
	_, _, style, _ := s.GetContent(x, y)
	return style.Foreground(tcellColor(fg))
}

func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, ch := range text {
		s.SetContent(x, y, ch, nil, style)
		x += runewidth.RuneWidth(ch)
	}
}

func drawClipped(s tcell.Screen, x, y, w int, style tcell.Style, text string) {
	for _, ch := range text {
		cw := runewidth.RuneWidth(ch)
		if cw > w {
			return
		}
		s.SetContent(x, y, ch, nil, style)
		x += cw
		w -= cw
	}
}
