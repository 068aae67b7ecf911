package gui

import (
	"math"

	"github.com/gdamore/tcell/v2"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Theme は端末描画で使う配色を提供します
type Theme struct {
	Background colorful.Color
	Foreground colorful.Color
	Muted      colorful.Color
	Card       colorful.Color
	Button     colorful.Color
	GaugeEmpty colorful.Color

	// 軌跡のグラデーション（古い→新しい）
	TrailFrom colorful.Color
	TrailTo   colorful.Color
}

// NewTheme は既定のテーマを返します
func NewTheme() Theme {
	return Theme{
		Background: mustHex("#1b1a2e"),
		Foreground: mustHex("#f4f4f8"), // ほぼ白
		Muted:      mustHex("#9a98b5"), // 中灰色
		Card:       mustHex("#27253f"),
		Button:     mustHex("#725CAD"),
		GaugeEmpty: mustHex("#3a3857"),
		TrailFrom:  mustHex("#725CAD"),
		TrailTo:    mustHex("#8CCDEB"),
	}
}

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// tcellColor は colorful の色を端末の24bit色に変換します
func tcellColor(c colorful.Color) tcell.Color {
	r, g, b := c.Clamped().RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}

// Style は前景色と背景色からスタイルを作ります
func (t Theme) Style(fg, bg colorful.Color) tcell.Style {
	return tcell.StyleDefault.Foreground(tcellColor(fg)).Background(tcellColor(bg))
}

// TrailDot は軌跡のi番目（0が最古）の点の不透明度と拡大率を返します
func TrailDot(i, n int) (opacity, scale float64) {
	if n <= 0 {
		return 0, 0
	}
	ratio := float64(i+1) / float64(n)
	return ratio * 0.8, ratio*0.9 + 0.3
}

// TrailColor は軌跡の点の色を返します
// グラデーション上の位置は i/(n-1)、不透明度の分だけ背景色から近づけます
func (t Theme) TrailColor(i, n int) colorful.Color {
	pos := 1.0
	if n > 1 {
		pos = float64(i) / float64(n-1)
	}
	opacity, _ := TrailDot(i, n)
	base := t.TrailFrom.BlendLab(t.TrailTo, pos)
	return t.Background.BlendRgb(base, opacity).Clamped()
}

// trailGlyphs は拡大率の小さい順の点の形
var trailGlyphs = []rune{'·', '∙', '•', '●'}

// TrailGlyph は拡大率(0.3〜1.2)に応じた点の形を返します
func TrailGlyph(scale float64) rune {
	idx := int(math.Floor((scale - 0.3) / 0.9 * float64(len(trailGlyphs))))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(trailGlyphs) {
		idx = len(trailGlyphs) - 1
	}
	return trailGlyphs[idx]
}
