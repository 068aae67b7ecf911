package features

// MotionFilter はマウスの移動値（dx, dy）を滑らかにします
type MotionFilter struct {
	smoothingFactor float64 // 0.0-1.0未満。1.0に近いほど滑らかになりますが、遅延が大きくなります。0で無効
	lastDX          float64
	lastDY          float64
	warmUpCount     int
	currentCount    int
}

// 新しいモーションフィルターを作成します
func NewMotionFilter(smoothingFactor float64, warmUpCount int) *MotionFilter {
	return &MotionFilter{
		smoothingFactor: smoothingFactor,
		warmUpCount:     warmUpCount,
	}
}

// raw dx, dy値にsmoothingを適用します
func (mf *MotionFilter) Filter(dxRaw, dyRaw int32) (float64, float64) {
	dx, dy := float64(dxRaw), float64(dyRaw)

	// 無効、またはウォームアップ中はそのまま返す
	if mf.smoothingFactor <= 0 || mf.currentCount < mf.warmUpCount {
		mf.currentCount++
		mf.lastDX = dx
		mf.lastDY = dy
		return dx, dy
	}

	// smoothingの適用
	f := mf.smoothingFactor
	mf.lastDX = dx*(1.0-f) + mf.lastDX*f
	mf.lastDY = dy*(1.0-f) + mf.lastDY*f

	return mf.lastDX, mf.lastDY
}

// フィルターの状態をリセットします
func (mf *MotionFilter) Reset() {
	mf.lastDX = 0
	mf.lastDY = 0
	mf.currentCount = 0
}
