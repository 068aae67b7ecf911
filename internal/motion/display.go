package motion

// SpeedGauge は速度ゲージの充填率（0〜100%）を返す
func (s Snapshot) SpeedGauge() float64 {
	return min(s.Speed*2, 100)
}

// DistanceMeters は累積距離を表示用のメートル換算（100px = 1m）で返す
func (s Snapshot) DistanceMeters() float64 {
	return s.TotalDistance / 100
}
