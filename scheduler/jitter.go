package scheduler

// Jitter amplitudes in milliseconds, indexed by degrade level.
const (
	JitterLevel1 = 0.8
	JitterLevel2 = 1.6
)

// JitterOffset returns the timing offset added to the reported time of an
// executed tick: zero at level 0, otherwise uniform in [-a/2, a/2) with the
// amplitude a of the level. rand01 must return values in [0, 1).
func JitterOffset(level int, rand01 func() float64) float64 {
	if level <= 0 {
		return 0
	}
	amplitude := JitterLevel1
	if level >= 2 {
		amplitude = JitterLevel2
	}
	return (rand01() - 0.5) * amplitude
}
