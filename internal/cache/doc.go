// Package cache holds fitted source frames between ticks.
//
// A looping image sequence revisits the same frames at the same render size
// over and over. Scaling a frame to the render size costs far more than the
// upload itself, so the render graph keeps the scaled pixels here, keyed by
// frame and size, and evicts the least recently used entries once their
// total size exceeds a byte budget.
//
//	c := cache.New[Key, []byte](64<<20, func(b []byte) int { return len(b) })
//	pix := c.GetOrCreate(key, func() []byte { return scale(frame) })
//
// Cache is safe for concurrent use.
package cache
