//go:build crimsonfx_advanced && !nogpu

package gpu

// advancedDefault enables the warp, scanline, feedback and bloom passes when
// the crimsonfx_advanced build tag is set.
const advancedDefault = true
