//go:build !crimsonfx_advanced && !nogpu

package gpu

const advancedDefault = false
