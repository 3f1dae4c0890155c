//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// compileShader validates source with naga, then creates the hal shader
// module. Both failures wrap ErrShaderCompile.
func compileShader(device hal.Device, label, source string) (hal.ShaderModule, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: %s: empty source", ErrShaderCompile, label)
	}
	if _, err := naga.Compile(source); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrShaderCompile, label, err)
	}
	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{WGSL: source},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrShaderCompile, label, err)
	}
	return module, nil
}
