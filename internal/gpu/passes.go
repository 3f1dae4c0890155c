//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Params is the per-tick effect parameter snapshot. Values outside the
// usual slider ranges are tolerated: uniforms are sanitized on the CPU and
// clamped again in WGSL.
type Params struct {
	ContrastK        float64
	BlackClamp       float64
	GammaOut         float64
	GrainIntensity   float64
	GrainSize        float64
	Vignette         float64
	CrimsonGate      bool
	CrimsonAmount    float64
	ChromaAberration float64
	FreezeFrame      bool
	PeakBoost        float64
}

// FrameContext is the per-tick timing and audio snapshot.
type FrameContext struct {
	// Time is the monotonic time in milliseconds, jitter included.
	Time float64

	// Delta is the time since the last executed tick in milliseconds.
	Delta float64

	AudioPeak float64
	AudioRMS  float64
}

// PassKind identifies one effect in the closed pass set.
type PassKind int

// Standard passes, in chain order.
const (
	PassChromatic PassKind = iota
	PassTone
	PassGrain
	PassVignette
	PassCrimson

	// Advanced passes, appended when the capability flag is on.
	PassUVWarp
	PassScanline
	PassTemporalFeedback
	PassBloomThreshold
)

var passNames = [...]string{
	PassChromatic:        "chromatic",
	PassTone:             "tone",
	PassGrain:            "grain",
	PassVignette:         "vignette",
	PassCrimson:          "crimson",
	PassUVWarp:           "uv_warp",
	PassScanline:         "scanline",
	PassTemporalFeedback: "temporal_feedback",
	PassBloomThreshold:   "bloom_threshold",
}

// String returns the pass name used in GPU labels and logs.
func (k PassKind) String() string {
	if k < 0 || int(k) >= len(passNames) {
		return fmt.Sprintf("PassKind(%d)", int(k))
	}
	return passNames[k]
}

func (k PassKind) fragmentSource() string {
	switch k {
	case PassChromatic:
		return chromaticShaderSource
	case PassTone:
		return toneShaderSource
	case PassGrain:
		return grainShaderSource
	case PassVignette:
		return vignetteShaderSource
	case PassCrimson:
		return crimsonShaderSource
	case PassUVWarp:
		return uvWarpShaderSource
	case PassScanline:
		return scanlineShaderSource
	case PassTemporalFeedback:
		return temporalFeedbackShaderSource
	case PassBloomThreshold:
		return bloomThresholdShaderSource
	}
	return ""
}

// standardPasses is the fixed chain order. Grain must precede vignette so the
// periphery darkens the noise too.
func standardPasses() []PassKind {
	return []PassKind{PassChromatic, PassTone, PassGrain, PassVignette, PassCrimson}
}

func advancedPasses() []PassKind {
	return []PassKind{PassUVWarp, PassScanline, PassTemporalFeedback, PassBloomThreshold}
}

// passUniformSize is two vec4<f32>: PassUniforms in fullscreen.wgsl.
const passUniformSize = 32

// passUniforms holds the a and b slots of PassUniforms.
type passUniforms [8]float32

// frameState is everything a pass may read while computing its uniforms.
type frameState struct {
	params     Params
	frame      FrameContext
	width      int
	height     int
	gateActive bool
}

// uniforms computes the pass parameters for one tick.
func (k PassKind) uniforms(f *frameState) passUniforms {
	seconds := f32(f.frame.Time / 1000)
	w, h := float32(f.width), float32(f.height)
	var u passUniforms
	switch k {
	case PassChromatic:
		u = passUniforms{f32(f.params.ChromaAberration), w, h, 0}
	case PassTone:
		u = passUniforms{f32(f.params.ContrastK), f32(f.params.BlackClamp), f32(f.params.GammaOut), 0}
	case PassGrain:
		u = passUniforms{seconds, f32(f.params.GrainIntensity), f32(f.params.GrainSize), 0, w, h}
	case PassVignette:
		u = passUniforms{seconds, f32(f.params.Vignette), 0, 0, w, h}
	case PassCrimson:
		var gate float32
		if f.gateActive {
			gate = 1
		}
		amount := f32(f.params.CrimsonAmount) + f32(f.params.PeakBoost)
		u = passUniforms{seconds, amount, gate, 0, w, h}
	default:
		u = passUniforms{seconds, 0, 0, 0, w, h}
	}
	return u
}

// f32 narrows v, mapping NaN and infinities to zero.
func f32(v float64) float32 {
	x := float32(v)
	if math32.IsNaN(x) || math32.IsInf(x, 0) {
		return 0
	}
	return x
}

func (u *passUniforms) bytes() []byte {
	buf := make([]byte, passUniformSize)
	for i, v := range u {
		binary.LittleEndian.PutUint32(buf[i*4:], math32.Float32bits(v))
	}
	return buf
}

// passLayout is shared by all passes: one bind group with the uniform
// buffer, the input texture and a linear clamp sampler.
type passLayout struct {
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	sampler    hal.Sampler
}

func newPassLayout(device hal.Device) (*passLayout, error) {
	l := &passLayout{}
	bindLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "pass_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create pass bind group layout: %w", err)
	}
	l.bindLayout = bindLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "pass_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{l.bindLayout},
	})
	if err != nil {
		l.destroy(device)
		return nil, fmt.Errorf("create pass pipeline layout: %w", err)
	}
	l.pipeLayout = pipeLayout

	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "pass_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		l.destroy(device)
		return nil, fmt.Errorf("create pass sampler: %w", err)
	}
	l.sampler = sampler
	return l, nil
}

func (l *passLayout) destroy(device hal.Device) {
	if l == nil {
		return
	}
	if l.sampler != nil {
		device.DestroySampler(l.sampler)
		l.sampler = nil
	}
	if l.pipeLayout != nil {
		device.DestroyPipelineLayout(l.pipeLayout)
		l.pipeLayout = nil
	}
	if l.bindLayout != nil {
		device.DestroyBindGroupLayout(l.bindLayout)
		l.bindLayout = nil
	}
}

// pass owns the GPU program of one chain stage: its shader module, one
// pipeline per target format it renders to, a uniform buffer, and the bind
// group pointing at its (fixed) input view.
type pass struct {
	kind      PassKind
	shader    hal.ShaderModule
	pipelines map[gputypes.TextureFormat]hal.RenderPipeline
	uniforms  hal.Buffer
	bindGroup hal.BindGroup
}

func newPass(device hal.Device, layout *passLayout, kind PassKind, formats ...gputypes.TextureFormat) (*pass, error) {
	p := &pass{kind: kind, pipelines: make(map[gputypes.TextureFormat]hal.RenderPipeline, len(formats))}
	label := kind.String()

	shader, err := compileShader(device, label+"_shader", passSource(kind.fragmentSource()))
	if err != nil {
		return nil, err
	}
	p.shader = shader

	for _, format := range formats {
		if _, ok := p.pipelines[format]; ok {
			continue
		}
		pipeline, err := createPassPipeline(device, layout, shader, label, format)
		if err != nil {
			p.destroy(device)
			return nil, err
		}
		p.pipelines[format] = pipeline
	}

	ub, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: label + "_uniforms",
		Size:  passUniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		p.destroy(device)
		return nil, fmt.Errorf("create %s uniform buffer: %w", label, err)
	}
	p.uniforms = ub
	return p, nil
}

func createPassPipeline(device hal.Device, layout *passLayout, shader hal.ShaderModule, label string, format gputypes.TextureFormat) (hal.RenderPipeline, error) {
	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("%s_pipeline_%d", label, format),
		Layout: layout.pipeLayout,
		Vertex: hal.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers:    quadVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    format,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s pipeline: %w", label, err)
	}
	return pipeline, nil
}

// bind points the pass at input. The previous bind group is destroyed; the
// caller makes sure the GPU is idle.
func (p *pass) bind(device hal.Device, layout *passLayout, input hal.TextureView) error {
	if p.bindGroup != nil {
		device.DestroyBindGroup(p.bindGroup)
		p.bindGroup = nil
	}
	bg, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  p.kind.String() + "_bind",
		Layout: layout.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: p.uniforms.NativeHandle(), Offset: 0, Size: passUniformSize,
			}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: input.NativeHandle()}},
			{Binding: 2, Resource: gputypes.SamplerBinding{Sampler: layout.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("create %s bind group: %w", p.kind, err)
	}
	p.bindGroup = bg
	return nil
}

// record encodes one fullscreen draw of this pass into target.
func (p *pass) record(encoder hal.CommandEncoder, quad *fullscreenQuad, target hal.TextureView, format gputypes.TextureFormat, w, h int) {
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: p.kind.String() + "_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       target,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	rp.SetPipeline(p.pipelines[format])
	rp.SetBindGroup(0, p.bindGroup, nil)
	rp.SetVertexBuffer(0, quad.buffer, 0)
	rp.SetViewport(0, 0, float32(w), float32(h), 0, 1)
	rp.Draw(quadVertexCount, 1, 0, 0)
	rp.End()
}

// destroy releases resources in reverse creation order. Safe to repeat.
func (p *pass) destroy(device hal.Device) {
	if p == nil {
		return
	}
	if p.bindGroup != nil {
		device.DestroyBindGroup(p.bindGroup)
		p.bindGroup = nil
	}
	if p.uniforms != nil {
		device.DestroyBuffer(p.uniforms)
		p.uniforms = nil
	}
	for format, pipeline := range p.pipelines {
		device.DestroyRenderPipeline(pipeline)
		delete(p.pipelines, format)
	}
	if p.shader != nil {
		device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}
