package shader

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/gogpu/naga"

	"github.com/gogpu/kaleido"
)

//go:embed kaleidoscope.wgsl
var kaleidoscopeWGSL string

// Source returns the WGSL source of the kaleidoscope program.
func Source() string {
	return kaleidoscopeWGSL
}

// CompileFunc compiles WGSL source to SPIR-V bytes.
type CompileFunc func(source string) ([]byte, error)

// Program is a compiled kaleidoscope program.
type Program struct {
	// SPIRV holds little-endian SPIR-V words.
	SPIRV []uint32
}

var (
	defaultOnce    sync.Once
	defaultProgram *Program
	defaultErr     error
)

// compileDefault compiles the embedded program with naga once per process.
func compileDefault() (*Program, error) {
	defaultOnce.Do(func() {
		defaultProgram, defaultErr = CompileProgram(naga.Compile)
	})
	return defaultProgram, defaultErr
}

// CompileProgram compiles the embedded WGSL with compile. Failures wrap
// kaleido.ErrShaderCompile.
func CompileProgram(compile CompileFunc) (p *Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("%w: compiler panicked: %v", kaleido.ErrShaderCompile, r)
		}
	}()

	spirv, err := compile(kaleidoscopeWGSL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", kaleido.ErrShaderCompile, err)
	}
	if len(spirv) == 0 || len(spirv)%4 != 0 {
		return nil, fmt.Errorf("%w: invalid SPIR-V length %d", kaleido.ErrShaderCompile, len(spirv))
	}

	// SPIR-V is little-endian 32-bit words
	words := make([]uint32, len(spirv)/4)
	for i := range words {
		words[i] = uint32(spirv[i*4]) |
			uint32(spirv[i*4+1])<<8 |
			uint32(spirv[i*4+2])<<16 |
			uint32(spirv[i*4+3])<<24
	}
	return &Program{SPIRV: words}, nil
}
