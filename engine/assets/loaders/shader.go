package loaders

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

// SpirvMagic is the first word of every SPIR-V module.
const SpirvMagic uint32 = 0x07230203

var ErrInvalidSpirv = errors.New("not a SPIR-V module")

type ShaderLoader struct {
	Dir string
}

// Load reads the compiled stages of a shader config from Dir.
func (sl *ShaderLoader) Load(cfg metadata.ShaderConfig) (map[metadata.ShaderStage][]uint32, error) {
	out := make(map[metadata.ShaderStage][]uint32, len(cfg.Stages))
	for _, stage := range cfg.Stages {
		path := stage.SpirvPath(sl.Dir)
		code, err := LoadSpirv(path)
		if err != nil {
			return nil, fmt.Errorf("shader %s %s stage: %w", cfg.Name, stage.Stage, err)
		}
		out[stage.Stage] = code
	}
	return out, nil
}

func LoadSpirv(path string) ([]uint32, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return BytesToBytecode(buf)
}

// BytesToBytecode converts a little-endian SPIR-V file into words.
func BytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) < 20 || len(b)%4 != 0 {
		return nil, fmt.Errorf("%d bytes: %w", len(b), ErrInvalidSpirv)
	}
	byteCode := make([]uint32, len(b)/4)
	for i := range byteCode {
		byteCode[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	if byteCode[0] != SpirvMagic {
		return nil, fmt.Errorf("magic %#08x: %w", byteCode[0], ErrInvalidSpirv)
	}
	return byteCode, nil
}
