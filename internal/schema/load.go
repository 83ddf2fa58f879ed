package schema

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// CompileBytes compiles a single CUE document.
func CompileBytes(filename string, src []byte) (*Model, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return Compile(v)
}

// Load reads a schema from a .cue file or from every .cue file of a
// directory (one CUE package).
func Load(path string) (*Model, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	if !info.IsDir() {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("schema: %w", err)
		}
		return CompileBytes(path, src)
	}

	files, err := filepath.Glob(filepath.Join(path, "*.cue"))
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("schema: no CUE files found in %s", path)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: path})
	if len(instances) == 0 {
		return nil, fmt.Errorf("schema: no CUE instances loaded from %s", path)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("schema: loading CUE files: %w", inst.Err)
	}

	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return Compile(v)
}
