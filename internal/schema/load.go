package schema

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/admincache/internal/model"
)

// LoadValue builds the CUE value of path, which is a single .cue file or a
// directory holding one CUE package.
func LoadValue(path string) (cue.Value, error) {
	info, err := os.Stat(path)
	if err != nil {
		return cue.Value{}, fmt.Errorf("schema %s: %w", path, err)
	}

	ctx := cuecontext.New()
	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return cue.Value{}, fmt.Errorf("schema %s: %w", path, err)
		}
		v := ctx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return cue.Value{}, formatCUEError(err)
		}
		return v, nil
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: path})
	if len(instances) == 0 {
		return cue.Value{}, fmt.Errorf("schema %s: no CUE instances loaded", path)
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, fmt.Errorf("schema %s: loading CUE files: %w", path, inst.Err)
	}
	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return v, nil
}

// Load compiles and validates the schema at path.
func Load(path string) ([]model.ResourceDefinition, error) {
	v, err := LoadValue(path)
	if err != nil {
		return nil, err
	}
	defs, err := Compile(v)
	if err != nil {
		return nil, err
	}
	if errs := Validate(defs); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return defs, nil
}

// LoadString compiles and validates inline CUE source. name is used in
// error positions.
func LoadString(name, src string) ([]model.ResourceDefinition, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	defs, err := Compile(v)
	if err != nil {
		return nil, err
	}
	if errs := Validate(defs); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return defs, nil
}
