package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/relgraph/internal/ir"
)

// Load error codes (E001-E009).
const (
	ErrCodeGeneric     = "E001" // generic/unknown error
	ErrCodeScanError   = "E002" // directory scan error
	ErrCodeNoFiles     = "E003" // no declaration files found
	ErrCodeLoadFailed  = "E004" // CUE or YAML load failed
	ErrCodeNotFound    = "E005" // path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
)

// LoadError represents an error that occurred while loading declarations.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSchema reads declarations from path. A directory is loaded as a CUE
// package; a .yaml or .yml file is decoded as YAML; a .cue file is loaded on
// its own.
func LoadSchema(path string) (*ir.Schema, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema path not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema path: %v", err)}
	}

	if info.IsDir() {
		return loadCUEDir(path)
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}
		}
		return ParseYAML(data)
	case ".cue":
		return loadCUEFiles(filepath.Dir(path), []string{filepath.Base(path)})
	default:
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("unsupported schema file %s: want .cue, .yaml or .yml", path)}
	}
}

// ParseYAML decodes declarations written in YAML. Unknown keys are rejected.
func ParseYAML(data []byte) (*ir.Schema, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var schema ir.Schema
	if err := dec.Decode(&schema); err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("decoding YAML schema: %v", err)}
	}
	if len(schema.Entities) == 0 {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: "no entities found in schema"}
	}
	for i := range schema.Relations {
		if schema.Relations[i].Name == "" {
			schema.Relations[i].Name = schema.Relations[i].RelationName()
		}
	}
	return &schema, nil
}

func loadCUEDir(dir string) (*ir.Schema, error) {
	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}
	return loadCUEFiles(dir, []string{"."})
}

func loadCUEFiles(dir string, args []string) (*ir.Schema, error) {
	ctx := cuecontext.New()
	instances := load.Instances(args, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	schema, err := CompileSchema(value)
	if err != nil {
		var compileErr *CompileError
		if errors.As(err, &compileErr) {
			return nil, &LoadError{Code: ErrCodeGeneric, Message: compileErr.Field + ": " + compileErr.Message, Pos: compileErr.Pos}
		}
		return nil, err
	}
	return schema, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
