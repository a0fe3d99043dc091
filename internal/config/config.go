// Package config loads the optional agro-fw-merge.hcl file and merges it with
// defaults and command-line overrides into Settings.
//
// Example:
//
//	build_dir      = "${env.PIO_BUILD_DIR}"
//	version_header = "src/core/version.h"
//	packages_dir   = "~/.platformio/packages"
//	strict         = true
//
// Expressions may reference the process environment through the env object.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// FileName is the config file looked up in the project directory.
const FileName = "agro-fw-merge.hcl"

// File mirrors the attributes accepted in the config file.
type File struct {
	ProjectDir    string   `hcl:"project_dir,optional"`
	BuildDir      string   `hcl:"build_dir,optional"`
	VersionHeader string   `hcl:"version_header,optional"`
	PackagesDir   string   `hcl:"packages_dir,optional"`
	MergeTool     []string `hcl:"merge_tool,optional"`
	Strict        *bool    `hcl:"strict,optional"`
	LogLevel      string   `hcl:"log_level,optional"`
	LogFormat     string   `hcl:"log_format,optional"`
}

// Load reads and decodes the config file at path.
func Load(path string, environ []string) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(src, path, environ)
}

// Parse decodes config source. filename is only used in diagnostics.
func Parse(src []byte, filename string, environ []string) (*File, error) {
	parser := hclparse.NewParser()

	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config %s: %w", filename, diags)
	}

	var cfg File
	diags = gohcl.DecodeBody(file.Body, evalContext(environ), &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config %s: %w", filename, diags)
	}

	return &cfg, nil
}

// evalContext exposes environ as the env object.
func evalContext(environ []string) *hcl.EvalContext {
	vars := make(map[string]cty.Value, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = cty.StringVal(v)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(vars),
		},
	}
}
