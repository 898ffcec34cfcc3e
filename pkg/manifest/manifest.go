// Package manifest parses cartel.yml manifests into types.ModuleDefinition
// values: a multi-document YAML format with a kind-tagged module shape
// and cartel.override.yml merge behavior. yaml.v3 has no serde-style
// internally-tagged-enum sugar, so each document is decoded once into a
// struct carrying every kind's fields, and the `kind` field then selects
// which of them populate the typed definition.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xdrop/cartel/pkg/cartelerr"
	"github.com/xdrop/cartel/pkg/types"
)

const (
	manifestFileName = "cartel.yml"
	overrideFileName = "cartel.override.yml"
)

// rawProbe mirrors the YAML shape of a readiness/liveness probe, tagged
// by its "kind" field.
type rawProbe struct {
	Kind      string `yaml:"kind"`
	Retries   int    `yaml:"retries"`
	Command   []string `yaml:"command"`
	WorkingDir string `yaml:"working_dir"`
	LineRegex string `yaml:"line_regex"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
}

func (r *rawProbe) toSpec() (*types.ProbeSpec, error) {
	if r == nil {
		return nil, nil
	}
	spec := &types.ProbeSpec{Retries: r.Retries}
	switch r.Kind {
	case "exec", "":
		spec.Kind = types.ProbeExec
		spec.Command = r.Command
		spec.WorkingDir = r.WorkingDir
	case "log_line":
		spec.Kind = types.ProbeLogLine
		spec.LineRegex = r.LineRegex
	case "net":
		spec.Kind = types.ProbeNet
		spec.Host = r.Host
		spec.Port = r.Port
	default:
		return nil, &cartelerr.ValidationError{Message: fmt.Sprintf("unknown probe kind %q", r.Kind)}
	}
	return spec, nil
}

// rawModule mirrors one top-level YAML document. Fields that only apply
// to some kinds are pointers or zero values; toDefinition copies the ones
// relevant to Kind and ignores the rest without reporting them.
type rawModule struct {
	Name                string            `yaml:"name"`
	Kind                string            `yaml:"kind"`
	Command             []string          `yaml:"command"`
	Environment         map[string]string `yaml:"environment"`
	WorkingDir          string            `yaml:"working_dir"`
	Dependencies        []string          `yaml:"dependencies"`
	OrderedDependencies []string          `yaml:"ordered_dependencies"`
	PostUp              []string          `yaml:"post_up"`
	Post                []string          `yaml:"post"`
	Checks              []string          `yaml:"checks"`
	TerminationSignal   string            `yaml:"termination_signal"`
	AlwaysAwaitReadinessProbe bool        `yaml:"always_await_readiness_probe"`
	ReadinessProbe      *rawProbe         `yaml:"readiness_probe"`
	LivenessProbe       *rawProbe         `yaml:"liveness_probe"`
	About               string            `yaml:"about"`
	Help                string            `yaml:"help"`
	LogFilePath         string            `yaml:"log_file_path"`
}

func (r *rawModule) toDefinition() (*types.ModuleDefinition, error) {
	if r.Name == "" {
		return nil, &cartelerr.ValidationError{Message: "module definition missing a name"}
	}

	def := &types.ModuleDefinition{
		Name:                r.Name,
		Command:             r.Command,
		Environment:         r.Environment,
		WorkingDir:          r.WorkingDir,
		Dependencies:        r.Dependencies,
		OrderedDependencies: r.OrderedDependencies,
		LogFilePath:         r.LogFilePath,
	}

	switch types.ModuleKind(r.Kind) {
	case types.KindService, types.KindTask, "":
		if r.Kind == "" {
			def.Kind = types.KindService
		} else {
			def.Kind = types.ModuleKind(r.Kind)
		}
		readiness, err := r.ReadinessProbe.toSpec()
		if err != nil {
			return nil, err
		}
		liveness, err := r.LivenessProbe.toSpec()
		if err != nil {
			return nil, err
		}
		sig := types.TermSignal(r.TerminationSignal)
		if sig == "" {
			sig = types.DefaultTermSignal
		}
		def.ServiceTask = &types.ServiceTaskSpec{
			TerminationSignal:         sig,
			PostUp:                    r.PostUp,
			Post:                      r.Post,
			Checks:                    r.Checks,
			AlwaysAwaitReadinessProbe: r.AlwaysAwaitReadinessProbe,
			ReadinessProbe:            readiness,
			LivenessProbe:             liveness,
		}
	case types.KindCheck:
		def.Kind = types.KindCheck
		def.Check = &types.CheckSpec{About: r.About, Help: r.Help, Command: r.Command, WorkingDir: r.WorkingDir}
	case types.KindGroup:
		def.Kind = types.KindGroup
		def.Group = &types.GroupSpec{Checks: r.Checks}
	case types.KindShell:
		def.Kind = types.KindShell
		def.Shell = &types.ShellSpec{Command: r.Command, WorkingDir: r.WorkingDir}
	default:
		return nil, &cartelerr.ValidationError{Message: fmt.Sprintf("unknown module kind %q for %q", r.Kind, r.Name)}
	}

	return def, nil
}

// ParseDocuments splits data on YAML document separators and decodes
// each into a types.ModuleDefinition.
func ParseDocuments(data []byte) ([]*types.ModuleDefinition, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))

	var defs []*types.ModuleDefinition
	for {
		var raw rawModule
		err := decoder.Decode(&raw)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &cartelerr.ReadError{Path: "<manifest>", Err: err}
		}
		if raw.Name == "" && raw.Kind == "" {
			continue // blank document between `---` separators
		}
		def, err := raw.toDefinition()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	if err := validateUnique(defs); err != nil {
		return nil, err
	}
	return defs, nil
}

func validateUnique(defs []*types.ModuleDefinition) error {
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if seen[d.Name] {
			return &cartelerr.ValidationError{Message: fmt.Sprintf("duplicate module name %q", d.Name)}
		}
		seen[d.Name] = true
	}
	return nil
}

// locateManifest walks upward from startDir looking for cartel.yml,
// falling back to defaultDir if nothing is found before reaching the
// filesystem root.
func locateManifest(startDir, defaultDir string) (string, error) {
	dir := startDir
	for {
		candidate := filepath.Join(dir, manifestFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if defaultDir != "" {
		candidate := filepath.Join(defaultDir, manifestFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", &cartelerr.ReadError{Path: manifestFileName, Err: os.ErrNotExist}
}

// Load locates cartel.yml starting from startDir (walking upward),
// merges a sibling cartel.override.yml if present (override entries win
// on name collision), and canonicalizes working_dir fields relative to
// the manifest's own directory.
func Load(startDir, defaultDir string) ([]*types.ModuleDefinition, error) {
	manifestPath, err := locateManifest(startDir, defaultDir)
	if err != nil {
		return nil, err
	}
	baseDir := filepath.Dir(manifestPath)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &cartelerr.ReadError{Path: manifestPath, Err: err}
	}
	defs, err := ParseDocuments(data)
	if err != nil {
		return nil, err
	}

	overridePath := filepath.Join(baseDir, overrideFileName)
	if overrideData, err := os.ReadFile(overridePath); err == nil {
		overrides, err := ParseDocuments(overrideData)
		if err != nil {
			return nil, err
		}
		defs = mergeOverrides(defs, overrides)
	}

	for _, d := range defs {
		canonicalizeWorkingDir(d, baseDir)
	}

	return defs, nil
}

func mergeOverrides(base, overrides []*types.ModuleDefinition) []*types.ModuleDefinition {
	byName := make(map[string]int, len(base))
	for i, d := range base {
		byName[d.Name] = i
	}
	for _, o := range overrides {
		if i, ok := byName[o.Name]; ok {
			base[i] = o
		} else {
			base = append(base, o)
		}
	}
	return base
}

func canonicalizeWorkingDir(def *types.ModuleDefinition, baseDir string) {
	def.WorkingDir = resolvePath(def.WorkingDir, baseDir)
	switch {
	case def.ServiceTask != nil:
		if def.ServiceTask.ReadinessProbe != nil {
			def.ServiceTask.ReadinessProbe.WorkingDir = resolvePath(def.ServiceTask.ReadinessProbe.WorkingDir, baseDir)
		}
		if def.ServiceTask.LivenessProbe != nil {
			def.ServiceTask.LivenessProbe.WorkingDir = resolvePath(def.ServiceTask.LivenessProbe.WorkingDir, baseDir)
		}
	case def.Check != nil:
		def.Check.WorkingDir = resolvePath(def.Check.WorkingDir, baseDir)
	case def.Shell != nil:
		def.Shell.WorkingDir = resolvePath(def.Shell.WorkingDir, baseDir)
	}
}

func resolvePath(path, baseDir string) string {
	if path == "" {
		return baseDir
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
