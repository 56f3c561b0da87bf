package manifest

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/cratewatch/cratewatch/internal/model"
)

// Manifest is a parsed Cargo.toml, reduced to what analysis consumes.
type Manifest struct {
	Package           *Package
	Workspace         Workspace
	Dependencies      map[string]Dependency
	BuildDependencies map[string]Dependency
	DevDependencies   map[string]Dependency
}

// Package is the [package] table.
type Package struct {
	Name string `toml:"name"`
}

// Workspace is the [workspace] table. Members is an ordered list of
// relative directory names; glob expansion is not supported, so a glob
// member simply resolves to nothing.
type Workspace struct {
	Members []string `toml:"members"`
}

// DependencyKind discriminates a dependency declaration.
type DependencyKind int

const (
	// Direct is a bare version-requirement string.
	Direct DependencyKind = iota
	// Table is an inline table carrying a version field.
	Table
	// Path, Git and CustomRegistry dependencies are recognized so
	// resolution can skip them.
	Path
	Git
	CustomRegistry
)

// Dependency is one declared dependency. Req is compiled for Direct
// and Table declarations and nil otherwise.
type Dependency struct {
	Kind    DependencyKind
	Req     *semver.Constraints
	ReqText string
	// Source holds the path, git URL, or registry name of a
	// non-registry declaration.
	Source string
}

// Requirement returns the compiled version requirement for
// declarations that resolve against the registry.
func (d Dependency) Requirement() (*semver.Constraints, bool) {
	if d.Kind == Direct || d.Kind == Table {
		return d.Req, true
	}
	return nil, false
}

// Parse decodes a manifest. A dependency value must be either a
// version string or a table carrying a path, git, registry, or version
// field, tried in that order; anything else fails the whole manifest.
func Parse(data []byte) (*Manifest, error) {
	var raw struct {
		Package           *Package       `toml:"package"`
		Workspace         Workspace      `toml:"workspace"`
		Dependencies      map[string]any `toml:"dependencies"`
		BuildDependencies map[string]any `toml:"build-dependencies"`
		DevDependencies   map[string]any `toml:"dev-dependencies"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	m := &Manifest{
		Package:   raw.Package,
		Workspace: raw.Workspace,
	}
	var err error
	if m.Dependencies, err = decodeDependencies(raw.Dependencies); err != nil {
		return nil, fmt.Errorf("dependencies: %w", err)
	}
	if m.BuildDependencies, err = decodeDependencies(raw.BuildDependencies); err != nil {
		return nil, fmt.Errorf("build-dependencies: %w", err)
	}
	if m.DevDependencies, err = decodeDependencies(raw.DevDependencies); err != nil {
		return nil, fmt.Errorf("dev-dependencies: %w", err)
	}
	return m, nil
}

func decodeDependencies(raw map[string]any) (map[string]Dependency, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]Dependency, len(raw))
	for name, value := range raw {
		dep, err := decodeDependency(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = dep
	}
	return out, nil
}

func decodeDependency(value any) (Dependency, error) {
	switch v := value.(type) {
	case string:
		req, err := model.ParseRequirement(v)
		if err != nil {
			return Dependency{}, fmt.Errorf("invalid requirement %q: %w", v, err)
		}
		return Dependency{Kind: Direct, Req: req, ReqText: v}, nil

	case map[string]any:
		if p, ok := v["path"].(string); ok {
			return Dependency{Kind: Path, Source: p}, nil
		}
		if g, ok := v["git"].(string); ok {
			return Dependency{Kind: Git, Source: g}, nil
		}
		if r, ok := v["registry"].(string); ok {
			return Dependency{Kind: CustomRegistry, Source: r}, nil
		}
		if ver, ok := v["version"].(string); ok {
			req, err := model.ParseRequirement(ver)
			if err != nil {
				return Dependency{}, fmt.Errorf("invalid requirement %q: %w", ver, err)
			}
			return Dependency{Kind: Table, Req: req, ReqText: ver}, nil
		}
		return Dependency{}, fmt.Errorf("table has no path, git, registry, or version field")

	default:
		return Dependency{}, fmt.Errorf("unsupported declaration of type %T", value)
	}
}
