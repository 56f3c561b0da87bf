package analyze

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/cratewatch/cratewatch/internal/advisory"
	"github.com/cratewatch/cratewatch/internal/logging"
	"github.com/cratewatch/cratewatch/internal/manifest"
	"github.com/cratewatch/cratewatch/internal/metrics"
	"github.com/cratewatch/cratewatch/internal/model"
)

const (
	cacheSize = 1024
	cacheTTL  = 60 * time.Second
)

// PackageSource looks up stored version records. Implemented by the
// package store.
type PackageSource interface {
	GetVersions(name string) ([]model.VersionRecord, error)
}

// ManifestFetcher retrieves raw manifests from source hosts.
type ManifestFetcher interface {
	Fetch(ctx context.Context, ident model.RepoIdentity, relpath string) ([]byte, error)
}

// AnalyzedDependency is one resolved direct dependency.
type AnalyzedDependency struct {
	Name         string
	Required     *semver.Constraints
	RequiredText string
	// LatestMatching is the newest published version satisfying the
	// requirement; yanked and prerelease versions stay eligible so an
	// explicit pin remains matchable.
	LatestMatching *semver.Version
	// LatestOverall is the newest non-yanked, non-prerelease version.
	LatestOverall *semver.Version
	// Vulnerable is set when LatestMatching has a known advisory,
	// evaluated against the advisory snapshot current at analysis
	// time.
	Vulnerable bool
}

// Outdated reports whether a newer version exists outside the
// requirement. Absent versions sort below present ones.
func (d AnalyzedDependency) Outdated() bool {
	if d.LatestOverall == nil {
		return false
	}
	if d.LatestMatching == nil {
		return true
	}
	return d.LatestOverall.GreaterThan(d.LatestMatching)
}

// AnalyzedCrate is the analysis result for one crate: its three
// dependency slots, each resolved against the registry.
type AnalyzedCrate struct {
	Name              string
	Dependencies      []AnalyzedDependency
	DevDependencies   []AnalyzedDependency
	BuildDependencies []AnalyzedDependency
}

// Status summarizes the crate. It is pure: vulnerability was already
// evaluated at analysis time, so the same AnalyzedCrate always yields
// the same Status.
func (c *AnalyzedCrate) Status() model.Status {
	var total, outdated uint32
	for _, slot := range [][]AnalyzedDependency{c.Dependencies, c.DevDependencies, c.BuildDependencies} {
		for _, d := range slot {
			if d.Vulnerable {
				return model.Insecure()
			}
			total++
			if d.Outdated() {
				outdated++
			}
		}
	}
	return model.Normal(total, outdated)
}

// RepoStatus folds per-crate statuses. Zero crates yield Unknown; a
// crate without dependencies yields Normal{0,0}. The distinction is
// visible on the badge.
func RepoStatus(crates []AnalyzedCrate) model.Status {
	statuses := make([]model.Status, len(crates))
	for i := range crates {
		statuses[i] = crates[i].Status()
	}
	return model.Sum(statuses)
}

// Analyzer resolves repositories and crates into analyzed dependency
// sets, caching repository results briefly.
type Analyzer struct {
	packages   PackageSource
	advisories *advisory.Holder
	fetcher    ManifestFetcher
	cache      *expirable.LRU[model.RepoIdentity, []AnalyzedCrate]
	log        *logging.Logger
}

// New creates an Analyzer with the standard cache bounds.
func New(packages PackageSource, advisories *advisory.Holder, fetcher ManifestFetcher, log *logging.Logger) *Analyzer {
	return newAnalyzer(packages, advisories, fetcher, log, cacheSize, cacheTTL)
}

func newAnalyzer(packages PackageSource, advisories *advisory.Holder, fetcher ManifestFetcher, log *logging.Logger, size int, ttl time.Duration) *Analyzer {
	return &Analyzer{
		packages:   packages,
		advisories: advisories,
		fetcher:    fetcher,
		cache:      expirable.NewLRU[model.RepoIdentity, []AnalyzedCrate](size, nil, ttl),
		log:        log,
	}
}

// AnalyzeRepo fetches the repository's manifests over HTTP and walks
// the declared workspace graph breadth-first, analyzing every manifest
// that declares a package. The result order is the BFS order over the
// workspace tree, which is deterministic given the manifest inputs.
//
// A cached result younger than the TTL is returned as-is. The cache is
// only updated on success, so a cancelled or failed analysis leaves no
// partial state. Two concurrent misses for the same repository both
// compute and both insert; the later insert wins, which is sound
// because computation does not depend on cache state.
func (a *Analyzer) AnalyzeRepo(ctx context.Context, ident model.RepoIdentity) ([]AnalyzedCrate, error) {
	if cached, ok := a.cache.Get(ident); ok {
		metrics.AnalyzeCacheHits.Inc()
		return cached, nil
	}
	metrics.AnalyzeCacheMisses.Inc()

	begin := time.Now()
	result := []AnalyzedCrate{}
	queue := []string{""}
	for len(queue) > 0 {
		rel := queue[0]
		queue = queue[1:]

		data, err := a.fetcher.Fetch(ctx, ident, path.Join(rel, "Cargo.toml"))
		if err != nil {
			return nil, fmt.Errorf("fetch manifest %s: %w", path.Join(rel, "Cargo.toml"), err)
		}
		m, err := manifest.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse manifest %s: %w", path.Join(rel, "Cargo.toml"), err)
		}

		if m.Package != nil {
			result = append(result, AnalyzedCrate{
				Name:              m.Package.Name,
				Dependencies:      a.resolveDependencies(m.Dependencies),
				DevDependencies:   a.resolveDependencies(m.DevDependencies),
				BuildDependencies: a.resolveDependencies(m.BuildDependencies),
			})
		}
		for _, member := range m.Workspace.Members {
			// Glob members are not expanded: they fetch nothing and
			// contribute no crates.
			if strings.ContainsAny(member, "*?[") {
				continue
			}
			queue = append(queue, path.Join(rel, member))
		}
	}
	metrics.AnalyzeDuration.Observe(time.Since(begin).Seconds())

	a.cache.Add(ident, result)
	return result, nil
}

// AnalyzeCrate resolves one published version's dependency slots from
// its registry record. Returns nil when the package or the version is
// unknown.
func (a *Analyzer) AnalyzeCrate(name string, version *semver.Version) (*AnalyzedCrate, error) {
	records, err := a.packages.GetVersions(name)
	if err != nil {
		return nil, fmt.Errorf("look up %s: %w", name, err)
	}

	var record *model.VersionRecord
	for i := range records {
		v, err := records[i].Version()
		if err != nil {
			continue
		}
		if v.Equal(version) {
			record = &records[i]
			break
		}
	}
	if record == nil {
		return nil, nil
	}

	slots := map[model.DepKind]map[string]manifest.Dependency{
		model.DepNormal: {},
		model.DepDev:    {},
		model.DepBuild:  {},
	}
	for _, dep := range record.Deps {
		kind := dep.Kind
		if kind == "" {
			kind = model.DepNormal
		}
		slot, ok := slots[kind]
		if !ok {
			continue
		}
		req, err := model.ParseRequirement(dep.Req)
		if err != nil {
			a.log.Debug("skipping dependency with unparsable requirement",
				"package", name, "dependency", dep.Name, "req", dep.Req)
			continue
		}
		slot[dep.Name] = manifest.Dependency{Kind: manifest.Direct, Req: req, ReqText: dep.Req}
	}

	return &AnalyzedCrate{
		Name:              name,
		Dependencies:      a.resolveDependencies(slots[model.DepNormal]),
		DevDependencies:   a.resolveDependencies(slots[model.DepDev]),
		BuildDependencies: a.resolveDependencies(slots[model.DepBuild]),
	}, nil
}

// resolveDependencies resolves one dependency slot. Path, git, and
// custom-registry declarations are skipped, as are packages the store
// does not know. Names are emitted in sorted order so analysis is
// deterministic.
func (a *Analyzer) resolveDependencies(deps map[string]manifest.Dependency) []AnalyzedDependency {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	db := a.advisories.Get()
	var result []AnalyzedDependency
	for _, name := range names {
		dep := deps[name]
		req, ok := dep.Requirement()
		if !ok {
			continue
		}

		records, err := a.packages.GetVersions(name)
		if err != nil {
			a.log.Error("failed to look up package", "package", name, "error", err)
			continue
		}
		if records == nil {
			a.log.Debug("no such package in index", "package", name)
			continue
		}

		var latestOverall, latestMatching *semver.Version
		for _, rec := range records {
			v, err := rec.Version()
			if err != nil {
				continue
			}
			if !rec.Yanked && v.Prerelease() == "" {
				if latestOverall == nil || v.GreaterThan(latestOverall) {
					latestOverall = v
				}
			}
			if req.Check(v) {
				if latestMatching == nil || v.GreaterThan(latestMatching) {
					latestMatching = v
				}
			}
		}

		result = append(result, AnalyzedDependency{
			Name:           name,
			Required:       req,
			RequiredText:   dep.ReqText,
			LatestMatching: latestMatching,
			LatestOverall:  latestOverall,
			Vulnerable:     latestMatching != nil && db.Vulnerable(name, latestMatching),
		})
	}
	return result
}
