package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/narqo/go-badge"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cratewatch/cratewatch/internal/analyze"
	"github.com/cratewatch/cratewatch/internal/logging"
	"github.com/cratewatch/cratewatch/internal/metrics"
	"github.com/cratewatch/cratewatch/internal/model"
)

//go:embed templates/*
var templateFS embed.FS

// RepoAnalyzer is what the web façade needs from the engine.
type RepoAnalyzer interface {
	AnalyzeRepo(ctx context.Context, ident model.RepoIdentity) ([]analyze.AnalyzedCrate, error)
	AnalyzeCrate(name string, version *semver.Version) (*analyze.AnalyzedCrate, error)
}

// Dependencies defines what the web server needs from the rest of the
// application.
type Dependencies struct {
	Analyzer       RepoAnalyzer
	MetricsEnabled bool
	Version        string
	Log            *logging.Logger
}

// Server exposes badge, status, and dependency-table endpoints.
type Server struct {
	deps Dependencies
	mux  *http.ServeMux
	tmpl *template.Template
}

// NewServer builds the HTTP façade.
func NewServer(deps Dependencies) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{deps: deps, mux: http.NewServeMux(), tmpl: tmpl}
	s.mux.HandleFunc("GET /repo/{site}/{owner}/{repo}/status.svg", s.handleRepoBadge)
	s.mux.HandleFunc("GET /repo/{site}/{owner}/{repo}", s.handleRepoPage)
	s.mux.HandleFunc("GET /crate/{name}/{version}/status.svg", s.handleCrateBadge)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if deps.MetricsEnabled {
		s.mux.Handle("GET /metrics", promhttp.Handler())
	}
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// repoIdentity parses the path segments of a repo route.
func repoIdentity(r *http.Request) (model.RepoIdentity, error) {
	site, err := model.ParseSite(r.PathValue("site"))
	if err != nil {
		return model.RepoIdentity{}, err
	}
	return model.RepoIdentity{
		Site:  site,
		Owner: r.PathValue("owner"),
		Repo:  r.PathValue("repo"),
	}, nil
}

// handleRepoBadge renders the status badge for a repository. Every
// failure that prevents a full answer renders as an unknown badge.
func (s *Server) handleRepoBadge(w http.ResponseWriter, r *http.Request) {
	metrics.BadgeRequestsInFlight.Inc()
	defer metrics.BadgeRequestsInFlight.Dec()

	status := model.Unknown()
	ident, err := repoIdentity(r)
	if err == nil {
		crates, aerr := s.deps.Analyzer.AnalyzeRepo(r.Context(), ident)
		if aerr != nil {
			s.deps.Log.Debug("repo analysis failed", "repo", ident, "error", aerr)
		} else {
			status = analyze.RepoStatus(crates)
		}
	}
	writeBadge(w, status)
}

// handleCrateBadge renders the status badge for one published crate
// version.
func (s *Server) handleCrateBadge(w http.ResponseWriter, r *http.Request) {
	metrics.BadgeRequestsInFlight.Inc()
	defer metrics.BadgeRequestsInFlight.Dec()

	status := model.Unknown()
	if version, err := semver.NewVersion(r.PathValue("version")); err == nil {
		crate, aerr := s.deps.Analyzer.AnalyzeCrate(r.PathValue("name"), version)
		if aerr != nil {
			s.deps.Log.Debug("crate analysis failed", "crate", r.PathValue("name"), "error", aerr)
		} else if crate != nil {
			status = crate.Status()
		}
	}
	writeBadge(w, status)
}

func writeBadge(w http.ResponseWriter, status model.Status) {
	svg, err := badge.RenderBytes("dependencies", status.BadgeText(), badge.Color(status.BadgeColor()))
	if err != nil {
		http.Error(w, "badge rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml;charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(svg)
}

// depRow is one row of the dependency table.
type depRow struct {
	Name     string
	Required string
	Latest   string
	Outdated bool
	Insecure bool
}

// crateSection is one crate of the repository page.
type crateSection struct {
	Name              string
	Dependencies      []depRow
	DevDependencies   []depRow
	BuildDependencies []depRow
}

// pageData feeds the repository template.
type pageData struct {
	Identity model.RepoIdentity
	BaseURI  string
	Crates   []crateSection
	Status   model.Status
	Version  string
}

func rows(deps []analyze.AnalyzedDependency) []depRow {
	out := make([]depRow, 0, len(deps))
	for _, d := range deps {
		latest := "N/A"
		if d.LatestOverall != nil {
			latest = d.LatestOverall.String()
		}
		out = append(out, depRow{
			Name:     d.Name,
			Required: d.RequiredText,
			Latest:   latest,
			Outdated: d.Outdated(),
			Insecure: d.Vulnerable,
		})
	}
	return out
}

// handleRepoPage renders the per-component dependency listing.
func (s *Server) handleRepoPage(w http.ResponseWriter, r *http.Request) {
	ident, err := repoIdentity(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	crates, err := s.deps.Analyzer.AnalyzeRepo(r.Context(), ident)
	if err != nil {
		s.deps.Log.Debug("repo analysis failed", "repo", ident, "error", err)
		w.WriteHeader(http.StatusBadGateway)
		s.render(w, "error.html", map[string]string{"Message": "could not analyze repository"})
		return
	}

	data := pageData{
		Identity: ident,
		BaseURI:  ident.Site.BaseURI(),
		Status:   analyze.RepoStatus(crates),
		Version:  s.deps.Version,
	}
	for _, c := range crates {
		data.Crates = append(data.Crates, crateSection{
			Name:              c.Name,
			Dependencies:      rows(c.Dependencies),
			DevDependencies:   rows(c.DevDependencies),
			BuildDependencies: rows(c.BuildDependencies),
		})
	}
	s.render(w, "repo.html", data)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		s.deps.Log.Error("template render failed", "template", name, "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
