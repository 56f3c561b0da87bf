package model

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Site identifies a supported source host.
type Site string

const (
	GitHub    Site = "github"
	GitLab    Site = "gitlab"
	BitBucket Site = "bitbucket"
)

// ParseSite maps a URL path segment to a Site.
func ParseSite(s string) (Site, error) {
	switch Site(s) {
	case GitHub, GitLab, BitBucket:
		return Site(s), nil
	}
	return "", fmt.Errorf("unknown site %q", s)
}

// BaseURI returns the browse URL of the site.
func (s Site) BaseURI() string {
	switch s {
	case GitHub:
		return "https://github.com"
	case GitLab:
		return "https://gitlab.com"
	case BitBucket:
		return "https://bitbucket.org"
	}
	return ""
}

// RepoIdentity names a repository on a source host. It is a value type
// and is used directly as a cache key.
type RepoIdentity struct {
	Site  Site
	Owner string
	Repo  string
}

func (r RepoIdentity) String() string {
	return fmt.Sprintf("%s/%s/%s", r.Site, r.Owner, r.Repo)
}

// CrateIdentity names one published version of a package.
type CrateIdentity struct {
	Name    string
	Version *semver.Version
}

func (c CrateIdentity) String() string {
	return fmt.Sprintf("%s@%s", c.Name, c.Version)
}

// StatusKind discriminates a Status value.
type StatusKind int

const (
	// StatusUnknown means no answer could be produced.
	StatusUnknown StatusKind = iota
	// StatusInsecure means at least one dependency has a known advisory.
	StatusInsecure
	// StatusNormal carries outdated/total counts.
	StatusNormal
)

// Status summarizes a crate or a composed set of crates. Composition
// under Add is commutative and associative: Insecure absorbs every
// value, Unknown absorbs every value except Insecure, and Normal values
// sum their counts.
type Status struct {
	Kind     StatusKind
	Total    uint32
	Outdated uint32
}

// Unknown is the Status when no answer could be produced.
func Unknown() Status { return Status{Kind: StatusUnknown} }

// Insecure is the absorbing Status.
func Insecure() Status { return Status{Kind: StatusInsecure} }

// Normal builds a counting Status.
func Normal(total, outdated uint32) Status {
	return Status{Kind: StatusNormal, Total: total, Outdated: outdated}
}

// Add composes two Status values.
func (s Status) Add(o Status) Status {
	switch {
	case s.Kind == StatusInsecure || o.Kind == StatusInsecure:
		return Insecure()
	case s.Kind == StatusUnknown || o.Kind == StatusUnknown:
		return Unknown()
	default:
		return Normal(s.Total+o.Total, s.Outdated+o.Outdated)
	}
}

// Sum folds statuses under Add, starting from the first element. An
// empty list yields Unknown, so a repo with zero crates is Unknown,
// which is user-visible on the badge.
func Sum(statuses []Status) Status {
	result := Unknown()
	for i, s := range statuses {
		if i == 0 {
			result = s
			continue
		}
		result = result.Add(s)
	}
	return result
}

// BadgeText returns the badge caption for the status.
func (s Status) BadgeText() string {
	switch s.Kind {
	case StatusInsecure:
		return "insecure"
	case StatusNormal:
		if s.Outdated > 0 {
			return fmt.Sprintf("%d of %d outdated", s.Outdated, s.Total)
		}
		if s.Total > 0 {
			return "up to date"
		}
		return "none"
	}
	return "unknown"
}

// BadgeColor returns the badge color for the status.
func (s Status) BadgeColor() string {
	switch s.Kind {
	case StatusInsecure:
		return "#e05d44"
	case StatusNormal:
		if s.Outdated > 0 {
			return "#dfb317"
		}
		return "#4c1"
	}
	return "#9f9f9f"
}
