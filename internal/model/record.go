package model

import (
	"github.com/Masterminds/semver/v3"
)

// DepKind classifies a registry dependency edge.
type DepKind string

const (
	DepNormal DepKind = "normal"
	DepDev    DepKind = "dev"
	DepBuild  DepKind = "build"
)

// DepRecord is one dependency edge of a published version, as recorded
// in the registry index. Fields beyond name/req/kind are carried so a
// stored record round-trips the registry line, but the analyzer only
// consumes the first three.
type DepRecord struct {
	Name            string   `json:"name"`
	Req             string   `json:"req"`
	Kind            DepKind  `json:"kind,omitempty"`
	Optional        bool     `json:"optional,omitempty"`
	DefaultFeatures bool     `json:"default_features,omitempty"`
	Features        []string `json:"features,omitempty"`
	Target          string   `json:"target,omitempty"`
	Registry        string   `json:"registry,omitempty"`
	Package         string   `json:"package,omitempty"`
}

// VersionRecord is one line of a registry index blob: a single
// published version of a package.
type VersionRecord struct {
	Name   string      `json:"name"`
	Vers   string      `json:"vers"`
	Yanked bool        `json:"yanked"`
	Deps   []DepRecord `json:"deps"`
}

// Version parses the record's version string.
func (r VersionRecord) Version() (*semver.Version, error) {
	return semver.NewVersion(r.Vers)
}
