package advisory

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// osvEntry mirrors the subset of the OSV schema the service consumes.
// Unknown fields are ignored.
type osvEntry struct {
	ID       string `json:"id"`
	Affected []struct {
		Package struct {
			Ecosystem string `json:"ecosystem"`
			Name      string `json:"name"`
		} `json:"package"`
		Ranges []struct {
			Type   string `json:"type"`
			Events []struct {
				Introduced   string `json:"introduced"`
				Fixed        string `json:"fixed"`
				LastAffected string `json:"last_affected"`
			} `json:"events"`
		} `json:"ranges"`
		Versions []string `json:"versions"`
	} `json:"affected"`
}

// ParseOSV decodes an OSV ecosystem export. The export is a zip of one
// JSON document per advisory; a raw JSON document (as used in tests
// and by mirrored single files) is accepted too. Only crates.io
// entries contribute.
func ParseOSV(raw []byte) (*DB, error) {
	var advisories []*Advisory

	if bytes.HasPrefix(raw, []byte("PK")) {
		zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
		if err != nil {
			return nil, fmt.Errorf("open advisory zip: %w", err)
		}
		for _, f := range zr.File {
			if !strings.HasSuffix(f.Name, ".json") {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", f.Name, err)
			}
			data, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", f.Name, err)
			}
			advisories = append(advisories, decodeEntry(data)...)
		}
		return NewDB(advisories), nil
	}

	advisories = decodeEntry(raw)
	return NewDB(advisories), nil
}

// decodeEntry converts one OSV document into per-package advisories.
// Malformed documents and non-crates.io packages are dropped.
func decodeEntry(data []byte) []*Advisory {
	var entry osvEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil
	}

	var out []*Advisory
	for _, aff := range entry.Affected {
		if !strings.EqualFold(aff.Package.Ecosystem, "crates.io") || aff.Package.Name == "" {
			continue
		}
		adv := &Advisory{
			ID:       entry.ID,
			Package:  aff.Package.Name,
			Versions: aff.Versions,
		}
		for _, rng := range aff.Ranges {
			if rng.Type != "SEMVER" && rng.Type != "ECOSYSTEM" {
				continue
			}
			var span *Span
			for _, ev := range rng.Events {
				switch {
				case ev.Introduced != "":
					if span != nil {
						adv.Spans = append(adv.Spans, *span)
					}
					span = &Span{Introduced: parseEvent(ev.Introduced)}
				case ev.Fixed != "":
					if span == nil {
						span = &Span{}
					}
					span.Fixed = parseEvent(ev.Fixed)
					adv.Spans = append(adv.Spans, *span)
					span = nil
				case ev.LastAffected != "":
					if span == nil {
						span = &Span{}
					}
					span.LastAffected = parseEvent(ev.LastAffected)
					adv.Spans = append(adv.Spans, *span)
					span = nil
				}
			}
			if span != nil {
				adv.Spans = append(adv.Spans, *span)
			}
		}
		if len(adv.Spans) > 0 || len(adv.Versions) > 0 {
			out = append(out, adv)
		}
	}
	return out
}

// parseEvent maps an OSV event version to a bound. "0" marks an open
// lower bound and maps to nil.
func parseEvent(s string) *semver.Version {
	if s == "0" {
		return nil
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil
	}
	return v
}
