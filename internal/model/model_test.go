package model

import (
	"testing"

	"github.com/Masterminds/semver/v3"
)

func TestStatusAddUnknown(t *testing.T) {
	// Unknown propagates through composition unless Insecure absorbs.
	if got := Insecure().Add(Unknown()); got != Insecure() {
		t.Errorf("Insecure + Unknown = %v, want Insecure", got)
	}
	if got := Normal(2, 1).Add(Unknown()); got != Unknown() {
		t.Errorf("Normal + Unknown = %v, want Unknown", got)
	}
	if got := Unknown().Add(Unknown()); got != Unknown() {
		t.Errorf("Unknown + Unknown = %v, want Unknown", got)
	}
}

func TestStatusAddAbsorbing(t *testing.T) {
	for _, s := range []Status{Unknown(), Insecure(), Normal(5, 2)} {
		if got := s.Add(Insecure()); got != Insecure() {
			t.Errorf("%v + Insecure = %v, want Insecure", s, got)
		}
		if got := Insecure().Add(s); got != Insecure() {
			t.Errorf("Insecure + %v = %v, want Insecure", s, got)
		}
	}
}

func TestStatusAddCommutativeAssociative(t *testing.T) {
	vals := []Status{Unknown(), Insecure(), Normal(1, 0), Normal(4, 2)}
	for _, a := range vals {
		for _, b := range vals {
			if a.Add(b) != b.Add(a) {
				t.Errorf("Add not commutative for %v, %v", a, b)
			}
			for _, c := range vals {
				if a.Add(b).Add(c) != a.Add(b.Add(c)) {
					t.Errorf("Add not associative for %v, %v, %v", a, b, c)
				}
			}
		}
	}
}

func TestStatusAddNormalSums(t *testing.T) {
	got := Normal(3, 1).Add(Normal(2, 2))
	if got != Normal(5, 3) {
		t.Errorf("got %v, want Normal{5,3}", got)
	}
}

func TestSumEmptyIsUnknown(t *testing.T) {
	if got := Sum(nil); got != Unknown() {
		t.Errorf("Sum(nil) = %v, want Unknown", got)
	}
}

func TestSumSingle(t *testing.T) {
	if got := Sum([]Status{Normal(0, 0)}); got != Normal(0, 0) {
		t.Errorf("Sum single = %v, want Normal{0,0}", got)
	}
}

func TestBadgeText(t *testing.T) {
	cases := []struct {
		status Status
		want   string
	}{
		{Unknown(), "unknown"},
		{Insecure(), "insecure"},
		{Normal(0, 0), "none"},
		{Normal(3, 0), "up to date"},
		{Normal(5, 2), "2 of 5 outdated"},
	}
	for _, c := range cases {
		if got := c.status.BadgeText(); got != c.want {
			t.Errorf("BadgeText(%v) = %q, want %q", c.status, got, c.want)
		}
	}
}

func TestBadgeColor(t *testing.T) {
	if Unknown().BadgeColor() != "#9f9f9f" {
		t.Error("unknown badge should be grey")
	}
	if Insecure().BadgeColor() != "#e05d44" {
		t.Error("insecure badge should be red")
	}
	if Normal(2, 1).BadgeColor() != "#dfb317" {
		t.Error("outdated badge should be yellow")
	}
	if Normal(2, 0).BadgeColor() != "#4c1" {
		t.Error("up-to-date badge should be green")
	}
}

func TestParseSite(t *testing.T) {
	for _, name := range []string{"github", "gitlab", "bitbucket"} {
		if _, err := ParseSite(name); err != nil {
			t.Errorf("ParseSite(%q): %v", name, err)
		}
	}
	if _, err := ParseSite("sourceforge"); err == nil {
		t.Error("ParseSite should reject unknown sites")
	}
}

func mustVersion(t *testing.T, s string) *semver.Version {
	t.Helper()
	v, err := semver.NewVersion(s)
	if err != nil {
		t.Fatalf("NewVersion(%q): %v", s, err)
	}
	return v
}

func TestParseRequirementCaretDefault(t *testing.T) {
	req, err := ParseRequirement("1.0")
	if err != nil {
		t.Fatalf("ParseRequirement: %v", err)
	}
	if !req.Check(mustVersion(t, "1.0.5")) {
		t.Error("1.0 should match 1.0.5")
	}
	if !req.Check(mustVersion(t, "1.9.0")) {
		t.Error("caret 1.0 should match 1.9.0")
	}
	if req.Check(mustVersion(t, "2.0.0")) {
		t.Error("1.0 should not match 2.0.0")
	}
}

func TestParseRequirementZeroMajor(t *testing.T) {
	req, err := ParseRequirement("0.2")
	if err != nil {
		t.Fatalf("ParseRequirement: %v", err)
	}
	if !req.Check(mustVersion(t, "0.2.0")) {
		t.Error("0.2 should match 0.2.0")
	}
	if req.Check(mustVersion(t, "1.0.0")) {
		t.Error("0.2 should not match 1.0.0")
	}
}

func TestParseRequirementOperators(t *testing.T) {
	eq, err := ParseRequirement("=0.1.0")
	if err != nil {
		t.Fatalf("ParseRequirement: %v", err)
	}
	if !eq.Check(mustVersion(t, "0.1.0")) || eq.Check(mustVersion(t, "0.1.1")) {
		t.Error("=0.1.0 should match exactly 0.1.0")
	}

	wild, err := ParseRequirement("*")
	if err != nil {
		t.Fatalf("ParseRequirement: %v", err)
	}
	if !wild.Check(mustVersion(t, "42.0.0")) {
		t.Error("* should match anything")
	}

	ge, err := ParseRequirement(">=1.2, <2")
	if err != nil {
		t.Fatalf("ParseRequirement: %v", err)
	}
	if !ge.Check(mustVersion(t, "1.5.0")) || ge.Check(mustVersion(t, "2.1.0")) {
		t.Error(">=1.2, <2 range mismatch")
	}
}

func TestParseRequirementPrereleasePin(t *testing.T) {
	req, err := ParseRequirement("=1.0.0-beta")
	if err != nil {
		t.Fatalf("ParseRequirement: %v", err)
	}
	if !req.Check(mustVersion(t, "1.0.0-beta")) {
		t.Error("=1.0.0-beta should match 1.0.0-beta")
	}
}

func TestParseRequirementEmpty(t *testing.T) {
	req, err := ParseRequirement("")
	if err != nil {
		t.Fatalf("ParseRequirement: %v", err)
	}
	if !req.Check(mustVersion(t, "0.0.1")) {
		t.Error("empty requirement should match anything")
	}
}

func TestVersionRecordVersion(t *testing.T) {
	rec := VersionRecord{Name: "serde", Vers: "1.0.5"}
	v, err := rec.Version()
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v.String() != "1.0.5" {
		t.Errorf("got %s, want 1.0.5", v)
	}

	bad := VersionRecord{Name: "x", Vers: "not-a-version"}
	if _, err := bad.Version(); err == nil {
		t.Error("malformed version should not parse")
	}
}
