package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cratewatch/cratewatch/internal/logging"
	"github.com/cratewatch/cratewatch/internal/model"
)

type memBodies map[string][]byte

func (m memBodies) CacheGet(etag string) ([]byte, error)    { return m[etag], nil }
func (m memBodies) CachePut(etag string, data []byte) error { m[etag] = data; return nil }
func (m memBodies) CacheDelete(etag string) error           { delete(m, etag); return nil }

func testFetcher(t *testing.T, serverURL string) (*Fetcher, memBodies) {
	t.Helper()
	bodies := memBodies{}
	f, err := New("", bodies, logging.New(false))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.raw = func(_ model.RepoIdentity, relpath string) string {
		return serverURL + "/" + relpath
	}
	return f, bodies
}

func ident() model.RepoIdentity {
	return model.RepoIdentity{Site: model.GitHub, Owner: "octo", Repo: "project"}
}

func TestFetchConditionalGet(t *testing.T) {
	var requests int
	var sawConditional bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("If-None-Match") == `"v1"` {
			sawConditional = true
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte("[package]\nname = \"app\"\n"))
	}))
	defer srv.Close()

	f, bodies := testFetcher(t, srv.URL)

	first, err := f.Fetch(context.Background(), ident(), "Cargo.toml")
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if len(bodies) != 1 {
		t.Errorf("body not cached: %v", bodies)
	}

	second, err := f.Fetch(context.Background(), ident(), "Cargo.toml")
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !sawConditional {
		t.Error("second request should carry If-None-Match")
	}
	if string(first) != string(second) {
		t.Errorf("304 body mismatch: %q vs %q", first, second)
	}
	if requests != 2 {
		t.Errorf("requests = %d, want 2", requests)
	}
}

func TestFetchWithoutETag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") != "" {
			t.Error("no ETag was issued, request must be unconditional")
		}
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	f, bodies := testFetcher(t, srv.URL)
	for range 2 {
		if _, err := f.Fetch(context.Background(), ident(), "Cargo.toml"); err != nil {
			t.Fatal(err)
		}
	}
	if len(bodies) != 0 {
		t.Errorf("nothing should be cached without an ETag: %v", bodies)
	}
}

func TestFetchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f, _ := testFetcher(t, srv.URL)
	if _, err := f.Fetch(context.Background(), ident(), "Cargo.toml"); err == nil {
		t.Error("404 should surface as an error")
	}
}

func TestRawURLTemplates(t *testing.T) {
	cases := []struct {
		site model.Site
		want string
	}{
		{model.GitHub, "https://raw.githubusercontent.com/octo/project/HEAD/a/Cargo.toml"},
		{model.GitLab, "https://gitlab.com/octo/project/raw/HEAD/a/Cargo.toml"},
		{model.BitBucket, "https://bitbucket.org/octo/project/raw/HEAD/a/Cargo.toml"},
	}
	for _, c := range cases {
		id := model.RepoIdentity{Site: c.site, Owner: "octo", Repo: "project"}
		if got := rawURL(id, "a/Cargo.toml"); got != c.want {
			t.Errorf("rawURL(%s) = %q, want %q", c.site, got, c.want)
		}
	}
}
