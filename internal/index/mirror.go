package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/cratewatch/cratewatch/internal/logging"
)

const (
	remoteName = "upstream"
	remoteRef  = "refs/remotes/upstream/master"
	fetchSpec  = "+refs/heads/master:" + remoteRef
)

// Mirror maintains a bare clone of the registry index repository. The
// index tree is large (hundreds of thousands of blobs), so there is no
// working copy; all reads are content-addressed by entry id.
type Mirror struct {
	dir      string
	upstream string
	proxy    string
	repo     *git.Repository
	log      *logging.Logger
}

// Open creates the mirror directory if absent, initializes a bare
// repository there if not already one, and ensures the upstream remote
// points at upstreamURL. Idempotent.
func Open(dir, upstreamURL, proxyURL string, log *logging.Logger) (*Mirror, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create mirror directory: %w", err)
	}

	repo, err := git.PlainInit(dir, true)
	if errors.Is(err, git.ErrRepositoryAlreadyExists) {
		repo, err = git.PlainOpen(dir)
	}
	if err != nil {
		return nil, fmt.Errorf("open mirror at %s: %w", dir, err)
	}

	m := &Mirror{
		dir:      dir,
		upstream: upstreamURL,
		proxy:    proxyURL,
		repo:     repo,
		log:      log,
	}
	if err := m.ensureRemote(); err != nil {
		return nil, err
	}
	return m, nil
}

// ensureRemote creates the upstream remote, replacing it when its URL
// no longer matches the configured one.
func (m *Mirror) ensureRemote() error {
	remote, err := m.repo.Remote(remoteName)
	switch {
	case errors.Is(err, git.ErrRemoteNotFound):
		// fall through to create
	case err != nil:
		return fmt.Errorf("look up remote %s: %w", remoteName, err)
	default:
		urls := remote.Config().URLs
		if len(urls) == 1 && urls[0] == m.upstream {
			return nil
		}
		if err := m.repo.DeleteRemote(remoteName); err != nil {
			return fmt.Errorf("replace remote %s: %w", remoteName, err)
		}
		m.log.Debug("replacing upstream remote", "url", m.upstream)
	}

	_, err = m.repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: remoteName,
		URLs: []string{m.upstream},
	})
	if err != nil {
		return fmt.Errorf("create remote %s: %w", remoteName, err)
	}
	return nil
}

// Fetch updates the mirror from upstream with prune enabled. An
// up-to-date mirror is not an error. Failures are recoverable; the
// next refresh tick retries.
func (m *Mirror) Fetch(ctx context.Context) error {
	opts := &git.FetchOptions{
		RemoteName: remoteName,
		RefSpecs:   []gitconfig.RefSpec{fetchSpec},
		Prune:      true,
		Force:      true,
		Tags:       git.NoTags,
	}
	if m.proxy != "" {
		opts.ProxyOptions = transport.ProxyOptions{URL: m.proxy}
	}

	err := m.repo.FetchContext(ctx, opts)
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch %s: %w", m.upstream, err)
	}
	return nil
}

// HeadTree resolves the upstream master ref to its root tree id.
func (m *Mirror) HeadTree() (plumbing.Hash, error) {
	ref, err := m.repo.Reference(plumbing.ReferenceName(remoteRef), true)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve %s: %w", remoteRef, err)
	}
	commit, err := m.repo.CommitObject(ref.Hash())
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("read commit %s: %w", ref.Hash(), err)
	}
	return commit.TreeHash, nil
}

// Blob reads the full content of a blob by id.
func (m *Mirror) Blob(id plumbing.Hash) ([]byte, error) {
	blob, err := m.repo.BlobObject(id)
	if err != nil {
		return nil, fmt.Errorf("find blob %s: %w", id, err)
	}
	r, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", id, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", id, err)
	}
	return data, nil
}

// Dir returns the on-disk location of the mirror.
func (m *Mirror) Dir() string { return m.dir }
