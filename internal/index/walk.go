package index

import (
	"fmt"
	"path"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// EntryKind classifies a tree entry.
type EntryKind int

const (
	KindTree EntryKind = iota
	KindBlob
)

// Entry is one node of the index tree as seen by a walk. Parent is the
// slash-joined path of the containing tree, empty at the root level.
// Because entry ids are content hashes, equal id implies identical
// content below that entry.
type Entry struct {
	Parent string
	Name   string
	ID     plumbing.Hash
	Kind   EntryKind
}

// WalkAction controls the walk at each entry.
type WalkAction int

const (
	// WalkNext visits the entry; for a tree entry the walk descends.
	WalkNext WalkAction = iota
	// WalkSkip prunes the entry: a tree entry's subtree is not
	// descended into.
	WalkSkip
)

// WalkFunc decides per entry whether to descend.
type WalkFunc func(Entry) WalkAction

// Walk traverses the tree rooted at root, calling fn for every entry
// before descending into it. Submodule entries are skipped without a
// call to fn. Entries are visited in the tree's native
// order, so traversal is deterministic for a given root.
func (m *Mirror) Walk(root plumbing.Hash, fn WalkFunc) error {
	tree, err := m.repo.TreeObject(root)
	if err != nil {
		return fmt.Errorf("find tree %s: %w", root, err)
	}
	return m.walkTree(tree, "", fn)
}

func (m *Mirror) walkTree(tree *object.Tree, parent string, fn WalkFunc) error {
	for _, te := range tree.Entries {
		kind := KindBlob
		switch te.Mode {
		case filemode.Dir:
			kind = KindTree
		case filemode.Submodule:
			continue
		}

		entry := Entry{Parent: parent, Name: te.Name, ID: te.Hash, Kind: kind}
		if fn(entry) == WalkSkip || kind != KindTree {
			continue
		}

		sub, err := m.repo.TreeObject(te.Hash)
		if err != nil {
			return fmt.Errorf("find tree %s at %s: %w", te.Hash, path.Join(parent, te.Name), err)
		}
		if err := m.walkTree(sub, path.Join(parent, te.Name), fn); err != nil {
			return err
		}
	}
	return nil
}
