package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/cratewatch/cratewatch/internal/index"
	"github.com/cratewatch/cratewatch/internal/logging"
	"github.com/cratewatch/cratewatch/internal/metrics"
	"github.com/cratewatch/cratewatch/internal/model"
)

// Index is the view of the mirror that ingestion needs.
type Index interface {
	HeadTree() (plumbing.Hash, error)
	Walk(root plumbing.Hash, fn index.WalkFunc) error
	Blob(id plumbing.Hash) ([]byte, error)
}

// Ingest loads newly published version records from the mirror into
// the store by diffing the current index tree against the last
// ingested one.
//
// Entry ids are content hashes, so an id seen in the old tree proves
// nothing below it has changed; such entries are pruned without
// reading. Work per tick is therefore bounded by the changed portion
// of the tree, not the registry size.
//
// Per-blob parse failures and per-package write failures are logged
// and swallowed; a tree-level failure aborts the tick and leaves the
// recorded last-tree id untouched.
func (s *Store) Ingest(idx Index, log *logging.Logger) error {
	newTree, err := idx.HeadTree()
	if err != nil {
		return fmt.Errorf("resolve head tree: %w", err)
	}
	oldTree, haveOld, err := s.LastTree()
	if err != nil {
		return fmt.Errorf("read last tree id: %w", err)
	}
	if haveOld && oldTree == newTree {
		log.Debug("index unchanged, skipping ingest", "tree", newTree)
		return nil
	}

	oldIDs := make(map[plumbing.Hash]struct{})
	if haveOld {
		err := idx.Walk(oldTree, func(e index.Entry) index.WalkAction {
			oldIDs[e.ID] = struct{}{}
			return index.WalkNext
		})
		if err != nil {
			return fmt.Errorf("walk previous tree %s: %w", oldTree, err)
		}
	}

	err = idx.Walk(newTree, func(e index.Entry) index.WalkAction {
		if _, seen := oldIDs[e.ID]; seen {
			return index.WalkSkip
		}
		if e.Kind == index.KindTree {
			return index.WalkNext
		}
		// Root-level blobs (config.json) are not package files.
		if e.Parent == "" {
			return index.WalkNext
		}

		data, err := idx.Blob(e.ID)
		if err != nil {
			log.Error("failed to read index blob",
				"path", path.Join(e.Parent, e.Name), "id", e.ID, "error", err)
			return index.WalkNext
		}
		metrics.IngestBlobsRead.Inc()

		records := parseBlob(data)
		if len(records) == 0 {
			log.Error("no valid version records in index blob",
				"path", path.Join(e.Parent, e.Name))
			return index.WalkNext
		}
		if err := s.PutVersions(records); err != nil {
			log.Error("failed to store version records",
				"package", records[0].Name, "error", err)
			return index.WalkNext
		}
		metrics.IngestPackagesWritten.Inc()
		return index.WalkNext
	})
	if err != nil {
		return fmt.Errorf("walk tree %s: %w", newTree, err)
	}

	if err := s.SetLastTree(newTree); err != nil {
		return fmt.Errorf("record last tree id: %w", err)
	}
	return nil
}

// parseBlob splits an index blob into version records, one JSON object
// per line. Malformed lines are silently dropped.
func parseBlob(data []byte) []model.VersionRecord {
	var records []model.VersionRecord
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var rec model.VersionRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if rec.Name == "" {
			continue
		}
		records = append(records, rec)
	}
	return records
}
