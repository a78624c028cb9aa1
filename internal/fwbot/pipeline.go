package fwbot

import (
	"context"
	"fmt"
	"io"
)

// Tree is the scratch space of one kernel import. Repo is the git working
// tree, Source receives the extracted archive and Download the raw package.
type Tree struct {
	Model    string
	Repo     string
	Source   string
	Download string
}

// Dirs lists the directories of the tree.
func (t *Tree) Dirs() []string {
	return []string{t.Repo, t.Source, t.Download}
}

// Workspace hands out per-model trees. Release removes every directory of
// the tree and must be called on all exit paths.
type Workspace interface {
	Acquire(model string) (*Tree, error)
	Release(tree *Tree) error
}

// Extractor unpacks a downloaded kernel package into targetDir and returns
// the archive names of regular files that were skipped for exceeding the
// size ceiling.
type Extractor interface {
	Extract(archivePath, targetDir string) ([]string, error)
}

// PublishRequest describes one import into the mirror.
type PublishRequest struct {
	Model    string
	Version  string
	Source   string
	WorkTree string
	Ignored  []string
	Patch    bool
}

// Outcome is the terminal state of a publish attempt.
type Outcome int

const (
	OutcomePublished Outcome = iota
	OutcomeDuplicateSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePublished:
		return "published"
	case OutcomeDuplicateSkipped:
		return "duplicate"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ParseOutcome is the inverse of Outcome.String.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "published":
		return OutcomePublished, nil
	case "duplicate":
		return OutcomeDuplicateSkipped, nil
	case "failed":
		return OutcomeFailed, nil
	default:
		return OutcomeFailed, fmt.Errorf("unknown outcome %q", s)
	}
}

// PublishResult reports what the mirror did. Failed results are always
// accompanied by a non-nil error.
type PublishResult struct {
	Outcome Outcome
	Tag     string
	Commit  string
}

// Publisher commits an extracted tree to the mirror.
type Publisher interface {
	Publish(ctx context.Context, req PublishRequest) (PublishResult, error)
}

// ArtifactVault archives raw downloaded packages.
type ArtifactVault interface {
	// PutArtifact stores size bytes read from r under key.
	PutArtifact(ctx context.Context, key string, r io.Reader, size int64) error

	// GetArtifact writes the stored artifact to w.
	GetArtifact(ctx context.Context, key string, w io.Writer) error

	// HasArtifact reports whether key is stored.
	HasArtifact(ctx context.Context, key string) (bool, error)
}

// ArtifactKey is the vault key of a kernel package.
func ArtifactKey(model, version string) string {
	return "kernel/" + model + "/" + version + ".zip"
}
