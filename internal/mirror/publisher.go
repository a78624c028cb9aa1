// Package mirror commits extracted kernel sources into per-model branches
// of a shared git repository and tags every import.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"fwbot-go/internal/fwbot"
)

const remoteName = "origin"

// recheckTimeout bounds the remote listing after a failed push.
const recheckTimeout = time.Minute

// DefaultKernelDir is the subtree carried by patch releases.
const DefaultKernelDir = "kernel"

// Options configures a Publisher.
type Options struct {
	RemoteURL   string
	Account     string
	Token       string
	AuthorName  string
	AuthorEmail string
	KernelDir   string
}

// Publisher imports extracted trees into the mirror with go-git.
type Publisher struct {
	opts   Options
	logger fwbot.Logger
	clock  fwbot.Clock
}

func NewPublisher(opts Options, logger fwbot.Logger, clock fwbot.Clock) (*Publisher, error) {
	if opts.RemoteURL == "" {
		return nil, errors.New("mirror remote_url is required")
	}
	if opts.KernelDir == "" {
		opts.KernelDir = DefaultKernelDir
	}
	if opts.AuthorName == "" {
		opts.AuthorName = "fwbot"
	}
	if logger == nil {
		logger = fwbot.NewNopLogger()
	}
	if clock == nil {
		clock = fwbot.RealClock{}
	}
	return &Publisher{opts: opts, logger: logger, clock: clock}, nil
}

// TagName is the tag an import of version is published under.
func TagName(model, version string) string {
	return model + "/" + version
}

// CommitMessage builds the import commit message, listing oversized files
// that were left out.
func CommitMessage(model, version string, ignored []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: Import %s kernel source", model, version)
	if len(ignored) > 0 {
		b.WriteString("\n\nRemoved files larger than 100MB:\n")
		for _, name := range ignored {
			fmt.Fprintf(&b, "- %s\n", name)
		}
	}
	return b.String()
}

func (p *Publisher) auth() transport.AuthMethod {
	if p.opts.Token == "" {
		return nil
	}
	return &http.BasicAuth{Username: p.opts.Account, Password: p.opts.Token}
}

// Publish commits req.Source onto branch req.Model, tags it and pushes both.
// A tag that already exists on the remote yields OutcomeDuplicateSkipped.
func (p *Publisher) Publish(ctx context.Context, req fwbot.PublishRequest) (fwbot.PublishResult, error) {
	tag := TagName(req.Model, req.Version)
	res := fwbot.PublishResult{Outcome: fwbot.OutcomeFailed, Tag: tag}
	log := p.logger

	repo, err := git.PlainInit(req.WorkTree, false)
	if err != nil {
		return res, fmt.Errorf("initializing repository: %w", err)
	}
	remote, err := repo.CreateRemote(&gitconfig.RemoteConfig{Name: remoteName, URLs: []string{p.opts.RemoteURL}})
	if err != nil {
		return res, fmt.Errorf("adding remote: %w", err)
	}

	refs, err := p.listRemote(ctx, remote)
	if err != nil {
		return res, err
	}
	if ref, ok := refs[plumbing.NewTagReferenceName(tag)]; ok {
		log.Info("tag already on remote", "tag", tag)
		return fwbot.PublishResult{Outcome: fwbot.OutcomeDuplicateSkipped, Tag: tag, Commit: ref.Hash().String()}, nil
	}

	branch := plumbing.NewBranchReferenceName(req.Model)
	if ref, ok := refs[branch]; ok {
		if err := p.checkoutRemoteBranch(ctx, repo, req.Model, ref.Hash()); err != nil {
			return res, err
		}
	} else {
		log.Info("branch not on remote, starting new history", "branch", req.Model)
		if err := p.startBranch(repo, branch); err != nil {
			return res, err
		}
	}

	if req.Patch {
		err = overlaySubtree(req.Source, req.WorkTree, p.opts.KernelDir)
	} else {
		err = replaceTracked(repo, req.Source, req.WorkTree)
	}
	if err != nil {
		return res, fmt.Errorf("importing source tree: %w", err)
	}

	if err := stageAll(repo, req.WorkTree); err != nil {
		return res, fmt.Errorf("staging: %w", err)
	}

	hash, err := p.commit(repo, CommitMessage(req.Model, req.Version, req.Ignored))
	if err != nil {
		return res, err
	}
	res.Commit = hash.String()

	if _, err := repo.CreateTag(tag, hash, nil); err != nil {
		return res, fmt.Errorf("creating tag: %w", err)
	}

	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remoteName,
		RefSpecs: []gitconfig.RefSpec{
			gitconfig.RefSpec(branch + ":" + branch),
			gitconfig.RefSpec(plumbing.NewTagReferenceName(tag) + ":" + plumbing.NewTagReferenceName(tag)),
		},
		Auth: p.auth(),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		// A concurrent run may have won the race for this version.
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recheckTimeout)
		refs, lerr := p.listRemote(lctx, remote)
		cancel()
		if lerr == nil {
			if ref, ok := refs[plumbing.NewTagReferenceName(tag)]; ok {
				log.Info("tag appeared on remote during push", "tag", tag)
				return fwbot.PublishResult{Outcome: fwbot.OutcomeDuplicateSkipped, Tag: tag, Commit: ref.Hash().String()}, nil
			}
		}
		return res, fmt.Errorf("pushing: %w", err)
	}

	res.Outcome = fwbot.OutcomePublished
	return res, nil
}

// listRemote returns the remote's references by name. An empty remote has none.
func (p *Publisher) listRemote(ctx context.Context, remote *git.Remote) (map[plumbing.ReferenceName]*plumbing.Reference, error) {
	list, err := remote.ListContext(ctx, &git.ListOptions{Auth: p.auth()})
	if err != nil {
		if errors.Is(err, transport.ErrEmptyRemoteRepository) {
			return map[plumbing.ReferenceName]*plumbing.Reference{}, nil
		}
		return nil, fmt.Errorf("listing remote: %w", err)
	}

	refs := make(map[plumbing.ReferenceName]*plumbing.Reference, len(list))
	for _, ref := range list {
		refs[ref.Name()] = ref
	}
	return refs, nil
}

// checkoutRemoteBranch fetches origin/<model> and checks it out as a local
// branch tracking it.
func (p *Publisher) checkoutRemoteBranch(ctx context.Context, repo *git.Repository, model string, tip plumbing.Hash) error {
	branch := plumbing.NewBranchReferenceName(model)
	spec := gitconfig.RefSpec(fmt.Sprintf("+%s:%s", branch, plumbing.NewRemoteReferenceName(remoteName, model)))

	err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remoteName,
		RefSpecs:   []gitconfig.RefSpec{spec},
		Tags:       git.NoTags,
		Auth:       p.auth(),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetching branch %s: %w", model, err)
	}

	w, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("opening worktree: %w", err)
	}
	if err := w.Checkout(&git.CheckoutOptions{Hash: tip, Branch: branch, Create: true, Force: true}); err != nil {
		return fmt.Errorf("checking out %s: %w", model, err)
	}

	if err := repo.CreateBranch(&gitconfig.Branch{Name: model, Remote: remoteName, Merge: branch}); err != nil {
		return fmt.Errorf("tracking branch %s: %w", model, err)
	}
	p.logger.Debug("checked out remote branch", "branch", model, "tip", tip.String())
	return nil
}

// startBranch points HEAD at a new branch and records an empty initial commit.
func (p *Publisher) startBranch(repo *git.Repository, branch plumbing.ReferenceName) error {
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, branch)); err != nil {
		return fmt.Errorf("switching to %s: %w", branch.Short(), err)
	}
	if _, err := p.commit(repo, "Initial commit"); err != nil {
		return err
	}
	return nil
}

func (p *Publisher) commit(repo *git.Repository, msg string) (plumbing.Hash, error) {
	w, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("opening worktree: %w", err)
	}
	sig := &object.Signature{Name: p.opts.AuthorName, Email: p.opts.AuthorEmail, When: p.clock.Now()}
	hash, err := w.Commit(msg, &git.CommitOptions{Author: sig, Committer: sig, AllowEmptyCommits: true})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("committing: %w", err)
	}
	return hash, nil
}

var _ fwbot.Publisher = (*Publisher)(nil)
