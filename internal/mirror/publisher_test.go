package mirror

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/client"
	"github.com/go-git/go-git/v5/plumbing/transport/server"

	"fwbot-go/internal/fwbot"
)

func TestMain(m *testing.M) {
	// Serve file remotes in-process instead of shelling out to git.
	client.InstallProtocol("file", server.DefaultServer)
	os.Exit(m.Run())
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newRemote(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "mirror.git")
	if _, err := git.PlainInit(dir, true); err != nil {
		t.Fatalf("init bare remote: %v", err)
	}
	return dir
}

func newPublisher(t *testing.T, remote string) *Publisher {
	t.Helper()
	p, err := NewPublisher(Options{
		RemoteURL:   remote,
		Account:     "fwbot",
		AuthorName:  "fwbot",
		AuthorEmail: "fwbot@example.com",
	}, nil, fixedClock{time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	return p
}

// sourceTree writes files (path -> content) into a fresh directory.
// A content starting with "->" creates a symlink to the rest.
func sourceTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if target, ok := strings.CutPrefix(content, "->"); ok {
			if err := os.Symlink(target, p); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func publish(t *testing.T, p *Publisher, req fwbot.PublishRequest) fwbot.PublishResult {
	t.Helper()
	req.WorkTree = filepath.Join(t.TempDir(), "repo")
	if err := os.MkdirAll(req.WorkTree, 0755); err != nil {
		t.Fatal(err)
	}
	res, err := p.Publish(context.Background(), req)
	if err != nil {
		t.Fatalf("Publish(%s) error = %v", req.Version, err)
	}
	return res
}

func branchTip(t *testing.T, remote, model string) *object.Commit {
	t.Helper()
	repo, err := git.PlainOpen(remote)
	if err != nil {
		t.Fatalf("open remote: %v", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(model), true)
	if err != nil {
		t.Fatalf("branch %s missing on remote: %v", model, err)
	}
	c, err := repo.CommitObject(ref.Hash())
	if err != nil {
		t.Fatalf("reading commit: %v", err)
	}
	return c
}

func fileContent(t *testing.T, c *object.Commit, path string) (string, bool) {
	t.Helper()
	tree, err := c.Tree()
	if err != nil {
		t.Fatal(err)
	}
	f, err := tree.File(path)
	if err != nil {
		return "", false
	}
	s, err := f.Contents()
	if err != nil {
		t.Fatal(err)
	}
	return s, true
}

func TestPublisher_FirstImport(t *testing.T) {
	remote := newRemote(t)
	p := newPublisher(t, remote)

	src := sourceTree(t, map[string]string{
		"Makefile":                "all:\n",
		".gitignore":              "*.o\ngenerated/\n",
		"generated/autoconf.h":    "#define X 1\n",
		"drivers/foo.o":           "object",
		"kernel/sched/core.c":     "int main;\n",
		"include/asm":             "->asm-generic",
		"include/asm-generic/x.h": "x",
	})
	if err := os.Chmod(filepath.Join(src, "Makefile"), 0755); err != nil {
		t.Fatal(err)
	}

	res := publish(t, p, fwbot.PublishRequest{
		Model:   "SM-G991B",
		Version: "G991BXXU5CVLL",
		Source:  src,
		Ignored: []string{"drivers/huge.bin"},
	})

	if res.Outcome != fwbot.OutcomePublished {
		t.Errorf("Outcome = %v, want published", res.Outcome)
	}
	if res.Tag != "SM-G991B/G991BXXU5CVLL" {
		t.Errorf("Tag = %q", res.Tag)
	}

	tip := branchTip(t, remote, "SM-G991B")
	if tip.Hash.String() != res.Commit {
		t.Errorf("branch tip = %s, want %s", tip.Hash, res.Commit)
	}
	wantMsg := "SM-G991B: Import G991BXXU5CVLL kernel source\n\nRemoved files larger than 100MB:\n- drivers/huge.bin\n"
	if tip.Message != wantMsg {
		t.Errorf("Message = %q, want %q", tip.Message, wantMsg)
	}
	if tip.Author.Email != "fwbot@example.com" {
		t.Errorf("Author = %v", tip.Author)
	}

	// New branches start from an empty commit.
	if tip.NumParents() != 1 {
		t.Fatalf("NumParents() = %d, want 1", tip.NumParents())
	}
	parent, err := tip.Parent(0)
	if err != nil {
		t.Fatal(err)
	}
	if parent.Message != "Initial commit" || parent.NumParents() != 0 {
		t.Errorf("parent = %q with %d parents", parent.Message, parent.NumParents())
	}

	// Ignore rules do not apply.
	for _, path := range []string{"generated/autoconf.h", "drivers/foo.o", ".gitignore", "kernel/sched/core.c"} {
		if _, ok := fileContent(t, tip, path); !ok {
			t.Errorf("%s not committed", path)
		}
	}

	tree, err := tip.Tree()
	if err != nil {
		t.Fatal(err)
	}
	mk, err := tree.FindEntry("Makefile")
	if err != nil {
		t.Fatal(err)
	}
	if mk.Mode != filemode.Executable {
		t.Errorf("Makefile mode = %v, want executable", mk.Mode)
	}
	link, err := tree.FindEntry("include/asm")
	if err != nil {
		t.Fatal(err)
	}
	if link.Mode != filemode.Symlink {
		t.Errorf("include/asm mode = %v, want symlink", link.Mode)
	}

	repo, _ := git.PlainOpen(remote)
	tagRef, err := repo.Reference(plumbing.NewTagReferenceName(res.Tag), true)
	if err != nil {
		t.Fatalf("tag missing on remote: %v", err)
	}
	if tagRef.Hash() != tip.Hash {
		t.Errorf("tag points at %s, want %s", tagRef.Hash(), tip.Hash)
	}
}

func TestPublisher_FullImportReplacesTrackedFiles(t *testing.T) {
	remote := newRemote(t)
	p := newPublisher(t, remote)

	first := publish(t, p, fwbot.PublishRequest{
		Model: "SM-A525F", Version: "A525FXXU4CWA1",
		Source: sourceTree(t, map[string]string{"old.c": "old", "kernel/a.c": "a1"}),
	})
	second := publish(t, p, fwbot.PublishRequest{
		Model: "SM-A525F", Version: "A525FXXU4CWB1",
		Source: sourceTree(t, map[string]string{"new.c": "new", "kernel/a.c": "a2"}),
	})
	if second.Outcome != fwbot.OutcomePublished {
		t.Fatalf("Outcome = %v", second.Outcome)
	}

	tip := branchTip(t, remote, "SM-A525F")
	if tip.Hash.String() != second.Commit {
		t.Errorf("tip = %s, want %s", tip.Hash, second.Commit)
	}
	parent, err := tip.Parent(0)
	if err != nil {
		t.Fatal(err)
	}
	if parent.Hash.String() != first.Commit {
		t.Errorf("parent = %s, want previous import %s", parent.Hash, first.Commit)
	}

	if _, ok := fileContent(t, tip, "old.c"); ok {
		t.Error("old.c survived a full import")
	}
	if got, _ := fileContent(t, tip, "kernel/a.c"); got != "a2" {
		t.Errorf("kernel/a.c = %q, want a2", got)
	}
	if _, ok := fileContent(t, tip, "new.c"); !ok {
		t.Error("new.c missing")
	}
}

func TestPublisher_PatchImportOverlaysKernelDir(t *testing.T) {
	remote := newRemote(t)
	p := newPublisher(t, remote)

	publish(t, p, fwbot.PublishRequest{
		Model: "SM-S911B", Version: "S911BXXU1AWA1",
		Source: sourceTree(t, map[string]string{
			"platform/vendor.mk": "vendor",
			"kernel/a.c":         "a1",
			"kernel/b.c":         "b1",
		}),
	})
	res := publish(t, p, fwbot.PublishRequest{
		Model: "SM-S911B", Version: "S911BXXU1AWB1", Patch: true,
		Source: sourceTree(t, map[string]string{
			"kernel/a.c":      "a2",
			"kernel/new/c.c":  "c",
			"outside/skip.mk": "not part of the patch",
		}),
	})
	if res.Outcome != fwbot.OutcomePublished {
		t.Fatalf("Outcome = %v", res.Outcome)
	}

	tip := branchTip(t, remote, "SM-S911B")
	want := map[string]string{
		"platform/vendor.mk": "vendor",
		"kernel/a.c":         "a2",
		"kernel/b.c":         "b1",
		"kernel/new/c.c":     "c",
	}
	for path, content := range want {
		if got, ok := fileContent(t, tip, path); !ok || got != content {
			t.Errorf("%s = %q (present %v), want %q", path, got, ok, content)
		}
	}
	if _, ok := fileContent(t, tip, "outside/skip.mk"); ok {
		t.Error("patch import copied files outside the kernel directory")
	}
}

func TestPublisher_PatchWithoutKernelDir(t *testing.T) {
	p := newPublisher(t, newRemote(t))
	work := filepath.Join(t.TempDir(), "repo")
	os.MkdirAll(work, 0755)

	res, err := p.Publish(context.Background(), fwbot.PublishRequest{
		Model: "SM-S911B", Version: "S911BXXU1AWB1", Patch: true,
		Source: sourceTree(t, map[string]string{"README": "x"}), WorkTree: work,
	})
	if err == nil {
		t.Fatal("Publish() expected error for patch without kernel directory")
	}
	if res.Outcome != fwbot.OutcomeFailed {
		t.Errorf("Outcome = %v, want failed", res.Outcome)
	}
}

func TestPublisher_DuplicateVersion(t *testing.T) {
	remote := newRemote(t)
	p := newPublisher(t, remote)

	req := fwbot.PublishRequest{Model: "SM-G991B", Version: "G991BXXU5CVLL"}
	req.Source = sourceTree(t, map[string]string{"a.c": "a"})
	first := publish(t, p, req)

	req.Source = sourceTree(t, map[string]string{"a.c": "a"})
	second := publish(t, p, req)

	if second.Outcome != fwbot.OutcomeDuplicateSkipped {
		t.Errorf("Outcome = %v, want duplicate", second.Outcome)
	}
	if second.Commit != first.Commit {
		t.Errorf("duplicate Commit = %s, want existing %s", second.Commit, first.Commit)
	}
	if tip := branchTip(t, remote, "SM-G991B"); tip.Hash.String() != first.Commit {
		t.Errorf("branch moved to %s after duplicate publish", tip.Hash)
	}
}

func TestPublisher_MissingRemote(t *testing.T) {
	p := newPublisher(t, filepath.Join(t.TempDir(), "does-not-exist.git"))
	work := filepath.Join(t.TempDir(), "repo")
	os.MkdirAll(work, 0755)

	res, err := p.Publish(context.Background(), fwbot.PublishRequest{
		Model: "SM-G991B", Version: "G991BXXU5CVLL",
		Source: sourceTree(t, map[string]string{"a.c": "a"}), WorkTree: work,
	})
	if err == nil {
		t.Fatal("Publish() expected error for missing remote")
	}
	if res.Outcome != fwbot.OutcomeFailed {
		t.Errorf("Outcome = %v, want failed", res.Outcome)
	}
}

func TestCommitMessage(t *testing.T) {
	tests := []struct {
		name    string
		ignored []string
		want    string
	}{
		{name: "no ignored files", want: "SM-G991B: Import G991BXXU5CVLL kernel source"},
		{
			name:    "ignored files listed",
			ignored: []string{"a.bin", "dir/b.bin"},
			want:    "SM-G991B: Import G991BXXU5CVLL kernel source\n\nRemoved files larger than 100MB:\n- a.bin\n- dir/b.bin\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CommitMessage("SM-G991B", "G991BXXU5CVLL", tt.ignored); got != tt.want {
				t.Errorf("CommitMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewPublisher_RequiresRemote(t *testing.T) {
	if _, err := NewPublisher(Options{}, nil, nil); err == nil {
		t.Error("NewPublisher() expected error without remote URL")
	}
}
