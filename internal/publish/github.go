// Package publish persists run artifacts through the code-hosting review
// workflow: the merged dataset is committed wholesale to a data branch and
// surfaced as a pull request for human review. The engine never patches
// files in place; every commit is a full replacement document.
package publish

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/machinemap/machinemap/pkg/errors"
	"github.com/machinemap/machinemap/pkg/logging"
)

// Publisher reads and writes repository-hosted dataset files.
type Publisher interface {
	// Fetch returns the latest content of a file, preferring the data
	// branch when it exists.
	Fetch(ctx context.Context, path string) ([]byte, error)

	// Commit writes a full replacement file to the data branch, creating
	// the branch from the base branch head when absent, and opens a review
	// pull request (or comments on the one already open).
	Commit(ctx context.Context, path string, content []byte, message, body string) error
}

// GitHub is a Publisher backed by the GitHub contents API.
type GitHub struct {
	client *github.Client
	owner  string
	repo   string
	base   string // base branch, usually main
	data   string // data branch the engine commits to
	labels []string
}

// Options configures a GitHub publisher.
type Options struct {
	Owner      string
	Repo       string
	Token      string
	BaseBranch string
	DataBranch string
	Labels     []string

	// BaseURL points the client at a test server when set.
	BaseURL string
}

// NewGitHub creates a GitHub publisher.
func NewGitHub(ctx context.Context, opts Options) (*GitHub, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, &errors.ValidationError{Field: "repository", Message: "owner and repo are required"}
	}
	if opts.BaseBranch == "" {
		opts.BaseBranch = "main"
	}
	if opts.DataBranch == "" {
		opts.DataBranch = "machine_updates"
	}
	if len(opts.Labels) == 0 {
		opts.Labels = []string{"data", "bot"}
	}

	var httpClient *http.Client
	if opts.Token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}))
	}
	client := github.NewClient(httpClient)
	if opts.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(opts.BaseURL, opts.BaseURL)
		if err != nil {
			return nil, errors.WrapAPI("github", 0, err)
		}
	}

	return &GitHub{
		client: client,
		owner:  opts.Owner,
		repo:   opts.Repo,
		base:   opts.BaseBranch,
		data:   opts.DataBranch,
		labels: opts.Labels,
	}, nil
}

// Fetch implements Publisher.
func (g *GitHub) Fetch(ctx context.Context, path string) ([]byte, error) {
	ref := g.base
	if g.branchExists(ctx, g.data) {
		ref = g.data
	}

	content, _, resp, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, path,
		&github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return nil, wrapResponse("fetch "+path, resp, err)
	}
	decoded, err := content.GetContent()
	if err != nil {
		return nil, errors.WrapParse("base64", path, err)
	}
	return []byte(decoded), nil
}

// Commit implements Publisher.
func (g *GitHub) Commit(ctx context.Context, path string, content []byte, message, body string) error {
	created, err := g.ensureDataBranch(ctx)
	if err != nil {
		return err
	}

	// The contents API needs the current blob sha to replace a file.
	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		Content: content,
		Branch:  github.Ptr(g.data),
	}
	existing, _, resp, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, path,
		&github.RepositoryContentGetOptions{Ref: g.data})
	switch {
	case err == nil:
		opts.SHA = existing.SHA
	case resp == nil || resp.StatusCode != http.StatusNotFound:
		return wrapResponse("stat "+path, resp, err)
	}

	if _, resp, err := g.client.Repositories.UpdateFile(ctx, g.owner, g.repo, path, opts); err != nil {
		return wrapResponse("commit "+path, resp, err)
	}

	return g.ensureReview(ctx, message, body, created)
}

// ensureDataBranch creates the data branch off the base branch head when it
// does not exist yet. Reports whether it was created.
func (g *GitHub) ensureDataBranch(ctx context.Context) (bool, error) {
	if g.branchExists(ctx, g.data) {
		return false, nil
	}

	baseRef, resp, err := g.client.Git.GetRef(ctx, g.owner, g.repo, "refs/heads/"+g.base)
	if err != nil {
		return false, wrapResponse("resolve base branch", resp, err)
	}
	_, resp, err = g.client.Git.CreateRef(ctx, g.owner, g.repo, &github.Reference{
		Ref:    github.Ptr("refs/heads/" + g.data),
		Object: &github.GitObject{SHA: baseRef.Object.SHA},
	})
	if err != nil {
		return false, wrapResponse("create data branch", resp, err)
	}
	return true, nil
}

// ensureReview opens the review PR for the data branch, or appends the run
// summary as a comment when a PR is already open.
func (g *GitHub) ensureReview(ctx context.Context, title, body string, branchCreated bool) error {
	prs, resp, err := g.client.PullRequests.List(ctx, g.owner, g.repo, &github.PullRequestListOptions{
		State: "open",
		Head:  g.owner + ":" + g.data,
	})
	if err != nil {
		return wrapResponse("list pull requests", resp, err)
	}

	if len(prs) > 0 {
		pr := prs[0]
		if branchCreated {
			logging.Warn().Int("pr", pr.GetNumber()).
				Msg("Open review PR found for a branch that was just created")
		}
		_, resp, err := g.client.Issues.CreateComment(ctx, g.owner, g.repo, pr.GetNumber(),
			&github.IssueComment{Body: github.Ptr(body)})
		return wrapResponse("comment on review PR", resp, err)
	}

	pr, resp, err := g.client.PullRequests.Create(ctx, g.owner, g.repo, &github.NewPullRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
		Head:  github.Ptr(g.data),
		Base:  github.Ptr(g.base),
	})
	if err != nil {
		return wrapResponse("open review PR", resp, err)
	}

	if _, resp, err := g.client.Issues.AddLabelsToIssue(ctx, g.owner, g.repo, pr.GetNumber(), g.labels); err != nil {
		// Labels are cosmetic; the PR exists, which is what matters.
		logging.Warn().Err(wrapResponse("label review PR", resp, err)).Msg("Failed to label review PR")
	}
	return nil
}

func (g *GitHub) branchExists(ctx context.Context, branch string) bool {
	_, resp, err := g.client.Repositories.GetBranch(ctx, g.owner, g.repo, branch, 0)
	return err == nil && resp != nil && resp.StatusCode == http.StatusOK
}

func wrapResponse(op string, resp *github.Response, err error) error {
	if err == nil {
		return nil
	}
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	return errors.WrapAPI("github", status, fmt.Errorf("%s: %w", op, err))
}

// Filenames of the repository-hosted datasets.
const (
	ServerLocationsPath = "data/server_locations.json"
	ProblemsPath        = "data/problems.json"
	SkipPath            = "data/skip.json"
)

// CommitMessage builds the commit message for a reconciliation run.
func CommitMessage(changed, added, retired int) string {
	return fmt.Sprintf("reconcile listing: %d changed, %d new, %d retired", changed, added, retired)
}

// ReviewBody builds the PR/comment body for a run.
func ReviewBody(changed, added, retired, problems int) string {
	var b strings.Builder
	b.WriteString("Machine updates submitted for review.\n\n")
	fmt.Fprintf(&b, "- changed: %d\n- new: %d\n- retired: %d\n", changed, added, retired)
	if problems > 0 {
		fmt.Fprintf(&b, "- problems requiring manual triage: %d\n", problems)
	}
	return b.String()
}
