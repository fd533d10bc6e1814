package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"
	"github.com/charmbracelet/log"
)

// validBranchNameRe allowlists safe branch names before they reach a shelled
// command, preventing argument/flag injection through a crafted branch name.
var validBranchNameRe = regexp.MustCompile(`^[a-zA-Z0-9_./-]+$`)

// GHProvider implements Provider by shelling out to the gh CLI. It must be
// connected once before use; every other method returns ErrNotConnected
// otherwise.
type GHProvider struct {
	workDir   string
	logger    *log.Logger
	connected bool
}

// NewGHProvider constructs a GHProvider rooted at workDir (a git checkout
// gh can resolve owner/repo from). logger may be nil.
func NewGHProvider(workDir string, logger *log.Logger) *GHProvider {
	return &GHProvider{workDir: workDir, logger: logger}
}

// Connect verifies gh is installed and authenticated.
func (p *GHProvider) Connect(ctx context.Context) error {
	if _, _, err := p.runGH(ctx, "--version"); err != nil {
		return fmt.Errorf("platform: gh CLI not installed or not in PATH: %w", err)
	}
	if _, stderr, err := p.runGH(ctx, "auth", "status"); err != nil {
		return fmt.Errorf("platform: gh is not authenticated (run `gh auth login`): %s: %w", strings.TrimSpace(stderr), err)
	}
	p.connected = true
	if p.logger != nil {
		p.logger.Info("platform: gh provider connected")
	}
	return nil
}

func (p *GHProvider) GetIssue(ctx context.Context, number int) (cadretype.Issue, error) {
	if !p.connected {
		return cadretype.Issue{}, connectionError("GetIssue")
	}
	stdout, _, err := p.runGH(ctx, "issue", "view", strconv.Itoa(number),
		"--json", "number,title,body,state,labels,assignees,comments")
	if err != nil {
		return cadretype.Issue{}, fmt.Errorf("platform: fetching issue #%d: %w", number, err)
	}

	var raw ghIssue
	if err := json.Unmarshal([]byte(stdout), &raw); err != nil {
		return cadretype.Issue{}, fmt.Errorf("platform: parsing issue #%d: %w", number, err)
	}
	return raw.toIssue(), nil
}

func (p *GHProvider) ListIssues(ctx context.Context, filter IssueFilter) ([]cadretype.Issue, error) {
	if !p.connected {
		return nil, connectionError("ListIssues")
	}
	state := filter.State
	if state == "" {
		state = "open"
	}
	args := []string{"issue", "list", "--state", state, "--json", "number,title,body,state,labels,assignees,comments"}
	for _, l := range filter.Labels {
		args = append(args, "--label", l)
	}
	stdout, _, err := p.runGH(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("platform: listing issues: %w", err)
	}

	var raws []ghIssue
	if err := json.Unmarshal([]byte(stdout), &raws); err != nil {
		return nil, fmt.Errorf("platform: parsing issue list: %w", err)
	}
	issues := make([]cadretype.Issue, 0, len(raws))
	for _, r := range raws {
		issues = append(issues, r.toIssue())
	}
	return issues, nil
}

func (p *GHProvider) AddIssueComment(ctx context.Context, number int, body string) error {
	if !p.connected {
		return connectionError("AddIssueComment")
	}
	path, err := writeTempBody(body)
	if err != nil {
		return fmt.Errorf("platform: writing comment body: %w", err)
	}
	defer os.Remove(path)

	if _, stderr, err := p.runGH(ctx, "issue", "comment", strconv.Itoa(number), "--body-file", path); err != nil {
		return fmt.Errorf("platform: commenting on issue #%d: %s: %w", number, strings.TrimSpace(stderr), err)
	}
	return nil
}

func (p *GHProvider) CreatePullRequest(ctx context.Context, req CreatePullRequestRequest) (PullRequest, error) {
	if !p.connected {
		return PullRequest{}, connectionError("CreatePullRequest")
	}
	base := req.Base
	if base == "" {
		base = "main"
	}
	if !validBranchNameRe.MatchString(base) {
		return PullRequest{}, fmt.Errorf("platform: invalid base branch %q", base)
	}
	if req.Head != "" && !validBranchNameRe.MatchString(req.Head) {
		return PullRequest{}, fmt.Errorf("platform: invalid head branch %q", req.Head)
	}

	bodyPath, err := writeTempBody(req.Body)
	if err != nil {
		return PullRequest{}, fmt.Errorf("platform: writing PR body: %w", err)
	}
	defer os.Remove(bodyPath)

	args := []string{"pr", "create", "--title", req.Title, "--body-file", bodyPath, "--base", base}
	if req.Head != "" {
		args = append(args, "--head", req.Head)
	}
	if req.Draft {
		args = append(args, "--draft")
	}
	for _, l := range req.Labels {
		args = append(args, "--label", l)
	}
	for _, r := range req.Reviewers {
		args = append(args, "--reviewer", r)
	}

	stdout, stderr, err := p.runGH(ctx, args...)
	if err != nil {
		combined := strings.ToLower(stdout + stderr)
		if strings.Contains(combined, "already exists") {
			return PullRequest{}, fmt.Errorf("platform: a pull request already exists for this branch: %s", strings.TrimSpace(stderr))
		}
		return PullRequest{}, fmt.Errorf("platform: creating pull request: %s: %w", strings.TrimSpace(stderr), err)
	}

	url := lastNonEmptyLine(stdout)
	return PullRequest{
		Number: extractPRNumber(url),
		URL:    url,
		Title:  req.Title,
		Body:   req.Body,
		State:  "open",
		Head:   req.Head,
		Base:   base,
		Draft:  req.Draft,
	}, nil
}

func (p *GHProvider) UpdatePullRequest(ctx context.Context, number int, patch PullRequestPatch) error {
	if !p.connected {
		return connectionError("UpdatePullRequest")
	}
	args := []string{"pr", "edit", strconv.Itoa(number)}
	var bodyPath string
	if patch.Title != nil {
		args = append(args, "--title", *patch.Title)
	}
	if patch.Body != nil {
		path, err := writeTempBody(*patch.Body)
		if err != nil {
			return fmt.Errorf("platform: writing PR body update: %w", err)
		}
		bodyPath = path
		defer os.Remove(bodyPath)
		args = append(args, "--body-file", bodyPath)
	}
	if len(args) == 3 {
		return nil // nothing to update
	}
	if _, stderr, err := p.runGH(ctx, args...); err != nil {
		return fmt.Errorf("platform: updating PR #%d: %s: %w", number, strings.TrimSpace(stderr), err)
	}
	return nil
}

func (p *GHProvider) ListPullRequests(ctx context.Context, filter PullRequestFilter) ([]PullRequest, error) {
	if !p.connected {
		return nil, connectionError("ListPullRequests")
	}
	state := filter.State
	if state == "" {
		state = "open"
	}
	args := []string{"pr", "list", "--state", state, "--json", "number,url,title,body,state,headRefName,baseRefName,isDraft"}
	if filter.Head != "" {
		args = append(args, "--head", filter.Head)
	}
	stdout, _, err := p.runGH(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("platform: listing pull requests: %w", err)
	}

	var raws []ghPullRequest
	if err := json.Unmarshal([]byte(stdout), &raws); err != nil {
		return nil, fmt.Errorf("platform: parsing pull request list: %w", err)
	}
	prs := make([]PullRequest, 0, len(raws))
	for _, r := range raws {
		prs = append(prs, r.toPullRequest())
	}
	return prs, nil
}

func (p *GHProvider) ListPRReviewComments(ctx context.Context, number int) ([]ReviewThread, error) {
	if !p.connected {
		return nil, connectionError("ListPRReviewComments")
	}
	stdout, _, err := p.runGH(ctx, "pr", "view", strconv.Itoa(number), "--json", "reviews,comments")
	if err != nil {
		return nil, fmt.Errorf("platform: fetching PR #%d review comments: %w", number, err)
	}

	var raw struct {
		Reviews []struct {
			Author struct {
				Login string `json:"login"`
			} `json:"author"`
			Body        string    `json:"body"`
			SubmittedAt time.Time `json:"submittedAt"`
			State       string    `json:"state"`
		} `json:"reviews"`
	}
	if err := json.Unmarshal([]byte(stdout), &raw); err != nil {
		return nil, fmt.Errorf("platform: parsing PR #%d review comments: %w", number, err)
	}

	threads := make([]ReviewThread, 0, len(raw.Reviews))
	for _, r := range raw.Reviews {
		if strings.TrimSpace(r.Body) == "" {
			continue
		}
		threads = append(threads, ReviewThread{
			Author:    r.Author.Login,
			Body:      r.Body,
			CreatedAt: r.SubmittedAt,
			Resolved:  r.State == "APPROVED" || r.State == "DISMISSED",
		})
	}
	return threads, nil
}

func (p *GHProvider) FindOpenPR(ctx context.Context, issueNumber int, branch string) (*PullRequest, error) {
	if !p.connected {
		return nil, connectionError("FindOpenPR")
	}
	prs, err := p.ListPullRequests(ctx, PullRequestFilter{State: "open", Head: branch})
	if err != nil {
		return nil, err
	}
	if len(prs) == 0 {
		return nil, nil
	}
	return &prs[0], nil
}

// IssueLinkSuffix returns the text pr-composer appends to a PR body to
// auto-close the originating issue on merge.
func (p *GHProvider) IssueLinkSuffix(number int) string {
	return fmt.Sprintf("\n\nCloses #%d", number)
}

// --- gh JSON shapes and process plumbing ------------------------------------

type ghIssue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	State  string `json:"state"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
	Assignees []struct {
		Login string `json:"login"`
	} `json:"assignees"`
	Comments []struct {
		Author struct {
			Login string `json:"login"`
		} `json:"author"`
		Body      string    `json:"body"`
		CreatedAt time.Time `json:"createdAt"`
	} `json:"comments"`
}

func (g ghIssue) toIssue() cadretype.Issue {
	labels := make([]string, 0, len(g.Labels))
	for _, l := range g.Labels {
		labels = append(labels, l.Name)
	}
	assignees := make([]string, 0, len(g.Assignees))
	for _, a := range g.Assignees {
		assignees = append(assignees, a.Login)
	}
	comments := make([]cadretype.Comment, 0, len(g.Comments))
	for _, c := range g.Comments {
		comments = append(comments, cadretype.Comment{
			Author:    c.Author.Login,
			Body:      c.Body,
			CreatedAt: c.CreatedAt,
		})
	}
	return cadretype.Issue{
		Number:    g.Number,
		Title:     g.Title,
		Body:      g.Body,
		State:     strings.ToLower(g.State),
		Labels:    labels,
		Assignees: assignees,
		Comments:  comments,
	}
}

type ghPullRequest struct {
	Number      int    `json:"number"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	State       string `json:"state"`
	HeadRefName string `json:"headRefName"`
	BaseRefName string `json:"baseRefName"`
	IsDraft     bool   `json:"isDraft"`
}

func (g ghPullRequest) toPullRequest() PullRequest {
	return PullRequest{
		Number: g.Number,
		URL:    g.URL,
		Title:  g.Title,
		Body:   g.Body,
		State:  strings.ToLower(g.State),
		Head:   g.HeadRefName,
		Base:   g.BaseRefName,
		Draft:  g.IsDraft,
	}
}

// runGH executes gh with args in workDir and returns (stdout, stderr, error).
// A non-zero exit is returned as an error with stderr captured for the
// caller to inspect.
func (p *GHProvider) runGH(ctx context.Context, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	if p.workDir != "" {
		cmd.Dir = p.workDir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		return stdout.String(), stderr.String(), fmt.Errorf("gh %s: %w", strings.Join(args, " "), err)
	}
	return stdout.String(), stderr.String(), nil
}

// writeTempBody writes body to a restricted-permission temp file, mirroring
// gh's --body-file convention for avoiding shell-escaping issues with
// arbitrary markdown content.
func writeTempBody(body string) (string, error) {
	f, err := os.CreateTemp("", "cadre-body-*.md")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := f.Chmod(0o600); err != nil {
		return "", err
	}
	if _, err := f.WriteString(body); err != nil {
		return "", err
	}
	return f.Name(), nil
}

var prNumberRe = regexp.MustCompile(`/pull/(\d+)`)

func extractPRNumber(url string) int {
	m := prNumberRe.FindStringSubmatch(url)
	if len(m) < 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

func lastNonEmptyLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
