// Package hub moves trained model artifacts between a local directory and a
// remote model hub. The hub owns storage, versioning and consistency; this
// client does a single pass over the repo's files and reports transport
// errors as they are.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultBaseURL points at the public Hugging Face hub.
const DefaultBaseURL = "https://huggingface.co"

const defaultRevision = "main"

const userAgent = "rollout github.com/rlworks/rollout"

// RepoID identifies a hub repository as owner/name.
type RepoID struct {
	Owner string
	Name  string
}

// ParseRepoID parses an "owner/name" pair.
func ParseRepoID(s string) (RepoID, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return RepoID{}, fmt.Errorf("hub: repository must be owner/name, got %q", s)
	}
	for _, part := range parts {
		if strings.ContainsAny(part, " \t") || part == "." || part == ".." {
			return RepoID{}, fmt.Errorf("hub: invalid repository component %q", part)
		}
	}
	return RepoID{Owner: parts[0], Name: parts[1]}, nil
}

func (r RepoID) String() string {
	return r.Owner + "/" + r.Name
}

// manifest is the subset of the hub's model-info response we consume.
type manifest struct {
	Siblings []struct {
		RFilename string `json:"rfilename"`
	} `json:"siblings"`
}

// Client transfers files to and from the hub.
type Client struct {
	baseURL    string
	token      string
	revision   string
	httpClient *http.Client
	logger     *slog.Logger
}

type ClientOption func(*Client)

func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

func WithRevision(rev string) ClientOption {
	return func(c *Client) {
		c.revision = rev
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		revision: defaultRevision,
		// Model files can be large; no overall request timeout.
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pull downloads every file of the repository into dest, preserving the
// repo-relative layout.
func (c *Client) Pull(ctx context.Context, repo RepoID, dest string) error {
	m, err := c.fetchManifest(ctx, repo)
	if err != nil {
		return err
	}
	if len(m.Siblings) == 0 {
		return fmt.Errorf("hub: repository %s has no files", repo)
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("hub: failed to create %s: %w", dest, err)
	}

	for _, sib := range m.Siblings {
		local, err := safeJoin(dest, sib.RFilename)
		if err != nil {
			return err
		}
		if err := c.downloadFile(ctx, repo, sib.RFilename, local); err != nil {
			return err
		}
		c.logger.Info("Pulled file", "repo", repo.String(), "file", sib.RFilename)
	}
	return nil
}

// Push uploads every regular file under src to the repository, creating it
// first if needed.
func (c *Client) Push(ctx context.Context, repo RepoID, src string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("hub: cannot read %s: %w", src, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("hub: %s is not a directory", src)
	}

	if err := c.ensureRepo(ctx, repo); err != nil {
		return err
	}

	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		if err := c.uploadFile(ctx, repo, filepath.ToSlash(rel), p); err != nil {
			return err
		}
		c.logger.Info("Pushed file", "repo", repo.String(), "file", rel)
		return nil
	})
}

func (c *Client) fetchManifest(ctx context.Context, repo RepoID) (*manifest, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path.Join("/api/models", repo.Owner, repo.Name), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hub: manifest request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hub: manifest for %s: %s", repo, resp.Status)
	}

	var m manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("hub: failed to decode manifest: %w", err)
	}
	return &m, nil
}

func (c *Client) downloadFile(ctx context.Context, repo RepoID, name, local string) error {
	req, err := c.newRequest(ctx, http.MethodGet,
		path.Join("/", repo.Owner, repo.Name, "resolve", c.revision, name), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hub: download of %s failed: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hub: download of %s: %s", name, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return err
	}
	f, err := os.Create(local)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("hub: failed writing %s: %w", local, err)
	}
	return nil
}

func (c *Client) ensureRepo(ctx context.Context, repo RepoID) error {
	body := strings.NewReader(fmt.Sprintf(
		`{"type":"model","organization":%q,"name":%q}`, repo.Owner, repo.Name))
	req, err := c.newRequest(ctx, http.MethodPost, "/api/repos/create", body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hub: repo create request failed: %w", err)
	}
	defer resp.Body.Close()

	// Conflict means it already exists, which is fine.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated &&
		resp.StatusCode != http.StatusConflict {
		return fmt.Errorf("hub: create %s: %s", repo, resp.Status)
	}
	return nil
}

func (c *Client) uploadFile(ctx context.Context, repo RepoID, name, local string) error {
	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer f.Close()

	req, err := c.newRequest(ctx, http.MethodPut,
		path.Join("/api/models", repo.Owner, repo.Name, "upload", c.revision, name), f)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if info, err := f.Stat(); err == nil {
		req.ContentLength = info.Size()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hub: upload of %s failed: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("hub: upload of %s: %s", name, resp.Status)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, p string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+p, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// safeJoin joins a repo-relative file name onto dest, rejecting names that
// would escape it.
func safeJoin(dest, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", fmt.Errorf("hub: refusing unsafe file name %q", name)
	}
	return filepath.Join(dest, clean), nil
}
