package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v60/github"
)

// Asset is a downloadable file attached to a release.
type Asset struct {
	Name string
	URL  string // browser download URL
	Size int
}

// Client wraps the GitHub API for release lookups.
type Client struct {
	gh *gh.Client
}

// New creates a GitHub client. An empty token makes unauthenticated requests.
func New(token string) *Client {
	client := gh.NewClient(&http.Client{})
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &Client{gh: client}
}

// newWithClient wraps an injected GitHub client (for testing).
func newWithClient(ghClient *gh.Client) *Client {
	return &Client{gh: ghClient}
}

// ResolveVersion resolves "latest" to the newest release version, or returns
// the version as-is. The result never carries a leading "v".
func (c *Client) ResolveVersion(ctx context.Context, owner, repo, version string) (string, error) {
	if version == "latest" || version == "" {
		release, _, err := c.gh.Repositories.GetLatestRelease(ctx, owner, repo)
		if err != nil {
			return "", fmt.Errorf("getting latest release for %s/%s: %w", owner, repo, err)
		}
		version = release.GetTagName()
	}
	return strings.TrimPrefix(version, "v"), nil
}

// ReleaseAssets lists the assets of the release tagged tag.
func (c *Client) ReleaseAssets(ctx context.Context, owner, repo, tag string) ([]Asset, error) {
	release, _, err := c.gh.Repositories.GetReleaseByTag(ctx, owner, repo, tag)
	if err != nil {
		return nil, fmt.Errorf("getting release %s for %s/%s: %w", tag, owner, repo, err)
	}

	assets := make([]Asset, 0, len(release.Assets))
	for _, a := range release.Assets {
		assets = append(assets, Asset{
			Name: a.GetName(),
			URL:  a.GetBrowserDownloadURL(),
			Size: a.GetSize(),
		})
	}
	return assets, nil
}

// LookupAsset returns the asset named expected in the release tagged tag.
func (c *Client) LookupAsset(ctx context.Context, owner, repo, tag, expected string) (Asset, error) {
	assets, err := c.ReleaseAssets(ctx, owner, repo, tag)
	if err != nil {
		return Asset{}, err
	}

	names := make([]string, 0, len(assets))
	for _, a := range assets {
		if a.Name == expected {
			return a, nil
		}
		names = append(names, a.Name)
	}
	_, findErr := FindAsset(names, expected)
	return Asset{}, findErr
}
