// Package installer downloads a qrimzn release archive for the host platform
// and places the executable at <root>/bin.
package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/outranker/qrimzn-bridge/internal/config"
	ghclient "github.com/outranker/qrimzn-bridge/internal/github"
	"github.com/outranker/qrimzn-bridge/internal/logging"
	"github.com/outranker/qrimzn-bridge/internal/platform"
	"github.com/outranker/qrimzn-bridge/internal/runner"
	"github.com/outranker/qrimzn-bridge/internal/state"
)

var (
	// ErrUnsupportedPlatform matches platform.ErrUnsupported.
	ErrUnsupportedPlatform = platform.ErrUnsupported
	ErrSmokeCheck          = errors.New("installed binary failed smoke check")
)

// ReleaseLookup resolves versions and assets through the GitHub API.
type ReleaseLookup interface {
	ResolveVersion(ctx context.Context, owner, repo, version string) (string, error)
	LookupAsset(ctx context.Context, owner, repo, tag, expected string) (ghclient.Asset, error)
}

// InstallRecorder persists successful installs and reads them back, newest
// first.
type InstallRecorder interface {
	RecordInstall(ctx context.Context, in *state.Install) error
	ListInstalls(ctx context.Context) ([]*state.Install, error)
}

// Step reports progress to the caller.
type Step func(msg string)

// Request holds the parameters of one install.
type Request struct {
	Version  string // empty uses the configured version; "latest" asks the API
	OS       string // empty detects the host
	Arch     string
	Force    bool
	NoVerify bool
	Step     Step
}

// Result describes a finished install.
type Result struct {
	Version    string
	Target     platform.Target
	URL        string
	BinaryPath string
	SHA256     string
	Verified   bool
	Skipped    bool // already installed and not forced
}

// Installer fetches and unpacks release archives.
type Installer struct {
	cfg       config.InstallConfig
	owner     string
	repo      string
	binDir    string
	runner    runner.CommandRunner
	releases  ReleaseLookup
	recorder  InstallRecorder
	fetcher   *Fetcher
	log       logrus.FieldLogger
	assetTmpl *template.Template
	urlTmpl   *template.Template
}

// Option configures an Installer.
type Option func(*options)

type options struct {
	releases   ReleaseLookup
	recorder   InstallRecorder
	httpClient *http.Client
	log        logrus.FieldLogger
	backoff    time.Duration
}

// WithReleaseLookup replaces the GitHub API client.
func WithReleaseLookup(r ReleaseLookup) Option { return func(o *options) { o.releases = r } }

// WithRecorder records successful installs.
func WithRecorder(r InstallRecorder) Option { return func(o *options) { o.recorder = r } }

// WithHTTPClient sets the client used for archive downloads.
func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.httpClient = c } }

// WithLogger sets the logger. Nil discards.
func WithLogger(l logrus.FieldLogger) Option { return func(o *options) { o.log = l } }

// WithBackoff sets the delay before the first retry.
func WithBackoff(d time.Duration) Option { return func(o *options) { o.backoff = d } }

// New creates an Installer from loaded configuration.
func New(cfg *config.Config, r runner.CommandRunner, opts ...Option) (*Installer, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	assetTmpl, err := template.New("asset").Option("missingkey=error").Parse(cfg.Install.AssetPattern)
	if err != nil {
		return nil, fmt.Errorf("parsing asset pattern %q: %w", cfg.Install.AssetPattern, err)
	}
	urlTmpl, err := template.New("url").Option("missingkey=error").Parse(cfg.Install.URLPattern)
	if err != nil {
		return nil, fmt.Errorf("parsing url pattern %q: %w", cfg.Install.URLPattern, err)
	}

	log := logging.OrDiscard(o.log)
	if o.releases == nil {
		o.releases = ghclient.New(cfg.Install.GitHubToken)
	}
	fetcher := NewFetcher(o.httpClient, cfg.Install.MaxRedirects, cfg.Install.Retries, log)
	if o.backoff > 0 {
		fetcher.backoff = o.backoff
	}

	owner, repo := cfg.RepoParts()
	return &Installer{
		cfg:       cfg.Install,
		owner:     owner,
		repo:      repo,
		binDir:    cfg.BinDir(),
		runner:    r,
		releases:  o.releases,
		recorder:  o.recorder,
		fetcher:   fetcher,
		log:       log,
		assetTmpl: assetTmpl,
		urlTmpl:   urlTmpl,
	}, nil
}

// BinaryPath is where the executable for goos is installed.
func (i *Installer) BinaryPath(goos string) string {
	return filepath.Join(i.binDir, platform.BinaryName(goos))
}

// TargetPath is where the executable for t is installed. Only the host target
// lives directly in <root>/bin; others go to <root>/bin/<os>-<arch>.
func (i *Installer) TargetPath(t platform.Target) string {
	if runsHere(t) {
		return i.BinaryPath(t.OS)
	}
	return filepath.Join(i.binDir, t.OS+"-"+t.Arch, t.BinaryName())
}

// IsInstalled reports whether an executable for the host is in place.
func (i *Installer) IsInstalled() bool {
	return isExecutable(i.BinaryPath(runtime.GOOS))
}

func isExecutable(p string) bool {
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0111 != 0
}

// Install downloads, verifies and unpacks the release for the requested
// platform.
func (i *Installer) Install(ctx context.Context, req Request) (*Result, error) {
	step := req.Step
	if step == nil {
		step = func(string) {}
	}

	target, err := i.target(ctx, req)
	if err != nil {
		return nil, err
	}
	binPath := i.TargetPath(target)
	owner, repo := i.owner, i.repo

	// Resolve version
	version := req.Version
	if version == "" {
		version = i.cfg.Version
	}
	if version == "" || version == "latest" {
		step("Resolving latest release...")
		version, err = i.releases.ResolveVersion(ctx, owner, repo, "latest")
		if err != nil {
			return nil, fmt.Errorf("resolving version: %w", err)
		}
	}
	version = strings.TrimPrefix(version, "v")
	tag := "v" + version

	if !req.Force && i.current(ctx, binPath, target, version) {
		step(fmt.Sprintf("Already installed at %s", binPath))
		return &Result{Version: version, Target: target, BinaryPath: binPath, Skipped: true}, nil
	}

	// Resolve archive URL
	asset, err := ghclient.ResolveAssetName(i.assetTmpl, ghclient.AssetParams{
		Name:    platform.BinaryBase,
		Version: version,
		OS:      target.OS,
		Arch:    target.Arch,
		Ext:     target.ArchiveExt(),
	})
	if err != nil {
		return nil, err
	}
	archiveURL, err := i.assetURL(ctx, owner, repo, tag, version, asset)
	if err != nil {
		return nil, err
	}

	log := i.log.WithFields(logrus.Fields{"version": version, "target": target.String()})
	log.WithField("url", archiveURL).Info("installing qrimzn")

	workDir, err := os.MkdirTemp("", "qrimzn-install-*")
	if err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Download
	step(fmt.Sprintf("Downloading %s...", asset))
	archivePath := filepath.Join(workDir, filepath.Base(asset))
	sum, err := i.fetcher.DownloadToFile(ctx, archiveURL, archivePath)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", asset, err)
	}

	// Verify
	verified := false
	if i.cfg.VerifyChecksum && !req.NoVerify {
		step("Verifying checksum...")
		verified, err = i.verify(ctx, owner, repo, tag, version, asset, sum)
		if err != nil {
			return nil, err
		}
	}

	// Extract
	step(fmt.Sprintf("Extracting %s...", target.BinaryName()))
	if err := ExtractBinary(archivePath, target.BinaryName(), binPath); err != nil {
		return nil, fmt.Errorf("extracting %s: %w", asset, err)
	}

	if i.cfg.SmokeCheck && runsHere(target) {
		step("Checking binary...")
		if _, stderr, err := i.runner.Run(ctx, binPath, "--help"); err != nil {
			os.Remove(binPath)
			return nil, fmt.Errorf("%w: %s --help: %v %s", ErrSmokeCheck, binPath, err, stderr)
		}
	}

	result := &Result{
		Version:    version,
		Target:     target,
		URL:        archiveURL,
		BinaryPath: binPath,
		SHA256:     sum,
		Verified:   verified,
	}

	if i.recorder != nil {
		rec := &state.Install{
			Version:     version,
			OS:          target.OS,
			Arch:        target.Arch,
			URL:         archiveURL,
			BinaryPath:  binPath,
			SHA256:      sum,
			Verified:    verified,
			InstalledAt: time.Now(),
		}
		if err := i.recorder.RecordInstall(ctx, rec); err != nil {
			// The binary is in place; history is best effort.
			log.WithError(err).Warn("recording install")
		}
	}

	log.WithField("path", binPath).Info("qrimzn installed")
	return result, nil
}

// current reports whether binPath already holds version for target. An
// executable with no install history is taken as current.
func (i *Installer) current(ctx context.Context, binPath string, target platform.Target, version string) bool {
	if !isExecutable(binPath) {
		return false
	}
	if i.recorder == nil {
		return true
	}
	installs, err := i.recorder.ListInstalls(ctx)
	if err != nil {
		i.log.WithError(err).Warn("reading install history")
		return true
	}
	for _, in := range installs {
		if in.BinaryPath == binPath {
			return in.Version == version && in.OS == target.OS && in.Arch == target.Arch
		}
	}
	return true
}

func (i *Installer) target(ctx context.Context, req Request) (platform.Target, error) {
	if req.OS != "" || req.Arch != "" {
		goos, goarch := req.OS, req.Arch
		if goos == "" {
			goos = runtime.GOOS
		}
		if goarch == "" {
			goarch = runtime.GOARCH
		}
		return platform.Map(goos, goarch)
	}
	info, err := platform.Detect(ctx)
	if err != nil {
		return platform.Target{}, err
	}
	return info.Target, nil
}

func (i *Installer) assetURL(ctx context.Context, owner, repo, tag, version, asset string) (string, error) {
	if i.cfg.UseAPI {
		a, err := i.releases.LookupAsset(ctx, owner, repo, tag, asset)
		if err != nil {
			return "", fmt.Errorf("looking up %s: %w", asset, err)
		}
		return a.URL, nil
	}

	var buf bytes.Buffer
	data := map[string]string{
		"Repo":    owner + "/" + repo,
		"Version": version,
		"Tag":     tag,
		"Asset":   asset,
	}
	if err := i.urlTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing url pattern template: %w", err)
	}
	return buf.String(), nil
}

// verify checks sum against the release's checksum list. A release without
// a list installs unverified.
func (i *Installer) verify(ctx context.Context, owner, repo, tag, version, asset, sum string) (bool, error) {
	listURL, err := i.assetURL(ctx, owner, repo, tag, version, ChecksumsAsset)
	if errors.Is(err, ghclient.ErrAssetNotFound) {
		i.log.WithError(err).Info("no checksum list published; skipping verification")
		return false, nil
	}
	if err != nil {
		return false, err
	}

	list, err := i.fetcher.Fetch(ctx, listURL)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		i.log.WithField("url", listURL).Info("no checksum list published; skipping verification")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("fetching %s: %w", ChecksumsAsset, err)
	}

	if err := verifyChecksum(list, asset, sum); err != nil {
		return false, err
	}
	return true, nil
}

func runsHere(t platform.Target) bool {
	host, err := platform.Map(runtime.GOOS, runtime.GOARCH)
	return err == nil && host == t
}
