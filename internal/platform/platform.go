// Package platform maps host operating systems and CPU architectures to the
// names used by qrimzn release archives, and detects the current host.
package platform

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported is returned for OS/arch pairs with no published archive.
var ErrUnsupported = errors.New("unsupported platform")

// BinaryBase is the executable name without an OS-specific suffix.
const BinaryBase = "qrimzn"

// Target is a release-archive platform.
type Target struct {
	OS   string // "linux", "darwin", "windows"
	Arch string // "amd64", "arm64", "arm"
}

// IsWindows reports whether the target uses zip archives and .exe binaries.
func (t Target) IsWindows() bool {
	return t.OS == "windows"
}

// ArchiveExt returns the archive extension published for the target.
func (t Target) ArchiveExt() string {
	if t.IsWindows() {
		return "zip"
	}
	return "tar.gz"
}

// BinaryName returns the executable file name for the target.
func (t Target) BinaryName() string {
	return BinaryName(t.OS)
}

func (t Target) String() string {
	return t.OS + "/" + t.Arch
}

// BinaryName returns the executable file name for goos.
func BinaryName(goos string) string {
	if goos == "windows" || goos == "win32" {
		return BinaryBase + ".exe"
	}
	return BinaryBase
}

var supported = map[string]map[string]bool{
	"linux":   {"amd64": true, "arm64": true, "arm": true},
	"darwin":  {"amd64": true, "arm64": true},
	"windows": {"amd64": true, "arm64": true},
}

// Map normalizes an OS/arch pair to release names. Both Go names
// (windows, amd64) and Node-style names (win32, x64) are accepted.
func Map(goos, goarch string) (Target, error) {
	t := Target{OS: mapOS(goos), Arch: mapArch(goarch)}
	archs, ok := supported[t.OS]
	if !ok {
		return Target{}, fmt.Errorf("%w: operating system %q", ErrUnsupported, goos)
	}
	if !archs[t.Arch] {
		return Target{}, fmt.Errorf("%w: architecture %q on %s", ErrUnsupported, goarch, t.OS)
	}
	return t, nil
}

func mapOS(goos string) string {
	switch s := strings.ToLower(strings.TrimSpace(goos)); s {
	case "win32", "windows":
		return "windows"
	case "macos", "darwin":
		return "darwin"
	default:
		return s
	}
}

func mapArch(goarch string) string {
	switch s := strings.ToLower(strings.TrimSpace(goarch)); s {
	case "x64", "x86_64", "amd64":
		return "amd64"
	case "aarch64", "arm64":
		return "arm64"
	case "armv7", "armv7l", "arm":
		return "arm"
	default:
		return s
	}
}
