package platform

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
)

// Info describes the host the tool runs on.
type Info struct {
	Target
	Distro  string // Linux only, e.g. "ubuntu"
	Family  string // Linux only, e.g. "debian"
	Version string // Linux only, e.g. "22.04"
}

// Detect returns the host target and, on Linux, distribution details.
// Distribution lookup failures fall back to OS/arch only; a cancelled
// context is reported as an error.
func Detect(ctx context.Context) (*Info, error) {
	target, err := Map(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return nil, fmt.Errorf("platform detection failed: %w", err)
	}
	info := &Info{Target: target}

	if runtime.GOOS != "linux" {
		return info, nil
	}

	distro, family, version, err := host.PlatformInformationWithContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
		}
		return info, nil
	}

	info.Distro = strings.ToLower(strings.TrimSpace(distro))
	info.Family = strings.ToLower(strings.TrimSpace(family))
	info.Version = strings.TrimSpace(version)
	return info, nil
}

// Describe renders Info for humans, e.g. "linux/amd64 (ubuntu 22.04)".
func (i *Info) Describe() string {
	if i.Distro == "" {
		return i.Target.String()
	}
	if i.Version == "" {
		return fmt.Sprintf("%s (%s)", i.Target, i.Distro)
	}
	return fmt.Sprintf("%s (%s %s)", i.Target, i.Distro, i.Version)
}
