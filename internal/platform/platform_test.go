package platform

import (
	"context"
	"errors"
	"runtime"
	"testing"
)

func TestMap(t *testing.T) {
	tests := []struct {
		goos, goarch string
		want         Target
	}{
		{"linux", "amd64", Target{OS: "linux", Arch: "amd64"}},
		{"linux", "x64", Target{OS: "linux", Arch: "amd64"}},
		{"linux", "aarch64", Target{OS: "linux", Arch: "arm64"}},
		{"linux", "arm", Target{OS: "linux", Arch: "arm"}},
		{"darwin", "arm64", Target{OS: "darwin", Arch: "arm64"}},
		{"win32", "x64", Target{OS: "windows", Arch: "amd64"}},
		{"Windows", "AMD64", Target{OS: "windows", Arch: "amd64"}},
	}

	for _, tt := range tests {
		t.Run(tt.goos+"-"+tt.goarch, func(t *testing.T) {
			got, err := Map(tt.goos, tt.goarch)
			if err != nil {
				t.Fatalf("Map(%q, %q): %v", tt.goos, tt.goarch, err)
			}
			if got != tt.want {
				t.Errorf("Map(%q, %q) = %+v, want %+v", tt.goos, tt.goarch, got, tt.want)
			}
		})
	}
}

func TestMapUnsupported(t *testing.T) {
	cases := [][2]string{
		{"freebsd", "amd64"},
		{"darwin", "arm"},
		{"linux", "386"},
		{"linux", "s390x"},
	}
	for _, c := range cases {
		if _, err := Map(c[0], c[1]); !errors.Is(err, ErrUnsupported) {
			t.Errorf("Map(%q, %q) err = %v, want ErrUnsupported", c[0], c[1], err)
		}
	}
}

func TestTargetNames(t *testing.T) {
	win := Target{OS: "windows", Arch: "amd64"}
	if win.ArchiveExt() != "zip" {
		t.Errorf("windows ext = %q, want zip", win.ArchiveExt())
	}
	if win.BinaryName() != "qrimzn.exe" {
		t.Errorf("windows binary = %q, want qrimzn.exe", win.BinaryName())
	}

	linux := Target{OS: "linux", Arch: "arm64"}
	if linux.ArchiveExt() != "tar.gz" {
		t.Errorf("linux ext = %q, want tar.gz", linux.ArchiveExt())
	}
	if linux.BinaryName() != "qrimzn" {
		t.Errorf("linux binary = %q, want qrimzn", linux.BinaryName())
	}
	if linux.String() != "linux/arm64" {
		t.Errorf("String() = %q", linux.String())
	}
}

func TestDetect(t *testing.T) {
	if _, err := Map(runtime.GOOS, runtime.GOARCH); err != nil {
		t.Skipf("host %s/%s has no release archive", runtime.GOOS, runtime.GOARCH)
	}

	info, err := Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if info.OS != mapOS(runtime.GOOS) {
		t.Errorf("OS = %q, want %q", info.OS, runtime.GOOS)
	}
	if info.Describe() == "" {
		t.Error("Describe should not be empty")
	}
}

func TestDescribe(t *testing.T) {
	info := &Info{Target: Target{OS: "linux", Arch: "amd64"}, Distro: "ubuntu", Version: "22.04"}
	if got := info.Describe(); got != "linux/amd64 (ubuntu 22.04)" {
		t.Errorf("Describe() = %q", got)
	}
	info = &Info{Target: Target{OS: "darwin", Arch: "arm64"}}
	if got := info.Describe(); got != "darwin/arm64" {
		t.Errorf("Describe() = %q", got)
	}
}
