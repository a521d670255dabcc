package github

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// ErrAssetNotFound means the release exists but carries no asset of that name.
var ErrAssetNotFound = errors.New("asset not found")

// AssetParams is the data available to the asset pattern template.
type AssetParams struct {
	Name    string // binary base name, "qrimzn"
	Version string // without leading "v"
	OS      string
	Arch    string
	Ext     string // "tar.gz" or "zip"
}

// ResolveAssetName executes the asset pattern template with the given parameters.
func ResolveAssetName(tmpl *template.Template, p AssetParams) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("executing asset pattern template: %w", err)
	}
	return buf.String(), nil
}

// FindAsset matches the expected name against available release assets.
// Returns the matching asset name or an error listing available names.
func FindAsset(assets []string, expected string) (string, error) {
	for _, a := range assets {
		if a == expected {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: no asset matching %q; available assets: %s", ErrAssetNotFound, expected, strings.Join(assets, ", "))
}
