package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/releaser/internal/domain/release"
	"github.com/oshokin/releaser/internal/failure"
)

// Keys of the vars file mapped onto ProjectMetadata.
const (
	varDesc     = "desc"
	varLongDesc = "long_desc"
)

// cargoManifest is the subset of Cargo.toml the releaser reads.
type cargoManifest struct {
	Package struct {
		Name        string `toml:"name"`
		Version     string `toml:"version"`
		Description string `toml:"description"`
		Repository  string `toml:"repository"`
	} `toml:"package"`
}

// Project is everything read from the project manifest and the vars file.
type Project struct {
	Metadata release.ProjectMetadata
	// Extra holds vars-file keys that are not part of the metadata.
	Extra map[string]string
}

// LoadManifest reads package.name and package.version from the project manifest.
// A missing package.version is a configuration error.
func LoadManifest(path string) (release.ProjectMetadata, error) {
	var manifest cargoManifest

	md, err := toml.DecodeFile(filepath.Clean(path), &manifest)
	if err != nil {
		return release.ProjectMetadata{}, failure.Wrap(failure.EConfig, "read project manifest "+path, err)
	}

	if !md.IsDefined("package", "version") || strings.TrimSpace(manifest.Package.Version) == "" {
		return release.ProjectMetadata{}, failure.Newf(failure.EConfig, "%s: package.version is required", path)
	}

	return release.ProjectMetadata{
		Name:        manifest.Package.Name,
		Version:     strings.TrimSpace(manifest.Package.Version),
		Description: manifest.Package.Description,
		Repository:  manifest.Package.Repository,
	}, nil
}

// LoadVars reads the flat key/value release vars file.
func LoadVars(path string) (map[string]string, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, failure.Wrap(failure.EConfig, "read release vars", err)
	}

	vars := make(map[string]string)
	if err = yaml.Unmarshal(contents, &vars); err != nil {
		return nil, failure.Wrap(failure.EConfig, "parse release vars "+path, err)
	}

	return vars, nil
}

// LoadNotes returns the release notes, or "" when the file does not exist.
func LoadNotes(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("read release notes: %w", err)
	}

	return string(contents), nil
}

// LoadProject merges the project manifest with the vars file.
// The vars file wins for the description; ProjectRepo wins for the repository.
func (c *Config) LoadProject() (*Project, error) {
	meta, err := LoadManifest(c.ProjectManifest)
	if err != nil {
		return nil, err
	}

	vars, err := LoadVars(c.VarsFile)
	if err != nil {
		return nil, err
	}

	if desc, ok := vars[varDesc]; ok {
		meta.Description = desc
	}

	meta.LongDescription = vars[varLongDesc]

	if c.ProjectRepo != "" {
		meta.Repository = c.ProjectRepo
	}

	extra := make(map[string]string, len(vars))
	for key, value := range vars {
		if key == varDesc || key == varLongDesc {
			continue
		}

		extra[key] = value
	}

	return &Project{Metadata: meta, Extra: extra}, nil
}

// ProgramName is the configured binary name, or the package name from the manifest.
func (c *Config) ProgramName() (string, error) {
	if c.Program != "" {
		return c.Program, nil
	}

	meta, err := LoadManifest(c.ProjectManifest)
	if err != nil {
		return "", err
	}

	if meta.Name == "" {
		return "", failure.Newf(failure.EConfig, "%s: package.name is required when program is not configured", c.ProjectManifest)
	}

	return meta.Name, nil
}
