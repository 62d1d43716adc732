package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/releaser/internal/failure"
)

// Config is the release configuration read from releaser.yaml.
// Relative paths are resolved against Root by Resolve.
type Config struct {
	// Root is the absolute project root. It is never persisted.
	Root string `yaml:"-"`
	// Program is the binary name produced by the toolchain. Defaults to package.name.
	Program string `yaml:"program"`
	// ProjectManifest is the Cargo.toml holding package.name and package.version.
	ProjectManifest string `yaml:"project_manifest"`
	// VarsFile holds desc, long_desc and any extra template values.
	VarsFile string `yaml:"vars_file"`
	// NotesFile holds the release notes; optional.
	NotesFile string `yaml:"notes_file"`
	// ProjectRepo is the canonical project URI. Defaults to package.repository.
	ProjectRepo string `yaml:"project_repo"`
	// Toolchain is the build program, invoked as `<toolchain> build --target <triple>`.
	Toolchain string `yaml:"toolchain"`
	// TargetDir is where the toolchain writes per-triple outputs.
	TargetDir string `yaml:"target_dir"`
	// ArtifactsDir receives archives and native packages.
	ArtifactsDir string `yaml:"artifacts_dir"`
	// TemplatesDir holds the manifest templates.
	TemplatesDir string `yaml:"templates_dir"`
	// ArchiveFormat is "zip" or "tar.xz".
	ArchiveFormat string `yaml:"archive_format"`
	// NativePackage configures Linux package building.
	NativePackage NativePackage `yaml:"native_package"`
	// Checksum configures fetching of published artifacts.
	Checksum Checksum `yaml:"checksum"`
	// Publish configures the package repository.
	Publish Publish `yaml:"publish"`
}

// NativePackage configures the optional OS-native package step.
type NativePackage struct {
	// Builder is the package-builder program. Its absence disables the step.
	Builder string `yaml:"builder"`
	// Prefix is the install prefix inside the package, e.g. usr.
	Prefix string `yaml:"prefix"`
	// ControlTemplate names a template in TemplatesDir; empty uses the built-in one.
	ControlTemplate string `yaml:"control_template"`
	// Maintainer goes into the control file.
	Maintainer string `yaml:"maintainer"`
}

// Checksum configures the bounded retry loop of the checksum verifier.
type Checksum struct {
	Attempts    int           `yaml:"attempts"`
	Delay       time.Duration `yaml:"delay"`
	Timeout     time.Duration `yaml:"timeout"`
	Parallelism int           `yaml:"parallelism"`

	// delaySet records an explicit delay key, so "delay: 0s" disables the default.
	delaySet bool
}

// UnmarshalYAML decodes the block and remembers whether delay was given.
func (c *Checksum) UnmarshalYAML(node *yaml.Node) error {
	type plain Checksum

	if err := node.Decode((*plain)(c)); err != nil {
		return err
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "delay" {
			c.delaySet = true
		}
	}

	return nil
}

// Publish configures the remote package repository and what is written to it.
type Publish struct {
	// Repository is the remote URI, without credentials.
	Repository string `yaml:"repository"`
	// Username is paired with the token in the authenticated URI.
	Username string `yaml:"username"`
	// TokenEnv names the environment variable holding the access token.
	TokenEnv string `yaml:"token_env"`
	// Path is the local working copy location.
	Path string `yaml:"path"`
	// Branch to force-push; empty means the checkout's current branch.
	Branch      string `yaml:"branch"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
	// Manifests maps templates to destination files inside the working copy.
	Manifests []Manifest `yaml:"manifests"`
	// Downloads maps a key to a published artifact URI (itself a template).
	// Each key k provides k_uri and k_sha to the manifests.
	Downloads map[string]string `yaml:"downloads"`
}

// Manifest is one rendered file of a release.
type Manifest struct {
	Template string `yaml:"template"`
	Dest     string `yaml:"dest"`
}

const (
	// DefaultConfigFilename is looked up in the project root when --config is not given.
	DefaultConfigFilename = "releaser.yaml"

	// Archive formats.
	ArchiveZip   = "zip"
	ArchiveTarXZ = "tar.xz"

	defaultToolchain       = "cargo"
	defaultProjectManifest = "Cargo.toml"
	defaultVarsFile        = "ci/vars.yml"
	defaultNotesFile       = "release_notes.md"
	defaultTargetDir       = "target"
	defaultArtifactsDir    = "artifacts"
	defaultTemplatesDir    = "ci/templates"
	defaultBuilder         = "dpkg-deb"
	defaultPrefix          = "usr"
	defaultAttempts        = 10
	defaultDelay           = 5 * time.Second
	defaultTimeout         = 30 * time.Second
	defaultPublishPath     = "packages"
	defaultTokenEnv        = "CI_TOKEN"
	defaultAuthorName      = "ci-bot"
	defaultAuthorEmail     = "ci@ci.ci"
)

var (
	errConfigIsNotSet     = errors.New("configuration is not set")
	errNoRepository       = errors.New("publish.repository must be provided")
	errNoManifests        = errors.New("publish.manifests must list at least one template")
	errBadManifest        = errors.New("publish manifest needs both template and dest")
	errBadArchiveFormat   = errors.New("archive_format must be zip or tar.xz")
	errBadAttempts        = errors.New("checksum.attempts must be at least 1")
	errNegativeDelay      = errors.New("checksum.delay must not be negative")
	errNonLocalPublishDst = errors.New("publish manifest dest must stay inside the working copy")
)

// Load reads the configuration at path and resolves it against root.
// An empty path means root/releaser.yaml, which may be absent; defaults are used then.
// An empty root means the directory containing the configuration file.
func Load(path, root string) (*Config, error) {
	explicit := path != ""

	var err error

	if root != "" {
		if root, err = filepath.Abs(root); err != nil {
			return nil, failure.Wrap(failure.EConfig, "resolve project root", err)
		}
	}

	if !explicit {
		base := root
		if base == "" {
			if base, err = os.Getwd(); err != nil {
				return nil, failure.Wrap(failure.EConfig, "resolve working directory", err)
			}
		}

		path = filepath.Join(base, DefaultConfigFilename)
	}

	if path, err = filepath.Abs(path); err != nil {
		return nil, failure.Wrap(failure.EConfig, "resolve configuration path", err)
	}

	cfg := new(Config)

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, cfg); err != nil {
			return nil, failure.Wrap(failure.EConfig, "parse "+path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// Defaults only.
	default:
		return nil, failure.Wrap(failure.EConfig, "read settings", err)
	}

	if root == "" {
		root = filepath.Dir(path)
	}

	if err = cfg.Resolve(root); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Resolve validates cfg, fills defaults and makes every path absolute under root.
func (c *Config) Resolve(root string) error {
	if c == nil {
		return failure.Wrap(failure.EConfig, "resolve", errConfigIsNotSet)
	}

	if err := Validate(c); err != nil {
		return err
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return failure.Wrap(failure.EConfig, "resolve project root", err)
	}

	c.Root = absRoot

	for _, p := range []*string{
		&c.ProjectManifest,
		&c.VarsFile,
		&c.NotesFile,
		&c.TargetDir,
		&c.ArtifactsDir,
		&c.TemplatesDir,
		&c.Publish.Path,
	} {
		*p = c.Abs(*p)
	}

	return nil
}

// Abs resolves p against the project root.
func (c *Config) Abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(c.Root, p)
}

// Validate fills defaults and checks the settings that every command relies on.
func Validate(c *Config) error {
	if c == nil {
		return failure.Wrap(failure.EConfig, "validate", errConfigIsNotSet)
	}

	setDefault(&c.Toolchain, defaultToolchain)
	setDefault(&c.ProjectManifest, defaultProjectManifest)
	setDefault(&c.VarsFile, defaultVarsFile)
	setDefault(&c.NotesFile, defaultNotesFile)
	setDefault(&c.TargetDir, defaultTargetDir)
	setDefault(&c.ArtifactsDir, defaultArtifactsDir)
	setDefault(&c.TemplatesDir, defaultTemplatesDir)
	setDefault(&c.ArchiveFormat, ArchiveZip)
	setDefault(&c.NativePackage.Builder, defaultBuilder)
	setDefault(&c.NativePackage.Prefix, defaultPrefix)
	setDefault(&c.Publish.Path, defaultPublishPath)
	setDefault(&c.Publish.TokenEnv, defaultTokenEnv)
	setDefault(&c.Publish.AuthorName, defaultAuthorName)
	setDefault(&c.Publish.AuthorEmail, defaultAuthorEmail)

	if c.ArchiveFormat != ArchiveZip && c.ArchiveFormat != ArchiveTarXZ {
		return failure.Wrap(failure.EConfig, c.ArchiveFormat, errBadArchiveFormat)
	}

	if c.Checksum.Attempts == 0 {
		c.Checksum.Attempts = defaultAttempts
	}

	if c.Checksum.Delay == 0 && !c.Checksum.delaySet {
		c.Checksum.Delay = defaultDelay
	}

	if c.Checksum.Attempts < 1 {
		return failure.Wrap(failure.EConfig, "checksum", errBadAttempts)
	}

	if c.Checksum.Delay < 0 {
		return failure.Wrap(failure.EConfig, "checksum", errNegativeDelay)
	}

	if c.Checksum.Timeout <= 0 {
		c.Checksum.Timeout = defaultTimeout
	}

	if c.Checksum.Parallelism < 1 {
		c.Checksum.Parallelism = 1
	}

	return nil
}

// ValidatePublish checks the settings needed by the publish command.
func ValidatePublish(c *Config) error {
	p := c.Publish
	if p.Repository == "" {
		return failure.Wrap(failure.EConfig, "publish", errNoRepository)
	}

	if _, err := url.Parse(p.Repository); err != nil {
		return failure.Wrap(failure.EConfig, "invalid publish.repository", err)
	}

	if len(p.Manifests) == 0 {
		return failure.Wrap(failure.EConfig, "publish", errNoManifests)
	}

	for _, m := range p.Manifests {
		if m.Template == "" || m.Dest == "" {
			return failure.Wrap(failure.EConfig, fmt.Sprintf("manifest %q", m.Template), errBadManifest)
		}

		if !filepath.IsLocal(m.Dest) {
			return failure.Wrap(failure.EConfig, m.Dest, errNonLocalPublishDst)
		}
	}

	return nil
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
