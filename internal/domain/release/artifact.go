package release

// Format tags a packaged output.
type Format string

const (
	// FormatArchive is the compressed archive; always produced.
	FormatArchive Format = "archive"
	// FormatNativePackage is the OS-native package (.deb); Linux only, best-effort.
	FormatNativePackage Format = "native-package"
)

// ProjectMetadata is read once from the project manifest and the release vars file.
type ProjectMetadata struct {
	Name            string
	Version         string
	Description     string
	LongDescription string
	Repository      string
}

// BuildArtifact is a binary produced by the toolchain for one triple.
type BuildArtifact struct {
	Triple Triple
	// Path is absolute.
	Path string
}

// PackagedOutput is one distributable file derived from a BuildArtifact.
type PackagedOutput struct {
	Triple Triple
	Format Format
	Path   string
	Size   int64
}

// ChecksumRecord is the SHA-256 of the exact bytes served at URI.
type ChecksumRecord struct {
	URI    string
	SHA256 string
}

// ReleaseInfo names a release.
type ReleaseInfo struct {
	Tag   string `json:"tag_name"`
	Title string `json:"release_name"`
	Notes string `json:"release_notes"`
}
