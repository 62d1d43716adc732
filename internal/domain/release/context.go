package release

import (
	"maps"
	"slices"
)

// Template keys provided by every Context.
const (
	KeyName        = "name"
	KeyVersion     = "version"
	KeyDesc        = "desc"
	KeyLongDesc    = "long_desc"
	KeyRepo        = "repo"
	KeyProjectRepo = "project_repo"
	KeyTag         = "tag"
	KeyTitle       = "title"
	KeyNotes       = "notes"

	uriSuffix = "_uri"
	shaSuffix = "_sha"
)

// Context is the immutable value set rendered into downstream manifests:
// project metadata merged with per-release values (tag, download URIs, checksums).
// Build it once with NewContext and pass it by pointer.
type Context struct {
	meta      ProjectMetadata
	info      ReleaseInfo
	downloads map[string]ChecksumRecord
	extra     map[string]string
}

// NewContext builds the release context. Inputs are copied.
// extra holds additional keys from the release vars file; it never overrides the
// metadata keys.
func NewContext(
	meta ProjectMetadata,
	info ReleaseInfo,
	downloads map[string]ChecksumRecord,
	extra map[string]string,
) *Context {
	return &Context{
		meta:      meta,
		info:      info,
		downloads: maps.Clone(downloads),
		extra:     maps.Clone(extra),
	}
}

// DownloadKeys returns the registered download keys in sorted order.
func (c *Context) DownloadKeys() []string {
	return slices.Sorted(maps.Keys(c.downloads))
}

// Values returns a fresh template value map.
// Empty values are left out so strict rendering reports them as missing.
func (c *Context) Values() map[string]any {
	values := make(map[string]any, len(c.extra)+len(c.downloads)*2+9)

	for key, value := range c.extra {
		put(values, key, value)
	}

	for key, rec := range c.downloads {
		put(values, key+uriSuffix, rec.URI)
		put(values, key+shaSuffix, rec.SHA256)
	}

	put(values, KeyName, c.meta.Name)
	put(values, KeyVersion, c.meta.Version)
	put(values, KeyDesc, c.meta.Description)
	put(values, KeyLongDesc, c.meta.LongDescription)
	put(values, KeyRepo, c.meta.Repository)
	put(values, KeyProjectRepo, c.meta.Repository)
	put(values, KeyTag, c.info.Tag)
	put(values, KeyTitle, c.info.Title)
	put(values, KeyNotes, c.info.Notes)

	return values
}

// put sets key, or deletes a previous value when v is empty.
func put(values map[string]any, key, v string) {
	if v == "" {
		delete(values, key)
		return
	}

	values[key] = v
}
