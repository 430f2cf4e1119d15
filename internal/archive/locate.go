// Package archive finds the primary document inside an export archive.
//
// Exports come in several container layouts: a flat zip with contents.xml,
// the same wrapped in a directory, the legacy OmniFocus.ofocus package, an
// archive holding a .ofocus archive, and the sharded layout where the payload
// lives in "<timestamp>=<ids>.zip" files next to a data/ directory of shards.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"

	plannrerrors "github.com/randalmurphal/plannr/internal/errors"
)

// PrimaryName is the file name of the payload document.
const PrimaryName = "contents.xml"

const (
	legacyPackagePath = "OmniFocus.ofocus/" + PrimaryName
	packageExt        = ".ofocus"
	shardPrimaryGlob  = "*=*.zip"
	shardGlob         = "data/*.zip"

	// DefaultMaxEntrySize caps how much of a single entry is read.
	DefaultMaxEntrySize int64 = 64 << 20
)

// payloadExts are accepted when a sharded archive has no contents.xml.
var payloadExts = []string{".xml", ".plist"}

// Layout names the container shape a document was found in.
type Layout string

const (
	LayoutTopLevel       Layout = "top-level"
	LayoutSuffix         Layout = "suffix"
	LayoutLegacyPackage  Layout = "legacy-package"
	LayoutNestedArchive  Layout = "nested-archive"
	LayoutShardedPrimary Layout = "sharded-primary"
	LayoutShardedShard   Layout = "sharded-shard"
)

// Document is the payload selected from an archive.
type Document struct {
	// EntryPath is the path of the payload, with nested archives joined by "!/".
	EntryPath string
	Data      []byte
	Layout    Layout
}

// Option configures Locate.
type Option func(*locator)

// WithMaxEntrySize caps the bytes read from any one entry.
func WithMaxEntrySize(n int64) Option {
	return func(l *locator) {
		if n > 0 {
			l.maxEntrySize = n
		}
	}
}

// WithLogger sets the logger used for layout diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *locator) {
		if logger != nil {
			l.logger = logger
		}
	}
}

type locator struct {
	maxEntrySize int64
	logger       *slog.Logger
	root         *container
}

// container is one opened zip with its entry index.
type container struct {
	name  string
	files map[string]*zip.File
	paths []string
}

// Locate returns the primary document inside an archive. Detection steps are
// tried in a fixed order so the selection is deterministic for a layout.
// When nothing matches, the error carries the full entry listing.
func Locate(data []byte, opts ...Option) (*Document, error) {
	l := &locator{maxEntrySize: DefaultMaxEntrySize, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}

	root, err := openContainer("", data)
	if err != nil {
		return nil, plannrerrors.ErrArchiveLayoutUnrecognized(nil).WithCause(err)
	}
	l.root = root

	steps := []func(*container) (*Document, error){
		l.findTopLevel,
		l.findSuffix,
		l.findLegacyPackage,
		l.findNestedArchive,
		l.findSharded,
	}
	for _, step := range steps {
		doc, err := step(root)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			l.logger.Debug("located export payload",
				"entry", doc.EntryPath,
				"layout", doc.Layout,
				"bytes", len(doc.Data))
			return doc, nil
		}
	}

	return nil, plannrerrors.ErrArchiveLayoutUnrecognized(root.paths)
}

// Entries lists the entry paths of an archive in archive order.
func Entries(data []byte) ([]string, error) {
	c, err := openContainer("", data)
	if err != nil {
		return nil, err
	}
	return c.paths, nil
}

func openContainer(name string, data []byte) (*container, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip %s: %w", displayName(name), err)
	}
	c := &container{
		name:  name,
		files: make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		c.paths = append(c.paths, f.Name)
		if _, dup := c.files[f.Name]; !dup {
			c.files[f.Name] = f
		}
	}
	return c, nil
}

func displayName(name string) string {
	if name == "" {
		return "archive"
	}
	return name
}

func (c *container) qualify(entry string) string {
	if c.name == "" {
		return entry
	}
	return c.name + "!/" + entry
}

func (l *locator) read(c *container, entry string) ([]byte, error) {
	f, ok := c.files[entry]
	if !ok {
		return nil, fmt.Errorf("entry %s not found", c.qualify(entry))
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", c.qualify(entry), err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, l.maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", c.qualify(entry), err)
	}
	if int64(len(data)) > l.maxEntrySize {
		return nil, fmt.Errorf("entry %s exceeds %d bytes", c.qualify(entry), l.maxEntrySize)
	}
	return data, nil
}

// document reads a matched payload entry. The layout is known at this point,
// so a payload that cannot be read is corrupt rather than unrecognized.
func (l *locator) document(c *container, entry string, layout Layout) (*Document, error) {
	data, err := l.read(c, entry)
	if err != nil {
		return nil, plannrerrors.ErrMarkupCorrupt(
			fmt.Sprintf("payload %s could not be read", c.qualify(entry))).WithCause(err)
	}
	return &Document{EntryPath: c.qualify(entry), Data: data, Layout: layout}, nil
}

// Step 1: contents.xml at the top level.
func (l *locator) findTopLevel(c *container) (*Document, error) {
	if _, ok := c.files[PrimaryName]; !ok {
		return nil, nil
	}
	return l.document(c, PrimaryName, LayoutTopLevel)
}

// Step 2: the first entry whose path ends with contents.xml.
func (l *locator) findSuffix(c *container) (*Document, error) {
	entry := firstSuffix(c, PrimaryName)
	if entry == "" {
		return nil, nil
	}
	return l.document(c, entry, LayoutSuffix)
}

// Step 3: the legacy package path. The path also ends with contents.xml, so
// step 2 claims it first whenever it is present.
func (l *locator) findLegacyPackage(c *container) (*Document, error) {
	if _, ok := c.files[legacyPackagePath]; !ok {
		return nil, nil
	}
	return l.document(c, legacyPackagePath, LayoutLegacyPackage)
}

// Step 4: a top-level .ofocus entry that is itself an archive, searched with
// steps 1 and 2.
func (l *locator) findNestedArchive(c *container) (*Document, error) {
	for _, entry := range c.paths {
		if strings.Contains(entry, "/") || !strings.HasSuffix(strings.ToLower(entry), packageExt) {
			continue
		}
		inner, err := l.openNested(c, entry)
		if err != nil {
			l.logger.Debug("skipping nested package", "entry", c.qualify(entry), "error", err)
			continue
		}
		doc, err := l.findPrimary(inner)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			doc.Layout = LayoutNestedArchive
			return doc, nil
		}
	}
	return nil, nil
}

// Step 5: sharded export. The top-level "<name>=<ids>.zip" entry is preferred;
// the first data/ shard is the fallback.
func (l *locator) findSharded(c *container) (*Document, error) {
	var primary, firstShard string
	for _, entry := range c.paths {
		if primary == "" && matchGlob(shardPrimaryGlob, entry) {
			primary = entry
		}
		if firstShard == "" && matchGlob(shardGlob, entry) {
			firstShard = entry
		}
	}
	if primary == "" && firstShard == "" {
		return nil, nil
	}

	if primary != "" {
		doc, err := l.searchShard(c, primary)
		if err != nil {
			l.logger.Debug("primary shard unusable, falling back", "entry", c.qualify(primary), "error", err)
		} else if doc != nil {
			doc.Layout = LayoutShardedPrimary
			return doc, nil
		}
	}

	if firstShard == "" {
		return nil, nil
	}
	doc, err := l.searchShard(c, firstShard)
	if err != nil {
		if plannrerrors.AsPlannrError(err) != nil {
			return nil, err
		}
		return nil, plannrerrors.ErrArchiveLayoutUnrecognized(l.root.paths).WithCause(err)
	}
	if doc != nil {
		doc.Layout = LayoutShardedShard
	}
	return doc, nil
}

// searchShard opens a shard and looks for contents.xml, then for any markup
// or property-list entry.
func (l *locator) searchShard(c *container, entry string) (*Document, error) {
	inner, err := l.openNested(c, entry)
	if err != nil {
		return nil, err
	}
	doc, err := l.findPrimary(inner)
	if err != nil || doc != nil {
		return doc, err
	}
	for _, p := range inner.paths {
		ext := strings.ToLower(path.Ext(p))
		for _, want := range payloadExts {
			if ext == want {
				return l.document(inner, p, LayoutShardedShard)
			}
		}
	}
	return nil, nil
}

// findPrimary applies steps 1 and 2 to a nested container.
func (l *locator) findPrimary(c *container) (*Document, error) {
	doc, err := l.findTopLevel(c)
	if err != nil || doc != nil {
		return doc, err
	}
	return l.findSuffix(c)
}

func (l *locator) openNested(c *container, entry string) (*container, error) {
	data, err := l.read(c, entry)
	if err != nil {
		return nil, err
	}
	if !isZip(data) {
		return nil, fmt.Errorf("entry %s is %s, not a zip archive", c.qualify(entry), mimetype.Detect(data).String())
	}
	return openContainer(c.qualify(entry), data)
}

// isZip accepts zip and any format mimetype derives from it.
func isZip(data []byte) bool {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return true
		}
	}
	return false
}

func firstSuffix(c *container, suffix string) string {
	for _, p := range c.paths {
		if strings.HasSuffix(p, suffix) {
			return p
		}
	}
	return ""
}

func matchGlob(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}
