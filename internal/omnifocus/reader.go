package omnifocus

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/plannr/internal/archive"
	"github.com/randalmurphal/plannr/internal/markup"
)

// nestingOverhead is the element nesting a payload adds around its task
// hierarchy: the root, note bodies and their rich-text wrappers.
const nestingOverhead = 16

// ReaderConfig configures a Reader. Zero values select the defaults.
type ReaderConfig struct {
	MaxDepth     int
	MaxEntrySize int64
	Normalizer   *Normalizer
	Logger       *slog.Logger
}

// Reader runs the read side of an import: locate the payload, parse it,
// extract the hierarchy and normalize it. It holds no per-import state.
type Reader struct {
	maxDepth     int
	maxEntrySize int64
	normalizer   *Normalizer
	logger       *slog.Logger
}

// Result is the normalized content of one export.
type Result struct {
	// EntryPath and Layout describe where the payload was found. Both are
	// empty for a payload read directly.
	EntryPath string
	Layout    archive.Layout

	Projects []NormalizedProject
	Tasks    []NormalizedTask
}

// NewReader creates a Reader.
func NewReader(cfg ReaderConfig) *Reader {
	r := &Reader{
		maxDepth:     cfg.MaxDepth,
		maxEntrySize: cfg.MaxEntrySize,
		normalizer:   cfg.Normalizer,
		logger:       cfg.Logger,
	}
	if r.maxDepth <= 0 {
		r.maxDepth = DefaultMaxDepth
	}
	if r.maxEntrySize <= 0 {
		r.maxEntrySize = archive.DefaultMaxEntrySize
	}
	if r.normalizer == nil {
		r.normalizer = NewNormalizer()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Read processes an export archive. The context is checked between stages.
func (r *Reader) Read(ctx context.Context, data []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := archive.Locate(data,
		archive.WithMaxEntrySize(r.maxEntrySize),
		archive.WithLogger(r.logger))
	if err != nil {
		return nil, err
	}

	res, err := r.ReadPayload(ctx, doc.Data)
	if err != nil {
		return nil, err
	}
	res.EntryPath = doc.EntryPath
	res.Layout = doc.Layout
	return res, nil
}

// ReadPayload processes a bare payload document, skipping archive detection.
func (r *Reader) ReadPayload(ctx context.Context, payload []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root, err := markup.ParseBytes(payload,
		markup.WithMaxNesting(max(markup.DefaultMaxNesting, r.maxDepth+nestingOverhead)))
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h, err := Extract(root, WithMaxDepth(r.maxDepth))
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	projects, tasks := r.normalizer.NormalizeHierarchy(h)

	r.logger.Debug("read export",
		"projects", len(projects),
		"tasks", len(tasks))
	return &Result{Projects: projects, Tasks: tasks}, nil
}
