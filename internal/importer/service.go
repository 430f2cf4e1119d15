package importer

import (
	"context"
	"log/slog"
	"sync"

	plannrerrors "github.com/randalmurphal/plannr/internal/errors"
	"github.com/randalmurphal/plannr/internal/omnifocus"
)

// Service runs whole imports against one store, one at a time.
type Service struct {
	reader      *omnifocus.Reader
	coordinator *Coordinator
	logger      *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewService creates a Service.
func NewService(reader *omnifocus.Reader, store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		reader:      reader,
		coordinator: NewCoordinator(store, logger),
		logger:      logger,
	}
}

// ImportArchive imports an export archive. A call made while another import
// is running fails with ImportInProgress.
func (s *Service) ImportArchive(ctx context.Context, data []byte) (*Report, error) {
	return s.run(ctx, data, s.reader.Read)
}

// ImportPayload imports a bare payload document.
func (s *Service) ImportPayload(ctx context.Context, payload []byte) (*Report, error) {
	return s.run(ctx, payload, s.reader.ReadPayload)
}

// Running reports whether an import is in flight.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Service) run(ctx context.Context, data []byte, read func(context.Context, []byte) (*omnifocus.Result, error)) (*Report, error) {
	if !s.acquire() {
		return nil, plannrerrors.ErrImportInProgress()
	}
	defer s.release()

	res, err := read(ctx, data)
	if err != nil {
		s.logger.Debug("import read failed", "error", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report, err := s.coordinator.ImportBatch(ctx, res.Projects, res.Tasks)
	if err != nil {
		return nil, err
	}
	report.EntryPath = res.EntryPath
	report.Layout = string(res.Layout)
	return report, nil
}

func (s *Service) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Service) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}
