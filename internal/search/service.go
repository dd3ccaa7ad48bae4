package search

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Engine is a search backend that can also be written to.
type Engine interface {
	Searcher
	Indexer
}

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	engine   Engine
	fallback Searcher
	logger   zerolog.Logger
	pending  sync.WaitGroup
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, pgfts *PgFTS, logger zerolog.Logger) *Service {
	s := &Service{logger: logger}
	if meili != nil {
		s.engine = meili
	}
	if pgfts != nil {
		s.fallback = pgfts
	}
	return s
}

// NewServiceWith wires arbitrary backends; either may be nil.
func NewServiceWith(engine Engine, fallback Searcher, logger zerolog.Logger) *Service {
	return &Service{engine: engine, fallback: fallback, logger: logger}
}

// Search tries the engine if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.engine != nil && s.engine.Healthy() {
		results, total, err := s.engine.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn().Err(err).Msg("search engine error, falling back to pgfts")
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.logger.Error().Err(err).Msg("pgfts search failed")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexComment indexes a comment in the background.
func (s *Service) IndexComment(c CommentRecord) {
	if !s.engineReady() {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.engine.IndexComment(c); err != nil {
			s.logger.Warn().Err(err).Str("comment_id", c.ID).Msg("index comment")
		}
	}()
}

// DeleteComments removes comments from the index in the background.
func (s *Service) DeleteComments(ids []string) {
	if !s.engineReady() || len(ids) == 0 {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.engine.DeleteComments(ids); err != nil {
			s.logger.Warn().Err(err).Strs("comment_ids", ids).Msg("delete comments from index")
		}
	}()
}

// ReindexAll pushes every record to the engine. Called during startup.
func (s *Service) ReindexAll(records []CommentRecord) {
	if !s.engineReady() || len(records) == 0 {
		return
	}
	if err := s.engine.IndexComments(records); err != nil {
		s.logger.Warn().Err(err).Int("count", len(records)).Msg("reindex comments")
		return
	}
	s.logger.Info().Int("count", len(records)).Msg("reindexed comments")
}

// Available reports whether the engine is configured and healthy.
func (s *Service) Available() bool {
	return s.engineReady()
}

// Wait blocks until background index writes have finished.
func (s *Service) Wait() { s.pending.Wait() }

func (s *Service) engineReady() bool {
	return s.engine != nil && s.engine.Healthy()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
