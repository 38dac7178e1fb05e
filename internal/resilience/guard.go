package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/courtroom/internal/matcher"
	"github.com/MrWong99/courtroom/pkg/types"
)

// GuardTagger returns a tagger that stops calling t while b is open.
func GuardTagger(t matcher.EntityTagger, b *Breaker) matcher.EntityTagger {
	return &guardedTagger{inner: t, breaker: b}
}

type guardedTagger struct {
	inner   matcher.EntityTagger
	breaker *Breaker
}

func (g *guardedTagger) Tag(ctx context.Context, text string) ([]types.Entity, error) {
	var ents []types.Entity
	err := g.breaker.Do(func() error {
		var err error
		ents, err = g.inner.Tag(ctx, text)
		return err
	})
	return ents, unavailable(err)
}

// unavailable marks ErrOpen as [matcher.ErrUnavailable] so the matcher does
// not report a skipped collaborator as a failure.
func unavailable(err error) error {
	if errors.Is(err, ErrOpen) {
		return fmt.Errorf("%w: %w", matcher.ErrUnavailable, err)
	}
	return err
}

// GuardSimilarity returns a similarity model that stops calling s while b is
// open. When s can precompute candidate vectors, so can the returned model;
// warm-up goes through the breaker as well.
func GuardSimilarity(s matcher.SimilarityModel, b *Breaker) matcher.SimilarityModel {
	g := &guardedSimilarity{inner: s, breaker: b}
	if w, ok := s.(warmer); ok {
		return &warmingSimilarity{guardedSimilarity: g, warmer: w}
	}
	return g
}

type warmer interface {
	Warm(ctx context.Context, phrases []string) error
}

type guardedSimilarity struct {
	inner   matcher.SimilarityModel
	breaker *Breaker
}

func (g *guardedSimilarity) BestMatch(ctx context.Context, query string, candidates []string) (int, float64, error) {
	idx, score := -1, 0.0
	err := g.breaker.Do(func() error {
		var err error
		idx, score, err = g.inner.BestMatch(ctx, query, candidates)
		return err
	})
	if err != nil {
		return -1, 0, unavailable(err)
	}
	return idx, score, nil
}

type warmingSimilarity struct {
	*guardedSimilarity
	warmer warmer
}

func (w *warmingSimilarity) Warm(ctx context.Context, phrases []string) error {
	return unavailable(w.breaker.Do(func() error { return w.warmer.Warm(ctx, phrases) }))
}
