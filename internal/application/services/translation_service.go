package services

import (
	"context"

	"github.com/kakehashi-app/kakehashi-backend/internal/adapters/cache"
	"github.com/kakehashi-app/kakehashi-backend/internal/domain/providers"
	"github.com/kakehashi-app/kakehashi-backend/internal/infrastructure/observability"
)

// TranslationService performs cache-aware translation through the language
// model gateway. It never fails: the worst case is an echoed original text
// with the fallback marker set.
type TranslationService struct {
	model   providers.LanguageModel
	cache   *cache.TranslationCache
	metrics *observability.Metrics
}

// NewTranslationService creates a new translation service
func NewTranslationService(model providers.LanguageModel, translationCache *cache.TranslationCache, metrics *observability.Metrics) *TranslationService {
	return &TranslationService{
		model:   model,
		cache:   translationCache,
		metrics: metrics,
	}
}

// Translate translates text from srcLang to dstLang, consulting the cache
// first. Only real provider results are cached; fallbacks are not.
func (s *TranslationService) Translate(ctx context.Context, text, srcLang, dstLang string) providers.TranslationResult {
	if text == "" || srcLang == dstLang {
		return providers.TranslationResult{Text: text, Fallback: true}
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(text, srcLang, dstLang); ok {
			observability.RecordCacheHit(ctx, s.metrics)
			return providers.TranslationResult{Text: cached, Provider: "cache"}
		}
		observability.RecordCacheMiss(ctx, s.metrics)
	}

	result := s.model.Translate(ctx, providers.TranslationRequest{
		Text:       text,
		SourceLang: srcLang,
		TargetLang: dstLang,
	})

	if !result.Fallback && s.cache != nil {
		s.cache.Put(text, srcLang, dstLang, result.Text)
	}

	return result
}
