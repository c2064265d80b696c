package reporting

import (
	"context"
	"maps"
	"time"

	"github.com/getsentry/sentry-go"
)

type requestScopeKey struct{}

// What a request has recorded about itself for error reports. Values stored in
// a context are never mutated, every addition stores a merged copy.
type requestScope struct {
	tags      map[string]string
	extras    map[string]string
	startedAt time.Time
}

func scopeFromContext(ctx context.Context) requestScope {
	scope, _ := ctx.Value(requestScopeKey{}).(requestScope)
	return scope
}

func (s requestScope) with(tags, extras map[string]string) requestScope {
	merged := requestScope{
		tags:      make(map[string]string, len(s.tags)+len(tags)),
		extras:    make(map[string]string, len(s.extras)+len(extras)),
		startedAt: s.startedAt,
	}
	maps.Copy(merged.tags, s.tags)
	maps.Copy(merged.tags, tags)
	maps.Copy(merged.extras, s.extras)
	maps.Copy(merged.extras, extras)
	return merged
}

func (s requestScope) applyTo(scope *sentry.Scope, now time.Time) {
	scope.SetTags(s.tags)
	for key, value := range s.extras {
		scope.SetExtra(key, value)
	}
	if !s.startedAt.IsZero() {
		scope.SetExtra("secondsSinceStart", now.Sub(s.startedAt).Seconds())
	}
}

func markRequestStart(ctx context.Context, startedAt time.Time) context.Context {
	scope := scopeFromContext(ctx).with(nil, nil)
	scope.startedAt = startedAt
	return context.WithValue(ctx, requestScopeKey{}, scope)
}

// Tags are indexed by Sentry and should have few distinct values
func AddTagsToContext(ctx context.Context, tags map[string]string) context.Context {
	return context.WithValue(ctx, requestScopeKey{}, scopeFromContext(ctx).with(tags, nil))
}

func AddExtrasToContext(ctx context.Context, extras map[string]string) context.Context {
	return context.WithValue(ctx, requestScopeKey{}, scopeFromContext(ctx).with(nil, extras))
}
