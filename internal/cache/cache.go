// Package cache holds short-lived copies of computed dashboard summaries.
package cache

import (
	"context"

	"github.com/moneytrail/apiserver/types"
)

// DashboardCache stores one summary per user.
//
// Every Invalidate bumps the user's generation. A summary is only stored if the
// generation read before computing it is still current, so a summary computed
// from data that changed mid-flight is never cached.
type DashboardCache interface {
	// Get returns the cached summary and whether it was present.
	Get(ctx context.Context, userID string) (types.DashboardSummary, bool, error)
	Generation(ctx context.Context, userID string) (int64, error)
	// Set stores summary if the user's generation still equals gen.
	Set(ctx context.Context, userID string, gen int64, summary types.DashboardSummary) error
	Invalidate(ctx context.Context, userID string) error
}

// Noop is used when no redis is configured. Every lookup misses.
type Noop struct{}

func (Noop) Get(context.Context, string) (types.DashboardSummary, bool, error) {
	return types.DashboardSummary{}, false, nil
}

func (Noop) Generation(context.Context, string) (int64, error) { return 0, nil }

func (Noop) Set(context.Context, string, int64, types.DashboardSummary) error { return nil }

func (Noop) Invalidate(context.Context, string) error { return nil }

func dashboardKey(userID string) string {
	return "dashboard:" + userID
}

func generationKey(userID string) string {
	return "dashboard:gen:" + userID
}
