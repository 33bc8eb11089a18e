package store

import (
	"context"
	"fmt"
)

// NameCount is one entry of the impact leaderboard.
type NameCount struct {
	Name     string
	Quantity int
}

// ImpactSummary aggregates one local day of logged donations.
type ImpactSummary struct {
	Day           string
	Visits        int
	Volunteers    int
	Items         int
	TotalQuantity int
	TopItems      []NameCount
}

// topItemsLimit bounds the leaderboard shown to volunteers.
const topItemsLimit = 5

// ImpactForDay aggregates visits and items whose local date matches day
// (formatted 2006-01-02).
func (s *Store) ImpactForDay(ctx context.Context, day string) (ImpactSummary, error) {
	ctx = ensureContext(ctx)
	summary := ImpactSummary{Day: day}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1), COUNT(DISTINCT volunteer)
		FROM visits WHERE substr(started_at, 1, 10) = ?`, day,
	).Scan(&summary.Visits, &summary.Volunteers)
	if err != nil {
		return summary, fmt.Errorf("count visits: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(1), COALESCE(SUM(quantity), 0)
		FROM visit_items WHERE substr(logged_at, 1, 10) = ?`, day,
	).Scan(&summary.Items, &summary.TotalQuantity)
	if err != nil {
		return summary, fmt.Errorf("count items: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, SUM(quantity) AS total
		FROM visit_items WHERE substr(logged_at, 1, 10) = ?
		GROUP BY name ORDER BY total DESC, name LIMIT ?`, day, topItemsLimit)
	if err != nil {
		return summary, fmt.Errorf("rank items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry NameCount
		if err := rows.Scan(&entry.Name, &entry.Quantity); err != nil {
			return summary, fmt.Errorf("scan item rank: %w", err)
		}
		summary.TopItems = append(summary.TopItems, entry)
	}
	return summary, rows.Err()
}
