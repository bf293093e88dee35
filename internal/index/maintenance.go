package index

import (
	"context"
	"fmt"
	"time"
)

type Stats struct {
	Roots   int
	Cursors int
	Stale   int64
}

// Stats counts indexed cursors across all roots.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	if s == nil || s.db == nil {
		return Stats{}, nil
	}
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT root), COUNT(*),
			COALESCE(SUM(CASE WHEN schema_version != ? THEN 1 ELSE 0 END), 0)
		FROM session_cursors`, schemaVersion).Scan(&st.Roots, &st.Cursors, &st.Stale)
	if err != nil {
		return Stats{}, fmt.Errorf("index: stats: %w", err)
	}
	return st, nil
}

// Prune drops cursors from other schema versions and cursors of any root
// not written since olderThan. Rows for an active root are refreshed every
// cycle that changes a file, so idle roots age out.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	cutoff := s.now().UTC().Add(-olderThan).Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM session_cursors
		WHERE schema_version != ?
			OR root IN (
				SELECT root FROM session_cursors
				GROUP BY root
				HAVING MAX(updated_at) < ?
			)`, schemaVersion, cutoff)
	if err != nil {
		return 0, fmt.Errorf("index: prune: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
