package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
// Each row flattens the two matched markets down to the fields needed to
// review a past opportunity.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const opportunityCols = `id, snapshot_id, tier, category,
	primary_venue, primary_market_id, primary_title, primary_yes_price,
	secondary_venue, secondary_market_id, secondary_title, secondary_yes_price,
	similarity, spread, profit_estimate, synthetic, detected_at`

// InsertBatch writes every opportunity of one snapshot in a single batch.
// Re-inserting an id is a no-op.
func (s *OpportunityStore) InsertBatch(ctx context.Context, snapshotID string, opps []domain.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}

	query := `INSERT INTO opportunities (` + opportunityCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO NOTHING`

	batch := &pgx.Batch{}
	for _, o := range opps {
		batch.Queue(query,
			o.ID, snapshotID, o.Tier, string(o.Category),
			string(o.Primary.Venue), o.Primary.ID, o.Primary.Title, o.Primary.YesPrice,
			string(o.Secondary.Venue), o.Secondary.ID, o.Secondary.Title, o.Secondary.YesPrice,
			o.Similarity, o.Spread, o.ProfitEstimate, o.Synthetic, o.DetectedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for _, o := range opps {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert opportunity %s: %w", o.ID, err)
		}
	}
	return nil
}

// ListRecent returns stored opportunities, newest first.
func (s *OpportunityStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Opportunity, error) {
	var (
		where []string
		args  []any
	)
	if opts.Since != nil {
		args = append(args, *opts.Since)
		where = append(where, fmt.Sprintf("detected_at >= $%d", len(args)))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		where = append(where, fmt.Sprintf("detected_at <= $%d", len(args)))
	}

	query := `SELECT ` + opportunityCols + ` FROM opportunities`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY detected_at DESC, spread DESC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	defer rows.Close()

	var out []domain.Opportunity
	for rows.Next() {
		var (
			o                    domain.Opportunity
			snapshotID, category string
			pVenue, sVenue       string
		)
		if err := rows.Scan(
			&o.ID, &snapshotID, &o.Tier, &category,
			&pVenue, &o.Primary.ID, &o.Primary.Title, &o.Primary.YesPrice,
			&sVenue, &o.Secondary.ID, &o.Secondary.Title, &o.Secondary.YesPrice,
			&o.Similarity, &o.Spread, &o.ProfitEstimate, &o.Synthetic, &o.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		o.Category = domain.Category(category)
		o.Primary.Venue = domain.Venue(pVenue)
		o.Secondary.Venue = domain.Venue(sVenue)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list opportunities rows: %w", err)
	}
	return out, nil
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)
