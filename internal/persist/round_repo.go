package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// RoundRow is one finished round.
type RoundRow struct {
	ID             int64
	Seed           int64
	RoundNo        int
	ChickenAmount  int
	ScoreObjective int
	Score          int
	Outcome        string
	TimeLimit      time.Duration
	Elapsed        time.Duration
	Frames         uint64
	PlayedAt       time.Time
}

// WhackRow is one scored hit within a round. X/Z are ground-plane coordinates.
type WhackRow struct {
	At   time.Duration
	X, Z float64
}

// RoundStats aggregates the whole history.
type RoundStats struct {
	Rounds    int64
	Wins      int64
	BestScore int
	// Mean elapsed time of won rounds; zero without wins.
	MeanWinTime time.Duration
}

type RoundRepo struct {
	db *DB
}

func NewRoundRepo(db *DB) *RoundRepo {
	return &RoundRepo{db: db}
}

// Save writes the round and its whacks in a single transaction and returns
// the new round id.
func (r *RoundRepo) Save(ctx context.Context, row RoundRow, whacks []WhackRow) (int64, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("round begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO rounds (seed, round_no, chicken_amount, score_objective, score, outcome,
		                     time_limit_ms, elapsed_ms, frames)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		row.Seed, row.RoundNo, row.ChickenAmount, row.ScoreObjective, row.Score, row.Outcome,
		row.TimeLimit.Milliseconds(), row.Elapsed.Milliseconds(), int64(row.Frames),
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("round insert: %w", err)
	}

	if len(whacks) > 0 {
		rows := make([][]any, len(whacks))
		for i, w := range whacks {
			rows[i] = []any{id, int32(i + 1), w.At.Milliseconds(), w.X, w.Z}
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"round_whacks"},
			[]string{"round_id", "seq", "at_ms", "x", "z"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return 0, fmt.Errorf("whack copy: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("round commit: %w", err)
	}
	r.db.log.Debug("round saved")
	return id, nil
}

// Recent returns the latest rounds, newest first.
func (r *RoundRepo) Recent(ctx context.Context, limit int) ([]RoundRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, seed, round_no, chicken_amount, score_objective, score, outcome,
		        time_limit_ms, elapsed_ms, frames, played_at
		 FROM rounds ORDER BY played_at DESC, id DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RoundRow
	for rows.Next() {
		var (
			row              RoundRow
			limitMs, elapsMs int64
			frames           int64
		)
		if err := rows.Scan(
			&row.ID, &row.Seed, &row.RoundNo, &row.ChickenAmount, &row.ScoreObjective,
			&row.Score, &row.Outcome, &limitMs, &elapsMs, &frames, &row.PlayedAt,
		); err != nil {
			return nil, err
		}
		row.TimeLimit = time.Duration(limitMs) * time.Millisecond
		row.Elapsed = time.Duration(elapsMs) * time.Millisecond
		row.Frames = uint64(frames)
		result = append(result, row)
	}
	return result, rows.Err()
}

// Whacks returns the hits of one round in scoring order.
func (r *RoundRepo) Whacks(ctx context.Context, roundID int64) ([]WhackRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT at_ms, x, z FROM round_whacks WHERE round_id = $1 ORDER BY seq`, roundID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []WhackRow
	for rows.Next() {
		var (
			w  WhackRow
			at int64
		)
		if err := rows.Scan(&at, &w.X, &w.Z); err != nil {
			return nil, err
		}
		w.At = time.Duration(at) * time.Millisecond
		result = append(result, w)
	}
	return result, rows.Err()
}

// Stats aggregates every stored round.
func (r *RoundRepo) Stats(ctx context.Context) (RoundStats, error) {
	var (
		s         RoundStats
		meanWinMs float64
	)
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE outcome = 'win'),
		        COALESCE(MAX(score), 0),
		        COALESCE(AVG(elapsed_ms) FILTER (WHERE outcome = 'win'), 0)::float8
		 FROM rounds`,
	).Scan(&s.Rounds, &s.Wins, &s.BestScore, &meanWinMs)
	if err != nil {
		return RoundStats{}, err
	}
	s.MeanWinTime = time.Duration(meanWinMs * float64(time.Millisecond))
	return s, nil
}
