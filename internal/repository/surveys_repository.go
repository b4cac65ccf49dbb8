package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	errorvalues "github.com/limbo/campusflow/internal/error_values"
	"github.com/limbo/campusflow/pkg/entity"
	"github.com/limbo/campusflow/pkg/geo"
)

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type SurveysRepository struct {
	conn PgConnection
}

func NewSurveysRepo(conn PgConnection) *SurveysRepository {
	return &SurveysRepository{
		conn: conn,
	}
}

func (sr *SurveysRepository) GetLastSubmittedAt(ctx context.Context, uid int64) (*time.Time, error) {
	return lastSubmittedAt(ctx, sr.conn, uid)
}

func lastSubmittedAt(ctx context.Context, q rowQuerier, uid int64) (*time.Time, error) {
	row := q.QueryRow(
		ctx,
		`SELECT submitted_at FROM surveys WHERE user_id = $1 ORDER BY submitted_at DESC LIMIT 1;`,
		uid,
	)
	var submittedAt time.Time
	if err := row.Scan(&submittedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, writeError("getting last survey time error: ", err)
	}
	return &submittedAt, nil
}

// Serializable transactions that lose a conflict are retried from scratch
const maxRecordAttempts = 3

func (sr *SurveysRepository) Record(ctx context.Context, survey *entity.Survey, guard *CooldownGuard) (int, error) {
	if survey == nil {
		return 0, errors.New("survey is nil")
	}
	var err error
	for attempt := 0; attempt < maxRecordAttempts; attempt++ {
		var coins int
		coins, err = sr.recordOnce(ctx, survey, guard)
		if !isSerializationFailure(err) {
			return coins, err
		}
	}
	return 0, err
}

func (sr *SurveysRepository) recordOnce(ctx context.Context, survey *entity.Survey, guard *CooldownGuard) (coins int, err error) {
	tx, err := sr.conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return 0, errors.New("beginning survey transaction error: " + err.Error())
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()
	if guard != nil {
		if err = checkCooldownLocked(ctx, tx, survey, guard.Interval); err != nil {
			return 0, err
		}
	}
	_, err = tx.Exec(
		ctx,
		`INSERT INTO surveys (user_id, latitude, longitude, occupancy_level, area_id, submitted_at) VALUES ($1, $2, $3, $4, $5, $6);`,
		survey.UserID,
		survey.Latitude,
		survey.Longitude,
		string(survey.OccupancyLevel),
		survey.AreaID,
		survey.SubmittedAt,
	)
	if err != nil {
		return 0, writeError("inserting survey error: ", err)
	}
	_, err = tx.Exec(
		ctx,
		`INSERT INTO user_habits (user_id, area_id) VALUES ($1, $2);`,
		survey.UserID,
		survey.AreaID,
	)
	if err != nil {
		return 0, writeError("inserting habit visit error: ", err)
	}
	row := tx.QueryRow(ctx, `UPDATE users SET coins = coins + 1 WHERE id = $1 RETURNING coins;`, survey.UserID)
	if err = row.Scan(&coins); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errorvalues.ErrUserNotFound
		}
		return 0, writeError("crediting coins error: ", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return 0, writeError("committing survey error: ", err)
	}
	return coins, nil
}

// Locks the user's row so concurrent submissions of the same user are serialized.
// The loser of the lock fails with a serialization error and sees the winner's
// survey once retried.
func checkCooldownLocked(ctx context.Context, tx pgx.Tx, survey *entity.Survey, interval time.Duration) error {
	var id int64
	row := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE;`, survey.UserID)
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errorvalues.ErrUserNotFound
		}
		return writeError("locking user error: ", err)
	}
	last, err := lastSubmittedAt(ctx, tx, survey.UserID)
	if err != nil {
		return err
	}
	if last != nil && survey.SubmittedAt.Sub(*last) < interval {
		return errorvalues.ErrCooldown
	}
	return nil
}

func writeError(prefix string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		// FK violation
		case "23503":
			return errorvalues.ErrUserNotFound
		// serialization failure, kept in the chain for retry
		case "40001":
			return fmt.Errorf("%s%w", prefix, err)
		}
	}
	return errors.New(prefix + err.Error())
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func (sr *SurveysRepository) ListInBox(ctx context.Context, box geo.BoundingBox, since time.Time) ([]entity.SurveySample, error) {
	rows, err := sr.conn.Query(
		ctx,
		`SELECT occupancy_level, submitted_at FROM surveys
		WHERE latitude BETWEEN $1 AND $2 AND longitude BETWEEN $3 AND $4 AND submitted_at >= $5;`,
		box.MinLat,
		box.MaxLat,
		box.MinLon,
		box.MaxLon,
		since,
	)
	if err != nil {
		return nil, errors.New("getting surveys in box error: " + err.Error())
	}
	defer rows.Close()
	result := make([]entity.SurveySample, 0)
	for rows.Next() {
		var (
			level  string
			sample entity.SurveySample
		)
		if err = rows.Scan(&level, &sample.SubmittedAt); err != nil {
			return nil, errors.New("survey row parsing error: " + err.Error())
		}
		sample.OccupancyLevel = entity.OccupancyLabel(level)
		result = append(result, sample)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.New("unexpected survey rows error: " + err.Error())
	}
	return result, nil
}
