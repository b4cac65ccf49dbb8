package repository_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	errorvalues "github.com/limbo/campusflow/internal/error_values"
	"github.com/limbo/campusflow/internal/repository"
	"github.com/limbo/campusflow/pkg/entity"
	"github.com/limbo/campusflow/pkg/geo"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	insertSurveyQuery = regexp.QuoteMeta(`INSERT INTO surveys (user_id, latitude, longitude, occupancy_level, area_id, submitted_at) VALUES ($1, $2, $3, $4, $5, $6);`)
	insertHabitQuery  = regexp.QuoteMeta(`INSERT INTO user_habits (user_id, area_id) VALUES ($1, $2);`)
	creditQuery       = regexp.QuoteMeta(`UPDATE users SET coins = coins + 1 WHERE id = $1 RETURNING coins;`)
	lastSurveyQuery   = regexp.QuoteMeta(`SELECT submitted_at FROM surveys WHERE user_id = $1 ORDER BY submitted_at DESC LIMIT 1;`)
	lockUserQuery     = regexp.QuoteMeta(`SELECT id FROM users WHERE id = $1 FOR UPDATE;`)
	serializable      = pgx.TxOptions{IsoLevel: pgx.Serializable}
)

func testSurvey() *entity.Survey {
	return &entity.Survey{
		UserID:         7,
		Latitude:       1.2966,
		Longitude:      103.7764,
		OccupancyLevel: entity.LabelModerate,
		AreaID:         geo.AreaID(1.2966, 103.7764),
		SubmittedAt:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func expectInsertSurvey(mock pgxmock.PgxPoolIface, s *entity.Survey) *pgxmock.ExpectedExec {
	return mock.ExpectExec(insertSurveyQuery).
		WithArgs(s.UserID, s.Latitude, s.Longitude, string(s.OccupancyLevel), s.AreaID, s.SubmittedAt)
}

func TestRecordSurvey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := repository.NewSurveysRepo(mock)
	ctx := context.Background()
	survey := testSurvey()

	t.Run("all three writes committed", func(t *testing.T) {
		mock.ExpectBeginTx(serializable)
		expectInsertSurvey(mock, survey).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(insertHabitQuery).WithArgs(survey.UserID, "1.30,103.78").WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectQuery(creditQuery).WithArgs(survey.UserID).WillReturnRows(pgxmock.NewRows([]string{"coins"}).AddRow(5))
		mock.ExpectCommit()
		coins, err := repo.Record(ctx, survey, nil)
		assert.NoError(t, err)
		assert.Equal(t, 5, coins)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("habit insert failure rolls back survey", func(t *testing.T) {
		mock.ExpectBeginTx(serializable)
		expectInsertSurvey(mock, survey).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(insertHabitQuery).WithArgs(survey.UserID, survey.AreaID).WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()
		_, err := repo.Record(ctx, survey, nil)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("credit failure rolls back survey and habit", func(t *testing.T) {
		mock.ExpectBeginTx(serializable)
		expectInsertSurvey(mock, survey).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(insertHabitQuery).WithArgs(survey.UserID, survey.AreaID).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectQuery(creditQuery).WithArgs(survey.UserID).WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()
		_, err := repo.Record(ctx, survey, nil)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("unknown user on insert", func(t *testing.T) {
		mock.ExpectBeginTx(serializable)
		expectInsertSurvey(mock, survey).WillReturnError(&pgconn.PgError{Code: "23503"})
		mock.ExpectRollback()
		_, err := repo.Record(ctx, survey, nil)
		assert.ErrorIs(t, err, errorvalues.ErrUserNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("unknown user on credit", func(t *testing.T) {
		mock.ExpectBeginTx(serializable)
		expectInsertSurvey(mock, survey).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(insertHabitQuery).WithArgs(survey.UserID, survey.AreaID).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectQuery(creditQuery).WithArgs(survey.UserID).WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()
		_, err := repo.Record(ctx, survey, nil)
		assert.ErrorIs(t, err, errorvalues.ErrUserNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("serialization failure is retried", func(t *testing.T) {
		mock.ExpectBeginTx(serializable)
		expectInsertSurvey(mock, survey).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(insertHabitQuery).WithArgs(survey.UserID, survey.AreaID).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectQuery(creditQuery).WithArgs(survey.UserID).WillReturnError(&pgconn.PgError{Code: "40001"})
		mock.ExpectRollback()
		mock.ExpectBeginTx(serializable)
		expectInsertSurvey(mock, survey).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(insertHabitQuery).WithArgs(survey.UserID, survey.AreaID).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectQuery(creditQuery).WithArgs(survey.UserID).WillReturnRows(pgxmock.NewRows([]string{"coins"}).AddRow(6))
		mock.ExpectCommit()
		coins, err := repo.Record(ctx, survey, nil)
		assert.NoError(t, err)
		assert.Equal(t, 6, coins)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("serialization failures give up after retries", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			mock.ExpectBeginTx(serializable)
			expectInsertSurvey(mock, survey).WillReturnError(&pgconn.PgError{Code: "40001"})
			mock.ExpectRollback()
		}
		_, err := repo.Record(ctx, survey, nil)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, errorvalues.ErrCooldown)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("begin failure", func(t *testing.T) {
		mock.ExpectBeginTx(serializable).WillReturnError(errors.New("pool closed"))
		_, err := repo.Record(ctx, survey, nil)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("nil survey", func(t *testing.T) {
		_, err := repo.Record(ctx, nil, nil)
		assert.Error(t, err)
	})
}

func TestRecordSurveyWithGuard(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := repository.NewSurveysRepo(mock)
	ctx := context.Background()
	survey := testSurvey()
	guard := &repository.CooldownGuard{Interval: entity.SurveyCooldown}

	t.Run("no previous survey", func(t *testing.T) {
		mock.ExpectBeginTx(serializable)
		mock.ExpectQuery(lockUserQuery).WithArgs(survey.UserID).WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(survey.UserID))
		mock.ExpectQuery(lastSurveyQuery).WithArgs(survey.UserID).WillReturnError(pgx.ErrNoRows)
		expectInsertSurvey(mock, survey).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(insertHabitQuery).WithArgs(survey.UserID, survey.AreaID).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectQuery(creditQuery).WithArgs(survey.UserID).WillReturnRows(pgxmock.NewRows([]string{"coins"}).AddRow(1))
		mock.ExpectCommit()
		coins, err := repo.Record(ctx, survey, guard)
		assert.NoError(t, err)
		assert.Equal(t, 1, coins)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("concurrent submission already committed", func(t *testing.T) {
		mock.ExpectBeginTx(serializable)
		mock.ExpectQuery(lockUserQuery).WithArgs(survey.UserID).WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(survey.UserID))
		mock.ExpectQuery(lastSurveyQuery).WithArgs(survey.UserID).
			WillReturnRows(pgxmock.NewRows([]string{"submitted_at"}).AddRow(survey.SubmittedAt.Add(-time.Second)))
		mock.ExpectRollback()
		_, err := repo.Record(ctx, survey, guard)
		assert.ErrorIs(t, err, errorvalues.ErrCooldown)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("losing the lock race reports cooldown", func(t *testing.T) {
		mock.ExpectBeginTx(serializable)
		mock.ExpectQuery(lockUserQuery).WithArgs(survey.UserID).WillReturnError(&pgconn.PgError{Code: "40001"})
		mock.ExpectRollback()
		// the retry sees the winner's committed survey
		mock.ExpectBeginTx(serializable)
		mock.ExpectQuery(lockUserQuery).WithArgs(survey.UserID).WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(survey.UserID))
		mock.ExpectQuery(lastSurveyQuery).WithArgs(survey.UserID).
			WillReturnRows(pgxmock.NewRows([]string{"submitted_at"}).AddRow(survey.SubmittedAt))
		mock.ExpectRollback()
		_, err := repo.Record(ctx, survey, guard)
		assert.ErrorIs(t, err, errorvalues.ErrCooldown)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("user missing", func(t *testing.T) {
		mock.ExpectBeginTx(serializable)
		mock.ExpectQuery(lockUserQuery).WithArgs(survey.UserID).WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()
		_, err := repo.Record(ctx, survey, guard)
		assert.ErrorIs(t, err, errorvalues.ErrUserNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetLastSubmittedAt(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := repository.NewSurveysRepo(mock)
	ctx := context.Background()
	submitted := time.Date(2025, 3, 1, 11, 45, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(lastSurveyQuery).WithArgs(int64(7)).
			WillReturnRows(pgxmock.NewRows([]string{"submitted_at"}).AddRow(submitted))
		last, err := repo.GetLastSubmittedAt(ctx, 7)
		assert.NoError(t, err)
		if assert.NotNil(t, last) {
			assert.Equal(t, submitted, *last)
		}
	})
	t.Run("never submitted", func(t *testing.T) {
		mock.ExpectQuery(lastSurveyQuery).WithArgs(int64(7)).WillReturnError(pgx.ErrNoRows)
		last, err := repo.GetLastSubmittedAt(ctx, 7)
		assert.NoError(t, err)
		assert.Nil(t, last)
	})
	t.Run("db error", func(t *testing.T) {
		mock.ExpectQuery(lastSurveyQuery).WithArgs(int64(7)).WillReturnError(errors.New("db error"))
		_, err := repo.GetLastSubmittedAt(ctx, 7)
		assert.Error(t, err)
	})
}

func TestListInBox(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := repository.NewSurveysRepo(mock)
	ctx := context.Background()
	box := geo.NewBoundingBox(1.3, 103.8, 0.01)
	since := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	query := regexp.QuoteMeta(`SELECT occupancy_level, submitted_at FROM surveys
		WHERE latitude BETWEEN $1 AND $2 AND longitude BETWEEN $3 AND $4 AND submitted_at >= $5;`)

	t.Run("rows", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(box.MinLat, box.MaxLat, box.MinLon, box.MaxLon, since).
			WillReturnRows(pgxmock.NewRows([]string{"occupancy_level", "submitted_at"}).
				AddRow("Crowded (>50%)", since.Add(time.Hour)).
				AddRow("Sparse (>0%)", since.Add(2*time.Hour)))
		samples, err := repo.ListInBox(ctx, box, since)
		assert.NoError(t, err)
		assert.Equal(t, []entity.SurveySample{
			{OccupancyLevel: entity.LabelCrowded, SubmittedAt: since.Add(time.Hour)},
			{OccupancyLevel: entity.LabelSparse, SubmittedAt: since.Add(2 * time.Hour)},
		}, samples)
	})
	t.Run("empty", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(box.MinLat, box.MaxLat, box.MinLon, box.MaxLon, since).
			WillReturnRows(pgxmock.NewRows([]string{"occupancy_level", "submitted_at"}))
		samples, err := repo.ListInBox(ctx, box, since)
		assert.NoError(t, err)
		assert.Empty(t, samples)
	})
	t.Run("db error", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(box.MinLat, box.MaxLat, box.MinLon, box.MaxLon, since).
			WillReturnError(errors.New("db error"))
		_, err := repo.ListInBox(ctx, box, since)
		assert.Error(t, err)
	})
}
