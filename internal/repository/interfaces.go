package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/limbo/campusflow/pkg/entity"
	"github.com/limbo/campusflow/pkg/geo"
)

type UsersRepositoryI interface {
	// Looks up user by id
	FindByID(ctx context.Context, uid int64) (*entity.User, error)
	// Lists users ordered by coins, highest first. Order among equal balances is not defined
	Ranking(ctx context.Context, limit int) ([]entity.RankingEntry, error)
	// Lists users who submitted surveys from the given area, most recently seen first
	FindNearby(ctx context.Context, areaID string, limit int) ([]entity.NearbyUser, error)
}

type SurveysRepositoryI interface {
	// Returns time of the user's latest survey or nil if there is none
	GetLastSubmittedAt(ctx context.Context, uid int64) (*time.Time, error)
	// Atomically stores the survey, records a habit visit and credits one coin.
	// Returns the new coin balance. A non-nil guard re-checks the cooldown under a user row lock
	Record(ctx context.Context, survey *entity.Survey, guard *CooldownGuard) (int, error)
	// Provides surveys inside the box submitted at or after since
	ListInBox(ctx context.Context, box geo.BoundingBox, since time.Time) ([]entity.SurveySample, error)
}

type HabitsRepositoryI interface {
	// Returns user's most visited areas
	TopAreas(ctx context.Context, uid int64, limit int) ([]entity.AreaVisits, error)
}

// CooldownGuard closes the race between two concurrent submissions of one user.
type CooldownGuard struct {
	Interval time.Duration
}

type DBConfig interface {
	ConnString() string
}

type PgConnection interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGCfg struct {
	Address  string
	Username string
	Password string
	DB       string
}

func (pgcfg *PGCfg) ConnString() string {
	return fmt.Sprintf("postgresql://%s:%s@%s/%s", pgcfg.Username, pgcfg.Password, pgcfg.Address, pgcfg.DB)
}
