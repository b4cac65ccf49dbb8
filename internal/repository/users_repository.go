package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	errorvalues "github.com/limbo/campusflow/internal/error_values"
	"github.com/limbo/campusflow/pkg/entity"
)

type UsersRepository struct {
	conn PgConnection
}

func NewUsersRepo(conn PgConnection) *UsersRepository {
	return &UsersRepository{
		conn: conn,
	}
}

func (ur *UsersRepository) FindByID(ctx context.Context, uid int64) (*entity.User, error) {
	var user entity.User
	row := ur.conn.QueryRow(ctx, `SELECT id, username, coins FROM users WHERE id = $1;`, uid)
	if err := row.Scan(&user.ID, &user.Name, &user.Coins); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorvalues.ErrUserNotFound
		}
		return nil, errors.New("searching user by id error: " + err.Error())
	}
	return &user, nil
}

func (ur *UsersRepository) Ranking(ctx context.Context, limit int) ([]entity.RankingEntry, error) {
	rows, err := ur.conn.Query(ctx, `SELECT id, username, coins FROM users ORDER BY coins DESC LIMIT $1;`, limit)
	if err != nil {
		return nil, errors.New("getting ranking error: " + err.Error())
	}
	defer rows.Close()
	result := make([]entity.RankingEntry, 0, limit)
	for rows.Next() {
		var e entity.RankingEntry
		if err = rows.Scan(&e.ID, &e.Username, &e.Coins); err != nil {
			return nil, errors.New("ranking row parsing error: " + err.Error())
		}
		result = append(result, e)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.New("unexpected ranking rows error: " + err.Error())
	}
	return result, nil
}

func (ur *UsersRepository) FindNearby(ctx context.Context, areaID string, limit int) ([]entity.NearbyUser, error) {
	rows, err := ur.conn.Query(ctx, `SELECT u.id, u.username, MAX(s.submitted_at) AS last_seen
		FROM users u JOIN surveys s ON u.id = s.user_id
		WHERE s.area_id = $1
		GROUP BY u.id, u.username
		ORDER BY last_seen DESC
		LIMIT $2;`, areaID, limit)
	if err != nil {
		return nil, errors.New("getting nearby users error: " + err.Error())
	}
	defer rows.Close()
	result := make([]entity.NearbyUser, 0)
	for rows.Next() {
		var u entity.NearbyUser
		if err = rows.Scan(&u.ID, &u.Name, &u.LastSeen); err != nil {
			return nil, errors.New("nearby user row parsing error: " + err.Error())
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.New("unexpected nearby users rows error: " + err.Error())
	}
	return result, nil
}
