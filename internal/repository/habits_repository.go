package repository

import (
	"context"
	"errors"

	"github.com/limbo/campusflow/pkg/entity"
)

type HabitsRepository struct {
	conn PgConnection
}

func NewHabitsRepo(conn PgConnection) *HabitsRepository {
	return &HabitsRepository{
		conn: conn,
	}
}

func (hr *HabitsRepository) TopAreas(ctx context.Context, uid int64, limit int) ([]entity.AreaVisits, error) {
	rows, err := hr.conn.Query(ctx, `SELECT area_id, COUNT(*) AS visit_count FROM user_habits
		WHERE user_id = $1 GROUP BY area_id ORDER BY visit_count DESC LIMIT $2;`, uid, limit)
	if err != nil {
		return nil, errors.New("getting top areas error: " + err.Error())
	}
	defer rows.Close()
	habits := make([]entity.AreaVisits, 0, limit)
	for rows.Next() {
		var h entity.AreaVisits
		if err = rows.Scan(&h.AreaID, &h.VisitCount); err != nil {
			return nil, errors.New("unmarshalling area visits error: " + err.Error())
		}
		habits = append(habits, h)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.New("unexpected error after scanning: " + err.Error())
	}
	return habits, nil
}
