// FilePath: internal/repository/postgres/postgres.achievement.go
package postgres

import (
	"context"

	"github.com/hydrozen/leakwatch/internal/database"
	"github.com/hydrozen/leakwatch/internal/errors"
	"github.com/hydrozen/leakwatch/internal/models"
)

type AchievementRepo struct {
	PostgresBaseRepo
}

func NewAchievementRepository(db database.DB) *AchievementRepo {
	return &AchievementRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

func (r *AchievementRepo) Catalog(ctx context.Context) ([]models.Achievement, error) {
	catalog := []models.Achievement{}
	query := `SELECT id, name, description, points_required FROM achievements ORDER BY points_required ASC, id ASC`
	if err := r.db.GetDB().SelectContext(ctx, &catalog, query); err != nil {
		return nil, errors.NewDatabaseError("failed to load achievement catalog", err)
	}
	return catalog, nil
}

func (r *AchievementRepo) EarnedIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	var ids []string
	query := `SELECT achievement_id FROM user_achievements WHERE user_id = $1`
	if err := r.db.GetDB().SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, errors.NewDatabaseError("failed to load earned achievements", err)
	}
	earned := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		earned[id] = struct{}{}
	}
	return earned, nil
}

// Award relies on UNIQUE (user_id, achievement_id) to make a second award of
// the same achievement a duplicate error.
func (r *AchievementRepo) Award(ctx context.Context, ua *models.UserAchievement) error {
	query := `
		INSERT INTO user_achievements (id, user_id, achievement_id, achieved_at)
		VALUES (:id, :user_id, :achievement_id, :achieved_at)`

	if _, err := r.db.GetDB().NamedExecContext(ctx, query, ua); err != nil {
		switch {
		case isUniqueViolation(err):
			return errors.NewDuplicateError("achievement already earned", err)
		case isForeignKeyViolation(err):
			return errors.NewNotFoundError("achievement not found", err)
		}
		return errors.NewDatabaseError("failed to award achievement", err)
	}
	return nil
}

func (r *AchievementRepo) ListByUser(ctx context.Context, userID string) ([]*models.EarnedAchievement, error) {
	earned := []*models.EarnedAchievement{}
	query := `
		SELECT ua.id, ua.user_id, ua.achievement_id, ua.achieved_at,
			a.name, a.description, a.points_required
		FROM user_achievements ua
		JOIN achievements a ON a.id = ua.achievement_id
		WHERE ua.user_id = $1
		ORDER BY ua.achieved_at DESC`

	if err := r.db.GetDB().SelectContext(ctx, &earned, query, userID); err != nil {
		return nil, errors.NewDatabaseError("failed to list user achievements", err)
	}
	return earned, nil
}
