package services

import (
	"context"
	"fmt"
	"time"

	localCache "git.solsynth.dev/hypernet/chatcore/pkg/internal/cache"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/database"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/marshaler"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

func GetProfileCacheKey(id uint) string {
	return fmt.Sprintf("profile#%d", id)
}

func GetProfile(ctx context.Context, id uint) (models.Profile, error) {
	var marshal *marshaler.Marshaler
	if localCache.S != nil {
		marshal = marshaler.New(cache.New[any](localCache.S))
		if val, err := marshal.Get(ctx, GetProfileCacheKey(id), new(models.Profile)); err == nil {
			return *val.(*models.Profile), nil
		}
	}

	var profile models.Profile
	if err := database.C.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return profile, wrapLookup("profile", err)
	}

	if marshal != nil {
		_ = marshal.Set(
			ctx,
			GetProfileCacheKey(id),
			profile,
			store.WithExpiration(10*time.Minute),
			store.WithTags([]string{"profile", GetProfileCacheKey(id)}),
		)
	}

	return profile, nil
}

// ListProfiles loads every requested profile in one query.
func ListProfiles(ctx context.Context, ids []uint) (map[uint]models.Profile, error) {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return map[uint]models.Profile{}, nil
	}

	var profiles []models.Profile
	if err := database.C.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("unable to get profiles: %w", err)
	}

	return lo.KeyBy(profiles, func(item models.Profile) uint {
		return item.ID
	}), nil
}

// LinkProfile stores the identity presented by a verified access token.
func LinkProfile(ctx context.Context, profile models.Profile) (models.Profile, error) {
	if err := database.C.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "nick", "avatar", "updated_at"}),
	}).Create(&profile).Error; err != nil {
		return profile, fmt.Errorf("unable to link profile: %w", err)
	}

	if localCache.S != nil {
		marshal := marshaler.New(cache.New[any](localCache.S))
		_ = marshal.Invalidate(ctx, store.WithInvalidateTags([]string{GetProfileCacheKey(profile.ID)}))
	}

	return profile, nil
}
