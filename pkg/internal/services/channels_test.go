package services

import (
	"context"
	"errors"
	"testing"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestChannelFlags(t *testing.T) {
	tests := []struct {
		kind       models.ChannelKind
		private    bool
		wantPublic bool
		wantPriv   bool
		wantErr    bool
	}{
		{kind: models.ChannelKindDirect, wantPriv: true},
		{kind: models.ChannelKindGroup, wantPublic: true},
		{kind: models.ChannelKindGroup, private: true, wantPriv: true},
		{kind: models.ChannelKindPublic, wantPublic: true},
		{kind: models.ChannelKindPublic, private: true, wantErr: true},
		{kind: models.ChannelKindPrivate, wantPriv: true},
		{kind: "broadcast", wantErr: true},
	}

	for _, tt := range tests {
		isPublic, isPrivate, err := ChannelFlags(tt.kind, tt.private)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalid, tt.kind)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.wantPublic, isPublic, tt.kind)
		assert.Equal(t, tt.wantPriv, isPrivate, tt.kind)
		assert.False(t, isPublic && isPrivate)
	}
}

func TestCreateChannelSeedsMembers(t *testing.T) {
	db := testutil.SetupDatabase(t)
	testutil.SetupFeed(t)
	testutil.SeedProfiles(t, db, 1, 2, 3)
	ctx := context.Background()

	channel, err := CreateChannel(ctx, 1, CreateChannelRequest{
		Name:      "general",
		Kind:      models.ChannelKindGroup,
		MemberIDs: []uint{2, 3, 3, 1},
	})
	require.NoError(t, err)
	assert.True(t, channel.IsPublic)

	owner, err := GetChannelMember(ctx, channel.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.MemberRoleOwner, owner.Role)

	count, err := CountChannelMember(ctx, channel.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	member, err := GetChannelMember(ctx, channel.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, models.MemberRoleMember, member.Role)
}

func TestCreateChannelReportsSeedFailure(t *testing.T) {
	db := testutil.SetupDatabase(t)
	testutil.SetupFeed(t)
	testutil.SeedProfiles(t, db, 1, 2)
	ctx := context.Background()

	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:reject_member", func(tx *gorm.DB) {
		if member, ok := tx.Statement.Dest.(*models.ChannelMember); ok && member.AccountID == 99 {
			_ = tx.AddError(errors.New("member rejected"))
		}
	}))

	channel, err := CreateChannel(ctx, 1, CreateChannelRequest{
		Name:      "partial",
		Kind:      models.ChannelKindPrivate,
		MemberIDs: []uint{2, 99},
	})

	var seedErr *SeedError
	require.ErrorAs(t, err, &seedErr)
	assert.Equal(t, []uint{99}, seedErr.Failed)

	// The channel itself survives
	require.NotZero(t, channel.ID)
	stored, err := GetChannel(ctx, channel.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPrivate)

	count, err := CountChannelMember(ctx, channel.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestCreateChannelRequiresName(t *testing.T) {
	testutil.SetupDatabase(t)
	testutil.SetupFeed(t)

	_, err := CreateChannel(context.Background(), 1, CreateChannelRequest{Kind: models.ChannelKindGroup})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = CreateChannel(context.Background(), 0, CreateChannelRequest{Name: "x", Kind: models.ChannelKindGroup})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestDirectChannelDisplayAndReuse(t *testing.T) {
	db := testutil.SetupDatabase(t)
	testutil.SetupFeed(t)
	testutil.SeedProfiles(t, db, 1, 2)
	ctx := context.Background()

	channel, err := CreateChannel(ctx, 1, CreateChannelRequest{
		Name:      "ignored",
		Kind:      models.ChannelKindDirect,
		MemberIDs: []uint{2},
	})
	require.NoError(t, err)
	assert.True(t, channel.IsPrivate)

	again, err := CreateChannel(ctx, 2, CreateChannelRequest{
		Kind:      models.ChannelKindDirect,
		MemberIDs: []uint{1},
	})
	require.NoError(t, err)
	assert.Equal(t, channel.ID, again.ID)

	view, err := SelectChannel(ctx, channel.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "User 2", view.Display.Name)
	require.NotNil(t, view.Membership)
	assert.Equal(t, models.MemberRoleOwner, view.Membership.Role)

	views, err := ListChannel(ctx, 2)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "User 1", views[0].Display.Name)
}

func TestResolveDisplayIdentity(t *testing.T) {
	group := models.Channel{BaseModel: models.BaseModel{ID: 1}, Name: "team", Kind: models.ChannelKindGroup}
	direct := models.Channel{BaseModel: models.BaseModel{ID: 2}, Name: "stored", Kind: models.ChannelKindDirect}
	members := []models.ChannelMember{
		{ChannelID: 2, AccountID: 10},
		{ChannelID: 2, AccountID: 20},
	}
	profiles := map[uint]models.Profile{
		20: {ID: 20, Name: "bob", Nick: "Bob", Avatar: "bob.png"},
	}

	assert.Equal(t, "team", ResolveDisplayIdentity(group, members, profiles, 10).Name)

	display := ResolveDisplayIdentity(direct, members, profiles, 10)
	assert.Equal(t, "Bob", display.Name)
	assert.Equal(t, "bob.png", display.Avatar)

	// Partner profile unknown, fall back to the stored name
	assert.Equal(t, "stored", ResolveDisplayIdentity(direct, members, profiles, 20).Name)
}
