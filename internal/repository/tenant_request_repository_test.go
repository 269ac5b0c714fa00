package repository

import (
	"context"
	"dorm_match_backend/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantRequestRepository_CreateDuplicatePair(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewTenantRequestRepository(db)

	owner := seedUser(t, db, "owner", model.Lister)
	student := seedUser(t, db, "student", model.Student)
	listing := seedListing(t, db, owner, 2)

	require.NoError(t, repo.Create(ctx, &model.TenantRequest{ListingID: listing.ID, RequesterID: student.ID, Status: model.RequestPending}))

	err := repo.Create(ctx, &model.TenantRequest{ListingID: listing.ID, RequesterID: student.ID, Status: model.RequestPending})
	assert.True(t, IsDuplicate(err), "got %v", err)
}

func TestTenantRequestRepository_ReopenOnlyFromTerminalStates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewTenantRequestRepository(db)

	owner := seedUser(t, db, "owner", model.Lister)
	student := seedUser(t, db, "student", model.Student)
	listing := seedListing(t, db, owner, 2)

	req := &model.TenantRequest{ListingID: listing.ID, RequesterID: student.ID, Status: model.RequestPending, Message: "Hi!"}
	require.NoError(t, repo.Create(ctx, req))

	n, err := repo.Reopen(ctx, req.ID, "again", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "pending row must not be reopened")

	n, err = repo.Transition(ctx, req.ID, model.RequestPending, model.RequestRejected, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	now := time.Now()
	require.NoError(t, db.Model(&model.TenantRequest{}).Where("id = ?", req.ID).Update("read_at", now).Error)

	n, err = repo.Reopen(ctx, req.ID, "Please reconsider", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, got.Status)
	assert.Equal(t, "Please reconsider", got.Message)
	assert.Nil(t, got.ReadAt)
}

func TestTenantRequestRepository_MarkReadFiltersByRequester(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewTenantRequestRepository(db)

	owner := seedUser(t, db, "owner", model.Lister)
	s1 := seedUser(t, db, "s1", model.Student)
	s2 := seedUser(t, db, "s2", model.Student)
	listing := seedListing(t, db, owner, 3)

	r1 := &model.TenantRequest{ListingID: listing.ID, RequesterID: s1.ID, Status: model.RequestRejected}
	r2 := &model.TenantRequest{ListingID: listing.ID, RequesterID: s2.ID, Status: model.RequestRejected}
	require.NoError(t, repo.Create(ctx, r1))
	require.NoError(t, repo.Create(ctx, r2))

	n, err := repo.MarkRead(ctx, s1.ID, []string{r1.ID, r2.ID}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got2, err := repo.FindByID(ctx, r2.ID)
	require.NoError(t, err)
	assert.Nil(t, got2.ReadAt)

	n, err = repo.MarkRead(ctx, s1.ID, nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestListingTenantRepository_AddIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewListingTenantRepository(db)

	owner := seedUser(t, db, "owner", model.Lister)
	student := seedUser(t, db, "student", model.Student)
	listing := seedListing(t, db, owner, 2)

	created, err := repo.Add(ctx, listing.ID, student.ID)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Add(ctx, listing.ID, student.ID)
	require.NoError(t, err)
	assert.False(t, created)

	n, err := repo.Count(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	removed, err := repo.Remove(ctx, listing.ID, student.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	removed, err = repo.Remove(ctx, listing.ID, student.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)

	created, err = repo.Add(ctx, listing.ID, student.ID)
	require.NoError(t, err)
	assert.True(t, created, "pair can be re-added after a hard delete")
}

func TestTenantRequestRepository_ProjectionQueries(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewTenantRequestRepository(db)

	owner := seedUser(t, db, "owner", model.Lister)
	s1 := seedUser(t, db, "s1", model.Student)
	s2 := seedUser(t, db, "s2", model.Student)
	open := seedListing(t, db, owner, 3)
	archived := seedListing(t, db, owner, 3)
	require.NoError(t, NewListingRepository(db).UpdateStatus(ctx, archived.ID, model.ListingArchived))
	require.NoError(t, db.Create(&model.StudentProfile{UserID: s1.ID, University: "UT Austin", Major: "CS"}).Error)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rows := []*model.TenantRequest{
		{ListingID: open.ID, RequesterID: s1.ID, Status: model.RequestPending, CreatedAt: base, UpdatedAt: base},
		{ListingID: open.ID, RequesterID: s2.ID, Status: model.RequestRemoved, CreatedAt: base.Add(time.Minute), UpdatedAt: base.Add(time.Minute)},
		{ListingID: archived.ID, RequesterID: s1.ID, Status: model.RequestRejected, CreatedAt: base.Add(2 * time.Minute), UpdatedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range rows {
		require.NoError(t, repo.Create(ctx, r))
	}

	lister, err := repo.ListForLister(ctx, owner.ID, 50)
	require.NoError(t, err)
	require.Len(t, lister, 1)
	assert.Equal(t, rows[0].ID, lister[0].RequestID)
	assert.Equal(t, "s1", lister[0].RequesterName)
	require.NotNil(t, lister[0].RequesterUniversity)
	assert.Equal(t, "UT Austin", *lister[0].RequesterUniversity)

	student, err := repo.ListForRequester(ctx, s1.ID, 50)
	require.NoError(t, err)
	require.Len(t, student, 1)
	assert.Equal(t, model.RequestRejected, student[0].Status)

	pending, err := repo.CountPendingForLister(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	unread, err := repo.CountUnreadForRequester(ctx, s2.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)
}

func TestFeedAudienceLookups(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	requests := NewTenantRequestRepository(db)
	users := NewUserRepository(db)

	lena := seedUser(t, db, "lena", model.Lister)
	otto := seedUser(t, db, "otto", model.Lister)
	sam := seedUser(t, db, "sam", model.Student)
	sue := seedUser(t, db, "sue", model.Student)
	a := seedListing(t, db, lena, 3)
	b := seedListing(t, db, lena, 3)
	c := seedListing(t, db, otto, 3)

	for _, r := range []model.TenantRequest{
		{ListingID: a.ID, RequesterID: sam.ID, Status: model.RequestPending},
		{ListingID: b.ID, RequesterID: sam.ID, Status: model.RequestRemoved},
		{ListingID: a.ID, RequesterID: sue.ID, Status: model.RequestRejected},
		{ListingID: c.ID, RequesterID: sue.ID, Status: model.RequestAccepted},
	} {
		r := r
		require.NoError(t, requests.Create(ctx, &r))
	}

	listers, err := users.ListerIDsForRequester(ctx, sam.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{lena.ID}, listers)

	listers, err = users.ListerIDsForRequester(ctx, sue.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{lena.ID, otto.ID}, listers)

	requesters, err := requests.RequesterIDsForListing(ctx, a.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{sam.ID, sue.ID}, requesters)

	requesters, err = requests.RequesterIDsForListing(ctx, model.GenerateUUID())
	require.NoError(t, err)
	assert.Empty(t, requesters)
}
