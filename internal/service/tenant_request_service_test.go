package service

import (
	"context"
	"dorm_match_backend/internal/model"
	"dorm_match_backend/internal/util"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantRequestLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lister := env.user(t, "lena", model.Lister)
	student := env.user(t, "sam", model.Student)
	listing := env.listing(t, lister, 3)
	svc := env.requestSvc

	// 1. first submission creates a pending row
	r1, err := svc.Submit(ctx, listing.ID, student.ID, "Hi!")
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, r1.Status)
	assert.Equal(t, "Hi!", r1.Message)

	// 2. a second submission while pending is refused
	_, err = svc.Submit(ctx, listing.ID, student.ID, "Hello again")
	require.ErrorIs(t, err, util.ErrDuplicateRequest)
	assert.Equal(t, "You already have a pending request for this listing", err.Error())

	// 3. lister rejects
	rejected, err := svc.Reject(ctx, r1.ID, lister.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestRejected, rejected.Status)

	// 4. resubmission reopens the same row
	r2, err := svc.Submit(ctx, listing.ID, student.ID, "Please reconsider")
	require.NoError(t, err)
	assert.Equal(t, r1.ID, r2.ID)
	assert.Equal(t, model.RequestPending, r2.Status)
	assert.Equal(t, "Please reconsider", r2.Message)
	assert.Nil(t, r2.ReadAt)
	assert.Equal(t, int64(1), env.countRequests(t, listing.ID, student.ID))

	// 5. accept creates the tenancy
	accepted, err := svc.Accept(ctx, r1.ID, lister.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestAccepted, accepted.Status)
	ok, err := env.tenants.Exists(ctx, listing.ID, student.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// 6. removal deletes the tenancy and flips the request
	require.NoError(t, svc.RemoveTenant(ctx, listing.ID, student.ID, lister.ID))
	row := env.reload(t, r1.ID)
	assert.Equal(t, model.RequestRemoved, row.Status)
	assert.Nil(t, row.ReadAt)
	ok, err = env.tenants.Exists(ctx, listing.ID, student.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// 7. the student sees the removal as unread until marked read
	feed, err := env.notifySvc.StudentNotifications(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, r1.ID, feed.Items[0].RequestID)
	assert.Equal(t, model.RequestRemoved, feed.Items[0].Status)
	assert.True(t, feed.Items[0].Unread)
	assert.Equal(t, []string{r1.ID}, feed.UnreadIDs)

	n, err := svc.MarkRequesterNotificationsRead(ctx, []string{r1.ID}, student.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	feed, err = env.notifySvc.StudentNotifications(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	assert.False(t, feed.Items[0].Unread)
	assert.NotNil(t, feed.Items[0].ReadAt)
	assert.Zero(t, feed.UnreadCount)
}

func TestSubmit_SingleOccupantListingAlwaysRefuses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lister := env.user(t, "lena", model.Lister)
	student := env.user(t, "sam", model.Student)
	listing := env.listing(t, lister, 1)

	cases := []struct {
		name        string
		requesterID uint
		message     string
	}{
		{"student", student.ID, "Hi!"},
		{"owner", lister.ID, ""},
		{"long message", student.ID, strings.Repeat("x", model.MaxRequestMessageLen+1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.requestSvc.Submit(ctx, listing.ID, tc.requesterID, tc.message)
			require.ErrorIs(t, err, util.ErrNoTenantRequests)
			assert.Equal(t, "This listing does not accept tenant requests", err.Error())
		})
	}

	require.NoError(t, env.listings.UpdateStatus(ctx, listing.ID, model.ListingArchived))
	_, err := env.requestSvc.Submit(ctx, listing.ID, student.ID, "")
	require.ErrorIs(t, err, util.ErrNoTenantRequests)
	assert.Zero(t, env.countRequests(t, listing.ID, student.ID))
}

func TestSubmit_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lister := env.user(t, "lena", model.Lister)
	student := env.user(t, "sam", model.Student)
	listing := env.listing(t, lister, 2)

	_, err := env.requestSvc.Submit(ctx, listing.ID, 0, "")
	assert.ErrorIs(t, err, util.ErrNotAuthenticated)

	_, err = env.requestSvc.Submit(ctx, "not-a-uuid", student.ID, "")
	assert.ErrorIs(t, err, util.ErrInvalidData)

	_, err = env.requestSvc.Submit(ctx, model.GenerateUUID(), student.ID, "")
	assert.ErrorIs(t, err, util.ErrListingNotFound)

	_, err = env.requestSvc.Submit(ctx, listing.ID, student.ID, strings.Repeat("é", model.MaxRequestMessageLen+1))
	assert.ErrorIs(t, err, util.ErrInvalidData)

	_, err = env.requestSvc.Submit(ctx, listing.ID, lister.ID, "")
	assert.ErrorIs(t, err, util.ErrOwnListing)

	// exactly the limit, counted in characters
	req, err := env.requestSvc.Submit(ctx, listing.ID, student.ID, strings.Repeat("é", model.MaxRequestMessageLen))
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, req.Status)

	other := env.user(t, "olga", model.Student)
	require.NoError(t, env.listings.UpdateStatus(ctx, listing.ID, model.ListingArchived))
	_, err = env.requestSvc.Submit(ctx, listing.ID, other.ID, "")
	assert.ErrorIs(t, err, util.ErrListingArchived)
}

func TestSubmit_ConcurrentSubmissionsYieldOnePending(t *testing.T) {
	env := newTestEnv(t)
	lister := env.user(t, "lena", model.Lister)
	student := env.user(t, "sam", model.Student)
	listing := env.listing(t, lister, 4)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.requestSvc.Submit(context.Background(), listing.ID, student.ID, "me too")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Len(t, failures, workers-1)
	for _, err := range failures {
		assert.Equal(t, util.MsgDuplicateRequest, err.Error())
	}
	assert.Equal(t, int64(1), env.countRequests(t, listing.ID, student.ID))
}

func TestSubmit_WhileAcceptedIsRefused(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lister := env.user(t, "lena", model.Lister)
	student := env.user(t, "sam", model.Student)
	listing := env.listing(t, lister, 2)

	req, err := env.requestSvc.Submit(ctx, listing.ID, student.ID, "")
	require.NoError(t, err)
	_, err = env.requestSvc.Accept(ctx, req.ID, lister.ID)
	require.NoError(t, err)

	_, err = env.requestSvc.Submit(ctx, listing.ID, student.ID, "again")
	assert.ErrorIs(t, err, util.ErrAlreadyTenant)
	assert.Equal(t, model.RequestAccepted, env.reload(t, req.ID).Status)
}

func TestSubmit_AfterRemovalReopensRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lister := env.user(t, "lena", model.Lister)
	student := env.user(t, "sam", model.Student)
	listing := env.listing(t, lister, 2)

	req, err := env.requestSvc.Submit(ctx, listing.ID, student.ID, "first")
	require.NoError(t, err)
	_, err = env.requestSvc.Accept(ctx, req.ID, lister.ID)
	require.NoError(t, err)
	require.NoError(t, env.requestSvc.RemoveTenant(ctx, listing.ID, student.ID, lister.ID))
	_, err = env.requestSvc.MarkRequesterNotificationsRead(ctx, []string{req.ID}, student.ID)
	require.NoError(t, err)
	require.NotNil(t, env.reload(t, req.ID).ReadAt)

	again, err := env.requestSvc.Submit(ctx, listing.ID, student.ID, "second")
	require.NoError(t, err)
	assert.Equal(t, req.ID, again.ID)

	row := env.reload(t, req.ID)
	assert.Equal(t, model.RequestPending, row.Status)
	assert.Equal(t, "second", row.Message)
	assert.Nil(t, row.ReadAt)
	assert.Equal(t, req.CreatedAt.Unix(), row.CreatedAt.Unix())
	assert.Equal(t, int64(1), env.countRequests(t, listing.ID, student.ID))
}

func TestAccept_NeverDuplicatesTenancy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lister := env.user(t, "lena", model.Lister)
	student := env.user(t, "sam", model.Student)
	listing := env.listing(t, lister, 2)

	req, err := env.requestSvc.Submit(ctx, listing.ID, student.ID, "")
	require.NoError(t, err)

	// a tenancy written out of band must not block or duplicate on accept
	created, err := env.tenants.Add(ctx, listing.ID, student.ID)
	require.NoError(t, err)
	require.True(t, created)

	_, err = env.requestSvc.Accept(ctx, req.ID, lister.ID)
	require.NoError(t, err)
	_, err = env.requestSvc.Accept(ctx, req.ID, lister.ID)
	assert.ErrorIs(t, err, util.ErrRequestHandled)

	n, err := env.tenants.Count(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAcceptReject_Authorization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lister := env.user(t, "lena", model.Lister)
	intruder := env.user(t, "ivan", model.Lister)
	student := env.user(t, "sam", model.Student)
	listing := env.listing(t, lister, 2)

	req, err := env.requestSvc.Submit(ctx, listing.ID, student.ID, "")
	require.NoError(t, err)

	_, err = env.requestSvc.Accept(ctx, req.ID, intruder.ID)
	assert.ErrorIs(t, err, util.ErrUnauthorized)
	_, err = env.requestSvc.Reject(ctx, req.ID, student.ID)
	assert.ErrorIs(t, err, util.ErrUnauthorized)
	_, err = env.requestSvc.Accept(ctx, req.ID, 0)
	assert.ErrorIs(t, err, util.ErrNotAuthenticated)
	_, err = env.requestSvc.Accept(ctx, "nope", lister.ID)
	assert.ErrorIs(t, err, util.ErrInvalidData)
	_, err = env.requestSvc.Reject(ctx, model.GenerateUUID(), lister.ID)
	assert.ErrorIs(t, err, util.ErrRequestNotFound)

	assert.Equal(t, model.RequestPending, env.reload(t, req.ID).Status)
	ok, err := env.tenants.Exists(ctx, listing.ID, student.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = env.requestSvc.Reject(ctx, req.ID, lister.ID)
	require.NoError(t, err)
	_, err = env.requestSvc.Accept(ctx, req.ID, lister.ID)
	assert.ErrorIs(t, err, util.ErrRequestHandled)
	_, err = env.requestSvc.Reject(ctx, req.ID, lister.ID)
	assert.ErrorIs(t, err, util.ErrRequestHandled)
}

func TestRemoveTenant_MissingRowsAreNotErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lister := env.user(t, "lena", model.Lister)
	student := env.user(t, "sam", model.Student)
	listing := env.listing(t, lister, 2)

	require.NoError(t, env.requestSvc.RemoveTenant(ctx, listing.ID, student.ID, lister.ID))

	// tenancy without a request row
	_, err := env.tenants.Add(ctx, listing.ID, student.ID)
	require.NoError(t, err)
	require.NoError(t, env.requestSvc.RemoveTenant(ctx, listing.ID, student.ID, lister.ID))
	n, err := env.tenants.Count(ctx, listing.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	// a pending request is left alone
	req, err := env.requestSvc.Submit(ctx, listing.ID, student.ID, "")
	require.NoError(t, err)
	require.NoError(t, env.requestSvc.RemoveTenant(ctx, listing.ID, student.ID, lister.ID))
	assert.Equal(t, model.RequestPending, env.reload(t, req.ID).Status)
}

func TestRemoveTenant_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lister := env.user(t, "lena", model.Lister)
	student := env.user(t, "sam", model.Student)
	listing := env.listing(t, lister, 2)

	assert.ErrorIs(t, env.requestSvc.RemoveTenant(ctx, listing.ID, student.ID, 0), util.ErrNotAuthenticated)
	assert.ErrorIs(t, env.requestSvc.RemoveTenant(ctx, "x", student.ID, lister.ID), util.ErrInvalidData)
	assert.ErrorIs(t, env.requestSvc.RemoveTenant(ctx, listing.ID, 0, lister.ID), util.ErrInvalidData)
	assert.ErrorIs(t, env.requestSvc.RemoveTenant(ctx, model.GenerateUUID(), student.ID, lister.ID), util.ErrListingNotFound)
	assert.ErrorIs(t, env.requestSvc.RemoveTenant(ctx, listing.ID, student.ID, student.ID), util.ErrUnauthorized)
}

func TestMarkRead_OnlyTouchesCallerRows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lister := env.user(t, "lena", model.Lister)
	s1 := env.user(t, "sam", model.Student)
	s2 := env.user(t, "sue", model.Student)
	listing := env.listing(t, lister, 3)

	r1, err := env.requestSvc.Submit(ctx, listing.ID, s1.ID, "")
	require.NoError(t, err)
	r2, err := env.requestSvc.Submit(ctx, listing.ID, s2.ID, "")
	require.NoError(t, err)
	_, err = env.requestSvc.Reject(ctx, r1.ID, lister.ID)
	require.NoError(t, err)
	_, err = env.requestSvc.Reject(ctx, r2.ID, lister.ID)
	require.NoError(t, err)

	n, err := env.requestSvc.MarkRequesterNotificationsRead(ctx, []string{r1.ID, r2.ID}, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NotNil(t, env.reload(t, r1.ID).ReadAt)
	assert.Nil(t, env.reload(t, r2.ID).ReadAt)

	// already read rows are not stamped again
	n, err = env.requestSvc.MarkRequesterNotificationsRead(ctx, []string{r1.ID}, s1.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = env.requestSvc.MarkRequesterNotificationsRead(ctx, nil, s1.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = env.requestSvc.MarkRequesterNotificationsRead(ctx, []string{"bad"}, s1.ID)
	assert.ErrorIs(t, err, util.ErrInvalidData)
	_, err = env.requestSvc.MarkRequesterNotificationsRead(ctx, []string{r1.ID}, 0)
	assert.ErrorIs(t, err, util.ErrNotAuthenticated)
}

func TestMarkRead_RejectsMoreIDsThanTheFeedShows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lister := env.user(t, "lena", model.Lister)
	student := env.user(t, "sam", model.Student)
	listing := env.listing(t, lister, 2)

	req, err := env.requestSvc.Submit(ctx, listing.ID, student.ID, "")
	require.NoError(t, err)
	_, err = env.requestSvc.Reject(ctx, req.ID, lister.ID)
	require.NoError(t, err)

	ids := make([]string, 0, util.NotificationLimit+1)
	ids = append(ids, req.ID)
	for len(ids) < util.NotificationLimit {
		ids = append(ids, model.GenerateUUID())
	}

	n, err := env.requestSvc.MarkRequesterNotificationsRead(ctx, ids, student.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ids = append(ids, model.GenerateUUID())
	_, err = env.requestSvc.MarkRequesterNotificationsRead(ctx, ids, student.ID)
	assert.ErrorIs(t, err, util.ErrInvalidData)
}
