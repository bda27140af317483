package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"food-share-server/models"
)

func TestClaimService_CreateClaimsAvailableListing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	donor := env.user(t, models.RoleDonor, models.Location{})
	receiver := env.user(t, models.RoleReceiver, models.Location{})
	listing := env.listing(t, donor)

	message := "Can pick up at 5pm"
	claim, err := env.claims.Create(ctx, models.ClaimCreate{
		ListingID:  listing.ID,
		ReceiverID: receiver.ID,
		Message:    &message,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ClaimStatusPending, claim.Status)
	assert.Equal(t, listing.ID, claim.ListingID)
	assert.Equal(t, receiver.ID, claim.ReceiverID)
	assert.Nil(t, claim.ConfirmedAt)
	assert.EqualValues(t, 1, env.countClaims(t, listing.ID))

	got, err := env.listings.Get(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusClaimed, got.Status)
	require.NotNil(t, got.ClaimedBy)
	assert.Equal(t, receiver.ID, *got.ClaimedBy)
	require.NotNil(t, got.ClaimedAt)

	notes, err := env.notifications.ListByUser(ctx, donor.ID, 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationNewClaim, notes[0].Type)
	assert.False(t, notes[0].Read)
	require.NotNil(t, notes[0].ClaimID)
	assert.Equal(t, claim.ID, *notes[0].ClaimID)
}

func TestClaimService_CreateRejectsUnavailableListing(t *testing.T) {
	statuses := []models.ListingStatus{
		models.ListingStatusClaimed,
		models.ListingStatusPickedUp,
		models.ListingStatusExpired,
	}

	for _, status := range statuses {
		t.Run(string(status), func(t *testing.T) {
			env := newTestEnv(t)
			donor := env.user(t, models.RoleDonor, models.Location{})
			receiver := env.user(t, models.RoleReceiver, models.Location{})
			listing := env.listing(t, donor, func(in *models.ListingCreate) { in.Status = status })

			_, err := env.claims.Create(context.Background(), models.ClaimCreate{ListingID: listing.ID, ReceiverID: receiver.ID})
			assert.ErrorIs(t, err, ErrListingUnavailable)
			assert.Zero(t, env.countClaims(t, listing.ID))
			assert.Zero(t, env.countNotifications(t, donor.ID, models.NotificationNewClaim))
		})
	}
}

func TestClaimService_CreateMissingEntities(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	donor := env.user(t, models.RoleDonor, models.Location{})
	receiver := env.user(t, models.RoleReceiver, models.Location{})
	listing := env.listing(t, donor)

	_, err := env.claims.Create(ctx, models.ClaimCreate{ListingID: 9999, ReceiverID: receiver.ID})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.claims.Create(ctx, models.ClaimCreate{ListingID: listing.ID, ReceiverID: 9999})
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := env.listings.Get(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusAvailable, got.Status)
}

func TestClaimService_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	env := newTestEnv(t)
	donor := env.user(t, models.RoleDonor, models.Location{})
	listing := env.listing(t, donor)

	const contenders = 6
	receivers := make([]*models.User, contenders)
	for i := range receivers {
		receivers[i] = env.user(t, models.RoleReceiver, models.Location{})
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		lost      int
	)
	for _, r := range receivers {
		wg.Add(1)
		go func(receiverID uint) {
			defer wg.Done()
			_, err := env.claims.Create(context.Background(), models.ClaimCreate{ListingID: listing.ID, ReceiverID: receiverID})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if assert.ErrorIs(t, err, ErrListingUnavailable) {
				lost++
			}
		}(r.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, contenders-1, lost)
	assert.EqualValues(t, 1, env.countClaims(t, listing.ID))
}

func TestClaimService_ConfirmNotifiesReceiver(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	donor := env.user(t, models.RoleDonor, models.Location{})
	receiver := env.user(t, models.RoleReceiver, models.Location{})
	listing := env.listing(t, donor)

	claim, err := env.claims.Create(ctx, models.ClaimCreate{ListingID: listing.ID, ReceiverID: receiver.ID})
	require.NoError(t, err)

	confirmed, err := env.claims.Update(ctx, claim.ID, models.ClaimStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	assert.True(t, confirmed.ConfirmedAt.Equal(env.now))

	notes, err := env.notifications.ListByUser(ctx, receiver.ID, 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationClaimConfirmed, notes[0].Type)
	assert.Equal(t, "Claim Confirmed", notes[0].Title)
}

func TestClaimService_RejectKeepsListingClaimed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	donor := env.user(t, models.RoleDonor, models.Location{})
	receiver := env.user(t, models.RoleReceiver, models.Location{})
	listing := env.listing(t, donor)

	claim, err := env.claims.Create(ctx, models.ClaimCreate{ListingID: listing.ID, ReceiverID: receiver.ID})
	require.NoError(t, err)

	rejected, err := env.claims.Update(ctx, claim.ID, models.ClaimStatusRejected)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusRejected, rejected.Status)
	assert.Nil(t, rejected.ConfirmedAt)

	got, err := env.listings.Get(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusClaimed, got.Status)

	assert.EqualValues(t, 1, env.countNotifications(t, receiver.ID, models.NotificationClaimRejected))
}

func TestClaimService_UpdateErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	donor := env.user(t, models.RoleDonor, models.Location{})
	receiver := env.user(t, models.RoleReceiver, models.Location{})
	listing := env.listing(t, donor)

	claim, err := env.claims.Create(ctx, models.ClaimCreate{ListingID: listing.ID, ReceiverID: receiver.ID})
	require.NoError(t, err)

	_, err = env.claims.Update(ctx, claim.ID, models.ClaimStatusPending)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = env.claims.Update(ctx, claim.ID, "maybe")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = env.claims.Update(ctx, 777, models.ClaimStatusConfirmed)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.claims.Update(ctx, claim.ID, models.ClaimStatusConfirmed)
	require.NoError(t, err)

	_, err = env.claims.Update(ctx, claim.ID, models.ClaimStatusRejected)
	assert.ErrorIs(t, err, ErrClaimResolved)

	got, err := env.claims.Get(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusConfirmed, got.Status)
}

func TestClaimService_ListsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	donor := env.user(t, models.RoleDonor, models.Location{})
	receiver := env.user(t, models.RoleReceiver, models.Location{})

	first := env.listing(t, donor)
	second := env.listing(t, donor)

	c1, err := env.claims.Create(ctx, models.ClaimCreate{ListingID: first.ID, ReceiverID: receiver.ID})
	require.NoError(t, err)
	c2, err := env.claims.Create(ctx, models.ClaimCreate{ListingID: second.ID, ReceiverID: receiver.ID})
	require.NoError(t, err)

	byReceiver, err := env.claims.ListByReceiver(ctx, receiver.ID)
	require.NoError(t, err)
	require.Len(t, byReceiver, 2)
	assert.Equal(t, c2.ID, byReceiver[0].ID)
	assert.Equal(t, c1.ID, byReceiver[1].ID)

	byListing, err := env.claims.ListByListing(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, byListing, 1)
	assert.Equal(t, c1.ID, byListing[0].ID)
}
