package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdosalm555/visit-pass/internal/model"
	"github.com/abdosalm555/visit-pass/internal/repository"
	"github.com/abdosalm555/visit-pass/internal/service"
)

// newConfirmFixture issues a record at 09:00 and wires an engine whose
// clock the test controls via the returned setter.
func newConfirmFixture(t *testing.T, requireIdentity bool) (*service.ConfirmationEngine, *repository.MemoryVisitStore, model.VisitRecord, func(time.Time)) {
	t.Helper()
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	iss, store := newTestIssuer(t, at)
	rec, err := iss.Issue(context.Background(), service.IssueRequest{
		VisitorName: "Alice", HostName: "Bob", Duration: "1 hour",
	})
	require.NoError(t, err)

	signer, _ := service.NewSigner(service.SigningNone, "", "")
	auth := service.NewAuthenticator(store, signer)
	engine := service.NewConfirmationEngine(store, auth, requireIdentity)

	setNow := func(now time.Time) {
		auth.Now = fixedClock(now)
		engine.Now = fixedClock(now)
	}
	setNow(at)
	return engine, store, rec, setNow
}

func markVerified(t *testing.T, store *repository.MemoryVisitStore, token string) {
	t.Helper()
	_, err := store.Update(context.Background(), token, func(v *model.VisitRecord) error {
		v.IdentityVerified = true
		return nil
	})
	require.NoError(t, err)
}

func TestConfirmHappyPath(t *testing.T) {
	engine, store, rec, setNow := newConfirmFixture(t, true)
	markVerified(t, store, rec.Token)

	confirmAt := time.Date(2025, 3, 10, 9, 10, 0, 0, time.UTC)
	setNow(confirmAt)

	confirmed, err := engine.Confirm(context.Background(), rec.Token, nil)
	require.NoError(t, err)
	require.NotNil(t, confirmed.ConfirmedAt)
	assert.Equal(t, confirmAt, *confirmed.ConfirmedAt)
}

func TestConfirmUnknownToken(t *testing.T) {
	engine, _, _, _ := newConfirmFixture(t, false)
	_, err := engine.Confirm(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, repository.ErrVisitNotFound)
}

func TestConfirmExpiredToken(t *testing.T) {
	engine, _, rec, setNow := newConfirmFixture(t, false)
	setNow(time.Date(2025, 3, 11, 0, 0, 1, 0, time.UTC))

	_, err := engine.Confirm(context.Background(), rec.Token, nil)
	assert.ErrorIs(t, err, service.ErrTokenExpired)
}

func TestConfirmRequiresVerifiedIdentity(t *testing.T) {
	engine, store, rec, _ := newConfirmFixture(t, true)

	_, err := engine.Confirm(context.Background(), rec.Token, nil)
	assert.ErrorIs(t, err, service.ErrNotVerified)

	// After the gate accepts, the identical call succeeds.
	markVerified(t, store, rec.Token)
	confirmed, err := engine.Confirm(context.Background(), rec.Token, nil)
	require.NoError(t, err)
	assert.NotNil(t, confirmed.ConfirmedAt)
}

func TestConfirmGateDisabledSkipsIdentityCheck(t *testing.T) {
	engine, _, rec, _ := newConfirmFixture(t, false)

	confirmed, err := engine.Confirm(context.Background(), rec.Token, nil)
	require.NoError(t, err)
	assert.NotNil(t, confirmed.ConfirmedAt)
}

func TestConfirmIsOneTimeOnly(t *testing.T) {
	engine, store, rec, setNow := newConfirmFixture(t, false)

	first := time.Date(2025, 3, 10, 9, 10, 0, 0, time.UTC)
	setNow(first)
	confirmed, err := engine.Confirm(context.Background(), rec.Token, nil)
	require.NoError(t, err)

	// A later attempt must be rejected, never re-stamped.
	setNow(first.Add(20 * time.Minute))
	_, err = engine.Confirm(context.Background(), rec.Token, nil)
	assert.ErrorIs(t, err, service.ErrAlreadyConfirmed)

	stored, err := store.Get(context.Background(), rec.Token)
	require.NoError(t, err)
	require.NotNil(t, stored.ConfirmedAt)
	assert.Equal(t, *confirmed.ConfirmedAt, *stored.ConfirmedAt,
		"the original confirmation timestamp must survive the duplicate attempt")
}

func TestConfirmConcurrentExactlyOnce(t *testing.T) {
	engine, store, rec, _ := newConfirmFixture(t, false)

	const racers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func() {
			defer wg.Done()
			_, err := engine.Confirm(context.Background(), rec.Token, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, service.ErrAlreadyConfirmed):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes, "exactly one racer may win")
	assert.Equal(t, racers-1, conflicts)

	stored, err := store.Get(context.Background(), rec.Token)
	require.NoError(t, err)
	assert.NotNil(t, stored.ConfirmedAt)
}

func TestRemainingStayCountdown(t *testing.T) {
	// Issue "1 hour" at 09:00, confirm at 09:10: 30m left at 09:40,
	// clamped to zero at 10:15.
	engine, _, rec, setNow := newConfirmFixture(t, false)

	setNow(time.Date(2025, 3, 10, 9, 10, 0, 0, time.UTC))
	confirmed, err := engine.Confirm(context.Background(), rec.Token, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, confirmed.RequestedDuration)

	setNow(time.Date(2025, 3, 10, 9, 40, 0, 0, time.UTC))
	assert.Equal(t, 30*time.Minute, engine.RemainingStay(confirmed))
	assert.False(t, engine.StayExpired(confirmed))

	setNow(time.Date(2025, 3, 10, 10, 15, 0, 0, time.UTC))
	assert.Equal(t, time.Duration(0), engine.RemainingStay(confirmed),
		"remaining stay is clamped, never negative")
	assert.True(t, engine.StayExpired(confirmed),
		"remaining stay and stay expiry must agree on one clock")
}

func TestStayExpiryDoesNotExpireToken(t *testing.T) {
	// The stay running out is informational; the token stays usable for
	// read-only authentication until the daily cutoff.
	engine, store, rec, setNow := newConfirmFixture(t, false)

	setNow(time.Date(2025, 3, 10, 9, 10, 0, 0, time.UTC))
	_, err := engine.Confirm(context.Background(), rec.Token, nil)
	require.NoError(t, err)

	signer, _ := service.NewSigner(service.SigningNone, "", "")
	auth := service.NewAuthenticator(store, signer)
	auth.Now = fixedClock(time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)) // stay long over

	got, err := auth.Authenticate(context.Background(), rec.Token, nil)
	require.NoError(t, err, "stay expiry and token expiry are independent clocks")
	assert.True(t, got.StayExpired(time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)))
}

func TestRemainingStayUnconfirmedIsZero(t *testing.T) {
	engine, _, rec, _ := newConfirmFixture(t, false)
	assert.Equal(t, time.Duration(0), engine.RemainingStay(rec))
	assert.False(t, rec.Confirmed())
}
