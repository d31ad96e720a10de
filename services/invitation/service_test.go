package invitation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/confadmin/services/account"
	"github.com/tech-arch1tect/confadmin/testutils"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	svc     *Service
	mailer  *testutils.RecordingMailer
	issuer  *account.User
	counter *countingRecorder
}

type countingRecorder struct {
	mu                          sync.Mutex
	created, consumed, failures int
}

func (r *countingRecorder) InvitationCreated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created++
}

func (r *countingRecorder) InvitationConsumed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consumed++
}

func (r *countingRecorder) InvitationDeliveryFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
}

// cancellingMailer fails the send after the caller's context is gone, like a
// client that disconnects during a slow SMTP exchange.
type cancellingMailer struct {
	cancel context.CancelFunc
}

func (m *cancellingMailer) SendTemplate(string, []string, string, map[string]any) error {
	m.cancel()
	return errors.New("smtp: i/o timeout")
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutils.SetupTestDB(t, &account.User{}, &Invitation{})
	mailer := &testutils.RecordingMailer{}
	recorder := &countingRecorder{}
	svc := NewService(testutils.GetTestConfig(), db, mailer, recorder, nil)

	issuer := createUser(t, db, "Ada Admin", "ada@example.com")
	return &fixture{db: db, svc: svc, mailer: mailer, issuer: issuer, counter: recorder}
}

func createUser(t *testing.T, db *gorm.DB, name, email string) *account.User {
	t.Helper()
	u := &account.User{Name: name, Email: email, PasswordHash: "hash"}
	require.NoError(t, db.Create(u).Error)
	return u
}

func countInvitations(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&Invitation{}).Count(&n).Error)
	return n
}

func TestInvitationLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	before := time.Now()
	inv, err := f.svc.Create(ctx, "new@example.com", f.issuer.ID)
	require.NoError(t, err)

	assert.NotEmpty(t, inv.ID)
	assert.Equal(t, "new@example.com", inv.Email)
	assert.Equal(t, f.issuer.ID, inv.CreatedBy)
	assert.Len(t, inv.Token, 64)
	assert.Nil(t, inv.UsedAt)
	assert.WithinDuration(t, before.Add(7*24*time.Hour), inv.ExpiresAt, time.Second)

	validated, err := f.svc.Validate(ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, validated.ID)
	assert.Equal(t, "new@example.com", validated.Email)

	require.NoError(t, f.svc.Consume(ctx, inv.Token, ""))

	_, err = f.svc.Validate(ctx, inv.Token)
	assert.ErrorIs(t, err, ErrInvalidOrExpired)

	assert.Equal(t, 1, f.counter.created)
	assert.Equal(t, 1, f.counter.consumed)
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("sends the invitation email", func(t *testing.T) {
		f := setup(t)
		inv, err := f.svc.Create(ctx, "new@example.com", f.issuer.ID)
		require.NoError(t, err)

		sent, ok := f.mailer.Last()
		require.True(t, ok)
		assert.Equal(t, "invitation", sent.Template)
		assert.Equal(t, []string{"new@example.com"}, sent.To)
		assert.Equal(t, "Invitation to Test Portal", sent.Subject)
		assert.Equal(t, "http://localhost:8080/signup?token="+inv.Token, sent.Data["InviteURL"])
		assert.Equal(t, "Ada Admin", sent.Data["InviterName"])
	})

	t.Run("normalizes email", func(t *testing.T) {
		f := setup(t)
		inv, err := f.svc.Create(ctx, "  New.Person@Example.COM ", f.issuer.ID)
		require.NoError(t, err)
		assert.Equal(t, "new.person@example.com", inv.Email)
	})

	t.Run("validation errors", func(t *testing.T) {
		f := setup(t)
		tests := []struct {
			email  string
			issuer string
			want   error
		}{
			{email: "", issuer: f.issuer.ID, want: ErrEmailRequired},
			{email: "   ", issuer: f.issuer.ID, want: ErrEmailRequired},
			{email: "not-an-email", issuer: f.issuer.ID, want: ErrInvalidEmail},
			{email: "a@localhost", issuer: f.issuer.ID, want: ErrInvalidEmail},
			{email: "Bob <bob@example.com>", issuer: f.issuer.ID, want: ErrInvalidEmail},
			{email: "new@example.com", issuer: "", want: ErrIssuerRequired},
		}
		for _, tt := range tests {
			_, err := f.svc.Create(ctx, tt.email, tt.issuer)
			assert.ErrorIs(t, err, tt.want, "email %q", tt.email)
		}
		assert.Zero(t, countInvitations(t, f.db))
		assert.Empty(t, f.mailer.Sent)
	})

	t.Run("existing account", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.Create(ctx, "ADA@example.com", f.issuer.ID)
		assert.ErrorIs(t, err, ErrDuplicateAccount)
		assert.Zero(t, countInvitations(t, f.db))
	})

	t.Run("outstanding invitation", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.Create(ctx, "new@example.com", f.issuer.ID)
		require.NoError(t, err)

		_, err = f.svc.Create(ctx, "new@example.com", f.issuer.ID)
		assert.ErrorIs(t, err, ErrDuplicateInvitation)
		assert.Equal(t, int64(1), countInvitations(t, f.db))
	})

	t.Run("used or expired invitations do not block a new one", func(t *testing.T) {
		f := setup(t)
		used, err := f.svc.Create(ctx, "used@example.com", f.issuer.ID)
		require.NoError(t, err)
		require.NoError(t, f.svc.Consume(ctx, used.Token, ""))

		_, err = f.svc.Create(ctx, "used@example.com", f.issuer.ID)
		assert.NoError(t, err)

		_, err = f.svc.Create(ctx, "late@example.com", f.issuer.ID)
		require.NoError(t, err)
		f.svc.now = func() time.Time { return time.Now().UTC().Add(8 * 24 * time.Hour) }

		_, err = f.svc.Create(ctx, "late@example.com", f.issuer.ID)
		assert.NoError(t, err)
	})

	t.Run("delivery failure removes the invitation", func(t *testing.T) {
		f := setup(t)
		f.mailer.Err = errors.New("smtp: connection refused")

		inv, err := f.svc.Create(ctx, "new@example.com", f.issuer.ID)
		assert.Nil(t, inv)
		assert.ErrorIs(t, err, ErrDeliveryFailed)
		assert.Contains(t, err.Error(), "connection refused")
		assert.Equal(t, ReasonDeliveryFailed, Reason(err))
		assert.Zero(t, countInvitations(t, f.db))
		assert.Equal(t, 1, f.counter.failures)
		assert.Zero(t, f.counter.created)

		f.mailer.Err = nil
		_, err = f.svc.Create(ctx, "new@example.com", f.issuer.ID)
		assert.NoError(t, err)
	})

	t.Run("orphaned row stays when cleanup fails", func(t *testing.T) {
		f := setup(t)
		f.mailer.Err = errors.New("smtp: connection refused")
		require.NoError(t, f.db.Callback().Delete().Before("gorm:delete").Register("test:fail_delete", func(tx *gorm.DB) {
			_ = tx.AddError(errors.New("database is locked"))
		}))

		_, err := f.svc.Create(ctx, "new@example.com", f.issuer.ID)
		assert.ErrorIs(t, err, ErrDeliveryFailed)
		assert.Equal(t, int64(1), countInvitations(t, f.db))
	})

	t.Run("cleanup survives a cancelled request", func(t *testing.T) {
		f := setup(t)
		reqCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		f.svc.mailer = &cancellingMailer{cancel: cancel}

		_, err := f.svc.Create(reqCtx, "new@example.com", f.issuer.ID)
		assert.ErrorIs(t, err, ErrDeliveryFailed)
		assert.Zero(t, countInvitations(t, f.db))
	})

	t.Run("tokens are unique", func(t *testing.T) {
		f := setup(t)
		seen := map[string]bool{}
		for i := 0; i < 20; i++ {
			inv, err := f.svc.Create(ctx, strings.Repeat("x", i+1)+"@example.com", f.issuer.ID)
			require.NoError(t, err)
			assert.False(t, seen[inv.Token])
			seen[inv.Token] = true
		}
	})
}

func TestValidate(t *testing.T) {
	ctx := context.Background()

	t.Run("empty token", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.Validate(ctx, "")
		assert.ErrorIs(t, err, ErrTokenRequired)
		assert.Equal(t, ReasonValidation, Reason(err))
	})

	t.Run("unknown token", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.Validate(ctx, "deadbeef")
		assert.ErrorIs(t, err, ErrInvalidOrExpired)
	})

	t.Run("expired token", func(t *testing.T) {
		f := setup(t)
		start := time.Now().UTC()
		f.svc.now = func() time.Time { return start }
		inv, err := f.svc.Create(ctx, "new@example.com", f.issuer.ID)
		require.NoError(t, err)

		f.svc.now = func() time.Time { return start.Add(7*24*time.Hour - time.Second) }
		_, err = f.svc.Validate(ctx, inv.Token)
		assert.NoError(t, err)

		f.svc.now = func() time.Time { return inv.ExpiresAt }
		_, err = f.svc.Validate(ctx, inv.Token)
		assert.ErrorIs(t, err, ErrInvalidOrExpired)

		f.svc.now = func() time.Time { return start.Add(8 * 24 * time.Hour) }
		_, err = f.svc.Validate(ctx, inv.Token)
		assert.ErrorIs(t, err, ErrInvalidOrExpired)
		assert.ErrorIs(t, f.svc.Consume(ctx, inv.Token, ""), ErrInvalidOrExpired)
	})
}

func TestConsume(t *testing.T) {
	ctx := context.Background()

	t.Run("second consume fails", func(t *testing.T) {
		f := setup(t)
		inv, err := f.svc.Create(ctx, "new@example.com", f.issuer.ID)
		require.NoError(t, err)

		require.NoError(t, f.svc.Consume(ctx, inv.Token, ""))
		err = f.svc.Consume(ctx, inv.Token, "")
		assert.ErrorIs(t, err, ErrInvalidOrExpired)
		assert.Equal(t, ReasonInvalidOrExpired, Reason(err))
		assert.Equal(t, 1, f.counter.consumed)
	})

	t.Run("records consumer", func(t *testing.T) {
		f := setup(t)
		inv, err := f.svc.Create(ctx, "new@example.com", f.issuer.ID)
		require.NoError(t, err)
		consumer := createUser(t, f.db, "New Admin", "new@example.com")

		require.NoError(t, f.svc.Consume(ctx, inv.Token, consumer.ID))

		var stored Invitation
		require.NoError(t, f.db.First(&stored, "id = ?", inv.ID).Error)
		require.NotNil(t, stored.UsedAt)
		require.NotNil(t, stored.UsedBy)
		assert.Equal(t, consumer.ID, *stored.UsedBy)
	})

	t.Run("without consumer leaves usedBy empty", func(t *testing.T) {
		f := setup(t)
		inv, err := f.svc.Create(ctx, "new@example.com", f.issuer.ID)
		require.NoError(t, err)

		require.NoError(t, f.svc.Consume(ctx, inv.Token, ""))

		var stored Invitation
		require.NoError(t, f.db.First(&stored, "id = ?", inv.ID).Error)
		assert.NotNil(t, stored.UsedAt)
		assert.Nil(t, stored.UsedBy)
	})

	t.Run("empty token", func(t *testing.T) {
		f := setup(t)
		assert.ErrorIs(t, f.svc.Consume(ctx, "", ""), ErrTokenRequired)
	})

	t.Run("concurrent consumers, one winner", func(t *testing.T) {
		f := setup(t)
		inv, err := f.svc.Create(ctx, "new@example.com", f.issuer.ID)
		require.NoError(t, err)

		const workers = 10
		var wg sync.WaitGroup
		results := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- f.svc.Consume(ctx, inv.Token, "")
			}()
		}
		wg.Wait()
		close(results)

		var ok, invalid int
		for err := range results {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrInvalidOrExpired):
				invalid++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, workers-1, invalid)
	})
}

func TestList(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	now := time.Now().UTC()
	f.svc.now = func() time.Time { return now }

	consumer := createUser(t, f.db, "Grace", "grace@example.com")
	gone := createUser(t, f.db, "Gone", "gone@example.com")
	consumerID, goneID := consumer.ID, gone.ID
	usedAt := now.Add(-time.Hour)

	rows := []Invitation{
		{Email: "oldest@example.com", Token: "t1", CreatedBy: f.issuer.ID, ExpiresAt: now.Add(-time.Hour), CreatedAt: now.Add(-3 * time.Hour)},
		{Email: "grace@example.com", Token: "t2", CreatedBy: f.issuer.ID, UsedBy: &consumerID, UsedAt: &usedAt, ExpiresAt: now.Add(time.Hour), CreatedAt: now.Add(-2 * time.Hour)},
		{Email: "gone@example.com", Token: "t3", CreatedBy: f.issuer.ID, UsedBy: &goneID, UsedAt: &usedAt, ExpiresAt: now.Add(time.Hour), CreatedAt: now.Add(-90 * time.Minute)},
		{Email: "newest@example.com", Token: "t4", CreatedBy: f.issuer.ID, ExpiresAt: now.Add(time.Hour), CreatedAt: now.Add(-time.Minute)},
	}
	for i := range rows {
		require.NoError(t, f.db.Create(&rows[i]).Error)
	}
	require.NoError(t, f.db.Delete(gone).Error)

	entries, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, "newest@example.com", entries[0].Email)
	assert.Equal(t, StatusPending, entries[0].Status)
	assert.Equal(t, "Ada Admin", entries[0].CreatedByName)
	assert.Empty(t, entries[0].UsedByName)

	assert.Equal(t, "gone@example.com", entries[1].Email)
	assert.Equal(t, StatusUsed, entries[1].Status)
	assert.Nil(t, entries[1].UsedBy)
	assert.Equal(t, "Unknown", entries[1].UsedByName)

	assert.Equal(t, "grace@example.com", entries[2].Email)
	assert.Equal(t, StatusUsed, entries[2].Status)
	assert.Equal(t, "Grace", entries[2].UsedByName)

	assert.Equal(t, "oldest@example.com", entries[3].Email)
	assert.Equal(t, StatusExpired, entries[3].Status)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	inv, err := f.svc.Create(ctx, "new@example.com", f.issuer.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, inv.ID))
	assert.Zero(t, countInvitations(t, f.db))

	err = f.svc.Delete(ctx, inv.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, ReasonNotFound, Reason(err))

	_, err = f.svc.Validate(ctx, inv.Token)
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
}

func TestIssuerDeletionCascades(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	other := createUser(t, f.db, "Other", "other@example.com")

	_, err := f.svc.Create(ctx, "one@example.com", f.issuer.ID)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, "two@example.com", f.issuer.ID)
	require.NoError(t, err)
	kept, err := f.svc.Create(ctx, "three@example.com", other.ID)
	require.NoError(t, err)

	accounts := account.NewService(&testutils.GetTestConfig().Auth, f.db, nil)
	require.NoError(t, accounts.Delete(ctx, f.issuer.ID))

	var remaining []Invitation
	require.NoError(t, f.db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, kept.ID, remaining[0].ID)
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrEmailRequired, ReasonValidation},
		{ErrInvalidEmail, ReasonValidation},
		{ErrTokenRequired, ReasonValidation},
		{ErrIssuerRequired, ReasonUnauthorized},
		{ErrDuplicateAccount, ReasonDuplicateAccount},
		{ErrDuplicateInvitation, ReasonDuplicateInvitation},
		{ErrDeliveryFailed, ReasonDeliveryFailed},
		{ErrInvalidOrExpired, ReasonInvalidOrExpired},
		{ErrNotFound, ReasonNotFound},
		{errors.New("disk full"), ReasonInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Reason(tt.err))
	}
}

func TestStatus(t *testing.T) {
	now := time.Now()
	used := now.Add(-time.Minute)

	pending := Invitation{ExpiresAt: now.Add(time.Hour)}
	assert.Equal(t, StatusPending, pending.Status(now))
	assert.True(t, pending.IsValid(now))

	expired := Invitation{ExpiresAt: now}
	assert.Equal(t, StatusExpired, expired.Status(now))
	assert.False(t, expired.IsValid(now))

	consumed := Invitation{ExpiresAt: now.Add(-time.Hour), UsedAt: &used}
	assert.Equal(t, StatusUsed, consumed.Status(now))
}
