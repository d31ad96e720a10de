package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/alexedwards/scs/v2/memstore"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/confadmin/config"
	"github.com/tech-arch1tect/confadmin/middleware/gate"
	"github.com/tech-arch1tect/confadmin/services/account"
	"github.com/tech-arch1tect/confadmin/services/invitation"
	"github.com/tech-arch1tect/confadmin/services/logging"
	"github.com/tech-arch1tect/confadmin/services/signup"
	"github.com/tech-arch1tect/confadmin/services/templates"
	"github.com/tech-arch1tect/confadmin/session"
	"github.com/tech-arch1tect/confadmin/testutils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type fixture struct {
	cfg         *config.Config
	db          *gorm.DB
	mailer      *testutils.MockMailService
	accounts    *account.Service
	invitations *invitation.Service
	admin       *account.User
	client      *testutils.HTTPClient
}

func setup(t *testing.T) *fixture {
	t.Helper()

	cfg := testutils.GetTestConfig()
	db := testutils.SetupTestDB(t, &account.User{}, &invitation.Invitation{})
	mailer := &testutils.MockMailService{}
	accounts := account.NewService(&cfg.Auth, db, nil)
	invitations := invitation.NewService(cfg, db, mailer, nil, nil)
	provisioner := signup.NewProvisioner(db, accounts, invitations, nil)
	policy := gate.NewPolicy(cfg.Gate, session.MarkerCookieNames(cfg.Session.Name))

	admin, err := accounts.Create(context.Background(), "Ada Admin", "admin@example.com", testutils.TestPasswords.Valid, true)
	require.NoError(t, err)

	tmpl := templates.New(&cfg.Templates, cfg.App.Name, nil)
	require.NoError(t, tmpl.LoadTemplates())

	inv := NewInvitationHandler(invitations, accounts, nil)
	auth := NewAuthHandler(accounts, policy, cfg, nil)
	su := NewSignupHandler(invitations, provisioner, policy, cfg, nil)
	dash := NewDashboardHandler(accounts, invitations, policy, cfg, nil)

	e := echo.New()
	e.Renderer = tmpl.Renderer()
	e.Use(session.Middleware(session.NewManager(cfg.Session, memstore.New())))

	e.POST("/test/login/:id", func(c echo.Context) error {
		if err := session.Login(c, c.Param("id")); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	})
	e.POST("/api/invitations", inv.Create)
	e.GET("/api/invitations", inv.List)
	e.DELETE("/api/invitations/:id", inv.Delete)
	e.POST("/api/invitations/validate", inv.Validate)
	e.POST("/api/invitations/use", inv.Use)
	e.GET("/", auth.SignInPage)
	e.POST("/sign-in", auth.SignIn)
	e.POST("/sign-out", auth.SignOut)
	e.GET("/signup", su.Page)
	e.POST("/signup", su.Submit)
	e.GET("/dashboard", dash.Show)

	return &fixture{
		cfg:         cfg,
		db:          db,
		mailer:      mailer,
		accounts:    accounts,
		invitations: invitations,
		admin:       admin,
		client:      testutils.NewHTTPClient(t, e),
	}
}

func (f *fixture) loginAs(t *testing.T, userID string) {
	t.Helper()
	f.client.PostJSON("/test/login/"+userID, nil).AssertStatus(t, http.StatusNoContent)
}

func (f *fixture) invite(t *testing.T, email string) *invitation.Invitation {
	t.Helper()
	f.mailer.On("SendTemplate", "invitation", []string{email}, mock.Anything, mock.Anything).Return(nil).Once()
	inv, err := f.invitations.Create(context.Background(), email, f.admin.ID)
	require.NoError(t, err)
	return inv
}

func errorBody(t *testing.T, resp *testutils.Response) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	resp.JSON(t, &body)
	return body
}

func TestCreateInvitation(t *testing.T) {
	t.Run("sends the invitation", func(t *testing.T) {
		f := setup(t)
		f.loginAs(t, f.admin.ID)
		f.mailer.On("SendTemplate", "invitation", []string{"guest@example.com"}, "Invitation to Test Portal", mock.Anything).
			Return(nil).Once()

		resp := f.client.PostJSON("/api/invitations", CreateInvitationRequest{Email: "Guest@Example.com"})
		resp.AssertStatus(t, http.StatusOK)

		var body CreateInvitationResponse
		resp.JSON(t, &body)
		assert.Equal(t, "Invitation sent successfully", body.Message)
		assert.Equal(t, "guest@example.com", body.Invitation.Email)
		assert.NotEmpty(t, body.Invitation.ID)
		assert.NotContains(t, resp.String(), "token")
		f.mailer.AssertExpectations(t)
	})

	t.Run("invalid email", func(t *testing.T) {
		f := setup(t)
		f.loginAs(t, f.admin.ID)

		resp := f.client.PostJSON("/api/invitations", CreateInvitationRequest{Email: "not-an-email"})
		resp.AssertStatus(t, http.StatusBadRequest)
		assert.Equal(t, ErrorResponse{Error: "Invalid email address", Reason: invitation.ReasonValidation}, errorBody(t, resp))
		f.mailer.AssertNotCalled(t, "SendTemplate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("existing account", func(t *testing.T) {
		f := setup(t)
		f.loginAs(t, f.admin.ID)

		resp := f.client.PostJSON("/api/invitations", CreateInvitationRequest{Email: "admin@example.com"})
		resp.AssertStatus(t, http.StatusBadRequest)
		assert.Equal(t, "User with this email already exists", errorBody(t, resp).Error)
	})

	t.Run("delivery failure", func(t *testing.T) {
		f := setup(t)
		f.loginAs(t, f.admin.ID)
		f.mailer.On("SendTemplate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("smtp: connection refused")).Once()

		resp := f.client.PostJSON("/api/invitations", CreateInvitationRequest{Email: "guest@example.com"})
		resp.AssertStatus(t, http.StatusInternalServerError)
		body := errorBody(t, resp)
		assert.Equal(t, invitation.ReasonDeliveryFailed, body.Reason)
		assert.NotContains(t, body.Error, "smtp")
	})

	t.Run("session for a deleted account", func(t *testing.T) {
		f := setup(t)
		ghost, err := f.accounts.Create(context.Background(), "Ghost", "ghost@example.com", testutils.TestPasswords.Valid, true)
		require.NoError(t, err)
		f.loginAs(t, ghost.ID)
		require.NoError(t, f.accounts.Delete(context.Background(), ghost.ID))

		resp := f.client.PostJSON("/api/invitations", CreateInvitationRequest{Email: "guest@example.com"})
		resp.AssertStatus(t, http.StatusUnauthorized)
		assert.Equal(t, invitation.ReasonUnauthorized, errorBody(t, resp).Reason)
	})
}

func TestListAndDelete(t *testing.T) {
	f := setup(t)
	f.loginAs(t, f.admin.ID)
	inv := f.invite(t, "one@example.com")

	resp := f.client.Get("/api/invitations")
	resp.AssertStatus(t, http.StatusOK)
	var list ListInvitationsResponse
	resp.JSON(t, &list)
	require.Len(t, list.Invitations, 1)
	assert.Equal(t, invitation.StatusPending, list.Invitations[0].Status)
	assert.Equal(t, "Ada Admin", list.Invitations[0].CreatedByName)

	deleted := f.client.Delete("/api/invitations/" + inv.ID)
	deleted.AssertStatus(t, http.StatusOK)

	missing := f.client.Delete("/api/invitations/" + inv.ID)
	missing.AssertStatus(t, http.StatusNotFound)
	assert.Equal(t, ErrorResponse{Error: "Invitation not found", Reason: invitation.ReasonNotFound}, errorBody(t, missing))
}

func TestValidate(t *testing.T) {
	f := setup(t)
	inv := f.invite(t, "guest@example.com")

	t.Run("missing token", func(t *testing.T) {
		f.client.PostJSON("/api/invitations/validate", TokenRequest{}).AssertStatus(t, http.StatusBadRequest)
	})

	t.Run("unknown token", func(t *testing.T) {
		resp := f.client.PostJSON("/api/invitations/validate", TokenRequest{Token: "nope"})
		resp.AssertStatus(t, http.StatusOK)
		var body ValidateResponse
		resp.JSON(t, &body)
		assert.False(t, body.Valid)
		assert.Equal(t, "Invalid or expired invitation link", body.Error)
	})

	t.Run("pending token", func(t *testing.T) {
		resp := f.client.PostJSON("/api/invitations/validate", TokenRequest{Token: inv.Token})
		resp.AssertStatus(t, http.StatusOK)
		var body ValidateResponse
		resp.JSON(t, &body)
		assert.True(t, body.Valid)
		assert.Equal(t, "guest@example.com", body.Email)
	})
}

func TestUse(t *testing.T) {
	t.Run("anonymous consumer", func(t *testing.T) {
		f := setup(t)
		inv := f.invite(t, "guest@example.com")

		f.client.PostJSON("/api/invitations/use", TokenRequest{Token: inv.Token}).AssertStatus(t, http.StatusOK)

		var stored invitation.Invitation
		require.NoError(t, f.db.First(&stored, "id = ?", inv.ID).Error)
		assert.NotNil(t, stored.UsedAt)
		assert.Nil(t, stored.UsedBy)

		again := f.client.PostJSON("/api/invitations/use", TokenRequest{Token: inv.Token})
		again.AssertStatus(t, http.StatusBadRequest)
		assert.Equal(t, invitation.ReasonInvalidOrExpired, errorBody(t, again).Reason)
	})

	t.Run("signed-in consumer is recorded", func(t *testing.T) {
		f := setup(t)
		inv := f.invite(t, "guest@example.com")
		f.loginAs(t, f.admin.ID)

		f.client.PostJSON("/api/invitations/use", TokenRequest{Token: inv.Token}).AssertStatus(t, http.StatusOK)

		var stored invitation.Invitation
		require.NoError(t, f.db.First(&stored, "id = ?", inv.ID).Error)
		require.NotNil(t, stored.UsedBy)
		assert.Equal(t, f.admin.ID, *stored.UsedBy)
	})
}

func TestSignIn(t *testing.T) {
	f := setup(t)

	t.Run("json success sanitizes the callback", func(t *testing.T) {
		resp := f.client.Fresh().PostJSON("/sign-in", SignInRequest{
			Email:       "ADMIN@example.com",
			Password:    testutils.TestPasswords.Valid,
			CallbackURL: "//evil.example/phish",
		})
		resp.AssertStatus(t, http.StatusOK)
		var body SignInResponse
		resp.JSON(t, &body)
		assert.Equal(t, "/phish", body.RedirectURL)
		assert.Equal(t, f.admin.ID, body.User.ID)
		assert.NotContains(t, resp.String(), "passwordHash")
	})

	t.Run("form success keeps a local callback", func(t *testing.T) {
		c := f.client.Fresh()
		resp := c.PostForm("/sign-in", url.Values{
			"email":       {"admin@example.com"},
			"password":    {testutils.TestPasswords.Valid},
			"callbackURL": {"/dashboard/reports?tab=1"},
		})
		resp.AssertRedirect(t, "/dashboard/reports")
		assert.NotNil(t, c.Cookie(f.cfg.Session.Name))
	})

	t.Run("form failure re-renders the page", func(t *testing.T) {
		resp := f.client.Fresh().PostForm("/sign-in", url.Values{
			"email":    {"admin@example.com"},
			"password": {"wrong-password"},
		})
		resp.AssertStatus(t, http.StatusUnauthorized)
		assert.Contains(t, resp.String(), "Invalid email or password")
		assert.Contains(t, resp.String(), `value="admin@example.com"`)
	})
}

func TestDashboard(t *testing.T) {
	t.Run("renders the listing", func(t *testing.T) {
		f := setup(t)
		f.invite(t, "guest@example.com")
		f.loginAs(t, f.admin.ID)

		resp := f.client.Get("/dashboard")
		resp.AssertStatus(t, http.StatusOK)
		assert.Contains(t, resp.String(), "Signed in as Ada Admin")
		assert.Contains(t, resp.String(), "guest@example.com")
	})

	t.Run("stale session is signed out", func(t *testing.T) {
		f := setup(t)
		f.loginAs(t, "missing-user")

		f.client.Get("/dashboard").AssertRedirect(t, "/")
	})
}

// undeletableStore keeps sessions in memory but cannot destroy an issued one.
type undeletableStore struct {
	*memstore.MemStore
}

func (s undeletableStore) Delete(token string) error {
	if token == "" {
		return s.MemStore.Delete(token)
	}
	return errors.New("session store unavailable")
}

func TestDashboardStaleSessionLogoutFailure(t *testing.T) {
	cfg := testutils.GetTestConfig()
	db := testutils.SetupTestDB(t, &account.User{}, &invitation.Invitation{})
	accounts := account.NewService(&cfg.Auth, db, nil)
	invitations := invitation.NewService(cfg, db, &testutils.RecordingMailer{}, nil, nil)
	policy := gate.NewPolicy(cfg.Gate, session.MarkerCookieNames(cfg.Session.Name))

	core, logs := observer.New(zapcore.DebugLevel)
	dash := NewDashboardHandler(accounts, invitations, policy, cfg, logging.FromZap(zap.New(core)))

	e := echo.New()
	e.Use(session.Middleware(session.NewManager(cfg.Session, undeletableStore{memstore.New()})))
	e.POST("/test/login/:id", func(c echo.Context) error {
		if err := session.Login(c, c.Param("id")); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	})
	e.GET("/dashboard", dash.Show)

	client := testutils.NewHTTPClient(t, e)
	client.PostJSON("/test/login/missing-user", nil).AssertStatus(t, http.StatusNoContent)

	client.Get("/dashboard").AssertStatus(t, http.StatusInternalServerError)
	assert.Equal(t, 1, logs.FilterMessage("failed to destroy stale session").Len())
}

func TestSignupForm(t *testing.T) {
	f := setup(t)
	inv := f.invite(t, "guest@example.com")

	t.Run("short password keeps the form", func(t *testing.T) {
		resp := f.client.Fresh().PostForm("/signup", url.Values{
			"token":    {inv.Token},
			"name":     {"Guest"},
			"password": {testutils.TestPasswords.TooShort},
		})
		resp.AssertStatus(t, http.StatusBadRequest)
		assert.Contains(t, resp.String(), "Password must be at least 8 characters")
		assert.Contains(t, resp.String(), "guest@example.com")

		valid, err := f.invitations.Validate(context.Background(), inv.Token)
		require.NoError(t, err)
		assert.False(t, valid.IsUsed())
	})

	t.Run("registration signs the new admin in", func(t *testing.T) {
		c := f.client.Fresh()
		resp := c.PostForm("/signup", url.Values{
			"token":    {inv.Token},
			"name":     {"Guest Admin"},
			"password": {testutils.TestPasswords.Valid},
		})
		resp.AssertRedirect(t, "/dashboard")
		assert.NotNil(t, c.Cookie(f.cfg.Session.Name))

		user, err := f.accounts.Authenticate(context.Background(), "guest@example.com", testutils.TestPasswords.Valid)
		require.NoError(t, err)
		assert.True(t, user.EmailVerified)
	})

	t.Run("used token shows the invalid page", func(t *testing.T) {
		resp := f.client.Fresh().Get("/signup?token=" + inv.Token)
		resp.AssertStatus(t, http.StatusOK)
		assert.Contains(t, resp.String(), "Invalid or expired invitation link")
	})
}
