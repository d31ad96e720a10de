package openapi

import (
	"net/http"

	"github.com/tech-arch1tect/confadmin/config"
	"github.com/tech-arch1tect/confadmin/handlers"
	"github.com/tech-arch1tect/confadmin/session"
	"go.uber.org/fx"
)

const (
	sessionScheme  = "session"
	invitationsTag = "invitations"
)

// NewInvitationsDocument describes the invitations API served under /api.
func NewInvitationsDocument(cfg *config.Config) *Document {
	doc := New(cfg.App.Name+" API", "1.0.0").
		Description("Invitation-only onboarding for portal administrators.").
		Server(cfg.App.URL, "").
		Tag(invitationsTag, "Issue, list, revoke and redeem admin invitations").
		CookieAuth(sessionScheme, session.CookieName(cfg.Session), "Session cookie issued by sign-in")

	errBody := handlers.ErrorResponse{}

	doc.Operation(http.MethodPost, "/api/invitations").
		ID("createInvitation").
		Summary("Invite an email address").
		Tags(invitationsTag).
		Security(sessionScheme).
		Body(handlers.CreateInvitationRequest{}, "Address to invite").
		Response(http.StatusOK, handlers.CreateInvitationResponse{}, "Invitation stored and emailed").
		Response(http.StatusBadRequest, errBody, "Invalid email, existing account or outstanding invitation").
		Response(http.StatusUnauthorized, errBody, "No session").
		Response(http.StatusInternalServerError, errBody, "Delivery or store failure").
		Register()

	doc.Operation(http.MethodGet, "/api/invitations").
		ID("listInvitations").
		Summary("List invitations, newest first").
		Tags(invitationsTag).
		Security(sessionScheme).
		Response(http.StatusOK, handlers.ListInvitationsResponse{}, "All invitations").
		Response(http.StatusUnauthorized, errBody, "No session").
		Register()

	doc.Operation(http.MethodDelete, "/api/invitations/:id").
		ID("deleteInvitation").
		Summary("Revoke an invitation").
		Tags(invitationsTag).
		Security(sessionScheme).
		Response(http.StatusOK, handlers.MessageResponse{}, "Deleted").
		Response(http.StatusNotFound, errBody, "Unknown id").
		Response(http.StatusUnauthorized, errBody, "No session").
		Register()

	doc.Operation(http.MethodPost, "/api/invitations/validate").
		ID("validateInvitation").
		Summary("Check whether a token can still be redeemed").
		Tags(invitationsTag).
		Body(handlers.TokenRequest{}, "Invitation token").
		Response(http.StatusOK, handlers.ValidateResponse{}, "Validation result").
		Response(http.StatusBadRequest, handlers.ValidateResponse{}, "Missing token").
		Response(http.StatusTooManyRequests, errBody, "Rate limited").
		Register()

	doc.Operation(http.MethodPost, "/api/invitations/use").
		ID("useInvitation").
		Summary("Redeem a token").
		Tags(invitationsTag).
		Body(handlers.TokenRequest{}, "Invitation token").
		Response(http.StatusOK, handlers.MessageResponse{}, "Redeemed").
		Response(http.StatusBadRequest, errBody, "Missing, unknown, used or expired token").
		Response(http.StatusTooManyRequests, errBody, "Rate limited").
		Register()

	return doc
}

var Module = fx.Options(
	fx.Provide(NewInvitationsDocument),
)
