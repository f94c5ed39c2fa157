package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jun/gophdocs/backend/internal/document"
	"github.com/jun/gophdocs/backend/internal/editlock"
	"github.com/jun/gophdocs/backend/internal/nonce"
	"github.com/jun/gophdocs/backend/internal/obs"
	"github.com/jun/gophdocs/backend/internal/view"
)

// EditLockHandler serves the edit lock endpoints.
type EditLockHandler struct {
	locks     *editlock.Service
	presenter *view.Presenter
	nonces    *nonce.Issuer
	jwtSecret string
	logger    *slog.Logger
}

// NewEditLockHandler creates a new EditLockHandler.
func NewEditLockHandler(locks *editlock.Service, presenter *view.Presenter, nonces *nonce.Issuer, jwtSecret string, logger *slog.Logger) *EditLockHandler {
	if logger == nil {
		logger = obs.NopLogger()
	}
	return &EditLockHandler{
		locks:     locks,
		presenter: presenter,
		nonces:    nonces,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

type docRequest struct {
	DocID string `json:"doc_id"`
}

type conflictBody struct {
	Error      string    `json:"error"`
	DocID      string    `json:"doc_id"`
	HolderID   string    `json:"holder_id"`
	LockerName string    `json:"locker_name,omitempty"`
	AcquiredAt time.Time `json:"acquired_at"`
}

func parseDocRequest(req events.APIGatewayProxyRequest) (string, bool) {
	var body docRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil || body.DocID == "" {
		return "", false
	}
	return body.DocID, true
}

// Heartbeat handles POST /heartbeat {"doc_id": "..."}.
func (h *EditLockHandler) Heartbeat(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userID, err := GetUserID(req, h.jwtSecret)
	if err != nil {
		return errorResponse(http.StatusUnauthorized, "Unauthorized"), nil
	}

	docID, ok := parseDocRequest(req)
	if !ok {
		return errorResponse(http.StatusBadRequest, "Missing doc_id"), nil
	}

	cache := h.locks.NewRequestCache(userID)
	status, err := cache.Heartbeat(ctx, docID)
	if err != nil {
		return h.lockError(ctx, err), nil
	}
	return jsonResponse(http.StatusOK, status), nil
}

// RemoveEditLock handles POST /remove_edit_lock {"doc_id": "..."}.
func (h *EditLockHandler) RemoveEditLock(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userID, err := GetUserID(req, h.jwtSecret)
	if err != nil {
		return errorResponse(http.StatusUnauthorized, "Unauthorized"), nil
	}

	docID, ok := parseDocRequest(req)
	if !ok {
		return errorResponse(http.StatusBadRequest, "Missing doc_id"), nil
	}

	released, err := h.locks.NewRequestCache(userID).Release(ctx, docID)
	if err != nil {
		return h.lockError(ctx, err), nil
	}
	return jsonResponse(http.StatusOK, map[string]any{"doc_id": docID, "released": released}), nil
}

// LockStatus handles GET /docs/{id}/lock.
func (h *EditLockHandler) LockStatus(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userID, err := GetUserID(req, h.jwtSecret)
	if err != nil {
		return errorResponse(http.StatusUnauthorized, "Unauthorized"), nil
	}

	docID := req.PathParameters["id"]
	if docID == "" {
		return errorResponse(http.StatusBadRequest, "Missing document ID"), nil
	}

	v, err := h.presenter.Lock(ctx, h.locks.NewRequestCache(userID), docID, h.locks.Window())
	if err != nil {
		return h.lockError(ctx, err), nil
	}
	return jsonResponse(http.StatusOK, v), nil
}

// DocAction handles GET /docs/{id}?bpd_action=cancel_edit and
// GET /docs/{id}?bpd_action=cancel_edit_lock&nonce=... and redirects back to
// the document.
func (h *EditLockHandler) DocAction(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userID, err := GetUserID(req, h.jwtSecret)
	if err != nil {
		return errorResponse(http.StatusUnauthorized, "Unauthorized"), nil
	}

	docID := req.PathParameters["id"]
	if docID == "" {
		return errorResponse(http.StatusBadRequest, "Missing document ID"), nil
	}

	link, err := h.presenter.DocPermalink(ctx, docID)
	if err != nil {
		return h.lockError(ctx, err), nil
	}

	cache := h.locks.NewRequestCache(userID)
	switch action := req.QueryStringParameters[view.ActionParam]; action {
	case view.ActionCancelEdit:
		// Someone else's lock is left alone; the visitor just leaves edit mode.
		if _, err := cache.Release(ctx, docID); err != nil && !errors.Is(err, editlock.ErrConflict) {
			return h.lockError(ctx, err), nil
		}
		return redirect(link), nil

	case nonce.ActionCancelEditLock:
		token := req.QueryStringParameters[view.NonceParam]
		if err := h.nonces.Verify(token, userID, docID, nonce.ActionCancelEditLock); err != nil {
			h.logger.WarnContext(ctx, "force cancel rejected", "doc", docID, "actor", userID, "error", err)
			return errorResponse(http.StatusForbidden, "Invalid or expired link"), nil
		}
		if _, err := cache.ForceRelease(ctx, docID); err != nil {
			return h.lockError(ctx, err), nil
		}
		return redirect(link), nil

	default:
		return errorResponse(http.StatusBadRequest, "Unknown action"), nil
	}
}

// lockError maps lock service errors to responses.
func (h *EditLockHandler) lockError(ctx context.Context, err error) events.APIGatewayProxyResponse {
	var conflict *editlock.ConflictError
	switch {
	case errors.As(err, &conflict):
		name, nameErr := h.presenter.DisplayName(ctx, conflict.HolderID)
		if nameErr != nil {
			name = ""
		}
		return jsonResponse(http.StatusConflict, conflictBody{
			Error:      "Document is being edited by another user",
			DocID:      conflict.DocID,
			HolderID:   conflict.HolderID,
			LockerName: name,
			AcquiredAt: conflict.AcquiredAt,
		})
	case errors.Is(err, document.ErrNotFound):
		return errorResponse(http.StatusNotFound, "Document not found")
	default:
		h.logger.ErrorContext(ctx, "edit lock request failed", "error", err)
		return errorResponse(http.StatusInternalServerError, "Internal Server Error")
	}
}
