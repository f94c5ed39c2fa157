// Package view builds the user-facing pieces of the edit lock UI: the name of
// whoever holds a lock, the cancel and force-cancel links, and the notice
// shown above a locked document.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jun/gophdocs/backend/internal/document"
	"github.com/jun/gophdocs/backend/internal/editlock"
	"github.com/jun/gophdocs/backend/internal/identity"
	"github.com/jun/gophdocs/backend/internal/model"
	"github.com/jun/gophdocs/backend/internal/nonce"
	"github.com/jun/gophdocs/backend/internal/obs"
)

const (
	// ActionParam is the query parameter carrying a document action.
	ActionParam = "bpd_action"
	// NonceParam is the query parameter carrying an action token.
	NonceParam = "nonce"

	// ActionCancelEdit returns the current actor to read mode.
	ActionCancelEdit = "cancel_edit"
)

// Presenter renders lock information for documents.
type Presenter struct {
	baseURL string
	docs    document.Store
	dir     identity.Directory
	nonces  *nonce.Issuer
	md      *Renderer
	logger  *slog.Logger
}

// NewPresenter creates a Presenter. baseURL is the site root documents live under.
func NewPresenter(baseURL string, docs document.Store, dir identity.Directory, nonces *nonce.Issuer, logger *slog.Logger) *Presenter {
	if logger == nil {
		logger = obs.NopLogger()
	}
	return &Presenter{
		baseURL: strings.TrimRight(baseURL, "/"),
		docs:    docs,
		dir:     dir,
		nonces:  nonces,
		md:      NewRenderer(),
		logger:  logger,
	}
}

// Permalink returns the canonical URL of a document.
func (p *Presenter) Permalink(doc *model.Document) string {
	return p.baseURL + "/docs/" + url.PathEscape(doc.ID)
}

// DocPermalink looks up docID and returns its permalink.
func (p *Presenter) DocPermalink(ctx context.Context, docID string) (string, error) {
	doc, err := p.docs.GetDocument(ctx, docID)
	if err != nil {
		return "", err
	}
	return p.Permalink(doc), nil
}

// DisplayName resolves an actor to a name, falling back to the raw ID when
// the directory does not know the actor.
func (p *Presenter) DisplayName(ctx context.Context, actorID string) (string, error) {
	if actorID == "" {
		return "", nil
	}
	name, err := p.dir.DisplayName(ctx, actorID)
	if errors.Is(err, identity.ErrUnknownActor) {
		return actorID, nil
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

// LockerDisplayName returns the name of whoever else holds the lock on
// docID, or "" when the document is free or held by the cache's actor.
func (p *Presenter) LockerDisplayName(ctx context.Context, cache *editlock.RequestCache, docID string) (string, error) {
	status, err := cache.Status(ctx, docID)
	if err != nil {
		return "", err
	}
	if status.State != model.LockHeldByOther {
		return "", nil
	}
	return p.DisplayName(ctx, status.HolderID)
}

// ForceCancelLink returns a link that clears the lock on docID when visited
// by actorID. The link carries a signed action token.
func (p *Presenter) ForceCancelLink(ctx context.Context, docID, actorID string) (string, error) {
	link, err := p.DocPermalink(ctx, docID)
	if err != nil {
		return "", err
	}

	token, err := p.nonces.Issue(actorID, docID, nonce.ActionCancelEditLock)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set(ActionParam, nonce.ActionCancelEditLock)
	q.Set(NonceParam, token)
	return link + "?" + q.Encode(), nil
}

// CancelEditLink returns a link that releases the visitor's own lock on docID.
func (p *Presenter) CancelEditLink(ctx context.Context, docID string) (string, error) {
	link, err := p.DocPermalink(ctx, docID)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set(ActionParam, ActionCancelEdit)
	return link + "?" + q.Encode(), nil
}

// Notice renders the "currently editing" notice for docID as an HTML
// fragment. It is empty unless someone else holds the lock.
func (p *Presenter) Notice(ctx context.Context, cache *editlock.RequestCache, docID string) (string, error) {
	name, err := p.LockerDisplayName(ctx, cache, docID)
	if err != nil || name == "" {
		return "", err
	}

	link, err := p.ForceCancelLink(ctx, docID, cache.ActorID())
	if err != nil {
		return "", err
	}
	return p.renderNotice(name, link)
}

func (p *Presenter) renderNotice(name, forceCancelURL string) (string, error) {
	src := fmt.Sprintf("**%s** is currently editing this doc. [Cancel edit lock](<%s>)", EscapeMarkdown(name), forceCancelURL)
	out, err := p.md.Render([]byte(src))
	if err != nil {
		return "", fmt.Errorf("render lock notice: %w", err)
	}
	return string(out), nil
}

// LockView is everything a client needs to render the lock state of a document.
type LockView struct {
	model.LockStatus
	LockerName     string `json:"locker_name,omitempty"`
	LastEditorName string `json:"last_editor_name,omitempty"`
	Permalink      string `json:"permalink"`
	CancelEditURL  string `json:"cancel_edit_url,omitempty"`
	ForceCancelURL string `json:"force_cancel_url,omitempty"`
	NoticeHTML     string `json:"notice_html,omitempty"`
	WindowSeconds  int64  `json:"window_seconds"`
}

// Lock builds the LockView of docID for the cache's actor.
func (p *Presenter) Lock(ctx context.Context, cache *editlock.RequestCache, docID string, window time.Duration) (LockView, error) {
	status, err := cache.Status(ctx, docID)
	if err != nil {
		return LockView{}, err
	}

	link, err := p.DocPermalink(ctx, docID)
	if err != nil {
		return LockView{}, err
	}

	v := LockView{
		LockStatus:    status,
		Permalink:     link,
		WindowSeconds: int64(window / time.Second),
	}

	switch status.State {
	case model.LockHeldBySelf:
		if v.CancelEditURL, err = p.CancelEditLink(ctx, docID); err != nil {
			return LockView{}, err
		}
	case model.LockHeldByOther:
		if v.LockerName, err = p.LockerDisplayName(ctx, cache, docID); err != nil {
			return LockView{}, err
		}
		if v.ForceCancelURL, err = p.ForceCancelLink(ctx, docID, cache.ActorID()); err != nil {
			return LockView{}, err
		}
		if v.NoticeHTML, err = p.renderNotice(v.LockerName, v.ForceCancelURL); err != nil {
			return LockView{}, err
		}
	}

	if status.LastEditorID != "" {
		name, err := p.DisplayName(ctx, status.LastEditorID)
		if err != nil {
			p.logger.WarnContext(ctx, "last editor lookup failed", "doc", docID, "actor", status.LastEditorID, "error", err)
		} else {
			v.LastEditorName = name
		}
	}
	return v, nil
}
