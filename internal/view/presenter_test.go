package view

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jun/gophdocs/backend/internal/document"
	"github.com/jun/gophdocs/backend/internal/editlock"
	"github.com/jun/gophdocs/backend/internal/identity"
	"github.com/jun/gophdocs/backend/internal/model"
	"github.com/jun/gophdocs/backend/internal/nonce"
)

type fixture struct {
	presenter *Presenter
	service   *editlock.Service
	locks     *editlock.MemoryStore
	nonces    *nonce.Issuer
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	docs := document.NewMemoryStore(
		model.Document{ID: "doc-1", Title: "Roadmap", LastEditorID: "user-c"},
		model.Document{ID: "doc 2", Title: "Spaces"},
	)
	locks := editlock.NewMemoryStore()
	svc := editlock.NewService(locks, docs, 2*time.Minute, editlock.WithClock(func() time.Time { return now }))
	dir := identity.NewStaticDirectory(map[string]string{
		"user-a": "Ann",
		"user-b": "Bob *the* [builder]",
		"user-c": "Cat",
		"user-d": "www.evil.example https://evil.example/x",
	})
	nonces := nonce.NewIssuer(jwt.SigningMethodHS256, []byte("view-test-secret"), time.Hour)

	return &fixture{
		presenter: NewPresenter("https://docs.example.com/", docs, dir, nonces, nil),
		service:   svc,
		locks:     locks,
		nonces:    nonces,
		now:       now,
	}
}

func (f *fixture) hold(docID, holder string, age time.Duration) {
	f.locks.Put(model.DocumentLock{DocID: docID, HolderID: holder, AcquiredAt: f.now.Add(-age).UnixMilli()})
}

func TestPermalink(t *testing.T) {
	f := newFixture(t)
	got := f.presenter.Permalink(&model.Document{ID: "doc 2"})
	if got != "https://docs.example.com/docs/doc%202" {
		t.Errorf("unexpected permalink %q", got)
	}
}

func TestLockerDisplayName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	name, err := f.presenter.LockerDisplayName(ctx, f.service.NewRequestCache("user-a"), "doc-1")
	if err != nil {
		t.Fatalf("LockerDisplayName failed: %v", err)
	}
	if name != "" {
		t.Errorf("free doc: expected empty name, got %q", name)
	}

	f.hold("doc-1", "user-a", 10*time.Second)

	name, _ = f.presenter.LockerDisplayName(ctx, f.service.NewRequestCache("user-a"), "doc-1")
	if name != "" {
		t.Errorf("held by self: expected empty name, got %q", name)
	}

	name, _ = f.presenter.LockerDisplayName(ctx, f.service.NewRequestCache("user-b"), "doc-1")
	if name != "Ann" {
		t.Errorf("held by other: expected Ann, got %q", name)
	}
}

func TestLockerDisplayName_UnknownActorFallsBackToID(t *testing.T) {
	f := newFixture(t)
	f.hold("doc-1", "user-z", time.Second)

	name, err := f.presenter.LockerDisplayName(context.Background(), f.service.NewRequestCache("user-a"), "doc-1")
	if err != nil {
		t.Fatalf("LockerDisplayName failed: %v", err)
	}
	if name != "user-z" {
		t.Errorf("expected raw id fallback, got %q", name)
	}
}

func TestLockerDisplayName_UnknownDocument(t *testing.T) {
	f := newFixture(t)
	_, err := f.presenter.LockerDisplayName(context.Background(), f.service.NewRequestCache("user-a"), "missing")
	if !errors.Is(err, document.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestForceCancelLink(t *testing.T) {
	f := newFixture(t)

	link, err := f.presenter.ForceCancelLink(context.Background(), "doc-1", "user-b")
	if err != nil {
		t.Fatalf("ForceCancelLink failed: %v", err)
	}

	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("bad link %q: %v", link, err)
	}
	if u.Path != "/docs/doc-1" {
		t.Errorf("unexpected path %q", u.Path)
	}
	if got := u.Query().Get(ActionParam); got != nonce.ActionCancelEditLock {
		t.Errorf("expected action %q, got %q", nonce.ActionCancelEditLock, got)
	}
	if err := f.nonces.Verify(u.Query().Get(NonceParam), "user-b", "doc-1", nonce.ActionCancelEditLock); err != nil {
		t.Errorf("embedded token does not verify: %v", err)
	}
}

func TestCancelEditLink(t *testing.T) {
	f := newFixture(t)

	link, err := f.presenter.CancelEditLink(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("CancelEditLink failed: %v", err)
	}
	if link != "https://docs.example.com/docs/doc-1?bpd_action=cancel_edit" {
		t.Errorf("unexpected link %q", link)
	}

	if _, err := f.presenter.CancelEditLink(context.Background(), "missing"); !errors.Is(err, document.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNotice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	html, err := f.presenter.Notice(ctx, f.service.NewRequestCache("user-a"), "doc-1")
	if err != nil {
		t.Fatalf("Notice failed: %v", err)
	}
	if html != "" {
		t.Errorf("free doc: expected no notice, got %q", html)
	}

	f.hold("doc-1", "user-b", 30*time.Second)

	html, err = f.presenter.Notice(ctx, f.service.NewRequestCache("user-a"), "doc-1")
	if err != nil {
		t.Fatalf("Notice failed: %v", err)
	}
	if !strings.Contains(html, "<strong>Bob *the* [builder]</strong> is currently editing this doc.") {
		t.Errorf("name not rendered literally: %q", html)
	}
	if !strings.Contains(html, `href="https://docs.example.com/docs/doc-1?bpd_action=cancel_edit_lock&amp;nonce=`) {
		t.Errorf("force cancel link missing: %q", html)
	}
}

func TestNotice_URLLikeNameStaysText(t *testing.T) {
	f := newFixture(t)
	f.hold("doc-1", "user-d", 10*time.Second)

	html, err := f.presenter.Notice(context.Background(), f.service.NewRequestCache("user-a"), "doc-1")
	if err != nil {
		t.Fatalf("Notice failed: %v", err)
	}
	if n := strings.Count(html, "<a "); n != 1 {
		t.Errorf("expected only the cancel link, got %d anchors: %q", n, html)
	}
	if !strings.Contains(html, "<strong>www.evil.example https://evil.example/x</strong>") {
		t.Errorf("name not rendered as text: %q", html)
	}
}

func TestLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.hold("doc-1", "user-b", 30*time.Second)

	v, err := f.presenter.Lock(ctx, f.service.NewRequestCache("user-a"), "doc-1", f.service.Window())
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if v.State != model.LockHeldByOther || v.HolderID != "user-b" {
		t.Errorf("unexpected status %+v", v.LockStatus)
	}
	if v.LockerName != "Bob *the* [builder]" {
		t.Errorf("unexpected locker name %q", v.LockerName)
	}
	if v.ForceCancelURL == "" || v.NoticeHTML == "" {
		t.Errorf("expected force cancel link and notice, got %+v", v)
	}
	if v.CancelEditURL != "" {
		t.Errorf("cancel edit link is for the holder only, got %q", v.CancelEditURL)
	}
	if v.WindowSeconds != 120 {
		t.Errorf("expected window 120s, got %d", v.WindowSeconds)
	}

	v, err = f.presenter.Lock(ctx, f.service.NewRequestCache("user-b"), "doc-1", f.service.Window())
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if v.State != model.LockHeldBySelf || v.CancelEditURL == "" || v.NoticeHTML != "" {
		t.Errorf("unexpected self view %+v", v)
	}
}

func TestLock_HolderlessShowsLastEditor(t *testing.T) {
	f := newFixture(t)
	f.hold("doc-1", "", 5*time.Second)

	v, err := f.presenter.Lock(context.Background(), f.service.NewRequestCache("user-a"), "doc-1", f.service.Window())
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if v.State != model.LockFree {
		t.Errorf("holderless lock must not be exclusive, got %s", v.State)
	}
	if v.LastEditorName != "Cat" {
		t.Errorf("expected last editor Cat, got %q", v.LastEditorName)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	r := NewRenderer()
	out, err := r.Render([]byte(EscapeMarkdown("<script>alert(1)</script> _x_ `y`")))
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	got := string(out)
	if strings.Contains(got, "<script>") || strings.Contains(got, "<em>") || strings.Contains(got, "<code>") {
		t.Errorf("escaped text was interpreted: %q", got)
	}
	if !strings.Contains(got, "&lt;script&gt;") {
		t.Errorf("expected literal tag text, got %q", got)
	}
}
