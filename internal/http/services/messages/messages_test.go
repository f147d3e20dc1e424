package messages

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dropDatabas3/socialid/internal/store/core"
	"github.com/dropDatabas3/socialid/internal/store/memstore"
)

func newUser(t *testing.T, repo *memstore.Store, username string) string {
	t.Helper()
	u := &core.User{Username: username}
	err := repo.CreateUserWithLink(context.Background(), u, &core.IdentityLink{
		Provider:       core.ProviderDiscord,
		ProviderUserID: "d-" + username,
	})
	if err != nil {
		t.Fatalf("CreateUserWithLink err: %v", err)
	}
	return u.ID
}

func befriend(t *testing.T, repo *memstore.Store, a, b string) {
	t.Helper()
	ctx := context.Background()
	if _, err := repo.CreateFriendRequest(ctx, a, b); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.AcceptFriendRequest(ctx, a, b); err != nil {
		t.Fatal(err)
	}
}

func TestSend_OnlyBetweenFriends(t *testing.T) {
	t.Parallel()
	repo := memstore.New()
	svc := &Service{Repo: repo}
	ctx := context.Background()

	alice := newUser(t, repo, "alice")
	bob := newUser(t, repo, "bob")

	if _, err := svc.Send(ctx, alice, bob, "hola"); !errors.Is(err, ErrNotFriends) {
		t.Fatalf("err = %v, want ErrNotFriends", err)
	}

	befriend(t, repo, alice, bob)

	m, err := svc.Send(ctx, alice, bob, "  hola bob  ")
	if err != nil {
		t.Fatalf("Send err: %v", err)
	}
	if m.Body != "hola bob" {
		t.Fatalf("body = %q, want trimmed", m.Body)
	}
	if m.ID == "" || m.CreatedAt.IsZero() {
		t.Fatalf("message not persisted: %+v", m)
	}
}

func TestSend_ValidatesBody(t *testing.T) {
	t.Parallel()
	repo := memstore.New()
	svc := &Service{Repo: repo}
	ctx := context.Background()

	alice := newUser(t, repo, "alice")
	bob := newUser(t, repo, "bob")
	befriend(t, repo, alice, bob)

	if _, err := svc.Send(ctx, alice, bob, "   "); !errors.Is(err, ErrEmptyBody) {
		t.Fatalf("err = %v, want ErrEmptyBody", err)
	}
	if _, err := svc.Send(ctx, alice, bob, strings.Repeat("x", maxBodyLen+1)); !errors.Is(err, ErrBodyTooBig) {
		t.Fatalf("err = %v, want ErrBodyTooBig", err)
	}
	// justo en el límite pasa
	if _, err := svc.Send(ctx, alice, bob, strings.Repeat("x", maxBodyLen)); err != nil {
		t.Fatalf("Send at limit err: %v", err)
	}
}

func TestConversation_NewestFirstWithLimit(t *testing.T) {
	t.Parallel()
	repo := memstore.New()
	svc := &Service{Repo: repo}
	ctx := context.Background()

	alice := newUser(t, repo, "alice")
	bob := newUser(t, repo, "bob")
	carol := newUser(t, repo, "carol")
	befriend(t, repo, alice, bob)
	befriend(t, repo, alice, carol)

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	seed := func(sender, receiver, body string, at time.Time) {
		if err := repo.CreateMessage(ctx, &core.Message{
			SenderID: sender, ReceiverID: receiver, Body: body, CreatedAt: at,
		}); err != nil {
			t.Fatal(err)
		}
	}
	seed(alice, bob, "uno", base)
	seed(bob, alice, "dos", base.Add(time.Minute))
	seed(alice, bob, "tres", base.Add(2*time.Minute))
	// ruido de otra conversación
	seed(alice, carol, "aparte", base.Add(3*time.Minute))

	msgs, err := svc.Conversation(ctx, alice, bob, 0, time.Time{})
	if err != nil {
		t.Fatalf("Conversation err: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	if msgs[0].Body != "tres" || msgs[2].Body != "uno" {
		t.Fatalf("order mismatch: %q .. %q", msgs[0].Body, msgs[2].Body)
	}

	// paginar hacia atrás desde "tres"
	msgs, err = svc.Conversation(ctx, alice, bob, 10, base.Add(2*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Body != "dos" {
		t.Fatalf("page = %+v", msgs)
	}

	msgs, err = svc.Conversation(ctx, alice, bob, 1, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Body != "tres" {
		t.Fatalf("limited page = %+v", msgs)
	}
}

func TestMarkRead_CountsOnlyUnreadFromOther(t *testing.T) {
	t.Parallel()
	repo := memstore.New()
	svc := &Service{Repo: repo}
	ctx := context.Background()

	alice := newUser(t, repo, "alice")
	bob := newUser(t, repo, "bob")
	befriend(t, repo, alice, bob)

	if _, err := svc.Send(ctx, bob, alice, "uno"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Send(ctx, bob, alice, "dos"); err != nil {
		t.Fatal(err)
	}
	// mensaje saliente: no cuenta como no leído de alice
	if _, err := svc.Send(ctx, alice, bob, "respuesta"); err != nil {
		t.Fatal(err)
	}

	n, err := svc.MarkRead(ctx, alice, bob)
	if err != nil {
		t.Fatalf("MarkRead err: %v", err)
	}
	if n != 2 {
		t.Fatalf("marked = %d, want 2", n)
	}

	// segunda pasada: ya no queda nada por marcar
	n, err = svc.MarkRead(ctx, alice, bob)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("marked = %d, want 0", n)
	}
}
