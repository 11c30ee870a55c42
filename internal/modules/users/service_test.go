package users

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/intromatch-backend/internal/data/repos"
	"github.com/yungbote/intromatch-backend/internal/data/repos/testutil"
	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/domain/events"
	"github.com/yungbote/intromatch-backend/internal/domain/profile"
)

func newService(t *testing.T) (*Service, repos.ParticipationRepo) {
	t.Helper()
	log := testutil.Logger(t)
	db := testutil.DB(t)
	parts := repos.NewParticipationRepo(db, log)
	svc, err := New(Deps{
		Log:            log,
		Users:          repos.NewUserRepo(db, log),
		Profiles:       repos.NewProfileRepo(db, log),
		Events:         repos.NewEventRepo(db, log),
		Participations: parts,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc, parts
}

func TestGetMe(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	u, err := svc.deps.Users.EnsureByExternalID(ctx, nil, "auth0|abc")
	if err != nil {
		t.Fatalf("EnsureByExternalID: %v", err)
	}
	me, err := svc.GetMe(ctx, "auth0|abc")
	if err != nil {
		t.Fatalf("GetMe: %v", err)
	}
	if me.User.ID != u.ID || me.Profile != nil {
		t.Fatalf("me without profile: %+v", me)
	}

	doc := profile.NewDocument()
	doc.Personal.Name = testutil.Str("Alex")
	p := &types.Profile{UserID: u.ID}
	if err := p.SetDocument(doc); err != nil {
		t.Fatalf("SetDocument: %v", err)
	}
	if _, err := svc.deps.Profiles.Create(ctx, nil, p); err != nil {
		t.Fatalf("Create profile: %v", err)
	}
	me, err = svc.GetMe(ctx, "auth0|abc")
	if err != nil {
		t.Fatalf("GetMe: %v", err)
	}
	if me.Profile == nil || me.Profile.DisplayName() != "Alex" {
		t.Fatalf("profile: %+v", me.Profile)
	}
}

func TestGetMeUnknownOrAnonymous(t *testing.T) {
	svc, _ := newService(t)
	if _, err := svc.GetMe(context.Background(), "nobody"); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("unknown: want ErrNotFound got %v", err)
	}
	if _, err := svc.GetMe(context.Background(), " "); !errors.Is(err, types.ErrUnauthorized) {
		t.Fatalf("blank: want ErrUnauthorized got %v", err)
	}
}

func TestListMyEvents(t *testing.T) {
	ctx := context.Background()
	svc, parts := newService(t)

	u, err := svc.deps.Users.EnsureByExternalID(ctx, nil, "sub-1")
	if err != nil {
		t.Fatalf("EnsureByExternalID: %v", err)
	}
	ev, err := svc.deps.Events.Create(ctx, nil, &types.Event{Name: "Demo Day"})
	if err != nil {
		t.Fatalf("Create event: %v", err)
	}
	part, err := parts.Ensure(ctx, nil, u.ID, ev.ID)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	doc := events.NewContextDocument(ev.ID)
	doc.Goals.LookingFor = []string{"cofounder"}
	if err := part.SetContext(doc); err != nil {
		t.Fatalf("SetContext: %v", err)
	}
	part.CompletenessScore = 0.5
	if err := parts.UpdateContext(ctx, nil, part); err != nil {
		t.Fatalf("UpdateContext: %v", err)
	}

	out, err := svc.ListMyEvents(ctx, "sub-1")
	if err != nil {
		t.Fatalf("ListMyEvents: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len: want=1 got=%d", len(out))
	}
	if out[0].Event == nil || out[0].Event.Name != "Demo Day" {
		t.Fatalf("event: %+v", out[0].Event)
	}
	if len(out[0].Context.Goals.LookingFor) != 1 || out[0].CompletenessScore != 0.5 {
		t.Fatalf("context: %+v score=%v", out[0].Context, out[0].CompletenessScore)
	}
}

func TestGetEvent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	ev, err := svc.deps.Events.Create(ctx, nil, &types.Event{Name: "Meetup"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := svc.GetEvent(ctx, ev.ID)
	if err != nil || got.Name != "Meetup" {
		t.Fatalf("GetEvent: %v %+v", err, got)
	}
	if _, err := svc.GetEvent(ctx, uuid.New()); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("missing: want ErrNotFound got %v", err)
	}
}
