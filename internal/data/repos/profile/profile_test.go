package profile

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/intromatch-backend/internal/data/repos/testutil"
	types "github.com/yungbote/intromatch-backend/internal/domain"
	domainprofile "github.com/yungbote/intromatch-backend/internal/domain/profile"
)

func TestProfileRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	repo := NewProfileRepo(db, testutil.Logger(t))
	u := testutil.SeedUser(t, ctx, tx, "")

	p := &types.Profile{UserID: u.ID}
	if err := p.SetDocument(domainprofile.NewDocument()); err != nil {
		t.Fatalf("SetDocument: %v", err)
	}
	created, err := repo.Create(ctx, tx, p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByUserID(ctx, tx, u.ID)
	if err != nil || got == nil || got.ID != created.ID {
		t.Fatalf("GetByUserID: want=%s got=%+v err=%v", created.ID, got, err)
	}

	doc, _ := got.Document()
	doc.AppendRawInput("I build compilers")
	if err := got.SetDocument(doc); err != nil {
		t.Fatalf("SetDocument: %v", err)
	}
	if err := repo.UpdateDocument(ctx, tx, got); err != nil {
		t.Fatalf("UpdateDocument: %v", err)
	}
	if err := repo.UpdateCompleteness(ctx, tx, got.ID, 0.5); err != nil {
		t.Fatalf("UpdateCompleteness: %v", err)
	}

	reloaded, err := repo.GetByID(ctx, tx, got.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("GetByID: %v", err)
	}
	rdoc, err := reloaded.Document()
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if rdoc.RawInput != "I build compilers" {
		t.Fatalf("raw_input: want=%q got=%q", "I build compilers", rdoc.RawInput)
	}
	if reloaded.CompletenessScore != 0.5 {
		t.Fatalf("completeness: want=0.5 got=%v", reloaded.CompletenessScore)
	}

	stale, err := repo.ListStale(ctx, tx, 10)
	if err != nil {
		t.Fatalf("ListStale: %v", err)
	}
	if len(stale) != 1 {
		t.Fatalf("ListStale before embed: want=1 got=%d", len(stale))
	}
	if err := repo.MarkEmbedded(ctx, tx, got.ID, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("MarkEmbedded: %v", err)
	}
	stale, err = repo.ListStale(ctx, tx, 10)
	if err != nil {
		t.Fatalf("ListStale: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("ListStale after embed: want=0 got=%d", len(stale))
	}

	ids, err := repo.ListIDs(ctx, tx)
	if err != nil || len(ids) != 1 {
		t.Fatalf("ListIDs: want 1 got=%v err=%v", ids, err)
	}

	none, err := repo.GetByUserID(ctx, tx, uuid.New())
	if err != nil || none != nil {
		t.Fatalf("GetByUserID missing: want nil,nil got %+v,%v", none, err)
	}
}
