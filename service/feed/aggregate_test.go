package feed

import (
	"fmt"
	"testing"
	"time"

	"github.com/threadline/threadline-server/cmd/models"
)

func TestTally_CountsDistinctVoters(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewVoteLedger(db)
	agg := NewAggregator(db)

	author := createUser(t, db, "author")
	post := createPost(t, db, author.ID, "Counted")

	// 4 upvotes and 2 downvotes from distinct voters, interleaved
	kinds := []models.VoteKind{
		models.VoteUp, models.VoteDown, models.VoteUp,
		models.VoteUp, models.VoteDown, models.VoteUp,
	}
	for i, kind := range kinds {
		voter := createUser(t, db, fmt.Sprintf("voter%d", i))
		if _, err := ledger.Apply(post.ID, voter.ID, kind); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}

	tally, err := agg.Tally(post.ID)
	if err != nil {
		t.Fatalf("Tally: %v", err)
	}
	want := Tally{Upvotes: 4, Downvotes: 2, Score: 2}
	if tally != want {
		t.Errorf("expected %+v, got %+v", want, tally)
	}
}

func TestTally_NoVotesIsZero(t *testing.T) {
	db := setupTestDB(t)
	agg := NewAggregator(db)

	author := createUser(t, db, "author")
	post := createPost(t, db, author.ID, "Untouched")

	tally, err := agg.Tally(post.ID)
	if err != nil {
		t.Fatalf("Tally: %v", err)
	}
	if tally != (Tally{}) {
		t.Errorf("expected zero tally, got %+v", tally)
	}
}

func TestTallyMany_MatchesSingleTallies(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewVoteLedger(db)
	agg := NewAggregator(db)

	author := createUser(t, db, "author")
	p1 := createPost(t, db, author.ID, "One")
	p2 := createPost(t, db, author.ID, "Two")
	p3 := createPost(t, db, author.ID, "Three")

	for i := 0; i < 3; i++ {
		voter := createUser(t, db, fmt.Sprintf("up%d", i))
		if _, err := ledger.Apply(p1.ID, voter.ID, models.VoteUp); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}
	downer := createUser(t, db, "downer")
	if _, err := ledger.Apply(p2.ID, downer.ID, models.VoteDown); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	batched, err := agg.TallyMany([]uint{p1.ID, p2.ID, p3.ID})
	if err != nil {
		t.Fatalf("TallyMany: %v", err)
	}

	for _, id := range []uint{p1.ID, p2.ID, p3.ID} {
		single, err := agg.Tally(id)
		if err != nil {
			t.Fatalf("Tally(%d): %v", id, err)
		}
		if batched[id] != single {
			t.Errorf("post %d: batched %+v != single %+v", id, batched[id], single)
		}
	}
}

func TestCommentCountMany(t *testing.T) {
	db := setupTestDB(t)
	agg := NewAggregator(db)

	author := createUser(t, db, "author")
	p1 := createPost(t, db, author.ID, "Busy")
	p2 := createPost(t, db, author.ID, "Quiet")

	now := time.Now()
	for i := 0; i < 3; i++ {
		createComment(t, db, p1.ID, author.ID, fmt.Sprintf("c%d", i), nil, now)
	}

	counts, err := agg.CommentCountMany([]uint{p1.ID, p2.ID})
	if err != nil {
		t.Fatalf("CommentCountMany: %v", err)
	}
	if counts[p1.ID] != 3 {
		t.Errorf("expected 3 comments on p1, got %d", counts[p1.ID])
	}
	if counts[p2.ID] != 0 {
		t.Errorf("expected 0 comments on p2, got %d", counts[p2.ID])
	}

	single, err := agg.CommentCount(p1.ID)
	if err != nil {
		t.Fatalf("CommentCount: %v", err)
	}
	if single != counts[p1.ID] {
		t.Errorf("batched count %d != single count %d", counts[p1.ID], single)
	}
}

func TestTallyMany_EmptyInput(t *testing.T) {
	db := setupTestDB(t)
	agg := NewAggregator(db)

	tallies, err := agg.TallyMany(nil)
	if err != nil {
		t.Fatalf("TallyMany: %v", err)
	}
	if len(tallies) != 0 {
		t.Errorf("expected empty result, got %d entries", len(tallies))
	}
}
