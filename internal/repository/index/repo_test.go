package index

import (
	"context"
	"fmt"
	"testing"

	"github.com/lumen-docs/corpusqa/internal/domain"
	"github.com/lumen-docs/corpusqa/internal/domain/chunk"
)

// fakeEmbedding places texts on distinct unit vectors so cosine similarity
// ranks an exact repeat of an indexed text first.
func fakeEmbedding(text string) []float32 {
	vec := make([]float32, 8)
	for i, r := range text {
		vec[i%8] += float32(r)
	}
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	inv := 1 / sqrt32(norm)
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

func sqrt32(f float32) float32 {
	// Newton iterations are plenty for test vectors.
	x := f
	for i := 0; i < 20; i++ {
		x = 0.5 * (x + f/x)
	}
	return x
}

func noEmbed(_ context.Context, text string) ([]float32, error) {
	return fakeEmbedding(text), nil
}

func openTestRepo(t *testing.T) *Repo {
	t.Helper()
	repo, err := Open(t.TempDir(), "test-collection", noEmbed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return repo
}

func entry(docName string, page int, content string) domain.IndexEntry {
	return domain.IndexEntry{
		Chunk:     chunk.Chunk{Content: content, DocName: docName, Page: page},
		Embedding: fakeEmbedding(content),
	}
}

func TestQuery_EmptyIndex(t *testing.T) {
	repo := openTestRepo(t)

	got, err := repo.Query(context.Background(), fakeEmbedding("anything"), 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %d entries", len(got))
	}
}

func TestUpsertQuery_RoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	entries := []domain.IndexEntry{
		entry("report", 1, "alpha beta gamma"),
		entry("report", 2, "delta epsilon"),
		entry("other", 1, "zeta eta theta"),
	}
	if err := repo.Upsert(ctx, entries); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := repo.Query(ctx, fakeEmbedding("alpha beta gamma"), 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	if got[0].Content != "alpha beta gamma" {
		t.Errorf("expected the identical chunk ranked first, got %q", got[0].Content)
	}
	if got[0].DocName != "report" || got[0].Page != 1 {
		t.Errorf("lost source attribution: %+v", got[0])
	}
	for i := 1; i < len(got); i++ {
		if got[i].Similarity > got[i-1].Similarity {
			t.Errorf("results not ranked by descending similarity at %d", i)
		}
	}
}

func TestQuery_TopKClampedToEntryCount(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.Upsert(ctx, []domain.IndexEntry{entry("report", 1, "only entry")}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := repo.Query(ctx, fakeEmbedding("only entry"), 6)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
}

func TestUpsert_FingerprintKeyedReplacement(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	e := entry("report", 1, "repeated content")
	if err := repo.Upsert(ctx, []domain.IndexEntry{e}); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}
	if err := repo.Upsert(ctx, []domain.IndexEntry{e}); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	if got := repo.Count(); got != 1 {
		t.Fatalf("expected 1 entry after re-ingesting identical content, got %d", got)
	}
}

func TestOpen_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	repo, err := Open(dir, "persist", noEmbed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := repo.Upsert(ctx, []domain.IndexEntry{entry("report", 1, "durable text")}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	reopened, err := Open(dir, "persist", noEmbed)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reopened.Count(); got != 1 {
		t.Fatalf("expected 1 entry after reopen, got %d", got)
	}

	results, err := reopened.Query(ctx, fakeEmbedding("durable text"), 1)
	if err != nil {
		t.Fatalf("Query after reopen: %v", err)
	}
	if len(results) != 1 || results[0].Content != "durable text" {
		t.Errorf("unexpected results after reopen: %+v", results)
	}
}

func TestUpsert_ManyEntries(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	var entries []domain.IndexEntry
	for i := 0; i < 25; i++ {
		entries = append(entries, entry("report", i, fmt.Sprintf("chunk number %d", i)))
	}
	if err := repo.Upsert(ctx, entries); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if got := repo.Count(); got != 25 {
		t.Fatalf("expected 25 entries, got %d", got)
	}
}
