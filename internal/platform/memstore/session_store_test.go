package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/sage-api/internal/domain"
	"github.com/phrazzld/sage-api/internal/store"
)

// fakeClock lets tests advance time explicitly to drive TTL expiry.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestStore returns a store with a one-hour TTL driven by a fake clock.
func newTestStore(t *testing.T) (*MemorySessionStore, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	s := NewMemorySessionStore(time.Hour, nil)
	s.now = clock.Now
	return s, clock
}

func createTestSession(t *testing.T, s *MemorySessionStore) string {
	t.Helper()
	id, err := s.CreateSession(context.Background(), "", "en", map[string]string{"filename": "questions.txt"})
	require.NoError(t, err, "CreateSession should succeed")
	require.NotEmpty(t, id, "CreateSession should return a session ID")
	return id
}

func TestCreateSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("generates an ID when none is supplied", func(t *testing.T) {
		s, _ := newTestStore(t)

		id, err := s.CreateSession(ctx, "", "en", nil)
		require.NoError(t, err)
		assert.NotEmpty(t, id, "An empty caller ID should be replaced with a generated one")

		session, err := s.GetSession(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, session.ID)
		assert.Equal(t, domain.SessionStatusPending, session.Status, "New sessions should start pending")
		assert.Equal(t, "en", session.Language)
	})

	t.Run("honors a caller-supplied ID", func(t *testing.T) {
		s, _ := newTestStore(t)

		id, err := s.CreateSession(ctx, "my-session-token", "de", nil)
		require.NoError(t, err)
		assert.Equal(t, "my-session-token", id)
	})

	t.Run("rejects an empty language", func(t *testing.T) {
		s, _ := newTestStore(t)

		_, err := s.CreateSession(ctx, "", "", nil)
		assert.ErrorIs(t, err, domain.ErrEmptySessionLanguage)
	})

	t.Run("stores an independent copy of the metadata", func(t *testing.T) {
		s, _ := newTestStore(t)

		metadata := map[string]string{"filename": "a.txt"}
		id, err := s.CreateSession(ctx, "", "en", metadata)
		require.NoError(t, err)

		metadata["filename"] = "mutated.txt"

		session, err := s.GetSession(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "a.txt", session.Metadata["filename"],
			"Mutating the caller's map should not affect stored state")
	})
}

func TestGetSessionNotFound(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	_, err := s.GetSession(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
	assert.True(t, store.IsNotFoundError(err), "ErrSessionNotFound should satisfy IsNotFoundError")
}

func TestSetStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore(t)
	id := createTestSession(t, s)

	err := s.SetStatus(ctx, id, domain.SessionStatusProcessing)
	require.NoError(t, err)

	session, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusProcessing, session.Status)

	err = s.SetStatus(ctx, "missing", domain.SessionStatusError)
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestAppendProgressAndProjection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore(t)
	id := createTestSession(t, s)

	require.NoError(t, s.SetStatus(ctx, id, domain.SessionStatusProcessing))

	events := []domain.ProgressEvent{
		{SessionID: id, Stage: "initializing", Percentage: 0, Message: "Starting"},
		{SessionID: id, Stage: "parsing", Percentage: 5, Message: "Parsing input"},
		{SessionID: id, Stage: "parsing", Percentage: 20, Message: "Found 3 questions"},
	}
	for _, ev := range events {
		require.NoError(t, s.AppendProgress(ctx, ev))
	}

	t.Run("projection reflects the last event and current status", func(t *testing.T) {
		progress, err := s.GetLatestProgress(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 20, progress.Percentage)
		assert.Equal(t, "parsing", progress.Stage)
		assert.Equal(t, domain.SessionStatusProcessing, progress.Status)
	})

	t.Run("projection read is idempotent", func(t *testing.T) {
		first, err := s.GetLatestProgress(ctx, id)
		require.NoError(t, err)
		second, err := s.GetLatestProgress(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, first, second, "Repeated reads without writes should return identical results")
	})

	t.Run("event log preserves append order", func(t *testing.T) {
		got, err := s.GetProgressEvents(ctx, id)
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i, ev := range events {
			assert.Equal(t, ev.Stage, got[i].Stage)
			assert.Equal(t, ev.Percentage, got[i].Percentage)
			assert.False(t, got[i].Timestamp.IsZero(), "Appended events should be timestamped")
		}
	})

	t.Run("append to unknown session fails", func(t *testing.T) {
		err := s.AppendProgress(ctx, domain.ProgressEvent{SessionID: "missing", Stage: "parsing"})
		assert.ErrorIs(t, err, store.ErrSessionNotFound)
	})
}

func TestStoreAndGetResult(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore(t)
	id := createTestSession(t, s)

	t.Run("result read before any write fails", func(t *testing.T) {
		_, err := s.GetResult(ctx, id)
		assert.ErrorIs(t, err, store.ErrResultNotFound)
	})

	t.Run("round trip", func(t *testing.T) {
		result := &domain.Result{
			Success:            true,
			DocumentID:         "doc-123",
			Filename:           "answers.pdf",
			PageCount:          4,
			QuestionsProcessed: 3,
			AnswersGenerated:   3,
		}
		require.NoError(t, s.StoreResult(ctx, id, result))

		got, err := s.GetResult(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, result, got)
		assert.NotSame(t, result, got, "GetResult should return a copy")
	})

	t.Run("unknown session fails", func(t *testing.T) {
		err := s.StoreResult(ctx, "missing", &domain.Result{})
		assert.ErrorIs(t, err, store.ErrSessionNotFound)

		_, err = s.GetResult(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrSessionNotFound)
	})
}

func TestAnswerPreviews(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore(t)
	id := createTestSession(t, s)

	for i, q := range []string{"What is TCP?", "What is UDP?", "What is QUIC?"} {
		err := s.AppendAnswerPreview(ctx, id, domain.AnswerPreview{
			Index:    i,
			Question: q,
			Answer:   "Answer " + q,
		})
		require.NoError(t, err)
	}

	t.Run("list preserves append order", func(t *testing.T) {
		previews, err := s.GetAnswerPreviews(ctx, id)
		require.NoError(t, err)
		require.Len(t, previews, 3)
		for i, p := range previews {
			assert.Equal(t, i, p.Index)
		}
	})

	t.Run("update replaces only the matching index", func(t *testing.T) {
		err := s.UpdateAnswerPreview(ctx, id, 1, "Regenerated answer")
		require.NoError(t, err)

		previews, err := s.GetAnswerPreviews(ctx, id)
		require.NoError(t, err)
		require.Len(t, previews, 3)
		assert.Equal(t, "Answer What is TCP?", previews[0].Answer)
		assert.Equal(t, "Regenerated answer", previews[1].Answer)
		assert.Equal(t, "What is UDP?", previews[1].Question, "Update should leave the question untouched")
		assert.Equal(t, "Answer What is QUIC?", previews[2].Answer)
	})

	t.Run("update with an unknown index is a no-op", func(t *testing.T) {
		err := s.UpdateAnswerPreview(ctx, id, 99, "ignored")
		require.NoError(t, err, "A missing index is not an error")

		previews, err := s.GetAnswerPreviews(ctx, id)
		require.NoError(t, err)
		require.Len(t, previews, 3)
		for _, p := range previews {
			assert.NotEqual(t, "ignored", p.Answer)
		}
	})

	t.Run("unknown session fails", func(t *testing.T) {
		err := s.AppendAnswerPreview(ctx, "missing", domain.AnswerPreview{})
		assert.ErrorIs(t, err, store.ErrSessionNotFound)

		err = s.UpdateAnswerPreview(ctx, "missing", 0, "x")
		assert.ErrorIs(t, err, store.ErrSessionNotFound)
	})
}

func TestDeleteSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore(t)
	id := createTestSession(t, s)

	require.NoError(t, s.AppendProgress(ctx, domain.ProgressEvent{SessionID: id, Stage: "parsing", Percentage: 10}))
	require.NoError(t, s.AppendAnswerPreview(ctx, id, domain.AnswerPreview{Index: 0, Answer: "a"}))
	require.NoError(t, s.StoreResult(ctx, id, &domain.Result{Success: true}))

	require.NoError(t, s.DeleteSession(ctx, id))

	_, err := s.GetSession(ctx, id)
	assert.ErrorIs(t, err, store.ErrSessionNotFound, "Session record should be gone")
	_, err = s.GetProgressEvents(ctx, id)
	assert.ErrorIs(t, err, store.ErrSessionNotFound, "Progress log should be gone")
	_, err = s.GetAnswerPreviews(ctx, id)
	assert.ErrorIs(t, err, store.ErrSessionNotFound, "Answer list should be gone")
	_, err = s.GetResult(ctx, id)
	assert.ErrorIs(t, err, store.ErrSessionNotFound, "Result should be gone")

	assert.NoError(t, s.DeleteSession(ctx, "never-existed"), "Deleting an unknown session is not an error")
}

func TestSessionExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("untouched session expires after the TTL", func(t *testing.T) {
		s, clock := newTestStore(t)
		id := createTestSession(t, s)

		clock.Advance(time.Hour + time.Minute)

		_, err := s.GetSession(ctx, id)
		assert.ErrorIs(t, err, store.ErrSessionNotFound)
	})

	t.Run("every write refreshes the TTL", func(t *testing.T) {
		s, clock := newTestStore(t)
		id := createTestSession(t, s)

		// Keep writing at 40-minute intervals; the session outlives
		// several nominal TTL windows because each write refreshes it.
		clock.Advance(40 * time.Minute)
		require.NoError(t, s.SetStatus(ctx, id, domain.SessionStatusProcessing))

		clock.Advance(40 * time.Minute)
		require.NoError(t, s.AppendProgress(ctx, domain.ProgressEvent{SessionID: id, Stage: "parsing", Percentage: 10}))

		clock.Advance(40 * time.Minute)
		require.NoError(t, s.AppendAnswerPreview(ctx, id, domain.AnswerPreview{Index: 0, Answer: "a"}))

		clock.Advance(40 * time.Minute)
		require.NoError(t, s.StoreResult(ctx, id, &domain.Result{Success: true}))

		session, err := s.GetSession(ctx, id)
		require.NoError(t, err, "An actively-written session should never expire")
		assert.Equal(t, domain.SessionStatusProcessing, session.Status)

		// Once writes stop, the session ages out with all its entities.
		clock.Advance(time.Hour + time.Minute)
		_, err = s.GetSession(ctx, id)
		assert.ErrorIs(t, err, store.ErrSessionNotFound)
		_, err = s.GetResult(ctx, id)
		assert.ErrorIs(t, err, store.ErrSessionNotFound)
	})
}

func TestConcurrentAppends(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore(t)
	id := createTestSession(t, s)

	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = s.AppendProgress(ctx, domain.ProgressEvent{
					SessionID:  id,
					Stage:      "generating",
					Percentage: 50,
				})
			}
		}()
	}
	wg.Wait()

	events, err := s.GetProgressEvents(ctx, id)
	require.NoError(t, err)
	assert.Len(t, events, writers*perWriter, "No appends should be lost under concurrency")
}
