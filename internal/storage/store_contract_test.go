package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facewatch/internal/models"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{t: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type storeFactory func(t *testing.T, clock Clock) Store

var embA = []float32{0.1, 0.2, 0.3, -0.4}
var embB = []float32{0.5, -0.5, 0.25, 0}

// runStoreContract exercises behavior every Store implementation must share.
func runStoreContract(t *testing.T, newStore storeFactory) {
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t, newTestClock(base).Now)

		p, err := s.CreatePerson(ctx, "Alice", "front door", embA)
		require.NoError(t, err)
		assert.NotZero(t, p.ID)
		assert.Equal(t, 0, p.VisitCount)

		got, err := s.GetPerson(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Alice", got.Name)
		assert.Equal(t, "front door", got.Notes)
		assert.InDeltaSlice(t, embA, got.Embedding, 1e-6)

		byName, err := s.GetPersonByName(ctx, "Alice")
		require.NoError(t, err)
		require.NotNil(t, byName)
		assert.Equal(t, p.ID, byName.ID)

		missing, err := s.GetPerson(ctx, p.ID+100)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("duplicate name leaves store unchanged", func(t *testing.T) {
		s := newStore(t, nil)

		_, err := s.CreatePerson(ctx, "Alice", "", embA)
		require.NoError(t, err)

		_, err = s.CreatePerson(ctx, "Alice", "other", embB)
		require.ErrorIs(t, err, ErrDuplicateName)

		persons, err := s.ListPersons(ctx)
		require.NoError(t, err)
		require.Len(t, persons, 1)
		assert.Empty(t, persons[0].Notes)
	})

	t.Run("update keeps names unique", func(t *testing.T) {
		s := newStore(t, nil)

		alice, err := s.CreatePerson(ctx, "Alice", "", embA)
		require.NoError(t, err)
		_, err = s.CreatePerson(ctx, "Bob", "", embB)
		require.NoError(t, err)

		bob := "Bob"
		_, err = s.UpdatePerson(ctx, alice.ID, models.PersonUpdate{Name: &bob})
		require.ErrorIs(t, err, ErrDuplicateName)

		notes := "neighbour"
		empty := ""
		updated, err := s.UpdatePerson(ctx, alice.ID, models.PersonUpdate{Name: &empty, Notes: &notes})
		require.NoError(t, err)
		assert.Equal(t, "Alice", updated.Name)
		assert.Equal(t, "neighbour", updated.Notes)

		carol := "Carol"
		updated, err = s.UpdatePerson(ctx, alice.ID, models.PersonUpdate{Name: &carol})
		require.NoError(t, err)
		assert.Equal(t, "Carol", updated.Name)
		assert.Equal(t, "neighbour", updated.Notes)

		_, err = s.UpdatePerson(ctx, alice.ID+100, models.PersonUpdate{Notes: &notes})
		require.ErrorIs(t, err, ErrNotFound)

		persons, err := s.ListPersons(ctx)
		require.NoError(t, err)
		require.Len(t, persons, 2)
		assert.Equal(t, "Bob", persons[0].Name)
		assert.Equal(t, "Carol", persons[1].Name)
	})

	t.Run("log visit updates counters", func(t *testing.T) {
		clock := newTestClock(base)
		s := newStore(t, clock.Now)

		p, err := s.CreatePerson(ctx, "Alice", "", embA)
		require.NoError(t, err)

		clock.Set(base.Add(time.Hour))
		v, err := s.LogVisit(ctx, p.ID, 0.72, "a.jpg")
		require.NoError(t, err)
		assert.Equal(t, "Alice", v.PersonName)
		assert.InDelta(t, 0.72, v.Confidence, 1e-9)

		got, err := s.GetPerson(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.VisitCount)
		assert.True(t, got.LastSeen.Equal(base.Add(time.Hour)), "last_seen %v", got.LastSeen)
		assert.True(t, got.FirstSeen.Equal(base), "first_seen %v", got.FirstSeen)

		_, err = s.LogVisit(ctx, p.ID+100, 0.5, "x.jpg")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list visits newest first with filter", func(t *testing.T) {
		clock := newTestClock(base)
		s := newStore(t, clock.Now)

		alice, err := s.CreatePerson(ctx, "Alice", "", embA)
		require.NoError(t, err)
		bob, err := s.CreatePerson(ctx, "Bob", "", embB)
		require.NoError(t, err)

		for i, id := range []int64{alice.ID, bob.ID, alice.ID} {
			clock.Set(base.Add(time.Duration(i+1) * time.Minute))
			_, err := s.LogVisit(ctx, id, 0.6, "")
			require.NoError(t, err)
		}

		all, err := s.ListVisits(ctx, models.VisitFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "Alice", all[0].PersonName)
		assert.Equal(t, "Bob", all[1].PersonName)
		assert.True(t, all[0].Timestamp.After(all[1].Timestamp))

		limited, err := s.ListVisits(ctx, models.VisitFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		onlyBob, err := s.ListVisits(ctx, models.VisitFilter{PersonID: &bob.ID})
		require.NoError(t, err)
		require.Len(t, onlyBob, 1)
		assert.Equal(t, bob.ID, onlyBob[0].PersonID)
	})

	t.Run("delete removes only own visits", func(t *testing.T) {
		s := newStore(t, nil)

		alice, err := s.CreatePerson(ctx, "Alice", "", embA)
		require.NoError(t, err)
		bob, err := s.CreatePerson(ctx, "Bob", "", embB)
		require.NoError(t, err)
		for _, id := range []int64{alice.ID, alice.ID, bob.ID} {
			_, err := s.LogVisit(ctx, id, 0.5, "")
			require.NoError(t, err)
		}

		require.NoError(t, s.DeletePerson(ctx, alice.ID))
		require.ErrorIs(t, s.DeletePerson(ctx, alice.ID), ErrNotFound)

		visits, err := s.ListVisits(ctx, models.VisitFilter{})
		require.NoError(t, err)
		require.Len(t, visits, 1)
		assert.Equal(t, bob.ID, visits[0].PersonID)

		gone, err := s.GetPerson(ctx, alice.ID)
		require.NoError(t, err)
		assert.Nil(t, gone)
	})

	t.Run("promote sighting", func(t *testing.T) {
		s := newStore(t, nil)

		sg, err := s.LogSighting(ctx, "unknown.jpg")
		require.NoError(t, err)
		assert.False(t, sg.Identified)
		assert.Nil(t, sg.IdentifiedAs)

		p, err := s.PromoteSighting(ctx, sg.ID, "Dave", "courier", embB)
		require.NoError(t, err)
		assert.Equal(t, "Dave", p.Name)
		assert.InDeltaSlice(t, embB, p.Embedding, 1e-6)

		got, err := s.GetSighting(ctx, sg.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.Identified)
		require.NotNil(t, got.IdentifiedAs)
		assert.Equal(t, p.ID, *got.IdentifiedAs)

		_, err = s.PromoteSighting(ctx, sg.ID, "Dave2", "", embB)
		require.ErrorIs(t, err, ErrAlreadyResolved)

		_, err = s.PromoteSighting(ctx, sg.ID+100, "Eve", "", embB)
		require.ErrorIs(t, err, ErrNotFound)

		unresolved, err := s.ListSightings(ctx, 0, false)
		require.NoError(t, err)
		assert.Empty(t, unresolved)
		resolved, err := s.ListSightings(ctx, 0, true)
		require.NoError(t, err)
		assert.Len(t, resolved, 1)
	})

	t.Run("promote with taken name changes nothing", func(t *testing.T) {
		s := newStore(t, nil)

		_, err := s.CreatePerson(ctx, "Alice", "", embA)
		require.NoError(t, err)
		sg, err := s.LogSighting(ctx, "unknown.jpg")
		require.NoError(t, err)

		_, err = s.PromoteSighting(ctx, sg.ID, "Alice", "", embB)
		require.ErrorIs(t, err, ErrDuplicateName)

		got, err := s.GetSighting(ctx, sg.ID)
		require.NoError(t, err)
		assert.False(t, got.Identified)
		assert.Nil(t, got.IdentifiedAs)

		persons, err := s.ListPersons(ctx)
		require.NoError(t, err)
		assert.Len(t, persons, 1)
	})

	t.Run("deleting a promoted person reopens its sighting", func(t *testing.T) {
		s := newStore(t, nil)

		sg, err := s.LogSighting(ctx, "unknown.jpg")
		require.NoError(t, err)
		p, err := s.PromoteSighting(ctx, sg.ID, "Dave", "", embB)
		require.NoError(t, err)

		require.NoError(t, s.DeletePerson(ctx, p.ID))

		got, err := s.GetSighting(ctx, sg.ID)
		require.NoError(t, err)
		assert.False(t, got.Identified)
		assert.Nil(t, got.IdentifiedAs)
	})

	t.Run("stats", func(t *testing.T) {
		clock := newTestClock(base.Add(-10 * time.Hour)) // previous day, 23:00
		s := newStore(t, clock.Now)

		empty, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Nil(t, empty.MostFrequentVisitor.Name)
		assert.Equal(t, 0, empty.MostFrequentVisitor.Count)

		alice, err := s.CreatePerson(ctx, "Alice", "", embA)
		require.NoError(t, err)
		bob, err := s.CreatePerson(ctx, "Bob", "", embB)
		require.NoError(t, err)

		_, err = s.LogVisit(ctx, bob.ID, 0.5, "")
		require.NoError(t, err)

		clock.Set(base)
		_, err = s.LogVisit(ctx, alice.ID, 0.5, "")
		require.NoError(t, err)

		_, err = s.LogSighting(ctx, "u1.jpg")
		require.NoError(t, err)
		sg, err := s.LogSighting(ctx, "u2.jpg")
		require.NoError(t, err)
		_, err = s.PromoteSighting(ctx, sg.ID, "Carol", "", embA)
		require.NoError(t, err)

		clock.Set(base.Add(3 * time.Hour))
		st, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, st.TotalPersons)
		assert.Equal(t, 2, st.TotalVisits)
		assert.Equal(t, 1, st.UnknownVisitors)
		assert.Equal(t, 1, st.VisitsToday)
		// Alice and Bob tie on one visit; the lower id wins
		require.NotNil(t, st.MostFrequentVisitor.Name)
		assert.Equal(t, "Alice", *st.MostFrequentVisitor.Name)
		assert.Equal(t, 1, st.MostFrequentVisitor.Count)
	})

	t.Run("known faces", func(t *testing.T) {
		s := newStore(t, nil)

		alice, err := s.CreatePerson(ctx, "Alice", "", embA)
		require.NoError(t, err)
		_, err = s.CreatePerson(ctx, "Bob", "", embB)
		require.NoError(t, err)

		faces, err := s.KnownFaces(ctx)
		require.NoError(t, err)
		require.Len(t, faces, 2)
		assert.Equal(t, alice.ID, faces[0].PersonID)
		assert.InDeltaSlice(t, embA, faces[0].Embedding, 1e-6)
		assert.InDeltaSlice(t, embB, faces[1].Embedding, 1e-6)
	})
}
