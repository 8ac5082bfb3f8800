package livesession_test

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"emotrack/internal/emotion"
	"emotrack/internal/livesession"
	"emotrack/internal/services"
	"emotrack/internal/testsupport"
)

func TestRegistryRequiresCollaborators(t *testing.T) {
	if _, err := livesession.NewRegistry(livesession.Options{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	h := newHarness(t, livesession.Config{})
	if _, err := h.registry.Get("missing"); !errors.Is(err, services.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := h.registry.Ingest("missing", testsupport.Frame(8, 8), nil, nil); !errors.Is(err, services.ErrSessionNotFound) {
		t.Fatalf("expected not found on ingest, got %v", err)
	}
}

func TestCreateGeneratesDistinctIDs(t *testing.T) {
	h := newHarness(t, livesession.Config{})
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := h.registry.Create(1, "webcam", livesession.Config{}).ID()
		if len(id) != 32 {
			t.Fatalf("expected 32-char hex id, got %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
	if h.registry.Len() != 50 {
		t.Fatalf("expected 50 sessions, got %d", h.registry.Len())
	}
}

func TestCreateRetriesOnCollision(t *testing.T) {
	ids := []string{"dup", "dup", "fresh"}
	var next int32
	h := newHarness(t, livesession.Config{})
	registry, err := livesession.NewRegistry(livesession.Options{
		Store:          h.store,
		NewVideoWriter: h.videos.Open,
		NewID: func() string {
			i := atomic.AddInt32(&next, 1) - 1
			return ids[i]
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	a := registry.Create(1, "webcam", livesession.Config{})
	b := registry.Create(1, "webcam", livesession.Config{})
	if a.ID() != "dup" || b.ID() != "fresh" {
		t.Fatalf("unexpected ids %s %s", a.ID(), b.ID())
	}
}

func TestDoubleStopFinalizesOnce(t *testing.T) {
	h := newHarness(t, livesession.Config{})
	session := h.registry.Create(1, "webcam", livesession.Config{})
	if _, err := session.Ingest(testsupport.Frame(16, 16), testsupport.FaceSummary(emotion.Happy, 0.9), nil); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	first, err := h.registry.Stop(session.ID())
	if err != nil || first == nil {
		t.Fatalf("first stop: %v", err)
	}
	second, err := h.registry.Stop(session.ID())
	if !errors.Is(err, services.ErrSessionNotFound) || second != nil {
		t.Fatalf("expected not found on second stop, got %v %v", second, err)
	}
}

func TestConcurrentStopHasOneWinner(t *testing.T) {
	h := newHarness(t, livesession.Config{})
	session := h.registry.Create(1, "webcam", livesession.Config{})

	const callers = 16
	var (
		wg       sync.WaitGroup
		wins     atomic.Int32
		notFound atomic.Int32
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			summary, err := h.registry.Stop(session.ID())
			switch {
			case err == nil && summary != nil:
				wins.Add(1)
			case errors.Is(err, services.ErrSessionNotFound):
				notFound.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 || notFound.Load() != callers-1 {
		t.Fatalf("expected 1 winner and %d not found, got %d/%d", callers-1, wins.Load(), notFound.Load())
	}
}

func TestParallelSessionsDoNotInterfere(t *testing.T) {
	h := newHarness(t, livesession.Config{SnapshotInterval: time.Hour})
	labels := []emotion.Label{emotion.Happy, emotion.Sad, emotion.Angry, emotion.Fear}
	sessions := make([]*livesession.Session, len(labels))
	for i := range labels {
		sessions[i] = h.registry.Create(int64(i), fmt.Sprintf("cam-%d", i), livesession.Config{})
	}

	const perSession = 40
	var wg sync.WaitGroup
	errs := make(chan error, len(labels)*perSession)
	for i, label := range labels {
		wg.Add(1)
		go func(id string, label emotion.Label) {
			defer wg.Done()
			for n := 0; n < perSession; n++ {
				if _, err := h.registry.Ingest(id, testsupport.Frame(16, 16), testsupport.FaceSummary(label, 0.5), nil); err != nil {
					errs <- err
					return
				}
			}
		}(sessions[i].ID(), label)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("ingest: %v", err)
	}

	for i, label := range labels {
		summary, err := h.registry.Stop(sessions[i].ID())
		if err != nil {
			t.Fatalf("stop: %v", err)
		}
		if summary.Counts.Len() != 1 || summary.Counts.Get(label) != perSession {
			t.Fatalf("session %d saw foreign counts: %v", i, summary.Counts.Map())
		}
		if summary.FrameCount != perSession {
			t.Fatalf("session %d frame count %d", i, summary.FrameCount)
		}
		// each session took its own first snapshot despite the long interval
		if _, ok := summary.SnapshotPaths[label]; !ok {
			t.Fatalf("session %d missing snapshot", i)
		}
	}
	if h.videos.Opened() != len(labels) {
		t.Fatalf("expected one writer per session, got %d", h.videos.Opened())
	}
}

func TestListOrdersByStart(t *testing.T) {
	h := newHarness(t, livesession.Config{})
	a := h.registry.Create(1, "webcam", livesession.Config{})
	h.clock.Advance(time.Second)
	b := h.registry.Create(2, "webcam", livesession.Config{})

	infos := h.registry.List()
	if len(infos) != 2 || infos[0].SessionID != a.ID() || infos[1].SessionID != b.ID() {
		t.Fatalf("unexpected listing %+v", infos)
	}
}

func TestReapEvictsIdleSessions(t *testing.T) {
	h := newHarness(t, livesession.Config{IdleTimeout: time.Minute})
	idle := h.registry.Create(1, "webcam", livesession.Config{})
	active := h.registry.Create(2, "webcam", livesession.Config{})
	pinned := h.registry.Create(3, "webcam", livesession.Config{IdleTimeout: -1})

	if _, err := idle.Ingest(testsupport.Frame(16, 16), testsupport.FaceSummary(emotion.Neutral, 0.6), nil); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	h.clock.Advance(45 * time.Second)
	if _, err := active.Ingest(testsupport.Frame(16, 16), nil, nil); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	h.clock.Advance(30 * time.Second)

	evicted := h.registry.Reap(h.clock.Now())
	if len(evicted) != 1 || evicted[0].SessionID != idle.ID() {
		t.Fatalf("expected only the idle session evicted, got %d", len(evicted))
	}
	if !evicted[0].Evicted || evicted[0].Counts.Get(emotion.Neutral) != 1 {
		t.Fatalf("unexpected evicted summary %+v", evicted[0])
	}
	if _, err := h.registry.Get(idle.ID()); !errors.Is(err, services.ErrSessionNotFound) {
		t.Fatal("evicted session still registered")
	}
	for _, s := range []*livesession.Session{active, pinned} {
		if _, err := h.registry.Get(s.ID()); err != nil {
			t.Fatalf("session %s should remain: %v", s.ID(), err)
		}
	}
	if !h.videos.Writers[0].Closed() {
		t.Fatal("expected evicted session stream closed")
	}
}

func TestDrainFinalizesEverything(t *testing.T) {
	h := newHarness(t, livesession.Config{})
	h.registry.Create(1, "webcam", livesession.Config{})
	h.registry.Create(2, "webcam", livesession.Config{})

	summaries := h.registry.Drain()
	if len(summaries) != 2 || h.registry.Len() != 0 {
		t.Fatalf("expected 2 drained sessions and empty registry, got %d/%d", len(summaries), h.registry.Len())
	}
}
