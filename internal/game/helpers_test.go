package game

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Seednode/escaperoom/internal/catalog"
	"github.com/Seednode/escaperoom/internal/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type emitted struct {
	to      string
	room    string
	except  string
	event   string
	payload any
}

type fakeTransport struct {
	mu       sync.Mutex
	sent     []emitted
	channels map[string]map[string]bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{channels: make(map[string]map[string]bool)}
}

func (f *fakeTransport) JoinChannel(id, room string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.channels[room] == nil {
		f.channels[room] = make(map[string]bool)
	}
	f.channels[room][id] = true
}

func (f *fakeTransport) LeaveChannel(id, room string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.channels[room], id)
}

func (f *fakeTransport) EmitToParticipant(id, event string, payload any) {
	f.record(emitted{to: id, event: event, payload: payload})
}

func (f *fakeTransport) EmitToRoom(room, event string, payload any) {
	f.record(emitted{room: room, event: event, payload: payload})
}

func (f *fakeTransport) EmitToRoomExcept(room, except, event string, payload any) {
	f.record(emitted{room: room, except: except, event: event, payload: payload})
}

func (f *fakeTransport) record(e emitted) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, e)
}

func (f *fakeTransport) events(event string) []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []emitted
	for _, e := range f.sent {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeTransport) last(t *testing.T, event string) emitted {
	t.Helper()

	all := f.events(event)
	require.NotEmpty(t, all, "no %s event sent", event)
	return all[len(all)-1]
}

func (f *fakeTransport) toParticipant(id, event string) []emitted {
	var out []emitted
	for _, e := range f.events(event) {
		if e.to == id {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeTransport) inChannel(room, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.channels[room][id]
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = nil
}

type memStore struct {
	mu         sync.Mutex
	records    map[string]session.Record
	ratings    []session.Rating
	failUpdate error
	updates    int
}

func newMemStore(records ...session.Record) *memStore {
	s := &memStore{records: make(map[string]session.Record)}
	for _, r := range records {
		s.records[r.Key] = r
	}
	return s
}

func (s *memStore) FindSessionByKey(_ context.Context, key string) (session.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[key]
	if !ok {
		return session.Record{}, session.ErrNotFound
	}
	return r, nil
}

func (s *memStore) UpdateSession(_ context.Context, key string, update session.Update) (session.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failUpdate != nil {
		return session.Record{}, s.failUpdate
	}
	r, ok := s.records[key]
	if !ok {
		return session.Record{}, session.ErrNotFound
	}
	r = update.Apply(r)
	s.records[key] = r
	s.updates++
	return r, nil
}

func (s *memStore) CreateRating(_ context.Context, rating session.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rating.Stars < 0 || rating.Stars > 5 {
		return fmt.Errorf("%w: stars must be between 0 and 5", session.ErrInvalid)
	}
	if _, ok := s.records[rating.SessionKey]; !ok {
		return session.ErrNotFound
	}
	s.ratings = append(s.ratings, rating)
	return nil
}

func (s *memStore) get(key string) session.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.records[key]
}

func (s *memStore) setFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failUpdate = err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	return c.now
}

// distinctCards returns n cards that share no compared attribute.
func distinctCards(n int) []catalog.Card {
	cards := make([]catalog.Card, n)
	for i := range cards {
		v := strconv.Itoa(i)
		cards[i] = catalog.Card{
			Key:            fmt.Sprintf("c%02d", i),
			FirstName:      "First" + v,
			LastName:       "Last" + v,
			ArrivalYear:    strconv.Itoa(1990 + i),
			Department:     "dept" + v,
			Astrology:      "sign" + v,
			Music:          "music" + v,
			Film:           "film" + v,
			SundayActivity: "sunday" + v,
			Holiday:        "holiday" + v,
			Pet:            "pet" + v,
			CompanyValue:   "value" + v,
		}
	}
	return cards
}

func newCatalog(t *testing.T, cards []catalog.Card) *catalog.Catalog {
	t.Helper()

	c, err := catalog.New(cards)
	require.NoError(t, err)
	return c
}

const testKey = "room-1"

type harness struct {
	reg       *Registry
	engine    *Engine
	transport *fakeTransport
	store     *memStore
	clock     *fakeClock
	catalog   *catalog.Catalog
}

type harnessOption func(*Options, *session.Record)

func withCards(cards []catalog.Card) harnessOption {
	return func(o *Options, _ *session.Record) {
		c, _ := catalog.New(cards)
		o.Catalog = c
	}
}

func withMode(m session.Mode) harnessOption {
	return func(_ *Options, r *session.Record) { r.Mode = m }
}

func withPhase(p Phase) harnessOption {
	return func(_ *Options, r *session.Record) { r.Phase = string(p) }
}

func withCodes(codes ...string) harnessOption {
	return func(o *Options, _ *session.Record) { o.EscapeCodes = codes }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	record := session.Record{
		Key:            testKey,
		Name:           "test",
		Mode:           session.ModeCollaborators,
		Open:           true,
		Phase:          string(PhaseLobby),
		PhaseStartedAt: clock.Now(),
	}
	o := Options{
		Catalog: newCatalog(t, distinctCards(40)),
		Now:     clock.Now,
		Logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o, &record)
	}

	store := newMemStore(record)
	transport := newFakeTransport()
	o.Store = store
	o.Transport = transport
	o.Selector = NewSelector(o.Catalog, rand.NewPCG(1, 2))

	reg := NewRegistry(o)
	return &harness{
		reg:       reg,
		engine:    NewEngine(reg, time.Second, zerolog.Nop()),
		transport: transport,
		store:     store,
		clock:     clock,
		catalog:   o.Catalog,
	}
}

func (h *harness) join(t *testing.T, ids ...string) {
	t.Helper()

	for _, id := range ids {
		_, _, err := h.reg.Join(context.Background(), h.store.get(testKey), Participant{ID: id})
		require.NoError(t, err)
	}
}

func (h *harness) view(t *testing.T) RoomView {
	t.Helper()

	v, err := h.reg.View(context.Background(), testKey)
	require.NoError(t, err)
	return v
}

// tick advances the clock, ticks every room and waits for the ticks to run.
func (h *harness) tick(t *testing.T, d time.Duration) {
	t.Helper()

	now := h.clock.Advance(d)
	h.engine.Tick(context.Background(), now)
	if h.reg.Len() > 0 {
		h.view(t)
	}
}

func (h *harness) propose(id string, p Proposal) error {
	return h.reg.Propose(context.Background(), testKey, id, p)
}

func (h *harness) vote(id string, agree bool) error {
	return h.reg.CastVote(context.Background(), testKey, id, agree)
}
