package ticket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/guildkit/ticketd/internal/gateway"
	"github.com/guildkit/ticketd/internal/model"
	"github.com/guildkit/ticketd/internal/plugincfg"
	"github.com/guildkit/ticketd/internal/store"
)

// fakeStore is an in-memory store.Store. All methods are safe for
// concurrent use so tests can race opens and claims on purpose.
type fakeStore struct {
	mu          sync.Mutex
	counters    map[string]int64
	sessions    map[string]model.TicketSession
	transcripts map[string]model.Transcript
	upserts     int

	failNextNumber bool
	failSave       bool
	failUpsertN    int // fail the next N upserts
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		counters:    make(map[string]int64),
		sessions:    make(map[string]model.TicketSession),
		transcripts: make(map[string]model.Transcript),
	}
}

func skey(botID, guildID, threadID string) string {
	return botID + "/" + guildID + "/" + threadID
}

func (f *fakeStore) NextTicketNumber(_ context.Context, botID, guildID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNextNumber {
		return 0, errors.New("counter unavailable")
	}
	key := botID + "/" + guildID
	f.counters[key]++
	return f.counters[key], nil
}

func (f *fakeStore) CreateSession(_ context.Context, s *model.TicketSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := skey(s.BotID, s.GuildID, s.ThreadID)
	if _, ok := f.sessions[key]; ok {
		return store.ErrDuplicateSession
	}
	s.ID = uint64(len(f.sessions) + 1)
	f.sessions[key] = *s
	return nil
}

func (f *fakeStore) SessionByThread(_ context.Context, botID, guildID, threadID string) (*model.TicketSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[skey(botID, guildID, threadID)]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	copied := s
	return &copied, nil
}

func (f *fakeStore) SaveSession(_ context.Context, s *model.TicketSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errors.New("save failed")
	}
	f.sessions[skey(s.BotID, s.GuildID, s.ThreadID)] = *s
	return nil
}

func (f *fakeStore) LatestSessionByOpener(_ context.Context, botID, guildID, userID string) (*model.TicketSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *model.TicketSession
	for key := range f.sessions {
		s := f.sessions[key]
		if s.BotID != botID || s.GuildID != guildID || s.OpenedBy != userID {
			continue
		}
		if latest == nil || s.OpenTime.After(latest.OpenTime) {
			copied := s
			latest = &copied
		}
	}
	if latest == nil {
		return nil, store.ErrSessionNotFound
	}
	return latest, nil
}

func (f *fakeStore) ListActiveSessions(_ context.Context, botID string) ([]model.TicketSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.TicketSession
	for key := range f.sessions {
		s := f.sessions[key]
		if s.BotID == botID && s.Status != model.SessionClosed {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListSessions(_ context.Context, botID, guildID string, status model.SessionStatus, limit, offset int) ([]model.TicketSession, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.TicketSession
	for key := range f.sessions {
		s := f.sessions[key]
		if s.BotID != botID {
			continue
		}
		if guildID != "" && s.GuildID != guildID {
			continue
		}
		if status != "" && s.Status != status {
			continue
		}
		out = append(out, s)
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) UpsertTranscript(_ context.Context, t *model.Transcript) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpsertN > 0 {
		f.failUpsertN--
		return errors.New("upsert failed")
	}
	f.upserts++
	f.transcripts[skey(t.BotID, t.GuildID, t.ThreadID)] = *t
	return nil
}

func (f *fakeStore) TranscriptByThread(_ context.Context, botID, guildID, threadID string) (*model.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transcripts[skey(botID, guildID, threadID)]
	if !ok {
		return nil, store.ErrTranscriptNotFound
	}
	copied := t
	return &copied, nil
}

func (f *fakeStore) transcriptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transcripts)
}

type sentMessage struct {
	ID       string
	Channel  string
	Content  string
	Buttons  []gateway.Button
	Deleted  bool
	Edited   bool
	ToUserDM string
}

// fakeGateway records every platform call and serves message history pages
// the way the real platform does: newest first, paged backward by cursor.
type fakeGateway struct {
	mu       sync.Mutex
	seq      int
	threads  []string
	members  map[string][]string
	messages []sentMessage
	closed   []string
	history  map[string][]gateway.Message // chronological

	missingMessages map[string]bool // message id -> respond 404
	failPagesN      int             // fail the next N history fetches
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		members:         make(map[string][]string),
		history:         make(map[string][]gateway.Message),
		missingMessages: make(map[string]bool),
	}
}

func (g *fakeGateway) nextID(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s%d", prefix, g.seq)
}

func (g *fakeGateway) CreateTicketThread(_ context.Context, parentChannelID, name string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID("thread-")
	g.threads = append(g.threads, name)
	return id, nil
}

func (g *fakeGateway) AddThreadMember(_ context.Context, threadID, userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members[threadID] = append(g.members[threadID], userID)
	return nil
}

func (g *fakeGateway) SendMessage(_ context.Context, channelID, content string, buttons []gateway.Button) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID("msg-")
	g.messages = append(g.messages, sentMessage{ID: id, Channel: channelID, Content: content, Buttons: buttons})
	g.history[channelID] = append(g.history[channelID], gateway.Message{
		ID:      id,
		Author:  gateway.Author{ID: "bot", DisplayName: "ticketd", Bot: true},
		Content: content,
	})
	return id, nil
}

func (g *fakeGateway) EditMessage(_ context.Context, channelID, messageID, content string, buttons []gateway.Button) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.missingMessages[messageID] {
		return gateway.ErrNotFound
	}
	for idx := range g.messages {
		if g.messages[idx].ID == messageID {
			g.messages[idx].Content = content
			g.messages[idx].Buttons = buttons
			g.messages[idx].Edited = true
			return nil
		}
	}
	return gateway.ErrNotFound
}

func (g *fakeGateway) DeleteMessage(_ context.Context, channelID, messageID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.missingMessages[messageID] {
		return gateway.ErrNotFound
	}
	for idx := range g.messages {
		if g.messages[idx].ID == messageID {
			g.messages[idx].Deleted = true
			return nil
		}
	}
	return gateway.ErrNotFound
}

func (g *fakeGateway) SendDirectMessage(_ context.Context, userID, content string, buttons []gateway.Button) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID("dm-")
	g.messages = append(g.messages, sentMessage{ID: id, Content: content, Buttons: buttons, ToUserDM: userID})
	return id, nil
}

func (g *fakeGateway) CloseThread(_ context.Context, threadID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = append(g.closed, threadID)
	return nil
}

func (g *fakeGateway) MessagesBefore(_ context.Context, channelID, beforeID string, limit int) ([]gateway.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failPagesN > 0 {
		g.failPagesN--
		return nil, errors.New("rate limited")
	}
	msgs := g.history[channelID]
	end := len(msgs)
	if beforeID != "" {
		for idx := range msgs {
			if msgs[idx].ID == beforeID {
				end = idx
				break
			}
		}
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	page := make([]gateway.Message, 0, end-start)
	for idx := end - 1; idx >= start; idx-- {
		page = append(page, msgs[idx])
	}
	return page, nil
}

func (g *fakeGateway) lastMessageIn(channelID string) *sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	for idx := len(g.messages) - 1; idx >= 0; idx-- {
		if g.messages[idx].Channel == channelID {
			copied := g.messages[idx]
			return &copied
		}
	}
	return nil
}

func (g *fakeGateway) messageByID(id string) *sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	for idx := range g.messages {
		if g.messages[idx].ID == id {
			copied := g.messages[idx]
			return &copied
		}
	}
	return nil
}

func (g *fakeGateway) dmTo(userID string) *sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	for idx := range g.messages {
		if g.messages[idx].ToUserDM == userID {
			copied := g.messages[idx]
			return &copied
		}
	}
	return nil
}

type fakeConfigStore struct {
	configs map[string]*plugincfg.TicketConfig
}

func (f *fakeConfigStore) Guild(_ context.Context, botID, guildID string) (*plugincfg.TicketConfig, error) {
	cfg, ok := f.configs[guildID]
	if !ok {
		return nil, plugincfg.ErrNotConfigured
	}
	return cfg, nil
}

// testEnv bundles the fakes behind a controller with a controllable clock.
type testEnv struct {
	store *fakeStore
	gw    *fakeGateway
	cfg   *fakeConfigStore
	ctrl  *Controller
	now   time.Time
}

const (
	testBotID   = "bot-1"
	testGuildID = "guild-1"
)

func userMsg(id, authorID, content string) gateway.Message {
	return gateway.Message{
		ID:      id,
		Author:  gateway.Author{ID: authorID, DisplayName: authorID},
		Content: content,
	}
}

func staffActor(id string) Actor {
	return Actor{ID: id, DisplayName: id, Roles: []string{"mods"}}
}

func memberActor(id string) Actor {
	return Actor{ID: id, DisplayName: id, Roles: []string{"member"}}
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store: newFakeStore(),
		gw:    newFakeGateway(),
		now:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	env.cfg = &fakeConfigStore{configs: map[string]*plugincfg.TicketConfig{
		testGuildID: {
			BotID:               testBotID,
			GuildID:             testGuildID,
			Enabled:             true,
			PanelChannelID:      "panel",
			AdminChannelID:      "admin",
			TranscriptChannelID: "transcripts",
			ModsRoleIDs:         []string{"mods"},
		},
	}}
	compiler := NewTranscriptCompiler(env.gw, env.store, nil)
	env.ctrl = NewController(Deps{
		BotID:       testBotID,
		Store:       env.store,
		Config:      env.cfg,
		Gateway:     env.gw,
		Cards:       NewAdminCardSync(env.gw),
		Transcripts: compiler,
		Now:         func() time.Time { return env.now },
	})
	return env
}
