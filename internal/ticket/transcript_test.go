package ticket

import (
	"context"
	"fmt"
	"testing"

	"github.com/guildkit/ticketd/internal/gateway"
)

func seedThread(gw *fakeGateway, threadID string, n int) {
	for i := 1; i <= n; i++ {
		gw.history[threadID] = append(gw.history[threadID],
			userMsg(fmt.Sprintf("m%d", i), "alice", fmt.Sprintf("message %d", i)))
	}
}

func TestCompileIsChronologicalAcrossPageSizes(t *testing.T) {
	for _, pageSize := range []int{100, 30, 7} {
		t.Run(fmt.Sprintf("page_size_%d", pageSize), func(t *testing.T) {
			gw := newFakeGateway()
			seedThread(gw, "thread-x", 250)
			compiler := NewTranscriptCompiler(gw, newFakeStore(), nil)
			compiler.pageSize = pageSize

			msgs, err := compiler.Compile(context.Background(), "thread-x")
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			if len(msgs) != 250 {
				t.Fatalf("compiled %d messages, want 250", len(msgs))
			}
			for i, m := range msgs {
				if want := fmt.Sprintf("message %d", i+1); m.Content != want {
					t.Fatalf("msgs[%d].Content = %q, want %q", i, m.Content, want)
				}
			}
		})
	}
}

func TestCompileDropsBotMessages(t *testing.T) {
	gw := newFakeGateway()
	gw.history["thread-x"] = []gateway.Message{
		{ID: "m1", Author: gateway.Author{ID: "bot", Bot: true}, Content: "welcome"},
		userMsg("m2", "alice", "hello"),
		{ID: "m3", Author: gateway.Author{ID: "bot", Bot: true}, Content: "closing"},
		userMsg("m4", "staffA", "resolved"),
	}
	compiler := NewTranscriptCompiler(gw, newFakeStore(), nil)

	msgs, err := compiler.Compile(context.Background(), "thread-x")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "hello" || msgs[1].Content != "resolved" {
		t.Fatalf("unexpected transcript: %+v", msgs)
	}
}

func TestCompileEmptyThread(t *testing.T) {
	gw := newFakeGateway()
	compiler := NewTranscriptCompiler(gw, newFakeStore(), nil)

	msgs, err := compiler.Compile(context.Background(), "thread-empty")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("compiled %d messages from empty thread", len(msgs))
	}
}

func TestCompileTruncatesRunawayThreads(t *testing.T) {
	gw := newFakeGateway()
	seedThread(gw, "thread-x", 210)
	compiler := NewTranscriptCompiler(gw, newFakeStore(), nil)
	compiler.pageSize = 1

	msgs, err := compiler.Compile(context.Background(), "thread-x")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(msgs) != maxHistoryPages {
		t.Fatalf("compiled %d messages, want cap of %d", len(msgs), maxHistoryPages)
	}
	// Pagination walks backward from the newest message, so the oldest
	// messages are what the cap drops.
	if msgs[0].Content != "message 11" || msgs[len(msgs)-1].Content != "message 210" {
		t.Fatalf("truncated window = %q..%q", msgs[0].Content, msgs[len(msgs)-1].Content)
	}
}

func TestFetchPageRetriesOnce(t *testing.T) {
	gw := newFakeGateway()
	seedThread(gw, "thread-x", 5)
	compiler := NewTranscriptCompiler(gw, newFakeStore(), nil)

	gw.failPagesN = 1
	msgs, err := compiler.Compile(context.Background(), "thread-x")
	if err != nil {
		t.Fatalf("compile with one transient failure: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("compiled %d messages, want 5", len(msgs))
	}

	gw2 := newFakeGateway()
	seedThread(gw2, "thread-x", 5)
	gw2.failPagesN = 2
	compiler2 := NewTranscriptCompiler(gw2, newFakeStore(), nil)
	if _, err := compiler2.Compile(context.Background(), "thread-x"); err == nil {
		t.Fatal("expected error when both attempts fail")
	}
}
