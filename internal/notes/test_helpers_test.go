package notes

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/collab/internal/team"
)

const testCustomerEmail = "acme@example.com"

type directoryRoster struct {
	directory *team.Directory
}

func (r directoryRoster) Member(memberID string) (team.Member, bool) {
	return r.directory.Get(memberID)
}

func (r directoryRoster) ResolveMentions(content string) []string {
	return r.directory.ResolveMentions(content)
}

func newTestRoster() directoryRoster {
	return directoryRoster{directory: team.NewDirectory([]team.Member{
		{ID: "1", Name: "Sarah Johnson", Role: team.RoleAdmin, Status: team.StatusOnline},
		{ID: "2", Name: "Mike Chen", Role: team.RoleAgent, Status: team.StatusAway},
		{ID: "3", Name: "Emma Davis", Role: team.RoleAgent, Status: team.StatusOnline},
	})}
}

type sequentialIDs struct {
	mu   sync.Mutex
	next int
}

func (s *sequentialIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("id-%03d", s.next), nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Emit(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) kinds() []EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]EventKind, 0, len(s.events))
	for _, event := range s.events {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

type steppingClock struct {
	mu      sync.Mutex
	current time.Time
}

func newSteppingClock() *steppingClock {
	return &steppingClock{current: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(time.Second)
	return c.current
}

func newTestBoard(t *testing.T, sink EventSink, storage Storage) *Board {
	t.Helper()
	board, err := NewBoard(BoardConfig{
		CustomerEmail: testCustomerEmail,
		Roster:        newTestRoster(),
		Events:        sink,
		Storage:       storage,
		Clock:         newSteppingClock().Now,
		IDs:           &sequentialIDs{},
	})
	if err != nil {
		t.Fatalf("failed to construct board: %v", err)
	}
	return board
}
