package server

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/collab/internal/realtime"
	"github.com/MarcoPoloResearchLab/collab/internal/team"
	"github.com/gorilla/websocket"
)

func TestRealtimeStreamEmitsNoteChangeEvents(t *testing.T) {
	env := newTestEnvironment(t)
	server := httptest.NewServer(env.handler)
	t.Cleanup(server.Close)

	token := env.token(t, "1", "Sarah Johnson")
	streamRequest, err := http.NewRequest(http.MethodGet, server.URL+"/api/realtime/stream?customer_email=acme@example.com&access_token="+token, http.NoBody)
	if err != nil {
		t.Fatalf("failed to construct stream request: %v", err)
	}
	streamResp, err := http.DefaultClient.Do(streamRequest)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	t.Cleanup(func() {
		_ = streamResp.Body.Close()
	})
	if streamResp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected stream status: %d", streamResp.StatusCode)
	}
	if contentType := streamResp.Header.Get("Content-Type"); !strings.HasPrefix(contentType, "text/event-stream") {
		t.Fatalf("unexpected content type: %s", contentType)
	}

	noteRequest, err := http.NewRequest(http.MethodPost, server.URL+notesPath, strings.NewReader(`{"content":"Follow up on invoice"}`))
	if err != nil {
		t.Fatalf("failed to construct note request: %v", err)
	}
	noteRequest.Header.Set("Authorization", "Bearer "+token)
	noteRequest.Header.Set("Content-Type", "application/json")
	noteResp, err := http.DefaultClient.Do(noteRequest)
	if err != nil {
		t.Fatalf("note request failed: %v", err)
	}
	var created mutationResponse
	if err := json.NewDecoder(noteResp.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode note response: %v", err)
	}
	_ = noteResp.Body.Close()
	if noteResp.StatusCode != http.StatusCreated || created.Note == nil {
		t.Fatalf("unexpected note response: %d %+v", noteResp.StatusCode, created)
	}

	streamReader := bufio.NewReader(streamResp.Body)
	seen := map[string]realtime.Message{}
	currentEventType := ""
	deadline := time.After(5 * time.Second)
	type readResult struct {
		line string
		err  error
	}
	for len(seen) < 2 {
		resultCh := make(chan readResult, 1)
		go func() {
			line, err := streamReader.ReadString('\n')
			resultCh <- readResult{line: line, err: err}
		}()
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for realtime events, saw %v", seen)
		case res := <-resultCh:
			if res.err != nil {
				t.Fatalf("failed to read stream: %v", res.err)
			}
			line := strings.TrimSpace(res.line)
			if strings.HasPrefix(line, "event:") {
				currentEventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
				continue
			}
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			if currentEventType != realtime.EventNoteChanged && currentEventType != realtime.EventActivityAdded {
				continue
			}
			var message realtime.Message
			if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &message); err != nil {
				t.Fatalf("failed to decode event payload: %v", err)
			}
			seen[currentEventType] = message
		}
	}

	noteChange := seen[realtime.EventNoteChanged]
	if len(noteChange.NoteIDs) != 1 || noteChange.NoteIDs[0] != created.Note.ID {
		t.Fatalf("unexpected note identifiers: %#v", noteChange.NoteIDs)
	}
	if noteChange.CustomerEmail != testCustomerEmail {
		t.Fatalf("unexpected customer: %s", noteChange.CustomerEmail)
	}
	if seen[realtime.EventActivityAdded].ActivityID == "" {
		t.Fatalf("expected activity id on activity event")
	}
}

func TestRealtimeStreamRejectsInvalidCustomer(t *testing.T) {
	env := newTestEnvironment(t)

	recorder := env.do(t, "1", http.MethodGet, "/api/realtime/stream?customer_email=nobody", "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, recorder.Code)
	}
}

func TestRealtimeSocketDeliversActivitiesAndAcceptsStatus(t *testing.T) {
	env := newTestEnvironment(t)
	server := httptest.NewServer(env.handler)
	t.Cleanup(server.Close)

	token := env.token(t, "2", "Mike Chen")
	socketURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/realtime/ws?access_token=" + token
	conn, response, err := websocket.DefaultDialer.Dial(socketURL, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	if response.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("unexpected upgrade status: %d", response.StatusCode)
	}

	waitFor := func(eventType string) realtime.Message {
		t.Helper()
		if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
			t.Fatalf("failed to set read deadline: %v", err)
		}
		for {
			var message realtime.Message
			if err := conn.ReadJSON(&message); err != nil {
				t.Fatalf("failed to read %s message: %v", eventType, err)
			}
			if message.EventType == eventType {
				return message
			}
		}
	}

	// The handler subscribes after the upgrade completes.
	deadline := time.Now().Add(5 * time.Second)
	for env.broker.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("websocket never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := conn.WriteJSON(socketCommand{Action: socketActionStatus, Status: "busy"}); err != nil {
		t.Fatalf("failed to send status command: %v", err)
	}
	statusMessage := waitFor(realtime.EventMemberStatus)
	if statusMessage.MemberID != "2" || statusMessage.Status != string(team.StatusBusy) {
		t.Fatalf("unexpected status message: %+v", statusMessage)
	}

	recorder := env.do(t, "1", http.MethodPost, "/api/team/activities", `{"type":"mention","content":"ping"}`)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("unexpected activity status: %d", recorder.Code)
	}
	activityMessage := waitFor(realtime.EventActivityAdded)
	if activityMessage.ActivityID == "" || activityMessage.MemberID != "1" {
		t.Fatalf("unexpected activity message: %+v", activityMessage)
	}
}
