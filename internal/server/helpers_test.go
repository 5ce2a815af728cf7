package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/collab/internal/activity"
	"github.com/MarcoPoloResearchLab/collab/internal/auth"
	"github.com/MarcoPoloResearchLab/collab/internal/collab"
	"github.com/MarcoPoloResearchLab/collab/internal/notes"
	"github.com/MarcoPoloResearchLab/collab/internal/realtime"
	"github.com/MarcoPoloResearchLab/collab/internal/team"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	testSigningSecret = "server-test-secret"
	testCookieName    = "collab_session"
	testCustomerEmail = "acme@example.com"
)

type staticSource struct {
	members    []team.Member
	activities []activity.Activity
}

func (s staticSource) FetchMembers(context.Context) ([]team.Member, error) {
	return s.members, nil
}

func (s staticSource) FetchActivities(context.Context, int) ([]activity.Activity, error) {
	return s.activities, nil
}

// claimsResolver trusts the claims, the way a freshly provisioned roster would.
type claimsResolver struct {
	err error
}

func (r claimsResolver) ResolveMember(_ context.Context, claims auth.SessionClaims) (team.Member, error) {
	if r.err != nil {
		return team.Member{}, r.err
	}
	return team.Member{
		ID:     claims.MemberID,
		Name:   claims.MemberName,
		Email:  claims.MemberEmail,
		Role:   team.RoleAgent,
		Status: team.StatusOnline,
	}, nil
}

type testEnvironment struct {
	handler http.Handler
	store   *collab.Store
	boards  *notes.Registry
	broker  *realtime.Dispatcher
	issuer  *auth.SessionIssuer
}

func seededMembers() []team.Member {
	return []team.Member{
		{ID: "1", Name: "Sarah Johnson", Email: "sarah@example.com", Role: team.RoleAdmin, Status: team.StatusOnline},
		{ID: "2", Name: "Mike Chen", Email: "mike@example.com", Role: team.RoleAgent, Status: team.StatusAway},
		{ID: "3", Name: "Emma Davis", Email: "emma@example.com", Role: team.RoleAgent, Status: team.StatusOffline},
	}
}

func newTestEnvironment(t *testing.T) *testEnvironment {
	t.Helper()
	gin.SetMode(gin.TestMode)

	broker := realtime.NewDispatcher()
	store := collab.NewStore(collab.StoreConfig{
		Source: staticSource{members: seededMembers()},
		Broker: broker,
		Logger: zap.NewNop(),
	})
	store.Load(context.Background())

	boards, err := notes.NewRegistry(notes.RegistryConfig{
		Roster: store,
		Events: collab.NewNoteActivityBridge(store),
		Logger: zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to construct note registry: %v", err)
	}

	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		CookieName:    testCookieName,
	})
	if err != nil {
		t.Fatalf("failed to construct session validator: %v", err)
	}
	issuer, err := auth.NewSessionIssuer(auth.SessionIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		TTL:           time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to construct session issuer: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		SessionValidator:  validator,
		Members:           claimsResolver{},
		Store:             store,
		Boards:            boards,
		Broker:            broker,
		Logger:            zap.NewNop(),
		AllowedOrigins:    []string{"*"},
		HeartbeatInterval: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}

	return &testEnvironment{
		handler: handler,
		store:   store,
		boards:  boards,
		broker:  broker,
		issuer:  issuer,
	}
}

func (env *testEnvironment) token(t *testing.T, memberID string, name string) string {
	t.Helper()
	token, _, err := env.issuer.Issue(auth.SessionClaims{MemberID: memberID, MemberName: name})
	if err != nil {
		t.Fatalf("failed to issue session token: %v", err)
	}
	return token
}

// do sends an authenticated request as memberID and returns the recorder.
func (env *testEnvironment) do(t *testing.T, memberID string, method string, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	if memberID != "" {
		request.Header.Set("Authorization", "Bearer "+env.token(t, memberID, "Member "+memberID))
	}
	recorder := httptest.NewRecorder()
	env.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}
