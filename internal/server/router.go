package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/collab/internal/auth"
	"github.com/MarcoPoloResearchLab/collab/internal/collab"
	"github.com/MarcoPoloResearchLab/collab/internal/logging"
	"github.com/MarcoPoloResearchLab/collab/internal/metrics"
	"github.com/MarcoPoloResearchLab/collab/internal/notes"
	"github.com/MarcoPoloResearchLab/collab/internal/realtime"
	"github.com/MarcoPoloResearchLab/collab/internal/team"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const defaultHeartbeatInterval = 25 * time.Second

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingMemberResolver   = errors.New("member resolver dependency required")
	errMissingStore            = errors.New("collaboration store dependency required")
	errMissingBoards           = errors.New("note registry dependency required")
	errMissingBroker           = errors.New("realtime broker dependency required")
)

// MemberResolver maps validated session claims onto a roster member.
type MemberResolver interface {
	ResolveMember(ctx context.Context, claims auth.SessionClaims) (team.Member, error)
}

// Dependencies wires the HTTP surface to the collaboration core.
type Dependencies struct {
	SessionValidator  *auth.SessionValidator
	Members           MemberResolver
	Store             *collab.Store
	Boards            *notes.Registry
	Broker            realtime.Broker
	Metrics           *metrics.Metrics
	Logger            *zap.Logger
	AllowedOrigins    []string
	HeartbeatInterval time.Duration
	Clock             func() time.Time
}

// NewHTTPHandler builds the gin engine serving the collaboration API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SessionValidator == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Members == nil {
		return nil, errMissingMemberResolver
	}
	if deps.Store == nil {
		return nil, errMissingStore
	}
	if deps.Boards == nil {
		return nil, errMissingBoards
	}
	if deps.Broker == nil {
		return nil, errMissingBroker
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	handler := &httpHandler{
		validator: deps.SessionValidator,
		members:   deps.Members,
		store:     deps.Store,
		boards:    deps.Boards,
		broker:    deps.Broker,
		logger:    logger,
		heartbeat: heartbeat,
		now:       clock,
		origins:   newOriginPolicy(deps.AllowedOrigins),
	}
	handler.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     handler.origins.allowsRequest,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.RequestLogger(logger))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	router.Use(corsMiddleware(deps.AllowedOrigins))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(handler.authorizeRequest)

	api.GET("/team/members", handler.handleListMembers)
	api.GET("/team/members/online", handler.handleOnlineMembers)
	api.GET("/team/me", handler.handleCurrentMember)
	api.PUT("/team/status", handler.handleUpdateStatus)
	api.GET("/team/activities", handler.handleListActivities)
	api.POST("/team/activities", handler.handleAddActivity)

	api.GET("/activity/feed", handler.handleActivityFeed)
	api.GET("/presence", handler.handlePresence)
	api.GET("/dashboard", handler.handleDashboard)

	customerNotes := api.Group("/customers/:email/notes")
	customerNotes.GET("", handler.handleListNotes)
	customerNotes.POST("", handler.handleCreateNote)
	customerNotes.GET("/:id", handler.handleGetNote)
	customerNotes.PATCH("/:id", handler.handleUpdateNote)
	customerNotes.DELETE("/:id", handler.handleDeleteNote)
	customerNotes.POST("/:id/reactions", handler.handleToggleReaction)
	customerNotes.POST("/:id/replies", handler.handleAddReply)
	customerNotes.POST("/:id/pin", handler.handleTogglePin)
	customerNotes.POST("/:id/status", handler.handleSetNoteStatus)
	customerNotes.POST("/:id/assign", handler.handleAssignNote)

	api.GET("/realtime/stream", handler.handleRealtimeStream)
	api.GET("/realtime/ws", handler.handleRealtimeSocket)

	return router, nil
}

type httpHandler struct {
	validator *auth.SessionValidator
	members   MemberResolver
	store     *collab.Store
	boards    *notes.Registry
	broker    realtime.Broker
	logger    *zap.Logger
	heartbeat time.Duration
	now       func() time.Time
	origins   originPolicy
	upgrader  websocket.Upgrader
}

// authorizeRequest validates the session, resolves the member and makes sure
// the member is on the live roster.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.validator.ValidateRequest(c.Request)
	if err != nil {
		h.logTokenFailure(err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	member, err := h.members.ResolveMember(c.Request.Context(), claims)
	if err != nil {
		if errors.Is(err, team.ErrInvalidIdentity) {
			h.logger.Warn("session identity rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		h.logger.Error("member resolution failed", zap.Error(err), zap.String("member_id", claims.MemberID))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "member_resolution_failed"})
		return
	}
	member, _ = h.store.EnsureMember(member)

	c.Set(logging.MemberIDKey, member.ID)
	c.Next()
}

func (h *httpHandler) logTokenFailure(err error) {
	if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrMissingSessionToken) {
		h.logger.Info("session validation failed", zap.Error(err))
		return
	}
	h.logger.Warn("session validation failed", zap.Error(err))
}

func (h *httpHandler) session(c *gin.Context) *collab.Session {
	return h.store.Session(c.GetString(logging.MemberIDKey))
}

func respondError(c *gin.Context, status int, code string) {
	c.JSON(status, gin.H{"error": code})
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	policy := newOriginPolicy(allowedOrigins)
	config := cors.Config{
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Accept", "Cache-Control", "Last-Event-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if policy.allowAll {
		config.AllowOriginFunc = func(string) bool { return true }
	} else {
		config.AllowOrigins = policy.list
	}
	return cors.New(config)
}

// originPolicy is shared by CORS and the websocket upgrader. A "*" entry or an
// empty list allows every origin.
type originPolicy struct {
	allowAll bool
	list     []string
	allowed  map[string]struct{}
}

func newOriginPolicy(origins []string) originPolicy {
	policy := originPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		trimmed := strings.TrimRight(strings.TrimSpace(origin), "/")
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			policy.allowAll = true
			continue
		}
		if _, duplicate := policy.allowed[trimmed]; duplicate {
			continue
		}
		policy.allowed[trimmed] = struct{}{}
		policy.list = append(policy.list, trimmed)
	}
	if len(policy.list) == 0 {
		policy.allowAll = true
	}
	return policy
}

func (p originPolicy) allowsRequest(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" || p.allowAll {
		return true
	}
	_, ok := p.allowed[strings.TrimRight(origin, "/")]
	return ok
}
