// Package http exposes the room registry over a JSON REST API plus a
// websocket stream for live room updates.
package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	apperrors "github.com/louisbranch/ruleshift/internal/platform/errors"
	"github.com/louisbranch/ruleshift/internal/services/game/content"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/engine"
	"github.com/louisbranch/ruleshift/internal/services/game/domain/rule"
	"github.com/louisbranch/ruleshift/internal/services/game/rooms"
)

// Server wires the room registry into gin routes.
type Server struct {
	registry *rooms.Registry
	hub      *Hub
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewServer builds a server around an existing registry and hub. The hub
// should already be registered as the registry's notifier so REST mutations
// reach websocket subscribers.
func NewServer(registry *rooms.Registry, hub *Hub, logger zerolog.Logger) *Server {
	return &Server{
		registry: registry,
		hub:      hub,
		log:      logger.With().Str("component", "http").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Router returns the configured gin engine.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	api := router.Group("/api")
	{
		api.GET("/templates", s.listTemplates)

		api.POST("/rooms", s.createRoom)
		api.GET("/rooms", s.listRooms)
		api.GET("/rooms/:id", s.roomState)
		api.DELETE("/rooms/:id", s.closeRoom)

		api.POST("/rooms/:id/join", s.joinRoom)
		api.POST("/rooms/:id/leave", s.leaveRoom)
		api.POST("/rooms/:id/start", s.startRoom)
		api.POST("/rooms/:id/roll", s.roll)
		api.POST("/rooms/:id/end-turn", s.endTurn)
		api.POST("/rooms/:id/rules", s.modifyRule)
		api.POST("/rooms/:id/tiles", s.modifyTile)

		api.GET("/rooms/:id/rolls", s.rollHistory)
		api.GET("/rooms/:id/rolls/verify", s.verifyJournal)
		api.GET("/rooms/:id/tiles/:index/rules", s.rulesForTile)
		api.GET("/rooms/:id/ws", s.subscribe)
	}

	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}

func writeError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	c.AbortWithStatusJSON(code.HTTPStatus(), gin.H{
		"code":  string(code),
		"error": err.Error(),
	})
}

type createRoomRequest struct {
	Name       string   `json:"name"`
	Templates  []string `json:"templates,omitempty"`
	PackScript string   `json:"pack_script,omitempty"`
}

func (s *Server) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.Wrap(apperrors.CodeCommandInvalidPayload, "invalid request body", err))
		return
	}

	var extra []rule.Rule
	for _, title := range req.Templates {
		tmpl, ok := content.TemplateByTitle(title)
		if !ok {
			writeError(c, apperrors.New(apperrors.CodeRulePackInvalid, "unknown rule template: "+title))
			return
		}
		extra = append(extra, tmpl)
	}
	if req.PackScript != "" {
		pack, err := content.LoadPackScript(req.Name, req.PackScript)
		if err != nil {
			writeError(c, err)
			return
		}
		extra = append(extra, pack.Rules...)
	}

	state, err := s.registry.CreateRoom(c.Request.Context(), req.Name, extra)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"state": state})
}

func (s *Server) listRooms(c *gin.Context) {
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	page, err := s.registry.ListRooms(c.Request.Context(), pageSize, c.Query("page_token"))
	if err != nil {
		writeError(c, err)
		return
	}

	summaries := make([]roomSummaryResponse, 0, len(page.Rooms))
	for _, room := range page.Rooms {
		summaries = append(summaries, roomSummaryResponse{
			RoomID:      room.RoomID,
			Name:        room.Name,
			Status:      string(room.Status),
			PlayerCount: room.PlayerCount,
			UpdatedAt:   room.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"rooms":           summaries,
		"next_page_token": page.NextPageToken,
	})
}

type roomSummaryResponse struct {
	RoomID      string    `json:"room_id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	PlayerCount int       `json:"player_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Server) roomState(c *gin.Context) {
	state, err := s.registry.State(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (s *Server) closeRoom(c *gin.Context) {
	if err := s.registry.CloseRoom(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type joinRequest struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

func (s *Server) joinRoom(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.Wrap(apperrors.CodeCommandInvalidPayload, "invalid request body", err))
		return
	}
	state, err := s.registry.Join(c.Request.Context(), c.Param("id"), req.PlayerID, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

type playerRequest struct {
	PlayerID string `json:"player_id"`
}

func (s *Server) leaveRoom(c *gin.Context) {
	var req playerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.Wrap(apperrors.CodeCommandInvalidPayload, "invalid request body", err))
		return
	}
	state, err := s.registry.Leave(c.Request.Context(), c.Param("id"), req.PlayerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (s *Server) startRoom(c *gin.Context) {
	state, err := s.registry.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

type rollRequest struct {
	PlayerID string `json:"player_id"`
	Dice     int    `json:"dice,omitempty"`
}

func (s *Server) roll(c *gin.Context) {
	var req rollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.Wrap(apperrors.CodeCommandInvalidPayload, "invalid request body", err))
		return
	}
	outcome, err := s.registry.Roll(c.Request.Context(), c.Param("id"), req.PlayerID, req.Dice)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state": outcome.State,
		"logs":  outcome.Logs,
		"dice":  outcome.RawDice,
		"seq":   outcome.Seq,
	})
}

func (s *Server) endTurn(c *gin.Context) {
	var req playerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.Wrap(apperrors.CodeCommandInvalidPayload, "invalid request body", err))
		return
	}
	state, err := s.registry.EndTurn(c.Request.Context(), c.Param("id"), req.PlayerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

type ruleModificationRequest struct {
	PlayerID     string                  `json:"player_id"`
	Modification engine.RuleModification `json:"modification"`
}

func (s *Server) modifyRule(c *gin.Context) {
	var req ruleModificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.Wrap(apperrors.CodeCommandInvalidPayload, "invalid request body", err))
		return
	}
	state, accepted, message, err := s.registry.ModifyRule(c.Request.Context(), c.Param("id"), req.PlayerID, req.Modification)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":    state,
		"accepted": accepted,
		"message":  message,
	})
}

type tileModificationRequest struct {
	PlayerID     string                  `json:"player_id"`
	Modification engine.TileModification `json:"modification"`
}

func (s *Server) modifyTile(c *gin.Context) {
	var req tileModificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.Wrap(apperrors.CodeCommandInvalidPayload, "invalid request body", err))
		return
	}
	state, accepted, message, err := s.registry.ModifyTile(c.Request.Context(), c.Param("id"), req.PlayerID, req.Modification)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":    state,
		"accepted": accepted,
		"message":  message,
	})
}

type rollRecordResponse struct {
	Seq           int64     `json:"seq"`
	PlayerID      string    `json:"player_id"`
	RawDice       int       `json:"raw_dice"`
	EffectiveDice int       `json:"effective_dice"`
	Seed          int64     `json:"seed"`
	Logs          []string  `json:"logs,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (s *Server) rollHistory(c *gin.Context) {
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	page, err := s.registry.RollHistory(c.Request.Context(), c.Param("id"), pageSize, c.Query("page_token"))
	if err != nil {
		writeError(c, err)
		return
	}

	records := make([]rollRecordResponse, 0, len(page.Rolls))
	for _, roll := range page.Rolls {
		records = append(records, rollRecordResponse{
			Seq:           roll.Seq,
			PlayerID:      roll.PlayerID,
			RawDice:       roll.RawDice,
			EffectiveDice: roll.EffectiveDice,
			Seed:          roll.Seed,
			Logs:          roll.Logs,
			CreatedAt:     roll.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"rolls":           records,
		"next_page_token": page.NextPageToken,
	})
}

func (s *Server) verifyJournal(c *gin.Context) {
	if err := s.registry.VerifyJournal(c.Request.Context(), c.Param("id")); err != nil {
		if apperrors.CodeOf(err) != apperrors.CodeUnknown {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusConflict, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (s *Server) rulesForTile(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		writeError(c, apperrors.Wrap(apperrors.CodeCommandInvalidPayload, "invalid tile index", err))
		return
	}
	matched, err := s.registry.RulesForTile(c.Request.Context(), c.Param("id"), index)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": matched})
}

func (s *Server) listTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"templates": content.Templates()})
}

func (s *Server) subscribe(c *gin.Context) {
	roomID := c.Param("id")
	if _, err := s.registry.State(c.Request.Context(), roomID); err != nil {
		writeError(c, err)
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Debug().Err(err).Str("room_id", roomID).Msg("websocket upgrade failed")
		return
	}
	s.hub.Attach(roomID, conn)
}
