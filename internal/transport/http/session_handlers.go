package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/chatspace/chatspace-server/internal/admission"
	"github.com/chatspace/chatspace-server/internal/utils"
)

const defaultNickname = "Anonymous"

// SessionHandlers issues session tokens for connecting clients.
type SessionHandlers struct {
	tokenCfg *admission.TokenConfig
	log      *zerolog.Logger
}

// NewSessionHandlers creates the session handler set.
func NewSessionHandlers(tokenCfg *admission.TokenConfig, logger *zerolog.Logger) *SessionHandlers {
	return &SessionHandlers{tokenCfg: tokenCfg, log: logger}
}

// SessionRequest optionally names the client; empty picks the default.
type SessionRequest struct {
	Nickname string `json:"nickname"`
}

// SessionResponse carries the minted session.
type SessionResponse struct {
	Token    string `json:"token"`
	CID      string `json:"cid"`
	Nickname string `json:"nickname"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Create handles POST /api/session.
func (h *SessionHandlers) Create(c *gin.Context) {
	var req SessionRequest
	// Body is optional; ignore bind errors on an empty body.
	_ = c.ShouldBindJSON(&req)

	nickname := req.Nickname
	if nickname == "" {
		nickname = defaultNickname
	}

	cid := utils.NewCID()
	token, err := admission.GenerateToken(h.tokenCfg, cid, nickname)
	if err != nil {
		h.log.Error().Err(err).Msg("mint session token")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not create session"})
		return
	}

	c.JSON(http.StatusOK, SessionResponse{Token: token, CID: cid, Nickname: nickname})
}
