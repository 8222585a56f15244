package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smith3v/mathquiz/pkg/account"
	"github.com/smith3v/mathquiz/pkg/db"
	"github.com/smith3v/mathquiz/pkg/logger"
)

const defaultQuestionLimit = 10

type SignupRequest struct {
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FocusArea string `json:"focus_area"`
	Role      string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Account   *account.Account `json:"account"`
}

type valueRequest struct {
	Value string `json:"value" binding:"required"`
}

type AttemptRequest struct {
	Correct bool `json:"correct"`
}

type HighScoreRequest struct {
	Score *int `json:"score" binding:"required"`
}

type HighScoreResponse struct {
	HighScore int `json:"high_score"`
}

type QuestionRequest struct {
	FocusArea string  `json:"focus_area"`
	Question  string  `json:"question" binding:"required"`
	Answer    string  `json:"answer" binding:"required"`
	Reference *string `json:"reference"`
}

type AnswerRequest struct {
	Answer string `json:"answer" binding:"required"`
}

type AnswerResponse struct {
	Correct bool   `json:"correct"`
	Answer  string `json:"answer"`
}

type FlagRequest struct {
	QuestionID uint `json:"question_id" binding:"required"`
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return false
	}
	return true
}

func (s *Server) signup(c *gin.Context) {
	var req SignupRequest
	if !bindJSON(c, &req) {
		return
	}
	id, err := s.accounts.Create(account.NewAccount{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		FocusArea: req.FocusArea,
		Role:      req.Role,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	acc, err := s.accounts.GetByID(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, acc)
}

func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	ok, err := s.accounts.Authenticate(req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		logger.Info("login rejected")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
		return
	}
	acc, err := s.accounts.Get(req.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	if acc == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
		return
	}

	session, err := s.sessions.Start(acc.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	token, err := s.tokens.Issue(acc.ID, session.Token, session.StartedAt, session.ExpiresAt)
	if err != nil {
		logger.Error("failed to sign token", "profile_id", acc.ID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(http.StatusOK, LoginResponse{Token: token, ExpiresAt: session.ExpiresAt, Account: acc})
}

func (s *Server) logout(c *gin.Context) {
	if err := s.sessions.End(c.GetString(ctxSessionToken)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

func (s *Server) me(c *gin.Context) {
	id := c.GetUint(ctxProfileID)
	acc, err := s.accounts.GetByID(id)
	if err != nil {
		writeError(c, err)
		return
	}
	if acc == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "account not found"})
		return
	}
	areas, err := s.accounts.FocusAreas(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": acc, "focus_areas": areas})
}

func (s *Server) deleteMe(c *gin.Context) {
	if err := s.accounts.Delete(c.GetUint(ctxProfileID)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) updateValue(c *gin.Context, update func(uint, string) error) {
	var req valueRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := update(c.GetUint(ctxProfileID), req.Value); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "updated"})
}

func (s *Server) updateName(c *gin.Context)     { s.updateValue(c, s.accounts.UpdateName) }
func (s *Server) updateEmail(c *gin.Context)    { s.updateValue(c, s.accounts.UpdateEmail) }
func (s *Server) updatePassword(c *gin.Context) { s.updateValue(c, s.accounts.UpdatePassword) }
func (s *Server) addFocusArea(c *gin.Context)   { s.updateValue(c, s.accounts.AddFocusArea) }

func (s *Server) myStats(c *gin.Context) {
	summary, err := s.stats.Get(c.GetUint(ctxProfileID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) recordAttempt(c *gin.Context) {
	var req AttemptRequest
	if !bindJSON(c, &req) {
		return
	}
	id := c.GetUint(ctxProfileID)
	if err := s.stats.RecordAttempt(id, req.Correct); err != nil {
		writeError(c, err)
		return
	}
	s.myStats(c)
}

func (s *Server) submitHighScore(c *gin.Context) {
	var req HighScoreRequest
	if !bindJSON(c, &req) {
		return
	}
	highScore, err := s.stats.UpdateHighScore(c.GetUint(ctxProfileID), *req.Score)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, HighScoreResponse{HighScore: highScore})
}

// listQuestions leaves answers out for students; they submit answers to
// checkAnswer instead.
func (s *Server) listQuestions(c *gin.Context) {
	limit := defaultQuestionLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be an integer"})
			return
		}
		limit = n
	}
	acc, err := s.accounts.GetByID(c.GetUint(ctxProfileID))
	if err != nil {
		writeError(c, err)
		return
	}
	if acc == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "account no longer exists"})
		return
	}
	qs, err := s.questions.List(c.Query("focus_area"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if acc.Role != db.RoleTeacher {
		for i := range qs {
			qs[i].Answer = ""
		}
	}
	c.JSON(http.StatusOK, qs)
}

// checkAnswer compares the submitted answer case-insensitively, records the
// attempt and reveals the expected answer.
func (s *Server) checkAnswer(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid question id"})
		return
	}
	var req AnswerRequest
	if !bindJSON(c, &req) {
		return
	}
	q, err := s.questions.Get(uint(id))
	if err != nil {
		writeError(c, err)
		return
	}
	if q == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "question not found"})
		return
	}
	correct := strings.EqualFold(strings.TrimSpace(req.Answer), strings.TrimSpace(q.Answer))
	if err := s.stats.RecordAttempt(c.GetUint(ctxProfileID), correct); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, AnswerResponse{Correct: correct, Answer: q.Answer})
}

func (s *Server) addQuestion(c *gin.Context) {
	var req QuestionRequest
	if !bindJSON(c, &req) {
		return
	}
	id, err := s.questions.Add(req.FocusArea, req.Question, req.Answer, req.Reference)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) flagQuestion(c *gin.Context) {
	var req FlagRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := s.sessions.FlagQuestion(c.GetString(ctxSessionToken), req.QuestionID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "flagged"})
}
