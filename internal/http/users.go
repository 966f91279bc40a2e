package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"user-ledger/internal/domain"
	"user-ledger/internal/service"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Username       string           `json:"username" binding:"required"`
	Password       string           `json:"password" binding:"required"`
	InitialBalance *decimal.Decimal `json:"initial_balance"`
}

type amountRequest struct {
	Amount        *decimal.Decimal `json:"amount" binding:"required"`
	AllowOverdraw bool             `json:"allow_overdraw"`
}

type itemRequest struct {
	Name  string           `json:"name" binding:"required"`
	Price *decimal.Decimal `json:"price" binding:"required"`
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

type ItemResponse struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

type UserResponse struct {
	ID       string         `json:"id"`
	Username string         `json:"username"`
	Balance  string         `json:"balance"`
	Items    []ItemResponse `json:"items"`
}

type UserSummaryResponse struct {
	Username  string `json:"username"`
	ItemCount int    `json:"item_count"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	user, err := h.registry.Authenticate(req.Username, req.Password)
	var token string
	if err == nil {
		token, err = h.generateToken(user, time.Now())
	}
	h.mu.Unlock()
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrAuthFailed) {
			h.logger.WithField("username", req.Username).Info("login rejected")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
			return
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "expires_in": int(h.tokenTTL.Seconds())})
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	balance := decimal.Zero
	if req.InitialBalance != nil {
		balance = *req.InitialBalance
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	user, err := h.registry.Register(req.Username, req.Password, balance)
	if err != nil {
		writeError(c, err)
		return
	}
	h.logger.WithField("username", user.Username()).Info("user registered")
	c.JSON(http.StatusCreated, userToResponse(user))
}

func (h *Handler) listUsers(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.currentUser(c); !ok {
		return
	}

	users := h.registry.Users()
	resp := make([]UserSummaryResponse, len(users))
	for i, u := range users {
		resp[i] = UserSummaryResponse{Username: u.Username(), ItemCount: len(u.Items())}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) removeUser(c *gin.Context) {
	target := c.Param("username")

	h.mu.Lock()
	defer h.mu.Unlock()

	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	caller := user.Username()
	if caller != target && caller != service.BootstrapUsername {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the account owner or the administrator may remove a user"})
		return
	}

	if err := h.registry.Remove(target); err != nil {
		writeError(c, err)
		return
	}
	h.logger.WithFields(logrus.Fields{"username": target, "by": caller}).Info("user removed")
	c.JSON(http.StatusOK, gin.H{"deleted": target})
}

func (h *Handler) me(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

func (h *Handler) deposit(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if err := user.IncrementBalance(*req.Amount); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

func (h *Handler) withdraw(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if err := user.DecrementBalance(*req.Amount, !req.AllowOverdraw); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

func (h *Handler) addItem(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if err := user.AddItem(req.Name, *req.Price); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, userToResponse(user))
}

func (h *Handler) removeItem(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, err := domain.NewItem(req.Name, *req.Price)
	if err != nil {
		writeError(c, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if !user.RemoveItem(item) {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

func (h *Handler) changePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if !user.CheckPassword(req.CurrentPassword) {
		writeError(c, domain.ErrAuthFailed)
		return
	}
	if err := h.registry.ResetPassword(user.Username(), req.NewPassword); err != nil {
		writeError(c, err)
		return
	}
	h.logger.WithField("username", user.Username()).Info("password changed")
	c.Status(http.StatusNoContent)
}

func userToResponse(user *domain.User) UserResponse {
	items := user.Items()
	resp := UserResponse{
		ID:       user.ID().String(),
		Username: user.Username(),
		Balance:  user.Balance().StringFixed(2),
		Items:    make([]ItemResponse, len(items)),
	}
	for i, item := range items {
		resp.Items[i] = ItemResponse{Name: item.Name, Price: item.Price.StringFixed(2)}
	}
	return resp
}
