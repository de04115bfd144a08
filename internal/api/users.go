package api

import (
	"errors"
	"io"
	"net/http"

	"kitstore/internal/auth"

	"github.com/gin-gonic/gin"
)

type createUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (h *Handler) getCurrentUser(c *gin.Context) {
	claims := auth.ClaimsFrom(c)

	user, err := h.svc.Users.GetCurrentUser(c.Request.Context(), claims.Subject)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// createCurrentUser is create-or-return; the external id always comes from the token.
func (h *Handler) createCurrentUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	id := identityFrom(auth.ClaimsFrom(c))
	if req.Email != "" {
		id.Email = req.Email
	}
	if req.Name != "" {
		id.Name = req.Name
	}

	user, created, err := h.svc.Users.GetOrCreate(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, user)
}
