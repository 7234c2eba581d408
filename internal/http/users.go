package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"user-api/internal/domain"
)

type userRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserResponse is the wire shape of a stored user. Password holds the bcrypt
// hash unless redaction is enabled.
type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}

func (h *Handler) createUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.users.Create(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": res.Message, "user": h.userToResponse(res.User)})
}

func (h *Handler) listUsers(c *gin.Context) {
	res, err := h.users.FindAll(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	users := make([]UserResponse, len(res.Users))
	for i := range res.Users {
		users[i] = h.userToResponse(&res.Users[i])
	}
	c.JSON(http.StatusOK, gin.H{"message": res.Message, "users": users})
}

func (h *Handler) getUser(c *gin.Context) {
	res, err := h.users.FindOne(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": res.Message, "user": h.userToResponse(res.User)})
}

func (h *Handler) updateUser(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}

	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.users.Update(c.Request.Context(), id, req.Username, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": res.Message, "user": h.userToResponse(res.User)})
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}

	res, err := h.users.Remove(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": res.Message})
}

func parseUserID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "Invalid user id")
		return 0, false
	}
	return id, true
}

func (h *Handler) userToResponse(user *domain.User) UserResponse {
	resp := UserResponse{
		ID:       user.ID,
		Username: user.Username,
	}
	if !h.redactPassword {
		resp.Password = user.PasswordHash
	}
	return resp
}
