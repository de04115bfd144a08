package api

import (
	"net/http"
	"strconv"

	"kitstore/internal/models"
	"kitstore/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listItems(c *gin.Context) {
	filter := models.ItemFilter{
		Country: models.Country(c.Query("country")),
		KitType: models.KitType(c.Query("kitType")),
		Season:  c.Query("season"),
	}

	items, err := h.svc.Items.ListItems(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) getItem(c *gin.Context) {
	number, ok := itemNumberParam(c)
	if !ok {
		return
	}

	item, err := h.svc.Items.GetItem(c.Request.Context(), number)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) createItem(c *gin.Context) {
	var in service.ItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	item, err := h.svc.Items.CreateItem(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) updateItem(c *gin.Context) {
	number, ok := itemNumberParam(c)
	if !ok {
		return
	}

	var in service.ItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	item, err := h.svc.Items.UpdateItem(c.Request.Context(), number, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) deleteItem(c *gin.Context) {
	number, ok := itemNumberParam(c)
	if !ok {
		return
	}

	if err := h.svc.Items.DeleteItem(c.Request.Context(), number); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item deleted successfully"})
}

func itemNumberParam(c *gin.Context) (int64, bool) {
	number, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || number < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item number"})
		return 0, false
	}
	return number, true
}
