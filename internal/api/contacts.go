package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"campaign-console/internal/contacts"

	"github.com/gin-gonic/gin"
)

type ContactHandler struct {
	Store *contacts.Store
}

func NewContactHandler(store *contacts.Store) *ContactHandler {
	return &ContactHandler{Store: store}
}

func (h *ContactHandler) GetContacts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"headers":  h.Store.Headers(),
		"contacts": h.Store.List(),
	})
}

func (h *ContactHandler) GetHeaders(c *gin.Context) {
	headers := h.Store.Headers()
	c.JSON(http.StatusOK, gin.H{
		"headers":     headers,
		"imported":    h.Store.Imported(),
		"phone_field": contacts.PhoneField(headers),
	})
}

func (h *ContactHandler) CreateContact(c *gin.Context) {
	contact := h.Store.Add()
	c.JSON(http.StatusCreated, contact)
}

type UpdateContactRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

func (h *ContactHandler) UpdateContact(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}
	var req UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact, err := h.Store.Update(id, req.Field, req.Value)
	switch {
	case errors.Is(err, contacts.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
		return
	case errors.Is(err, contacts.ErrReserved):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update contact"})
		return
	}

	c.JSON(http.StatusOK, contact)
}

func (h *ContactHandler) DeleteContact(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}
	if err := h.Store.Delete(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Contact deleted"})
}

// ImportRequest carries already parsed spreadsheet rows. Cells may be
// strings or numbers.
type ImportRequest struct {
	Headers []string        `json:"headers" binding:"required"`
	Rows    [][]interface{} `json:"rows"`
}

func (h *ContactHandler) ImportContacts(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows := make([][]string, 0, len(req.Rows))
	for _, r := range req.Rows {
		row := make([]string, len(r))
		for i, cell := range r {
			row[i] = cellString(cell)
		}
		rows = append(rows, row)
	}

	n, err := h.Store.Import(req.Headers, rows)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "Contacts imported",
		"imported": n,
		"skipped":  len(rows) - n,
		"headers":  h.Store.Headers(),
	})
}

func cellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func contactID(c *gin.Context) (int64, bool) {
	raw := c.Param("id")
	if raw == "" {
		raw = c.Param("contactId")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid contact id"})
		return 0, false
	}
	return id, true
}
