package api

import (
	"net/http"
	"sync"
	"time"

	"campaign-console/internal/contacts"
	"campaign-console/internal/template"
	"campaign-console/internal/validator"

	"github.com/gin-gonic/gin"
)

// TemplateHandler owns the session's message template. The stored text has
// always been through the validator.
type TemplateHandler struct {
	Store *contacts.Store

	mu     sync.Mutex
	text   string
	notice *validator.Notice
	now    func() time.Time
}

func NewTemplateHandler(store *contacts.Store) *TemplateHandler {
	return &TemplateHandler{Store: store, now: time.Now}
}

// Current returns the validated template.
func (h *TemplateHandler) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.text
}

func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	h.mu.Lock()
	text := h.text
	notice := h.notice
	if notice.Expired(h.now()) {
		h.notice = nil
		notice = nil
	}
	h.mu.Unlock()

	c.JSON(http.StatusOK, h.describe(text, notice))
}

type UpdateTemplateRequest struct {
	Template string `json:"template"`
}

func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	var req UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	out := validator.Check(req.Template, h.now())
	h.text = out.Cleaned
	if out.Notice != nil {
		h.notice = out.Notice
	}
	notice := h.notice
	if notice.Expired(h.now()) {
		notice = nil
	}
	h.mu.Unlock()

	resp := h.describe(out.Cleaned, notice)
	resp["changed"] = out.Changed
	c.JSON(http.StatusOK, resp)
}

// PreviewTemplate renders the template for one contact the way the editor
// shows it: empty and unknown fields disappear.
func (h *TemplateHandler) PreviewTemplate(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}
	contact, err := h.Store.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
		return
	}

	text := c.Query("template")
	if text == "" {
		text = h.Current()
	} else {
		text = validator.Clean(text)
	}

	c.JSON(http.StatusOK, gin.H{
		"contact_id": contact.ID,
		"preview":    template.Render(text, contact.Fields, template.ModePreview),
		"message":    template.Render(text, contact.Fields, template.ModeSend),
	})
}

func (h *TemplateHandler) describe(text string, notice *validator.Notice) gin.H {
	placeholders := template.Placeholders(text)
	if placeholders == nil {
		placeholders = []string{}
	}
	unknown := template.Unknown(text, h.Store.Headers())
	if unknown == nil {
		unknown = []string{}
	}
	resp := gin.H{
		"template":     text,
		"length":       len([]rune(text)),
		"max_length":   validator.MaxLength,
		"placeholders": placeholders,
		"unknown":      unknown,
	}
	if notice != nil {
		resp["notice"] = notice
	}
	return resp
}
