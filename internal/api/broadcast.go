package api

import (
	"context"
	"errors"
	"net/http"

	"campaign-console/internal/campaign"
	"campaign-console/internal/config"
	"campaign-console/internal/contacts"
	"campaign-console/internal/sms"
	"campaign-console/internal/validator"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type BroadcastHandler struct {
	Sender    sms.Sender
	Config    *config.Config
	Sequencer *campaign.Sequencer
	Store     *contacts.Store
	Template  *TemplateHandler
	Log       *zap.Logger

	// campaigns outlive the request that started them
	baseCtx context.Context
}

func NewBroadcastHandler(baseCtx context.Context, sender sms.Sender, cfg *config.Config, seq *campaign.Sequencer,
	store *contacts.Store, tmpl *TemplateHandler, log *zap.Logger) *BroadcastHandler {
	return &BroadcastHandler{
		Sender:    sender,
		Config:    cfg,
		Sequencer: seq,
		Store:     store,
		Template:  tmpl,
		Log:       log,
		baseCtx:   baseCtx,
	}
}

type SendSMSRequest struct {
	Recipients string `json:"destinataires" binding:"required"`
	Message    string `json:"message" binding:"required"`
	Sender     string `json:"expediteur"`
	Date       string `json:"date"`
}

// SendSMS sends one message through the configured provider.
func (h *BroadcastHandler) SendSMS(c *gin.Context) {
	var req SendSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	sender := req.Sender
	if sender == "" {
		sender = h.Config.SMSSender
	}
	msg := sms.Message{Recipient: req.Recipients, Body: req.Message, Sender: sender}
	if req.Date != "" {
		msg.Metadata = map[string]string{"date": req.Date, "delay": req.Date}
	}

	res, err := h.Sender.Send(c.Request.Context(), msg)
	switch {
	case errors.Is(err, sms.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": err.Error()})
		return
	case err != nil:
		h.Log.Error("SMS API error", zap.String("provider", h.Sender.Name()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error", "error": err.Error()})
		return
	case !res.OK:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "errors": res.ErrorMessage})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "id": res.ProviderMessageID, "provider": h.Sender.Name()})
}

type StartSMSCampaignRequest struct {
	Template string `json:"template"`
	Sender   string `json:"sender"`
}

// StartCampaign sends the template to every contact of the session.
func (h *BroadcastHandler) StartCampaign(c *gin.Context) {
	var req StartSMSCampaignRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	tmpl := h.Template.Current()
	if req.Template != "" {
		tmpl = validator.Clean(req.Template)
	}
	list := h.Store.List()
	if len(list) == 0 || tmpl == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Veuillez ajouter des contacts et créer un modèle de message"})
		return
	}
	sender := req.Sender
	if sender == "" {
		sender = h.Config.SMSSender
	}

	results, err := h.Sequencer.Start(h.baseCtx, campaign.Request{
		Contacts:    list,
		Headers:     h.Store.Headers(),
		Template:    tmpl,
		Sender:      h.Sender,
		SenderLabel: sender,
	})
	if errors.Is(err, campaign.ErrAlreadyRunning) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"status": "Campaign started", "campaign": results}
	if missing := h.Config.MissingSMS(); len(missing) > 0 {
		resp["warning"] = "Configuration manquante: SMS capability unavailable"
	}
	c.JSON(http.StatusAccepted, resp)
}

func (h *BroadcastHandler) GetCampaign(c *gin.Context) {
	c.JSON(http.StatusOK, h.Sequencer.Snapshot())
}

func (h *BroadcastHandler) CancelCampaign(c *gin.Context) {
	if !h.Sequencer.Cancel() {
		c.JSON(http.StatusConflict, gin.H{"error": "No campaign is running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Campaign cancelled"})
}
