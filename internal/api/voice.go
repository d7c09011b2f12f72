package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"campaign-console/internal/config"
	"campaign-console/internal/contacts"
	"campaign-console/internal/metrics"
	"campaign-console/internal/models"
	"campaign-console/internal/template"
	"campaign-console/internal/validator"
	"campaign-console/internal/vapi"
	"campaign-console/internal/voice"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type VoiceHandler struct {
	Client   *vapi.Client
	Config   *config.Config
	Campaign *voice.Campaign
	Store    *contacts.Store
	Template *TemplateHandler
	Recorder voice.Recorder
	Events   voice.Publisher
	Metrics  *metrics.Metrics
	Log      *zap.Logger

	baseCtx   context.Context
	callOpts  []voice.CallOption
	mu        sync.Mutex
	calls     map[int64]*voice.Call
	adhocNext int64
}

func NewVoiceHandler(baseCtx context.Context, client *vapi.Client, cfg *config.Config, camp *voice.Campaign,
	store *contacts.Store, tmpl *TemplateHandler, log *zap.Logger, callOpts ...voice.CallOption) *VoiceHandler {
	return &VoiceHandler{
		Client:   client,
		Config:   cfg,
		Campaign: camp,
		Store:    store,
		Template: tmpl,
		Log:      log,
		baseCtx:  baseCtx,
		callOpts: callOpts,
		calls:    make(map[int64]*voice.Call),
	}
}

// configured answers 500 with the missing settings, like the provider route did.
func (h *VoiceHandler) configured(c *gin.Context) bool {
	if missing := h.Config.MissingVoice(); len(missing) > 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Configuration manquante: " + strings.Join(missing, ", ")})
		return false
	}
	return true
}

func (h *VoiceHandler) apiError(c *gin.Context, err error, fallback string) {
	var apiErr *vapi.APIError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{"error": apiErr.Message, "details": apiErr.Details()})
		return
	}
	h.Log.Error("Vapi request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallback, "details": err.Error()})
}

type StartCallRequest struct {
	ContactID    int64  `json:"contactId"`
	PhoneNumber  string `json:"phoneNumber"`
	ContactName  string `json:"contactName"`
	FirstMessage string `json:"firstMessage"`
}

// StartCall dials a single contact outside of any campaign.
func (h *VoiceHandler) StartCall(c *gin.Context) {
	if !h.configured(c) {
		return
	}
	var req StartCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var contact contacts.Contact
	if req.ContactID != 0 {
		found, err := h.Store.Get(req.ContactID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
			return
		}
		contact = found
	} else {
		h.mu.Lock()
		h.adhocNext--
		contact = contacts.Contact{ID: h.adhocNext, Fields: map[string]string{
			"nom":       req.ContactName,
			"telephone": req.PhoneNumber,
		}}
		h.mu.Unlock()
	}

	firstMessage := req.FirstMessage
	if firstMessage == "" {
		if tmpl := h.Template.Current(); tmpl != "" {
			firstMessage = template.Render(tmpl, contact.Fields, template.ModeSend)
		}
	}

	h.mu.Lock()
	if _, busy := h.calls[contact.ID]; busy {
		h.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": voice.ErrCallInProgress.Error()})
		return
	}
	opts := append([]voice.CallOption{
		voice.WithLogger(h.Log),
		voice.OnComplete(func(res voice.CallResult) { h.callEnded(contact, res) }),
	}, h.callOpts...)
	call := voice.NewCall(h.Client, contact, firstMessage, opts...)
	h.calls[contact.ID] = call
	h.mu.Unlock()

	if h.Events != nil {
		updates := call.Subscribe()
		go func() {
			for s := range updates {
				h.Events.Publish("call_state", s)
			}
		}()
	}

	err := call.Start(c.Request.Context())
	if err != nil {
		h.mu.Lock()
		delete(h.calls, contact.ID)
		h.mu.Unlock()
		call.Close()

		if errors.Is(err, voice.ErrNoPhoneNumber) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Numéro de téléphone requis"})
			return
		}
		h.apiError(c, err, "Erreur serveur lors de l'initiation de l'appel")
		return
	}

	if h.Metrics != nil {
		h.Metrics.CallsStarted.Inc()
	}
	snap := call.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"callId":      snap.CallID,
		"contactId":   contact.ID,
		"status":      snap.State,
		"phoneNumber": snap.PhoneNumber,
		"message":     "Appel initié avec succès",
	})
}

func (h *VoiceHandler) callEnded(contact contacts.Contact, res voice.CallResult) {
	h.mu.Lock()
	delete(h.calls, contact.ID)
	h.mu.Unlock()

	if h.Metrics != nil {
		h.Metrics.CallsEnded.WithLabelValues(string(res.Status)).Inc()
		if res.CallID != "" {
			h.Metrics.CallDuration.Observe(float64(res.DurationSeconds))
		}
	}
	if h.Recorder == nil {
		return
	}
	err := h.Recorder.RecordCall(&models.CallRecord{
		ContactID:   contact.ID,
		CallID:      res.CallID,
		PhoneNumber: contacts.ResolvePhone(contact.Fields),
		Status:      string(res.Status),
		EndedReason: res.EndedReason,
		DurationSec: res.DurationSeconds,
		Transcript:  res.Transcript,
		Sentiment:   string(res.Sentiment),
	})
	if err != nil {
		h.Log.Error("Failed to record call", zap.Error(err))
	}
}

// GetCall returns a call status, or the assistant settings with getAssistant=true.
func (h *VoiceHandler) GetCall(c *gin.Context) {
	if h.Config.VapiAPIKey == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Configuration manquante: VAPI_API_KEY"})
		return
	}

	if c.Query("getAssistant") == "true" {
		if h.Config.VapiAssistantID == "" {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Configuration manquante: VAPI_ASSISTANT_ID"})
			return
		}
		a, err := h.Client.GetAssistant(c.Request.Context())
		if err != nil {
			h.apiError(c, err, "Erreur serveur")
			return
		}
		c.JSON(http.StatusOK, a)
		return
	}

	callID := c.Query("callId")
	if callID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Call ID ou getAssistant=true requis"})
		return
	}
	call, err := h.Client.GetCall(c.Request.Context(), callID)
	if err != nil {
		h.apiError(c, err, "Erreur serveur")
		return
	}
	transcript := call.Transcript
	if transcript == "" && call.Artifact != nil {
		transcript = call.Artifact.Transcript
	}
	c.JSON(http.StatusOK, gin.H{
		"callId":       call.ID,
		"status":       call.Status,
		"duration":     call.DurationSeconds(),
		"recordingUrl": call.RecordingURL,
		"transcript":   transcript,
		"summary":      call.Summary,
		"endedReason":  call.EndedReason,
		"cost":         call.Cost,
	})
}

// UpdateAssistant patches only the provided assistant fields.
func (h *VoiceHandler) UpdateAssistant(c *gin.Context) {
	if h.Config.VapiAPIKey == "" || h.Config.VapiAssistantID == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Configuration manquante: VAPI_API_KEY ou VAPI_ASSISTANT_ID"})
		return
	}
	var update vapi.AssistantUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if update.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Aucun champ à mettre à jour"})
		return
	}

	a, err := h.Client.UpdateAssistant(c.Request.Context(), update)
	if err != nil {
		h.apiError(c, err, "Erreur serveur lors de la mise à jour")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Assistant mis à jour avec succès",
		"assistant": gin.H{
			"id":               a.ID,
			"name":             a.Name,
			"firstMessage":     a.FirstMessage,
			"voicemailMessage": a.VoicemailMessage,
			"endCallMessage":   a.EndCallMessage,
		},
	})
}

// EndCall is the operator hang-up, for a single call or the campaign's current one.
func (h *VoiceHandler) EndCall(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}

	h.mu.Lock()
	call := h.calls[id]
	h.mu.Unlock()

	var err error
	if call != nil {
		err = call.End(c.Request.Context())
	} else {
		err = h.Campaign.EndCall(c.Request.Context(), id)
	}
	if errors.Is(err, voice.ErrCallNotActive) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No active call for this contact"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Call ended"})
}

type StartVoiceCampaignRequest struct {
	Template string `json:"template"`
	DelayMs  int    `json:"delayMs"`
}

func (h *VoiceHandler) StartCampaign(c *gin.Context) {
	if !h.configured(c) {
		return
	}
	var req StartVoiceCampaignRequest
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

	snap, err := h.Campaign.Start(h.baseCtx, voice.StartRequest{
		Contacts: list,
		Template: tmpl,
		Delay:    time.Duration(req.DelayMs) * time.Millisecond,
	})
	if errors.Is(err, voice.ErrAlreadyRunning) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "Campaign started", "campaign": snap})
}

func (h *VoiceHandler) GetCampaign(c *gin.Context) {
	c.JSON(http.StatusOK, h.Campaign.Snapshot())
}

func (h *VoiceHandler) PauseCampaign(c *gin.Context) {
	h.campaignControl(c, h.Campaign.Pause, "Campaign paused")
}

func (h *VoiceHandler) ResumeCampaign(c *gin.Context) {
	h.campaignControl(c, h.Campaign.Resume, "Campaign resumed")
}

func (h *VoiceHandler) StopCampaign(c *gin.Context) {
	h.campaignControl(c, h.Campaign.Stop, "Campaign stopped")
}

func (h *VoiceHandler) campaignControl(c *gin.Context, action func() error, status string) {
	if err := action(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "campaign": h.Campaign.Snapshot()})
}

// Shutdown hangs up every single call and stops the campaign.
func (h *VoiceHandler) Shutdown(ctx context.Context) {
	h.mu.Lock()
	calls := make([]*voice.Call, 0, len(h.calls))
	for _, call := range h.calls {
		calls = append(calls, call)
	}
	h.mu.Unlock()

	for _, call := range calls {
		if err := call.End(ctx); err != nil {
			call.Close()
		}
	}
	if err := h.Campaign.Stop(); err == nil {
		h.Campaign.Wait()
	}
}
