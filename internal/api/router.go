package api

import (
	"context"
	"net/http"
	"time"

	"campaign-console/internal/campaign"
	"campaign-console/internal/config"
	"campaign-console/internal/contacts"
	"campaign-console/internal/database"
	"campaign-console/internal/metrics"
	"campaign-console/internal/sms"
	"campaign-console/internal/vapi"
	"campaign-console/internal/voice"
	"campaign-console/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps is everything the handlers share for the lifetime of the server.
type Deps struct {
	Config    *config.Config
	Log       *zap.Logger
	Store     *contacts.Store
	Sender    sms.Sender
	Sequencer *campaign.Sequencer
	Vapi      *vapi.Client
	Voice     *voice.Campaign
	CallOpts  []voice.CallOption
	History   *database.History
	Hub       *ws.Hub
	Metrics   *metrics.Metrics
}

type Handlers struct {
	Contacts  *ContactHandler
	Template  *TemplateHandler
	Broadcast *BroadcastHandler
	Voice     *VoiceHandler
	History   *HistoryHandler
}

// NewHandlers builds the handlers. ctx bounds the campaigns they start.
func NewHandlers(ctx context.Context, d Deps) *Handlers {
	tmpl := NewTemplateHandler(d.Store)
	h := &Handlers{
		Contacts:  NewContactHandler(d.Store),
		Template:  tmpl,
		Broadcast: NewBroadcastHandler(ctx, d.Sender, d.Config, d.Sequencer, d.Store, tmpl, d.Log),
		Voice:     NewVoiceHandler(ctx, d.Vapi, d.Config, d.Voice, d.Store, tmpl, d.Log, d.CallOpts...),
	}
	if d.History != nil {
		h.History = NewHistoryHandler(d.History)
		h.Voice.Recorder = d.History
	}
	if d.Hub != nil {
		h.Voice.Events = d.Hub
	}
	h.Voice.Metrics = d.Metrics
	return h
}

// Shutdown stops the running campaigns and hangs up open calls.
func (h *Handlers) Shutdown(ctx context.Context) {
	h.Broadcast.Sequencer.Cancel()
	h.Voice.Shutdown(ctx)
	h.Broadcast.Sequencer.Wait()
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func NewRouter(h *Handlers, hub *ws.Hub, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log), corsMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	apiGroup := r.Group("/api")
	{
		if hub != nil {
			apiGroup.GET("/ws", func(c *gin.Context) { hub.ServeWs(c.Writer, c.Request) })
		}

		// Contacts
		apiGroup.GET("/contacts", h.Contacts.GetContacts)
		apiGroup.POST("/contacts", h.Contacts.CreateContact)
		apiGroup.GET("/contacts/headers", h.Contacts.GetHeaders)
		apiGroup.POST("/contacts/import", h.Contacts.ImportContacts)
		apiGroup.PUT("/contacts/:id", h.Contacts.UpdateContact)
		apiGroup.DELETE("/contacts/:id", h.Contacts.DeleteContact)

		// Template
		apiGroup.GET("/template", h.Template.GetTemplate)
		apiGroup.PUT("/template", h.Template.UpdateTemplate)
		apiGroup.GET("/template/preview/:id", h.Template.PreviewTemplate)

		// SMS
		apiGroup.POST("/sms", h.Broadcast.SendSMS)
		apiGroup.POST("/campaigns/sms", h.Broadcast.StartCampaign)
		apiGroup.GET("/campaigns/sms", h.Broadcast.GetCampaign)
		apiGroup.DELETE("/campaigns/sms", h.Broadcast.CancelCampaign)

		// Voice
		vapiGroup := apiGroup.Group("/vapi")
		{
			vapiGroup.POST("/call", h.Voice.StartCall)
			vapiGroup.GET("/call", h.Voice.GetCall)
			vapiGroup.PATCH("/call", h.Voice.UpdateAssistant)
			vapiGroup.DELETE("/call/:contactId", h.Voice.EndCall)
		}
		apiGroup.POST("/campaigns/voice", h.Voice.StartCampaign)
		apiGroup.GET("/campaigns/voice", h.Voice.GetCampaign)
		apiGroup.POST("/campaigns/voice/pause", h.Voice.PauseCampaign)
		apiGroup.POST("/campaigns/voice/resume", h.Voice.ResumeCampaign)
		apiGroup.DELETE("/campaigns/voice", h.Voice.StopCampaign)

		// History
		if h.History != nil {
			apiGroup.GET("/history/messages", h.History.GetMessages)
			apiGroup.GET("/history/calls", h.History.GetCalls)
		}
	}

	return r
}
