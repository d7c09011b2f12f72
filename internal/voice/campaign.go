package voice

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"campaign-console/internal/contacts"
	"campaign-console/internal/metrics"
	"campaign-console/internal/models"
	"campaign-console/internal/template"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultCallDelay = 5 * time.Second

// Publisher receives progress events.
type Publisher interface {
	Publish(eventType string, data any)
}

// Recorder stores one row per finished call.
type Recorder interface {
	RecordCall(c *models.CallRecord) error
}

type CampaignOption func(*Campaign)

// WithDelay sets the default pause between two calls.
func WithDelay(d time.Duration) CampaignOption {
	return func(c *Campaign) { c.delay = d }
}

// WithCallOptions applies opts to every call of the campaign.
func WithCallOptions(opts ...CallOption) CampaignOption {
	return func(c *Campaign) { c.callOpts = append(c.callOpts, opts...) }
}

// WithResultTimeout bounds the wait for a single call result.
func WithResultTimeout(d time.Duration) CampaignOption {
	return func(c *Campaign) { c.resultTimeout = d }
}

func WithPublisher(p Publisher) CampaignOption {
	return func(c *Campaign) { c.publisher = p }
}

func WithRecorder(r Recorder) CampaignOption {
	return func(c *Campaign) { c.recorder = r }
}

func WithMetrics(m *metrics.Metrics) CampaignOption {
	return func(c *Campaign) { c.metrics = m }
}

// StartRequest describes one voice campaign. A zero Delay keeps the
// campaign default.
type StartRequest struct {
	Contacts []contacts.Contact
	Template string
	Delay    time.Duration
}

// CampaignSnapshot is what the console shows while calls go out.
type CampaignSnapshot struct {
	RunID       string               `json:"run_id"`
	Running     bool                 `json:"running"`
	Paused      bool                 `json:"paused"`
	Cursor      int                  `json:"cursor"`
	Total       int                  `json:"total"`
	Completed   int                  `json:"completed"`
	SuccessRate int                  `json:"success_rate"`
	Results     map[int64]CallResult `json:"results"`
	Current     *Snapshot            `json:"current,omitempty"`
}

// Campaign calls contacts one after the other. Only one campaign runs at a
// time; Pause and Resume keep the cursor.
type Campaign struct {
	caller        Caller
	log           *zap.Logger
	delay         time.Duration
	resultTimeout time.Duration
	callOpts      []CallOption
	publisher     Publisher
	recorder      Recorder
	metrics       *metrics.Metrics

	mu       sync.Mutex
	runID    string
	running  bool
	paused   bool
	cursor   int
	contacts []contacts.Contact
	results  map[int64]CallResult
	current  *Call
	cancel   context.CancelFunc
	resume   chan struct{}
	done     chan struct{}
}

func NewCampaign(caller Caller, log *zap.Logger, opts ...CampaignOption) *Campaign {
	c := &Campaign{
		caller:        caller,
		log:           log,
		delay:         DefaultCallDelay,
		resultTimeout: DefaultCallTimeout + 10*time.Second,
		results:       make(map[int64]CallResult),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the campaign in the background.
func (c *Campaign) Start(ctx context.Context, req StartRequest) (CampaignSnapshot, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return CampaignSnapshot{}, ErrAlreadyRunning
	}
	delay := c.delay
	if req.Delay > 0 {
		delay = req.Delay
	}

	ctx, cancel := context.WithCancel(ctx)
	c.runID = uuid.NewString()
	c.running = true
	c.paused = false
	c.cursor = 0
	c.contacts = append([]contacts.Contact(nil), req.Contacts...)
	c.results = make(map[int64]CallResult, len(req.Contacts))
	c.cancel = cancel
	c.resume = make(chan struct{}, 1)
	c.done = make(chan struct{})
	done := c.done
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.ActiveCampaign.WithLabelValues("voice").Set(1)
	}
	go func() {
		defer close(done)
		c.run(ctx, req.Template, delay)
	}()
	return snap, nil
}

func (c *Campaign) run(ctx context.Context, tmpl string, delay time.Duration) {
	c.mu.Lock()
	log := c.log.With(zap.String("run_id", c.runID))
	total := len(c.contacts)
	c.mu.Unlock()
	log.Info("Voice campaign started", zap.Int("total", total))

	status := "completed"
	for {
		c.mu.Lock()
		if c.cursor >= len(c.contacts) {
			c.mu.Unlock()
			break
		}
		if c.paused {
			resume := c.resume
			c.mu.Unlock()
			select {
			case <-resume:
				continue
			case <-ctx.Done():
			}
			status = "cancelled"
			break
		}
		index := c.cursor
		contact := c.contacts[index]
		c.mu.Unlock()

		if ctx.Err() != nil {
			status = "cancelled"
			break
		}

		res := c.callOne(ctx, log, contact, tmpl)

		c.mu.Lock()
		c.results[contact.ID] = res
		c.cursor++
		last := c.cursor >= len(c.contacts)
		snap := c.snapshotLocked()
		c.mu.Unlock()

		c.record(log, contact, res)
		c.publish("voice_progress", snap)

		if last {
			break
		}
		if !sleep(ctx, delay) {
			status = "cancelled"
			break
		}
	}

	c.mu.Lock()
	c.running = false
	c.paused = false
	c.cancel()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.ActiveCampaign.WithLabelValues("voice").Set(0)
		c.metrics.CampaignRuns.WithLabelValues("voice", status).Inc()
	}
	log.Info("Voice campaign finished",
		zap.String("status", status),
		zap.Int("completed", snap.Completed),
		zap.Int("success_rate", snap.SuccessRate),
	)
	c.publish("voice_completed", snap)
}

// callOne places a single call and waits for its result.
func (c *Campaign) callOne(ctx context.Context, log *zap.Logger, contact contacts.Contact, tmpl string) CallResult {
	firstMessage := template.Render(tmpl, contact.Fields, template.ModeSend)
	opts := append([]CallOption{WithLogger(log)}, c.callOpts...)
	call := NewCall(c.caller, contact, firstMessage, opts...)

	var forward sync.WaitGroup
	if c.publisher != nil {
		updates := call.Subscribe()
		forward.Add(1)
		go func() {
			defer forward.Done()
			for s := range updates {
				c.publish("call_state", s)
			}
		}()
	}
	defer forward.Wait()
	defer call.Close()

	c.mu.Lock()
	c.current = call
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.current = nil
		c.mu.Unlock()
	}()

	err := call.Start(ctx)
	if errors.Is(err, ErrNoPhoneNumber) {
		log.Warn("Contact has no phone number", zap.Int64("contact", contact.ID))
		return CallResult{
			ContactID:   contact.ID,
			Status:      ResultFailed,
			Sentiment:   SentimentNeutral,
			EndedReason: ReasonNoPhone,
			Error:       err.Error(),
		}
	}
	if err == nil && c.metrics != nil {
		c.metrics.CallsStarted.Inc()
	}

	wait := time.NewTimer(c.resultTimeout)
	defer wait.Stop()
	select {
	case <-call.Done():
	case <-ctx.Done():
		if err := call.End(context.Background()); err != nil {
			log.Debug("End call on stop", zap.Error(err))
		}
	case <-wait.C:
		log.Warn("No call result in time", zap.Int64("contact", contact.ID))
	}
	call.Close()

	res, ok := call.Result()
	if !ok {
		res = CallResult{ContactID: contact.ID, Status: ResultFailed, Sentiment: SentimentNeutral, EndedReason: ReasonCancelled}
	}
	return res
}

func (c *Campaign) record(log *zap.Logger, contact contacts.Contact, res CallResult) {
	if c.metrics != nil {
		c.metrics.CallsEnded.WithLabelValues(string(res.Status)).Inc()
		if res.CallID != "" {
			c.metrics.CallDuration.Observe(float64(res.DurationSeconds))
		}
	}
	if c.recorder == nil {
		return
	}
	c.mu.Lock()
	runID := c.runID
	c.mu.Unlock()
	err := c.recorder.RecordCall(&models.CallRecord{
		RunID:       runID,
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
		log.Error("Failed to record call", zap.Error(err))
	}
}

// Pause stops the campaign before its next call. The call in progress, if
// any, runs to its end.
func (c *Campaign) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return ErrNotRunning
	}
	c.paused = true
	// a resume that was never consumed must not cancel this pause
	select {
	case <-c.resume:
	default:
	}
	return nil
}

// Resume continues from the cursor.
func (c *Campaign) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return ErrNotRunning
	}
	if !c.paused {
		return ErrNotPaused
	}
	c.paused = false
	select {
	case c.resume <- struct{}{}:
	default:
	}
	return nil
}

// Stop interrupts the campaign and hangs up the current call.
func (c *Campaign) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return ErrNotRunning
	}
	c.cancel()
	return nil
}

// Wait blocks until the current campaign, if any, has finished.
func (c *Campaign) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// EndCall hangs up the call in progress when it belongs to contactID.
func (c *Campaign) EndCall(ctx context.Context, contactID int64) error {
	c.mu.Lock()
	call := c.current
	c.mu.Unlock()
	if call == nil || call.contact.ID != contactID {
		return ErrCallNotActive
	}
	return call.End(ctx)
}

func (c *Campaign) Snapshot() CampaignSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Campaign) snapshotLocked() CampaignSnapshot {
	s := CampaignSnapshot{
		RunID:     c.runID,
		Running:   c.running,
		Paused:    c.paused,
		Cursor:    c.cursor,
		Total:     len(c.contacts),
		Completed: len(c.results),
		Results:   make(map[int64]CallResult, len(c.results)),
	}
	completed := 0
	for id, r := range c.results {
		s.Results[id] = r
		if r.Status == ResultCompleted {
			completed++
		}
	}
	if len(c.results) > 0 {
		s.SuccessRate = int(math.Round(float64(completed) / float64(len(c.results)) * 100))
	}
	if c.current != nil {
		cur := c.current.Snapshot()
		s.Current = &cur
	}
	return s
}

func (c *Campaign) publish(eventType string, data any) {
	if c.publisher != nil {
		c.publisher.Publish(eventType, data)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
