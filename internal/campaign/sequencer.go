// Package campaign dispatches one templated SMS per contact, strictly in order.
package campaign

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"campaign-console/internal/contacts"
	"campaign-console/internal/metrics"
	"campaign-console/internal/models"
	"campaign-console/internal/sms"
	"campaign-console/internal/template"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrAlreadyRunning = errors.New("a campaign is already running")

const DefaultDelay = 500 * time.Millisecond

// Publisher receives progress events.
type Publisher interface {
	Publish(eventType string, data any)
}

// Recorder stores one row per dispatch attempt.
type Recorder interface {
	RecordMessage(m *models.Message) error
}

// Request describes one campaign run.
type Request struct {
	Contacts    []contacts.Contact
	Headers     []string
	Template    string
	Sender      sms.Sender
	SenderLabel string
}

type Option func(*Sequencer)

// WithDelay sets the pause between two contacts.
func WithDelay(d time.Duration) Option {
	return func(s *Sequencer) { s.delay = d }
}

func WithPublisher(p Publisher) Option {
	return func(s *Sequencer) { s.publisher = p }
}

func WithRecorder(r Recorder) Option {
	return func(s *Sequencer) { s.recorder = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sequencer) { s.metrics = m }
}

// Sequencer runs at most one SMS campaign at a time.
type Sequencer struct {
	log       *zap.Logger
	delay     time.Duration
	publisher Publisher
	recorder  Recorder
	metrics   *metrics.Metrics

	mu      sync.Mutex
	current Results
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewSequencer(log *zap.Logger, opts ...Option) *Sequencer {
	s := &Sequencer{
		log:     log,
		delay:   DefaultDelay,
		current: Results{Status: StatusIdle, Errors: []ContactError{}},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the run in the background and returns its initial state.
func (s *Sequencer) Start(ctx context.Context, req Request) (Results, error) {
	ctx, done, err := s.begin(ctx, req)
	if err != nil {
		return Results{}, err
	}
	initial := s.Snapshot()
	go func() {
		defer close(done)
		s.run(ctx, req)
	}()
	return initial, nil
}

// Run processes every contact and returns the final aggregate.
func (s *Sequencer) Run(ctx context.Context, req Request) (Results, error) {
	ctx, done, err := s.begin(ctx, req)
	if err != nil {
		return Results{}, err
	}
	defer close(done)
	return s.run(ctx, req), nil
}

// Snapshot returns a copy of the current or last run.
func (s *Sequencer) Snapshot() Results {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.copy()
}

// Running reports whether a run is in progress.
func (s *Sequencer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Cancel interrupts the running campaign between two contacts.
func (s *Sequencer) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	s.cancel()
	return true
}

// Wait blocks until the current run, if any, has finished.
func (s *Sequencer) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *Sequencer) begin(ctx context.Context, req Request) (context.Context, chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil, nil, ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	s.current = Results{
		RunID:     uuid.NewString(),
		Total:     len(req.Contacts),
		Errors:    []ContactError{},
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}
	if s.metrics != nil {
		s.metrics.ActiveCampaign.WithLabelValues("sms").Set(1)
	}
	return ctx, s.done, nil
}

func (s *Sequencer) run(ctx context.Context, req Request) Results {
	if req.Sender == nil {
		req.Sender = sms.Unavailable{Reason: "no SMS provider configured"}
	}
	runID := s.Snapshot().RunID
	log := s.log.With(zap.String("run_id", runID), zap.String("provider", req.Sender.Name()))
	log.Info("SMS campaign started", zap.Int("total", len(req.Contacts)))

	phoneField := contacts.PhoneField(req.Headers)
	status := StatusCompleted

	for i, c := range req.Contacts {
		if ctx.Err() != nil {
			status = StatusCancelled
			break
		}

		s.dispatch(ctx, log, runID, req, phoneField, i, c)

		if i < len(req.Contacts)-1 && !s.sleep(ctx) {
			status = StatusCancelled
			break
		}
	}

	s.mu.Lock()
	now := time.Now()
	s.current.Status = status
	s.current.FinishedAt = &now
	s.current.updateProgress()
	s.running = false
	s.cancel()
	final := s.current.copy()
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ActiveCampaign.WithLabelValues("sms").Set(0)
		s.metrics.CampaignRuns.WithLabelValues("sms", string(status)).Inc()
	}
	log.Info("SMS campaign finished",
		zap.String("status", string(status)),
		zap.Int("sent", final.Sent),
		zap.Int("failed", final.Failed),
	)
	s.publish("sms_completed", final)
	return final
}

// dispatch handles a single contact. Nothing it does can abort the run.
func (s *Sequencer) dispatch(ctx context.Context, log *zap.Logger, runID string, req Request, phoneField string, index int, c contacts.Contact) {
	label := contacts.Label(c, req.Headers, index)
	body := template.Render(req.Template, c.Fields, template.ModeSend)
	phone := c.Fields[phoneField]

	record := &models.Message{
		RunID:        runID,
		ContactID:    c.ID,
		ContactLabel: label,
		Recipient:    phone,
		Body:         body,
		Sender:       req.SenderLabel,
		Provider:     req.Sender.Name(),
	}

	var errMsg string
	if phone == "" {
		errMsg = ReasonMissingPhone
	} else {
		res, err := req.Sender.Send(ctx, sms.Message{
			Recipient: phone,
			Body:      body,
			Sender:    req.SenderLabel,
			Metadata: map[string]string{
				"run_id":     runID,
				"contact_id": strconv.FormatInt(c.ID, 10),
			},
		})
		switch {
		case err == nil && res.OK:
			record.ProviderMessageID = res.ProviderMessageID
		case err == nil && res.ErrorMessage != "":
			errMsg = res.ErrorMessage
		case err != nil:
			errMsg = err.Error()
		default:
			errMsg = ReasonUnknown
		}
	}

	s.mu.Lock()
	if errMsg == "" {
		s.current.Sent++
	} else {
		s.current.Failed++
		s.current.Errors = append(s.current.Errors, ContactError{ContactID: c.ID, Contact: label, Error: errMsg})
	}
	s.current.updateProgress()
	snap := s.current.copy()
	s.mu.Unlock()

	if errMsg == "" {
		record.Status = "sent"
		log.Info("SMS sent", zap.String("contact", label), zap.Int("index", index))
		if s.metrics != nil {
			s.metrics.SMSSent.WithLabelValues(req.Sender.Name()).Inc()
		}
	} else {
		record.Status = "failed"
		record.Error = errMsg
		log.Warn("SMS failed", zap.String("contact", label), zap.Int("index", index), zap.String("error", errMsg))
		if s.metrics != nil {
			reason := "provider"
			if phone == "" {
				reason = "missing_phone"
			}
			s.metrics.SMSFailed.WithLabelValues(req.Sender.Name(), reason).Inc()
		}
	}

	if s.recorder != nil {
		if err := s.recorder.RecordMessage(record); err != nil {
			log.Error("Failed to record message", zap.Error(err))
		}
	}
	s.publish("sms_progress", snap)
}

// sleep waits for the inter-contact delay; false means the run was cancelled.
func (s *Sequencer) sleep(ctx context.Context) bool {
	if s.delay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(s.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *Sequencer) publish(eventType string, data any) {
	if s.publisher != nil {
		s.publisher.Publish(eventType, data)
	}
}
