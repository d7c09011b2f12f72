package voice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"campaign-console/internal/contacts"

	"go.uber.org/zap"
)

type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateEnded      State = "ended"
)

const (
	DefaultTickInterval = time.Second
	DefaultPollInterval = 3 * time.Second
	DefaultCallTimeout  = 5 * time.Minute
	DefaultCountryCode  = "+33"
)

// Snapshot is the observable state of a call.
type Snapshot struct {
	ContactID      int64       `json:"contact_id"`
	State          State       `json:"state"`
	CallID         string      `json:"call_id,omitempty"`
	PhoneNumber    string      `json:"phone_number,omitempty"`
	ElapsedSeconds int         `json:"elapsed"`
	ProviderStatus string      `json:"provider_status,omitempty"`
	Result         *CallResult `json:"result,omitempty"`
}

type CallOption func(*Call)

func WithTickInterval(d time.Duration) CallOption {
	return func(c *Call) { c.tickInterval = d }
}

func WithPollInterval(d time.Duration) CallOption {
	return func(c *Call) { c.pollInterval = d }
}

// WithTimeout bounds the whole call from the moment it is accepted.
func WithTimeout(d time.Duration) CallOption {
	return func(c *Call) { c.timeout = d }
}

func WithCountryCode(cc string) CallOption {
	return func(c *Call) { c.countryCode = cc }
}

// OnComplete registers the function receiving the result. It runs once.
func OnComplete(fn func(CallResult)) CallOption {
	return func(c *Call) { c.onComplete = fn }
}

func WithLogger(log *zap.Logger) CallOption {
	return func(c *Call) { c.log = log }
}

// Call is the idle -> connecting -> active -> ended state machine of a single
// outbound call. It owns its tickers and its monitor goroutine; both are gone
// once the call is ended.
type Call struct {
	caller       Caller
	contact      contacts.Contact
	firstMessage string

	tickInterval time.Duration
	pollInterval time.Duration
	timeout      time.Duration
	countryCode  string
	onComplete   func(CallResult)
	log          *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}

	mu        sync.Mutex
	state     State
	callID    string
	phone     string
	elapsed   int
	provider  string
	answered  bool
	result    *CallResult
	startErr  error
	observers []chan Snapshot
}

func NewCall(caller Caller, contact contacts.Contact, firstMessage string, opts ...CallOption) *Call {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Call{
		caller:       caller,
		contact:      contact,
		firstMessage: firstMessage,
		tickInterval: DefaultTickInterval,
		pollInterval: DefaultPollInterval,
		timeout:      DefaultCallTimeout,
		countryCode:  DefaultCountryCode,
		log:          zap.NewNop(),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		state:        StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.Int64("contact", contact.ID))
	return c
}

// Start dials the contact. Without a phone number the call stays idle and
// ErrNoPhoneNumber is returned. An initiation failure ends the call.
func (c *Call) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrCallInProgress
	}
	raw := contacts.ResolvePhone(c.contact.Fields)
	if raw == "" {
		c.mu.Unlock()
		return ErrNoPhoneNumber
	}
	c.phone = contacts.FormatE164(raw, c.countryCode)
	c.state = StateConnecting
	c.mu.Unlock()
	c.notify()

	ictx, stop := context.WithCancel(ctx)
	defer stop()
	unregister := context.AfterFunc(c.ctx, stop)
	defer unregister()

	c.log.Info("Initiating call", zap.String("phone", c.phone))
	callID, err := c.caller.Initiate(ictx, InitiateRequest{
		PhoneNumber:  c.phone,
		FirstMessage: c.firstMessage,
		CustomerName: contacts.DisplayName(c.contact.Fields),
	})
	if err != nil {
		c.log.Warn("Call initiation failed", zap.Error(err))
		c.mu.Lock()
		c.startErr = err
		c.mu.Unlock()
		c.finish(CallResult{
			Status:      ResultFailed,
			EndedReason: ReasonInitiationFailed,
			Error:       err.Error(),
		})
		return fmt.Errorf("initiate call: %w", err)
	}

	c.mu.Lock()
	if c.state == StateEnded {
		// closed while dialing
		c.mu.Unlock()
		return nil
	}
	c.callID = callID
	c.state = StateActive
	c.wg.Add(1)
	c.mu.Unlock()

	c.log.Info("Call active", zap.String("call_id", callID))
	c.notify()
	go c.monitor(callID)
	return nil
}

// monitor runs the duration ticker, the status poll and the hard timeout.
func (c *Call) monitor(callID string) {
	defer c.wg.Done()

	tick := time.NewTicker(c.tickInterval)
	defer tick.Stop()
	poll := time.NewTicker(c.pollInterval)
	defer poll.Stop()
	timeout := time.NewTimer(c.timeout)
	defer timeout.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return

		case <-tick.C:
			c.mu.Lock()
			c.elapsed++
			c.mu.Unlock()
			c.notify()

		case <-poll.C:
			st, err := c.caller.PollStatus(c.ctx, callID)
			if err != nil {
				if c.ctx.Err() != nil {
					return
				}
				c.log.Warn("Error polling call status", zap.String("call_id", callID), zap.Error(err))
				continue
			}
			c.mu.Lock()
			c.provider = st.Status
			if st.Answered() {
				c.answered = true
			}
			elapsed := c.elapsed
			c.mu.Unlock()

			if st.Terminal() {
				c.finish(resultFromStatus(st, elapsed))
				return
			}
			c.notify()

		case <-timeout.C:
			c.mu.Lock()
			status := ResultNoAnswer
			if c.answered {
				status = ResultFailed
			}
			elapsed := c.elapsed
			c.mu.Unlock()

			c.log.Warn("Call timed out", zap.String("call_id", callID))
			c.finish(CallResult{
				DurationSeconds: elapsed,
				Status:          status,
				Sentiment:       SentimentNeutral,
				EndedReason:     ReasonTimeout,
			})
			return
		}
	}
}

func resultFromStatus(st ProviderStatus, elapsed int) CallResult {
	status := statusFromEndedReason(st.EndedReason)
	if st.Status == "failed" {
		status = ResultFailed
	}
	duration := int(st.DurationSeconds)
	if duration <= 0 {
		duration = elapsed
	}
	return CallResult{
		DurationSeconds: duration,
		Status:          status,
		Transcript:      st.Transcript,
		Sentiment:       AnalyzeSentiment(st.Transcript),
		EndedReason:     st.EndedReason,
	}
}

// End is the operator hang-up. The provider is asked to terminate the call
// when it can; either way the call ends locally as caller-ended, unless the
// provider already reported a terminal status.
func (c *Call) End(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateEnded:
		c.mu.Unlock()
		return nil
	case StateActive:
	default:
		c.mu.Unlock()
		return ErrCallNotActive
	}
	callID := c.callID
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()

	if t, ok := c.caller.(Terminator); ok {
		if err := t.Terminate(ctx, callID); err != nil {
			c.log.Warn("Terminate call failed", zap.String("call_id", callID), zap.Error(err))
		}
	}

	c.mu.Lock()
	elapsed := c.elapsed
	c.mu.Unlock()
	c.finish(CallResult{
		DurationSeconds: elapsed,
		Status:          ResultCompleted,
		Sentiment:       SentimentNeutral,
		EndedReason:     ReasonCallerEnded,
	})
	return nil
}

// Close releases every timer, goroutine and subscription. A call that was
// dialed but has not ended yet is ended as cancelled.
func (c *Call) Close() {
	c.cancel()
	c.mu.Lock()
	idle := c.state == StateIdle
	elapsed := c.elapsed
	if idle {
		for _, ch := range c.observers {
			close(ch)
		}
		c.observers = nil
	}
	c.mu.Unlock()

	if !idle {
		c.finish(CallResult{
			DurationSeconds: elapsed,
			Status:          ResultFailed,
			Sentiment:       SentimentNeutral,
			EndedReason:     ReasonCancelled,
		})
	}
	c.wg.Wait()
}

// finish moves the call to ended. Only the first caller wins.
func (c *Call) finish(res CallResult) bool {
	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return false
	}
	res.CallID = c.callID
	res.ContactID = c.contact.ID
	if res.Sentiment == "" {
		res.Sentiment = SentimentNeutral
	}
	c.state = StateEnded
	c.result = &res
	snap := c.snapshotLocked()
	for _, ch := range c.observers {
		deliver(ch, snap)
		close(ch)
	}
	c.observers = nil
	c.mu.Unlock()

	c.cancel()
	close(c.done)

	c.log.Info("Call ended",
		zap.String("call_id", res.CallID),
		zap.String("status", string(res.Status)),
		zap.String("reason", res.EndedReason),
	)
	if c.onComplete != nil {
		c.onComplete(res)
	}
	return true
}

// Done is closed once the call has a result.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Result returns the terminal result, if any.
func (c *Call) Result() (CallResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return CallResult{}, false
	}
	return *c.result, true
}

// Err returns the initiation error, if dialing failed.
func (c *Call) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startErr
}

func (c *Call) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Call) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Call) snapshotLocked() Snapshot {
	s := Snapshot{
		ContactID:      c.contact.ID,
		State:          c.state,
		CallID:         c.callID,
		PhoneNumber:    c.phone,
		ElapsedSeconds: c.elapsed,
		ProviderStatus: c.provider,
	}
	if c.result != nil {
		r := *c.result
		s.Result = &r
	}
	return s
}

// Subscribe returns a channel of state changes. It receives the current state
// first and is closed after the ended state. Slow readers miss intermediate
// snapshots, never the last one.
func (c *Call) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 8)
	c.mu.Lock()
	defer c.mu.Unlock()
	ch <- c.snapshotLocked()
	if c.state == StateEnded || c.ctx.Err() != nil {
		close(ch)
		return ch
	}
	c.observers = append(c.observers, ch)
	return ch
}

func (c *Call) notify() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateEnded {
		return
	}
	snap := c.snapshotLocked()
	for _, ch := range c.observers {
		deliver(ch, snap)
	}
}

// deliver never blocks: when the buffer is full the oldest snapshot is dropped.
func deliver(ch chan Snapshot, s Snapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
