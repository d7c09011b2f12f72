package campaign

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"campaign-console/internal/contacts"
	"campaign-console/internal/metrics"
	"campaign-console/internal/models"
	"campaign-console/internal/sms"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

type mockSender struct {
	mu    sync.Mutex
	calls []sms.Message
	reply func(msg sms.Message) (sms.Result, error)
	block chan struct{}
}

func (m *mockSender) Name() string { return "mock" }

func (m *mockSender) Send(ctx context.Context, msg sms.Message) (sms.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, msg)
	m.mu.Unlock()
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return sms.Result{}, ctx.Err()
		}
	}
	if m.reply != nil {
		return m.reply(msg)
	}
	return sms.Result{OK: true, ProviderMessageID: "id-" + msg.Recipient}, nil
}

func (m *mockSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type recorder struct {
	mu   sync.Mutex
	rows []models.Message
}

func (r *recorder) RecordMessage(m *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *m)
	return nil
}

type publisher struct {
	mu     sync.Mutex
	events []string
}

func (p *publisher) Publish(eventType string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

var headers = []string{"nom", "telephone"}

func contact(id int64, nom, tel string) contacts.Contact {
	return contacts.Contact{ID: id, Fields: map[string]string{"nom": nom, "telephone": tel}}
}

func TestRun_EndToEnd(t *testing.T) {
	sender := &mockSender{}
	rec := &recorder{}
	seq := NewSequencer(zap.NewNop(), WithDelay(0), WithRecorder(rec))

	res, err := seq.Run(context.Background(), Request{
		Contacts: []contacts.Contact{
			contact(1, "Dubois", "+33600000001"),
			contact(2, "Martin", ""),
		},
		Headers:     headers,
		Template:    "Bonjour {nom}",
		Sender:      sender,
		SenderLabel: "EFFY PART",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []ContactError{{ContactID: 2, Contact: "Martin", Error: ReasonMissingPhone}}, res.Errors)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 1.0, res.Progress)
	assert.NotEmpty(t, res.RunID)
	assert.NotNil(t, res.FinishedAt)

	require.Equal(t, 1, sender.count())
	assert.Equal(t, "Bonjour Dubois", sender.calls[0].Body)
	assert.Equal(t, "+33600000001", sender.calls[0].Recipient)
	assert.Equal(t, "EFFY PART", sender.calls[0].Sender)
	assert.Equal(t, "1", sender.calls[0].Metadata["contact_id"])

	require.Len(t, rec.rows, 2)
	assert.Equal(t, "sent", rec.rows[0].Status)
	assert.Equal(t, "id-+33600000001", rec.rows[0].ProviderMessageID)
	assert.Equal(t, "failed", rec.rows[1].Status)
	assert.Equal(t, ReasonMissingPhone, rec.rows[1].Error)
}

func TestRun_MissingPhoneNeverCallsSender(t *testing.T) {
	sender := &mockSender{}
	seq := NewSequencer(zap.NewNop(), WithDelay(0))

	res, err := seq.Run(context.Background(), Request{
		Contacts: []contacts.Contact{
			{ID: 1, Fields: map[string]string{"nom": "Sans numéro"}},
			{ID: 2, Fields: map[string]string{"nom": "Vide", "telephone": ""}},
		},
		Headers:  headers,
		Template: "Bonjour",
		Sender:   sender,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, sender.count())
	assert.Equal(t, 2, res.Failed)
	for _, e := range res.Errors {
		assert.Equal(t, ReasonMissingPhone, e.Error)
	}
}

func TestRun_Conservation(t *testing.T) {
	sender := &mockSender{reply: func(msg sms.Message) (sms.Result, error) {
		switch msg.Recipient {
		case "0600000002":
			return sms.Result{ErrorMessage: "Insufficient credits"}, nil
		case "0600000003":
			return sms.Result{}, errors.New("connection reset")
		case "0600000004":
			return sms.Result{}, nil
		}
		return sms.Result{OK: true}, nil
	}}
	seq := NewSequencer(zap.NewNop(), WithDelay(0))

	var list []contacts.Contact
	for i := 1; i <= 6; i++ {
		tel := fmt.Sprintf("060000000%d", i)
		if i == 6 {
			tel = ""
		}
		list = append(list, contact(int64(i), fmt.Sprintf("C%d", i), tel))
	}

	res, err := seq.Run(context.Background(), Request{Contacts: list, Headers: headers, Template: "x", Sender: sender})
	require.NoError(t, err)

	assert.Equal(t, res.Total, res.Sent+res.Failed)
	assert.Equal(t, 6, res.Total)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 4, res.Failed)
	assert.Equal(t, 5, sender.count())

	failed := map[int64]string{}
	for _, e := range res.Errors {
		_, dup := failed[e.ContactID]
		assert.False(t, dup, "contact %d recorded twice", e.ContactID)
		failed[e.ContactID] = e.Error
	}
	assert.Equal(t, map[int64]string{
		2: "Insufficient credits",
		3: "connection reset",
		4: ReasonUnknown,
		6: ReasonMissingPhone,
	}, failed)
}

func TestRun_UnavailableCapabilityIsAFailure(t *testing.T) {
	seq := NewSequencer(zap.NewNop(), WithDelay(0))
	res, err := seq.Run(context.Background(), Request{
		Contacts: []contacts.Contact{contact(1, "Dubois", "0601020304")},
		Headers:  headers,
		Template: "x",
		Sender:   sms.Unavailable{Reason: "Configuration manquante: SMS_FACTOR_TOKEN"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, res.Errors[0].Error, "SMS_FACTOR_TOKEN")
}

func TestRun_NilSenderIsAFailure(t *testing.T) {
	seq := NewSequencer(zap.NewNop(), WithDelay(0))
	res, err := seq.Run(context.Background(), Request{
		Contacts: []contacts.Contact{contact(1, "Dubois", "0601020304")},
		Headers:  headers,
		Template: "x",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Error, "sms capability unavailable")
	assert.False(t, seq.Running())
}

func TestRun_UsesResolvedPhoneField(t *testing.T) {
	sender := &mockSender{}
	seq := NewSequencer(zap.NewNop(), WithDelay(0))
	_, err := seq.Run(context.Background(), Request{
		Contacts: []contacts.Contact{{ID: 1, Fields: map[string]string{"client": "A", "mobile_pro": "0611"}}},
		Headers:  []string{"client", "mobile_pro"},
		Template: "x",
		Sender:   sender,
	})
	require.NoError(t, err)
	require.Equal(t, 1, sender.count())
	assert.Equal(t, "0611", sender.calls[0].Recipient)
}

func TestRun_DelayBetweenContactsOnly(t *testing.T) {
	seq := NewSequencer(zap.NewNop(), WithDelay(30*time.Millisecond))

	start := time.Now()
	_, err := seq.Run(context.Background(), Request{
		Contacts: []contacts.Contact{contact(1, "A", "01"), contact(2, "B", "02"), contact(3, "C", "03")},
		Headers:  headers,
		Template: "x",
		Sender:   &mockSender{},
	})
	require.NoError(t, err)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	assert.Less(t, elapsed, 90*time.Millisecond+50*time.Millisecond)
}

func TestStart_RejectsConcurrentRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	sender := &mockSender{block: make(chan struct{})}
	pub := &publisher{}
	seq := NewSequencer(zap.NewNop(), WithDelay(0), WithPublisher(pub))
	req := Request{Contacts: []contacts.Contact{contact(1, "A", "01")}, Headers: headers, Template: "x", Sender: sender}

	initial, err := seq.Start(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, initial.Status)
	assert.True(t, seq.Running())

	_, err = seq.Start(context.Background(), req)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	_, err = seq.Run(context.Background(), req)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(sender.block)
	seq.Wait()

	snap := seq.Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 1, snap.Sent)
	assert.False(t, seq.Running())
	assert.Equal(t, []string{"sms_progress", "sms_completed"}, pub.events)
}

func TestCancel_StopsBetweenContacts(t *testing.T) {
	defer goleak.VerifyNone(t)

	seq := NewSequencer(zap.NewNop(), WithDelay(time.Hour))
	sender := &mockSender{}
	_, err := seq.Start(context.Background(), Request{
		Contacts: []contacts.Contact{contact(1, "A", "01"), contact(2, "B", "02")},
		Headers:  headers,
		Template: "x",
		Sender:   sender,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return seq.Snapshot().Sent == 1 }, time.Second, time.Millisecond)
	assert.True(t, seq.Cancel())
	seq.Wait()

	snap := seq.Snapshot()
	assert.Equal(t, StatusCancelled, snap.Status)
	assert.Equal(t, 1, snap.Processed())
	assert.Equal(t, 0.5, snap.Progress)
	assert.Equal(t, 1, sender.count())
	assert.False(t, seq.Cancel())
}

func TestRun_CountsMetrics(t *testing.T) {
	m := metrics.New()
	seq := NewSequencer(zap.NewNop(), WithDelay(0), WithMetrics(m))
	_, err := seq.Run(context.Background(), Request{
		Contacts: []contacts.Contact{contact(1, "A", "01"), contact(2, "B", "")},
		Headers:  headers,
		Template: "x",
		Sender:   &mockSender{},
	})
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SMSSent.WithLabelValues("mock")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SMSFailed.WithLabelValues("mock", "missing_phone")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CampaignRuns.WithLabelValues("sms", "completed")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ActiveCampaign.WithLabelValues("sms")))
}

func TestSnapshot_Idle(t *testing.T) {
	seq := NewSequencer(zap.NewNop())
	snap := seq.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Empty(t, snap.Errors)
	seq.Wait()
}
