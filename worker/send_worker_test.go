package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"certimail/models"
	"certimail/utils"
)

const testImage = "data:image/png;base64,aGVsbG8="

type fakeSender struct {
	mu         sync.Mutex
	recipients []string
	failFor    map[string]error
	closed     bool
}

func (f *fakeSender) Send(from string, to []string, msg io.WriterTo) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(to) > 0 {
		if err, ok := f.failFor[to[0]]; ok {
			return err
		}
		f.recipients = append(f.recipients, to[0])
	}
	return nil
}

func (f *fakeSender) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeDialer struct {
	sender  *fakeSender
	dialErr error
}

func (f *fakeDialer) Dial() (gomail.SendCloser, error) {
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	return f.sender, nil
}

type memStore struct {
	mu       sync.Mutex
	statuses []string
	lastErr  string
	cursor   int
	sent     int
	failed   int
}

func (m *memStore) UpdateStatus(batchID, status, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	if errMsg != "" {
		m.lastErr = errMsg
	}
	return nil
}

func (m *memStore) UpdateProgress(batchID string, cursor, sent, failed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursor, m.sent, m.failed = cursor, sent, failed
	return nil
}

func (m *memStore) lastStatus() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.statuses) == 0 {
		return ""
	}
	return m.statuses[len(m.statuses)-1]
}

func newTestWorker(store *memStore, hub *utils.ProgressHub) *SendWorker {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewSendWorker(store, hub, logger, time.Millisecond)
}

func drainEvents(ch chan utils.ProgressEvent) []utils.ProgressEvent {
	var events []utils.ProgressEvent
	for {
		select {
		case event := <-ch:
			events = append(events, event)
		default:
			return events
		}
	}
}

func twoRowJob() BatchJob {
	return BatchJob{
		ID:          "batch-1",
		EmailColumn: "email",
		Subject:     "Hi {name}",
		Content:     "<p>Hello {name}</p>",
		SenderName:  "Certs",
		SenderEmail: "certs@example.com",
		Rows: []map[string]string{
			{"name": "Alice", "email": "alice@example.com"},
			{"name": "Bob", "email": ""},
		},
		Images: []string{testImage, testImage},
	}
}

func TestRunSendsValidRowsAndSkipsMissingEmail(t *testing.T) {
	store := &memStore{}
	hub := utils.NewProgressHub()
	sender := &fakeSender{}

	ch := hub.Subscribe("batch-1")
	newTestWorker(store, hub).Run(context.Background(), twoRowJob(), &fakeDialer{sender: sender})

	// Only Alice reaches the transport; Bob is counted failed without a
	// send attempt
	require.Equal(t, []string{"alice@example.com"}, sender.recipients)
	assert.True(t, sender.closed)

	assert.Equal(t, models.BatchCompleted, store.lastStatus())
	assert.Equal(t, 2, store.cursor)
	assert.Equal(t, 1, store.sent)
	assert.Equal(t, 1, store.failed)

	events := drainEvents(ch)
	// Initial progress, one per row, then complete
	require.Len(t, events, 4)
	assert.Equal(t, utils.EventComplete, events[len(events)-1].Type)
	assert.Equal(t, 1, events[len(events)-1].Sent)
	assert.Equal(t, 1, events[len(events)-1].Failed)
}

func TestRunSkipsMalformedEmail(t *testing.T) {
	store := &memStore{}
	hub := utils.NewProgressHub()
	sender := &fakeSender{}

	job := twoRowJob()
	job.Rows[1]["email"] = "not-an-address"

	newTestWorker(store, hub).Run(context.Background(), job, &fakeDialer{sender: sender})

	assert.Equal(t, []string{"alice@example.com"}, sender.recipients)
	assert.Equal(t, 1, store.sent)
	assert.Equal(t, 1, store.failed)
	assert.Equal(t, models.BatchCompleted, store.lastStatus())
}

func TestRunTransportFailureCountsRowFailed(t *testing.T) {
	store := &memStore{}
	hub := utils.NewProgressHub()
	sender := &fakeSender{failFor: map[string]error{
		"alice@example.com": errors.New("mailbox unavailable"),
	}}

	job := twoRowJob()
	job.Rows[1]["email"] = "bob@example.com"

	newTestWorker(store, hub).Run(context.Background(), job, &fakeDialer{sender: sender})

	// Alice fails, the batch continues and Bob still goes out
	assert.Equal(t, []string{"bob@example.com"}, sender.recipients)
	assert.Equal(t, models.BatchCompleted, store.lastStatus())
	assert.Equal(t, 1, store.sent)
	assert.Equal(t, 1, store.failed)
}

func TestRunDialFailureIsFatal(t *testing.T) {
	store := &memStore{}
	hub := utils.NewProgressHub()

	ch := hub.Subscribe("batch-1")
	newTestWorker(store, hub).Run(context.Background(), twoRowJob(),
		&fakeDialer{dialErr: errors.New("connection refused")})

	assert.Equal(t, models.BatchFailed, store.lastStatus())
	assert.Contains(t, store.lastErr, "SMTP connection failed")

	events := drainEvents(ch)
	require.Len(t, events, 1)
	assert.Equal(t, utils.EventError, events[0].Type)
}

func TestRunShortImageListFailsRemainingRows(t *testing.T) {
	store := &memStore{}
	hub := utils.NewProgressHub()
	sender := &fakeSender{}

	job := twoRowJob()
	job.Rows[1]["email"] = "bob@example.com"
	job.Images = job.Images[:1]

	newTestWorker(store, hub).Run(context.Background(), job, &fakeDialer{sender: sender})

	assert.Equal(t, []string{"alice@example.com"}, sender.recipients)
	assert.Equal(t, 1, store.sent)
	assert.Equal(t, 1, store.failed)
	assert.Equal(t, models.BatchCompleted, store.lastStatus())
}

func TestRunCancellationStopsBeforeNextRow(t *testing.T) {
	store := &memStore{}
	hub := utils.NewProgressHub()
	sender := &fakeSender{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := hub.Subscribe("batch-1")
	newTestWorker(store, hub).Run(ctx, twoRowJob(), &fakeDialer{sender: sender})

	assert.Empty(t, sender.recipients)
	assert.Equal(t, models.BatchCanceled, store.lastStatus())

	events := drainEvents(ch)
	last := events[len(events)-1]
	assert.Equal(t, utils.EventError, last.Type)
	assert.Equal(t, "Send canceled", last.Message)
}

func TestRunResumesFromCursor(t *testing.T) {
	store := &memStore{}
	hub := utils.NewProgressHub()
	sender := &fakeSender{}

	job := twoRowJob()
	job.Rows[1]["email"] = "bob@example.com"
	job.StartAt = 1
	job.Sent = 1

	newTestWorker(store, hub).Run(context.Background(), job, &fakeDialer{sender: sender})

	// Only the second row is attempted; counters continue from the
	// interrupted run
	assert.Equal(t, []string{"bob@example.com"}, sender.recipients)
	assert.Equal(t, 2, store.sent)
	assert.Equal(t, 0, store.failed)
	assert.Equal(t, models.BatchCompleted, store.lastStatus())
}

func TestRunSubstitutesRowValues(t *testing.T) {
	store := &memStore{}
	hub := utils.NewProgressHub()
	sender := &fakeSender{}

	job := BatchJob{
		ID:          "batch-1",
		EmailColumn: "email",
		Subject:     "Certificate for {name}",
		Content:     "Hello {{name}}",
		SenderName:  "Certs",
		SenderEmail: "certs@example.com",
		Rows:        []map[string]string{{"name": "Alice", "email": "alice@example.com"}},
		Images:      []string{testImage},
	}

	newTestWorker(store, hub).Run(context.Background(), job, &fakeDialer{sender: sender})

	require.Equal(t, []string{"alice@example.com"}, sender.recipients)
	assert.Equal(t, models.BatchCompleted, store.lastStatus())
}

func TestRunInvalidImageDataCountsFailed(t *testing.T) {
	store := &memStore{}
	hub := utils.NewProgressHub()
	sender := &fakeSender{}

	job := twoRowJob()
	job.Rows = job.Rows[:1]
	job.Images = []string{"data:image/png;base64,%%%invalid%%%"}

	newTestWorker(store, hub).Run(context.Background(), job, &fakeDialer{sender: sender})

	assert.Empty(t, sender.recipients)
	assert.Equal(t, 0, store.sent)
	assert.Equal(t, 1, store.failed)
	assert.Equal(t, models.BatchCompleted, store.lastStatus())
}
