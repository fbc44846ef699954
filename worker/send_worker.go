package worker

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"certimail/models"
	"certimail/utils"
)

// Dialer opens an SMTP connection. *gomail.Dialer satisfies it; tests
// substitute a fake transport.
type Dialer interface {
	Dial() (gomail.SendCloser, error)
}

// BatchStore persists batch state between rows so an interrupted batch
// can resume from its cursor.
type BatchStore interface {
	UpdateStatus(batchID, status, errMsg string) error
	UpdateProgress(batchID string, cursor, sent, failed int) error
}

// BatchJob is the in-memory working set for one bulk send: the
// snapshotted template, sender identity, row-records and the image list
// index-aligned with them. StartAt/Sent/Failed are non-zero when
// resuming a previously interrupted batch.
type BatchJob struct {
	ID          string
	EmailColumn string
	Subject     string
	Content     string
	SenderName  string
	SenderEmail string
	Rows        []map[string]string
	Images      []string
	StartAt     int
	Sent        int
	Failed      int
}

// SendWorker runs bulk send batches sequentially: verify the transport,
// then one row at a time with a fixed inter-send delay. Row failures
// are counted and reported, never retried; transport verify failure is
// fatal for the whole batch.
type SendWorker struct {
	Store     BatchStore
	Hub       *utils.ProgressHub
	Logger    *logrus.Logger
	SendDelay time.Duration
}

func NewSendWorker(store BatchStore, hub *utils.ProgressHub, logger *logrus.Logger, sendDelay time.Duration) *SendWorker {
	if sendDelay <= 0 {
		sendDelay = 200 * time.Millisecond
	}
	return &SendWorker{
		Store:     store,
		Hub:       hub,
		Logger:    logger,
		SendDelay: sendDelay,
	}
}

// Run executes the batch until completion, cancellation, or a fatal
// transport error. It is meant to be launched on its own goroutine via
// Registry.Launch; the triggering request has already returned by the
// time the first row is processed.
func (w *SendWorker) Run(ctx context.Context, job BatchJob, dialer Dialer) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("batch %s panicked: %v", job.ID, r)
			w.Logger.WithField("batch", job.ID).Error(err)
			sentry.CurrentHub().CaptureException(err)
			w.fail(job, "Unexpected error while sending emails")
		}
	}()

	total := len(job.Rows)
	sent, failed := job.Sent, job.Failed

	if err := w.Store.UpdateStatus(job.ID, models.BatchVerifying, ""); err != nil {
		w.Logger.WithField("batch", job.ID).Warnf("Failed to persist status: %v", err)
	}

	sender, err := dialer.Dial()
	if err != nil {
		w.Logger.WithField("batch", job.ID).Errorf("SMTP verify failed: %v", err)
		sentry.CurrentHub().CaptureException(err)
		w.fail(job, fmt.Sprintf("SMTP connection failed: %v", err))
		return
	}
	defer sender.Close()

	if err := w.Store.UpdateStatus(job.ID, models.BatchSending, ""); err != nil {
		w.Logger.WithField("batch", job.ID).Warnf("Failed to persist status: %v", err)
	}

	// Initial progress event before the first row
	w.Hub.Publish(job.ID, utils.ProgressEvent{
		Type:    utils.EventProgress,
		Total:   total,
		Sent:    sent,
		Failed:  failed,
		Message: "Starting email send",
	})

	for i := job.StartAt; i < total; i++ {
		select {
		case <-ctx.Done():
			w.Logger.WithField("batch", job.ID).Info("Batch canceled")
			if err := w.Store.UpdateStatus(job.ID, models.BatchCanceled, ""); err != nil {
				w.Logger.WithField("batch", job.ID).Warnf("Failed to persist status: %v", err)
			}
			w.Hub.Publish(job.ID, utils.ProgressEvent{
				Type:    utils.EventError,
				Total:   total,
				Sent:    sent,
				Failed:  failed,
				Message: "Send canceled",
			})
			return
		default:
		}

		row := job.Rows[i]
		email := strings.TrimSpace(row[job.EmailColumn])

		var message string
		delivered := false
		switch {
		case email == "":
			// Skipped rows never touch the transport
			failed++
			message = fmt.Sprintf("Skipped row %d: no email address", i+1)

		case utils.ValidateEmailFormat(email) != nil:
			failed++
			message = fmt.Sprintf("Skipped row %d: invalid email address", i+1)

		case i >= len(job.Images):
			failed++
			message = fmt.Sprintf("No generated image for row %d", i+1)

		default:
			err := w.sendRow(sender, job, row, email, job.Images[i])
			if err != nil {
				failed++
				message = fmt.Sprintf("Failed to send to %s: %v", email, err)
				w.Logger.WithField("batch", job.ID).Warn(message)
			} else {
				sent++
				delivered = true
				message = fmt.Sprintf("Sent to %s", email)
			}
		}

		if err := w.Store.UpdateProgress(job.ID, i+1, sent, failed); err != nil {
			w.Logger.WithField("batch", job.ID).Warnf("Failed to persist progress: %v", err)
		}

		w.Hub.Publish(job.ID, utils.ProgressEvent{
			Type:         utils.EventProgress,
			Total:        total,
			Sent:         sent,
			Failed:       failed,
			CurrentEmail: email,
			Message:      message,
		})

		// Outbound rate throttle between successful sends
		if delivered && i+1 < total {
			time.Sleep(w.SendDelay)
		}
	}

	if err := w.Store.UpdateStatus(job.ID, models.BatchCompleted, ""); err != nil {
		w.Logger.WithField("batch", job.ID).Warnf("Failed to persist status: %v", err)
	}

	w.Hub.Publish(job.ID, utils.ProgressEvent{
		Type:    utils.EventComplete,
		Total:   total,
		Sent:    sent,
		Failed:  failed,
		Message: fmt.Sprintf("Finished: %d sent, %d failed", sent, failed),
	})
}

func (w *SendWorker) sendRow(sender gomail.SendCloser, job BatchJob, row map[string]string, email, imageURI string) error {
	subject := utils.SubstituteVars(job.Subject, row)
	body := utils.SubstituteVars(job.Content, row)

	imageData, err := base64.StdEncoding.DecodeString(utils.DataURIPayload(imageURI))
	if err != nil {
		return fmt.Errorf("invalid image data: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", job.SenderName, job.SenderEmail))
	m.SetHeader("To", email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	m.Attach("Certificate.png", gomail.SetCopyFunc(func(wr io.Writer) error {
		_, err := wr.Write(imageData)
		return err
	}))

	return gomail.Send(sender, m)
}

func (w *SendWorker) fail(job BatchJob, message string) {
	if err := w.Store.UpdateStatus(job.ID, models.BatchFailed, message); err != nil {
		w.Logger.WithField("batch", job.ID).Warnf("Failed to persist status: %v", err)
	}
	w.Hub.Publish(job.ID, utils.ProgressEvent{
		Type:    utils.EventError,
		Message: message,
	})
}
