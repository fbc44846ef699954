package controller

import (
	"bufio"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"certimail/models"
	"certimail/utils"
)

const streamHeartbeat = 15 * time.Second

// StreamBatchProgress serves the batch's live progress as server-sent
// events. The browser's EventSource authenticates through the access
// token cookie since it cannot set headers.
//
// A batch that already reached a terminal state replays its final event
// from the persisted record, so reconnecting after completion still
// resolves instead of hanging.
func StreamBatchProgress(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	batch, err := findUserBatch(c, userID)
	if batch == nil {
		return err
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	final, done := terminalEvent(batch)
	batchID := batch.UUID
	ch := progressHub.Subscribe(batchID)

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer progressHub.Unsubscribe(batchID, ch)

		if err := writeSSE(w, utils.ProgressEvent{
			Type:    utils.EventConnected,
			Message: "Connected to progress stream",
		}); err != nil {
			return
		}

		if done {
			writeSSE(w, final)
			return
		}

		ticker := time.NewTicker(streamHeartbeat)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-ch:
				if !ok {
					// Replaced by a newer subscriber
					return
				}
				if err := writeSSE(w, event); err != nil {
					return
				}
				if event.Terminal() {
					return
				}

			case <-ticker.C:
				// Comment line keeps proxies from closing an idle stream
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}

// BatchProgressWS is the WebSocket flavor of the progress stream for
// clients that prefer a bidirectional socket over EventSource.
var BatchProgressWS = websocket.New(func(conn *websocket.Conn) {
	defer conn.Close()

	batchID := conn.Params("batchId")
	userID, ok := conn.Locals("userID").(uint)
	if !ok {
		return
	}

	batch, err := loadUserBatch(batchID, userID)
	if err != nil {
		conn.WriteJSON(utils.ProgressEvent{
			Type:    utils.EventError,
			Message: "Batch not found",
		})
		return
	}

	if err := conn.WriteJSON(utils.ProgressEvent{
		Type:    utils.EventConnected,
		Message: "Connected to progress stream",
	}); err != nil {
		return
	}

	if final, done := terminalEvent(batch); done {
		conn.WriteJSON(final)
		return
	}

	ch := progressHub.Subscribe(batchID)
	defer progressHub.Unsubscribe(batchID, ch)

	for event := range ch {
		if err := conn.WriteJSON(event); err != nil {
			logrus.WithField("batch", batchID).Debugf("Progress socket closed: %v", err)
			return
		}
		if event.Terminal() {
			return
		}
	}
})

// terminalEvent maps a finished batch record to the event its stream
// would have ended with.
func terminalEvent(batch *models.SendBatch) (utils.ProgressEvent, bool) {
	if !batch.Terminal() {
		return utils.ProgressEvent{}, false
	}

	event := utils.ProgressEvent{
		Total:  batch.Total,
		Sent:   batch.Sent,
		Failed: batch.Failed,
	}

	switch batch.Status {
	case models.BatchCompleted:
		event.Type = utils.EventComplete
		event.Message = "Send completed"
	case models.BatchCanceled:
		event.Type = utils.EventError
		event.Message = "Send canceled"
	default:
		event.Type = utils.EventError
		event.Message = batch.Error
		if event.Message == "" {
			event.Message = "Send failed"
		}
	}
	return event, true
}

func writeSSE(w *bufio.Writer, event utils.ProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := w.WriteString("data: " + string(payload) + "\n\n"); err != nil {
		return err
	}
	return w.Flush()
}
