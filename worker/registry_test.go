package worker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"certimail/utils"
)

// blockingDialer holds the batch goroutine open until released, so the
// test can observe it through the registry.
type blockingDialer struct {
	release chan struct{}
}

func (d *blockingDialer) Dial() (gomail.SendCloser, error) {
	<-d.release
	return nil, errors.New("released")
}

func TestRegistryTracksRunningBatch(t *testing.T) {
	registry := NewRegistry()
	store := &memStore{}
	dialer := &blockingDialer{release: make(chan struct{})}

	job := twoRowJob()
	registry.Launch(newTestWorker(store, utils.NewProgressHub()), job, dialer)

	assert.True(t, registry.Running(job.ID))
	assert.True(t, registry.Cancel(job.ID))

	close(dialer.release)
	require.Eventually(t, func() bool {
		return !registry.Running(job.ID)
	}, time.Second, 5*time.Millisecond)

	// A finished batch can no longer be canceled
	assert.False(t, registry.Cancel(job.ID))
}

func TestRegistryCancelUnknownBatch(t *testing.T) {
	registry := NewRegistry()
	assert.False(t, registry.Cancel("no-such-batch"))
	assert.False(t, registry.Running("no-such-batch"))
}
