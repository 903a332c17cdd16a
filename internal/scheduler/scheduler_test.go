package scheduler

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mdouchement/logger"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/usman-khan12/one-shot/internal/database"
	"github.com/usman-khan12/one-shot/internal/lifecycle"
	"github.com/usman-khan12/one-shot/internal/ratelimit"
	"github.com/usman-khan12/one-shot/internal/storage"
)

func TestTask(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	l := logger.WrapLogrus(log)

	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	db := database.NewMemory()
	backend := storage.NewMemory()
	manager := lifecycle.New(lifecycle.Controller{
		Logger:   l,
		Database: db,
		Storage:  backend,
		Now:      clock,
	})
	limiter := ratelimit.New(ratelimit.Controller{
		Logger: l,
		Store:  db,
		Now:    clock,
	})

	_, err := manager.Create(context.Background(), strings.NewReader("hello"), lifecycle.Upload{
		OriginalName: "a.txt",
		Size:         5,
		ContentType:  "text/plain",
	})
	require.NoError(t, err)
	_, err = limiter.Admit(context.Background(), "10.0.0.1")
	require.NoError(t, err)

	now = now.Add(ratelimit.DefaultWindow + time.Second)

	Task(Controller{
		Logger:    l,
		Lifecycle: manager,
		Limiter:   limiter,
		Timeout:   time.Second,
		Now:       clock,
	})()

	n, err := db.CountObjects()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, storage.Len(backend))

	w, err := db.DeleteExpiredWindows(now)
	require.NoError(t, err)
	assert.Zero(t, w)
}

func TestStartInvalidSpecification(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	_, err := Start(Controller{
		Logger:        logger.WrapLogrus(log),
		Specification: "every now and then",
	})
	assert.Error(t, err)
}

func TestStart(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	c, err := Start(Controller{
		Logger: logger.WrapLogrus(log),
	})
	require.NoError(t, err)
	<-c.Stop().Done()
}
