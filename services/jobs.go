package services

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type JobType string

const (
	JobModerationCheck   JobType = "moderation_check"
	JobConversationTitle JobType = "conversation_title"
	JobIdleSummary       JobType = "idle_summary"
)

type Job struct {
	ID      string
	Type    JobType
	Payload interface{}
	Attempt int
}

type JobHandler func(ctx context.Context, job Job) error

// JobService is the in-process dispatcher that takes moderation, title and
// summary work off the request path. Delivery is at-least-once within the
// process lifetime; handlers re-verify their preconditions at execution time
// so duplicate or late delivery is harmless.
type JobService struct {
	appContext.DefaultService

	handlers map[JobType]JobHandler
	queue    chan Job

	workers     int
	maxAttempts int

	mu     sync.Mutex
	timers map[string]*time.Timer

	wg   sync.WaitGroup
	quit chan struct{}
}

const JOB_SVC = "job_svc"

func (svc JobService) Id() string {
	return JOB_SVC
}

func (svc *JobService) Configure(ctx *appContext.Context) error {
	svc.handlers = make(map[JobType]JobHandler)
	svc.timers = make(map[string]*time.Timer)
	svc.queue = make(chan Job, 256)
	svc.quit = make(chan struct{})

	svc.workers = 4
	if w := os.Getenv("JOB_WORKERS"); w != "" {
		if n, err := strconv.Atoi(w); err == nil && n > 0 {
			svc.workers = n
		}
	}
	svc.maxAttempts = 3

	return svc.DefaultService.Configure(ctx)
}

// Register binds a handler to a job type. Registration happens during
// service Configure/Start, before any request can schedule work.
func (svc *JobService) Register(jobType JobType, handler JobHandler) {
	svc.handlers[jobType] = handler
}

func (svc *JobService) Start() error {
	for i := 0; i < svc.workers; i++ {
		svc.wg.Add(1)
		go svc.worker()
	}
	log.WithField("workers", svc.workers).Info("Job dispatcher started")
	return nil
}

func (svc *JobService) Shutdown() {
	close(svc.quit)

	svc.mu.Lock()
	for _, timer := range svc.timers {
		timer.Stop()
	}
	svc.timers = make(map[string]*time.Timer)
	svc.mu.Unlock()

	svc.wg.Wait()
}

// Schedule enqueues a job, optionally after a delay. A full queue drops the
// job with an error log rather than blocking a request handler; every job
// type here degrades gracefully when skipped.
func (svc *JobService) Schedule(jobType JobType, payload interface{}, delay time.Duration) string {
	id, _ := uuid.NewV7()
	job := Job{
		ID:      id.String(),
		Type:    jobType,
		Payload: payload,
		Attempt: 1,
	}

	if delay <= 0 {
		svc.enqueue(job)
		return job.ID
	}

	svc.mu.Lock()
	svc.timers[job.ID] = time.AfterFunc(delay, func() {
		svc.mu.Lock()
		delete(svc.timers, job.ID)
		svc.mu.Unlock()
		svc.enqueue(job)
	})
	svc.mu.Unlock()

	return job.ID
}

func (svc *JobService) enqueue(job Job) {
	select {
	case <-svc.quit:
	case svc.queue <- job:
	default:
		log.WithFields(log.Fields{
			"job_id":   job.ID,
			"job_type": job.Type,
		}).Error("Job queue full, dropping job")
		recordJobRun(string(job.Type), "dropped")
	}
}

func (svc *JobService) worker() {
	defer svc.wg.Done()

	for {
		select {
		case <-svc.quit:
			return
		case job := <-svc.queue:
			svc.run(job)
		}
	}
}

func (svc *JobService) run(job Job) {
	handler, ok := svc.handlers[job.Type]
	if !ok {
		log.WithField("job_type", job.Type).Error("No handler registered for job type")
		return
	}

	err := svc.execute(handler, job)
	if err == nil {
		recordJobRun(string(job.Type), "ok")
		return
	}

	log.WithFields(log.Fields{
		"job_id":   job.ID,
		"job_type": job.Type,
		"attempt":  job.Attempt,
	}).WithError(err).Warn("Job failed")

	if job.Attempt >= svc.maxAttempts {
		recordJobRun(string(job.Type), "failed")
		log.WithFields(log.Fields{
			"job_id":   job.ID,
			"job_type": job.Type,
		}).Error("Job exhausted retries")
		return
	}

	retry := job
	retry.Attempt++

	backoff := time.Duration(job.Attempt) * 30 * time.Second
	svc.mu.Lock()
	svc.timers[retry.ID] = time.AfterFunc(backoff, func() {
		svc.mu.Lock()
		delete(svc.timers, retry.ID)
		svc.mu.Unlock()
		svc.enqueue(retry)
	})
	svc.mu.Unlock()
}

func (svc *JobService) execute(handler JobHandler, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	return handler(ctx, job)
}
