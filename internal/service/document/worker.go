package document

import (
	"sync"

	apperrors "github.com/weiwangfds/docuvault/internal/errors"
	"github.com/weiwangfds/docuvault/internal/logger"
)

// workerPool runs background compression attempts. It is an in-process
// stand-in for whatever queue delivers compression jobs in a larger
// deployment: the only contract is that AttemptCompression is called with a
// document ID, possibly more than once.
type workerPool struct {
	svc     *documentService
	jobs    chan string
	workers int

	mu        sync.RWMutex
	stopped   bool
	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func newWorkerPool(svc *documentService, workers, queueSize int) *workerPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 64
	}
	return &workerPool{
		svc:     svc,
		jobs:    make(chan string, queueSize),
		workers: workers,
	}
}

func (p *workerPool) start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.run()
		}
		logger.Infof("compression worker pool started with %d workers", p.workers)
	})
}

func (p *workerPool) stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.jobs)
		p.mu.Unlock()
		p.wg.Wait()
		logger.Info("compression worker pool stopped")
	})
}

// enqueue submits a document for background compression without blocking the
// uploader. A full queue or a stopped pool is logged and dropped;
// AttemptCompression remains callable directly, so a periodic re-drive can
// pick the document up.
func (p *workerPool) enqueue(docID string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		logger.Warnf("worker pool stopped, dropping compression job for %s", docID)
		return
	}
	select {
	case p.jobs <- docID:
	default:
		logger.Warnf("compression queue full, dropping job for %s", docID)
	}
}

func (p *workerPool) run() {
	defer p.wg.Done()
	for docID := range p.jobs {
		err := p.svc.AttemptCompression(docID)
		if err == nil {
			continue
		}
		// Concurrent attempts and vanished documents are expected noise.
		if appErr, ok := apperrors.GetAppError(err); ok {
			if appErr.Code == apperrors.ErrCompressionInFlight || appErr.Code == apperrors.ErrNotFound {
				continue
			}
		}
		logger.Errorf("background compression of %s failed: %v", docID, err)
	}
}
