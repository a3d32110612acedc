package router

import "sync"

// WorkerPool bounds how many child executions run at once. A cycle submits
// one task per child; tasks queue on a buffered channel and run on a fixed
// set of workers.
type WorkerPool struct {
	size     int
	taskChan chan func()
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewWorkerPool(size int) *WorkerPool {
	return &WorkerPool{
		size:     size,
		taskChan: make(chan func(), size*2),
		stopChan: make(chan struct{}),
	}
}

// Start launches the workers.
func (p *WorkerPool) Start() {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop shuts the pool down and waits for the workers. Tasks already queued
// are drained before the workers exit.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()
}

// Submit queues task and reports whether it was accepted. It returns false
// once the pool is stopping; the caller owns the rejected task.
func (p *WorkerPool) Submit(task func()) bool {
	select {
	case <-p.stopChan:
		return false
	default:
	}

	select {
	case p.taskChan <- task:
		return true
	case <-p.stopChan:
		return false
	}
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case task := <-p.taskChan:
			if task != nil {
				task()
			}
		case <-p.stopChan:
			// Drain the queue so no dispatcher is left waiting on a task
			// that will never run.
			for {
				select {
				case task := <-p.taskChan:
					if task != nil {
						task()
					}
				default:
					return
				}
			}
		}
	}
}
