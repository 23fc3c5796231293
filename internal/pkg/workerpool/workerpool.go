package workerpool

import "sync"

// Pool runs tasks on a fixed number of workers. It bounds concurrency for
// blocking operations (SMTP and SMS sessions): when every worker is busy and
// the small queue is full, Submit blocks the caller.
type Pool struct {
	tasks    chan func()
	wg       sync.WaitGroup
	quit     chan struct{}
	stopOnce sync.Once
}

func New(size int) *Pool {
	p := &Pool{
		tasks: make(chan func(), size*2),
		quit:  make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit queues a task, blocking while the pool is saturated. It reports
// whether the task was accepted; tasks are rejected once Stop has begun.
func (p *Pool) Submit(task func()) bool {
	select {
	case <-p.quit:
		return false
	default:
	}
	select {
	case <-p.quit:
		return false
	case p.tasks <- task:
		return true
	}
}

// Do queues a task and waits for that one task to finish. It returns false
// without running the task when the pool is stopped.
func (p *Pool) Do(task func()) bool {
	done := make(chan struct{})
	if !p.Submit(func() {
		defer close(done)
		task()
	}) {
		return false
	}
	<-done
	return true
}

// Stop rejects new tasks, drains everything already queued, and waits for
// the workers to exit. It must run after task producers have quiesced.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
		close(p.tasks)
	})
	p.wg.Wait()
}
