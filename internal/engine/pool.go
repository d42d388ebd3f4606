package engine

import "sync"

// pool runs invocations on a bounded set of workers in parallel mode.
// Cooperative mode never constructs one.
type pool struct {
	tasks chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

func newPool(workers int) *pool {
	if workers <= 0 {
		workers = 1
	}
	p := &pool{tasks: make(chan func())}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// submit blocks until a worker picks the task up, or returns false if
// the pool has been stopped.
func (p *pool) submit(task func()) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	p.tasks <- task
	return true
}

func (p *pool) stop() {
	p.once.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}
