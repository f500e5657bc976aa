package realtime

import "sync"

type fanoutJob struct {
	conns   []*WsConn
	payload []byte
}

// Fanout is the worker pool behind best-effort broadcasts (presence, typing,
// notify). Message delivery bypasses it and enqueues in caller order, because
// per-chat ordering must survive into the send queues.
type Fanout struct {
	jobs chan fanoutJob

	stopOnce sync.Once
	done     chan struct{}
}

func NewFanout(workers, queue int) *Fanout {
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 1024
	}
	f := &Fanout{
		jobs: make(chan fanoutJob, queue),
		done: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go func() {
			for job := range f.jobs {
				for _, c := range job.conns {
					// slow client: skip, catch-up fetch recovers
					c.Enqueue(job.payload)
				}
			}
		}()
	}
	return f
}

func (f *Fanout) Broadcast(conns []*WsConn, payload []byte) {
	if len(conns) == 0 || len(payload) == 0 {
		return
	}
	select {
	case <-f.done:
		return
	default:
	}
	select {
	case f.jobs <- fanoutJob{conns: conns, payload: payload}:
	default:
		// queue full: drop, same policy as a slow client
	}
}

func (f *Fanout) Close() {
	f.stopOnce.Do(func() {
		close(f.done)
		close(f.jobs)
	})
}
