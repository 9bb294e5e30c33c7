package wire

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 100

// WorkerFunction is the unit of work a WorkerPool dispatches.
type WorkerFunction = func(t *tomb.Tomb, task any) error

// WorkerPool maintains up to n concurrent goroutines draining a
// shared task channel.
type WorkerPool struct {
	n     int
	tasks chan any
	work  WorkerFunction
}

// NewWorkerPool constructs a pool capped at size concurrent workers.
func NewWorkerPool(size uint) WorkerPool {
	return WorkerPool{
		n:     int(size),
		tasks: make(chan any, taskChanSize),
	}
}

// AddTask enqueues task for the next free worker.
func (pool *WorkerPool) AddTask(task any) {
	pool.tasks <- task
}

// Setup keeps the pool topped up to n active workers until t dies.
func (pool *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunction) {
	pool.work = work
	activeWorkers := 0
	for {
		select {
		case <-t.Dying():
			return
		default:
			if activeWorkers < pool.n {
				t.Go(func() error {
					err := pool.worker(t, activeWorkers, work)
					activeWorkers--
					return err
				})
				activeWorkers++
			}
		}
	}
}

// worker waits on tasks in the shared channel and actions them until
// the channel closes or work returns an error.
func (pool *WorkerPool) worker(t *tomb.Tomb, id int, work WorkerFunction) error {
	for task := range pool.tasks {
		if err := work(t, task); err != nil {
			log.Error().Err(err).Int("id", id).Msg("worker exiting")
			return err
		}
	}
	return nil
}
