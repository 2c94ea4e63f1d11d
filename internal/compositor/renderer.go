package compositor

// Renderer executes frame render jobs. The inline renderer paints on the
// frame-loop goroutine; the worker renderer hands jobs to a dedicated
// goroutine and reports a drop when the previous frame is still rendering,
// so a slow frame delays output instead of stalling the tick loop.
type Renderer interface {
	// Render runs or schedules one frame job, returning false if the job
	// was dropped.
	Render(job func()) bool
	Close()
}

// InlineRenderer paints synchronously and never drops.
type InlineRenderer struct{}

func (InlineRenderer) Render(job func()) bool {
	job()
	return true
}

func (InlineRenderer) Close() {}

// WorkerRenderer owns one render goroutine with a single-slot queue.
type WorkerRenderer struct {
	jobs chan func()
	done chan struct{}
}

func NewWorkerRenderer() *WorkerRenderer {
	w := &WorkerRenderer{
		jobs: make(chan func(), 1),
		done: make(chan struct{}),
	}
	go func() {
		defer close(w.done)
		for job := range w.jobs {
			job()
		}
	}()
	return w
}

func (w *WorkerRenderer) Render(job func()) bool {
	select {
	case w.jobs <- job:
		return true
	default:
		return false
	}
}

func (w *WorkerRenderer) Close() {
	close(w.jobs)
	<-w.done
}
