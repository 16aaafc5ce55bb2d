package lossy

// rowWorker runs one deblocking/output job at a time on a dedicated
// goroutine. The channel hand-off gives the happens-before edge between the
// main thread's buffer swaps and the worker's reads, so no locking is needed:
// launch transfers ownership of the thread context to the worker, sync
// transfers it back.
type rowWorker struct {
	jobs    chan func() bool
	done    chan bool
	pending bool
	ok      bool
}

// reset prepares the worker for a new frame, starting the goroutine on first
// use. A worker in a failed state is cleared.
func (w *rowWorker) reset() {
	w.sync()
	w.ok = true
	if w.jobs == nil {
		w.jobs = make(chan func() bool)
		w.done = make(chan bool)
		go w.run()
	}
}

func (w *rowWorker) run() {
	for job := range w.jobs {
		w.done <- job()
	}
	close(w.done)
}

// launch hands one job to the worker. Must not be called with a job still
// pending, and must not be called after a sync reported failure.
func (w *rowWorker) launch(job func() bool) {
	w.jobs <- job
	w.pending = true
}

// sync waits for the in-flight job, if any, and reports whether every job so
// far has succeeded.
func (w *rowWorker) sync() bool {
	if w.pending {
		w.pending = false
		if !<-w.done {
			w.ok = false
		}
	}
	return w.ok
}

// end waits for any in-flight job and stops the goroutine.
func (w *rowWorker) end() {
	if w.jobs == nil {
		return
	}
	w.sync()
	close(w.jobs)
	w.jobs = nil
	w.done = nil
}
