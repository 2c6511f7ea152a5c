package tracker

import "context"

// Handle is returned to the code that started a job
type Handle struct {
	// URL is the resolved socket target, token included
	URL      string
	EntityID string
	JobID    string

	job *job
}

// Connected blocks until the socket opens. It fails on connect timeout,
// dial error, or when the job ends before opening.
func (h *Handle) Connected(ctx context.Context) error {
	_, err := h.job.connected.Wait(ctx)
	return err
}

// ConnectedCh is closed once the connection outcome is known
func (h *Handle) ConnectedCh() <-chan struct{} {
	return h.job.connected.Done()
}

// Wait blocks until the job ends. A success returns the terminal event; any
// other outcome returns a *JobError carrying the event that ended the job.
func (h *Handle) Wait(ctx context.Context) (Event, error) {
	return h.job.done.Wait(ctx)
}

// Done is closed once the job outcome is known
func (h *Handle) Done() <-chan struct{} {
	return h.job.done.Done()
}

// Close terminates the job without waiting for the backend. Both futures
// still settle, asynchronously, through the job's close path.
func (h *Handle) Close() {
	h.job.stop(stopClosed)
}
