package renderer

import (
	"errors"
	"runtime"
	"sync"
)

// errPoolClosed is returned when a stage is dispatched after Stop
var errPoolClosed = errors.New("worker pool closed")

// TileTask represents one tile of one pipeline stage
type TileTask struct {
	Tile   *Tile
	Kernel Kernel
	TaskID int // Index of the tile within the dispatch
}

// TileResult contains the result of processing a tile
type TileResult struct {
	TaskID int
	Pixels int
	Error  error
}

// WorkerPool manages parallel tile processing. Workers are started once and
// reused by every stage of every frame.
type WorkerPool struct {
	taskQueue   chan TileTask
	resultQueue chan TileResult
	workers     []*Worker
	numWorkers  int
	wg          sync.WaitGroup
	mu          sync.Mutex // Serializes dispatches
	started     bool
	stopped     bool
}

// Worker handles individual tile tasks
type Worker struct {
	ID          int
	taskQueue   chan TileTask
	resultQueue chan TileResult
}

// NewWorkerPool creates a worker pool with the specified number of workers,
// buffered for maxTiles tasks per dispatch
func NewWorkerPool(maxTiles, numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	maxTiles = max(1, maxTiles)

	wp := &WorkerPool{
		taskQueue:   make(chan TileTask, maxTiles),
		resultQueue: make(chan TileResult, maxTiles),
		numWorkers:  numWorkers,
	}

	for i := 0; i < numWorkers; i++ {
		wp.workers = append(wp.workers, &Worker{
			ID:          i,
			taskQueue:   wp.taskQueue,
			resultQueue: wp.resultQueue,
		})
	}

	return wp
}

// Start begins all workers
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.started || wp.stopped {
		return
	}
	wp.started = true
	for _, worker := range wp.workers {
		wp.wg.Add(1)
		go worker.run(&wp.wg)
	}
}

// Stop gracefully shuts down all workers. Safe to call more than once.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.stopped {
		return
	}
	wp.stopped = true
	close(wp.taskQueue) // No more tasks
	wp.wg.Wait()        // Wait for workers to finish
	close(wp.resultQueue)
}

// GetNumWorkers returns the number of workers in the pool
func (wp *WorkerPool) GetNumWorkers() int {
	return wp.numWorkers
}

// Dispatch runs kernel over every tile and waits for all of them. It is the
// barrier between pipeline stages: when it returns every pixel is written.
func (wp *WorkerPool) Dispatch(tiles []*Tile, kernel Kernel) (int, error) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.stopped || !wp.started {
		return 0, errPoolClosed
	}

	// Submitted in chunks so the buffered queues never block on large grids
	chunk := cap(wp.taskQueue)
	pixels := 0
	var errs []error
	for start := 0; start < len(tiles); start += chunk {
		end := min(start+chunk, len(tiles))
		for i := start; i < end; i++ {
			wp.taskQueue <- TileTask{Tile: tiles[i], Kernel: kernel, TaskID: i}
		}
		for i := start; i < end; i++ {
			result := <-wp.resultQueue
			pixels += result.Pixels
			if result.Error != nil {
				errs = append(errs, result.Error)
			}
		}
	}
	return pixels, errors.Join(errs...)
}

// run is the main worker loop
func (w *Worker) run(wg *sync.WaitGroup) {
	defer wg.Done()

	for task := range w.taskQueue {
		// Each tile has non-overlapping bounds, so kernels never share a pixel
		pixels, err := renderTile(task.Tile.Bounds, task.Kernel)
		w.resultQueue <- TileResult{
			TaskID: task.TaskID,
			Pixels: pixels,
			Error:  err,
		}
	}
}
