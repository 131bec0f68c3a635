package renderer

import (
	"context"
	"time"

	"github.com/df07/go-ssgi/pkg/core"
)

// RenderSequence renders frames in order with channel-based communication.
// The caller should read both channels; the result channel is closed when the
// sequence ends, and at most one error is sent when it ends early.
func (p *Pipeline) RenderSequence(ctx context.Context, frames []FrameInput) (<-chan FrameResult, <-chan error) {
	resultChan := make(chan FrameResult, 1)
	errChan := make(chan error, 1)

	go func() {
		defer close(resultChan)
		defer close(errChan)

		core.Logger().Info("starting sequence", "frames", len(frames))
		start := time.Now()

		for i, in := range frames {
			// Check if the caller gave up before starting this frame
			select {
			case <-ctx.Done():
				core.Logger().Info("sequence cancelled", "before", i)
				errChan <- ctx.Err()
				return
			default:
			}

			result, err := p.RenderFrame(ctx, in)
			if err != nil {
				errChan <- err
				return
			}

			select {
			case resultChan <- result:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}
		}

		core.Logger().Info("sequence complete", "frames", len(frames), "duration", time.Since(start))
	}()

	return resultChan, errChan
}
