package dronelink

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/roffe/dronelink/pkg/ringbuf"
)

const readChunk = 64

// receiver copies bytes from the link into the buffer until its context is
// cancelled, the session leaves Running, or a read fails.
type receiver struct {
	s      *Session
	link   Link
	buf    *ringbuf.Buffer
	cancel context.CancelFunc
	done   chan struct{}
}

func (rx *receiver) alive() bool {
	select {
	case <-rx.done:
		return false
	default:
		return true
	}
}

func (rx *receiver) run(ctx context.Context) {
	defer close(rx.done)
	defer rx.cancel()

	readBuffer := make([]byte, readChunk)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !rx.s.isCurrent(rx) {
			return
		}
		n, err := rx.link.Read(readBuffer)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			rx.s.fatal(Unrecoverable(fmt.Errorf("failed to read port: %w", err)))
			return
		}
		if n == 0 {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		atomic.AddUint64(&rx.s.recvBytes, uint64(n))
		rx.buf.Write(readBuffer[:n])
	}
}
