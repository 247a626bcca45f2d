package proxy

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"
)

// RelayStats counts the bytes moved in each direction.
type RelayStats struct {
	LeftToRight int64
	RightToLeft int64
}

// CopyBidirectional copies left->right and right->left concurrently and
// returns once both directions have finished. When one direction reaches
// EOF or fails, the write side of its destination is shut down so the peer
// sees EOF while the opposite direction keeps draining. The first error
// wins. Canceling ctx closes both connections.
func CopyBidirectional(ctx context.Context, left, right net.Conn) (RelayStats, error) {
	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			_ = left.Close()
			_ = right.Close()
		})
	}
	defer closeBoth()

	stop := context.AfterFunc(ctx, closeBoth)
	defer stop()

	var st RelayStats
	g := errgroup.Group{}

	g.Go(func() error {
		n, err := io.Copy(right, left)
		st.LeftToRight = n
		closeWrite(right)
		return err
	})

	g.Go(func() error {
		n, err := io.Copy(left, right)
		st.RightToLeft = n
		closeWrite(left)
		return err
	})

	err := g.Wait()
	if err != nil && ctx.Err() != nil {
		err = fmt.Errorf("relay: %w", ctx.Err())
	}
	return st, err
}

// closeWrite half-closes c, or closes it outright when the connection type
// has no notion of a write half.
func closeWrite(c net.Conn) {
	if cw, ok := c.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
		return
	}
	_ = c.Close()
}
