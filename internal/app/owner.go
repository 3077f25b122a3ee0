package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rbright/voiceassist/internal/ipc"
	"golang.org/x/sync/errgroup"
)

const (
	acquireProbeTimeout = 180 * time.Millisecond
	acquireRetries      = 8
	takeoverAttempts    = 10
)

// runOwner runs action while serving status and stop on the runtime socket.
// An action already owned by another process is stopped and replaced.
func (r Runner) runOwner(ctx context.Context, env *environment, action func(context.Context) error) error {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		env.logger.Warn("ipc unavailable; running without owner socket", "error", err.Error())
		return action(ctx)
	}

	listener, err := acquireOwner(ctx, socketPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	group, groupCtx := errgroup.WithContext(serverCtx)
	group.Go(func() error {
		if err := ipc.Serve(groupCtx, listener, env.controller); err != nil {
			return fmt.Errorf("ipc server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		defer serverCancel()
		return action(groupCtx)
	})
	return group.Wait()
}

// acquireOwner takes the owner socket, asking a live owner to stop first.
func acquireOwner(ctx context.Context, socketPath string) (net.Listener, error) {
	for attempt := 0; ; attempt++ {
		listener, err := ipc.Acquire(ctx, socketPath, acquireProbeTimeout, acquireRetries, nil)
		if err == nil {
			return listener, nil
		}
		if !errors.Is(err, ipc.ErrAlreadyRunning) || attempt >= takeoverAttempts {
			return nil, err
		}

		if _, _, forwardErr := tryForward(ctx, socketPath, ipc.CommandStop); forwardErr != nil {
			return nil, forwardErr
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(50*(attempt+1)) * time.Millisecond):
		}
	}
}
