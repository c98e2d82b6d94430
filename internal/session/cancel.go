// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
)

// =============================================================================
// CANCEL FUNCTION MANAGEMENT (THREAD-SAFE)
// =============================================================================

// cancelManager holds the cancel function of the in-flight request.
// A session is Generating exactly while a cancel function is held.
type cancelManager struct {
	mu         sync.Mutex
	cancelFunc context.CancelFunc
	stopped    bool
}

func newCancelManager() *cancelManager {
	return &cancelManager{}
}

// begin derives a cancellable context from parent and holds its cancel
// function. It returns false, without deriving anything, when a request is
// already held.
func (cm *cancelManager) begin(parent context.Context) (context.Context, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancelFunc != nil {
		return nil, false
	}
	ctx, cancel := context.WithCancel(parent)
	cm.cancelFunc = cancel
	cm.stopped = false
	return ctx, true
}

// cancel cancels the held context but keeps holding it; the request stays
// active until its finalization calls clear. Reports whether a request was
// held.
func (cm *cancelManager) cancel() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancelFunc == nil {
		return false
	}
	cm.cancelFunc()
	cm.stopped = true
	return true
}

// clear cancels the context (if present) and drops the cancel function.
// Safe to call multiple times.
func (cm *cancelManager) clear() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancelFunc != nil {
		cm.cancelFunc() // always release the context's resources
		cm.cancelFunc = nil
	}
}

func (cm *cancelManager) active() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.cancelFunc != nil
}

// stopRequested reports whether cancel was called for the held request.
func (cm *cancelManager) stopRequested() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.stopped
}
