package vulkan

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

type CommandBufferState int

const (
	CommandBufferNotAllocated CommandBufferState = iota
	CommandBufferReady
	CommandBufferRecording
	CommandBufferInRenderPass
	CommandBufferRecordingEnded
	CommandBufferSubmitted
)

func (s CommandBufferState) String() string {
	switch s {
	case CommandBufferNotAllocated:
		return "NotAllocated"
	case CommandBufferReady:
		return "Ready"
	case CommandBufferRecording:
		return "Recording"
	case CommandBufferInRenderPass:
		return "InRenderPass"
	case CommandBufferRecordingEnded:
		return "RecordingEnded"
	case CommandBufferSubmitted:
		return "Submitted"
	default:
		return fmt.Sprintf("CommandBufferState(%d)", int(s))
	}
}

// CommandBuffer tracks the recording state of a driver command buffer.
// Out-of-order use panics with an assertion failure.
type CommandBuffer struct {
	Handle Handle
	State  CommandBufferState
}

func (cb *CommandBuffer) expect(op string, states ...CommandBufferState) {
	for _, state := range states {
		if cb.State == state {
			return
		}
	}
	panic(errors.AssertionFailedf("command buffer %s: invalid in state %s (want %v)", op, cb.State, states))
}

func AllocateCommandBuffer(ctx *Context, pool Handle, primary bool) (*CommandBuffer, error) {
	cb := &CommandBuffer{}
	if err := cb.Allocate(ctx, pool, primary); err != nil {
		return nil, err
	}
	return cb, nil
}

func (cb *CommandBuffer) Allocate(ctx *Context, pool Handle, primary bool) error {
	cb.expect("allocate", CommandBufferNotAllocated)

	handle, err := ctx.driver.AllocateCommandBuffer(pool, primary)
	if err != nil {
		return err
	}
	cb.Handle = handle
	cb.State = CommandBufferReady
	return nil
}

func (cb *CommandBuffer) Free(ctx *Context) {
	if !cb.Handle.IsNull() {
		ctx.driver.FreeCommandBuffer(cb.Handle)
	}
	cb.Handle = Handle{}
	cb.State = CommandBufferNotAllocated
}

func usageFlags(singleUse, renderPassContinue, simultaneousUse bool) core1_0.CommandBufferUsageFlags {
	var flags core1_0.CommandBufferUsageFlags
	if singleUse {
		flags |= core1_0.CommandBufferUsageOneTimeSubmit
	}
	if renderPassContinue {
		flags |= core1_0.CommandBufferUsageRenderPassContinue
	}
	if simultaneousUse {
		flags |= core1_0.CommandBufferUsageSimultaneousUse
	}
	return flags
}

func (cb *CommandBuffer) Begin(ctx *Context, singleUse, renderPassContinue, simultaneousUse bool) error {
	cb.expect("begin", CommandBufferReady)

	if err := ctx.driver.BeginCommandBuffer(cb.Handle, usageFlags(singleUse, renderPassContinue, simultaneousUse)); err != nil {
		return err
	}
	cb.State = CommandBufferRecording
	return nil
}

func (cb *CommandBuffer) End(ctx *Context) error {
	cb.expect("end", CommandBufferRecording)

	if err := ctx.driver.EndCommandBuffer(cb.Handle); err != nil {
		return err
	}
	cb.State = CommandBufferRecordingEnded
	return nil
}

func (cb *CommandBuffer) enterRenderPass() {
	cb.expect("begin render pass", CommandBufferRecording)
	cb.State = CommandBufferInRenderPass
}

func (cb *CommandBuffer) exitRenderPass() {
	cb.expect("end render pass", CommandBufferInRenderPass)
	cb.State = CommandBufferRecording
}

func (cb *CommandBuffer) UpdateSubmitted() {
	cb.expect("submit", CommandBufferRecordingEnded)
	cb.State = CommandBufferSubmitted
}

// Reset marks an allocated buffer ready for reuse. The pool allows
// individual resets, so the next Begin resets the driver object implicitly.
func (cb *CommandBuffer) Reset() {
	cb.expect("reset",
		CommandBufferReady,
		CommandBufferRecording,
		CommandBufferInRenderPass,
		CommandBufferRecordingEnded,
		CommandBufferSubmitted)
	cb.State = CommandBufferReady
}

// AllocateAndBeginSingleUse allocates a primary buffer from pool and begins
// it for one-time submission.
func AllocateAndBeginSingleUse(ctx *Context, pool Handle) (*CommandBuffer, error) {
	cb, err := AllocateCommandBuffer(ctx, pool, true)
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(ctx, true, false, false); err != nil {
		cb.Free(ctx)
		return nil, err
	}
	return cb, nil
}

// EndSingleUse ends the buffer, submits it to queue, waits for the queue to
// drain and frees the buffer.
func (cb *CommandBuffer) EndSingleUse(ctx *Context, queue Handle) error {
	defer cb.Free(ctx)

	if err := cb.End(ctx); err != nil {
		return err
	}
	if err := ctx.driver.QueueSubmit(queue, Submission{CommandBuffer: cb.Handle}); err != nil {
		return err
	}
	cb.UpdateSubmitted()
	return ctx.driver.QueueWaitIdle(queue)
}
