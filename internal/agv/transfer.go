package agv

import (
	"errors"
	"fmt"

	"github.com/autopeer-io/agvsim/internal/device"
	"github.com/autopeer-io/agvsim/internal/layout"
	"github.com/autopeer-io/agvsim/internal/product"
	"github.com/autopeer-io/agvsim/internal/sim"
)

// LoadFrom takes one product from dev into the payload. buffer selects a
// named buffer where the device has several; selector picks a product by id
// on devices whose kind supports it and is ignored elsewhere.
func (a *AGV) LoadFrom(p *sim.Proc, dev device.Device, buffer, selector string) (res Result) {
	if !a.canOperate() {
		return a.unavailable("load")
	}
	if a.IsPayloadFull() {
		return fail(ReasonCapacity, "cannot load: payload of %s is full", a.cfg.ID)
	}
	if a.IsBatteryLow() {
		return fail(ReasonBatteryLow, "battery level is too low (%.1f%%), cannot load", a.battery)
	}

	var inFlight *product.Product
	defer func() {
		if r := recover(); r != nil {
			if inFlight != nil {
				a.giveBack(dev, inFlight, buffer)
			}
			a.logger.Error(fmt.Errorf("%v", r), "Load failed", "device", dev.ID())
			res = fail(ReasonInternal, "load error: %v", r)
		}
		if a.Status() == StatusInteracting {
			a.setStatus(StatusIdle, "")
		}
	}()

	buffer, ok := loadBuffer(dev.Kind(), buffer)
	if !ok {
		return fail(ReasonUnknownTarget, "%s does not support buffer %q", dev.ID(), buffer)
	}
	src, ok := dev.(device.Poppable)
	if !ok {
		return fail(ReasonNotAllowed, "cannot load from %s (%s)", dev.ID(), dev.Kind())
	}
	if e, ok := dev.(device.Emptyable); ok && e.IsEmpty(buffer) {
		return fail(ReasonCapacity, "%s %s is empty, nothing to load", dev.ID(), bufferName(buffer))
	}
	if !dev.Kind().SupportsSelector() {
		selector = ""
	}

	prod, err := src.Pop(buffer, selector)
	if err != nil {
		return fail(popReason(err), "cannot load from %s: %v", dev.ID(), err)
	}
	inFlight = prod

	prod.AddHistory(p.Now(), fmt.Sprintf("Loaded onto %s from %s", a.cfg.ID, dev.ID()))
	a.setStatus(StatusInteracting, fmt.Sprintf("loading from %s %s", dev.ID(), bufferName(buffer)))

	if err := p.Wait(a.cfg.OperationTime); err != nil {
		a.giveBack(dev, prod, buffer)
		return a.interrupted(err, "loading from "+dev.ID())
	}
	if err := a.payload.Put(p, prod); err != nil {
		a.giveBack(dev, prod, buffer)
		return a.interrupted(err, "loading from "+dev.ID())
	}
	inFlight = nil
	a.consume(a.cfg.ConsumptionPerAction, "load")

	res = succeed("loaded product %s from %s %s, remaining battery: %.1f%%", prod.ID, dev.ID(), bufferName(buffer), a.battery)
	res.Product = prod
	return res
}

// UnloadTo moves the oldest payload product into dev. When the current path
// point declares operations, the device and the unload operation have to
// match them and the declared buffer is used unless one is given.
func (a *AGV) UnloadTo(p *sim.Proc, dev device.Device, buffer string) (res Result) {
	if !a.canOperate() {
		return a.unavailable("unload")
	}
	if dev.IsFull() {
		return fail(ReasonCapacity, "cannot unload: %s is full", dev.ID())
	}
	if ops, ok := a.operations.At(a.currentPoint); ok {
		if ops.DeviceID != dev.ID() {
			return fail(ReasonNotAllowed, "cannot unload to %s at %s, expected device %s", dev.ID(), a.currentPoint, ops.DeviceID)
		}
		if !ops.Allows(layout.OpUnload) {
			return fail(ReasonNotAllowed, "unload not allowed at %s", a.currentPoint)
		}
		if buffer == "" {
			buffer = ops.DefaultBuffer
		}
	}
	if a.IsBatteryLow() {
		return fail(ReasonBatteryLow, "battery level is too low (%.1f%%), cannot unload", a.battery)
	}
	if a.IsPayloadEmpty() {
		return fail(ReasonCapacity, "payload is empty, nothing to unload")
	}

	var inFlight *product.Product
	defer func() {
		if r := recover(); r != nil {
			if inFlight != nil {
				a.payload.Requeue(inFlight)
			}
			a.logger.Error(fmt.Errorf("%v", r), "Unload failed", "device", dev.ID())
			res = fail(ReasonInternal, "unload error: %v", r)
		}
		if a.Status() == StatusInteracting {
			a.setStatus(StatusIdle, "")
		}
	}()

	a.setStatus(StatusInteracting, "unloading to "+dev.ID())
	prod, _ := a.payload.TryGet()
	inFlight = prod

	if ok, reason := prod.CheckMove(p.Now(), dev.ID()); !ok {
		a.payload.Requeue(prod)
		res = fail(ReasonRoutingViolation, "product move violates its route: %s", reason)
		res.Product = prod
		return res
	}

	dst, ok := dev.(device.Pushable)
	buffer, known := unloadBuffer(dev.Kind(), buffer)
	if !ok || !known {
		a.payload.Requeue(prod)
		res = fail(ReasonNotAllowed, "cannot unload to %s (%s)", dev.ID(), dev.Kind())
		res.Product = prod
		return res
	}

	if err := dst.Push(p, prod, buffer); err != nil {
		a.payload.Requeue(prod)
		if _, intr := sim.IsInterrupted(err); intr || errors.Is(err, sim.ErrStopped) {
			res = a.interrupted(err, "unloading to "+dev.ID())
		} else {
			res = fail(pushReason(err), "cannot unload to %s: %v", dev.ID(), err)
		}
		res.Product = prod
		return res
	}
	inFlight = nil

	if !prod.UpdateLocation(dev.ID(), p.Now()) {
		a.logger.Warn("Product location update failed, unload kept", "product", prod.ID, "device", dev.ID())
	}
	if err := p.Wait(a.cfg.OperationTime); err != nil {
		res = a.interrupted(err, "unloading to "+dev.ID())
		res.Product = prod
		return res
	}
	a.consume(a.cfg.ConsumptionPerAction, "unload")

	res = succeed("unloaded product %s to %s %s, remaining battery: %.1f%%", prod.ID, dev.ID(), bufferName(buffer), a.battery)
	res.Product = prod
	return res
}

// giveBack returns a popped product to its device, or keeps it on board if
// the device cannot take it back.
func (a *AGV) giveBack(dev device.Device, prod *product.Product, buffer string) {
	if r, ok := dev.(device.Returnable); ok {
		if err := r.Return(prod, buffer); err == nil {
			return
		}
	}
	if !a.payload.TryPut(prod) {
		a.logger.Error(nil, "Product lost in transfer", "product", prod.ID, "device", dev.ID())
	}
}

// loadBuffer resolves the buffer to pop from.
func loadBuffer(kind device.Kind, hint string) (string, bool) {
	switch kind {
	case device.KindQualityChecker:
		switch hint {
		case "", device.BufferOutput:
			return device.BufferOutput, true
		case device.BufferDefault:
			return device.BufferDefault, true
		}
		return hint, false
	case device.KindTripleBufferConveyor:
		if hint == "" {
			return device.BufferMain, true
		}
		return hint, true
	default:
		// single buffer devices
		return "", true
	}
}

// unloadBuffer resolves the buffer to push into.
func unloadBuffer(kind device.Kind, hint string) (string, bool) {
	switch kind {
	case device.KindQualityChecker:
		if hint == device.BufferOutput {
			return device.BufferOutput, true
		}
		return device.BufferDefault, true
	case device.KindTripleBufferConveyor:
		if hint == "" {
			return device.BufferMain, true
		}
		return hint, true
	case device.KindStation, device.KindWarehouse, device.KindConveyor:
		return "", true
	default:
		return hint, false
	}
}

func bufferName(buffer string) string {
	if buffer == "" {
		return device.BufferDefault
	}
	return buffer
}

func popReason(err error) Reason {
	switch {
	case errors.Is(err, device.ErrLocked):
		return ReasonDeviceLocked
	case errors.Is(err, device.ErrEmpty):
		return ReasonCapacity
	case errors.Is(err, device.ErrNotFound), errors.Is(err, device.ErrUnknownBuffer):
		return ReasonUnknownTarget
	}
	return ReasonInternal
}

func pushReason(err error) Reason {
	switch {
	case errors.Is(err, device.ErrFull):
		return ReasonCapacity
	case errors.Is(err, device.ErrUnknownBuffer):
		return ReasonUnknownTarget
	}
	return ReasonInternal
}
