// Package device aggregates the protocol services of one physical device.
//
// A ConnectableDevice keys its services by protocol id and keeps them in the
// order they were added. Its capability set is the union of the services'
// sets, and every change to it reaches listeners as one added/removed delta.
//
// Listener events never run on transport goroutines. Each device owns a
// Dispatcher, an unbounded FIFO drained by a single goroutine; WithDispatcher
// lets several devices share one so events across them stay ordered.
//
//	d := device.New(desc)
//	h := d.AddListener(listener)
//	defer h.Release()
//	d.AddService(svc)
//	d.Connect(ctx)
//	...
//	vc, err := d.VolumeControl()
package device
