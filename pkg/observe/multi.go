package observe

import "github.com/vango-dev/derive/pkg/reactive"

type multi []reactive.Observer

// Multi returns an observer that forwards every event to each of observers
// in order. nil observers are skipped.
func Multi(observers ...reactive.Observer) reactive.Observer {
	m := make(multi, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

func (m multi) OnCreate(info reactive.NodeInfo) {
	for _, o := range m {
		o.OnCreate(info)
	}
}

func (m multi) OnUpdate(info reactive.NodeInfo) func(reactive.UpdateResult) {
	done := make([]func(reactive.UpdateResult), len(m))
	for i, o := range m {
		done[i] = o.OnUpdate(info)
	}
	return func(res reactive.UpdateResult) {
		// Reverse order, so span-like observers nest correctly.
		for i := len(done) - 1; i >= 0; i-- {
			done[i](res)
		}
	}
}

func (m multi) OnDestroy(info reactive.NodeInfo) {
	for _, o := range m {
		o.OnDestroy(info)
	}
}

func (m multi) OnSelfReference(info reactive.NodeInfo) {
	for _, o := range m {
		o.OnSelfReference(info)
	}
}
