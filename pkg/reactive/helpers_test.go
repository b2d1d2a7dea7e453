package reactive

import (
	"io"
	"log/slog"
)

func newTestRuntime(opts ...Option) *Runtime {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(opts...)
}

// recordingObserver counts lifecycle events per node.
type recordingObserver struct {
	created   map[uint64]int
	updated   map[uint64]int
	changed   map[uint64]int
	destroyed map[uint64]int
	failed    []error
	selfRefs  []string
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		created:   make(map[uint64]int),
		updated:   make(map[uint64]int),
		changed:   make(map[uint64]int),
		destroyed: make(map[uint64]int),
	}
}

func (o *recordingObserver) OnCreate(info NodeInfo) {
	o.created[info.ID]++
}

func (o *recordingObserver) OnUpdate(info NodeInfo) func(UpdateResult) {
	return func(res UpdateResult) {
		o.updated[info.ID]++
		if res.Changed {
			o.changed[info.ID]++
		}
		if res.Err != nil {
			o.failed = append(o.failed, res.Err)
		}
	}
}

func (o *recordingObserver) OnDestroy(info NodeInfo) {
	o.destroyed[info.ID]++
}

func (o *recordingObserver) OnSelfReference(info NodeInfo) {
	o.selfRefs = append(o.selfRefs, info.Label)
}
