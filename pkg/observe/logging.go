package observe

import (
	"log/slog"

	"github.com/vango-dev/derive/pkg/reactive"
)

// Logging is an observer that logs lifecycle events at Debug level and
// failed evaluations at Warn.
type Logging struct {
	log *slog.Logger
}

// NewLogging creates a logging observer. A nil logger means slog.Default().
func NewLogging(logger *slog.Logger) *Logging {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logging{log: logger}
}

func (l *Logging) OnCreate(info reactive.NodeInfo) {
	l.log.Debug("node created",
		"node", info.Label,
		"kind", info.Kind.String(),
		"unowned", info.Unowned)
}

func (l *Logging) OnUpdate(info reactive.NodeInfo) func(reactive.UpdateResult) {
	return func(res reactive.UpdateResult) {
		if res.Err != nil {
			l.log.Warn("node evaluation failed",
				"node", info.Label,
				"error", res.Err)
			return
		}
		l.log.Debug("node evaluated",
			"node", info.Label,
			"changed", res.Changed,
			"status", res.Status.String(),
			"duration", res.Duration)
	}
}

func (l *Logging) OnDestroy(info reactive.NodeInfo) {
	l.log.Debug("node destroyed", "node", info.Label)
}

func (l *Logging) OnSelfReference(info reactive.NodeInfo) {
	l.log.Debug("self reference reported", "node", info.Label)
}
