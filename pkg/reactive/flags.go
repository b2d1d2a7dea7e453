package reactive

// Kind tags a node with the variant it belongs to.
type Kind uint8

const (
	KindSource Kind = iota + 1
	KindDerived
	KindEffect
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindDerived:
		return "derived"
	case KindEffect:
		return "effect"
	default:
		return "unknown"
	}
}

// Status is the invalidation state of a derived or effect.
type Status uint8

const (
	Clean Status = iota
	Dirty
	MaybeDirty
	Destroyed
)

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case MaybeDirty:
		return "maybe_dirty"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// flags is the bit set stored on every node. The status bits are mutually
// exclusive; unowned is independent of them.
type flags uint8

const (
	flagClean flags = 1 << iota
	flagDirty
	flagMaybeDirty
	flagDestroyed
	flagUnowned

	statusMask = flagClean | flagDirty | flagMaybeDirty | flagDestroyed
)

func (f flags) status() Status {
	switch {
	case f&flagDestroyed != 0:
		return Destroyed
	case f&flagDirty != 0:
		return Dirty
	case f&flagMaybeDirty != 0:
		return MaybeDirty
	default:
		return Clean
	}
}
