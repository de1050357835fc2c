package channel

// Mode selects what a transfer does when it cannot make progress right away.
type Mode uint8

const (
	Blocking Mode = iota
	NonBlocking
)

func (m Mode) String() string {
	switch m {
	case Blocking:
		return "blocking"
	case NonBlocking:
		return "non-blocking"
	}

	return "unknown"
}
