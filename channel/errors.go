package channel

type channelError string

var _ error = channelError("")

func (err channelError) Error() string {
	return string(err)
}

const (
	ErrWouldBlock      = channelError("operation would block")
	ErrTimeout         = channelError("operation timed out")
	ErrInterrupted     = channelError("operation interrupted")
	ErrClosed          = channelError("channel is closed")
	ErrInvalidCapacity = channelError("capacity must be at least 2")
	ErrInvalidBacking  = channelError("unknown storage backing")
)
