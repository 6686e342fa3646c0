package rtc

// Result codes reported through core.CodeError and join failure events.
// Negative values below -1000 are raised locally by this adapter; the rest
// come from the channel server.
const (
	CodeOK               = 0
	CodeFailed           = -1
	CodeInvalidArgument  = -2
	CodeNotReady         = -3
	CodeNotJoined        = -5
	CodeNoStream         = -6
	CodeNotInitialized   = -7
	CodeAlreadyInChannel = -17

	CodeSignalUnreachable = -1001
	CodeSignalLost        = -1002
	CodeNegotiation       = -1003
	CodeShortFrame        = -1004
)
