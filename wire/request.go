package wire

// Query parameters of a stream request.
const (
	// ParamScope carries the fixed scope identifier of the stream.
	ParamScope = "sessionId"
	// ParamUserID carries the optional caller identifier.
	ParamUserID = "userId"
	// ParamClientMessageID carries the session identifier that every frame
	// of the response echoes.
	ParamClientMessageID = "clientMessageId"
	// ParamMessage carries the prompt text.
	ParamMessage = "message"
)
