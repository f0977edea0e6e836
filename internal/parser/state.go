package parser

// state is the ParserState enumerated in spec.md §3.
type state int

const (
	stateIdle state = iota
	stateInThought
	stateInAction
	stateInResponse
	stateInContextFeed
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "IDLE"
	case stateInThought:
		return "IN_THOUGHT"
	case stateInAction:
		return "IN_ACTION_BODY"
	case stateInResponse:
		return "IN_RESPONSE"
	case stateInContextFeed:
		return "IN_CONTEXT_FEED"
	default:
		return "UNKNOWN"
	}
}
