package paging

// State is the lifecycle state of a Pageable.
type State int

// State values.
const (
	StateReady State = iota
	StateFetchingPage
	StateHasBufferedItems
	StateExhausted
	StateCanceled
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateFetchingPage:
		return "FetchingPage"
	case StateHasBufferedItems:
		return "HasBufferedItems"
	case StateExhausted:
		return "Exhausted"
	case StateCanceled:
		return "Canceled"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further items can be produced.
func (s State) Terminal() bool {
	return s == StateExhausted || s == StateCanceled || s == StateFailed
}
