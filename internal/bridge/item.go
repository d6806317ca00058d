package bridge

// ItemKind distinguishes what the producer pushed onto the queue.
type ItemKind int

const (
	// ItemFragment carries newly decoded text.
	ItemFragment ItemKind = iota
	// ItemDone marks normal end of production.
	ItemDone
	// ItemError marks a failed generation; Err holds the cause.
	ItemError
)

func (k ItemKind) String() string {
	switch k {
	case ItemFragment:
		return "fragment"
	case ItemDone:
		return "done"
	case ItemError:
		return "error"
	default:
		return "unknown"
	}
}

// Item is one queue entry between Producer and Iterator.
type Item struct {
	Kind ItemKind
	Text string
	Err  error
}

// Terminal reports whether the item ends the stream.
func (it Item) Terminal() bool { return it.Kind != ItemFragment }
