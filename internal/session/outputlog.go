package session

// OutputLog is the append-only record of captured command output, in
// execution order.
type OutputLog struct {
	entries []string
}

func (l *OutputLog) append(output string) {
	l.entries = append(l.entries, output)
}

// Len returns the number of recorded outputs.
func (l *OutputLog) Len() int {
	return len(l.entries)
}

// Get returns the output recorded i commands before the most recent one;
// Get(0) is the latest.
func (l *OutputLog) Get(i int) (string, bool) {
	if i < 0 || i >= len(l.entries) {
		return "", false
	}
	return l.entries[len(l.entries)-1-i], true
}

// Latest returns the most recent output.
func (l *OutputLog) Latest() (string, bool) {
	return l.Get(0)
}

// All returns a copy of every output in chronological order.
func (l *OutputLog) All() []string {
	return append([]string(nil), l.entries...)
}
