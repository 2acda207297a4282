// Package transcript provides the append-only chat transcript and the
// accumulator that routes streamed text to its entry.
package transcript

import (
	"sync"
)

// Sender identifies who produced an entry.
type Sender string

const (
	SenderYou     Sender = "You"
	SenderAI      Sender = "AI"
	SenderVerbose Sender = "Verbose"
)

// Entry is one displayed transcript line.
type Entry struct {
	Text    string `json:"text"`
	From    Sender `json:"from"`
	Verbose bool   `json:"verbose,omitempty"`
}

// ChangeKind describes what happened to an entry.
type ChangeKind int

const (
	// Added - a new entry was appended.
	Added ChangeKind = iota
	// Extended - streamed text was appended to an existing entry.
	Extended
	// Completed - the entry will not change again.
	Completed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Extended:
		return "extended"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// Change is delivered to the observer for every mutation.
type Change struct {
	Kind  ChangeKind
	Index int    // position in the transcript
	Entry Entry  // entry state after the change
	Delta string // appended fragment, Extended only
}

// Observer receives changes in the order they were applied.
type Observer func(Change)

// Transcript is an ordered, append-only list of entries.
// Insertion order is display order; nothing is ever removed.
//
// Streamed assistant text is routed by stream key (the content block index),
// not by tail position:
//
//	StartBlock(i) ──→ AppendDelta(i, ...) × N ──→ EndMessage()
//	     │                                            │
//	     └── binds i to a new empty AI entry          └── releases every binding
//
// Safe for concurrent use; observer calls happen outside the lock but in
// mutation order as long as mutations come from a single goroutine.
type Transcript struct {
	mu       sync.RWMutex
	entries  []Entry
	streams  map[int]int // block index → entry position
	order    []int       // block indexes in start order
	observer Observer
}

// New creates an empty transcript. observer may be nil.
func New(observer Observer) *Transcript {
	return &Transcript{
		streams:  make(map[int]int),
		observer: observer,
	}
}

// Append adds a complete entry and returns its position.
func (t *Transcript) Append(e Entry) int {
	t.mu.Lock()
	t.entries = append(t.entries, e)
	idx := len(t.entries) - 1
	t.mu.Unlock()

	t.notify(Change{Kind: Added, Index: idx, Entry: e})
	t.notify(Change{Kind: Completed, Index: idx, Entry: e})
	return idx
}

// AppendAI adds a complete assistant entry.
func (t *Transcript) AppendAI(text string) int {
	return t.Append(Entry{Text: text, From: SenderAI})
}

// AppendVerbose adds a diagnostic entry that is hidden unless verbose display is on.
func (t *Transcript) AppendVerbose(text string) int {
	return t.Append(Entry{Text: text, From: SenderVerbose, Verbose: true})
}

// AppendUser adds an entry typed by the user.
func (t *Transcript) AppendUser(text string) int {
	return t.Append(Entry{Text: text, From: SenderYou})
}

// StartBlock appends an empty AI entry and makes it the target for deltas of blockIndex.
// Starting an index that is already bound completes the previous entry first.
func (t *Transcript) StartBlock(blockIndex int) int {
	t.mu.Lock()
	var prev *Change
	if pos, ok := t.streams[blockIndex]; ok {
		prev = &Change{Kind: Completed, Index: pos, Entry: t.entries[pos]}
		t.removeOrder(blockIndex)
	}
	idx := t.bindLocked(blockIndex)
	e := t.entries[idx]
	t.mu.Unlock()

	if prev != nil {
		t.notify(*prev)
	}
	t.notify(Change{Kind: Added, Index: idx, Entry: e})
	return idx
}

// AppendDelta appends text to the entry bound to blockIndex.
// When no block was started for the index an AI entry is synthesized so the
// text is not lost; synthesized reports that case.
func (t *Transcript) AppendDelta(blockIndex int, text string) (synthesized bool) {
	t.mu.Lock()
	pos, ok := t.streams[blockIndex]
	if !ok {
		pos = t.bindLocked(blockIndex)
		synthesized = true
	}
	t.entries[pos].Text += text
	e := t.entries[pos]
	t.mu.Unlock()

	if synthesized {
		t.notify(Change{Kind: Added, Index: pos, Entry: Entry{From: SenderAI}})
	}
	t.notify(Change{Kind: Extended, Index: pos, Entry: e, Delta: text})
	return synthesized
}

// EndMessage releases every stream binding and returns the entries that were completed.
func (t *Transcript) EndMessage() []Entry {
	t.mu.Lock()
	changes := make([]Change, 0, len(t.order))
	for _, blockIndex := range t.order {
		pos := t.streams[blockIndex]
		changes = append(changes, Change{Kind: Completed, Index: pos, Entry: t.entries[pos]})
	}
	t.streams = make(map[int]int)
	t.order = nil
	t.mu.Unlock()

	done := make([]Entry, 0, len(changes))
	for _, c := range changes {
		done = append(done, c.Entry)
		t.notify(c)
	}
	return done
}

// Streaming reports whether any block is still bound.
func (t *Transcript) Streaming() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.streams) > 0
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Last returns the most recent entry.
func (t *Transcript) Last() (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.entries) == 0 {
		return Entry{}, false
	}
	return t.entries[len(t.entries)-1], true
}

// Entries returns a copy of all entries.
func (t *Transcript) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Visible returns the entries shown for the given verbose setting.
func (t *Transcript) Visible(verbose bool) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		if e.From == SenderVerbose && !verbose {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (t *Transcript) bindLocked(blockIndex int) int {
	t.entries = append(t.entries, Entry{From: SenderAI})
	pos := len(t.entries) - 1
	t.streams[blockIndex] = pos
	t.order = append(t.order, blockIndex)
	return pos
}

func (t *Transcript) removeOrder(blockIndex int) {
	for i, b := range t.order {
		if b == blockIndex {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}

func (t *Transcript) notify(c Change) {
	if t.observer != nil {
		t.observer(c)
	}
}
