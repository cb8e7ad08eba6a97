package model

import "fmt"

// NoteKind classifies a diagnostic note.
type NoteKind string

// Diagnostic note kinds.
const (
	NoteUpstreamFailure   NoteKind = "upstream_failure"
	NoteMissingData       NoteKind = "missing_data"
	NoteHeuristicFallback NoteKind = "heuristic_fallback"
	NoteModelSelection    NoteKind = "model_selection"
	NoteModelFallback     NoteKind = "model_fallback"
	NoteTrainingFailure   NoteKind = "training_failure"
)

// Note is a human-readable diagnostic attached to a run. Context names the
// round or component the note is about and may be empty.
type Note struct {
	Kind    NoteKind `json:"kind"`
	Context string   `json:"context,omitempty"`
	Message string   `json:"message"`
}

// NewNote builds a note with a formatted message.
func NewNote(kind NoteKind, context, format string, args ...any) Note {
	return Note{Kind: kind, Context: context, Message: fmt.Sprintf(format, args...)}
}

func (n Note) String() string {
	if n.Context == "" {
		return n.Message
	}
	return n.Context + ": " + n.Message
}

// RoundContext formats the context string for a round.
func RoundContext(year, round int) string {
	return fmt.Sprintf("%d round %d", year, round)
}

// HasKind reports whether any note has the given kind.
func HasKind(notes []Note, kind NoteKind) bool {
	for _, n := range notes {
		if n.Kind == kind {
			return true
		}
	}
	return false
}
