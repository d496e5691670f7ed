// Package tui is the terminal interface: a bubbletea program rendering the
// diary list and the entry form.
//
// The interaction rules live in Workflow, a plain state machine with no I/O
// and no bubbletea types in it. The bubbletea model drives it and renders
// whatever it says; tests drive it directly. Keeping the machine pure means
// every transition rule is testable without a terminal.
package tui

import (
	"time"

	"github.com/rs/xid"

	"github.com/mshiraki/hibi/internal/model"
)

// Phase is the form's position in the interaction cycle.
type Phase int

const (
	// PhaseIdle — no form open, the list has focus.
	PhaseIdle Phase = iota
	// PhaseComposing — form open on a fresh draft (no edit target).
	PhaseComposing
	// PhaseEditing — form open on an existing entry.
	PhaseEditing
	// PhaseSubmitting — a save is in flight; inputs are locked.
	PhaseSubmitting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseComposing:
		return "composing"
	case PhaseEditing:
		return "editing"
	case PhaseSubmitting:
		return "submitting"
	default:
		return "unknown"
	}
}

// FormFields is the editable state of the entry form.
type FormFields struct {
	Date    string
	Title   string
	Content string
}

// Workflow owns the Idle → Composing/Editing → Submitting cycle.
//
// Failure never loses work: a failed submit returns to the form phase it
// came from with the fields untouched and the error surfaced. Only a
// successful submit or an explicit cancel resets the form.
type Workflow struct {
	phase  Phase
	origin Phase // form phase a failed submit falls back to
	target *model.Entry
	fields FormFields
	err    error

	// Deletion is confirmed, never immediate, and is independent of the
	// form cycle — you can be asked to confirm a delete while composing.
	pendingDelete string

	newID func() string
	today func() string
}

// NewWorkflow creates an idle workflow. newID and today are injectable for
// tests; pass nil for the production defaults (xid, local date).
func NewWorkflow(newID func() string, today func() string) *Workflow {
	if newID == nil {
		newID = func() string { return xid.New().String() }
	}
	if today == nil {
		today = func() string { return time.Now().Format("2006-01-02") }
	}
	return &Workflow{
		phase: PhaseIdle,
		newID: newID,
		today: today,
	}
}

// Phase returns the current phase.
func (w *Workflow) Phase() Phase { return w.phase }

// Fields returns the current form fields.
func (w *Workflow) Fields() FormFields { return w.fields }

// SetFields replaces the form fields. The bubbletea model calls this as the
// user types; ignored while a submit is in flight.
func (w *Workflow) SetFields(f FormFields) {
	if w.phase == PhaseSubmitting {
		return
	}
	w.fields = f
}

// Err returns the surfaced error from the last failed action, or nil.
func (w *Workflow) Err() error { return w.err }

// Target returns the entry being edited, or nil when composing.
func (w *Workflow) Target() *model.Entry { return w.target }

// OpenNew opens the form on a blank draft dated today. Only valid from
// Idle; anywhere else it is a no-op.
func (w *Workflow) OpenNew() {
	if w.phase != PhaseIdle {
		return
	}
	w.target = nil
	w.fields = FormFields{Date: w.today()}
	w.err = nil
	w.phase = PhaseComposing
}

// OpenEdit opens the form pre-filled from the given entry. Only valid from
// Idle; a nil entry is ignored (the target may have vanished between the
// user's keypress and now).
func (w *Workflow) OpenEdit(entry *model.Entry) {
	if w.phase != PhaseIdle || entry == nil {
		return
	}
	copied := *entry
	w.target = &copied
	w.fields = FormFields{Date: entry.Date, Title: entry.Title, Content: entry.Content}
	w.err = nil
	w.phase = PhaseEditing
}

// Submit builds the entry to save and moves to Submitting.
//
// Editing reuses the target's id; composing mints a fresh one. The second
// return is false when no submission should happen — most importantly when
// one is already in flight (the re-entrancy guard: mashing the save key
// must not issue two saves).
func (w *Workflow) Submit() (*model.Entry, bool) {
	if w.phase != PhaseComposing && w.phase != PhaseEditing {
		return nil, false
	}

	entry := &model.Entry{
		Date:    w.fields.Date,
		Title:   w.fields.Title,
		Content: w.fields.Content,
	}
	if w.target != nil {
		entry.ID = w.target.ID
	} else {
		entry.ID = w.newID()
	}

	w.origin = w.phase
	w.phase = PhaseSubmitting
	w.err = nil
	return entry, true
}

// SubmitSucceeded closes the form: back to Idle with a blank draft.
func (w *Workflow) SubmitSucceeded() {
	if w.phase != PhaseSubmitting {
		return
	}
	w.phase = PhaseIdle
	w.target = nil
	w.fields = FormFields{}
	w.err = nil
}

// SubmitFailed returns to the form phase the submit came from. Fields are
// untouched — the user's work survives — and err is surfaced.
func (w *Workflow) SubmitFailed(err error) {
	if w.phase != PhaseSubmitting {
		return
	}
	w.phase = w.origin
	w.err = err
}

// Cancel discards the draft and closes the form. A submit in flight cannot
// be cancelled (the operation runs to completion either way), so Cancel is
// a no-op during Submitting.
func (w *Workflow) Cancel() {
	if w.phase != PhaseComposing && w.phase != PhaseEditing {
		return
	}
	w.phase = PhaseIdle
	w.target = nil
	w.fields = FormFields{}
	w.err = nil
}

// RequestDelete records that the user asked to delete an entry; nothing is
// deleted until ConfirmDelete.
func (w *Workflow) RequestDelete(id string) {
	if id == "" {
		return
	}
	w.pendingDelete = id
}

// PendingDelete returns the id awaiting confirmation, or "".
func (w *Workflow) PendingDelete() string { return w.pendingDelete }

// ConfirmDelete consumes the pending deletion. ok is false when nothing
// was pending.
func (w *Workflow) ConfirmDelete() (id string, ok bool) {
	if w.pendingDelete == "" {
		return "", false
	}
	id = w.pendingDelete
	w.pendingDelete = ""
	return id, true
}

// CancelDelete drops the pending deletion without acting on it.
func (w *Workflow) CancelDelete() {
	w.pendingDelete = ""
}

// SurfaceError records an action-level failure (e.g. a delete that the
// server rejected) for display without touching the form cycle.
func (w *Workflow) SurfaceError(err error) {
	w.err = err
}

// ClearError dismisses the surfaced error.
func (w *Workflow) ClearError() {
	w.err = nil
}
