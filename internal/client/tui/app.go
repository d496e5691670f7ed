package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mshiraki/hibi/internal/client/api"
	"github.com/mshiraki/hibi/internal/client/session"
	"github.com/mshiraki/hibi/internal/client/store"
	"github.com/mshiraki/hibi/internal/dategroup"
)

// RefreshMsg tells the program that session or store state changed outside
// the bubbletea loop (a feed notification landed). main wires the
// session/store onChange callbacks to Send one of these.
type RefreshMsg struct{}

// Result messages for async operations. Each carries only the error; state
// lives in the session/store and arrives via RefreshMsg.
type (
	authResultMsg   struct{ err error }
	saveResultMsg   struct{ err error }
	deleteResultMsg struct{ err error }
	renameResultMsg struct{ err error }
)

// App is the bubbletea model for the whole client.
//
// It renders three top-level screens — resolving, signed-out (login form),
// and the diary — and within the diary screen overlays the entry form,
// the delete confirmation, and the rename prompt. All interaction rules
// for the entry form go through the Workflow; App only translates key
// presses into workflow calls and renders the result.
type App struct {
	client *api.Client
	sess   *session.Session
	store  *store.Store
	wf     *Workflow

	styles Styles
	form   entryForm
	login  loginForm
	rename textinput.Model

	cursor   int
	lastUser string
	renaming bool
	authBusy bool
	authErr  error
	width    int
	height   int
}

// NewApp wires the model. The session and store must share the client given
// here (it is their provider/collection).
func NewApp(client *api.Client, sess *session.Session, st *store.Store) *App {
	styles := DefaultStyles()

	rename := textinput.New()
	rename.Placeholder = "display name"
	rename.Width = 30

	return &App{
		client: client,
		sess:   sess,
		store:  st,
		wf:     NewWorkflow(nil, nil),
		styles: styles,
		form:   newEntryForm(styles),
		login:  newLoginForm(styles),
		rename: rename,
	}
}

func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case RefreshMsg:
		a.syncIdentity()
		a.clampCursor()
		return a, nil

	case authResultMsg:
		a.authBusy = false
		a.authErr = msg.err
		if msg.err == nil {
			a.login.password.SetValue("")
		}
		return a, nil

	case saveResultMsg:
		if msg.err != nil {
			a.wf.SubmitFailed(msg.err)
			a.form.load(a.wf.Fields())
		} else {
			a.wf.SubmitSucceeded()
		}
		return a, nil

	case deleteResultMsg:
		if msg.err != nil {
			a.wf.SurfaceError(msg.err)
		}
		return a, nil

	case renameResultMsg:
		if msg.err != nil {
			a.wf.SurfaceError(msg.err)
		} else {
			a.renaming = false
			a.rename.Blur()
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}

	if a.sess.Resolving() {
		return a, nil
	}

	if a.sess.Identity() == nil {
		return a.handleLoginKey(msg)
	}

	// Overlays take key priority over everything else.
	if a.renaming {
		return a.handleRenameKey(msg)
	}
	if a.wf.PendingDelete() != "" {
		return a.handleConfirmKey(msg)
	}

	switch a.wf.Phase() {
	case PhaseComposing, PhaseEditing:
		return a.handleFormKey(msg)
	case PhaseSubmitting:
		// Inputs are locked while the save is in flight.
		return a, nil
	default:
		return a.handleListKey(msg)
	}
}

func (a *App) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.authBusy {
		return a, nil
	}
	switch msg.String() {
	case "enter":
		email := strings.TrimSpace(a.login.email.Value())
		password := a.login.password.Value()
		name := strings.TrimSpace(a.login.name.Value())
		signUp := a.login.signUp
		a.authBusy = true
		a.authErr = nil
		return a, func() tea.Msg {
			ctx := context.Background()
			var err error
			if signUp {
				err = a.client.SignUp(ctx, email, password, name)
			} else {
				err = a.sess.SignIn(ctx, email, password)
			}
			return authResultMsg{err: err}
		}
	case "tab", "shift+tab":
		a.login.cycleFocus()
		return a, nil
	case "ctrl+r":
		a.login.toggleMode()
		return a, nil
	default:
		return a, a.login.update(msg)
	}
}

func (a *App) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.wf.Cancel()
		return a, nil
	case "tab":
		a.form.cycleFocus()
		return a, nil
	case "ctrl+s":
		a.wf.SetFields(a.form.fields())
		entry, ok := a.wf.Submit()
		if !ok {
			return a, nil
		}
		return a, func() tea.Msg {
			return saveResultMsg{err: a.store.Save(context.Background(), entry)}
		}
	default:
		cmd := a.form.update(msg)
		a.wf.SetFields(a.form.fields())
		return a, cmd
	}
}

func (a *App) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y":
		id, ok := a.wf.ConfirmDelete()
		if !ok {
			return a, nil
		}
		return a, func() tea.Msg {
			return deleteResultMsg{err: a.store.Delete(context.Background(), id)}
		}
	case "n", "esc":
		a.wf.CancelDelete()
		return a, nil
	}
	return a, nil
}

func (a *App) handleRenameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		name := strings.TrimSpace(a.rename.Value())
		return a, func() tea.Msg {
			return renameResultMsg{err: a.sess.UpdateDisplayName(context.Background(), name)}
		}
	case "esc":
		a.renaming = false
		a.rename.Blur()
		return a, nil
	default:
		var cmd tea.Cmd
		a.rename, cmd = a.rename.Update(msg)
		return a, cmd
	}
}

func (a *App) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	entries := a.store.Entries()
	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
		return a, nil
	case "down", "j":
		if a.cursor < len(entries)-1 {
			a.cursor++
		}
		return a, nil
	case "n":
		a.wf.OpenNew()
		a.form.load(a.wf.Fields())
		return a, nil
	case "enter", "e":
		if a.cursor < len(entries) {
			a.store.SelectForEdit(entries[a.cursor].ID)
			a.wf.OpenEdit(a.store.EditTarget())
			if a.wf.Phase() == PhaseEditing {
				a.form.load(a.wf.Fields())
			}
		}
		return a, nil
	case "d":
		if a.cursor < len(entries) {
			a.wf.RequestDelete(entries[a.cursor].ID)
		}
		return a, nil
	case "u":
		a.renaming = true
		if id := a.sess.Identity(); id != nil {
			a.rename.SetValue(id.DisplayName)
		}
		a.rename.Focus()
		return a, nil
	case "o":
		return a, func() tea.Msg {
			return authResultMsg{err: a.sess.SignOut(context.Background())}
		}
	}
	return a, nil
}

// syncIdentity gates the store's subscription on the session identity:
// a user means a subscription to their collection, no user means none.
func (a *App) syncIdentity() {
	userID := ""
	if id := a.sess.Identity(); id != nil {
		userID = id.UserID
	}
	if userID != a.lastUser {
		a.lastUser = userID
		a.store.SetUser(userID)
		a.cursor = 0
	}
}

func (a *App) clampCursor() {
	n := len(a.store.Entries())
	if n == 0 {
		a.cursor = 0
	} else if a.cursor >= n {
		a.cursor = n - 1
	}
}

func (a *App) View() string {
	if a.sess.Resolving() {
		return a.styles.Muted.Render("\n  Resolving session...")
	}

	if a.sess.Identity() == nil {
		errLine := ""
		if a.authErr != nil {
			errLine = a.authErr.Error()
		}
		if a.authBusy {
			errLine = "signing in..."
		}
		return "\n" + a.login.view(errLine)
	}

	return a.diaryView()
}

func (a *App) diaryView() string {
	var b strings.Builder

	// Header greeting
	name := "there"
	if id := a.sess.Identity(); id != nil && id.DisplayName != "" {
		name = id.DisplayName
	}
	b.WriteString(a.styles.Header.Render(fmt.Sprintf("hibi — hello, %s", name)))
	b.WriteString("\n\n")

	b.WriteString(a.listView())

	switch {
	case a.renaming:
		b.WriteString("\n" + a.styles.FormBox.Render(
			"New display name\n\n"+a.rename.View()+
				"\n\n"+a.styles.Muted.Render("enter: save • esc: cancel")))
	case a.wf.PendingDelete() != "":
		b.WriteString("\n" + a.styles.Error.Render("Delete this entry? (y/n)"))
	case a.wf.Phase() == PhaseComposing:
		b.WriteString("\n" + a.form.view("New entry", a.errLine()))
	case a.wf.Phase() == PhaseEditing:
		b.WriteString("\n" + a.form.view("Edit entry", a.errLine()))
	case a.wf.Phase() == PhaseSubmitting:
		b.WriteString("\n" + a.form.view("Saving...", ""))
	default:
		if line := a.errLine(); line != "" {
			b.WriteString("\n" + a.styles.Error.Render(line))
		}
		b.WriteString("\n" + a.styles.Help.Render(
			"n: new • enter: edit • d: delete • u: name • o: sign out • q: quit"))
	}

	return b.String()
}

// listView renders the grouped, date-descending entry list.
func (a *App) listView() string {
	entries := a.store.Entries()

	if a.store.Loading() {
		return a.styles.Muted.Render("  loading entries...")
	}
	if len(entries) == 0 {
		return a.styles.Muted.Render("  No entries yet. Press n to write the first one.")
	}

	groups := dategroup.GroupByDate(entries)

	var b strings.Builder
	idx := 0
	for _, date := range dategroup.SortedDates(groups) {
		b.WriteString("  " + a.styles.DateLabel.Render(dategroup.FormatForDisplay(date)) + "\n")
		for _, e := range groups[date] {
			title := e.Title
			if title == "" {
				title = "(untitled)"
			}
			line := "    " + title
			if idx == a.cursor {
				line = a.styles.Selected.Render("  > " + title)
			}
			b.WriteString(line + "\n")
			idx++
		}
	}
	return b.String()
}

func (a *App) errLine() string {
	if err := a.wf.Err(); err != nil {
		return err.Error()
	}
	if err := a.store.Err(); err != nil {
		return err.Error()
	}
	return ""
}
