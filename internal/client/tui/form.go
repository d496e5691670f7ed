package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// entryForm is the date/title/content input group for the entry modal.
// It owns focus cycling between its inputs; the app model owns when the
// form is open (that's the workflow's phase, not a form concern).
type entryForm struct {
	date    textinput.Model
	title   textinput.Model
	content textarea.Model
	focus   int // 0=date 1=title 2=content
	styles  Styles
}

func newEntryForm(styles Styles) entryForm {
	date := textinput.New()
	date.Placeholder = "YYYY-MM-DD"
	date.CharLimit = 10
	date.Width = 12

	title := textinput.New()
	title.Placeholder = "Title"
	title.CharLimit = 200
	title.Width = 40

	content := textarea.New()
	content.Placeholder = "Write..."
	content.SetWidth(56)
	content.SetHeight(8)

	return entryForm{
		date:    date,
		title:   title,
		content: content,
		styles:  styles,
	}
}

// load fills the inputs from workflow fields and focuses the first one.
func (f *entryForm) load(fields FormFields) {
	f.date.SetValue(fields.Date)
	f.title.SetValue(fields.Title)
	f.content.SetValue(fields.Content)
	f.focus = 0
	f.applyFocus()
}

// fields reads the current input values back out.
func (f *entryForm) fields() FormFields {
	return FormFields{
		Date:    strings.TrimSpace(f.date.Value()),
		Title:   f.title.Value(),
		Content: f.content.Value(),
	}
}

// cycleFocus moves focus to the next input (wrapping).
func (f *entryForm) cycleFocus() {
	f.focus = (f.focus + 1) % 3
	f.applyFocus()
}

func (f *entryForm) applyFocus() {
	f.date.Blur()
	f.title.Blur()
	f.content.Blur()
	switch f.focus {
	case 0:
		f.date.Focus()
	case 1:
		f.title.Focus()
	case 2:
		f.content.Focus()
	}
}

// update routes a message to whichever input has focus.
func (f *entryForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch f.focus {
	case 0:
		f.date, cmd = f.date.Update(msg)
	case 1:
		f.title, cmd = f.title.Update(msg)
	case 2:
		f.content, cmd = f.content.Update(msg)
	}
	return cmd
}

func (f *entryForm) view(title string, errLine string) string {
	var b strings.Builder
	b.WriteString(f.styles.DateLabel.Render(title))
	b.WriteString("\n\n")
	b.WriteString("Date    " + f.date.View() + "\n")
	b.WriteString("Title   " + f.title.View() + "\n\n")
	b.WriteString(f.content.View())
	if errLine != "" {
		b.WriteString("\n\n" + f.styles.Error.Render(errLine))
	}
	b.WriteString("\n\n" + f.styles.Muted.Render("tab: next field • ctrl+s: save • esc: cancel"))
	return f.styles.FormBox.Render(b.String())
}

// loginForm is the sign-in / sign-up screen shown when no identity exists.
type loginForm struct {
	email    textinput.Model
	password textinput.Model
	name     textinput.Model
	focus    int
	signUp   bool // false = sign in, true = create account
	styles   Styles
}

func newLoginForm(styles Styles) loginForm {
	email := textinput.New()
	email.Placeholder = "email"
	email.Width = 40
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.Width = 40
	password.EchoMode = textinput.EchoPassword

	name := textinput.New()
	name.Placeholder = "display name (optional)"
	name.Width = 40

	return loginForm{
		email:    email,
		password: password,
		name:     name,
		styles:   styles,
	}
}

func (f *loginForm) inputCount() int {
	if f.signUp {
		return 3
	}
	return 2
}

func (f *loginForm) cycleFocus() {
	f.focus = (f.focus + 1) % f.inputCount()
	f.applyFocus()
}

func (f *loginForm) applyFocus() {
	f.email.Blur()
	f.password.Blur()
	f.name.Blur()
	switch f.focus {
	case 0:
		f.email.Focus()
	case 1:
		f.password.Focus()
	case 2:
		f.name.Focus()
	}
}

func (f *loginForm) toggleMode() {
	f.signUp = !f.signUp
	if f.focus >= f.inputCount() {
		f.focus = 0
		f.applyFocus()
	}
}

func (f *loginForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch f.focus {
	case 0:
		f.email, cmd = f.email.Update(msg)
	case 1:
		f.password, cmd = f.password.Update(msg)
	case 2:
		f.name, cmd = f.name.Update(msg)
	}
	return cmd
}

func (f *loginForm) view(errLine string) string {
	var b strings.Builder
	if f.signUp {
		b.WriteString(f.styles.DateLabel.Render("Create account"))
	} else {
		b.WriteString(f.styles.DateLabel.Render("Sign in"))
	}
	b.WriteString("\n\n")
	b.WriteString(f.email.View() + "\n")
	b.WriteString(f.password.View() + "\n")
	if f.signUp {
		b.WriteString(f.name.View() + "\n")
	}
	if errLine != "" {
		b.WriteString("\n" + f.styles.Error.Render(errLine))
	}
	mode := "ctrl+r: create an account instead"
	if f.signUp {
		mode = "ctrl+r: sign in instead"
	}
	b.WriteString("\n" + f.styles.Muted.Render("enter: submit • "+mode))
	return f.styles.FormBox.Render(b.String())
}
