// Package ui provides the terminal editor.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/nibzard/tasklist-go/internal/config"
	"github.com/nibzard/tasklist-go/internal/render"
	"github.com/nibzard/tasklist-go/internal/session"
	"github.com/nibzard/tasklist-go/internal/taskfile"
)

// Options configures the editor.
type Options struct {
	// UsePicker selects the file picker and destination prompt. When false,
	// load reads a typed path and save writes into DownloadDir.
	UsePicker   bool
	StartDir    string
	DownloadDir string
	Logger      *log.Logger
	// Plain disables styling.
	Plain bool
}

// OptionsFromConfig maps loaded configuration to editor options.
func OptionsFromConfig(cfg *config.Config, logger *log.Logger) Options {
	return Options{
		UsePicker:   cfg.UsePicker(),
		StartDir:    cfg.StartDir,
		DownloadDir: cfg.DownloadDir,
		Logger:      logger,
	}
}

// RunTUI starts the editor on sess and blocks until the user quits or ctx
// is cancelled.
func RunTUI(ctx context.Context, sess *session.Session, opts Options) error {
	if !IsTTY(os.Stdout) {
		return fmt.Errorf("editor requires a TTY")
	}
	model := newModel(sess, opts)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

type mode int

const (
	modeBrowse mode = iota
	modePrompt
	modeEdit
	modeConfirm
	modePicker
)

type promptKind int

const (
	promptSection promptKind = iota
	promptTask
	promptSaveAs
	promptLoadPath
)

type confirmKind int

const (
	confirmDeleteSection confirmKind = iota
	confirmNew
	confirmOverwrite
)

const promptCharLimit = 200

type model struct {
	sess   *session.Session
	opts   Options
	logger *log.Logger

	keys   keyMap
	help   help.Model
	input  textinput.Model
	picker filepicker.Model

	mode      mode
	prompt    promptKind
	confirm   confirmKind
	sectionID string // target of promptTask and confirmDeleteSection
	savePath  string // target of confirmOverwrite
	editStart string // edit field value when the edit began

	cursor    int
	notice    string
	noticeErr bool
	width     int
	height    int
}

func newModel(sess *session.Session, opts Options) *model {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	input := textinput.New()
	input.CharLimit = promptCharLimit
	input.Prompt = ""
	return &model{
		sess:   sess,
		opts:   opts,
		logger: logger,
		keys:   defaultKeyMap(),
		help:   help.New(),
		input:  input,
		picker: newPicker(opts.StartDir),
	}
}

func newPicker(dir string) filepicker.Model {
	fp := filepicker.New()
	fp.AllowedTypes = []string{taskfile.Extension}
	fp.ShowHidden = false
	if dir != "" {
		fp.CurrentDirectory = dir
	}
	fp.AutoHeight = false
	fp.Height = 12
	return fp
}

func (m *model) Init() tea.Cmd {
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		if msg.Height > 10 {
			m.picker.Height = msg.Height - 8
		}
		return m, nil
	case tea.KeyMsg:
		switch m.mode {
		case modePrompt:
			return m.updatePrompt(msg)
		case modeEdit:
			return m.updateEdit(msg)
		case modeConfirm:
			return m.updateConfirm(msg)
		case modePicker:
			return m.updatePicker(msg)
		default:
			return m.updateBrowse(msg)
		}
	}

	// The picker reads directories asynchronously.
	if m.mode == modePicker {
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd
	}
	if m.mode == modePrompt || m.mode == modeEdit {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	row, hasRow := m.currentRow()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.AddSection):
		return m, m.openPrompt(promptSection, "", "Section name")
	case key.Matches(msg, m.keys.AddTask):
		if !hasRow {
			return m, nil
		}
		m.sectionID = m.sess.Document().Sections()[row.Section].ID
		return m, m.openPrompt(promptTask, "", "Task")
	case key.Matches(msg, m.keys.Toggle):
		if hasRow && !row.IsSection() {
			_, err := m.sess.ToggleTask(row.Section, row.Task)
			m.logRejected("toggle", err)
		}
	case key.Matches(msg, m.keys.Edit):
		if !hasRow || row.IsSection() {
			return m, nil
		}
		text, err := m.sess.BeginEdit(row.Section, row.Task)
		if err != nil {
			m.logger.Debug("edit rejected", "err", err)
			return m, nil
		}
		m.mode = modeEdit
		m.input.Placeholder = ""
		m.input.CharLimit = 0
		m.input.SetValue(text)
		m.input.CursorEnd()
		// The field folds tabs and newlines, so compare against what it holds.
		m.editStart = m.input.Value()
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Delete):
		if !hasRow {
			return m, nil
		}
		if row.IsSection() {
			s := m.sess.Document().Sections()[row.Section]
			m.sectionID = s.ID
			m.askConfirm(confirmDeleteSection)
			return m, nil
		}
		_, err := m.sess.DeleteTask(row.Section, row.Task)
		m.logRejected("delete", err)
		m.clampCursor()
	case key.Matches(msg, m.keys.NewFile):
		m.askConfirm(confirmNew)
	case key.Matches(msg, m.keys.Load):
		return m, m.startLoad()
	case key.Matches(msg, m.keys.Save):
		return m, m.startSave()
	}
	return m, nil
}

func (m *model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.closeInput()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		return m, m.submitPrompt(m.input.Value())
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) submitPrompt(value string) tea.Cmd {
	switch m.prompt {
	case promptSection:
		changed, err := m.sess.AddSection(value)
		if err != nil || !changed {
			m.closeInput()
			return nil
		}
		// New sections are appended, so the last row is the new header.
		m.cursor = len(m.rows()) - 1
		m.closeInput()
	case promptTask:
		si := m.sess.Document().IndexOfSection(m.sectionID)
		if si < 0 {
			m.closeInput()
			return nil
		}
		changed, err := m.sess.AddTask(si, value)
		if err != nil || !changed {
			m.closeInput()
			return nil
		}
		// Stay in the prompt for the next task.
		m.input.SetValue("")
	case promptSaveAs:
		m.closeInput()
		path := strings.TrimSpace(value)
		if fi, err := os.Stat(path); path != "" && err == nil {
			if fi.IsDir() {
				m.setNotice(fmt.Sprintf("%s is a directory", path), true)
				return nil
			}
			m.savePath = path
			m.askConfirm(confirmOverwrite)
			return nil
		}
		m.finishSave(m.sess.SaveAs(path), path)
	case promptLoadPath:
		m.closeInput()
		m.loadFromPath(value)
	}
	return nil
}

func (m *model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit), key.Matches(msg, m.keys.Cancel):
		m.commitEdit()
		return m, nil
	case msg.Type == tea.KeyUp, msg.Type == tea.KeyDown:
		// Moving off the row commits, like losing focus.
		m.commitEdit()
		if msg.Type == tea.KeyUp {
			m.moveCursor(-1)
		} else {
			m.moveCursor(1)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) commitEdit() {
	if m.input.Value() == m.editStart {
		m.sess.CancelEdit()
	} else if _, err := m.sess.CommitEdit(m.input.Value()); err != nil {
		m.logger.Debug("edit rejected", "err", err)
	}
	m.editStart = ""
	m.closeInput()
}

func (m *model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.mode = modeBrowse
		switch m.confirm {
		case confirmDeleteSection:
			if si := m.sess.Document().IndexOfSection(m.sectionID); si >= 0 {
				_, err := m.sess.DeleteSection(si)
				m.logRejected("delete section", err)
			}
			m.clampCursor()
		case confirmNew:
			m.sess.New()
			m.cursor = 0
			m.setNotice("New file created. Add sections and save when ready.", false)
		case confirmOverwrite:
			m.finishSave(m.sess.SaveAs(m.savePath), m.savePath)
			m.savePath = ""
		}
	case key.Matches(msg, m.keys.Deny):
		m.mode = modeBrowse
		m.savePath = ""
	}
	return m, nil
}

func (m *model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Cancel) || msg.Type == tea.KeyCtrlC {
		m.mode = modeBrowse
		return m, nil
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)

	if ok, path := m.picker.DidSelectFile(msg); ok {
		m.mode = modeBrowse
		m.loadPicked(path)
		return m, cmd
	}
	if ok, path := m.picker.DidSelectDisabledFile(msg); ok {
		m.setNotice(fmt.Sprintf("%s is not a %s file", filepath.Base(path), taskfile.Extension), true)
	}
	return m, cmd
}

func (m *model) startLoad() tea.Cmd {
	if m.opts.UsePicker {
		m.mode = modePicker
		m.picker = newPicker(m.opts.StartDir)
		if m.height > 10 {
			m.picker.Height = m.height - 8
		}
		return m.picker.Init()
	}
	return m.openPrompt(promptLoadPath, "", "Path to a "+taskfile.Extension+" file")
}

// loadPicked opens a picked file, which becomes the session's destination.
func (m *model) loadPicked(path string) {
	if err := m.sess.Load(path); err != nil {
		m.loadFailed(filepath.Base(path), err)
		return
	}
	m.loaded(path)
}

// loadFromPath reads a typed path without associating it.
func (m *model) loadFromPath(path string) {
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		m.loadFailed(filepath.Base(path), err)
		return
	}
	if err := m.sess.LoadBytes(filepath.Base(path), data); err != nil {
		m.loadFailed(filepath.Base(path), err)
		return
	}
	m.loaded(path)
}

func (m *model) loaded(path string) {
	m.cursor = 0
	m.setNotice(fmt.Sprintf("Loaded %s", filepath.Base(path)), false)
}

func (m *model) loadFailed(name string, err error) {
	if errors.Is(err, session.ErrCancelled) {
		return
	}
	var pe *taskfile.ParseError
	if errors.As(err, &pe) {
		m.setNotice(fmt.Sprintf("%s is not a valid task list: %v", name, pe.Unwrap()), true)
		return
	}
	m.logger.Error("load failed", "source", name, "err", err)
	m.setNotice(fmt.Sprintf("Could not load %s: %v", name, err), true)
}

func (m *model) startSave() tea.Cmd {
	if !m.sess.CanSave() {
		m.setNotice("Nothing to save. Add a section first.", true)
		return nil
	}
	err := m.sess.Save()
	if !errors.Is(err, session.ErrNoDestination) {
		m.finishSave(err, m.sess.Destination())
		return nil
	}
	if m.opts.UsePicker {
		suggested := filepath.Join(m.opts.StartDir, m.sess.DefaultName())
		return m.openPrompt(promptSaveAs, suggested, "Save as")
	}
	path, err := m.sess.Download(m.opts.DownloadDir)
	m.finishSave(err, path)
	return nil
}

func (m *model) finishSave(err error, path string) {
	switch {
	case err == nil:
		m.setNotice(fmt.Sprintf("Saved %s", path), false)
	case errors.Is(err, session.ErrCancelled):
	case errors.Is(err, session.ErrEmpty):
		m.setNotice("Nothing to save. Add a section first.", true)
	default:
		m.setNotice(fmt.Sprintf("Save failed: %v", err), true)
	}
}

func (m *model) openPrompt(kind promptKind, value, placeholder string) tea.Cmd {
	m.mode = modePrompt
	m.prompt = kind
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *model) closeInput() {
	m.mode = modeBrowse
	m.input.Blur()
	m.input.SetValue("")
	m.input.Placeholder = ""
	m.input.CharLimit = promptCharLimit
}

func (m *model) askConfirm(kind confirmKind) {
	m.mode = modeConfirm
	m.confirm = kind
}

func (m *model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
}

// logRejected records a mutation the document refused. Nothing is shown.
func (m *model) logRejected(op string, err error) {
	if err != nil {
		m.logger.Debug("mutation ignored", "op", op, "err", err)
	}
}

func (m *model) tree() *render.Tree {
	edit := render.NoEdit
	if si, ti, ok := m.sess.Editing(); ok {
		edit = render.EditState{Section: si, Task: ti}
	}
	return render.Build(m.sess.Document(), edit)
}

func (m *model) rows() []render.Row {
	return m.tree().Rows()
}

func (m *model) currentRow() (render.Row, bool) {
	rows := m.rows()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return render.Row{}, false
	}
	return rows[m.cursor], true
}

func (m *model) moveCursor(delta int) {
	m.cursor += delta
	m.clampCursor()
}

func (m *model) clampCursor() {
	n := len(m.rows())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	statusStyle = lipgloss.NewStyle().Faint(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

func (m *model) style(s lipgloss.Style, text string) string {
	if m.opts.Plain {
		return text
	}
	return s.Render(text)
}

func (m *model) View() string {
	var b strings.Builder
	m.writeTitle(&b)

	if m.mode == modePicker {
		b.WriteString("Open a task list (esc to cancel)\n\n")
		b.WriteString(m.picker.View())
		b.WriteString("\n")
		m.writeNotice(&b)
		return b.String()
	}

	tree := m.tree()
	opts := render.Options{Cursor: m.cursor, Plain: m.opts.Plain}
	if m.mode == modeEdit {
		opts.EditField = m.input.View()
	}
	b.WriteString(render.Draw(tree, opts))
	b.WriteString("\n")

	switch m.mode {
	case modePrompt:
		b.WriteString(m.style(promptStyle, m.promptLabel()+": "))
		b.WriteString(m.input.View())
		b.WriteString("\n")
	case modeConfirm:
		b.WriteString(m.style(promptStyle, m.confirmLabel()+" [y/n]"))
		b.WriteString("\n")
	}

	m.writeNotice(&b)
	m.writeStatus(&b, tree)
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

func (m *model) promptLabel() string {
	switch m.prompt {
	case promptTask:
		if si := m.sess.Document().IndexOfSection(m.sectionID); si >= 0 {
			return "New task in " + render.Printable(m.sess.Document().Sections()[si].Name)
		}
		return "New task"
	case promptSaveAs:
		return "Save as"
	case promptLoadPath:
		return "Open"
	default:
		return "New section"
	}
}

func (m *model) confirmLabel() string {
	switch m.confirm {
	case confirmOverwrite:
		return fmt.Sprintf("%s already exists. Replace it?", filepath.Base(m.savePath))
	case confirmNew:
		if m.sess.Dirty() {
			return "Discard unsaved changes and start a new file?"
		}
		return "Start a new file?"
	default:
		name := ""
		if si := m.sess.Document().IndexOfSection(m.sectionID); si >= 0 {
			name = m.sess.Document().Sections()[si].Name
		}
		return fmt.Sprintf("Delete section %q and its tasks?", name)
	}
}

func (m *model) writeTitle(b *strings.Builder) {
	title := "Task List"
	b.WriteString(m.style(titleStyle, title) + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n\n")
}

func (m *model) writeNotice(b *strings.Builder) {
	if m.notice == "" {
		return
	}
	s := okStyle
	if m.noticeErr {
		s = errStyle
	}
	b.WriteString(m.style(s, m.notice))
	b.WriteString("\n")
}

func (m *model) writeStatus(b *strings.Builder, tree *render.Tree) {
	file := "unsaved"
	if dest := m.sess.Destination(); dest != "" {
		file = filepath.Base(dest)
	}
	if m.sess.Dirty() {
		file += " *"
	}
	c := m.sess.Document().Counts()
	save := "save off"
	if tree.CanSave {
		save = "save on"
	}
	line := fmt.Sprintf("%s · %d sections · %d/%d done · %s", file, c.Sections, c.Completed, c.Tasks, save)
	b.WriteString(m.style(statusStyle, line))
	b.WriteString("\n")
}

// IsTTY checks if the given file is a TTY.
func IsTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
