package ui

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/nibzard/tasklist-go/internal/session"
)

const homeFile = `[{"name":"Home","tasks":[{"text":"Buy milk","completed":false}]}]`

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keySpace = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keySave  = tea.KeyMsg{Type: tea.KeyCtrlS}
	keyLoad  = tea.KeyMsg{Type: tea.KeyCtrlO}
	keyNew   = tea.KeyMsg{Type: tea.KeyCtrlN}
)

func newTestModel(t *testing.T, opts Options) (*model, *session.Session) {
	t.Helper()
	opts.Plain = true
	sess := session.New()
	return newModel(sess, opts), sess
}

func send(m *model, msgs ...tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	for _, msg := range msgs {
		_, cmd = m.Update(msg)
	}
	return cmd
}

func addSection(m *model, name string) {
	send(m, runes("a"), runes(name), keyEnter)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAddSectionAndTasks(t *testing.T) {
	m, sess := newTestModel(t, Options{})

	addSection(m, "Home")
	if m.mode != modeBrowse {
		t.Fatalf("mode after adding section: got %v, want browse", m.mode)
	}
	send(m, runes("t"), runes("Buy milk"), keyEnter, runes("Pay rent"), keyEnter, keyEsc)

	doc := sess.Document()
	if doc.Len() != 1 || doc.Sections()[0].Name != "Home" {
		t.Fatalf("unexpected sections: %+v", doc.Sections())
	}
	tasks := doc.Sections()[0].Tasks
	if len(tasks) != 2 || tasks[0].Text != "Buy milk" || tasks[1].Text != "Pay rent" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
	if m.mode != modeBrowse {
		t.Errorf("esc should close the task prompt")
	}
}

func TestBlankSectionNameIgnored(t *testing.T) {
	m, sess := newTestModel(t, Options{})
	addSection(m, "   ")
	if !sess.Document().Empty() {
		t.Fatalf("blank name added a section: %+v", sess.Document().Sections())
	}
	if m.mode != modeBrowse {
		t.Errorf("prompt should close")
	}
}

func TestToggleAndDeleteTask(t *testing.T) {
	m, sess := newTestModel(t, Options{})
	addSection(m, "Home")
	send(m, runes("t"), runes("Buy milk"), keyEnter, keyEsc)

	send(m, keyDown, keySpace)
	task := sess.Document().Sections()[0].Tasks[0]
	if !task.Completed {
		t.Fatal("space should toggle the task under the cursor")
	}
	send(m, runes("x"))
	if task.Completed {
		t.Fatal("x should toggle back")
	}

	send(m, runes("d"))
	if n := len(sess.Document().Sections()[0].Tasks); n != 0 {
		t.Fatalf("task not deleted, %d left", n)
	}
	if m.cursor != 0 {
		t.Errorf("cursor should move back to the section, got %d", m.cursor)
	}
}

func TestEditTask(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		commit tea.KeyMsg
		want   string
	}{
		{"enter commits", "Buy bread", keyEnter, "Buy bread"},
		{"esc commits", "Buy bread", keyEsc, "Buy bread"},
		{"cursor loss commits", "Buy bread", keyDown, "Buy bread"},
		{"blank keeps text", "  ", keyEnter, "Buy milk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, sess := newTestModel(t, Options{})
			if err := sess.LoadBytes("home.json", []byte(homeFile)); err != nil {
				t.Fatal(err)
			}
			send(m, keyDown, runes("e"))
			if m.mode != modeEdit {
				t.Fatalf("mode: got %v, want edit", m.mode)
			}
			if m.input.Value() != "Buy milk" {
				t.Fatalf("edit field not pre-filled: %q", m.input.Value())
			}
			m.input.SetValue(tt.value)
			send(m, tt.commit)

			if m.mode != modeBrowse {
				t.Errorf("still editing after %s", tt.name)
			}
			if _, _, ok := sess.Editing(); ok {
				t.Error("session still in edit mode")
			}
			if got := sess.Document().Sections()[0].Tasks[0].Text; got != tt.want {
				t.Errorf("text: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEditWithoutChangesKeepsText(t *testing.T) {
	long := strings.Repeat("x", 250)
	file := fmt.Sprintf(`[{"name":"Home","tasks":[{"text":%q,"completed":false},{"text":%q,"completed":false}]}]`, long, "a\tb")

	tests := []struct {
		name   string
		moves  int
		commit tea.KeyMsg
		want   string
	}{
		{"long text enter", 1, keyEnter, long},
		{"long text esc", 1, keyEsc, long},
		{"tab enter", 2, keyEnter, "a\tb"},
		{"tab cursor loss", 2, keyDown, "a\tb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, sess := newTestModel(t, Options{})
			if err := sess.LoadBytes("home.json", []byte(file)); err != nil {
				t.Fatal(err)
			}
			for i := 0; i < tt.moves; i++ {
				send(m, keyDown)
			}
			send(m, runes("e"), tt.commit)

			if m.mode != modeBrowse {
				t.Fatalf("mode: got %v, want browse", m.mode)
			}
			if got := sess.Document().Sections()[0].Tasks[tt.moves-1].Text; got != tt.want {
				t.Errorf("text changed: got %q (len %d), want len %d", got, len(got), len(tt.want))
			}
			if sess.Dirty() {
				t.Error("unchanged edit marked the session dirty")
			}
		})
	}

	t.Run("long text can be extended", func(t *testing.T) {
		m, sess := newTestModel(t, Options{})
		if err := sess.LoadBytes("home.json", []byte(file)); err != nil {
			t.Fatal(err)
		}
		send(m, keyDown, runes("e"), runes("!"), keyEnter)
		if got := sess.Document().Sections()[0].Tasks[0].Text; got != long+"!" {
			t.Errorf("text: got len %d, want %d", len(got), len(long)+1)
		}
		if m.input.CharLimit != promptCharLimit {
			t.Errorf("CharLimit after edit: got %d, want %d", m.input.CharLimit, promptCharLimit)
		}
	})
}

func TestDeleteSectionConfirm(t *testing.T) {
	m, sess := newTestModel(t, Options{})
	addSection(m, "Home")

	send(m, runes("d"))
	if m.mode != modeConfirm {
		t.Fatalf("mode: got %v, want confirm", m.mode)
	}
	if !strings.Contains(m.View(), `Delete section "Home" and its tasks? [y/n]`) {
		t.Errorf("confirmation not shown:\n%s", m.View())
	}
	send(m, runes("n"))
	if sess.Document().Len() != 1 {
		t.Fatal("n should keep the section")
	}

	send(m, runes("d"), runes("y"))
	if !sess.Document().Empty() {
		t.Fatal("y should delete the section")
	}
}

func TestSaveRefusedWhenEmpty(t *testing.T) {
	dir := t.TempDir()
	m, _ := newTestModel(t, Options{DownloadDir: dir})

	send(m, keySave)
	if !m.noticeErr || !strings.Contains(m.notice, "Nothing to save") {
		t.Errorf("unexpected notice %q", m.notice)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("nothing should be written, found %d entries", len(entries))
	}
}

func TestSaveDownloadsWithoutPicker(t *testing.T) {
	dir := t.TempDir()
	m, sess := newTestModel(t, Options{DownloadDir: dir})
	addSection(m, "Home")

	send(m, keySave)
	want := filepath.Join(dir, session.DefaultFileName)
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("download not written: %v", err)
	}
	if sess.Destination() != "" {
		t.Errorf("download should not associate a destination, got %q", sess.Destination())
	}

	send(m, keySave)
	if _, err := os.Stat(filepath.Join(dir, "tareas (1).json")); err != nil {
		t.Errorf("second download should not overwrite: %v", err)
	}
}

func TestSavePromptsForDestination(t *testing.T) {
	dir := t.TempDir()
	m, sess := newTestModel(t, Options{UsePicker: true, StartDir: dir})
	addSection(m, "Home")

	send(m, keySave)
	if m.mode != modePrompt || m.prompt != promptSaveAs {
		t.Fatalf("expected save-as prompt, mode=%v prompt=%v", m.mode, m.prompt)
	}
	want := filepath.Join(dir, session.DefaultFileName)
	if m.input.Value() != want {
		t.Errorf("suggested path: got %q, want %q", m.input.Value(), want)
	}

	send(m, keyEnter)
	if sess.Destination() != want {
		t.Fatalf("destination: got %q, want %q", sess.Destination(), want)
	}
	if !strings.HasPrefix(m.notice, "Saved") {
		t.Errorf("notice: %q", m.notice)
	}

	send(m, runes("a"), runes("Work"), keyEnter, keySave)
	if m.mode != modeBrowse {
		t.Fatal("second save should not prompt")
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"Work"`) {
		t.Errorf("file not overwritten: %s", data)
	}
}

func TestSaveAsAsksBeforeReplacing(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, session.DefaultFileName, homeFile)
	m, sess := newTestModel(t, Options{UsePicker: true, StartDir: dir})
	addSection(m, "Work")

	send(m, keySave, keyEnter)
	if m.mode != modeConfirm || m.confirm != confirmOverwrite {
		t.Fatalf("expected overwrite confirmation, mode=%v confirm=%v", m.mode, m.confirm)
	}
	if !strings.Contains(m.View(), session.DefaultFileName+" already exists. Replace it? [y/n]") {
		t.Errorf("confirmation not shown:\n%s", m.View())
	}

	send(m, runes("n"))
	if m.mode != modeBrowse || sess.Destination() != "" {
		t.Fatalf("declining should not save: mode=%v dest=%q", m.mode, sess.Destination())
	}
	if data, _ := os.ReadFile(path); string(data) != homeFile {
		t.Fatalf("file changed after declining: %s", data)
	}

	send(m, keySave, keyEnter, runes("y"))
	if sess.Destination() != path {
		t.Fatalf("destination: got %q, want %q", sess.Destination(), path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"Work"`) {
		t.Errorf("file not replaced: %s", data)
	}
	if !strings.HasPrefix(m.notice, "Saved") {
		t.Errorf("notice: %q", m.notice)
	}
}

func TestSavePromptCancel(t *testing.T) {
	dir := t.TempDir()
	m, sess := newTestModel(t, Options{UsePicker: true, StartDir: dir})
	addSection(m, "Home")

	send(m, keySave, keyEsc)
	if sess.Destination() != "" || m.notice != "" {
		t.Errorf("cancel should be silent: dest=%q notice=%q", sess.Destination(), m.notice)
	}
}

func TestLoadFromPathPrompt(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "home.json", homeFile)
	m, sess := newTestModel(t, Options{})

	send(m, keyLoad)
	if m.mode != modePrompt || m.prompt != promptLoadPath {
		t.Fatalf("expected load prompt, mode=%v", m.mode)
	}
	send(m, runes(path), keyEnter)

	if sess.Document().Len() != 1 {
		t.Fatalf("document not loaded: %+v", sess.Document().Sections())
	}
	if sess.Destination() != "" {
		t.Errorf("typed path should not become the destination, got %q", sess.Destination())
	}
	if m.notice != "Loaded home.json" {
		t.Errorf("notice: %q", m.notice)
	}
	view := m.View()
	if !strings.Contains(view, "Home (0/1)") || !strings.Contains(view, "[ ] Buy milk") {
		t.Errorf("view does not show loaded file:\n%s", view)
	}
}

func TestLoadMalformedKeepsDocument(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.json", "{not json")
	m, sess := newTestModel(t, Options{})
	addSection(m, "Keep")

	send(m, keyLoad, runes(path), keyEnter)

	if sess.Document().Len() != 1 || sess.Document().Sections()[0].Name != "Keep" {
		t.Fatalf("document changed: %+v", sess.Document().Sections())
	}
	if !m.noticeErr || !strings.Contains(m.notice, "bad.json") {
		t.Errorf("notice: %q", m.notice)
	}
}

func TestLoadMissingFileIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)
	m, _ := newTestModel(t, Options{Logger: logger})

	send(m, keyLoad, runes(filepath.Join(t.TempDir(), "missing.json")), keyEnter)

	if !m.noticeErr || !strings.Contains(m.notice, "Could not load missing.json") {
		t.Errorf("notice: %q", m.notice)
	}
	if !strings.Contains(buf.String(), "load failed") {
		t.Errorf("expected error log, got %q", buf.String())
	}
}

func TestNewFileConfirm(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "home.json", homeFile)
	m, sess := newTestModel(t, Options{})
	if err := sess.Load(path); err != nil {
		t.Fatal(err)
	}

	send(m, keyNew, runes("n"))
	if sess.Document().Empty() {
		t.Fatal("n should keep the document")
	}

	send(m, keyNew, runes("y"))
	if !sess.Document().Empty() {
		t.Fatal("document not cleared")
	}
	if sess.Destination() != "" {
		t.Errorf("destination not detached: %q", sess.Destination())
	}
	if !strings.HasPrefix(m.notice, "New file created") {
		t.Errorf("notice: %q", m.notice)
	}
}

func TestPickerOpensAndCancels(t *testing.T) {
	dir := t.TempDir()
	m, _ := newTestModel(t, Options{UsePicker: true, StartDir: dir})

	if cmd := send(m, keyLoad); cmd == nil {
		t.Error("picker should return a directory read command")
	}
	if m.mode != modePicker {
		t.Fatalf("mode: got %v, want picker", m.mode)
	}
	if m.picker.CurrentDirectory != dir {
		t.Errorf("picker dir: got %q, want %q", m.picker.CurrentDirectory, dir)
	}
	send(m, keyEsc)
	if m.mode != modeBrowse {
		t.Error("esc should close the picker")
	}
}

func TestLoadPickedAssociatesDestination(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "home.json", homeFile)
	m, sess := newTestModel(t, Options{UsePicker: true, StartDir: dir})

	m.loadPicked(path)
	if sess.Destination() != path {
		t.Errorf("destination: got %q, want %q", sess.Destination(), path)
	}
	if sess.Document().Len() != 1 {
		t.Errorf("document not loaded")
	}
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	cmd := send(m, runes("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestTypingQInPromptDoesNotQuit(t *testing.T) {
	m, sess := newTestModel(t, Options{})
	send(m, runes("a"), runes("q"), keyEnter)
	if sess.Document().Len() != 1 || sess.Document().Sections()[0].Name != "q" {
		t.Errorf("q should be typed into the prompt: %+v", sess.Document().Sections())
	}
}

func TestStatusLine(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	if !strings.Contains(m.View(), "unsaved · 0 sections · 0/0 done · save off") {
		t.Errorf("empty status:\n%s", m.View())
	}
	addSection(m, "Home")
	if !strings.Contains(m.View(), "unsaved * · 1 sections · 0/0 done · save on") {
		t.Errorf("dirty status:\n%s", m.View())
	}
}
