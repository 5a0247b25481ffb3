// Package render turns a document into a view tree and draws it as terminal
// text. Rendering is total and keeps no state between calls.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"

	"github.com/nibzard/tasklist-go/internal/document"
)

// TaskNode is one task as it appears on screen.
type TaskNode struct {
	Index     int
	ID        string
	Text      string
	Completed bool
	Editing   bool
}

// SectionNode is one section with its tasks in display order.
type SectionNode struct {
	Index int
	ID    string
	Name  string
	Done  int
	Tasks []TaskNode
}

// Tree is the full view of a document.
type Tree struct {
	Sections []SectionNode
	// CanSave is true when the document has at least one section.
	CanSave bool
}

// EditState names the task in edit mode. Section is -1 when nothing is
// being edited.
type EditState struct {
	Section int
	Task    int
}

// NoEdit is the EditState with nothing being edited.
var NoEdit = EditState{Section: -1, Task: -1}

// Build produces the view tree for doc.
func Build(doc *document.Document, edit EditState) *Tree {
	tree := &Tree{
		Sections: make([]SectionNode, 0, doc.Len()),
		CanSave:  !doc.Empty(),
	}
	for si, s := range doc.Sections() {
		node := SectionNode{
			Index: si,
			ID:    s.ID,
			Name:  s.Name,
			Tasks: make([]TaskNode, 0, len(s.Tasks)),
		}
		for ti, t := range s.Tasks {
			if t.Completed {
				node.Done++
			}
			node.Tasks = append(node.Tasks, TaskNode{
				Index:     ti,
				ID:        t.ID,
				Text:      t.Text,
				Completed: t.Completed,
				Editing:   edit.Section == si && edit.Task == ti,
			})
		}
		tree.Sections = append(tree.Sections, node)
	}
	return tree
}

// Row addresses one selectable line: a section header (Task == -1) or a task.
type Row struct {
	Section int
	Task    int
}

// IsSection reports whether the row is a section header.
func (r Row) IsSection() bool {
	return r.Task < 0
}

// Rows lists selectable lines in display order.
func (t *Tree) Rows() []Row {
	var rows []Row
	for _, s := range t.Sections {
		rows = append(rows, Row{Section: s.Index, Task: -1})
		for _, task := range s.Tasks {
			rows = append(rows, Row{Section: s.Index, Task: task.Index})
		}
	}
	return rows
}

// Options controls drawing.
type Options struct {
	// Cursor is the selected row index from Rows, or -1.
	Cursor int
	// EditField replaces the text of the task in edit mode. When empty the
	// task text is shown in brackets.
	EditField string
	// Plain disables styling.
	Plain bool
}

var (
	sectionStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	countStyle     = lipgloss.NewStyle().Faint(true)
	doneStyle      = lipgloss.NewStyle().Strikethrough(true).Faint(true)
	cursorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	hintStyle      = lipgloss.NewStyle().Faint(true).Italic(true)
	emptyStyle     = lipgloss.NewStyle().Faint(true)
	editLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

const (
	sectionHint = "d delete section · t add task"
	taskHint    = "space toggle · e edit · d delete"
	editHint    = "enter save · esc done"
)

// Draw renders the tree as lines of terminal text.
func Draw(t *Tree, opts Options) string {
	style := func(s lipgloss.Style, text string) string {
		if opts.Plain {
			return text
		}
		return s.Render(text)
	}

	var b strings.Builder
	if len(t.Sections) == 0 {
		b.WriteString(style(emptyStyle, "No sections yet. Press a to add one."))
		b.WriteString("\n")
		return b.String()
	}

	row := 0
	marker := func() string {
		defer func() { row++ }()
		if row == opts.Cursor {
			return style(cursorStyle, "> ")
		}
		return "  "
	}

	for i, s := range t.Sections {
		if i > 0 {
			b.WriteString("\n")
		}
		selected := row == opts.Cursor
		b.WriteString(marker())
		b.WriteString(style(sectionStyle, Printable(s.Name)))
		b.WriteString(" ")
		b.WriteString(style(countStyle, fmt.Sprintf("(%d/%d)", s.Done, len(s.Tasks))))
		if selected {
			b.WriteString("  " + style(hintStyle, sectionHint))
		}
		b.WriteString("\n")

		if len(s.Tasks) == 0 {
			b.WriteString("    " + style(emptyStyle, "no tasks") + "\n")
		}

		for _, task := range s.Tasks {
			selected := row == opts.Cursor
			text := Printable(task.Text)
			b.WriteString(marker())
			b.WriteString("  ")
			b.WriteString(checkbox(task.Completed))
			b.WriteString(" ")
			switch {
			case task.Editing && opts.EditField != "":
				b.WriteString(opts.EditField)
				b.WriteString("  " + style(hintStyle, editHint))
			case task.Editing:
				b.WriteString(style(editLabelStyle, "["+text+"]"))
				b.WriteString("  " + style(hintStyle, editHint))
			case task.Completed:
				b.WriteString(style(doneStyle, text))
			default:
				b.WriteString(text)
			}
			if selected && !task.Editing {
				b.WriteString("  " + style(hintStyle, taskHint))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Printable replaces control characters in s with Go escape sequences so
// stored text cannot move the terminal cursor or span rows.
func Printable(s string) string {
	if strings.IndexFunc(s, unicode.IsControl) < 0 {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if !unicode.IsControl(r) {
			b.WriteRune(r)
			continue
		}
		q := strconv.QuoteRune(r)
		b.WriteString(q[1 : len(q)-1])
	}
	return b.String()
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}
