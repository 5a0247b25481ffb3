// Package document holds the in-memory task list: ordered sections, each with
// an ordered list of tasks, and the mutations the editor applies to them.
package document

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrIndexOutOfRange is returned when a section or task index does not exist.
var ErrIndexOutOfRange = errors.New("index out of range")

// Task is a unit of work with display text and a completion flag.
type Task struct {
	ID        string
	Text      string
	Completed bool
}

// Section is a named, ordered group of tasks.
type Section struct {
	ID    string
	Name  string
	Tasks []*Task
}

// NewSection returns a section with a fresh ID and no tasks.
func NewSection(name string) *Section {
	return &Section{ID: newID(), Name: name, Tasks: []*Task{}}
}

// NewTask returns an incomplete task with a fresh ID.
func NewTask(text string) *Task {
	return &Task{ID: newID(), Text: text}
}

// Document is the ordered list of sections being edited.
// The zero value is an empty document.
type Document struct {
	sections []*Section
}

// New returns an empty document.
func New() *Document {
	return &Document{}
}

// Sections returns the sections in display order. The slice is shared with
// the document and must not be modified by callers.
func (d *Document) Sections() []*Section {
	return d.sections
}

// Len returns the number of sections.
func (d *Document) Len() int {
	return len(d.sections)
}

// Empty reports whether the document has no sections.
func (d *Document) Empty() bool {
	return len(d.sections) == 0
}

// Replace swaps the whole section list. Sections or tasks without an ID are
// given one; a nil task list becomes empty.
func (d *Document) Replace(sections []*Section) {
	out := make([]*Section, 0, len(sections))
	for _, s := range sections {
		if s == nil {
			continue
		}
		if s.ID == "" {
			s.ID = newID()
		}
		if s.Tasks == nil {
			s.Tasks = []*Task{}
		}
		tasks := s.Tasks[:0]
		for _, t := range s.Tasks {
			if t == nil {
				continue
			}
			if t.ID == "" {
				t.ID = newID()
			}
			tasks = append(tasks, t)
		}
		s.Tasks = tasks
		out = append(out, s)
	}
	d.sections = out
}

// Clear removes every section.
func (d *Document) Clear() {
	d.sections = nil
}

// Clone returns a deep copy that shares no sections or tasks with d.
func (d *Document) Clone() *Document {
	c := &Document{sections: make([]*Section, 0, len(d.sections))}
	for _, s := range d.sections {
		cs := &Section{ID: s.ID, Name: s.Name, Tasks: make([]*Task, 0, len(s.Tasks))}
		for _, t := range s.Tasks {
			ct := *t
			cs.Tasks = append(cs.Tasks, &ct)
		}
		c.sections = append(c.sections, cs)
	}
	return c
}

// Counts summarizes a document.
type Counts struct {
	Sections  int
	Tasks     int
	Completed int
}

// Counts returns section, task and completed task totals.
func (d *Document) Counts() Counts {
	c := Counts{Sections: len(d.sections)}
	for _, s := range d.sections {
		c.Tasks += len(s.Tasks)
		for _, t := range s.Tasks {
			if t.Completed {
				c.Completed++
			}
		}
	}
	return c
}

// Section returns the section at index.
func (d *Document) Section(index int) (*Section, error) {
	if index < 0 || index >= len(d.sections) {
		return nil, fmt.Errorf("section %d: %w", index, ErrIndexOutOfRange)
	}
	return d.sections[index], nil
}

// Task returns the task at taskIndex within the section at sectionIndex.
func (d *Document) Task(sectionIndex, taskIndex int) (*Task, error) {
	s, err := d.Section(sectionIndex)
	if err != nil {
		return nil, err
	}
	if taskIndex < 0 || taskIndex >= len(s.Tasks) {
		return nil, fmt.Errorf("section %d task %d: %w", sectionIndex, taskIndex, ErrIndexOutOfRange)
	}
	return s.Tasks[taskIndex], nil
}

// IndexOfSection returns the current position of the section with id, or -1.
func (d *Document) IndexOfSection(id string) int {
	for i, s := range d.sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// IndexOfTask returns the current positions of a task by IDs, or -1, -1.
func (d *Document) IndexOfTask(sectionID, taskID string) (int, int) {
	si := d.IndexOfSection(sectionID)
	if si < 0 {
		return -1, -1
	}
	for ti, t := range d.sections[si].Tasks {
		if t.ID == taskID {
			return si, ti
		}
	}
	return -1, -1
}

// AddSection appends a section. A name that is empty after trimming is
// ignored and reported as unchanged.
func (d *Document) AddSection(name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, nil
	}
	d.sections = append(d.sections, NewSection(name))
	return true, nil
}

// DeleteSection removes the section at index together with its tasks.
func (d *Document) DeleteSection(index int) (bool, error) {
	if _, err := d.Section(index); err != nil {
		return false, err
	}
	d.sections = append(d.sections[:index], d.sections[index+1:]...)
	return true, nil
}

// AddTask appends an incomplete task to the section at sectionIndex. Text
// that is empty after trimming is ignored.
func (d *Document) AddTask(sectionIndex int, text string) (bool, error) {
	s, err := d.Section(sectionIndex)
	if err != nil {
		return false, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return false, nil
	}
	s.Tasks = append(s.Tasks, NewTask(text))
	return true, nil
}

// ToggleTask flips the completion flag of a task.
func (d *Document) ToggleTask(sectionIndex, taskIndex int) (bool, error) {
	t, err := d.Task(sectionIndex, taskIndex)
	if err != nil {
		return false, err
	}
	t.Completed = !t.Completed
	return true, nil
}

// EditTask replaces a task's text. Empty or unchanged text keeps the
// current value and reports no change.
func (d *Document) EditTask(sectionIndex, taskIndex int, text string) (bool, error) {
	t, err := d.Task(sectionIndex, taskIndex)
	if err != nil {
		return false, err
	}
	text = strings.TrimSpace(text)
	if text == "" || text == t.Text {
		return false, nil
	}
	t.Text = text
	return true, nil
}

// DeleteTask removes a task, shifting later tasks up by one.
func (d *Document) DeleteTask(sectionIndex, taskIndex int) (bool, error) {
	if _, err := d.Task(sectionIndex, taskIndex); err != nil {
		return false, err
	}
	s := d.sections[sectionIndex]
	s.Tasks = append(s.Tasks[:taskIndex], s.Tasks[taskIndex+1:]...)
	return true, nil
}

func newID() string {
	return uuid.NewString()
}
