// Package session owns one editing session: the document, the file it is
// associated with, and the task currently being edited.
package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nibzard/tasklist-go/internal/document"
	"github.com/nibzard/tasklist-go/internal/taskfile"
)

// DefaultFileName is the name used for downloads when none is configured.
const DefaultFileName = "tareas.json"

var (
	// ErrNoDestination means Save was called before any file was associated.
	ErrNoDestination = errors.New("no destination file")
	// ErrCancelled marks a prompt or picker the user dismissed.
	ErrCancelled = errors.New("cancelled")
	// ErrEmpty means there is nothing to save.
	ErrEmpty = errors.New("document has no sections")
)

// Option configures a Session.
type Option func(*Session)

// WithValidator sets the validator used by Load and LoadBytes.
func WithValidator(v *taskfile.Validator) Option {
	return func(s *Session) {
		s.validator = v
	}
}

// WithLogger sets the session logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithDefaultName sets the file name used by Download.
func WithDefaultName(name string) Option {
	return func(s *Session) {
		if strings.TrimSpace(name) != "" {
			s.defaultName = name
		}
	}
}

// editRef identifies the task in edit mode by stable IDs.
type editRef struct {
	sectionID string
	taskID    string
}

// Session is the state of one open editor.
type Session struct {
	doc         *document.Document
	destination string
	editing     *editRef
	dirty       bool

	validator   *taskfile.Validator
	logger      *log.Logger
	defaultName string
}

// New returns a session with an empty document and no destination.
func New(opts ...Option) *Session {
	s := &Session{
		doc:         document.New(),
		defaultName: DefaultFileName,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = taskfile.DefaultValidator()
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	return s
}

// Document returns the session's document.
func (s *Session) Document() *document.Document {
	return s.doc
}

// Destination returns the associated file path, or "".
func (s *Session) Destination() string {
	return s.destination
}

// DefaultName returns the file name suggested for new files.
func (s *Session) DefaultName() string {
	return s.defaultName
}

// Dirty reports whether the document changed since the last new, load or save.
func (s *Session) Dirty() bool {
	return s.dirty
}

// CanSave reports whether the document has at least one section.
func (s *Session) CanSave() bool {
	return !s.doc.Empty()
}

// apply runs a mutation and records whether it changed the document.
func (s *Session) apply(op string, fn func() (bool, error)) (bool, error) {
	changed, err := fn()
	if err != nil {
		s.logger.Debug("mutation rejected", "op", op, "err", err)
		return false, err
	}
	if changed {
		s.dirty = true
		s.logger.Debug("mutation applied", "op", op)
	}
	return changed, nil
}

// AddSection appends a section named name.
func (s *Session) AddSection(name string) (bool, error) {
	return s.apply("add_section", func() (bool, error) { return s.doc.AddSection(name) })
}

// DeleteSection removes a section. Callers confirm with the user first.
func (s *Session) DeleteSection(index int) (bool, error) {
	var id string
	if sec, err := s.doc.Section(index); err == nil {
		id = sec.ID
	}
	changed, err := s.apply("delete_section", func() (bool, error) { return s.doc.DeleteSection(index) })
	if changed && s.editing != nil && s.editing.sectionID == id {
		s.editing = nil
	}
	return changed, err
}

// AddTask appends a task to a section.
func (s *Session) AddTask(sectionIndex int, text string) (bool, error) {
	return s.apply("add_task", func() (bool, error) { return s.doc.AddTask(sectionIndex, text) })
}

// ToggleTask flips a task's completion flag.
func (s *Session) ToggleTask(sectionIndex, taskIndex int) (bool, error) {
	return s.apply("toggle_task", func() (bool, error) { return s.doc.ToggleTask(sectionIndex, taskIndex) })
}

// EditTask replaces a task's text directly, outside edit mode.
func (s *Session) EditTask(sectionIndex, taskIndex int, text string) (bool, error) {
	return s.apply("edit_task", func() (bool, error) { return s.doc.EditTask(sectionIndex, taskIndex, text) })
}

// DeleteTask removes a task.
func (s *Session) DeleteTask(sectionIndex, taskIndex int) (bool, error) {
	var id string
	if t, err := s.doc.Task(sectionIndex, taskIndex); err == nil {
		id = t.ID
	}
	changed, err := s.apply("delete_task", func() (bool, error) { return s.doc.DeleteTask(sectionIndex, taskIndex) })
	if changed && s.editing != nil && s.editing.taskID == id {
		s.editing = nil
	}
	return changed, err
}

// BeginEdit puts a task in edit mode and returns its current text. Any task
// already being edited leaves edit mode without committing.
func (s *Session) BeginEdit(sectionIndex, taskIndex int) (string, error) {
	t, err := s.doc.Task(sectionIndex, taskIndex)
	if err != nil {
		return "", err
	}
	s.editing = &editRef{sectionID: s.doc.Sections()[sectionIndex].ID, taskID: t.ID}
	return t.Text, nil
}

// Editing returns the current position of the task in edit mode.
func (s *Session) Editing() (sectionIndex, taskIndex int, ok bool) {
	if s.editing == nil {
		return -1, -1, false
	}
	si, ti := s.doc.IndexOfTask(s.editing.sectionID, s.editing.taskID)
	if si < 0 {
		s.editing = nil
		return -1, -1, false
	}
	return si, ti, true
}

// CommitEdit leaves edit mode, replacing the task's text when text is
// non-empty and differs from the current value.
func (s *Session) CommitEdit(text string) (bool, error) {
	si, ti, ok := s.Editing()
	if !ok {
		return false, nil
	}
	s.editing = nil
	return s.EditTask(si, ti, text)
}

// CancelEdit leaves edit mode without changes.
func (s *Session) CancelEdit() {
	s.editing = nil
}

// Marshal returns the serialized document.
func (s *Session) Marshal() ([]byte, error) {
	return taskfile.Marshal(s.doc.Sections())
}

// Save overwrites the associated file. It returns ErrNoDestination when no
// file is associated yet.
func (s *Session) Save() error {
	if s.destination == "" {
		return ErrNoDestination
	}
	return s.write(s.destination)
}

// SaveAs writes to path and associates it for later saves.
func (s *Session) SaveAs(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return ErrCancelled
	}
	if err := s.write(path); err != nil {
		return err
	}
	s.destination = path
	return nil
}

func (s *Session) write(path string) error {
	if !s.CanSave() {
		return ErrEmpty
	}
	if err := taskfile.Save(path, s.doc.Sections()); err != nil {
		s.logger.Error("save failed", "path", path, "err", err)
		return err
	}
	s.dirty = false
	s.logger.Info("saved", "path", path, "sections", s.doc.Len())
	return nil
}

// Download writes the document under the default file name inside dir
// without associating it. An existing file is never replaced: " (1)",
// " (2)", ... are inserted before the extension. It returns the written path.
func (s *Session) Download(dir string) (string, error) {
	if !s.CanSave() {
		return "", ErrEmpty
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	path, err := uniquePath(dir, s.defaultName)
	if err != nil {
		return "", err
	}
	if err := taskfile.Save(path, s.doc.Sections()); err != nil {
		s.logger.Error("download failed", "path", path, "err", err)
		return "", err
	}
	s.dirty = false
	s.logger.Info("downloaded", "path", path, "sections", s.doc.Len())
	return path, nil
}

func uniquePath(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	candidate := filepath.Join(dir, name)
	for i := 1; ; i++ {
		_, err := os.Stat(candidate)
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("check download path: %w", err)
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", base, i, ext))
	}
}

// Load reads path and replaces the document. The path becomes the session's
// destination. On failure the document and destination are unchanged.
func (s *Session) Load(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return ErrCancelled
	}
	sections, err := s.validator.Load(path)
	if err != nil {
		s.logger.Warn("load failed", "path", path, "err", err)
		return err
	}
	s.replace(sections)
	s.destination = path
	s.logger.Info("loaded", "path", path, "sections", len(sections))
	return nil
}

// LoadBytes replaces the document with parsed content from a source that is
// not associated as destination. name is used in errors and logs only.
func (s *Session) LoadBytes(name string, data []byte) error {
	sections, err := s.validator.Parse(data)
	if err != nil {
		var pe *taskfile.ParseError
		if errors.As(err, &pe) {
			pe.Source = name
		}
		s.logger.Warn("load failed", "source", name, "err", err)
		return err
	}
	s.replace(sections)
	s.logger.Info("loaded", "source", name, "sections", len(sections))
	return nil
}

func (s *Session) replace(sections []*document.Section) {
	s.doc.Replace(sections)
	s.editing = nil
	s.dirty = false
}

// Create starts an empty document associated with path, which the first
// Save writes. It refuses a path that already exists.
func (s *Session) Create(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return ErrCancelled
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("create %s: %w", path, os.ErrExist)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("create %s: %w", path, err)
	}
	s.replace(nil)
	s.destination = path
	s.logger.Info("new file", "path", path)
	return nil
}

// New clears the document and detaches the destination so the next save
// asks for one. Callers confirm with the user first.
func (s *Session) New() {
	s.doc.Clear()
	s.destination = ""
	s.editing = nil
	s.dirty = false
	s.logger.Info("new document")
}
