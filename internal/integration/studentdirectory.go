package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/valter-silva-au/leadflow/pkg/models"
)

// ErrDuplicateStudent is returned when a student id is already taken.
var ErrDuplicateStudent = errors.New("student id already exists")

// MemoryStudentDirectory keeps student records in process. It is used in
// tests and, with a backing file, as the offline directory when no student
// service is configured.
type MemoryStudentDirectory struct {
	mu       sync.Mutex
	students []models.Student
	path     string
}

// NewMemoryStudentDirectory returns an empty directory with no backing file.
func NewMemoryStudentDirectory() *MemoryStudentDirectory {
	return &MemoryStudentDirectory{}
}

// OpenFileStudentDirectory loads students.json from basePath, creating an
// empty directory when the file does not exist. Every successful create
// rewrites the file.
func OpenFileStudentDirectory(basePath string) (*MemoryStudentDirectory, error) {
	d := &MemoryStudentDirectory{path: filepath.Join(basePath, "students.json")}
	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return d, nil
		}
		return nil, fmt.Errorf("reading student directory: %w", err)
	}
	if err := json.Unmarshal(data, &d.students); err != nil {
		return nil, fmt.Errorf("parsing student directory: %w", err)
	}
	return d, nil
}

// CreateStudent stores the student under its proposed id.
func (d *MemoryStudentDirectory) CreateStudent(ctx context.Context, student models.Student) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if student.StudentID == "" {
		return "", fmt.Errorf("creating student: studentId must not be empty")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if slices.ContainsFunc(d.students, func(s models.Student) bool { return s.StudentID == student.StudentID }) {
		return "", fmt.Errorf("creating student %s: %w", student.StudentID, ErrDuplicateStudent)
	}
	d.students = append(d.students, student)
	if err := d.persistLocked(); err != nil {
		d.students = d.students[:len(d.students)-1]
		return "", err
	}
	return student.StudentID, nil
}

// ListStudentIDs returns the ids in creation order.
func (d *MemoryStudentDirectory) ListStudentIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, len(d.students))
	for i, s := range d.students {
		ids[i] = s.StudentID
	}
	return ids, nil
}

// Students returns a copy of every stored record.
func (d *MemoryStudentDirectory) Students() []models.Student {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.students)
}

func (d *MemoryStudentDirectory) persistLocked() error {
	if d.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o750); err != nil {
		return fmt.Errorf("creating student directory folder: %w", err)
	}
	data, err := json.MarshalIndent(d.students, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling student directory: %w", err)
	}
	if err := os.WriteFile(d.path, data, 0o600); err != nil {
		return fmt.Errorf("writing student directory: %w", err)
	}
	return nil
}
