// Package table implements the editable record table used by the rail and
// BOM views: global keyword filtering, tri-state single-column sorting, and
// inline editing of one numeric field per row with server confirmation.
package table

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
)

// Direction is a column's sort direction.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionAsc
	DirectionDesc
)

// FieldErrors maps a field name to its ordered validation messages.
type FieldErrors map[string][]string

var (
	// ErrBusy is returned while a save or delete request is in flight.
	ErrBusy = errors.New("request already in flight")
	// ErrNotEditing is returned when no row is in edit mode.
	ErrNotEditing = errors.New("no row in edit mode")
	// ErrUnknownRecord is returned for an id not present in the table.
	ErrUnknownRecord = errors.New("unknown record")
	// ErrValidation marks a rejected edit whose messages are in FieldErrors.
	ErrValidation = errors.New("validation failed")
)

const quantityMinMessage = "수량은 1 이상이어야 합니다."

// Column describes one column of a record table.
type Column[R any] struct {
	Key        string
	Label      string
	Value      func(R) string    // stringified cell, used for filtering and display
	Compare    func(a, b R) int  // optional comparator; nil compares Value strings
	Sortable   bool
	Filterable bool
}

// Config wires a table to its record type and its mutation collaborators.
type Config[R any] struct {
	ID        func(R) int64
	Columns   []Column[R]
	EditField string      // field name reported for client-side validation errors
	EditValue func(R) int // seeds the edit buffer
	ApplyEdit func(R, int) R
	// Update persists an edited value. Returned FieldErrors keep the row in
	// edit mode; any other error leaves local state untouched.
	Update func(ctx context.Context, id int64, value int) (FieldErrors, error)
	Delete func(ctx context.Context, id int64) error
}

// Table holds one view's transient state: the record list, filter, sort and
// the single in-progress edit. Not safe for concurrent use; callers serialize.
type Table[R any] struct {
	cfg     Config[R]
	records []R

	filter  string
	sortKey string
	sortDir Direction

	editing     bool
	editID      int64
	buffer      string
	fieldErrors FieldErrors

	busy bool
}

// New creates a table over records. The slice is copied; insertion order is
// the unsorted display order.
func New[R any](cfg Config[R], records []R) *Table[R] {
	t := &Table[R]{cfg: cfg}
	t.records = make([]R, len(records))
	copy(t.records, records)
	return t
}

// SetGlobalFilter replaces the keyword filter. Empty text shows all rows.
func (t *Table[R]) SetGlobalFilter(text string) {
	t.filter = text
}

// GlobalFilter returns the active keyword filter.
func (t *Table[R]) GlobalFilter() string {
	return t.filter
}

// ToggleSort cycles a sortable column through ascending, descending and
// unsorted. Selecting a different column resets the previous one.
func (t *Table[R]) ToggleSort(key string) {
	col := t.column(key)
	if col == nil || !col.Sortable {
		return
	}
	if t.sortKey != key {
		t.sortKey = key
		t.sortDir = DirectionAsc
		return
	}
	switch t.sortDir {
	case DirectionAsc:
		t.sortDir = DirectionDesc
	case DirectionDesc:
		t.sortKey = ""
		t.sortDir = DirectionNone
	default:
		t.sortDir = DirectionAsc
	}
}

// SetSort restores a sort state directly, bypassing the toggle cycle.
// Unknown or unsortable keys clear the sort.
func (t *Table[R]) SetSort(key string, dir Direction) {
	col := t.column(key)
	if col == nil || !col.Sortable || dir == DirectionNone {
		t.sortKey = ""
		t.sortDir = DirectionNone
		return
	}
	t.sortKey = key
	t.sortDir = dir
}

// SortState returns the active sort column key and direction.
func (t *Table[R]) SortState() (string, Direction) {
	return t.sortKey, t.sortDir
}

// Rows returns the visible rows: filtered first, then stably sorted, so the
// result is independent of the order filter and sort were applied in.
func (t *Table[R]) Rows() []R {
	rows := make([]R, 0, len(t.records))
	needle := strings.ToLower(t.filter)
	for _, r := range t.records {
		if needle == "" || t.matches(r, needle) {
			rows = append(rows, r)
		}
	}

	if t.sortKey != "" && t.sortDir != DirectionNone {
		col := t.column(t.sortKey)
		if col != nil {
			cmp := col.Compare
			if cmp == nil {
				cmp = func(a, b R) int {
					return strings.Compare(col.Value(a), col.Value(b))
				}
			}
			sort.SliceStable(rows, func(i, j int) bool {
				c := cmp(rows[i], rows[j])
				if t.sortDir == DirectionDesc {
					return c > 0
				}
				return c < 0
			})
		}
	}

	return rows
}

// Len returns the number of records regardless of filtering.
func (t *Table[R]) Len() int {
	return len(t.records)
}

// BeginEdit puts exactly one row into edit mode, discarding any other row's
// unsaved buffer and errors. Last click wins; no confirmation.
func (t *Table[R]) BeginEdit(id int64) error {
	if t.busy {
		return ErrBusy
	}
	r, ok := t.find(id)
	if !ok {
		return ErrUnknownRecord
	}
	t.editing = true
	t.editID = id
	t.buffer = strconv.Itoa(t.cfg.EditValue(r))
	t.fieldErrors = nil
	return nil
}

// SetBuffer replaces the pending edit value. Displayed field errors persist
// until the next save attempt or cancel.
func (t *Table[R]) SetBuffer(value string) error {
	if !t.editing {
		return ErrNotEditing
	}
	t.buffer = value
	return nil
}

// CommitEdit validates the buffered value and persists it through the update
// collaborator. A non-positive or non-integer buffer never reaches the
// network. Server-side field errors keep the row editable; any other failure
// leaves the confirmed value displayed.
func (t *Table[R]) CommitEdit(ctx context.Context) error {
	if !t.editing {
		return ErrNotEditing
	}
	if t.busy {
		return ErrBusy
	}

	value, err := strconv.Atoi(strings.TrimSpace(t.buffer))
	if err != nil || value <= 0 {
		t.fieldErrors = FieldErrors{t.cfg.EditField: {quantityMinMessage}}
		return ErrValidation
	}

	t.busy = true
	fields, err := t.cfg.Update(ctx, t.editID, value)
	t.busy = false

	if len(fields) > 0 {
		t.fieldErrors = fields
		return ErrValidation
	}
	if err != nil {
		return err
	}

	for i, r := range t.records {
		if t.cfg.ID(r) == t.editID {
			t.records[i] = t.cfg.ApplyEdit(r, value)
			break
		}
	}
	t.editing = false
	t.editID = 0
	t.buffer = ""
	t.fieldErrors = nil
	return nil
}

// CancelEdit discards the buffer and error state without a network call.
func (t *Table[R]) CancelEdit() error {
	if t.busy {
		return ErrBusy
	}
	t.editing = false
	t.editID = 0
	t.buffer = ""
	t.fieldErrors = nil
	return nil
}

// Delete removes a record through the delete collaborator. On failure the
// record list is left exactly as it was.
func (t *Table[R]) Delete(ctx context.Context, id int64) error {
	if t.busy {
		return ErrBusy
	}
	if _, ok := t.find(id); !ok {
		return ErrUnknownRecord
	}

	t.busy = true
	err := t.cfg.Delete(ctx, id)
	t.busy = false
	if err != nil {
		return err
	}

	kept := t.records[:0]
	for _, r := range t.records {
		if t.cfg.ID(r) != id {
			kept = append(kept, r)
		}
	}
	t.records = kept

	if t.editing && t.editID == id {
		t.editing = false
		t.editID = 0
		t.buffer = ""
		t.fieldErrors = nil
	}
	return nil
}

// Editing reports the row currently in edit mode, if any.
func (t *Table[R]) Editing() (int64, bool) {
	return t.editID, t.editing
}

// Buffer returns the pending edit value.
func (t *Table[R]) Buffer() string {
	return t.buffer
}

// FieldErrors returns the messages from the last rejected save attempt.
func (t *Table[R]) FieldErrors() FieldErrors {
	return t.fieldErrors
}

// Busy reports whether a save or delete request is in flight; controls for
// the edited row are disabled while it is.
func (t *Table[R]) Busy() bool {
	return t.busy
}

func (t *Table[R]) column(key string) *Column[R] {
	for i := range t.cfg.Columns {
		if t.cfg.Columns[i].Key == key {
			return &t.cfg.Columns[i]
		}
	}
	return nil
}

func (t *Table[R]) matches(r R, needle string) bool {
	for _, col := range t.cfg.Columns {
		if !col.Filterable {
			continue
		}
		if strings.Contains(strings.ToLower(col.Value(r)), needle) {
			return true
		}
	}
	return false
}

func (t *Table[R]) find(id int64) (R, bool) {
	for _, r := range t.records {
		if t.cfg.ID(r) == id {
			return r, true
		}
	}
	var zero R
	return zero, false
}
