package core

// schema.go validates decoded rows against a record kind's declared columns.
//
// Validation happens at two levels:
//  1. Header: every required column must exist, otherwise the whole file is
//     rejected with MissingColumnsError.
//  2. Row: every required field must be non-empty and every normalizer must
//     accept its value. A failing row is dropped, unless the field's policy
//     is PolicyRejectFile, in which case the file is rejected.

import (
	"fmt"
	"strings"
)

// FailurePolicy decides what a normalization failure does to the upload.
type FailurePolicy string

const (
	PolicyDropRow    FailurePolicy = "drop"
	PolicyRejectFile FailurePolicy = "reject"
)

// ParseFailurePolicy parses "drop" or "reject"; empty means drop.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyDropRow:
		return PolicyDropRow, nil
	case PolicyRejectFile:
		return PolicyRejectFile, nil
	default:
		return "", fmt.Errorf("failure policy %q must be drop or reject", s)
	}
}

// FieldSpec defines one column of a record kind.
type FieldSpec struct {
	Name      string                       // Column header name, matched case-insensitively
	Required  bool                         // Column must exist and be non-empty on every row
	Normalize func(string) (string, error) // Optional; defaults to NormalizeText
	Policy    FailurePolicy                // What a Normalize error does
}

// Schema is the column contract for one record kind.
type Schema struct {
	Kind   RecordKind
	Fields []FieldSpec
}

// SchemaOptions carries the configurable parts of the built-in schemas.
// Policies are per record kind, so contacts can reject a file on a bad phone
// while tasks drop the row.
type SchemaOptions struct {
	Phone PhoneNormalizer

	TaskPhonePolicy FailurePolicy

	ContactPhonePolicy  FailurePolicy
	ContactEmailPolicy  FailurePolicy
	ContactStatusPolicy FailurePolicy
}

// Column names.
const (
	ColFirstName = "firstName"
	ColName      = "name"
	ColEmail     = "email"
	ColPhone     = "phone"
	ColNotes     = "notes"
	ColStatus    = "status"
)

// TaskSchema returns the schema for worker-assigned tasks.
func TaskSchema(opts SchemaOptions) Schema {
	return Schema{
		Kind: KindTask,
		Fields: []FieldSpec{
			{Name: ColFirstName, Required: true},
			{Name: ColPhone, Required: true, Normalize: opts.Phone.Normalize, Policy: opts.TaskPhonePolicy},
			{Name: ColNotes},
		},
	}
}

// ContactSchema returns the schema for standalone contacts.
func ContactSchema(opts SchemaOptions) Schema {
	return Schema{
		Kind: KindContact,
		Fields: []FieldSpec{
			{Name: ColName, Required: true},
			{Name: ColEmail, Required: true, Normalize: NormalizeEmail, Policy: opts.ContactEmailPolicy},
			{Name: ColPhone, Required: true, Normalize: opts.Phone.Normalize, Policy: opts.ContactPhonePolicy},
			{Name: ColNotes},
			{Name: ColStatus, Normalize: NormalizeStatus, Policy: opts.ContactStatusPolicy},
		},
	}
}

// SchemaFor returns the built-in schema for kind.
func SchemaFor(kind RecordKind, opts SchemaOptions) (Schema, error) {
	switch kind {
	case KindTask:
		return TaskSchema(opts), nil
	case KindContact:
		return ContactSchema(opts), nil
	default:
		return Schema{}, fmt.Errorf("unknown record kind %q", kind)
	}
}

// Required returns the names of the required columns in declaration order.
func (s Schema) Required() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// CheckHeader returns MissingColumnsError listing every required column
// absent from header.
func (s Schema) CheckHeader(header []string) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[strings.ToLower(CleanCell(h))] = true
	}

	var missing []string
	for _, name := range s.Required() {
		if !present[strings.ToLower(name)] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return MissingColumnsError(missing)
	}
	return nil
}

// Values holds one row's normalized field values keyed by column name.
type Values map[string]string

// Apply validates and normalizes row. It returns a RowValidationFailure when
// the row should be dropped and an *IngestError when the file must be rejected.
func (s Schema) Apply(row Row) (Values, error) {
	for _, f := range s.Fields {
		if f.Required && strings.TrimSpace(row.Get(f.Name)) == "" {
			return nil, RowValidationFailure{Line: row.Line, Field: f.Name, Reason: "required field is empty"}
		}
	}

	out := make(Values, len(s.Fields))
	for _, f := range s.Fields {
		raw := row.Get(f.Name)
		if f.Normalize == nil {
			out[f.Name] = NormalizeText(raw)
			continue
		}
		if !f.Required && strings.TrimSpace(raw) == "" {
			out[f.Name] = ""
			continue
		}
		v, err := f.Normalize(raw)
		if err != nil {
			fail := RowValidationFailure{Line: row.Line, Field: f.Name, Value: strings.TrimSpace(raw), Reason: err.Error()}
			if f.Policy == PolicyRejectFile {
				return nil, fail.asFileError()
			}
			return nil, fail
		}
		out[f.Name] = v
	}
	return out, nil
}

// Task builds a Task from normalized values.
func (v Values) Task() Task {
	return Task{
		FirstName: v[ColFirstName],
		Phone:     v[ColPhone],
		Notes:     v[ColNotes],
	}
}

// Contact builds a Contact from normalized values.
func (v Values) Contact() Contact {
	status := v[ColStatus]
	if status == "" {
		status = ContactActive
	}
	return Contact{
		Name:   v[ColName],
		Email:  v[ColEmail],
		Phone:  v[ColPhone],
		Notes:  v[ColNotes],
		Status: status,
	}
}
