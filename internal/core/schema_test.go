package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchemaOptions() SchemaOptions {
	return SchemaOptions{Phone: PhoneNormalizer{CountryCode: "1"}}
}

func row(line int, fields map[string]string) Row {
	return Row{Line: line, Fields: fields}
}

func TestSchema_CheckHeader(t *testing.T) {
	s := TaskSchema(testSchemaOptions())

	require.NoError(t, s.CheckHeader([]string{"FIRSTNAME", " phone ", "notes"}))
	require.NoError(t, s.CheckHeader([]string{"firstName", "phone"}))

	err := s.CheckHeader([]string{"name", "notes"})
	require.Error(t, err)
	assert.Equal(t, ErrMissingColumns, KindOf(err))

	var ie *IngestError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, []string{ColFirstName, ColPhone}, ie.Missing)
}

func TestSchema_ContactRequiredColumns(t *testing.T) {
	s := ContactSchema(testSchemaOptions())
	assert.Equal(t, []string{ColName, ColEmail, ColPhone}, s.Required())
}

func TestSchema_ApplyTask(t *testing.T) {
	s := TaskSchema(testSchemaOptions())

	vals, err := s.Apply(row(2, map[string]string{"firstname": " Jane ", "phone": "(555) 123-4567"}))
	require.NoError(t, err)
	assert.Equal(t, Task{FirstName: "Jane", Phone: "+15551234567", Notes: ""}, vals.Task())
}

func TestSchema_ApplyDropsRows(t *testing.T) {
	s := ContactSchema(testSchemaOptions())

	tests := []struct {
		name      string
		fields    map[string]string
		wantField string
	}{
		{"empty name", map[string]string{"name": " ", "email": "a@b.co", "phone": "5551234567"}, ColName},
		{"missing email value", map[string]string{"name": "Al", "phone": "5551234567"}, ColEmail},
		{"bad email", map[string]string{"name": "Al", "email": "nope", "phone": "5551234567"}, ColEmail},
		{"short phone", map[string]string{"name": "Al", "email": "a@b.co", "phone": "12345"}, ColPhone},
		{"bad status", map[string]string{"name": "Al", "email": "a@b.co", "phone": "5551234567", "status": "gone"}, ColStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Apply(row(7, tt.fields))
			var rf RowValidationFailure
			require.True(t, errors.As(err, &rf), "want RowValidationFailure, got %v", err)
			assert.Equal(t, 7, rf.Line)
			assert.Equal(t, tt.wantField, rf.Field)
		})
	}
}

func TestSchema_ApplyRejectPolicy(t *testing.T) {
	opts := testSchemaOptions()
	opts.ContactEmailPolicy = PolicyRejectFile
	s := ContactSchema(opts)

	_, err := s.Apply(row(4, map[string]string{"name": "Al", "email": "nope", "phone": "5551234567"}))
	require.Error(t, err)
	assert.Equal(t, ErrRowValidation, KindOf(err))
	assert.Contains(t, err.Error(), "line 4")

	var rf RowValidationFailure
	assert.False(t, errors.As(err, &rf))
}

func TestSchema_ApplyContactDefaults(t *testing.T) {
	s := ContactSchema(testSchemaOptions())

	vals, err := s.Apply(row(2, map[string]string{"name": "Al", "email": "AL@B.CO", "phone": "+44 20 7946 0958"}))
	require.NoError(t, err)
	assert.Equal(t, Contact{
		Name:   "Al",
		Email:  "al@b.co",
		Phone:  "+442079460958",
		Status: ContactActive,
	}, vals.Contact())
}

func TestParseFailurePolicy(t *testing.T) {
	p, err := ParseFailurePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyDropRow, p)

	p, err = ParseFailurePolicy("REJECT")
	require.NoError(t, err)
	assert.Equal(t, PolicyRejectFile, p)

	_, err = ParseFailurePolicy("ignore")
	assert.Error(t, err)
}

func TestSchema_ApplyKeepsFreeText(t *testing.T) {
	s := TaskSchema(testSchemaOptions())

	vals, err := s.Apply(row(2, map[string]string{
		"firstname": "O'Brien",
		"phone":     "5551234567",
		"notes":     ` He said "call back" `,
	}))
	require.NoError(t, err)
	assert.Equal(t, "O'Brien", vals.Task().FirstName)
	assert.Equal(t, `He said "call back"`, vals.Task().Notes)
}

func TestSchema_PhonePolicyPerKind(t *testing.T) {
	opts := testSchemaOptions()
	opts.TaskPhonePolicy = PolicyDropRow
	opts.ContactPhonePolicy = PolicyRejectFile

	_, err := TaskSchema(opts).Apply(row(3, map[string]string{"firstname": "Al", "phone": "123"}))
	var rf RowValidationFailure
	require.True(t, errors.As(err, &rf), "task rows with a bad phone are dropped, got %v", err)

	_, err = ContactSchema(opts).Apply(row(3, map[string]string{"name": "Al", "email": "a@b.co", "phone": "123"}))
	require.Error(t, err)
	assert.Equal(t, ErrRowValidation, KindOf(err))
	assert.False(t, errors.As(err, &rf))
}
