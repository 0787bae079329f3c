package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"simple", "a@b.co", "a@b.co", false},
		{"trims and lowercases", "  Jane.Doe@Example.COM ", "jane.doe@example.com", false},
		{"excel wrapper", `="x@y.io"`, "x@y.io", false},
		{"missing at", "jane.example.com", "", true},
		{"missing tld", "jane@example", "", true},
		{"inner space", "ja ne@example.com", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeEmail(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPhoneNormalizer_Normalize(t *testing.T) {
	p := PhoneNormalizer{CountryCode: "1"}

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"ten digits gets country code", "5551234567", "+15551234567", false},
		{"formatted ten digits", "(555) 123-4567", "+15551234567", false},
		{"eleven digits kept", "15551234567", "+15551234567", false},
		{"plus prefix kept", "+1 555 123 4567", "+15551234567", false},
		{"fifteen digits", "123456789012345", "+123456789012345", false},
		{"nine digits", "555123456", "", true},
		{"sixteen digits", "1234567890123456", "", true},
		{"letters only", "call me", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Normalize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPhoneNormalizer_EquivalentInputs(t *testing.T) {
	p := PhoneNormalizer{CountryCode: "1"}
	inputs := []string{"(555) 123-4567", "555.123.4567", "+1 555 123 4567"}

	for _, in := range inputs {
		got, err := p.Normalize(in)
		require.NoError(t, err, in)
		assert.Equal(t, "+15551234567", got, in)
	}
}

func TestPhoneNormalizer_Idempotent(t *testing.T) {
	inputs := []string{
		"5551234567",
		"(555) 123-4567",
		"+44 20 7946 0958",
		"123456789012345",
		"00 1 555 123 4567",
	}
	for _, cc := range []string{"1", "44", "353"} {
		p := PhoneNormalizer{CountryCode: cc}
		for _, in := range inputs {
			once, err := p.Normalize(in)
			require.NoError(t, err, in)
			twice, err := p.Normalize(once)
			require.NoError(t, err, once)
			assert.Equal(t, once, twice, "cc=%s input=%q", cc, in)
		}
	}
}

func TestNewPhoneNormalizer(t *testing.T) {
	p, err := NewPhoneNormalizer("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCountryCode, p.CountryCode)

	p, err = NewPhoneNormalizer("+44")
	require.NoError(t, err)
	assert.Equal(t, "44", p.CountryCode)

	_, err = NewPhoneNormalizer("1234")
	assert.Error(t, err)

	_, err = NewPhoneNormalizer("x1")
	assert.Error(t, err)
}

func TestNormalizeStatus(t *testing.T) {
	got, err := NormalizeStatus("")
	require.NoError(t, err)
	assert.Equal(t, ContactActive, got)

	got, err = NormalizeStatus(" Inactive ")
	require.NoError(t, err)
	assert.Equal(t, ContactInactive, got)

	_, err = NormalizeStatus("archived")
	assert.Error(t, err)
}

func TestCleanCell(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  hello  ", "hello"},
		{`="00123"`, "00123"},
		{"=SUM", "SUM"},
		{`"quoted"`, "quoted"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanCell(tt.input), tt.input)
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  Jane  ", "Jane"},
		{`Said "yes"`, `Said "yes"`},
		{"Call the Smiths'", "Call the Smiths'"},
		{"'quoted'", "'quoted'"},
		{"=urgent", "=urgent"},
		{"\t\n", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeText(tt.input), tt.input)
	}
}
