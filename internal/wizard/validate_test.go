package wizard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/careportal-chat/internal/portalapi"
)

func TestValidPhone(t *testing.T) {
	assert.True(t, ValidPhone("+919876543210"))
	assert.False(t, ValidPhone("9876543210"))
	assert.False(t, ValidPhone("+915876543210"))
	assert.False(t, ValidPhone("+9198765432101"))
}

func TestDetectSearchType(t *testing.T) {
	tests := []struct {
		in    string
		typ   portalapi.SearchType
		value string
		ok    bool
	}{
		{"+919876543210", portalapi.SearchPhone, "+919876543210", true},
		{"98765 43210", portalapi.SearchPhone, "+919876543210", true},
		{"919876543210", portalapi.SearchPhone, "+919876543210", true},
		{"Ravi@Example.com", portalapi.SearchEmail, "ravi@example.com", true},
		{"ravi@", portalapi.SearchEmail, "ravi@", false},
		{"pt-00123", portalapi.SearchPatientID, "PT-00123", true},
		{"12345678901", portalapi.SearchPhone, "12345678901", false},
		{"  ", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			typ, value, ok := DetectSearchType(tt.in)
			assert.Equal(t, tt.typ, typ)
			assert.Equal(t, tt.value, value)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestSuggestRelationship(t *testing.T) {
	tests := []struct {
		age    int
		gender string
		want   string
	}{
		{50, "male", "father"},
		{72, "female", "mother"},
		{49, "male", "brother"},
		{20, "F", "sister"},
		{19, "male", "son"},
		{8, "female", "daughter"},
		{40, "other", ""},
		{40, "", ""},
		{0, "male", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SuggestRelationship(tt.age, tt.gender), "age=%d gender=%q", tt.age, tt.gender)
	}
}

func TestAgeAndDOB(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	dob, ok := ParseDOB("1970-03-11", now)
	assert.True(t, ok)
	assert.Equal(t, 55, AgeOn(dob, now))

	_, ok = ParseDOB("2027-01-01", now)
	assert.False(t, ok)

	_, ok = ParseAge("121")
	assert.False(t, ok)
	age, ok := ParseAge(" 42 ")
	assert.True(t, ok)
	assert.Equal(t, 42, age)

	assert.True(t, ValidOTP("012345"))
	assert.False(t, ValidOTP("12345a"))
}
