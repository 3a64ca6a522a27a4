package wizard

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/careportal-chat/internal/portalapi"
)

var (
	phonePattern     = regexp.MustCompile(`^\+91[6-9]\d{9}$`)
	emailPattern     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	otpPattern       = regexp.MustCompile(`^\d{6}$`)
	patientIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9\-_/]{2,}$`)
	localMobile      = regexp.MustCompile(`^[6-9]\d{9}$`)
)

// ValidPhone reports whether value is an Indian mobile number in +91 form.
func ValidPhone(value string) bool {
	return phonePattern.MatchString(value)
}

// ValidEmail is a permissive address check.
func ValidEmail(value string) bool {
	return emailPattern.MatchString(strings.TrimSpace(value))
}

// ValidOTP reports whether code is exactly six digits.
func ValidOTP(code string) bool {
	return otpPattern.MatchString(code)
}

// DetectSearchType classifies free-text search input and returns the value
// to send. Phone numbers typed without the country code are normalised to
// +91 form; form fields elsewhere stay strict.
func DetectSearchType(input string) (portalapi.SearchType, string, bool) {
	value := strings.TrimSpace(input)
	if value == "" {
		return "", "", false
	}
	if strings.Contains(value, "@") {
		if ValidEmail(value) {
			return portalapi.SearchEmail, strings.ToLower(value), true
		}
		return portalapi.SearchEmail, value, false
	}

	compact := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(value)
	digits := strings.TrimPrefix(compact, "+")
	if isDigits(digits) {
		switch {
		case ValidPhone(compact):
			return portalapi.SearchPhone, compact, true
		case localMobile.MatchString(digits):
			return portalapi.SearchPhone, "+91" + digits, true
		case len(digits) == 12 && strings.HasPrefix(digits, "91") && localMobile.MatchString(digits[2:]):
			return portalapi.SearchPhone, "+" + digits, true
		case strings.HasPrefix(compact, "+") || len(digits) >= 10:
			return portalapi.SearchPhone, compact, false
		}
	}
	if patientIDPattern.MatchString(value) {
		return portalapi.SearchPatientID, strings.ToUpper(value), true
	}
	return portalapi.SearchPatientID, value, false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseAge accepts a whole number of years between 0 and 120.
func ParseAge(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	age, err := strconv.Atoi(value)
	if err != nil || age < 0 || age > 120 {
		return 0, false
	}
	return age, true
}

// ParseDOB parses YYYY-MM-DD and rejects dates in the future.
func ParseDOB(value string, now time.Time) (time.Time, bool) {
	dob, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil || dob.After(now) {
		return time.Time{}, false
	}
	return dob, true
}

// AgeOn returns completed years between dob and now.
func AgeOn(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// NormalizeGender maps free input to male, female or other.
func NormalizeGender(value string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "m", "male":
		return "male", true
	case "f", "female":
		return "female", true
	case "o", "other":
		return "other", true
	}
	return "", false
}
