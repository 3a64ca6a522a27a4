package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Command
	}{
		{"plain text", "  I need a cardiologist ", Command{Kind: KindText, Text: "I need a cardiologist"}},
		{"escaped slash", "//not a command", Command{Kind: KindText, Text: "/not a command"}},
		{"pick one", "/pick 2", Command{Kind: KindPick, Text: "2", Indexes: []int{1}}},
		{"pick many", "/pick 1,3", Command{Kind: KindPick, Text: "1,3", Indexes: []int{0, 2}}},
		{"alias", "/p 1", Command{Kind: KindPick, Text: "1", Indexes: []int{0}}},
		{"date", "/date 3", Command{Kind: KindDate, Text: "3", Indexes: []int{2}}},
		{"field", "/field pincode = 411001", Command{Kind: KindField, Text: "pincode = 411001", Key: "pincode", Value: "411001"}},
		{"field empty value", "/field line2=", Command{Kind: KindField, Text: "line2=", Key: "line2"}},
		{"member", "/member Existing", Command{Kind: KindMember, Text: "Existing", Value: "existing"}},
		{"resend bare", "/resend", Command{Kind: KindResend}},
		{"resend channel", "/resend EMAIL", Command{Kind: KindResend, Text: "EMAIL", Value: "email"}},
		{"otp", "/otp 123456", Command{Kind: KindOTP, Text: "123456"}},
		{"change", "/change doctor_name", Command{Kind: KindChange, Text: "doctor_name"}},
		{"quit alias", "/exit", Command{Kind: KindQuit}},
		{"search keeps spaces", "/search ravi@example.com", Command{Kind: KindSearch, Text: "ravi@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, line := range []string{
		"/frobnicate",
		"/pick",
		"/pick zero",
		"/pick 0",
		"/date 1,2",
		"/field pincode",
		"/submit now",
		"/otp",
	} {
		t.Run(line, func(t *testing.T) {
			_, err := Parse(line)
			assert.Error(t, err)
		})
	}
	_, err := Parse("/frobnicate")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}
