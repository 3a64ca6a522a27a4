package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/careportal-chat/internal/portalapi"
)

func TestBackTable(t *testing.T) {
	for _, step := range LinkSteps {
		prev, ok := BackStep(step)
		switch step {
		case StepSearch, StepSuccess:
			assert.False(t, ok, "%s has no back action", step)
		case StepContactSelection:
			assert.Equal(t, StepSearch, prev)
		case StepOTP:
			assert.Equal(t, StepContactSelection, prev)
		default:
			t.Fatalf("step %s missing from back table test", step)
		}
	}
}

func TestReduceLink_HappyPath(t *testing.T) {
	s := initialLink()
	s = reduceLink(s, searchStarted{searchType: portalapi.SearchPhone, value: "+919876543210"})
	s = reduceLink(s, searchFound{member: ravi})
	assert.Equal(t, StepContactSelection, s.Step)
	assert.Equal(t, "father", s.Relationship)

	s = reduceLink(s, otpSent{channel: portalapi.ChannelPhone, sentTo: "+91******3210"})
	assert.Equal(t, StepOTP, s.Step)
	s = reduceLink(s, otpChanged{code: "123456"})
	s = reduceLink(s, linked{member: ravi})
	assert.Equal(t, StepSuccess, s.Step)
	assert.Empty(t, s.OTP)

	assert.Equal(t, s, reduceLink(s, goBack{}), "success is terminal")
	assert.Equal(t, s, reduceLink(s, lockedOut{}))
	assert.Equal(t, initialLink(), reduceLink(s, restart{}))
}

func TestReduceLink_IgnoresOutOfStepActions(t *testing.T) {
	s := initialLink()
	assert.Equal(t, s, reduceLink(s, otpChanged{code: "1"}))
	assert.Equal(t, s, reduceLink(s, otpSent{channel: portalapi.ChannelEmail}))
	assert.Equal(t, s, reduceLink(s, linked{member: ravi}))
}

func TestReduceLink_ResendSwitchesChannel(t *testing.T) {
	s := reduceLink(initialLink(), prefill{query: "x", searchType: portalapi.SearchEmail, member: &portalapi.MemberData{ID: "p", Email: "a@b.co", Phone: "+919876543210"}})
	s = reduceLink(s, otpSent{channel: portalapi.ChannelPhone})
	s = reduceLink(s, otpChanged{code: "999"})
	s = reduceLink(s, otpSent{channel: portalapi.ChannelEmail, sentTo: "a***@b.co"})
	assert.Equal(t, StepOTP, s.Step)
	assert.Equal(t, portalapi.ChannelEmail, s.Channel)
	assert.Empty(t, s.OTP)
}

func TestReduceLink_BackToSearchForgetsRecord(t *testing.T) {
	s := reduceLink(initialLink(), searchFound{member: ravi})
	s = reduceLink(s, goBack{})
	assert.Equal(t, StepSearch, s.Step)
	assert.Nil(t, s.Member)
}
