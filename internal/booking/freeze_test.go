package booking

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/careportal-chat/internal/selection"
)

func sampleMessages() []Message {
	return []Message{
		{ID: "m1", Role: RoleAssistant, Content: "How urgent?", ComponentType: selection.TypeUrgency,
			UserSelection: selection.Selection{"urgency": "urgent"}},
		{ID: "m2", Role: RoleUser, Content: "Urgent - today/ASAP"},
		{ID: "m3", Role: RoleAssistant, Content: "Pick a doctor", ComponentType: selection.TypeDoctorList},
	}
}

func TestWidgetDisabled(t *testing.T) {
	msgs := sampleMessages()
	assert.True(t, WidgetDisabled(msgs, 0, false), "answered and followed")
	assert.False(t, WidgetDisabled(msgs, 2, false), "last unanswered is live")
	assert.True(t, WidgetDisabled(msgs, 2, true), "loading freezes everything")
	assert.True(t, WidgetDisabled(msgs, 7, false), "out of range")
}

func TestWidgetDisabled_AnsweredLastStaysFrozen(t *testing.T) {
	msgs := sampleMessages()
	msgs[2].UserSelection = selection.Selection{"doctor_id": "d1"}
	for i := 0; i < 3; i++ {
		assert.True(t, WidgetDisabled(msgs, 2, false), "render %d", i)
	}
	assert.Equal(t, -1, ActiveIndex(msgs, false))
}

func TestActiveIndex(t *testing.T) {
	msgs := sampleMessages()
	assert.Equal(t, 2, ActiveIndex(msgs, false))
	assert.Equal(t, -1, ActiveIndex(msgs, true))
	assert.Equal(t, -1, ActiveIndex(msgs[:2], false), "last message has no widget")
	assert.Equal(t, -1, ActiveIndex(nil, false))
}

func TestMergeMessages_NeverUnfreezes(t *testing.T) {
	local := sampleMessages()
	local[2].UserSelection = selection.Selection{"doctor_id": "d1", "display_message": "Dr. Rao"}

	stale := sampleMessages()
	merged := MergeMessages(local, stale)

	require.Len(t, merged, 3)
	assert.True(t, merged[2].Answered())
	assert.Equal(t, "Dr. Rao", merged[2].UserSelection["display_message"])
}

func TestMergeMessages_IncomingSelectionKept(t *testing.T) {
	local := sampleMessages()
	incoming := sampleMessages()
	incoming[2].UserSelection = selection.Selection{"doctor_id": "server"}
	incoming = append(incoming, Message{ID: "m4", Role: RoleUser, Content: "Dr. Rao"})

	merged := MergeMessages(local, incoming)
	require.Len(t, merged, 4)
	assert.Equal(t, "server", merged[2].UserSelection["doctor_id"])
}

func TestFreeze(t *testing.T) {
	msgs := sampleMessages()
	out, ok := Freeze(msgs, "m3", selection.Selection{"doctor_id": "d2"})
	require.True(t, ok)
	assert.True(t, out[2].Answered())
	assert.False(t, msgs[2].Answered(), "input slice untouched")

	_, ok = Freeze(out, "m3", selection.Selection{"doctor_id": "d3"})
	assert.False(t, ok, "second answer refused")
	_, ok = Freeze(msgs, "missing", nil)
	assert.False(t, ok)
}

func TestMessageJSONWireNames(t *testing.T) {
	raw := `{"id":"m1","role":"assistant","content":"Choose","component_type":"doctor_list",
		"component_data":{"doctors":[]},"user_selection":null,"thinking_steps":["a","b"],
		"attachments":[{"name":"r.pdf","mime_type":"application/pdf","size":10}]}`
	var m Message
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.Equal(t, RoleAssistant, m.Role)
	assert.True(t, m.HasComponent())
	assert.False(t, m.Answered())
	assert.JSONEq(t, `{"doctors":[]}`, string(m.ComponentData))
	assert.Equal(t, []string{"a", "b"}, m.ThinkingSteps)
	assert.Equal(t, "application/pdf", m.Attachments[0].MimeType)
}
