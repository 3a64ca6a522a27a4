package selection

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitter_FiresOnce(t *testing.T) {
	var got []Selection
	e := NewEmitter(func(s Selection) { got = append(got, s) }, false)

	require.NoError(t, e.Emit(Choice("doctor_id", "d1", "Dr. Rao")))
	assert.ErrorIs(t, e.Emit(Choice("doctor_id", "d2", "Dr. Sen")), ErrAlreadySelected)
	assert.True(t, e.Disabled())
	require.Len(t, got, 1)
	assert.Equal(t, "d1", got[0]["doctor_id"])
}

func TestEmitter_DisabledIsAuthoritative(t *testing.T) {
	called := false
	e := NewEmitter(func(Selection) { called = true }, true)
	assert.ErrorIs(t, e.Emit(Selection{"urgency": "urgent"}), ErrDisabled)
	assert.False(t, called)
}

func TestEmitter_ConcurrentEmitFiresOnce(t *testing.T) {
	var mu sync.Mutex
	count := 0
	e := NewEmitter(func(Selection) {
		mu.Lock()
		count++
		mu.Unlock()
	}, false)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.Emit(Selection{"value": "x"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, count)
}

func TestSelectionAccessors(t *testing.T) {
	var sel Selection
	require.NoError(t, json.Unmarshal([]byte(`{"id": 12, "flag": "yes", "list": ["a", 2, {"x":1}], "display_message": "  "}`), &sel))

	assert.Equal(t, "12", sel.String("id"))
	assert.True(t, sel.Bool("flag"))
	assert.Equal(t, []string{"a", "2"}, sel.Strings("list"))
	_, ok := sel.DisplayMessage()
	assert.False(t, ok, "blank display_message is treated as absent")

	clone := sel.Clone()
	clone["id"] = "changed"
	assert.Equal(t, "12", sel.String("id"))
}

func TestChoice_SkipsBlankLabel(t *testing.T) {
	sel := Choice("package_id", "p1", "   ")
	assert.False(t, sel.Has(DisplayKey))
	assert.Equal(t, "p1", sel["package_id"])
}
