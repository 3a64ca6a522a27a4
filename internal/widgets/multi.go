package widgets

import (
	"fmt"
	"strings"
	"sync"

	"github.com/wolfman30/careportal-chat/internal/selection"
)

// checklist tracks toggled options for multi-select widgets.
type checklist struct {
	mu      sync.Mutex
	checked map[int]bool
}

func (c *checklist) toggle(index, n int) error {
	if index < 0 || index >= n {
		return ErrNoSuchOption
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.checked == nil {
		c.checked = make(map[int]bool)
	}
	c.checked[index] = !c.checked[index]
	return nil
}

func (c *checklist) indexes(n int) []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, 0, len(c.checked))
	for i := 0; i < n; i++ {
		if c.checked[i] {
			out = append(out, i)
		}
	}
	return out
}

func (c *checklist) isChecked(i int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checked[i]
}

// TestList picks one or more lab tests.
type TestList struct {
	base
	checklist
	title string
	tests []LabTest
}

// NewTestList builds a test_list.
func NewTestList(p TestListProps, ctx Context) Widget {
	t := &TestList{title: orDefault(p.Title, "Select the tests you need"), tests: orFallback(p.Tests, DefaultLabTests)}
	t.init(selection.TypeTestList, ctx)
	return t
}

// View lists the tests with their checked state.
func (t *TestList) View() View {
	v := t.view(t.title)
	chosen := map[string]bool{}
	for _, id := range v.Selected.Strings("test_ids") {
		chosen[id] = true
	}
	total := 0
	for i, test := range t.tests {
		checked := t.isChecked(i) || chosen[test.ID]
		detail := test.Description
		if test.Price > 0 {
			detail = strings.TrimSpace(fmt.Sprintf("₹%d %s", test.Price, detail))
		}
		if checked {
			total += test.Price
		}
		v.Options = append(v.Options, Option{ID: test.ID, Label: test.Name, Detail: detail, Selected: checked})
	}
	if total > 0 {
		v.Total = fmt.Sprintf("₹%d", total)
	}
	if len(t.tests) == 0 {
		v.Warning = "No tests are available right now."
	}
	v.Actions = []string{"confirm"}
	return v
}

// Toggle checks or unchecks a test.
func (t *TestList) Toggle(index int) error {
	if err := t.guard(); err != nil {
		return err
	}
	return t.toggle(index, len(t.tests))
}

// Confirm emits the checked tests.
func (t *TestList) Confirm() error {
	if err := t.guard(); err != nil {
		return err
	}
	idx := t.indexes(len(t.tests))
	if len(idx) == 0 {
		return ErrNothingSelected
	}
	ids := make([]string, 0, len(idx))
	names := make([]string, 0, len(idx))
	for _, i := range idx {
		ids = append(ids, t.tests[i].ID)
		names = append(names, t.tests[i].Name)
	}
	return t.emit(selection.Selection{"test_ids": ids, "test_names": names})
}

// SymptomSelector picks symptom chips plus optional free text.
type SymptomSelector struct {
	base
	checklist
	title      string
	symptoms   []string
	allowOther bool

	textMu sync.Mutex
	other  string
}

// NewSymptomSelector builds a symptom_selector.
func NewSymptomSelector(p SymptomProps, ctx Context) Widget {
	s := &SymptomSelector{
		title:      orDefault(p.Title, "What symptoms do you have?"),
		symptoms:   orFallback(p.Symptoms, DefaultSymptoms),
		allowOther: p.AllowOther || len(p.Symptoms) == 0,
	}
	s.init(selection.TypeSymptoms, ctx)
	return s
}

// View lists the chips and the free-text field.
func (s *SymptomSelector) View() View {
	v := s.view(s.title)
	chosen := map[string]bool{}
	for _, name := range v.Selected.Strings("symptoms") {
		chosen[name] = true
	}
	for i, name := range s.symptoms {
		v.Options = append(v.Options, Option{ID: name, Label: name, Selected: s.isChecked(i) || chosen[name]})
	}
	if s.allowOther {
		s.textMu.Lock()
		v.Fields = []Field{{Name: "other", Label: "Other symptoms", Value: s.other}}
		s.textMu.Unlock()
	}
	v.Actions = []string{"confirm"}
	return v
}

// Toggle checks or unchecks a symptom chip.
func (s *SymptomSelector) Toggle(index int) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.toggle(index, len(s.symptoms))
}

// SetText sets the free-text symptoms.
func (s *SymptomSelector) SetText(text string) {
	s.textMu.Lock()
	defer s.textMu.Unlock()
	s.other = text
}

// Submit is Confirm for front-ends that drive text widgets generically.
func (s *SymptomSelector) Submit() error {
	return s.Confirm()
}

// Confirm emits the checked symptoms and any free text.
func (s *SymptomSelector) Confirm() error {
	if err := s.guard(); err != nil {
		return err
	}
	var names []string
	for _, i := range s.indexes(len(s.symptoms)) {
		names = append(names, s.symptoms[i])
	}
	s.textMu.Lock()
	other := strings.TrimSpace(s.other)
	s.textMu.Unlock()
	if !s.allowOther {
		other = ""
	}
	if len(names) == 0 && other == "" {
		return ErrNothingSelected
	}
	sel := selection.Selection{"symptoms": names}
	if names == nil {
		sel["symptoms"] = []string{}
	}
	if other != "" {
		sel["other"] = other
	}
	return s.emit(sel)
}
