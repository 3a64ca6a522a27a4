package portalmock

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/wolfman30/careportal-chat/internal/portalapi"
)

var (
	// ErrNotFound is returned when no patient matches.
	ErrNotFound = errors.New("portalmock: patient not found")
	// ErrAlreadyLinked is returned when the patient is already in the family.
	ErrAlreadyLinked = errors.New("portalmock: patient already linked")
)

// Patient is a hospital record.
type Patient struct {
	ID             string
	Name           string
	Phone          string
	Email          string
	DateOfBirth    string
	Age            int
	Gender         string
	LinkedAccounts []string
}

// LinkedTo reports whether accountID already books for this patient.
func (p Patient) LinkedTo(accountID string) bool {
	return slices.Contains(p.LinkedAccounts, accountID)
}

// Member is a patient as seen from one account's family.
type Member struct {
	Patient
	Relationship string
}

// Directory stores patients and the accounts that may book for them.
type Directory interface {
	Get(ctx context.Context, id string) (*Patient, error)
	Find(ctx context.Context, searchType portalapi.SearchType, value string) (*Patient, error)
	Family(ctx context.Context, accountID string) ([]Member, error)
	Link(ctx context.Context, accountID, patientID, relationship string) (*Member, error)
	Create(ctx context.Context, accountID string, p Patient, relationship string) (*Member, error)
}

// NewPatientID returns a fresh hospital record number.
func NewPatientID() string {
	return "PT" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// MemoryDirectory is an in-process Directory.
type MemoryDirectory struct {
	mu       sync.RWMutex
	patients map[string]*Patient
	order    []string
	links    map[string]map[string]string // account -> patient -> relationship
}

// NewMemoryDirectory returns an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		patients: make(map[string]*Patient),
		links:    make(map[string]map[string]string),
	}
}

// Seed adds p, linking it to accountID with relationship when accountID is
// set.
func (d *MemoryDirectory) Seed(p Patient, accountID, relationship string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := p
	cp.LinkedAccounts = nil
	if _, ok := d.patients[p.ID]; !ok {
		d.order = append(d.order, p.ID)
	}
	d.patients[p.ID] = &cp
	if accountID != "" {
		d.linkLocked(accountID, p.ID, relationship)
	}
}

func (d *MemoryDirectory) linkLocked(accountID, patientID, relationship string) {
	p := d.patients[patientID]
	p.LinkedAccounts = append(p.LinkedAccounts, accountID)
	if d.links[accountID] == nil {
		d.links[accountID] = make(map[string]string)
	}
	d.links[accountID][patientID] = relationship
}

func (d *MemoryDirectory) Get(_ context.Context, id string) (*Patient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.patients[strings.ToUpper(id)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	cp.LinkedAccounts = slices.Clone(p.LinkedAccounts)
	return &cp, nil
}

func (d *MemoryDirectory) Find(ctx context.Context, searchType portalapi.SearchType, value string) (*Patient, error) {
	if searchType == portalapi.SearchPatientID {
		return d.Get(ctx, value)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, id := range d.order {
		p := d.patients[id]
		switch {
		case searchType == portalapi.SearchPhone && p.Phone != "" && p.Phone == value,
			searchType == portalapi.SearchEmail && p.Email != "" && strings.EqualFold(p.Email, value):
			cp := *p
			cp.LinkedAccounts = slices.Clone(p.LinkedAccounts)
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (d *MemoryDirectory) Family(_ context.Context, accountID string) ([]Member, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []Member
	for _, id := range d.order {
		rel, ok := d.links[accountID][id]
		if !ok {
			continue
		}
		out = append(out, Member{Patient: *d.patients[id], Relationship: rel})
	}
	return out, nil
}

func (d *MemoryDirectory) Link(_ context.Context, accountID, patientID, relationship string) (*Member, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.patients[strings.ToUpper(patientID)]
	if !ok {
		return nil, ErrNotFound
	}
	if p.LinkedTo(accountID) {
		return nil, ErrAlreadyLinked
	}
	d.linkLocked(accountID, p.ID, relationship)
	return &Member{Patient: *p, Relationship: relationship}, nil
}

func (d *MemoryDirectory) Create(_ context.Context, accountID string, p Patient, relationship string) (*Member, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("portalmock: create patient: name is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if p.ID == "" {
		p.ID = NewPatientID()
	}
	p.LinkedAccounts = nil
	d.patients[p.ID] = &p
	d.order = append(d.order, p.ID)
	d.linkLocked(accountID, p.ID, relationship)
	return &Member{Patient: *d.patients[p.ID], Relationship: relationship}, nil
}

// MaskPhone keeps the country code and the last four digits.
func MaskPhone(phone string) string {
	if len(phone) < 7 {
		return phone
	}
	prefix := ""
	if strings.HasPrefix(phone, "+91") {
		prefix = "+91"
	}
	return prefix + strings.Repeat("*", len(phone)-len(prefix)-4) + phone[len(phone)-4:]
}

// MaskEmail keeps the first letter of the local part and the domain.
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return email
	}
	return local[:1] + strings.Repeat("*", max(len(local)-1, 3)) + "@" + domain
}

// MaskedData is what lookup reveals about a record before verification.
func MaskedData(p Patient) *portalapi.MemberData {
	return &portalapi.MemberData{
		ID:          p.ID,
		Name:        p.Name,
		MaskedPhone: MaskPhone(p.Phone),
		MaskedEmail: MaskEmail(p.Email),
		Age:         p.Age,
		Gender:      p.Gender,
	}
}

// MemberData is the full record returned once a member is in the family.
func MemberData(m Member) *portalapi.MemberData {
	return &portalapi.MemberData{
		ID:           m.ID,
		Name:         m.Name,
		Phone:        m.Phone,
		Email:        m.Email,
		Age:          m.Age,
		Gender:       m.Gender,
		Relationship: m.Relationship,
	}
}
