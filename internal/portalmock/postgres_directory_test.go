package portalmock

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/careportal-chat/internal/portalapi"
)

var patientRowColumns = []string{"id", "name", "phone", "email", "date_of_birth", "age", "gender", "linked_accounts"}

func newMockDirectory(t *testing.T) (*PostgresDirectory, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgresDirectory(db), mock
}

func TestPostgresDirectoryGet(t *testing.T) {
	dir, mock := newMockDirectory(t)
	mock.ExpectQuery(`SELECT id, name, .* FROM patients WHERE id = \$1`).
		WithArgs("PT2001").
		WillReturnRows(sqlmock.NewRows(patientRowColumns).
			AddRow("PT2001", "Meera Iyer", "+919812345678", "meera.iyer@example.com", "1958-01-20", 68, "female", "{ACC-2002}"))

	p, err := dir.Get(context.Background(), "pt2001")
	require.NoError(t, err)
	assert.Equal(t, "Meera Iyer", p.Name)
	assert.Equal(t, []string{"ACC-2002"}, p.LinkedAccounts)
	assert.False(t, p.LinkedTo(DemoAccountID))
}

func TestPostgresDirectoryFindMissing(t *testing.T) {
	dir, mock := newMockDirectory(t)
	mock.ExpectQuery(`WHERE lower\(email\) = lower\(\$1\)`).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows(patientRowColumns))

	_, err := dir.Find(context.Background(), portalapi.SearchEmail, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresDirectoryFindUnsupported(t *testing.T) {
	dir, _ := newMockDirectory(t)
	_, err := dir.Find(context.Background(), portalapi.SearchType("aadhaar"), "1234")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestPostgresDirectoryFamily(t *testing.T) {
	dir, mock := newMockDirectory(t)
	mock.ExpectQuery(`FROM family_links l\s+JOIN patients p`).
		WithArgs(DemoAccountID).
		WillReturnRows(sqlmock.NewRows(append(patientRowColumns, "relationship")).
			AddRow("PT1001", "Rahul Sharma", "+919876500001", "", "", 40, "male", "{ACC-1001}", "self").
			AddRow("PT1002", "Priya Sharma", "+919876500002", "", "", 37, "female", "{ACC-1001}", "spouse"))

	family, err := dir.Family(context.Background(), DemoAccountID)
	require.NoError(t, err)
	require.Len(t, family, 2)
	assert.Equal(t, "self", family[0].Relationship)
	assert.Equal(t, "Priya Sharma", family[1].Name)
}

func TestPostgresDirectoryLink(t *testing.T) {
	dir, mock := newMockDirectory(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE patients SET linked_accounts = array_append`).
		WithArgs(DemoAccountID, "PT2001").
		WillReturnRows(sqlmock.NewRows(patientRowColumns).
			AddRow("PT2001", "Meera Iyer", "+919812345678", "", "", 68, "female", "{ACC-1001}"))
	mock.ExpectExec(`INSERT INTO family_links`).
		WithArgs(DemoAccountID, "PT2001", "mother").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	m, err := dir.Link(context.Background(), DemoAccountID, "PT2001", "mother")
	require.NoError(t, err)
	assert.Equal(t, "mother", m.Relationship)
	assert.True(t, m.LinkedTo(DemoAccountID))
}

func TestPostgresDirectoryLinkAlreadyLinked(t *testing.T) {
	dir, mock := newMockDirectory(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE patients`).
		WithArgs(DemoAccountID, "PT1002").
		WillReturnRows(sqlmock.NewRows(patientRowColumns))
	mock.ExpectQuery(`SELECT id, name, .* FROM patients WHERE id = \$1`).
		WithArgs("PT1002").
		WillReturnRows(sqlmock.NewRows(patientRowColumns).
			AddRow("PT1002", "Priya Sharma", "", "", "", 37, "female", "{ACC-1001}"))
	mock.ExpectRollback()

	_, err := dir.Link(context.Background(), DemoAccountID, "PT1002", "spouse")
	assert.ErrorIs(t, err, ErrAlreadyLinked)
}

func TestPostgresDirectoryLinkMissing(t *testing.T) {
	dir, mock := newMockDirectory(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE patients`).
		WithArgs(DemoAccountID, "PT9999").
		WillReturnRows(sqlmock.NewRows(patientRowColumns))
	mock.ExpectQuery(`FROM patients WHERE id = \$1`).
		WithArgs("PT9999").
		WillReturnRows(sqlmock.NewRows(patientRowColumns))
	mock.ExpectRollback()

	_, err := dir.Link(context.Background(), DemoAccountID, "PT9999", "other")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresDirectoryCreate(t *testing.T) {
	dir, mock := newMockDirectory(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO patients`).
		WithArgs("PT00000001", "Kabir Sharma", "+919811100000", "", "", 9, "male", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO family_links`).
		WithArgs(DemoAccountID, "PT00000001", "son").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	m, err := dir.Create(context.Background(), DemoAccountID, Patient{
		ID: "PT00000001", Name: "Kabir Sharma", Phone: "+919811100000", Age: 9, Gender: "male",
	}, "son")
	require.NoError(t, err)
	assert.Equal(t, []string{DemoAccountID}, m.LinkedAccounts)
}

func TestPostgresDirectoryCreateRollsBack(t *testing.T) {
	dir, mock := newMockDirectory(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO patients`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO family_links`).WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	_, err := dir.Create(context.Background(), DemoAccountID, Patient{Name: "Kabir Sharma"}, "son")
	assert.ErrorContains(t, err, "insert family link")
}
