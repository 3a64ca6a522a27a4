package portalmock

// DemoAccountID is the account holder the development portal signs in as.
// It matches the rows seeded by migrations/000002_seed_patients.
const DemoAccountID = "ACC-1001"

// NewDemoDirectory returns an in-memory directory with the account holder,
// one linked family member, and two unlinked hospital records for the
// link and should-link flows.
func NewDemoDirectory() *MemoryDirectory {
	d := NewMemoryDirectory()
	d.Seed(Patient{ID: "PT1001", Name: "Rahul Sharma", Phone: "+919876500001", Email: "rahul.sharma@example.com",
		DateOfBirth: "1986-04-12", Age: 40, Gender: "male"}, DemoAccountID, "self")
	d.Seed(Patient{ID: "PT1002", Name: "Priya Sharma", Phone: "+919876500002", Email: "priya.sharma@example.com",
		DateOfBirth: "1989-09-03", Age: 37, Gender: "female"}, DemoAccountID, "spouse")
	d.Seed(Patient{ID: "PT2001", Name: "Meera Iyer", Phone: "+919812345678", Email: "meera.iyer@example.com",
		DateOfBirth: "1958-01-20", Age: 68, Gender: "female"}, "", "")
	d.Seed(Patient{ID: "PT2002", Name: "Arjun Nair", Phone: "+919812300002",
		DateOfBirth: "2012-06-30", Age: 14, Gender: "male"}, "", "")
	return d
}
