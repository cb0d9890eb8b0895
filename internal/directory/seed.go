package directory

// Seed data for the demo deployment.

// SeedUsers returns the demo user set: students across two departments, one
// faculty member and one admin. stud1 arrives with a verified device so the
// happy path works out of the box; stud3 has none.
func SeedUsers() []User {
	return []User{
		{ID: "stud1", Name: "John Doe", Email: "john@example.com", Role: RoleStudent, DepartmentID: "dept1", DeviceID: "dev-stud1", Verified: true},
		{ID: "stud2", Name: "Jane Smith", Email: "jane@example.com", Role: RoleStudent, DepartmentID: "dept2", DeviceID: "dev-stud2", Verified: true},
		{ID: "stud3", Name: "Robert Johnson", Email: "robert@example.com", Role: RoleStudent, DepartmentID: "dept1"},
		{ID: "faculty-1", Name: "Alice Grant", Email: "alice@example.com", Role: RoleFaculty, DepartmentID: "dept1"},
		{ID: "admin-1", Name: "Sam Klein", Email: "sam@example.com", Role: RoleAdmin},
	}
}

// SeedDepartments returns the demo departments.
func SeedDepartments() []Department {
	return []Department{
		{ID: "dept1", Name: "Computer Science"},
		{ID: "dept2", Name: "Electronics"},
		{ID: "dept3", Name: "Mechanical"},
	}
}

// SeedSubjects returns the demo subjects.
func SeedSubjects() []Subject {
	return []Subject{
		{ID: "sub1", Name: "Introduction to Programming", Code: "CS101", DepartmentID: "dept1"},
		{ID: "sub2", Name: "Data Structures", Code: "CS102", DepartmentID: "dept1"},
		{ID: "sub3", Name: "Algorithms", Code: "CS201", DepartmentID: "dept1"},
		{ID: "sub4", Name: "Database Systems", Code: "CS202", DepartmentID: "dept1"},
		{ID: "sub5", Name: "Circuit Theory", Code: "EC101", DepartmentID: "dept2"},
		{ID: "sub6", Name: "Digital Electronics", Code: "EC102", DepartmentID: "dept2"},
	}
}
