package directory

import "sync"

// MaxPeriod is the last teaching period of a day.
const MaxPeriod = 8

// Department groups subjects.
type Department struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Subject is a teachable unit within a department.
type Subject struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Code         string `json:"code"`
	DepartmentID string `json:"department_id"`
}

// Catalog is the department/subject lookup the session surface validates
// against before issuing a code.
type Catalog struct {
	mu          sync.RWMutex
	departments map[string]Department
	subjects    map[string]Subject
}

// NewCatalog builds a catalog from seed data.
func NewCatalog(departments []Department, subjects []Subject) *Catalog {
	c := &Catalog{
		departments: make(map[string]Department, len(departments)),
		subjects:    make(map[string]Subject, len(subjects)),
	}
	for _, d := range departments {
		c.departments[d.ID] = d
	}
	for _, s := range subjects {
		c.subjects[s.ID] = s
	}
	return c
}

// Subject returns a subject by id.
func (c *Catalog) Subject(id string) (Subject, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.subjects[id]
	return s, ok
}

// ValidPeriod reports whether p is a real teaching period.
func (c *Catalog) ValidPeriod(p int) bool {
	return p >= 1 && p <= MaxPeriod
}

// Departments lists all departments.
func (c *Catalog) Departments() []Department {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Department, 0, len(c.departments))
	for _, d := range c.departments {
		out = append(out, d)
	}
	return out
}
