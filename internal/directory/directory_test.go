package directory

import (
	"context"
	"errors"
	"testing"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "student", want: RoleStudent},
		{in: "faculty", want: RoleFaculty},
		{in: "admin", want: RoleAdmin},
		{in: "Student", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRole(%q) error = %v", tt.in, err)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseRole(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMemoryLookup(t *testing.T) {
	m := NewMemory(SeedUsers()...)
	ctx := context.Background()

	u, err := m.Lookup(ctx, "stud1")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if u.Role != RoleStudent || !u.Verified {
		t.Errorf("stud1 = %+v, want verified student", u)
	}

	if _, err := m.Lookup(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup(ghost) error = %v, want %v", err, ErrNotFound)
	}
}

func TestBindDevice(t *testing.T) {
	m := NewMemory(SeedUsers()...)
	ctx := context.Background()

	// stud3 starts with no device.
	if _, verified, _ := m.DeviceBinding(ctx, "stud3"); verified {
		t.Fatal("stud3 starts verified")
	}
	if err := m.BindDevice(ctx, "stud3", "dev-new"); err != nil {
		t.Fatalf("BindDevice() error = %v", err)
	}
	deviceID, verified, err := m.DeviceBinding(ctx, "stud3")
	if err != nil {
		t.Fatalf("DeviceBinding() error = %v", err)
	}
	if deviceID != "dev-new" || !verified {
		t.Errorf("binding = (%q, %v), want (dev-new, true)", deviceID, verified)
	}

	if err := m.BindDevice(ctx, "ghost", "dev-x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("BindDevice(ghost) error = %v, want %v", err, ErrNotFound)
	}
	if err := m.BindDevice(ctx, "stud3", ""); err == nil {
		t.Error("BindDevice with empty device id did not fail")
	}
}

func TestCatalog(t *testing.T) {
	c := NewCatalog(SeedDepartments(), SeedSubjects())

	if _, ok := c.Subject("sub1"); !ok {
		t.Error("sub1 missing from catalog")
	}
	if _, ok := c.Subject("sub999"); ok {
		t.Error("unknown subject found in catalog")
	}
	if !c.ValidPeriod(1) || !c.ValidPeriod(MaxPeriod) {
		t.Error("valid periods rejected")
	}
	if c.ValidPeriod(0) || c.ValidPeriod(MaxPeriod+1) {
		t.Error("out-of-range periods accepted")
	}
	if got := len(c.Departments()); got != 3 {
		t.Errorf("Departments() returned %d, want 3", got)
	}
}
