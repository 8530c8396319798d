package groupstore_test

import (
	"testing"

	groupstore "github.com/tutorhub/tutorhub/internal/app/store/groups"
	"github.com/tutorhub/tutorhub/internal/domain/models"
	"github.com/tutorhub/tutorhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreate_Defaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := groupstore.New(db)

	g, err := store.Create(ctx, models.Group{
		Name:      "Algebra II — Evenings",
		CourseID:  primitive.NewObjectID(),
		TeacherID: primitive.NewObjectID(),
		Price:     10000,
		Currency:  " USD ",
		Capacity:  12,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if g.Status != "active" {
		t.Errorf("default status: got %q, want active", g.Status)
	}
	if g.Currency != "usd" {
		t.Errorf("currency not normalized: %q", g.Currency)
	}
	if g.NameCI == "" {
		t.Error("name_ci not populated")
	}
}

func TestSetPriceID_WinsOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	teacher := fx.CreateTeacher(ctx, "Terry Teacher", "terry@example.com")
	group := fx.CreateGroup(ctx, "Chess Club", teacher.ID, 5000, 10)

	store := groupstore.New(db)
	if err := store.SetPriceID(ctx, group.ID, "price_first"); err != nil {
		t.Fatalf("first SetPriceID failed: %v", err)
	}
	if err := store.SetPriceID(ctx, group.ID, "price_second"); err != nil {
		t.Fatalf("second SetPriceID failed: %v", err)
	}

	got, err := store.GetByID(ctx, group.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.PriceID != "price_first" {
		t.Errorf("price id overwritten: got %q, want price_first", got.PriceID)
	}
}

func TestAddStudentIfAbsent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	teacher := fx.CreateTeacher(ctx, "Terry Teacher", "terry@example.com")
	group := fx.CreateGroup(ctx, "Chess Club", teacher.ID, 5000, 10)
	student := fx.CreateStudent(ctx, "Sam Student", "sam@example.com")

	store := groupstore.New(db)

	added, err := store.AddStudentIfAbsent(ctx, group.ID, student.ID)
	if err != nil {
		t.Fatalf("AddStudentIfAbsent failed: %v", err)
	}
	if !added {
		t.Fatal("first add should modify the roster")
	}

	// Second delivery of the same activation must be a no-op.
	added, err = store.AddStudentIfAbsent(ctx, group.ID, student.ID)
	if err != nil {
		t.Fatalf("AddStudentIfAbsent failed: %v", err)
	}
	if added {
		t.Error("second add should be a no-op")
	}

	got, err := store.GetByID(ctx, group.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.StudentsCount != 1 {
		t.Errorf("students_count: got %d, want 1", got.StudentsCount)
	}
	if len(got.Students) != 1 {
		t.Errorf("students: got %d entries, want 1", len(got.Students))
	}
}

func TestRemoveStudent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	teacher := fx.CreateTeacher(ctx, "Terry Teacher", "terry@example.com")
	group := fx.CreateGroup(ctx, "Chess Club", teacher.ID, 5000, 10)
	student := fx.CreateStudent(ctx, "Sam Student", "sam@example.com")

	store := groupstore.New(db)
	if _, err := store.AddStudentIfAbsent(ctx, group.ID, student.ID); err != nil {
		t.Fatalf("AddStudentIfAbsent failed: %v", err)
	}

	removed, err := store.RemoveStudent(ctx, group.ID, student.ID)
	if err != nil {
		t.Fatalf("RemoveStudent failed: %v", err)
	}
	if !removed {
		t.Fatal("expected roster removal")
	}

	// Removing again must not drive the counter negative.
	removed, err = store.RemoveStudent(ctx, group.ID, student.ID)
	if err != nil {
		t.Fatalf("RemoveStudent failed: %v", err)
	}
	if removed {
		t.Error("second removal should be a no-op")
	}

	got, err := store.GetByID(ctx, group.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.StudentsCount != 0 {
		t.Errorf("students_count: got %d, want 0", got.StudentsCount)
	}
}

func TestListByTeacher(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	teacher := fx.CreateTeacher(ctx, "Terry Teacher", "terry@example.com")
	other := fx.CreateTeacher(ctx, "Olive Other", "olive@example.com")
	fx.CreateGroup(ctx, "Chess Club", teacher.ID, 5000, 10)
	fx.CreateGroup(ctx, "Debate Team", teacher.ID, 7500, 8)
	fx.CreateGroup(ctx, "Robotics", other.ID, 9000, 6)

	store := groupstore.New(db)
	groups, err := store.ListByTeacher(ctx, teacher.ID)
	if err != nil {
		t.Fatalf("ListByTeacher failed: %v", err)
	}
	if len(groups) != 2 {
		t.Errorf("groups: got %d, want 2", len(groups))
	}
}
