package enrollmentstore_test

import (
	"errors"
	"testing"
	"time"

	enrollmentstore "github.com/tutorhub/tutorhub/internal/app/store/enrollments"
	"github.com/tutorhub/tutorhub/internal/domain/models"
	"github.com/tutorhub/tutorhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func setup(t *testing.T) (*enrollmentstore.Store, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return enrollmentstore.New(db), testutil.NewFixtures(t, db)
}

func TestCreate_DefaultsToIncomplete(t *testing.T) {
	store, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	teacher := fx.CreateTeacher(ctx, "Terry Teacher", "terry@example.com")
	group := fx.CreateGroup(ctx, "Chess Club", teacher.ID, 5000, 10)
	student := fx.CreateStudent(ctx, "Sam Student", "sam@example.com")
	parent := fx.CreateParent(ctx, "Pat Parent", "pat@example.com", student.ID)

	e, err := store.Create(ctx, models.Enrollment{
		ParentID:  parent.ID,
		StudentID: student.ID,
		TeacherID: group.TeacherID,
		GroupID:   group.ID,
		CourseID:  group.CourseID,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if e.Status != models.EnrollmentIncomplete {
		t.Errorf("status: got %q, want incomplete", e.Status)
	}
	if e.ID.IsZero() {
		t.Error("id not assigned")
	}
}

func TestHasActiveFamily(t *testing.T) {
	store, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	teacher := fx.CreateTeacher(ctx, "Terry Teacher", "terry@example.com")
	group := fx.CreateGroup(ctx, "Chess Club", teacher.ID, 5000, 10)
	student := fx.CreateStudent(ctx, "Sam Student", "sam@example.com")
	parent := fx.CreateParent(ctx, "Pat Parent", "pat@example.com", student.ID)

	for _, tc := range []struct {
		status string
		want   bool
	}{
		{models.EnrollmentTrialing, true},
		{models.EnrollmentActive, true},
		{models.EnrollmentPastDue, true},
		{models.EnrollmentIncomplete, false},
		{models.EnrollmentCanceled, false},
		{models.EnrollmentUnpaid, false},
	} {
		t.Run(tc.status, func(t *testing.T) {
			st := fx.CreateStudent(ctx, "Case Student", tc.status+"@example.com")
			fx.CreateEnrollment(ctx, parent.ID, st.ID, group, tc.status)

			got, err := store.HasActiveFamily(ctx, st.ID, group.CourseID)
			if err != nil {
				t.Fatalf("HasActiveFamily failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("status %s: got %v, want %v", tc.status, got, tc.want)
			}
		})
	}

	// Student with no enrollments at all.
	got, err := store.HasActiveFamily(ctx, student.ID, group.CourseID)
	if err != nil {
		t.Fatalf("HasActiveFamily failed: %v", err)
	}
	if got {
		t.Error("student without enrollments should not count as active")
	}
}

func TestFindIncomplete(t *testing.T) {
	store, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	teacher := fx.CreateTeacher(ctx, "Terry Teacher", "terry@example.com")
	group := fx.CreateGroup(ctx, "Chess Club", teacher.ID, 5000, 10)
	student := fx.CreateStudent(ctx, "Sam Student", "sam@example.com")
	parent := fx.CreateParent(ctx, "Pat Parent", "pat@example.com", student.ID)

	_, err := store.FindIncomplete(ctx, student.ID, group.CourseID)
	if !errors.Is(err, mongo.ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments on clean state, got %v", err)
	}

	created := fx.CreateEnrollment(ctx, parent.ID, student.ID, group, models.EnrollmentIncomplete)

	found, err := store.FindIncomplete(ctx, student.ID, group.CourseID)
	if err != nil {
		t.Fatalf("FindIncomplete failed: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("found wrong enrollment: got %s, want %s", found.ID.Hex(), created.ID.Hex())
	}
}

func TestExpireIfIncomplete_RaceNoOp(t *testing.T) {
	store, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	teacher := fx.CreateTeacher(ctx, "Terry Teacher", "terry@example.com")
	group := fx.CreateGroup(ctx, "Chess Club", teacher.ID, 5000, 10)
	student := fx.CreateStudent(ctx, "Sam Student", "sam@example.com")
	parent := fx.CreateParent(ctx, "Pat Parent", "pat@example.com", student.ID)

	// Already-activated enrollment: expiry must be a no-op.
	active := fx.CreateEnrollment(ctx, parent.ID, student.ID, group, models.EnrollmentActive)
	expired, err := store.ExpireIfIncomplete(ctx, active.ID)
	if err != nil {
		t.Fatalf("ExpireIfIncomplete failed: %v", err)
	}
	if expired {
		t.Error("active enrollment must not expire")
	}
	got, err := store.GetByID(ctx, active.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != models.EnrollmentActive {
		t.Errorf("status changed: got %q, want active", got.Status)
	}

	// Still-incomplete enrollment: expiry applies.
	incomplete := fx.CreateEnrollment(ctx, parent.ID, student.ID, group, models.EnrollmentIncomplete)
	expired, err = store.ExpireIfIncomplete(ctx, incomplete.ID)
	if err != nil {
		t.Fatalf("ExpireIfIncomplete failed: %v", err)
	}
	if !expired {
		t.Error("incomplete enrollment should expire")
	}
	got, err = store.GetByID(ctx, incomplete.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != models.EnrollmentIncompleteExpired {
		t.Errorf("status: got %q, want incomplete_expired", got.Status)
	}
	if got.CanceledAt == nil {
		t.Error("canceled_at not stamped on expiry")
	}
}

func TestAppendChargeIfAbsent_Dedup(t *testing.T) {
	store, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	teacher := fx.CreateTeacher(ctx, "Terry Teacher", "terry@example.com")
	group := fx.CreateGroup(ctx, "Chess Club", teacher.ID, 10000, 10)
	student := fx.CreateStudent(ctx, "Sam Student", "sam@example.com")
	parent := fx.CreateParent(ctx, "Pat Parent", "pat@example.com", student.ID)
	enr := fx.CreateEnrollment(ctx, parent.ID, student.ID, group, models.EnrollmentActive)

	charge := models.Charge{
		InvoiceID:    "in_100",
		Amount:       10000,
		Currency:     "usd",
		TeacherShare: 9000,
		PlatformFee:  1000,
		PaidAt:       time.Now().UTC().Truncate(time.Millisecond),
	}

	added, err := store.AppendChargeIfAbsent(ctx, enr.ID, charge)
	if err != nil {
		t.Fatalf("AppendChargeIfAbsent failed: %v", err)
	}
	if !added {
		t.Fatal("first append should record the charge")
	}

	// Same invoice delivered again: exactly one charge must remain.
	added, err = store.AppendChargeIfAbsent(ctx, enr.ID, charge)
	if err != nil {
		t.Fatalf("AppendChargeIfAbsent failed: %v", err)
	}
	if added {
		t.Error("duplicate invoice must not append")
	}

	got, err := store.GetByID(ctx, enr.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(got.Charges) != 1 {
		t.Fatalf("charges: got %d, want 1", len(got.Charges))
	}
	if got.Charges[0].TeacherShare+got.Charges[0].PlatformFee != got.Charges[0].Amount {
		t.Error("charge split does not conserve the invoice amount")
	}
	if got.PaidAt == nil {
		t.Error("paid_at not set")
	}

	// A different invoice still appends.
	charge.InvoiceID = "in_101"
	added, err = store.AppendChargeIfAbsent(ctx, enr.ID, charge)
	if err != nil {
		t.Fatalf("AppendChargeIfAbsent failed: %v", err)
	}
	if !added {
		t.Error("new invoice should append")
	}
}

func TestApplySubscriptionState_TerminalGuard(t *testing.T) {
	store, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	teacher := fx.CreateTeacher(ctx, "Terry Teacher", "terry@example.com")
	group := fx.CreateGroup(ctx, "Chess Club", teacher.ID, 5000, 10)
	student := fx.CreateStudent(ctx, "Sam Student", "sam@example.com")
	parent := fx.CreateParent(ctx, "Pat Parent", "pat@example.com", student.ID)
	enr := fx.CreateEnrollment(ctx, parent.ID, student.ID, group, models.EnrollmentCanceled)

	start := time.Now().UTC()
	end := start.AddDate(0, 1, 0)
	changed, err := store.ApplySubscriptionState(ctx, enr.ID, enrollmentstore.SubscriptionState{
		Status:             models.EnrollmentActive,
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
	})
	if err != nil {
		t.Fatalf("ApplySubscriptionState failed: %v", err)
	}
	if changed {
		t.Error("canceled enrollment must not be resurrected")
	}

	got, err := store.GetByID(ctx, enr.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != models.EnrollmentCanceled {
		t.Errorf("status: got %q, want canceled", got.Status)
	}
}

func TestApplySubscriptionState_MirrorsPeriod(t *testing.T) {
	store, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	teacher := fx.CreateTeacher(ctx, "Terry Teacher", "terry@example.com")
	group := fx.CreateGroup(ctx, "Chess Club", teacher.ID, 5000, 10)
	student := fx.CreateStudent(ctx, "Sam Student", "sam@example.com")
	parent := fx.CreateParent(ctx, "Pat Parent", "pat@example.com", student.ID)
	enr := fx.CreateEnrollment(ctx, parent.ID, student.ID, group, models.EnrollmentIncomplete)

	start := time.Now().UTC().Truncate(time.Millisecond)
	end := start.AddDate(0, 1, 0)
	changed, err := store.ApplySubscriptionState(ctx, enr.ID, enrollmentstore.SubscriptionState{
		Status:             models.EnrollmentActive,
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
		CancelAtPeriodEnd:  true,
	})
	if err != nil {
		t.Fatalf("ApplySubscriptionState failed: %v", err)
	}
	if !changed {
		t.Fatal("expected state to apply")
	}

	got, err := store.GetByID(ctx, enr.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != models.EnrollmentActive {
		t.Errorf("status: got %q, want active", got.Status)
	}
	if got.CurrentPeriodStart == nil || !got.CurrentPeriodStart.Equal(start) {
		t.Errorf("period start not mirrored: %v", got.CurrentPeriodStart)
	}
	if got.CurrentPeriodEnd == nil || !got.CurrentPeriodEnd.Equal(end) {
		t.Errorf("period end not mirrored: %v", got.CurrentPeriodEnd)
	}
	if !got.CancelAtPeriodEnd {
		t.Error("cancel_at_period_end not mirrored")
	}
}

func TestGetBySubscriptionID(t *testing.T) {
	store, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	teacher := fx.CreateTeacher(ctx, "Terry Teacher", "terry@example.com")
	group := fx.CreateGroup(ctx, "Chess Club", teacher.ID, 5000, 10)
	student := fx.CreateStudent(ctx, "Sam Student", "sam@example.com")
	parent := fx.CreateParent(ctx, "Pat Parent", "pat@example.com", student.ID)
	enr := fx.CreateEnrollment(ctx, parent.ID, student.ID, group, models.EnrollmentIncomplete)

	if err := store.LinkSubscription(ctx, enr.ID, "sub_42"); err != nil {
		t.Fatalf("LinkSubscription failed: %v", err)
	}

	got, err := store.GetBySubscriptionID(ctx, "sub_42")
	if err != nil {
		t.Fatalf("GetBySubscriptionID failed: %v", err)
	}
	if got.ID != enr.ID {
		t.Errorf("resolved wrong enrollment")
	}

	_, err = store.GetBySubscriptionID(ctx, "sub_unknown")
	if !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("expected ErrNoDocuments for unknown subscription, got %v", err)
	}
}

func TestListByParent_NewestFirst(t *testing.T) {
	store, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	teacher := fx.CreateTeacher(ctx, "Terry Teacher", "terry@example.com")
	group := fx.CreateGroup(ctx, "Chess Club", teacher.ID, 5000, 10)
	s1 := fx.CreateStudent(ctx, "Sam Student", "sam@example.com")
	s2 := fx.CreateStudent(ctx, "Sal Student", "sal@example.com")
	parent := fx.CreateParent(ctx, "Pat Parent", "pat@example.com", s1.ID, s2.ID)
	other := fx.CreateParent(ctx, "Odd One", "odd@example.com")

	fx.CreateEnrollment(ctx, parent.ID, s1.ID, group, models.EnrollmentActive)
	fx.CreateEnrollment(ctx, parent.ID, s2.ID, group, models.EnrollmentIncomplete)
	fx.CreateEnrollment(ctx, other.ID, primitive.NewObjectID(), group, models.EnrollmentActive)

	list, err := store.ListByParent(ctx, parent.ID)
	if err != nil {
		t.Fatalf("ListByParent failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("enrollments: got %d, want 2", len(list))
	}
}

func TestListByStudent(t *testing.T) {
	store, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	teacher := fx.CreateTeacher(ctx, "Terry Teacher", "terry@example.com")
	group := fx.CreateGroup(ctx, "Chess Club", teacher.ID, 5000, 10)
	s1 := fx.CreateStudent(ctx, "Sam Student", "sam@example.com")
	s2 := fx.CreateStudent(ctx, "Sal Student", "sal@example.com")
	parent := fx.CreateParent(ctx, "Pat Parent", "pat@example.com", s1.ID, s2.ID)

	fx.CreateEnrollment(ctx, parent.ID, s1.ID, group, models.EnrollmentActive)
	fx.CreateEnrollment(ctx, parent.ID, s2.ID, group, models.EnrollmentActive)

	list, err := store.ListByStudent(ctx, s1.ID)
	if err != nil {
		t.Fatalf("ListByStudent failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("enrollments: got %d, want 1", len(list))
	}
	if list[0].StudentID != s1.ID {
		t.Errorf("listed wrong student: %v", list[0].StudentID)
	}
}
