package indexes_test

import (
	"testing"

	"github.com/tutorhub/tutorhub/internal/app/system/indexes"
	"github.com/tutorhub/tutorhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestEnsureAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// EnsureAll should succeed on a clean database
	err := indexes.EnsureAll(ctx, db)
	if err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// First call
	err := indexes.EnsureAll(ctx, db)
	if err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}

	// Second call should also succeed (idempotent)
	err = indexes.EnsureAll(ctx, db)
	if err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func listIndexNames(t *testing.T, db *mongo.Database, coll string) map[string]bool {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cur, err := db.Collection(coll).Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes failed: %v", err)
	}
	defer cur.Close(ctx)

	names := make(map[string]bool)
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		if name, ok := idx["name"].(string); ok {
			names[name] = true
		}
	}
	return names
}

func TestEnsureAll_CreatesUserIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	names := listIndexNames(t, db, "users")
	for _, want := range []string{
		"uniq_users_email",
		"idx_users_customer",
		"idx_users_role_id",
	} {
		if !names[want] {
			t.Errorf("expected index %q to exist on users collection", want)
		}
	}
}

func TestEnsureAll_CreatesGroupIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	names := listIndexNames(t, db, "groups")
	for _, want := range []string{
		"idx_groups_teacher_id",
		"idx_groups_course_status_id",
		"idx_groups_students",
	} {
		if !names[want] {
			t.Errorf("expected index %q to exist on groups collection", want)
		}
	}
}

func TestEnsureAll_CreatesEnrollmentIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	names := listIndexNames(t, db, "enrollments")
	for _, want := range []string{
		"uniq_enroll_subscription",
		"idx_enroll_checkout_session",
		"idx_enroll_student_course_status",
		"idx_enroll_parent_created",
		"idx_enroll_teacher_created",
	} {
		if !names[want] {
			t.Errorf("expected index %q to exist on enrollments collection", want)
		}
	}
}

func TestEnsureAll_SubscriptionIndexIsUnique(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	cur, err := db.Collection("enrollments").Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes failed: %v", err)
	}
	defer cur.Close(ctx)

	found := false
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		if name, _ := idx["name"].(string); name == "uniq_enroll_subscription" {
			found = true
			if unique, _ := idx["unique"].(bool); !unique {
				t.Error("uniq_enroll_subscription should be unique")
			}
		}
	}
	if !found {
		t.Fatal("uniq_enroll_subscription index not found")
	}
}
