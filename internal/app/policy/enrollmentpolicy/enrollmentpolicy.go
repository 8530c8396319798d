// internal/app/policy/enrollmentpolicy/enrollmentpolicy.go
package enrollmentpolicy

import (
	"net/http"

	"github.com/tutorhub/tutorhub/internal/app/system/authz"
	"github.com/tutorhub/tutorhub/internal/domain/models"
)

// CanManageEnrollment reports whether the current request user can cancel or
// renew an enrollment:
// - Admins always can
// - Parents can only for enrollments they created
func CanManageEnrollment(r *http.Request, e models.Enrollment) bool {
	role, _, uid, ok := authz.UserCtx(r)
	if !ok {
		return false
	}
	if role == authz.RoleAdmin {
		return true
	}
	if role != authz.RoleParent {
		return false
	}
	return uid == e.ParentID
}

// CanViewEnrollment reports whether the current request user may read an
// enrollment. The enrolled student and the group's teacher get read access
// in addition to the owning parent and admins.
func CanViewEnrollment(r *http.Request, e models.Enrollment) bool {
	role, _, uid, ok := authz.UserCtx(r)
	if !ok {
		return false
	}
	switch role {
	case authz.RoleAdmin:
		return true
	case authz.RoleParent:
		return uid == e.ParentID
	case authz.RoleStudent:
		return uid == e.StudentID
	case authz.RoleTeacher:
		return uid == e.TeacherID
	}
	return false
}
