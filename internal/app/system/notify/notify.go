// internal/app/system/notify/notify.go

// Package notify is the boundary to the platform's notification subsystem.
// The billing core only reports what happened; delivery (email, push,
// in-app) belongs to the consumer of this interface.
package notify

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Sink receives billing lifecycle notifications. Implementations must not
// block webhook processing; failures are the sink's own concern.
type Sink interface {
	EnrollmentActivated(ctx context.Context, enrollmentID, parentID, teacherID primitive.ObjectID, groupName string)
	EnrollmentCanceled(ctx context.Context, enrollmentID, parentID primitive.ObjectID)
	PaymentRecorded(ctx context.Context, enrollmentID, teacherID primitive.ObjectID, amount int64, currency string)
}

// LogSink writes notifications to the structured log. It is the default
// sink until the notification service is wired in.
type LogSink struct {
	Log *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{Log: logger}
}

func (s *LogSink) EnrollmentActivated(_ context.Context, enrollmentID, parentID, teacherID primitive.ObjectID, groupName string) {
	s.Log.Info("notify: enrollment activated",
		zap.String("enrollment_id", enrollmentID.Hex()),
		zap.String("parent_id", parentID.Hex()),
		zap.String("teacher_id", teacherID.Hex()),
		zap.String("group", groupName))
}

func (s *LogSink) EnrollmentCanceled(_ context.Context, enrollmentID, parentID primitive.ObjectID) {
	s.Log.Info("notify: enrollment canceled",
		zap.String("enrollment_id", enrollmentID.Hex()),
		zap.String("parent_id", parentID.Hex()))
}

func (s *LogSink) PaymentRecorded(_ context.Context, enrollmentID, teacherID primitive.ObjectID, amount int64, currency string) {
	s.Log.Info("notify: payment recorded",
		zap.String("enrollment_id", enrollmentID.Hex()),
		zap.String("teacher_id", teacherID.Hex()),
		zap.Int64("amount", amount),
		zap.String("currency", currency))
}
