package models

// StudentStatus is the lifecycle status of a student record.
type StudentStatus string

const (
	StudentActive    StudentStatus = "ACTIVE"
	StudentInactive  StudentStatus = "INACTIVE"
	StudentSuspended StudentStatus = "SUSPENDED"
	StudentGraduated StudentStatus = "GRADUATED"
)

// FeeStatus is the tuition payment state of a student record.
type FeeStatus string

const (
	FeePaid    FeeStatus = "PAID"
	FeePending FeeStatus = "PENDING"
	FeeOverdue FeeStatus = "OVERDUE"
)

// Student is the downstream record created when a lead enrolls.
type Student struct {
	StudentID      string        `json:"studentId"`
	FirstName      string        `json:"firstName"`
	LastName       string        `json:"lastName"`
	Email          string        `json:"email"`
	Phone          string        `json:"phone,omitempty"`
	Program        string        `json:"program"`
	EnrollmentDate string        `json:"enrollmentDate,omitempty"`
	Status         StudentStatus `json:"status"`
	FeeStatus      FeeStatus     `json:"feeStatus"`
	GuardianName   string        `json:"guardianName,omitempty"`
}
