package model

import "time"

// Appointment statuses. The lifecycle is
// Pending -> Confirmed -> Ongoing -> Completed, with Cancelled reachable from
// any non-terminal state. Payment-confirmed bookings are created Completed
// directly.
const (
	StatusPending   = "Pending"
	StatusConfirmed = "Confirmed"
	StatusOngoing   = "Ongoing"
	StatusCompleted = "Completed"
	StatusCancelled = "Cancelled"
)

// Payment plans.
const (
	PlanFull     = "Full"
	PlanHalf     = "Half"
	PlanBookOnly = "BookOnly"
)

// Client segments.
const (
	ClientGents  = "Gents"
	ClientLadies = "Ladies"
)

// ServiceCategories is the fixed set of bookable service categories.
// Sub-services are free text scoped to a category.
var ServiceCategories = []string{
	"Haircuts & Styling",
	"Hair Color Services",
	"Ladies hair chemical services",
	"Hair extension services",
}

func ValidService(name string) bool {
	for _, s := range ServiceCategories {
		if s == name {
			return true
		}
	}
	return false
}

func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusOngoing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func ValidPlan(p string) bool {
	return p == PlanFull || p == PlanHalf || p == PlanBookOnly
}

func ValidClientType(t string) bool {
	return t == ClientGents || t == ClientLadies
}

// Appointment is one reserved service slot. Date carries the calendar day at
// midnight in the business timezone; StartTime/EndTime are wall-clock labels
// like "9:00 AM".
type Appointment struct {
	ID          string
	Stylist     string
	Service     string
	SubService  string
	Date        time.Time
	StartTime   string
	EndTime     string
	ClientType  string
	PaymentPlan string
	AmountPaid  float64
	AmountDue   float64
	Status      string
	OwnerID     string
	CreatedAt   time.Time
}
