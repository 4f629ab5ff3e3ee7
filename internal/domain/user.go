package domain

import "time"

type PlanType string

const (
	PlanFree PlanType = "FREE"
	PlanPaid PlanType = "PAID"
)

type User struct {
	ID               string
	Phone            string // chat identity (Telegram chat id as string)
	Name             string
	PlanType         PlanType
	FirstContactSent bool
	FeedToken        string
	CreatedAt        time.Time
}
