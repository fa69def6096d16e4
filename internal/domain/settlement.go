package domain

import "time"

// SettlementRecord is the audit entry written for every applied settlement.
// Outcomes are simulated; Roll is the random draw compared to SuccessRate.
type SettlementRecord struct {
	ID          string        `json:"id" bson:"_id"`
	OrderID     int64         `json:"order_id" bson:"order_id"`
	Outcome     OrderStatus   `json:"outcome" bson:"outcome"`
	Roll        float64       `json:"roll" bson:"roll"`
	SuccessRate float64       `json:"success_rate" bson:"success_rate"`
	Delay       time.Duration `json:"delay_ns" bson:"delay_ns"`
	Simulated   bool          `json:"simulated" bson:"simulated"`
	SettledAt   time.Time     `json:"settled_at" bson:"settled_at"`
}
