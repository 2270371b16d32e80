package archive

import (
	"time"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/delivery"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/envelope"
	"gorm.io/datatypes"
)

// Record is one archived dead letter.
type Record struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement"`
	MessageID        string    `gorm:"size:64;index"`
	Queue            string    `gorm:"size:255;index"`
	OriginExchange   string    `gorm:"size:255"`
	OriginRoutingKey string    `gorm:"size:255"`
	RetryCount       int       `gorm:"not null;default:0"`
	Reason           string    `gorm:"size:64"`
	Malformed        bool      `gorm:"not null;default:false"`
	Body             []byte    `gorm:""`
	Headers          datatypes.JSONMap
	ReceivedAt       time.Time `gorm:"index;not null"`
}

// TableName pins the table name.
func (Record) TableName() string {
	return "dead_letters"
}

// DeadLetter converts the record back. Header values come back as decoded
// JSON, so integers read from the database are float64.
func (r Record) DeadLetter() delivery.DeadLetter {
	return delivery.DeadLetter{
		MessageID:  r.MessageID,
		Queue:      r.Queue,
		Origin:     envelope.Route{Exchange: r.OriginExchange, RoutingKey: r.OriginRoutingKey},
		RetryCount: r.RetryCount,
		Reason:     r.Reason,
		Body:       r.Body,
		Headers:    map[string]interface{}(r.Headers),
		ReceivedAt: r.ReceivedAt,
		Malformed:  r.Malformed,
	}
}

func newRecord(dl delivery.DeadLetter) Record {
	rec := Record{
		MessageID:        dl.MessageID,
		Queue:            dl.Queue,
		OriginExchange:   dl.Origin.Exchange,
		OriginRoutingKey: dl.Origin.RoutingKey,
		RetryCount:       dl.RetryCount,
		Reason:           dl.Reason,
		Malformed:        dl.Malformed,
		Body:             dl.Body,
		ReceivedAt:       dl.ReceivedAt.UTC(),
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	if len(dl.Headers) > 0 {
		rec.Headers = datatypes.JSONMap(dl.Headers)
	}
	return rec
}
