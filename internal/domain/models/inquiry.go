// internal/domain/models/inquiry.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Contact message statuses
const (
	MessageUnread = "unread"
	MessageRead   = "read"
)

// ContactMessage is a submission of the contact form.
// Attachment is the storage path of the uploaded file, empty when none was sent.
type ContactMessage struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name           string             `bson:"name" json:"name"`
	Email          string             `bson:"email" json:"email"`
	Subject        string             `bson:"subject" json:"subject"`
	Message        string             `bson:"message" json:"message"`
	Attachment     string             `bson:"attachment,omitempty" json:"attachment,omitempty"`
	AttachmentName string             `bson:"attachment_name,omitempty" json:"attachment_name,omitempty"`
	Status         string             `bson:"status" json:"status"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

// Service request statuses. Requests are created pending; the later states
// are set by hand in the database for now.
const (
	RequestPending   = "pending"
	RequestContacted = "contacted"
	RequestCompleted = "completed"
)

// ServiceRequest is a quote or engagement request for one catalog service.
type ServiceRequest struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ServiceSlug string             `bson:"service_slug" json:"service_slug"`
	ServiceName string             `bson:"service_name" json:"service_name"`
	Name        string             `bson:"name" json:"name"`
	Email       string             `bson:"email" json:"email"` // normalized; dashboard matches on it
	Phone       string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Company     string             `bson:"company,omitempty" json:"company,omitempty"`
	Message     string             `bson:"message" json:"message"`
	Status      string             `bson:"status" json:"status"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

// NewsletterSubscriber is one newsletter address. Unsubscribing keeps the
// document and flips Unsubscribed so a later subscribe can reactivate it.
type NewsletterSubscriber struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	Unsubscribed bool               `bson:"unsubscribed" json:"unsubscribed"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}
