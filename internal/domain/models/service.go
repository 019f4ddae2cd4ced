// internal/domain/models/service.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Service is one entry of the public service catalog ("/services").
type Service struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Slug        string             `bson:"slug" json:"slug"` // e.g. "fabric-recycling"
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	Pricing     string             `bson:"pricing" json:"pricing"`
	Position    int                `bson:"position" json:"position"` // display order, ascending

	UpdatedAt *time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Catalog slugs
const (
	ServiceFabricRecycling  = "fabric-recycling"
	ServiceCustomFabric     = "custom-fabric"
	ServiceB2BPartnerships  = "b2b-partnerships"
	ServiceConsulting       = "consulting"
	ServiceCollectionDrives = "collection-drives"
)

// DefaultServices is the catalog seeded on first start.
func DefaultServices() []Service {
	return []Service{
		{
			Slug:        ServiceFabricRecycling,
			Name:        "Fabric Recycling",
			Description: "We collect and recycle discarded textiles, converting them into high-quality fibers for re-spinning. Perfect for fashion brands looking to reduce waste.",
			Pricing:     "Volume-based pricing. Contact us for a custom quote.",
			Position:    1,
		},
		{
			Slug:        ServiceCustomFabric,
			Name:        "Custom Re-spun Fabric Orders",
			Description: "Order custom re-spun fabrics made from recycled materials. Choose your specifications, colors, and quantities.",
			Pricing:     "Starting from ₹800/meter. Minimum order: 100 meters.",
			Position:    2,
		},
		{
			Slug:        ServiceB2BPartnerships,
			Name:        "B2B Partnerships",
			Description: "Partner with us to integrate sustainable practices into your supply chain. We work with fashion brands, manufacturers, and retailers.",
			Pricing:     "Custom partnership packages available.",
			Position:    3,
		},
		{
			Slug:        ServiceConsulting,
			Name:        "Consulting for Textile Brands",
			Description: "Expert consulting on sustainable textile practices, circular economy implementation, and waste reduction strategies.",
			Pricing:     "₹15,000/day or custom project rates.",
			Position:    4,
		},
		{
			Slug:        ServiceCollectionDrives,
			Name:        "Student/Community Collection Drives",
			Description: "We organize and support textile collection drives for schools, colleges, and community organizations. Educational workshops included.",
			Pricing:     "Free for educational institutions and nonprofits.",
			Position:    5,
		},
	}
}
