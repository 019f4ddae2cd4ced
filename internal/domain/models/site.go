// internal/domain/models/site.go
package models

// Site-wide display defaults.
const (
	DefaultSiteName = "Ecoreborn"
	DefaultTagline  = "Reborn fabrics. Reborn future."
)
