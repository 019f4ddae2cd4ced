package contact

import (
	"embed"

	"github.com/juhiii45/EcoReborn/internal/app/resources"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

func init() { resources.RegisterFeature("contact", templateFS) }
