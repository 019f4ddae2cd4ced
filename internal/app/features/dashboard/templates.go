package dashboard

import (
	"embed"

	"github.com/juhiii45/EcoReborn/internal/app/resources"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

func init() { resources.RegisterFeature("dashboard", templateFS) }
