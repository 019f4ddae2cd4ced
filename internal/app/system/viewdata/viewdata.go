// internal/app/system/viewdata/viewdata.go
package viewdata

import (
	"net/http"
	"time"

	"github.com/dalemusser/waffle/pantry/httpnav"
	"github.com/gorilla/csrf"
	"github.com/juhiii45/EcoReborn/internal/app/system/auth"
	"github.com/juhiii45/EcoReborn/internal/app/system/authz"
	"github.com/juhiii45/EcoReborn/internal/domain/models"
)

// BaseVM is embedded by every page view model; layout_head and the menu
// read it.
type BaseVM struct {
	SiteName string
	Tagline  string
	Year     int

	IsLoggedIn bool
	IsAdmin    bool
	UserID     string
	UserName   string
	Email      string
	Role       string

	Title       string
	BackURL     string
	CurrentPath string

	CSRFToken string

	// Flashes queued by the previous request.
	Flashes []auth.Flash
}

// NewBaseVM fills the chrome for a titled page. It consumes the queued
// flashes, so call it before writing the response body.
func NewBaseVM(r *http.Request, title, backDefault string) BaseVM {
	vm := New(r)
	vm.Title = title
	vm.BackURL = httpnav.ResolveBackURL(r, backDefault)
	return vm
}

// New creates a BaseVM without page title or back link.
func New(r *http.Request) BaseVM {
	who := authz.Who(r)
	vm := BaseVM{
		SiteName:    models.DefaultSiteName,
		Tagline:     models.DefaultTagline,
		Year:        time.Now().Year(),
		IsLoggedIn:  who.SignedIn(),
		IsAdmin:     who.IsAdmin(),
		UserName:    who.Name,
		Email:       who.Email,
		Role:        who.Role,
		CurrentPath: httpnav.CurrentPath(r),
		CSRFToken:   csrf.Token(r),
		Flashes:     auth.Flashes(r),
	}
	if who.SignedIn() {
		vm.UserID = who.ID.Hex()
	}
	return vm
}
