package testutil

import (
	"sync"

	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/juhiii45/EcoReborn/internal/app/resources"
	"go.uber.org/zap"
)

var engine struct {
	once sync.Once
	err  error
}

// MustBootTemplates installs the shared layout and every feature template
// registered so far, once per test binary. Feature packages register their
// own templates from init, so importing the package under test is enough.
func MustBootTemplates(t interface{ Fatalf(string, ...any) }) {
	engine.once.Do(func() {
		resources.LoadSharedTemplates()
		eng := templates.New(false)
		if engine.err = eng.Boot(zap.NewNop()); engine.err == nil {
			templates.UseEngine(eng, zap.NewNop())
		}
	})
	if engine.err != nil {
		t.Fatalf("boot templates: %v", engine.err)
	}
}
