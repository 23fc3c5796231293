package notify

import (
	"sync"

	"github.com/osteele/liquid"
)

// renderer applies {{ expr }} templates to event payloads with dotted-path
// member access. Parsed templates are cached by source string; rendering is
// deterministic for a given source and value set.
type renderer struct {
	engine *liquid.Engine
	cache  sync.Map // template source -> *liquid.Template
}

func newRenderer() *renderer {
	return &renderer{engine: liquid.NewEngine()}
}

func (r *renderer) render(source string, values map[string]any) (string, error) {
	if cached, ok := r.cache.Load(source); ok {
		return cached.(*liquid.Template).RenderString(values)
	}

	tpl, err := r.engine.ParseString(source)
	if err != nil {
		return "", err
	}
	r.cache.Store(source, tpl)
	return tpl.RenderString(values)
}
