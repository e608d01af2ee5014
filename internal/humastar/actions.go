package humastar

import (
	"fmt"
	"strings"
)

// Action is a link to something a client can do with a resource in its
// current state. Response bodies that implement Actor have their actions
// appended as RFC 8288 Link headers by the Links transformer:
//
//	</api/v1/viewer/layers/tears/visibility>; rel="show"; method="POST"; title="Show layer"; signals="{\"checked\":true}"
type Action struct {
	Rel     string
	Href    string
	Method  string // empty means GET
	Title   string
	Signals string // Datastar signals JSON to post, if any
}

// Actor is implemented by response bodies that offer actions.
type Actor interface {
	Actions() []Action
}

// LinkHeader formats the action as a Link header value.
func (a Action) LinkHeader() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<%s>; rel="%s"`, a.Href, a.Rel)
	for _, p := range [][2]string{{"method", a.Method}, {"title", a.Title}, {"signals", a.Signals}} {
		if p[1] != "" {
			fmt.Fprintf(&b, `; %s="%s"`, p[0], quote(p[1]))
		}
	}
	return b.String()
}

// quote escapes a quoted-string parameter value.
func quote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// ActionDef is an Action with a %s placeholder for the resource ID in Href.
type ActionDef Action

// For fills in the resource ID.
func (d ActionDef) For(id string) Action {
	a := Action(d)
	a.Href = fmt.Sprintf(d.Href, id)
	return a
}

// ActionsFor instantiates defs for one resource ID.
func ActionsFor(id string, defs ...ActionDef) []Action {
	actions := make([]Action, len(defs))
	for i, d := range defs {
		actions[i] = d.For(id)
	}
	return actions
}

// Layer actions. Show and hide share a URL and differ in the checkbox
// signal they post.
var (
	ShowLayer = ActionDef{
		Rel:     "show",
		Href:    "/api/v1/viewer/layers/%s/visibility",
		Method:  "POST",
		Title:   "Show layer",
		Signals: `{"checked":true}`,
	}
	HideLayer = ActionDef{
		Rel:     "hide",
		Href:    "/api/v1/viewer/layers/%s/visibility",
		Method:  "POST",
		Title:   "Hide layer",
		Signals: `{"checked":false}`,
	}
	LayerData = ActionDef{
		Rel:   "data",
		Href:  "/api/v1/layers/%s/data",
		Title: "Layer GeoJSON",
	}
)
