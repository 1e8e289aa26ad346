// Package mockportal serves a minimal stand-in for the Minerva add/drop
// pages so the agent can be exercised end to end without the real portal.
package mockportal

import (
	"html/template"
	"net/http"
	"slices"
	"strings"
	"sync"

	"regsniper/internal/logbus"
)

const (
	RegistrationPath = "/pban1/bwskfreg.P_AltPin"
	SubmitPath       = "/pban1/bwckcoms.P_Regs"

	fieldCount = 10
)

type Options struct {
	// Full lists CRNs that start with no seats.
	Full []string
	// OpenAfter opens full sections once this many submissions were made. 0 never opens them.
	OpenAfter int
	Bus       *logbus.Bus
}

type Portal struct {
	opts Options

	mu          sync.Mutex
	full        map[string]bool
	registered  map[string]bool
	waitlisted  map[string]bool
	submissions int
}

func New(opts Options) *Portal {
	p := &Portal{
		opts:       opts,
		full:       make(map[string]bool),
		registered: make(map[string]bool),
		waitlisted: make(map[string]bool),
	}
	for _, crn := range opts.Full {
		if crn = strings.TrimSpace(crn); crn != "" {
			p.full[crn] = true
		}
	}
	return p
}

func (p *Portal) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(RegistrationPath, p.handleRegistration)
	mux.HandleFunc(SubmitPath, p.handleSubmit)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, RegistrationPath, http.StatusFound)
	})
	return mux
}

// Registered reports the CRNs registered so far, sorted.
func (p *Portal) Registered() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return sortedKeys(p.registered)
}

func (p *Portal) Waitlisted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return sortedKeys(p.waitlisted)
}

type resultRow struct {
	CRN      string
	Status   string
	Waitlist bool
}

type pageData struct {
	Action  string
	Fields  []int
	Current []string
	Results []resultRow
}

func (p *Portal) handleRegistration(w http.ResponseWriter, r *http.Request) {
	p.render(w, pageData{Current: p.Registered()})
}

func (p *Portal) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, RegistrationPath, http.StatusFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("REG_BTN") != "Submit Changes" {
		p.render(w, pageData{Current: p.Registered()})
		return
	}

	crns := r.PostForm["CRN_IN"]
	actions := r.PostForm["RSTS_IN"]

	p.mu.Lock()
	p.submissions++
	if p.opts.OpenAfter > 0 && p.submissions >= p.opts.OpenAfter {
		clear(p.full)
	}
	var rows []resultRow
	for i, crn := range crns {
		crn = strings.TrimSpace(crn)
		if crn == "" {
			continue
		}
		action := ""
		if i < len(actions) {
			action = actions[i]
		}
		switch {
		case p.registered[crn]:
			rows = append(rows, resultRow{CRN: crn, Status: "Already registered"})
		case action == "LW":
			p.waitlisted[crn] = true
			rows = append(rows, resultRow{CRN: crn, Status: "Waitlisted"})
		case p.full[crn]:
			rows = append(rows, resultRow{CRN: crn, Status: "Closed - Waitlist Available", Waitlist: true})
		default:
			p.registered[crn] = true
			delete(p.waitlisted, crn)
			rows = append(rows, resultRow{CRN: crn, Status: "Registered"})
		}
	}
	n := p.submissions
	current := sortedKeys(p.registered)
	p.mu.Unlock()

	if p.opts.Bus != nil {
		p.opts.Bus.Log("info", "mock submission", map[string]any{
			"submission": n,
			"crns":       crns,
			"rows":       len(rows),
		})
	}
	p.render(w, pageData{Current: current, Results: rows})
}

func (p *Portal) render(w http.ResponseWriter, data pageData) {
	data.Action = SubmitPath
	data.Fields = make([]int, fieldCount)
	for i := range data.Fields {
		data.Fields[i] = i + 1
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTpl.Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Each results row carries its own CRN_IN so the waitlist choice travels with
// the CRN on resubmission. New CRNs go into the crn_id fields.
var pageTpl = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Add or Drop Classes</title></head>
<body>
<form method="post" action="{{ .Action }}">
  <h2>Current Schedule</h2>
  <ul>{{ range .Current }}<li>{{ . }}</li>{{ end }}</ul>
  {{ if .Results }}
  <table class="datadisplaytable" summary="Registration Add Errors">
    <tr><th>Status</th><th>CRN</th><th>Action</th></tr>
    {{ range .Results }}
    <tr>
      <td>{{ .Status }}</td>
      <td>{{ .CRN }}<input type="hidden" name="CRN_IN" value="{{ .CRN }}"></td>
      <td>{{ if .Waitlist }}<select name="RSTS_IN"><option value="">None</option><option value="LW">Web Waitlisted</option></select>{{ else }}<input type="hidden" name="RSTS_IN" value="">{{ end }}</td>
    </tr>
    {{ end }}
  </table>
  {{ end }}
  <h2>Add Classes Worksheet</h2>
  <table>
    <tr>{{ range .Fields }}<td><input type="text" name="CRN_IN" id="crn_id{{ . }}" size="8" maxlength="5"><input type="hidden" name="RSTS_IN" value=""></td>{{ end }}</tr>
  </table>
  <input type="submit" name="REG_BTN" value="Submit Changes">
  <input type="submit" name="REG_BTN" value="Class Search">
  <input type="reset" value="Reset">
</form>
</body>
</html>
`))
