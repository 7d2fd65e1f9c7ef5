// Command docgen renders the API reference view from the @Title, @Route,
// @Description and @Response comments on the handlers in internal/api.
package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

type Endpoint struct {
	Title       string
	Route       string
	Description string
	Response    string
}

// Method is the HTTP verb of the route.
func (e Endpoint) Method() string {
	return strings.SplitN(e.Route, " ", 2)[0]
}

// Path is the route without verb and query.
func (e Endpoint) Path() string {
	p := strings.TrimPrefix(e.Route, e.Method()+" ")
	return strings.SplitN(p, "?", 2)[0]
}

// Params lists the query parameter names of the route.
func (e Endpoint) Params() []string {
	parts := strings.SplitN(e.Route, "?", 2)
	if len(parts) < 2 {
		return nil
	}
	var out []string
	for _, kv := range strings.Split(parts[1], "&") {
		if name := strings.TrimSuffix(kv, "="); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Color is the accent used for the method badge.
func (e Endpoint) Color() string {
	switch e.Method() {
	case "POST":
		return "emerald"
	case "DELETE":
		return "red"
	default:
		return "sky"
	}
}

var (
	reTitle = regexp.MustCompile(`// @Title: (.*)`)
	reRoute = regexp.MustCompile(`// @Route: (.*)`)
	reDesc  = regexp.MustCompile(`// @Description: (.*)`)
	reResp  = regexp.MustCompile(`// @Response: (.*)`)
)

// parseEndpoints scans one source file. A block ends at @Response.
func parseEndpoints(r io.Reader) ([]Endpoint, error) {
	var endpoints []Endpoint
	var current Endpoint

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		if match := reTitle.FindStringSubmatch(line); len(match) > 1 {
			current.Title = strings.TrimSpace(match[1])
		}
		if match := reRoute.FindStringSubmatch(line); len(match) > 1 {
			current.Route = strings.TrimSpace(match[1])
		}
		if match := reDesc.FindStringSubmatch(line); len(match) > 1 {
			current.Description = strings.TrimSpace(match[1])
		}
		if match := reResp.FindStringSubmatch(line); len(match) > 1 {
			current.Response = strings.TrimSpace(match[1])
			if current.Title != "" && current.Route != "" {
				endpoints = append(endpoints, current)
			}
			current = Endpoint{}
		}
	}
	return endpoints, scanner.Err()
}

func collect(apiDir string) ([]Endpoint, error) {
	files, err := filepath.Glob(filepath.Join(apiDir, "*.go"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var endpoints []Endpoint
	for _, name := range files {
		if strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		eps, err := parseEndpoints(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		endpoints = append(endpoints, eps...)
	}
	return endpoints, nil
}

var viewTemplate = template.Must(template.New("api-view").Delims("[[", "]]").Parse(`<div class="flex gap-6">
  <div class="flex-1 min-w-0">
    <div class="my-2 text-center">
      <div class="text-sm font-semibold">API Reference</div>
      <div class="text-sm text-stone-400">Generated from handler comments</div>
    </div>
    <div class="space-y-3 text-sm font-mono">
[[- range .]]
      <div class="border-l-2 border-[[.Color]]-500 pl-3 p-2 rounded cursor-pointer hover:bg-stone-800"
           data-method="[[.Method]]" data-path="[[.Path]]" data-params="[[range $i, $p := .Params]][[if $i]],[[end]][[$p]][[end]]" onclick="selectEndpoint(this)">
        <div class="text-[[.Color]]-400 font-bold">[[.Route]]</div>
        <div class="text-stone-400 text-xs mt-1">[[.Title]]: [[.Description]]</div>
        <div class="text-stone-400 text-xs mt-1">Response: [[.Response]]</div>
      </div>
[[- end]]
    </div>
  </div>
  <div class="w-80 flex-none hidden md:block">
    <div class="sticky top-4 bg-stone-800 rounded p-4 border border-stone-700 space-y-3">
      <h3 class="font-medium text-amber-400">Try It Out</h3>
      <div id="console-route" class="text-sm font-bold break-all">Select an endpoint</div>
      <div id="console-params" class="space-y-2"></div>
      <textarea id="console-body" class="w-full h-24 bg-stone-900 text-xs font-mono p-2 rounded" placeholder="{}"></textarea>
      <button class="w-full bg-amber-500 text-stone-900 font-bold py-2 rounded text-sm" onclick="submitRequest()">Send Request</button>
      <pre id="console-result" class="text-xs whitespace-pre-wrap break-all"></pre>
    </div>
  </div>
  <script>
    var apiSelected = null;
    function selectEndpoint(el) {
      apiSelected = el.dataset;
      document.getElementById('console-route').textContent = el.dataset.method + ' ' + el.dataset.path;
      const box = document.getElementById('console-params');
      box.innerHTML = '';
      for (const p of el.dataset.params.split(',').filter(Boolean)) {
        const input = document.createElement('input');
        input.name = p;
        input.placeholder = p;
        input.className = 'w-full bg-stone-900 text-xs p-1 rounded';
        box.appendChild(input);
      }
    }
    async function submitRequest() {
      if (!apiSelected) return;
      const q = new URLSearchParams();
      for (const input of document.querySelectorAll('#console-params input')) {
        if (input.value) q.set(input.name, input.value);
      }
      const opts = { method: apiSelected.method };
      const body = document.getElementById('console-body').value.trim();
      if (apiSelected.method !== 'GET' && body) {
        opts.headers = { 'Content-Type': 'application/json' };
        opts.body = body;
      }
      const resp = await fetch(apiSelected.path + (q.toString() ? '?' + q : ''), opts);
      document.getElementById('console-result').textContent = resp.status + '\n' + await resp.text();
    }
  </script>
</div>
`))

func render(w io.Writer, endpoints []Endpoint) error {
	return viewTemplate.Execute(w, endpoints)
}

func main() {
	apiDir := flag.String("api", "internal/api", "directory holding the annotated handlers")
	out := flag.String("out", "internal/web/templates/api-view.html", "output file")
	flag.Parse()

	endpoints, err := collect(*apiDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "docgen:", err)
		os.Exit(1)
	}

	var buf bytes.Buffer
	if err := render(&buf, endpoints); err != nil {
		fmt.Fprintln(os.Stderr, "docgen:", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, buf.Bytes(), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "docgen:", err)
		os.Exit(1)
	}
	fmt.Printf("Generated %s (%d endpoints)\n", *out, len(endpoints))
}
