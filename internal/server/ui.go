package server

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/joseph-ayodele/contracts-extractor/constants"
	"github.com/joseph-ayodele/contracts-extractor/internal/common"
	"github.com/joseph-ayodele/contracts-extractor/internal/pipeline"
)

type pageData struct {
	Options pipeline.Options
	Error   string
	Outcome *pipeline.Outcome
	JSON    string
}

func newResultPage(out *pipeline.Outcome) pageData {
	b, err := json.MarshalIndent(out.Result(), "", "  ")
	if err != nil {
		b = []byte("{}")
	}
	return pageData{Options: out.Options, Outcome: out, JSON: string(b)}
}

type ui struct {
	tmpl *template.Template
}

func newUI(maxUploadBytes int64) *ui {
	funcs := template.FuncMap{
		"dpiChoices": func() []int {
			var out []int
			for d := constants.MinDPI; d <= constants.MaxDPI; d += constants.DPIStep {
				out = append(out, d)
			}
			return out
		},
		"maxPageCap":  func() int { return constants.MaxPageCap },
		"maxUploadMB": func() int64 { return maxUploadBytes >> 20 },
	}
	return &ui{tmpl: template.Must(template.New("index").Funcs(funcs).Parse(indexHTML))}
}

func (u *ui) render(w http.ResponseWriter, r *http.Request, status int, data pageData, logger *slog.Logger) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := u.tmpl.Execute(w, data); err != nil {
		common.LoggerFrom(r.Context(), logger).Error("http.render.failed", "error", err)
	}
}

const indexHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Contract extractor</title>
<style>
body { font-family: sans-serif; margin: 2rem; max-width: 72rem; }
.cols { display: flex; gap: 2rem; }
.cols > div { flex: 1; min-width: 0; }
textarea { width: 100%; height: 28rem; font-family: monospace; }
pre { background: #f4f4f4; padding: 1rem; overflow-x: auto; }
.error { color: #a00; }
.warn { color: #a60; }
</style>
</head>
<body>
<h1>Contract extractor</h1>
<p>Upload a PDF contract (up to {{maxUploadMB}} MB) to extract its key fields.</p>
{{with .Error}}<p class="error">{{.}}</p>{{end}}
<form method="post" action="/extract" enctype="multipart/form-data">
  <p><input type="file" name="file" accept="application/pdf" required></p>
  <p>
    <label>OCR DPI
      <select name="dpi">
        {{- $dpi := .Options.DPI}}
        {{- range dpiChoices}}
        <option value="{{.}}"{{if eq . $dpi}} selected{{end}}>{{.}}</option>
        {{- end}}
      </select>
    </label>
    <label>Max pages <input type="number" name="max_pages" min="1" max="{{maxPageCap}}" value="{{.Options.MaxPages}}"></label>
  </p>
  <p>
    <label><input type="checkbox" name="enhanced"{{if .Options.Enhanced}} checked{{end}}> Enhanced mode for scans</label>
    <label><input type="checkbox" name="force_ocr"{{if .Options.ForceOCR}} checked{{end}}> Ignore embedded text (force OCR)</label>
  </p>
  <p><button type="submit">Extract</button></p>
</form>
{{with .Outcome}}
<hr>
<h2>{{.Filename}}{{if .Cached}} (cached){{end}}</h2>
{{with .Error}}<p class="error">{{.}}</p>{{end}}
<div class="cols">
  <div>
    <h3>Extracted text</h3>
    <textarea readonly>{{.Text}}</textarea>
  </div>
  <div>
    <h3>Structured data</h3>
    <pre>{{$.JSON}}</pre>
    <ul>
      <li>Status: {{.Status}}</li>
      <li>Pages processed: {{.Metrics.PagesProcessed}} of {{.Metrics.PagesTotal}} ({{.Metrics.OCRPages}} via OCR)</li>
      <li>Total characters: {{.Metrics.TotalChars}}</li>
      <li>Fields found: {{.Metrics.FieldsFound}}/{{.Metrics.FieldsTotal}}</li>
      <li>Time: {{.Metrics.TotalMS}} ms (text {{.Metrics.TextMS}} ms, model {{.Metrics.LLMMS}} ms)</li>
      {{with .Model}}<li>Model: {{.}}</li>{{end}}
    </ul>
    {{with .Warnings}}
    <h4>Warnings</h4>
    <ul>{{range .}}<li class="warn">{{.}}</li>{{end}}</ul>
    {{end}}
  </div>
</div>
{{end}}
</body>
</html>
`
