package panel

import (
	"bytes"
	"html/template"
	"strconv"
)

const LoadingText = "Loading..."

var panelTmpl = template.Must(template.New("panel").Funcs(template.FuncMap{
	"num": FormatNumber,
}).Parse(`<section class="weather" data-state="{{.State}}">
{{- if eq .State.String "loading"}}<p class="loading">` + LoadingText + `</p>
{{- else if eq .State.String "failed"}}<p class="error">Unable to load weather: {{.Err}}</p>
{{- else}}
<h2 class="location">{{.Record.Location}}</h2>
<div class="temp"><span class="value">{{num .Record.Temperature}}</span><sup>°</sup></div>
<p class="description">{{.Record.Description}}</p>
<div class="details">
<div class="wind"><p class="value">{{num .Record.WindSpeed}}</p><p class="label">Wind Speed</p></div>
<div class="humidity"><p class="value">{{.Record.Humidity}}%</p><p class="label">Humidity</p></div>
</div>
{{- end}}
</section>`))

// FormatNumber печатает число в кратчайшей точной форме: 30, 20.5
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (v View) HTML() (template.HTML, error) {
	var buf bytes.Buffer
	if err := panelTmpl.Execute(&buf, v); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func (p *Panel) HTML() (template.HTML, error) {
	return p.View().HTML()
}
