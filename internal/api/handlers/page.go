package handlers

import (
	"context"
	"html/template"
	"net/http"

	"github.com/gometeo/widget/internal/panel"
	"github.com/gometeo/widget/internal/search"
)

const sessionCookie = "gometeo_session"

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Weather</title>
{{- if .Refresh}}
<meta http-equiv="refresh" content="1">
{{- end}}
</head>
<body>
<main class="widget">
{{.Search}}
{{.Panel}}
</main>
</body>
</html>
`))

type page struct {
	Search  template.HTML
	Panel   template.HTML
	Refresh bool
}

// Page отдает страницу с полем поиска и панелью для сессии
func (h *WeatherHandler) Page(w http.ResponseWriter, r *http.Request) {
	p := h.session(w, r, true)
	view := p.View()

	input, err := h.input(r, p).HTML()
	if err != nil {
		h.renderError(w, err)
		return
	}
	body, err := view.HTML()
	if err != nil {
		h.renderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTmpl.Execute(w, page{Search: input, Panel: body, Refresh: view.State == panel.Loading}); err != nil {
		h.logger.Error("Ошибка отрисовки страницы", "error", err)
	}
}

// Panel отдает только фрагмент панели существующей сессии
func (h *WeatherHandler) Panel(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		http.Error(w, "сессия не найдена", http.StatusNotFound)
		return
	}
	p, ok := h.sessions.Lookup(c.Value)
	if !ok {
		http.Error(w, "сессия не найдена", http.StatusNotFound)
		return
	}
	body, err := p.HTML()
	if err != nil {
		h.renderError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(body))
}

// Search принимает форму: значение поля передается панели без изменений
func (h *WeatherHandler) Search(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "неверная форма", http.StatusBadRequest)
		return
	}

	p := h.session(w, r, false)
	in := h.input(r, p)
	in.Change(r.PostForm.Get("city"))
	in.Activate()

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *WeatherHandler) input(r *http.Request, p *panel.Panel) *search.Input {
	// Запрос панели живет дольше HTTP запроса
	ctx := context.WithoutCancel(r.Context())
	return search.New(p.View().Search, p.SetSearch, func() { p.Search(ctx) })
}

// session находит панель по cookie; новая панель монтируется, если mount=true
func (h *WeatherHandler) session(w http.ResponseWriter, r *http.Request, mount bool) *panel.Panel {
	var id string
	if c, err := r.Cookie(sessionCookie); err == nil {
		id = c.Value
	}

	sid, p, created := h.sessions.Get(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    sid,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		if mount {
			p.Mount(context.WithoutCancel(r.Context()))
		}
		h.logger.Debug("Новая сессия", "session", sid)
	}
	return p
}

func (h *WeatherHandler) renderError(w http.ResponseWriter, err error) {
	h.logger.Error("Ошибка отрисовки", "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
