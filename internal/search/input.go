// Package search содержит поле ввода города с кнопкой поиска.
// Компонент не хранит состояние сам: значение и колбэки передает родитель.
package search

import (
	"bytes"
	"html/template"
)

const (
	Placeholder = "Enter City Name"
	ButtonLabel = "Search"
)

var inputTmpl = template.Must(template.New("search").Parse(
	`<form class="search" method="post" action="{{.Action}}">` +
		`<input type="text" name="city" placeholder="{{.Placeholder}}" value="{{.Value}}">` +
		`<button type="submit">{{.Label}}</button>` +
		`</form>`))

type Input struct {
	Value    string
	OnChange func(string)
	OnSearch func()
	// Action - адрес, куда отправляется форма
	Action string
}

func New(value string, onChange func(string), onSearch func()) *Input {
	return &Input{Value: value, OnChange: onChange, OnSearch: onSearch, Action: "/search"}
}

// Change передает родителю полное новое значение поля
func (in *Input) Change(value string) {
	in.Value = value
	if in.OnChange != nil {
		in.OnChange(value)
	}
}

// Activate - нажатие кнопки. Пустая строка не блокируется.
func (in *Input) Activate() {
	if in.OnSearch != nil {
		in.OnSearch()
	}
}

func (in *Input) HTML() (template.HTML, error) {
	var buf bytes.Buffer
	err := inputTmpl.Execute(&buf, struct {
		Action, Placeholder, Value, Label string
	}{in.Action, Placeholder, in.Value, ButtonLabel})
	if err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
