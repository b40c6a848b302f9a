package handlers

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"net/http"

	"github.com/marabu/node/foundation/web"
)

//go:embed assets/index.html
var assets embed.FS

type index struct {
	page []byte
}

func newIndex(eventsURL string) (index, error) {
	tmpl, err := template.ParseFS(assets, "assets/index.html")
	if err != nil {
		return index{}, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ EventsURL string }{eventsURL}); err != nil {
		return index{}, err
	}

	return index{page: buf.Bytes()}, nil
}

func (ig index) handler(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	web.SetStatusCode(ctx, http.StatusOK)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(ig.page)

	return err
}
