// Package handlers contains the full set of handler functions and routes
// supported by the web api.
package handlers

import (
	"fmt"
	"net/http"
	"os"

	"github.com/marabu/node/business/web/mid"
	"github.com/marabu/node/foundation/web"
	"go.uber.org/zap"
)

// UIMux constructs an http.Handler with all application routes defined.
// The page follows the block events of the node at eventsURL.
func UIMux(shutdown chan os.Signal, log *zap.SugaredLogger, eventsURL string) (*web.App, error) {
	app := web.NewApp(
		shutdown,
		mid.Logger(log),
		mid.Errors(log),
		mid.Panics(),
		mid.Cors("*"),
	)

	// Register the index page for the website.
	ig, err := newIndex(eventsURL)
	if err != nil {
		return nil, fmt.Errorf("loading index template: %w", err)
	}
	app.Handle(http.MethodGet, "", "/", ig.handler)

	return app, nil
}
