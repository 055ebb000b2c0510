package main

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
)

func main() {
	app := mustBootstrapCustomsAPI()
	defer app.Close()

	if err := runCustomsAPI(app.ctx, app.opts, app.svc, app.consumer); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("customs-api stopped", "error", err)
		panic(err)
	}
}
