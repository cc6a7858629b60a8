package main

import (
	"context"

	"github.com/pkg/errors"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	app := mustBootstrapTrackAPI()
	defer app.Close()

	if err := app.Run(); err != nil && !errors.Is(err, context.Canceled) {
		app.log.Fatal().Err(err).Msg("track-api stopped")
	}
}
