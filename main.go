package main

import (
	"context"

	"github.com/dataloom-dev/fsadmin/fsclient"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

func init() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
}

// main wires a Client from the process environment and reports what it
// connected to. It exists so the module builds as a runnable program; the
// library surface for embedding is fsclient, fsquery, fstxn and bulkwriter.
func main() {
	ctx := context.Background()

	settings, err := fsclient.LoadSettings(nil)
	if err != nil {
		log.Fatal().Err(err).Msg("loading firestore settings")
	}

	client, err := fsclient.NewClient(ctx, settings)
	if err != nil {
		log.Fatal().Err(err).Msg("opening firestore client")
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("closing firestore client")
		}
	}()

	log.Info().Str("database", client.DatabaseName()).Msg("firestore admin core ready")
}
