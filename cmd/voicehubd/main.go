// Command voicehubd runs the voicehub control-plane server: client
// registry and dispatch (C8), deterministic media-port allocation, the
// voice-note landing listener (C6), persistent settings and audit log
// (C11), and a read-only admin status API (C12).
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"golang.org/x/sync/errgroup"

	"github.com/thaakir07/voicehub/internal/adminapi"
	"github.com/thaakir07/voicehub/internal/server"
	"github.com/thaakir07/voicehub/internal/store"
	"github.com/thaakir07/voicehub/internal/voicenote"
)

func main() {
	// Check for CLI subcommands before parsing flags.
	if len(os.Args) > 1 {
		cliDB := "voicehub.db"
		if RunCLI(os.Args[1:], cliDB) {
			return
		}
	}

	addr := flag.String("addr", ":1235", "control-plane TCP listen address")
	apiAddr := flag.String("api-addr", ":8090", "admin status API listen address (empty to disable)")
	dbPath := flag.String("db", "voicehub.db", "SQLite database path")
	vnAddr := flag.String("voicenote-addr", ":9786", "voice-note transfer TCP listen address")
	vnDir := flag.String("voicenote-dir", "voicenotes", "directory to land received voice notes in")
	flag.Parse()

	st, err := store.New(*dbPath)
	if err != nil {
		log.Fatalf("[store] %v", err)
	}
	defer st.Close()

	registry := server.NewRegistry()
	coordinator := server.NewCoordinator()
	srv := server.NewServer(*addr, registry, coordinator)
	srv.SetAuditSink(store.NewAuditSink(st))
	srv.SetNameChecker(st)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	onRecv := func(r voicenote.Received) {
		log.Printf("[voicenote] landed from %s at %s", r.SenderName, r.Path)
		st.InsertAuditLog("voicenote_recv", r.SenderName, r.Path) //nolint:errcheck
	}
	vnListener := voicenote.NewListener(*vnAddr, *vnDir, onRecv)

	g.Go(func() error {
		log.Printf("[server] listening on %s", *addr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		return vnListener.Run(gctx)
	})

	if *apiAddr != "" {
		api := adminapi.New(registry, st, srv, vnListener)
		g.Go(func() error {
			log.Printf("[adminapi] listening on %s", *apiAddr)
			api.Run(gctx, *apiAddr)
			return nil
		})
	}

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		log.Fatalf("[voicehubd] %v", err)
	}
	log.Println("[voicehubd] shut down")
}
