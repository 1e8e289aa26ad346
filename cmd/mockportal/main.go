package main

import (
	"flag"
	"log"
	"net/http"
	"strings"
	"time"

	"regsniper/internal/logbus"
	"regsniper/internal/mockportal"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	full := flag.String("full", "", "comma separated CRNs that start full")
	openAfter := flag.Int("open-after", 0, "open full sections after this many submissions (0 = never)")
	flag.Parse()

	bus := logbus.New(100, logbus.WithConsole(logbus.NewConsoleLogger("info")))
	p := mockportal.New(mockportal.Options{
		Full:      strings.Split(*full, ","),
		OpenAfter: *openAfter,
		Bus:       bus,
	})

	server := &http.Server{
		Addr:              *addr,
		Handler:           p.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	bus.Log("info", "mock portal listening", map[string]any{
		"addr": *addr,
		"page": mockportal.RegistrationPath,
	})
	log.Fatal(server.ListenAndServe())
}
