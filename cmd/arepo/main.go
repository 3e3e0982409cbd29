package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/facebookgo/httpdown"

	"github.com/dlib/accession/repotest"
)

func main() {
	var (
		port      = flag.String("port", "14000", "port to listen on")
		storage   = flag.String("storage", "", "location of the storage (empty means in memory)")
		tokenfile = flag.String("tokenfile", "", `file of API tokens, one "user role token" per line`)
		intake    = flag.Int("intake", 2, "number of package submissions to process at once")
		version   = flag.Bool("version", false, "print the version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Println("arepo", repotest.Version)
		return
	}

	s := parselocation(*storage)
	if s == nil {
		os.Exit(1)
	}
	srv := repotest.New(s)
	srv.MaxIntake = *intake
	if *tokenfile != "" {
		decoder, err := repotest.NewListDecoderFile(*tokenfile)
		if err != nil {
			log.Fatalln("tokenfile:", err)
		}
		srv.Decoder = decoder
	} else {
		log.Println("No token file. Server is open access")
	}

	log.Println("Listening on port", *port)
	hd := httpdown.HTTP{}
	server, err := hd.ListenAndServe(&http.Server{
		Addr:    ":" + *port,
		Handler: srv.Handler(),
	})
	if err != nil {
		log.Fatalln(err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Println("Stopping")
		server.Stop()
	}()
	err = server.Wait()
	if err != nil {
		log.Println(err)
	}
}
