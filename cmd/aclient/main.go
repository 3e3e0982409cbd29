package main

// The aclient tool packages item directories into zip archives and
// drives batch submissions into a repository collection.

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/dlib/accession/ingest"
	"github.com/dlib/accession/rest"
)

// command line flags, with default values

var (
	server      = flag.String("server", "http://localhost:14000", "base URL of the repository server")
	token       = flag.String("token", "", "API token to authenticate with")
	configfile  = flag.String("config", "", "TOML file of settings, overridden by explicit flags")
	rate        = flag.Int64("rate", 0, "upload limit in bytes per second, 0 means unlimited")
	journalfile = flag.String("journal", "", "path of the QL ingest journal, empty disables the journal")
	mysqldial   = flag.String("mysql", "", "connection string of a MySQL ingest journal, overrides -journal")
	retries     = flag.Int("retries", 0, "times to retry paths that failed with a connection error")
	output      = flag.String("o", "", "target path for pack, without the .zip extension")
	usage       = `
aclient <flags> <command> <command arguments>

Possible commands:

    pack <directory>
    submit <collection id> <package zip>...
    ingest <collection id> <directory>
    ls <collection id>
    info <item url>

`
)

// options are the settings shared by the batch commands. They start from
// the flag defaults, then the config file, and explicit flags win.
type options struct {
	Server  string `toml:"server"`
	Token   string `toml:"token"`
	Rate    int64  `toml:"bytes_per_second"`
	Journal string `toml:"journal"`
	Mysql   string `toml:"mysql"`
}

func loadOptions() options {
	opts := options{
		Server:  *server,
		Token:   *token,
		Rate:    *rate,
		Journal: *journalfile,
		Mysql:   *mysqldial,
	}
	if *configfile != "" {
		_, err := toml.DecodeFile(*configfile, &opts)
		if err != nil {
			log.Fatalln("Error reading", *configfile, ":", err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server":
			opts.Server = *server
		case "token":
			opts.Token = *token
		case "rate":
			opts.Rate = *rate
		case "journal":
			opts.Journal = *journalfile
		case "mysql":
			opts.Mysql = *mysqldial
		}
	})
	return opts
}

func main() {
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Println(usage)
		return
	}

	switch args[0] {
	case "pack":
		if len(args) != 2 {
			fmt.Println("Usage: aclient <flags> pack <directory>")
			os.Exit(1)
		}
		doPack(args[1], *output)
	case "submit":
		if len(args) < 3 {
			fmt.Println("Usage: aclient <flags> submit <collection id> <package zip>...")
			os.Exit(1)
		}
		doBatch(loadOptions(), args[1], args[2:])
	case "ingest":
		if len(args) != 3 {
			fmt.Println("Usage: aclient <flags> ingest <collection id> <directory>")
			os.Exit(1)
		}
		paths, err := ingest.FindPackages(args[2])
		if err != nil {
			log.Fatalln("Error scanning", args[2], ":", err)
		}
		if len(paths) == 0 {
			fmt.Println("No packages found under", args[2])
			return
		}
		doBatch(loadOptions(), args[1], paths)
	case "ls":
		if len(args) != 2 {
			fmt.Println("Usage: aclient <flags> ls <collection id>")
			os.Exit(1)
		}
		doLs(loadOptions(), args[1])
	case "info":
		if len(args) != 2 {
			fmt.Println("Usage: aclient <flags> info <item url>")
			os.Exit(1)
		}
		doInfo(loadOptions(), args[1])
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func parseCollectionID(s string) int {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		log.Fatalln("The collection id must be a positive number, not", s)
	}
	return id
}

// doBatch submits every path into the given collection and prints an
// accounting. A journal, if configured, makes reruns skip finished paths.
func doBatch(opts options, colid string, paths []string) {
	client := rest.New(opts.Server, opts.Token)
	col := client.Collections().ByID(parseCollectionID(colid))

	batch := &ingest.Batch{
		Target:         col,
		Paths:          paths,
		BytesPerSecond: opts.Rate,
	}
	if opts.Mysql != "" {
		j, err := ingest.NewMysqlJournal(opts.Mysql)
		if err != nil {
			log.Fatalln("Error opening journal:", err)
		}
		defer j.Close()
		batch.Journal = j
	} else if opts.Journal != "" {
		j, err := ingest.NewQlJournal(opts.Journal)
		if err != nil {
			log.Fatalln("Error opening journal:", err)
		}
		defer j.Close()
		batch.Journal = j
	}

	batch.Run()
	for i := 0; i < *retries && anyConnectionFailure(batch.Failures); i++ {
		log.Println("Retrying connection failures")
		batch.RetryFailed(ingest.IsConnection)
	}

	for _, s := range batch.Successes {
		fmt.Println("ingested", s.Path, "as", s.Location)
	}
	for _, path := range batch.Skipped {
		fmt.Println("skipped", path)
	}
	for _, f := range batch.Failures {
		fmt.Println("failed", f.Path+":", f.Err)
	}
	fmt.Printf("%d ingested, %d skipped, %d failed\n",
		len(batch.Successes), len(batch.Skipped), len(batch.Failures))
	if len(batch.Failures) > 0 {
		os.Exit(1)
	}
}

func anyConnectionFailure(failures []ingest.Failure) bool {
	for _, f := range failures {
		if ingest.IsConnection(f.Err) {
			return true
		}
	}
	return false
}

func doLs(opts options, colid string) {
	client := rest.New(opts.Server, opts.Token)
	col := client.Collections().ByID(parseCollectionID(colid))

	name, err := col.Name()
	if err != nil {
		log.Fatalln(err)
	}
	items, err := col.Items()
	if err != nil {
		log.Fatalln(err)
	}
	fmt.Printf("%s (%d items)\n", name, len(items))
	for _, item := range items {
		label, err := item.Label()
		if err != nil {
			log.Fatalln(err)
		}
		fmt.Printf("    %s\t%s\n", item.URL(), label)
	}
}

func doInfo(opts options, itemurl string) {
	client := rest.New(opts.Server, opts.Token)
	item := client.ItemByURL(itemurl)

	label, err := item.Label()
	if err != nil {
		log.Fatalln(err)
	}
	status, err := item.Status()
	if err != nil {
		log.Fatalln(err)
	}
	embargo, err := item.EmbargoDate()
	if err != nil {
		log.Fatalln(err)
	}
	purl, err := item.PersistentURL()
	if err != nil {
		log.Fatalln(err)
	}
	fmt.Println("Label:     ", label)
	fmt.Println("Status:    ", status)
	if embargo != "" {
		fmt.Println("Embargo:   ", embargo)
	}
	fmt.Println("Permalink: ", purl)

	attachments, err := item.Attachments()
	if err != nil {
		log.Fatalln(err)
	}
	fmt.Printf("Attachments (%d):\n", len(attachments))
	for _, a := range attachments {
		label, err := a.Label()
		if err != nil {
			log.Fatalln(err)
		}
		fmt.Printf("    %s\t%s\n", a.URL(), label)
	}
}
