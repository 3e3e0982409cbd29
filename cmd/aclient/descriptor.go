package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/dlib/accession/pack"
)

// An item directory may carry a descriptor file naming the item and its
// attachments. Without one, or when the descriptor lists no attachments,
// every file under the directory is packed as content.
//
//	label = "A Thesis"
//	status = "public"
//	embargo = "2030-06-01"
//
//	[metadata]
//	title = "A Thesis"
//	creator = ["First Author", "Second Author"]
//
//	[[attachment]]
//	file = "thesis.pdf"
//	label = "Full text"
//
// Each [[attachment]] may carry its own [attachment.metadata] table.
const descriptorName = "item.toml"

type itemDescriptor struct {
	Label      string                 `toml:"label"`
	Status     string                 `toml:"status"`
	Embargo    string                 `toml:"embargo"`
	Metadata   map[string]interface{} `toml:"metadata"`
	Attachment []attachmentDescriptor `toml:"attachment"`
}

type attachmentDescriptor struct {
	File     string                 `toml:"file"`
	Name     string                 `toml:"name"`
	Label    string                 `toml:"label"`
	Metadata map[string]interface{} `toml:"metadata"`
}

// readDescriptor loads dir's item.toml. A missing file is not an error
// and returns an empty descriptor.
func readDescriptor(dir string) (itemDescriptor, error) {
	var desc itemDescriptor
	fname := filepath.Join(dir, descriptorName)
	_, err := toml.DecodeFile(fname, &desc)
	if os.IsNotExist(err) {
		return desc, nil
	}
	return desc, err
}

// doPack turns the directory into a package zip next to it, or at
// out + ".zip" when out is not empty.
func doPack(dir string, out string) {
	info, err := os.Stat(dir)
	if err != nil {
		log.Fatalln(err)
	}
	if !info.IsDir() {
		log.Fatalln(dir, "is not a directory")
	}
	desc, err := readDescriptor(dir)
	if err != nil {
		log.Fatalln("Error reading descriptor:", err)
	}
	if desc.Label == "" {
		desc.Label = filepath.Base(filepath.Clean(dir))
	}
	p, err := buildPackager(dir, desc)
	if err != nil {
		log.Fatalln(err)
	}
	defer p.Close()
	target := out
	if target == "" {
		target = filepath.Clean(dir)
	}
	zipname, err := p.Write(target)
	if err != nil {
		log.Fatalln("Error writing archive:", err)
	}
	fmt.Println("wrote", zipname)
}

// buildPackager stages the described item into a packaging session.
func buildPackager(dir string, desc itemDescriptor) (*pack.Packager, error) {
	p, err := pack.New(desc.Label, desc.Metadata)
	if err != nil {
		return nil, err
	}
	item := p.Item()
	switch strings.ToLower(desc.Status) {
	case "":
	case "public":
		item.SetPublic()
	case "private":
		item.SetPrivate()
	default:
		p.Close()
		return nil, fmt.Errorf("unknown status %q, use public or private", desc.Status)
	}
	if desc.Embargo != "" {
		date, err := time.Parse("2006-01-02", desc.Embargo)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("embargo %q is not a YYYY-MM-DD date", desc.Embargo)
		}
		item.SetEmbargo(date)
	}

	attachments := desc.Attachment
	if len(attachments) == 0 {
		attachments, err = scanAttachments(dir)
		if err != nil {
			p.Close()
			return nil, err
		}
	}
	for _, a := range attachments {
		err = addDescribed(p, dir, a)
		if err != nil {
			p.Close()
			return nil, err
		}
	}
	return p, nil
}

// scanAttachments lists every regular file under dir as an attachment,
// leaving out the descriptor itself. Paths are relative to dir so they
// keep their subdirectories inside the package.
func scanAttachments(dir string) ([]attachmentDescriptor, error) {
	var result []attachmentDescriptor
	err := filepath.Walk(dir, func(fname string, info os.FileInfo, err error) error {
		if err != nil || !info.Mode().IsRegular() {
			return err
		}
		rel, err := filepath.Rel(dir, fname)
		if err != nil {
			return err
		}
		if rel == descriptorName {
			return nil
		}
		result = append(result, attachmentDescriptor{File: rel})
		return nil
	})
	return result, err
}

func addDescribed(p *pack.Packager, dir string, a attachmentDescriptor) error {
	if a.File == "" {
		return fmt.Errorf("attachment %q has no file", a.Label)
	}
	f, err := os.Open(filepath.Join(dir, a.File))
	if err != nil {
		return err
	}
	seed := make(map[string]interface{}, len(a.Metadata)+1)
	for field, value := range a.Metadata {
		seed[field] = value
	}
	if a.Label != "" {
		seed["label"] = a.Label
	}
	name := a.Name
	if name == "" {
		name = filepath.ToSlash(a.File)
	}
	_, err = p.AddAttachment(f, name, seed)
	return err
}
