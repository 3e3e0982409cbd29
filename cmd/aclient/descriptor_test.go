package main

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dlib/accession/pack"
)

const sampleDescriptor = `
label = "A Thesis"
status = "public"
embargo = "2030-06-01"

[metadata]
title = "A Thesis"
creator = ["First Author", "Second Author"]

[[attachment]]
file = "thesis.pdf"
label = "Full text"

[attachment.metadata]
mime_type = "application/pdf"
`

func TestReadDescriptor(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, descriptorName, sampleDescriptor)

	desc, err := readDescriptor(dir)
	if err != nil {
		t.Fatalf("Received %v, expected nil", err)
	}
	if desc.Label != "A Thesis" {
		t.Errorf("Received %v, expected A Thesis", desc.Label)
	}
	if desc.Status != "public" {
		t.Errorf("Received %v, expected public", desc.Status)
	}
	if desc.Embargo != "2030-06-01" {
		t.Errorf("Received %v, expected 2030-06-01", desc.Embargo)
	}
	if desc.Metadata["title"] != "A Thesis" {
		t.Errorf("Received %v, expected A Thesis", desc.Metadata["title"])
	}
	if len(desc.Attachment) != 1 {
		t.Fatalf("Received %d attachments, expected 1", len(desc.Attachment))
	}
	a := desc.Attachment[0]
	if a.File != "thesis.pdf" || a.Label != "Full text" {
		t.Errorf("Received %v, expected thesis.pdf / Full text", a)
	}
	if a.Metadata["mime_type"] != "application/pdf" {
		t.Errorf("Received %v, expected application/pdf", a.Metadata["mime_type"])
	}
}

func TestReadDescriptorMissing(t *testing.T) {
	desc, err := readDescriptor(t.TempDir())
	if err != nil {
		t.Fatalf("Received %v, expected nil", err)
	}
	if desc.Label != "" || len(desc.Attachment) != 0 {
		t.Errorf("Received %v, expected an empty descriptor", desc)
	}
}

func TestBuildPackager(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, descriptorName, sampleDescriptor)
	writeTestFile(t, dir, "thesis.pdf", "not really a pdf")

	desc, err := readDescriptor(dir)
	if err != nil {
		t.Fatalf("Received %v, expected nil", err)
	}
	p, err := buildPackager(dir, desc)
	if err != nil {
		t.Fatalf("Received %v, expected nil", err)
	}
	defer p.Close()

	item := p.Item()
	if item.Label != "A Thesis" {
		t.Errorf("Received %v, expected A Thesis", item.Label)
	}
	if item.Status != "Public" {
		t.Errorf("Received %v, expected Public", item.Status)
	}
	want := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
	if !item.Embargo.Equal(want) {
		t.Errorf("Received %v, expected %v", item.Embargo, want)
	}
	if len(item.Attachments) != 1 {
		t.Fatalf("Received %d attachments, expected 1", len(item.Attachments))
	}
	a := item.Attachments[0]
	if a.Label != "Full text" {
		t.Errorf("Received %v, expected Full text", a.Label)
	}
	if a.Content != "thesis.pdf" {
		t.Errorf("Received %v, expected thesis.pdf", a.Content)
	}

	zipname, err := p.Write(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatalf("Received %v, expected nil", err)
	}
	pr, err := pack.OpenFile(zipname)
	if err != nil {
		t.Fatalf("Received %v, expected nil", err)
	}
	defer pr.Close()
	if err = pr.Verify(); err != nil {
		t.Errorf("Received %v, expected nil", err)
	}
	if pr.Label() != "A Thesis" {
		t.Errorf("Received %v, expected A Thesis", pr.Label())
	}
}

func TestBuildPackagerScans(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, descriptorName, "label = \"Loose Files\"\n")
	writeTestFile(t, dir, "a.txt", "alpha")
	writeTestFile(t, dir, filepath.Join("sub", "b.txt"), "beta")

	desc, err := readDescriptor(dir)
	if err != nil {
		t.Fatalf("Received %v, expected nil", err)
	}
	p, err := buildPackager(dir, desc)
	if err != nil {
		t.Fatalf("Received %v, expected nil", err)
	}
	defer p.Close()

	item := p.Item()
	if len(item.Attachments) != 2 {
		t.Fatalf("Received %d attachments, expected 2", len(item.Attachments))
	}
	if item.Attachments[0].Content != "a.txt" {
		t.Errorf("Received %v, expected a.txt", item.Attachments[0].Content)
	}
	if item.Attachments[1].Content != "sub/b.txt" {
		t.Errorf("Received %v, expected sub/b.txt", item.Attachments[1].Content)
	}
}

func TestBuildPackagerRejects(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.txt", "alpha")

	table := []itemDescriptor{
		{Label: "x", Status: "published"},
		{Label: "x", Embargo: "June 1, 2030"},
		{Label: "x", Attachment: []attachmentDescriptor{{File: "missing.txt"}}},
		{Label: "x", Attachment: []attachmentDescriptor{{Label: "no file"}}},
	}
	for _, desc := range table {
		p, err := buildPackager(dir, desc)
		if err == nil {
			p.Close()
			t.Errorf("Received nil, expected an error for %v", desc)
		}
	}
}

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	fname := filepath.Join(dir, name)
	err := os.MkdirAll(filepath.Dir(fname), 0755)
	if err != nil {
		t.Fatal(err)
	}
	err = ioutil.WriteFile(fname, []byte(content), 0644)
	if err != nil {
		t.Fatal(err)
	}
}
