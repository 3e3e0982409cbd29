/*
Package pack builds and reads the submission packages the repository
ingests.

A package is a zip archive with a manifest.json at its root and any
number of content files at the paths the manifest announces. The manifest
holds the item's descriptive metadata merged with its fixed fields
(label, status, embargo_date, enabled) and one fragment per attachment:

	{
	  "label": "Oversize Maps",
	  "title": ["Oversize Maps"],
	  "status": "Public",
	  "embargo_date": null,
	  "enabled": true,
	  "attachments": [
	    {"label": "map 1", "metadata": {...}, "content": "maps/m1.tiff",
	     "md5": "...", "sha256": "..."}
	  ]
	}

A Packager owns a scratch directory for the duration of one packaging
session. Content is copied in as attachments are added, Write freezes the
manifest and zips the directory, and Close deletes the scratch space no
matter how the session went. A Reader opens a finished package, from disk
or from a stage store, and can verify the stored bytes against the
manifest's digests.
*/
package pack
