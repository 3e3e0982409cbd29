package stage

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	raven "github.com/getsentry/raven-go"
)

// S3 keeps entries as objects in a bucket, under an optional key prefix
// so one bucket can back several stores. Object sizes are cached to keep
// the HEAD request count down. Do not change Bucket or Prefix while calls
// are in flight.
type S3 struct {
	svc    *s3.S3
	Bucket string
	Prefix string
	sizes  sizecache
}

var _ Store = &S3{}

// NewS3 returns a store over the given bucket using the credentials in
// the session. prefix may be "".
func NewS3(bucket, prefix string, awsSession *session.Session) *S3 {
	return &S3{
		svc:    s3.New(awsSession),
		Bucket: bucket,
		Prefix: prefix,
	}
}

// List emits every key under the store's prefix.
func (s *S3) List() <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		input := &s3.ListObjectsV2Input{
			Bucket: aws.String(s.Bucket),
			Prefix: aws.String(s.Prefix),
		}
		err := s.svc.ListObjectsV2Pages(input,
			func(page *s3.ListObjectsV2Output, lastpage bool) bool {
				for _, obj := range page.Contents {
					out <- strings.TrimPrefix(*obj.Key, s.Prefix)
				}
				return !lastpage
			})
		if err != nil {
			log.Println("s3 list:", s.Bucket, err)
			raven.CaptureError(err, map[string]string{"Bucket": s.Bucket})
		}
	}()
	return out
}

// ListPrefix returns the keys beginning with prefix.
func (s *S3) ListPrefix(prefix string) ([]string, error) {
	var result []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(s.Prefix + prefix),
	}
	err := s.svc.ListObjectsV2Pages(input,
		func(page *s3.ListObjectsV2Output, lastpage bool) bool {
			for _, obj := range page.Contents {
				result = append(result, strings.TrimPrefix(*obj.Key, s.Prefix))
			}
			return !lastpage
		})
	if err != nil {
		log.Println("s3 listprefix:", s.Bucket, prefix, err)
		raven.CaptureError(err, map[string]string{"Bucket": s.Bucket})
	}
	return result, err
}

// Open returns random access to the object at key. Data pages in on
// demand, a few megabytes at a time, since zip reading jumps around.
func (s *S3) Open(key string) (ReadAtCloser, int64, error) {
	size, err := s.stat(key)
	if err != nil {
		return nil, 0, err
	}
	return &s3file{
		svc:    s.svc,
		bucket: s.Bucket,
		key:    s.Prefix + key,
		size:   size,
	}, size, nil
}

// Create returns a writer that uploads to key on Close, switching to a
// multipart upload when the content outgrows one part.
func (s *S3) Create(key string) (io.WriteCloser, error) {
	_, err := s.stat(key)
	if err == nil {
		return nil, ErrKeyExists
	}
	if err != ErrNotExist {
		return nil, err
	}
	return &s3writer{
		svc:    s.svc,
		bucket: s.Bucket,
		key:    s.Prefix + key,
		done:   func(n int64) { s.sizes.set(key, n) },
	}, nil
}

// Delete removes the object at key. Absent keys are fine.
func (s *S3) Delete(key string) error {
	_, err := s.svc.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if err != nil {
		log.Println("s3 delete:", s.Bucket, key, err)
		raven.CaptureError(err, map[string]string{"Bucket": s.Bucket, "Key": key})
		return err
	}
	s.sizes.set(key, sizeMissing)
	return nil
}

// stat returns the size of the object at key, going to the size cache
// first.
func (s *S3) stat(key string) (int64, error) {
	if size, ok := s.sizes.get(key); ok {
		if size < 0 {
			return 0, ErrNotExist
		}
		return size, nil
	}
	info, err := s.svc.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if err != nil {
		if reqerr, ok := err.(awserr.RequestFailure); ok &&
			reqerr.StatusCode() == http.StatusNotFound {
			s.sizes.set(key, sizeMissing)
			return 0, ErrNotExist
		}
		return 0, err
	}
	size := *info.ContentLength
	s.sizes.set(key, size)
	return size, nil
}

const sizeMissing int64 = -1

// sizecache remembers object sizes seen by stat, with sizeMissing
// standing for a confirmed absence. Entries expire so external changes
// to the bucket are eventually noticed, absences sooner than presences.
type sizecache struct {
	m     sync.Mutex
	cache map[string]sizeinfo
}

type sizeinfo struct {
	size   int64
	expire time.Time
}

const (
	missTTL = 1 * time.Hour
	hitTTL  = 24 * time.Hour
)

func (c *sizecache) get(key string) (int64, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	info, ok := c.cache[key]
	if !ok || time.Now().After(info.expire) {
		delete(c.cache, key)
		return 0, false
	}
	return info.size, true
}

func (c *sizecache) set(key string, size int64) {
	ttl := hitTTL
	if size < 0 {
		ttl = missTTL
	}
	c.m.Lock()
	if c.cache == nil {
		c.cache = make(map[string]sizeinfo)
	}
	c.cache[key] = sizeinfo{size: size, expire: time.Now().Add(ttl)}
	c.m.Unlock()
}

// s3file adapts ranged GETs to io.ReaderAt. It keeps a short list of
// recently used pages; a sequential read through an archive touches each
// page once, while the zip directory at the end stays warm. Not safe for
// concurrent use.
type s3file struct {
	svc    *s3.S3
	bucket string
	key    string
	size   int64
	pages  []s3page
}

type s3page struct {
	off  int64
	data []byte
}

const (
	s3PageSize = 8 * 1024 * 1024
	s3MaxPages = 4
)

func (f *s3file) ReadAt(p []byte, off int64) (int, error) {
	var err error
	start := off
	for len(p) > 0 && off < f.size {
		var page s3page
		page, err = f.page(off)
		if err != nil {
			break
		}
		n := copy(p, page.data[off-page.off:])
		if n == 0 {
			break
		}
		p = p[n:]
		off += int64(n)
	}
	if err == io.EOF && off > start {
		err = nil
	} else if err == nil && off == start {
		err = io.EOF
	}
	return int(off - start), err
}

func (f *s3file) Close() error { return nil }

// page returns a cached or freshly loaded page covering off, moving it
// to the front of the cache.
func (f *s3file) page(off int64) (s3page, error) {
	idx := -1
	for i, pg := range f.pages {
		if pg.off <= off && off < pg.off+int64(len(pg.data)) {
			idx = i
			break
		}
	}
	if idx == -1 {
		pg, err := f.load(off)
		if err != nil {
			return s3page{}, err
		}
		if len(f.pages) < s3MaxPages {
			f.pages = append(f.pages, pg)
		}
		idx = len(f.pages) - 1
		f.pages[idx] = pg
	}
	pg := f.pages[idx]
	if idx > 0 {
		copy(f.pages[1:], f.pages[:idx])
		f.pages[0] = pg
	}
	return pg, nil
}

// load fetches the page-aligned range covering off.
func (f *s3file) load(off int64) (s3page, error) {
	base := (off / s3PageSize) * s3PageSize
	out, err := f.svc.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", base, base+s3PageSize-1)),
	})
	if err != nil {
		if reqerr, ok := err.(awserr.RequestFailure); ok &&
			reqerr.StatusCode() == http.StatusRequestedRangeNotSatisfiable {
			return s3page{}, io.EOF
		}
		log.Println("s3 read:", f.key, off, err)
		return s3page{}, err
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, out.Body)
	out.Body.Close()
	if n == 0 && err == nil {
		err = io.EOF
	}
	return s3page{off: base, data: buf.Bytes()}, err
}

// s3writer buffers writes into parts. Everything fitting in one part
// goes up as a single PUT at Close; anything larger becomes a multipart
// upload, completed or aborted at Close.
type s3writer struct {
	svc      *s3.S3
	bucket   string
	key      string
	buf      bytes.Buffer
	uploadID string
	parts    []*s3.CompletedPart
	written  int64
	failed   bool
	done     func(int64)
}

// s3PartSize times the 10000 part limit caps objects at 160 GB, well
// past any package this client builds.
const s3PartSize = 16 * 1024 * 1024

func (w *s3writer) Write(p []byte) (int, error) {
	n, _ := w.buf.Write(p)
	w.written += int64(n)
	if w.buf.Len() >= s3PartSize {
		if err := w.flushpart(); err != nil {
			w.failed = true
			return 0, err
		}
	}
	return n, nil
}

func (w *s3writer) Close() error {
	if w.failed {
		return w.abort(nil)
	}
	if w.uploadID == "" {
		// never grew past one part
		_, err := w.svc.PutObject(&s3.PutObjectInput{
			Bucket:        aws.String(w.bucket),
			Key:           aws.String(w.key),
			Body:          bytes.NewReader(w.buf.Bytes()),
			ContentLength: aws.Int64(int64(w.buf.Len())),
		})
		if err != nil {
			log.Println("s3 put:", w.key, err)
			raven.CaptureError(err, map[string]string{"Key": w.key})
			return err
		}
		w.done(w.written)
		return nil
	}
	if w.buf.Len() > 0 {
		if err := w.flushpart(); err != nil {
			return w.abort(err)
		}
	}
	_, err := w.svc.CompleteMultipartUpload(&s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(w.bucket),
		Key:             aws.String(w.key),
		UploadId:        aws.String(w.uploadID),
		MultipartUpload: &s3.CompletedMultipartUpload{Parts: w.parts},
	})
	if err != nil {
		log.Println("s3 complete:", w.key, err)
		return w.abort(err)
	}
	w.done(w.written)
	return nil
}

func (w *s3writer) flushpart() error {
	if w.uploadID == "" {
		result, err := w.svc.CreateMultipartUpload(&s3.CreateMultipartUploadInput{
			Bucket: aws.String(w.bucket),
			Key:    aws.String(w.key),
		})
		if err != nil {
			log.Println("s3 create multipart:", w.key, err)
			raven.CaptureError(err, map[string]string{"Key": w.key})
			return err
		}
		w.uploadID = *result.UploadId
	}
	partno := int64(len(w.parts) + 1) // AWS parts are 1-based
	out, err := w.svc.UploadPart(&s3.UploadPartInput{
		Bucket:     aws.String(w.bucket),
		Key:        aws.String(w.key),
		UploadId:   aws.String(w.uploadID),
		PartNumber: aws.Int64(partno),
		Body:       bytes.NewReader(w.buf.Bytes()),
	})
	if err != nil {
		log.Println("s3 upload part:", w.key, partno, err)
		return err
	}
	w.parts = append(w.parts, &s3.CompletedPart{
		ETag:       out.ETag,
		PartNumber: aws.Int64(partno),
	})
	w.buf.Reset()
	return nil
}

// abort abandons the multipart upload, keeping the first error seen.
func (w *s3writer) abort(err error) error {
	if w.uploadID == "" {
		return err
	}
	_, aerr := w.svc.AbortMultipartUpload(&s3.AbortMultipartUploadInput{
		Bucket:   aws.String(w.bucket),
		Key:      aws.String(w.key),
		UploadId: aws.String(w.uploadID),
	})
	if aerr != nil {
		log.Println("s3 abort:", w.key, aerr)
		if err == nil {
			err = aerr
		}
	}
	return err
}
