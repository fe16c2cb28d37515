package ledmatrix

import (
	"bufio"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"io/fs"
	"mime"
	"net"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bodgit/ledmatrix/internal/logging"
	"github.com/bodgit/ledmatrix/store"
)

const allowedMethods = "OPTIONS, HEAD, GET, POST, DELETE"

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html><head><title>Index of {{.Path}}</title></head><body><h1>Index of {{.Path}}</h1>
<table><tr><th>Name</th><th>Modified time</th><th>Size</th></tr>
{{range .Entries}}<tr><td><a href="{{.Href}}">{{.Name}}</a></td><td>{{.Modified}}</td><td>{{.Size}} B</td></tr>
{{else}}<tr><td>(empty)</td><td></td><td></td></tr>
{{end}}</table></body></html>
`))

type indexEntry struct {
	Name     string
	Href     string
	Modified string
	Size     int64
}

func contentType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == ".bmp" {
		return ContentTypeBitmap
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return ContentTypeRaw
}

func httpError(w http.ResponseWriter, code int) {
	http.Error(w, http.StatusText(code), code)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidName):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Handler returns the HTTP interface:
//
//	/pages/...      browse, download, upload and delete files
//	/status         current temperature, time and page as JSON
//	/ws/upload/...  stream an upload over a WebSocket
func (m *Matrix) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/pages", m.handlePages)
	mux.HandleFunc("/pages/", m.handlePages)
	mux.HandleFunc("/status", m.handleStatus)
	mux.HandleFunc(webSocketPrefix+"/", m.handleWebSocket)
	return m.logRequests(mux)
}

// NewServer returns a server for Handler listening on the configured
// address.
func (m *Matrix) NewServer() *http.Server {
	return &http.Server{
		Addr:              m.config.Listen,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          m.logger.StdLogger(logging.LevelError),
	}
}

func (m *Matrix) handlePages(w http.ResponseWriter, r *http.Request) {
	name, err := store.Clean(r.URL.Path)
	if err != nil {
		httpError(w, http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodOptions:
		w.Header().Set("Allow", allowedMethods)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet, http.MethodHead:
		m.serveFile(w, r, name)
	case http.MethodPost:
		m.receiveFiles(w, r)
	case http.MethodDelete:
		if err := m.store.Remove(name); err != nil {
			m.logger.Warn("Failed to delete %s: %v", name, err)
			httpError(w, errorStatus(err))
			return
		}
		m.logger.Info("Deleted %s", name)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", allowedMethods)
		httpError(w, http.StatusNotImplemented)
	}
}

func (m *Matrix) serveFile(w http.ResponseWriter, r *http.Request, name string) {
	fi, err := m.store.Stat(name)
	if err != nil {
		httpError(w, errorStatus(err))
		return
	}

	if fi.IsDir() {
		m.serveIndex(w, r, name)
		return
	}

	tag, err := etag(m.store, name)
	if err != nil {
		httpError(w, errorStatus(err))
		return
	}

	h := w.Header()
	h.Set("ETag", tag)
	if match := r.Header.Get("If-None-Match"); match != "" && etagMatch(match, tag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	h.Set("Content-Type", contentType(name))
	h.Set("Content-Length", strconv.FormatInt(fi.Size(), 10))
	if !fi.ModTime().IsZero() {
		h.Set("Last-Modified", fi.ModTime().UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}

	f, err := m.store.Open(name)
	if err != nil {
		m.logger.Error("Failed to open %s: %v", name, err)
		return
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		m.logger.Warn("Failed to send %s: %v", name, err)
	}
}

func (m *Matrix) serveIndex(w http.ResponseWriter, r *http.Request, name string) {
	entries, err := m.store.ReadDir(name)
	if err != nil {
		httpError(w, errorStatus(err))
		return
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	data := struct {
		Path    string
		Entries []indexEntry
	}{
		Path: "/" + strings.TrimPrefix(name, "."),
	}
	for _, e := range entries {
		fi, err := e.Info()
		if err != nil {
			continue
		}
		data.Entries = append(data.Entries, indexEntry{
			Name:     e.Name(),
			Href:     path.Join(data.Path, e.Name()),
			Modified: fi.ModTime().Local().Format("2006-01-02 15:04:05"),
			Size:     fi.Size(),
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if err := indexTemplate.Execute(w, data); err != nil {
		m.logger.Warn("Failed to send index of %s: %v", name, err)
	}
}

func (m *Matrix) receive(uri, filename, contentType string, size int64, r io.Reader) error {
	u, err := m.StartUpload(uri, filename, contentType, size)
	if err != nil {
		return err
	}
	if err := copyChunks(u, r); err != nil {
		u.Abort()
		return err
	}
	return u.Close()
}

func (m *Matrix) receiveFiles(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		httpError(w, http.StatusBadRequest)
		return
	}

	var count int
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			m.logger.Warn("Malformed upload: %v", err)
			httpError(w, http.StatusBadRequest)
			return
		}

		if part.FileName() == "" {
			part.Close()
			continue
		}

		err = m.receive(r.URL.Path, part.FileName(), part.Header.Get("Content-Type"), r.ContentLength, part)
		part.Close()
		if err != nil {
			m.logger.Warn("Upload of %s failed: %v", part.FileName(), err)
			httpError(w, StatusCode(err))
			return
		}
		count++
	}

	if count == 0 {
		httpError(w, StatusCode(ErrNothingUploaded))
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type status struct {
	Temperature float64 `json:"temperature"`
	Timestamp   int64   `json:"timestamp"`
	Page        uint8   `json:"page"`
}

func (m *Matrix) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		httpError(w, http.StatusMethodNotAllowed)
		return
	}

	id, _ := m.display.Page()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status{
		Temperature: m.display.Temperature(),
		Timestamp:   time.Now().Unix(),
		Page:        id,
	}); err != nil {
		m.logger.Warn("Failed to send status: %v", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack allows WebSocket upgrades through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("ledmatrix: connection cannot be hijacked")
	}
	return h.Hijack()
}

func (m *Matrix) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.logger.Info("%s %s %d %v", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
