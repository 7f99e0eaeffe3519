package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net"
	"net/http"
	"path"
	"strings"
	"time"
)

const (
	defaultMaxBodyLen = 1024 * 1024
	maxUploadLen      = 64 << 20
)

// request is always scoped to a single http request handled by the server
type request struct {
	file, path string

	ctx context.Context
	w   http.ResponseWriter
	r   *http.Request

	body []byte

	start       time.Time
	rid         uint64 // random request id
	read, wrote int
	ip, port    string
	err, logerr error
}

// newRequest initializes request scoped structures, context and counters,
// logging the request line up front; finalize logs the rx/tx totals.
func newRequest(w http.ResponseWriter, rq *http.Request) request {
	r := request{
		path:  rq.URL.Path,
		ctx:   rq.Context(),
		r:     rq,
		w:     w,
		start: time.Now(),
		rid:   rand.Uint64(),
	}
	r.rid |= 1 << 63 // sacrifice one bit of entropy so they always have the same # digits
	r.ip = r.r.Header.Get("X-Forwarded-For")
	r.port = r.r.Header.Get("X-Forwarded-Port")
	if r.ip == "" {
		r.ip, r.port, _ = net.SplitHostPort(r.r.RemoteAddr)
	}
	r.log(
		"ip", r.ip,
		"port", r.port,
		"raddr", r.r.RemoteAddr,
		"method", r.r.Method,
		"path", r.r.URL.Path,
		"ref", r.r.Referer(),
		"ua", r.r.UserAgent(),
	)
	return r
}

func (r *request) finalize() {
	if r.logerr == nil {
		r.logerr = r.err
	}
	r.log(
		"rx", r.read,
		"tx", r.wrote,
		"dur", time.Since(r.start),
		"err", r.logerr,
	)
}

func (s *request) ok() bool {
	return s.err == nil
}

// Body reads the request body at most once and
// returns it.
func (s *request) Body() []byte {
	if !s.ok() {
		return nil
	}
	if s.body != nil {
		return s.body
	}
	s.body, s.err = io.ReadAll(io.LimitReader(s.r.Body, defaultMaxBodyLen))
	s.read = len(s.body)
	return s.body
}

// parseMultipart parses an upload form once; field and fileField read from
// it afterwards.
func (s *request) parseMultipart() bool {
	if !s.ok() {
		return false
	}
	if s.err = s.r.ParseMultipartForm(maxUploadLen); s.err != nil {
		return false
	}
	return true
}

func (s *request) field(name string) string {
	return strings.TrimSpace(s.r.FormValue(name))
}

// fileField returns the bytes and client filename of one uploaded file, or
// ok=false when the part is absent.
func (s *request) fileField(name string) (data []byte, filename string, ok bool) {
	if !s.ok() {
		return nil, "", false
	}
	f, hdr, err := s.r.FormFile(name)
	if err == http.ErrMissingFile {
		return nil, "", false
	}
	if err != nil {
		s.err = err
		return nil, "", false
	}
	defer f.Close()
	data, s.err = io.ReadAll(io.LimitReader(f, maxUploadLen))
	if s.err != nil {
		return nil, "", false
	}
	s.read += len(data)
	return data, hdr.Filename, true
}

func (s *request) writeerror(msg string, code int, err error) bool {
	s.log(
		"msg", msg,
		"code", code,
		"err", err,
	)
	s.w.Header().Set("content-type", "application/json")
	s.w.WriteHeader(code)
	fmt.Fprintln(s.w, PlatformError{
		Ok:     false,
		Status: code,
		Rid:    s.rid,
		Msg:    msg,
	}.String())
	return false
}

func (s *request) log(kv ...interface{}) {
	logkv(append([]interface{}{
		"t", time.Now().UnixNano(),
		"rid", s.rid,
	}, kv...)...)
}

func (s *request) writebody(data interface{}, mimeType ...string) bool {
	if len(mimeType) != 0 {
		s.w.Header().Set("Content-Type", mimeType[0])
	}
	switch t := data.(type) {
	case io.WriterTo:
		n, err := t.WriteTo(s.w)
		s.wrote, s.err = int(n), err
	case []byte:
		s.wrote, s.err = s.w.Write(t)
	case string:
		s.wrote, s.err = s.w.Write([]byte(t))
	case interface{}:
		data, _ := json.Marshal(t)
		s.w.Header().Set("Content-Type", "application/json")
		s.wrote, s.err = s.w.Write(data)
	}
	return s.ok()
}

func (s *request) UnmarshalJSON(body interface{}) (ok bool) {
	data := s.Body()
	if !s.ok() {
		s.writeerror("unreadable request body", 400, s.err)
		return false
	}
	if s.err = json.Unmarshal(data, body); s.err != nil {
		s.writeerror("malformed json body", 400, s.err)
		return false
	}
	return s.ok()
}

func (s *request) chop() string {
	s.file, s.path = chop(s.path)
	return s.file
}

func chop(p string) (file, next string) {
	p = path.Clean(p)[1:]
	if n := strings.Index(p, "/"); n >= 0 {
		return p[:n], p[n:]
	}
	return p, "/"
}

func logkv(kv ...interface{}) bool {
	msg := `{`
	sep := " "
	for i := 0; i+1 < len(kv); i += 2 {
		v := kv[i+1]
		if v == nil {
			v = ""
		} else {
			switch v.(type) {
			case fmt.Stringer:
				v = fmt.Sprint(v)
			case error:
				v = fmt.Sprint(v)
			}
		}
		value, _ := json.Marshal(v)
		msg += fmt.Sprintf(`%s%q:%s`, sep, kv[i], string(value))
		sep = ", "
	}
	msg += `}`
	log.Println(msg)
	return true
}
