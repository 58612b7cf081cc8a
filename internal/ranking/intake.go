package ranking

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

const (
	// Form field carrying the free-text idea
	IdeaField = "idea"
	// Form field carrying the tabular upload
	FileField = "csv"
	// fileFieldAlias is accepted for clients that post a generic "file" part
	fileFieldAlias = "file"

	// multipartEnvelope allows for boundaries and part headers on top of the content budget
	multipartEnvelope = 64 * 1024
)

// Limits are the size ceilings enforced on uploads
type Limits struct {
	MaxUpload       int64
	PlatformCeiling int64
}

// Upload is the result of a successful intake
type Upload struct {
	Idea     string
	Filename string
	Path     string
	Size     int64
}

// Intake validates and streams a multipart upload into the scope's artifact.
//
// The declared Content-Length is checked before anything is read. The body is then parsed
// part by part with MaxUpload enforced on the actual bytes, so a lying header does not help.
func Intake(w http.ResponseWriter, r *http.Request, scope *Scope, limits Limits) (*Upload, error) {
	if err := checkDeclaredSize(r, limits); err != nil {
		return nil, err
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		return nil, validationError("expected multipart/form-data body")
	}

	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxUpload+multipartEnvelope)
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, validationError("malformed multipart body")
	}

	upload := &Upload{}
	budget := limits.MaxUpload
	haveFile := false

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, classifyReadError(err)
		}

		var n int64
		switch part.FormName() {
		case IdeaField:
			var b strings.Builder
			n, err = copyBounded(&b, part, budget)
			if err == nil && upload.Idea == "" {
				upload.Idea = strings.TrimSpace(b.String())
			}
		case FileField, fileFieldAlias:
			if haveFile {
				part.Close()
				return nil, validationError("only one file may be uploaded")
			}
			n, err = writeArtifact(scope, part.FileName(), part, budget)
			haveFile = err == nil
			upload.Filename = part.FileName()
			upload.Size = n
		default:
			n, err = copyBounded(io.Discard, part, budget)
		}
		part.Close()
		if err != nil {
			return nil, err
		}
		budget -= n
	}

	if upload.Idea == "" || !haveFile {
		return nil, validationError("missing idea or file")
	}
	if err := checkIdea(upload.Idea); err != nil {
		return nil, err
	}

	upload.Path = scope.Path()
	return upload, nil
}

// Stage copies src into the scope's artifact under the same MaxUpload ceiling as Intake
func Stage(scope *Scope, filename string, src io.Reader, limits Limits) (string, int64, error) {
	n, err := writeArtifact(scope, filename, src, limits.MaxUpload)
	if err != nil {
		return "", 0, err
	}
	return scope.Path(), n, nil
}

// checkIdea rejects ideas that cannot be passed as a process argument
func checkIdea(idea string) error {
	if strings.ContainsRune(idea, 0) {
		return validationError("invalid idea")
	}
	return nil
}

// checkDeclaredSize runs before the body is read. net/http already rejects a malformed
// Content-Length, so the header parse matters for requests built outside a net/http server
// (proxies handing over raw requests, httptest). The ContentLength fallback covers requests
// whose length is known but whose header was never set.
func checkDeclaredSize(r *http.Request, limits Limits) error {
	var declared int64 = -1

	if raw := r.Header.Get("Content-Length"); raw != "" {
		size, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		switch {
		case errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(strings.TrimSpace(raw), "-"):
			return payloadTooLarge("exceeds platform ceiling")
		case err != nil || size < 0:
			return validationError("bad size header")
		}
		declared = size
	} else if r.ContentLength > 0 {
		declared = r.ContentLength
	}

	if declared > limits.PlatformCeiling {
		return payloadTooLarge("exceeds platform ceiling")
	}
	if declared > limits.MaxUpload {
		return payloadTooLarge("exceeds configured maximum")
	}
	return nil
}

func writeArtifact(scope *Scope, filename string, src io.Reader, limit int64) (int64, error) {
	f, err := scope.Create(filename)
	if err != nil {
		return 0, err
	}

	n, err := copyBounded(artifactWriter{f}, src, limit)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = internalError("failed to write artifact", cerr)
	}
	return n, err
}

// artifactWriter tags write failures so they are not mistaken for a bad upload
type artifactWriter struct {
	w io.Writer
}

func (a artifactWriter) Write(p []byte) (int, error) {
	n, err := a.w.Write(p)
	if err != nil {
		return n, internalError("failed to write artifact", err)
	}
	return n, nil
}

// copyBounded copies at most limit bytes and fails with PayloadTooLarge if src holds more
func copyBounded(dst io.Writer, src io.Reader, limit int64) (int64, error) {
	n, err := io.Copy(dst, io.LimitReader(src, limit+1))
	if err != nil {
		return n, classifyReadError(err)
	}
	if n > limit {
		return n, payloadTooLarge("exceeds configured maximum")
	}
	return n, nil
}

func classifyReadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return payloadTooLarge("exceeds configured maximum")
	}
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr
	}
	return &Error{Kind: KindValidation, Message: "malformed multipart body", Err: fmt.Errorf("read upload: %w", err)}
}
