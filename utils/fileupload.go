package utils

import (
	"fmt"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const megabyte = 1024 * 1024

// FileUploadError represents a file upload validation error
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// FileRule constrains one kind of upload.
type FileRule struct {
	// Label names the file in messages ("El video", "El archivo").
	Label      string
	MaxBytes   int64
	Extensions []string // lowercase, without dot; empty allows any
	Folder     string
}

// MaxMB returns the size limit in megabytes.
func (r FileRule) MaxMB() int64 {
	return r.MaxBytes / megabyte
}

// Allows reports whether the extension of name is accepted by the rule.
func (r FileRule) Allows(name string) bool {
	if len(r.Extensions) == 0 {
		return true
	}
	ext := Extension(name)
	for _, allowed := range r.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

var (
	imageExtensions    = []string{"jpg", "jpeg", "png", "gif", "webp", "heic"}
	videoExtensions    = []string{"mp4", "mov", "m4v", "webm", "3gp", "avi"}
	documentExtensions = []string{"pdf", "jpg", "jpeg", "png"}
)

// ImageRule accepts repair photos.
func ImageRule(maxMB int64) FileRule {
	return FileRule{Label: "La imagen", MaxBytes: maxMB * megabyte, Extensions: imageExtensions, Folder: "reparaciones"}
}

// VideoRule accepts the optional repair video.
func VideoRule(maxMB int64) FileRule {
	return FileRule{Label: "El video", MaxBytes: maxMB * megabyte, Extensions: videoExtensions, Folder: "reparaciones/videos"}
}

// QuoteRule accepts quote documents.
func QuoteRule(maxMB int64) FileRule {
	return FileRule{Label: "El presupuesto", MaxBytes: maxMB * megabyte, Extensions: documentExtensions, Folder: "presupuestos"}
}

// InvoiceRule accepts final invoice documents.
func InvoiceRule(maxMB int64) FileRule {
	return FileRule{Label: "La factura", MaxBytes: maxMB * megabyte, Extensions: documentExtensions, Folder: "facturas"}
}

// ValidateFile checks size and extension of an uploaded file against rule
func ValidateFile(fileHeader *multipart.FileHeader, rule FileRule) error {
	if fileHeader == nil {
		return &FileUploadError{Code: "FILE_MISSING", Message: "Tenés que adjuntar un archivo."}
	}

	if rule.MaxBytes > 0 && fileHeader.Size > rule.MaxBytes {
		sizeMB := float64(fileHeader.Size) / megabyte
		return &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("%s pesa %.1fMB y supera el máximo permitido (%dMB).", rule.Label, sizeMB, rule.MaxMB()),
		}
	}

	if !rule.Allows(fileHeader.Filename) {
		return &FileUploadError{
			Code:    "INVALID_FILE_FORMAT",
			Message: fmt.Sprintf("Formato inválido. Formatos permitidos: %s.", strings.ToUpper(strings.Join(rule.Extensions, ", "))),
		}
	}

	return nil
}

// Extension returns the lowercase extension of name without the dot.
func Extension(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

var contentTypes = map[string]string{
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"heic": "image/heic",
	"mp4":  "video/mp4",
	"m4v":  "video/x-m4v",
	"mov":  "video/quicktime",
	"webm": "video/webm",
	"3gp":  "video/3gpp",
	"avi":  "video/x-msvideo",
}

// ContentTypeFor infers the Content-Type of a stored file from its name.
func ContentTypeFor(name string) string {
	ext := Extension(name)
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension("." + ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// SanitizeFilename strips directories and characters that are unsafe in
// object keys and Content-Disposition headers.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "archivo"
	}
	return out
}

// BuildObjectKey returns a collision-free key under folder that keeps the
// original extension: folder/2006/01/<uuid>_<name>.
func BuildObjectKey(folder, filename string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%s_%s",
		strings.Trim(folder, "/"),
		now.Format("2006/01"),
		uuid.NewString(),
		SanitizeFilename(filename))
}
