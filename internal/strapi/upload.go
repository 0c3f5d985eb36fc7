package strapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// UploadCover uploads a local image and binds it to the record's cover
// field in one call, using the store's ref/refId/field linkage. Returns
// the created file's id.
func (c *Client) UploadCover(ctx context.Context, localPath string, recordID int, caption, alt string) (int, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open cover %s: %w", localPath, err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := createImagePart(writer, filepath.Base(localPath))
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return 0, fmt.Errorf("failed to buffer cover %s: %w", localPath, err)
	}

	fileInfo, err := json.Marshal(map[string]string{
		"alternativeText": alt,
		"caption":         caption,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to encode file info: %w", err)
	}

	fields := map[string]string{
		"ref":      c.contentUID,
		"refId":    strconv.Itoa(recordID),
		"field":    "cover",
		"fileInfo": string(fileInfo),
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return 0, fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize upload form: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/api/upload", nil, &buf, writer.FormDataContentType(), c.uploadTimeout)
	if err != nil {
		return 0, err
	}

	// The upload endpoint answers with a bare array of created files
	var created []struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return 0, fmt.Errorf("failed to parse upload response: %w", err)
	}
	if len(created) == 0 {
		return 0, fmt.Errorf("upload of %s returned no files", localPath)
	}
	return created[0].ID, nil
}

// createImagePart writes the file part with its real content type; the
// default octet-stream makes some upload providers reject images
func createImagePart(writer *multipart.Writer, filename string) (io.Writer, error) {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, filename))
	header.Set("Content-Type", mimeFromExt(filename))

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload part: %w", err)
	}
	return part, nil
}

func mimeFromExt(filename string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "avif":
		return "image/avif"
	case "svg":
		return "image/svg+xml"
	}
	return "application/octet-stream"
}
