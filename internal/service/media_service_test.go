package service

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	name        string
	contentType string
	data        []byte
}

func (m *memStore) Put(_ context.Context, name string, r io.Reader, _ int64, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.name, m.contentType, m.data = name, contentType, data
	return "/uploads/" + name, nil
}

func (m *memStore) Delete(context.Context, string) error { return nil }

// multipartFile builds a real multipart.File/FileHeader pair from content.
func multipartFile(t *testing.T, content []byte) (multipart.File, *multipart.FileHeader) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", "upload.bin")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	f, h, err := req.FormFile("file")
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f, h
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestMediaService_SaveUpload(t *testing.T) {
	store := &memStore{}
	svc := NewMediaService(store, 1024)

	f, h := multipartFile(t, pngHeader)
	url, err := svc.SaveUpload(context.Background(), f, h)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(store.name, ".png"))
	assert.Equal(t, "/uploads/"+store.name, url)
	assert.Equal(t, "image/png", store.contentType)
	assert.Equal(t, pngHeader, store.data)
}

func TestMediaService_Rejects(t *testing.T) {
	svc := NewMediaService(&memStore{}, 8)

	f, h := multipartFile(t, pngHeader)
	_, err := svc.SaveUpload(context.Background(), f, h)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	svc = NewMediaService(&memStore{}, 1024)
	f, h = multipartFile(t, []byte("plain text, not an image"))
	_, err = svc.SaveUpload(context.Background(), f, h)
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
}
