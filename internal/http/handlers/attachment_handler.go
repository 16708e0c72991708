// Attachment HTTP handlers.
//
// Files are staged on a chat before the next send:
//   - POST   /chats/{id}/attachments        (multipart upload, one or more "files")
//   - GET    /chats/{id}/attachments        (staged previews)
//   - DELETE /chats/{id}/attachments/{aid}  (remove one)
//   - DELETE /chats/{id}/attachments        (clear all)
package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-tutor-backend/internal/domain"
	"github.com/tbourn/go-tutor-backend/internal/services"
)

// ListAttachmentsResponse lists the files staged on a chat.
type ListAttachmentsResponse struct {
	Attachments []domain.Attachment `json:"attachments"`
}

// ClearAttachmentsResponse reports how many staged files were dropped.
type ClearAttachmentsResponse struct {
	Removed int64 `json:"removed"`
}

// readUpload reads one multipart part, refusing parts over the upload cap.
func (h *Handlers) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > h.uploadMax {
		return nil, services.ErrFileTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.uploadMax+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > h.uploadMax {
		return nil, services.ErrFileTooLarge
	}
	return data, nil
}

// uploadedFiles collects the parts named "files" and "file".
func uploadedFiles(c *gin.Context) ([]*multipart.FileHeader, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "upload too large")
		} else {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart form required")
		}
		return nil, false
	}
	files := append(form.File["files"], form.File["file"]...)
	if len(files) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "no file provided")
		return nil, false
	}
	return files, true
}

// UploadAttachments godoc
// @ID          uploadAttachments
// @Summary     Stage files on a chat
// @Description Stages PDFs, images, text, CSV and Word documents for the next message. Staged files
// @Description are analyzed in upload order when the next message is sent, then cleared. A batch is
// @Description staged as a whole: if any file is rejected, none of them is kept.
// @Tags        Attachments
// @Accept      multipart/form-data
// @Produce     json
//
// @Param       X-User-ID  header    string  false "User ID (demo header)"  example(user123)
// @Param       id         path      string  true  "Chat ID (UUID)"         format(uuid)
// @Param       files      formData  file    true  "File to stage (repeatable)"
//
// @Success     201  {object} handlers.ListAttachmentsResponse "The files staged by this request"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Chat not found"
// @Failure     413  {object} handlers.ErrorResponse "File too large"
// @Failure     415  {object} handlers.ErrorResponse "Unsupported file type"
// @Router      /chats/{id}/attachments [post]
func (h *Handlers) UploadAttachments(c *gin.Context) {
	chatID, valid := pathUUID(c, "id", "chat")
	if !valid {
		return
	}
	files, found := uploadedFiles(c)
	if !found {
		return
	}

	uploads := make([]services.Upload, 0, len(files))
	for _, fh := range files {
		data, err := h.readUpload(fh)
		if err != nil {
			failService(c, err, ErrCodeCreateFailed)
			return
		}
		uploads = append(uploads, services.Upload{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: data})
	}
	staged, err := h.attSvc.Stage(c.Request.Context(), userID(c), chatID, uploads)
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, ListAttachmentsResponse{Attachments: staged})
}

// ListAttachments godoc
// @ID          listAttachments
// @Summary     List staged files
// @Tags        Attachments
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Chat ID (UUID)"         format(uuid)
//
// @Success     200  {object} handlers.ListAttachmentsResponse
// @Failure     404  {object} handlers.ErrorResponse "Chat not found"
// @Router      /chats/{id}/attachments [get]
func (h *Handlers) ListAttachments(c *gin.Context) {
	chatID, valid := pathUUID(c, "id", "chat")
	if !valid {
		return
	}
	items, err := h.attSvc.List(c.Request.Context(), userID(c), chatID)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListAttachmentsResponse{Attachments: items})
}

// RemoveAttachment godoc
// @ID          removeAttachment
// @Summary     Remove one staged file
// @Tags        Attachments
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Chat ID (UUID)"         format(uuid)
// @Param       aid        path    string  true  "Attachment ID (UUID)"   format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Chat or attachment not found"
// @Router      /chats/{id}/attachments/{aid} [delete]
func (h *Handlers) RemoveAttachment(c *gin.Context) {
	chatID, valid := pathUUID(c, "id", "chat")
	if !valid {
		return
	}
	attID, valid := pathUUID(c, "aid", "attachment")
	if !valid {
		return
	}
	if err := h.attSvc.Remove(c.Request.Context(), userID(c), chatID, attID); err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

// ClearAttachments godoc
// @ID          clearAttachments
// @Summary     Remove every staged file of a chat
// @Tags        Attachments
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Chat ID (UUID)"         format(uuid)
//
// @Success     200  {object} handlers.ClearAttachmentsResponse
// @Failure     404  {object} handlers.ErrorResponse "Chat not found"
// @Router      /chats/{id}/attachments [delete]
func (h *Handlers) ClearAttachments(c *gin.Context) {
	chatID, valid := pathUUID(c, "id", "chat")
	if !valid {
		return
	}
	n, err := h.attSvc.Clear(c.Request.Context(), userID(c), chatID)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, ClearAttachmentsResponse{Removed: n})
}
