// Package cms is the HTTP surface for stories, partners, documents and the
// contact form. Reads are public; mutations sit behind the session gate.
package cms

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/NjengaIWJ/tetea-jamii/internal/domain/content"
	"github.com/NjengaIWJ/tetea-jamii/internal/domain/mail"
	"github.com/NjengaIWJ/tetea-jamii/internal/domain/media"
	platformerrors "github.com/NjengaIWJ/tetea-jamii/internal/platform/errors"
	"github.com/NjengaIWJ/tetea-jamii/internal/platform/logging"
	httptransport "github.com/NjengaIWJ/tetea-jamii/internal/transport/http"
)

// Service handles CMS resource routes.
type Service struct {
	content *content.Service
	mail    *mail.Dispatcher
	logger  *logging.Logger
}

// NewService builds the CMS transport service.
func NewService(contentSvc *content.Service, mailer *mail.Dispatcher, logger *logging.Logger) (*Service, error) {
	if contentSvc == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "cms.new", "content service is required")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{content: contentSvc, mail: mailer, logger: logger}, nil
}

// Register mounts public reads on api and mutations on the secured group.
func (s *Service) Register(ctx context.Context, api, secured *gin.RouterGroup) error {
	api.GET("/articles", s.handleListStories)
	api.GET("/articles/:id", s.handleGetStory)
	secured.POST("/articles", s.handleCreateStory)
	secured.PUT("/articles/:id", s.handleUpdateStory)
	secured.DELETE("/articles/:id", s.handleDeleteStory)

	api.GET("/partners", s.handleListPartners)
	api.GET("/partners/:id", s.handleGetPartner)
	secured.POST("/partners", s.handleCreatePartner)
	secured.PUT("/partners/:id", s.handleUpdatePartner)
	secured.DELETE("/partners/:id", s.handleDeletePartner)

	api.GET("/documents", s.handleListDocuments)
	api.GET("/documents/:id", s.handleGetDocument)
	secured.POST("/documents", s.handleCreateDocument)
	secured.DELETE("/documents/:id", s.handleDeleteDocument)

	if s.mail != nil {
		api.POST("/sendEmail", s.handleSendEmail)
	}

	s.logger.InfoTag("HTTP", "cms routes registered")
	return nil
}

// formFiles converts multipart uploads into domain files. The returned
// closers must be closed after the service call.
func formFiles(headers []*multipart.FileHeader) ([]media.File, []multipart.File, error) {
	var files []media.File
	var opened []multipart.File
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			for _, o := range opened {
				o.Close()
			}
			return nil, nil, err
		}
		opened = append(opened, f)
		files = append(files, media.File{
			Name:        h.Filename,
			ContentType: h.Header.Get("Content-Type"),
			Size:        h.Size,
			Reader:      f,
		})
	}
	return files, opened, nil
}

func closeAll(opened []multipart.File) {
	for _, f := range opened {
		f.Close()
	}
}

// --- Stories ---

func (s *Service) handleCreateStory(c *gin.Context) {
	title := c.PostForm("title")
	body := c.PostForm("content")

	var headers []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		headers = form.File["media"]
	}

	files, opened, err := formFiles(headers)
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "Invalid file upload", nil)
		return
	}
	defer closeAll(opened)

	story, err := s.content.CreateStory(c.Request.Context(), title, body, files)
	if err != nil {
		s.respondContentError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusCreated, story, "Story created")
}

func (s *Service) handleListStories(c *gin.Context) {
	stories, err := s.content.ListStories(c.Request.Context())
	if err != nil {
		s.respondContentError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, stories, "")
}

func (s *Service) handleGetStory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	story, err := s.content.GetStory(c.Request.Context(), id)
	if err != nil {
		s.respondContentError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, story, "")
}

func (s *Service) handleUpdateStory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	update := content.StoryUpdate{}
	if title, set := c.GetPostForm("title"); set {
		update.Title = &title
	}
	if body, set := c.GetPostForm("content"); set {
		update.Content = &body
	}

	var headers []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		headers = form.File["media"]
	}
	files, opened, err := formFiles(headers)
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "Invalid file upload", nil)
		return
	}
	defer closeAll(opened)
	update.Images = files

	story, err := s.content.UpdateStory(c.Request.Context(), id, update)
	if err != nil {
		s.respondContentError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, story, "Story updated")
}

func (s *Service) handleDeleteStory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.content.DeleteStory(c.Request.Context(), id); err != nil {
		s.respondContentError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, nil, "Story deleted")
}

// --- Partners ---

func (s *Service) handleCreatePartner(c *gin.Context) {
	name := c.PostForm("name")

	var logo *media.File
	var opened []multipart.File
	if header, err := c.FormFile("media"); err == nil {
		files, o, ferr := formFiles([]*multipart.FileHeader{header})
		if ferr != nil {
			httptransport.RespondError(c, http.StatusBadRequest, "Invalid file upload", nil)
			return
		}
		opened = o
		logo = &files[0]
	}
	defer closeAll(opened)

	partner, err := s.content.CreatePartner(c.Request.Context(), name, logo)
	if err != nil {
		s.respondContentError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusCreated, partner, "Partner created")
}

func (s *Service) handleListPartners(c *gin.Context) {
	partners, err := s.content.ListPartners(c.Request.Context())
	if err != nil {
		s.respondContentError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, partners, "")
}

func (s *Service) handleGetPartner(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	partner, err := s.content.GetPartner(c.Request.Context(), id)
	if err != nil {
		s.respondContentError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, partner, "")
}

func (s *Service) handleUpdatePartner(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	update := content.PartnerUpdate{}
	if name, set := c.GetPostForm("name"); set {
		update.Name = &name
	}

	var opened []multipart.File
	if header, err := c.FormFile("media"); err == nil {
		files, o, ferr := formFiles([]*multipart.FileHeader{header})
		if ferr != nil {
			httptransport.RespondError(c, http.StatusBadRequest, "Invalid file upload", nil)
			return
		}
		opened = o
		update.Logo = &files[0]
	}
	defer closeAll(opened)

	partner, err := s.content.UpdatePartner(c.Request.Context(), id, update)
	if err != nil {
		s.respondContentError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, partner, "Partner updated")
}

func (s *Service) handleDeletePartner(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.content.DeletePartner(c.Request.Context(), id); err != nil {
		s.respondContentError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, nil, "Partner deleted")
}

// --- Documents ---

func (s *Service) handleCreateDocument(c *gin.Context) {
	title := c.PostForm("title")

	header, err := c.FormFile("file")
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "Missing fields", nil)
		return
	}
	files, opened, err := formFiles([]*multipart.FileHeader{header})
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "Invalid file upload", nil)
		return
	}
	defer closeAll(opened)

	doc, err := s.content.CreateDocument(c.Request.Context(), title, files[0])
	if err != nil {
		s.respondContentError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusCreated, doc, "Document created")
}

func (s *Service) handleListDocuments(c *gin.Context) {
	docs, err := s.content.ListDocuments(c.Request.Context())
	if err != nil {
		s.respondContentError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, docs, "")
}

func (s *Service) handleGetDocument(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	doc, err := s.content.GetDocument(c.Request.Context(), id)
	if err != nil {
		s.respondContentError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, doc, "")
}

func (s *Service) handleDeleteDocument(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.content.DeleteDocument(c.Request.Context(), id); err != nil {
		s.respondContentError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, nil, "Document deleted")
}

// --- Contact ---

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (s *Service) handleSendEmail(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "Missing fields", nil)
		return
	}

	err := s.mail.Submit(mail.Message{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Body:    req.Message,
	})
	if err != nil {
		if errors.Is(err, mail.ErrMissingFields) {
			httptransport.RespondError(c, http.StatusBadRequest, "Missing fields", nil)
			return
		}
		s.logger.ErrorTag("HTTP", "contact submit: %v", err)
		httptransport.RespondError(c, http.StatusInternalServerError, "Internal server error", nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, nil, "Message sent")
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "Invalid id", nil)
		return 0, false
	}
	return uint(id), true
}

func (s *Service) respondContentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, content.ErrMissingFields):
		httptransport.RespondError(c, http.StatusBadRequest, "Missing fields", nil)
	case errors.Is(err, content.ErrNotFound):
		httptransport.RespondError(c, http.StatusNotFound, "Not found", nil)
	case errors.Is(err, content.ErrDuplicateTitle):
		httptransport.RespondError(c, http.StatusConflict, "Title already exists", nil)
	case errors.Is(err, content.ErrDuplicateName):
		httptransport.RespondError(c, http.StatusConflict, "Name already exists", nil)
	case errors.Is(err, content.ErrTitleTooShort):
		httptransport.RespondError(c, http.StatusBadRequest, "Title too short", nil)
	case errors.Is(err, content.ErrDocumentType):
		httptransport.RespondError(c, http.StatusBadRequest, "Unsupported document type", nil)
	case errors.Is(err, content.ErrDocumentTooBig):
		httptransport.RespondError(c, http.StatusBadRequest, "Document too large", nil)
	case errors.Is(err, media.ErrNoFiles):
		httptransport.RespondError(c, http.StatusBadRequest, "No files provided", nil)
	case errors.Is(err, media.ErrTooManyFiles):
		httptransport.RespondError(c, http.StatusBadRequest, "Too many files", nil)
	case errors.Is(err, media.ErrFileTooLarge):
		httptransport.RespondError(c, http.StatusBadRequest, "File too large", nil)
	case errors.Is(err, media.ErrUnsupportedType):
		httptransport.RespondError(c, http.StatusBadRequest, "Unsupported file type", nil)
	default:
		s.logger.ErrorTag("HTTP", "cms error: %v", err)
		httptransport.RespondError(c, http.StatusInternalServerError, "Internal server error", nil)
	}
}
