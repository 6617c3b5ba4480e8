// Package content manages the CMS resources: stories, partners and
// documents, including the media objects attached to them.
package content

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/NjengaIWJ/tetea-jamii/internal/domain/media"
	"github.com/NjengaIWJ/tetea-jamii/internal/platform/logging"
	"github.com/NjengaIWJ/tetea-jamii/internal/platform/storage"

	"github.com/bytedance/sonic"
)

var (
	ErrMissingFields  = errors.New("missing fields")
	ErrNotFound       = errors.New("not found")
	ErrDuplicateTitle = errors.New("title already exists")
	ErrDuplicateName  = errors.New("name already exists")
	ErrTitleTooShort  = errors.New("title too short")
	ErrDocumentType   = errors.New("unsupported document type")
	ErrDocumentTooBig = errors.New("document too large")
)

// Document upload constraints.
const (
	minDocumentTitle = 3
	maxDocumentSize  = 5 << 20
)

var allowedDocumentTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// Service implements the content operations on top of the relational store
// and the media host.
type Service struct {
	db        *gorm.DB
	host      media.Host
	processor *media.Processor
	logger    *logging.Logger
}

// Options bundles Service dependencies.
type Options struct {
	DB        *gorm.DB
	Host      media.Host
	Processor *media.Processor
	Logger    *logging.Logger
}

// NewService wires a content service from options.
func NewService(opts Options) (*Service, error) {
	if opts.DB == nil {
		return nil, errors.New("content service requires a database")
	}
	if opts.Host == nil {
		return nil, errors.New("content service requires a media host")
	}
	if opts.Processor == nil {
		opts.Processor = &media.Processor{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Service{
		db:        opts.DB,
		host:      opts.Host,
		processor: opts.Processor,
		logger:    opts.Logger,
	}, nil
}

// uploadImages processes and stores a batch of images, returning parallel
// slices of public URLs and object keys.
func (s *Service) uploadImages(ctx context.Context, files []media.File) ([]string, []string, error) {
	if err := s.processor.CheckBatch(files); err != nil {
		return nil, nil, err
	}

	var urls, keys []string
	for _, f := range files {
		data, err := s.processor.Process(f)
		if err != nil {
			s.cleanup(ctx, keys)
			return nil, nil, err
		}
		key := media.ImageKey()
		url, err := s.host.Upload(ctx, key, "image/jpeg", bytes.NewReader(data))
		if err != nil {
			s.cleanup(ctx, keys)
			return nil, nil, err
		}
		urls = append(urls, url)
		keys = append(keys, key)
	}
	return urls, keys, nil
}

// cleanup removes stored objects after a partial failure. Errors are logged
// and swallowed; an orphaned object is better than a failed rollback.
func (s *Service) cleanup(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.host.Delete(ctx, key); err != nil {
			s.logger.WarnTag("content", "failed to clean up object %s: %v", key, err)
		}
	}
}

func marshalJSON(v any) (datatypes.JSON, error) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func unmarshalKeys(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var keys []string
	if err := sonic.Unmarshal(raw, &keys); err != nil {
		return nil
	}
	return keys
}

// --- Stories ---

// CreateStory validates, uploads the attached images and persists the story.
func (s *Service) CreateStory(ctx context.Context, title, content string, images []media.File) (*storage.Story, error) {
	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(content) == "" {
		return nil, ErrMissingFields
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&storage.Story{}).Where("title = ?", title).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrDuplicateTitle
	}

	var urls, keys []string
	if len(images) > 0 {
		var err error
		urls, keys, err = s.uploadImages(ctx, images)
		if err != nil {
			return nil, err
		}
	}

	story := storage.Story{Title: title, Content: content}
	if len(urls) > 0 {
		mediaJSON, err := marshalJSON(urls)
		if err != nil {
			s.cleanup(ctx, keys)
			return nil, err
		}
		keysJSON, err := marshalJSON(keys)
		if err != nil {
			s.cleanup(ctx, keys)
			return nil, err
		}
		story.Media = mediaJSON
		story.MediaKeys = keysJSON
	}

	if err := s.db.WithContext(ctx).Create(&story).Error; err != nil {
		s.cleanup(ctx, keys)
		return nil, err
	}
	s.logger.InfoTag("content", "story created: %s", story.Title)
	return &story, nil
}

// ListStories returns all stories, newest first.
func (s *Service) ListStories(ctx context.Context) ([]storage.Story, error) {
	var stories []storage.Story
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&stories).Error; err != nil {
		return nil, err
	}
	return stories, nil
}

// GetStory fetches one story by id.
func (s *Service) GetStory(ctx context.Context, id uint) (*storage.Story, error) {
	var story storage.Story
	if err := s.db.WithContext(ctx).First(&story, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &story, nil
}

// StoryUpdate carries optional story mutations; nil fields are untouched.
type StoryUpdate struct {
	Title   *string
	Content *string
	Images  []media.File
}

// UpdateStory applies changes. New images replace the existing set; the old
// objects are deleted best-effort after the row is saved.
func (s *Service) UpdateStory(ctx context.Context, id uint, update StoryUpdate) (*storage.Story, error) {
	story, err := s.GetStory(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return nil, ErrMissingFields
		}
		story.Title = title
	}
	if update.Content != nil {
		story.Content = *update.Content
	}

	var oldKeys []string
	if len(update.Images) > 0 {
		urls, keys, err := s.uploadImages(ctx, update.Images)
		if err != nil {
			return nil, err
		}
		mediaJSON, err := marshalJSON(urls)
		if err != nil {
			s.cleanup(ctx, keys)
			return nil, err
		}
		keysJSON, err := marshalJSON(keys)
		if err != nil {
			s.cleanup(ctx, keys)
			return nil, err
		}
		oldKeys = unmarshalKeys(story.MediaKeys)
		story.Media = mediaJSON
		story.MediaKeys = keysJSON
	}

	if err := s.db.WithContext(ctx).Save(story).Error; err != nil {
		return nil, err
	}
	s.cleanup(ctx, oldKeys)
	return story, nil
}

// DeleteStory removes the story row, then its media objects best-effort.
func (s *Service) DeleteStory(ctx context.Context, id uint) error {
	story, err := s.GetStory(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(story).Error; err != nil {
		return err
	}
	s.cleanup(ctx, unmarshalKeys(story.MediaKeys))
	return nil
}

// --- Partners ---

// CreatePartner persists a partner with an optional logo image.
func (s *Service) CreatePartner(ctx context.Context, name string, logo *media.File) (*storage.Partner, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrMissingFields
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&storage.Partner{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrDuplicateName
	}

	partner := storage.Partner{Name: name}
	if logo != nil {
		urls, keys, err := s.uploadImages(ctx, []media.File{*logo})
		if err != nil {
			return nil, err
		}
		partner.Media = urls[0]
		partner.MediaKey = keys[0]
	}

	if err := s.db.WithContext(ctx).Create(&partner).Error; err != nil {
		if partner.MediaKey != "" {
			s.cleanup(ctx, []string{partner.MediaKey})
		}
		return nil, err
	}
	s.logger.InfoTag("content", "partner created: %s", partner.Name)
	return &partner, nil
}

// ListPartners returns all partners, newest first.
func (s *Service) ListPartners(ctx context.Context) ([]storage.Partner, error) {
	var partners []storage.Partner
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&partners).Error; err != nil {
		return nil, err
	}
	return partners, nil
}

// GetPartner fetches one partner by id.
func (s *Service) GetPartner(ctx context.Context, id uint) (*storage.Partner, error) {
	var partner storage.Partner
	if err := s.db.WithContext(ctx).First(&partner, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &partner, nil
}

// PartnerUpdate carries optional partner mutations.
type PartnerUpdate struct {
	Name *string
	Logo *media.File
}

// UpdatePartner applies changes; a new logo replaces and deletes the old one.
func (s *Service) UpdatePartner(ctx context.Context, id uint, update PartnerUpdate) (*storage.Partner, error) {
	partner, err := s.GetPartner(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, ErrMissingFields
		}
		partner.Name = name
	}

	oldKey := ""
	if update.Logo != nil {
		urls, keys, err := s.uploadImages(ctx, []media.File{*update.Logo})
		if err != nil {
			return nil, err
		}
		oldKey = partner.MediaKey
		partner.Media = urls[0]
		partner.MediaKey = keys[0]
	}

	if err := s.db.WithContext(ctx).Save(partner).Error; err != nil {
		return nil, err
	}
	if oldKey != "" {
		s.cleanup(ctx, []string{oldKey})
	}
	return partner, nil
}

// DeletePartner removes the partner row, then its logo best-effort.
func (s *Service) DeletePartner(ctx context.Context, id uint) error {
	partner, err := s.GetPartner(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(partner).Error; err != nil {
		return err
	}
	if partner.MediaKey != "" {
		s.cleanup(ctx, []string{partner.MediaKey})
	}
	return nil
}

// --- Documents ---

// CreateDocument stores the raw file on the media host and records its
// metadata. Documents are hosted as-is, no image processing.
func (s *Service) CreateDocument(ctx context.Context, title string, file media.File) (*storage.Document, error) {
	title = strings.TrimSpace(title)
	if title == "" || file.Reader == nil {
		return nil, ErrMissingFields
	}
	if len(title) < minDocumentTitle {
		return nil, ErrTitleTooShort
	}
	if !allowedDocumentTypes[file.ContentType] {
		return nil, ErrDocumentType
	}
	if file.Size > maxDocumentSize {
		return nil, ErrDocumentTooBig
	}

	key := media.DocumentKey()
	url, err := s.host.Upload(ctx, key, file.ContentType, file.Reader)
	if err != nil {
		return nil, err
	}

	doc := storage.Document{
		Title:    title,
		FileName: file.Name,
		Mimetype: file.ContentType,
		Size:     file.Size,
		URL:      url,
		Key:      key,
	}
	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		s.cleanup(ctx, []string{key})
		return nil, err
	}
	s.logger.InfoTag("content", "document created: %s", doc.Title)
	return &doc, nil
}

// ListDocuments returns all documents, most recently uploaded first.
func (s *Service) ListDocuments(ctx context.Context) ([]storage.Document, error) {
	var docs []storage.Document
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// GetDocument fetches one document by id.
func (s *Service) GetDocument(ctx context.Context, id uint) (*storage.Document, error) {
	var doc storage.Document
	if err := s.db.WithContext(ctx).First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// DeleteDocument removes the document row, then its file best-effort.
func (s *Service) DeleteDocument(ctx context.Context, id uint) error {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(doc).Error; err != nil {
		return err
	}
	s.cleanup(ctx, []string{doc.Key})
	return nil
}
