package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/mkellner/bookshop/app/models"
	"github.com/mkellner/bookshop/app/repository"
	"github.com/mkellner/bookshop/internal/pkg/cache"
	"github.com/mkellner/bookshop/internal/pkg/covers"
)

// AdminCoversController handles the AI-assisted cover features: analyzing a
// single cover photo into book details, and creating many draft books from a
// batch of cover photos.
type AdminCoversController struct {
	bookRepo repository.BookRepository
	analyzer *covers.Analyzer
}

var adminCoversController *AdminCoversController

// InitializeAdminCoversController wires the covers controller with its
// repository and analyzer.
func InitializeAdminCoversController(analyzer *covers.Analyzer) {
	factory := repository.GetGlobalFactory()
	adminCoversController = &AdminCoversController{
		bookRepo: factory.GetBookRepository(),
		analyzer: analyzer,
	}
}

// HandleAnalyzeCover accepts one cover photo and returns the extracted book
// details as JSON. Nothing is persisted; the admin reviews the suggestion in
// the book form before saving.
func HandleAnalyzeCover(c *fiber.Ctx) error {
	acc := adminCoversController

	fileHeader, err := c.FormFile("cover")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "a cover image file is required",
		})
	}

	data, err := readUpload(fileHeader)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "could not read the uploaded file",
		})
	}

	details, err := acc.analyzer.Analyze(c.Context(), data)
	if err != nil {
		switch {
		case errors.Is(err, covers.ErrAnalyzerNotConfigured):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "cover analysis is not configured",
			})
		case errors.Is(err, covers.ErrUnreadableCover):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "could not read book details from this image",
			})
		default:
			log.Printf("Cover analysis failed: %v", err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "cover analysis failed, please try again",
			})
		}
	}

	return c.JSON(details)
}

type coverBatchItem struct {
	Filename string `json:"filename"`
	BookID   uint   `json:"book_id,omitempty"`
	Title    string `json:"title,omitempty"`
	Error    string `json:"error,omitempty"`
}

type coverBatchStored struct {
	Items     []coverBatchItem `json:"items"`
	CreatedAt int64            `json:"created_at"`
}

// HandleBatchCoverUploadPage renders the multi-photo upload form.
func HandleBatchCoverUploadPage(c *fiber.Ctx) error {
	return c.Render("admin/batch_upload", fiber.Map{
		"Flash": flash.Get(c),
	})
}

// HandleBatchCoverUpload accepts several cover photos, creates one draft book
// per readable cover, and redirects to a single-use summary page. Per-file
// failures are reported in the summary instead of aborting the batch.
func HandleBatchCoverUpload(c *fiber.Ctx) error {
	acc := adminCoversController

	form, err := c.MultipartForm()
	if err != nil {
		fm := fiber.Map{"type": "error", "message": "No files uploaded."}
		return flash.WithError(c, fm).Redirect("/admin/covers/batch")
	}
	files := form.File["covers"]
	if len(files) == 0 {
		fm := fiber.Map{"type": "error", "message": "No files uploaded."}
		return flash.WithError(c, fm).Redirect("/admin/covers/batch")
	}
	if len(files) > 20 {
		files = files[:20]
	}

	stored := coverBatchStored{CreatedAt: time.Now().Unix()}
	for _, fileHeader := range files {
		stored.Items = append(stored.Items, acc.processBatchFile(c, fileHeader))
	}

	payload, _ := json.Marshal(stored)
	batchID := fmt.Sprintf("%d", time.Now().UnixNano())
	key := "covers:batch:" + batchID
	if err := cache.Set(key, string(payload), 30*time.Minute); err != nil {
		log.Printf("Failed to persist cover batch summary: %v", err)
		fm := fiber.Map{"type": "error", "message": "Batch processed but the summary could not be stored."}
		return flash.WithError(c, fm).Redirect("/admin/books")
	}

	return c.Redirect("/admin/covers/batch/"+batchID, fiber.StatusSeeOther)
}

// HandleBatchCoverResult renders the summary of one batch. Single-use: the
// cached summary is consumed on first view.
func HandleBatchCoverResult(c *fiber.Ctx) error {
	batchID := c.Params("id")
	if batchID == "" {
		return c.Redirect("/admin/books")
	}

	raw, err := cache.GetDel("covers:batch:" + batchID)
	if err != nil || raw == "" {
		fm := fiber.Map{"type": "info", "message": "This upload summary is no longer available."}
		return flash.WithInfo(c, fm).Redirect("/admin/books")
	}

	var stored coverBatchStored
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		fm := fiber.Map{"type": "error", "message": "Failed to load the upload summary."}
		return flash.WithError(c, fm).Redirect("/admin/books")
	}

	created := 0
	for _, item := range stored.Items {
		if item.Error == "" {
			created++
		}
	}

	return c.Render("admin/batch_result", fiber.Map{
		"Items":   stored.Items,
		"Created": created,
		"Failed":  len(stored.Items) - created,
		"Flash":   flash.Get(c),
	})
}

// processBatchFile turns one uploaded photo into a draft book. The draft is
// created unavailable so half-described stock never shows in the storefront.
func (acc *AdminCoversController) processBatchFile(c *fiber.Ctx, fileHeader *multipart.FileHeader) coverBatchItem {
	item := coverBatchItem{Filename: fileHeader.Filename}

	data, err := readUpload(fileHeader)
	if err != nil {
		item.Error = "could not read file"
		return item
	}

	processed, err := covers.ProcessCover(data)
	if err != nil {
		item.Error = "not a usable image"
		return item
	}
	coverPath, err := covers.SaveCover(processed, coverUploadDir)
	if err != nil {
		log.Printf("Failed to store cover for %s: %v", fileHeader.Filename, err)
		item.Error = "could not store cover"
		return item
	}

	book := &models.Book{
		CoverImagePath: coverPath,
		IsAvailable:    false,
	}

	details, err := acc.analyzer.Analyze(c.Context(), data)
	if err != nil {
		log.Printf("Cover analysis failed for %s: %v", fileHeader.Filename, err)
		item.Error = "analysis failed"
		return item
	}
	book.Title = details.Title
	book.Author = details.Author
	book.Description = details.Description
	book.PublishedYear = details.PublishedYear

	if err := book.Validate(); err != nil {
		item.Error = "incomplete details extracted"
		return item
	}
	if err := acc.bookRepo.Create(book); err != nil {
		log.Printf("Failed to create draft book for %s: %v", fileHeader.Filename, err)
		item.Error = "could not save book"
		return item
	}

	item.BookID = book.ID
	item.Title = book.Title
	return item
}

func readUpload(fileHeader *multipart.FileHeader) ([]byte, error) {
	f, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
